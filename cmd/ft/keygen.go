package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fintrack/fintrack/internal/cache"
)

var keygenCmd = &cobra.Command{
	Use:     "keygen",
	GroupID: "advanced",
	Short:   "Generate a cache encryption key",
	Long: `Print a random key for encrypting the local cache at rest. Put it in
the config file as cache.key or export it as FT_CACHE_KEY.

An existing cache cannot be read with a different key; start from an
empty cache path when enabling encryption.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(cache.NewKey())
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
}
