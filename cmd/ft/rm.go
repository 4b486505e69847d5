package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fintrack/fintrack/internal/ui"
)

var rmCmd = &cobra.Command{
	Use:     "rm <id>...",
	Aliases: []string{"delete"},
	GroupID: "txn",
	Short:   "Delete transactions",
	Args:    cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		s, err := openSession(ctx)
		exitOnErr(err)
		defer s.Close()

		for _, arg := range args {
			id, err := resolveID(s, arg)
			exitOnErr(err)

			t, err := s.engine.Delete(ctx, id)
			exitOnErr(err)
			fmt.Printf("%s %s (%s)\n", ui.RenderPass("Deleted"), t.Description, ui.SignedAmount(t, ""))
		}
		reportFlush(s.syncNow(ctx))
	},
}

func init() {
	rootCmd.AddCommand(rmCmd)
}
