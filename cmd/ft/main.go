// Command ft is the fintrack client: an offline-first personal finance
// tracker that records transactions locally and syncs them to a backend.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/fintrack/fintrack/internal/config"
	"github.com/fintrack/fintrack/internal/logger"
)

var (
	cfgFile string
	cfg     *config.Config
	log     zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ft",
	Short: "Offline-first personal finance tracker",
	Long: `ft records income and expenses on this device first and syncs them to
the fintrack backend whenever it is reachable.

Changes made offline are queued and replayed in order once the backend
answers again. A running 'ft watch' also receives changes made on other
devices as they happen.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}
		cfg = loaded
		log = logger.NewWithOptions(logger.Options{
			Level: cfg.Log.Level,
			File:  cfg.Log.File,
		})
		return nil
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "txn", Title: "Transactions:"},
		&cobra.Group{ID: "sync", Title: "Sync:"},
		&cobra.Group{ID: "data", Title: "Import and export:"},
		&cobra.Group{ID: "advanced", Title: "Advanced:"},
	)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default "+config.ConfigDir()+"/config.yaml)")
	pf.String("user", "", "owner email attached to new transactions")
	pf.String("server", "", "backend base URL")
	pf.String("cache", "", "local cache path")
	pf.String("backend", "", "cache backend: sqlite, bolt or memory")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-file", "", "write JSON logs to this file instead of stderr")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
