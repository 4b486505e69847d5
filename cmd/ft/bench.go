package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fintrack/fintrack/internal/loadtest"
	"github.com/fintrack/fintrack/internal/store"
)

var benchCmd = &cobra.Command{
	Use:     "bench",
	GroupID: "advanced",
	Short:   "Measure backend store latency under concurrent clients",
	Long: `Run concurrent simulated clients against a scratch backend database.
Each client records transactions and re-lists them periodically, the same
pattern a device uses when it flushes its queue and refreshes.

Examples:
  ft bench
  ft bench --clients 100 --ops 20
  ft bench --json`,
	Run: func(cmd *cobra.Command, args []string) {
		c := loadtest.DefaultConfig()
		c.Clients, _ = cmd.Flags().GetInt("clients")
		c.OpsPerClient, _ = cmd.Flags().GetInt("ops")
		c.ListEvery, _ = cmd.Flags().GetInt("list-every")
		jsonOutput, _ := cmd.Flags().GetBool("json")
		dbPath, _ := cmd.Flags().GetString("db")

		if c.Clients <= 0 || c.OpsPerClient <= 0 {
			fmt.Fprintf(os.Stderr, "Error: --clients and --ops must be positive\n")
			os.Exit(1)
		}

		if dbPath == "" {
			dir, err := os.MkdirTemp("", "ft-bench-")
			exitOnErr(err)
			defer os.RemoveAll(dir)
			closeOnExit(func() { _ = os.RemoveAll(dir) })
			dbPath = filepath.Join(dir, "bench.db")
		}

		db, err := store.Open(dbPath)
		exitOnErr(err)
		defer db.Close()
		closeOnExit(func() { _ = db.Close() })

		res, err := loadtest.Run(cmd.Context(), db, c)
		exitOnErr(err)

		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			exitOnErr(enc.Encode(res))
			return
		}
		res.Print(os.Stdout)
	},
}

func init() {
	d := loadtest.DefaultConfig()
	benchCmd.Flags().Int("clients", d.Clients, "number of concurrent clients")
	benchCmd.Flags().Int("ops", d.OpsPerClient, "writes per client")
	benchCmd.Flags().Int("list-every", d.ListEvery, "list after every N writes (0 disables)")
	benchCmd.Flags().String("db", "", "database path (default: a temporary file)")
	benchCmd.Flags().Bool("json", false, "output results as JSON")
	rootCmd.AddCommand(benchCmd)
}
