package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fintrack/fintrack/internal/migrate"
	"github.com/fintrack/fintrack/internal/ui"
)

var importCmd = &cobra.Command{
	Use:     "import <file.jsonl>",
	GroupID: "data",
	Short:   "Import transactions from a JSON Lines file",
	Long: `Import one transaction per line. Identifiers in the file are ignored;
every record is added as new and synced like any other change. Records
without a user get the configured one.

Example:
  ft import export.jsonl --dry-run`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		ctx := cmd.Context()
		s, err := openSession(ctx)
		exitOnErr(err)
		defer s.Close()

		res, err := migrate.FromFile(ctx, args[0], s.engine, migrate.Options{User: cfg.User, DryRun: dryRun})
		exitOnErr(err)

		for _, e := range res.Errors {
			fmt.Println(ui.RenderWarn("  " + e))
		}
		verb := "Imported"
		if dryRun {
			verb = "Valid"
		}
		fmt.Printf("%s %d of %d records\n", ui.RenderPass(verb+":"), res.Imported, res.Read)

		if !dryRun && res.Imported > 0 {
			reportFlush(s.syncNow(ctx))
		}
	},
}

func init() {
	importCmd.Flags().Bool("dry-run", false, "validate without recording")
	rootCmd.AddCommand(importCmd)
}
