package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fintrack/fintrack/internal/ui"
	"github.com/fintrack/fintrack/internal/view"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	GroupID: "txn",
	Short:   "List transactions, most recent first",
	Long: `List cached transactions, most recent first. Pending records (not yet
confirmed by the backend) are included.

The category filter is an exact match; records without a category count as
"general". The search matches description, category and id, ignoring case.

Examples:
  ft list --category food
  ft list --search uber --limit 10
  ft list --category bills --remember   # make it the default filter`,
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.Flags()
		search, _ := flags.GetString("search")
		limit, _ := flags.GetInt("limit")
		asJSON, _ := flags.GetBool("json")
		remember, _ := flags.GetBool("remember")

		ctx := cmd.Context()
		s, err := openSession(ctx)
		exitOnErr(err)
		defer s.Close()

		settings := s.engine.Settings()
		category := settings.Category
		if flags.Changed("category") {
			category, _ = flags.GetString("category")
		}
		if remember {
			settings.Category = category
			exitOnErr(s.engine.SaveSettings(ctx, settings))
		}

		txns := view.Filter(s.engine.Snapshot(), view.Query{Category: category, Search: search})
		if limit > 0 && len(txns) > limit {
			txns = txns[:limit]
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			exitOnErr(enc.Encode(txns))
			return
		}

		fmt.Println(ui.TransactionTable(txns, settings.Currency))
		if category != "" && category != view.CategoryAll {
			fmt.Println(ui.RenderMuted("category: " + category))
		}
	},
}

func init() {
	listCmd.Flags().StringP("category", "c", "", "only this category (all for none)")
	listCmd.Flags().StringP("search", "s", "", "match description, category or id")
	listCmd.Flags().IntP("limit", "n", 0, "show at most n records")
	listCmd.Flags().Bool("json", false, "print JSON")
	listCmd.Flags().Bool("remember", false, "save the category filter as the default")
	rootCmd.AddCommand(listCmd)
}
