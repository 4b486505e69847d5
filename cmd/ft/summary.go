package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fintrack/fintrack/internal/ui"
	"github.com/fintrack/fintrack/internal/view"
)

var summaryCmd = &cobra.Command{
	Use:     "summary",
	GroupID: "txn",
	Short:   "Show balance totals and the last seven days",
	Run: func(cmd *cobra.Command, args []string) {
		category, _ := cmd.Flags().GetString("category")

		ctx := cmd.Context()
		s, err := openSession(ctx)
		exitOnErr(err)
		defer s.Close()

		txns := s.engine.Snapshot()
		if category != "" {
			txns = view.Filter(txns, view.Query{Category: category})
		}
		currency := s.engine.Settings().Currency

		fmt.Println(ui.SummaryBlock(view.Summarize(txns), currency))
		fmt.Println()
		fmt.Println(ui.RenderAccent("Last 7 days") + ui.RenderMuted("  (income / expense)"))
		fmt.Println(ui.WeeklyChart(view.Weekly(txns, time.Now())))
	},
}

func init() {
	summaryCmd.Flags().StringP("category", "c", "", "only this category")
	rootCmd.AddCommand(summaryCmd)
}
