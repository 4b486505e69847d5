package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fintrack/fintrack/internal/schema"
	"github.com/fintrack/fintrack/internal/smartdate"
	"github.com/fintrack/fintrack/internal/ui"
)

var editCmd = &cobra.Command{
	Use:     "edit <id>",
	GroupID: "txn",
	Short:   "Change fields of a transaction",
	Long: `Change one or more fields of a transaction. Only the flags given are
changed. Records that are still pending can be edited too; the change is
sent once the record is confirmed.

Example:
  ft edit 65f1c2 --amount 150 --category food`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var patch schema.Patch
		flags := cmd.Flags()

		if flags.Changed("description") {
			v, _ := flags.GetString("description")
			patch.Description = &v
		}
		if flags.Changed("amount") {
			v, _ := flags.GetString("amount")
			amount, err := parseAmount(v)
			exitOnErr(err)
			patch.Amount = &amount
		}
		if flags.Changed("type") {
			v, _ := flags.GetString("type")
			typ := schema.Type(strings.ToLower(v))
			patch.Type = &typ
		}
		if flags.Changed("category") {
			v, _ := flags.GetString("category")
			patch.Category = &v
		}
		if flags.Changed("date") {
			v, _ := flags.GetString("date")
			date := smartdate.Parse(v)
			patch.Date = &date
		}

		ctx := cmd.Context()
		s, err := openSession(ctx)
		exitOnErr(err)
		defer s.Close()

		id, err := resolveID(s, args[0])
		exitOnErr(err)

		before, err := s.engine.Update(ctx, id, patch)
		exitOnErr(err)

		after, _ := s.engine.Find(id)
		fmt.Printf("%s %s: %s → %s\n", ui.RenderPass("Updated"), after.Description,
			ui.SignedAmount(before, ""), ui.SignedAmount(after, ""))
		reportFlush(s.syncNow(ctx))
	},
}

func init() {
	editCmd.Flags().String("description", "", "new description")
	editCmd.Flags().StringP("amount", "a", "", "new amount")
	editCmd.Flags().StringP("type", "t", "", "income or expense")
	editCmd.Flags().StringP("category", "c", "", "new category")
	editCmd.Flags().StringP("date", "d", "", "new date, e.g. yesterday")
	rootCmd.AddCommand(editCmd)
}
