package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/fintrack/fintrack/internal/schema"
	"github.com/fintrack/fintrack/internal/smartdate"
	"github.com/fintrack/fintrack/internal/ui"
	"github.com/fintrack/fintrack/internal/view"
)

var addCmd = &cobra.Command{
	Use:     "add [description]",
	GroupID: "txn",
	Short:   "Record a transaction",
	Long: `Record an income or expense. The record is saved locally at once and
synced to the backend when it is reachable.

Dates accept natural forms such as "today", "yesterday", "3 days ago",
"last monday" or "15-03-2024".

Examples:
  ft add Coffee --amount 120 --category food
  ft add Salary --amount 50000 --type income --date "1st march"
  ft add -i                      # interactive form`,
	Run: func(cmd *cobra.Command, args []string) {
		interactive, _ := cmd.Flags().GetBool("interactive")
		amountStr, _ := cmd.Flags().GetString("amount")
		typ, _ := cmd.Flags().GetString("type")
		category, _ := cmd.Flags().GetString("category")
		dateText, _ := cmd.Flags().GetString("date")
		description := strings.Join(args, " ")

		if interactive {
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				exitOnErr(fmt.Errorf("--interactive requires a terminal"))
			}
			exitOnErr(runAddForm(&description, &amountStr, &typ, &category, &dateText))
		}

		amount, err := parseAmount(amountStr)
		exitOnErr(err)

		draft := schema.Transaction{
			Description: description,
			Amount:      amount,
			Type:        schema.Type(strings.ToLower(typ)),
			Category:    category,
		}
		if dateText != "" {
			draft.Date = smartdate.Parse(dateText)
		}

		ctx := cmd.Context()
		s, err := openSession(ctx)
		exitOnErr(err)
		defer s.Close()

		t, err := s.engine.Create(ctx, draft)
		exitOnErr(err)

		fmt.Printf("%s %s %s on %s\n", ui.RenderPass("Added"), t.Description,
			ui.SignedAmount(t, s.engine.Settings().Currency), t.Date.Local().Format("02 Jan 2006"))
		reportFlush(s.syncNow(ctx))
	},
}

func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	return d, nil
}

func runAddForm(description, amount, typ, category, date *string) error {
	if *typ == "" {
		*typ = string(schema.TypeExpense)
	}
	if *category == "" {
		*category = schema.DefaultCategory
	}

	categories := make([]huh.Option[string], 0, len(view.Categories))
	for _, c := range view.Categories[1:] {
		categories = append(categories, huh.NewOption(c, c))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Description").
				Value(description).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("description is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Amount").
				Value(amount).
				Validate(func(s string) error {
					_, err := parseAmount(s)
					return err
				}),
			huh.NewSelect[string]().
				Title("Type").
				Options(huh.NewOption("Expense", string(schema.TypeExpense)), huh.NewOption("Income", string(schema.TypeIncome))).
				Value(typ),
			huh.NewSelect[string]().
				Title("Category").
				Options(categories...).
				Value(category),
			huh.NewInput().
				Title("Date").
				Placeholder("today").
				Value(date),
		),
	)
	return form.Run()
}

func init() {
	addCmd.Flags().BoolP("interactive", "i", false, "fill in the transaction with a form")
	addCmd.Flags().StringP("amount", "a", "", "amount (always positive)")
	addCmd.Flags().StringP("type", "t", "expense", "income or expense")
	addCmd.Flags().StringP("category", "c", "", "category (default general)")
	addCmd.Flags().StringP("date", "d", "", "date, e.g. yesterday or 15-03-2024 (default now)")
	rootCmd.AddCommand(addCmd)
}
