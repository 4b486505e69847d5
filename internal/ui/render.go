package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"

	"github.com/fintrack/fintrack/internal/schema"
	"github.com/fintrack/fintrack/internal/view"
)

// barWidth is the widest bar drawn by WeeklyChart.
const barWidth = 30

// Money formats an amount with two decimals and an optional currency symbol.
func Money(amount decimal.Decimal, currency string) string {
	return currency + amount.StringFixed(2)
}

// SignedAmount renders an amount coloured by direction.
func SignedAmount(t schema.Transaction, currency string) string {
	if t.Type == schema.TypeIncome {
		return income.Render("+" + Money(t.Amount, currency))
	}
	return expense.Render("-" + Money(t.Amount, currency))
}

// TransactionTable renders txns in the given order.
func TransactionTable(txns []schema.Transaction, currency string) string {
	if len(txns) == 0 {
		return RenderMuted("No transactions.")
	}

	rows := make([][]string, 0, len(txns))
	for _, t := range txns {
		id := t.ID
		if t.IsTemp() {
			id = RenderWarn("pending")
		}
		date := ""
		if !t.Date.IsZero() {
			date = t.Date.Local().Format("02 Jan 2006")
		}
		rows = append(rows, []string{date, t.Description, t.EffectiveCategory(), SignedAmount(t, currency), id})
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(muted).
		Headers("DATE", "DESCRIPTION", "CATEGORY", "AMOUNT", "ID").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		}).
		String()
}

// SummaryBlock renders balance, income and expense totals.
func SummaryBlock(s view.Summary, currency string) string {
	balance := pass
	if s.Balance.IsNegative() {
		balance = fail
	}
	lines := []string{
		fmt.Sprintf("%s %s", RenderAccent("Balance:"), balance.Render(Money(s.Balance, currency))),
		fmt.Sprintf("%s  %s", RenderMuted("Income:"), income.Render(Money(s.Income, currency))),
		fmt.Sprintf("%s %s", RenderMuted("Expense:"), expense.Render(Money(s.Expense, currency))),
		RenderMuted(fmt.Sprintf("%d transactions", s.Count)),
	}
	return strings.Join(lines, "\n")
}

// WeeklyChart draws one income and one expense bar per day, scaled to the
// largest value in the window.
func WeeklyChart(buckets []view.DayBucket) string {
	peak := decimal.Zero
	for _, b := range buckets {
		peak = decimal.Max(peak, b.Income, b.Expense)
	}

	bar := func(v decimal.Decimal) int {
		if peak.IsZero() || v.IsZero() {
			return 0
		}
		n := v.Mul(decimal.NewFromInt(barWidth)).Div(peak).Ceil().IntPart()
		return int(n)
	}

	var sb strings.Builder
	for _, b := range buckets {
		fmt.Fprintf(&sb, "%-7s %s %s\n", b.Label,
			income.Render(strings.Repeat("█", bar(b.Income))+" "+b.Income.StringFixed(0)),
			expense.Render(strings.Repeat("█", bar(b.Expense))+" "+b.Expense.StringFixed(0)))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// SyncIndicator renders the one-line sync state.
func SyncIndicator(online, syncing bool, pending int, lastSync time.Time) string {
	var parts []string
	switch {
	case !online:
		parts = append(parts, RenderWarn("● offline"))
	case syncing:
		parts = append(parts, RenderAccent("● syncing"))
	default:
		parts = append(parts, RenderPass("● online"))
	}
	if pending > 0 {
		parts = append(parts, RenderWarn(fmt.Sprintf("%d pending", pending)))
	}
	if lastSync.IsZero() {
		parts = append(parts, RenderMuted("never synced"))
	} else {
		parts = append(parts, RenderMuted("last sync "+lastSync.Local().Format(time.DateTime)))
	}
	return strings.Join(parts, "  ")
}
