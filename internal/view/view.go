// Package view derives totals, a weekly histogram and filtered listings from a
// snapshot of transactions. Everything here is a pure function of its inputs
// except Debouncer.
package view

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fintrack/fintrack/internal/schema"
)

// CategoryAll disables category filtering.
const CategoryAll = "all"

// Categories lists the canonical category filters, "all" first.
var Categories = []string{
	CategoryAll,
	"food",
	"groceries",
	"salary",
	"transport",
	"entertainment",
	"bills",
	"shopping",
	schema.DefaultCategory,
}

// Summary holds the running totals.
type Summary struct {
	Income  decimal.Decimal
	Expense decimal.Decimal
	Balance decimal.Decimal
	Count   int
}

// Summarize totals income and expense. Balance is income minus expense.
func Summarize(txns []schema.Transaction) Summary {
	var s Summary
	for _, t := range txns {
		if t.Type == schema.TypeIncome {
			s.Income = s.Income.Add(t.Amount)
		} else {
			s.Expense = s.Expense.Add(t.Amount)
		}
	}
	s.Balance = s.Income.Sub(s.Expense)
	s.Count = len(txns)
	return s
}

// DayBucket is one calendar day of the weekly histogram.
type DayBucket struct {
	Day     time.Time
	Label   string
	Income  decimal.Decimal
	Expense decimal.Decimal
}

// Weekly returns seven buckets for the calendar days ending today in now's
// location, oldest first. Records without any date count as today.
func Weekly(txns []schema.Transaction, now time.Time) []DayBucket {
	loc := now.Location()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	buckets := make([]DayBucket, 7)
	for i := range buckets {
		day := today.AddDate(0, 0, i-6)
		buckets[i] = DayBucket{Day: day, Label: day.Format("2 Jan")}
	}

	for _, t := range txns {
		when := t.Date
		if when.IsZero() {
			when = t.CreatedAt
		}
		if when.IsZero() {
			when = now
		}
		when = when.In(loc)
		day := time.Date(when.Year(), when.Month(), when.Day(), 0, 0, 0, 0, loc)

		for i := range buckets {
			if !buckets[i].Day.Equal(day) {
				continue
			}
			if t.Type == schema.TypeIncome {
				buckets[i].Income = buckets[i].Income.Add(t.Amount)
			} else {
				buckets[i].Expense = buckets[i].Expense.Add(t.Amount)
			}
			break
		}
	}
	return buckets
}

// Query selects records for a listing.
type Query struct {
	// Category matches the stored category exactly (blank counts as
	// "general"). Empty or "all" matches everything.
	Category string

	// Search is a case-insensitive substring matched against description,
	// category and id.
	Search string
}

// Filter returns the records matching q, most recent first. Records without a
// date sort by creation time, then as the Unix epoch.
func Filter(txns []schema.Transaction, q Query) []schema.Transaction {
	search := NormalizeSearch(q.Search)

	out := make([]schema.Transaction, 0, len(txns))
	for _, t := range txns {
		if q.Category != "" && q.Category != CategoryAll && t.EffectiveCategory() != q.Category {
			continue
		}
		if search != "" && !matches(t, search) {
			continue
		}
		out = append(out, t)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SortTime().After(out[j].SortTime())
	})
	return out
}

func matches(t schema.Transaction, search string) bool {
	return strings.Contains(strings.ToLower(t.Description), search) ||
		strings.Contains(strings.ToLower(t.Category), search) ||
		strings.Contains(strings.ToLower(t.ID), search)
}

// NormalizeSearch trims and lowercases raw search input.
func NormalizeSearch(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
