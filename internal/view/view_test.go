package view

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintrack/fintrack/internal/schema"
)

var now = time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)

func txn(id string, typ schema.Type, amount int64, category string, date time.Time) schema.Transaction {
	return schema.Transaction{
		ID:          id,
		Description: id,
		Amount:      decimal.NewFromInt(amount),
		Type:        typ,
		Category:    category,
		Date:        date,
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]schema.Transaction{
		txn("a", schema.TypeIncome, 100, "", now),
		txn("b", schema.TypeExpense, 30, "", now),
		txn("c", schema.TypeIncome, 20, "", now),
	})

	assert.True(t, s.Income.Equal(decimal.NewFromInt(120)), "income = %s", s.Income)
	assert.True(t, s.Expense.Equal(decimal.NewFromInt(30)), "expense = %s", s.Expense)
	assert.True(t, s.Balance.Equal(decimal.NewFromInt(90)), "balance = %s", s.Balance)
	assert.Equal(t, 3, s.Count)
}

func TestSummarize_DecimalExact(t *testing.T) {
	s := Summarize([]schema.Transaction{
		{Type: schema.TypeIncome, Amount: decimal.RequireFromString("0.1")},
		{Type: schema.TypeIncome, Amount: decimal.RequireFromString("0.2")},
	})
	assert.Equal(t, "0.3", s.Income.String())
}

func TestWeekly(t *testing.T) {
	buckets := Weekly([]schema.Transaction{
		txn("today", schema.TypeIncome, 50, "", now.Add(-time.Hour)),
		txn("yesterday", schema.TypeExpense, 20, "", now.AddDate(0, 0, -1)),
		txn("six days", schema.TypeExpense, 5, "", now.AddDate(0, 0, -6)),
		txn("too old", schema.TypeExpense, 999, "", now.AddDate(0, 0, -7)),
		txn("last year", schema.TypeExpense, 999, "", now.AddDate(-1, 0, 0)),
		{ID: "undated", Type: schema.TypeExpense, Amount: decimal.NewFromInt(1)},
	}, now)

	require.Len(t, buckets, 7)
	assert.Equal(t, "9 Mar", buckets[0].Label)
	assert.Equal(t, "15 Mar", buckets[6].Label)

	assert.Equal(t, "5", buckets[0].Expense.String())
	assert.Equal(t, "20", buckets[5].Expense.String())
	assert.Equal(t, "50", buckets[6].Income.String())
	assert.Equal(t, "1", buckets[6].Expense.String(), "undated records count as today")
}

func TestFilter_CategoryExactMatch(t *testing.T) {
	txns := []schema.Transaction{
		txn("a", schema.TypeExpense, 1, "food", now),
		txn("b", schema.TypeExpense, 1, "Food", now),
		txn("c", schema.TypeExpense, 1, "groceries", now),
		txn("food-court", schema.TypeExpense, 1, "", now),
	}

	got := Filter(txns, Query{Category: "food"})
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)

	// Search text does not widen a category filter.
	got = Filter(txns, Query{Category: "food", Search: "food"})
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

func TestFilter_BlankCategoryIsGeneral(t *testing.T) {
	got := Filter([]schema.Transaction{
		txn("a", schema.TypeExpense, 1, "", now),
		txn("b", schema.TypeExpense, 1, "bills", now),
	}, Query{Category: "general"})

	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

func TestFilter_Search(t *testing.T) {
	txns := []schema.Transaction{
		{ID: "srv-1", Description: "Uber to airport", Category: "transport", Date: now},
		{ID: "srv-2", Description: "Groceries", Category: "groceries", Date: now},
		{ID: "temp-99", Description: "Lunch", Category: "food", Date: now},
	}

	tests := []struct {
		search string
		want   []string
	}{
		{"  UBER ", []string{"srv-1"}},
		{"transport", []string{"srv-1"}},
		{"temp-9", []string{"temp-99"}},
		{"", []string{"srv-1", "srv-2", "temp-99"}},
		{"nothing", nil},
	}

	for _, tt := range tests {
		t.Run(tt.search, func(t *testing.T) {
			got := Filter(txns, Query{Category: CategoryAll, Search: tt.search})
			var ids []string
			for _, g := range got {
				ids = append(ids, g.ID)
			}
			assert.ElementsMatch(t, tt.want, ids)
		})
	}
}

func TestFilter_SortsMostRecentFirst(t *testing.T) {
	got := Filter([]schema.Transaction{
		{ID: "old", Date: now.AddDate(0, 0, -3)},
		{ID: "undated"},
		{ID: "created-only", CreatedAt: now.AddDate(0, 0, -1)},
		{ID: "new", Date: now},
	}, Query{})

	var ids []string
	for _, g := range got {
		ids = append(ids, g.ID)
	}
	assert.Equal(t, []string{"new", "created-only", "old", "undated"}, ids)
}

func TestDebouncer(t *testing.T) {
	var mu sync.Mutex
	var got []string
	delivered := make(chan struct{}, 4)

	d := NewDebouncer(20*time.Millisecond, func(q string) {
		mu.Lock()
		got = append(got, q)
		mu.Unlock()
		delivered <- struct{}{}
	})
	defer d.Stop()

	d.Set("c")
	d.Set("co")
	d.Set("  Coffee ")

	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("no delivery")
	}
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"coffee"}, got)
}

func TestDebouncer_Stop(t *testing.T) {
	called := make(chan string, 1)
	d := NewDebouncer(10*time.Millisecond, func(q string) { called <- q })

	d.Set("x")
	d.Stop()
	d.Set("y")

	select {
	case q := <-called:
		t.Errorf("delivered %q after Stop", q)
	case <-time.After(50 * time.Millisecond):
	}
}
