// Package parser turns free-form text (SMS copy, receipt OCR output) into
// draft transactions.
//
// Extractors return loosely filled Candidates; Normalize applies the defaults
// and the smart date interpreter to produce drafts the sync engine accepts.
package parser

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fintrack/fintrack/internal/schema"
	"github.com/fintrack/fintrack/internal/smartdate"
)

// ErrNoCandidates is returned when the text holds nothing that looks like a
// transaction.
var ErrNoCandidates = errors.New("no valid transactions found")

// Candidate is a transaction-like record extracted from text. Every field is
// optional.
type Candidate struct {
	Description string           `json:"description"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Type        schema.Type      `json:"type,omitempty"`
	Category    string           `json:"category,omitempty"`
	DateText    string           `json:"date,omitempty"`
}

// Extractor finds candidates in text.
type Extractor interface {
	Extract(ctx context.Context, text string) ([]Candidate, error)
}

// Normalize converts candidates into drafts: the date text goes through the
// smart date interpreter relative to now, a missing category becomes
// "general", a missing amount 0 and a missing type expense.
func Normalize(cands []Candidate, now time.Time) []schema.Transaction {
	out := make([]schema.Transaction, 0, len(cands))
	for _, c := range cands {
		t := schema.Transaction{
			Description: strings.TrimSpace(c.Description),
			Type:        c.Type,
			Category:    strings.TrimSpace(c.Category),
		}
		if c.Amount != nil {
			t.Amount = c.Amount.Abs()
		}
		if strings.TrimSpace(c.DateText) != "" {
			t.Date = smartdate.ParseAt(c.DateText, now)
		}
		if !t.Type.Valid() {
			t.Type = schema.TypeExpense
		}
		t.SetDefaults(now)
		out = append(out, t)
	}
	return out
}
