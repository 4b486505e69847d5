// Package schema provides the transaction record shared by the sync engine,
// the local cache and the backend store.
package schema

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrInvalid is wrapped by every validation failure so callers can tell
// rejected input apart from I/O problems.
var ErrInvalid = errors.New("invalid transaction")

// DefaultCategory is applied when a record carries no category.
const DefaultCategory = "general"

// TempIDPrefix marks identifiers generated locally before the server confirms a record.
const TempIDPrefix = "temp-"

// maxDescriptionLen bounds free-text descriptions coming from parsers and OCR.
const maxDescriptionLen = 500

// Type is the direction of a transaction.
type Type string

const (
	// TypeIncome adds to the balance.
	TypeIncome Type = "income"
	// TypeExpense subtracts from the balance.
	TypeExpense Type = "expense"
)

// Valid reports whether t is one of the known transaction types.
func (t Type) Valid() bool {
	return t == TypeIncome || t == TypeExpense
}

// Transaction is a single income or expense record.
//
// ID holds the server-assigned identifier once the record is confirmed and a
// temporary identifier (see NewTempID) before that. Amount is always
// non-negative; its meaning is governed by Type.
type Transaction struct {
	ID          string          `json:"id"`
	User        string          `json:"user"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Type        Type            `json:"type"`
	Date        time.Time       `json:"date"`
	Category    string          `json:"category,omitempty"`
	CreatedAt   time.Time       `json:"created_at,omitzero"`
}

// SetDefaults fills optional fields: expense type, "general" category and a
// date of now when none was given.
func (t *Transaction) SetDefaults(now time.Time) {
	if t.Type == "" {
		t.Type = TypeExpense
	}
	if strings.TrimSpace(t.Category) == "" {
		t.Category = DefaultCategory
	}
	if t.Date.IsZero() {
		t.Date = now
	}
	t.Description = strings.TrimSpace(t.Description)
}

// ValidateDraft checks the fields a caller must supply before a record is
// assigned an identifier.
func (t *Transaction) ValidateDraft() error {
	if strings.TrimSpace(t.Description) == "" {
		return fmt.Errorf("%w: description is required", ErrInvalid)
	}
	if len(t.Description) > maxDescriptionLen {
		return fmt.Errorf("%w: description must be %d characters or less (got %d)", ErrInvalid, maxDescriptionLen, len(t.Description))
	}
	if t.Amount.IsNegative() {
		return fmt.Errorf("%w: amount must not be negative (got %s)", ErrInvalid, t.Amount)
	}
	if !t.Type.Valid() {
		return fmt.Errorf("%w: type must be income or expense (got %q)", ErrInvalid, t.Type)
	}
	return nil
}

// Validate checks a complete record, including its identifier.
func (t *Transaction) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalid)
	}
	return t.ValidateDraft()
}

// IsTemp reports whether the record has not been confirmed by the server yet.
func (t *Transaction) IsTemp() bool {
	return IsTempID(t.ID)
}

// EffectiveCategory returns the stored category or DefaultCategory when empty.
func (t *Transaction) EffectiveCategory() string {
	if t.Category == "" {
		return DefaultCategory
	}
	return t.Category
}

// SortTime is the instant used to order records: Date, then CreatedAt, then
// the Unix epoch.
func (t *Transaction) SortTime() time.Time {
	if !t.Date.IsZero() {
		return t.Date
	}
	if !t.CreatedAt.IsZero() {
		return t.CreatedAt
	}
	return time.Unix(0, 0)
}

// NewTempID returns a placeholder identifier made of the creation time in
// milliseconds and a random suffix, e.g. "temp-1718000000000-9f2c11ab".
func NewTempID(now time.Time) string {
	suffix := uuid.New()
	return fmt.Sprintf("%s%d-%x", TempIDPrefix, now.UnixMilli(), suffix[:4])
}

// IsTempID reports whether id was produced by NewTempID.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// Clone returns a copy of the slice; Transaction holds no shared references.
func Clone(txns []Transaction) []Transaction {
	if txns == nil {
		return nil
	}
	out := make([]Transaction, len(txns))
	copy(out, txns)
	return out
}
