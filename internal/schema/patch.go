package schema

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Patch is a partial update. Nil fields are left untouched by Apply.
type Patch struct {
	Description *string          `json:"description,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Type        *Type            `json:"type,omitempty"`
	Date        *time.Time       `json:"date,omitempty"`
	Category    *string          `json:"category,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p *Patch) IsEmpty() bool {
	return p == nil || (p.Description == nil && p.Amount == nil && p.Type == nil && p.Date == nil && p.Category == nil)
}

// Validate rejects patches that would produce an invalid record.
func (p *Patch) Validate() error {
	if p.IsEmpty() {
		return fmt.Errorf("%w: patch changes nothing", ErrInvalid)
	}
	if p.Description != nil && strings.TrimSpace(*p.Description) == "" {
		return fmt.Errorf("%w: description cannot be empty", ErrInvalid)
	}
	if p.Description != nil && len(*p.Description) > maxDescriptionLen {
		return fmt.Errorf("%w: description must be %d characters or less (got %d)", ErrInvalid, maxDescriptionLen, len(*p.Description))
	}
	if p.Amount != nil && p.Amount.IsNegative() {
		return fmt.Errorf("%w: amount must not be negative (got %s)", ErrInvalid, *p.Amount)
	}
	if p.Type != nil && !p.Type.Valid() {
		return fmt.Errorf("%w: type must be income or expense (got %q)", ErrInvalid, *p.Type)
	}
	if p.Date != nil && p.Date.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalid)
	}
	return nil
}

// Apply returns t with every set field of p copied over it.
func (p *Patch) Apply(t Transaction) Transaction {
	if p == nil {
		return t
	}
	if p.Description != nil {
		t.Description = strings.TrimSpace(*p.Description)
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.Category != nil {
		t.Category = *p.Category
		if strings.TrimSpace(t.Category) == "" {
			t.Category = DefaultCategory
		}
	}
	return t
}
