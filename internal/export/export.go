// Package export writes transactions to an external destination chosen by a
// "kind:target" string, e.g.
//
//	jsonfile:/tmp/txns.json
//	yaml:-                      (stdout)
//	toml:backup.toml
//	es8:http://localhost:9200
package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fintrack/fintrack/internal/schema"
)

// Sink receives a batch of transactions.
type Sink interface {
	Write(ctx context.Context, txns []schema.Transaction) error
}

// Record is the exported shape of a transaction. Amount is a decimal string
// so no format loses precision.
type Record struct {
	ID          string     `json:"id" yaml:"id" toml:"id"`
	User        string     `json:"user" yaml:"user" toml:"user"`
	Description string     `json:"description" yaml:"description" toml:"description"`
	Amount      string     `json:"amount" yaml:"amount" toml:"amount"`
	Type        string     `json:"type" yaml:"type" toml:"type"`
	Category    string     `json:"category" yaml:"category" toml:"category"`
	Date        time.Time  `json:"date" yaml:"date" toml:"date"`
	CreatedAt   *time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty" toml:"created_at,omitempty"`
	Pending     bool       `json:"pending,omitempty" yaml:"pending,omitempty" toml:"pending,omitempty"`
}

// NewRecord converts t. Unconfirmed records are flagged Pending.
func NewRecord(t schema.Transaction) Record {
	r := Record{
		ID:          t.ID,
		User:        t.User,
		Description: t.Description,
		Amount:      t.Amount.StringFixed(2),
		Type:        string(t.Type),
		Category:    t.EffectiveCategory(),
		Date:        t.Date.UTC(),
		Pending:     t.IsTemp(),
	}
	if !t.CreatedAt.IsZero() {
		c := t.CreatedAt.UTC()
		r.CreatedAt = &c
	}
	return r
}

// Records converts a batch.
func Records(txns []schema.Transaction) []Record {
	out := make([]Record, 0, len(txns))
	for _, t := range txns {
		out = append(out, NewRecord(t))
	}
	return out
}

// Parse builds the sink described by out.
func Parse(out string) (Sink, error) {
	bits := strings.SplitN(out, ":", 2)
	if len(bits) != 2 || bits[1] == "" {
		return nil, fmt.Errorf("invalid export target %q, expected [jsonfile:/path/file.json yaml:- toml:/path es8:http://elasticsearch:9200]", out)
	}

	kind, target := bits[0], bits[1]
	switch kind {
	case "jsonfile", "json":
		return &File{Path: target, Format: FormatJSON}, nil
	case "yaml", "yml":
		return &File{Path: target, Format: FormatYAML}, nil
	case "toml":
		return &File{Path: target, Format: FormatTOML}, nil
	case "es8":
		return NewElasticsearch(ElasticsearchConfig{Addresses: []string{target}}), nil
	default:
		return nil, fmt.Errorf("unknown export kind %q", kind)
	}
}

// openTarget returns the destination for path; "-" is stdout.
func openTarget(path string, stdout io.Writer) (io.WriteCloser, error) {
	if path == "-" {
		if stdout == nil {
			stdout = os.Stdout
		}
		return nopCloser{stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
