// Package migrate imports transactions from JSON Lines files, one record per
// line, such as an export of the original Mongo collection.
package migrate

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fintrack/fintrack/internal/schema"
)

// Recorder accepts imported drafts. *sync.Engine satisfies it.
type Recorder interface {
	Create(ctx context.Context, draft schema.Transaction) (schema.Transaction, error)
}

// Options controls an import.
type Options struct {
	// User fills records that carry no user.
	User string

	// DryRun validates every line without recording anything.
	DryRun bool
}

// Result contains statistics about the import.
type Result struct {
	Read     int
	Imported int
	Errors   []string
}

// ReadJSONL parses every non-blank line of r into a draft. Identifiers are
// discarded: imported records are new to this device.
func ReadJSONL(r io.Reader) ([]schema.Transaction, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var out []schema.Transaction
	lineNum := 0
	for sc.Scan() {
		lineNum++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}

		var t schema.Transaction
		if err := json.Unmarshal([]byte(text), &t); err != nil {
			return nil, fmt.Errorf("invalid JSON at line %d: %w", lineNum, err)
		}
		t.ID = ""
		t.CreatedAt = time.Time{}
		out = append(out, t)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read JSONL: %w", err)
	}
	return out, nil
}

// FromFile imports the JSONL file at path.
func FromFile(ctx context.Context, path string, rec Recorder, opts Options) (*Result, error) {
	// #nosec G304 - controlled path from CLI
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open JSONL file: %w", err)
	}
	defer f.Close()
	return Import(ctx, f, rec, opts)
}

// Import records every draft in r. A rejected draft is reported in
// Result.Errors and does not stop the import.
func Import(ctx context.Context, r io.Reader, rec Recorder, opts Options) (*Result, error) {
	drafts, err := ReadJSONL(r)
	if err != nil {
		return nil, err
	}

	res := &Result{Read: len(drafts)}
	for i, d := range drafts {
		if d.User == "" {
			d.User = opts.User
		}

		if opts.DryRun {
			probe := d
			probe.SetDefaults(time.Now())
			if err := probe.ValidateDraft(); err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("record %d: %v", i+1, err))
				continue
			}
			res.Imported++
			continue
		}

		if _, err := rec.Create(ctx, d); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("record %d (%q): %v", i+1, d.Description, err))
			continue
		}
		res.Imported++
	}
	return res, nil
}
