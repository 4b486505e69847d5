package parser

import (
	"context"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fintrack/fintrack/internal/schema"
)

var (
	typePrefix  = regexp.MustCompile(`(?i)^(income|expense)\b\s*`)
	categoryTag = regexp.MustCompile(`#([\p{L}]+)`)
)

// lineRe matches a description, an amount, then optional trailing date text.
var lineRe = regexp.MustCompile(`(?i)^(\p{L}[\p{L}\s'&.-]*?)(?:\s+(?:rs\.?|inr))?\s*[₹$£€]?\s*(\d+(?:\.\d{1,2})?)(?:\s+(.*))?$`)

// Heuristic is the line-based extractor. Each non-empty line is one
// candidate:
//
//	[income|expense] <description> <amount> [date text] [#category]
//
// Lines without a description followed by an amount are skipped.
type Heuristic struct{}

// Extract implements Extractor.
func (Heuristic) Extract(_ context.Context, text string) ([]Candidate, error) {
	var out []Candidate
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if c, ok := parseLine(line); ok {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoCandidates
	}
	return out, nil
}

func parseLine(line string) (Candidate, bool) {
	c := Candidate{Type: schema.TypeExpense}

	if m := typePrefix.FindStringSubmatch(line); m != nil {
		c.Type = schema.Type(strings.ToLower(m[1]))
		line = line[len(m[0]):]
	}

	if m := categoryTag.FindStringSubmatch(line); m != nil {
		c.Category = strings.ToLower(m[1])
		line = strings.TrimSpace(categoryTag.ReplaceAllString(line, ""))
	}

	m := lineRe.FindStringSubmatch(line)
	if m == nil {
		return Candidate{}, false
	}

	amount, err := decimal.NewFromString(m[2])
	if err != nil {
		return Candidate{}, false
	}

	c.Description = strings.TrimSpace(m[1])
	c.Amount = &amount
	c.DateText = strings.TrimSpace(m[3])
	return c, true
}
