package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultModel is used when LLMConfig.Model is empty.
const DefaultModel = "claude-sonnet-4-5"

const extractPrompt = "You extract personal finance transactions from text such as bank SMS messages or receipt OCR output.\n\n" +
	"Output STRICT JSON only: an array of objects with these fields:\n" +
	"- \"description\": string, short merchant or purpose\n" +
	"- \"amount\": number, always positive, or null if unknown\n" +
	"- \"type\": \"income\" or \"expense\"\n" +
	"- \"category\": one of food, groceries, salary, transport, entertainment, bills, shopping, general\n" +
	"- \"date\": the date exactly as written in the text (e.g. \"15-03-2024\", \"yesterday\"), or \"\" if absent\n\n" +
	"Return [] when there are no transactions.\n" +
	"Do NOT wrap the response in code fences.\n"

// LLMConfig configures the model-backed extractor.
type LLMConfig struct {
	APIKey    string
	Model     string
	MaxTokens int64

	// Options are appended to the client options (base URL, retries).
	Options []option.RequestOption
}

// LLM extracts candidates with an Anthropic model. It handles free-form
// text the line heuristic cannot, such as multi-line bank messages.
type LLM struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewLLM creates the extractor. An API key is required.
func NewLLM(cfg LLMConfig) (*LLM, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}

	opts := append([]option.RequestOption{option.WithAPIKey(cfg.APIKey)}, cfg.Options...)
	return &LLM{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

// Extract implements Extractor.
func (l *LLM) Extract(ctx context.Context, text string) ([]Candidate, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoCandidates
	}

	msg, err := l.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(l.model),
		MaxTokens: l.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: extractPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call model: %w", err)
	}

	var raw strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			raw.WriteString(block.Text)
		}
	}
	if raw.Len() == 0 {
		return nil, fmt.Errorf("empty response from model")
	}

	var cands []Candidate
	if err := json.Unmarshal([]byte(cleanModelJSON(raw.String())), &cands); err != nil {
		return nil, fmt.Errorf("failed to decode model output: %w", err)
	}

	out := cands[:0]
	for _, c := range cands {
		if strings.TrimSpace(c.Description) != "" {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoCandidates
	}
	return out, nil
}

// cleanModelJSON strips code fences and any prose around the JSON array.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end > start {
			s = s[start : end+1]
		}
	}
	return s
}

// Fallback tries each extractor in turn and returns the first non-empty
// result.
type Fallback []Extractor

// Extract implements Extractor.
func (f Fallback) Extract(ctx context.Context, text string) ([]Candidate, error) {
	var lastErr error = ErrNoCandidates
	for _, ex := range f {
		cands, err := ex.Extract(ctx, text)
		if err == nil && len(cands) > 0 {
			return cands, nil
		}
		if err != nil {
			lastErr = err
		}
	}
	return nil, lastErr
}
