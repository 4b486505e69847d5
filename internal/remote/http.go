package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fintrack/fintrack/internal/schema"
)

// HTTPConfig configures an HTTPClient.
type HTTPConfig struct {
	// BaseURL is the backend root, e.g. http://localhost:5000.
	BaseURL string

	// Session is sent verbatim as the Cookie header. The client does not
	// interpret it.
	Session string

	// Timeout bounds every request. Default: 10s.
	Timeout time.Duration

	// Client overrides the underlying HTTP client (tests).
	Client *http.Client
}

// HTTPClient implements Store against the backend REST API.
type HTTPClient struct {
	base    string
	session string
	client  *http.Client
}

// NewHTTPClient creates a REST client for the backend at cfg.BaseURL.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	return &HTTPClient{
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		session: cfg.Session,
		client:  client,
	}, nil
}

// Create implements Store. The temporary id of an optimistic record is never
// sent; the backend assigns the real one.
func (c *HTTPClient) Create(ctx context.Context, t schema.Transaction) (schema.Transaction, error) {
	t.ID = ""
	var out schema.Transaction
	if err := c.do(ctx, http.MethodPost, "/api/transactions", t, &out); err != nil {
		return schema.Transaction{}, err
	}
	return out, nil
}

// Update implements Store.
func (c *HTTPClient) Update(ctx context.Context, id string, patch schema.Patch) (schema.Transaction, error) {
	var out schema.Transaction
	if err := c.do(ctx, http.MethodPut, "/api/transactions/"+url.PathEscape(id), patch, &out); err != nil {
		return schema.Transaction{}, err
	}
	return out, nil
}

// Delete implements Store.
func (c *HTTPClient) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/transactions/"+url.PathEscape(id), nil, nil)
}

// List implements Store.
func (c *HTTPClient) List(ctx context.Context, user string) ([]schema.Transaction, error) {
	var out []schema.Transaction
	if err := c.do(ctx, http.MethodGet, "/api/transactions/"+url.PathEscape(user), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Health checks that the backend is reachable.
func (c *HTTPClient) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.session != "" {
		req.Header.Set("Cookie", c.session)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeStatusError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w (%w)", method, path, err, ErrBadResponse)
	}
	return nil
}

func decodeStatusError(resp *http.Response) error {
	se := &StatusError{Code: resp.StatusCode}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &payload) == nil {
		se.Message = payload.Error
		if se.Message == "" {
			se.Message = payload.Message
		}
	} else {
		se.Message = strings.TrimSpace(string(data))
	}
	return se
}
