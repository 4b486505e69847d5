// Package remote talks to the backend that owns the authoritative copy of a
// user's transactions.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/fintrack/fintrack/internal/schema"
)

// Store is the remote transaction store.
type Store interface {
	// Create stores a new transaction and returns it with the server id.
	Create(ctx context.Context, t schema.Transaction) (schema.Transaction, error)

	// Update applies patch to the transaction with id.
	Update(ctx context.Context, id string, patch schema.Patch) (schema.Transaction, error)

	// Delete removes the transaction with id.
	Delete(ctx context.Context, id string) error

	// List returns every transaction owned by user.
	List(ctx context.Context, user string) ([]schema.Transaction, error)
}

// ErrBadResponse marks a 2xx response whose body could not be decoded. The
// backend has already acted on the request, so it must not be retried.
var ErrBadResponse = errors.New("undecodable response")

// StatusError is a non-2xx response from the backend.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote returned %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("remote returned %d: %s", e.Code, e.Message)
}

// IsClientError reports whether the backend rejected the request itself.
// Retrying such a request can never succeed, so it should be dropped.
// 408 and 429 are excluded: they describe the server's state, not the data.
// A 2xx reply with an undecodable body counts as a client error.
func IsClientError(err error) bool {
	if errors.Is(err, ErrBadResponse) {
		return true
	}
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	if se.Code == http.StatusRequestTimeout || se.Code == http.StatusTooManyRequests {
		return false
	}
	return se.Code >= 400 && se.Code < 500
}

// IsTransient reports whether the request may succeed later: transport
// failures, timeouts, 5xx, 408 and 429.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	return !IsClientError(err)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}
