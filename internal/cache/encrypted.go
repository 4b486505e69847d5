package cache

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/gtank/cryptopasta"
)

// Encrypted seals every value with AES-256-GCM before handing it to the
// wrapped store.
type Encrypted struct {
	inner Store
	key   *[32]byte
}

// NewEncrypted wraps inner so values are encrypted with key.
func NewEncrypted(inner Store, key *[32]byte) *Encrypted {
	return &Encrypted{inner: inner, key: key}
}

// NewKey returns a fresh random key, hex encoded for use as cache.key.
func NewKey() string {
	return hex.EncodeToString(cryptopasta.NewEncryptionKey()[:])
}

// ParseKey decodes a 64-character hex key.
func ParseKey(s string) (*[32]byte, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid cache key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("invalid cache key: want 32 bytes, got %d", len(raw))
	}
	var key [32]byte
	copy(key[:], raw)
	return &key, nil
}

// Get implements Store.
func (e *Encrypted) Get(ctx context.Context, key string) ([]byte, bool, error) {
	sealed, ok, err := e.inner.Get(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	plain, err := cryptopasta.Decrypt(sealed, e.key)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decrypt %s: %w", key, err)
	}
	return plain, true, nil
}

// Put implements Store.
func (e *Encrypted) Put(ctx context.Context, key string, value []byte) error {
	sealed, err := cryptopasta.Encrypt(value, e.key)
	if err != nil {
		return fmt.Errorf("failed to encrypt %s: %w", key, err)
	}
	return e.inner.Put(ctx, key, sealed)
}

// Close implements Store.
func (e *Encrypted) Close() error {
	return e.inner.Close()
}
