package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintrack/fintrack/internal/cache"
	"github.com/fintrack/fintrack/internal/config"
	"github.com/fintrack/fintrack/internal/connectivity"
	"github.com/fintrack/fintrack/internal/remote"
	"github.com/fintrack/fintrack/internal/schema"
	fsync "github.com/fintrack/fintrack/internal/sync"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", "0", false},
		{" 120 ", "120", false},
		{"1,250.50", "1250.5", false},
		{"12abc", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseAmount(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func offlineSession(t *testing.T) *session {
	t.Helper()
	rc, err := remote.NewHTTPClient(remote.HTTPConfig{BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)

	store := cache.NewMemory()
	monitor := connectivity.NewMonitor(false)
	engine, err := fsync.New(context.Background(), store, rc, monitor, &fsync.Config{User: "me@example.com", Logger: zerolog.Nop()})
	require.NoError(t, err)
	return &session{store: store, remote: rc, monitor: monitor, engine: engine}
}

func TestResolveID(t *testing.T) {
	s := offlineSession(t)
	ctx := context.Background()

	var ids []string
	for _, desc := range []string{"Coffee", "Tea"} {
		rec, err := s.engine.Create(ctx, schema.Transaction{
			Description: desc,
			Amount:      decimal.NewFromInt(10),
			Type:        schema.TypeExpense,
		})
		require.NoError(t, err)
		ids = append(ids, rec.ID)
	}

	got, err := resolveID(s, ids[0])
	require.NoError(t, err)
	assert.Equal(t, ids[0], got)

	got, err = resolveID(s, ids[1][:len(ids[1])-1])
	require.NoError(t, err)
	assert.Equal(t, ids[1], got)

	_, err = resolveID(s, "temp-")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "ambiguous"))

	_, err = resolveID(s, "srv-missing")
	assert.True(t, errors.Is(err, fsync.ErrNotFound))
}

func TestOpenSession_ClosedBeforeExit(t *testing.T) {
	prevCfg, prevClosers := cfg, exitClosers
	t.Cleanup(func() { cfg, exitClosers = prevCfg, prevClosers })

	cfg = config.DefaultConfig()
	cfg.Cache.Backend = "memory"
	cfg.User = "me@example.com"
	exitClosers = nil

	s, err := openSession(context.Background())
	require.NoError(t, err)
	require.Len(t, exitClosers, 1)

	// What exitOnErr runs before os.Exit.
	for i := len(exitClosers) - 1; i >= 0; i-- {
		exitClosers[i]()
	}
	_, _, err = s.store.Get(context.Background(), cache.KeyTransactions)
	assert.ErrorIs(t, err, cache.ErrClosed)

	// The deferred Close on the normal path is then a no-op.
	s.Close()
}
