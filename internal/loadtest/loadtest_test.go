package loadtest

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fintrack/fintrack/internal/schema"
	"github.com/fintrack/fintrack/internal/store"
)

func TestRun_Store(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "load.db"))
	if err != nil {
		t.Fatalf("store.Open() failed: %v", err)
	}
	defer db.Close()

	cfg := Config{Clients: 8, OpsPerClient: 10, ListEvery: 5, Seed: 1}
	res, err := Run(context.Background(), db, cfg)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	if res.Errors > 0 {
		t.Errorf("Got %d errors during run", res.Errors)
	}
	if res.Writes.Count != 80 {
		t.Errorf("Expected 80 writes, got %d", res.Writes.Count)
	}
	if res.Lists.Count != 16 {
		t.Errorf("Expected 16 lists, got %d", res.Lists.Count)
	}

	got, err := db.List(context.Background(), "loadtest-003")
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(got) != 10 {
		t.Errorf("Expected 10 records for one client, got %d", len(got))
	}

	var buf bytes.Buffer
	res.Print(&buf)
	if !strings.Contains(buf.String(), "Writes (80)") {
		t.Errorf("Report missing write section:\n%s", buf.String())
	}
}

type flakyBackend struct {
	calls atomic.Int64
}

func (f *flakyBackend) Create(_ context.Context, d schema.Transaction) (schema.Transaction, error) {
	if f.calls.Add(1)%2 == 0 {
		return schema.Transaction{}, errors.New("boom")
	}
	d.ID = "srv"
	return d, nil
}

func (f *flakyBackend) List(context.Context, string) ([]schema.Transaction, error) {
	return nil, nil
}

func TestRun_CountsFailures(t *testing.T) {
	res, err := Run(context.Background(), &flakyBackend{}, Config{Clients: 1, OpsPerClient: 10})
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if res.Errors != 5 {
		t.Errorf("Expected 5 errors, got %d", res.Errors)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	if _, err := Run(context.Background(), &flakyBackend{}, Config{}); err == nil {
		t.Error("Expected error for empty config")
	}
}

func TestComputeLatencyStats(t *testing.T) {
	var ds []time.Duration
	for i := 100; i >= 1; i-- {
		ds = append(ds, time.Duration(i)*time.Millisecond)
	}

	s := computeLatencyStats(ds)
	if s.Min != time.Millisecond || s.Max != 100*time.Millisecond {
		t.Errorf("Min/Max = %v/%v", s.Min, s.Max)
	}
	if s.P50 != 51*time.Millisecond {
		t.Errorf("P50 = %v, want 51ms", s.P50)
	}
	if s.P99 != 100*time.Millisecond {
		t.Errorf("P99 = %v, want 100ms", s.P99)
	}
	if s.Count != 100 {
		t.Errorf("Count = %d", s.Count)
	}
	if ds[0] != 100*time.Millisecond {
		t.Error("input slice was reordered")
	}
}
