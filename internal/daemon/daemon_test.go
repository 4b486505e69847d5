package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fintrack/fintrack/internal/cache"
	"github.com/fintrack/fintrack/internal/connectivity"
	"github.com/fintrack/fintrack/internal/inbox"
	"github.com/fintrack/fintrack/internal/schema"
	fsync "github.com/fintrack/fintrack/internal/sync"
)

// memRemote is a minimal in-memory remote.Store.
type memRemote struct {
	mu      sync.Mutex
	records map[string]schema.Transaction
	lists   int
}

func newMemRemote() *memRemote {
	return &memRemote{records: make(map[string]schema.Transaction)}
}

func (m *memRemote) Create(_ context.Context, t schema.Transaction) (schema.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = "srv-" + t.Description
	m.records[t.ID] = t
	return t, nil
}

func (m *memRemote) Update(_ context.Context, id string, p schema.Patch) (schema.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := p.Apply(m.records[id])
	m.records[id] = t
	return t, nil
}

func (m *memRemote) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

func (m *memRemote) List(_ context.Context, user string) ([]schema.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	var out []schema.Transaction
	for _, t := range m.records {
		if t.User == user {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memRemote) has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[id]
	return ok
}

func newEngine(t *testing.T, rs *memRemote) *fsync.Engine {
	t.Helper()
	cfg := fsync.DefaultConfig()
	cfg.User = "alice"
	cfg.FlushInterval = 0
	e, err := fsync.New(context.Background(), cache.NewMemory(), rs, connectivity.NewMonitor(true), cfg)
	if err != nil {
		t.Fatalf("fsync.New() failed: %v", err)
	}
	return e
}

func TestNew_NilEngine(t *testing.T) {
	if _, err := New(nil, nil); err == nil {
		t.Error("New(nil) should fail")
	}
}

func TestDaemon_InboxToRemote(t *testing.T) {
	rs := newMemRemote()
	rs.records["srv-old"] = schema.Transaction{ID: "srv-old", User: "alice", Description: "old", Type: schema.TypeExpense}
	engine := newEngine(t, rs)

	inboxCfg := inbox.DefaultConfig(filepath.Join(t.TempDir(), "inbox"))
	inboxCfg.Debounce = 20 * time.Millisecond
	watcher, err := inbox.New(inboxCfg, engine)
	if err != nil {
		t.Fatalf("inbox.New() failed: %v", err)
	}

	d, err := New(engine, &Config{})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	d.WithInbox(watcher)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()

	waitUntil(t, func() bool {
		_, ok := engine.Find("srv-old")
		return ok
	}, "start-up refresh")

	waitUntil(t, func() bool {
		_, err := os.Stat(inboxCfg.Dir)
		return err == nil
	}, "inbox directory")
	if err := os.WriteFile(filepath.Join(inboxCfg.Dir, "sms.txt"), []byte("Parking 40\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	waitUntil(t, func() bool { return rs.has("srv-Parking") }, "inbox record pushed")
	waitUntil(t, func() bool {
		_, ok := engine.Find("srv-Parking")
		return ok && len(engine.Pending()) == 0
	}, "temp id retired")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Start() did not return after cancel")
	}
	if d.IsRunning() {
		t.Error("daemon should not be running after shutdown")
	}
}

func TestDaemon_ComponentFailure(t *testing.T) {
	engine := newEngine(t, newMemRemote())

	// A regular file where the inbox directory should be.
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	watcher, err := inbox.New(inbox.DefaultConfig(filepath.Join(blocker, "inbox")), engine)
	if err != nil {
		t.Fatalf("inbox.New() failed: %v", err)
	}

	d, _ := New(engine, &Config{})
	d.WithInbox(watcher)

	errCh := make(chan error, 1)
	go func() { errCh <- d.Start(context.Background()) }()

	select {
	case err := <-errCh:
		if err == nil || errors.Is(err, context.Canceled) {
			t.Errorf("Start() = %v, want inbox failure", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Start() did not return on component failure")
	}
}

func TestDaemon_StartTwice(t *testing.T) {
	d, _ := New(newEngine(t, newMemRemote()), &Config{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()

	waitUntil(t, d.IsRunning, "running")
	if err := d.Start(ctx); err == nil {
		t.Error("second Start() should fail")
	}

	cancel()
	<-done
}

func waitUntil(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
