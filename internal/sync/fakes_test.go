package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fintrack/fintrack/internal/cache"
	"github.com/fintrack/fintrack/internal/connectivity"
	"github.com/fintrack/fintrack/internal/schema"
)

// call records one request seen by fakeRemote.
type call struct {
	Method string
	ID     string
	Desc   string
}

// fakeRemote is an in-memory remote.Store. failures maps a description (for
// creates) or an id (for updates and deletes) to the error returned for it.
type fakeRemote struct {
	mu       gosync.Mutex
	calls    []call
	failures map[string]error
	records  map[string]schema.Transaction
	nextID   int

	// createIDs, when set, assigns ids by description instead of srv-N.
	createIDs map[string]string

	// block, when set, is waited on at the start of every Create.
	block chan struct{}

	// listHold, when set, makes List take its snapshot, signal listTaken
	// and wait on listHold before returning.
	listHold  chan struct{}
	listTaken chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		failures:  make(map[string]error),
		records:   make(map[string]schema.Transaction),
		createIDs: make(map[string]string),
	}
}

func (f *fakeRemote) Create(ctx context.Context, t schema.Transaction) (schema.Transaction, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return schema.Transaction{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, call{Method: "create", ID: t.ID, Desc: t.Description})
	if err := f.failures[t.Description]; err != nil {
		return schema.Transaction{}, err
	}

	id, ok := f.createIDs[t.Description]
	if !ok {
		f.nextID++
		id = fmt.Sprintf("srv-%d", f.nextID)
	}
	t.ID = id
	f.records[id] = t
	return t, nil
}

func (f *fakeRemote) Update(_ context.Context, id string, patch schema.Patch) (schema.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, call{Method: "update", ID: id})
	if err := f.failures[id]; err != nil {
		return schema.Transaction{}, err
	}
	t := patch.Apply(f.records[id])
	f.records[id] = t
	return t, nil
}

func (f *fakeRemote) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, call{Method: "delete", ID: id})
	if err := f.failures[id]; err != nil {
		return err
	}
	delete(f.records, id)
	return nil
}

func (f *fakeRemote) List(_ context.Context, user string) ([]schema.Transaction, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{Method: "list", ID: user})
	if err := f.failures["list"]; err != nil {
		f.mu.Unlock()
		return nil, err
	}
	out := make([]schema.Transaction, 0, len(f.records))
	for _, t := range f.records {
		out = append(out, t)
	}
	hold, taken := f.listHold, f.listTaken
	f.mu.Unlock()

	if hold != nil {
		close(taken)
		<-hold
	}
	return out, nil
}

func (f *fakeRemote) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

// failingStore reads from memory and rejects every write.
type failingStore struct {
	*cache.Memory
}

func (failingStore) Put(context.Context, string, []byte) error {
	return errors.New("disk full")
}

// notices collects engine notices.
type notices struct {
	mu   gosync.Mutex
	list []Notice
}

func (n *notices) add(x Notice) {
	n.mu.Lock()
	n.list = append(n.list, x)
	n.mu.Unlock()
}

func (n *notices) Warnings() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()

	var out []Notice
	for _, x := range n.list {
		if x.Level == zerolog.WarnLevel {
			out = append(out, x)
		}
	}
	return out
}

var testNow = time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)

const testUser = "asha@example.com"

type harness struct {
	engine  *Engine
	remote  *fakeRemote
	monitor *connectivity.Monitor
	store   cache.Store
	notices *notices
}

func newHarness(t *testing.T, online bool) *harness {
	t.Helper()
	return newHarnessWithStore(t, cache.NewMemory(), online)
}

func newHarnessWithStore(t *testing.T, store cache.Store, online bool) *harness {
	t.Helper()

	h := &harness{
		remote:  newFakeRemote(),
		monitor: connectivity.NewMonitor(online),
		store:   store,
		notices: &notices{},
	}

	cfg := &Config{
		User:   testUser,
		Logger: zerolog.Nop(),
		Notify: h.notices.add,
		Now:    func() time.Time { return testNow },
	}

	e, err := New(context.Background(), store, h.remote, h.monitor, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.engine = e
	return h
}

func (h *harness) create(t *testing.T, desc string) schema.Transaction {
	t.Helper()
	txn, err := h.engine.Create(context.Background(), draft(desc, 10, schema.TypeExpense))
	if err != nil {
		t.Fatalf("Create(%q): %v", desc, err)
	}
	return txn
}

func ids(txns []schema.Transaction) []string {
	out := make([]string, len(txns))
	for i, t := range txns {
		out[i] = t.ID
	}
	return out
}

func countID(txns []schema.Transaction, id string) int {
	n := 0
	for _, t := range txns {
		if t.ID == id {
			n++
		}
	}
	return n
}
