package queue

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/fintrack/fintrack/internal/cache"
	"github.com/fintrack/fintrack/internal/schema"
)

// failingStore accepts reads and rejects every write.
type failingStore struct {
	*cache.Memory
}

func (failingStore) Put(context.Context, string, []byte) error {
	return errors.New("disk full")
}

func newQueue(t *testing.T, store cache.Store) *Queue {
	t.Helper()
	q, err := Open(context.Background(), store)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return q
}

func TestQueue_FIFO(t *testing.T) {
	ctx := context.Background()
	q := newQueue(t, cache.NewMemory())

	for _, target := range []string{"a", "b", "c"} {
		if _, err := q.Append(ctx, Operation{Kind: KindDelete, Target: target}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	if q.Len() != 3 {
		t.Fatalf("Len = %d, want 3", q.Len())
	}

	front, ok := q.PeekFront()
	if !ok || front.Target != "a" {
		t.Fatalf("PeekFront = %+v, %v", front, ok)
	}
	if q.Len() != 3 {
		t.Errorf("PeekFront removed an operation")
	}

	var order []string
	var lastSeq uint64
	for {
		op, ok, err := q.PopFront(ctx)
		if err != nil {
			t.Fatalf("PopFront: %v", err)
		}
		if !ok {
			break
		}
		if op.Seq <= lastSeq {
			t.Errorf("Seq %d not increasing after %d", op.Seq, lastSeq)
		}
		lastSeq = op.Seq
		order = append(order, op.Target)
	}

	if got := len(order); got != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Errorf("pop order = %v, want [a b c]", order)
	}
}

func TestQueue_NoDedup(t *testing.T) {
	ctx := context.Background()
	q := newQueue(t, cache.NewMemory())

	op := Operation{Kind: KindDelete, Target: "x"}
	_, _ = q.Append(ctx, op)
	_, _ = q.Append(ctx, op)

	if q.Len() != 2 {
		t.Errorf("Len = %d, want 2 (no dedup)", q.Len())
	}
}

func TestQueue_ResumeAfterRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	store, err := cache.OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	q := newQueue(t, store)

	draft := schema.Transaction{ID: "temp-1", Description: "Coffee", Type: schema.TypeExpense}
	_, _ = q.Append(ctx, Operation{Kind: KindCreate, Target: "temp-1", Payload: &draft})
	_, _ = q.Append(ctx, Operation{Kind: KindDelete, Target: "srv-9"})
	_, _, _ = q.PopFront(ctx)
	_, _ = q.Append(ctx, Operation{Kind: KindDelete, Target: "srv-10"})

	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	store, err = cache.OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()

	q = newQueue(t, store)
	ops := q.Snapshot()
	if len(ops) != 2 {
		t.Fatalf("resumed %d ops, want 2", len(ops))
	}
	if ops[0].Target != "srv-9" || ops[1].Target != "srv-10" {
		t.Errorf("resumed order = %s, %s", ops[0].Target, ops[1].Target)
	}

	// New operations continue the sequence instead of reusing numbers.
	op, _ := q.Append(ctx, Operation{Kind: KindDelete, Target: "srv-11"})
	if op.Seq <= ops[1].Seq {
		t.Errorf("Seq after restart = %d, want > %d", op.Seq, ops[1].Seq)
	}
}

func TestQueue_Retarget(t *testing.T) {
	ctx := context.Background()
	q := newQueue(t, cache.NewMemory())

	patch := schema.Patch{Description: ptr("Lunch")}
	_, _ = q.Append(ctx, Operation{Kind: KindUpdate, Target: "temp-1", Patch: &patch})
	_, _ = q.Append(ctx, Operation{Kind: KindDelete, Target: "other"})
	_, _ = q.Append(ctx, Operation{Kind: KindDelete, Target: "temp-1"})

	n, err := q.Retarget(ctx, "temp-1", "srv-1")
	if err != nil {
		t.Fatalf("Retarget: %v", err)
	}
	if n != 2 {
		t.Errorf("Retarget rewrote %d ops, want 2", n)
	}

	ops := q.Snapshot()
	if ops[0].Target != "srv-1" || ops[1].Target != "other" || ops[2].Target != "srv-1" {
		t.Errorf("targets = %s %s %s", ops[0].Target, ops[1].Target, ops[2].Target)
	}
}

func TestQueue_PersistFailureKeepsMemory(t *testing.T) {
	ctx := context.Background()
	q := newQueue(t, failingStore{cache.NewMemory()})

	_, err := q.Append(ctx, Operation{Kind: KindDelete, Target: "a"})
	if !errors.Is(err, ErrPersist) {
		t.Fatalf("Append error = %v, want ErrPersist", err)
	}
	if q.Len() != 1 {
		t.Errorf("Len = %d, want operation kept in memory", q.Len())
	}
}

func TestQueue_SnapshotIsCopy(t *testing.T) {
	ctx := context.Background()
	q := newQueue(t, cache.NewMemory())
	_, _ = q.Append(ctx, Operation{Kind: KindDelete, Target: "a"})

	snap := q.Snapshot()
	snap[0].Target = "mutated"

	if front, _ := q.PeekFront(); front.Target != "a" {
		t.Errorf("Snapshot aliases queue storage")
	}
}

func ptr[T any](v T) *T { return &v }
