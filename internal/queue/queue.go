// Package queue holds the durable FIFO of mutations made locally but not yet
// confirmed by the remote store.
//
// Every mutating call writes the whole queue to the cache before returning, so
// a restart resumes from the last persisted snapshot. Operations are replayed
// strictly in order; only the flush loop removes them.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fintrack/fintrack/internal/cache"
	"github.com/fintrack/fintrack/internal/schema"
)

// ErrPersist marks a queue change that was applied in memory but could not be
// written to the cache.
var ErrPersist = errors.New("failed to persist queue")

// Kind is the operation type.
type Kind string

const (
	KindCreate Kind = "create"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// Operation is one pending mutation.
type Operation struct {
	// ID identifies the operation in logs.
	ID string `json:"id"`

	// Seq is the enqueue order. It only grows, including across restarts.
	Seq uint64 `json:"seq"`

	Kind Kind `json:"op"`

	// Target is the transaction id the operation applies to. For creates it
	// is the temporary id of the optimistic record.
	Target string `json:"target"`

	// Payload is the full record for creates.
	Payload *schema.Transaction `json:"payload,omitempty"`

	// Patch holds the changed fields for updates.
	Patch *schema.Patch `json:"patch,omitempty"`

	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Queue is a persisted FIFO of operations. Safe for concurrent use.
type Queue struct {
	mu      sync.Mutex
	ops     []Operation
	nextSeq uint64
	store   cache.Store
}

// New returns an empty queue persisting to store.
func New(store cache.Store) *Queue {
	return &Queue{store: store, nextSeq: 1}
}

// Open loads the queue persisted in store. A missing key yields an empty
// queue.
func Open(ctx context.Context, store cache.Store) (*Queue, error) {
	var ops []Operation
	if _, err := cache.Load(ctx, store, cache.KeyQueue, &ops); err != nil {
		return nil, fmt.Errorf("failed to load queue: %w", err)
	}

	q := New(store)
	q.ops = ops
	for _, op := range ops {
		if op.Seq >= q.nextSeq {
			q.nextSeq = op.Seq + 1
		}
	}
	return q, nil
}

// Append adds op to the back of the queue and persists. The stored operation,
// with Seq, ID and EnqueuedAt filled in, is returned. On a persistence failure
// the operation stays queued in memory and the error wraps ErrPersist.
func (q *Queue) Append(ctx context.Context, op Operation) (Operation, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	op.Seq = q.nextSeq
	q.nextSeq++
	if op.ID == "" {
		op.ID = uuid.NewString()
	}
	if op.EnqueuedAt.IsZero() {
		op.EnqueuedAt = time.Now()
	}
	q.ops = append(q.ops, op)

	return op, q.persistLocked(ctx)
}

// PeekFront returns the oldest operation without removing it.
func (q *Queue) PeekFront() (Operation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.ops) == 0 {
		return Operation{}, false
	}
	return q.ops[0], true
}

// PopFront removes the oldest operation and persists.
func (q *Queue) PopFront(ctx context.Context) (Operation, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.ops) == 0 {
		return Operation{}, false, nil
	}
	op := q.ops[0]
	q.ops = append([]Operation(nil), q.ops[1:]...)

	return op, true, q.persistLocked(ctx)
}

// Retarget rewrites the target of every queued operation aimed at from so it
// points at to. It is used when a temporary id is replaced by the server's id.
// The number of rewritten operations is returned.
func (q *Queue) Retarget(ctx context.Context, from, to string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for i := range q.ops {
		if q.ops[i].Target != from {
			continue
		}
		q.ops[i].Target = to
		if q.ops[i].Payload != nil {
			p := *q.ops[i].Payload
			p.ID = to
			q.ops[i].Payload = &p
		}
		n++
	}
	if n == 0 {
		return 0, nil
	}
	return n, q.persistLocked(ctx)
}

// Snapshot returns a copy of the queued operations, oldest first.
func (q *Queue) Snapshot() []Operation {
	q.mu.Lock()
	defer q.mu.Unlock()

	return append([]Operation(nil), q.ops...)
}

// Len returns the number of queued operations.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.ops)
}

func (q *Queue) persistLocked(ctx context.Context) error {
	ops := q.ops
	if ops == nil {
		ops = []Operation{}
	}
	if err := cache.Save(ctx, q.store, cache.KeyQueue, ops); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}
