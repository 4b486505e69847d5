package sync

import (
	"context"
	"fmt"

	"github.com/fintrack/fintrack/internal/queue"
	"github.com/fintrack/fintrack/internal/schema"
)

// Create records a new transaction locally under a temporary id and queues it
// for the remote store. It returns once the local insert is persisted; remote
// problems are never reported here. Only invalid input is rejected.
func (e *Engine) Create(ctx context.Context, draft schema.Transaction) (schema.Transaction, error) {
	if e.cfg.User == "" {
		return schema.Transaction{}, ErrNoUser
	}

	now := e.now()
	t := draft
	t.ID = schema.NewTempID(now)
	t.User = e.cfg.User
	t.CreatedAt = now
	t.SetDefaults(now)
	if err := t.ValidateDraft(); err != nil {
		return schema.Transaction{}, err
	}

	e.mu.Lock()
	e.txns = append(e.txns, t)
	_ = e.persistLocked(ctx)

	payload := t
	e.enqueueLocked(ctx, queue.Operation{Kind: queue.KindCreate, Target: t.ID, Payload: &payload})
	e.mu.Unlock()

	e.log.Debug().Str("id", t.ID).Str("description", t.Description).Msg("created locally")
	e.kick()
	return t, nil
}

// Update merges patch into the local record with id and queues the change.
// The record as it was before the patch is returned.
func (e *Engine) Update(ctx context.Context, id string, patch schema.Patch) (schema.Transaction, error) {
	if err := patch.Validate(); err != nil {
		return schema.Transaction{}, err
	}

	e.mu.Lock()
	i := e.indexLocked(id)
	if i < 0 {
		e.mu.Unlock()
		return schema.Transaction{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	before := e.txns[i]
	e.txns[i] = patch.Apply(before)
	_ = e.persistLocked(ctx)

	p := patch
	e.enqueueLocked(ctx, queue.Operation{Kind: queue.KindUpdate, Target: id, Patch: &p})
	e.mu.Unlock()

	e.log.Debug().Str("id", id).Msg("updated locally")
	e.kick()
	return before, nil
}

// Delete removes the local record with id and queues the deletion. The
// removed record is returned.
func (e *Engine) Delete(ctx context.Context, id string) (schema.Transaction, error) {
	e.mu.Lock()
	removed, ok := e.removeLocked(id)
	if !ok {
		e.mu.Unlock()
		return schema.Transaction{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	_ = e.persistLocked(ctx)

	e.enqueueLocked(ctx, queue.Operation{Kind: queue.KindDelete, Target: id})
	e.mu.Unlock()

	e.log.Debug().Str("id", id).Msg("deleted locally")
	e.kick()
	return removed, nil
}

func (e *Engine) enqueueLocked(ctx context.Context, op queue.Operation) {
	op.EnqueuedAt = e.now()
	if _, err := e.queue.Append(ctx, op); err != nil {
		e.warn("Could not save pending change; it will be lost if the app restarts", err)
	}
}
