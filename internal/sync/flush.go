package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/fintrack/fintrack/internal/queue"
	"github.com/fintrack/fintrack/internal/remote"
	"github.com/fintrack/fintrack/internal/schema"
)

// SkipReason explains why a flush did not run.
type SkipReason string

const (
	SkipNoUser  SkipReason = "no user"
	SkipOffline SkipReason = "offline"
	SkipBusy    SkipReason = "flush in progress"
)

// FlushResult describes one flush pass.
type FlushResult struct {
	Skipped bool
	Reason  SkipReason

	// Attempted counts operations sent (or resolved locally) this pass.
	Attempted int
	Applied   int
	Dropped   int

	// Halted is set when a transient error stopped the pass early. Err holds
	// that error.
	Halted bool
	Err    error

	// Remaining is the queue length after the pass.
	Remaining int
}

// errUnconfirmed marks an update aimed at a record whose create never
// reached the server.
var errUnconfirmed = errors.New("target was never confirmed by the server")

// Flush replays queued operations against the remote store in order.
//
// A client error drops the operation with a warning and continues. Any other
// error stops the pass and leaves that operation and everything behind it
// queued. Flush is skipped when no user is configured, when the backend is
// known to be offline, or when another pass is running.
func (e *Engine) Flush(ctx context.Context) FlushResult {
	if e.cfg.User == "" {
		return FlushResult{Skipped: true, Reason: SkipNoUser, Remaining: e.queue.Len()}
	}
	if !e.online() {
		return FlushResult{Skipped: true, Reason: SkipOffline, Remaining: e.queue.Len()}
	}
	if !e.flushing.CompareAndSwap(false, true) {
		return FlushResult{Skipped: true, Reason: SkipBusy, Remaining: e.queue.Len()}
	}
	defer e.flushing.Store(false)

	var res FlushResult
	for {
		if err := ctx.Err(); err != nil {
			res.Halted, res.Err = true, err
			break
		}

		op, ok := e.queue.PeekFront()
		if !ok {
			break
		}
		res.Attempted++

		err := e.apply(ctx, op)
		switch {
		case err == nil:
			res.Applied++
		case remote.IsClientError(err) || errors.Is(err, errUnconfirmed):
			res.Dropped++
			e.log.Warn().Err(err).Str("op", string(op.Kind)).Str("target", op.Target).Msg("dropping queued operation")
			e.warn("Dropped invalid queued action", err)
		default:
			res.Halted, res.Err = true, err
		}
		if res.Halted {
			break
		}

		if _, _, err := e.queue.PopFront(ctx); err != nil {
			e.warn("Could not save pending changes", err)
		}
	}

	res.Remaining = e.queue.Len()

	e.mu.Lock()
	if res.Halted {
		e.lastErr = res.Err.Error()
	} else if res.Attempted > 0 {
		e.recordSyncLocked(ctx)
	}
	e.mu.Unlock()

	return res
}

// apply performs op against the remote store and, on success, folds the
// result into local state.
func (e *Engine) apply(ctx context.Context, op queue.Operation) error {
	switch op.Kind {
	case queue.KindCreate:
		return e.applyCreate(ctx, op)
	case queue.KindUpdate:
		return e.applyUpdate(ctx, op)
	case queue.KindDelete:
		return e.applyDelete(ctx, op)
	default:
		return &remote.StatusError{Code: 400, Message: fmt.Sprintf("unknown operation %q", op.Kind)}
	}
}

func (e *Engine) applyCreate(ctx context.Context, op queue.Operation) error {
	if op.Payload == nil {
		return &remote.StatusError{Code: 400, Message: "create without payload"}
	}

	confirmed, err := e.remote.Create(ctx, *op.Payload)
	if err != nil {
		return err
	}
	if confirmed.ID == "" {
		return &remote.StatusError{Code: 422, Message: "server returned a record without an id"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	tempID := op.Target
	e.touchLocked(confirmed.ID)
	i := e.indexLocked(tempID)
	if i >= 0 {
		e.txns = append(e.txns[:i:i], e.txns[i+1:]...)
		// A push for the same record may already have inserted it.
		if j := e.indexLocked(confirmed.ID); j >= 0 {
			e.txns[j] = confirmed
		} else {
			e.txns = append(e.txns[:i:i], append([]schema.Transaction{confirmed}, e.txns[i:]...)...)
		}
		_ = e.persistLocked(ctx)
	}
	// When the temp record is gone it was deleted locally; the queued delete
	// is retargeted below and removes the server copy.

	if _, err := e.queue.Retarget(ctx, tempID, confirmed.ID); err != nil {
		e.warn("Could not save pending changes", err)
	}

	e.log.Debug().Str("temp_id", tempID).Str("id", confirmed.ID).Msg("create confirmed")
	return nil
}

func (e *Engine) applyUpdate(ctx context.Context, op queue.Operation) error {
	if op.Patch == nil {
		return &remote.StatusError{Code: 400, Message: "update without patch"}
	}
	if schema.IsTempID(op.Target) {
		return fmt.Errorf("update %s: %w", op.Target, errUnconfirmed)
	}

	if _, err := e.remote.Update(ctx, op.Target, *op.Patch); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.touchLocked(op.Target)
	if i := e.indexLocked(op.Target); i >= 0 {
		e.txns[i] = op.Patch.Apply(e.txns[i])
		_ = e.persistLocked(ctx)
	}
	return nil
}

func (e *Engine) applyDelete(ctx context.Context, op queue.Operation) error {
	// The create for this record was dropped, so there is nothing remote to
	// delete.
	if !schema.IsTempID(op.Target) {
		if err := e.remote.Delete(ctx, op.Target); err != nil {
			return err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.touchLocked(op.Target)
	if _, ok := e.removeLocked(op.Target); ok {
		_ = e.persistLocked(ctx)
	}
	return nil
}
