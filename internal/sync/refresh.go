package sync

import (
	"context"
	"fmt"

	"github.com/fintrack/fintrack/internal/queue"
	"github.com/fintrack/fintrack/internal/schema"
)

// Refresh replaces local state with the remote store's list for the user.
// Records still waiting for their create to confirm are kept, and queued
// updates and deletes are re-applied on top so unsent edits stay visible. On
// failure the cached state is left as is and a warning is raised.
//
// Records confirmed, changed or removed by a flush or a push while List is
// in flight keep their local state, since the list may predate them.
func (e *Engine) Refresh(ctx context.Context) error {
	if e.cfg.User == "" {
		return ErrNoUser
	}

	e.mu.Lock()
	e.refreshing++
	if e.touched == nil {
		e.touched = make(map[string]bool)
	}
	e.mu.Unlock()

	list, err := e.remote.List(ctx, e.cfg.User)

	e.mu.Lock()
	defer e.mu.Unlock()

	touched := e.touched
	e.refreshing--
	if e.refreshing == 0 {
		e.touched = nil
	}

	if err != nil {
		e.warn("Offline or server error, showing cached data", err)
		e.lastErr = err.Error()
		return fmt.Errorf("failed to refresh transactions: %w", err)
	}

	next := make([]schema.Transaction, 0, len(list)+len(e.txns))
	for _, t := range dedupe(list) {
		if !touched[t.ID] {
			next = append(next, t)
		}
	}
	for _, t := range e.txns {
		if t.IsTemp() || touched[t.ID] {
			next = append(next, t)
		}
	}

	index := make(map[string]int, len(next))
	for i, t := range next {
		index[t.ID] = i
	}
	removed := make(map[string]bool)
	for _, op := range e.queue.Snapshot() {
		i, ok := index[op.Target]
		if !ok || removed[op.Target] {
			continue
		}
		switch op.Kind {
		case queue.KindUpdate:
			if op.Patch != nil {
				next[i] = op.Patch.Apply(next[i])
			}
		case queue.KindDelete:
			removed[op.Target] = true
		}
	}
	if len(removed) > 0 {
		kept := next[:0]
		for _, t := range next {
			if !removed[t.ID] {
				kept = append(kept, t)
			}
		}
		next = kept
	}

	e.txns = schema.Clone(next)
	e.recordSyncLocked(ctx)
	e.log.Info().Int("transactions", len(e.txns)).Msg("refreshed from server")
	return e.persistLocked(ctx)
}
