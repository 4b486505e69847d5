package sync

import (
	"context"
	"fmt"

	"github.com/fintrack/fintrack/internal/realtime"
)

// ApplyEvent merges a server push into local state. Created events insert
// only when no record has that id, updated events replace in place and
// deleted events remove; the latter two are no-ops for unknown ids. Created
// and updated events owned by another user are ignored. The pending queue is
// never touched.
func (e *Engine) ApplyEvent(ctx context.Context, ev realtime.Event) error {
	if ev.ID == "" {
		return fmt.Errorf("%s event without id", ev.Kind)
	}
	if (ev.Kind == realtime.EventCreated || ev.Kind == realtime.EventUpdated) && ev.Transaction.User != e.cfg.User {
		e.log.Debug().Str("event", string(ev.Kind)).Str("id", ev.ID).Msg("ignoring push for another user")
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.touchLocked(ev.ID)
	changed := false
	switch ev.Kind {
	case realtime.EventCreated:
		if e.indexLocked(ev.ID) < 0 {
			e.txns = append(e.txns, ev.Transaction)
			changed = true
		}
	case realtime.EventUpdated:
		if i := e.indexLocked(ev.ID); i >= 0 {
			e.txns[i] = ev.Transaction
			changed = true
		}
	case realtime.EventDeleted:
		_, changed = e.removeLocked(ev.ID)
	default:
		return fmt.Errorf("unknown event kind %q", ev.Kind)
	}

	if !changed {
		return nil
	}
	e.log.Debug().Str("event", string(ev.Kind)).Str("id", ev.ID).Msg("merged push")
	return e.persistLocked(ctx)
}
