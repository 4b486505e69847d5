package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/fintrack/fintrack/internal/cache"
	"github.com/fintrack/fintrack/internal/connectivity"
	"github.com/fintrack/fintrack/internal/logger"
	"github.com/fintrack/fintrack/internal/queue"
	"github.com/fintrack/fintrack/internal/remote"
	"github.com/fintrack/fintrack/internal/schema"
)

var (
	// ErrNotFound is returned when a mutation names an id that is not in
	// local state.
	ErrNotFound = errors.New("transaction not found")

	// ErrNoUser is returned when an operation needs a user and none is
	// configured.
	ErrNoUser = errors.New("no user configured")

	// ErrPersist marks a local state change that could not be written to the
	// cache. The change is kept in memory.
	ErrPersist = errors.New("failed to persist local state")
)

// Notice is a user-facing message raised by the engine, typically a warning
// about a dropped operation or a cache failure.
type Notice struct {
	Level   zerolog.Level
	Message string
	Err     error
}

// Config holds configuration for the engine.
type Config struct {
	// User is the owner attached to new transactions. Flush and Refresh are
	// skipped while it is empty.
	User string

	// FlushInterval is the periodic flush interval used by Run. 0 disables it.
	FlushInterval time.Duration

	// Logger for engine activity.
	Logger zerolog.Logger

	// Notify receives user-facing notices. Default: log them.
	Notify func(Notice)

	// Now is the clock. Default: time.Now.
	Now func() time.Time
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		FlushInterval: 30 * time.Second,
		Logger:        logger.Component(logger.New(), "sync"),
		Now:           time.Now,
	}
}

// Settings are client preferences persisted alongside the cache.
type Settings struct {
	Category string    `json:"category,omitempty"`
	Currency string    `json:"currency,omitempty"`
	LastSync time.Time `json:"last_sync,omitzero"`
}

// Status summarizes the engine for a sync indicator.
type Status struct {
	User             string
	Online           bool
	Syncing          bool
	Pending          int
	Transactions     int
	ChannelConnected bool
	LastSync         time.Time
	LastError        string
}

// Engine is the client session: it owns local state, the pending queue and
// the cache handle. Safe for concurrent use.
type Engine struct {
	cfg     *Config
	log     zerolog.Logger
	store   cache.Store
	remote  remote.Store
	monitor *connectivity.Monitor
	queue   *queue.Queue

	// mu guards txns and settings. Queue appends made by the mutation
	// methods happen under mu too, so local state and queue order agree.
	mu       gosync.Mutex
	txns     []schema.Transaction
	settings Settings
	lastErr  string

	// touched collects ids written by flush confirmations and pushes while a
	// Refresh is waiting on List. Local state wins for those ids.
	refreshing int
	touched    map[string]bool

	flushing  atomic.Bool
	connected atomic.Bool
	kicks     chan struct{}
}

// New loads local state and the pending queue from store and returns a ready
// engine. monitor may be nil, in which case the engine assumes it is online.
func New(ctx context.Context, store cache.Store, rs remote.Store, monitor *connectivity.Monitor, cfg *Config) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("cache store cannot be nil")
	}
	if rs == nil {
		return nil, fmt.Errorf("remote store cannot be nil")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	e := &Engine{
		cfg:     cfg,
		log:     cfg.Logger,
		store:   store,
		remote:  rs,
		monitor: monitor,
		kicks:   make(chan struct{}, 1),
	}

	// Undecodable values are discarded with a warning; read failures are fatal.
	var txns []schema.Transaction
	if _, err := cache.Load(ctx, store, cache.KeyTransactions, &txns); err != nil {
		if !errors.Is(err, cache.ErrCorrupt) {
			return nil, fmt.Errorf("failed to load transactions: %w", err)
		}
		e.warn("Cached transactions were unreadable, starting empty", err)
		txns = nil
	}
	e.txns = dedupe(txns)

	if _, err := cache.Load(ctx, store, cache.KeySettings, &e.settings); err != nil {
		if !errors.Is(err, cache.ErrCorrupt) {
			return nil, fmt.Errorf("failed to load settings: %w", err)
		}
		e.warn("Saved settings were unreadable, using defaults", err)
		e.settings = Settings{}
	}

	q, err := queue.Open(ctx, store)
	if err != nil {
		if !errors.Is(err, cache.ErrCorrupt) {
			return nil, err
		}
		e.warn("Pending changes were unreadable and have been discarded", err)
		q = queue.New(store)
	}
	e.queue = q

	e.log.Debug().
		Int("transactions", len(e.txns)).
		Int("pending", q.Len()).
		Msg("engine loaded")

	return e, nil
}

// Snapshot returns a copy of local state.
func (e *Engine) Snapshot() []schema.Transaction {
	e.mu.Lock()
	defer e.mu.Unlock()
	return schema.Clone(e.txns)
}

// Find returns the local record with id.
func (e *Engine) Find(id string) (schema.Transaction, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if i := e.indexLocked(id); i >= 0 {
		return e.txns[i], true
	}
	return schema.Transaction{}, false
}

// Pending returns a copy of the queued operations, oldest first.
func (e *Engine) Pending() []queue.Operation {
	return e.queue.Snapshot()
}

// User returns the configured user.
func (e *Engine) User() string {
	return e.cfg.User
}

// Settings returns the persisted client settings.
func (e *Engine) Settings() Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

// SaveSettings replaces and persists the client settings.
func (e *Engine) SaveSettings(ctx context.Context, s Settings) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.settings = s
	if err := cache.Save(ctx, e.store, cache.KeySettings, s); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}

// Status reports the state shown by a sync indicator.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Status{
		User:             e.cfg.User,
		Online:           e.online(),
		Syncing:          e.flushing.Load(),
		Pending:          e.queue.Len(),
		Transactions:     len(e.txns),
		ChannelConnected: e.connected.Load(),
		LastSync:         e.settings.LastSync,
		LastError:        e.lastErr,
	}
}

// OnChannelConnected records that the push channel is up and triggers a
// flush.
func (e *Engine) OnChannelConnected() {
	e.connected.Store(true)
	if e.monitor != nil {
		e.monitor.Set(true)
	}
	e.signal()
}

// OnChannelDisconnected records that the push channel went down.
func (e *Engine) OnChannelDisconnected() {
	e.connected.Store(false)
}

// Run flushes on every trigger until ctx is cancelled: after enqueues, on
// offline-to-online transitions, on push channel connects and, when
// FlushInterval is set, periodically.
func (e *Engine) Run(ctx context.Context) error {
	var online <-chan struct{}
	if e.monitor != nil {
		online = e.monitor.Subscribe()
	}

	var tick <-chan time.Time
	if e.cfg.FlushInterval > 0 {
		ticker := time.NewTicker(e.cfg.FlushInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	e.logFlush(e.Flush(ctx))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.kicks:
		case <-online:
		case <-tick:
		}
		e.logFlush(e.Flush(ctx))
	}
}

func (e *Engine) logFlush(res FlushResult) {
	switch {
	case res.Skipped:
		e.log.Debug().Str("reason", string(res.Reason)).Msg("flush skipped")
	case res.Attempted == 0:
	case res.Halted:
		e.log.Info().
			Int("applied", res.Applied).
			Int("dropped", res.Dropped).
			Int("remaining", res.Remaining).
			AnErr("cause", res.Err).
			Msg("flush halted")
	default:
		e.log.Info().
			Int("applied", res.Applied).
			Int("dropped", res.Dropped).
			Msg("flush complete")
	}
}

// kick triggers a flush if the backend is believed reachable.
func (e *Engine) kick() {
	if e.online() {
		e.signal()
	}
}

func (e *Engine) signal() {
	select {
	case e.kicks <- struct{}{}:
	default:
	}
}

func (e *Engine) online() bool {
	return e.monitor == nil || e.monitor.Online()
}

func (e *Engine) now() time.Time {
	return e.cfg.Now()
}

func (e *Engine) notify(n Notice) {
	if e.cfg.Notify != nil {
		e.cfg.Notify(n)
		return
	}
	e.log.WithLevel(n.Level).Err(n.Err).Msg(n.Message)
}

func (e *Engine) warn(msg string, err error) {
	e.notify(Notice{Level: zerolog.WarnLevel, Message: msg, Err: err})
}

// persistLocked writes local state. Failures are reported and returned but
// the in-memory state is kept.
func (e *Engine) persistLocked(ctx context.Context) error {
	if err := cache.Save(ctx, e.store, cache.KeyTransactions, e.txns); err != nil {
		err = fmt.Errorf("%w: %v", ErrPersist, err)
		e.warn("Could not save transactions locally", err)
		return err
	}
	return nil
}

// touchLocked marks id as changed during an in-flight Refresh.
func (e *Engine) touchLocked(id string) {
	if e.touched != nil {
		e.touched[id] = true
	}
}

func (e *Engine) indexLocked(id string) int {
	for i := range e.txns {
		if e.txns[i].ID == id {
			return i
		}
	}
	return -1
}

func (e *Engine) removeLocked(id string) (schema.Transaction, bool) {
	i := e.indexLocked(id)
	if i < 0 {
		return schema.Transaction{}, false
	}
	removed := e.txns[i]
	e.txns = append(e.txns[:i:i], e.txns[i+1:]...)
	return removed, true
}

func (e *Engine) recordSyncLocked(ctx context.Context) {
	e.settings.LastSync = e.now()
	e.lastErr = ""
	if err := cache.Save(ctx, e.store, cache.KeySettings, e.settings); err != nil {
		e.log.Warn().Err(err).Msg("failed to persist last sync time")
	}
}

// dedupe keeps the last record for each id.
func dedupe(txns []schema.Transaction) []schema.Transaction {
	seen := make(map[string]int, len(txns))
	out := make([]schema.Transaction, 0, len(txns))
	for _, t := range txns {
		if i, ok := seen[t.ID]; ok {
			out[i] = t
			continue
		}
		seen[t.ID] = len(out)
		out = append(out, t)
	}
	return out
}
