package daemon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fintrack/fintrack/internal/connectivity"
	"github.com/fintrack/fintrack/internal/inbox"
	"github.com/fintrack/fintrack/internal/realtime"
	fsync "github.com/fintrack/fintrack/internal/sync"
)

// Config holds daemon configuration.
type Config struct {
	// RefreshInterval is how often the full list is re-fetched. 0 disables
	// periodic refreshes; the start-up refresh still happens.
	RefreshInterval time.Duration

	Logger zerolog.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		RefreshInterval: 5 * time.Minute,
		Logger:          zerolog.Nop(),
	}
}

// Daemon supervises the engine and its feeders.
type Daemon struct {
	config *Config
	engine *fsync.Engine
	log    zerolog.Logger

	prober   *connectivity.Prober
	realtime *realtime.Client
	inbox    *inbox.Watcher

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	errs    chan error
}

// New creates a daemon around engine.
func New(engine *fsync.Engine, config *Config) (*Daemon, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	return &Daemon{
		config: config,
		engine: engine,
		log:    config.Logger,
		errs:   make(chan error, 4),
	}, nil
}

// WithProber adds a connectivity prober.
func (d *Daemon) WithProber(p *connectivity.Prober) *Daemon {
	d.prober = p
	return d
}

// WithRealtime adds a push channel client. Its handler should be the engine.
func (d *Daemon) WithRealtime(c *realtime.Client) *Daemon {
	d.realtime = c
	return d
}

// WithInbox adds an inbox watcher.
func (d *Daemon) WithInbox(w *inbox.Watcher) *Daemon {
	d.inbox = w
	return d
}

// Start runs every component and blocks until ctx is cancelled or Stop is
// called. A component failing to start (for example an unwatchable inbox
// directory) stops the daemon and is returned.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon already running")
	}
	d.running = true
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.mu.Unlock()

	d.log.Info().Str("user", d.engine.User()).Msg("starting daemon")

	if d.prober != nil {
		d.prober.ProbeOnce(ctx)
	}
	d.refresh(ctx)

	d.spawn(ctx, "engine", d.engine.Run)
	if d.prober != nil {
		d.spawn(ctx, "prober", func(ctx context.Context) error {
			d.prober.Run(ctx)
			return nil
		})
	}
	if d.realtime != nil {
		d.spawn(ctx, "realtime", d.realtime.Run)
	}
	if d.inbox != nil {
		d.spawn(ctx, "inbox", d.inbox.Run)
	}
	if d.config.RefreshInterval > 0 {
		d.spawn(ctx, "refresh", d.refreshLoop)
	}

	var err error
	select {
	case <-ctx.Done():
		d.log.Info().Msg("shutdown signal received")
	case err = <-d.errs:
		d.log.Error().Err(err).Msg("component failed")
	}

	d.Stop()
	return err
}

// Stop cancels every component and waits for them to exit. It is safe to
// call more than once.
func (d *Daemon) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	cancel := d.cancel
	d.mu.Unlock()

	cancel()
	d.wg.Wait()
	d.log.Info().Msg("daemon stopped")
}

// IsRunning reports whether Start is active.
func (d *Daemon) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

func (d *Daemon) spawn(ctx context.Context, name string, run func(context.Context) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		err := run(ctx)
		if err == nil || errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return
		}
		select {
		case d.errs <- fmt.Errorf("%s: %w", name, err):
		default:
		}
	}()
}

func (d *Daemon) refreshLoop(ctx context.Context) error {
	ticker := time.NewTicker(d.config.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.refresh(ctx)
		}
	}
}

func (d *Daemon) refresh(ctx context.Context) {
	if !d.engine.Status().Online {
		return
	}
	if err := d.engine.Refresh(ctx); err != nil {
		d.log.Debug().Err(err).Msg("refresh failed")
	}
}
