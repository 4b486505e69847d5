package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	gosync "sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fintrack/fintrack/internal/cache"
	"github.com/fintrack/fintrack/internal/connectivity"
	"github.com/fintrack/fintrack/internal/logger"
	"github.com/fintrack/fintrack/internal/remote"
	fsync "github.com/fintrack/fintrack/internal/sync"
	"github.com/fintrack/fintrack/internal/ui"
)

// session bundles the client-side components every command needs.
type session struct {
	closeOnce gosync.Once

	store   cache.Store
	remote  *remote.HTTPClient
	monitor *connectivity.Monitor
	prober  *connectivity.Prober
	engine  *fsync.Engine
}

// openSession opens the cache and builds the engine. The backend is assumed
// offline until a probe says otherwise.
func openSession(ctx context.Context) (*session, error) {
	store, err := cache.Open(cfg.Cache.Backend, cfg.Cache.Path)
	if err != nil {
		return nil, err
	}
	if cfg.Cache.Key != "" {
		key, err := cache.ParseKey(cfg.Cache.Key)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		store = cache.NewEncrypted(store, key)
	}

	rc, err := remote.NewHTTPClient(remote.HTTPConfig{
		BaseURL: cfg.Server.URL,
		Session: cfg.Server.Session,
		Timeout: cfg.Sync.RequestTimeout,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	monitor := connectivity.NewMonitor(false)

	engine, err := fsync.New(ctx, store, rc, monitor, &fsync.Config{
		User:          cfg.User,
		FlushInterval: cfg.Sync.FlushInterval,
		Logger:        logger.Component(log, "sync"),
		Notify:        printNotice,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	s := &session{
		store:   store,
		remote:  rc,
		monitor: monitor,
		prober:  connectivity.NewProber(monitor, rc.Health, cfg.Sync.ProbeInterval, logger.Component(log, "probe")),
		engine:  engine,
	}
	closeOnExit(s.Close)
	return s, nil
}

// Close releases the cache. Safe to call more than once.
func (s *session) Close() {
	s.closeOnce.Do(func() {
		if err := s.store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close cache: %v\n", err)
		}
	})
}

// syncNow probes the backend and, when it answers, replays the queue.
func (s *session) syncNow(ctx context.Context) fsync.FlushResult {
	if s.engine.User() == "" {
		return fsync.FlushResult{Skipped: true, Reason: fsync.SkipNoUser, Remaining: len(s.engine.Pending())}
	}
	if !s.prober.ProbeOnce(ctx) {
		return fsync.FlushResult{Skipped: true, Reason: fsync.SkipOffline, Remaining: len(s.engine.Pending())}
	}
	ctx, cancel := context.WithTimeout(ctx, 2*cfg.Sync.RequestTimeout+5*time.Second)
	defer cancel()
	return s.engine.Flush(ctx)
}

// reportFlush prints a one-line outcome of a flush after a mutation.
func reportFlush(res fsync.FlushResult) {
	switch {
	case res.Skipped && res.Reason == fsync.SkipNoUser:
		fmt.Println(ui.RenderWarn("Saved locally. Set --user to sync."))
	case res.Skipped:
		fmt.Printf("%s %d change(s) queued until the backend is reachable.\n", ui.RenderWarn("Offline:"), res.Remaining)
	case res.Halted:
		fmt.Printf("%s %d applied, %d still queued (%v)\n", ui.RenderWarn("Sync paused:"), res.Applied, res.Remaining, res.Err)
	case res.Attempted > 0:
		fmt.Printf("%s %d change(s) synced\n", ui.RenderPass("✓"), res.Applied)
	}
}

func printNotice(n fsync.Notice) {
	msg := n.Message
	if n.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, n.Err)
	}
	if n.Level >= zerolog.ErrorLevel {
		fmt.Fprintln(os.Stderr, ui.RenderFail(msg))
		return
	}
	fmt.Fprintln(os.Stderr, ui.RenderWarn(msg))
}

// exitClosers run, newest first, before exitOnErr terminates the process,
// since os.Exit skips deferred calls.
var exitClosers []func()

// closeOnExit registers fn to run if the command exits through exitOnErr.
func closeOnExit(fn func()) {
	exitClosers = append(exitClosers, fn)
}

// exitOnErr prints err, releases registered resources and exits non-zero.
func exitOnErr(err error) {
	if err == nil {
		return
	}
	for i := len(exitClosers) - 1; i >= 0; i-- {
		exitClosers[i]()
	}
	switch {
	case errors.Is(err, fsync.ErrNoUser):
		fmt.Fprintf(os.Stderr, "Error: %v (set --user, FT_USER or user in the config file)\n", err)
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(1)
}
