// Package daemon runs the long-lived parts of a fintrack client together.
//
// # Overview
//
// A Daemon owns one sync engine and, optionally, a connectivity prober, a
// push channel client and an inbox watcher. Each runs in its own goroutine
// under a shared context; Stop cancels them and waits.
//
// On start the daemon refreshes local state from the backend (when reachable)
// so the first view is current, then keeps refreshing every RefreshInterval
// to pick up writes made while the push channel was down.
//
// # Usage
//
//	d, err := daemon.New(engine, daemon.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	d.WithProber(prober).WithRealtime(client).WithInbox(watcher)
//	return d.Start(ctx) // blocks until ctx is cancelled
package daemon
