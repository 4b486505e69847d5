// Package sync keeps the client's local view of its transactions usable while
// the backend is unreachable and reconciles it once connectivity returns.
//
// # Overview
//
// An Engine owns three pieces of state:
//
//	local transactions  (cache key "transactions")
//	pending operations  (queue.Queue, cache key "queue")
//	settings            (cache key "settings")
//
// and three ways of changing them:
//
//	Create/Update/Delete  optimistic mutation: apply locally, persist, enqueue
//	Flush                 replay the queue against the remote store in order
//	ApplyEvent            merge a server push (created/updated/deleted)
//
// Each change to local state is a single read-modify-persist step under the
// engine lock. Remote calls never hold the lock, so pushes may interleave
// between flush steps.
//
// # Flush
//
// Flush replays the queue front to back. A client error from the remote (4xx
// other than 408/429) drops the operation with a warning and moves on. Any
// other error stops the pass and leaves the queue untouched for the next
// trigger. Only one pass runs at a time; overlapping calls return a skipped
// result.
//
// When a queued create is confirmed, the temporary record is replaced by the
// server's record and every later operation aimed at the temporary id is
// retargeted to the server id.
//
// # Usage
//
//	store, _ := cache.Open("sqlite", path)
//	client, _ := remote.NewHTTPClient(remote.HTTPConfig{BaseURL: url})
//	mon := connectivity.NewMonitor(true)
//
//	cfg := sync.DefaultConfig()
//	cfg.User = "asha@example.com"
//	engine, err := sync.New(ctx, store, client, mon, cfg)
//	if err != nil {
//	    return err
//	}
//
//	txn, err := engine.Create(ctx, schema.Transaction{Description: "Coffee", Amount: decimal.NewFromInt(4)})
//	go engine.Run(ctx) // flushes on enqueue, reconnect and a slow ticker
package sync
