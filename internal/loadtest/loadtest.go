// Package loadtest drives concurrent clients against the backend store to
// measure write and list latency under contention.
//
// Each simulated client owns one user, records transactions and re-reads its
// list between writes, which is the access pattern of a device flushing its
// queue and refreshing afterwards.
package loadtest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fintrack/fintrack/internal/schema"
)

// Backend is the part of the store exercised by a run.
type Backend interface {
	Create(ctx context.Context, draft schema.Transaction) (schema.Transaction, error)
	List(ctx context.Context, user string) ([]schema.Transaction, error)
}

// Config controls a run.
type Config struct {
	Clients      int
	OpsPerClient int
	ListEvery    int // list after every N writes; 0 disables reads
	Seed         int64
}

// DefaultConfig returns a small run suitable for a laptop.
func DefaultConfig() Config {
	return Config{
		Clients:      20,
		OpsPerClient: 50,
		ListEvery:    5,
		Seed:         42,
	}
}

// LatencyStats captures latency for one operation kind.
type LatencyStats struct {
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	Mean  time.Duration `json:"mean"`
	P50   time.Duration `json:"p50"`
	P95   time.Duration `json:"p95"`
	P99   time.Duration `json:"p99"`
	Count int           `json:"count"`
}

// Result is the outcome of Run.
type Result struct {
	Config  Config        `json:"config"`
	Writes  LatencyStats  `json:"writes"`
	Lists   LatencyStats  `json:"lists"`
	Errors  int           `json:"errors"`
	Elapsed time.Duration `json:"elapsed"`
}

// OpsPerSecond is the combined write and list throughput.
func (r *Result) OpsPerSecond() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Writes.Count+r.Lists.Count) / r.Elapsed.Seconds()
}

var descriptions = []string{"Coffee", "Groceries", "Uber", "Rent", "Salary", "Movie", "Electricity"}
var categories = []string{"food", "groceries", "transport", "bills", "salary", "entertainment"}

// Run executes the load and returns aggregated statistics. Individual
// operation failures are counted, not returned; Run fails only when nothing
// succeeded or ctx ends first.
func Run(ctx context.Context, backend Backend, cfg Config) (*Result, error) {
	if cfg.Clients <= 0 || cfg.OpsPerClient <= 0 {
		return nil, fmt.Errorf("clients and ops per client must be positive")
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		writes []time.Duration
		lists  []time.Duration
		errCnt int
	)

	start := time.Now()
	for i := 0; i < cfg.Clients; i++ {
		wg.Add(1)
		go func(client int) {
			defer wg.Done()

			rng := rand.New(rand.NewSource(cfg.Seed + int64(client)))
			user := fmt.Sprintf("loadtest-%03d", client)
			var w, l []time.Duration
			var failed int

			for j := 0; j < cfg.OpsPerClient; j++ {
				if ctx.Err() != nil {
					break
				}
				draft := randomDraft(rng, user, start)

				t0 := time.Now()
				_, err := backend.Create(ctx, draft)
				w = append(w, time.Since(t0))
				if err != nil {
					failed++
					continue
				}

				if cfg.ListEvery > 0 && (j+1)%cfg.ListEvery == 0 {
					t0 = time.Now()
					if _, err := backend.List(ctx, user); err != nil {
						failed++
					}
					l = append(l, time.Since(t0))
				}
			}

			mu.Lock()
			writes = append(writes, w...)
			lists = append(lists, l...)
			errCnt += failed
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(writes) == 0 || errCnt >= len(writes)+len(lists) {
		return nil, errors.New("no successful operations completed")
	}

	return &Result{
		Config:  cfg,
		Writes:  computeLatencyStats(writes),
		Lists:   computeLatencyStats(lists),
		Errors:  errCnt,
		Elapsed: time.Since(start),
	}, nil
}

func randomDraft(rng *rand.Rand, user string, now time.Time) schema.Transaction {
	typ := schema.TypeExpense
	if rng.Intn(10) == 0 {
		typ = schema.TypeIncome
	}
	return schema.Transaction{
		User:        user,
		Description: descriptions[rng.Intn(len(descriptions))],
		Amount:      decimal.New(int64(rng.Intn(500000)+1), -2),
		Type:        typ,
		Category:    categories[rng.Intn(len(categories))],
		Date:        now.AddDate(0, 0, -rng.Intn(30)),
	}
}

func computeLatencyStats(durations []time.Duration) LatencyStats {
	if len(durations) == 0 {
		return LatencyStats{}
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}

	return LatencyStats{
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		Mean:  sum / time.Duration(len(sorted)),
		P50:   sorted[len(sorted)*50/100],
		P95:   sorted[len(sorted)*95/100],
		P99:   sorted[len(sorted)*99/100],
		Count: len(sorted),
	}
}

// Print writes a plain text report.
func (r *Result) Print(w io.Writer) {
	fmt.Fprintf(w, "Clients: %d, ops/client: %d, errors: %d, elapsed: %v (%.0f ops/s)\n",
		r.Config.Clients, r.Config.OpsPerClient, r.Errors, r.Elapsed.Round(time.Millisecond), r.OpsPerSecond())
	printStats(w, "Writes", r.Writes)
	if r.Lists.Count > 0 {
		printStats(w, "Lists", r.Lists)
	}
}

func printStats(w io.Writer, name string, s LatencyStats) {
	fmt.Fprintf(w, "%s (%d):\n", name, s.Count)
	fmt.Fprintf(w, "  Min:  %v\n", s.Min)
	fmt.Fprintf(w, "  P50:  %v\n", s.P50)
	fmt.Fprintf(w, "  Mean: %v\n", s.Mean)
	fmt.Fprintf(w, "  P95:  %v\n", s.P95)
	fmt.Fprintf(w, "  P99:  %v\n", s.P99)
	fmt.Fprintf(w, "  Max:  %v\n", s.Max)
}
