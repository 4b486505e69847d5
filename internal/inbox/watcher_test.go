package inbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fintrack/fintrack/internal/schema"
)

type recorder struct {
	mu     sync.Mutex
	drafts []schema.Transaction
	fail   string
}

func (r *recorder) Create(_ context.Context, draft schema.Transaction) (schema.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if draft.Description == r.fail {
		return schema.Transaction{}, errors.New("boom")
	}
	draft.ID = schema.NewTempID(time.Now())
	r.drafts = append(r.drafts, draft)
	return draft, nil
}

func (r *recorder) descriptions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, d := range r.drafts {
		out = append(out, d.Description)
	}
	return out
}

func newWatcher(t *testing.T, rec Recorder) (*Watcher, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.Debounce = 20 * time.Millisecond
	w, err := New(cfg, rec)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return w, dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(&Config{}, &recorder{}); err == nil {
		t.Error("New() with empty dir should fail")
	}
	if _, err := New(DefaultConfig(t.TempDir()), nil); err == nil {
		t.Error("New() with nil recorder should fail")
	}
}

func TestProcessFile(t *testing.T) {
	rec := &recorder{fail: "Broken"}
	w, dir := newWatcher(t, rec)
	for _, sub := range []string{processedDir, failedDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	path := filepath.Join(dir, "receipt.txt")
	writeFile(t, path, "Coffee 120\nBroken 5\nincome Refund 40\n")

	res := w.ProcessFile(context.Background(), path)
	if len(res.Recorded) != 2 {
		t.Fatalf("Recorded %d transactions, want 2", len(res.Recorded))
	}
	if res.Err == nil {
		t.Error("Expected an error for the rejected draft")
	}
	if res.Recorded[1].Type != schema.TypeIncome {
		t.Errorf("Refund type = %s, want income", res.Recorded[1].Type)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("File should have left the inbox")
	}
	if _, err := os.Stat(filepath.Join(dir, processedDir, "receipt.txt")); err != nil {
		t.Errorf("File not in processed/: %v", err)
	}
}

func TestProcessFile_NothingFound(t *testing.T) {
	w, dir := newWatcher(t, &recorder{})
	if err := os.MkdirAll(filepath.Join(dir, failedDir), 0o755); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, "noise.txt")
	writeFile(t, path, "hello there\n")

	res := w.ProcessFile(context.Background(), path)
	if res.Err == nil || len(res.Recorded) != 0 {
		t.Fatalf("ProcessFile() = %+v, want error and nothing recorded", res)
	}
	if _, err := os.Stat(filepath.Join(dir, failedDir, "noise.txt")); err != nil {
		t.Errorf("File not in failed/: %v", err)
	}
}

func TestRun_ExistingAndNewFiles(t *testing.T) {
	rec := &recorder{}
	w, dir := newWatcher(t, rec)

	writeFile(t, filepath.Join(dir, "before.txt"), "Tea 20\n")
	writeFile(t, filepath.Join(dir, "ignored.json"), "Ignored 1\n")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	waitFor := func(n int) {
		t.Helper()
		deadline := time.After(3 * time.Second)
		for {
			select {
			case <-w.Results():
			case <-deadline:
				t.Fatalf("Timed out waiting for %d drafts, got %v", n, rec.descriptions())
			}
			if len(rec.descriptions()) >= n {
				return
			}
		}
	}

	waitFor(1)
	writeFile(t, filepath.Join(dir, "after.txt"), "Bus 15\n")
	waitFor(2)

	got := rec.descriptions()
	if got[0] != "Tea" || got[1] != "Bus" {
		t.Errorf("Recorded %v, want [Tea Bus]", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "ignored.json")); err != nil {
		t.Error("Non-matching files should stay in place")
	}
}
