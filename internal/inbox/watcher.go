// Package inbox watches a drop folder for text files (receipt OCR output,
// copied bank SMS) and records the transactions found in them.
//
// A file is handled once it has been quiet for the debounce interval. After
// extraction it is moved to processed/ or, when nothing could be extracted,
// to failed/. Files already present when the watcher starts are handled on
// the first tick.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/fintrack/fintrack/internal/parser"
	"github.com/fintrack/fintrack/internal/schema"
)

const (
	processedDir = "processed"
	failedDir    = "failed"
)

// Recorder receives the drafts extracted from a file. *sync.Engine
// satisfies it.
type Recorder interface {
	Create(ctx context.Context, draft schema.Transaction) (schema.Transaction, error)
}

// Config holds inbox settings.
type Config struct {
	// Dir is the watched folder. It is created if missing.
	Dir string

	// Extractor finds candidates in file text. Default: parser.Heuristic.
	Extractor parser.Extractor

	// Debounce is how long a file must be unchanged before it is read.
	Debounce time.Duration

	// Extensions lists accepted file extensions. Default: .txt.
	Extensions []string

	Logger zerolog.Logger
	Now    func() time.Time
}

// DefaultConfig returns the default inbox configuration for dir.
func DefaultConfig(dir string) *Config {
	return &Config{
		Dir:        dir,
		Extractor:  parser.Heuristic{},
		Debounce:   500 * time.Millisecond,
		Extensions: []string{".txt"},
		Logger:     zerolog.Nop(),
		Now:        time.Now,
	}
}

// Result describes one handled file.
type Result struct {
	Path     string
	Recorded []schema.Transaction
	Err      error
}

// Watcher feeds files from Dir through the extractor into a Recorder.
type Watcher struct {
	cfg *Config
	rec Recorder
	log zerolog.Logger

	mu      sync.Mutex
	pending map[string]time.Time

	results chan Result
}

// New creates a watcher. Results are delivered on Results() when a consumer
// is listening; they are dropped otherwise.
func New(cfg *Config, rec Recorder) (*Watcher, error) {
	if cfg == nil || cfg.Dir == "" {
		return nil, fmt.Errorf("inbox dir cannot be empty")
	}
	if rec == nil {
		return nil, fmt.Errorf("recorder cannot be nil")
	}
	if cfg.Extractor == nil {
		cfg.Extractor = parser.Heuristic{}
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = []string{".txt"}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Watcher{
		cfg:     cfg,
		rec:     rec,
		log:     cfg.Logger,
		pending: make(map[string]time.Time),
		results: make(chan Result, 16),
	}, nil
}

// Results returns handled-file notifications.
func (w *Watcher) Results() <-chan Result {
	return w.results
}

// Run watches Dir until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	for _, sub := range []string{"", processedDir, failedDir} {
		if err := os.MkdirAll(filepath.Join(w.cfg.Dir, sub), 0o755); err != nil {
			return fmt.Errorf("failed to create inbox directory: %w", err)
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.cfg.Dir); err != nil {
		return fmt.Errorf("failed to watch inbox directory %s: %w", w.cfg.Dir, err)
	}
	w.log.Info().Str("dir", w.cfg.Dir).Msg("watching inbox")

	if err := w.queueExisting(); err != nil {
		w.log.Warn().Err(err).Msg("failed to scan inbox")
	}

	ticker := time.NewTicker(w.cfg.Debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !w.accepts(ev.Name) {
				continue
			}
			w.log.Debug().Str("op", ev.Op.String()).Str("path", ev.Name).Msg("inbox event")
			w.queue(ev.Name)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("inbox watcher error")

		case <-ticker.C:
			w.processPending(ctx)
		}
	}
}

// ProcessFile extracts transactions from path, records them and moves the
// file out of the inbox.
func (w *Watcher) ProcessFile(ctx context.Context, path string) Result {
	res := Result{Path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		res.Err = fmt.Errorf("failed to read %s: %w", path, err)
		return res
	}

	cands, err := w.cfg.Extractor.Extract(ctx, string(data))
	if err != nil {
		res.Err = err
		w.move(path, failedDir)
		return res
	}

	var errs []error
	for _, draft := range parser.Normalize(cands, w.cfg.Now()) {
		t, err := w.rec.Create(ctx, draft)
		if err != nil {
			errs = append(errs, fmt.Errorf("%q: %w", draft.Description, err))
			continue
		}
		res.Recorded = append(res.Recorded, t)
	}
	res.Err = errors.Join(errs...)

	if len(res.Recorded) == 0 {
		w.move(path, failedDir)
	} else {
		w.move(path, processedDir)
	}
	return res
}

func (w *Watcher) accepts(path string) bool {
	if filepath.Dir(path) != filepath.Clean(w.cfg.Dir) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range w.cfg.Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func (w *Watcher) queueExisting() error {
	entries, err := os.ReadDir(w.cfg.Dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		path := filepath.Join(w.cfg.Dir, e.Name())
		if !e.IsDir() && w.accepts(path) {
			w.queue(path)
		}
	}
	return nil
}

func (w *Watcher) queue(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[path] = w.cfg.Now()
}

// due removes and returns the paths that have been quiet long enough.
func (w *Watcher) due() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.cfg.Now()
	var out []string
	for path, at := range w.pending {
		if now.Sub(at) < w.cfg.Debounce {
			continue
		}
		out = append(out, path)
		delete(w.pending, path)
	}
	return out
}

func (w *Watcher) processPending(ctx context.Context) {
	for _, path := range w.due() {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		res := w.ProcessFile(ctx, path)

		ev := w.log.Info()
		if res.Err != nil {
			ev = w.log.Warn().Err(res.Err)
		}
		ev.Str("path", path).Int("recorded", len(res.Recorded)).Msg("inbox file handled")

		select {
		case w.results <- res:
		default:
		}
	}
}

func (w *Watcher) move(path, sub string) {
	dst := filepath.Join(w.cfg.Dir, sub, filepath.Base(path))
	if _, err := os.Stat(dst); err == nil {
		ext := filepath.Ext(dst)
		dst = fmt.Sprintf("%s-%d%s", strings.TrimSuffix(dst, ext), w.cfg.Now().UnixNano(), ext)
	}
	if err := os.Rename(path, dst); err != nil {
		w.log.Warn().Err(err).Str("path", path).Msg("failed to move inbox file")
	}
}
