// Package server is the fintrack backend: a small REST API over the
// transaction store plus a websocket endpoint that pushes every write to
// connected clients.
//
// Routes:
//
//	POST   /api/transactions         create, returns the stored record
//	PUT    /api/transactions/{id}    partial update
//	DELETE /api/transactions/{id}    delete
//	GET    /api/transactions/{user}  list a user's records
//	POST   /api/ai/parse             extract drafts from free text
//	GET    /health                   liveness
//	GET    /ws                       push channel
//
// Validation failures answer 400 and unknown ids 404, which the sync
// engine treats as permanent and drops the queued operation.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fintrack/fintrack/internal/parser"
	"github.com/fintrack/fintrack/internal/schema"
)

// Backend is the storage the handlers write through. *store.DB satisfies it.
type Backend interface {
	Create(ctx context.Context, draft schema.Transaction) (schema.Transaction, error)
	Update(ctx context.Context, id string, patch schema.Patch) (schema.Transaction, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, user string) ([]schema.Transaction, error)
	Ping(ctx context.Context) error
}

// ErrNotFound must be wrapped by Backend errors for unknown ids.
var ErrNotFound = errors.New("not found")

// Config holds server configuration.
type Config struct {
	// Addr to listen on (default: :5000).
	Addr string

	// Extractor used by /api/ai/parse (default: parser.Heuristic).
	Extractor parser.Extractor

	// IsNotFound classifies backend errors as 404. Default: errors.Is with
	// ErrNotFound.
	IsNotFound func(error) bool

	Logger zerolog.Logger
	Now    func() time.Time
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Addr:      ":5000",
		Extractor: parser.Heuristic{},
		Logger:    zerolog.Nop(),
		Now:       time.Now,
	}
}

// Server serves the API and the push channel.
type Server struct {
	cfg     *Config
	backend Backend
	hub     *Hub
	log     zerolog.Logger

	listener net.Listener
	server   *http.Server

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a server over backend.
func New(cfg *Config, backend Backend) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Extractor == nil {
		cfg.Extractor = parser.Heuristic{}
	}
	if cfg.IsNotFound == nil {
		cfg.IsNotFound = func(err error) bool { return errors.Is(err, ErrNotFound) }
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	hub := NewHub(cfg.Logger)
	hub.now = cfg.Now

	return &Server{
		cfg:     cfg,
		backend: backend,
		hub:     hub,
		log:     cfg.Logger,
	}
}

// Hub returns the push hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/transactions", s.handleCreate)
	mux.HandleFunc("PUT /api/transactions/{id}", s.handleUpdate)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDelete)
	mux.HandleFunc("GET /api/transactions/{user}", s.handleList)
	mux.HandleFunc("POST /api/ai/parse", s.handleParse)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /ws", s.hub)

	var h http.Handler = mux
	h = CORS(h)
	h = Logger(s.log)(h)
	h = Recovery(s.log)(h)
	return h
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	hubCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.hub.Run(hubCtx)
	}()
	go func() {
		defer s.wg.Done()
		s.log.Info().Str("addr", ln.Addr().String()).Msg("server listening")
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("server error")
		}
	}()
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	s.log.Info().Msg("stopping server")

	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.wg.Wait()
	return nil
}

// Addr returns the listening address once started.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.Addr
}
