package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/fintrack/fintrack/internal/parser"
	"github.com/fintrack/fintrack/internal/realtime"
	"github.com/fintrack/fintrack/internal/schema"
)

// maxBody bounds request bodies; parse requests carry OCR text.
const maxBody = 1 << 20

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var draft schema.Transaction
	if !s.decode(w, r, &draft) {
		return
	}

	t, err := s.backend.Create(r.Context(), draft)
	if err != nil {
		s.writeBackendError(w, err, "Failed to create transaction")
		return
	}

	s.hub.Publish(realtime.Event{Kind: realtime.EventCreated, Transaction: t, ID: t.ID})
	WriteJSON(w, http.StatusOK, t)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var patch schema.Patch
	if !s.decode(w, r, &patch) {
		return
	}

	t, err := s.backend.Update(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		s.writeBackendError(w, err, "Failed to update transaction")
		return
	}

	s.hub.Publish(realtime.Event{Kind: realtime.EventUpdated, Transaction: t, ID: t.ID})
	WriteJSON(w, http.StatusOK, t)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.backend.Delete(r.Context(), id); err != nil {
		s.writeBackendError(w, err, "Failed to delete transaction")
		return
	}

	s.hub.Publish(realtime.Event{Kind: realtime.EventDeleted, ID: id})
	WriteJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	txns, err := s.backend.List(r.Context(), r.PathValue("user"))
	if err != nil {
		s.writeBackendError(w, err, "Failed to list transactions")
		return
	}
	WriteJSON(w, http.StatusOK, txns)
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		WriteError(w, http.StatusBadRequest, "No text provided")
		return
	}

	cands, err := s.cfg.Extractor.Extract(r.Context(), req.Text)
	if errors.Is(err, parser.ErrNoCandidates) {
		WriteError(w, http.StatusBadRequest, "No valid transactions found")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("parse failed")
		WriteError(w, http.StatusInternalServerError, "AI parsing failed")
		return
	}

	WriteJSON(w, http.StatusOK, parser.Normalize(cands, s.cfg.Now()))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.Ping(r.Context()); err != nil {
		WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "error": err.Error()})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"clients": s.hub.ClientCount(),
	})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(v); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func (s *Server) writeBackendError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, schema.ErrInvalid):
		WriteError(w, http.StatusBadRequest, err.Error())
	case s.cfg.IsNotFound(err):
		WriteError(w, http.StatusNotFound, err.Error())
	default:
		s.log.Error().Err(err).Msg(msg)
		WriteError(w, http.StatusInternalServerError, msg)
	}
}
