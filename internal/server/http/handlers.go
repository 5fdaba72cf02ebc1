package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/plastic-io/graph-server/internal/blob"
	"github.com/plastic-io/graph-server/internal/docstore"
	logpkg "github.com/plastic-io/graph-server/pkg/log"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.rt.CheckHealth(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "not_serving"})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleToc(w http.ResponseWriter, r *http.Request) {
	body, err := s.rt.Docs().GetToc(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeRaw(w, body)
}

func (s *Server) handleAddEvent(w http.ResponseWriter, r *http.Request) {
	var ev docstore.EditEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	stored, derived, err := s.rt.Docs().AddEvent(r.Context(), ev)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{"event": stored, "version": derived})
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	body, err := s.rt.Docs().GetGraph(r.Context(), chi.URLParam(r, "graphID"), chi.URLParam(r, "version"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeRaw(w, body)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.rt.Docs().GetEvents(r.Context(), chi.URLParam(r, "graphID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(events)
}

func (s *Server) handleDeleteGraph(w http.ResponseWriter, r *http.Request) {
	if err := s.rt.Docs().DeleteGraph(r.Context(), chi.URLParam(r, "graphID")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePublishGraph(w http.ResponseWriter, r *http.Request) {
	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	result, err := s.rt.Docs().PublishGraph(r.Context(),
		chi.URLParam(r, "graphID"), version, r.Header.Get("X-User-Id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(result)
}

func (s *Server) handlePublishNode(w http.ResponseWriter, r *http.Request) {
	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	result, err := s.rt.Docs().PublishNode(r.Context(),
		chi.URLParam(r, "graphID"), chi.URLParam(r, "nodeID"), version, r.Header.Get("X-User-Id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(result)
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	body, err := s.rt.Docs().GetArtifact(r.Context(), chi.URLParam(r, "id"), version)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeRaw(w, body)
}

func (s *Server) handleEndpoint(w http.ResponseWriter, r *http.Request) {
	body, err := s.rt.Docs().GetEndpoint(r.Context(), chi.URLParam(r, "url"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeRaw(w, body)
}

func writeRaw(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, docstore.ErrConcurrency):
		status = http.StatusConflict
	case errors.Is(err, blob.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, docstore.ErrMissingGraph), errors.Is(err, docstore.ErrBadVersion):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", logpkg.Err(err))
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": true, "response": err.Error()})
}
