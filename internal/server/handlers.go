package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/chishiki/internal/errkind"
	"github.com/hyperjump/chishiki/internal/models"
	"github.com/hyperjump/chishiki/internal/transport"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := errkind.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case errkind.KindInvalidInput, errkind.KindInvalidProject:
		status = http.StatusBadRequest
	case errkind.KindAllSourcesFailed:
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, map[string]any{
		"error_kind":    string(kind),
		"error_message": err.Error(),
		"retry_allowed": kind.Retryable(),
	})
}

// handleHealth reports per-backend reachability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	checks := map[string]string{}
	healthy := true

	if _, err := s.rt.VectorStore.Count(ctx, s.rt.Config.VectorStore.Collection); err != nil {
		checks["vector_store"] = err.Error()
		healthy = false
	} else {
		checks["vector_store"] = "ok"
	}
	if _, err := s.rt.GraphStore.FindNodes(ctx, "", "", 1); err != nil {
		checks["graph_store"] = err.Error()
		healthy = false
	} else {
		checks["graph_store"] = "ok"
	}
	if _, err := s.rt.MetaStore.Count(ctx, "_health"); err != nil {
		checks["meta_store"] = err.Error()
		healthy = false
	} else {
		checks["meta_store"] = "ok"
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, map[string]any{"healthy": healthy, "checks": checks})
}

// handleSearch runs a synchronous search through the aggregator.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errkind.Wrap(errkind.KindInvalidInput, "malformed request body", err))
		return
	}
	if req.CorrelationID == "" {
		req.CorrelationID = uuid.New().String()
	}
	resp, err := s.rt.Search.Search(r.Context(), &req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleIndexDocument enqueues one indexing request onto the transport and
// returns 202 with the correlation ID; the response event arrives on the
// completed/failed topics.
func (s *Server) handleIndexDocument(w http.ResponseWriter, r *http.Request) {
	var req models.IndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errkind.Wrap(errkind.KindInvalidInput, "malformed request body", err))
		return
	}
	if req.CorrelationID == "" {
		req.CorrelationID = uuid.New().String()
	}
	env, err := transport.NewEnvelope("document-index-requested", req.CorrelationID, "http-api", req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.rt.Bus.Publish(r.Context(), transport.TopicDocumentIndexRequested, env); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"correlation_id": req.CorrelationID})
}

// handleListDocuments pages through a project's metadata records.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	recs, err := s.rt.MetaStore.List(r.Context(), project, offset, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	total, err := s.rt.MetaStore.Count(r.Context(), project)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"documents": recs, "total": total})
}
