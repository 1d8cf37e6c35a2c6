package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.pipeline.Status())
}

// parseLimit reads ?limit=, defaulting and clamping to [1, maxListLimit].
func (s *Server) parseLimit(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return s.defaultLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	if n > maxListLimit {
		n = maxListLimit
	}
	return n, true
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.parseLimit(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	snaps, err := s.repo.ListRecent(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to list snapshots", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list snapshots")
		return
	}
	s.writeJSON(w, http.StatusOK, snaps)
}

func (s *Server) handleCoinHistory(w http.ResponseWriter, r *http.Request) {
	coin := r.PathValue("coin")
	limit, ok := s.parseLimit(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	snaps, err := s.repo.ListByCoin(r.Context(), coin, limit)
	if err != nil {
		s.logger.Error("Failed to list coin history", zap.String("coin_id", coin), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list coin history")
		return
	}
	if len(snaps) == 0 {
		s.writeError(w, http.StatusNotFound, "no snapshots for "+coin)
		return
	}
	s.writeJSON(w, http.StatusOK, snaps)
}
