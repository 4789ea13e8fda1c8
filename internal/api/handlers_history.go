package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/dgallion1/docextract/internal/history"
)

const maxHistoryLimit = 500

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		jsonError(w, "history unavailable", http.StatusServiceUnavailable)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			jsonError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	entries, err := s.history.List(r.Context(), limit)
	if err != nil {
		s.log.Error("list history", "error", err)
		jsonError(w, "failed to list history", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"runs": entries})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"queue_depth":    s.orchestrator.QueueDepth(),
		"max_queue_size": s.cfg.MaxQueueSize,
		"workers":        s.cfg.WorkerCount,
	})
}
