package api

import (
	"encoding/json"
	"net/http"
)

type queueDepther interface {
	QueueDepth() int
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Stats == nil {
		jsonError(w, "processing stats unavailable", http.StatusServiceUnavailable)
		return
	}

	resp := map[string]any{"stats": s.deps.Stats.Snapshot()}
	if q, ok := s.deps.Tasks.(queueDepther); ok {
		resp["queue_depth"] = q.QueueDepth()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
