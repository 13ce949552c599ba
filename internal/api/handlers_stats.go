package api

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleRemoteStats(w http.ResponseWriter, r *http.Request) {
	if s.remote == nil || s.remote.Stats == nil {
		jsonError(w, "remote stats unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"stats": s.remote.Stats.Snapshot(),
	})
}
