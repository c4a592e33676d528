package api

import (
	"net/http"
)

// handleLive returns the latest published summary without holding a stream
// open, for clients that poll.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	last := s.broker.Last()
	if last == nil {
		writeError(w, "no summary yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(last)
}
