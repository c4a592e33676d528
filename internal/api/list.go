package api

import (
	"net/http"

	"github.com/nchanged/gridwatch/internal/store"
)

// handleListSites returns the site registry: the latest generation snapshot
// of every site and its recorded capacity.
func (s *Server) handleListSites(w http.ResponseWriter, r *http.Request) {
	if s.sites == nil {
		writeJSON(w, []store.Site{})
		return
	}

	sites, err := s.sites.ListSites(r.Context())
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, sites)
}
