package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/nchanged/gridwatch/internal/app"
	"github.com/nchanged/gridwatch/internal/feed"
	"github.com/nchanged/gridwatch/internal/ingest"
	"github.com/nchanged/gridwatch/internal/prom"
	"github.com/nchanged/gridwatch/internal/solar"
	"github.com/nchanged/gridwatch/internal/store"
)

// SolarSource answers the on-demand Prometheus backed routes.
type SolarSource interface {
	SitePeriod(ctx context.Context, site string, days int) (solar.SitePeriod, error)
	Period(ctx context.Context, days int) ([]solar.SitePeriod, error)
	Today(ctx context.Context, now time.Time) (prom.Series, error)
}

type SiteLister interface {
	ListSites(ctx context.Context) ([]store.Site, error)
}

type Server struct {
	app         *app.Context
	solar       SolarSource
	sites       SiteLister
	broker      *feed.Broker
	ingest      *ingest.Server
	allowOrigin string
	started     time.Time
	now         func() time.Time
}

// NewServer builds the HTTP API. sites may be nil when no registry is
// available.
func NewServer(appCtx *app.Context, source SolarSource, sites SiteLister, broker *feed.Broker, allowOrigin string) *Server {
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	return &Server{
		app:         appCtx,
		solar:       source,
		sites:       sites,
		broker:      broker,
		ingest:      ingest.NewServer(appCtx),
		allowOrigin: allowOrigin,
		started:     time.Now(),
		now:         time.Now,
	}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	// Live feed
	mux.HandleFunc("GET /sse", feed.ServeSSE(s.broker))
	mux.HandleFunc("GET /ws", feed.ServeWS(s.broker, s.allowOrigin))
	mux.HandleFunc("GET /api/v1/solar/live", s.handleLive)

	// Prometheus backed
	mux.HandleFunc("GET /site/all", s.handleToday)
	mux.HandleFunc("GET /site/{site}/{period}", s.handleSitePeriod)

	// Registry
	mux.HandleFunc("GET /api/v1/sites", s.handleListSites)

	// Combined solar buffer
	mux.HandleFunc("GET /api/v1/solar/combined", s.handleCombined)
	mux.HandleFunc("POST /api/v1/solar/combined", s.ingest.HandleIngest)
	mux.HandleFunc("GET /api/v1/solar/combined/recent/{offset}", s.handleRecent)
	mux.HandleFunc("PATCH /api/v1/solar/combined/recent/{offset}", s.ingest.HandleEdit)

	// Reference demand
	mux.HandleFunc("GET /api/v1/demand", s.handleDemand)
	mux.HandleFunc("GET /api/v1/demand/curves", s.handleDemandCurves)

	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]bool{"ok": true})
	})
}

// Handler returns every route behind the CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return s.cors(mux)
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.allowOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Helper functions
func writeJSON(w http.ResponseWriter, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		log.Printf("Failed to encode response: %v", err)
		writeError(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(append(body, '\n'))
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}

func getQueryInt(r *http.Request, param string) (int64, bool) {
	val := r.URL.Query().Get(param)
	if val == "" {
		return 0, false
	}
	i, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false
	}
	return i, true
}
