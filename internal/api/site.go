package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/nchanged/gridwatch/internal/solar"
)

// handleToday serves today's combined generation. An empty day is an empty
// object rather than an error.
func (s *Server) handleToday(w http.ResponseWriter, r *http.Request) {
	series, err := s.solar.Today(r.Context(), s.now())
	if err != nil {
		if errors.Is(err, solar.ErrEmptyDataset) {
			writeJSON(w, struct{}{})
			return
		}
		log.Print("Error: ", err)
		writeError(w, "bad query", http.StatusBadGateway)
		return
	}
	writeJSON(w, series)
}

// handleSitePeriod serves one site, or every site for "all", over the
// given number of days. ?fill=true makes outages explicit.
func (s *Server) handleSitePeriod(w http.ResponseWriter, r *http.Request) {
	site := r.PathValue("site")
	if !solar.ValidSiteName(site) {
		log.Print("Error: Bad Route")
		writeError(w, "bad route", http.StatusBadRequest)
		return
	}
	period, err := strconv.Atoi(r.PathValue("period"))
	if err != nil {
		log.Print("Error: ", err)
		writeError(w, "bad period", http.StatusBadRequest)
		return
	}
	fill := r.URL.Query().Get("fill") == "true"
	now := s.now()

	if site == "all" {
		data, err := s.solar.Period(r.Context(), period)
		if err != nil {
			log.Print("Error: ", err)
			writeError(w, "bad query", http.StatusBadGateway)
			return
		}
		if fill {
			for i := range data {
				data[i].Data = solar.FillGaps(data[i].Data, period, now)
			}
		}
		writeJSON(w, data)
		return
	}

	data, err := s.solar.SitePeriod(r.Context(), site, period)
	if err != nil {
		if errors.Is(err, solar.ErrSiteNotFound) {
			writeError(w, err.Error(), http.StatusNotFound)
			return
		}
		log.Print("Error: ", err)
		writeError(w, "bad query", http.StatusBadGateway)
		return
	}
	if fill {
		data.Data = solar.FillGaps(data.Data, period, now)
	}
	writeJSON(w, data)
}
