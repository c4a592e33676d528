package api

import (
	"log"
	"net/http"
	"time"

	"github.com/nchanged/gridwatch/internal/buffer"
	"github.com/nchanged/gridwatch/internal/demand"
)

type DemandResponse struct {
	At        int64   `json:"at"`
	Reference int64   `json:"reference"`
	AverageMW float64 `json:"average_mw"`
}

type CurveResponse struct {
	Name   string          `json:"name"`
	MaxMW  float64         `json:"max_mw"`
	Values []buffer.Sample `json:"values"`
}

// handleDemand reports the average-day demand at ?at= (unix ms), or now.
func (s *Server) handleDemand(w http.ResponseWriter, r *http.Request) {
	at := s.now()
	if raw := r.URL.Query().Get("at"); raw != "" {
		ms, ok := getQueryInt(r, "at")
		if !ok {
			writeError(w, "bad time", http.StatusBadRequest)
			return
		}
		at = time.UnixMilli(ms).In(at.Location())
	}

	mw, err := demand.At(at)
	if err != nil {
		log.Print("Error: ", err)
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, DemandResponse{
		At:        at.UnixMilli(),
		Reference: demand.ReferenceDay(at).UnixMilli(),
		AverageMW: mw,
	})
}

func (s *Server) handleDemandCurves(w http.ResponseWriter, r *http.Request) {
	loc := s.now().Location()
	curves := make([]CurveResponse, 0, len(demand.Names))
	for _, name := range demand.Names {
		c, err := demand.Lookup(name)
		if err != nil {
			log.Print("Error: ", err)
			writeError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		curves = append(curves, CurveResponse{
			Name:   name,
			MaxMW:  c.Max(),
			Values: c.Samples(loc),
		})
	}
	writeJSON(w, curves)
}
