package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/nchanged/gridwatch/internal/buffer"
	"github.com/nchanged/gridwatch/internal/chart"
)

// CombinedResponse is the combined solar series ready for plotting.
type CombinedResponse struct {
	Values   []buffer.Sample `json:"values"`
	HighestY number          `json:"highest_y"`
	AxisMax  number          `json:"axis_max"`
	Count    int             `json:"count"`
	Capacity int             `json:"capacity"`
}

// number is a float written as null when it is NaN or infinite.
type number float64

func (n number) MarshalJSON() ([]byte, error) {
	v := float64(n)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

func (s *Server) handleCombined(w http.ResponseWriter, r *http.Request) {
	scale := 1.0
	if raw := r.URL.Query().Get("scale"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			writeError(w, "bad scale", http.StatusBadRequest)
			return
		}
		scale = v
	}

	rb := s.app.Combined()
	highest := rb.HighestY() * scale
	writeJSON(w, CombinedResponse{
		Values:   rb.ScaledValues(scale),
		HighestY: number(highest),
		AxisMax:  number(chart.NiceMax(highest)),
		Count:    rb.Len(),
		Capacity: s.app.Capacity(),
	})
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	offset, err := strconv.Atoi(r.PathValue("offset"))
	if err != nil {
		writeError(w, "bad offset", http.StatusBadRequest)
		return
	}
	sample, err := s.app.Combined().Recent(offset)
	if err != nil {
		if errors.Is(err, buffer.ErrOutOfRange) {
			writeError(w, err.Error(), http.StatusNotFound)
			return
		}
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, sample)
}
