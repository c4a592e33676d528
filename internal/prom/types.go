package prom

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

type Labels map[string]string

// Point is one sample: a unix timestamp in seconds and its value.
// Prometheus sends it as [1700000000.123, "42.5"]; it is written back with
// a numeric value so dashboards need no parsing.
type Point struct {
	T float64
	V float64
}

func (p *Point) UnmarshalJSON(b []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("point: %w", err)
	}
	if err := json.Unmarshal(raw[0], &p.T); err != nil {
		return fmt.Errorf("point timestamp: %w", err)
	}

	var s string
	if err := json.Unmarshal(raw[1], &s); err != nil {
		// Some exporters hand out bare numbers.
		return json.Unmarshal(raw[1], &p.V)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("point value %q: %w", s, err)
	}
	p.V = v
	return nil
}

func (p Point) MarshalJSON() ([]byte, error) {
	if math.IsNaN(p.V) || math.IsInf(p.V, 0) {
		return json.Marshal([]any{p.T, nil})
	}
	return json.Marshal([2]float64{p.T, p.V})
}

func (p Point) Time() time.Time {
	sec, frac := math.Modf(p.T)
	return time.Unix(int64(sec), int64(frac*1e9))
}

// Sample is one element of an instant vector.
type Sample struct {
	Metric Labels `json:"metric"`
	Value  Point  `json:"value"`
}

type Vector []Sample

// Series is one element of a range vector.
type Series struct {
	Metric Labels  `json:"metric"`
	Values []Point `json:"values"`
}

type Matrix []Series

// First returns the value of the first sample, or 0 for an empty vector.
func (v Vector) First() float64 {
	if len(v) == 0 {
		return 0
	}
	return v[0].Value.V
}

// BySite indexes the vector by its "site" label.
func (v Vector) BySite() map[string]float64 {
	out := make(map[string]float64, len(v))
	for _, s := range v {
		out[s.Metric["site"]] = s.Value.V
	}
	return out
}
