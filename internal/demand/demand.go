// Package demand provides the reference grid-demand curves drawn behind
// the live solar series.
package demand

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nchanged/gridwatch/internal/buffer"
)

//go:embed curves.json
var curvesJSON []byte

const (
	Average     = "average"
	Summer      = "summer"
	Winter      = "winter"
	Highest     = "highest"
	Lowest      = "lowest"
	TwoStdAbove = "two_std_above"
	TwoStdBelow = "two_std_below"
)

// Names lists the embedded curves in legend order.
var Names = []string{Average, Summer, Winter, Lowest, Highest, TwoStdAbove, TwoStdBelow}

// Point is a demand reading in MW at a minute of the day.
type Point struct {
	Minute int
	MW     float64
}

func (p *Point) UnmarshalJSON(b []byte) error {
	var pair [2]float64
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	p.Minute = int(pair[0])
	p.MW = pair[1]
	return nil
}

type Curve struct {
	Name   string
	Points []Point
}

var (
	loadOnce sync.Once
	curves   map[string]Curve
	loadErr  error
)

func load() {
	raw := map[string][]Point{}
	if err := json.Unmarshal(curvesJSON, &raw); err != nil {
		loadErr = fmt.Errorf("decode demand curves: %w", err)
		return
	}
	curves = make(map[string]Curve, len(raw))
	for name, pts := range raw {
		sort.Slice(pts, func(i, j int) bool { return pts[i].Minute < pts[j].Minute })
		curves[name] = Curve{Name: name, Points: pts}
	}
}

// Lookup returns the named reference curve.
func Lookup(name string) (Curve, error) {
	loadOnce.Do(load)
	if loadErr != nil {
		return Curve{}, loadErr
	}
	c, ok := curves[name]
	if !ok {
		return Curve{}, fmt.Errorf("unknown demand curve %q", name)
	}
	return c, nil
}

// ReferenceDay maps t onto the same wall-clock hour and minute of
// 1 Jan 2020, which is the shared x axis of every intraday series.
func ReferenceDay(t time.Time) time.Time {
	return time.Date(2020, time.January, 1, t.Hour(), t.Minute(), 0, 0, t.Location())
}

// Max is the highest reading, floored at 0.
func (c Curve) Max() float64 {
	highest := 0.0
	for _, p := range c.Points {
		highest = max(highest, p.MW)
	}
	return highest
}

// At linearly interpolates the curve at t's minute of the day.
func (c Curve) At(t time.Time) float64 {
	if len(c.Points) == 0 {
		return 0
	}
	minute := t.Hour()*60 + t.Minute()

	idx := sort.Search(len(c.Points), func(i int) bool { return c.Points[i].Minute >= minute })
	switch {
	case idx == 0:
		return c.Points[0].MW
	case idx == len(c.Points):
		return c.Points[len(c.Points)-1].MW
	}

	prev, next := c.Points[idx-1], c.Points[idx]
	span := float64(next.Minute - prev.Minute)
	return prev.MW + float64(minute-prev.Minute)*(next.MW-prev.MW)/span
}

// Samples places the curve on the reference day in loc, x in unix ms.
func (c Curve) Samples(loc *time.Location) []buffer.Sample {
	base := time.Date(2020, time.January, 1, 0, 0, 0, 0, loc)
	out := make([]buffer.Sample, len(c.Points))
	for i, p := range c.Points {
		out[i] = buffer.Sample{
			X: float64(base.Add(time.Duration(p.Minute) * time.Minute).UnixMilli()),
			Y: p.MW,
		}
	}
	return out
}

// At returns the average-day demand in MW at t.
func At(t time.Time) (float64, error) {
	c, err := Lookup(Average)
	if err != nil {
		return 0, err
	}
	return c.At(t), nil
}
