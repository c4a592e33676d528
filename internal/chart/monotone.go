package chart

import (
	"math"
	"sort"
)

type Point struct {
	X float64
	Y float64
}

// Monotone is a monotone cubic interpolation through a set of points with
// strictly increasing X. It never overshoots between two points, so a
// monotone input gives a monotone curve.
type Monotone struct {
	xs, ys []float64
	ms     []float64 // tangent at each point
}

// NewMonotone builds the interpolation. Points are sorted by X and points
// with a repeated X keep only the first occurrence.
func NewMonotone(points []Point) *Monotone {
	pts := make([]Point, len(points))
	copy(pts, points)
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].X < pts[j].X })

	m := &Monotone{}
	for i, p := range pts {
		if i > 0 && p.X == pts[i-1].X {
			continue
		}
		m.xs = append(m.xs, p.X)
		m.ys = append(m.ys, p.Y)
	}

	n := len(m.xs)
	m.ms = make([]float64, n)
	// Two points or fewer: straight lines, chartist draws these unsmoothed.
	if n <= 2 {
		if n == 2 {
			d := (m.ys[1] - m.ys[0]) / (m.xs[1] - m.xs[0])
			m.ms[0], m.ms[1] = d, d
		}
		return m
	}

	ds := make([]float64, n-1)
	dxs := make([]float64, n-1)
	for i := 0; i < n-1; i++ {
		dxs[i] = m.xs[i+1] - m.xs[i]
		ds[i] = (m.ys[i+1] - m.ys[i]) / dxs[i]
	}

	m.ms[0] = ds[0]
	m.ms[n-1] = ds[n-2]
	for i := 1; i < n-1; i++ {
		if ds[i] == 0 || ds[i-1] == 0 || (ds[i-1] > 0) != (ds[i] > 0) {
			m.ms[i] = 0
			continue
		}
		m.ms[i] = 3 * (dxs[i-1] + dxs[i]) /
			((2*dxs[i]+dxs[i-1])/ds[i-1] + (dxs[i]+2*dxs[i-1])/ds[i])
		if math.IsInf(m.ms[i], 0) || math.IsNaN(m.ms[i]) {
			m.ms[i] = 0
		}
	}
	return m
}

func (m *Monotone) Len() int { return len(m.xs) }

// At evaluates the curve at x. Outside the covered range it returns the
// nearest end value; with no points it returns NaN.
func (m *Monotone) At(x float64) float64 {
	n := len(m.xs)
	switch {
	case n == 0:
		return math.NaN()
	case n == 1 || x <= m.xs[0]:
		return m.ys[0]
	case x >= m.xs[n-1]:
		return m.ys[n-1]
	}

	i := sort.SearchFloat64s(m.xs, x)
	if m.xs[i] == x {
		return m.ys[i]
	}
	i-- // segment [i, i+1]

	h := m.xs[i+1] - m.xs[i]
	t := (x - m.xs[i]) / h
	t2, t3 := t*t, t*t*t
	h00 := 2*t3 - 3*t2 + 1
	h10 := t3 - 2*t2 + t
	h01 := -2*t3 + 3*t2
	h11 := t3 - t2
	return h00*m.ys[i] + h10*h*m.ms[i] + h01*m.ys[i+1] + h11*h*m.ms[i+1]
}
