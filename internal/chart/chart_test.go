package chart

import (
	"math"
	"reflect"
	"testing"
)

func TestNiceMax(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{0.93, 0.95},
		{1, 1},
		{1.1, 1.25},
		{-1.1, -1.25},
		{3.7, 3.75},
		{420, 425},
		{0.0123, 0.0125},
	}
	for _, tc := range tests {
		got := NiceMax(tc.in)
		if math.Abs(got-tc.want) > 1e-12 {
			t.Errorf("NiceMax(%v)=%v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestFindHighLow(t *testing.T) {
	zero := 0.0
	tests := []struct {
		name      string
		values    []float64
		reference *float64
		want      HighLow
	}{
		{name: "plain", values: []float64{3, -1, 2}, want: HighLow{High: 3, Low: -1}},
		{name: "all zero", values: []float64{0, 0}, want: HighLow{High: 1, Low: 0}},
		{name: "single negative", values: []float64{-2}, want: HighLow{High: 0, Low: -2}},
		{name: "single positive", values: []float64{5}, want: HighLow{High: 5, Low: 0}},
		{name: "reference", values: []float64{2, 4}, reference: &zero, want: HighLow{High: 4, Low: 0}},
		{name: "skips NaN", values: []float64{math.NaN(), 1, 2}, want: HighLow{High: 2, Low: 1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := FindHighLow(tc.values, tc.reference)
			if got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestGetBounds(t *testing.T) {
	b, err := GetBounds(300, HighLow{High: 10, Low: 0}, 20, false)
	if err != nil {
		t.Fatalf("GetBounds: %v", err)
	}
	if b.Step != 1.25 {
		t.Fatalf("Step=%v, want 1.25", b.Step)
	}
	want := []float64{0, 1.25, 2.5, 3.75, 5, 6.25, 7.5, 8.75, 10}
	if !reflect.DeepEqual(b.Values, want) {
		t.Fatalf("Values=%v, want %v", b.Values, want)
	}

	b, err = GetBounds(300, HighLow{High: 10, Low: 0}, 20, true)
	if err != nil {
		t.Fatalf("GetBounds: %v", err)
	}
	if b.Step != 1 || len(b.Values) != 11 {
		t.Fatalf("integer bounds: step=%v values=%v", b.Step, b.Values)
	}
}

func TestGetBoundsScalesUpOnShortAxis(t *testing.T) {
	b, err := GetBounds(40, HighLow{High: 3.2, Low: 0}, 20, false)
	if err != nil {
		t.Fatalf("GetBounds: %v", err)
	}
	if b.Step != 4 {
		t.Fatalf("Step=%v, want 4", b.Step)
	}
	if b.Min != 0 || b.Max != 4 {
		t.Fatalf("Min=%v Max=%v, want 0 and 4", b.Min, b.Max)
	}
	if got := b.Project(40, 2); got != 20 {
		t.Fatalf("Project(2)=%v, want 20", got)
	}
}

func TestRho(t *testing.T) {
	tests := []struct{ n, want int64 }{
		{1, 1}, {2, 2}, {12, 2}, {15, 3}, {49, 7}, {13, 13},
	}
	for _, tc := range tests {
		if got := rho(tc.n); got != tc.want {
			t.Errorf("rho(%d)=%d, want %d", tc.n, got, tc.want)
		}
	}
}

func TestMonotonePassesThroughPoints(t *testing.T) {
	pts := []Point{{0, 1}, {1, 3}, {2, 2}, {4, 2}, {5, 6}}
	m := NewMonotone(pts)
	for _, p := range pts {
		if got := m.At(p.X); math.Abs(got-p.Y) > 1e-12 {
			t.Fatalf("At(%v)=%v, want %v", p.X, got, p.Y)
		}
	}
	if got := m.At(-5); got != 1 {
		t.Fatalf("At before start=%v, want 1", got)
	}
	if got := m.At(50); got != 6 {
		t.Fatalf("At after end=%v, want 6", got)
	}
}

func TestMonotoneDoesNotOvershoot(t *testing.T) {
	pts := []Point{{0, 0}, {1, 0.1}, {2, 5}, {3, 5.2}, {4, 9}}
	m := NewMonotone(pts)
	prev := m.At(0)
	for x := 0.05; x <= 4; x += 0.05 {
		y := m.At(x)
		if y < prev-1e-9 {
			t.Fatalf("curve decreased at x=%v: %v < %v", x, y, prev)
		}
		prev = y
	}

	// Flat stretch stays flat.
	flat := NewMonotone([]Point{{0, 1}, {1, 2}, {2, 2}, {3, 1}})
	if y := flat.At(1.5); y != 2 {
		t.Fatalf("flat segment At(1.5)=%v, want 2", y)
	}
}

func TestMonotoneSortsAndDedupes(t *testing.T) {
	m := NewMonotone([]Point{{2, 4}, {0, 0}, {1, 2}, {1, 9}})
	if m.Len() != 3 {
		t.Fatalf("Len()=%d, want 3", m.Len())
	}
	if got := m.At(1); got != 2 {
		t.Fatalf("At(1)=%v, want 2", got)
	}
}

func TestMonotoneDegenerate(t *testing.T) {
	if y := NewMonotone(nil).At(1); !math.IsNaN(y) {
		t.Fatalf("empty At=%v, want NaN", y)
	}
	line := NewMonotone([]Point{{0, 0}, {2, 4}})
	if y := line.At(1); y != 2 {
		t.Fatalf("two-point At(1)=%v, want 2", y)
	}
}
