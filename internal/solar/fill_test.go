package solar

import (
	"testing"
	"time"

	"github.com/nchanged/gridwatch/internal/prom"
)

func TestValidSiteName(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"north", true},
		{"North+Farm", true},
		{"site_2-b", true},
		{"all", true},
		{"", false},
		{"north farm", false},
		{`x"}`, false},
		{"../etc", false},
	}
	for _, tc := range tests {
		if got := ValidSiteName(tc.in); got != tc.want {
			t.Errorf("ValidSiteName(%q)=%v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestFillGapsEmpty(t *testing.T) {
	if got := FillGaps(nil, 1, time.Now()); len(got) != 0 {
		t.Fatalf("FillGaps(nil)=%v", got)
	}
}

func TestFillGapsLeadingZeros(t *testing.T) {
	now := time.Unix(100_000, 0)
	// one day: big gap 600 s, start of period now - (86400 - 120)
	start := float64(100_000 - 86400 + 120)
	points := []prom.Point{{T: 50_000, V: 3}, {T: 50_060, V: 4}}

	got := FillGaps(points, 1, now)
	want := []prom.Point{
		{T: start, V: 0},
		{T: 50_000 - zeroOffset, V: 0},
		{T: 50_000, V: 3},
		{T: 50_060, V: 4},
	}
	assertPoints(t, got, want)
}

func TestFillGapsInnerGap(t *testing.T) {
	now := time.Unix(1_000_000, 0)
	// seven days: big gap 9000 s
	points := []prom.Point{
		{T: 300_000, V: 1},
		{T: 300_900, V: 2},
		{T: 310_000, V: 5},
		{T: 318_000, V: 6},
	}

	got := FillGaps(points, 7, now)
	want := []prom.Point{
		{T: 300_000, V: 1},
		{T: 300_900, V: 2},
		{T: 300_900 + zeroOffset, V: 0},
		{T: 310_000 - zeroOffset, V: 0},
		{T: 310_000, V: 5},
		{T: 318_000, V: 6},
	}
	assertPoints(t, got, want)
}

func TestFillGapsUnknownPeriodUsesDailyGap(t *testing.T) {
	now := time.Unix(10_000_000, 0)
	// 90 days: expected gap 24h, big gap 10 days
	points := []prom.Point{
		{T: 9_000_000, V: 1},
		{T: 9_000_000 + 9*86400, V: 1},
		{T: 9_000_000 + 20*86400, V: 1},
	}
	got := FillGaps(points, 90, now)
	// two leading zeros, three samples, two zeros around the gap
	if len(got) != 7 {
		t.Fatalf("len=%d, want 7: %v", len(got), got)
	}
	if got[4].V != 0 || got[5].V != 0 || got[6].V != 1 {
		t.Fatalf("expected zeros around the 11 day gap: %v", got)
	}
}

func TestExpectedGap(t *testing.T) {
	tests := map[int]time.Duration{
		1:   time.Minute,
		7:   15 * time.Minute,
		31:  3 * time.Hour,
		365: 24 * time.Hour,
		2:   24 * time.Hour,
	}
	for days, want := range tests {
		if got := expectedGap(days); got != want {
			t.Errorf("expectedGap(%d)=%v, want %v", days, got, want)
		}
	}
}

func assertPoints(t *testing.T, got, want []prom.Point) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("len=%d, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if diff := got[i].T - want[i].T; diff > 1e-6 || diff < -1e-6 || got[i].V != want[i].V {
			t.Fatalf("point %d=%+v, want %+v", i, got[i], want[i])
		}
	}
}
