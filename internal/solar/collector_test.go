package solar

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/nchanged/gridwatch/internal/prom"
)

type fakeProm struct {
	vectors  map[string]prom.Vector
	matrices map[string]prom.Matrix
	fail     map[string]error
	queries  []string
	ranges   []prom.Range
}

func newFakeProm() *fakeProm {
	return &fakeProm{
		vectors:  map[string]prom.Vector{},
		matrices: map[string]prom.Matrix{},
		fail:     map[string]error{},
	}
}

func (f *fakeProm) Query(_ context.Context, q string) (prom.Vector, error) {
	f.queries = append(f.queries, q)
	if err := f.fail[q]; err != nil {
		return nil, err
	}
	return f.vectors[q], nil
}

func (f *fakeProm) QueryMatrix(_ context.Context, q string) (prom.Matrix, error) {
	f.queries = append(f.queries, q)
	if err := f.fail[q]; err != nil {
		return nil, err
	}
	return f.matrices[q], nil
}

func (f *fakeProm) QueryRange(_ context.Context, q string, r prom.Range) (prom.Matrix, error) {
	f.queries = append(f.queries, q)
	f.ranges = append(f.ranges, r)
	if err := f.fail[q]; err != nil {
		return nil, err
	}
	return f.matrices[q], nil
}

type fixedCapacity struct {
	kw  float64
	err error
}

func (c fixedCapacity) MonitoredCapacityKW(context.Context) (float64, error) { return c.kw, c.err }

func vec(pairs ...any) prom.Vector {
	var v prom.Vector
	for i := 0; i < len(pairs); i += 2 {
		v = append(v, prom.Sample{
			Metric: prom.Labels{"site": pairs[i].(string)},
			Value:  prom.Point{T: 1, V: pairs[i+1].(float64)},
		})
	}
	return v
}

func summaryProm(now time.Time) *fakeProm {
	f := newFakeProm()
	f.vectors[`delta(total_import{purpose="solar"}[365d])`] = vec("north", 1000.0, "south", 500.0)
	f.vectors[`delta(total_import{purpose="solar"}[7d])`] = vec("south", 70.0, "north", 30.0)
	f.vectors[`delta(total_import{purpose="solar"}[`+sinceMidnight(now)+`])`] = vec("north", 4.0, "east", 6.0)
	f.vectors[`max_over_time(total_act_power{purpose="solar"}[1y])`] = vec("north", 9000.0, "south", 8000.0)
	f.vectors[`total_act_power{purpose="solar"}`] = vec("north", 1500.0, "south", 500.0)
	f.vectors[`sum(last_over_time(total_import{purpose="solar"}[1y]))`] = prom.Vector{{Value: prom.Point{V: 123456}}}
	return f
}

func TestSummary(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC)
	c := NewCollector(summaryProm(now), 40, 20, nil)

	sum, err := c.Summary(context.Background(), now)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}

	names := make([]string, len(sum.Sites))
	for i, s := range sum.Sites {
		names[i] = s.Name
	}
	if got := strings.Join(names, ","); got != "north,south,east,"+VirtualSiteName {
		t.Fatalf("site order=%s", got)
	}

	// factor 40/20 = 2
	virtual := sum.Sites[3]
	if virtual.Snapshot != 4000 || virtual.Today != 20 || virtual.Week != 200 || virtual.Year != 3000 || virtual.Max != 34000 {
		t.Fatalf("virtual site=%+v", virtual)
	}
	if sum.YearKWh != 1500 {
		t.Fatalf("YearKWh=%v, want metered only", sum.YearKWh)
	}
	if sum.WeekKWh != 300 || sum.DayKWh != 30 || sum.CurrentW != 6000 {
		t.Fatalf("totals week=%v day=%v current=%v", sum.WeekKWh, sum.DayKWh, sum.CurrentW)
	}
	if sum.TotalKWh != 123456 {
		t.Fatalf("TotalKWh=%v", sum.TotalKWh)
	}
	if east := sum.Sites[2]; east.Today != 6 || east.Year != 0 {
		t.Fatalf("east=%+v", east)
	}
}

func TestSummaryUsesRecordedCapacity(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC)
	tests := []struct {
		name     string
		capacity CapacitySource
		want     float64
	}{
		{name: "recorded", capacity: fixedCapacity{kw: 80}, want: 1000},
		{name: "nothing recorded", capacity: fixedCapacity{}, want: 4000},
		{name: "lookup error", capacity: fixedCapacity{err: errors.New("locked")}, want: 4000},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := NewCollector(summaryProm(now), 40, 20, tc.capacity)
			sum, err := c.Summary(context.Background(), now)
			if err != nil {
				t.Fatalf("Summary: %v", err)
			}
			if got := sum.Sites[len(sum.Sites)-1].Snapshot; got != tc.want {
				t.Fatalf("virtual snapshot=%v, want %v", got, tc.want)
			}
		})
	}
}

func TestSummaryZeroMonitoredCapacity(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC)
	c := NewCollector(summaryProm(now), 40, 0, nil)
	sum, err := c.Summary(context.Background(), now)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	v := sum.Sites[len(sum.Sites)-1]
	if v.Snapshot != 0 || math.IsNaN(v.Snapshot) || sum.CurrentW != 2000 {
		t.Fatalf("virtual=%+v current=%v", v, sum.CurrentW)
	}
}

func TestSummaryErrors(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC)

	f := summaryProm(now)
	delete(f.vectors, `sum(last_over_time(total_import{purpose="solar"}[1y]))`)
	if _, err := NewCollector(f, 1, 1, nil).Summary(context.Background(), now); !errors.Is(err, ErrEmptyDataset) {
		t.Fatalf("expected ErrEmptyDataset, got %v", err)
	}

	f = summaryProm(now)
	boom := errors.New("boom")
	f.fail[`total_act_power{purpose="solar"}`] = boom
	if _, err := NewCollector(f, 1, 1, nil).Summary(context.Background(), now); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped query error, got %v", err)
	}
}

func TestSinceMidnight(t *testing.T) {
	if got := sinceMidnight(time.Date(2024, 1, 1, 1, 2, 3, 0, time.UTC)); got != "3723s" {
		t.Fatalf("sinceMidnight=%q", got)
	}
	if got := sinceMidnight(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)); got != "1s" {
		t.Fatalf("sinceMidnight at midnight=%q", got)
	}
}

func TestResolution(t *testing.T) {
	tests := []struct {
		days     int
		wantDays int
		want     string
	}{
		{-3, 1, "1m"},
		{0, 1, "1m"},
		{1, 1, "1m"},
		{2, 2, "15m"},
		{7, 7, "15m"},
		{8, 8, "3h"},
		{31, 31, "3h"},
		{32, 32, "24h"},
		{365, 365, "24h"},
	}
	for _, tc := range tests {
		days, res := Resolution(tc.days)
		if days != tc.wantDays || res != tc.want {
			t.Errorf("Resolution(%d)=(%d,%q), want (%d,%q)", tc.days, days, res, tc.wantDays, tc.want)
		}
	}
}

func TestSitePeriod(t *testing.T) {
	f := newFakeProm()
	sel := `{purpose="solar", site="North Farm"}`
	f.vectors[`total_import`+sel] = vec("North Farm", 812.5)
	f.vectors[`total_act_power`+sel] = vec("North Farm", 1200.0)
	f.matrices[`avg_over_time(total_act_power`+sel+`[15m])[7d:15m]`] = prom.Matrix{{
		Metric: prom.Labels{"site": "North Farm"},
		Values: []prom.Point{{T: 100, V: 1}, {T: 1000, V: 2}},
	}}
	f.vectors[`delta(total_import`+sel+`[7d])`] = vec("North Farm", 42.0)

	got, err := NewCollector(f, 0, 0, nil).SitePeriod(context.Background(), "North+Farm", 7)
	if err != nil {
		t.Fatalf("SitePeriod: %v", err)
	}
	if got.Name != "North Farm" || got.Meter != 812.5 || got.Current != 1200 || got.Period != 42 {
		t.Fatalf("SitePeriod=%+v", got)
	}
	if len(got.Data) != 2 {
		t.Fatalf("data=%v", got.Data)
	}
	// max_over_time had no result and reads as zero
	if got.Max != 0 {
		t.Fatalf("Max=%v", got.Max)
	}
}

func TestSitePeriodUnknownSite(t *testing.T) {
	_, err := NewCollector(newFakeProm(), 0, 0, nil).SitePeriod(context.Background(), "ghost", 1)
	if !errors.Is(err, ErrSiteNotFound) {
		t.Fatalf("expected ErrSiteNotFound, got %v", err)
	}
}

func TestPeriod(t *testing.T) {
	f := newFakeProm()
	f.vectors[`last_over_time(total_import{purpose="solar"}[1y])`] = vec("a", 10.0, "b", 20.0)
	f.vectors[`last_over_time(total_act_power{purpose="solar"}[1y])`] = vec("b", 5.0, "zzz", 99.0)
	f.matrices[`avg_over_time(total_act_power{purpose="solar"}[1m])[1d:1m]`] = prom.Matrix{
		{Metric: prom.Labels{"site": "a"}, Values: []prom.Point{{T: 1, V: 1}}},
	}
	f.vectors[`delta(total_import{purpose="solar"}[1d])`] = vec("a", 3.0)
	f.vectors[`max_over_time(total_act_power{purpose="solar"}[1d])`] = vec("a", 7.0, "b", 8.0)

	got, err := NewCollector(f, 0, 0, nil).Period(context.Background(), 0)
	if err != nil {
		t.Fatalf("Period: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len=%d", len(got))
	}
	a, b := got[0], got[1]
	if a.Name != "a" || a.Meter != 10 || a.Period != 3 || a.Max != 7 || len(a.Data) != 1 {
		t.Fatalf("a=%+v", a)
	}
	if b.Name != "b" || b.Current != 5 || b.Max != 8 || b.Data != nil {
		t.Fatalf("b=%+v", b)
	}
}

func TestPeriodNoResults(t *testing.T) {
	if _, err := NewCollector(newFakeProm(), 0, 0, nil).Period(context.Background(), 7); !errors.Is(err, ErrNoResults) {
		t.Fatalf("expected ErrNoResults, got %v", err)
	}
}

func TestToday(t *testing.T) {
	loc := time.FixedZone("test", 2*3600)
	now := time.Date(2024, 6, 1, 9, 45, 0, 0, loc)
	f := newFakeProm()
	q := `sum(avg_over_time(total_act_power{purpose="solar"}[30m]))`
	f.matrices[q] = prom.Matrix{{Values: []prom.Point{{T: 1, V: 2}}}}

	series, err := NewCollector(f, 0, 0, nil).Today(context.Background(), now)
	if err != nil {
		t.Fatalf("Today: %v", err)
	}
	if series.Metric == nil || len(series.Values) != 1 {
		t.Fatalf("series=%+v", series)
	}
	r := f.ranges[0]
	if !r.Start.Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, loc)) || !r.End.Equal(now) || r.Step != 30*time.Minute {
		t.Fatalf("range=%+v", r)
	}

	delete(f.matrices, q)
	if _, err := NewCollector(f, 0, 0, nil).Today(context.Background(), now); !errors.Is(err, ErrEmptyDataset) {
		t.Fatalf("expected ErrEmptyDataset, got %v", err)
	}
}
