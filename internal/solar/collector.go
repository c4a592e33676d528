// Package solar turns Prometheus solar meter data into dashboard summaries.
package solar

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nchanged/gridwatch/internal/prom"
)

const (
	energyMetricName = "total_import"
	powerMetricName  = "total_act_power"
	solarSelector    = `purpose="solar"`

	energyMetric = energyMetricName + "{" + solarSelector + "}"
	powerMetric  = powerMetricName + "{" + solarSelector + "}"

	// VirtualSiteName labels the estimate for installations without a meter.
	VirtualSiteName = "Unmonitored (estimated)"
)

var (
	ErrSiteNotFound = errors.New("site not found")
	ErrNoResults    = errors.New("no results found")
	ErrEmptyDataset = errors.New("empty dataset")
)

// Querier is the subset of the Prometheus client the collector needs.
type Querier interface {
	Query(ctx context.Context, query string) (prom.Vector, error)
	QueryMatrix(ctx context.Context, query string) (prom.Matrix, error)
	QueryRange(ctx context.Context, query string, r prom.Range) (prom.Matrix, error)
}

// CapacitySource reports the total declared capacity of monitored sites.
type CapacitySource interface {
	MonitoredCapacityKW(ctx context.Context) (float64, error)
}

type Collector struct {
	prom        Querier
	capacity    CapacitySource
	estimatedKW float64
	monitoredKW float64
}

// NewCollector builds a collector. capacity may be nil, in which case the
// configured monitoredKW is always used.
func NewCollector(q Querier, estimatedKW, monitoredKW float64, capacity CapacitySource) *Collector {
	return &Collector{
		prom:        q,
		capacity:    capacity,
		estimatedKW: estimatedKW,
		monitoredKW: monitoredKW,
	}
}

type Site struct {
	Name     string  `json:"name"`
	Snapshot float64 `json:"snapshot"`
	Today    float64 `json:"today"`
	Week     float64 `json:"week"`
	Year     float64 `json:"year"`
	Max      float64 `json:"max"`
}

// Summary is the payload pushed to live subscribers. Energy is in kWh,
// power in W.
type Summary struct {
	TotalKWh float64 `json:"total_kwh"`
	DayKWh   float64 `json:"day_kwh"`
	WeekKWh  float64 `json:"week_kwh"`
	YearKWh  float64 `json:"year_kwh"`
	CurrentW float64 `json:"current_w"`
	Sites    []Site  `json:"sites"`
}

// siteSet keeps sites in first-seen order.
type siteSet struct {
	sites []Site
	index map[string]int
}

func (s *siteSet) get(name string) *Site {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	i, ok := s.index[name]
	if !ok {
		i = len(s.sites)
		s.index[name] = i
		s.sites = append(s.sites, Site{Name: name})
	}
	return &s.sites[i]
}

// merge assigns each sample to its site and returns the sum of the values.
func (s *siteSet) merge(v prom.Vector, set func(*Site, float64)) float64 {
	var total float64
	for _, sample := range v {
		set(s.get(sample.Metric["site"]), sample.Value.V)
		total += sample.Value.V
	}
	return total
}

func (c *Collector) Summary(ctx context.Context, now time.Time) (Summary, error) {
	var sum Summary
	var set siteSet

	year, err := c.prom.Query(ctx, delta(energyMetric, "365d"))
	if err != nil {
		return Summary{}, fmt.Errorf("year delta: %w", err)
	}
	sum.YearKWh = set.merge(year, func(s *Site, v float64) { s.Year = v })

	week, err := c.prom.Query(ctx, delta(energyMetric, "7d"))
	if err != nil {
		return Summary{}, fmt.Errorf("week delta: %w", err)
	}
	sum.WeekKWh = set.merge(week, func(s *Site, v float64) { s.Week = v })

	day, err := c.prom.Query(ctx, delta(energyMetric, sinceMidnight(now)))
	if err != nil {
		return Summary{}, fmt.Errorf("day delta: %w", err)
	}
	sum.DayKWh = set.merge(day, func(s *Site, v float64) { s.Today = v })

	peaks, err := c.prom.Query(ctx, fmt.Sprintf("max_over_time(%s[1y])", powerMetric))
	if err != nil {
		return Summary{}, fmt.Errorf("max power: %w", err)
	}
	set.merge(peaks, func(s *Site, v float64) { s.Max = v })

	current, err := c.prom.Query(ctx, powerMetric)
	if err != nil {
		return Summary{}, fmt.Errorf("current power: %w", err)
	}
	sum.CurrentW = set.merge(current, func(s *Site, v float64) { s.Snapshot = v })

	allTime, err := c.prom.Query(ctx, fmt.Sprintf("sum(last_over_time(%s[1y]))", energyMetric))
	if err != nil {
		return Summary{}, fmt.Errorf("all time total: %w", err)
	}
	if len(allTime) == 0 {
		return Summary{}, fmt.Errorf("all time total: %w", ErrEmptyDataset)
	}
	sum.TotalKWh = allTime.First()

	virtual := Site{Name: VirtualSiteName}
	for _, s := range set.sites {
		virtual.Snapshot += s.Snapshot
		virtual.Today += s.Today
		virtual.Week += s.Week
		virtual.Year += s.Year
		virtual.Max += s.Max
	}
	factor := c.scaleFactor(ctx)
	virtual.Snapshot *= factor
	virtual.Today *= factor
	virtual.Week *= factor
	virtual.Year *= factor
	virtual.Max *= factor

	// The year total stays metered only.
	sum.WeekKWh += virtual.Week
	sum.DayKWh += virtual.Today
	sum.CurrentW += virtual.Snapshot
	sum.Sites = append(set.sites, virtual)
	return sum, nil
}

// scaleFactor is estimated/monitored capacity, preferring the capacity
// recorded for known sites over the configured figure.
func (c *Collector) scaleFactor(ctx context.Context) float64 {
	monitored := c.monitoredKW
	if c.capacity != nil {
		kw, err := c.capacity.MonitoredCapacityKW(ctx)
		if err != nil {
			log.Printf("Monitored capacity lookup failed, using configured %v kW: %v", monitored, err)
		} else if kw > 0 {
			monitored = kw
		}
	}
	if monitored <= 0 {
		return 0
	}
	return c.estimatedKW / monitored
}

// SitePeriod is per-site data over a number of days. Data holds average
// power samples at the period's resolution.
type SitePeriod struct {
	Name    string       `json:"name"`
	Meter   float64      `json:"meter"`
	Current float64      `json:"current"`
	Period  float64      `json:"generation_in_period"`
	Max     float64      `json:"max"`
	Data    []prom.Point `json:"data"`
}

// Resolution returns the normalised day count and the sampling step used
// for a period of that length.
func Resolution(days int) (int, string) {
	if days < 1 {
		days = 1
	}
	switch {
	case days <= 1:
		return days, "1m"
	case days <= 7:
		return days, "15m"
	case days <= 31:
		return days, "3h"
	default:
		return days, "24h"
	}
}

// SitePeriod fetches one site's data. A "+" in site stands for a space.
func (c *Collector) SitePeriod(ctx context.Context, site string, days int) (SitePeriod, error) {
	out := SitePeriod{Name: strings.ReplaceAll(site, "+", " ")}
	if out.Name == "" {
		return out, errors.New("site name is required")
	}
	days, res := Resolution(days)
	sel := fmt.Sprintf(`{%s, site=%q}`, solarSelector, out.Name)

	meter, err := c.prom.Query(ctx, energyMetricName+sel)
	if err != nil {
		return out, fmt.Errorf("meter reading: %w", err)
	}
	if len(meter) == 0 {
		return out, fmt.Errorf("%w: %s", ErrSiteNotFound, out.Name)
	}
	out.Meter = meter.First()

	current, err := c.prom.Query(ctx, powerMetricName+sel)
	if err != nil {
		return out, fmt.Errorf("current power: %w", err)
	}
	out.Current = current.First()

	data, err := c.prom.QueryMatrix(ctx, fmt.Sprintf("avg_over_time(%s%s[%s])[%dd:%s]", powerMetricName, sel, res, days, res))
	if err != nil {
		return out, fmt.Errorf("average power series: %w", err)
	}
	if len(data) > 0 {
		out.Data = data[0].Values
	}

	period, err := c.prom.Query(ctx, fmt.Sprintf("delta(%s%s[%dd])", energyMetricName, sel, days))
	if err != nil {
		return out, fmt.Errorf("period delta: %w", err)
	}
	out.Period = period.First()

	peak, err := c.prom.Query(ctx, fmt.Sprintf("max_over_time(%s%s[%dd])", powerMetricName, sel, days))
	if err != nil {
		return out, fmt.Errorf("period max: %w", err)
	}
	out.Max = peak.First()
	return out, nil
}

// Period fetches every site's data, in the order the meter query lists them.
func (c *Collector) Period(ctx context.Context, days int) ([]SitePeriod, error) {
	days, res := Resolution(days)

	meter, err := c.prom.Query(ctx, fmt.Sprintf("last_over_time(%s[1y])", energyMetric))
	if err != nil {
		return nil, fmt.Errorf("meter readings: %w", err)
	}
	if len(meter) == 0 {
		return nil, ErrNoResults
	}
	out := make([]SitePeriod, 0, len(meter))
	index := make(map[string]int, len(meter))
	for _, s := range meter {
		name := s.Metric["site"]
		index[name] = len(out)
		out = append(out, SitePeriod{Name: name, Meter: s.Value.V})
	}
	assign := func(v prom.Vector, set func(*SitePeriod, float64)) {
		for name, value := range v.BySite() {
			if i, ok := index[name]; ok {
				set(&out[i], value)
			}
		}
	}

	current, err := c.prom.Query(ctx, fmt.Sprintf("last_over_time(%s[1y])", powerMetric))
	if err != nil {
		return out, fmt.Errorf("current power: %w", err)
	}
	assign(current, func(p *SitePeriod, v float64) { p.Current = v })

	data, err := c.prom.QueryMatrix(ctx, fmt.Sprintf("avg_over_time(%s[%s])[%dd:%s]", powerMetric, res, days, res))
	if err != nil {
		return out, fmt.Errorf("average power series: %w", err)
	}
	for _, series := range data {
		if i, ok := index[series.Metric["site"]]; ok {
			out[i].Data = series.Values
		}
	}

	period, err := c.prom.Query(ctx, delta(energyMetric, fmt.Sprintf("%dd", days)))
	if err != nil {
		return out, fmt.Errorf("period delta: %w", err)
	}
	assign(period, func(p *SitePeriod, v float64) { p.Period = v })

	peak, err := c.prom.Query(ctx, fmt.Sprintf("max_over_time(%s[%dd])", powerMetric, days))
	if err != nil {
		return out, fmt.Errorf("period max: %w", err)
	}
	assign(peak, func(p *SitePeriod, v float64) { p.Max = v })
	return out, nil
}

// Today returns the combined 30 minute average power from local midnight
// until now.
func (c *Collector) Today(ctx context.Context, now time.Time) (prom.Series, error) {
	query := fmt.Sprintf("sum(avg_over_time(%s[30m]))", powerMetric)
	y, m, d := now.Date()
	r := prom.Range{
		Start: time.Date(y, m, d, 0, 0, 0, 0, now.Location()),
		End:   now,
		Step:  30 * time.Minute,
	}
	matrix, err := c.prom.QueryRange(ctx, query, r)
	if err != nil {
		return prom.Series{}, fmt.Errorf("today's generation: %w", err)
	}
	if len(matrix) == 0 {
		return prom.Series{}, fmt.Errorf("%w for query: %s", ErrEmptyDataset, query)
	}
	series := matrix[0]
	if series.Metric == nil {
		series.Metric = prom.Labels{}
	}
	return series, nil
}

func delta(metric, window string) string {
	return fmt.Sprintf("delta(%s[%s])", metric, window)
}

// sinceMidnight is the PromQL window covering the local day so far. A zero
// window is not valid PromQL, so it is at least one second.
func sinceMidnight(now time.Time) string {
	secs := now.Hour()*3600 + now.Minute()*60 + now.Second()
	if secs < 1 {
		secs = 1
	}
	return fmt.Sprintf("%ds", secs)
}
