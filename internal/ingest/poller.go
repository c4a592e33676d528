package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nchanged/gridwatch/internal/app"
	"github.com/nchanged/gridwatch/internal/buffer"
	"github.com/nchanged/gridwatch/internal/demand"
	"github.com/nchanged/gridwatch/internal/prom"
	"github.com/nchanged/gridwatch/internal/solar"
	"github.com/nchanged/gridwatch/internal/store"
)

// halfSlot centres a 30 minute average on the middle of its window.
const halfSlot = 15 * time.Minute

// maxQueued bounds the history points held while the cold path is failing.
// A week of one minute polls.
const maxQueued = 7 * 24 * 60

type SummarySource interface {
	Summary(ctx context.Context, now time.Time) (solar.Summary, error)
	Today(ctx context.Context, now time.Time) (prom.Series, error)
}

type Publisher interface {
	Publish(payload []byte)
}

type SiteRecorder interface {
	UpsertSiteSnapshot(ctx context.Context, snap store.SiteSnapshot) (int64, error)
}

// HistoryWriter stores flushed history points.
type HistoryWriter interface {
	BatchInsert(ctx context.Context, points []store.SamplePoint) error
}

// History provides past samples when Prometheus cannot.
type History interface {
	Since(ctx context.Context, series string, from time.Time) ([]store.SamplePoint, error)
}

// Poller is the periodic data-ingestion routine upstream of the combined
// buffer. It fills the buffer from Prometheus, publishes live summaries and
// queues history points for the cold path.
type Poller struct {
	app      *app.Context
	source   SummarySource
	pub      Publisher
	sites    SiteRecorder
	history  History
	interval time.Duration

	mu    sync.Mutex
	queue []store.SamplePoint
}

// NewPoller wires the poller. sites and history may be nil.
func NewPoller(ctx *app.Context, source SummarySource, pub Publisher, sites SiteRecorder, history History, interval time.Duration) *Poller {
	return &Poller{
		app:      ctx,
		source:   source,
		pub:      pub,
		sites:    sites,
		history:  history,
		interval: interval,
	}
}

// Seed loads today's half-hourly averages into the combined buffer and
// stretches the newest one to the middle of the still open window.
func (p *Poller) Seed(ctx context.Context, now time.Time) error {
	series, err := p.source.Today(ctx, now)
	if errors.Is(err, solar.ErrEmptyDataset) {
		log.Println("No generation recorded yet today")
		return nil
	}
	if err != nil {
		if p.seedFromHistory(ctx, now) {
			log.Printf("Seeded from local history, Prometheus unavailable: %v", err)
			return nil
		}
		return fmt.Errorf("seed: %w", err)
	}

	return SeedBuffer(p.app.Combined(), series, now)
}

// SeedBuffer pushes half-hourly averages in W onto rb as MW on the
// reference day, then aligns the newest one.
func SeedBuffer(rb *buffer.RingBuffer, series prom.Series, now time.Time) error {
	samples := make([]buffer.Sample, 0, len(series.Values))
	for _, pt := range series.Values {
		x := demand.ReferenceDay(pt.Time().In(now.Location())).Add(-halfSlot)
		samples = append(samples, buffer.Sample{X: float64(x.UnixMilli()), Y: pt.V / 1e6})
	}
	rb.Push(samples...)

	return alignNewest(rb, now)
}

// alignNewest moves the newest average half way between the end of the
// previous window and now.
func alignNewest(rb *buffer.RingBuffer, now time.Time) error {
	prev, err := rb.Recent(1)
	if errors.Is(err, buffer.ErrOutOfRange) {
		return nil
	}
	if err != nil {
		return err
	}
	zero := prev.X + float64(halfSlot.Milliseconds())
	refNow := float64(demand.ReferenceDay(now).UnixMilli())
	return rb.EditRecent(0, buffer.EditX(zero+(refNow-zero)/2))
}

func (p *Poller) seedFromHistory(ctx context.Context, now time.Time) bool {
	if p.history == nil {
		return false
	}
	points, err := p.history.Since(ctx, store.SeriesCombinedW, p.app.Day())
	if err != nil {
		log.Printf("Failed to read local history: %v", err)
		return false
	}
	if len(points) == 0 {
		return false
	}
	samples := make([]buffer.Sample, len(points))
	for i, pt := range points {
		x := demand.ReferenceDay(pt.Time.In(now.Location()))
		samples[i] = buffer.Sample{X: float64(x.UnixMilli()), Y: pt.Value / 1e6}
	}
	p.app.Combined().Push(samples...)
	return true
}

// Tick runs one poll: roll the buffer over on a new day, fetch and publish
// the summary, then record it.
func (p *Poller) Tick(ctx context.Context, now time.Time) error {
	if p.app.Rollover(now) {
		log.Println("New day, reseeding combined buffer")
		if err := p.Seed(ctx, now); err != nil {
			log.Printf("Reseed failed: %v", err)
		}
	}

	sum, err := p.source.Summary(ctx, now)
	if err != nil {
		return fmt.Errorf("summary: %w", err)
	}
	payload, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	p.pub.Publish(payload)

	p.app.Combined().Push(buffer.Sample{
		X: float64(demand.ReferenceDay(now).UnixMilli()),
		Y: sum.CurrentW / 1e6,
	})

	if p.sites != nil {
		for _, s := range sum.Sites {
			if s.Name == solar.VirtualSiteName {
				continue
			}
			snap := store.SiteSnapshot{
				Name:      s.Name,
				SnapshotW: s.Snapshot,
				TodayKWh:  s.Today,
				WeekKWh:   s.Week,
				YearKWh:   s.Year,
				MaxW:      s.Max,
			}
			if _, err := p.sites.UpsertSiteSnapshot(ctx, snap); err != nil {
				log.Printf("Failed to record site %s: %v", s.Name, err)
			}
		}
	}

	p.enqueue(store.SamplePoint{Time: now, Series: store.SeriesCombinedW, Value: sum.CurrentW})
	return nil
}

// enqueue appends to the history queue, dropping the oldest points past
// maxQueued.
func (p *Poller) enqueue(points ...store.SamplePoint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = append(p.queue, points...)
	if over := len(p.queue) - maxQueued; over > 0 {
		log.Printf("History queue full, dropping %d oldest samples", over)
		p.queue = append([]store.SamplePoint(nil), p.queue[over:]...)
	}
}

// Flush hands over the queued history points and empties the queue.
func (p *Poller) Flush() []store.SamplePoint {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.queue
	p.queue = nil
	return out
}

// Requeue puts points that could not be stored back in front of the queue.
func (p *Poller) Requeue(points []store.SamplePoint) {
	if len(points) == 0 {
		return
	}
	p.mu.Lock()
	pending := p.queue
	p.queue = nil
	p.mu.Unlock()
	p.enqueue(append(append([]store.SamplePoint(nil), points...), pending...)...)
}

// FlushTo writes the queued points to w. On failure the points are queued
// again for the next attempt.
func (p *Poller) FlushTo(ctx context.Context, w HistoryWriter) (int, error) {
	data := p.Flush()
	if len(data) == 0 {
		return 0, nil
	}
	if err := w.BatchInsert(ctx, data); err != nil {
		p.Requeue(data)
		return 0, fmt.Errorf("store %d samples: %w", len(data), err)
	}
	return len(data), nil
}

// Run seeds the buffer, ticks once, then ticks on every interval until ctx
// is done.
func (p *Poller) Run(ctx context.Context) {
	if err := p.Seed(ctx, time.Now()); err != nil {
		log.Printf("Initial seed failed: %v", err)
	}
	if err := p.Tick(ctx, time.Now()); err != nil {
		log.Printf("Poll failed: %v", err)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := p.Tick(ctx, now); err != nil {
				log.Printf("Poll failed: %v", err)
			}
		}
	}
}
