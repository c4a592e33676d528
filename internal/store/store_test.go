package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "meta.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSiteSnapshotKeepsCapacity(t *testing.T) {
	ctx := context.Background()
	s := newSQLite(t)

	nsID, err := s.UpsertNamespace(ctx, "solar")
	if err != nil {
		t.Fatalf("UpsertNamespace: %v", err)
	}
	again, err := s.UpsertNamespace(ctx, "solar")
	if err != nil || again != nsID {
		t.Fatalf("UpsertNamespace again=%d,%v want %d", again, err, nsID)
	}

	id, err := s.SetSiteCapacity(ctx, "North Farm", 12.5, &nsID)
	if err != nil {
		t.Fatalf("SetSiteCapacity: %v", err)
	}
	snapID, err := s.UpsertSiteSnapshot(ctx, SiteSnapshot{Name: "North Farm", SnapshotW: 900, TodayKWh: 3, MaxW: 1200})
	if err != nil {
		t.Fatalf("UpsertSiteSnapshot: %v", err)
	}
	if snapID != id {
		t.Fatalf("snapshot id=%d, want %d", snapID, id)
	}

	sites, err := s.ListSites(ctx)
	if err != nil {
		t.Fatalf("ListSites: %v", err)
	}
	if len(sites) != 1 {
		t.Fatalf("len=%d", len(sites))
	}
	got := sites[0]
	if got.CapacityKW != 12.5 || got.SnapshotW != 900 || got.TodayKWh != 3 || got.MaxW != 1200 || got.Namespace != "solar" {
		t.Fatalf("site=%+v", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Fatal("UpdatedAt not set")
	}
}

func TestMonitoredCapacity(t *testing.T) {
	ctx := context.Background()
	s := newSQLite(t)

	total, err := s.MonitoredCapacityKW(ctx)
	if err != nil || total != 0 {
		t.Fatalf("empty registry total=%v err=%v", total, err)
	}

	for name, kw := range map[string]float64{"a": 10, "b": 5.5, "c": 0} {
		if _, err := s.SetSiteCapacity(ctx, name, kw, nil); err != nil {
			t.Fatalf("SetSiteCapacity(%s): %v", name, err)
		}
	}
	if _, err := s.UpsertSiteSnapshot(ctx, SiteSnapshot{Name: "d", SnapshotW: 50}); err != nil {
		t.Fatal(err)
	}

	total, err = s.MonitoredCapacityKW(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if total != 15.5 {
		t.Fatalf("total=%v, want 15.5", total)
	}

	// reset on delete
	if _, err := s.SetSiteCapacity(ctx, "a", 0, nil); err != nil {
		t.Fatal(err)
	}
	if total, _ = s.MonitoredCapacityKW(ctx); total != 5.5 {
		t.Fatalf("total after reset=%v", total)
	}

	sites, err := s.ListSites(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(sites) != 4 || sites[0].Name != "a" || sites[3].Name != "d" {
		t.Fatalf("sites=%+v", sites)
	}
}

func TestDuckDBHistory(t *testing.T) {
	ctx := context.Background()
	s, err := NewDuckDBStore(filepath.Join(t.TempDir(), "history.duckdb"))
	if err != nil {
		t.Fatalf("NewDuckDBStore: %v", err)
	}
	defer s.Close()

	if err := s.BatchInsert(ctx, nil); err != nil {
		t.Fatalf("empty BatchInsert: %v", err)
	}

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	points := []SamplePoint{
		{Time: base.Add(2 * time.Minute), Series: SeriesCombinedW, Value: 3},
		{Time: base, Series: SeriesCombinedW, Value: 1},
		{Time: base.Add(time.Minute), Series: SeriesCombinedW, Value: 2},
		{Time: base.Add(time.Minute), Series: "other", Value: 99},
		{Time: base.Add(-time.Hour), Series: SeriesCombinedW, Value: -1},
	}
	if err := s.BatchInsert(ctx, points); err != nil {
		t.Fatalf("BatchInsert: %v", err)
	}

	got, err := s.Since(ctx, SeriesCombinedW, base)
	if err != nil {
		t.Fatalf("Since: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len=%d: %+v", len(got), got)
	}
	for i, want := range []float64{1, 2, 3} {
		if got[i].Value != want {
			t.Fatalf("point %d=%+v, want value %v", i, got[i], want)
		}
	}
	if !got[0].Time.Equal(base) {
		t.Fatalf("time=%v, want %v", got[0].Time, base)
	}
}
