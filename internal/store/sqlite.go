package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteStore struct {
	db *sql.DB
}

// Site is a row of the site registry. Generation figures are the latest
// snapshot seen from Prometheus; capacity comes from the site inventory.
type Site struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Namespace  string    `json:"namespace,omitempty"`
	CapacityKW float64   `json:"capacity_kw"`
	SnapshotW  float64   `json:"snapshot_w"`
	TodayKWh   float64   `json:"today_kwh"`
	WeekKWh    float64   `json:"week_kwh"`
	YearKWh    float64   `json:"year_kwh"`
	MaxW       float64   `json:"max_w"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// SiteSnapshot is the generation part of a site row.
type SiteSnapshot struct {
	Name      string
	SnapshotW float64
	TodayKWh  float64
	WeekKWh   float64
	YearKWh   float64
	MaxW      float64
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	// Enable FK
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}

	if err := initSchema(db); err != nil {
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schemas := []string{
		`CREATE TABLE IF NOT EXISTS namespaces (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT UNIQUE NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS sites (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT UNIQUE NOT NULL,
            namespace_id INTEGER,
            capacity_kw REAL NOT NULL DEFAULT 0,
            snapshot_w REAL NOT NULL DEFAULT 0,
            today_kwh REAL NOT NULL DEFAULT 0,
            week_kwh REAL NOT NULL DEFAULT 0,
            year_kwh REAL NOT NULL DEFAULT 0,
            max_w REAL NOT NULL DEFAULT 0,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            FOREIGN KEY(namespace_id) REFERENCES namespaces(id)
        );`,
		`CREATE INDEX IF NOT EXISTS idx_sites_name ON sites(name);`,
	}

	for _, q := range schemas {
		if _, err := db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Upserts ---

func (s *SQLiteStore) UpsertNamespace(ctx context.Context, name string) (int64, error) {
	query := `INSERT INTO namespaces (name) VALUES (?)
              ON CONFLICT(name) DO UPDATE SET name=name RETURNING id`
	var id int64
	err := s.db.QueryRowContext(ctx, query, name).Scan(&id)
	return id, err
}

// UpsertSiteSnapshot records the latest generation figures for a site and
// leaves its capacity alone.
func (s *SQLiteStore) UpsertSiteSnapshot(ctx context.Context, snap SiteSnapshot) (int64, error) {
	query := `
    INSERT INTO sites (name, snapshot_w, today_kwh, week_kwh, year_kwh, max_w, updated_at)
    VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
    ON CONFLICT(name) DO UPDATE SET
        snapshot_w = excluded.snapshot_w,
        today_kwh = excluded.today_kwh,
        week_kwh = excluded.week_kwh,
        year_kwh = excluded.year_kwh,
        max_w = excluded.max_w,
        updated_at = CURRENT_TIMESTAMP
    RETURNING id;
    `
	var id int64
	err := s.db.QueryRowContext(ctx, query, snap.Name, snap.SnapshotW, snap.TodayKWh, snap.WeekKWh, snap.YearKWh, snap.MaxW).Scan(&id)
	return id, err
}

// SetSiteCapacity records a site's declared capacity. nsID is nil for
// sites not backed by a namespaced object.
func (s *SQLiteStore) SetSiteCapacity(ctx context.Context, name string, capacityKW float64, nsID *int64) (int64, error) {
	query := `
    INSERT INTO sites (name, capacity_kw, namespace_id, updated_at)
    VALUES (?, ?, ?, CURRENT_TIMESTAMP)
    ON CONFLICT(name) DO UPDATE SET
        capacity_kw = excluded.capacity_kw,
        namespace_id = excluded.namespace_id,
        updated_at = CURRENT_TIMESTAMP
    RETURNING id;
    `
	var id int64
	err := s.db.QueryRowContext(ctx, query, name, capacityKW, nsID).Scan(&id)
	return id, err
}

// ListSites returns the registry ordered by name.
func (s *SQLiteStore) ListSites(ctx context.Context) ([]Site, error) {
	query := `
    SELECT s.id, s.name, COALESCE(n.name, ''), s.capacity_kw, s.snapshot_w,
           s.today_kwh, s.week_kwh, s.year_kwh, s.max_w, s.updated_at
    FROM sites s
    LEFT JOIN namespaces n ON n.id = s.namespace_id
    ORDER BY s.name
    `
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sites := []Site{}
	for rows.Next() {
		var site Site
		if err := rows.Scan(&site.ID, &site.Name, &site.Namespace, &site.CapacityKW, &site.SnapshotW,
			&site.TodayKWh, &site.WeekKWh, &site.YearKWh, &site.MaxW, &site.UpdatedAt); err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

// MonitoredCapacityKW sums the positive capacities in the registry.
func (s *SQLiteStore) MonitoredCapacityKW(ctx context.Context) (float64, error) {
	var total float64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(capacity_kw), 0) FROM sites WHERE capacity_kw > 0`).Scan(&total)
	return total, err
}
