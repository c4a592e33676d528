package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/marcboeker/go-duckdb"
)

// Series names used in the history table.
const (
	SeriesCombinedW = "combined_w"
)

type DuckDBStore struct {
	db *sql.DB
}

type SamplePoint struct {
	Time   time.Time
	Series string
	Value  float64
}

func NewDuckDBStore(path string) (*DuckDBStore, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, err
	}

	if err := initDuckDBSchema(db); err != nil {
		return nil, err
	}

	return &DuckDBStore{db: db}, nil
}

func initDuckDBSchema(db *sql.DB) error {
	query := `
    CREATE TABLE IF NOT EXISTS samples (
        time TIMESTAMPTZ NOT NULL,
        series TEXT NOT NULL,
        value DOUBLE NOT NULL
    );
    `
	_, err := db.Exec(query)
	return err
}

func (s *DuckDBStore) Close() error {
	return s.db.Close()
}

func (s *DuckDBStore) BatchInsert(ctx context.Context, points []SamplePoint) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO samples (time, series, value) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.ExecContext(ctx, p.Time, p.Series, p.Value); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Since returns the points of one series recorded at or after from, oldest
// first.
func (s *DuckDBStore) Since(ctx context.Context, series string, from time.Time) ([]SamplePoint, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT time, series, value FROM samples WHERE series = ? AND time >= ? ORDER BY time",
		series, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []SamplePoint
	for rows.Next() {
		var p SamplePoint
		if err := rows.Scan(&p.Time, &p.Series, &p.Value); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}
