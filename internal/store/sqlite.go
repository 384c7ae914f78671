// Package store persists extracted points to a local SQLite database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ppiankov/geotrail/internal/model"

	_ "modernc.org/sqlite"
)

// Source identifies the export a batch of points came from
type Source struct {
	Path         string
	SHA256       string
	PrivacyLevel string
}

// SQLiteStore writes points into a SQLite file. Each SavePoints call
// replaces the points previously stored for the same export hash.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at path
func Open(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection avoids SQLITE_BUSY between our own writers
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, path: path}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS sources (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			path TEXT NOT NULL,
			sha256 TEXT NOT NULL UNIQUE,
			privacy_level TEXT NOT NULL,
			imported_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS points (
			source_id INTEGER NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			lat REAL NOT NULL,
			lng REAL NOT NULL,
			ts INTEGER NOT NULL,
			year INTEGER NOT NULL,
			PRIMARY KEY (source_id, seq)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_points_ts ON points(ts)`,
		`CREATE INDEX IF NOT EXISTS idx_points_year ON points(year)`,
	}

	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}
	}
	return nil
}

// SavePoints stores points for src in one transaction, in order
func (s *SQLiteStore) SavePoints(ctx context.Context, src Source, points []model.Point) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM points WHERE source_id IN (SELECT id FROM sources WHERE sha256 = ?)`, src.SHA256); err != nil {
		return fmt.Errorf("clear previous points: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM sources WHERE sha256 = ?`, src.SHA256); err != nil {
		return fmt.Errorf("clear previous source: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO sources (path, sha256, privacy_level, imported_at) VALUES (?, ?, ?, ?)`,
		src.Path, src.SHA256, src.PrivacyLevel, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("insert source: %w", err)
	}
	sourceID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("source id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO points (source_id, seq, lat, lng, ts, year) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, p := range points {
		if _, err = stmt.ExecContext(ctx, sourceID, i, p.Lat, p.Lng, p.TS, p.Year); err != nil {
			return fmt.Errorf("insert point %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Count returns the number of stored points across all exports
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM points`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count points: %w", err)
	}
	return n, nil
}

// CountByYear returns stored point counts keyed by year
func (s *SQLiteStore) CountByYear(ctx context.Context) (map[int]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT year, COUNT(*) FROM points GROUP BY year`)
	if err != nil {
		return nil, fmt.Errorf("count by year: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[int]int)
	for rows.Next() {
		var year, n int
		if err := rows.Scan(&year, &n); err != nil {
			return nil, fmt.Errorf("scan year count: %w", err)
		}
		counts[year] = n
	}
	return counts, rows.Err()
}

// Path returns the database file path
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
