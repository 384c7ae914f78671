package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ppiankov/geotrail/internal/model"
)

func openTemp(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "points.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// storedPoints reads back the points saved for an export hash, in order
func storedPoints(t *testing.T, s *SQLiteStore, sha256 string) []model.Point {
	t.Helper()
	rows, err := s.db.Query(`
		SELECT p.lat, p.lng, p.ts, p.year
		FROM points p JOIN sources s ON s.id = p.source_id
		WHERE s.sha256 = ?
		ORDER BY p.seq`, sha256)
	if err != nil {
		t.Fatalf("query points: %v", err)
	}
	defer func() { _ = rows.Close() }()

	points := []model.Point{}
	for rows.Next() {
		var p model.Point
		if err := rows.Scan(&p.Lat, &p.Lng, &p.TS, &p.Year); err != nil {
			t.Fatalf("scan point: %v", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("iterate points: %v", err)
	}
	return points
}

func TestSQLiteStore_SaveAndLoad(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	points := []model.Point{
		{Lat: 35.6, Lng: 139.7, TS: 1600000000000, Year: 2020},
		{Lat: 35.7, Lng: 139.8, TS: 1650000000000, Year: 2022},
		{Lat: 35.8, Lng: 139.9, TS: 1660000000000, Year: 2022},
	}
	if err := s.SavePoints(ctx, Source{Path: "a.json", SHA256: "aaa", PrivacyLevel: "none"}, points); err != nil {
		t.Fatalf("SavePoints failed: %v", err)
	}

	got := storedPoints(t, s, "aaa")
	if diff := cmp.Diff(points, got); diff != "" {
		t.Errorf("points mismatch (-want +got):\n%s", diff)
	}

	byYear, err := s.CountByYear(ctx)
	if err != nil {
		t.Fatalf("CountByYear failed: %v", err)
	}
	if diff := cmp.Diff(map[int]int{2020: 1, 2022: 2}, byYear); diff != "" {
		t.Errorf("year counts mismatch (-want +got):\n%s", diff)
	}
}

func TestSQLiteStore_ReplacesSameSource(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	src := Source{Path: "a.json", SHA256: "aaa", PrivacyLevel: "none"}

	first := []model.Point{{Lat: 1, Lng: 1, TS: 1, Year: 1970}, {Lat: 2, Lng: 2, TS: 2, Year: 1970}}
	if err := s.SavePoints(ctx, src, first); err != nil {
		t.Fatal(err)
	}
	second := []model.Point{{Lat: 3, Lng: 3, TS: 3, Year: 1970}}
	if err := s.SavePoints(ctx, src, second); err != nil {
		t.Fatal(err)
	}
	if err := s.SavePoints(ctx, Source{Path: "b.json", SHA256: "bbb", PrivacyLevel: "max"}, first); err != nil {
		t.Fatal(err)
	}

	n, err := s.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("expected 3 points, got %d", n)
	}

	got := storedPoints(t, s, "aaa")
	if diff := cmp.Diff(second, got); diff != "" {
		t.Errorf("points mismatch (-want +got):\n%s", diff)
	}
}

func TestSQLiteStore_LoadUnknown(t *testing.T) {
	s := openTemp(t)

	got := storedPoints(t, s, "missing")
	if len(got) != 0 {
		t.Errorf("expected no points, got %d", len(got))
	}
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "points.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SavePoints(ctx, Source{Path: "a.json", SHA256: "aaa", PrivacyLevel: "low"}, []model.Point{{Lat: 1, Lng: 2, TS: 3, Year: 1970}}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s.Close() }()

	n, err := s.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 point after reopen, got %d", n)
	}
}
