package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ppiankov/geotrail/internal/extract"
	"github.com/ppiankov/geotrail/internal/model"
	"github.com/ppiankov/geotrail/internal/pipeline"
)

type mockExtractor struct {
	fail map[string]error
}

func (m *mockExtractor) Process(ctx context.Context, path string, onProgress extract.ProgressFunc) (*pipeline.ExtractResult, error) {
	if err, ok := m.fail[path]; ok {
		return nil, err
	}
	for _, pct := range []int{10, 20, 30, 100} {
		if onProgress != nil {
			onProgress(pct)
		}
	}
	return &pipeline.ExtractResult{
		Source: pipeline.SourceMeta{Path: path},
		Points: []model.Point{{Lat: 1, Lng: 2, TS: 3, Year: 1970}},
	}, nil
}

func TestBatchProcessor_OrderAndErrors(t *testing.T) {
	boom := errors.New("decode failed")
	ext := &mockExtractor{fail: map[string]error{"c.json": boom}}
	b := NewBatchProcessor(ext, 2, 0, 0, nil)

	paths := []string{"a.json", "b.json", "c.json", "d.json"}
	results := b.ProcessPaths(context.Background(), paths)

	if len(results) != len(paths) {
		t.Fatalf("expected %d results, got %d", len(paths), len(results))
	}
	for i, r := range results {
		if r.Path != paths[i] || r.Index != i {
			t.Errorf("result %d out of order: %s", i, r.Path)
		}
	}
	if !errors.Is(results[2].Error, boom) {
		t.Errorf("expected decode error for c.json, got %v", results[2].Error)
	}
	if results[0].Result == nil || len(results[0].Result.Points) != 1 {
		t.Error("expected a point for a.json")
	}
}

func TestBatchProcessor_Empty(t *testing.T) {
	b := NewBatchProcessor(&mockExtractor{}, 2, 0, 0, nil)
	if got := b.ProcessPaths(context.Background(), nil); len(got) != 0 {
		t.Errorf("expected no results, got %d", len(got))
	}
}

func TestBatchProcessor_ProgressThrottled(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[string][]int)
	report := func(path string, pct int) {
		mu.Lock()
		seen[path] = append(seen[path], pct)
		mu.Unlock()
	}

	b := NewBatchProcessor(&mockExtractor{}, 1, 0.001, 1, report)
	b.ProcessPaths(context.Background(), []string{"a.json"})

	got := seen["a.json"]
	if len(got) != 2 || got[0] != 10 || got[1] != 100 {
		t.Errorf("expected [10 100], got %v", got)
	}
	if b.limiter.Len() != 0 {
		t.Error("limiter state should be dropped after completion")
	}
}

func TestBatchProcessor_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := NewBatchProcessor(&mockExtractor{}, 1, 0, 0, nil)
	results := b.ProcessPaths(ctx, []string{"a.json", "b.json"})

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Error == nil {
			t.Errorf("%s: expected an error after cancel", r.Path)
		}
	}
}

func TestReadPathsFromFile(t *testing.T) {
	dir := t.TempDir()
	list := filepath.Join(dir, "exports.txt")
	content := strings.Join([]string{
		"# exports",
		"",
		"2023/Records.json",
		"  /abs/Timeline.json  ",
		"2023/Records.json",
	}, "\n")
	if err := os.WriteFile(list, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	paths, err := ReadPathsFromFile(list)
	if err != nil {
		t.Fatalf("ReadPathsFromFile failed: %v", err)
	}

	want := []string{filepath.Join(dir, "2023", "Records.json"), "/abs/Timeline.json"}
	if len(paths) != len(want) {
		t.Fatalf("expected %v, got %v", want, paths)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("path %d: expected %s, got %s", i, want[i], paths[i])
		}
	}
}

func TestReadPathsFromFile_Missing(t *testing.T) {
	if _, err := ReadPathsFromFile(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Error("expected an error for a missing list file")
	}
}
