package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/geotrail/internal/cache"
	"github.com/ppiankov/geotrail/internal/extract"
	"github.com/ppiankov/geotrail/internal/llm"
	"github.com/ppiankov/geotrail/internal/model"
)

const timelineDoc = `{
  "semanticSegments": [
    {
      "startTime": "2023-06-01T09:00:00Z",
      "timelinePath": [
        {"point": "35.6812°, 139.7671°"},
        {"point": "geo:35.6812,139.7671", "durationMinutesOffsetFromStartTime": "0"},
        {"point": "geo:35.6586,139.7454", "durationMinutesOffsetFromStartTime": "30"}
      ]
    },
    {
      "startTime": "2023-06-01T12:00:00Z",
      "visit": {"topCandidate": {"placeLocation": "geo:35.7101,139.8107"}}
    }
  ]
}`

type mockExplainer struct {
	text string
	err  error
}

func (m *mockExplainer) Name() string                         { return "mock" }
func (m *mockExplainer) IsAvailable(ctx context.Context) bool { return true }
func (m *mockExplainer) Explain(ctx context.Context, req llm.ExplainRequest) (*llm.ExplainResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &llm.ExplainResponse{Text: m.text, Model: "mock"}, nil
}

func newTestPipeline(t *testing.T, mutate func(*model.Config), opts ...Option) (*Pipeline, *bytes.Buffer) {
	t.Helper()
	cfg := model.DefaultConfig()
	cfg.Cache.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}

	var summary bytes.Buffer
	opts = append([]Option{WithSummaryOutput(&summary)}, opts...)
	p, err := NewPipeline(cfg, zap.NewNop(), opts...)
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}
	return p, &summary
}

func TestNewPipeline_InvalidConfig(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Privacy.Level = "paranoid"
	if _, err := NewPipeline(cfg, nil); err == nil {
		t.Error("expected error for unknown privacy level")
	}

	cfg = model.DefaultConfig()
	cfg.Extract.Timezone = "Mars/Olympus_Mons"
	if _, err := NewPipeline(cfg, nil); err == nil {
		t.Error("expected error for unknown timezone")
	}
}

func TestPipeline_Process(t *testing.T) {
	p, _ := newTestPipeline(t, nil)
	path := writeTemp(t, "timeline.json", timelineDoc)

	var progress []int
	res, err := p.Process(context.Background(), path, func(pct int) { progress = append(progress, pct) })
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if len(res.Points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(res.Points))
	}
	for i := 1; i < len(res.Points); i++ {
		if res.Points[i].TS < res.Points[i-1].TS {
			t.Errorf("points not sorted at %d", i)
		}
	}
	if res.Points[0].Year != 2023 {
		t.Errorf("Year = %d, want 2023", res.Points[0].Year)
	}
	if res.Stats.TotalPoints != 3 {
		t.Errorf("Stats.TotalPoints = %d", res.Stats.TotalPoints)
	}
	if len(progress) == 0 || progress[len(progress)-1] != 100 {
		t.Errorf("progress did not finish at 100: %v", progress)
	}
	if res.Cached {
		t.Error("first run should not be cached")
	}
}

func TestPipeline_ProcessAppliesPrivacy(t *testing.T) {
	p, _ := newTestPipeline(t, func(cfg *model.Config) { cfg.Privacy.Level = "max" })
	path := writeTemp(t, "timeline.json", timelineDoc)

	res, err := p.Process(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	for _, pt := range res.Points {
		if pt.Lat != 35.5 || pt.Lng != 139.5 {
			t.Errorf("point not snapped: %+v", pt)
		}
	}
	if res.PrivacyLevel != "max" {
		t.Errorf("PrivacyLevel = %s", res.PrivacyLevel)
	}
}

func TestPipeline_ProcessPrivacyByIndex(t *testing.T) {
	p, _ := newTestPipeline(t, func(cfg *model.Config) { cfg.Privacy.Level = "4" })
	path := writeTemp(t, "timeline.json", timelineDoc)

	res, err := p.Process(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if res.PrivacyLevel != "max" {
		t.Errorf("PrivacyLevel = %s, want max", res.PrivacyLevel)
	}
}

func TestPipeline_ProcessNoPoints(t *testing.T) {
	p, _ := newTestPipeline(t, nil)
	path := writeTemp(t, "empty.json", `{"settings":{"theme":"dark"}}`)

	_, err := p.Process(context.Background(), path, nil)
	if !errors.Is(err, extract.ErrNoPointsFound) {
		t.Fatalf("expected ErrNoPointsFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "empty.json") {
		t.Errorf("error should name the file: %v", err)
	}
}

func TestPipeline_ProcessUsesCache(t *testing.T) {
	mem := cache.NewMemoryCache(time.Minute, time.Minute)
	p, _ := newTestPipeline(t, nil, WithCache(mem))
	path := writeTemp(t, "timeline.json", timelineDoc)

	first, err := p.Process(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("first Process failed: %v", err)
	}
	if mem.Len() != 1 {
		t.Fatalf("expected 1 cache entry, got %d", mem.Len())
	}

	second, err := p.Process(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("second Process failed: %v", err)
	}
	if !second.Cached {
		t.Error("second run should be served from cache")
	}
	if len(second.Points) != len(first.Points) || second.Stats.TotalDistanceKM != first.Stats.TotalDistanceKM {
		t.Errorf("cached result differs: %+v vs %+v", second.Stats, first.Stats)
	}

	// Different content must miss.
	if err := os.WriteFile(path, []byte(strings.Replace(timelineDoc, "12:00", "13:00", 1)), 0o644); err != nil {
		t.Fatal(err)
	}
	third, err := p.Process(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("third Process failed: %v", err)
	}
	if third.Cached {
		t.Error("changed file should not hit the cache")
	}
}

func TestPipeline_Diagnose(t *testing.T) {
	p, summary := newTestPipeline(t, nil, WithBuildInfo("geotrail test"))
	path := writeTemp(t, "timeline.json", timelineDoc)

	res, err := p.Diagnose(context.Background(), path)
	if err != nil {
		t.Fatalf("Diagnose failed: %v", err)
	}
	if res.Report.FilterStats.Extracted != 3 {
		t.Errorf("Extracted = %d, want 3", res.Report.FilterStats.Extracted)
	}
	if res.Report.BuildInfo != "geotrail test" {
		t.Errorf("BuildInfo = %q", res.Report.BuildInfo)
	}

	dir := t.TempDir()
	out := ReportOutputs{
		JSON:     filepath.Join(dir, "report.json"),
		Markdown: filepath.Join(dir, "report.md"),
		HTML:     filepath.Join(dir, "report.html"),
		Download: filepath.Join(dir, "report.txt"),
	}
	if err := p.RenderReport(res, out); err != nil {
		t.Fatalf("RenderReport failed: %v", err)
	}

	for _, f := range []string{out.JSON, out.Markdown, out.HTML, out.Download} {
		data, err := os.ReadFile(f)
		if err != nil {
			t.Errorf("missing output %s: %v", f, err)
			continue
		}
		for _, leak := range []string{"35.6812", "139.7671", "2023-06-01"} {
			if strings.Contains(string(data), leak) {
				t.Errorf("%s leaks %q", filepath.Base(f), leak)
			}
		}
	}

	var decoded model.Report
	data, _ := os.ReadFile(out.JSON)
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Errorf("report JSON does not decode: %v", err)
	}
	if !strings.Contains(summary.String(), "Diagnostic report") {
		t.Errorf("summary not printed: %q", summary.String())
	}
}

func TestPipeline_Explain(t *testing.T) {
	path := writeTemp(t, "timeline.json", timelineDoc)

	p, _ := newTestPipeline(t, nil, WithExplainer(&mockExplainer{text: "Looks fine."}))
	res, err := p.Diagnose(context.Background(), path)
	if err != nil {
		t.Fatalf("Diagnose failed: %v", err)
	}
	if !p.HasExplainer() {
		t.Fatal("expected explainer")
	}
	p.Explain(context.Background(), res)
	if res.Explanation == nil || res.Explanation.Text != "Looks fine." {
		t.Errorf("unexpected explanation %+v", res.Explanation)
	}

	failing, _ := newTestPipeline(t, nil, WithExplainer(&mockExplainer{err: errors.New("offline")}))
	res, _ = failing.Diagnose(context.Background(), path)
	failing.Explain(context.Background(), res)
	if res.Explanation != nil {
		t.Error("failed explanation should leave the report untouched")
	}
}

func TestPipeline_RenderExtraction(t *testing.T) {
	p, summary := newTestPipeline(t, nil)
	path := writeTemp(t, "timeline.json", timelineDoc)

	res, err := p.Process(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	out := filepath.Join(t.TempDir(), "points.json")
	if err := p.RenderExtraction(res, out); err != nil {
		t.Fatalf("RenderExtraction failed: %v", err)
	}

	var decoded ExtractResult
	data, _ := os.ReadFile(out)
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("points JSON does not decode: %v", err)
	}
	if len(decoded.Points) != 3 {
		t.Errorf("expected 3 points in output, got %d", len(decoded.Points))
	}
	if !strings.Contains(summary.String(), "Timeline") {
		t.Errorf("stats not printed: %q", summary.String())
	}
}
