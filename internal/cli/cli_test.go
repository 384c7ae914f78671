package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func resetConfig(t *testing.T, path string) {
	t.Helper()
	viper.Reset()
	cfgFile = path
	t.Cleanup(func() {
		viper.Reset()
		cfgFile = ""
	})
}

func TestLoadConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "extract:\n  timezone: Asia/Tokyo\nprivacy:\n  level: low\ncache:\n  memory_ttl: 1h\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("GEOTRAIL_PRIVACY_LEVEL", "high")
	t.Setenv("GEOTRAIL_CONCURRENCY_WORKERS", "9")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	resetConfig(t, path)

	initConfig()
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}

	if cfg.Extract.Timezone != "Asia/Tokyo" {
		t.Errorf("expected timezone from file, got %q", cfg.Extract.Timezone)
	}
	if cfg.Privacy.Level != "high" {
		t.Errorf("expected env to override file, got %q", cfg.Privacy.Level)
	}
	if cfg.Concurrency.Workers != 9 {
		t.Errorf("expected 9 workers from env, got %d", cfg.Concurrency.Workers)
	}
	if cfg.Cache.MemoryTTL != time.Hour {
		t.Errorf("expected 1h memory TTL, got %v", cfg.Cache.MemoryTTL)
	}
	if cfg.Extract.MaxNodes != 2_000_000 {
		t.Errorf("expected default max nodes, got %d", cfg.Extract.MaxNodes)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Error("expected API key from OPENAI_API_KEY")
	}
}

func TestWriteDefaultConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := writeDefaultConfig(path); err != nil {
		t.Fatalf("writeDefaultConfig failed: %v", err)
	}
	if err := writeDefaultConfig(path); err == nil {
		t.Error("expected an error when the file already exists")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "api_key") {
		t.Error("config file must not contain an API key field")
	}

	resetConfig(t, path)
	initConfig()
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Cache.DiskTTL != 7*24*time.Hour {
		t.Errorf("expected default disk TTL, got %v", cfg.Cache.DiskTTL)
	}
	if cfg.Diagnose.MaxRejections != 20 {
		t.Errorf("expected 20 rejections, got %d", cfg.Diagnose.MaxRejections)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"/exports/2023/Records.json", "Records"},
		{"Location History.json", "Location-History"},
		{"a:b?.json", "a_b_"},
		{"/", "_"},
		{strings.Repeat("x", 150) + ".json", strings.Repeat("x", 100)},
	}

	for _, tt := range tests {
		if got := sanitizeFilename(tt.input); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestWatchFile_Debounced(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Timeline.json")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int64
	done := make(chan error, 1)
	go func() {
		done <- watchFile(ctx, path, 50*time.Millisecond, func() { atomic.AddInt64(&calls, 1) })
	}()

	// Let the watcher register before writing
	time.Sleep(100 * time.Millisecond)
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte(`{"n":1}`), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(filepath.Dir(path), "other.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for atomic.LoadInt64(&calls) == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	time.Sleep(200 * time.Millisecond)

	cancel()
	<-done

	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Errorf("expected 1 debounced run, got %d", got)
	}
}

func TestExtractCommand_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	export := filepath.Join(dir, "Timeline.json")
	doc := `{"semanticSegments":[{"startTime":"2024-01-01T00:00:00Z","timelinePath":[
		{"point":"geo:35.0,139.0","durationMinutesOffsetFromStartTime":"0"},
		{"point":"geo:35.1,139.1","durationMinutesOffsetFromStartTime":"5"}]}]}`
	if err := os.WriteFile(export, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "points.json")
	dbPath := filepath.Join(dir, "trail.db")

	resetConfig(t, "")
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs([]string{"extract", export, "--config", filepath.Join(dir, "missing.yaml"),
		"--json", out, "--sqlite", dbPath, "--no-cache", "--no-progress", "--share"})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		outPoints, outSQLite, noCache, noProgress, shareText = "", "", false, false, false
	})

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("extract failed: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("points file not written: %v", err)
	}
	if !strings.Contains(string(data), `"ts": 1704067500000`) {
		t.Errorf("expected offset point in output, got:\n%s", data)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("sqlite database not written: %v", err)
	}
	if !strings.Contains(stderr.String(), "  2024: 2 points") {
		t.Errorf("expected per-year summary, got:\n%s", stderr.String())
	}
	if !strings.Contains(stdout.String(), "My 2024 location timeline") {
		t.Errorf("expected share text on stdout, got:\n%s", stdout.String())
	}
}

func TestFormatYearCounts(t *testing.T) {
	got := formatYearCounts(map[int]int{2022: 2, 2020: 1500})
	want := "  2020: 1.5K points\n  2022: 2 points\n"
	if got != want {
		t.Errorf("formatYearCounts() = %q, want %q", got, want)
	}
	if got := formatYearCounts(nil); got != "" {
		t.Errorf("expected empty output, got %q", got)
	}
}
