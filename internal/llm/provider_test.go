package llm

import (
	"errors"
	"strings"
	"testing"

	"github.com/ppiankov/geotrail/internal/model"
)

func sampleReport() *model.Report {
	formats := model.NewFormatTally()
	formats.Add(model.FormatGeoString)
	formats.Add(model.FormatGeoString)
	formats.Add(model.FormatStartTime)

	return &model.Report{
		Version: model.ReportVersion,
		FileStats: model.FileStats{
			ScannedNodes: 1200,
			MaxDepth:     4,
		},
		FilterStats: model.FilterStats{
			TotalCandidates: 40,
			Extracted:       2,
			NoTimestamp:     38,
		},
		Formats:   formats,
		RootShape: &model.ShapeNode{Type: model.ShapeObject, Keys: []string{"semanticSegments"}},
		Rejections: []model.RejectionRecord{
			{Path: "$.semanticSegments[0].visit.placeLocation", Stage: model.StageTimestamp, Message: "no timestamp"},
		},
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt(sampleReport())

	for _, want := range []string{
		"Nodes scanned: 1200",
		"geo:lat,lng strings: 2",
		"startTime field: 1",
		"40 total, 2 extracted",
		"38 without timestamp",
		"Top-level keys: semanticSegments",
		"[timestamp] $.semanticSegments[0].visit.placeLocation",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, "timelinePath array:") {
		t.Error("prompt lists a format that was not found")
	}
}

func TestBuildPrompt_NoFormats(t *testing.T) {
	prompt := BuildPrompt(&model.Report{Formats: model.NewFormatTally()})
	if !strings.Contains(prompt, "Formats seen:\n- none") {
		t.Errorf("expected empty format list marker:\n%s", prompt)
	}
}

func TestCheckAnswer(t *testing.T) {
	tests := []struct {
		text string
		leak bool
	}{
		{"Check the startTime fields of 38 visits.", false},
		{"Version 1.1 of the export is supported.", false},
		{"The point at 35.6812 looks odd.", true},
		{"Try geo:35,139 as an example.", true},
	}
	for _, tt := range tests {
		err := checkAnswer(tt.text)
		if got := errors.Is(err, ErrCoordinateLeak); got != tt.leak {
			t.Errorf("checkAnswer(%q) leak = %v, want %v", tt.text, got, tt.leak)
		}
	}
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(Config{})
	if err != nil || p != nil {
		t.Errorf("empty provider = %v, %v; want nil, nil", p, err)
	}

	p, err = NewProvider(Config{Provider: "Ollama", Model: "llama3.1"})
	if err != nil {
		t.Fatalf("ollama: %v", err)
	}
	if p.Name() != "ollama" {
		t.Errorf("Name = %s", p.Name())
	}

	if _, err := NewProvider(Config{Provider: "anthropic"}); err == nil {
		t.Error("expected error for unsupported provider")
	}
}

func TestConfigFromModel(t *testing.T) {
	cfg := ConfigFromModel(model.LLMConfig{
		Provider:   "openai",
		Model:      "gpt-4o-mini",
		APIKey:     "k",
		Timeout:    12,
		MaxTokens:  300,
		HTTPSProxy: "http://proxy:3129",
	})
	if cfg.Provider != "openai" || cfg.APIKey != "k" || cfg.Timeout != 12 || cfg.MaxTokens != 300 || cfg.HTTPSProxy != "http://proxy:3129" {
		t.Errorf("unexpected config: %+v", cfg)
	}
}
