package llm

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ppiankov/geotrail/internal/model"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Explain turns a diagnostic report into plain-language advice
	Explain(ctx context.Context, req ExplainRequest) (*ExplainResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// ExplainRequest contains the input for an explanation
type ExplainRequest struct {
	// Report is the diagnostic report. Only its counts, categories and
	// structural names reach the prompt.
	Report *model.Report

	// Prompt overrides the default prompt when set
	Prompt string

	// Model is the specific model to use (provider-specific)
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// ExplainResponse contains the generated explanation
type ExplainResponse struct {
	Text       string
	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "", // Disabled by default
		Timeout:   30,
		MaxTokens: 600,
	}
}

// ErrCoordinateLeak is returned when a model answer contains text that
// looks like a coordinate. The answer is meant to be shared publicly.
var ErrCoordinateLeak = errors.New("explanation contains coordinate-like values")

const systemPrompt = "You help users whose location history export could not be fully read. You only see a structural report with counts and field names; never invent coordinates, dates or places."

var coordinatePattern = regexp.MustCompile(`-?\d{1,3}\.\d{4,}|geo:\s*-?\d`)

// checkAnswer rejects answers that could carry location values
func checkAnswer(text string) error {
	if coordinatePattern.MatchString(text) {
		return ErrCoordinateLeak
	}
	return nil
}

// BuildPrompt renders the report as a count-only prompt
func BuildPrompt(report *model.Report) string {
	var b strings.Builder

	b.WriteString(`A location history export was scanned and the extractor produced fewer points than expected.
Explain in 3-5 short sentences what is most likely wrong with the file and what the user should try next.
Refer to field names and counts only.

Scan:
`)
	fmt.Fprintf(&b, "- Nodes scanned: %d (limit reached: %t)\n", report.FileStats.ScannedNodes, report.FileStats.ScanLimitReached)
	fmt.Fprintf(&b, "- Max depth: %d, unique key names: %d\n", report.FileStats.MaxDepth, report.FileStats.UniqueKeyPatterns)

	b.WriteString("\nFormats seen:\n")
	for _, fc := range report.Formats {
		if fc.Found {
			fmt.Fprintf(&b, "- %s: %d\n", fc.Format, fc.Count)
		}
	}
	if !report.Formats.AnyFound() {
		b.WriteString("- none\n")
	}

	fs := report.FilterStats
	fmt.Fprintf(&b, "\nCandidates: %d total, %d extracted, %d bad coordinates, %d without timestamp, %d with zero/negative timestamp, %d unreadable time fields\n",
		fs.TotalCandidates, fs.Extracted, fs.InvalidCoords, fs.NoTimestamp, fs.NonPositiveTimestamp, fs.InvalidTimeFields)

	if report.RootShape != nil && len(report.RootShape.Keys) > 0 {
		fmt.Fprintf(&b, "Top-level keys: %s\n", strings.Join(report.RootShape.Keys, ", "))
	}

	if len(report.Rejections) > 0 {
		b.WriteString("\nFirst rejections:\n")
		for i, r := range report.Rejections {
			if i >= 5 {
				break
			}
			fmt.Fprintf(&b, "- [%s] %s: %s\n", r.Stage, r.Path, r.Message)
		}
	}

	return b.String()
}

func resolveModel(reqModel, cfgModel, fallback string) string {
	if reqModel != "" {
		return reqModel
	}
	if cfgModel != "" {
		return cfgModel
	}
	return fallback
}

func resolveMaxTokens(reqTokens, cfgTokens int) int {
	if reqTokens > 0 {
		return reqTokens
	}
	if cfgTokens > 0 {
		return cfgTokens
	}
	return 600
}
