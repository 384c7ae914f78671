package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/ppiankov/geotrail/internal/cache"
	"github.com/ppiankov/geotrail/internal/classify"
	"github.com/ppiankov/geotrail/internal/diagnose"
	"github.com/ppiankov/geotrail/internal/extract"
	"github.com/ppiankov/geotrail/internal/llm"
	"github.com/ppiankov/geotrail/internal/model"
	"github.com/ppiankov/geotrail/internal/privacy"
	"github.com/ppiankov/geotrail/internal/stats"
)

// Pipeline orchestrates loading, extraction and diagnosis of exports
type Pipeline struct {
	loader    *Loader
	extractor *extract.PointExtractor
	diagnoser *diagnose.Diagnoser
	renderer  *Renderer
	cache     cache.Cache
	explainer llm.Provider // nil when explanations are disabled
	level     privacy.Level
	logger    *zap.Logger
	config    *model.Config
}

// Option customizes a Pipeline
type Option func(*pipelineOptions)

type pipelineOptions struct {
	cache      cache.Cache
	cacheSet   bool
	explainer  llm.Provider
	buildInfo  string
	summaryOut io.Writer
}

// WithCache overrides the cache built from config; nil disables caching
func WithCache(c cache.Cache) Option {
	return func(o *pipelineOptions) {
		o.cache = c
		o.cacheSet = true
	}
}

// WithExplainer sets the LLM provider used by Explain
func WithExplainer(p llm.Provider) Option {
	return func(o *pipelineOptions) { o.explainer = p }
}

// WithBuildInfo stamps diagnostic reports with the producing build
func WithBuildInfo(info string) Option {
	return func(o *pipelineOptions) { o.buildInfo = info }
}

// WithSummaryOutput redirects terminal summaries (default stderr)
func WithSummaryOutput(w io.Writer) Option {
	return func(o *pipelineOptions) { o.summaryOut = w }
}

// NewPipeline creates a new pipeline with the given configuration
func NewPipeline(cfg *model.Config, logger *zap.Logger, opts ...Option) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var o pipelineOptions
	for _, opt := range opts {
		opt(&o)
	}

	loc, err := extract.ResolveLocation(cfg.Extract.Timezone)
	if err != nil {
		return nil, err
	}

	level, err := privacy.ParseLevel(cfg.Privacy.Level)
	if err != nil {
		return nil, err
	}

	c := o.cache
	if !o.cacheSet {
		c = cache.FromConfig(cfg.Cache)
	}

	explainer := o.explainer
	if explainer == nil && cfg.LLM.Provider != "" {
		p, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM))
		if err != nil {
			logger.Warn("LLM provider disabled", zap.String("provider", cfg.LLM.Provider), zap.Error(err))
		} else {
			explainer = p
		}
	}

	// Extraction and diagnosis share one registry so their counts agree
	registry := classify.NewRegistry()

	return &Pipeline{
		loader: NewLoader(cfg.Load.MaxBytes),
		extractor: extract.NewPointExtractor(cfg.Extract,
			extract.WithRegistry(registry),
			extract.WithLocation(loc),
			extract.WithYielder(extract.GoschedYielder)),
		diagnoser: diagnose.NewDiagnoser(cfg.Diagnose, cfg.Thresholds,
			diagnose.WithRegistry(registry),
			diagnose.WithBuildInfo(o.buildInfo)),
		renderer:  NewRenderer(cfg.Output.IncludeFooter, o.summaryOut),
		cache:     c,
		explainer: explainer,
		level:     level,
		logger:    logger,
		config:    cfg,
	}, nil
}

// ExtractResult is the outcome of extracting one export
type ExtractResult struct {
	Source       SourceMeta          `json:"source"`
	Points       []model.Point       `json:"points"`
	Stats        model.TimelineStats `json:"stats"`
	PrivacyLevel string              `json:"privacy_level"`
	NodesVisited int                 `json:"nodes_visited"`
	LimitReached bool                `json:"limit_reached"`
	Unresolved   int                 `json:"unresolved"`
	Filtered     int                 `json:"filtered"`
	Cached       bool                `json:"-"`
}

// cachedExtraction is the cache payload; stats are recomputed on read
type cachedExtraction struct {
	Points       []model.Point `json:"points"`
	NodesVisited int           `json:"nodes_visited"`
	LimitReached bool          `json:"limit_reached"`
	Unresolved   int           `json:"unresolved"`
	Filtered     int           `json:"filtered"`
}

// Process loads path, extracts its points, applies the configured privacy
// level and computes statistics. A document without points returns an
// error wrapping extract.ErrNoPointsFound.
func (p *Pipeline) Process(ctx context.Context, path string, onProgress extract.ProgressFunc) (*ExtractResult, error) {
	data, meta, err := p.loader.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("export loaded", zap.String("path", path), zap.Int64("bytes", meta.Size))

	key := cache.ExtractionKey(meta.SHA256, p.config.Extract, p.level.ID)
	if res, ok := p.fromCache(key, meta); ok {
		if onProgress != nil {
			onProgress(100)
		}
		p.logger.Debug("extraction cache hit", zap.String("path", path), zap.Int("points", len(res.Points)))
		return res, nil
	}

	root, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	detail, err := p.extractor.ExtractDetailed(root, onProgress)
	if err != nil {
		if errors.Is(err, extract.ErrNoPointsFound) {
			p.logger.Info("no points extracted",
				zap.String("path", path),
				zap.Int("nodes", detail.NodesVisited),
				zap.Int("unresolved", detail.Unresolved),
				zap.Int("filtered", detail.Filtered))
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	points, err := privacy.ObfuscateByLevel(detail.Points, p.level.ID)
	if err != nil {
		return nil, err
	}

	res := &ExtractResult{
		Source:       meta,
		Points:       points,
		PrivacyLevel: p.level.ID,
		NodesVisited: detail.NodesVisited,
		LimitReached: detail.LimitReached,
		Unresolved:   detail.Unresolved,
		Filtered:     detail.Filtered,
	}
	res.Stats = stats.Calculate(res.Points)

	p.logger.Info("extraction complete",
		zap.String("path", path),
		zap.Int("points", len(res.Points)),
		zap.Int("nodes", res.NodesVisited),
		zap.Bool("limit_reached", res.LimitReached))
	if res.LimitReached {
		p.logger.Warn("node limit reached, result may be partial", zap.String("path", path), zap.Int("max_nodes", p.config.Extract.MaxNodes))
	}

	p.toCache(key, res)
	return res, nil
}

func (p *Pipeline) fromCache(key string, meta SourceMeta) (*ExtractResult, bool) {
	if p.cache == nil {
		return nil, false
	}
	raw, ok := p.cache.Get(key)
	if !ok {
		return nil, false
	}

	var entry cachedExtraction
	if err := json.Unmarshal(raw, &entry); err != nil {
		p.logger.Warn("discarding corrupt cache entry", zap.Error(err))
		_ = p.cache.Delete(key)
		return nil, false
	}

	return &ExtractResult{
		Source:       meta,
		Points:       entry.Points,
		Stats:        stats.Calculate(entry.Points),
		PrivacyLevel: p.level.ID,
		NodesVisited: entry.NodesVisited,
		LimitReached: entry.LimitReached,
		Unresolved:   entry.Unresolved,
		Filtered:     entry.Filtered,
		Cached:       true,
	}, true
}

func (p *Pipeline) toCache(key string, res *ExtractResult) {
	if p.cache == nil {
		return
	}
	raw, err := json.Marshal(cachedExtraction{
		Points:       res.Points,
		NodesVisited: res.NodesVisited,
		LimitReached: res.LimitReached,
		Unresolved:   res.Unresolved,
		Filtered:     res.Filtered,
	})
	if err != nil {
		p.logger.Warn("encode cache entry", zap.Error(err))
		return
	}
	if err := p.cache.Set(key, raw, 0); err != nil {
		p.logger.Warn("store cache entry", zap.Error(err))
	}
}

// DiagnoseResult contains a diagnostic report and its optional explanation
type DiagnoseResult struct {
	Source      SourceMeta
	Report      *model.Report
	Explanation *llm.ExplainResponse
}

// Diagnose loads path and produces its privacy-safe report
func (p *Pipeline) Diagnose(ctx context.Context, path string) (*DiagnoseResult, error) {
	loaded, err := p.loader.Load(ctx, path)
	if err != nil {
		return nil, err
	}

	report := p.diagnoser.Diagnose(loaded.Root)
	p.logger.Info("diagnosis complete",
		zap.String("path", path),
		zap.Int("candidates", report.FilterStats.TotalCandidates),
		zap.Int("extracted", report.FilterStats.Extracted),
		zap.Int("rejections", len(report.Rejections)))

	return &DiagnoseResult{Source: loaded.Meta, Report: report}, nil
}

// HasExplainer reports whether an LLM provider is configured
func (p *Pipeline) HasExplainer() bool {
	return p.explainer != nil
}

// Explain attaches a plain-language explanation to res. Provider failures
// are logged and leave the report untouched.
func (p *Pipeline) Explain(ctx context.Context, res *DiagnoseResult) {
	if p.explainer == nil || res == nil || res.Report == nil {
		return
	}

	resp, err := p.explainer.Explain(ctx, llm.ExplainRequest{
		Report:    res.Report,
		MaxTokens: p.config.LLM.MaxTokens,
	})
	if err != nil {
		p.logger.Warn("LLM explanation failed", zap.String("provider", p.explainer.Name()), zap.Error(err))
		return
	}
	p.logger.Debug("LLM explanation generated", zap.String("model", resp.Model), zap.Int("tokens", resp.TokensUsed))
	res.Explanation = resp
}

// ReportOutputs lists where a diagnostic report is written. Empty paths
// are skipped; "-" writes to stdout.
type ReportOutputs struct {
	JSON     string
	Markdown string
	HTML     string
	Download string
}

// RenderReport writes the report to the requested outputs and prints the
// terminal summary.
func (p *Pipeline) RenderReport(res *DiagnoseResult, out ReportOutputs) error {
	report := res.Report

	if out.JSON != "" {
		if err := p.renderer.RenderJSON(report, out.JSON); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		p.logger.Debug("wrote report", zap.String("format", "json"), zap.String("path", out.JSON))
	}

	if out.Markdown != "" {
		md := p.renderer.Markdown(report)
		if res.Explanation != nil {
			md += "\n## Explanation\n\n" + res.Explanation.Text + "\n"
		}
		if err := writeFile(out.Markdown, []byte(md)); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		p.logger.Debug("wrote report", zap.String("format", "markdown"), zap.String("path", out.Markdown))
	}

	if out.HTML != "" {
		if err := p.renderer.RenderHTML(report, out.HTML); err != nil {
			return fmt.Errorf("render HTML: %w", err)
		}
		p.logger.Debug("wrote report", zap.String("format", "html"), zap.String("path", out.HTML))
	}

	if out.Download != "" {
		text, err := FormatForDownload(report)
		if err != nil {
			return err
		}
		if err := writeFile(out.Download, []byte(text)); err != nil {
			return fmt.Errorf("render download: %w", err)
		}
	}

	p.renderer.RenderSummary(report)
	if res.Explanation != nil {
		fmt.Fprintf(p.renderer.out, "\n%s\n", res.Explanation.Text)
	}
	return nil
}

// RenderExtraction writes points as JSON when jsonPath is set and prints
// the terminal statistics.
func (p *Pipeline) RenderExtraction(res *ExtractResult, jsonPath string) error {
	if jsonPath != "" {
		if err := p.renderer.RenderJSON(res, jsonPath); err != nil {
			return fmt.Errorf("render points: %w", err)
		}
	}
	p.renderer.RenderStats(res.Source, res.Stats, res.Cached)
	return nil
}
