package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/geotrail/internal/extract"
	"github.com/ppiankov/geotrail/internal/pipeline"
)

// Extractor processes one export file
type Extractor interface {
	Process(ctx context.Context, path string, onProgress extract.ProgressFunc) (*pipeline.ExtractResult, error)
}

// ProgressReporter receives throttled per-file progress
type ProgressReporter func(path string, percent int)

// ExtractJob extracts one export file
type ExtractJob struct {
	Index     int
	Path      string
	Extractor Extractor
	Progress  extract.ProgressFunc
}

// Execute runs the extraction
func (j *ExtractJob) Execute(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return &FileResult{Index: j.Index, Path: j.Path, Error: err}
	}

	res, err := j.Extractor.Process(ctx, j.Path, j.Progress)
	return &FileResult{Index: j.Index, Path: j.Path, Result: res, Error: err}
}

// FileResult is the outcome for one export file
type FileResult struct {
	Index  int
	Path   string
	Result *pipeline.ExtractResult
	Error  error
}

// GetError returns the extraction error
func (r *FileResult) GetError() error {
	return r.Error
}

// BatchProcessor extracts many export files concurrently
type BatchProcessor struct {
	extractor   Extractor
	concurrency int
	limiter     *Limiter
	report      ProgressReporter
}

// NewBatchProcessor creates a batch processor. Progress is forwarded to
// report at most progressPerSecond times per file, plus the final 100.
func NewBatchProcessor(extractor Extractor, concurrency int, progressPerSecond float64, burst int, report ProgressReporter) *BatchProcessor {
	b := &BatchProcessor{
		extractor:   extractor,
		concurrency: concurrency,
		report:      report,
	}
	if report != nil && progressPerSecond > 0 {
		b.limiter = NewLimiter(progressPerSecond, burst)
	}
	return b
}

// ProcessPaths extracts every path and returns results in input order
func (b *BatchProcessor) ProcessPaths(ctx context.Context, paths []string) []*FileResult {
	if len(paths) == 0 {
		return []*FileResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for i, path := range paths {
		job := &ExtractJob{
			Index:     i,
			Path:      path,
			Extractor: b.extractor,
			Progress:  b.progressFor(path),
		}
		if !pool.Submit(job) {
			break
		}
	}

	results := pool.Wait()

	fileResults := make([]*FileResult, 0, len(paths))
	seen := make(map[int]bool, len(results))
	for _, result := range results {
		fr := result.(*FileResult)
		seen[fr.Index] = true
		fileResults = append(fileResults, fr)
	}
	// Jobs never submitted because ctx was cancelled
	for i, path := range paths {
		if !seen[i] {
			fileResults = append(fileResults, &FileResult{Index: i, Path: path, Error: context.Cause(ctx)})
		}
	}

	sort.Slice(fileResults, func(i, j int) bool {
		return fileResults[i].Index < fileResults[j].Index
	})
	return fileResults
}

func (b *BatchProcessor) progressFor(path string) extract.ProgressFunc {
	if b.report == nil {
		return nil
	}
	return func(pct int) {
		if pct >= 100 {
			if b.limiter != nil {
				b.limiter.Forget(path)
			}
			b.report(path, pct)
			return
		}
		if b.limiter == nil || b.limiter.Allow(path) {
			b.report(path, pct)
		}
	}
}

// ProcessFile reads export paths from a list file and processes them
func (b *BatchProcessor) ProcessFile(ctx context.Context, listPath string) ([]*FileResult, error) {
	paths, err := ReadPathsFromFile(listPath)
	if err != nil {
		return nil, fmt.Errorf("read paths: %w", err)
	}

	return b.ProcessPaths(ctx, paths), nil
}

// ReadPathsFromFile reads export paths, one per line. Blank lines and
// "#" comments are skipped, duplicates dropped, and relative paths are
// resolved against the list file's directory.
func ReadPathsFromFile(listPath string) ([]string, error) {
	file, err := os.Open(listPath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	base := filepath.Dir(listPath)
	var paths []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !filepath.IsAbs(line) {
			line = filepath.Join(base, line)
		}
		line = filepath.Clean(line)

		if !seen[line] {
			seen[line] = true
			paths = append(paths, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return paths, nil
}
