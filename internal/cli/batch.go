package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/geotrail/internal/pipeline"
	"github.com/ppiankov/geotrail/internal/stats"
	"github.com/ppiankov/geotrail/internal/worker"
	"github.com/spf13/cobra"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Extract many exports listed in a file in parallel",
	Long: `Batch extracts several exports concurrently:
- Read export paths from the input file (one per line, # for comments)
- Relative paths are resolved against the input file's directory
- Each export is extracted by a pool of workers
- Points for each export are written to the output directory

Example:
  geotrail batch exports.txt
  geotrail batch exports.txt --concurrency 8 --output-dir ./points
  geotrail batch exports.txt --privacy high --timeout 30m`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent workers (default from config)")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./geotrail-points", "output directory for point files")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().BoolVar(&noProgress, "no-progress", false, "hide per-file progress lines")
	addExtractFlags(batchCmd.Flags())
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyExtractFlags(cmd, cfg)
	if concurrency > 0 {
		cfg.Concurrency.Workers = concurrency
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  geotrail batch extraction\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.Concurrency.Workers)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Privacy:      %s\n", cfg.Privacy.Level)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	p, err := pipeline.NewPipeline(cfg, logger)
	if err != nil {
		return err
	}

	report := func(path string, pct int) {
		fmt.Fprintf(os.Stderr, "  … %s %d%%\n", filepath.Base(path), pct)
	}
	if noProgress {
		report = nil
	}

	processor := worker.NewBatchProcessor(p, cfg.Concurrency.Workers,
		cfg.Concurrency.ProgressPerSecond, cfg.Concurrency.ProgressBurst, report)

	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	fmt.Fprintf(os.Stderr, "\n")

	successCount := 0
	failureCount := 0
	totalPoints := 0

	for _, result := range results {
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Path, result.Error)
			continue
		}

		name := fmt.Sprintf("%03d-%s.points.json", result.Index+1, sanitizeFilename(result.Path))
		outPath := filepath.Join(outputDir, name)
		if err := p.RenderExtraction(result.Result, outPath); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write points: %v\n", result.Path, err)
			continue
		}

		successCount++
		totalPoints += len(result.Result.Points)
		fmt.Fprintf(os.Stderr, "✓ %s (%s points)\n", result.Path, stats.FormatLargeNumber(len(result.Result.Points)))
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d exports\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Points:    %s\n", stats.FormatLargeNumber(totalPoints))
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	if failureCount > 0 && successCount == 0 {
		return fmt.Errorf("all %d exports failed", failureCount)
	}
	return nil
}

var filenameReplacer = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
	" ", "-",
)

// sanitizeFilename turns an export path into a safe file name stem
func sanitizeFilename(path string) string {
	s := filepath.Base(path)
	s = strings.TrimSuffix(s, filepath.Ext(s))
	s = filenameReplacer.Replace(s)

	if len(s) > 100 {
		s = s[:100]
	}
	if s == "" || s == "." {
		s = "export"
	}
	return s
}
