package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/ppiankov/geotrail/internal/extract"
	"github.com/ppiankov/geotrail/internal/pipeline"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	watchJSON     string
	watchDebounce time.Duration
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch <file>",
	Short: "Re-run extraction whenever an export file changes",
	Long: `Watch extracts the export once, then again every time the file is
written or replaced, until interrupted.

Example:
  geotrail watch Timeline.json --json points.json`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchJSON, "json", "", "write points as JSON to this path after each run")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 500*time.Millisecond, "wait for writes to settle before re-running")
	addExtractFlags(watchCmd.Flags())
}

func runWatch(cmd *cobra.Command, args []string) error {
	path := args[0]
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyExtractFlags(cmd, cfg)

	p, err := pipeline.NewPipeline(cfg, logger)
	if err != nil {
		return err
	}

	run := func() {
		result, err := p.Process(ctx, path, nil)
		switch {
		case errors.Is(err, extract.ErrNoPointsFound):
			fmt.Fprintf(os.Stderr, "✗ %s: no points found (try 'geotrail diagnose %s')\n", path, path)
			return
		case err != nil:
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", path, err)
			return
		}
		if err := p.RenderExtraction(result, watchJSON); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		}
	}

	run()
	fmt.Fprintf(os.Stderr, "Watching %s (Ctrl-C to stop)\n", path)

	err = watchFile(ctx, path, watchDebounce, run)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// watchFile calls onChange once writes to path have been quiet for
// debounce. It watches the parent directory so editors that replace the
// file by rename are still seen. It returns when ctx is done.
func watchFile(ctx context.Context, path string, debounce time.Duration, onChange func()) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	tick := debounce / 5
	if tick <= 0 {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	var pending time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				logger.Debug("export changed", zap.String("op", event.Op.String()))
				pending = time.Now()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", zap.Error(err))

		case <-ticker.C:
			if !pending.IsZero() && time.Since(pending) >= debounce {
				pending = time.Time{}
				onChange()
			}
		}
	}
}
