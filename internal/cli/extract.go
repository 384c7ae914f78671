package cli

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ppiankov/geotrail/internal/extract"
	"github.com/ppiankov/geotrail/internal/model"
	"github.com/ppiankov/geotrail/internal/pipeline"
	"github.com/ppiankov/geotrail/internal/stats"
	"github.com/ppiankov/geotrail/internal/store"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	outPoints    string
	outSQLite    string
	privacyLevel string
	timezone     string
	maxNodes     int
	noCache      bool
	noProgress   bool
	shareText    bool
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Extract time-sorted location points from an export",
	Long: `Extract walks a location-history JSON export and collects every point
it can resolve to coordinates and a timestamp:
- geo-strings under point, placeLocation, start, end or location
- latitudeE7/longitudeE7 pairs
- timelinePath entries offset from their segment's start time

Points can be coarsened with --privacy before they are written.

Example:
  geotrail extract Timeline.json
  geotrail extract Records.json --json points.json --privacy medium
  geotrail extract Timeline.json --sqlite trail.db --timezone Asia/Tokyo
  geotrail extract Timeline.json --privacy max --share`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringVar(&outPoints, "json", "", "write points as JSON to this path (- for stdout)")
	extractCmd.Flags().StringVar(&outSQLite, "sqlite", "", "append points to this SQLite database")
	addExtractFlags(extractCmd.Flags())
	extractCmd.Flags().BoolVar(&noProgress, "no-progress", false, "hide the progress bar")
	extractCmd.Flags().BoolVar(&shareText, "share", false, "print a short shareable summary to stdout")
}

// addExtractFlags registers the flags shared by extract, batch and watch
func addExtractFlags(fs *pflag.FlagSet) {
	fs.StringVar(&privacyLevel, "privacy", "none", "privacy level (none, low, medium, high, max, or its index 0-4)")
	fs.StringVar(&timezone, "timezone", "UTC", "IANA timezone used for each point's year")
	fs.IntVar(&maxNodes, "max-nodes", 2_000_000, "maximum JSON nodes to visit")
	fs.BoolVar(&noCache, "no-cache", false, "disable the extraction cache")
}

// applyExtractFlags overrides config values with explicitly set flags
func applyExtractFlags(cmd *cobra.Command, cfg *model.Config) {
	flags := cmd.Flags()
	if flags.Changed("privacy") {
		cfg.Privacy.Level = privacyLevel
	}
	if flags.Changed("timezone") {
		cfg.Extract.Timezone = timezone
	}
	if flags.Changed("max-nodes") {
		cfg.Extract.MaxNodes = maxNodes
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
}

func runExtract(cmd *cobra.Command, args []string) error {
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

	var onProgress extract.ProgressFunc
	if !noProgress {
		onProgress = progressBar(path)
	}

	result, err := p.Process(ctx, path, onProgress)
	if err != nil {
		if errors.Is(err, extract.ErrNoPointsFound) {
			return fmt.Errorf("%w\nRun 'geotrail diagnose %s' to see which structures were found and why they were rejected", err, path)
		}
		return fmt.Errorf("extract failed: %w", err)
	}

	if err := p.RenderExtraction(result, outPoints); err != nil {
		return err
	}

	if outSQLite != "" {
		if err := savePoints(cmd, outSQLite, result); err != nil {
			return err
		}
	}

	if shareText {
		fmt.Fprintln(cmd.OutOrStdout(), stats.ShareText(result.Stats))
	}

	return nil
}

func savePoints(cmd *cobra.Command, dbPath string, result *pipeline.ExtractResult) error {
	db, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	src := store.Source{
		Path:         result.Source.Path,
		SHA256:       result.Source.SHA256,
		PrivacyLevel: result.PrivacyLevel,
	}
	if err := db.SavePoints(cmd.Context(), src, result.Points); err != nil {
		return fmt.Errorf("save points: %w", err)
	}

	byYear, err := db.CountByYear(cmd.Context())
	if err != nil {
		return err
	}

	errOut := cmd.ErrOrStderr()
	fmt.Fprintf(errOut, "✓ Saved %d points to %s\n", len(result.Points), dbPath)
	fmt.Fprint(errOut, formatYearCounts(byYear))
	return nil
}

// formatYearCounts lists stored points per year, oldest first
func formatYearCounts(byYear map[int]int) string {
	years := make([]int, 0, len(byYear))
	for year := range byYear {
		years = append(years, year)
	}
	sort.Ints(years)

	var b strings.Builder
	for _, year := range years {
		fmt.Fprintf(&b, "  %d: %s points\n", year, stats.FormatLargeNumber(byYear[year]))
	}
	return b.String()
}

// progressBar draws a single-line bar on stderr
func progressBar(label string) extract.ProgressFunc {
	const width = 30
	last := -1
	return func(pct int) {
		if pct == last {
			return
		}
		last = pct
		filled := pct * width / 100
		fmt.Fprintf(os.Stderr, "\r%s [%s%s] %3d%%", label, strings.Repeat("█", filled), strings.Repeat("░", width-filled), pct)
		if pct >= 100 {
			fmt.Fprintln(os.Stderr)
		}
	}
}
