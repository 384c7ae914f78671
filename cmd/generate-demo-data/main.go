// Generates a synthetic location-history export for demos and manual testing.
// The same seed always produces the same file.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ppiankov/geotrail/internal/demo"
	"github.com/ppiankov/geotrail/internal/stats"
)

func main() {
	opts := demo.DefaultOptions()

	out := flag.String("out", "demo-location-history.json", "output path (- for stdout)")
	seed := flag.Uint64("seed", opts.Seed, "random seed")
	days := flag.Int("days", opts.Days, "number of days to generate")
	flag.Parse()

	opts.Seed = *seed
	opts.Days = *days

	exp := demo.New(opts).Generate()

	if *out == "-" {
		if err := demo.Write(os.Stdout, exp); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	} else {
		if err := writeFile(*out, exp); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Saved to %s\n", *out)
	}

	fmt.Fprintf(os.Stderr, "Generated %s points\n", stats.FormatLargeNumber(exp.Points))
	fmt.Fprintf(os.Stderr, "Date range: %s - %s\n", exp.First.Format("2006-01-02"), exp.Last.Format("2006-01-02"))
}

func writeFile(path string, exp *demo.Export) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	return demo.Write(f, exp)
}
