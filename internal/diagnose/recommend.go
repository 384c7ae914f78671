package diagnose

import (
	"fmt"

	"github.com/ppiankov/geotrail/internal/model"
)

const recommendNormal = "The data format was recognized normally."

// failureWarnAbove is the per-convention parse failure count past which
// the convention is flagged as possibly unsupported
const failureWarnAbove = 3

// recommend derives advice from counts only
func (d *Diagnoser) recommend(tally model.FormatTally, filter model.FilterStats, failures parseFailures, files model.FileStats) []string {
	var recs []string

	if !tally.AnyFound() {
		recs = append(recs, "No supported location format was found. Check that the file is a location history export (Timeline or Records).")
	}
	if filter.NoTimestamp > d.cfg.NoTimestampThreshold {
		recs = append(recs, fmt.Sprintf("%d locations have no resolvable timestamp. Check the startTime, timestamp or timestampMs fields near those locations.", filter.NoTimestamp))
	}
	if filter.InvalidCoords > d.cfg.InvalidCoordsThreshold {
		recs = append(recs, fmt.Sprintf("%d coordinate fields could not be parsed. The coordinate encoding may differ from the supported formats.", filter.InvalidCoords))
	}
	if filter.InvalidTimeFields > d.cfg.InvalidTimeThreshold {
		recs = append(recs, fmt.Sprintf("%d time fields are not recognizable dates. The date format may be unsupported.", filter.InvalidTimeFields))
	}
	if filter.NonPositiveTimestamp > 0 {
		recs = append(recs, fmt.Sprintf("%d locations resolved to a zero or negative timestamp and were dropped.", filter.NonPositiveTimestamp))
	}
	if filter.TotalCandidates > 0 && filter.Extracted == 0 {
		recs = append(recs, "Locations were found but none could be extracted. See the errors section for the failing stage.")
	}
	if filter.Extracted > 0 {
		recs = append(recs, fmt.Sprintf("%d locations were extracted successfully.", filter.Extracted))
	}

	for _, f := range []struct {
		label string
		count int
	}{
		{"geo-string", failures.geo},
		{"latitudeE7/longitudeE7", failures.e7},
		{"time", failures.time},
	} {
		if f.count > failureWarnAbove {
			recs = append(recs, fmt.Sprintf("%d %s values failed to parse. This encoding may not be supported.", f.count, f.label))
		}
	}

	if n := tally.Count(model.FormatTimelinePath); n > 0 {
		recs = append(recs, fmt.Sprintf("Detected %d timelinePath arrays (supported).", n))
	}
	if n := tally.Count(model.FormatE7); n > 0 {
		recs = append(recs, fmt.Sprintf("Detected %d latitudeE7/longitudeE7 fields (supported).", n))
	}
	if n := tally.Count(model.FormatDurationOffset); n > 0 {
		recs = append(recs, fmt.Sprintf("Detected %d durationMinutesOffset fields (minute offsets inside timelinePath).", n))
	}

	if files.ScanLimitReached {
		recs = append(recs, fmt.Sprintf("The scan stopped after %d nodes. The file may be larger than the supported size.", files.ScannedNodes))
	}

	if len(recs) == 0 {
		recs = append(recs, recommendNormal)
	}
	return recs
}
