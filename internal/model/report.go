package model

import "time"

// ReportVersion is the schema version of the diagnostic report
const ReportVersion = "1.1.0"

// Report is the privacy-safe diagnostic report. It carries counts,
// categories and structural key/path names only; no scanned value
// (string content, number, coordinate or timestamp) may ever appear in it.
type Report struct {
	Version     string    `json:"version"`
	ReportID    string    `json:"report_id"`
	BuildInfo   string    `json:"build_info,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`

	FileStats   FileStats   `json:"file_stats"`
	FilterStats FilterStats `json:"filter_stats"`
	Formats     FormatTally `json:"supported_formats"`

	SuccessSamples []SuccessSample   `json:"success_samples"`
	RootShape      *ShapeNode        `json:"root_schema"`
	Rejections     []RejectionRecord `json:"errors"`

	Recommendations []string `json:"recommendations"`
}

// FileStats describes the scanned document as a whole
type FileStats struct {
	EstimatedRecords  int  `json:"estimated_records"`
	MaxDepth          int  `json:"max_depth"`
	UniqueKeyPatterns int  `json:"unique_key_patterns"`
	ScannedNodes      int  `json:"scanned_nodes"`
	ScanLimitReached  bool `json:"scan_limit_reached"`
}

// FilterStats counts candidates per outcome. Extracted matches the number
// of points the extraction walker returns for the same input.
type FilterStats struct {
	TotalCandidates      int `json:"total_candidates"`
	InvalidCoords        int `json:"invalid_coords"`
	NoTimestamp          int `json:"no_timestamp"`
	NonPositiveTimestamp int `json:"zero_or_negative_ts"`
	Extracted            int `json:"successful_extraction"`
	InvalidTimeFields    int `json:"invalid_time_fields"`
}

// SuccessSample is an anonymized locator of a successful extraction
type SuccessSample struct {
	Path         string `json:"path"`
	Format       string `json:"format"`
	HasTimestamp bool   `json:"has_timestamp"`
}

// Stage identifies where a candidate was rejected
type Stage string

const (
	StageCoords    Stage = "coords"
	StageTimestamp Stage = "timestamp"
	StageFilter    Stage = "filter"
	StageUnknown   Stage = "unknown"
)

// RejectionRecord explains one rejected candidate. Path is a structural
// locator built from key names and array indices only.
type RejectionRecord struct {
	Path    string `json:"path"`
	Stage   Stage  `json:"stage"`
	Message string `json:"message"`
}

// Format is one of the known point-encoding conventions
type Format string

const (
	FormatGeoString      Format = "geo:lat,lng strings"
	FormatE7             Format = "latitudeE7/longitudeE7"
	FormatTimelinePath   Format = "timelinePath array"
	FormatStartTime      Format = "startTime field"
	FormatTimestamp      Format = "timestamp field"
	FormatTimestampMs    Format = "timestampMs field"
	FormatPlaceLocation  Format = "placeLocation"
	FormatPointField     Format = "point field"
	FormatDurationOffset Format = "durationMinutesOffset"
)

// AllFormats lists the known formats in report order
var AllFormats = []Format{
	FormatGeoString,
	FormatE7,
	FormatTimelinePath,
	FormatStartTime,
	FormatTimestamp,
	FormatTimestampMs,
	FormatPlaceLocation,
	FormatPointField,
	FormatDurationOffset,
}

// FormatCount is a single tally entry
type FormatCount struct {
	Format Format `json:"format"`
	Found  bool   `json:"found"`
	Count  int    `json:"count"`
}

// FormatTally counts occurrences of every known format, in AllFormats order
type FormatTally []FormatCount

// NewFormatTally returns a tally with every known format at zero
func NewFormatTally() FormatTally {
	tally := make(FormatTally, len(AllFormats))
	for i, f := range AllFormats {
		tally[i] = FormatCount{Format: f}
	}
	return tally
}

// Add increments the count for f
func (t FormatTally) Add(f Format) {
	for i := range t {
		if t[i].Format == f {
			t[i].Count++
			t[i].Found = true
			return
		}
	}
	panic("model: unknown format " + string(f))
}

// Count returns the count for f
func (t FormatTally) Count(f Format) int {
	for _, fc := range t {
		if fc.Format == f {
			return fc.Count
		}
	}
	return 0
}

// Total returns the sum of all counts
func (t FormatTally) Total() int {
	total := 0
	for _, fc := range t {
		total += fc.Count
	}
	return total
}

// AnyFound reports whether at least one format was seen
func (t FormatTally) AnyFound() bool {
	for _, fc := range t {
		if fc.Found {
			return true
		}
	}
	return false
}

// ShapeType is the JSON type of a shape node
type ShapeType string

const (
	ShapeObject  ShapeType = "object"
	ShapeArray   ShapeType = "array"
	ShapeString  ShapeType = "string"
	ShapeNumber  ShapeType = "number"
	ShapeBoolean ShapeType = "boolean"
	ShapeNull    ShapeType = "null"
	ShapeUnknown ShapeType = "undefined"
)

// NumberShape is the inferred range category of a number
type NumberShape string

const (
	NumberScaledCoord NumberShape = "e7coords"
	NumberTimestamp   NumberShape = "timestamp"
	NumberSmall       NumberShape = "small"
	NumberOther       NumberShape = "other"
)

// ShapeNode is an abstract, value-free description of a JSON node
type ShapeNode struct {
	Type         ShapeType             `json:"type"`
	Keys         []string              `json:"keys,omitempty"`
	ArrayLength  *int                  `json:"array_length,omitempty"`
	StringFormat string                `json:"string_format,omitempty"`
	NumberRange  NumberShape           `json:"number_range,omitempty"`
	Truncated    bool                  `json:"truncated,omitempty"`
	Children     map[string]*ShapeNode `json:"children,omitempty"`
}
