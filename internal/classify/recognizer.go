package classify

import (
	"math"
	"strconv"
	"strings"

	"github.com/ppiankov/geotrail/internal/model"
)

// Well-known keys of the offset-path convention
const (
	TimelinePathKey = "timelinePath"
	PathPointKey    = "point"
	OffsetKey       = "durationMinutesOffsetFromStartTime"
	LatitudeE7Key   = "latitudeE7"
	LongitudeE7Key  = "longitudeE7"
)

// GeoKeys are the coordinate-bearing geo-string keys in priority order
var GeoKeys = []string{"point", "placeLocation", "start", "end", "location"}

// Match is the outcome of running a recognizer against one object
type Match int

const (
	MatchNone      Match = iota // Convention not present on this node
	MatchOK                     // Coordinates recovered
	MatchMalformed              // Convention present but the value did not parse
)

// Recognizer detects one coordinate-bearing convention on an object node
type Recognizer interface {
	// Name is the convention label used in success samples (e.g. "geo-string")
	Name() string

	// Field is the key the convention is anchored on, for structural locators
	Field() string

	// Format is the tally entry this convention belongs to
	Format() model.Format

	// Recognize inspects obj and reports whether coordinates were recovered
	Recognize(obj map[string]any) (model.Coords, Match)
}

// Registry is an ordered list of recognizers. The first recognizer that
// returns MatchOK wins for a node, so the order is part of the contract.
type Registry struct {
	recognizers []Recognizer
}

// NewRegistry creates a registry with the built-in conventions
func NewRegistry() *Registry {
	registry := &Registry{
		recognizers: make([]Recognizer, 0, len(GeoKeys)+1),
	}

	for _, key := range GeoKeys {
		registry.Register(&GeoKeyRecognizer{Key: key})
	}
	registry.Register(&ScaledPairRecognizer{})

	return registry
}

// Register appends a recognizer at the lowest priority
func (r *Registry) Register(recognizer Recognizer) {
	r.recognizers = append(r.recognizers, recognizer)
}

// Recognizers returns the recognizers in priority order
func (r *Registry) Recognizers() []Recognizer {
	return r.recognizers
}

// First returns the coordinates of the highest-priority matching recognizer
func (r *Registry) First(obj map[string]any) (model.Coords, Recognizer, bool) {
	for _, recognizer := range r.recognizers {
		if coords, match := recognizer.Recognize(obj); match == MatchOK {
			return coords, recognizer, true
		}
	}
	return model.Coords{}, nil, false
}

// GeoKeyRecognizer matches a geo-string stored under Key
type GeoKeyRecognizer struct {
	Key string
}

// Name returns the convention label
func (g *GeoKeyRecognizer) Name() string { return "geo-string" }

// Field returns the anchoring key
func (g *GeoKeyRecognizer) Field() string { return g.Key }

// Format returns the tally entry
func (g *GeoKeyRecognizer) Format() model.Format { return model.FormatGeoString }

// Recognize parses obj[Key] when it is a geo-prefixed string
func (g *GeoKeyRecognizer) Recognize(obj map[string]any) (model.Coords, Match) {
	s, ok := obj[g.Key].(string)
	if !ok || !IsGeoString(s) {
		return model.Coords{}, MatchNone
	}
	coords, ok := ParseGeoString(s)
	if !ok {
		return model.Coords{}, MatchMalformed
	}
	return coords, MatchOK
}

// ScaledPairRecognizer matches latitudeE7/longitudeE7 siblings. Zero is a
// valid value (equator, prime meridian), so only absence or a non-numeric
// value disqualifies a field.
type ScaledPairRecognizer struct{}

// Name returns the convention label
func (s *ScaledPairRecognizer) Name() string { return "e7-coords" }

// Field returns the anchoring key
func (s *ScaledPairRecognizer) Field() string { return LatitudeE7Key }

// Format returns the tally entry
func (s *ScaledPairRecognizer) Format() model.Format { return model.FormatE7 }

// Recognize divides both fields by 1e7 when both are numeric
func (s *ScaledPairRecognizer) Recognize(obj map[string]any) (model.Coords, Match) {
	latRaw, hasLat := obj[LatitudeE7Key]
	lngRaw, hasLng := obj[LongitudeE7Key]
	hasLat = hasLat && latRaw != nil
	hasLng = hasLng && lngRaw != nil

	if !hasLat && !hasLng {
		return model.Coords{}, MatchNone
	}
	if !hasLat || !hasLng {
		return model.Coords{}, MatchMalformed
	}

	lat, okLat := ToFloat(latRaw)
	lng, okLng := ToFloat(lngRaw)
	if !okLat || !okLng {
		return model.Coords{}, MatchMalformed
	}

	return model.Coords{Lat: lat / ScaledCoordFactor, Lng: lng / ScaledCoordFactor}, MatchOK
}

// RecognizePathElement inspects one element of an offset-path array and
// returns its coordinates plus its minute offset from the shared start.
func RecognizePathElement(elem any) (model.Coords, int64, Match) {
	obj, ok := elem.(map[string]any)
	if !ok {
		return model.Coords{}, 0, MatchNone
	}
	s, ok := obj[PathPointKey].(string)
	if !ok || !IsGeoString(s) {
		return model.Coords{}, 0, MatchNone
	}
	coords, ok := ParseGeoString(s)
	if !ok {
		return model.Coords{}, 0, MatchMalformed
	}
	return coords, ParseOffsetMinutes(obj[OffsetKey]), MatchOK
}

// ParseOffsetMinutes reads a minutes offset the way export tooling writes
// it: a number, or a string whose leading integer is used. Anything else is
// zero. Negative offsets pass through unchanged; values beyond the int64
// range saturate so OffsetTime can reject them.
func ParseOffsetMinutes(v any) int64 {
	if s, ok := v.(string); ok {
		return leadingInt(strings.TrimSpace(s))
	}
	f, ok := ToFloat(v)
	if !ok || math.IsNaN(f) {
		return 0
	}
	switch {
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(f)
}

func leadingInt(s string) int64 {
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digitsStart := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digitsStart {
		return 0
	}
	// On a range error ParseInt returns the saturated bound
	n, _ := strconv.ParseInt(s[:end], 10, 64)
	return n
}
