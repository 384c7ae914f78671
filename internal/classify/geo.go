// Package classify recognizes value shapes inside location-history exports.
// Every function here is pure: it looks at one JSON value and answers a
// question about it without traversal state, logging or errors.
package classify

import (
	"math"
	"strconv"
	"strings"

	"github.com/ppiankov/geotrail/internal/model"
)

// GeoPrefix is the literal prefix of a geo-string ("geo:<lat>,<lng>")
const GeoPrefix = "geo:"

// IsGeoString reports whether s carries the geo-string prefix
func IsGeoString(s string) bool {
	return strings.HasPrefix(s, GeoPrefix)
}

// ParseGeoString parses "geo:<lat>,<lng>". It does not range-check the
// result; implausible values are reported by the diagnostic walker instead.
func ParseGeoString(s string) (model.Coords, bool) {
	if !IsGeoString(s) {
		return model.Coords{}, false
	}

	parts := strings.Split(strings.TrimPrefix(s, GeoPrefix), ",")
	if len(parts) < 2 {
		return model.Coords{}, false
	}

	lat, ok := parseFinite(parts[0])
	if !ok {
		return model.Coords{}, false
	}
	lng, ok := parseFinite(parts[1])
	if !ok {
		return model.Coords{}, false
	}

	return model.Coords{Lat: lat, Lng: lng}, true
}

func parseFinite(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
