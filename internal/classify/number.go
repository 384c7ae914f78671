package classify

import (
	"encoding/json"
	"math"

	"github.com/ppiankov/geotrail/internal/model"
)

// ScaledCoordFactor converts a scaled-integer coordinate to degrees
const ScaledCoordFactor = 1e7

// ClassifyNumber categorizes n by magnitude. This is a heuristic: an ID
// can look like a scaled coordinate, and callers cross-check with sibling
// fields wherever a decision depends on it.
func ClassifyNumber(n float64, th model.Thresholds) model.NumberShape {
	abs := math.Abs(n)

	if n == math.Trunc(n) && abs > th.ScaledCoordMin && abs < th.ScaledCoordMax {
		return model.NumberScaledCoord
	}
	if n > th.TimestampMin && n < th.TimestampMax {
		return model.NumberTimestamp
	}
	if abs < th.SmallMax {
		return model.NumberSmall
	}
	return model.NumberOther
}

// ToFloat converts a decoded JSON number to float64. It accepts the
// float64 produced by encoding/json, json.Number from a UseNumber decoder,
// and plain Go integers for hand-built trees. Non-finite values are rejected.
func ToFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
