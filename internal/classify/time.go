package classify

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// AbsoluteTimeKeys are probed in order; the first present one wins
var AbsoluteTimeKeys = []string{"startTime", "timestamp", "timestampMs"}

// maxEpochMillis is the ECMAScript date range limit, kept so that values
// outside any plausible calendar are treated as unparseable.
const maxEpochMillis = 8.64e15

var (
	digitsPattern = regexp.MustCompile(`^-?\d+$`)

	timeLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999Z0700",
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02",
	}
)

// Truthy mirrors how export tooling treats optional fields: null, false,
// empty strings, zero and NaN count as absent.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0 && !math.IsNaN(x)
	default:
		if f, ok := ToFloat(v); ok {
			return f != 0
		}
		return true
	}
}

// OwnTime returns the first present absolute-time field of obj and its key
func OwnTime(obj map[string]any) (any, string, bool) {
	for _, key := range AbsoluteTimeKeys {
		if v, ok := obj[key]; ok && Truthy(v) {
			return v, key, true
		}
	}
	return nil, "", false
}

// ParseTime resolves an absolute-time value to epoch milliseconds.
// Strings may be ISO-8601 date-times (zone-less values are read as UTC),
// date-only, or all-digit epoch milliseconds; numbers are epoch
// milliseconds. A result of exactly zero counts as unresolved.
func ParseTime(v any) (int64, bool) {
	if v == nil {
		return 0, false
	}

	if s, ok := v.(string); ok {
		return parseTimeString(strings.TrimSpace(s))
	}

	f, ok := ToFloat(v)
	if !ok || math.Abs(f) > maxEpochMillis {
		return 0, false
	}
	ms := int64(f)
	return ms, ms != 0
}

func parseTimeString(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}

	if digitsPattern.MatchString(s) {
		ms, err := strconv.ParseInt(s, 10, 64)
		if err != nil || math.Abs(float64(ms)) > maxEpochMillis {
			return 0, false
		}
		return ms, ms != 0
	}

	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			ms := t.UnixMilli()
			return ms, ms != 0
		}
	}
	return 0, false
}

// OffsetTime adds a minute offset to an epoch-millisecond base. It fails
// when the result overflows or leaves the representable date range.
func OffsetTime(base, minutes int64) (int64, bool) {
	const msPerMinute = 60_000
	if minutes > math.MaxInt64/msPerMinute || minutes < math.MinInt64/msPerMinute {
		return 0, false
	}
	delta := minutes * msPerMinute
	if (delta > 0 && base > math.MaxInt64-delta) || (delta < 0 && base < math.MinInt64-delta) {
		return 0, false
	}
	ts := base + delta
	if math.Abs(float64(ts)) > maxEpochMillis {
		return 0, false
	}
	return ts, true
}
