package classify

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/ppiankov/geotrail/internal/model"
)

// StringKind is the inferred category of a string value
type StringKind int

const (
	StringText StringKind = iota
	StringGeo
	StringISO8601
	StringDateOnly
	StringURL
	StringBase64Like
	StringLongText
)

// StringShape describes a string without carrying its content
type StringShape struct {
	Kind   StringKind
	Length int // rune count
}

var (
	isoDateTimePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T`)
	dateOnlyPattern    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	urlPattern         = regexp.MustCompile(`^https?://`)
	base64Pattern      = regexp.MustCompile(`^[A-Za-z0-9+/=]+$`)
)

// ClassifyString infers the format of s. Only used for shape summaries;
// the extraction path relies on ParseGeoString and ParseTime directly.
func ClassifyString(s string, th model.Thresholds) StringShape {
	length := utf8.RuneCountInString(s)

	switch {
	case IsGeoString(s):
		return StringShape{Kind: StringGeo, Length: length}
	case isoDateTimePattern.MatchString(s):
		return StringShape{Kind: StringISO8601, Length: length}
	case dateOnlyPattern.MatchString(s):
		return StringShape{Kind: StringDateOnly, Length: length}
	case urlPattern.MatchString(s):
		return StringShape{Kind: StringURL, Length: length}
	case length > th.Base64MinLength && base64Pattern.MatchString(s):
		return StringShape{Kind: StringBase64Like, Length: length}
	case length > th.LongStringLength:
		return StringShape{Kind: StringLongText, Length: length}
	default:
		return StringShape{Kind: StringText, Length: length}
	}
}

// Label renders the shape for reports. Content never appears, only the
// category and, for opaque text, its length.
func (s StringShape) Label() string {
	switch s.Kind {
	case StringGeo:
		return "geo:lat,lng"
	case StringISO8601:
		return "ISO8601"
	case StringDateOnly:
		return "date-only"
	case StringURL:
		return "url"
	case StringBase64Like:
		return "base64-like"
	case StringLongText:
		return fmt.Sprintf("long-string(%dchars)", s.Length)
	default:
		return fmt.Sprintf("string(%dchars)", s.Length)
	}
}
