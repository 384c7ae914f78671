// Package diagnose builds a privacy-safe structural report of a location
// history document. It walks the tree exactly like the extraction walker
// (same stack discipline, same timestamp inheritance, same node ceiling)
// so its counts line up with what extraction produces, and it never copies
// a scanned value into the report.
package diagnose

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/geotrail/internal/classify"
	"github.com/ppiankov/geotrail/internal/extract"
	"github.com/ppiankov/geotrail/internal/model"
)

// Rejection messages. They are fixed strings: a message must never be
// built from a scanned value.
const (
	msgGeoMalformed     = "geo-string did not parse into two finite numbers"
	msgE7Malformed      = "latitudeE7/longitudeE7 pair is incomplete or not numeric"
	msgNoTimestamp      = "coordinates parsed but no timestamp was resolvable from this node or its ancestors"
	msgNonPositive      = "resolved timestamp is zero or negative"
	msgBadTimeField     = "absolute time field is present but not a recognizable date"
	msgPathNotArray     = "timelinePath is not an array"
	msgPathNoBase       = "timelinePath has no start time on this node or its ancestors"
	msgPathElemNoObject = "timelinePath element is not an object"
	msgPathElemNoPoint  = "timelinePath element has no geo-string point"
)

// offsetPathFormat labels success samples from offset-path expansion
const offsetPathFormat = "offset-path"

// Diagnoser produces diagnostic reports. It holds configuration only.
type Diagnoser struct {
	cfg        model.DiagnoseConfig
	thresholds model.Thresholds
	registry   *classify.Registry
	buildInfo  string
	now        func() time.Time
	newID      func() string
}

// Option customizes a Diagnoser
type Option func(*Diagnoser)

// WithBuildInfo stamps the report with the producing build
func WithBuildInfo(info string) Option {
	return func(d *Diagnoser) { d.buildInfo = info }
}

// WithClock overrides the report generation clock
func WithClock(now func() time.Time) Option {
	return func(d *Diagnoser) {
		if now != nil {
			d.now = now
		}
	}
}

// WithRegistry replaces the recognizer registry; it must match the one
// used for extraction for the counts to be comparable.
func WithRegistry(r *classify.Registry) Option {
	return func(d *Diagnoser) {
		if r != nil {
			d.registry = r
		}
	}
}

// NewDiagnoser creates a diagnoser. Non-positive caps fall back to defaults.
func NewDiagnoser(cfg model.DiagnoseConfig, thresholds model.Thresholds, opts ...Option) *Diagnoser {
	defaults := model.DefaultDiagnoseConfig()
	if cfg.MaxNodes <= 0 {
		cfg.MaxNodes = defaults.MaxNodes
	}
	if cfg.MaxRejections <= 0 {
		cfg.MaxRejections = defaults.MaxRejections
	}
	if cfg.MaxSuccessSamples <= 0 {
		cfg.MaxSuccessSamples = defaults.MaxSuccessSamples
	}
	if cfg.ShapeDepth <= 0 {
		cfg.ShapeDepth = defaults.ShapeDepth
	}
	if cfg.ShapeListedKeys <= 0 {
		cfg.ShapeListedKeys = defaults.ShapeListedKeys
	}
	if cfg.ShapeExpandedKeys <= 0 {
		cfg.ShapeExpandedKeys = defaults.ShapeExpandedKeys
	}
	if cfg.DepthProbeLimit <= 0 {
		cfg.DepthProbeLimit = defaults.DepthProbeLimit
	}

	d := &Diagnoser{
		cfg:        cfg,
		thresholds: thresholds,
		registry:   classify.NewRegistry(),
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Diagnose scans root and returns the report
func (d *Diagnoser) Diagnose(root any) *model.Report {
	s := d.scan(root)

	rootShape := d.shape(root, 0)
	fileStats := model.FileStats{
		EstimatedRecords:  s.tally.Total(),
		MaxDepth:          maxDepth(root, 0, d.cfg.DepthProbeLimit),
		UniqueKeyPatterns: len(uniqueKeys(rootShape, map[string]struct{}{})),
		ScannedNodes:      s.scanned,
		ScanLimitReached:  s.limitReached,
	}

	return &model.Report{
		Version:         model.ReportVersion,
		ReportID:        d.newID(),
		BuildInfo:       d.buildInfo,
		GeneratedAt:     d.now().UTC(),
		FileStats:       fileStats,
		FilterStats:     s.filter,
		Formats:         s.tally,
		SuccessSamples:  s.samples,
		RootShape:       rootShape,
		Rejections:      s.rejections,
		Recommendations: d.recommend(s.tally, s.filter, s.parseFailures, fileStats),
	}
}

// scanState is the per-call mutable state of one diagnostic walk
type scanState struct {
	tally        model.FormatTally
	filter       model.FilterStats
	samples      []model.SuccessSample
	rejections   []model.RejectionRecord
	scanned      int
	limitReached bool

	parseFailures parseFailures

	maxRejections int
	maxSamples    int
}

// parseFailures counts failed parses per convention
type parseFailures struct {
	geo  int
	e7   int
	time int
}

func (s *scanState) countFailure(f model.Format) {
	if f == model.FormatE7 {
		s.parseFailures.e7++
		return
	}
	s.parseFailures.geo++
}

func (s *scanState) reject(at *locator, stage model.Stage, message string) {
	if len(s.rejections) < s.maxRejections {
		s.rejections = append(s.rejections, model.RejectionRecord{Path: at.String(), Stage: stage, Message: message})
	}
}

func (s *scanState) succeed(at *locator, format string) {
	s.filter.Extracted++
	if len(s.samples) < s.maxSamples {
		s.samples = append(s.samples, model.SuccessSample{Path: at.String(), Format: format, HasTimestamp: true})
	}
}

// resolve classifies a candidate whose coordinates already parsed
func (s *scanState) resolve(at *locator, format string, ts int64, hasTS bool) {
	s.filter.TotalCandidates++
	switch {
	case !hasTS:
		s.filter.NoTimestamp++
		s.reject(at, model.StageTimestamp, msgNoTimestamp)
	case ts <= 0:
		s.filter.NonPositiveTimestamp++
		s.reject(at, model.StageFilter, msgNonPositive)
	default:
		s.succeed(at, format)
	}
}

func (s *scanState) malformed(at *locator, message string) {
	s.filter.TotalCandidates++
	s.filter.InvalidCoords++
	s.reject(at, model.StageCoords, message)
}

// locator is a structural path rendered only when a record needs it.
// The nil locator is the document root.
type locator struct {
	parent  *locator
	key     string
	index   int
	isIndex bool
}

func (l *locator) child(key string) *locator {
	return &locator{parent: l, key: key}
}

func (l *locator) at(i int) *locator {
	return &locator{parent: l, index: i, isIndex: true}
}

func (l *locator) String() string {
	var segments []*locator
	for n := l; n != nil; n = n.parent {
		segments = append(segments, n)
	}

	var b strings.Builder
	b.WriteByte('$')
	for i := len(segments) - 1; i >= 0; i-- {
		seg := segments[i]
		if seg.isIndex {
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(seg.index))
			b.WriteByte(']')
			continue
		}
		b.WriteByte('.')
		b.WriteString(seg.key)
	}
	return b.String()
}

// frame mirrors the extraction walker's frame, plus the node's locator
type frame struct {
	node      any
	inherited any
	at        *locator
	pathArray bool
	consumed  bool
}

func (d *Diagnoser) scan(root any) *scanState {
	s := &scanState{
		tally:         model.NewFormatTally(),
		samples:       []model.SuccessSample{},
		rejections:    []model.RejectionRecord{},
		maxRejections: d.cfg.MaxRejections,
		maxSamples:    d.cfg.MaxSuccessSamples,
	}

	stack := []frame{{node: root}}
	for len(stack) > 0 && s.scanned < d.cfg.MaxNodes {
		top := stack[len(stack)-1]
		stack[len(stack)-1] = frame{}
		stack = stack[:len(stack)-1]
		s.scanned++

		switch node := top.node.(type) {
		case map[string]any:
			keys := classify.SortedKeys(node)

			// Expanded path elements were tallied and inspected at their parent
			var expanded bool
			if !top.consumed {
				d.tallyKeys(s, node, keys)
				expanded = d.inspect(s, node, top.inherited, top.at)
			}

			next := top.inherited
			if own, _, ok := classify.OwnTime(node); ok {
				next = own
			}

			for i := len(keys) - 1; i >= 0; i-- {
				if child := node[keys[i]]; classify.IsContainer(child) {
					stack = append(stack, frame{
						node:      child,
						inherited: next,
						at:        top.at.child(keys[i]),
						pathArray: expanded && keys[i] == classify.TimelinePathKey,
					})
				}
			}

		case []any:
			for i := len(node) - 1; i >= 0; i-- {
				stack = append(stack, frame{
					node:      node[i],
					inherited: top.inherited,
					at:        top.at.at(i),
					consumed:  top.pathArray,
				})
			}
		}
	}

	s.limitReached = len(stack) > 0
	return s
}

// tallyKeys counts the format conventions visible on one object
func (d *Diagnoser) tallyKeys(s *scanState, obj map[string]any, keys []string) {
	for _, key := range keys {
		val := obj[key]

		if str, ok := val.(string); ok && classify.IsGeoString(str) {
			s.tally.Add(model.FormatGeoString)
		}

		switch key {
		case classify.LatitudeE7Key, classify.LongitudeE7Key:
			s.tally.Add(model.FormatE7)
		case classify.TimelinePathKey:
			if _, ok := val.([]any); ok {
				s.tally.Add(model.FormatTimelinePath)
			}
		case "startTime":
			s.tally.Add(model.FormatStartTime)
		case "timestamp":
			s.tally.Add(model.FormatTimestamp)
		case "timestampMs":
			s.tally.Add(model.FormatTimestampMs)
		case "placeLocation":
			s.tally.Add(model.FormatPlaceLocation)
		case classify.PathPointKey:
			if _, ok := val.(string); ok {
				s.tally.Add(model.FormatPointField)
			}
		case classify.OffsetKey:
			s.tally.Add(model.FormatDurationOffset)
		}
	}
}

// inspect runs the extraction rules on one object and records why each
// candidate succeeded or failed. It reports whether the offset-path array
// was expanded, mirroring the extraction walker.
func (d *Diagnoser) inspect(s *scanState, obj map[string]any, inherited any, at *locator) bool {
	if own, key, ok := classify.OwnTime(obj); ok {
		if _, parsed := classify.ParseTime(own); !parsed {
			s.filter.InvalidTimeFields++
			s.parseFailures.time++
			s.reject(at.child(key), model.StageTimestamp, msgBadTimeField)
		}
	}

	base, hasBase := extract.ResolveBaseTime(obj, inherited)

	for _, recognizer := range d.registry.Recognizers() {
		_, match := recognizer.Recognize(obj)

		switch match {
		case classify.MatchNone:
			continue
		case classify.MatchMalformed:
			s.countFailure(recognizer.Format())
			s.malformed(at.child(recognizer.Field()), malformedMessage(recognizer))
			continue
		case classify.MatchOK:
			s.resolve(at.child(recognizer.Field()), recognizer.Name(), base, hasBase)
		default:
			panic("diagnose: unhandled recognizer match " + strconv.Itoa(int(match)))
		}
		break
	}

	raw, present := obj[classify.TimelinePathKey]
	if !present || raw == nil {
		return false
	}
	pathAt := at.child(classify.TimelinePathKey)
	elems, isArray := raw.([]any)
	if !isArray {
		s.reject(pathAt, model.StageUnknown, msgPathNotArray)
		return false
	}
	if !hasBase {
		s.reject(pathAt, model.StageTimestamp, msgPathNoBase)
		return false
	}

	for i, elem := range elems {
		elemObj, isObj := elem.(map[string]any)
		if isObj {
			d.tallyKeys(s, elemObj, classify.SortedKeys(elemObj))
		}

		_, offset, match := classify.RecognizePathElement(elem)
		switch match {
		case classify.MatchNone:
			if !isObj {
				s.reject(pathAt.at(i), model.StageUnknown, msgPathElemNoObject)
			} else {
				s.reject(pathAt.at(i), model.StageUnknown, msgPathElemNoPoint)
			}
		case classify.MatchMalformed:
			s.parseFailures.geo++
			s.malformed(pathAt.at(i).child(classify.PathPointKey), msgGeoMalformed)
		case classify.MatchOK:
			ts, ok := classify.OffsetTime(base, offset)
			s.resolve(pathAt.at(i).child(classify.PathPointKey), offsetPathFormat, ts, ok)
		default:
			panic("diagnose: unhandled path element match " + strconv.Itoa(int(match)))
		}
	}
	return true
}

func malformedMessage(r classify.Recognizer) string {
	if r.Format() == model.FormatE7 {
		return msgE7Malformed
	}
	return msgGeoMalformed
}
