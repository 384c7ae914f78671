package extract

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"time"

	"github.com/ppiankov/geotrail/internal/classify"
	"github.com/ppiankov/geotrail/internal/model"
)

// ErrNoPointsFound is returned when a document yields zero valid points
var ErrNoPointsFound = errors.New("no location points found")

// ProgressFunc receives a percentage that never decreases, stays at or
// below 99 while the walk is running, and reaches 100 once at the end.
type ProgressFunc func(percent int)

// Yielder is called between chunks so an interactive host can stay
// responsive during one large extraction.
type Yielder interface {
	Yield()
}

// YieldFunc adapts a function to Yielder
type YieldFunc func()

// Yield calls f
func (f YieldFunc) Yield() { f() }

var (
	// NoYield never gives up control; suitable for batch use
	NoYield Yielder = YieldFunc(func() {})

	// GoschedYielder lets other goroutines run between chunks
	GoschedYielder Yielder = YieldFunc(runtime.Gosched)
)

// Result is the outcome of one extraction call
type Result struct {
	Points       []model.Point
	NodesVisited int
	LimitReached bool // Node-visit ceiling hit; Points may be partial
	Candidates   int  // Candidates produced before normalization
	Unresolved   int  // Candidates dropped for lack of a timestamp
	Filtered     int  // Candidates dropped for a non-positive timestamp
}

// PointExtractor walks a decoded JSON tree and extracts location points.
// It holds configuration only; every call owns its own stack and buffers.
type PointExtractor struct {
	registry       *classify.Registry
	maxNodes       int
	chunkSize      int
	estimatedTotal int
	location       *time.Location
	yielder        Yielder
}

// Option customizes a PointExtractor
type Option func(*PointExtractor)

// WithYielder sets the yield point called between chunks
func WithYielder(y Yielder) Option {
	return func(e *PointExtractor) {
		if y != nil {
			e.yielder = y
		}
	}
}

// WithLocation sets the zone used to derive Point.Year
func WithLocation(loc *time.Location) Option {
	return func(e *PointExtractor) {
		if loc != nil {
			e.location = loc
		}
	}
}

// WithRegistry replaces the recognizer registry
func WithRegistry(r *classify.Registry) Option {
	return func(e *PointExtractor) {
		if r != nil {
			e.registry = r
		}
	}
}

// NewPointExtractor creates an extractor. Non-positive limits fall back to
// the defaults.
func NewPointExtractor(cfg model.ExtractConfig, opts ...Option) *PointExtractor {
	defaults := model.DefaultExtractConfig()
	if cfg.MaxNodes <= 0 {
		cfg.MaxNodes = defaults.MaxNodes
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaults.ChunkSize
	}
	if cfg.EstimatedTotal <= 0 {
		cfg.EstimatedTotal = defaults.EstimatedTotal
	}

	e := &PointExtractor{
		registry:       classify.NewRegistry(),
		maxNodes:       cfg.MaxNodes,
		chunkSize:      cfg.ChunkSize,
		estimatedTotal: cfg.EstimatedTotal,
		location:       time.UTC,
		yielder:        NoYield,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ResolveLocation loads an IANA zone name; empty means UTC
func ResolveLocation(name string) (*time.Location, error) {
	if name == "" || name == "UTC" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

// Extract returns the time-sorted points of root, or ErrNoPointsFound
func (e *PointExtractor) Extract(root any, onProgress ProgressFunc) ([]model.Point, error) {
	result, err := e.ExtractDetailed(root, onProgress)
	if err != nil {
		return nil, err
	}
	return result.Points, nil
}

// frame pairs a node with the nearest enclosing absolute time (a raw,
// unparsed field value) inherited from its parent. An offset-path array
// expanded at its parent is pushed with pathArray set; its object elements
// are then walked for nested structure but not recognized again.
type frame struct {
	node      any
	inherited any
	pathArray bool
	consumed  bool
}

// ExtractDetailed is Extract plus walk statistics. On ErrNoPointsFound the
// returned Result is still populated.
func (e *PointExtractor) ExtractDetailed(root any, onProgress ProgressFunc) (*Result, error) {
	result := &Result{}
	stack := []frame{{node: root}}
	var candidates []model.Candidate

	for len(stack) > 0 && result.NodesVisited < e.maxNodes {
		top := stack[len(stack)-1]
		stack[len(stack)-1] = frame{}
		stack = stack[:len(stack)-1]
		result.NodesVisited++

		switch node := top.node.(type) {
		case map[string]any:
			var expanded bool
			if !top.consumed {
				candidates, expanded = e.collect(node, top.inherited, candidates)
			}

			next := top.inherited
			if own, _, ok := classify.OwnTime(node); ok {
				next = own
			}

			keys := classify.SortedKeys(node)
			for i := len(keys) - 1; i >= 0; i-- {
				if child := node[keys[i]]; classify.IsContainer(child) {
					stack = append(stack, frame{
						node:      child,
						inherited: next,
						pathArray: expanded && keys[i] == classify.TimelinePathKey,
					})
				}
			}

		case []any:
			for i := len(node) - 1; i >= 0; i-- {
				stack = append(stack, frame{node: node[i], inherited: top.inherited, consumed: top.pathArray})
			}
		}

		if result.NodesVisited%e.chunkSize == 0 {
			if onProgress != nil {
				onProgress(e.estimate(result.NodesVisited))
			}
			e.yielder.Yield()
		}
	}

	result.LimitReached = len(stack) > 0
	result.Candidates = len(candidates)
	result.Points = e.normalize(candidates, result)

	if onProgress != nil {
		onProgress(100)
	}

	if len(result.Points) == 0 {
		return result, ErrNoPointsFound
	}
	return result, nil
}

// collect appends the candidates carried by one object node and reports
// whether its offset-path array was expanded. Expanded elements yield
// their points here; the walk only descends into them afterwards.
func (e *PointExtractor) collect(obj map[string]any, inherited any, out []model.Candidate) ([]model.Candidate, bool) {
	base, hasBase := ResolveBaseTime(obj, inherited)

	if coords, _, ok := e.registry.First(obj); ok {
		out = append(out, model.Candidate{Coords: coords, TS: base, HasTS: hasBase})
	}

	path, isPath := obj[classify.TimelinePathKey].([]any)
	expanded := isPath && hasBase
	if expanded {
		for _, elem := range path {
			coords, offset, match := classify.RecognizePathElement(elem)
			if match != classify.MatchOK {
				continue
			}
			ts, ok := classify.OffsetTime(base, offset)
			out = append(out, model.Candidate{Coords: coords, TS: ts, HasTS: ok})
		}
	}

	return out, expanded
}

// ResolveBaseTime returns the node's own absolute time when present,
// otherwise the inherited one. A present but unparseable own time shadows
// the inherited value rather than falling back to it.
func ResolveBaseTime(obj map[string]any, inherited any) (int64, bool) {
	if own, _, ok := classify.OwnTime(obj); ok {
		return classify.ParseTime(own)
	}
	return classify.ParseTime(inherited)
}

// normalize drops unresolved and non-positive candidates, attaches the
// year and stable-sorts by timestamp so ties keep traversal order.
func (e *PointExtractor) normalize(candidates []model.Candidate, result *Result) []model.Point {
	points := make([]model.Point, 0, len(candidates))
	for _, c := range candidates {
		if !c.HasTS {
			result.Unresolved++
			continue
		}
		if c.TS <= 0 {
			result.Filtered++
			continue
		}
		points = append(points, model.Point{
			Lat:  c.Lat,
			Lng:  c.Lng,
			TS:   c.TS,
			Year: time.UnixMilli(c.TS).In(e.location).Year(),
		})
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].TS < points[j].TS
	})
	return points
}

// estimate converts a visit count to a saturating percentage
func (e *PointExtractor) estimate(visited int) int {
	pct := int(math.Round(float64(visited) / float64(e.estimatedTotal) * 100))
	if pct > 99 {
		return 99
	}
	return pct
}
