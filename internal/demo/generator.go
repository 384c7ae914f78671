// Package demo builds a synthetic location-history export for a commuter
// living east of Tokyo. The output is deterministic for a given seed and
// exercises every recognized convention: offset paths, place visits and
// scaled-integer raw signals.
package demo

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"strconv"
	"time"
)

// Place is a named fixed location
type Place struct {
	Name string
	Lat  float64
	Lng  float64
}

var (
	home   = Place{"home", 35.7732402, 139.9414015}
	office = Place{"office", 35.673738, 139.7562857}
	tokyo  = Place{"tokyo-station", 35.6812, 139.7671}

	commute = []Place{
		{"home", 35.7732, 139.9414},
		{"higashi-matsudo", 35.7621, 139.9125},
		{"matsudo", 35.7284, 139.8687},
		{"kita-senju", 35.7100, 139.8109},
		{"ueno", 35.6938, 139.7714},
		{"akihabara", 35.6812, 139.7671},
		{"yurakucho", 35.6762, 139.7580},
		{"office", 35.6738, 139.7563},
	}

	weekendSpots = []Place{
		{"shin-matsudo", 35.7796, 139.9311},
		{"lalaterrace", 35.7654, 139.8975},
		{"matsudo-station", 35.7891, 139.9542},
		{"ikea-tokyo-bay", 35.6996, 139.9713},
		{"makuhari", 35.6329, 140.0376},
		{"funabashi", 35.6585, 139.9884},
		{"kashiwanoha", 35.8617, 139.9551},
		{"chiba-station", 35.7081, 140.1125},
	}

	fridayStops = []Place{
		{"shinjuku-station", 35.6896, 139.7006},
		{"isetan", 35.6938, 139.7034},
		{"lumine", 35.6905, 139.6995},
	}

	trips = map[string][]Place{
		"osaka": {
			{"osaka-station", 34.6937, 135.5023},
			{"namba", 34.6687, 135.5030},
			{"osaka-castle", 34.6851, 135.5265},
			{"tennoji", 34.6544, 135.5062},
		},
		"nagoya": {
			{"nagoya-station", 35.1709, 136.8815},
			{"nagoya-castle", 35.1855, 136.8990},
			{"sakae", 35.1707, 136.9066},
			{"atsuta", 35.1547, 136.9209},
		},
		"fukuoka": {
			{"hakata", 33.5902, 130.4206},
			{"tenjin", 33.5898, 130.3986},
			{"fukuoka-tower", 33.5841, 130.3465},
			{"nakasu", 33.6033, 130.4181},
		},
	}
	tripOrder = []string{"osaka", "nagoya", "fukuoka"}

	events = map[[2]int]Place{
		{1, 1}:   {"meiji-jingu", 35.6764, 139.6993},
		{1, 2}:   {"sensoji", 35.7148, 139.7967},
		{8, 3}:   {"nagaoka-fireworks", 37.4483, 138.8509},
		{12, 24}: {"yokohama-minatomirai", 35.4553, 139.6336},
	}
)

// Options configures the generator
type Options struct {
	Seed     uint64
	Start    time.Time
	Days     int
	Location *time.Location
}

// DefaultOptions covers three calendar years from 2023 in Japan time
func DefaultOptions() Options {
	jst := time.FixedZone("JST", 9*60*60)
	return Options{
		Seed:     20230101,
		Start:    time.Date(2023, time.January, 1, 0, 0, 0, 0, jst),
		Days:     365*3 + 1,
		Location: jst,
	}
}

// Fix is one generated position
type Fix struct {
	Lat float64
	Lng float64
	At  time.Time
}

// Export is a generated document plus the number of points it encodes
type Export struct {
	Document map[string]any
	Points   int
	First    time.Time
	Last     time.Time
}

// Generator produces synthetic exports
type Generator struct {
	opts     Options
	rng      *rand.Rand
	segments []any
	signals  []any
	points   int
	first    time.Time
	last     time.Time
}

// New creates a generator
func New(opts Options) *Generator {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Days <= 0 {
		opts.Days = 1
	}
	return &Generator{
		opts: opts,
		rng:  rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
	}
}

// Generate walks every day in range and returns the export
func (g *Generator) Generate() *Export {
	g.segments = []any{}
	g.signals = []any{}
	g.points = 0

	start := g.opts.Start.In(g.opts.Location)
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, g.opts.Location)

	for i := 0; i < g.opts.Days; {
		skip := g.day(day.AddDate(0, 0, i))
		i += skip
	}

	return &Export{
		Document: map[string]any{
			"semanticSegments": g.segments,
			"rawSignals":       g.signals,
		},
		Points: g.points,
		First:  g.first,
		Last:   g.last,
	}
}

// day emits one calendar day and returns how many days it consumed
func (g *Generator) day(date time.Time) int {
	if ev, ok := events[[2]int{int(date.Month()), date.Day()}]; ok {
		g.event(date, ev)
		return 1
	}

	switch date.Weekday() {
	case time.Saturday:
		// First Saturday of a month is sometimes a trip
		if date.Day() <= 7 && g.rng.Float64() < 0.6 {
			nights := 1 + g.rng.IntN(2)
			g.trip(date, nights, tripOrder[g.rng.IntN(len(tripOrder))])
			return nights + 1
		}
		g.weekend(date)
	case time.Sunday:
		g.weekend(date)
	default:
		g.workday(date)
	}
	return 1
}

func (g *Generator) workday(date time.Time) {
	g.signal(home, at(date, 7, g.rng.IntN(30)))
	g.path(commute, at(date, 7, 30+g.rng.IntN(30)))
	g.visit(office, at(date, 12, g.rng.IntN(30)), 45*time.Minute)

	back := reversed(commute)
	leave := at(date, 18, g.rng.IntN(60))
	if date.Weekday() == time.Friday {
		stop := fridayStops[g.rng.IntN(len(fridayStops))]
		g.path(back[:4], leave)
		g.visit(stop, leave.Add(90*time.Minute), time.Duration(60+g.rng.IntN(60))*time.Minute)
		g.path(back[3:], leave.Add(4*time.Hour))
	} else {
		g.path(back, leave)
	}

	g.signal(home, at(date, 22, g.rng.IntN(60)))
}

func (g *Generator) weekend(date time.Time) {
	if g.rng.Float64() >= 0.7 {
		g.signal(home, at(date, 10, g.rng.IntN(60)))
		g.signal(home, at(date, 15, g.rng.IntN(60)))
		return
	}

	g.signal(home, at(date, 9, g.rng.IntN(60)))
	t := at(date, 10, g.rng.IntN(60))
	for _, spot := range g.pick(weekendSpots, 1+g.rng.IntN(3)) {
		t = t.Add(time.Duration(30+g.rng.IntN(30)) * time.Minute)
		stay := time.Duration(60+g.rng.IntN(120)) * time.Minute
		g.visit(spot, t, stay)
		t = t.Add(stay)
	}
	g.signal(home, t.Add(time.Hour))
}

func (g *Generator) trip(date time.Time, nights int, destination string) {
	spots := trips[destination]

	depart := at(date, 7, g.rng.IntN(30))
	g.signal(home, depart)
	g.path([]Place{tokyo, spots[0]}, depart.Add(90*time.Minute))

	for d := 0; d <= nights; d++ {
		t := at(date.AddDate(0, 0, d), 13, 0)
		if d > 0 {
			t = at(date.AddDate(0, 0, d), 9, g.rng.IntN(30))
		}
		for _, spot := range g.pick(spots, 2+g.rng.IntN(2)) {
			t = t.Add(time.Duration(20+g.rng.IntN(20)) * time.Minute)
			stay := time.Duration(60+g.rng.IntN(60)) * time.Minute
			g.visit(spot, t, stay)
			t = t.Add(stay)
		}
	}

	back := at(date.AddDate(0, 0, nights), 16, g.rng.IntN(30))
	g.path([]Place{spots[0], tokyo}, back)
	g.signal(home, back.Add(5*time.Hour))
}

func (g *Generator) event(date time.Time, place Place) {
	depart := at(date, 8, g.rng.IntN(60))
	g.signal(home, depart)
	arrive := depart.Add(time.Duration(60+g.rng.IntN(60)) * time.Minute)
	stay := time.Duration(120+g.rng.IntN(180)) * time.Minute
	g.visit(place, arrive, stay)
	g.signal(home, arrive.Add(stay).Add(90*time.Minute))
}

// path emits one travel segment whose points are offsets from start
func (g *Generator) path(route []Place, start time.Time) {
	elems := make([]any, 0, len(route))
	offset := 0
	for i, p := range route {
		if i > 0 {
			offset += 6 + g.rng.IntN(8)
		}
		elems = append(elems, map[string]any{
			"point":                              g.geo(p, 0.001),
			"durationMinutesOffsetFromStartTime": strconv.Itoa(offset),
		})
		g.count(start.Add(time.Duration(offset) * time.Minute))
	}

	g.segments = append(g.segments, map[string]any{
		"startTime":    stamp(start),
		"endTime":      stamp(start.Add(time.Duration(offset) * time.Minute)),
		"timelinePath": elems,
	})
}

// visit emits a place-visit segment
func (g *Generator) visit(p Place, start time.Time, stay time.Duration) {
	g.segments = append(g.segments, map[string]any{
		"startTime": stamp(start),
		"endTime":   stamp(start.Add(stay)),
		"visit": map[string]any{
			"probability": 0.9,
			"topCandidate": map[string]any{
				"semanticType":  "UNKNOWN",
				"placeLocation": g.geo(p, 0.0005),
			},
		},
	})
	g.count(start)
}

// signal emits a raw position with scaled-integer coordinates
func (g *Generator) signal(p Place, t time.Time) {
	lat, lng := g.jitter(p, 0.0003)
	g.signals = append(g.signals, map[string]any{
		"position": map[string]any{
			"latitudeE7":  int64(math.Round(lat * 1e7)),
			"longitudeE7": int64(math.Round(lng * 1e7)),
			"timestamp":   stamp(t),
			"source":      "WIFI",
		},
	})
	g.count(t)
}

func (g *Generator) count(t time.Time) {
	g.points++
	if g.first.IsZero() || t.Before(g.first) {
		g.first = t
	}
	if t.After(g.last) {
		g.last = t
	}
}

func (g *Generator) geo(p Place, amount float64) string {
	lat, lng := g.jitter(p, amount)
	return fmt.Sprintf("geo:%.7f,%.7f", lat, lng)
}

func (g *Generator) jitter(p Place, amount float64) (float64, float64) {
	return p.Lat + (g.rng.Float64()-0.5)*amount, p.Lng + (g.rng.Float64()-0.5)*amount
}

// pick returns n distinct places in random order
func (g *Generator) pick(places []Place, n int) []Place {
	if n > len(places) {
		n = len(places)
	}
	out := make([]Place, 0, n)
	for _, i := range g.rng.Perm(len(places))[:n] {
		out = append(out, places[i])
	}
	return out
}

func at(date time.Time, hour, minute int) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, date.Location())
}

func stamp(t time.Time) string {
	return t.Format(time.RFC3339)
}

func reversed(route []Place) []Place {
	out := make([]Place, len(route))
	for i, p := range route {
		out[len(route)-1-i] = p
	}
	return out
}

// Write encodes the export document as indented JSON
func Write(w io.Writer, exp *Export) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(exp.Document); err != nil {
		return fmt.Errorf("encode demo export: %w", err)
	}
	return nil
}
