// Package stats summarizes an extracted timeline: distance travelled,
// per-year totals and the longest single hop.
package stats

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ppiankov/geotrail/internal/model"
)

const (
	EarthRadiusKM        = 6371.0
	EarthCircumferenceKM = 40075.0
	EarthMoonDistanceKM  = 384400.0

	msPerDay = 24 * 60 * 60 * 1000
)

// Haversine returns the great-circle distance in kilometers
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return EarthRadiusKM * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// Calculate summarizes points, which are expected in timestamp order.
// Each hop's distance is credited to the year of its destination point.
func Calculate(points []model.Point) model.TimelineStats {
	if len(points) == 0 {
		return model.TimelineStats{YearlyBreakdown: []model.YearStats{}}
	}

	type yearTotals struct {
		points   int
		distance float64
	}
	years := map[int]*yearTotals{}
	addYear := func(year int, dist float64) {
		y, ok := years[year]
		if !ok {
			y = &yearTotals{}
			years[year] = y
		}
		y.points++
		y.distance += dist
	}

	first := points[0]
	addYear(first.Year, 0)
	minTS, maxTS := first.TS, first.TS

	var total, longest float64
	var trip *model.Trip
	for i := 1; i < len(points); i++ {
		prev, curr := points[i-1], points[i]
		dist := Haversine(prev.Lat, prev.Lng, curr.Lat, curr.Lng)
		total += dist

		if dist > longest {
			longest = dist
			trip = &model.Trip{
				FromLat: prev.Lat,
				FromLng: prev.Lng,
				ToLat:   curr.Lat,
				ToLng:   curr.Lng,
				TS:      curr.TS,
			}
		}

		addYear(curr.Year, dist)
		minTS = min(minTS, curr.TS)
		maxTS = max(maxTS, curr.TS)
	}
	if trip != nil {
		trip.DistanceKM = int(math.Round(longest))
	}

	breakdown := make([]model.YearStats, 0, len(years))
	for year, y := range years {
		breakdown = append(breakdown, model.YearStats{
			Year:       year,
			Points:     y.points,
			DistanceKM: int(math.Round(y.distance)),
		})
	}
	sort.Slice(breakdown, func(i, j int) bool {
		return breakdown[i].Year > breakdown[j].Year
	})

	days := max(1, int64(math.Ceil(float64(maxTS-minTS)/msPerDay)))

	return model.TimelineStats{
		TotalPoints:         len(points),
		TotalDistanceKM:     int(math.Round(total)),
		YearlyBreakdown:     breakdown,
		LongestTrip:         trip,
		EarthCircumferences: round(total/EarthCircumferenceKM, 2),
		MoonDistancePercent: round(total/EarthMoonDistanceKM*100, 2),
		AveragePointsPerDay: round(float64(len(points))/float64(days), 1),
		DateRange:           model.TimestampSpan{Start: minTS, End: maxTS},
	}
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

// FormatDistance renders km with a unit suited to its magnitude
func FormatDistance(km float64) string {
	switch {
	case km < 1:
		return fmt.Sprintf("%dm", int(math.Round(km*1000)))
	case km < 10:
		return fmt.Sprintf("%.1fkm", km)
	case km < 1000:
		return fmt.Sprintf("%dkm", int(math.Round(km)))
	default:
		return fmt.Sprintf("%.1fk km", km/1000)
	}
}

// FormatLargeNumber abbreviates counts as K or M
func FormatLargeNumber(n int) string {
	switch {
	case n < 1000:
		return fmt.Sprintf("%d", n)
	case n < 10_000:
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	case n < 1_000_000:
		return fmt.Sprintf("%dK", int(math.Round(float64(n)/1000)))
	default:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	}
}

// ShareText is a short human summary suitable for posting
func ShareText(s model.TimelineStats) string {
	var lines []string

	if n := len(s.YearlyBreakdown); n > 0 {
		newest, oldest := s.YearlyBreakdown[0].Year, s.YearlyBreakdown[n-1].Year
		if newest == oldest {
			lines = append(lines, fmt.Sprintf("My %d location timeline", newest))
		} else {
			lines = append(lines, fmt.Sprintf("My %d-%d location timeline", oldest, newest))
		}
	} else {
		lines = append(lines, "My location timeline")
	}

	lines = append(lines,
		fmt.Sprintf("%s points", FormatLargeNumber(s.TotalPoints)),
		fmt.Sprintf("%s travelled", FormatDistance(float64(s.TotalDistanceKM))),
	)
	if s.EarthCircumferences >= 0.1 {
		lines = append(lines, fmt.Sprintf("%.1f times around the Earth", s.EarthCircumferences))
	}
	return strings.Join(lines, "\n")
}
