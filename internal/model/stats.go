package model

// TimelineStats summarizes a sorted point sequence
type TimelineStats struct {
	TotalPoints         int           `json:"total_points"`
	TotalDistanceKM     int           `json:"total_distance_km"`
	YearlyBreakdown     []YearStats   `json:"yearly_breakdown"`
	LongestTrip         *Trip         `json:"longest_trip,omitempty"`
	EarthCircumferences float64       `json:"earth_circumferences"`
	MoonDistancePercent float64       `json:"moon_distance_percent"`
	AveragePointsPerDay float64       `json:"average_points_per_day"`
	DateRange           TimestampSpan `json:"date_range"`
}

// YearStats holds per-year totals
type YearStats struct {
	Year       int `json:"year"`
	Points     int `json:"points"`
	DistanceKM int `json:"distance_km"`
}

// Trip is the single longest hop between two consecutive points
type Trip struct {
	DistanceKM int     `json:"distance_km"`
	FromLat    float64 `json:"from_lat"`
	FromLng    float64 `json:"from_lng"`
	ToLat      float64 `json:"to_lat"`
	ToLng      float64 `json:"to_lng"`
	TS         int64   `json:"ts"`
}

// TimestampSpan is an inclusive epoch-millisecond range
type TimestampSpan struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}
