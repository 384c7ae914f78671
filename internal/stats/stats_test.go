package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/geotrail/internal/model"
)

func TestHaversine(t *testing.T) {
	// Tokyo Station to Osaka Station
	assert.InDelta(t, 403.0, Haversine(35.6812, 139.7671, 34.7025, 135.4959), 2.0)
	assert.Zero(t, Haversine(10, 20, 10, 20))
	// one degree of latitude
	assert.InDelta(t, 111.19, Haversine(0, 0, 1, 0), 0.01)
}

func TestCalculate_Empty(t *testing.T) {
	s := Calculate(nil)
	assert.Zero(t, s.TotalPoints)
	assert.Nil(t, s.LongestTrip)
	assert.Empty(t, s.YearlyBreakdown)
}

func TestCalculate_SinglePoint(t *testing.T) {
	s := Calculate([]model.Point{{Lat: 1, Lng: 1, TS: 5000, Year: 1970}})
	assert.Equal(t, 1, s.TotalPoints)
	assert.Zero(t, s.TotalDistanceKM)
	assert.Nil(t, s.LongestTrip)
	assert.Equal(t, []model.YearStats{{Year: 1970, Points: 1}}, s.YearlyBreakdown)
	assert.Equal(t, 1.0, s.AveragePointsPerDay)
	assert.Equal(t, model.TimestampSpan{Start: 5000, End: 5000}, s.DateRange)
}

func TestCalculate_Timeline(t *testing.T) {
	day := int64(msPerDay)
	points := []model.Point{
		{Lat: 0, Lng: 0, TS: day, Year: 2022},
		{Lat: 1, Lng: 0, TS: 2 * day, Year: 2022},
		{Lat: 1, Lng: 0, TS: 3 * day, Year: 2023},
		{Lat: 11, Lng: 0, TS: 5 * day, Year: 2023},
	}
	s := Calculate(points)

	assert.Equal(t, 4, s.TotalPoints)
	assert.Equal(t, 1223, s.TotalDistanceKM)

	require.Len(t, s.YearlyBreakdown, 2)
	assert.Equal(t, model.YearStats{Year: 2023, Points: 2, DistanceKM: 1112}, s.YearlyBreakdown[0])
	assert.Equal(t, model.YearStats{Year: 2022, Points: 2, DistanceKM: 111}, s.YearlyBreakdown[1])

	require.NotNil(t, s.LongestTrip)
	assert.Equal(t, 1112, s.LongestTrip.DistanceKM)
	assert.Equal(t, 1.0, s.LongestTrip.FromLat)
	assert.Equal(t, 11.0, s.LongestTrip.ToLat)
	assert.Equal(t, 5*day, s.LongestTrip.TS)

	assert.Equal(t, 1.0, s.AveragePointsPerDay)
	assert.Equal(t, 0.03, s.EarthCircumferences)
	assert.Equal(t, 0.32, s.MoonDistancePercent)
	assert.Equal(t, model.TimestampSpan{Start: day, End: 5 * day}, s.DateRange)
}

func TestFormatDistance(t *testing.T) {
	tests := []struct {
		km   float64
		want string
	}{
		{0.25, "250m"},
		{3.14, "3.1km"},
		{512.4, "512km"},
		{40075, "40.1k km"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDistance(tt.km))
	}
}

func TestFormatLargeNumber(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{999, "999"},
		{1234, "1.2K"},
		{45_600, "46K"},
		{2_500_000, "2.5M"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatLargeNumber(tt.n))
	}
}

func TestShareText(t *testing.T) {
	s := model.TimelineStats{
		TotalPoints:         1500,
		TotalDistanceKM:     8000,
		EarthCircumferences: 0.2,
		YearlyBreakdown:     []model.YearStats{{Year: 2023}, {Year: 2021}},
	}
	assert.Equal(t, "My 2021-2023 location timeline\n1.5K points\n8.0k km travelled\n0.2 times around the Earth", ShareText(s))
}
