package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/geotrail/internal/model"
)

func TestLevelByID(t *testing.T) {
	tests := []struct {
		id   string
		grid float64
		ok   bool
	}{
		{"none", 0, true},
		{"low", 0.01, true},
		{"medium", 0.05, true},
		{"high", 0.5, true},
		{"max", 1.0, true},
		{"extreme", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			level, ok := LevelByID(tt.id)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.grid, level.GridSize)
		})
	}
}

func TestLevelByIndex_Clamps(t *testing.T) {
	assert.Equal(t, "none", LevelByIndex(-3).ID)
	assert.Equal(t, "medium", LevelByIndex(2).ID)
	assert.Equal(t, "max", LevelByIndex(99).ID)
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("high")
	require.NoError(t, err)
	assert.Equal(t, 0.5, level.GridSize)

	level, err = ParseLevel("1")
	require.NoError(t, err)
	assert.Equal(t, "low", level.ID)

	level, err = ParseLevel("7")
	require.NoError(t, err)
	assert.Equal(t, "max", level.ID)

	_, err = ParseLevel("extreme")
	assert.Error(t, err)
}

func TestObfuscate_SnapsToCellCenter(t *testing.T) {
	in := []model.Point{
		{Lat: 35.6812, Lng: 139.7671, TS: 1000, Year: 2020},
		{Lat: -33.8688, Lng: -151.2093, TS: 2000, Year: 2021},
	}

	out := Obfuscate(in, 1.0)
	require.Len(t, out, 2)

	assert.InDelta(t, 35.5, out[0].Lat, 1e-9)
	assert.InDelta(t, 139.5, out[0].Lng, 1e-9)
	assert.InDelta(t, -33.5, out[1].Lat, 1e-9)
	assert.InDelta(t, -151.5, out[1].Lng, 1e-9)

	assert.Equal(t, int64(1000), out[0].TS)
	assert.Equal(t, 2021, out[1].Year)
}

func TestObfuscate_DoesNotMutateInput(t *testing.T) {
	in := []model.Point{{Lat: 1.234, Lng: 5.678, TS: 1, Year: 1970}}
	_ = Obfuscate(in, 0.5)
	assert.Equal(t, 1.234, in[0].Lat)
	assert.Equal(t, 5.678, in[0].Lng)
}

func TestObfuscate_NonPositiveGridReturnsCopy(t *testing.T) {
	in := []model.Point{{Lat: 1.234, Lng: 5.678, TS: 1}}
	for _, grid := range []float64{0, -1} {
		out := Obfuscate(in, grid)
		assert.Equal(t, in, out)
		out[0].Lat = 99
		assert.Equal(t, 1.234, in[0].Lat)
	}
}

func TestObfuscate_SameCellSamePoint(t *testing.T) {
	out := Obfuscate([]model.Point{{Lat: 10.01, Lng: 20.02}, {Lat: 10.04, Lng: 20.03}}, 0.05)
	assert.InDelta(t, out[0].Lat, out[1].Lat, 1e-9)
	assert.InDelta(t, out[0].Lng, out[1].Lng, 1e-9)
}

func TestObfuscateByLevel(t *testing.T) {
	in := []model.Point{{Lat: 0.3, Lng: 0.7}}

	out, err := ObfuscateByLevel(in, "high")
	require.NoError(t, err)
	assert.InDelta(t, 0.25, out[0].Lat, 1e-9)
	assert.InDelta(t, 0.75, out[0].Lng, 1e-9)

	_, err = ObfuscateByLevel(in, "bogus")
	assert.Error(t, err)
}
