// Package privacy blurs point locations by snapping them to the center of
// a fixed-size degree grid.
package privacy

import (
	"fmt"
	"math"
	"strconv"

	"github.com/ppiankov/geotrail/internal/model"
)

// Level is a named grid size in degrees. A zero grid leaves points as-is.
type Level struct {
	ID          string  `json:"id" yaml:"id"`
	Description string  `json:"description" yaml:"description"`
	GridSize    float64 `json:"grid_size" yaml:"grid_size"`
}

// Levels are the presets, from no blurring to the coarsest grid
var Levels = []Level{
	{ID: "none", Description: "raw data", GridSize: 0},
	{ID: "low", Description: "about 1 km, neighborhood", GridSize: 0.01},
	{ID: "medium", Description: "about 5 km, city", GridSize: 0.05},
	{ID: "high", Description: "about 50 km, region", GridSize: 0.5},
	{ID: "max", Description: "about 110 km, wide area", GridSize: 1.0},
}

// LevelByID looks up a preset by its ID
func LevelByID(id string) (Level, bool) {
	for _, level := range Levels {
		if level.ID == id {
			return level, true
		}
	}
	return Level{}, false
}

// LevelByIndex returns the preset at index, clamped to the valid range
func LevelByIndex(index int) Level {
	return Levels[max(0, min(index, len(Levels)-1))]
}

// ParseLevel accepts a preset ID or its numeric index; indexes past
// either end clamp to the nearest preset.
func ParseLevel(s string) (Level, error) {
	if level, ok := LevelByID(s); ok {
		return level, nil
	}
	if index, err := strconv.Atoi(s); err == nil {
		return LevelByIndex(index), nil
	}
	return Level{}, fmt.Errorf("unknown privacy level %q", s)
}

// Obfuscate returns a copy of points snapped to grid cell centers.
// Timestamps and years are untouched and the input is never modified.
func Obfuscate(points []model.Point, gridSize float64) []model.Point {
	out := make([]model.Point, len(points))
	copy(out, points)
	if gridSize <= 0 || math.IsNaN(gridSize) || math.IsInf(gridSize, 0) {
		return out
	}

	for i := range out {
		out[i].Lat = snap(out[i].Lat, gridSize)
		out[i].Lng = snap(out[i].Lng, gridSize)
	}
	return out
}

// ObfuscateByLevel applies the preset named id
func ObfuscateByLevel(points []model.Point, id string) ([]model.Point, error) {
	level, ok := LevelByID(id)
	if !ok {
		return nil, fmt.Errorf("unknown privacy level %q", id)
	}
	return Obfuscate(points, level.GridSize), nil
}

func snap(v, size float64) float64 {
	return math.Floor(v/size)*size + size/2
}
