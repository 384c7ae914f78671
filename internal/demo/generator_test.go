package demo

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/geotrail/internal/extract"
	"github.com/ppiankov/geotrail/internal/model"
)

func smallOptions(seed uint64) Options {
	opts := DefaultOptions()
	opts.Seed = seed
	opts.Days = 28
	return opts
}

func encode(t *testing.T, exp *Export) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, exp))
	return buf.Bytes()
}

func TestGenerate_Deterministic(t *testing.T) {
	a := encode(t, New(smallOptions(7)).Generate())
	b := encode(t, New(smallOptions(7)).Generate())
	c := encode(t, New(smallOptions(8)).Generate())

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestGenerate_ExtractsEveryPoint(t *testing.T) {
	exp := New(smallOptions(42)).Generate()
	require.Positive(t, exp.Points)

	var root any
	require.NoError(t, json.Unmarshal(encode(t, exp), &root))

	ex := extract.NewPointExtractor(model.DefaultExtractConfig(), extract.WithLocation(exp.First.Location()))
	points, err := ex.Extract(root, nil)
	require.NoError(t, err)

	assert.Len(t, points, exp.Points)
	assert.Equal(t, exp.First.UnixMilli(), points[0].TS)
	assert.Equal(t, exp.Last.UnixMilli(), points[len(points)-1].TS)
	assert.Equal(t, 2023, points[0].Year)

	// The first fix is New Year's morning in Japan, still 2022 in UTC
	utc, err := extract.NewPointExtractor(model.DefaultExtractConfig()).Extract(root, nil)
	require.NoError(t, err)
	assert.Equal(t, 2022, utc[0].Year)
}

func TestGenerate_UsesAllConventions(t *testing.T) {
	exp := New(smallOptions(1)).Generate()
	data := string(encode(t, exp))

	assert.Contains(t, data, `"timelinePath"`)
	assert.Contains(t, data, `"placeLocation"`)
	assert.Contains(t, data, `"latitudeE7"`)
	assert.Contains(t, data, `"durationMinutesOffsetFromStartTime"`)
}

func TestGenerate_StartsOnNewYear(t *testing.T) {
	// January 1st is a shrine visit: home, shrine, home
	opts := smallOptions(3)
	opts.Days = 1
	exp := New(opts).Generate()

	assert.Equal(t, 3, exp.Points)
	assert.Equal(t, time.January, exp.First.Month())
	assert.Equal(t, 1, exp.First.Day())
}

func TestNew_Defaults(t *testing.T) {
	g := New(Options{Seed: 1, Start: time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)})
	exp := g.Generate()

	// A Monday commute day
	assert.Equal(t, time.UTC, g.opts.Location)
	assert.Equal(t, 1, g.opts.Days)
	assert.Equal(t, 1+len(commute)+1+len(commute)+1, exp.Points)
}
