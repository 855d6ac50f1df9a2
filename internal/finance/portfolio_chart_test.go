package finance

import (
	"bytes"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderChartFrame(t *testing.T) {
	yMin, yMax := -0.1, 0.2
	frame := ChartFrame{
		Title:    "SPY 50.0%, TLT 50.0%",
		Subtitle: "Sharpe: 1.000",
		Labels:   []string{"Jan 02", "Jan 03", "Jan 04"},
		Records: LongForm([]NamedSeries{
			{Name: "Portfolio", Values: []float64{0.01, 0.02, 0.05}},
			{Name: "SPY", Values: []float64{0.0, -0.03, 0.1}},
		}),
		YMin:   &yMin,
		YMax:   &yMax,
		Width:  400,
		Height: 300,
	}

	raw, err := RenderChartFrame(frame)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 400, img.Bounds().Dx())
	assert.Equal(t, 300, img.Bounds().Dy())

	_, err = RenderChartFrame(ChartFrame{Labels: []string{"a"}})
	assert.Error(t, err)
}

func TestMakeBestPortfolioChart(t *testing.T) {
	m := matrix([]float64{0.01, -0.02, 0.03, 0.0}, []float64{0.0, 0.01, -0.01, 0.02})

	raw, err := MakeBestPortfolioChart(m, []float64{0.6, 0.4}, 500, 300)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("\x89PNG")))

	// a flat portfolio still gets a chart
	flat := matrix([]float64{0.01, -0.01, 0.02}, []float64{-0.01, 0.01, -0.02})
	_, err = MakeBestPortfolioChart(flat, []float64{0.5, 0.5}, 500, 300)
	assert.NoError(t, err)

	_, err = MakeBestPortfolioChart(m, []float64{1}, 500, 300)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestChartHelpers(t *testing.T) {
	assert.Equal(t, "SPY 40.0%, TLT 60.0%", Composition([]string{"SPY", "TLT"}, []float64{0.4, 0.6}))

	short := []time.Time{day(2), day(3)}
	assert.Equal(t, []string{"Jan 02", "Jan 03"}, PeriodLabels(short))
	long := make([]time.Time, 61)
	for i := range long {
		long[i] = day(1).AddDate(0, 0, i)
	}
	assert.Equal(t, "Jan '24", PeriodLabels(long)[0])

	lo, hi := PaddedRange([]NamedSeries{{Values: []float64{0, 1}}, {Values: []float64{-1}}})
	assert.InDelta(t, -1.1, lo, 1e-12)
	assert.InDelta(t, 1.1, hi, 1e-12)
	lo, hi = PaddedRange([]NamedSeries{{Values: []float64{0.5, 0.5}}})
	assert.Less(t, lo, 0.5)
	assert.Greater(t, hi, 0.5)

	series := CandidateSeries(matrix([]float64{0.1, 0.1}), "Portfolio", []float64{0.2, 0.2})
	require.Len(t, series, 2)
	assert.Equal(t, "Portfolio", series[0].Name)
	assert.InDeltaSlice(t, []float64{0.2, 0.4}, series[0].Values, 1e-12)
	assert.Equal(t, "A", series[1].Name)
}

func TestChartCache(t *testing.T) {
	c := NewChartCache()
	key := FrameKey([]float64{0.5, 0.5}, 3)
	assert.NotEqual(t, key, FrameKey([]float64{0.5, 0.5}, 4))
	assert.NotEqual(t, key, FrameKey([]float64{0.5, 0.50001}, 3))

	_, ok := c.Get(key)
	assert.False(t, ok)

	c.Set(key, []byte{1, 2, 3})
	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, got)
	got[0] = 9
	again, _ := c.Get(key)
	assert.Equal(t, byte(1), again[0])
	assert.Equal(t, 2, c.Hits())
}
