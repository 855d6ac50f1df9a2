package pipeline

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolioSharpe/internal/config"
	"portfolioSharpe/internal/finance"
)

// writePrices writes a date,close CSV whose returns follow a deterministic wave.
func writePrices(t *testing.T, dir, symbol string, days int, drift, amp, phase float64, skip map[int]bool) {
	t.Helper()
	var b strings.Builder
	b.WriteString("Date,Close\n")
	price := 100.0
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for d := 0; d < days; d++ {
		if d > 0 {
			price *= 1 + drift + amp*math.Sin(float64(d)*0.7+phase)
		}
		if skip[d] {
			continue
		}
		fmt.Fprintf(&b, "%s,%.6f\n", start.AddDate(0, 0, d).Format("2006-01-02"), price)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, symbol+".csv"), []byte(b.String()), 0o644))
}

func testConfig(dir string) *config.Config {
	cfg := config.Default()
	cfg.Assets = []config.Asset{{Symbol: "AAA"}, {Symbol: "BBB"}, {Symbol: "CCC"}}
	cfg.DataDir = dir
	cfg.OutputPath = filepath.Join(dir, "out", "portfolios.gif")
	cfg.Optimizer.MaxIterations = 40
	cfg.Optimizer.StallIterations = 10
	cfg.Optimizer.PopulationSize = 20
	cfg.Optimizer.ParentsMating = 10
	cfg.Optimizer.Workers = 2
	cfg.Animation = config.AnimationConfig{
		Candidates: 3, FPS: 2, Seconds: 3,
		ChartWidth: 400, ChartHeight: 300, GIFWidth: 200, GIFHeight: 150,
	}
	return cfg
}

func TestRun_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	writePrices(t, dir, "AAA", 30, 0.002, 0.01, 0, nil)
	writePrices(t, dir, "BBB", 30, 0.001, 0.008, 2, map[int]bool{5: true})
	writePrices(t, dir, "CCC", 30, 0.0005, 0.012, 4, nil)

	cfg := testConfig(dir)
	cfg.BestChartPath = filepath.Join(dir, "out", "best.png")

	report, err := Run(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, []string{"AAA", "BBB", "CCC"}, report.Symbols)
	assert.Equal(t, 1, report.DroppedDays)
	require.Len(t, report.Best, 3)
	sum := 0.0
	for _, w := range report.Best {
		assert.GreaterOrEqual(t, w, 0.0)
		assert.LessOrEqual(t, w, 1.0)
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9, "projected search reports feasible weights")
	assert.Positive(t, report.Generations)
	require.NotNil(t, report.Stats)
	assert.Equal(t, 28, report.Stats.NumPeriods)
	assert.Equal(t, 3*2, report.Frames)

	info, err := os.Stat(cfg.OutputPath)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
	_, err = os.Stat(cfg.BestChartPath)
	assert.NoError(t, err)
}

func TestRun_MissingFile(t *testing.T) {
	dir := t.TempDir()
	writePrices(t, dir, "AAA", 10, 0.001, 0.01, 0, nil)
	writePrices(t, dir, "BBB", 10, 0.001, 0.01, 1, nil)

	_, err := Run(context.Background(), testConfig(dir), zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CCC")
}

func TestRun_NoOverlap(t *testing.T) {
	dir := t.TempDir()
	writePrices(t, dir, "AAA", 10, 0.001, 0.01, 0, nil)
	writePrices(t, dir, "BBB", 10, 0.001, 0.01, 1, nil)
	late := map[int]bool{}
	for d := 0; d < 10; d++ {
		late[d] = true
	}
	writePrices(t, dir, "CCC", 20, 0.001, 0.01, 2, late)

	_, err := Run(context.Background(), testConfig(dir), zerolog.Nop())
	assert.ErrorIs(t, err, finance.ErrInvalidInput)
}

func TestRun_ZeroPriceRejected(t *testing.T) {
	dir := t.TempDir()
	writePrices(t, dir, "AAA", 10, 0.001, 0.01, 0, nil)
	writePrices(t, dir, "BBB", 10, 0.001, 0.01, 1, nil)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "CCC.csv"),
		[]byte("Date,Close\n2024-01-01,10\n2024-01-02,0\n2024-01-03,11\n"), 0o644))

	_, err := Run(context.Background(), testConfig(dir), zerolog.Nop())
	assert.ErrorIs(t, err, finance.ErrInvalidInput)
}
