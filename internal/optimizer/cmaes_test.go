package optimizer

import (
	"context"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cmaesSettings() Settings {
	s := DefaultSettings()
	s.MaxIterations = 500
	s.StallIterations = 40
	s.PopulationSize = 0
	s.Seed = 3
	s.Workers = 1
	return s
}

func TestCMAES_FindsOptimum(t *testing.T) {
	res, err := NewCMAES(cmaesSettings(), zerolog.Nop()).Maximize(context.Background(), sphere, UnitBounds(2))
	require.NoError(t, err)
	assert.InDelta(t, 0.3, res.Best[0], 0.02)
	assert.InDelta(t, 0.7, res.Best[1], 0.02)
	assert.NotEmpty(t, res.Generations)
	assert.Contains(t, []StopReason{StopStall, StopConverged, StopMaxIterations}, res.Reason)

	last := res.Generations[len(res.Generations)-1]
	assert.InDelta(t, res.Fitness, last.Fitness, 1e-12)
}

func TestCMAES_ReportsPointsInsideBounds(t *testing.T) {
	// the unconstrained optimum lies outside the box
	outside := func(x []float64) float64 { return x[0] - x[1] }
	bounds := []Bound{{Lower: 0, Upper: 1}, {Lower: 0, Upper: 1}}

	res, err := NewCMAES(cmaesSettings(), zerolog.Nop()).Maximize(context.Background(), outside, bounds)
	require.NoError(t, err)
	for _, g := range res.Generations {
		for i, b := range bounds {
			assert.GreaterOrEqual(t, g.Best[i], b.Lower)
			assert.LessOrEqual(t, g.Best[i], b.Upper)
		}
	}
	assert.InDelta(t, 1.0, res.Best[0], 1e-6)
	assert.InDelta(t, 0.0, res.Best[1], 1e-6)
}

func TestCMAES_Deterministic(t *testing.T) {
	a, err := NewCMAES(cmaesSettings(), zerolog.Nop()).Maximize(context.Background(), sphere, UnitBounds(3))
	require.NoError(t, err)
	b, err := NewCMAES(cmaesSettings(), zerolog.Nop()).Maximize(context.Background(), sphere, UnitBounds(3))
	require.NoError(t, err)
	assert.Equal(t, a.Best, b.Best)
	assert.Equal(t, len(a.Generations), len(b.Generations))
}

func TestCMAES_MaxIterations(t *testing.T) {
	s := cmaesSettings()
	s.MaxIterations = 4
	s.StallIterations = 1000

	res, err := NewCMAES(s, zerolog.Nop()).Maximize(context.Background(), sphere, UnitBounds(2))
	require.NoError(t, err)
	assert.Equal(t, StopMaxIterations, res.Reason)
	assert.LessOrEqual(t, len(res.Generations), 5)
}

func TestCMAES_InfeasibleRegion(t *testing.T) {
	half := func(x []float64) float64 {
		if x[0] < 0.5 {
			return math.Inf(-1)
		}
		return -math.Abs(x[0] - 0.8)
	}
	res, err := NewCMAES(cmaesSettings(), zerolog.Nop()).Maximize(context.Background(), half, UnitBounds(1))
	require.NoError(t, err)
	assert.InDelta(t, 0.8, res.Best[0], 0.01)
}

func TestCMAES_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := NewCMAES(cmaesSettings(), zerolog.Nop()).Maximize(ctx, sphere, UnitBounds(2))
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Equal(t, StopCanceled, res.Reason)
}

func TestFitnessOf(t *testing.T) {
	assert.Equal(t, math.Inf(-1), fitnessOf(worstObjective))
	assert.Equal(t, 2.5, fitnessOf(-2.5))
}
