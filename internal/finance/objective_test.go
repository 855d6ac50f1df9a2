package finance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func matrix(cols ...[]float64) *ReturnMatrix {
	m := &ReturnMatrix{}
	for i := range cols {
		m.Symbols = append(m.Symbols, string(rune('A'+i)))
	}
	for t := range cols[0] {
		row := ReturnRow{Date: day(t + 2), Returns: make([]float64, len(cols))}
		for i, c := range cols {
			row.Returns[i] = c[t]
		}
		m.Rows = append(m.Rows, row)
	}
	return m
}

func TestPenalty_ZeroOnlyWhenFeasible(t *testing.T) {
	tests := []struct {
		name     string
		weights  []float64
		feasible bool
	}{
		{"split", []float64{0.25, 0.75}, true},
		{"corner", []float64{1, 0, 0}, true},
		{"sum above one", []float64{0.5, 0.6}, false},
		{"sum below one", []float64{0.2, 0.2}, false},
		{"negative weight", []float64{1.2, -0.2}, false},
		{"above upper bound", []float64{1.5, -0.5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Penalty(tt.weights)
			if tt.feasible {
				assert.InDelta(t, 0, p, 1e-15)
			} else {
				assert.Greater(t, p, 0.0)
			}
		})
	}
}

func TestPenalty_GrowsWithViolation(t *testing.T) {
	prev := 0.0
	for _, excess := range []float64{0.01, 0.1, 0.5, 1, 3} {
		p := Penalty([]float64{0.5, 0.5 + excess})
		assert.Greater(t, p, prev)
		prev = p
	}
	assert.Greater(t, Penalty([]float64{-0.5, 1.5}), Penalty([]float64{-0.1, 1.1}))
}

func TestObjective_Value(t *testing.T) {
	m := matrix([]float64{0.01, 0.03, 0.01, 0.03}, []float64{0, 0.02, 0, 0.02})
	obj := NewObjective(m, 0)
	assert.Equal(t, DefaultPenaltyWeight, obj.PenaltyWeight)

	v, err := obj.Value([]float64{0.5, 0.5})
	require.NoError(t, err)
	assert.InDelta(t, -1.5, v, 1e-9)
	assert.InDelta(t, 1.5, obj.Fitness([]float64{0.5, 0.5}), 1e-9)

	v, err = obj.Value([]float64{0.5, 0.6})
	require.NoError(t, err)
	sharpe := (0.005 + 0.6*0.01 + 0.005) / (1.1 * 0.01)
	assert.InDelta(t, -sharpe+100*0.01, v, 1e-9)

	_, err = obj.Value([]float64{1})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

// With A = B + 0.01 every weight [k, 1-k] has Sharpe 1+k, so the objective
// rewards pushing k past 1 until the penalty 2(k-1)^2 pushes back.
func TestObjective_PenaltyDominance(t *testing.T) {
	m := matrix([]float64{0.01, 0.03, 0.01, 0.03}, []float64{0, 0.02, 0, 0.02})

	argmin := func(weight float64) float64 {
		obj := NewObjective(m, weight)
		bestK, bestV := 0.0, math.Inf(1)
		for i := 0; i <= 3000; i++ {
			k := float64(i) / 1000
			v, err := obj.Value([]float64{k, 1 - k})
			require.NoError(t, err)
			if v < bestV {
				bestK, bestV = k, v
			}
		}
		return bestK
	}

	assert.InDelta(t, 1.0, argmin(100), 0.01)
	assert.InDelta(t, 1.0, argmin(1000), 0.01)
	assert.InDelta(t, argmin(100), argmin(1000), 0.01)
	assert.Equal(t, 3.0, argmin(0.001), "a weak penalty lets Sharpe run to the grid edge")
}

func TestObjective_DegenerateCandidate(t *testing.T) {
	m := matrix([]float64{0.01, -0.01, 0.02}, []float64{-0.01, 0.01, -0.02})
	obj := NewObjective(m, DefaultPenaltyWeight)

	series, err := m.PortfolioReturns([]float64{0.5, 0.5})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 0, 0}, series, 1e-15)

	_, err = Sharpe(series)
	var degenerate *DegenerateSeriesError
	require.ErrorAs(t, err, &degenerate)
	assert.Equal(t, 3, degenerate.Observations)

	_, err = obj.Value([]float64{0.5, 0.5})
	assert.ErrorIs(t, err, ErrDegenerateSeries)
	assert.True(t, math.IsInf(obj.Fitness([]float64{0.5, 0.5}), -1))
}

func TestProjectWeights(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		want []float64
	}{
		{"feasible unchanged", []float64{0.25, 0.75}, []float64{0.25, 0.75}},
		{"rescaled", []float64{0.39, 0.39}, []float64{0.5, 0.5}},
		{"clipped then rescaled", []float64{-0.2, 0.6, 1.4}, []float64{0, 0.375, 0.625}},
		{"all zero", []float64{0, 0, 0, 0}, []float64{0.25, 0.25, 0.25, 0.25}},
		{"all negative", []float64{-1, -2}, []float64{0.5, 0.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := append([]float64(nil), tt.in...)
			ProjectWeights(w)
			assert.InDeltaSlice(t, tt.want, w, 1e-12)
			assert.InDelta(t, 0, Penalty(w), 1e-12)
		})
	}

	ProjectWeights(nil)
}

func TestProjectWeights_KeepsSharpe(t *testing.T) {
	m := matrix([]float64{0.01, 0.03, -0.01, 0.02}, []float64{0.02, -0.01, 0.01, 0.00})
	obj := NewObjective(m, DefaultPenaltyWeight)

	w := []float64{0.6, 0.2}
	before, err := m.PortfolioReturns(w)
	require.NoError(t, err)
	ProjectWeights(w)
	after, err := m.PortfolioReturns(w)
	require.NoError(t, err)

	s0, err := Sharpe(before)
	require.NoError(t, err)
	s1, err := Sharpe(after)
	require.NoError(t, err)
	assert.InDelta(t, s0, s1, 1e-9)
	assert.InDelta(t, s1, obj.Fitness(w), 1e-9, "no penalty once projected")
}
