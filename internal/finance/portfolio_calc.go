package finance

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// flatTolerance is the standard deviation, relative to the root mean square of
// the series, below which a return series is treated as flat. Offsetting
// positions leave rounding noise far below it.
const flatTolerance = 1e-9

// PortfolioReturns returns the weighted sum of asset returns for every period.
// Weights are used as given; no normalization is applied.
func (m *ReturnMatrix) PortfolioReturns(weights []float64) ([]float64, error) {
	if len(weights) != m.NumAssets() {
		return nil, invalidInput("got %d weights for %d assets", len(weights), m.NumAssets())
	}
	out := make([]float64, len(m.Rows))
	for t, row := range m.Rows {
		out[t] = floats.Dot(weights, row.Returns)
	}
	return out, nil
}

// Cumulative returns the running sum of a return series. It does not compound.
func Cumulative(returns []float64) []float64 {
	out := make([]float64, len(returns))
	if len(returns) == 0 {
		return out
	}
	floats.CumSum(out, returns)
	return out
}

// AssetCumulative returns the cumulative return series of every asset, ordered like Symbols.
func (m *ReturnMatrix) AssetCumulative() [][]float64 {
	out := make([][]float64, m.NumAssets())
	for i := range out {
		out[i] = Cumulative(m.Column(i))
	}
	return out
}

// Sharpe returns mean / sqrt(variance) of a per-period return series, using the
// population variance. No risk-free rate and no annualization.
func Sharpe(returns []float64) (float64, error) {
	if len(returns) < 2 {
		return 0, &DegenerateSeriesError{Observations: len(returns)}
	}
	mean, variance := stat.PopMeanVariance(returns, nil)
	if math.IsNaN(mean) || math.IsNaN(variance) || math.IsInf(mean, 0) || math.IsInf(variance, 0) {
		return 0, invalidInput("non-finite return statistics: mean=%v variance=%v", mean, variance)
	}
	if isFlat(mean, variance) {
		return 0, &DegenerateSeriesError{Observations: len(returns), Variance: variance}
	}
	return mean / math.Sqrt(variance), nil
}

// isFlat reports whether the spread of a series is indistinguishable from
// rounding noise at the scale of its values.
func isFlat(mean, variance float64) bool {
	if variance <= 0 {
		return true
	}
	rms := math.Sqrt(mean*mean + variance)
	return math.Sqrt(variance) <= flatTolerance*rms
}

// CalculatePortfolioStats summarizes a per-period portfolio return series.
func CalculatePortfolioStats(returns []float64) (*PortfolioStats, error) {
	if len(returns) < 2 {
		return nil, fmt.Errorf("need at least 2 return observations for statistics: %w",
			&DegenerateSeriesError{Observations: len(returns)})
	}

	cum := Cumulative(returns)
	mean, variance := stat.PopMeanVariance(returns, nil)

	sharpe, err := Sharpe(returns)
	if err != nil {
		return nil, err
	}

	// Index the running sum at 100 so drawdowns are measured against a positive base.
	values := make([]float64, len(cum)+1)
	values[0] = 100
	for i, c := range cum {
		values[i+1] = 100 * (1 + c)
	}

	stats := &PortfolioStats{
		TotalReturn: cum[len(cum)-1] * 100,
		MeanReturn:  mean * 100,
		Volatility:  math.Sqrt(variance) * 100,
		SharpeRatio: sharpe,
		MaxDrawdown: calculateMaxDrawdown(values) * 100,
		NumPeriods:  len(returns),
	}

	if math.IsNaN(stats.TotalReturn) || math.IsInf(stats.TotalReturn, 0) {
		return nil, invalidInput("invalid total return: %f", stats.TotalReturn)
	}
	if math.IsNaN(stats.Volatility) || math.IsInf(stats.Volatility, 0) {
		return nil, invalidInput("invalid volatility: %f", stats.Volatility)
	}
	if math.IsNaN(stats.MaxDrawdown) || math.IsInf(stats.MaxDrawdown, 0) {
		return nil, invalidInput("invalid max drawdown: %f", stats.MaxDrawdown)
	}
	return stats, nil
}

// calculateMaxDrawdown returns the largest peak-to-trough decline as a fraction.
func calculateMaxDrawdown(values []float64) float64 {
	if len(values) < 2 {
		return 0.0
	}

	maxDrawdown := 0.0
	peak := values[0]

	if peak <= 0 {
		for i := 1; i < len(values); i++ {
			if values[i] > 0 {
				peak = values[i]
				break
			}
		}
		if peak <= 0 {
			return 0.0
		}
	}

	for _, value := range values {
		if value > peak {
			peak = value
		}
		if peak > 0 {
			drawdown := (peak - value) / peak
			if drawdown > maxDrawdown {
				maxDrawdown = drawdown
			}
		}
	}

	return maxDrawdown
}
