package finance

// PortfolioStats represents calculated statistics of a per-period return series.
// Percent fields are already multiplied by 100.
type PortfolioStats struct {
	TotalReturn float64 // Sum of period returns, percent
	MeanReturn  float64 // Mean period return, percent
	Volatility  float64 // Population standard deviation per period, percent
	SharpeRatio float64 // Mean / stddev, per period, risk-free rate 0
	MaxDrawdown float64 // Largest decline of the cumulative curve, percent
	NumPeriods  int
}

// NamedSeries is one plotted line.
type NamedSeries struct {
	Name   string
	Values []float64
}

// LongRecord is one (period, series, value) observation of a long-form table.
type LongRecord struct {
	Period int
	Series string
	Value  float64
}

// LongForm reshapes wide series into one record per (period, series) pair,
// ordered by series then period.
func LongForm(series []NamedSeries) []LongRecord {
	n := 0
	for _, s := range series {
		n += len(s.Values)
	}
	out := make([]LongRecord, 0, n)
	for _, s := range series {
		for t, v := range s.Values {
			out = append(out, LongRecord{Period: t, Series: s.Name, Value: v})
		}
	}
	return out
}

// WideForm groups long-form records back into series, preserving first-seen
// series order. Missing periods are filled with zero.
func WideForm(records []LongRecord) []NamedSeries {
	index := map[string]int{}
	var out []NamedSeries
	for _, r := range records {
		i, ok := index[r.Series]
		if !ok {
			i = len(out)
			index[r.Series] = i
			out = append(out, NamedSeries{Name: r.Series})
		}
		for len(out[i].Values) <= r.Period {
			out[i].Values = append(out[i].Values, 0)
		}
		out[i].Values[r.Period] = r.Value
	}
	return out
}
