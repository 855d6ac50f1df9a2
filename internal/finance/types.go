package finance

import (
	"time"
)

// PricePoint is one closing price observation.
type PricePoint struct {
	Date  time.Time
	Close float64
}

// PriceSeries is the ordered price history of a single asset as read from disk.
type PriceSeries struct {
	Symbol string
	Points []PricePoint
}

// AlignedPrices holds closes for several assets on the dates they all share.
// Closes[t][i] is the close of Symbols[i] on Dates[t].
type AlignedPrices struct {
	Symbols []string
	Dates   []time.Time
	Closes  [][]float64
}

// ReturnRow is the vector of simple returns of every asset for one period.
type ReturnRow struct {
	Date    time.Time // end of the period
	Returns []float64 // ordered like ReturnMatrix.Symbols
}

// ReturnMatrix holds per-period simple returns. It has one row fewer than the
// price table it was computed from and is never mutated after construction.
type ReturnMatrix struct {
	Symbols []string
	Rows    []ReturnRow
}

// NumAssets returns the number of asset columns.
func (m *ReturnMatrix) NumAssets() int { return len(m.Symbols) }

// NumPeriods returns the number of return periods.
func (m *ReturnMatrix) NumPeriods() int { return len(m.Rows) }

// Column returns the return series of the asset at index i.
func (m *ReturnMatrix) Column(i int) []float64 {
	out := make([]float64, len(m.Rows))
	for t, row := range m.Rows {
		out[t] = row.Returns[i]
	}
	return out
}

// Dates returns the period end dates.
func (m *ReturnMatrix) Dates() []time.Time {
	out := make([]time.Time, len(m.Rows))
	for t, row := range m.Rows {
		out[t] = row.Date
	}
	return out
}
