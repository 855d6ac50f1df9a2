package finance

import (
	"math"
)

// ComputeReturns converts aligned closes into simple period-over-period returns.
// The first date has no prior price and produces no row.
func ComputeReturns(prices *AlignedPrices) (*ReturnMatrix, error) {
	if prices == nil {
		return nil, invalidInput("no price data")
	}
	numAssets := len(prices.Symbols)
	numDays := len(prices.Dates)
	if numAssets == 0 {
		return nil, invalidInput("no assets provided")
	}
	if len(prices.Closes) != numDays {
		return nil, invalidInput("%d price rows for %d dates", len(prices.Closes), numDays)
	}
	if numDays < 2 {
		return nil, invalidInput("need at least 2 aligned dates for returns, got %d", numDays)
	}

	rows := make([]ReturnRow, 0, numDays-1)
	for day := 1; day < numDays; day++ {
		prev, cur := prices.Closes[day-1], prices.Closes[day]
		if len(prev) != numAssets || len(cur) != numAssets {
			return nil, invalidInput("price row %d has %d assets, expected %d", day, len(cur), numAssets)
		}
		r := make([]float64, numAssets)
		for i := 0; i < numAssets; i++ {
			if prev[i] == 0 {
				return nil, invalidInput("zero price for %s on %s", prices.Symbols[i], prices.Dates[day-1].Format("2006-01-02"))
			}
			r[i] = (cur[i] - prev[i]) / prev[i]
			if math.IsNaN(r[i]) || math.IsInf(r[i], 0) {
				return nil, invalidInput("invalid return for %s on %s: %f", prices.Symbols[i], prices.Dates[day].Format("2006-01-02"), r[i])
			}
		}
		rows = append(rows, ReturnRow{Date: prices.Dates[day], Returns: r})
	}

	symbols := make([]string, numAssets)
	copy(symbols, prices.Symbols)
	return &ReturnMatrix{Symbols: symbols, Rows: rows}, nil
}
