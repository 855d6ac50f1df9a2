package finance

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"01/02/2006",
}

// LoadPriceCSV reads a (date, close) series for symbol from a CSV file.
func LoadPriceCSV(path, symbol string) (*PriceSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	series, err := ReadPriceCSV(f, symbol)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return series, nil
}

// ReadPriceCSV parses a price series. The first row is treated as a header when
// its first cell is not a date; header names pick the date and close columns
// ("date"/"timestamp", then "close", "adj close"). Otherwise columns 0 and 1 are used.
func ReadPriceCSV(r io.Reader, symbol string) (*PriceSeries, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	dateCol, closeCol := 0, 1
	series := &PriceSeries{Symbol: symbol}
	line := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, invalidInput("%s: %v", symbol, err)
		}
		line++
		if line == 1 {
			if _, ok := parseDate(rec[0]); !ok {
				dateCol, closeCol = headerColumns(rec)
				continue
			}
		}
		if len(rec) <= dateCol || len(rec) <= closeCol {
			return nil, invalidInput("%s line %d: expected at least %d columns, got %d", symbol, line, max(dateCol, closeCol)+1, len(rec))
		}

		day, ok := parseDate(rec[dateCol])
		if !ok {
			return nil, invalidInput("%s line %d: unparsable date %q", symbol, line, rec[dateCol])
		}
		raw := strings.TrimSpace(rec[closeCol])
		if raw == "" {
			return nil, invalidInput("%s line %d: missing close price", symbol, line)
		}
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, invalidInput("%s line %d: invalid close %q", symbol, line, raw)
		}
		if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
			return nil, invalidInput("%s line %d: close must be positive and finite, got %v", symbol, line, price)
		}
		series.Points = append(series.Points, PricePoint{Date: day, Close: price})
	}

	if len(series.Points) == 0 {
		return nil, invalidInput("%s: no price rows", symbol)
	}
	return series, nil
}

func headerColumns(header []string) (dateCol, closeCol int) {
	dateCol, closeCol = 0, -1
	adjCol := -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "date", "timestamp", "time":
			dateCol = i
		case "close":
			closeCol = i
		case "adj close", "adj_close", "adjclose":
			adjCol = i
		}
	}
	if closeCol == -1 {
		closeCol = adjCol
	}
	if closeCol == -1 {
		closeCol = 1
	}
	return dateCol, closeCol
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
