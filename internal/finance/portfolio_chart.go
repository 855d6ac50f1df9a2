package finance

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vicanso/go-charts/v2"
)

// ChartFrame is one rendered picture of several cumulative return lines.
type ChartFrame struct {
	Title    string
	Subtitle string
	Labels   []string     // x-axis labels, one per period shown
	Records  []LongRecord // long-form values
	YMin     *float64     // fixed y-axis bounds; nil lets the chart decide
	YMax     *float64
	Width    int
	Height   int
}

// RenderChartFrame draws the frame as a line chart and returns PNG bytes.
func RenderChartFrame(frame ChartFrame) ([]byte, error) {
	series := WideForm(frame.Records)
	if len(series) == 0 {
		return nil, fmt.Errorf("no series to plot")
	}

	values := make([][]float64, 0, len(series))
	names := make([]string, 0, len(series))
	for _, s := range series {
		values = append(values, s.Values)
		names = append(names, s.Name)
	}

	splitNum := 6
	if len(frame.Labels) <= 30 {
		splitNum = len(frame.Labels) / 3
		if splitNum < 3 {
			splitNum = 3
		}
	}

	seriesList := charts.NewSeriesListDataFromValues(values, charts.ChartTypeLine)
	for i := range seriesList {
		seriesList[i].Name = names[i]
	}

	opts := []charts.OptionFunc{
		charts.TitleTextOptionFunc(frame.Title, frame.Subtitle),
		charts.XAxisOptionFunc(charts.XAxisOption{
			Data:        frame.Labels,
			SplitNumber: splitNum,
			BoundaryGap: charts.FalseFlag(),
		}),
		charts.YAxisOptionFunc(charts.YAxisOption{
			Min:         frame.YMin,
			Max:         frame.YMax,
			DivideCount: 5,
		}),
		charts.LegendOptionFunc(charts.LegendOption{
			Data: names,
			Top:  charts.PositionBottom,
		}),
		charts.ThemeOptionFunc(charts.ThemeLight),
	}
	if frame.Width > 0 {
		opts = append(opts, charts.WidthOptionFunc(frame.Width))
	}
	if frame.Height > 0 {
		opts = append(opts, charts.HeightOptionFunc(frame.Height))
	}

	p, err := charts.Render(charts.ChartOption{SeriesList: seriesList}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}
	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to generate chart bytes: %w", err)
	}
	return buf, nil
}

// MakeBestPortfolioChart renders the cumulative return of one weight vector
// next to the cumulative return of every asset.
func MakeBestPortfolioChart(returns *ReturnMatrix, weights []float64, width, height int) ([]byte, error) {
	portfolio, err := returns.PortfolioReturns(weights)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate portfolio: %w", err)
	}
	subtitle, err := Subtitle(portfolio)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate stats: %w", err)
	}

	series := CandidateSeries(returns, "Portfolio", portfolio)
	yMin, yMax := PaddedRange(series)

	return RenderChartFrame(ChartFrame{
		Title:    fmt.Sprintf("Optimized Portfolio (%s)", Composition(returns.Symbols, weights)),
		Subtitle: subtitle,
		Labels:   PeriodLabels(returns.Dates()),
		Records:  LongForm(series),
		YMin:     &yMin,
		YMax:     &yMax,
		Width:    width,
		Height:   height,
	})
}

// CandidateSeries pairs the cumulative portfolio series with every asset's cumulative series.
func CandidateSeries(returns *ReturnMatrix, name string, portfolio []float64) []NamedSeries {
	assets := returns.AssetCumulative()
	out := make([]NamedSeries, 0, len(assets)+1)
	out = append(out, NamedSeries{Name: name, Values: Cumulative(portfolio)})
	for i, values := range assets {
		out = append(out, NamedSeries{Name: returns.Symbols[i], Values: values})
	}
	return out
}

// Composition formats weights as "SPY 40.0%, TLT 60.0%".
func Composition(symbols []string, weights []float64) string {
	parts := make([]string, 0, len(symbols))
	for i, symbol := range symbols {
		if i >= len(weights) {
			break
		}
		parts = append(parts, fmt.Sprintf("%s %.1f%%", symbol, weights[i]*100))
	}
	return strings.Join(parts, ", ")
}

// StatsLine formats the chart subtitle.
func StatsLine(stats *PortfolioStats) string {
	return fmt.Sprintf("Return: %.2f%% | Sharpe: %.3f | Vol: %.2f%% | MaxDD: %.2f%%",
		stats.TotalReturn, stats.SharpeRatio, stats.Volatility, stats.MaxDrawdown)
}

// Subtitle returns the stats line of a portfolio return series. A series with
// an undefined Sharpe ratio is labelled rather than rejected.
func Subtitle(portfolio []float64) (string, error) {
	stats, err := CalculatePortfolioStats(portfolio)
	if errors.Is(err, ErrDegenerateSeries) {
		return "Sharpe: undefined (zero variance)", nil
	}
	if err != nil {
		return "", err
	}
	return StatsLine(stats), nil
}

// PeriodLabels formats period dates for the x-axis.
func PeriodLabels(dates []time.Time) []string {
	labels := make([]string, len(dates))
	for i, d := range dates {
		if len(dates) <= 60 {
			labels[i] = d.Format("Jan 02")
		} else {
			labels[i] = d.Format("Jan '06")
		}
	}
	return labels
}

// PaddedRange returns the min and max over all series, padded by 5%.
func PaddedRange(series []NamedSeries) (float64, float64) {
	first := true
	var minVal, maxVal float64
	for _, s := range series {
		for _, v := range s.Values {
			if first {
				minVal, maxVal = v, v
				first = false
				continue
			}
			if v < minVal {
				minVal = v
			}
			if v > maxVal {
				maxVal = v
			}
		}
	}
	padding := (maxVal - minVal) * 0.05
	if padding == 0 {
		padding = 0.01
	}
	return minVal - padding, maxVal + padding
}
