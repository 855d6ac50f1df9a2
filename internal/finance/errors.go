package finance

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks price or weight data the analysis cannot use.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDegenerateSeries marks a return series whose Sharpe ratio is undefined.
	ErrDegenerateSeries = errors.New("degenerate series")
)

// InvalidInputError describes why input data was rejected.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string { return "invalid input: " + e.Reason }

func (e *InvalidInputError) Unwrap() error { return ErrInvalidInput }

func invalidInput(format string, args ...any) error {
	return &InvalidInputError{Reason: fmt.Sprintf(format, args...)}
}

// DegenerateSeriesError reports a series with too few observations or zero variance.
type DegenerateSeriesError struct {
	Observations int
	Variance     float64
}

func (e *DegenerateSeriesError) Error() string {
	if e.Observations < 2 {
		return fmt.Sprintf("degenerate series: %d observations", e.Observations)
	}
	return fmt.Sprintf("degenerate series: zero variance (%g) over %d observations", e.Variance, e.Observations)
}

func (e *DegenerateSeriesError) Unwrap() error { return ErrDegenerateSeries }
