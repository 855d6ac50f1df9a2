// Package optimizer searches bounded real-valued spaces for the maximum of a
// fitness function. Every method stops after a fixed number of iterations or
// when the best fitness has not improved for a number of consecutive
// iterations, and reports the best point of every iteration.
package optimizer

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// FitnessFunc scores a candidate; higher is better. It must be safe for
// concurrent use and must not retain x.
type FitnessFunc func(x []float64) float64

// Bound is the closed search interval of one dimension.
type Bound struct {
	Lower float64
	Upper float64
}

// UnitBounds returns n copies of [0, 1].
func UnitBounds(n int) []Bound {
	out := make([]Bound, n)
	for i := range out {
		out[i] = Bound{Lower: 0, Upper: 1}
	}
	return out
}

// StopReason says why a search ended.
type StopReason string

const (
	StopStall         StopReason = "stall"
	StopMaxIterations StopReason = "max_iterations"
	StopCanceled      StopReason = "canceled"
)

// Generation is the best point known after one iteration.
type Generation struct {
	Index   int
	Best    []float64
	Fitness float64
}

// Result is the outcome of a search.
type Result struct {
	Best        []float64
	Fitness     float64
	Generations []Generation
	Iterations  int
	Evaluations int
	Reason      StopReason
}

// Candidates returns the best points of the first n generations, in order.
func (r *Result) Candidates(n int) [][]float64 {
	if n <= 0 || n > len(r.Generations) {
		n = len(r.Generations)
	}
	out := make([][]float64, 0, n)
	for _, g := range r.Generations[:n] {
		out = append(out, g.Best)
	}
	return out
}

// Optimizer is a bounded global maximizer.
type Optimizer interface {
	Maximize(ctx context.Context, fitness FitnessFunc, bounds []Bound) (*Result, error)
}

// Method names accepted by New.
const (
	MethodGA    = "ga"
	MethodCMAES = "cmaes"
)

// ErrNoBounds is returned when a search has no dimensions.
var ErrNoBounds = errors.New("optimizer: no dimensions to search")

func checkBounds(bounds []Bound) error {
	if len(bounds) == 0 {
		return ErrNoBounds
	}
	for i, b := range bounds {
		if math.IsNaN(b.Lower) || math.IsNaN(b.Upper) || b.Lower > b.Upper {
			return fmt.Errorf("optimizer: invalid bound %d: [%v, %v]", i, b.Lower, b.Upper)
		}
	}
	return nil
}

func clip(x []float64, bounds []Bound) {
	for i, b := range bounds {
		if x[i] < b.Lower {
			x[i] = b.Lower
		} else if x[i] > b.Upper {
			x[i] = b.Upper
		}
	}
}

func clone(x []float64) []float64 {
	out := make([]float64, len(x))
	copy(out, x)
	return out
}
