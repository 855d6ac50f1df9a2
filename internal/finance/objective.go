package finance

import (
	"math"
)

// DefaultPenaltyWeight scales constraint violations against the Sharpe ratio.
// It has to dominate feasible-region Sharpe differences so that infeasible
// weights never outrank feasible ones by more than a rounding-sized margin.
const DefaultPenaltyWeight = 100.0

// Penalty returns the squared violation of the soft constraints on a weight
// vector: weights sum to one and each weight lies in [0, 1].
// It is zero exactly on the feasible set.
func Penalty(weights []float64) float64 {
	sum := 0.0
	p := 0.0
	for _, w := range weights {
		sum += w
		if over := w - 1; over > 0 {
			p += over * over
		}
		if under := -w; under > 0 {
			p += under * under
		}
	}
	return p + (sum-1)*(sum-1)
}

// Objective is the scalar minimized by the weight search:
// -Sharpe(portfolio returns) + PenaltyWeight * Penalty(weights).
type Objective struct {
	Returns       *ReturnMatrix
	PenaltyWeight float64
}

// NewObjective builds an objective over returns. A non-positive weight falls
// back to DefaultPenaltyWeight.
func NewObjective(returns *ReturnMatrix, penaltyWeight float64) *Objective {
	if penaltyWeight <= 0 {
		penaltyWeight = DefaultPenaltyWeight
	}
	return &Objective{Returns: returns, PenaltyWeight: penaltyWeight}
}

// Value evaluates the objective. Weights whose portfolio has an undefined
// Sharpe ratio return a DegenerateSeriesError.
func (o *Objective) Value(weights []float64) (float64, error) {
	series, err := o.Returns.PortfolioReturns(weights)
	if err != nil {
		return 0, err
	}
	sharpe, err := Sharpe(series)
	if err != nil {
		return 0, err
	}
	return -sharpe + o.PenaltyWeight*Penalty(weights), nil
}

// Fitness is the negated objective, for maximizing optimizers. Weights with an
// undefined objective rank last with -Inf.
func (o *Objective) Fitness(weights []float64) float64 {
	v, err := o.Value(weights)
	if err != nil || math.IsNaN(v) {
		return math.Inf(-1)
	}
	return -v
}

// ProjectWeights maps weights in place onto the feasible set: each weight is
// clipped to [0, 1] and the vector is rescaled to sum to one. An all-zero
// vector becomes the equal split. Sharpe is invariant under positive scaling,
// so the projected point keeps the ratio the search was exploring.
func ProjectWeights(weights []float64) {
	if len(weights) == 0 {
		return
	}
	sum := 0.0
	for i, w := range weights {
		weights[i] = math.Min(math.Max(w, 0), 1)
		sum += weights[i]
	}
	if sum <= 0 {
		for i := range weights {
			weights[i] = 1 / float64(len(weights))
		}
		return
	}
	for i := range weights {
		weights[i] /= sum
	}
}
