package optimizer

import (
	"context"
	"math"
	"math/rand/v2"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/optimize"
)

// StopConverged is reported when CMA-ES collapses its search distribution.
const StopConverged StopReason = "converged"

// worstObjective stands in for infeasible points; gonum's convergence checks
// do not cope with infinite function values.
const worstObjective = 1e300

// CMAES adapts gonum's CMA-ES (Cholesky variant) to the Optimizer contract.
// Samples outside the bounds are projected onto them, then repaired, before
// evaluation. The search itself runs in the unrepaired space.
type CMAES struct {
	settings Settings
	log      zerolog.Logger
}

func NewCMAES(settings Settings, log zerolog.Logger) *CMAES {
	return &CMAES{settings: settings.withDefaults(), log: log.With().Str("optimizer", MethodCMAES).Logger()}
}

func (c *CMAES) Maximize(ctx context.Context, fitness FitnessFunc, bounds []Bound) (*Result, error) {
	if err := checkBounds(bounds); err != nil {
		return nil, err
	}
	s := c.settings

	x0 := make([]float64, len(bounds))
	width := 0.0
	for i, b := range bounds {
		x0[i] = (b.Lower + b.Upper) / 2
		width = math.Max(width, b.Upper-b.Lower)
	}
	step := 0.25 * width
	if step <= 0 {
		step = 0.5
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			f := fitness(feasible(x, bounds, s.Repair))
			if math.IsNaN(f) || math.IsInf(f, -1) {
				return worstObjective
			}
			return -f
		},
	}
	rec := &historyRecorder{ctx: ctx, bounds: bounds, repair: s.Repair}
	settings := &optimize.Settings{
		MajorIterations: s.MaxIterations,
		Converger:       &optimize.FunctionConverge{Iterations: s.StallIterations},
		Recorder:        rec,
		Concurrent:      s.Workers,
	}
	method := &optimize.CmaEsChol{
		InitStepSize: step,
		Population:   max(s.PopulationSize, 0),
		Src:          rand.NewPCG(uint64(s.Seed), uint64(s.Seed)^0x9e3779b97f4a7c15),
	}

	res, err := optimize.Minimize(problem, x0, settings, method)
	out := &Result{Generations: rec.generations}
	if res != nil {
		best := feasible(res.X, bounds, s.Repair)
		out.Best = best
		out.Fitness = fitnessOf(res.F)
		out.Iterations = res.MajorIterations
		out.Evaluations = res.FuncEvaluations
		out.Reason = stopReason(res.Status)
		if n := len(out.Generations); n == 0 || out.Generations[n-1].Fitness < out.Fitness {
			out.Generations = append(out.Generations, Generation{Index: n, Best: clone(best), Fitness: out.Fitness})
		}
	}
	if ctx.Err() != nil {
		out.Reason = StopCanceled
		return out, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	c.log.Debug().Int("iterations", out.Iterations).Str("reason", string(out.Reason)).Msg("cmaes finished")
	return out, nil
}

// feasible returns a copy of x clipped to bounds and repaired.
func feasible(x []float64, bounds []Bound, repair RepairFunc) []float64 {
	p := clone(x)
	clip(p, bounds)
	if repair != nil {
		repair(p)
	}
	return p
}

func fitnessOf(objective float64) float64 {
	if objective >= worstObjective {
		return math.Inf(-1)
	}
	return -objective
}

func stopReason(status optimize.Status) StopReason {
	switch status {
	case optimize.FunctionConvergence:
		return StopStall
	case optimize.IterationLimit:
		return StopMaxIterations
	case optimize.MethodConverge:
		return StopConverged
	default:
		return StopReason(status.String())
	}
}

// historyRecorder keeps the best location of every major iteration and stops
// the run when ctx is done.
type historyRecorder struct {
	ctx         context.Context
	bounds      []Bound
	repair      RepairFunc
	generations []Generation
}

func (r *historyRecorder) Init() error { return nil }

func (r *historyRecorder) Record(loc *optimize.Location, op optimize.Operation, stats *optimize.Stats) error {
	if err := r.ctx.Err(); err != nil {
		return err
	}
	if op != optimize.MajorIteration {
		return nil
	}
	r.generations = append(r.generations, Generation{
		Index:   stats.MajorIterations - 1,
		Best:    feasible(loc.X, r.bounds, r.repair),
		Fitness: fitnessOf(loc.F),
	})
	return nil
}
