package optimizer

import (
	"context"
	"math"
	"math/rand"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// GeneticAlgorithm is a real-valued genetic algorithm with elitism.
// Randomness is drawn only on the calling goroutine, so the worker count
// does not change the result for a given seed.
type GeneticAlgorithm struct {
	settings Settings
	log      zerolog.Logger
}

func NewGeneticAlgorithm(settings Settings, log zerolog.Logger) *GeneticAlgorithm {
	s := settings.withDefaults()
	if s.PopulationSize <= 0 {
		s.PopulationSize = DefaultSettings().PopulationSize
	}
	if s.PopulationSize < 2 {
		s.PopulationSize = 2
	}
	if s.ParentsMating <= 0 {
		s.ParentsMating = s.PopulationSize / 2
	}
	if s.ParentsMating < 2 {
		s.ParentsMating = 2
	}
	if s.ParentsMating > s.PopulationSize {
		s.ParentsMating = s.PopulationSize
	}
	return &GeneticAlgorithm{settings: s, log: log.With().Str("optimizer", MethodGA).Logger()}
}

// Settings returns the effective settings after defaults.
func (ga *GeneticAlgorithm) Settings() Settings { return ga.settings }

func (ga *GeneticAlgorithm) Maximize(ctx context.Context, fitness FitnessFunc, bounds []Bound) (*Result, error) {
	if err := checkBounds(bounds); err != nil {
		return nil, err
	}
	s := ga.settings
	if err := s.validateGenetic(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(s.Seed))
	pop := make([][]float64, s.PopulationSize)
	for i := range pop {
		pop[i] = randomPoint(rng, bounds)
		ga.repair(pop[i])
	}
	fit := make([]float64, len(pop))
	if err := ga.evaluate(ctx, fitness, pop, fit, 0); err != nil {
		return nil, err
	}

	res := &Result{
		Generations: make([]Generation, 0, min(s.MaxIterations, 1024)),
		Evaluations: len(pop),
		Reason:      StopMaxIterations,
	}
	bi := argmax(fit)
	best, bestFit := clone(pop[bi]), fit[bi]
	stall := 0

	for gen := 0; gen < s.MaxIterations; gen++ {
		if ctx.Err() != nil {
			res.Reason = StopCanceled
			break
		}

		order := rankDesc(fit)
		next := make([][]float64, 0, len(pop))
		nextFit := make([]float64, len(pop))
		for _, idx := range order[:s.KeepElitism] {
			nextFit[len(next)] = fit[idx]
			next = append(next, clone(pop[idx]))
		}
		elites := len(next)

		parents := ga.selectParents(rng, pop, fit, order)
		for len(next) < len(pop) {
			a := parents[rng.Intn(len(parents))]
			b := parents[rng.Intn(len(parents))]
			var child []float64
			if rng.Float64() < s.CrossoverProbability {
				child = ga.crossover(rng, a, b)
			} else {
				child = clone(a)
			}
			ga.mutate(rng, child, bounds)
			clip(child, bounds)
			ga.repair(child)
			next = append(next, child)
		}

		if err := ga.evaluate(ctx, fitness, next, nextFit, elites); err != nil {
			res.Reason = StopCanceled
			ga.finish(res, best, bestFit, gen)
			return res, err
		}
		res.Evaluations += len(next) - elites
		pop, fit = next, nextFit

		if i := argmax(fit); fit[i] > bestFit {
			best, bestFit = clone(pop[i]), fit[i]
			stall = 0
		} else {
			stall++
		}
		res.Generations = append(res.Generations, Generation{Index: gen, Best: clone(best), Fitness: bestFit})

		if gen%500 == 0 {
			ga.log.Debug().Int("generation", gen).Float64("best_fitness", bestFit).Int("stall", stall).Msg("ga progress")
		}
		if stall >= s.StallIterations {
			res.Reason = StopStall
			break
		}
	}

	ga.finish(res, best, bestFit, len(res.Generations))
	if res.Reason == StopCanceled {
		return res, ctx.Err()
	}
	return res, nil
}

func (ga *GeneticAlgorithm) repair(x []float64) {
	if ga.settings.Repair != nil {
		ga.settings.Repair(x)
	}
}

func (ga *GeneticAlgorithm) finish(res *Result, best []float64, bestFit float64, iterations int) {
	res.Best = best
	res.Fitness = bestFit
	res.Iterations = iterations
}

// evaluate fills fit[from:] for pop[from:], in parallel when Workers > 1.
func (ga *GeneticAlgorithm) evaluate(ctx context.Context, fitness FitnessFunc, pop [][]float64, fit []float64, from int) error {
	if ga.settings.Workers <= 1 {
		for i := from; i < len(pop); i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			fit[i] = score(fitness, pop[i])
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ga.settings.Workers)
	for i := from; i < len(pop); i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fit[i] = score(fitness, pop[i])
			return nil
		})
	}
	return g.Wait()
}

func score(fitness FitnessFunc, x []float64) float64 {
	f := fitness(x)
	if math.IsNaN(f) {
		return math.Inf(-1)
	}
	return f
}

// selectParents returns the mating pool of ParentsMating individuals.
func (ga *GeneticAlgorithm) selectParents(rng *rand.Rand, pop [][]float64, fit []float64, order []int) [][]float64 {
	n := ga.settings.ParentsMating
	out := make([][]float64, 0, n)
	switch ga.settings.Selection {
	case SelectSteadyState:
		for _, idx := range order[:n] {
			out = append(out, pop[idx])
		}
	default:
		for len(out) < n {
			winner := rng.Intn(len(pop))
			for k := 1; k < ga.settings.TournamentSize; k++ {
				if c := rng.Intn(len(pop)); fit[c] > fit[winner] {
					winner = c
				}
			}
			out = append(out, pop[winner])
		}
	}
	return out
}

func (ga *GeneticAlgorithm) crossover(rng *rand.Rand, a, b []float64) []float64 {
	child := make([]float64, len(a))
	switch ga.settings.Crossover {
	case CrossoverSinglePoint:
		if len(a) < 2 {
			copy(child, a)
			break
		}
		point := 1 + rng.Intn(len(a)-1)
		copy(child[:point], a[:point])
		copy(child[point:], b[point:])
	case CrossoverUniform:
		for i := range child {
			if rng.Float64() < 0.5 {
				child[i] = a[i]
			} else {
				child[i] = b[i]
			}
		}
	default:
		alpha := ga.settings.BlendAlpha
		for i := range child {
			lo, hi := math.Min(a[i], b[i]), math.Max(a[i], b[i])
			d := hi - lo
			lo, hi = lo-alpha*d, hi+alpha*d
			child[i] = lo + rng.Float64()*(hi-lo)
		}
	}
	return child
}

func (ga *GeneticAlgorithm) mutate(rng *rand.Rand, x []float64, bounds []Bound) {
	for i, b := range bounds {
		if rng.Float64() >= ga.settings.MutationProbability {
			continue
		}
		switch ga.settings.Mutation {
		case MutateRandom:
			x[i] = b.Lower + rng.Float64()*(b.Upper-b.Lower)
		default:
			x[i] += rng.NormFloat64() * ga.settings.MutationScale * (b.Upper - b.Lower)
		}
	}
}

func randomPoint(rng *rand.Rand, bounds []Bound) []float64 {
	x := make([]float64, len(bounds))
	for i, b := range bounds {
		x[i] = b.Lower + rng.Float64()*(b.Upper-b.Lower)
	}
	return x
}

func argmax(fit []float64) int {
	best := 0
	for i, f := range fit {
		if f > fit[best] {
			best = i
		}
	}
	return best
}

// rankDesc returns indices ordered by fitness, best first. Ties keep index order.
func rankDesc(fit []float64) []int {
	order := make([]int, len(fit))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return fit[order[a]] > fit[order[b]] })
	return order
}
