package optimizer

import (
	"fmt"
	"runtime"

	"github.com/rs/zerolog"
)

// Selection, crossover and mutation operator names.
const (
	SelectTournament  = "tournament"
	SelectSteadyState = "steady_state"

	CrossoverBlend       = "blend"
	CrossoverSinglePoint = "single_point"
	CrossoverUniform     = "uniform"

	MutateGaussian = "gaussian"
	MutateRandom   = "random"
)

// RepairFunc maps a candidate in place onto the feasible region before it is
// scored. It must be deterministic.
type RepairFunc func(x []float64)

// Settings configures a search. Zero values take the defaults below, except
// the operator probabilities: zero disables the operator and only a negative
// probability takes the default. The genetic operator fields are ignored by
// CMA-ES.
type Settings struct {
	MaxIterations   int   // default 50000
	StallIterations int   // default 50
	PopulationSize  int   // default 50 for the GA; 0 lets CMA-ES pick
	Seed            int64 // same seed, same result
	Workers         int   // parallel fitness evaluations, default runtime.NumCPU()

	ParentsMating        int     // default PopulationSize/2
	KeepElitism          int     // default 1
	TournamentSize       int     // default 3
	Selection            string  // default tournament
	Crossover            string  // default blend
	CrossoverProbability float64 // default 0.9 when negative
	BlendAlpha           float64 // default 0.5
	Mutation             string  // default gaussian
	MutationProbability  float64 // default 0.1 when negative
	MutationScale        float64 // gaussian sigma as a fraction of the bound width, default 0.1

	// Repair, when set, is applied to every candidate before evaluation and
	// the repaired point is what the search keeps and reports.
	Repair RepairFunc
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		MaxIterations:        50000,
		StallIterations:      50,
		PopulationSize:       50,
		ParentsMating:        25,
		KeepElitism:          1,
		TournamentSize:       3,
		Selection:            SelectTournament,
		Crossover:            CrossoverBlend,
		CrossoverProbability: 0.9,
		BlendAlpha:           0.5,
		Mutation:             MutateGaussian,
		MutationProbability:  0.1,
		MutationScale:        0.1,
		Workers:              runtime.NumCPU(),
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.MaxIterations <= 0 {
		s.MaxIterations = d.MaxIterations
	}
	if s.StallIterations <= 0 {
		s.StallIterations = d.StallIterations
	}
	if s.Workers <= 0 {
		s.Workers = d.Workers
	}
	if s.TournamentSize <= 0 {
		s.TournamentSize = d.TournamentSize
	}
	if s.Selection == "" {
		s.Selection = d.Selection
	}
	if s.Crossover == "" {
		s.Crossover = d.Crossover
	}
	if s.CrossoverProbability < 0 {
		s.CrossoverProbability = d.CrossoverProbability
	}
	if s.BlendAlpha <= 0 {
		s.BlendAlpha = d.BlendAlpha
	}
	if s.Mutation == "" {
		s.Mutation = d.Mutation
	}
	if s.MutationProbability < 0 {
		s.MutationProbability = d.MutationProbability
	}
	if s.MutationScale <= 0 {
		s.MutationScale = d.MutationScale
	}
	if s.KeepElitism < 0 {
		s.KeepElitism = 0
	}
	return s
}

func (s Settings) validateGenetic() error {
	switch s.Selection {
	case SelectTournament, SelectSteadyState:
	default:
		return fmt.Errorf("optimizer: unknown selection %q", s.Selection)
	}
	switch s.Crossover {
	case CrossoverBlend, CrossoverSinglePoint, CrossoverUniform:
	default:
		return fmt.Errorf("optimizer: unknown crossover %q", s.Crossover)
	}
	switch s.Mutation {
	case MutateGaussian, MutateRandom:
	default:
		return fmt.Errorf("optimizer: unknown mutation %q", s.Mutation)
	}
	if s.CrossoverProbability > 1 || s.MutationProbability > 1 {
		return fmt.Errorf("optimizer: probabilities must be at most 1, got crossover %v mutation %v",
			s.CrossoverProbability, s.MutationProbability)
	}
	if s.KeepElitism >= s.PopulationSize {
		return fmt.Errorf("optimizer: elitism %d must be smaller than population %d", s.KeepElitism, s.PopulationSize)
	}
	return nil
}

// New returns the optimizer registered under method.
func New(method string, settings Settings, log zerolog.Logger) (Optimizer, error) {
	switch method {
	case "", MethodGA:
		return NewGeneticAlgorithm(settings, log), nil
	case MethodCMAES:
		return NewCMAES(settings, log), nil
	default:
		return nil, fmt.Errorf("optimizer: unknown method %q", method)
	}
}
