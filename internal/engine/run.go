// Runs: generate a city from a seed and drive it to equilibrium, singly or
// as a sweep over tolerance bounds.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/schelling/internal/entropy"
	"github.com/talgya/schelling/internal/world"
)

// Run is a completed simulation together with how it ended.
type Run struct {
	Seed    int64
	Config  world.GenConfig
	Sim     *Simulation
	Result  Result
	Initial SimStats // Stats before any move
	Final   SimStats // Stats at return
}

// Execute generates a city from cfg and seed and runs the relocation loop on
// it. A zero seed is replaced by a random one, reported in Run.Seed.
func Execute(cfg world.GenConfig, seed int64, opts Options, logger *slog.Logger) (*Run, error) {
	seed = entropy.Resolve(seed)
	rng := entropy.NewRand(seed)

	city, err := world.Generate(cfg, rng)
	if err != nil {
		return nil, fmt.Errorf("generate city: %w", err)
	}

	sim := NewSimulation(city, rng, opts)
	sim.SetLogger(logger)

	initial, err := sim.Stats()
	if err != nil {
		return nil, fmt.Errorf("initial stats: %w", err)
	}
	run := &Run{
		Seed:    seed,
		Config:  cfg,
		Sim:     sim,
		Initial: initial,
	}
	sim.logger.Info("city generated",
		"seed", seed,
		"size", cfg.Size,
		"radius", cfg.NeighborRadius,
		"population", run.Initial.Population,
		"unhappy", run.Initial.Unhappy,
	)

	run.Result = sim.ExecuteMoves()
	if run.Final, err = sim.Stats(); err != nil {
		return nil, fmt.Errorf("final stats: %w", err)
	}

	sim.logger.Info("relocation finished",
		"outcome", run.Result.Outcome,
		"capped", run.Result.Capped,
		"moves", run.Result.Moves,
		"evaluations", run.Result.Evaluations,
		"mean_homogeneity", FormatStat(run.Final.MeanHomogeneity),
	)
	return run, nil
}

// SweepPoint is the outcome of one run in a tolerance sweep.
type SweepPoint struct {
	MaxTolerance float64  `json:"max_tolerance"`
	Outcome      Outcome  `json:"outcome"`
	Moves        int      `json:"moves"`
	Initial      SimStats `json:"initial"`
	Final        SimStats `json:"final"`
}

// Sweep runs one simulation per max tolerance in tolerances, each from the
// same seed so the only difference between runs is the tolerance bound.
func Sweep(base world.GenConfig, seed int64, tolerances []float64, opts Options, logger *slog.Logger) ([]SweepPoint, error) {
	seed = entropy.Resolve(seed)

	points := make([]SweepPoint, 0, len(tolerances))
	for _, tol := range tolerances {
		cfg := base
		cfg.MaxTolerance = tol

		run, err := Execute(cfg, seed, opts, logger)
		if err != nil {
			return nil, fmt.Errorf("max tolerance %.3f: %w", tol, err)
		}
		points = append(points, SweepPoint{
			MaxTolerance: tol,
			Outcome:      run.Result.Outcome,
			Moves:        run.Result.Moves,
			Initial:      run.Initial,
			Final:        run.Final,
		})
	}
	return points, nil
}

// ToleranceRange returns from, from+step, ... up to and including to, within
// a small epsilon to absorb float drift.
func ToleranceRange(from, to, step float64) ([]float64, error) {
	if step <= 0 {
		return nil, fmt.Errorf("step must be positive, got %v", step)
	}
	if to < from {
		return nil, fmt.Errorf("range end %v is below start %v", to, from)
	}
	var out []float64
	for i := 0; ; i++ {
		v := from + float64(i)*step
		if v > to+1e-9 {
			break
		}
		out = append(out, v)
	}
	return out, nil
}
