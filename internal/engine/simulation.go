// Package engine runs the relocation loop that drives a city to equilibrium.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/talgya/schelling/internal/agents"
	"github.com/talgya/schelling/internal/world"
)

// Options tune the relocation loop's safeguards and reporting.
type Options struct {
	// MaxMoves stops the loop after this many moves (0 = unlimited).
	MaxMoves int `yaml:"max_moves"`

	// MaxIdleEvaluations stops the loop after this many consecutive
	// evaluations that found no acceptable destination (0 = no cap; exact
	// stall detection still applies).
	MaxIdleEvaluations int `yaml:"max_idle_evaluations"`

	// ReportEvery logs progress at the first move and every N moves after
	// (0 = never).
	ReportEvery int `yaml:"report_every"`
}

// DefaultOptions returns the standard loop settings.
func DefaultOptions() Options {
	return Options{
		MaxMoves:           0,
		MaxIdleEvaluations: 10000,
		ReportEvery:        50,
	}
}

// Simulation holds a city and the RNG handle that drives its relocations.
type Simulation struct {
	City *world.City

	rng    *rand.Rand
	opts   Options
	logger *slog.Logger

	moves []MoveRecord
}

// SimStats summarizes the city at a point in time.
type SimStats struct {
	Size             int      `json:"size"`
	Population       int      `json:"population"`
	IdentityA        int      `json:"identity_a"`
	IdentityB        int      `json:"identity_b"`
	Unhappy          int      `json:"unhappy"`
	MeanHomogeneity  *float64 `json:"mean_homogeneity,omitempty"`  // nil when nobody lives in the city
	AverageTolerance *float64 `json:"average_tolerance,omitempty"` // nil when nobody lives in the city
}

// NewSimulation wires a city to the RNG that generated it. rng must not be
// shared with any other goroutine.
func NewSimulation(city *world.City, rng *rand.Rand, opts Options) *Simulation {
	return &Simulation{
		City:   city,
		rng:    rng,
		opts:   opts,
		logger: slog.Default(),
	}
}

// SetLogger replaces the logger used for progress and stall reports.
func (s *Simulation) SetLogger(l *slog.Logger) {
	if l != nil {
		s.logger = l
	}
}

// MoveLog returns a copy of the moves recorded by the last ExecuteMoves.
func (s *Simulation) MoveLog() []MoveRecord {
	out := make([]MoveRecord, len(s.moves))
	copy(out, s.moves)
	return out
}

// Survey returns a freshly computed survey of the city.
func (s *Simulation) Survey() world.Survey {
	return s.City.SurveyAll()
}

// Stats computes the current summary statistics. The population means are
// nil for a city with no residents; any other failure is returned.
func (s *Simulation) Stats() (SimStats, error) {
	survey := s.City.SurveyAll()
	census := s.City.Census()
	stats := SimStats{
		Size:       survey.Size(),
		Population: survey.OccupiedCount(),
		IdentityA:  census[agents.IdentityA],
		IdentityB:  census[agents.IdentityB],
		Unhappy:    survey.UnhappyCount(),
	}

	mean, err := survey.MeanHomogeneity()
	switch {
	case err == nil:
		stats.MeanHomogeneity = &mean
	case !errors.Is(err, world.ErrEmptyPopulation):
		return stats, fmt.Errorf("mean homogeneity: %w", err)
	}

	avg, err := s.City.AverageTolerance()
	switch {
	case err == nil:
		stats.AverageTolerance = &avg
	case !errors.Is(err, world.ErrEmptyPopulation):
		return stats, fmt.Errorf("average tolerance: %w", err)
	}
	return stats, nil
}

// String renders the stats for log lines and CLI output.
func (st SimStats) String() string {
	return fmt.Sprintf("population=%d (A=%d B=%d) unhappy=%d mean_homogeneity=%s avg_tolerance=%s",
		st.Population, st.IdentityA, st.IdentityB, st.Unhappy,
		FormatStat(st.MeanHomogeneity), FormatStat(st.AverageTolerance))
}

// FormatStat renders an optional statistic with three decimals, or "n/a".
func FormatStat(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.3f", *v)
}
