// Relocation loop: unhappy residents move to empty tracts they find
// acceptable until every resident is happy.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/talgya/schelling/internal/agents"
	"github.com/talgya/schelling/internal/logging"
)

var (
	// ErrStalled means unhappy residents remain and the loop gave up: either
	// every one of them was evaluated without finding an acceptable tract,
	// or Options.MaxIdleEvaluations consecutive evaluations found none.
	ErrStalled = errors.New("relocation stalled")

	// ErrMoveLimit means the loop hit Options.MaxMoves before settling.
	ErrMoveLimit = errors.New("move limit reached")
)

// MoveRecord is one entry of the move log.
type MoveRecord struct {
	MoveIndex            int            `json:"move_index"` // 1-based, no gaps
	AgentID              agents.AgentID `json:"agent_id"`
	Origin               int            `json:"origin"`
	Destination          int            `json:"destination"`
	UnhappyAfter         int            `json:"unhappy_after"`
	MeanHomogeneityAfter float64        `json:"mean_homogeneity_after"`
}

// Outcome is how a call to ExecuteMoves ended.
type Outcome uint8

const (
	OutcomeSettled   Outcome = iota // Every resident is happy
	OutcomeStalled                  // No move found; see Result.Capped
	OutcomeMoveLimit                // Options.MaxMoves reached
	OutcomeFailed                   // The city rejected a move
)

// String returns a human-readable name for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeSettled:
		return "settled"
	case OutcomeStalled:
		return "stalled"
	case OutcomeMoveLimit:
		return "move_limit"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the outcome by name.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Result summarizes one ExecuteMoves call.
type Result struct {
	Outcome     Outcome
	Moves       int // Moves recorded
	Evaluations int // Unhappy residents considered
	Skips       int // Evaluations that found no acceptable tract
	Unhappy     int // Unhappy residents left at return

	// Capped is set when a stall was declared by the idle evaluation cap
	// rather than by evaluating every unhappy resident. Some of them may
	// then still have had an acceptable tract.
	Capped bool

	err error
}

// Err returns nil when the city settled, and otherwise an error matching
// ErrStalled, ErrMoveLimit, or the failure that stopped the loop.
func (r Result) Err() error {
	switch r.Outcome {
	case OutcomeSettled:
		return nil
	case OutcomeStalled:
		if r.Capped {
			return fmt.Errorf("%w: %d unhappy residents after %d moves (idle evaluation cap)", ErrStalled, r.Unhappy, r.Moves)
		}
		return fmt.Errorf("%w: %d unhappy residents after %d moves", ErrStalled, r.Unhappy, r.Moves)
	case OutcomeMoveLimit:
		return fmt.Errorf("%w: %d unhappy residents after %d moves", ErrMoveLimit, r.Unhappy, r.Moves)
	default:
		return r.err
	}
}

// ExecuteMoves relocates unhappy residents until the city settles, stalls,
// or reaches the move limit. The move log is reset on every call.
//
// Each iteration picks one unhappy resident uniformly at random, scores
// every empty tract from that resident's point of view, and moves it to a
// uniformly chosen tract meeting its tolerance. A resident with no such
// tract is skipped. Skips leave the city unchanged, so once every unhappy
// resident has been skipped since the last move the loop can make no more
// progress and reports a stall.
func (s *Simulation) ExecuteMoves() Result {
	s.moves = nil

	var res Result
	stuck := make(map[int]bool)
	idle := 0

	survey := s.City.SurveyAll()
	for {
		if survey.Settled() {
			res.Outcome = OutcomeSettled
			break
		}
		if s.opts.MaxMoves > 0 && len(s.moves) >= s.opts.MaxMoves {
			res.Outcome = OutcomeMoveLimit
			s.logger.Warn("move limit reached",
				"moves", len(s.moves),
				"unhappy", survey.UnhappyCount(),
			)
			break
		}

		unhappy := survey.UnhappyIndices()
		origin := unhappy[s.rng.Intn(len(unhappy))]
		mover := s.City.Tract(origin).Occupant()
		res.Evaluations++

		candidates := s.acceptableDestinations(mover, survey.EmptyIndices())
		if len(candidates) == 0 {
			res.Skips++
			idle++
			stuck[origin] = true
			s.logger.Debug("no acceptable tract", "origin", origin, "agent", mover.ID())

			exhausted := len(stuck) == len(unhappy)
			capped := s.opts.MaxIdleEvaluations > 0 && idle >= s.opts.MaxIdleEvaluations
			if exhausted || capped {
				res.Outcome = OutcomeStalled
				res.Capped = !exhausted
				s.logger.Warn("relocation stalled",
					"moves", len(s.moves),
					"unhappy", len(unhappy),
					"empty", len(survey.EmptyIndices()),
					"idle_evaluations", idle,
					"capped", res.Capped,
				)
				break
			}
			continue
		}

		destination := candidates[s.rng.Intn(len(candidates))]
		if _, err := s.City.Relocate(origin, destination); err != nil {
			res.Outcome = OutcomeFailed
			res.err = fmt.Errorf("move %d: %w", len(s.moves)+1, err)
			s.logger.Error("relocation failed", "error", err)
			break
		}
		idle = 0
		clear(stuck)

		survey = s.City.SurveyAll()
		mean, err := survey.MeanHomogeneity()
		if err != nil {
			res.Outcome = OutcomeFailed
			res.err = fmt.Errorf("move %d: %w", len(s.moves)+1, err)
			s.logger.Error("relocation failed", "error", err)
			break
		}
		record := MoveRecord{
			MoveIndex:            len(s.moves) + 1,
			AgentID:              mover.ID(),
			Origin:               origin,
			Destination:          destination,
			UnhappyAfter:         survey.UnhappyCount(),
			MeanHomogeneityAfter: mean,
		}
		s.moves = append(s.moves, record)
		s.logger.Debug("agent moved",
			"move", record.MoveIndex,
			"agent", record.AgentID,
			"origin", origin,
			"destination", destination,
		)
		s.reportProgress(record, survey.Size())
	}

	res.Moves = len(s.moves)
	res.Unhappy = survey.UnhappyCount()
	return res
}

// acceptableDestinations filters empty tracts to those whose homogeneity,
// measured for mover's identity, meets mover's tolerance.
func (s *Simulation) acceptableDestinations(mover *agents.Agent, empty []int) []int {
	ctx := context.Background()
	trace := s.logger.Enabled(ctx, logging.LevelTrace)

	var out []int
	for _, i := range empty {
		h := s.City.Homogeneity(i, mover.Identity())
		ok := mover.Satisfied(h)
		if trace {
			s.logger.Log(ctx, logging.LevelTrace, "candidate scored",
				"agent", mover.ID(),
				"tract", i,
				"homogeneity", h,
				"tolerance", mover.Tolerance(),
				"acceptable", ok,
			)
		}
		if ok {
			out = append(out, i)
		}
	}
	return out
}

func (s *Simulation) reportProgress(r MoveRecord, size int) {
	every := s.opts.ReportEvery
	if every <= 0 {
		return
	}
	if r.MoveIndex != 1 && r.MoveIndex%every != 0 {
		return
	}
	s.logger.Info("relocation progress",
		"move", r.MoveIndex,
		"avg_homogeneity", fmt.Sprintf("%.3f", r.MeanHomogeneityAfter),
		"unhappy_share", fmt.Sprintf("%.3f", float64(r.UnhappyAfter)/float64(size)),
	)
}
