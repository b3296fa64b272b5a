package engine

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/schelling/internal/agents"
	"github.com/talgya/schelling/internal/logging"
	"github.com/talgya/schelling/internal/world"
)

func resident(id agents.Identity, tolerance float64) *agents.Agent {
	return agents.New(uuid.New(), id, tolerance)
}

func quietOptions() Options {
	opts := DefaultOptions()
	opts.ReportEvery = 0
	return opts
}

func generated(t *testing.T, cfg world.GenConfig, seed int64) *Simulation {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	city, err := world.Generate(cfg, rng)
	require.NoError(t, err)
	return NewSimulation(city, rng, quietOptions())
}

func TestExecuteMoves_ZeroToleranceSettlesImmediately(t *testing.T) {
	sim := generated(t, world.GenConfig{Size: 10, NeighborRadius: 2, OccupancyProbability: 1, MaxTolerance: 0}, 1)

	res := sim.ExecuteMoves()
	assert.Equal(t, OutcomeSettled, res.Outcome)
	assert.NoError(t, res.Err())
	assert.Zero(t, res.Moves)
	assert.Zero(t, res.Evaluations)
	assert.Empty(t, sim.MoveLog())
	assert.True(t, sim.Survey().Settled())
}

func TestExecuteMoves_FullToleranceNoVacancyStalls(t *testing.T) {
	residents := make([]*agents.Agent, 10)
	for i := range residents {
		residents[i] = resident(agents.Identity(i%2), 1)
	}
	city, err := world.FromResidents(2, residents)
	require.NoError(t, err)

	opts := quietOptions()
	opts.MaxIdleEvaluations = 0 // rely on exact stall detection alone
	sim := NewSimulation(city, rand.New(rand.NewSource(4)), opts)

	res := sim.ExecuteMoves()
	assert.Equal(t, OutcomeStalled, res.Outcome)
	assert.ErrorIs(t, res.Err(), ErrStalled)
	assert.Zero(t, res.Moves)
	assert.Equal(t, 10, res.Unhappy)
	assert.GreaterOrEqual(t, res.Skips, 10, "every unhappy resident is evaluated before a stall is declared")
	assert.Equal(t, res.Evaluations, res.Skips)
	assert.False(t, res.Capped, "every unhappy resident was evaluated")
	assert.Equal(t, "ABABABABAB", city.Layout())
}

func TestExecuteMoves_IdleCapStalls(t *testing.T) {
	residents := make([]*agents.Agent, 10)
	for i := range residents {
		residents[i] = resident(agents.Identity(i%2), 1)
	}
	city, err := world.FromResidents(2, residents)
	require.NoError(t, err)

	opts := quietOptions()
	opts.MaxIdleEvaluations = 1
	sim := NewSimulation(city, rand.New(rand.NewSource(4)), opts)

	res := sim.ExecuteMoves()
	assert.Equal(t, OutcomeStalled, res.Outcome)
	assert.Equal(t, 1, res.Skips)
	assert.True(t, res.Capped, "only one of ten unhappy residents was evaluated")
	assert.ErrorIs(t, res.Err(), ErrStalled)
	assert.Contains(t, res.Err().Error(), "idle evaluation cap")
}

func TestExecuteMoves_TraceLogsCandidateScores(t *testing.T) {
	city, mover := singleMoveCity(t)
	sim := NewSimulation(city, rand.New(rand.NewSource(7)), quietOptions())

	var buf bytes.Buffer
	sim.SetLogger(logging.NewLogger("trace", &buf))
	require.Equal(t, OutcomeSettled, sim.ExecuteMoves().Outcome)

	out := buf.String()
	assert.Contains(t, out, "level=TRACE")
	assert.Contains(t, out, "candidate scored")
	assert.Contains(t, out, "agent="+mover.ID().String())
	assert.Contains(t, out, "tract=7")
	assert.Contains(t, out, "acceptable=true")

	buf.Reset()
	city, _ = singleMoveCity(t)
	sim = NewSimulation(city, rand.New(rand.NewSource(7)), quietOptions())
	sim.SetLogger(logging.NewLogger("debug", &buf))
	sim.ExecuteMoves()
	assert.NotContains(t, buf.String(), "candidate scored")
}

// singleMoveCity has one unhappy B at tract 2 surrounded by A residents and a
// single vacancy at tract 7 surrounded by B residents. Everyone else has
// zero tolerance.
func singleMoveCity(t *testing.T) (*world.City, *agents.Agent) {
	t.Helper()
	mover := resident(agents.IdentityB, 0.5)
	residents := []*agents.Agent{
		resident(agents.IdentityA, 0),
		resident(agents.IdentityA, 0),
		mover,
		resident(agents.IdentityA, 0),
		resident(agents.IdentityA, 0),
		resident(agents.IdentityB, 0),
		resident(agents.IdentityB, 0),
		nil,
		resident(agents.IdentityB, 0),
		resident(agents.IdentityB, 0),
	}
	city, err := world.FromResidents(2, residents)
	require.NoError(t, err)
	return city, mover
}

func TestExecuteMoves_SingleMove(t *testing.T) {
	city, mover := singleMoveCity(t)
	sim := NewSimulation(city, rand.New(rand.NewSource(7)), quietOptions())

	before := sim.Survey()
	require.Equal(t, 1, before.UnhappyCount())
	require.False(t, before.Happiness[2])

	res := sim.ExecuteMoves()
	require.Equal(t, OutcomeSettled, res.Outcome)
	assert.Equal(t, 1, res.Moves)

	log := sim.MoveLog()
	require.Len(t, log, 1)
	assert.Equal(t, MoveRecord{
		MoveIndex:            1,
		AgentID:              mover.ID(),
		Origin:               2,
		Destination:          7,
		UnhappyAfter:         0,
		MeanHomogeneityAfter: log[0].MeanHomogeneityAfter,
	}, log[0])
	assert.InDelta(t, 5.5/9.0, log[0].MeanHomogeneityAfter, 1e-12)

	assert.False(t, city.Tract(2).IsOccupied())
	assert.Same(t, mover, city.Tract(7).Occupant())
	assert.True(t, sim.Survey().Settled())
}

func TestExecuteMoves_ResetsMoveLog(t *testing.T) {
	city, _ := singleMoveCity(t)
	sim := NewSimulation(city, rand.New(rand.NewSource(7)), quietOptions())

	require.Equal(t, 1, sim.ExecuteMoves().Moves)
	require.Len(t, sim.MoveLog(), 1)

	res := sim.ExecuteMoves()
	assert.Equal(t, OutcomeSettled, res.Outcome)
	assert.Empty(t, sim.MoveLog())
}

func TestExecuteMoves_MoveLogIsACopy(t *testing.T) {
	city, _ := singleMoveCity(t)
	sim := NewSimulation(city, rand.New(rand.NewSource(7)), quietOptions())
	sim.ExecuteMoves()

	log := sim.MoveLog()
	log[0].Origin = 99
	assert.Equal(t, 2, sim.MoveLog()[0].Origin)
}

func TestExecuteMoves_Invariants(t *testing.T) {
	cfg := world.GenConfig{Size: 300, NeighborRadius: 3, OccupancyProbability: 0.9, MaxTolerance: 0.7}
	for _, seed := range []int64{1, 2, 3} {
		sim := generated(t, cfg, seed)

		initial := sim.Survey()
		occupied := append([]bool(nil), initial.Availability...)
		ids := make([]agents.AgentID, cfg.Size)
		for i, tr := range sim.City.Tracts() {
			if a := tr.Occupant(); a != nil {
				ids[i] = a.ID()
			}
		}

		res := sim.ExecuteMoves()
		log := sim.MoveLog()
		require.Len(t, log, res.Moves)

		for k, m := range log {
			assert.Equal(t, k+1, m.MoveIndex, "move indices are 1-based without gaps")
			require.True(t, occupied[m.Origin], "move %d origin %d must be occupied", m.MoveIndex, m.Origin)
			require.False(t, occupied[m.Destination], "move %d destination %d must be empty", m.MoveIndex, m.Destination)
			assert.Equal(t, ids[m.Origin], m.AgentID)
			assert.GreaterOrEqual(t, m.UnhappyAfter, 0)
			assert.GreaterOrEqual(t, m.MeanHomogeneityAfter, 0.0)
			assert.LessOrEqual(t, m.MeanHomogeneityAfter, 1.0)

			occupied[m.Origin], occupied[m.Destination] = false, true
			ids[m.Destination], ids[m.Origin] = ids[m.Origin], agents.AgentID{}
		}

		final := sim.Survey()
		assert.Equal(t, occupied, final.Availability, "replayed log matches final layout")
		assert.Equal(t, initial.OccupiedCount(), final.OccupiedCount(), "population is conserved")
		assert.Equal(t, res.Unhappy, final.UnhappyCount())

		switch res.Outcome {
		case OutcomeSettled:
			assert.Equal(t, final.Size(), final.HappyCount())
		case OutcomeStalled:
			assert.Positive(t, final.UnhappyCount())
		default:
			t.Fatalf("unexpected outcome %s", res.Outcome)
		}
	}
}

func TestExecuteMoves_MoveLimit(t *testing.T) {
	cfg := world.GenConfig{Size: 200, NeighborRadius: 3, OccupancyProbability: 0.9, MaxTolerance: 0.7}

	unlimited := generated(t, cfg, 12).ExecuteMoves()
	require.GreaterOrEqual(t, unlimited.Moves, 2)

	sim := generated(t, cfg, 12)
	sim.opts.MaxMoves = 1
	res := sim.ExecuteMoves()
	assert.Equal(t, OutcomeMoveLimit, res.Outcome)
	assert.ErrorIs(t, res.Err(), ErrMoveLimit)
	assert.Equal(t, 1, res.Moves)
	assert.Len(t, sim.MoveLog(), 1)
}

func TestExecuteMoves_DeterministicForSeed(t *testing.T) {
	cfg := world.GenConfig{Size: 150, NeighborRadius: 2, OccupancyProbability: 0.85, MaxTolerance: 0.6}

	a := generated(t, cfg, 77)
	b := generated(t, cfg, 77)
	ra, rb := a.ExecuteMoves(), b.ExecuteMoves()

	assert.Equal(t, ra, rb)
	assert.Equal(t, a.MoveLog(), b.MoveLog())
	assert.Equal(t, a.City.Layout(), b.City.Layout())
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "settled", OutcomeSettled.String())
	assert.Equal(t, "stalled", OutcomeStalled.String())
	assert.Equal(t, "move_limit", OutcomeMoveLimit.String())
	assert.Equal(t, "failed", OutcomeFailed.String())

	text, err := OutcomeStalled.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "stalled", string(text))
}
