// Agent spawning: draws identity, tolerance and id from the run's RNG.
package agents

import (
	"math/rand"

	"github.com/google/uuid"
)

// Spawner creates agents for the simulation. Every draw comes from the one
// RNG handle it was given, so a seeded run reproduces the same population
// including agent ids.
type Spawner struct {
	rng     *rand.Rand
	spawned int
}

// NewSpawner creates an agent spawner drawing from rng.
func NewSpawner(rng *rand.Rand) *Spawner {
	return &Spawner{rng: rng}
}

// Spawned returns how many agents this spawner has issued.
func (s *Spawner) Spawned() int {
	return s.spawned
}

// Spawn creates an agent with a uniformly drawn identity and a tolerance
// drawn uniformly from [0, maxTolerance).
func (s *Spawner) Spawn(maxTolerance float64) *Agent {
	identity := Identity(s.rng.Intn(NumIdentities))
	return s.finish(identity, maxTolerance)
}

// SpawnBiased is Spawn with identity A drawn with probability pA instead of
// one half.
func (s *Spawner) SpawnBiased(maxTolerance, pA float64) *Agent {
	identity := IdentityB
	if s.rng.Float64() < pA {
		identity = IdentityA
	}
	return s.finish(identity, maxTolerance)
}

func (s *Spawner) finish(identity Identity, maxTolerance float64) *Agent {
	tolerance := s.rng.Float64() * maxTolerance

	// math/rand.Rand is an io.Reader, and the draw keeps ids tied to the seed.
	id, err := uuid.NewRandomFromReader(s.rng)
	if err != nil {
		// rand.Rand.Read never fails; keep a valid unique id regardless.
		id = uuid.New()
	}

	s.spawned++
	return New(id, identity, tolerance)
}
