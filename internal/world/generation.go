// City generation: builds the ring of tracts, seeding each one with a
// freshly spawned resident with the configured probability.
package world

import (
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/schelling/internal/agents"
)

// GenConfig holds city generation parameters.
type GenConfig struct {
	Size                 int     `yaml:"size" json:"size"`                                   // Number of tracts on the ring
	NeighborRadius       int     `yaml:"neighbor_radius" json:"neighbor_radius"`             // Tracts on each side that count as neighbors
	OccupancyProbability float64 `yaml:"occupancy_probability" json:"occupancy_probability"` // Chance a tract starts with a resident
	MaxTolerance         float64 `yaml:"max_tolerance" json:"max_tolerance"`                 // Upper bound (exclusive) of resident tolerance

	// Clustering in [0,1] blends identity draws toward a smooth noise field
	// around the ring. 0 draws identities uniformly.
	Clustering float64 `yaml:"clustering" json:"clustering"`
}

// DefaultGenConfig returns the standard parameters for a city of 1000 tracts.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Size:                 1000,
		NeighborRadius:       3,
		OccupancyProbability: 0.9,
		MaxTolerance:         0.7,
		Clustering:           0,
	}
}

// SmallTestConfig returns a tiny city for rapid iteration.
func SmallTestConfig() GenConfig {
	return GenConfig{
		Size:                 60,
		NeighborRadius:       2,
		OccupancyProbability: 0.9,
		MaxTolerance:         0.7,
	}
}

// Validate rejects parameters that would produce a degenerate city.
func (cfg GenConfig) Validate() error {
	if cfg.Size <= 0 {
		return &ConfigError{Field: "size", Reason: "must be positive"}
	}
	if err := validateRadius(cfg.NeighborRadius, cfg.Size); err != nil {
		return err
	}
	if !inUnitInterval(cfg.OccupancyProbability) {
		return &ConfigError{Field: "occupancy_probability", Reason: "must be within [0, 1]"}
	}
	if math.IsNaN(cfg.MaxTolerance) || math.IsInf(cfg.MaxTolerance, 0) || cfg.MaxTolerance < 0 {
		return &ConfigError{Field: "max_tolerance", Reason: "must be a finite value >= 0"}
	}
	if !inUnitInterval(cfg.Clustering) {
		return &ConfigError{Field: "clustering", Reason: "must be within [0, 1]"}
	}
	return nil
}

func validateRadius(radius, size int) error {
	if radius < 1 {
		return &ConfigError{Field: "neighbor_radius", Reason: "must be at least 1"}
	}
	// Neighborhoods would wrap onto the tract itself.
	if 2*radius >= size {
		return &ConfigError{Field: "neighbor_radius", Reason: "must satisfy 2*radius < size"}
	}
	return nil
}

func inUnitInterval(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

// Generate creates a city of cfg.Size tracts. All randomness is drawn from
// rng in tract order: occupancy, then the resident's identity, tolerance and
// id. Nothing is built if cfg is invalid.
func Generate(cfg GenConfig, rng *rand.Rand) (*City, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	spawner := agents.NewSpawner(rng)

	var field *identityField
	if cfg.Clustering > 0 {
		field = newIdentityField(rng.Int63(), cfg.Size, cfg.Clustering)
	}

	c := &City{
		tracts: make([]*Tract, cfg.Size),
		radius: cfg.NeighborRadius,
	}
	for i := range c.tracts {
		c.tracts[i] = generateTract(i, cfg, rng, spawner, field)
	}
	return c, nil
}

// generateTract creates tract i, populated with probability
// cfg.OccupancyProbability.
func generateTract(i int, cfg GenConfig, rng *rand.Rand, spawner *agents.Spawner, field *identityField) *Tract {
	if rng.Float64() >= cfg.OccupancyProbability {
		return newTract(i, nil)
	}
	if field != nil {
		return newTract(i, spawner.SpawnBiased(cfg.MaxTolerance, field.probabilityA(i)))
	}
	return newTract(i, spawner.Spawn(cfg.MaxTolerance))
}

// FromResidents builds a city from an explicit layout; a nil entry leaves the
// tract empty.
func FromResidents(radius int, residents []*agents.Agent) (*City, error) {
	if len(residents) == 0 {
		return nil, &ConfigError{Field: "size", Reason: "must be positive"}
	}
	if err := validateRadius(radius, len(residents)); err != nil {
		return nil, err
	}

	seen := make(map[agents.AgentID]bool, len(residents))
	c := &City{
		tracts: make([]*Tract, len(residents)),
		radius: radius,
	}
	for i, a := range residents {
		if a != nil {
			if seen[a.ID()] {
				return nil, &ConfigError{Field: "residents", Reason: "contain the same agent twice"}
			}
			seen[a.ID()] = true
		}
		c.tracts[i] = newTract(i, a)
	}
	return c, nil
}

// identityField is a smooth noise field over the ring used to bias initial
// identity draws toward contiguous blocks.
type identityField struct {
	noise    opensimplex.Noise
	size     int
	strength float64
}

func newIdentityField(seed int64, size int, strength float64) *identityField {
	return &identityField{
		noise:    opensimplex.NewNormalized(seed),
		size:     size,
		strength: strength,
	}
}

// probabilityA returns the chance that the resident of tract i is identity A.
func (f *identityField) probabilityA(i int) float64 {
	// Sample on a circle so tract 0 and tract size-1 see continuous noise.
	theta := 2 * math.Pi * float64(i) / float64(f.size)
	r := float64(f.size) / (2 * math.Pi)
	x, y := r*math.Cos(theta), r*math.Sin(theta)

	n := octaveNoise(f.noise, x, y, 3, 0.08, 0.5)
	return 0.5*(1-f.strength) + f.strength*n
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
