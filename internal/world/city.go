package world

import (
	"fmt"

	"github.com/talgya/schelling/internal/agents"
)

// City holds the complete ring of tracts. Tract i's left neighbor of tract 0
// is tract Size()-1.
type City struct {
	tracts []*Tract
	radius int // Neighborhood radius on each side
}

// Size returns the number of tracts.
func (c *City) Size() int {
	return len(c.tracts)
}

// NeighborRadius returns how many tracts on each side form a neighborhood.
func (c *City) NeighborRadius() int {
	return c.radius
}

// Tract returns the tract at index i, or nil if out of range.
func (c *City) Tract(i int) *Tract {
	if i < 0 || i >= len(c.tracts) {
		return nil
	}
	return c.tracts[i]
}

// Tracts returns the tracts in ring order. The slice is shared; callers must
// not reorder it.
func (c *City) Tracts() []*Tract {
	return c.tracts
}

// NeighborsOf returns the radius tracts counter-clockwise of i followed by
// the radius tracts clockwise of i, wrapping around the ring.
func (c *City) NeighborsOf(i int) []int {
	n := len(c.tracts)
	out := make([]int, 0, 2*c.radius)
	for j := c.radius; j >= 1; j-- {
		out = append(out, mod(i-j, n))
	}
	for j := 1; j <= c.radius; j++ {
		out = append(out, mod(i+j, n))
	}
	return out
}

// Homogeneity returns the share of occupied neighbors of tract i whose
// identity matches id. A neighborhood with no residents scores exactly 0.
func (c *City) Homogeneity(i int, id agents.Identity) float64 {
	neighbors, similar := 0, 0
	for _, j := range c.NeighborsOf(i) {
		other := c.tracts[j].occupant
		if other == nil {
			continue
		}
		neighbors++
		if other.Identity() == id {
			similar++
		}
	}
	if neighbors == 0 {
		return 0
	}
	return float64(similar) / float64(neighbors)
}

// HomogeneityOfResident scores tract i from its current resident's point of
// view. ok is false when the tract is empty.
func (c *City) HomogeneityOfResident(i int) (h float64, ok bool) {
	resident := c.tracts[i].occupant
	if resident == nil {
		return 0, false
	}
	return c.Homogeneity(i, resident.Identity()), true
}

// Relocate moves the resident of origin into the empty tract destination.
func (c *City) Relocate(origin, destination int) (*agents.Agent, error) {
	from, to := c.Tract(origin), c.Tract(destination)
	if from == nil || to == nil {
		return nil, fmt.Errorf("relocate %d -> %d: index out of range", origin, destination)
	}
	if !from.IsOccupied() {
		return nil, fmt.Errorf("relocate %d -> %d: origin is empty", origin, destination)
	}
	if to.IsOccupied() {
		return nil, fmt.Errorf("relocate %d -> %d: destination is occupied", origin, destination)
	}
	a := from.vacate()
	to.place(a)
	return a, nil
}

// OccupiedCount returns the number of residents.
func (c *City) OccupiedCount() int {
	count := 0
	for _, t := range c.tracts {
		if t.occupied {
			count++
		}
	}
	return count
}

// AverageTolerance returns the mean tolerance of all current residents.
func (c *City) AverageTolerance() (float64, error) {
	total := 0.0
	population := 0
	for _, t := range c.tracts {
		if t.occupant == nil {
			continue
		}
		total += t.occupant.Tolerance()
		population++
	}
	if population == 0 {
		return 0, ErrEmptyPopulation
	}
	return total / float64(population), nil
}

// Census counts residents per identity.
func (c *City) Census() [agents.NumIdentities]int {
	var counts [agents.NumIdentities]int
	for _, t := range c.tracts {
		if t.occupant != nil {
			counts[t.occupant.Identity()]++
		}
	}
	return counts
}

// Layout renders the ring as one character per tract: the resident's
// identity letter, or '.' when empty.
func (c *City) Layout() string {
	buf := make([]byte, len(c.tracts))
	for i, t := range c.tracts {
		if t.occupant == nil {
			buf[i] = '.'
			continue
		}
		buf[i] = t.occupant.Identity().String()[0]
	}
	return string(buf)
}

// String returns a summary of the city.
func (c *City) String() string {
	return fmt.Sprintf("City(size=%d, radius=%d, residents=%d)", c.Size(), c.radius, c.OccupiedCount())
}

func mod(a, n int) int {
	r := a % n
	if r < 0 {
		r += n
	}
	return r
}
