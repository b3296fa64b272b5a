// Package world provides the circular city, its tracts, and the neighborhood
// geometry and happiness survey built on top of them.
package world

import (
	"github.com/talgya/schelling/internal/agents"
)

// Tract is a single slot in the city that holds zero or one resident.
type Tract struct {
	index    int
	occupant *agents.Agent
	occupied bool
}

// newTract creates a tract at index holding occupant (nil for empty).
func newTract(index int, occupant *agents.Agent) *Tract {
	return &Tract{
		index:    index,
		occupant: occupant,
		occupied: occupant != nil,
	}
}

// Index returns the tract's fixed position in the city.
func (t *Tract) Index() int {
	return t.index
}

// IsOccupied reports whether an agent lives on the tract.
func (t *Tract) IsOccupied() bool {
	return t.occupied
}

// Occupant returns the resident, or nil if the tract is empty.
func (t *Tract) Occupant() *agents.Agent {
	return t.occupant
}

// place moves a into the tract. The caller guarantees the tract is empty.
func (t *Tract) place(a *agents.Agent) {
	t.occupant = a
	t.occupied = a != nil
}

// vacate removes and returns the resident.
func (t *Tract) vacate() *agents.Agent {
	a := t.occupant
	t.occupant = nil
	t.occupied = false
	return a
}
