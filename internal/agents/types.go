// Package agents provides the resident data model: identity group, tolerance,
// and a stable id that follows the agent from tract to tract.
package agents

import (
	"fmt"

	"github.com/google/uuid"
)

// AgentID is a unique identifier for an agent. It is assigned once at spawn
// time and never depends on where the agent lives. Ids are read from the
// run's seeded RNG: they are unique within a run, but two runs from the same
// seed (every point of a sweep, for one) issue the same ids.
type AgentID = uuid.UUID

// Identity is the group label an agent belongs to.
type Identity uint8

const (
	IdentityA Identity = iota
	IdentityB
)

// NumIdentities is the size of the closed identity set.
const NumIdentities = 2

// String returns the single-letter label used in logs and exports.
func (i Identity) String() string {
	switch i {
	case IdentityA:
		return "A"
	case IdentityB:
		return "B"
	default:
		return fmt.Sprintf("Identity(%d)", uint8(i))
	}
}

// ParseIdentity maps "A"/"B" back to an Identity.
func ParseIdentity(s string) (Identity, error) {
	switch s {
	case "A", "a":
		return IdentityA, nil
	case "B", "b":
		return IdentityB, nil
	}
	return 0, fmt.Errorf("unknown identity %q", s)
}

// Agent is a resident of the city. All fields are fixed at construction;
// relocation changes which tract holds the agent, never the agent itself.
type Agent struct {
	id        AgentID
	identity  Identity
	tolerance float64 // Minimum acceptable share of same-identity neighbors
}

// New builds an agent with explicit attributes.
func New(id AgentID, identity Identity, tolerance float64) *Agent {
	return &Agent{
		id:        id,
		identity:  identity,
		tolerance: tolerance,
	}
}

// ID returns the agent's unique identifier.
func (a *Agent) ID() AgentID {
	return a.id
}

// Identity returns the agent's group label.
func (a *Agent) Identity() Identity {
	return a.identity
}

// Tolerance returns the minimum share of same-identity neighbors the agent
// needs to be happy.
func (a *Agent) Tolerance() float64 {
	return a.tolerance
}

// Satisfied reports whether a neighborhood with the given homogeneity is
// acceptable to the agent.
func (a *Agent) Satisfied(homogeneity float64) bool {
	return homogeneity >= a.tolerance
}

// String returns a compact description for debug logging.
func (a *Agent) String() string {
	return fmt.Sprintf("Agent(%s, %s, tol=%.3f)", a.id, a.identity, a.tolerance)
}
