package world

// Survey is a full snapshot of per-tract availability, happiness and
// homogeneity. It is derived from the tracts and never edited in place.
type Survey struct {
	// Availability[i] is true when tract i is occupied.
	Availability []bool
	// Happiness[i] is true when the resident of tract i is satisfied.
	// Empty tracts always count as happy.
	Happiness []bool
	// HomogeneityToResident[i] is the resident's neighborhood homogeneity,
	// 0 for empty tracts.
	HomogeneityToResident []float64
}

// SurveyAll recomputes the survey over every tract.
func (c *City) SurveyAll() Survey {
	n := len(c.tracts)
	s := Survey{
		Availability:          make([]bool, n),
		Happiness:             make([]bool, n),
		HomogeneityToResident: make([]float64, n),
	}
	for i, t := range c.tracts {
		s.Happiness[i] = true
		if t.occupant == nil {
			continue
		}
		s.Availability[i] = true
		h := c.Homogeneity(i, t.occupant.Identity())
		s.HomogeneityToResident[i] = h
		s.Happiness[i] = t.occupant.Satisfied(h)
	}
	return s
}

// Size returns the number of tracts surveyed.
func (s Survey) Size() int {
	return len(s.Happiness)
}

// HappyCount counts happy tracts, empty ones included.
func (s Survey) HappyCount() int {
	count := 0
	for _, h := range s.Happiness {
		if h {
			count++
		}
	}
	return count
}

// UnhappyCount counts residents who want to move.
func (s Survey) UnhappyCount() int {
	return s.Size() - s.HappyCount()
}

// Settled reports whether every tract is happy.
func (s Survey) Settled() bool {
	return s.HappyCount() == s.Size()
}

// OccupiedCount counts occupied tracts.
func (s Survey) OccupiedCount() int {
	count := 0
	for _, occupied := range s.Availability {
		if occupied {
			count++
		}
	}
	return count
}

// MeanHomogeneity averages HomogeneityToResident over occupied tracts.
func (s Survey) MeanHomogeneity() (float64, error) {
	occupied := s.OccupiedCount()
	if occupied == 0 {
		return 0, ErrEmptyPopulation
	}
	total := 0.0
	for _, h := range s.HomogeneityToResident {
		total += h
	}
	return total / float64(occupied), nil
}

// UnhappyIndices lists tracts whose resident is unhappy, in ring order.
func (s Survey) UnhappyIndices() []int {
	var out []int
	for i, h := range s.Happiness {
		if !h {
			out = append(out, i)
		}
	}
	return out
}

// EmptyIndices lists unoccupied tracts, in ring order.
func (s Survey) EmptyIndices() []int {
	var out []int
	for i, occupied := range s.Availability {
		if !occupied {
			out = append(out, i)
		}
	}
	return out
}
