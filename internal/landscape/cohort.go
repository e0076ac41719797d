package landscape

import "sort"

// Species is a tree species known to the landscape.
type Species struct {
	Index     int    `json:"index" yaml:"-"`
	Name      string `json:"name" yaml:"name"`
	Longevity int    `json:"longevity" yaml:"longevity"`
}

// Cohort is a same-species, same-age group of trees at one cell.
type Cohort struct {
	Species int   `json:"species"` // Index into Grid.Species
	Age     int   `json:"age"`
	Biomass int64 `json:"biomass"` // g/m², meaningful only when HasBiomass

	// Age-only succession models carry no biomass.
	HasBiomass bool `json:"has_biomass"`
}

// Cohorts returns the cohorts at a cell.
func (g *Grid) Cohorts(c *Cell) []Cohort {
	return c.Cohorts
}

// RemoveCohorts deletes the cohorts at the given indices of c.Cohorts.
// Indices refer to the slice returned by Cohorts before the call.
func (g *Grid) RemoveCohorts(c *Cell, indices []int) {
	if len(indices) == 0 {
		return
	}
	doomed := make(map[int]bool, len(indices))
	for _, i := range indices {
		doomed[i] = true
	}
	kept := c.Cohorts[:0]
	for i, co := range c.Cohorts {
		if !doomed[i] {
			kept = append(kept, co)
		}
	}
	// Clear the tail so removed cohorts are not retained by the backing array.
	for i := len(kept); i < len(c.Cohorts); i++ {
		c.Cohorts[i] = Cohort{}
	}
	c.Cohorts = kept
}

// AddCohort inserts a cohort, keeping the cell's list ordered by species
// then descending age.
func (g *Grid) AddCohort(c *Cell, co Cohort) {
	c.Cohorts = append(c.Cohorts, co)
	sort.SliceStable(c.Cohorts, func(i, j int) bool {
		if c.Cohorts[i].Species != c.Cohorts[j].Species {
			return c.Cohorts[i].Species < c.Cohorts[j].Species
		}
		return c.Cohorts[i].Age > c.Cohorts[j].Age
	})
}
