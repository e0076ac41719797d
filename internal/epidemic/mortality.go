package epidemic

import (
	"github.com/talgya/forest-bda/internal/agent"
	"github.com/talgya/forest-bda/internal/landscape"
)

// KillResult counts the damage done at one cell.
type KillResult struct {
	CohortsKilled  int
	ConifersKilled int
	BiomassKilled  int64
	BiomassCohorts int // Killed cohorts that carried biomass
}

// MarkForDeath reports whether a cohort dies at a disturbed cell with the
// given vulnerability and random draw. Each host class whose age threshold
// the cohort has reached is tested independently; any match kills.
func MarkForDeath(sp *agent.SpeciesParams, c landscape.Cohort, vulnerability, draw float64) bool {
	if sp == nil {
		return false
	}
	kill := false
	if c.Age >= sp.ResistantHostAge && draw <= vulnerability*sp.ResistantHostVuln {
		kill = true
	}
	if c.Age >= sp.TolerantHostAge && draw <= vulnerability*sp.TolerantHostVuln {
		kill = true
	}
	if c.Age >= sp.VulnerableHostAge && draw <= vulnerability*sp.VulnerableHostVuln {
		kill = true
	}
	return kill
}

// record adds a killed cohort to the cell's counters.
func (k *KillResult) record(sp *agent.SpeciesParams, c landscape.Cohort) {
	k.CohortsKilled++
	if sp.Conifer {
		k.ConifersKilled++
	}
	if c.HasBiomass {
		k.BiomassKilled += c.Biomass
		k.BiomassCohorts++
	}
}

// CohortStore owns the cohorts of every cell.
type CohortStore interface {
	Cohorts(c *landscape.Cell) []landscape.Cohort
	RemoveCohorts(c *landscape.Cell, indices []int)
}

// KillSiteCohorts applies the mortality rule to every cohort at a cell, then
// asks the store to remove exactly the cohorts that died.
func KillSiteCohorts(store CohortStore, a *agent.Agent, cell *landscape.Cell, vulnerability, draw float64) KillResult {
	var res KillResult
	var doomed []int
	for i, c := range store.Cohorts(cell) {
		sp, ok := a.SpeciesParams(c.Species)
		if !ok || !MarkForDeath(sp, c, vulnerability, draw) {
			continue
		}
		doomed = append(doomed, i)
		res.record(sp, c)
	}
	store.RemoveCohorts(cell, doomed)
	return res
}
