// Package epidemic runs one agent's outbreak over the landscape: it assigns
// a severity class to each eligible cell, kills host cohorts, and rolls the
// damage up into an Outcome.
package epidemic

import "github.com/talgya/forest-bda/internal/landscape"

// Outcome is the result of one epidemic of one agent at one timestep.
type Outcome struct {
	Time          int     `json:"time"`
	AgentName     string  `json:"agent_name"`
	ROS           int     `json:"ros"`
	SitesDamaged  int     `json:"sites_damaged"`
	CohortsKilled int     `json:"cohorts_killed"`
	BiomassKilled int64   `json:"biomass_killed"`
	MeanSeverity  float64 `json:"mean_severity"`

	// Parallel to SelectedAreas; empty when no areas are selected.
	SelectedAreas       []uint32 `json:"selected_areas"`
	CohortsKilledInArea []int    `json:"cohorts_killed_in_area"`
	SitesDamagedInArea  []int    `json:"sites_damaged_in_area"`
	BiomassKilledInArea []int64  `json:"biomass_killed_in_area"`
}

// Aggregator accumulates damage statistics across one sweep.
type Aggregator struct {
	out           *Outcome
	areaIndex     map[uint32]int
	severityTotal int
}

// NewAggregator starts an outcome for the given selected management areas.
func NewAggregator(agentName string, now, ros int, selected []uint32) *Aggregator {
	n := len(selected)
	agg := &Aggregator{
		out: &Outcome{
			Time:                now,
			AgentName:           agentName,
			ROS:                 ros,
			SelectedAreas:       append([]uint32(nil), selected...),
			CohortsKilledInArea: make([]int, n),
			SitesDamagedInArea:  make([]int, n),
			BiomassKilledInArea: make([]int64, n),
		},
		areaIndex: make(map[uint32]int, n),
	}
	for i, code := range selected {
		if _, dup := agg.areaIndex[code]; !dup {
			agg.areaIndex[code] = i
		}
	}
	return agg
}

// Record adds a damaged cell.
func (agg *Aggregator) Record(cell *landscape.Cell, kills KillResult, severity int) {
	o := agg.out
	o.CohortsKilled += kills.CohortsKilled
	o.BiomassKilled += kills.BiomassKilled
	o.SitesDamaged++
	agg.severityTotal += severity

	if cell.Subregion == nil || len(agg.areaIndex) == 0 {
		return
	}
	if i, ok := agg.areaIndex[*cell.Subregion]; ok {
		o.CohortsKilledInArea[i] += kills.CohortsKilled
		o.BiomassKilledInArea[i] += kills.BiomassKilled
		o.SitesDamagedInArea[i]++
	}
}

// Outcome finalises the mean severity and returns the result.
func (agg *Aggregator) Outcome() *Outcome {
	o := agg.out
	o.MeanSeverity = 0
	if o.SitesDamaged > 0 {
		o.MeanSeverity = float64(agg.severityTotal) / float64(o.SitesDamaged)
	}
	return o
}
