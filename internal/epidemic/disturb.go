package epidemic

import (
	"github.com/talgya/forest-bda/internal/agent"
	"github.com/talgya/forest-bda/internal/landscape"
)

// Uniform is the draw source the sweep consumes.
type Uniform interface {
	Uniform() float64
}

// Severity classes.
const (
	SeverityNone = 0
	SeverityLow  = 1
	SeverityMid  = 2
	SeverityHigh = 3
)

// SeverityClass maps a vulnerability to a class using the agent's
// breakpoints; the highest breakpoint met wins.
func SeverityClass(a *agent.Agent, vulnerability float64) int {
	severity := SeverityNone
	if vulnerability >= 0 {
		severity = SeverityLow
	}
	if vulnerability >= a.Class2SV {
		severity = SeverityMid
	}
	if vulnerability >= a.Class3SV {
		severity = SeverityHigh
	}
	return severity
}

// InitializeZones prepares the landscape for a new epidemic of the agent:
// the previous epidemic's zone becomes the last zone, and the resource and
// vulnerability fields are cleared for the collaborators to recompute.
func InitializeZones(g *landscape.Grid, a *agent.Agent) {
	layer := g.Layer(a.Name)
	for _, c := range g.Active() {
		c.NeighborResourceDom = 0
		c.SiteResourceDom = 0
		c.Vulnerability = 0
		if layer.Zone[c.Index] == landscape.ZoneNew {
			layer.Zone[c.Index] = landscape.ZoneLast
		} else {
			layer.Zone[c.Index] = landscape.ZoneNone
		}
	}
}

// DisturbSites sweeps every active cell once, in grid order. Each cell
// consumes exactly one uniform draw whether or not it is disturbed.
func DisturbSites(g *landscape.Grid, a *agent.Agent, r Uniform, now, ros int, selected []uint32) *Outcome {
	agg := NewAggregator(a.Name, now, ros, selected)
	layer := g.Layer(a.Name)

	for _, cell := range g.Active() {
		severity := SeverityNone
		draw := r.Uniform()

		if layer.Zone[cell.Index] == landscape.ZoneNew && cell.Vulnerability > draw {
			severity = SeverityClass(a, cell.Vulnerability)
			kills := KillSiteCohorts(g, a, cell, cell.Vulnerability, draw)

			if kills.CohortsKilled > 0 {
				cell.ConiferKills[now] += kills.ConifersKilled
				cell.Disturbed = true
				cell.TimeOfLastEvent = now
				cell.AgentName = a.Name
				agg.Record(cell, kills, severity)
			} else {
				// Severity without mortality is not a disturbance.
				severity = SeverityNone
			}
		}
		layer.Severity[cell.Index] = uint8(severity)
	}

	return agg.Outcome()
}
