package engine

import (
	"github.com/talgya/forest-bda/internal/agent"
	"github.com/talgya/forest-bda/internal/landscape"
)

// Vulnerability fills SiteResourceDom, NeighborResourceDom and
// Vulnerability on every active cell for the agent's coming epidemic.
type Vulnerability interface {
	Compute(g *landscape.Grid, a *agent.Agent, ros int)
}

// Epicenters marks the cells eligible for the agent's coming epidemic by
// setting their zone to ZoneNew.
type Epicenters interface {
	Select(g *landscape.Grid, a *agent.Agent)
}

// StoredVulnerability reads vulnerability from the landscape's hazard
// surface. With the neighbour flag set, the resource kernel blends in the
// weighted hazard of surrounding active cells.
type StoredVulnerability struct{}

func (StoredVulnerability) Compute(g *landscape.Grid, a *agent.Agent, ros int) {
	for _, c := range g.Active() {
		c.SiteResourceDom = c.Hazard
		if !a.NeighborFlag || len(a.ResourceNeighbors) == 0 {
			c.Vulnerability = c.SiteResourceDom
			continue
		}

		var sum, weights float64
		for _, n := range a.ResourceNeighbors {
			nb := g.Get(c.Loc.Add(n.Offset))
			if nb == nil || !nb.Active {
				continue
			}
			sum += nb.Hazard * n.Weight
			weights += n.Weight
		}
		if weights > 0 {
			c.NeighborResourceDom = sum / weights
		}
		c.Vulnerability = (c.SiteResourceDom + c.NeighborResourceDom) / 2
	}
}

// SynchronousEpicenters puts every active cell in the new zone, so the
// outbreak hits the whole landscape at once. It ignores the agent's
// dispersal settings and DispersalNeighbors; agents that spread from
// epicenters need an Epicenters implementation that reads them.
type SynchronousEpicenters struct{}

func (SynchronousEpicenters) Select(g *landscape.Grid, a *agent.Agent) {
	layer := g.Layer(a.Name)
	for _, c := range g.Active() {
		layer.Zone[c.Index] = landscape.ZoneNew
	}
}
