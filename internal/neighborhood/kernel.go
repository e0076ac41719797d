// Package neighborhood builds the offset kernels an agent uses around each
// cell: a weighted resource kernel and an unweighted dispersal kernel.
// Kernels are potential neighbours only; callers clip them to the landscape
// bounds and to active cells.
package neighborhood

import (
	"math"

	"github.com/talgya/forest-bda/internal/agent"
	"github.com/talgya/forest-bda/internal/landscape"
)

// Distance returns the distance in metres between the centre of a cell and
// the centre of the cell displaced by (row, col).
func Distance(row, col int, cellLength float64) float64 {
	r := math.Abs(float64(row)) * cellLength
	c := math.Abs(float64(col)) * cellLength
	return math.Sqrt(r*r + c*c)
}

// weightFunc maps a centroid distance and radius to a weight.
type weightFunc func(distance, radius float64) float64

var shapeWeights = map[agent.NeighborShape]weightFunc{
	agent.ShapeUniform: func(_, _ float64) float64 {
		return 1.0
	},
	agent.ShapeLinear: func(d, radius float64) float64 {
		return 1.0 - d/radius
	},
	agent.ShapeGaussian: func(d, radius float64) float64 {
		// Half radius uses whole metres.
		half := float64(int(radius) / 2)
		return math.Exp(-(d * d) / (half * half))
	},
}

// Resource builds the weighted resource kernel: every offset whose distance
// lies in (0, NeighborRadius].
func Resource(a *agent.Agent, cellLength float64) []landscape.WeightedOffset {
	radius := float64(a.NeighborRadius)
	cells := int(radius / cellLength)
	weight := shapeWeights[a.NeighborShape]
	if weight == nil {
		weight = shapeWeights[agent.ShapeUniform]
	}

	var kernel []landscape.WeightedOffset
	for row := -cells; row <= cells; row++ {
		for col := -cells; col <= cells; col++ {
			d := Distance(row, col, cellLength)
			if d <= 0 || d > radius {
				continue
			}
			kernel = append(kernel, landscape.WeightedOffset{
				Offset: landscape.Offset{Row: row, Col: col},
				Weight: weight(d, radius),
			})
		}
	}
	return kernel
}

// Dispersal builds the dispersal kernel for the agent's template. MaxRadius
// includes every offset within DispersalRate × timestep, centre included.
func Dispersal(a *agent.Agent, timestep int, cellLength float64) []landscape.Offset {
	if n := a.DispersalTemplate.RingSize(); n > 0 {
		return Ring(n)
	}

	radius := float64(a.DispersalRate * timestep)
	cells := int(radius / cellLength)

	var kernel []landscape.Offset
	for row := -cells; row <= cells; row++ {
		for col := -cells; col <= cells; col++ {
			if Distance(row, col, cellLength) <= radius {
				kernel = append(kernel, landscape.Offset{Row: row, Col: col})
			}
		}
	}
	return kernel
}

var (
	ring4 = []landscape.Offset{
		{Row: 0, Col: 1},  // east
		{Row: 1, Col: 0},  // south
		{Row: 0, Col: -1}, // west
		{Row: -1, Col: 0}, // north
	}
	ring8 = []landscape.Offset{
		{Row: -1, Col: 1},  // northeast
		{Row: 1, Col: 1},   // southeast
		{Row: 1, Col: -1},  // southwest
		{Row: -1, Col: -1}, // northwest
	}
	ring12 = []landscape.Offset{
		{Row: -2, Col: 0},
		{Row: 0, Col: 2},
		{Row: 2, Col: 0},
		{Row: 0, Col: -2},
	}
	ring24 = []landscape.Offset{
		{Row: -2, Col: -2},
		{Row: -2, Col: -1},
		{Row: -1, Col: -2},
		{Row: -2, Col: 2},
		{Row: -2, Col: 1},
		{Row: -1, Col: 2},
		{Row: 2, Col: 2},
		{Row: 1, Col: 2},
		{Row: 2, Col: 1},
		{Row: 2, Col: -2},
		{Row: 2, Col: -1},
		{Row: 1, Col: -2},
	}
	tiers = []struct {
		size    int
		offsets []landscape.Offset
	}{
		{4, ring4},
		{8, ring8},
		{12, ring12},
		{24, ring24},
	}
)

// Ring returns the nearest-neighbour set of 4, 8, 12, or 24 offsets. Other
// counts round down to the largest complete tier; below 4 the set is empty.
func Ring(n int) []landscape.Offset {
	var out []landscape.Offset
	for _, tier := range tiers {
		if n < tier.size {
			break
		}
		out = append(out, tier.offsets...)
	}
	return out
}
