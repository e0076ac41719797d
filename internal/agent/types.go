// Package agent defines the configuration of a biological disturbance agent
// (a pest or pathogen) and the scheduler state it carries between timesteps.
package agent

import (
	"fmt"
	"strings"

	"github.com/talgya/forest-bda/internal/landscape"
)

// RandomFunc selects how the interval to the next outbreak is drawn.
type RandomFunc uint8

const (
	CyclicUniform RandomFunc = iota // Uniform over [MinInterval, MaxInterval)
	CyclicNormal                    // Normal(NormMean, NormStDev)
)

// TemporalType selects how outbreak intensity is chosen when one fires.
type TemporalType uint8

const (
	Pulse         TemporalType = iota // Always MaxROS
	VariablePulse                     // Uniform over (MinROS, MaxROS]
)

// NeighborShape selects the weight profile of the resource neighbourhood.
type NeighborShape uint8

const (
	ShapeUniform NeighborShape = iota
	ShapeLinear
	ShapeGaussian
)

// DispersalTemplate selects the dispersal reachability kernel.
type DispersalTemplate uint8

const (
	MaxRadius DispersalTemplate = iota // Every offset within DispersalRate × timestep
	N4
	N8
	N12
	N24
)

var (
	randomFuncNames    = map[RandomFunc]string{CyclicUniform: "cyclicuniform", CyclicNormal: "cyclicnormal"}
	temporalTypeNames  = map[TemporalType]string{Pulse: "pulse", VariablePulse: "variablepulse"}
	neighborShapeNames = map[NeighborShape]string{ShapeUniform: "uniform", ShapeLinear: "linear", ShapeGaussian: "gaussian"}
	templateNames      = map[DispersalTemplate]string{MaxRadius: "maxradius", N4: "4n", N8: "8n", N12: "12n", N24: "24n"}
)

func (f RandomFunc) String() string        { return randomFuncNames[f] }
func (t TemporalType) String() string      { return temporalTypeNames[t] }
func (s NeighborShape) String() string     { return neighborShapeNames[s] }
func (d DispersalTemplate) String() string { return templateNames[d] }

// RingSize returns the neighbour count of a fixed ring template, or 0 for
// MaxRadius.
func (d DispersalTemplate) RingSize() int {
	switch d {
	case N4:
		return 4
	case N8:
		return 8
	case N12:
		return 12
	case N24:
		return 24
	default:
		return 0
	}
}

// ParseRandomFunc parses a recurrence pattern name, ignoring case.
func ParseRandomFunc(s string) (RandomFunc, error) {
	return parseName(randomFuncNames, s, "random function")
}

// ParseTemporalType parses an intensity pattern name, ignoring case.
func ParseTemporalType(s string) (TemporalType, error) {
	return parseName(temporalTypeNames, s, "temporal type")
}

// ParseNeighborShape parses a neighbourhood shape name, ignoring case.
func ParseNeighborShape(s string) (NeighborShape, error) {
	return parseName(neighborShapeNames, s, "neighbor shape")
}

// ParseDispersalTemplate parses a dispersal template name, ignoring case.
func ParseDispersalTemplate(s string) (DispersalTemplate, error) {
	return parseName(templateNames, s, "dispersal template")
}

func parseName[T comparable](names map[T]string, s, kind string) (T, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for v, name := range names {
		if name == key {
			return v, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("unknown %s %q", kind, s)
}

// SpeciesParams are an agent's host thresholds for one tree species.
// A cohort is a candidate for death in a host class once its age reaches
// that class's age threshold.
type SpeciesParams struct {
	ResistantHostAge   int
	ResistantHostVuln  float64
	TolerantHostAge    int
	TolerantHostVuln   float64
	VulnerableHostAge  int
	VulnerableHostVuln float64

	// Conifer kills are counted separately for fuels extensions.
	Conifer bool
}

// Agent is the configuration of one disturbance agent. Only the two
// scheduler fields change after setup.
type Agent struct {
	Name string

	RandFunc    RandomFunc
	TempType    TemporalType
	MinInterval float64
	MaxInterval float64
	NormMean    float64
	NormStDev   float64
	MinROS      int
	MaxROS      int
	StartYear   int
	EndYear     int

	// Severity breakpoints: vulnerability at or above ClassNSV is class N.
	Class2SV float64
	Class3SV float64

	Dispersal         bool
	DispersalRate     int // metres per year
	DispersalTemplate DispersalTemplate

	NeighborFlag   bool
	NeighborShape  NeighborShape
	NeighborRadius int // metres

	// Indexed by landscape species index. Missing entries are non-hosts.
	Species []*SpeciesParams

	// Scheduler state, in years.
	TimeSinceLastEpidemic int
	TimeToNextEpidemic    int

	// Kernels built at setup, read-only afterwards.
	ResourceNeighbors  []landscape.WeightedOffset
	DispersalNeighbors []landscape.Offset
}

// SpeciesParams returns the host parameters for a species index.
func (a *Agent) SpeciesParams(species int) (*SpeciesParams, bool) {
	if species < 0 || species >= len(a.Species) || a.Species[species] == nil {
		return nil, false
	}
	return a.Species[species], true
}

// Validate checks the internal consistency of the agent configuration.
func (a *Agent) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("agent name is empty")
	}
	switch a.RandFunc {
	case CyclicUniform:
		if a.MinInterval < 0 || a.MaxInterval < a.MinInterval {
			return fmt.Errorf("agent %s: interval bounds [%g, %g] out of order", a.Name, a.MinInterval, a.MaxInterval)
		}
	case CyclicNormal:
		if a.NormStDev < 0 {
			return fmt.Errorf("agent %s: negative normal stdev %g", a.Name, a.NormStDev)
		}
	}
	if a.MinROS < 0 || a.MaxROS < a.MinROS {
		return fmt.Errorf("agent %s: ROS bounds [%d, %d] out of order", a.Name, a.MinROS, a.MaxROS)
	}
	if a.Class2SV < 0 || a.Class3SV < a.Class2SV {
		return fmt.Errorf("agent %s: severity breakpoints class2=%g class3=%g out of order", a.Name, a.Class2SV, a.Class3SV)
	}
	if a.EndYear < a.StartYear {
		return fmt.Errorf("agent %s: end year %d before start year %d", a.Name, a.EndYear, a.StartYear)
	}
	if a.NeighborFlag && a.NeighborRadius <= 0 {
		return fmt.Errorf("agent %s: neighbor radius must be positive", a.Name)
	}
	if a.Dispersal && a.DispersalTemplate == MaxRadius && a.DispersalRate <= 0 {
		return fmt.Errorf("agent %s: dispersal rate must be positive for maxradius", a.Name)
	}
	for i, sp := range a.Species {
		if sp == nil {
			continue
		}
		if sp.ResistantHostAge < 0 || sp.TolerantHostAge < 0 || sp.VulnerableHostAge < 0 {
			return fmt.Errorf("agent %s: species %d has a negative host age", a.Name, i)
		}
	}
	return nil
}
