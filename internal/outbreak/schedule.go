// Package outbreak decides, per agent and per timestep, whether an outbreak
// fires and how intense it is (the regional outbreak status, ROS).
package outbreak

import (
	"math"

	"github.com/talgya/forest-bda/internal/agent"
)

// Rand is the draw source the scheduler consumes.
type Rand interface {
	Uniform() float64
	Normal(mu, sigma float64) float64
}

// Status is the scheduler's decision for one agent at one timestep.
type Status struct {
	ROS        int  // 0 = no outbreak
	Fired      bool // A new outbreak cycle started
	TimeOfNext int  // Absolute year of the next outbreak, valid when Fired
}

// TimeToNext draws the interval, in years, until the agent's next outbreak.
func TimeToNext(a *agent.Agent, timestep int, r Rand) int {
	switch a.RandFunc {
	case agent.CyclicUniform:
		maxI := int(math.RoundToEven(a.MaxInterval))
		minI := int(math.RoundToEven(a.MinInterval))
		return minI + int(r.Uniform()*float64(maxI-minI))

	case agent.CyclicNormal:
		next := int(a.NormMean)
		if a.NormStDev != 0 {
			// The first draw is discarded; only the second counts.
			next = int(r.Normal(a.NormMean, a.NormStDev))
			next = int(r.Normal(a.NormMean, a.NormStDev))
		}
		// Intervals are always rounded up to the next timestep, so half a
		// timestep is removed to cancel the bias.
		next -= timestep / 2
		if next < 0 {
			next = 0
		}
		return next
	}
	return 0
}

// Initialize seeds the agent's first interval at setup and returns the
// year published as the time of the next outbreak.
func Initialize(a *agent.Agent, now, timestep int, r Rand) int {
	a.TimeToNextEpidemic = TimeToNext(a, timestep, r) + a.StartYear
	timeOfNext := now + a.TimeToNextEpidemic - a.TimeSinceLastEpidemic
	if timeOfNext < timestep {
		timeOfNext = timestep
	}
	if timeOfNext < a.StartYear {
		timeOfNext = a.StartYear
	}
	return timeOfNext
}

// RegionalOutbreakStatus runs the scheduler for one timestep. The caller
// advances TimeSinceLastEpidemic by the timestep before calling.
func RegionalOutbreakStatus(a *agent.Agent, now, timestep int, r Rand) Status {
	if a.TimeSinceLastEpidemic < a.TimeToNextEpidemic || now > a.EndYear {
		// Background level between outbreaks.
		return Status{ROS: a.MinROS}
	}

	a.TimeToNextEpidemic = TimeToNext(a, timestep, r)
	a.TimeSinceLastEpidemic = 0
	st := Status{
		Fired:      true,
		TimeOfNext: now + a.TimeToNextEpidemic,
	}

	switch a.TempType {
	case agent.Pulse:
		st.ROS = a.MaxROS
	case agent.VariablePulse:
		st.ROS = int(r.Uniform()*float64(a.MaxROS-a.MinROS)) + 1 + a.MinROS
	}
	return st
}
