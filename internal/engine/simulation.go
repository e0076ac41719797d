package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/talgya/forest-bda/internal/agent"
	"github.com/talgya/forest-bda/internal/epidemic"
	"github.com/talgya/forest-bda/internal/landscape"
	"github.com/talgya/forest-bda/internal/neighborhood"
	"github.com/talgya/forest-bda/internal/outbreak"
)

// ErrNoSubregionData is returned when management areas are selected but the
// landscape carries no management area map.
var ErrNoSubregionData = errors.New("selected management areas require subregion data")

// Rand is the shared draw source for scheduling and disturbance.
type Rand interface {
	Uniform() float64
	Normal(mu, sigma float64) float64
}

// Options configures a Simulation.
type Options struct {
	StartYear int
	Timestep  int
	Selected  []uint32 // Management area codes reported separately

	Vulnerability Vulnerability // Defaults to StoredVulnerability
	Epicenters    Epicenters    // Defaults to SynchronousEpicenters
}

// Simulation holds the landscape and agents and runs one timestep at a time.
type Simulation struct {
	Grid     *landscape.Grid
	Agents   []*agent.Agent
	Timestep int
	Selected []uint32

	Vulnerability Vulnerability
	Epicenters    Epicenters

	// Called after every epidemic, in agent order. An error halts the step.
	OnEpidemic func(a *agent.Agent, o *epidemic.Outcome) error

	TimeOfNext map[string]int // Agent name → published next outbreak year
	LastYear   int
	Stats      SimStats

	rand Rand
}

// SimStats accumulates run totals across every agent.
type SimStats struct {
	Epidemics     int   `json:"epidemics"`
	SitesDamaged  int   `json:"sites_damaged"`
	CohortsKilled int   `json:"cohorts_killed"`
	BiomassKilled int64 `json:"biomass_killed"`
}

// New validates the setup, builds each agent's kernels and seeds the first
// outbreak interval of every agent.
func New(g *landscape.Grid, agents []*agent.Agent, r Rand, opts Options) (*Simulation, error) {
	if opts.Timestep <= 0 {
		return nil, fmt.Errorf("timestep must be positive, got %d", opts.Timestep)
	}
	if len(opts.Selected) > 0 && !g.HasSubregions() {
		return nil, fmt.Errorf("%w: %v", ErrNoSubregionData, opts.Selected)
	}
	for _, a := range agents {
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("agent %s: %w", a.Name, err)
		}
	}

	s := &Simulation{
		Grid:          g,
		Agents:        agents,
		Timestep:      opts.Timestep,
		Selected:      opts.Selected,
		Vulnerability: opts.Vulnerability,
		Epicenters:    opts.Epicenters,
		TimeOfNext:    make(map[string]int, len(agents)),
		LastYear:      opts.StartYear,
		rand:          r,
	}
	if s.Vulnerability == nil {
		s.Vulnerability = StoredVulnerability{}
	}
	if s.Epicenters == nil {
		s.Epicenters = SynchronousEpicenters{}
	}

	for _, a := range agents {
		if a.NeighborFlag {
			a.ResourceNeighbors = neighborhood.Resource(a, g.CellLength)
		}
		if a.Dispersal {
			a.DispersalNeighbors = neighborhood.Dispersal(a, opts.Timestep, g.CellLength)
		}
		slog.Info("agent kernels built",
			"agent", a.Name,
			"resource_neighbors", len(a.ResourceNeighbors),
			"dispersal_neighbors", len(a.DispersalNeighbors),
		)

		next := outbreak.Initialize(a, opts.StartYear, opts.Timestep, r)
		s.TimeOfNext[a.Name] = next
		g.SetTimeOfNext(next)
		slog.Info("agent scheduled", "agent", a.Name, "time_of_next", next)
	}

	return s, nil
}

// Step runs every agent for the timestep ending at now.
func (s *Simulation) Step(now int) error {
	s.LastYear = now
	s.Grid.ClearDisturbed()

	for _, a := range s.Agents {
		a.TimeSinceLastEpidemic += s.Timestep

		st := outbreak.RegionalOutbreakStatus(a, now, s.Timestep, s.rand)
		if st.Fired {
			s.TimeOfNext[a.Name] = st.TimeOfNext
			s.Grid.SetTimeOfNext(st.TimeOfNext)
			slog.Info("outbreak", "agent", a.Name, "time", now, "ros", st.ROS, "time_of_next", st.TimeOfNext)
		}
		if st.ROS <= 0 {
			continue
		}

		o := s.runEpidemic(a, now, st.ROS)
		if s.OnEpidemic != nil {
			if err := s.OnEpidemic(a, o); err != nil {
				return fmt.Errorf("agent %s: %w", a.Name, err)
			}
		}
	}
	return nil
}

func (s *Simulation) runEpidemic(a *agent.Agent, now, ros int) *epidemic.Outcome {
	epidemic.InitializeZones(s.Grid, a)
	s.Vulnerability.Compute(s.Grid, a, ros)
	s.Epicenters.Select(s.Grid, a)

	o := epidemic.DisturbSites(s.Grid, a, s.rand, now, ros, s.Selected)

	s.Stats.Epidemics++
	s.Stats.SitesDamaged += o.SitesDamaged
	s.Stats.CohortsKilled += o.CohortsKilled
	s.Stats.BiomassKilled += o.BiomassKilled

	slog.Info("epidemic",
		"agent", a.Name,
		"time", now,
		"ros", ros,
		"sites_damaged", o.SitesDamaged,
		"cohorts_killed", o.CohortsKilled,
		"biomass_killed", humanize.Comma(o.BiomassKilled),
		"mean_severity", fmt.Sprintf("%.3f", o.MeanSeverity),
	)
	return o
}
