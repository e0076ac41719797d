// Package config loads a disturbance scenario from YAML: run timing, the
// generated landscape, output locations, and the agents to simulate.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/talgya/forest-bda/internal/agent"
	"github.com/talgya/forest-bda/internal/landscape"
	"github.com/talgya/forest-bda/internal/maps"
)

// ErrInvalidScenario wraps every validation failure.
var ErrInvalidScenario = errors.New("invalid scenario")

type Scenario struct {
	Timestep  int   `yaml:"timestep"`
	StartTime int   `yaml:"start_time"`
	EndTime   int   `yaml:"end_time"`
	Seed      int64 `yaml:"seed"`

	Landscape LandscapeSpec `yaml:"landscape"`
	Outputs   OutputSpec    `yaml:"outputs"`

	SelectedManagementAreas []uint32    `yaml:"selected_management_areas,omitempty"`
	Agents                  []AgentSpec `yaml:"agents"`
}

type LandscapeSpec struct {
	Rows             int                 `yaml:"rows"`
	Cols             int                 `yaml:"cols"`
	CellLength       float64             `yaml:"cell_length"`
	InactiveFraction float64             `yaml:"inactive_fraction"`
	Subregions       int                 `yaml:"subregions"`
	BiomassCohorts   bool                `yaml:"biomass_cohorts"`
	Species          []landscape.Species `yaml:"species"`
}

type OutputSpec struct {
	Dir          string `yaml:"dir"`
	MapNames     string `yaml:"map_names"`
	SRDMapNames  string `yaml:"srd_map_names,omitempty"`
	NRDMapNames  string `yaml:"nrd_map_names,omitempty"`
	VulnMapNames string `yaml:"vuln_map_names,omitempty"`
	LogDB        string `yaml:"log_db"`
	Chart        string `yaml:"chart,omitempty"`
}

type AgentSpec struct {
	Name           string  `yaml:"name"`
	RandomFunction string  `yaml:"random_function"`
	TemporalType   string  `yaml:"temporal_type"`
	MinInterval    float64 `yaml:"min_interval"`
	MaxInterval    float64 `yaml:"max_interval"`
	NormMean       float64 `yaml:"norm_mean"`
	NormStDev      float64 `yaml:"norm_stdev"`
	MinROS         int     `yaml:"min_ros"`
	MaxROS         int     `yaml:"max_ros"`
	StartYear      int     `yaml:"start_year"`
	EndYear        int     `yaml:"end_year"`
	Class2SV       float64 `yaml:"class2_sv"`
	Class3SV       float64 `yaml:"class3_sv"`

	Dispersal         bool   `yaml:"dispersal"`
	DispersalRate     int    `yaml:"dispersal_rate"`
	DispersalTemplate string `yaml:"dispersal_template"`

	NeighborFlag   bool   `yaml:"neighbor_flag"`
	NeighborShape  string `yaml:"neighbor_shape"`
	NeighborRadius int    `yaml:"neighbor_radius"`

	Species map[string]SpeciesSpec `yaml:"species"`
}

type SpeciesSpec struct {
	ResistantAge   int     `yaml:"resistant_age"`
	ResistantVuln  float64 `yaml:"resistant_vuln"`
	TolerantAge    int     `yaml:"tolerant_age"`
	TolerantVuln   float64 `yaml:"tolerant_vuln"`
	VulnerableAge  int     `yaml:"vulnerable_age"`
	VulnerableVuln float64 `yaml:"vulnerable_vuln"`
	Conifer        bool    `yaml:"conifer"`
}

// Load reads a scenario file. An empty path yields the defaults.
func Load(path string) (Scenario, error) {
	sc := defaults()
	if strings.TrimSpace(path) == "" {
		sc.Normalize()
		return sc, sc.Validate()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return sc, fmt.Errorf("read scenario %s: %w", path, err)
	}
	return Parse(b)
}

// Parse decodes a scenario from YAML bytes over the defaults.
func Parse(b []byte) (Scenario, error) {
	sc := defaults()
	if err := yaml.Unmarshal(b, &sc); err != nil {
		return sc, fmt.Errorf("scenario.yaml: %w", err)
	}
	sc.Normalize()
	if err := sc.Validate(); err != nil {
		return sc, fmt.Errorf("scenario.yaml: %w", err)
	}
	return sc, nil
}

func defaults() Scenario {
	gen := landscape.DefaultGenConfig()
	return Scenario{
		Timestep:  10,
		StartTime: 0,
		EndTime:   100,
		Landscape: LandscapeSpec{
			Rows:             gen.Rows,
			Cols:             gen.Cols,
			CellLength:       gen.CellLength,
			InactiveFraction: gen.InactiveFraction,
			Subregions:       gen.Subregions,
			BiomassCohorts:   gen.BiomassCohorts,
			Species:          gen.Species,
		},
		Outputs: OutputSpec{
			Dir:      "out",
			MapNames: "bda/{agentName}-{timestep}.asc.zst",
			LogDB:    "bda-log.db",
		},
		Agents: []AgentSpec{
			{
				Name:              "budworm",
				RandomFunction:    "cyclicnormal",
				TemporalType:      "variablepulse",
				NormMean:          35,
				NormStDev:         5,
				MinROS:            0,
				MaxROS:            3,
				Class2SV:          0.33,
				Class3SV:          0.66,
				DispersalTemplate: "maxradius",
				NeighborShape:     "uniform",
				Species: map[string]SpeciesSpec{
					"abiebals": {ResistantAge: 20, ResistantVuln: 0.5, TolerantAge: 40, TolerantVuln: 0.75, VulnerableAge: 60, VulnerableVuln: 1, Conifer: true},
					"piceglau": {ResistantAge: 30, ResistantVuln: 0.25, TolerantAge: 60, TolerantVuln: 0.5, VulnerableAge: 90, VulnerableVuln: 0.75, Conifer: true},
				},
			},
		},
	}
}

// Normalize fills values that depend on other fields.
func (sc *Scenario) Normalize() {
	for i := range sc.Landscape.Species {
		sc.Landscape.Species[i].Index = i
	}
	for i := range sc.Agents {
		a := &sc.Agents[i]
		a.Name = strings.TrimSpace(a.Name)
		if a.EndYear == 0 {
			a.EndYear = sc.EndTime
		}
		if a.RandomFunction == "" {
			a.RandomFunction = "cyclicuniform"
		}
		if a.TemporalType == "" {
			a.TemporalType = "pulse"
		}
		if a.DispersalTemplate == "" {
			a.DispersalTemplate = "maxradius"
		}
		if a.NeighborShape == "" {
			a.NeighborShape = "uniform"
		}
	}
}

// Validate checks the scenario before any landscape is built.
func (sc Scenario) Validate() error {
	if err := sc.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	return nil
}

func (sc Scenario) validate() error {
	if sc.Timestep <= 0 {
		return fmt.Errorf("timestep must be positive")
	}
	if sc.EndTime < sc.StartTime {
		return fmt.Errorf("end_time %d before start_time %d", sc.EndTime, sc.StartTime)
	}
	ls := sc.Landscape
	if ls.Rows <= 0 || ls.Cols <= 0 {
		return fmt.Errorf("landscape must have positive rows and cols")
	}
	if ls.CellLength <= 0 {
		return fmt.Errorf("cell_length must be positive")
	}
	if ls.Subregions < 0 {
		return fmt.Errorf("subregions must not be negative")
	}
	speciesSeen := make(map[string]bool, len(ls.Species))
	for _, sp := range ls.Species {
		if sp.Name == "" {
			return fmt.Errorf("species with empty name")
		}
		if speciesSeen[sp.Name] {
			return fmt.Errorf("duplicate species %q", sp.Name)
		}
		speciesSeen[sp.Name] = true
	}
	if strings.TrimSpace(sc.Outputs.MapNames) == "" {
		return fmt.Errorf("outputs.map_names is required")
	}
	for _, tmpl := range []string{sc.Outputs.MapNames, sc.Outputs.SRDMapNames, sc.Outputs.NRDMapNames, sc.Outputs.VulnMapNames} {
		if tmpl == "" {
			continue
		}
		if err := maps.CheckTemplate(tmpl); err != nil {
			return err
		}
	}
	areaSeen := make(map[uint32]bool, len(sc.SelectedManagementAreas))
	for _, code := range sc.SelectedManagementAreas {
		if areaSeen[code] {
			return fmt.Errorf("management area %d selected twice", code)
		}
		areaSeen[code] = true
	}
	if len(sc.Agents) == 0 {
		return fmt.Errorf("at least one agent is required")
	}
	agentSeen := make(map[string]bool, len(sc.Agents))
	for _, a := range sc.Agents {
		if agentSeen[a.Name] {
			return fmt.Errorf("duplicate agent %q", a.Name)
		}
		agentSeen[a.Name] = true
		for name := range a.Species {
			if !speciesSeen[name] {
				return fmt.Errorf("agent %s: unknown species %q", a.Name, name)
			}
		}
		built, err := a.build(ls.Species)
		if err != nil {
			return err
		}
		if err := built.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// GenConfig returns the landscape generation parameters.
func (sc Scenario) GenConfig() landscape.GenConfig {
	return landscape.GenConfig{
		Rows:             sc.Landscape.Rows,
		Cols:             sc.Landscape.Cols,
		CellLength:       sc.Landscape.CellLength,
		Seed:             sc.Seed,
		InactiveFraction: sc.Landscape.InactiveFraction,
		Subregions:       sc.Landscape.Subregions,
		Species:          sc.Landscape.Species,
		BiomassCohorts:   sc.Landscape.BiomassCohorts,
	}
}

// BuildAgents converts the agent blocks into agents keyed to the species
// list, in file order.
func (sc Scenario) BuildAgents() ([]*agent.Agent, error) {
	out := make([]*agent.Agent, 0, len(sc.Agents))
	for _, spec := range sc.Agents {
		a, err := spec.build(sc.Landscape.Species)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (s AgentSpec) build(species []landscape.Species) (*agent.Agent, error) {
	randFunc, err := agent.ParseRandomFunc(s.RandomFunction)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", s.Name, err)
	}
	tempType, err := agent.ParseTemporalType(s.TemporalType)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", s.Name, err)
	}
	tmpl, err := agent.ParseDispersalTemplate(s.DispersalTemplate)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", s.Name, err)
	}
	shape, err := agent.ParseNeighborShape(s.NeighborShape)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", s.Name, err)
	}

	a := &agent.Agent{
		Name:              s.Name,
		RandFunc:          randFunc,
		TempType:          tempType,
		MinInterval:       s.MinInterval,
		MaxInterval:       s.MaxInterval,
		NormMean:          s.NormMean,
		NormStDev:         s.NormStDev,
		MinROS:            s.MinROS,
		MaxROS:            s.MaxROS,
		StartYear:         s.StartYear,
		EndYear:           s.EndYear,
		Class2SV:          s.Class2SV,
		Class3SV:          s.Class3SV,
		Dispersal:         s.Dispersal,
		DispersalRate:     s.DispersalRate,
		DispersalTemplate: tmpl,
		NeighborFlag:      s.NeighborFlag,
		NeighborShape:     shape,
		NeighborRadius:    s.NeighborRadius,
		Species:           make([]*agent.SpeciesParams, len(species)),
	}

	names := make([]string, 0, len(s.Species))
	for name := range s.Species {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		idx := -1
		for _, sp := range species {
			if sp.Name == name {
				idx = sp.Index
				break
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("agent %s: unknown species %q", s.Name, name)
		}
		p := s.Species[name]
		a.Species[idx] = &agent.SpeciesParams{
			ResistantHostAge:   p.ResistantAge,
			ResistantHostVuln:  p.ResistantVuln,
			TolerantHostAge:    p.TolerantAge,
			TolerantHostVuln:   p.TolerantVuln,
			VulnerableHostAge:  p.VulnerableAge,
			VulnerableHostVuln: p.VulnerableVuln,
			Conifer:            p.Conifer,
		}
	}
	return a, nil
}
