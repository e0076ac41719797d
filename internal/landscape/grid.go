// Package landscape provides the row/column cell grid, tree cohorts, and the
// per-cell variables shared between disturbance extensions.
package landscape

import "fmt"

// Location is an absolute (row, column) position on the grid.
type Location struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Offset is a displacement relative to a cell.
type Offset struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// WeightedOffset is an offset carrying an influence weight in [0, 1].
type WeightedOffset struct {
	Offset
	Weight float64 `json:"weight"`
}

// Add returns the location displaced by o.
func (l Location) Add(o Offset) Location {
	return Location{Row: l.Row + o.Row, Col: l.Col + o.Col}
}

// Zone marks a cell's eligibility for disturbance by one agent.
type Zone uint8

const (
	ZoneNone Zone = iota // Not part of an outbreak
	ZoneLast             // Disturbed zone of the previous epidemic
	ZoneNew              // Eligible this epidemic
)

func (z Zone) String() string {
	switch z {
	case ZoneNone:
		return "none"
	case ZoneLast:
		return "last"
	case ZoneNew:
		return "new"
	default:
		return "unknown"
	}
}

// Initial values of the published site variables.
const (
	NoEventTime = -10000
	NoNextTime  = 9999
)

// Cell is one landscape site.
type Cell struct {
	Index  int      `json:"index"`
	Loc    Location `json:"loc"`
	Active bool     `json:"active"`

	Cohorts []Cohort `json:"cohorts"`

	// Static host-quality surface supplied with the landscape (0–1).
	Hazard float64 `json:"hazard"`

	// Resource dominance and vulnerability, rewritten before every epidemic.
	SiteResourceDom     float64 `json:"site_resource_dom"`
	NeighborResourceDom float64 `json:"neighbor_resource_dom"`
	Vulnerability       float64 `json:"vulnerability"`

	// Management area map code, if the cell belongs to one.
	Subregion *uint32 `json:"subregion,omitempty"`

	// Published for downstream extensions (harvest, fuels).
	Disturbed       bool        `json:"disturbed"`
	TimeOfLastEvent int         `json:"time_of_last_event"`
	AgentName       string      `json:"agent_name"`
	TimeOfNext      int         `json:"time_of_next"`
	ConiferKills    map[int]int `json:"conifer_kills"` // year → conifer cohorts killed
}

// AgentLayer holds the per-agent site variables, indexed by Cell.Index.
type AgentLayer struct {
	Zone     []Zone
	Severity []uint8
}

// Grid holds the complete landscape state.
type Grid struct {
	Rows       int
	Cols       int
	CellLength float64 // Side length of a cell in metres
	Cells      []*Cell // Row-major, active and inactive
	Species    []Species

	active []*Cell
	layers map[string]*AgentLayer
}

// NewGrid creates a grid of active, empty cells.
func NewGrid(rows, cols int, cellLength float64) *Grid {
	g := &Grid{
		Rows:       rows,
		Cols:       cols,
		CellLength: cellLength,
		Cells:      make([]*Cell, 0, rows*cols),
		layers:     make(map[string]*AgentLayer),
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			g.Cells = append(g.Cells, &Cell{
				Index:           r*cols + c,
				Loc:             Location{Row: r, Col: c},
				Active:          true,
				TimeOfLastEvent: NoEventTime,
				TimeOfNext:      NoNextTime,
				ConiferKills:    make(map[int]int),
			})
		}
	}
	return g
}

// InBounds returns true if loc lies on the grid.
func (g *Grid) InBounds(loc Location) bool {
	return loc.Row >= 0 && loc.Row < g.Rows && loc.Col >= 0 && loc.Col < g.Cols
}

// Get returns the cell at loc, or nil if out of bounds.
func (g *Grid) Get(loc Location) *Cell {
	if !g.InBounds(loc) {
		return nil
	}
	return g.Cells[loc.Row*g.Cols+loc.Col]
}

// SetActive changes a cell's active status.
func (g *Grid) SetActive(loc Location, active bool) {
	if c := g.Get(loc); c != nil {
		c.Active = active
		g.active = nil
	}
}

// Active returns the active cells in row-major order. The slice is cached
// and must not be modified.
func (g *Grid) Active() []*Cell {
	if g.active == nil {
		g.active = make([]*Cell, 0, len(g.Cells))
		for _, c := range g.Cells {
			if c.Active {
				g.active = append(g.active, c)
			}
		}
	}
	return g.active
}

// HasSubregions reports whether any active cell carries management area data.
func (g *Grid) HasSubregions() bool {
	for _, c := range g.Active() {
		if c.Subregion != nil {
			return true
		}
	}
	return false
}

// Layer returns the site variables owned by the named agent, creating them
// on first use.
func (g *Grid) Layer(agentName string) *AgentLayer {
	l, ok := g.layers[agentName]
	if !ok {
		l = &AgentLayer{
			Zone:     make([]Zone, len(g.Cells)),
			Severity: make([]uint8, len(g.Cells)),
		}
		g.layers[agentName] = l
	}
	return l
}

// SetTimeOfNext publishes the next outbreak year on every active cell.
func (g *Grid) SetTimeOfNext(year int) {
	for _, c := range g.Active() {
		c.TimeOfNext = year
	}
}

// ClearDisturbed resets the per-timestep disturbed flag on every active cell.
func (g *Grid) ClearDisturbed() {
	for _, c := range g.Active() {
		c.Disturbed = false
	}
}

// String returns a summary of the grid.
func (g *Grid) String() string {
	return fmt.Sprintf("Grid(%dx%d, cell=%gm, active=%d)", g.Rows, g.Cols, g.CellLength, len(g.Active()))
}
