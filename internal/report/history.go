// Package report accumulates per-timestep epidemic statistics over a run
// and renders them as a summary chart.
package report

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"gonum.org/v1/gonum/floats"

	"github.com/talgya/forest-bda/internal/epidemic"
)

// History holds one value per timestep per agent. Timesteps without an
// epidemic stay at zero.
type History struct {
	Agents []string
	Years  []float64

	damaged map[string][]float64
	killed  map[string][]float64
	biomass map[string][]float64
}

// Totals summarises one agent's run.
type Totals struct {
	Epidemics     int
	SitesDamaged  float64
	CohortsKilled float64
	BiomassKilled float64
	PeakDamaged   float64
}

// NewHistory creates an empty history for the named agents.
func NewHistory(agents []string) *History {
	h := &History{
		Agents:  agents,
		damaged: make(map[string][]float64, len(agents)),
		killed:  make(map[string][]float64, len(agents)),
		biomass: make(map[string][]float64, len(agents)),
	}
	return h
}

// AddYear opens a new timestep column.
func (h *History) AddYear(year int) {
	h.Years = append(h.Years, float64(year))
	for _, name := range h.Agents {
		h.damaged[name] = append(h.damaged[name], 0)
		h.killed[name] = append(h.killed[name], 0)
		h.biomass[name] = append(h.biomass[name], 0)
	}
}

// Record adds an epidemic outcome to the current timestep column.
func (h *History) Record(o *epidemic.Outcome) error {
	n := len(h.Years)
	if n == 0 || h.Years[n-1] != float64(o.Time) {
		return fmt.Errorf("outcome at year %d does not match current timestep", o.Time)
	}
	if _, ok := h.damaged[o.AgentName]; !ok {
		return fmt.Errorf("unknown agent %q", o.AgentName)
	}
	h.damaged[o.AgentName][n-1] += float64(o.SitesDamaged)
	h.killed[o.AgentName][n-1] += float64(o.CohortsKilled)
	h.biomass[o.AgentName][n-1] += float64(o.BiomassKilled)
	return nil
}

// Totals returns the run totals for one agent.
func (h *History) Totals(agentName string) Totals {
	damaged := h.damaged[agentName]
	t := Totals{
		SitesDamaged:  floats.Sum(damaged),
		CohortsKilled: floats.Sum(h.killed[agentName]),
		BiomassKilled: floats.Sum(h.biomass[agentName]),
	}
	if len(damaged) > 0 {
		t.PeakDamaged = floats.Max(damaged)
	}
	for _, v := range damaged {
		if v > 0 {
			t.Epidemics++
		}
	}
	return t
}

// LogSummary writes one summary line per agent.
func (h *History) LogSummary() {
	for _, name := range h.Agents {
		t := h.Totals(name)
		slog.Info("agent summary",
			"agent", name,
			"damaging_epidemics", t.Epidemics,
			"sites_damaged", humanize.Comma(int64(t.SitesDamaged)),
			"cohorts_killed", humanize.Comma(int64(t.CohortsKilled)),
			"biomass_killed", humanize.Comma(int64(t.BiomassKilled)),
			"peak_sites", int64(t.PeakDamaged),
		)
	}
}

var palette = []drawing.Color{
	chart.ColorBlue,
	chart.ColorRed,
	chart.ColorGreen,
	chart.ColorOrange,
	{R: 128, G: 0, B: 128, A: 255},
}

// Render draws damaged sites (solid) and cohorts killed (dashed) per
// timestep for every agent as a PNG.
func (h *History) Render(w io.Writer) error {
	if len(h.Years) == 0 {
		return fmt.Errorf("no timesteps to chart")
	}

	yMax := 1.0
	var series []chart.Series
	for i, name := range h.Agents {
		color := palette[i%len(palette)]
		series = append(series,
			chart.ContinuousSeries{
				Name:    name + " sites damaged",
				XValues: h.Years,
				YValues: h.damaged[name],
				Style:   chart.Style{StrokeColor: color, StrokeWidth: 2.0},
			},
			chart.ContinuousSeries{
				Name:    name + " cohorts killed",
				XValues: h.Years,
				YValues: h.killed[name],
				Style:   chart.Style{StrokeColor: color, StrokeWidth: 2.0, StrokeDashArray: []float64{5.0, 5.0}},
			},
		)
		yMax = max(yMax, floats.Max(h.damaged[name]), floats.Max(h.killed[name]))
	}

	xMin, xMax := h.Years[0], h.Years[len(h.Years)-1]
	if xMax == xMin {
		xMax = xMin + 1
	}

	graph := chart.Chart{
		Title:  "Epidemic damage per timestep",
		Width:  960,
		Height: 480,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:  "Year",
			Style: chart.Style{FontSize: 10.0},
			Range: &chart.ContinuousRange{Min: xMin, Max: xMax},
			ValueFormatter: func(v interface{}) string {
				return fmt.Sprintf("%d", int(v.(float64)))
			},
		},
		YAxis: chart.YAxis{
			Name:  "Count",
			Style: chart.Style{FontSize: 10.0},
			Range: &chart.ContinuousRange{Min: 0, Max: yMax * 1.05},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.LegendLeft(&graph)}

	return graph.Render(chart.PNG, w)
}

// WritePNG renders the chart to path.
func (h *History) WritePNG(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := h.Render(f); err != nil {
		f.Close()
		return fmt.Errorf("render %s: %w", path, err)
	}
	return f.Close()
}
