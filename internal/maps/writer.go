package maps

import (
	"log/slog"
	"path/filepath"

	"github.com/talgya/forest-bda/internal/landscape"
)

// Writer renders the maps of one epidemic from path templates. Empty
// optional templates are skipped.
type Writer struct {
	Dir           string
	Severity      string
	SRD           string
	NRD           string
	Vulnerability string
}

// SeverityValue returns the severity pixel for an active cell: severity+1
// if it was disturbed this timestep, else 1.
func SeverityValue(layer *landscape.AgentLayer) CellValue {
	return func(c *landscape.Cell) int {
		if c.Disturbed {
			return int(layer.Severity[c.Index]) + 1
		}
		return 1
	}
}

// WriteEpidemic writes every configured map for the agent's epidemic at
// year now and returns the paths written.
func (w *Writer) WriteEpidemic(g *landscape.Grid, agentName string, now int) ([]string, error) {
	layer := g.Layer(agentName)
	outputs := []struct {
		template string
		value    CellValue
	}{
		{w.Severity, SeverityValue(layer)},
		{w.SRD, func(c *landscape.Cell) int { return Percent(c.SiteResourceDom) }},
		{w.NRD, func(c *landscape.Cell) int { return Percent(c.NeighborResourceDom) }},
		{w.Vulnerability, func(c *landscape.Cell) int { return Percent(c.Vulnerability) }},
	}

	var paths []string
	for _, o := range outputs {
		if o.template == "" {
			continue
		}
		path := filepath.Join(w.Dir, ReplaceTemplateVars(o.template, agentName, now))
		if err := WriteGrid(path, g, o.value); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	slog.Debug("maps written", "agent", agentName, "time", now, "count", len(paths))
	return paths, nil
}
