// Package maps writes per-epidemic raster outputs: the severity map and the
// optional resource dominance and vulnerability maps.
package maps

import (
	"fmt"
	"strconv"
	"strings"
)

// Template variables recognised in map path templates.
const (
	AgentNameVar = "{agentName}"
	TimestepVar  = "{timestep}"
)

// ReplaceTemplateVars builds a map path from a template.
func ReplaceTemplateVars(template, agentName string, timestep int) string {
	r := strings.NewReplacer(
		AgentNameVar, agentName,
		TimestepVar, strconv.Itoa(timestep),
	)
	return r.Replace(template)
}

// CheckTemplate rejects templates that would write every timestep to the
// same file, or that use unknown variables.
func CheckTemplate(template string) error {
	if !strings.Contains(template, TimestepVar) {
		return fmt.Errorf("map template %q must contain %s", template, TimestepVar)
	}
	rest := strings.NewReplacer(AgentNameVar, "", TimestepVar, "").Replace(template)
	if i := strings.IndexByte(rest, '{'); i >= 0 {
		if j := strings.IndexByte(rest[i:], '}'); j > 0 {
			return fmt.Errorf("map template %q: unknown variable %s", template, rest[i:i+j+1])
		}
	}
	return nil
}
