// Package engine provides the timestep loop and the per-agent epidemic
// driver that runs inside it.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// Engine advances model time in fixed timesteps from StartYear to EndYear.
type Engine struct {
	Year      int // Most recent year processed
	StartYear int
	EndYear   int
	Timestep  int // Years per step

	// Called once per timestep with the new year, populated during setup.
	OnStep func(year int) error

	running atomic.Bool
}

// NewEngine creates an engine positioned at start.
func NewEngine(start, end, timestep int) *Engine {
	return &Engine{
		Year:      start,
		StartYear: start,
		EndYear:   end,
		Timestep:  timestep,
	}
}

// Run steps the engine until EndYear is reached, Stop is called, or ctx is
// cancelled. A step error halts the run.
func (e *Engine) Run(ctx context.Context) error {
	e.running.Store(true)
	defer e.running.Store(false)
	slog.Info("simulation engine started", "year", e.Year, "end", e.EndYear, "timestep", e.Timestep)

	for e.running.Load() && e.Year+e.Timestep <= e.EndYear {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.step(); err != nil {
			return err
		}
	}

	slog.Info("simulation engine stopped", "year", e.Year)
	return nil
}

// Stop halts the loop after the current step.
func (e *Engine) Stop() {
	e.running.Store(false)
}

func (e *Engine) step() error {
	e.Year += e.Timestep
	if e.OnStep == nil {
		return nil
	}
	if err := e.OnStep(e.Year); err != nil {
		return fmt.Errorf("year %d: %w", e.Year, err)
	}
	return nil
}

// Steps returns the number of timesteps between start and end.
func Steps(start, end, timestep int) int {
	if timestep <= 0 || end <= start {
		return 0
	}
	return (end - start) / timestep
}
