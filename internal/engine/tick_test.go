package engine

import (
	"context"
	"errors"
	"testing"
)

func TestEngineRunsEveryTimestep(t *testing.T) {
	e := NewEngine(0, 50, 10)
	var years []int
	e.OnStep = func(year int) error {
		years = append(years, year)
		return nil
	}
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := []int{10, 20, 30, 40, 50}
	if len(years) != len(want) {
		t.Fatalf("years: got %v want %v", years, want)
	}
	for i := range want {
		if years[i] != want[i] {
			t.Fatalf("years: got %v want %v", years, want)
		}
	}
	if e.Year != 50 {
		t.Fatalf("stopped at %d want 50", e.Year)
	}
}

func TestEngineStop(t *testing.T) {
	e := NewEngine(0, 100, 10)
	e.OnStep = func(year int) error {
		if year == 30 {
			e.Stop()
		}
		return nil
	}
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if e.Year != 30 {
		t.Fatalf("stopped at %d want 30", e.Year)
	}
}

func TestEngineStepError(t *testing.T) {
	e := NewEngine(0, 100, 10)
	boom := errors.New("boom")
	e.OnStep = func(year int) error {
		if year == 20 {
			return boom
		}
		return nil
	}
	if err := e.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("got %v want boom", err)
	}
	if e.Year != 20 {
		t.Fatalf("halted at %d want 20", e.Year)
	}
}

func TestEngineCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := NewEngine(0, 100, 10)
	if err := e.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v want context.Canceled", err)
	}
	if e.Year != 0 {
		t.Fatalf("advanced to %d after cancel", e.Year)
	}
}

func TestSteps(t *testing.T) {
	cases := []struct {
		start, end, step, want int
	}{
		{0, 100, 10, 10},
		{0, 95, 10, 9},
		{50, 50, 10, 0},
		{0, 100, 0, 0},
	}
	for _, c := range cases {
		if got := Steps(c.start, c.end, c.step); got != c.want {
			t.Fatalf("Steps(%d, %d, %d): got %d want %d", c.start, c.end, c.step, got, c.want)
		}
	}
}
