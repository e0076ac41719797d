package neighborhood

import (
	"math"
	"testing"

	"github.com/talgya/forest-bda/internal/agent"
	"github.com/talgya/forest-bda/internal/landscape"
)

func offsetSet(offs []landscape.Offset) map[landscape.Offset]bool {
	set := make(map[landscape.Offset]bool, len(offs))
	for _, o := range offs {
		set[o] = true
	}
	return set
}

func TestRingTiersAreNested(t *testing.T) {
	sizes := []int{4, 8, 12, 24}
	var prev map[landscape.Offset]bool
	for _, n := range sizes {
		ring := Ring(n)
		if len(ring) != n {
			t.Fatalf("Ring(%d): got %d offsets", n, len(ring))
		}
		set := offsetSet(ring)
		if len(set) != n {
			t.Fatalf("Ring(%d) has duplicate offsets", n)
		}
		for o := range prev {
			if !set[o] {
				t.Fatalf("Ring(%d) missing %v from previous tier", n, o)
			}
		}
		if prev != nil && len(set) <= len(prev) {
			t.Fatalf("Ring(%d) is not a strict superset", n)
		}
		prev = set
	}
}

func TestRingRoundsDown(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, 0}, {3, 0}, {4, 4}, {7, 4}, {8, 8}, {11, 8}, {12, 12}, {23, 12}, {24, 24}, {100, 24},
	}
	for _, tt := range tests {
		if got := len(Ring(tt.in)); got != tt.want {
			t.Fatalf("Ring(%d): got %d offsets want %d", tt.in, got, tt.want)
		}
	}
}

func TestResourceExcludesCentreAndHonoursRadius(t *testing.T) {
	a := &agent.Agent{NeighborShape: agent.ShapeUniform, NeighborRadius: 300}
	kernel := Resource(a, 100)
	for _, w := range kernel {
		if w.Row == 0 && w.Col == 0 {
			t.Fatalf("centre included")
		}
		if d := Distance(w.Row, w.Col, 100); d > 300 {
			t.Fatalf("offset %v at %gm beyond radius", w.Offset, d)
		}
		if w.Weight != 1 {
			t.Fatalf("uniform weight: got %g", w.Weight)
		}
	}
	// Lattice points with 0 < r² ≤ 9: 28.
	if len(kernel) != 28 {
		t.Fatalf("kernel size: got %d want 28", len(kernel))
	}
}

func TestResourceWeights(t *testing.T) {
	tests := []struct {
		name  string
		shape agent.NeighborShape
		want  float64
	}{
		{"uniform", agent.ShapeUniform, 1},
		{"linear", agent.ShapeLinear, 0.5},
		{"gaussian", agent.ShapeGaussian, math.Exp(-1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &agent.Agent{NeighborShape: tt.shape, NeighborRadius: 2}
			for _, w := range Resource(a, 1) {
				if w.Row == 0 && w.Col == 1 {
					if math.Abs(w.Weight-tt.want) > 1e-9 {
						t.Fatalf("weight at d=1: got %g want %g", w.Weight, tt.want)
					}
					return
				}
			}
			t.Fatalf("offset (0,1) missing")
		})
	}
}

func TestLinearWeightReachesZeroAtRadius(t *testing.T) {
	a := &agent.Agent{NeighborShape: agent.ShapeLinear, NeighborRadius: 2}
	for _, w := range Resource(a, 1) {
		if w.Row == 2 && w.Col == 0 && w.Weight != 0 {
			t.Fatalf("weight at radius: got %g want 0", w.Weight)
		}
		if w.Weight < 0 || w.Weight > 1 {
			t.Fatalf("weight %g outside [0,1]", w.Weight)
		}
	}
}

func TestDispersalTemplates(t *testing.T) {
	for _, tmpl := range []agent.DispersalTemplate{agent.N4, agent.N8, agent.N12, agent.N24} {
		a := &agent.Agent{DispersalTemplate: tmpl}
		if got := len(Dispersal(a, 10, 30)); got != tmpl.RingSize() {
			t.Fatalf("%s: got %d offsets", tmpl, got)
		}
	}
}

func TestDispersalMaxRadius(t *testing.T) {
	// 10 m/yr over 10 years with 50 m cells: radius 100 m, two cells.
	a := &agent.Agent{DispersalTemplate: agent.MaxRadius, DispersalRate: 10}
	kernel := Dispersal(a, 10, 50)
	set := offsetSet(kernel)
	if !set[landscape.Offset{}] {
		t.Fatalf("centre missing from max-radius kernel")
	}
	if !set[landscape.Offset{Row: 2, Col: 0}] {
		t.Fatalf("boundary offset (2,0) missing")
	}
	if set[landscape.Offset{Row: 2, Col: 1}] {
		t.Fatalf("offset (2,1) beyond radius included")
	}
	// Lattice points with r² ≤ 4: 13.
	if len(kernel) != 13 {
		t.Fatalf("kernel size: got %d want 13", len(kernel))
	}
}
