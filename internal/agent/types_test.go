package agent

import (
	"strings"
	"testing"
)

func TestParseNames(t *testing.T) {
	if f, err := ParseRandomFunc(" CyclicNormal "); err != nil || f != CyclicNormal {
		t.Fatalf("random func: %v %v", f, err)
	}
	if tt, err := ParseTemporalType("variablepulse"); err != nil || tt != VariablePulse {
		t.Fatalf("temporal type: %v %v", tt, err)
	}
	if s, err := ParseNeighborShape("Gaussian"); err != nil || s != ShapeGaussian {
		t.Fatalf("shape: %v %v", s, err)
	}
	if d, err := ParseDispersalTemplate("12N"); err != nil || d != N12 {
		t.Fatalf("template: %v %v", d, err)
	}
	if _, err := ParseDispersalTemplate("6n"); err == nil || !strings.Contains(err.Error(), "dispersal template") {
		t.Fatalf("unknown template: %v", err)
	}
}

func TestNamesRoundTrip(t *testing.T) {
	for d := MaxRadius; d <= N24; d++ {
		got, err := ParseDispersalTemplate(d.String())
		if err != nil || got != d {
			t.Fatalf("template %v: got %v %v", d, got, err)
		}
	}
}

func TestRingSize(t *testing.T) {
	want := map[DispersalTemplate]int{MaxRadius: 0, N4: 4, N8: 8, N12: 12, N24: 24}
	for d, n := range want {
		if d.RingSize() != n {
			t.Fatalf("%v ring size: got %d want %d", d, d.RingSize(), n)
		}
	}
}

func TestSpeciesParams(t *testing.T) {
	a := &Agent{Species: []*SpeciesParams{{Conifer: true}, nil}}
	if sp, ok := a.SpeciesParams(0); !ok || !sp.Conifer {
		t.Fatalf("host species not found")
	}
	for _, i := range []int{-1, 1, 2} {
		if _, ok := a.SpeciesParams(i); ok {
			t.Fatalf("species %d should be a non-host", i)
		}
	}
}

func validAgent() *Agent {
	return &Agent{
		Name:        "budworm",
		RandFunc:    CyclicUniform,
		MinInterval: 10,
		MaxInterval: 20,
		MinROS:      0,
		MaxROS:      3,
		EndYear:     100,
		Class2SV:    0.33,
		Class3SV:    0.66,
	}
}

func TestValidate(t *testing.T) {
	if err := validAgent().Validate(); err != nil {
		t.Fatalf("valid agent rejected: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(a *Agent)
		wantMsg string
	}{
		{"empty name", func(a *Agent) { a.Name = " " }, "name is empty"},
		{"interval order", func(a *Agent) { a.MaxInterval = 5 }, "interval bounds"},
		{"negative stdev", func(a *Agent) { a.RandFunc = CyclicNormal; a.NormStDev = -1 }, "stdev"},
		{"ros order", func(a *Agent) { a.MinROS = 4 }, "ROS bounds"},
		{"breakpoints", func(a *Agent) { a.Class3SV = 0.1 }, "breakpoints"},
		{"years", func(a *Agent) { a.StartYear = 200 }, "end year"},
		{"neighbor radius", func(a *Agent) { a.NeighborFlag = true }, "neighbor radius"},
		{"dispersal rate", func(a *Agent) { a.Dispersal = true }, "dispersal rate"},
		{"host age", func(a *Agent) { a.Species = []*SpeciesParams{{TolerantHostAge: -1}} }, "negative host age"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := validAgent()
			tt.mutate(a)
			err := a.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantMsg) {
				t.Fatalf("got %v want error containing %q", err, tt.wantMsg)
			}
		})
	}
}
