// Landscape generation using layered simplex noise.
// Generates an activity mask, a host-quality surface, and species presence
// layers, then seeds each active cell with age cohorts.
package landscape

import (
	"math"
	"math/rand"
	"sort"

	opensimplex "github.com/ojrac/opensimplex-go"
	"gonum.org/v1/gonum/stat"
)

// GenConfig holds landscape generation parameters.
type GenConfig struct {
	Rows             int
	Cols             int
	CellLength       float64   // metres
	Seed             int64     // Random seed (0 = random)
	InactiveFraction float64   // Share of inactive cells (0.0–1.0), up to ties in the noise field
	Subregions       int       // Management areas laid out as column bands (0 = none)
	Species          []Species // Index is assigned from position
	BiomassCohorts   bool      // Cohorts carry biomass
}

// DefaultGenConfig returns a reasonable starting configuration.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Rows:             60,
		Cols:             60,
		CellLength:       100,
		InactiveFraction: 0.1,
		Subregions:       3,
		BiomassCohorts:   true,
		Species: []Species{
			{Name: "abiebals", Longevity: 150},
			{Name: "piceglau", Longevity: 250},
			{Name: "betupapy", Longevity: 120},
			{Name: "poputrem", Longevity: 100},
		},
	}
}

// Generate creates a landscape with cohorts and a hazard surface.
func Generate(cfg GenConfig) *Grid {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	rng := rand.New(rand.NewSource(seed + 100))

	activeNoise := opensimplex.NewNormalized(seed)
	hazardNoise := opensimplex.NewNormalized(seed + 1)

	g := NewGrid(cfg.Rows, cfg.Cols, cfg.CellLength)
	g.Species = make([]Species, len(cfg.Species))
	speciesNoise := make([]opensimplex.Noise, len(cfg.Species))
	for i, sp := range cfg.Species {
		sp.Index = i
		g.Species[i] = sp
		speciesNoise[i] = opensimplex.NewNormalized(seed + 10 + int64(i))
	}

	activity := make([]float64, len(g.Cells))
	for i, c := range g.Cells {
		activity[i] = octaveNoise(activeNoise, float64(c.Loc.Col), float64(c.Loc.Row), 2, 0.1, 0.5)
	}
	threshold := inactiveThreshold(activity, cfg.InactiveFraction)

	for i, c := range g.Cells {
		x, y := float64(c.Loc.Col), float64(c.Loc.Row)

		if activity[i] < threshold {
			c.Active = false
			continue
		}

		c.Hazard = clamp01(octaveNoise(hazardNoise, x, y, 4, 0.06, 0.5))

		if cfg.Subregions > 0 {
			code := uint32(1 + c.Loc.Col*cfg.Subregions/cfg.Cols)
			c.Subregion = &code
		}

		for i, sp := range g.Species {
			presence := octaveNoise(speciesNoise[i], x, y, 3, 0.08, 0.5)
			if presence < 0.45 {
				continue
			}
			// Denser presence supports more age classes.
			classes := 1 + int((presence-0.45)*6)
			for k := 0; k < classes; k++ {
				age := ageClass(rng, sp.Longevity)
				co := Cohort{Species: sp.Index, Age: age}
				if cfg.BiomassCohorts {
					co.HasBiomass = true
					co.Biomass = biomassForAge(rng, age, sp.Longevity)
				}
				g.AddCohort(c, co)
			}
		}
	}
	g.active = nil

	return g
}

// inactiveThreshold returns the activity value below which a cell is
// inactive: the fraction quantile of the field.
func inactiveThreshold(activity []float64, fraction float64) float64 {
	if fraction <= 0 || len(activity) == 0 {
		return math.Inf(-1)
	}
	sorted := append([]float64(nil), activity...)
	sort.Float64s(sorted)
	return stat.Quantile(math.Min(fraction, 1), stat.Empirical, sorted, nil)
}

// ageClass draws a cohort age rounded to a decade, between 10 and longevity.
func ageClass(rng *rand.Rand, longevity int) int {
	decades := longevity / 10
	if decades < 1 {
		decades = 1
	}
	return (1 + rng.Intn(decades)) * 10
}

// biomassForAge follows a saturating growth curve with some noise.
func biomassForAge(rng *rand.Rand, age, longevity int) int64 {
	if longevity <= 0 {
		return 0
	}
	maturity := 1 - math.Exp(-3*float64(age)/float64(longevity))
	return int64(15000 * maturity * (0.8 + 0.4*rng.Float64()))
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
