// Yield field generation. Uniform orchards place the same yield in every
// harvestable cell; simplex orchards modulate it with layered noise so some
// rows ripen heavier than others.
package world

import (
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// Distribution selects how initial yield is spread across the orchard.
type Distribution string

const (
	DistributionUniform Distribution = "uniform"
	DistributionSimplex Distribution = "simplex"
)

// GenConfig holds field generation parameters.
type GenConfig struct {
	Cols         int
	Rows         int
	Seed         int64        // 0 = random
	BaseYield    float64      // Mean yield per harvestable cell
	Distribution Distribution // uniform or simplex
	Frequency    float64      // Noise frequency for simplex fields
	Variance     float64      // 0.0–1.0 swing around BaseYield for simplex fields
}

// DefaultGenConfig returns the standard orchard used by the CLI.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Cols:         10,
		Rows:         8,
		BaseYield:    50,
		Distribution: DistributionUniform,
		Frequency:    0.15,
		Variance:     0.5,
	}
}

// Generate creates a yield field. Only harvestable cells receive yield.
func Generate(cfg GenConfig) *Field {
	g := Grid{Cols: cfg.Cols, Rows: cfg.Rows}
	f := NewField(g)

	var noise opensimplex.Noise
	if cfg.Distribution == DistributionSimplex {
		seed := cfg.Seed
		if seed == 0 {
			seed = rand.Int63()
		}
		noise = opensimplex.NewNormalized(seed)
	}

	for r := 0; r < g.Rows; r++ {
		for c := 1; c <= g.Cols-2; c++ {
			yield := cfg.BaseYield
			if noise != nil {
				n := octaveNoise(noise, float64(c), float64(r), 3, cfg.Frequency, 0.5)
				// n is in [0,1]; map to [1-Variance, 1+Variance].
				yield *= 1.0 - cfg.Variance + 2*cfg.Variance*n
			}
			f.SetYield(Coord{X: c, Y: r}, yield)
		}
	}

	return f
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
