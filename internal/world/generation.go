// Terrain generation: food placement, then obstacles, then food cells.
// Placement is best-effort with bounded retries; a crowded grid simply ends
// up with fewer walls or sources than requested.
package world

import (
	"log/slog"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// maxPlacementAttempts bounds the retries for each wall segment or food source.
const maxPlacementAttempts = 30

// WallLayout selects how obstacles are generated.
type WallLayout uint8

const (
	LayoutSegments WallLayout = iota // Random horizontal/vertical segments
	LayoutNoise                      // Simplex-noise blobs above a threshold
)

// String returns the layout name.
func (l WallLayout) String() string {
	switch l {
	case LayoutSegments:
		return "segments"
	case LayoutNoise:
		return "noise"
	default:
		return "unknown"
	}
}

// ParseWallLayout maps a layout name back to its value.
func ParseWallLayout(s string) (WallLayout, bool) {
	switch s {
	case "segments", "":
		return LayoutSegments, true
	case "noise":
		return LayoutNoise, true
	default:
		return LayoutSegments, false
	}
}

// GenConfig holds terrain generation parameters.
type GenConfig struct {
	Width  int
	Height int
	Nest   Coord

	FoodPositions []Coord // Preset sources; random placement when empty
	FoodSources   int     // Number of random sources
	FoodCapacity  int     // Units per source

	Layout         WallLayout
	Walls          int // Number of wall segments (segments layout)
	WallMinLen     int // Inclusive segment length range
	WallMaxLen     int
	NoiseThreshold float64 // Normalized noise level above which a cell is a wall (noise layout)
	NoiseSeed      int64
}

// DefaultGenConfig returns the 50×50 layout the colony runs on by default.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Width:          50,
		Height:         50,
		Nest:           Coord{X: 25, Y: 25},
		FoodSources:    2,
		FoodCapacity:   200,
		Layout:         LayoutSegments,
		Walls:          20,
		WallMinLen:     5,
		WallMaxLen:     15,
		NoiseThreshold: 0.68,
	}
}

// Placement reports how much of the requested layout was actually placed.
type Placement struct {
	FoodRequested  int
	FoodPlaced     int
	WallsRequested int
	WallsPlaced    int // Segments for LayoutSegments, cells for LayoutNoise
}

// Generate builds a terrain from cfg, drawing every random choice from rng.
func Generate(cfg GenConfig, rng *rand.Rand) (*Terrain, Placement) {
	t := NewTerrain(cfg.Width, cfg.Height, cfg.Nest)

	var p Placement
	foods := chooseFood(t, cfg, rng, &p)

	switch cfg.Layout {
	case LayoutNoise:
		placeNoiseWalls(t, cfg, foods, &p)
	default:
		placeSegmentWalls(t, cfg, foods, rng, &p)
	}

	for _, f := range foods {
		if t.AddFood(f, cfg.FoodCapacity) {
			p.FoodPlaced++
		}
	}

	if p.FoodPlaced < p.FoodRequested || p.WallsPlaced < p.WallsRequested {
		slog.Debug("partial terrain placement",
			"food", p.FoodPlaced, "food_requested", p.FoodRequested,
			"walls", p.WallsPlaced, "walls_requested", p.WallsRequested,
		)
	}
	return t, p
}

// chooseFood picks source coordinates before walls exist so that walls can
// route around them.
func chooseFood(t *Terrain, cfg GenConfig, rng *rand.Rand, p *Placement) []Coord {
	taken := make(map[Coord]bool)
	var foods []Coord

	if len(cfg.FoodPositions) > 0 {
		p.FoodRequested = len(cfg.FoodPositions)
		for _, c := range cfg.FoodPositions {
			if !t.InBounds(c) || c == t.nest || taken[c] {
				continue
			}
			taken[c] = true
			foods = append(foods, c)
		}
		return foods
	}

	p.FoodRequested = cfg.FoodSources
	if t.width == 0 || t.height == 0 {
		return nil
	}
	for i := 0; i < cfg.FoodSources; i++ {
		for attempt := 0; attempt < maxPlacementAttempts; attempt++ {
			c := Coord{X: rng.Intn(t.width), Y: rng.Intn(t.height)}
			if c == t.nest || taken[c] {
				continue
			}
			taken[c] = true
			foods = append(foods, c)
			break
		}
	}
	return foods
}

// placeSegmentWalls scatters straight wall segments. Each segment gets a
// bounded number of tries; overlapping the nest, a food source or another
// wall rejects the try.
func placeSegmentWalls(t *Terrain, cfg GenConfig, foods []Coord, rng *rand.Rand, p *Placement) {
	p.WallsRequested = cfg.Walls
	if cfg.Walls <= 0 || cfg.WallMinLen <= 0 || cfg.WallMaxLen < cfg.WallMinLen {
		return
	}

	reserved := make(map[Coord]bool, len(foods))
	for _, f := range foods {
		reserved[f] = true
	}

	cells := make([]Coord, 0, cfg.WallMaxLen)
	for i := 0; i < cfg.Walls; i++ {
		for attempt := 0; attempt < maxPlacementAttempts; attempt++ {
			length := cfg.WallMinLen + rng.Intn(cfg.WallMaxLen-cfg.WallMinLen+1)
			cells = cells[:0]
			if rng.Float64() < 0.5 {
				if length > t.width || t.height == 0 {
					continue
				}
				y := rng.Intn(t.height)
				x0 := rng.Intn(t.width - length + 1)
				for k := 0; k < length; k++ {
					cells = append(cells, Coord{X: x0 + k, Y: y})
				}
			} else {
				if length > t.height || t.width == 0 {
					continue
				}
				x := rng.Intn(t.width)
				y0 := rng.Intn(t.height - length + 1)
				for k := 0; k < length; k++ {
					cells = append(cells, Coord{X: x, Y: y0 + k})
				}
			}

			if !segmentFree(t, cells, reserved) {
				continue
			}
			for _, c := range cells {
				t.SetWall(c)
			}
			p.WallsPlaced++
			break
		}
	}
}

func segmentFree(t *Terrain, cells []Coord, reserved map[Coord]bool) bool {
	for _, c := range cells {
		if reserved[c] || t.Kind(c) != CellEmpty {
			return false
		}
	}
	return true
}

// placeNoiseWalls marks every cell whose fractal noise exceeds the
// threshold as a wall, leaving the nest and food sources open.
func placeNoiseWalls(t *Terrain, cfg GenConfig, foods []Coord, p *Placement) {
	reserved := make(map[Coord]bool, len(foods))
	for _, f := range foods {
		reserved[f] = true
	}

	noise := opensimplex.NewNormalized(cfg.NoiseSeed)
	for y := 0; y < t.height; y++ {
		for x := 0; x < t.width; x++ {
			c := Coord{X: x, Y: y}
			if reserved[c] {
				continue
			}
			if octaveNoise(noise, float64(x), float64(y), 3, 0.12, 0.5) > cfg.NoiseThreshold {
				if t.SetWall(c) {
					p.WallsPlaced++
				}
			}
		}
	}
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
