package experiment

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/talgya/antcolony/internal/engine"
)

// ErrUnknownParam is returned by Apply for a key it does not recognise.
var ErrUnknownParam = errors.New("unknown parameter")

// Sweep parameter names.
const (
	ParamAlpha         = "ALPHA"
	ParamBeta          = "BETA"
	ParamRho           = "RHO"
	ParamQ             = "Q"
	ParamTau0          = "TAU0"
	ParamEpsilon       = "EPSILON"
	ParamAnts          = "N_ANTS"
	ParamWalls         = "NUM_WALLS"
	ParamFoodSources   = "NUM_FOOD_SOURCES"
	ParamFoodCapacity  = "FOOD_CAPACITY"
	ParamSearchTimeout = "SEARCH_TIMEOUT"
	ParamSeed          = "SEED"
)

type setter func(c *engine.Config, v float64)

var setters = map[string]setter{
	ParamAlpha:         func(c *engine.Config, v float64) { c.Alpha = v },
	ParamBeta:          func(c *engine.Config, v float64) { c.Beta = v },
	ParamRho:           func(c *engine.Config, v float64) { c.Rho = v },
	ParamQ:             func(c *engine.Config, v float64) { c.Q = v },
	ParamTau0:          func(c *engine.Config, v float64) { c.Tau0 = v },
	ParamEpsilon:       func(c *engine.Config, v float64) { c.Epsilon = v },
	ParamAnts:          func(c *engine.Config, v float64) { c.Agents = int(math.Round(v)) },
	ParamWalls:         func(c *engine.Config, v float64) { c.Walls = int(math.Round(v)) },
	ParamFoodSources:   func(c *engine.Config, v float64) { c.FoodSources = int(math.Round(v)) },
	ParamFoodCapacity:  func(c *engine.Config, v float64) { c.FoodCapacity = int(math.Round(v)) },
	ParamSearchTimeout: func(c *engine.Config, v float64) { c.SearchTimeout = int(math.Round(v)) },
	ParamSeed:          func(c *engine.Config, v float64) { c.Seed = int64(v) },
}

// ParamNames returns every recognised parameter name, sorted.
func ParamNames() []string {
	names := make([]string, 0, len(setters))
	for k := range setters {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Params is one point of a sweep, keyed by parameter name.
type Params map[string]float64

// Keys returns the parameter names in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String renders the params as "K=v,K=v" in key order.
func (p Params) String() string {
	parts := make([]string, 0, len(p))
	for _, k := range p.Keys() {
		parts = append(parts, k+"="+strconv.FormatFloat(p[k], 'g', -1, 64))
	}
	return strings.Join(parts, ",")
}

// Range is the list of values one parameter takes in a sweep.
type Range struct {
	Key    string
	Values []float64
}

// ParameterGrid returns the cartesian product of ranges. The first range
// varies slowest. An empty range list yields a single empty point.
func ParameterGrid(ranges ...Range) []Params {
	grid := []Params{{}}
	for _, r := range ranges {
		next := make([]Params, 0, len(grid)*len(r.Values))
		for _, base := range grid {
			for _, v := range r.Values {
				p := make(Params, len(base)+1)
				for k, bv := range base {
					p[k] = bv
				}
				p[r.Key] = v
				next = append(next, p)
			}
		}
		grid = next
	}
	return grid
}

// Apply returns a copy of base with params set, validated.
func Apply(base engine.Config, params Params) (engine.Config, error) {
	cfg := base
	cfg.FoodPositions = append(cfg.FoodPositions[:0:0], base.FoodPositions...)
	for _, k := range params.Keys() {
		set, ok := setters[strings.ToUpper(k)]
		if !ok {
			return engine.Config{}, fmt.Errorf("%w %q", ErrUnknownParam, k)
		}
		set(&cfg, params[k])
	}
	if err := cfg.Validate(); err != nil {
		return engine.Config{}, fmt.Errorf("apply %s: %w", params, err)
	}
	return cfg, nil
}

// ParseRange parses a "KEY=v1,v2,..." flag value.
func ParseRange(s string) (Range, error) {
	key, list, ok := strings.Cut(s, "=")
	if !ok || key == "" || list == "" {
		return Range{}, fmt.Errorf("range %q: want KEY=v1,v2", s)
	}
	key = strings.ToUpper(strings.TrimSpace(key))
	if _, ok := setters[key]; !ok {
		return Range{}, fmt.Errorf("%w %q", ErrUnknownParam, key)
	}
	r := Range{Key: key}
	for _, f := range strings.Split(list, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return Range{}, fmt.Errorf("range %s: %w", key, err)
		}
		r.Values = append(r.Values, v)
	}
	return r, nil
}
