package experiment

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
)

// WriteCSV writes one row per sample of every result. Parameter columns
// cover the union of keys across results, sorted; a run without a key
// leaves its cell empty.
func WriteCSV(w io.Writer, results []*Result) error {
	keySet := make(map[string]bool)
	for _, r := range results {
		for k := range r.Params {
			keySet[k] = true
		}
	}
	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cw := csv.NewWriter(w)
	header := []string{"tick", "time_seconds", "food_collected", "throughput", "seed"}
	for _, k := range keys {
		header = append(header, "param_"+k)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, r := range results {
		seed := strconv.FormatInt(r.Seed, 10)
		for _, s := range r.Samples {
			row := []string{
				strconv.FormatUint(s.Tick, 10),
				formatFloat(s.TimeSeconds),
				strconv.Itoa(s.Collected),
				formatFloat(s.Throughput),
				seed,
			}
			for _, k := range keys {
				v, ok := r.Params[k]
				if !ok {
					row = append(row, "")
					continue
				}
				row = append(row, formatFloat(v))
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("write csv row: %w", err)
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteComparisonCSV writes one row per baseline comparison.
func WriteComparisonCSV(w io.Writer, comps []Comparison) error {
	cw := csv.NewWriter(w)
	header := []string{
		"num_walls", "trial", "seed", "food_x", "food_y", "reachable",
		"astar_steps", "astar_explored", "astar_time_seconds",
		"ant_ticks_to_find", "ant_best_steps", "ant_ticks",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, c := range comps {
		first := ""
		if c.ColonyFirstPickup != nil {
			first = strconv.FormatUint(*c.ColonyFirstPickup, 10)
		}
		row := []string{
			strconv.Itoa(c.Walls),
			strconv.Itoa(c.Trial),
			strconv.FormatInt(c.Seed, 10),
			strconv.Itoa(c.Food.X),
			strconv.Itoa(c.Food.Y),
			strconv.FormatBool(c.Reachable),
			strconv.Itoa(c.AStarSteps),
			strconv.Itoa(c.AStarExplored),
			formatFloat(c.AStarTime.Seconds()),
			first,
			strconv.Itoa(c.ColonyBestSteps),
			strconv.FormatUint(c.ColonyTicks, 10),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
