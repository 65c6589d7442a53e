package experiment

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/wcharczuk/go-chart/v2"
)

// ErrNotEnoughData is returned when a chart would have fewer than two
// distinct x values.
var ErrNotEnoughData = errors.New("not enough data to chart")

// WriteThroughputChart renders window throughput over simulated time, one
// line per run, as PNG.
func WriteThroughputChart(w io.Writer, results []*Result) error {
	var series []chart.Series
	var ys []float64
	xs := make(map[float64]bool)
	for i, r := range results {
		if len(r.Samples) == 0 {
			continue
		}
		s := chart.ContinuousSeries{
			Name:  seriesName(r, i),
			Style: chart.Style{StrokeColor: chart.GetDefaultColor(i), StrokeWidth: 2.0},
		}
		for _, p := range r.Samples {
			s.XValues = append(s.XValues, p.TimeSeconds)
			s.YValues = append(s.YValues, p.Throughput)
			ys = append(ys, p.Throughput)
			xs[p.TimeSeconds] = true
		}
		series = append(series, s)
	}
	if len(xs) < 2 {
		return ErrNotEnoughData
	}

	graph := chart.Chart{
		Title:  "Throughput over time",
		Width:  1024,
		Height: 512,
		XAxis: chart.XAxis{
			Name:  "Time (s)",
			Style: chart.Style{FontSize: 10.0},
		},
		YAxis: chart.YAxis{
			Name:  "Food per second",
			Style: chart.Style{FontSize: 10.0},
			Range: axisRange(ys),
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render throughput chart: %w", err)
	}
	return nil
}

func seriesName(r *Result, i int) string {
	if len(r.Params) == 0 {
		return fmt.Sprintf("run %d (seed %d)", i+1, r.Seed)
	}
	return fmt.Sprintf("%s seed=%d", r.Params, r.Seed)
}

// WallSummary averages the comparisons for one wall count.
type WallSummary struct {
	Walls           int
	AStarSteps      float64 // Over reachable trials
	ColonyBestSteps float64 // Over trials with a tour
	ColonyFirstFind float64 // Ticks, over trials with a pickup
}

// Summarize groups comparisons by wall count, ascending.
func Summarize(comps []Comparison) []WallSummary {
	type acc struct {
		astar, best, find    float64
		nAstar, nBest, nFind int
	}
	byWalls := make(map[int]*acc)
	for _, c := range comps {
		a := byWalls[c.Walls]
		if a == nil {
			a = &acc{}
			byWalls[c.Walls] = a
		}
		if c.Reachable {
			a.astar += float64(c.AStarSteps)
			a.nAstar++
		}
		if c.ColonyBestSteps > 0 {
			a.best += float64(c.ColonyBestSteps)
			a.nBest++
		}
		if c.ColonyFirstPickup != nil {
			a.find += float64(*c.ColonyFirstPickup)
			a.nFind++
		}
	}

	out := make([]WallSummary, 0, len(byWalls))
	for walls, a := range byWalls {
		out = append(out, WallSummary{
			Walls:           walls,
			AStarSteps:      mean(a.astar, a.nAstar),
			ColonyBestSteps: mean(a.best, a.nBest),
			ColonyFirstFind: mean(a.find, a.nFind),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Walls < out[j].Walls })
	return out
}

func mean(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// WriteComparisonChart renders mean path length against wall count for
// A* and the colony's best tour, plus the colony's time to first find.
func WriteComparisonChart(w io.Writer, comps []Comparison) error {
	summary := Summarize(comps)
	if len(summary) < 2 {
		return ErrNotEnoughData
	}

	var walls, astarSteps, colonySteps, firstFind []float64
	for _, s := range summary {
		walls = append(walls, float64(s.Walls))
		astarSteps = append(astarSteps, s.AStarSteps)
		colonySteps = append(colonySteps, s.ColonyBestSteps)
		firstFind = append(firstFind, s.ColonyFirstFind)
	}

	graph := chart.Chart{
		Title:  "A* vs ant colony",
		Width:  1024,
		Height: 512,
		XAxis: chart.XAxis{
			Name:  "Number of walls",
			Style: chart.Style{FontSize: 10.0},
			ValueFormatter: func(v interface{}) string {
				return fmt.Sprintf("%d", int(v.(float64)))
			},
		},
		YAxis: chart.YAxis{
			Name:  "Path length (cells)",
			Style: chart.Style{FontSize: 10.0},
			Range: axisRange(astarSteps, colonySteps),
		},
		YAxisSecondary: chart.YAxis{
			Name:  "Ticks to first find",
			Style: chart.Style{FontSize: 10.0},
			Range: axisRange(firstFind),
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "A* path",
				XValues: walls,
				YValues: astarSteps,
				Style:   chart.Style{StrokeColor: chart.ColorBlue, StrokeWidth: 3.0},
			},
			chart.ContinuousSeries{
				Name:    "Colony best tour",
				XValues: walls,
				YValues: colonySteps,
				Style:   chart.Style{StrokeColor: chart.ColorRed, StrokeWidth: 3.0},
			},
			chart.ContinuousSeries{
				Name:    "Colony first find",
				YAxis:   chart.YAxisSecondary,
				XValues: walls,
				YValues: firstFind,
				Style:   chart.Style{StrokeColor: chart.ColorOrange, StrokeWidth: 2.0, StrokeDashArray: []float64{5.0, 5.0}},
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render comparison chart: %w", err)
	}
	return nil
}

// axisRange spans 0 to a little above the largest value. Flat or all-zero
// data still gets a non-empty range.
func axisRange(values ...[]float64) *chart.ContinuousRange {
	top := 0.0
	for _, vs := range values {
		for _, v := range vs {
			top = max(top, v)
		}
	}
	return &chart.ContinuousRange{Min: 0, Max: max(1, top*1.1)}
}
