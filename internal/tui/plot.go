package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/nchanged/gridwatch/internal/buffer"
	"github.com/nchanged/gridwatch/internal/chart"
)

// Partial blocks in eighths, index 0 is empty.
var eighths = []rune{' ', '▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

const labelWidth = 7

// columnValues resamples samples onto width columns spanning the reference
// day. Columns outside the sampled range are NaN.
func columnValues(samples []buffer.Sample, day time.Time, width int) []float64 {
	cols := make([]float64, width)
	for i := range cols {
		cols[i] = math.NaN()
	}
	if len(samples) == 0 || width <= 0 {
		return cols
	}

	points := make([]chart.Point, len(samples))
	for i, s := range samples {
		points[i] = chart.Point{X: s.X, Y: s.Y}
	}
	curve := chart.NewMonotone(points)

	first, last := samples[0].X, samples[0].X
	for _, s := range samples {
		first = math.Min(first, s.X)
		last = math.Max(last, s.X)
	}

	start := float64(day.UnixMilli())
	span := float64(24 * time.Hour / time.Millisecond)
	step := span / float64(width)
	for i := range cols {
		x := start + (float64(i)+0.5)*step
		// keep the column holding a lone sample
		if x+step/2 < first || x-step/2 > last {
			continue
		}
		cols[i] = math.Max(curve.At(x), 0)
	}
	return cols
}

// renderPlot draws the combined series as a filled area chart with y axis
// labels in MW.
func renderPlot(samples []buffer.Sample, day time.Time, width, height int) string {
	if height < 2 || width <= labelWidth {
		return ""
	}
	plotWidth := width - labelWidth

	highest := 0.0
	for _, s := range samples {
		highest = math.Max(highest, s.Y)
	}
	ceiling := chart.NiceMax(highest)
	if ceiling <= 0 {
		ceiling = 1
	}

	// the drawn axis runs from 0 to the ceiling, ticks may not end on it
	axis := chart.Bounds{Min: 0, Max: ceiling, Range: ceiling}
	labels := make(map[int]string)
	if b, err := chart.GetBounds(float64(height), chart.HighLow{High: ceiling, Low: 0}, 2, false); err == nil {
		for _, v := range b.Values {
			row := height - 1 - int(math.Round(axis.Project(float64(height-1), v)))
			if row >= 0 && row < height {
				labels[row] = fmt.Sprintf("%*.2f ", labelWidth-1, v)
			}
		}
	}
	labels[0] = fmt.Sprintf("%*.2f ", labelWidth-1, ceiling)

	cols := columnValues(samples, day, plotWidth)
	var sb strings.Builder
	for row := 0; row < height; row++ {
		label, ok := labels[row]
		if !ok {
			label = strings.Repeat(" ", labelWidth)
		}
		sb.WriteString(styleAxis.Render(label))

		// rows count down from the top, level counts up from the bottom
		level := float64(height - 1 - row)
		var line strings.Builder
		for _, v := range cols {
			line.WriteRune(cell(v, ceiling, height, level))
		}
		sb.WriteString(stylePlot.Render(line.String()))
		if row < height-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// cell picks the block for one column at the given row level.
func cell(v, ceiling float64, height int, level float64) rune {
	if math.IsNaN(v) {
		return ' '
	}
	filled := v / ceiling * float64(height)
	switch {
	case filled >= level+1:
		return eighths[8]
	case filled <= level:
		return eighths[0]
	default:
		return eighths[int(math.Round((filled-level)*8))]
	}
}
