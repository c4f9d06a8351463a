// Package chart renders history series and energy counters as ASCII
// terminal charts.
//
//   - Plot: line chart of one power series over the day, time labels on X
//   - Bar: horizontal bars, one per labelled value (energy counters,
//     hourly totals), with a zero baseline for negative values
package chart

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/derickschaefer/aasun/internal/model"
)

// ─── Bar ─────────────────────────────────────────────────────────────────────

// Item is one labelled bar.
type Item struct {
	Label string
	Value float64
}

// BarOptions controls horizontal bar chart rendering.
type BarOptions struct {
	// Width is the total character width available for the chart.
	// If 0, auto-detects from $COLUMNS, falls back to 80.
	Width int
	// Unit is appended to every value label ("Wh", "W").
	Unit string
}

// EnergyItems turns the reported counters of e into bar items named after
// the series. Counters the device did not send are skipped.
func EnergyItems(e model.Energy, names model.SeriesNames) []Item {
	var items []Item
	for i, v := range e.Values {
		if v == nil {
			continue
		}
		items = append(items, Item{Label: names[i], Value: float64(*v)})
	}
	return items
}

// Bar renders a horizontal bar chart of items to w.
//
// Output example:
//
//	Energy day 2024/3/15
//	Imported     5.2K Wh  ██████████
//	Exported     -800 Wh       │
func Bar(w io.Writer, title string, items []Item, opts BarOptions) error {
	if len(items) == 0 {
		return fmt.Errorf("chart bar: nothing to render")
	}
	totalWidth := opts.Width
	if totalWidth <= 0 {
		totalWidth = termWidth()
	}
	unit := ""
	if opts.Unit != "" {
		unit = " " + opts.Unit
	}

	minVal, maxVal := 0.0, 0.0
	labelWidth, valWidth := 0, 0
	for _, it := range items {
		minVal = math.Min(minVal, it.Value)
		maxVal = math.Max(maxVal, it.Value)
		if l := len([]rune(it.Label)); l > labelWidth {
			labelWidth = l
		}
		if l := len(formatValue(it.Value) + unit); l > valWidth {
			valWidth = l
		}
	}

	barAreaWidth := totalWidth - labelWidth - valWidth - 4
	if barAreaWidth < 4 {
		barAreaWidth = 4
	}
	valRange := maxVal - minVal
	if valRange == 0 {
		valRange = 1
	}
	zeroPos := int(math.Round(-minVal / valRange * float64(barAreaWidth-1)))

	if title != "" {
		fmt.Fprintln(w, title)
	}
	for _, it := range items {
		fmt.Fprintf(w, "%-*s  %*s  %s\n",
			labelWidth, it.Label,
			valWidth, formatValue(it.Value)+unit,
			buildBar(it.Value, valRange, barAreaWidth, zeroPos, minVal < 0),
		)
	}
	return nil
}

// buildBar renders one bar from a zero baseline at zeroPos. Without negative
// values the baseline sits at the left edge and is not drawn.
func buildBar(val, valRange float64, width, zeroPos int, withAxis bool) string {
	buf := []rune(strings.Repeat(" ", width))
	if withAxis && zeroPos >= 0 && zeroPos < width {
		buf[zeroPos] = '│'
	}
	n := int(math.Round(math.Abs(val) / valRange * float64(width-1)))
	if val >= 0 {
		start := zeroPos
		if withAxis {
			start++
		} else if n < 1 {
			n = 1 // every positive bar stays visible
		}
		for i := start; i < start+n && i < width; i++ {
			buf[i] = '█'
		}
	} else {
		for i := zeroPos - n; i < zeroPos; i++ {
			if i >= 0 {
				buf[i] = '█'
			}
		}
	}
	return strings.TrimRight(string(buf), " ")
}

// ─── Plot ─────────────────────────────────────────────────────────────────────

// PlotOptions controls multi-line ASCII plot rendering.
type PlotOptions struct {
	// Width is the total character width of the chart (including Y-axis label).
	// If 0, auto-detects from $COLUMNS, falls back to 80.
	Width int
	// Height is the number of data rows in the chart body.
	// If 0, defaults to 12.
	Height int
	// Title overrides the default title (series name).
	Title string
}

// Plot renders a multi-line ASCII chart of one series to w. Disabled series
// are rejected rather than drawn as a flat line.
func Plot(w io.Writer, s model.Series, opts PlotOptions) error {
	if !s.Enabled {
		return fmt.Errorf("chart plot: series %d (%s) is not available", s.Index, s.Name)
	}
	if len(s.Points) < 2 {
		return fmt.Errorf("chart plot: need at least 2 points (got %d)", len(s.Points))
	}
	width := opts.Width
	if width <= 0 {
		width = termWidth()
	}
	height := opts.Height
	if height <= 0 {
		height = 12
	}
	title := opts.Title
	if title == "" {
		title = s.Name
	}

	minVal, maxVal := float64(s.Points[0].Value), float64(s.Points[0].Value)
	for _, p := range s.Points[1:] {
		minVal = math.Min(minVal, float64(p.Value))
		maxVal = math.Max(maxVal, float64(p.Value))
	}

	ticks := yTicks(minVal, maxVal, height)
	yLabelWidth := 0
	for _, t := range ticks {
		if l := len(formatValue(t)); l > yLabelWidth {
			yLabelWidth = l
		}
	}
	plotWidth := width - yLabelWidth - 2
	if plotWidth < 10 {
		plotWidth = 10
	}
	// Never stretch: with fewer points than columns, one column per point.
	if len(s.Points) < plotWidth {
		plotWidth = len(s.Points)
	}

	cols := sampleCols(s.Points, plotWidth)
	grid := buildGrid(cols, minVal, maxVal, height)

	first, last := s.Points[0].Label, s.Points[len(s.Points)-1].Label
	fmt.Fprintf(w, "%s  (%s to %s, W)\n", title, first, last)

	for row := 0; row < height; row++ {
		label := ""
		for _, t := range ticks {
			if math.Abs(rowForValue(t, minVal, maxVal, height)-float64(row)) < 0.5 {
				label = formatValue(t)
				break
			}
		}
		axisCh := " "
		if label != "" {
			axisCh = "┤"
		}
		fmt.Fprintf(w, "%*s%s%s\n", yLabelWidth, label, axisCh, string(grid[row]))
	}

	fmt.Fprintf(w, "%s└%s\n", strings.Repeat(" ", yLabelWidth), strings.Repeat("─", plotWidth))
	fmt.Fprintf(w, "%s %s\n", strings.Repeat(" ", yLabelWidth), xAxisLabels(s.Points, plotWidth))
	return nil
}

// ─── Grid building ────────────────────────────────────────────────────────────

// sampleCols reduces points to exactly n columns, each the mean of its bucket.
func sampleCols(pts []model.Point, n int) []float64 {
	total := len(pts)
	cols := make([]float64, n)
	for col := 0; col < n; col++ {
		lo := col * total / n
		hi := (col + 1) * total / n
		if hi <= lo {
			hi = lo + 1
		}
		var sum float64
		for _, p := range pts[lo:hi] {
			sum += float64(p.Value)
		}
		cols[col] = sum / float64(hi-lo)
	}
	return cols
}

// rowForValue returns the float row index (0=top=max) for a given value.
func rowForValue(v, minVal, maxVal float64, height int) float64 {
	if maxVal == minVal {
		return float64(height) / 2
	}
	return (maxVal - v) / (maxVal - minVal) * float64(height-1)
}

// buildGrid draws columns into a height×width rune grid, joining adjacent
// points with box-drawing characters.
func buildGrid(cols []float64, minVal, maxVal float64, height int) [][]rune {
	grid := make([][]rune, height)
	for r := range grid {
		grid[r] = []rune(strings.Repeat(" ", len(cols)))
	}

	rowOf := make([]int, len(cols))
	for col, v := range cols {
		r := int(math.Round(rowForValue(v, minVal, maxVal, height)))
		rowOf[col] = max(0, min(height-1, r))
	}

	for col, r := range rowOf {
		if col == 0 {
			grid[r][col] = '─'
			continue
		}
		prev := rowOf[col-1]
		switch {
		case prev == r:
			grid[r][col] = '─'
		case prev > r: // rising: previous point is lower on screen
			grid[prev][col] = '╯'
			grid[r][col] = '╭'
			for fill := r + 1; fill < prev; fill++ {
				grid[fill][col] = '│'
			}
		default: // falling
			grid[prev][col] = '╮'
			grid[r][col] = '╰'
			for fill := prev + 1; fill < r; fill++ {
				grid[fill][col] = '│'
			}
		}
	}
	return grid
}

// ─── Axis helpers ─────────────────────────────────────────────────────────────

// yTicks returns 3–4 evenly-spaced tick values for the Y axis.
func yTicks(minVal, maxVal float64, height int) []float64 {
	if maxVal == minVal {
		return []float64{minVal}
	}
	nTicks := 4
	if height <= 6 {
		nTicks = 3
	}
	ticks := make([]float64, nTicks)
	for i := range ticks {
		ticks[i] = minVal + float64(i)*(maxVal-minVal)/float64(nTicks-1)
	}
	return ticks
}

// xAxisLabels places the first, middle and last time labels under the plot.
func xAxisLabels(pts []model.Point, plotWidth int) string {
	buf := []rune(strings.Repeat(" ", plotWidth))
	writeAt := func(pos int, s string) {
		for i, ch := range s {
			if pos+i >= 0 && pos+i < len(buf) {
				buf[pos+i] = ch
			}
		}
	}
	start := pts[0].Label
	mid := pts[len(pts)/2].Label
	end := pts[len(pts)-1].Label
	writeAt(0, start)
	if plotWidth >= len(start)+len(mid)+len(end)+2 {
		writeAt(plotWidth/2-len(mid)/2, mid)
	}
	writeAt(plotWidth-len(end), end)
	return strings.TrimRight(string(buf), " ")
}

// ─── Utilities ────────────────────────────────────────────────────────────────

// formatValue formats watts or watt-hours compactly: integers below 1000,
// one decimal with K or M above.
func formatValue(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1e6:
		return strconv.FormatFloat(v/1e6, 'f', 1, 64) + "M"
	case abs >= 1e3:
		return strconv.FormatFloat(v/1e3, 'f', 1, 64) + "K"
	default:
		return strconv.FormatFloat(math.Round(v), 'f', 0, 64)
	}
}

// termWidth returns the terminal width from $COLUMNS, defaulting to 80.
func termWidth() int {
	if cols := os.Getenv("COLUMNS"); cols != "" {
		if n, err := strconv.Atoi(cols); err == nil && n > 20 {
			return n
		}
	}
	return 80
}
