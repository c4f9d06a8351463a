package chart_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/derickschaefer/aasun/internal/chart"
	"github.com/derickschaefer/aasun/internal/model"
	"github.com/derickschaefer/aasun/internal/util"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

// series builds an enabled series with one point per 15-minute slot from 6:00.
func series(values ...int32) model.Series {
	s := model.Series{Index: 2, Name: "PV", Enabled: true}
	for i, v := range values {
		m := 6*60 + i*15
		s.Points = append(s.Points, model.Point{Label: util.FormatClock(m/60, m%60), Value: v})
	}
	return s
}

func i64(v int64) *int64 { return &v }

// ─── Plot ─────────────────────────────────────────────────────────────────────

func TestPlotBasic(t *testing.T) {
	var buf bytes.Buffer
	err := chart.Plot(&buf, series(0, 100, 400, 900, 1600, 900, 400, 100, 0), chart.PlotOptions{Width: 60, Height: 8})
	if err != nil {
		t.Fatalf("Plot: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "PV  (6:00 to 8:00, W)") {
		t.Errorf("unexpected title line: %q", strings.SplitN(out, "\n", 2)[0])
	}
	if !strings.Contains(out, "└") {
		t.Error("expected X axis")
	}
	if !strings.Contains(out, "1.6K") {
		t.Error("expected max tick 1.6K")
	}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	// title + 8 rows + axis + labels
	if len(lines) != 11 {
		t.Errorf("expected 11 lines, got %d", len(lines))
	}
	last := lines[len(lines)-1]
	if !strings.Contains(last, "6:00") || !strings.Contains(last, "8:00") {
		t.Errorf("x labels should show first and last time, got %q", last)
	}
}

func TestPlotCustomTitle(t *testing.T) {
	var buf bytes.Buffer
	_ = chart.Plot(&buf, series(1, 2, 3), chart.PlotOptions{Width: 40, Height: 4, Title: "PV 2024/3/15"})
	if !strings.HasPrefix(buf.String(), "PV 2024/3/15") {
		t.Errorf("title override ignored: %q", buf.String())
	}
}

func TestPlotFlatSeries(t *testing.T) {
	var buf bytes.Buffer
	if err := chart.Plot(&buf, series(5, 5, 5, 5), chart.PlotOptions{Width: 40, Height: 6}); err != nil {
		t.Fatalf("Plot: %v", err)
	}
	if !strings.Contains(buf.String(), "────") {
		t.Error("flat series should draw a horizontal line")
	}
}

func TestPlotRejectsDisabled(t *testing.T) {
	s := series(1, 2, 3)
	s.Enabled = false
	if err := chart.Plot(&bytes.Buffer{}, s, chart.PlotOptions{}); err == nil {
		t.Error("disabled series should fail")
	}
}

func TestPlotTooFewPoints(t *testing.T) {
	if err := chart.Plot(&bytes.Buffer{}, series(7), chart.PlotOptions{}); err == nil {
		t.Error("single point should fail")
	}
}

// ─── Bar ──────────────────────────────────────────────────────────────────────

func TestBarPositive(t *testing.T) {
	var buf bytes.Buffer
	items := []chart.Item{{Label: "Imported", Value: 5200}, {Label: "PV", Value: 12000}}
	if err := chart.Bar(&buf, "Energy day", items, chart.BarOptions{Width: 60, Unit: "Wh"}); err != nil {
		t.Fatalf("Bar: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 || lines[0] != "Energy day" {
		t.Fatalf("unexpected output:\n%s", buf.String())
	}
	if !strings.Contains(lines[1], "5.2K Wh") || !strings.Contains(lines[2], "12.0K Wh") {
		t.Errorf("value labels missing:\n%s", buf.String())
	}
	if strings.Count(lines[2], "█") <= strings.Count(lines[1], "█") {
		t.Error("larger value should draw a longer bar")
	}
	if strings.Contains(buf.String(), "│") {
		t.Error("no baseline expected without negatives")
	}
}

func TestBarNegativeDrawsBaseline(t *testing.T) {
	var buf bytes.Buffer
	items := []chart.Item{{Label: "Imported", Value: 800}, {Label: "Exported", Value: -800}}
	if err := chart.Bar(&buf, "", items, chart.BarOptions{Width: 50}); err != nil {
		t.Fatalf("Bar: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines without a title, got %d", len(lines))
	}
	for _, l := range lines {
		if !strings.Contains(l, "│") {
			t.Errorf("baseline missing in %q", l)
		}
	}
	neg := lines[1]
	if strings.Index(neg, "█") > strings.Index(neg, "│") {
		t.Error("negative bar should extend left of the baseline")
	}
}

func TestBarEmpty(t *testing.T) {
	if err := chart.Bar(&bytes.Buffer{}, "x", nil, chart.BarOptions{}); err == nil {
		t.Error("no items should fail")
	}
}

func TestEnergyItemsSkipsMissing(t *testing.T) {
	e := model.Energy{Scope: model.EnergyDay}
	e.Values[0] = i64(1200)
	e.Values[2] = i64(3400)
	items := chart.EnergyItems(e, model.DefaultSeriesNames())
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Label != "Imported" || items[0].Value != 1200 {
		t.Errorf("item 0: got %+v", items[0])
	}
	if items[1].Label != "Div 1 (est)" || items[1].Value != 3400 {
		t.Errorf("item 1: got %+v", items[1])
	}
}
