// Package analyze computes statistical summaries and trend analysis over
// history series. All functions are pure; no I/O.
package analyze

import (
	"fmt"
	"math"
	"sort"

	"github.com/derickschaefer/aasun/internal/model"
	"github.com/derickschaefer/aasun/internal/util"
)

// SlotHours is the duration of one history slot in hours.
const SlotHours = 15.0 / 60.0

// ─── Summary ──────────────────────────────────────────────────────────────────

// Summary holds descriptive statistics for one power series (values in W).
type Summary struct {
	Index     int     `json:"index"`
	Name      string  `json:"name"`
	Count     int     `json:"count"`
	Mean      float64 `json:"mean"`
	Std       float64 `json:"std"`
	Min       float64 `json:"min"`
	MinLabel  string  `json:"min_label"`
	P25       float64 `json:"p25"`
	Median    float64 `json:"median"`
	P75       float64 `json:"p75"`
	Max       float64 `json:"max"`
	PeakLabel string  `json:"peak_label"` // time of the first maximum
	EnergyWh  float64 `json:"energy_wh"`  // Σ value × slot length
}

// DaySummary is the summary of every enabled series of one history.
type DaySummary struct {
	Date    string    `json:"date"`
	Samples int       `json:"samples"`
	Series  []Summary `json:"series"`
}

// Summarize computes descriptive statistics over one series.
// A series with no points yields NaN statistics and zero energy.
func Summarize(s model.Series) Summary {
	sum := Summary{Index: s.Index, Name: s.Name, Count: len(s.Points)}
	if len(s.Points) == 0 {
		sum.Mean = math.NaN()
		sum.Std = math.NaN()
		sum.Min = math.NaN()
		sum.Max = math.NaN()
		sum.Median = math.NaN()
		sum.P25 = math.NaN()
		sum.P75 = math.NaN()
		return sum
	}

	vals := make([]float64, len(s.Points))
	sum.Min, sum.Max = math.Inf(1), math.Inf(-1)
	for i, p := range s.Points {
		v := float64(p.Value)
		vals[i] = v
		if v > sum.Max {
			sum.Max = v
			sum.PeakLabel = p.Label
		}
		if v < sum.Min {
			sum.Min = v
			sum.MinLabel = p.Label
		}
	}

	total := sumF(vals)
	sum.Mean = total / float64(len(vals))
	sum.Std = stddevF(vals, sum.Mean)
	sum.EnergyWh = total * SlotHours

	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	sum.Median = percentile(sorted, 50)
	sum.P25 = percentile(sorted, 25)
	sum.P75 = percentile(sorted, 75)
	return sum
}

// SummarizeHistory summarizes every enabled series of h, in series order.
// Disabled series are omitted, and an empty history has no series at all.
func SummarizeHistory(h model.History, names model.SeriesNames) DaySummary {
	ds := DaySummary{Date: h.Date, Samples: len(h.Samples)}
	if h.Empty() {
		return ds
	}
	for _, s := range h.Series(names) {
		if !s.Enabled {
			continue
		}
		ds.Series = append(ds.Series, Summarize(s))
	}
	return ds
}

// ─── Trend ────────────────────────────────────────────────────────────────────

// TrendMethod selects the regression algorithm.
type TrendMethod string

const (
	TrendLinear   TrendMethod = "linear"
	TrendTheilSen TrendMethod = "theil-sen"
)

// TrendResult holds the output of a trend analysis.
type TrendResult struct {
	Index     int         `json:"index"`
	Name      string      `json:"name"`
	Method    TrendMethod `json:"method"`
	Slope     float64     `json:"slope"` // W per hour
	Intercept float64     `json:"intercept"`
	R2        float64     `json:"r2"`
	Direction string      `json:"direction"` // "up", "down", "flat"
}

// flatSlope is the |W/h| below which a trend is reported as flat.
const flatSlope = 1.0

// Trend fits a trend line to one series. X values are hours since
// midnight, taken from the point labels.
func Trend(s model.Series, method TrendMethod) (TrendResult, error) {
	tr := TrendResult{Index: s.Index, Name: s.Name, Method: method}

	pts := make([]point, 0, len(s.Points))
	for _, p := range s.Points {
		mins, err := util.ParseClock(p.Label)
		if err != nil {
			return tr, fmt.Errorf("trend: %w", err)
		}
		pts = append(pts, point{float64(mins) / 60, float64(p.Value)})
	}
	if len(pts) < 2 {
		return tr, fmt.Errorf("trend: need at least 2 points, got %d", len(pts))
	}

	switch method {
	case TrendTheilSen:
		tr.Slope = theilSenSlope(pts)
		xMean := meanPts(pts, func(p point) float64 { return p.x })
		yMean := meanPts(pts, func(p point) float64 { return p.y })
		tr.Intercept = yMean - tr.Slope*xMean
	case TrendLinear, "":
		tr.Method = TrendLinear
		tr.Slope, tr.Intercept = olsRegress(pts)
	default:
		return tr, fmt.Errorf("trend: unknown method %q (valid: linear, theil-sen)", method)
	}

	tr.R2 = r2(pts, tr.Slope, tr.Intercept)
	switch {
	case tr.Slope > flatSlope:
		tr.Direction = "up"
	case tr.Slope < -flatSlope:
		tr.Direction = "down"
	default:
		tr.Direction = "flat"
	}
	return tr, nil
}

// ─── Math helpers ─────────────────────────────────────────────────────────────

func sumF(vals []float64) float64 {
	var s float64
	for _, v := range vals {
		s += v
	}
	return s
}

func stddevF(vals []float64, m float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	var sq float64
	for _, v := range vals {
		d := v - m
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(vals)-1))
}

func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	idx := p / 100 * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

type point struct{ x, y float64 }

func olsRegress(pts []point) (slope, intercept float64) {
	n := float64(len(pts))
	var xSum, ySum, xySum, x2Sum float64
	for _, p := range pts {
		xSum += p.x
		ySum += p.y
		xySum += p.x * p.y
		x2Sum += p.x * p.x
	}
	denom := n*x2Sum - xSum*xSum
	if denom == 0 {
		return 0, ySum / n
	}
	slope = (n*xySum - xSum*ySum) / denom
	intercept = (ySum - slope*xSum) / n
	return
}

func theilSenSlope(pts []point) float64 {
	var slopes []float64
	for i := 0; i < len(pts); i++ {
		for j := i + 1; j < len(pts); j++ {
			dx := pts[j].x - pts[i].x
			if dx == 0 {
				continue
			}
			slopes = append(slopes, (pts[j].y-pts[i].y)/dx)
		}
	}
	if len(slopes) == 0 {
		return 0
	}
	sort.Float64s(slopes)
	return percentile(slopes, 50)
}

func r2(pts []point, slope, intercept float64) float64 {
	yMean := meanPts(pts, func(p point) float64 { return p.y })
	var ssTot, ssRes float64
	for _, p := range pts {
		pred := slope*p.x + intercept
		ssTot += (p.y - yMean) * (p.y - yMean)
		ssRes += (p.y - pred) * (p.y - pred)
	}
	if ssTot == 0 {
		return 1
	}
	return 1 - ssRes/ssTot
}

func meanPts(pts []point, f func(point) float64) float64 {
	var s float64
	for _, p := range pts {
		s += f(p)
	}
	return s / float64(len(pts))
}
