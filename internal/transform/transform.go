// Package transform implements stateless operators that take a History and
// return a new one. Each operator is a pure function; the input is never
// modified.
package transform

import (
	"fmt"
	"math"

	"github.com/derickschaefer/aasun/internal/model"
	"github.com/derickschaefer/aasun/internal/util"
)

// SlotMinutes is the device sampling period.
const SlotMinutes = 15

// ─── Resample ─────────────────────────────────────────────────────────────────

// ResampleMethod is the aggregation method for resampling.
type ResampleMethod string

const (
	ResampleMean ResampleMethod = "mean"
	ResampleMax  ResampleMethod = "max"
	ResampleLast ResampleMethod = "last"
)

// Resample groups consecutive slots into buckets of the given length and
// aggregates every series per bucket. minutes must be a positive multiple
// of SlotMinutes. Each bucket takes the label of its first slot; a trailing
// short bucket is kept. Means are rounded to the nearest watt.
func Resample(h model.History, minutes int, method ResampleMethod) (model.History, error) {
	if minutes <= 0 || minutes%SlotMinutes != 0 {
		return h, fmt.Errorf("resample: interval must be a positive multiple of %d minutes, got %d", SlotMinutes, minutes)
	}
	switch method {
	case ResampleMean, ResampleMax, ResampleLast:
	case "":
		method = ResampleMean
	default:
		return h, fmt.Errorf("resample: unknown method %q (use mean, max, last)", method)
	}

	n := minutes / SlotMinutes
	out := h
	out.Samples = make([]model.Sample, 0, (len(h.Samples)+n-1)/n)
	for start := 0; start < len(h.Samples); start += n {
		end := start + n
		if end > len(h.Samples) {
			end = len(h.Samples)
		}
		out.Samples = append(out.Samples, aggregate(h.Samples[start:end], method))
	}
	return out, nil
}

func aggregate(group []model.Sample, method ResampleMethod) model.Sample {
	s := model.Sample{TimeLabel: group[0].TimeLabel}
	for i := 0; i < model.SeriesCount; i++ {
		switch method {
		case ResampleLast:
			s.Values[i] = group[len(group)-1].Values[i]
		case ResampleMax:
			m := group[0].Values[i]
			for _, g := range group[1:] {
				if g.Values[i] > m {
					m = g.Values[i]
				}
			}
			s.Values[i] = m
		default:
			var sum int64
			for _, g := range group {
				sum += int64(g.Values[i])
			}
			s.Values[i] = int32(math.Round(float64(sum) / float64(len(group))))
		}
	}
	return s
}

// ─── Between ──────────────────────────────────────────────────────────────────

// Between keeps samples whose label falls in [from, to]. Both bounds are
// "H:MM" clocks; an empty bound is open.
func Between(h model.History, from, to string) (model.History, error) {
	lo, hi := math.MinInt, math.MaxInt
	var err error
	if from != "" {
		if lo, err = util.ParseClock(from); err != nil {
			return h, fmt.Errorf("between: %w", err)
		}
	}
	if to != "" {
		if hi, err = util.ParseClock(to); err != nil {
			return h, fmt.Errorf("between: %w", err)
		}
	}
	if lo > hi {
		return h, fmt.Errorf("between: %s is after %s", from, to)
	}

	out := h
	out.Samples = make([]model.Sample, 0, len(h.Samples))
	for _, s := range h.Samples {
		m, err := util.ParseClock(s.TimeLabel)
		if err != nil {
			return h, fmt.Errorf("between: sample %w", err)
		}
		if m >= lo && m <= hi {
			out.Samples = append(out.Samples, s)
		}
	}
	return out, nil
}

// ─── Rolling Window ───────────────────────────────────────────────────────────

// Roll smooths every series with a trailing moving average. The window
// covers the current slot and the (window-1) preceding ones; the first
// slots average over what is available.
func Roll(h model.History, window int) (model.History, error) {
	if window < 1 {
		return h, fmt.Errorf("roll: window must be >= 1, got %d", window)
	}
	out := h
	out.Samples = make([]model.Sample, len(h.Samples))
	var sums [model.SeriesCount]int64
	for i, s := range h.Samples {
		for k := range sums {
			sums[k] += int64(s.Values[k])
		}
		if i >= window {
			for k := range sums {
				sums[k] -= int64(h.Samples[i-window].Values[k])
			}
		}
		n := window
		if i+1 < window {
			n = i + 1
		}
		r := model.Sample{TimeLabel: s.TimeLabel}
		for k := range sums {
			r.Values[k] = int32(math.Round(float64(sums[k]) / float64(n)))
		}
		out.Samples[i] = r
	}
	return out, nil
}
