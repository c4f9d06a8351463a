package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/aasun/internal/analyze"
	"github.com/derickschaefer/aasun/internal/model"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze one day of history",
	Long: `Analyze operators read one day of history and print statistics.

The history source is, in order: --date (local database), JSONL piped on
stdin, or the device (today, or --stored --index N).

Examples:
  aasun analyze summary --date 2024-03-15
  aasun history get --stored --index 0 --format jsonl | aasun analyze summary
  aasun analyze trend --series 0 --method theil-sen`,
}

// ─── analyze summary ─────────────────────────────────────────────────────────

var analyzeSummarySource historySource

var analyzeSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Per-series statistics: mean, std, min, median, max, peak time, energy",
	Example: `  aasun analyze summary
  aasun analyze summary --date 2024-03-15 --format csv
  aasun history get --format jsonl | aasun transform between --from 8:00 --to 18:00 | aasun analyze summary`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		start := time.Now()
		lh, err := analyzeSummarySource.load(cmd, deps)
		if err != nil {
			return err
		}

		ds := analyze.SummarizeHistory(lh.History, lh.Names)
		result := newResult(model.KindSummary, cmd.CommandPath(), &ds, len(ds.Series), start)
		result.Stats.FromStore = lh.FromStore
		if lh.Warning != "" {
			result.Warnings = append(result.Warnings, lh.Warning)
		}
		return emit(cmd, deps, result, resolveFormat(deps.Config.Format))
	},
}

// ─── analyze trend ────────────────────────────────────────────────────────────

var (
	analyzeTrendSource historySource
	analyzeTrendMethod string
	analyzeTrendSeries string
)

var analyzeTrendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Fit a trend line per series: slope (W/h), intercept, R², direction",
	Example: `  aasun analyze trend
  aasun analyze trend --series Imported --method theil-sen
  aasun history get --from 6:00 --to 12:00 --format jsonl | aasun analyze trend --series 2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		start := time.Now()
		lh, err := analyzeTrendSource.load(cmd, deps)
		if err != nil {
			return err
		}

		var trends []analyze.TrendResult
		var warnings []string
		if lh.Warning != "" {
			warnings = append(warnings, lh.Warning)
		}
		if !lh.History.Empty() {
			all := lh.History.Series(lh.Names)
			pick := lh.History.EnabledIndices()
			if analyzeTrendSeries != "" {
				idx, err := parseSeries(analyzeTrendSeries, lh.Names)
				if err != nil {
					return err
				}
				pick = []int{idx}
			}
			for _, i := range pick {
				if !all[i].Enabled {
					warnings = append(warnings, all[i].Name+": not reported by the device")
					continue
				}
				tr, err := analyze.Trend(all[i], analyze.TrendMethod(analyzeTrendMethod))
				if err != nil {
					return err
				}
				trends = append(trends, tr)
			}
		}

		result := newResult(model.KindTrend, cmd.CommandPath(), trends, len(trends), start)
		result.Stats.FromStore = lh.FromStore
		result.Warnings = warnings
		return emit(cmd, deps, result, resolveFormat(deps.Config.Format))
	},
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.AddCommand(analyzeSummaryCmd)
	analyzeCmd.AddCommand(analyzeTrendCmd)

	analyzeSummarySource.register(analyzeSummaryCmd)
	analyzeTrendSource.register(analyzeTrendCmd)
	analyzeTrendCmd.Flags().StringVar(&analyzeTrendMethod, "method", "linear",
		"regression method: linear|theil-sen")
	analyzeTrendCmd.Flags().StringVar(&analyzeTrendSeries, "series", "",
		"series index or name (default: every reported series)")
}
