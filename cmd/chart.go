package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/aasun/internal/chart"
	"github.com/derickschaefer/aasun/internal/device"
	"github.com/derickschaefer/aasun/internal/model"
	"github.com/derickschaefer/aasun/internal/util"
)

var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Render history or energy as an ASCII chart",
	Long: `Chart commands render to the terminal.

The history source is, in order: --date (local database), JSONL piped on
stdin, or the device (today, or --stored --index N).

Pipeline examples:
  aasun history get --format jsonl | aasun chart plot --series Exported
  aasun history get --stored --index 0 --format jsonl | aasun transform resample --minutes 60 | aasun chart plot
  aasun chart plot --date 2024-03-15 --series 1`,
}

// ─── chart plot ──────────────────────────────────────────────────────────────

var (
	chartPlotSource historySource
	chartPlotSeries string
	chartPlotWidth  int
	chartPlotHeight int
	chartPlotTitle  string
)

var chartPlotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Multi-line ASCII chart of one series over the day",
	Long: `Renders a multi-line chart with Y-axis tick labels (W) and X-axis time
labels. Width auto-detects from $COLUMNS (falls back to 80). Override with
--width and --height. Series not reported by the device cannot be plotted.`,
	Example: `  aasun chart plot
  aasun chart plot --series Exported --height 8
  aasun chart plot --stored --index 2 --series 2
  aasun history get --from 6:00 --to 21:00 --format jsonl | aasun chart plot --width 100`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		lh, err := chartPlotSource.load(cmd, deps)
		if err != nil {
			return err
		}
		if lh.History.Empty() {
			msg := "no data"
			if lh.Warning != "" {
				msg = lh.Warning
			}
			return errors.New(msg)
		}
		idx, err := parseSeries(chartPlotSeries, lh.Names)
		if err != nil {
			return err
		}

		s := lh.History.Series(lh.Names)[idx]
		title := chartPlotTitle
		if title == "" {
			title = fmt.Sprintf("%s %s", s.Name, lh.History.Date)
		}

		w, closeFn, err := outputWriter(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer closeFn()
		return chart.Plot(w, s, chart.PlotOptions{
			Width:  chartPlotWidth,
			Height: chartPlotHeight,
			Title:  title,
		})
	},
}

// ─── chart bar ───────────────────────────────────────────────────────────────

var (
	chartBarScope string
	chartBarIndex int
	chartBarDate  string
	chartBarWidth int
)

var chartBarCmd = &cobra.Command{
	Use:   "bar",
	Short: "Horizontal bar chart of energy counters, one bar per series",
	Long: `Reads one energy counter set (from the device, or from the local
database with --date) and draws one bar per reported counter.

Negative values are supported: bars extend left from a zero baseline.
Counters the device does not report (CT3/CT4 absent) are skipped.`,
	Example: `  aasun chart bar
  aasun chart bar --scope total
  aasun chart bar --scope history --index 0
  aasun chart bar --scope history --date 2024-03-14`,
	RunE: func(cmd *cobra.Command, args []string) error {
		scope := model.EnergyScope(chartBarScope)
		switch scope {
		case model.EnergyTotal, model.EnergyDay, model.EnergyHistory:
		default:
			return fmt.Errorf("unknown scope %q (valid: total, day, history)", chartBarScope)
		}

		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		var e model.Energy
		online := chartBarDate == ""
		if online {
			if err := deps.Config.Validate(); err != nil {
				return err
			}
			if scope == model.EnergyHistory {
				if err := checkStoredIndex(chartBarIndex); err != nil {
					return err
				}
			}
			got, err := deps.Client.GetEnergy(cmd.Context(), scope, chartBarIndex)
			if errors.Is(err, device.ErrNotAvailable) {
				return fmt.Errorf("no energy data for %s index %d", scope, chartBarIndex)
			}
			if err != nil {
				return err
			}
			e = *got
		} else {
			key, err := util.ParseDateKey(chartBarDate)
			if err != nil {
				return err
			}
			if err := deps.RequireStore(); err != nil {
				return err
			}
			got, ok, err := deps.Store.GetEnergy(scope, key)
			if err != nil {
				return fmt.Errorf("reading store: %w", err)
			}
			if !ok {
				return fmt.Errorf("no stored %s energy for %s\n\n  Use: aasun energy %s --store", scope, key, scope)
			}
			e = got
		}

		names := seriesNames(cmd.Context(), deps, online)
		title := "Energy " + string(scope)
		if e.Date != "" {
			title += " " + e.Date
		}

		w, closeFn, err := outputWriter(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer closeFn()
		return chart.Bar(w, title, chart.EnergyItems(e, names), chart.BarOptions{
			Width: chartBarWidth,
			Unit:  "Wh",
		})
	},
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(chartCmd)
	chartCmd.AddCommand(chartPlotCmd)
	chartCmd.AddCommand(chartBarCmd)

	// plot flags
	chartPlotSource.register(chartPlotCmd)
	chartPlotCmd.Flags().StringVar(&chartPlotSeries, "series", "0", "series index 0..8 or name")
	chartPlotCmd.Flags().IntVar(&chartPlotWidth, "width", 0,
		"chart width in characters (default: auto-detect from $COLUMNS, fallback 80)")
	chartPlotCmd.Flags().IntVar(&chartPlotHeight, "height", 12,
		"chart height in rows (default 12)")
	chartPlotCmd.Flags().StringVar(&chartPlotTitle, "title", "",
		"chart title (default: series name and date)")

	// bar flags
	chartBarCmd.Flags().StringVar(&chartBarScope, "scope", string(model.EnergyDay), "energy set: total|day|history")
	chartBarCmd.Flags().IntVar(&chartBarIndex, "index", 0, "stored day index for --scope history")
	chartBarCmd.Flags().StringVar(&chartBarDate, "date", "", "read the counters from the local database (YYYY-MM-DD)")
	chartBarCmd.Flags().IntVar(&chartBarWidth, "width", 0,
		"total chart width in characters (default: auto-detect from $COLUMNS, fallback 80)")
}
