package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/aasun/internal/app"
	"github.com/derickschaefer/aasun/internal/model"
	"github.com/derickschaefer/aasun/internal/render"
	"github.com/derickschaefer/aasun/internal/transform"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Read the 15-minute power history from the device",
	Long: `The device keeps today's history in RAM and the previous days in a flash
ring. Each day is served in two parts; a failed part means "no data" for
the whole day and is never retried.

Series (wire order):
  0 Imported  1 Exported  2 Div 1 (est)  3 Div 2 (est)
  4 P2  5 P3  6 P4  7 Cnt1  8 Cnt2
Series 4..8 are shown only when the device reports them.`,
}

// ─── history get ──────────────────────────────────────────────────────────────

var (
	histGetStored   bool
	histGetIndex    int
	histGetStore    bool
	histGetResample int
	histGetMethod   string
	histGetFrom     string
	histGetTo       string
)

var historyGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Fetch today's or a stored day's history",
	Example: `  aasun history get
  aasun history get --stored --index 0         # yesterday
  aasun history get --stored --index 3 --store
  aasun history get --resample 60 --from 6:00 --to 20:00
  aasun history get --format jsonl | aasun chart plot --series 2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeviceDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		sel := model.Today()
		if histGetStored {
			if err := checkStoredIndex(histGetIndex); err != nil {
				return err
			}
			sel = model.Stored(histGetIndex)
		}

		start := time.Now()
		lh, err := fetchHistory(cmd.Context(), deps, sel)
		if err != nil {
			return err
		}

		if histGetStore && !lh.History.Empty() {
			if err := storeHistory(deps, lh); err != nil {
				return err
			}
		}

		h := lh.History
		if h, err = transform.Between(h, histGetFrom, histGetTo); err != nil {
			return err
		}
		if histGetResample > 0 {
			if h, err = transform.Resample(h, histGetResample, transform.ResampleMethod(histGetMethod)); err != nil {
				return err
			}
		}
		lh.History = h

		return emit(cmd, deps, historyResult("history get "+sel.String(), lh, start), resolveFormat(deps.Config.Format))
	},
}

// storeHistory persists a fetched history and the names it was labelled with.
func storeHistory(deps *app.Deps, lh *loadedHistory) error {
	if err := deps.RequireStore(); err != nil {
		return err
	}
	if err := deps.Store.PutHistory(lh.History); err != nil {
		return fmt.Errorf("storing history: %w", err)
	}
	if err := deps.Store.PutNames(lh.Names); err != nil {
		return fmt.Errorf("storing names: %w", err)
	}
	return nil
}

// ─── history watch ────────────────────────────────────────────────────────────

var (
	histWatchInterval time.Duration
	histWatchCount    int
	histWatchStore    bool
)

var historyWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll today's history periodically",
	Long: `Fetches today's history immediately and then every --interval until
interrupted. A poll starts only after the previous one has finished, so at
most one request is in flight.`,
	Example: `  aasun history watch
  aasun history watch --interval 15m --store
  aasun history watch --count 4 --format jsonl`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeviceDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		interval := histWatchInterval
		if interval <= 0 {
			interval = deps.Config.WatchInterval
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return watchHistory(ctx, cmd, deps, interval, histWatchCount)
	},
}

// watchHistory polls until ctx is done or count polls have run (0 = no limit).
func watchHistory(ctx context.Context, cmd *cobra.Command, deps *app.Deps, interval time.Duration, count int) error {
	format := resolveFormat(deps.Config.Format)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for n := 1; ; n++ {
		start := time.Now()
		lh, err := fetchHistory(ctx, deps, model.Today())
		if err != nil {
			return err
		}
		if histWatchStore && !lh.History.Empty() {
			if err := storeHistory(deps, lh); err != nil {
				return err
			}
		}
		if format == render.FormatTable && !deps.Config.Quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "── poll %d at %s ──\n", n, start.Format("15:04:05"))
		}
		if err := emit(cmd, deps, historyResult("history watch", lh, start), format); err != nil {
			return err
		}
		if count > 0 && n >= count {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyGetCmd)
	historyCmd.AddCommand(historyWatchCmd)

	f := historyGetCmd.Flags()
	f.BoolVar(&histGetStored, "stored", false, "read a stored day instead of today")
	f.IntVar(&histGetIndex, "index", 0, fmt.Sprintf("stored day index 0..%d (0 = yesterday)", model.MaxStoredIndex))
	f.BoolVar(&histGetStore, "store", false, "save the history to the local database")
	f.IntVar(&histGetResample, "resample", 0, "resample to N minutes (multiple of 15)")
	f.StringVar(&histGetMethod, "method", "mean", "resample aggregation: mean|max|last")
	f.StringVar(&histGetFrom, "from", "", "first time slot to keep (H:MM)")
	f.StringVar(&histGetTo, "to", "", "last time slot to keep (H:MM)")

	w := historyWatchCmd.Flags()
	w.DurationVar(&histWatchInterval, "interval", 0, "poll interval (default: config watch_interval, 5m)")
	w.IntVar(&histWatchCount, "count", 0, "stop after N polls (0 = until interrupted)")
	w.BoolVar(&histWatchStore, "store", false, "save every non-empty poll to the local database")
}
