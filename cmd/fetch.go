package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/derickschaefer/aasun/internal/app"
	"github.com/derickschaefer/aasun/internal/model"
	"github.com/derickschaefer/aasun/internal/util"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Batch-fetch stored days and optionally persist them",
	Long: `Convenience commands for fetching many items in one call.

fetch history — fetch a range of stored days from the device flash ring
fetch energy  — fetch the daily energy history for a range of days

Use --store to persist results to the local database for offline analysis.`,
}

// ─── fetch history ────────────────────────────────────────────────────────────

var (
	fetchFromIndex int
	fetchToIndex   int
	fetchStore     bool
)

var fetchHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Fetch stored days --from-index..--to-index",
	Example: `  aasun fetch history --from-index 0 --to-index 6 --store
  aasun fetch history --to-index 30 --store --concurrency 2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkIndexRange(fetchFromIndex, fetchToIndex); err != nil {
			return err
		}
		deps, err := buildDeviceDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		start := time.Now()
		histories, warnings := batchGetHistory(cmd.Context(), deps, fetchFromIndex, fetchToIndex)

		entries := make([]model.HistoryEntry, 0, len(histories))
		for _, h := range histories {
			entries = append(entries, model.HistoryEntry{
				DateKey: h.DateKey, Date: h.Date, Selector: h.Selector,
				Samples: len(h.Samples), FetchedAt: h.FetchedAt,
			})
		}

		if fetchStore && len(histories) > 0 {
			if err := deps.RequireStore(); err != nil {
				return err
			}
			for _, h := range histories {
				if err := deps.Store.PutHistory(h); err != nil {
					return fmt.Errorf("storing %s: %w", h.DateKey, err)
				}
			}
			if err := deps.Store.PutNames(seriesNames(cmd.Context(), deps, true)); err != nil {
				warnings = append(warnings, fmt.Sprintf("storing names: %v", err))
			}
		}

		result := newResult(model.KindHistoryList, cmd.CommandPath(), entries, len(entries), start)
		result.Warnings = warnings
		if fetchStore && !deps.Config.Quiet {
			fmt.Fprintf(cmd.ErrOrStderr(), "✓ Stored %d/%d days to %s\n",
				len(histories), fetchToIndex-fetchFromIndex+1, deps.Config.DBPath)
		}
		return emit(cmd, deps, result, resolveFormat(deps.Config.Format))
	},
}

// batchGetHistory fetches stored days from..to with at most
// Config.Concurrency requests in flight. Days without data become warnings;
// results keep index order.
func batchGetHistory(ctx context.Context, deps *app.Deps, from, to int) ([]model.History, []string) {
	n := to - from + 1
	results := make([]*loadedHistory, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, deps.Config.Concurrency))
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			lh, err := fetchHistory(gctx, deps, model.Stored(from+i))
			if err != nil {
				return err
			}
			results[i] = lh
			return nil
		})
	}
	err := g.Wait()

	var out []model.History
	var warnings []string
	for _, lh := range results {
		switch {
		case lh == nil:
		case lh.Warning != "":
			warnings = append(warnings, lh.Warning)
		default:
			out = append(out, lh.History)
		}
	}
	if err != nil {
		warnings = append(warnings, err.Error())
	}
	return out, warnings
}

// ─── fetch energy ─────────────────────────────────────────────────────────────

var fetchEnergyCmd = &cobra.Command{
	Use:   "energy",
	Short: "Fetch daily energy counters for history slots --from-index..--to-index",
	Example: `  aasun fetch energy --to-index 30 --store`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkIndexRange(fetchFromIndex, fetchToIndex); err != nil {
			return err
		}
		deps, err := buildDeviceDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		start := time.Now()
		n := fetchToIndex - fetchFromIndex + 1
		results := make([]*model.Energy, n)
		var errs util.MultiError

		g, gctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(max(1, deps.Config.Concurrency))
		errCh := make(chan error, n)
		for i := 0; i < n; i++ {
			i := i
			g.Go(func() error {
				e, err := deps.Client.GetEnergy(gctx, model.EnergyHistory, fetchFromIndex+i)
				if err != nil {
					// per-slot failures are warnings, not batch failures
					errCh <- fmt.Errorf("index %d: %w", fetchFromIndex+i, err)
					return nil
				}
				results[i] = e
				return nil
			})
		}
		errs.Add(g.Wait())
		close(errCh)
		for err := range errCh {
			errs.Add(err)
		}

		var list []model.Energy
		for _, e := range results {
			if e != nil {
				list = append(list, *e)
			}
		}
		if fetchStore && len(list) > 0 {
			if err := deps.RequireStore(); err != nil {
				return err
			}
			for _, e := range list {
				if err := deps.Store.PutEnergy(e); err != nil {
					return fmt.Errorf("storing energy %s: %w", e.DateKey, err)
				}
			}
		}

		result := newResult(model.KindEnergyList, cmd.CommandPath(), list, len(list), start)
		result.Names = seriesNames(cmd.Context(), deps, true)
		for _, err := range errs.Errors {
			result.Warnings = append(result.Warnings, err.Error())
		}
		return emit(cmd, deps, result, resolveFormat(deps.Config.Format))
	},
}

func checkIndexRange(from, to int) error {
	if err := checkStoredIndex(from); err != nil {
		return err
	}
	if err := checkStoredIndex(to); err != nil {
		return err
	}
	if from > to {
		return fmt.Errorf("--from-index %d is after --to-index %d", from, to)
	}
	return nil
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.AddCommand(fetchHistoryCmd)
	fetchCmd.AddCommand(fetchEnergyCmd)

	for _, c := range []*cobra.Command{fetchHistoryCmd, fetchEnergyCmd} {
		c.Flags().IntVar(&fetchFromIndex, "from-index", 0, "first stored day index (0 = yesterday)")
		c.Flags().IntVar(&fetchToIndex, "to-index", 6, fmt.Sprintf("last stored day index (max %d)", model.MaxStoredIndex))
		c.Flags().BoolVar(&fetchStore, "store", false, "persist results to the local database")
	}
}
