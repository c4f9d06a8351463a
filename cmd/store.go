package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/aasun/internal/model"
	"github.com/derickschaefer/aasun/internal/render"
	"github.com/derickschaefer/aasun/internal/util"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Inspect locally accumulated data",
	Long: `Commands for inspecting what has been accumulated in the local database.

Use 'aasun history get --stored --index N --store' or 'aasun fetch history
--store' to accumulate days. Use 'aasun cache stats' for bucket-level
storage stats.`,
}

// ─── store list ───────────────────────────────────────────────────────────────

var storeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List days accumulated in the local database",
	Example: `  aasun store list
  aasun store list --format csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		start := time.Now()
		entries, err := deps.Store.ListHistory()
		if err != nil {
			return fmt.Errorf("reading store: %w", err)
		}

		format := resolveFormat(deps.Config.Format)
		if len(entries) == 0 && format == render.FormatTable {
			fmt.Fprintln(cmd.OutOrStdout(), "No history in local database.")
			fmt.Fprintln(cmd.OutOrStdout(), "  Use: aasun fetch history --store")
			return nil
		}

		result := newResult(model.KindHistoryList, "store list", entries, len(entries), start)
		result.Stats.FromStore = true
		if err := emit(cmd, deps, result, format); err != nil {
			return err
		}
		if format == render.FormatTable && !deps.Config.Quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d days  •  %s\n", len(entries), deps.Store.Path())
		}
		return nil
	},
}

// ─── store get ────────────────────────────────────────────────────────────────

var storeGetCmd = &cobra.Command{
	Use:   "get <DATE>",
	Short: "Read a stored day (YYYY-MM-DD)",
	Example: `  aasun store get 2024-03-15
  aasun store get 2024/3/15 --format jsonl | aasun chart plot`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		start := time.Now()
		src := historySource{date: args[0]}
		lh, err := src.load(cmd, deps)
		if err != nil {
			return err
		}
		return emit(cmd, deps, historyResult("store get "+lh.History.DateKey, lh, start), resolveFormat(deps.Config.Format))
	},
}

// ─── store delete ─────────────────────────────────────────────────────────────

var storeDeleteCmd = &cobra.Command{
	Use:     "delete <DATE>",
	Short:   "Delete a stored day",
	Example: `  aasun store delete 2024-03-15`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := util.ParseDateKey(args[0])
		if err != nil {
			return err
		}
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		if _, ok, err := deps.Store.GetHistory(key); err != nil {
			return fmt.Errorf("reading store: %w", err)
		} else if !ok {
			return fmt.Errorf("no stored history for %s", key)
		}
		if err := deps.Store.DeleteHistory(key); err != nil {
			return fmt.Errorf("deleting %s: %w", key, err)
		}
		if !deps.Config.Quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted %s\n", key)
		}
		return nil
	},
}

// ─── store energy ─────────────────────────────────────────────────────────────

var storeEnergyScope string

var storeEnergyCmd = &cobra.Command{
	Use:   "energy",
	Short: "List stored energy counter sets",
	Example: `  aasun store energy
  aasun store energy --scope history --format csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		start := time.Now()
		list, err := deps.Store.ListEnergy(model.EnergyScope(storeEnergyScope))
		if err != nil {
			return fmt.Errorf("reading store: %w", err)
		}
		result := newResult(model.KindEnergyList, "store energy", list, len(list), start)
		result.Names = seriesNames(cmd.Context(), deps, false)
		result.Stats.FromStore = true
		return emit(cmd, deps, result, resolveFormat(deps.Config.Format))
	},
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(storeCmd)
	storeCmd.AddCommand(storeListCmd)
	storeCmd.AddCommand(storeGetCmd)
	storeCmd.AddCommand(storeDeleteCmd)
	storeCmd.AddCommand(storeEnergyCmd)

	storeEnergyCmd.Flags().StringVar(&storeEnergyScope, "scope", "", "only one scope: total|day|history (default: all)")
}
