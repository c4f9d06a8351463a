package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/aasun/internal/device"
	"github.com/derickschaefer/aasun/internal/model"
)

var energyCmd = &cobra.Command{
	Use:   "energy",
	Short: "Read the energy counters (Wh) from the device",
	Long: `Energy counters come in three sets:

  total    — lifetime totals
  day      — today so far
  history  — one past day from the flash ring (--index, 0 = yesterday)

Counters 5 and 6 are only reported when CT3/CT4 are fitted.`,
}

var (
	energyIndex int
	energyStore bool
)

// newEnergyCmd builds one energy subcommand for scope.
func newEnergyCmd(scope model.EnergyScope, short string) *cobra.Command {
	c := &cobra.Command{
		Use:   string(scope),
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if scope == model.EnergyHistory {
				if err := checkStoredIndex(energyIndex); err != nil {
					return err
				}
			}
			deps, err := buildDeviceDeps()
			if err != nil {
				return err
			}
			defer deps.Close()

			start := time.Now()
			e, err := deps.Client.GetEnergy(cmd.Context(), scope, energyIndex)
			if errors.Is(err, device.ErrNotAvailable) {
				return fmt.Errorf("no energy data for %s index %d", scope, energyIndex)
			}
			if err != nil {
				return err
			}

			if energyStore {
				if err := deps.RequireStore(); err != nil {
					return err
				}
				stored := *e
				if stored.DateKey == "" {
					stored.DateKey = start.Format("2006-01-02")
				}
				if err := deps.Store.PutEnergy(stored); err != nil {
					return fmt.Errorf("storing energy: %w", err)
				}
			}

			result := newResult(model.KindEnergy, cmd.CommandPath(), e, 1, start)
			result.Names = seriesNames(cmd.Context(), deps, true)
			return emit(cmd, deps, result, resolveFormat(deps.Config.Format))
		},
	}
	c.Flags().BoolVar(&energyStore, "store", false, "save the counters to the local database")
	if scope == model.EnergyHistory {
		c.Flags().IntVar(&energyIndex, "index", 0, fmt.Sprintf("stored day index 0..%d (0 = yesterday)", model.MaxStoredIndex))
	}
	return c
}

func init() {
	rootCmd.AddCommand(energyCmd)
	energyCmd.AddCommand(
		newEnergyCmd(model.EnergyTotal, "Lifetime energy totals"),
		newEnergyCmd(model.EnergyDay, "Energy counted today"),
		newEnergyCmd(model.EnergyHistory, "Energy of one stored day"),
	)
}
