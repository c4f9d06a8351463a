package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/aasun/internal/model"
)

var deviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Device information and live readings",
	Long: `Reads the device's identity and its live state: power per current
transformer, the Linky meter, temperatures, the status word with output
states, the diverting and forcing rules, and the user variables.

These commands only read. Configuration and rules are edited from the
device's own web pages.`,
}

// ─── device names ─────────────────────────────────────────────────────────────

var deviceNamesStore bool

var deviceNamesCmd = &cobra.Command{
	Use:   "names",
	Short: "Show the series names configured on the device",
	Long: `Reads enames.cgi. Names the device does not send keep their defaults;
if the device cannot be reached the defaults are shown with a warning.`,
	Example: `  aasun device names
  aasun device names --store`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeviceDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		start := time.Now()
		names, err := deps.Client.GetSeriesNames(cmd.Context())
		result := newResult(model.KindNames, cmd.CommandPath(), names, model.SeriesCount, start)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("using default names: %v", err))
		} else if deviceNamesStore {
			if err := deps.RequireStore(); err != nil {
				return err
			}
			if err := deps.Store.PutNames(names); err != nil {
				return fmt.Errorf("storing names: %w", err)
			}
		}
		return emit(cmd, deps, result, resolveFormat(deps.Config.Format))
	},
}

// ─── device version ───────────────────────────────────────────────────────────

var deviceVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the device software and WiFi module versions",
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeviceDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		start := time.Now()
		v, err := deps.Client.GetVersion(cmd.Context())
		if err != nil {
			return err
		}
		return emit(cmd, deps, newResult(model.KindVersion, cmd.CommandPath(), v, 1, start), resolveFormat(deps.Config.Format))
	},
}

// ─── device power ─────────────────────────────────────────────────────────────

var devicePowerCmd = &cobra.Command{
	Use:   "power",
	Short: "Show live voltage and power per current transformer",
	Long: `Reads volt.cgi. CT3 and CT4 are shown only when the firmware was built
with them.`,
	Example: `  aasun device power
  aasun device power --format jsonl | jq .real_w`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeviceDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		start := time.Now()
		lp, err := deps.Client.GetLivePower(cmd.Context())
		if err != nil {
			return err
		}
		return emit(cmd, deps, newResult(model.KindPower, cmd.CommandPath(), lp, len(lp.Channels), start), resolveFormat(deps.Config.Format))
	},
}

// ─── device meter ─────────────────────────────────────────────────────────────

var deviceMeterCmd = &cobra.Command{
	Use:   "meter",
	Short: "Show the Linky meter reading",
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeviceDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		start := time.Now()
		m, err := deps.Client.GetMeter(cmd.Context())
		if err != nil {
			return err
		}
		return emit(cmd, deps, newResult(model.KindMeter, cmd.CommandPath(), m, 1, start), resolveFormat(deps.Config.Format))
	},
}

// ─── device temps ─────────────────────────────────────────────────────────────

var deviceTempsCmd = &cobra.Command{
	Use:     "temps",
	Aliases: []string{"temperature"},
	Short:   "Show the temperature sensors",
	Long:    `Reads every sensor. Absent sensors and readings above 199 °C show as "-".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeviceDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		start := time.Now()
		ts, err := deps.Client.GetTemperatures(cmd.Context())
		if err != nil {
			return err
		}
		return emit(cmd, deps, newResult(model.KindTemperature, cmd.CommandPath(), ts, len(ts), start), resolveFormat(deps.Config.Format))
	},
}

// ─── device status ────────────────────────────────────────────────────────────

var deviceStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status word and what drives each output",
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeviceDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		start := time.Now()
		st, err := deps.Client.GetStatus(cmd.Context())
		if err != nil {
			return err
		}
		return emit(cmd, deps, newResult(model.KindStatus, cmd.CommandPath(), st, len(st.Bits)+len(st.Outputs), start), resolveFormat(deps.Config.Format))
	},
}

// ─── device rules ─────────────────────────────────────────────────────────────

var deviceRulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Show the diverting and forcing rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeviceDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		start := time.Now()
		rules, err := deps.Client.GetRules(cmd.Context())
		if err != nil {
			return err
		}
		if rules == nil {
			rules = []model.Rule{}
		}
		return emit(cmd, deps, newResult(model.KindRules, cmd.CommandPath(), rules, len(rules), start), resolveFormat(deps.Config.Format))
	},
}

// ─── device vars ──────────────────────────────────────────────────────────────

var deviceVarsCmd = &cobra.Command{
	Use:     "vars",
	Aliases: []string{"variables"},
	Short:   "Show the user variables V1..V4 and the anti-legionella setting",
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeviceDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		start := time.Now()
		v, err := deps.Client.GetVariables(cmd.Context())
		if err != nil {
			return err
		}
		return emit(cmd, deps, newResult(model.KindVariables, cmd.CommandPath(), v, model.VariableCount, start), resolveFormat(deps.Config.Format))
	},
}

func init() {
	rootCmd.AddCommand(deviceCmd)
	deviceCmd.AddCommand(deviceNamesCmd)
	deviceCmd.AddCommand(deviceVersionCmd)
	deviceCmd.AddCommand(devicePowerCmd)
	deviceCmd.AddCommand(deviceMeterCmd)
	deviceCmd.AddCommand(deviceTempsCmd)
	deviceCmd.AddCommand(deviceStatusCmd)
	deviceCmd.AddCommand(deviceRulesCmd)
	deviceCmd.AddCommand(deviceVarsCmd)

	deviceNamesCmd.Flags().BoolVar(&deviceNamesStore, "store", false, "save the names to the local database")
}
