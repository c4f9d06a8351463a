package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/aasun/internal/model"
	"github.com/derickschaefer/aasun/internal/transform"
)

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Transform one day of history (JSONL in, JSONL out)",
	Long: `Transform operators read one day of history and write it back out.

The history source is, in order: --date (local database), JSONL piped on
stdin, or the device. Output is JSONL when stdout is a pipe and a table on a
terminal, unless --format is given.

Pipeline example:
  aasun history get --format jsonl | aasun transform resample --minutes 60 | aasun chart plot
  aasun transform between --date 2024-03-15 --from 10:00 --to 14:00`,
}

// ─── resample ─────────────────────────────────────────────────────────────────

var (
	transformResampleSource  historySource
	transformResampleMinutes int
	transformResampleMethod  string
)

var transformResampleCmd = &cobra.Command{
	Use:   "resample",
	Short: "Aggregate 15-minute slots into N-minute buckets",
	Example: `  aasun history get --format jsonl | aasun transform resample --minutes 60
  aasun transform resample --date 2024-03-15 --minutes 30 --method max`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransform(cmd, &transformResampleSource, func(h model.History) (model.History, error) {
			return transform.Resample(h, transformResampleMinutes, transform.ResampleMethod(transformResampleMethod))
		})
	},
}

// ─── between ──────────────────────────────────────────────────────────────────

var (
	transformBetweenSource historySource
	transformBetweenFrom   string
	transformBetweenTo     string
)

var transformBetweenCmd = &cobra.Command{
	Use:   "between",
	Short: "Keep the slots whose time falls in [--from, --to]",
	Example: `  aasun history get --format jsonl | aasun transform between --from 6:00 --to 20:00`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransform(cmd, &transformBetweenSource, func(h model.History) (model.History, error) {
			return transform.Between(h, transformBetweenFrom, transformBetweenTo)
		})
	},
}

// ─── roll ─────────────────────────────────────────────────────────────────────

var (
	transformRollSource historySource
	transformRollWindow int
)

var transformRollCmd = &cobra.Command{
	Use:   "roll",
	Short: "Trailing rolling mean over --window slots",
	Example: `  aasun history get --format jsonl | aasun transform roll --window 4 | aasun chart plot`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransform(cmd, &transformRollSource, func(h model.History) (model.History, error) {
			return transform.Roll(h, transformRollWindow)
		})
	},
}

// ─── Output helper ────────────────────────────────────────────────────────────

// runTransform loads a history from src, applies fn and writes the result
// in the pipe format.
func runTransform(cmd *cobra.Command, src *historySource, fn func(model.History) (model.History, error)) error {
	deps, err := buildDeps()
	if err != nil {
		return err
	}
	defer deps.Close()

	start := time.Now()
	lh, err := src.load(cmd, deps)
	if err != nil {
		return err
	}
	if lh.History, err = fn(lh.History); err != nil {
		return err
	}
	return emit(cmd, deps, historyResult(cmd.CommandPath(), lh, start), pipeFormat(deps.Config.Format))
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(transformCmd)
	transformCmd.AddCommand(transformResampleCmd)
	transformCmd.AddCommand(transformBetweenCmd)
	transformCmd.AddCommand(transformRollCmd)

	transformResampleSource.register(transformResampleCmd)
	transformResampleCmd.Flags().IntVar(&transformResampleMinutes, "minutes", 60, "bucket size in minutes (multiple of 15)")
	transformResampleCmd.Flags().StringVar(&transformResampleMethod, "method", "mean", "aggregation: mean|max|last")

	transformBetweenSource.register(transformBetweenCmd)
	transformBetweenCmd.Flags().StringVar(&transformBetweenFrom, "from", "", "first slot to keep (H:MM)")
	transformBetweenCmd.Flags().StringVar(&transformBetweenTo, "to", "", "last slot to keep (H:MM)")

	transformRollSource.register(transformRollCmd)
	transformRollCmd.Flags().IntVar(&transformRollWindow, "window", 4, "window size in slots")
}
