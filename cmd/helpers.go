package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/derickschaefer/aasun/internal/app"
	"github.com/derickschaefer/aasun/internal/history"
	"github.com/derickschaefer/aasun/internal/model"
	"github.com/derickschaefer/aasun/internal/pipeline"
	"github.com/derickschaefer/aasun/internal/render"
	"github.com/derickschaefer/aasun/internal/util"
)

// resolveFormat returns the effective format string, falling back to "table".
func resolveFormat(cfgFormat string) string {
	if globalFlags.Format != "" {
		return globalFlags.Format
	}
	if cfgFormat != "" {
		return cfgFormat
	}
	return render.FormatTable
}

// pipeFormat is resolveFormat for commands that sit in the middle of a
// pipeline: without an explicit --format they write JSONL unless stdout is
// a terminal.
func pipeFormat(cfgFormat string) string {
	if globalFlags.Format == "" && !pipeline.IsTTY() {
		return render.FormatJSONL
	}
	return resolveFormat(cfgFormat)
}

// outputWriter returns def, or the --out file when one is set. The returned
// closer must always be called.
func outputWriter(def io.Writer) (io.Writer, func() error, error) {
	if globalFlags.Out == "" {
		return def, func() error { return nil }, nil
	}
	f, err := os.Create(globalFlags.Out)
	if err != nil {
		return nil, nil, fmt.Errorf("creating output file: %w", err)
	}
	return f, f.Close, nil
}

// newResult wraps data in a Result envelope timed from start.
func newResult(kind, command string, data interface{}, items int, start time.Time) *model.Result {
	return &model.Result{
		Kind:        kind,
		GeneratedAt: time.Now(),
		Command:     command,
		Data:        data,
		Stats: model.ResultStats{
			DurationMs: time.Since(start).Milliseconds(),
			Items:      items,
		},
	}
}

// emit renders result in format to stdout (or --out) and writes the
// warnings/stats footer to stderr so pipes stay clean.
func emit(cmd *cobra.Command, deps *app.Deps, result *model.Result, format string) error {
	if deps.Config.Quiet {
		return nil
	}
	w, closeFn, err := outputWriter(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if err := render.Render(w, result, format); err != nil {
		closeFn()
		return err
	}
	if err := closeFn(); err != nil {
		return err
	}
	render.PrintFooter(cmd.ErrOrStderr(), result, deps.Config.Verbose)
	return nil
}

// printSimpleTable renders a simple table with headers using tablewriter.
// The add callback is called with row values as variadic strings.
func printSimpleTable(w io.Writer, headers []string, fill func(add func(...string))) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(headers)
	tw.SetBorder(true)
	tw.SetRowLine(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAutoWrapText(false)

	fill(func(cols ...string) {
		tw.Append(cols)
	})
	tw.Render()
}

// printKVTable renders a two-column key/value listing using aligned columns.
func printKVTable(w io.Writer, rows [][]string) {
	maxKey := 0
	for _, r := range rows {
		if len(r[0]) > maxKey {
			maxKey = len(r[0])
		}
	}
	for _, r := range rows {
		padding := strings.Repeat(" ", maxKey-len(r[0]))
		fmt.Fprintf(w, "  %s%s  %s\n", r[0], padding, r[1])
	}
}

// checkStoredIndex validates a history ring index.
func checkStoredIndex(i int) error {
	if i < 0 || i > model.MaxStoredIndex {
		return fmt.Errorf("invalid index %d: expected 0..%d", i, model.MaxStoredIndex)
	}
	return nil
}

// parseSeries resolves a --series value: an index 0..8 or a series name
// (case-insensitive).
func parseSeries(s string, names model.SeriesNames) (int, error) {
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		if n < 0 || n >= model.SeriesCount {
			return 0, fmt.Errorf("invalid series %d: expected 0..%d", n, model.SeriesCount-1)
		}
		return n, nil
	}
	for i, name := range names {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown series %q", s)
}

// seriesNames returns the names to label output with: from the store when
// it is open and holds a copy, else from the device when online, else the
// defaults.
func seriesNames(ctx context.Context, deps *app.Deps, online bool) model.SeriesNames {
	if deps.Store != nil {
		if n, ok, err := deps.Store.GetNames(); err == nil && ok {
			return n
		}
	}
	if online {
		n, _ := deps.Client.GetSeriesNames(ctx)
		return n
	}
	return model.DefaultSeriesNames()
}

// historySource selects where a history comes from for commands that accept
// one: a stored date, stdin, or the device.
type historySource struct {
	date   string // YYYY-MM-DD or Y/M/D: read from the local store
	stored bool   // device flash ring instead of today's buffer
	index  int
}

func (s *historySource) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.date, "date", "", "read a stored day from the local database (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&s.stored, "stored", false, "read a stored day from the device instead of today")
	cmd.Flags().IntVar(&s.index, "index", 0, "stored day index for --stored (0 = yesterday)")
}

// loadedHistory is a history plus the metadata needed to render it.
type loadedHistory struct {
	History   model.History
	Names     model.SeriesNames
	FromStore bool
	Warning   string
}

// load resolves the source: --date reads the store, piped stdin is read as
// JSONL, otherwise the device is asked. A device failure is not an error:
// the history is empty and Warning says why.
func (s *historySource) load(cmd *cobra.Command, deps *app.Deps) (*loadedHistory, error) {
	ctx := cmd.Context()
	if s.date != "" {
		key, err := util.ParseDateKey(s.date)
		if err != nil {
			return nil, err
		}
		if err := deps.RequireStore(); err != nil {
			return nil, err
		}
		h, ok, err := deps.Store.GetHistory(key)
		if err != nil {
			return nil, fmt.Errorf("reading store: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("no stored history for %s\n\n  Use: aasun history get --stored --index N --store", key)
		}
		return &loadedHistory{History: h, Names: seriesNames(ctx, deps, false), FromStore: true}, nil
	}

	if !s.stored && pipeline.StdinIsPiped() {
		h, err := pipeline.ReadHistory(cmd.InOrStdin())
		if err != nil {
			return nil, err
		}
		return &loadedHistory{History: h, Names: model.DefaultSeriesNames()}, nil
	}

	if err := deps.Config.Validate(); err != nil {
		return nil, err
	}
	sel := model.Today()
	if s.stored {
		if err := checkStoredIndex(s.index); err != nil {
			return nil, err
		}
		sel = model.Stored(s.index)
	}
	return fetchHistory(ctx, deps, sel)
}

// fetchHistory loads one history from the device and the names to go with it.
func fetchHistory(ctx context.Context, deps *app.Deps, sel model.HistorySelector) (*loadedHistory, error) {
	h, err := history.Load(ctx, deps.Client, sel)
	lh := &loadedHistory{History: h, Names: seriesNames(ctx, deps, true)}
	if err != nil {
		if !errors.Is(err, history.ErrNoData) {
			return nil, err
		}
		lh.Warning = err.Error()
	}
	return lh, nil
}

// historyResult wraps a loaded history in a Result envelope.
func historyResult(command string, lh *loadedHistory, start time.Time) *model.Result {
	h := lh.History
	r := newResult(model.KindHistory, command, &h, len(h.Samples), start)
	r.Names = lh.Names
	r.Stats.FromStore = lh.FromStore
	if lh.Warning != "" {
		r.Warnings = append(r.Warnings, lh.Warning)
	}
	return r
}

func humanBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
