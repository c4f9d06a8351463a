// Package render converts Result values into human-readable or machine-parseable
// output. Every result kind is first laid out as a grid of cells; the table,
// delimited and markdown writers share that grid. The top-level Render
// dispatcher selects based on the format string.
package render

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/olekukonko/tablewriter"

	"github.com/derickschaefer/aasun/internal/analyze"
	"github.com/derickschaefer/aasun/internal/model"
	"github.com/derickschaefer/aasun/internal/pipeline"
)

// Format constants matching --format flag values.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
	FormatTSV   = "tsv"
	FormatMD    = "md"
	FormatYAML  = "yaml"
)

// Formats lists every accepted --format value.
var Formats = []string{FormatTable, FormatJSON, FormatJSONL, FormatCSV, FormatTSV, FormatMD, FormatYAML}

// ValidFormat reports whether f is an accepted --format value.
func ValidFormat(f string) bool {
	for _, v := range Formats {
		if v == f {
			return true
		}
	}
	return false
}

// Render writes result to w in the specified format.
func Render(w io.Writer, result *model.Result, format string) error {
	switch format {
	case FormatJSON:
		return renderJSON(w, result)
	case FormatJSONL:
		return renderJSONL(w, result)
	case FormatYAML:
		return renderYAML(w, result)
	case FormatCSV:
		return renderDelimited(w, result, ',')
	case FormatTSV:
		return renderDelimited(w, result, '\t')
	case FormatMD:
		return renderMarkdown(w, result)
	default:
		return renderTable(w, result)
	}
}

// ─── JSON / YAML ──────────────────────────────────────────────────────────────

func renderJSON(w io.Writer, result *model.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func renderYAML(w io.Writer, result *model.Result) error {
	b, err := yaml.Marshal(result)
	if err != nil {
		return fmt.Errorf("encoding yaml: %w", err)
	}
	_, err = w.Write(b)
	return err
}

// ─── JSONL ────────────────────────────────────────────────────────────────────

// renderJSONL writes one JSON object per line. Histories use the pipe format
// read back by pipeline.ReadHistory; lists write one element per line.
func renderJSONL(w io.Writer, result *model.Result) error {
	enc := json.NewEncoder(w)
	switch d := result.Data.(type) {
	case *model.History:
		return pipeline.WriteJSONL(w, *d)
	case model.History:
		return pipeline.WriteJSONL(w, d)
	case []model.HistoryEntry:
		return encodeEach(enc, d)
	case []model.Energy:
		return encodeEach(enc, d)
	case []analyze.TrendResult:
		return encodeEach(enc, d)
	case *analyze.DaySummary:
		return encodeEach(enc, d.Series)
	case *model.LivePower:
		return encodeEach(enc, d.Channels)
	case []model.Temperature:
		return encodeEach(enc, d)
	case []model.Rule:
		return encodeEach(enc, d)
	default:
		return enc.Encode(result.Data)
	}
}

func encodeEach[T any](enc *json.Encoder, items []T) error {
	for _, it := range items {
		if err := enc.Encode(it); err != nil {
			return err
		}
	}
	return nil
}

// ─── Grid layout ──────────────────────────────────────────────────────────────

// grid is the tabular layout of one result. Empty cells mean "not reported".
type grid struct {
	title  string
	header []string
	rows   [][]string
	right  map[int]bool // right-aligned (numeric) columns
	empty  string       // shown instead of an empty table
}

func numericFrom(start, n int) map[int]bool {
	m := make(map[int]bool, n)
	for i := start; i < n; i++ {
		m[i] = true
	}
	return m
}

// layout converts result into a grid. ok is false for unknown kinds or
// payload types, which fall back to JSON.
func layout(result *model.Result) (*grid, bool) {
	names := namesOf(result)
	switch result.Kind {
	case model.KindHistory:
		h, ok := historyOf(result.Data)
		if !ok {
			return nil, false
		}
		return historyGrid(h, names), true
	case model.KindHistoryList:
		entries, ok := result.Data.([]model.HistoryEntry)
		if !ok {
			return nil, false
		}
		return historyListGrid(entries), true
	case model.KindEnergy:
		e, ok := energyOf(result.Data)
		if !ok {
			return nil, false
		}
		return energyGrid(e, names), true
	case model.KindEnergyList:
		list, ok := result.Data.([]model.Energy)
		if !ok {
			return nil, false
		}
		return energyListGrid(list, names), true
	case model.KindNames:
		n, ok := result.Data.(model.SeriesNames)
		if !ok {
			return nil, false
		}
		return namesGrid(n), true
	case model.KindSummary:
		ds, ok := result.Data.(*analyze.DaySummary)
		if !ok {
			return nil, false
		}
		return summaryGrid(ds), true
	case model.KindTrend:
		trends, ok := result.Data.([]analyze.TrendResult)
		if !ok {
			return nil, false
		}
		return trendGrid(trends), true
	case model.KindVersion:
		v, ok := result.Data.(*model.DeviceVersion)
		if !ok {
			return nil, false
		}
		return versionGrid(v), true
	case model.KindPower:
		lp, ok := result.Data.(*model.LivePower)
		if !ok {
			return nil, false
		}
		return powerGrid(lp), true
	case model.KindMeter:
		m, ok := result.Data.(*model.MeterReading)
		if !ok {
			return nil, false
		}
		return meterGrid(m), true
	case model.KindTemperature:
		ts, ok := result.Data.([]model.Temperature)
		if !ok {
			return nil, false
		}
		return temperatureGrid(ts), true
	case model.KindStatus:
		st, ok := result.Data.(*model.DeviceStatus)
		if !ok {
			return nil, false
		}
		return statusGrid(st), true
	case model.KindRules:
		rules, ok := result.Data.([]model.Rule)
		if !ok {
			return nil, false
		}
		return rulesGrid(rules), true
	case model.KindVariables:
		v, ok := result.Data.(*model.Variables)
		if !ok {
			return nil, false
		}
		return variablesGrid(v), true
	}
	return nil, false
}

func historyGrid(h model.History, names model.SeriesNames) *grid {
	g := &grid{title: "Date: " + h.Date, empty: "no data"}
	idx := h.EnabledIndices()
	g.header = append(g.header, "TIME")
	for _, i := range idx {
		g.header = append(g.header, names[i])
	}
	g.right = numericFrom(1, len(g.header))
	for _, s := range h.Samples {
		row := make([]string, 0, len(g.header))
		row = append(row, s.TimeLabel)
		for _, i := range idx {
			row = append(row, strconv.FormatInt(int64(s.Values[i]), 10))
		}
		g.rows = append(g.rows, row)
	}
	return g
}

func historyListGrid(entries []model.HistoryEntry) *grid {
	g := &grid{
		header: []string{"DATE", "DEVICE DATE", "SOURCE", "SAMPLES", "FETCHED"},
		right:  map[int]bool{3: true},
		empty:  "no stored histories",
	}
	for _, e := range entries {
		g.rows = append(g.rows, []string{
			e.DateKey, e.Date, e.Selector.String(),
			strconv.Itoa(e.Samples), e.FetchedAt.Format(time.RFC3339),
		})
	}
	return g
}

func energyGrid(e model.Energy, names model.SeriesNames) *grid {
	title := "Energy " + string(e.Scope)
	if e.Scope == model.EnergyHistory {
		title += fmt.Sprintf(" [%d]", e.Index)
	}
	if e.Date != "" {
		title += " " + e.Date
	}
	g := &grid{title: title, header: []string{"SERIES", "WH"}, right: map[int]bool{1: true}}
	for i, v := range e.Values {
		g.rows = append(g.rows, []string{names[i], optInt(v)})
	}
	return g
}

func energyListGrid(list []model.Energy, names model.SeriesNames) *grid {
	g := &grid{header: []string{"DATE", "SCOPE"}, empty: "no stored energy counters"}
	g.header = append(g.header, names[:]...)
	g.right = numericFrom(2, len(g.header))
	for _, e := range list {
		row := []string{e.DateKey, string(e.Scope)}
		for _, v := range e.Values {
			row = append(row, optInt(v))
		}
		g.rows = append(g.rows, row)
	}
	return g
}

func namesGrid(n model.SeriesNames) *grid {
	g := &grid{header: []string{"INDEX", "NAME"}, right: map[int]bool{0: true}}
	for i, name := range n {
		g.rows = append(g.rows, []string{strconv.Itoa(i), name})
	}
	return g
}

func summaryGrid(ds *analyze.DaySummary) *grid {
	g := &grid{
		title:  "Date: " + ds.Date,
		header: []string{"SERIES", "COUNT", "MEAN", "STD", "MIN", "MEDIAN", "MAX", "PEAK AT", "ENERGY WH"},
		empty:  "no data",
	}
	g.right = numericFrom(1, len(g.header))
	g.right[7] = false
	for _, s := range ds.Series {
		g.rows = append(g.rows, []string{
			s.Name, strconv.Itoa(s.Count),
			fmtF(s.Mean), fmtF(s.Std), fmtF(s.Min), fmtF(s.Median), fmtF(s.Max),
			s.PeakLabel, fmtF(s.EnergyWh),
		})
	}
	return g
}

func trendGrid(trends []analyze.TrendResult) *grid {
	g := &grid{
		header: []string{"SERIES", "METHOD", "SLOPE W/H", "INTERCEPT", "R2", "DIRECTION"},
		right:  map[int]bool{2: true, 3: true, 4: true},
		empty:  "no data",
	}
	for _, t := range trends {
		g.rows = append(g.rows, []string{
			t.Name, string(t.Method), fmtF(t.Slope), fmtF(t.Intercept),
			strconv.FormatFloat(t.R2, 'f', 3, 64), t.Direction,
		})
	}
	return g
}

func versionGrid(v *model.DeviceVersion) *grid {
	return &grid{
		header: []string{"FIELD", "VALUE"},
		rows: [][]string{
			{"Software", v.Software},
			{"WiFi", v.Wifi},
			{"WiFi mode", v.WifiMode},
		},
	}
}

// powerGrid shows one row per current transformer. The title carries the
// readings shared by all channels.
func powerGrid(lp *model.LivePower) *grid {
	title := fmt.Sprintf("Vrms: %d V   Diverted: %d W   Counters: %d / %d",
		lp.VRms, lp.Diverted, lp.Counter1, lp.Counter2)
	g := &grid{
		title:  title,
		header: []string{"CHANNEL", "REAL (W)", "APPARENT (VA)", "COS PHI", "IRMS (RAW)"},
		right:  numericFrom(1, 5),
		empty:  "no channels reported",
	}
	for _, ch := range lp.Channels {
		g.rows = append(g.rows, []string{
			"P" + strconv.Itoa(ch.Channel),
			strconv.FormatInt(ch.Real, 10),
			strconv.FormatInt(ch.App, 10),
			strconv.FormatFloat(ch.CosPhi, 'f', 3, 64),
			strconv.FormatInt(ch.IRmsRaw, 10),
		})
	}
	return g
}

func meterGrid(m *model.MeterReading) *grid {
	return &grid{
		header: []string{"FIELD", "VALUE"},
		rows: [][]string{
			{"Voltage (V)", strconv.FormatInt(m.Volt, 10)},
			{"Energy (Wh)", strconv.FormatInt(m.EnergyWh, 10)},
			{"Apparent power (VA)", strconv.FormatInt(m.PApp, 10)},
		},
	}
}

// temperatureGrid shows absent or out-of-range sensors as "-".
func temperatureGrid(ts []model.Temperature) *grid {
	g := &grid{header: []string{"SENSOR", "°C"}, right: map[int]bool{1: true}}
	for _, t := range ts {
		v := "-"
		if t.Celsius != nil {
			v = fmtF(*t.Celsius)
		}
		g.rows = append(g.rows, []string{"T" + strconv.Itoa(t.Sensor), v})
	}
	return g
}

func statusGrid(st *model.DeviceStatus) *grid {
	g := &grid{
		title:  fmt.Sprintf("Status word: 0x%04X", st.Word),
		header: []string{"ITEM", "STATE"},
	}
	for _, b := range st.Bits {
		state := "no"
		if b.Set {
			state = "yes"
		}
		g.rows = append(g.rows, []string{b.Name, state})
	}
	for _, o := range st.Outputs {
		state := string(o.State)
		if o.Rule > 0 {
			state += " rule " + strconv.Itoa(o.Rule)
		}
		g.rows = append(g.rows, []string{"output " + strconv.Itoa(o.Output), state})
	}
	return g
}

func rulesGrid(rules []model.Rule) *grid {
	g := &grid{
		header: []string{"KIND", "#", "ENABLED", "START", "STOP"},
		right:  map[int]bool{1: true},
		empty:  "no rules defined",
	}
	for _, r := range rules {
		on := "no"
		if r.Enabled {
			on = "yes"
		}
		g.rows = append(g.rows, []string{r.Kind, strconv.Itoa(r.Number), on, r.Start, r.Stop})
	}
	return g
}

func variablesGrid(v *model.Variables) *grid {
	g := &grid{header: []string{"NAME", "VALUE"}, right: map[int]bool{1: true}}
	for i, val := range v.Values {
		g.rows = append(g.rows, []string{"V" + strconv.Itoa(i+1), strconv.FormatInt(val, 10)})
	}
	al := v.ALSensor
	if v.ALValue != "" {
		al += " " + v.ALValue
	}
	g.rows = append(g.rows, []string{"Anti-legionella", al})
	return g
}

// ─── Table ────────────────────────────────────────────────────────────────────

func renderTable(w io.Writer, result *model.Result) error {
	g, ok := layout(result)
	if !ok {
		return renderJSON(w, result)
	}
	if g.title != "" {
		fmt.Fprintln(w, g.title)
	}
	if len(g.rows) == 0 && g.empty != "" {
		fmt.Fprintln(w, g.empty)
		return nil
	}

	tw := tablewriter.NewWriter(w)
	tw.SetHeader(g.header)
	tw.SetBorder(true)
	tw.SetRowLine(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	align := make([]int, len(g.header))
	for i := range align {
		align[i] = tablewriter.ALIGN_LEFT
		if g.right[i] {
			align[i] = tablewriter.ALIGN_RIGHT
		}
	}
	tw.SetColumnAlignment(align)
	tw.SetAutoWrapText(false)
	tw.SetAutoFormatHeaders(false)

	for _, r := range g.rows {
		cells := make([]string, len(r))
		for i, c := range r {
			cells[i] = c
			if c == "" {
				cells[i] = "-"
			}
		}
		tw.Append(cells)
	}
	tw.Render()
	return nil
}

// ─── CSV / TSV ────────────────────────────────────────────────────────────────

func renderDelimited(w io.Writer, result *model.Result, sep rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = sep

	if g, ok := layout(result); ok {
		_ = cw.Write(g.header)
		for _, r := range g.rows {
			_ = cw.Write(r)
		}
	} else {
		// Fallback: serialize as JSON on a single line
		b, err := json.Marshal(result.Data)
		if err != nil {
			return err
		}
		_ = cw.Write([]string{string(b)})
	}

	cw.Flush()
	return cw.Error()
}

// ─── Markdown ─────────────────────────────────────────────────────────────────

func renderMarkdown(w io.Writer, result *model.Result) error {
	g, ok := layout(result)
	if !ok {
		return renderJSON(w, result)
	}
	if g.title != "" {
		fmt.Fprintf(w, "**%s**\n\n", mdEscape(g.title))
	}
	if len(g.rows) == 0 && g.empty != "" {
		fmt.Fprintf(w, "_%s_\n", g.empty)
		return nil
	}
	sep := make([]string, len(g.header))
	for i := range sep {
		sep[i] = "---"
		if g.right[i] {
			sep[i] = "---:"
		}
	}
	writeMDRow(w, g.header)
	writeMDRow(w, sep)
	for _, r := range g.rows {
		writeMDRow(w, r)
	}
	return nil
}

func writeMDRow(w io.Writer, cells []string) {
	esc := make([]string, len(cells))
	for i, c := range cells {
		esc[i] = mdEscape(c)
	}
	fmt.Fprintf(w, "| %s |\n", strings.Join(esc, " | "))
}

// ─── Warnings / Stats Footer ─────────────────────────────────────────────────

// PrintFooter writes warnings to w, and the stats line when verbose is set.
func PrintFooter(w io.Writer, result *model.Result, verbose bool) {
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "⚠  %s\n", warn)
	}
	if verbose {
		src := "device"
		if result.Stats.FromStore {
			src = "store"
		}
		fmt.Fprintf(w, "\n[%s • %d items • %dms • %s]\n",
			result.GeneratedAt.Format(time.RFC3339),
			result.Stats.Items,
			result.Stats.DurationMs,
			src,
		)
	}
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// namesOf returns the series names carried by result, or the defaults when
// the command did not set any.
func namesOf(result *model.Result) model.SeriesNames {
	if result.Names == (model.SeriesNames{}) {
		return model.DefaultSeriesNames()
	}
	return result.Names
}

func historyOf(data interface{}) (model.History, bool) {
	switch d := data.(type) {
	case *model.History:
		if d == nil {
			return model.History{}, false
		}
		return *d, true
	case model.History:
		return d, true
	}
	return model.History{}, false
}

func energyOf(data interface{}) (model.Energy, bool) {
	switch d := data.(type) {
	case *model.Energy:
		if d == nil {
			return model.Energy{}, false
		}
		return *d, true
	case model.Energy:
		return d, true
	}
	return model.Energy{}, false
}

func optInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

// fmtF formats a statistic with one decimal place.
func fmtF(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func mdEscape(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
