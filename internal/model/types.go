// Package model defines the canonical data types used throughout aasun.
// These types are the single source of truth for decoded device data and
// the result envelope that every command returns.
package model

import (
	"strconv"
	"time"
)

// ─── Power History ────────────────────────────────────────────────────────────

// SeriesCount is the number of 32-bit values in one history sample.
const SeriesCount = 9

// FirstOptionalSeries is the index of the first series whose presence is
// announced by the history header. Series below it are always present.
const FirstOptionalSeries = 4

// Series indices in a Sample, in wire order.
const (
	SeriesImported = iota
	SeriesExported
	SeriesDiverted1
	SeriesDiverted2
	SeriesP2
	SeriesP3
	SeriesP4
	SeriesCounter1
	SeriesCounter2
)

// Sample is one 15-minute slot of power readings.
// TimeLabel is synthesized from the slot position, never transmitted.
type Sample struct {
	TimeLabel string             `json:"time"`
	Values    [SeriesCount]int32 `json:"values"`
}

// Availability flags which of the nine series carry data for one history.
type Availability [SeriesCount]bool

// DefaultAvailability is the mask before any header has been decoded:
// the four mandatory series on, the optional ones off.
func DefaultAvailability() Availability {
	var a Availability
	for i := 0; i < FirstOptionalSeries; i++ {
		a[i] = true
	}
	return a
}

// HistoryKind selects which device buffer a history request reads.
type HistoryKind string

const (
	// HistoryToday is the RAM buffer being filled for the current day.
	HistoryToday HistoryKind = "today"
	// HistoryStored is a past day from the device's flash history ring.
	HistoryStored HistoryKind = "stored"
)

// MaxStoredIndex is the highest flash history index the device serves
// (HISTO_MAX-2 on a 32 slot ring).
const MaxStoredIndex = 30

// HistorySelector identifies one two-part history request.
type HistorySelector struct {
	Kind  HistoryKind `json:"kind"`
	Index int         `json:"index"`
}

// Today returns the selector for the current day.
func Today() HistorySelector { return HistorySelector{Kind: HistoryToday} }

// Stored returns the selector for flash history slot index.
func Stored(index int) HistorySelector {
	return HistorySelector{Kind: HistoryStored, Index: index}
}

// MID returns the powerHisto.cgi message ID for part 1 or part 2.
func (s HistorySelector) MID(part int) int {
	base := 1
	if s.Kind == HistoryStored {
		base = 3
	}
	return base + part - 1
}

// String renders the selector for logs and command names.
func (s HistorySelector) String() string {
	if s.Kind == HistoryStored {
		return "stored[" + strconv.Itoa(s.Index) + "]"
	}
	return string(HistoryToday)
}

// History is the decoded result of one two-part history request.
// An empty Samples slice with an empty Date means "no data".
type History struct {
	Selector  HistorySelector `json:"selector"`
	Date      string          `json:"date"`     // device format: Y/M/D, unpadded
	DateKey   string          `json:"date_key"` // YYYY-MM-DD, empty when no data
	Available Availability    `json:"available"`
	Samples   []Sample        `json:"samples"`
	FetchedAt time.Time       `json:"fetched_at,omitempty"`
}

// Empty returns true if the history carries no samples.
func (h History) Empty() bool {
	return len(h.Samples) == 0
}

// Point is one (label, value) pair of a chart series.
type Point struct {
	Label string `json:"label"`
	Value int32  `json:"value"`
}

// Series is one named column of a History.
// Disabled series have Enabled=false and nil Points.
type Series struct {
	Index   int     `json:"index"`
	Name    string  `json:"name"`
	Enabled bool    `json:"enabled"`
	Points  []Point `json:"points"`
}

// Series splits the history into its nine columns.
func (h History) Series(names SeriesNames) []Series {
	out := make([]Series, SeriesCount)
	for i := 0; i < SeriesCount; i++ {
		out[i] = Series{Index: i, Name: names[i], Enabled: h.Available[i]}
		if !h.Available[i] {
			continue
		}
		pts := make([]Point, len(h.Samples))
		for j, s := range h.Samples {
			pts[j] = Point{Label: s.TimeLabel, Value: s.Values[i]}
		}
		out[i].Points = pts
	}
	return out
}

// EnabledIndices returns the indices of available series in order.
func (h History) EnabledIndices() []int {
	var idx []int
	for i, ok := range h.Available {
		if ok {
			idx = append(idx, i)
		}
	}
	return idx
}

// SeriesNames holds the display name of every series.
type SeriesNames [SeriesCount]string

// DefaultSeriesNames are the names the device pages use until enames.cgi
// answers.
func DefaultSeriesNames() SeriesNames {
	return SeriesNames{
		"Imported", "Exported", "Div 1 (est)", "Div 2 (est)",
		"P2", "P3", "P4", "Cnt1", "Cnt2",
	}
}

// ─── Energy ───────────────────────────────────────────────────────────────────

// EnergyScope selects one energy.cgi counter set.
type EnergyScope string

const (
	EnergyTotal   EnergyScope = "total"
	EnergyDay     EnergyScope = "day"
	EnergyHistory EnergyScope = "history"
)

// Energy is one set of energy counters in Wh.
// Values[i] is nil when the device did not report counter i (CT3/CT4 absent).
type Energy struct {
	Scope     EnergyScope         `json:"scope"`
	Index     int                 `json:"index,omitempty"`
	Date      string              `json:"date"`
	DateKey   string              `json:"date_key"`
	Values    [SeriesCount]*int64 `json:"values"`
	FetchedAt time.Time           `json:"fetched_at,omitempty"`
}

// ─── Device ───────────────────────────────────────────────────────────────────

// DeviceVersion is the answer of version.cgi.
type DeviceVersion struct {
	Software    string `json:"software"`
	SoftwareRaw int64  `json:"software_raw"`
	Wifi        string `json:"wifi"`
	WifiMode    string `json:"wifi_mode"` // "Station", "Access Point" or "-"
	WifiAP      bool   `json:"wifi_ap"`
	WifiPresent bool   `json:"wifi_present"`
}

// ─── Live Readings ────────────────────────────────────────────────────────────

// ChannelCount is the number of current-transformer inputs (CT1..CT4).
const ChannelCount = 4

// ChannelPower is one current transformer's reading from volt.cgi.
type ChannelPower struct {
	Channel int     `json:"channel"` // 1..4
	IRmsRaw int64   `json:"i_rms_raw"`
	Real    int64   `json:"real_w"`
	App     int64   `json:"apparent_va"`
	CosPhi  float64 `json:"cos_phi"`
}

// LivePower is the instantaneous metering snapshot from volt.cgi.
// Channels 3 and 4 are only listed when the firmware is built with CT3/CT4;
// HasCT3 and HasCT4 record that presence.
type LivePower struct {
	VRms      int64          `json:"v_rms"`
	Channels  []ChannelPower `json:"channels"`
	Diverted  int64          `json:"diverted_w"`
	Counter1  int64          `json:"counter1_w"`
	Counter2  int64          `json:"counter2_w"`
	HasCT3    bool           `json:"has_ct3"`
	HasCT4    bool           `json:"has_ct4"`
	FetchedAt time.Time      `json:"fetched_at"`
}

// MeterReading is the Linky TIC data from meter.cgi.
type MeterReading struct {
	Volt     int64 `json:"volt"`
	EnergyWh int64 `json:"energy_wh"`
	PApp     int64 `json:"apparent_va"`
}

// MaxValidTemperature is the highest reading shown; the device reports
// 200 °C for absent or failed sensors.
const MaxValidTemperature = 199.0

// TemperatureSensors is the number of DS18B20 inputs.
const TemperatureSensors = 4

// Temperature is one DS18B20 sensor. Celsius is nil when the sensor is
// absent or its reading is invalid.
type Temperature struct {
	Sensor  int      `json:"sensor"` // 1..4
	Celsius *float64 `json:"celsius"`
}

// StatusBit names one bit of the device status word.
type StatusBit struct {
	Bit  int    `json:"bit"`
	Name string `json:"name"`
	Set  bool   `json:"set"`
}

// StatusBitNames maps the named status word bits. Line A is bits 0..7,
// line B bits 8..15; unnamed bits are reserved.
var StatusBitNames = map[int]string{
	0:  "diverter enabled",
	1:  "diverting",
	2:  "Linky TIC managed",
	3:  "time synchronised",
	4:  "power history on",
	5:  "LAN chip present",
	6:  "WiFi connected",
	8:  "not synchronised to mains",
	9:  "invalid flash configuration",
	10: "ADC overflow",
	11: "diverting at maximum",
	12: "diverter resistor open",
	13: "network link off",
}

// OutputState is what drives one output.
type OutputState string

const (
	OutputIdle      OutputState = "idle"
	OutputDiverting OutputState = "diverting"
	OutputForcing   OutputState = "forcing"
)

// OutputStatus is one entry of dfstatus.cgi. Rule is the 1-based
// diverting or forcing rule number, 0 when idle.
type OutputStatus struct {
	Output int         `json:"output"` // 1..4
	State  OutputState `json:"state"`
	Rule   int         `json:"rule,omitempty"`
}

// DeviceStatus combines statusWord.cgi and dfstatus.cgi.
type DeviceStatus struct {
	Word    uint32         `json:"word"`
	Bits    []StatusBit    `json:"bits"`
	Outputs []OutputStatus `json:"outputs"`
}

// Rule is one diverting rule, or one forcing rule's start/stop pair.
type Rule struct {
	Kind    string `json:"kind"` // "diverting" or "forcing"
	Number  int    `json:"number"`
	Enabled bool   `json:"enabled"`
	Start   string `json:"start"`
	Stop    string `json:"stop,omitempty"`
}

// VariableCount is the number of user variables V1..V4.
const VariableCount = 4

// Variables is the answer of variable.cgi. ALSensor is "Off", "I<n>" or
// "T<n>"; ALValue is only meaningful when it is not "Off".
type Variables struct {
	Values   [VariableCount]int64 `json:"values"`
	ALSensor string               `json:"anti_legionella_sensor"`
	ALValue  string               `json:"anti_legionella_value,omitempty"`
}

// ─── Result Envelope ─────────────────────────────────────────────────────────

// ResultStats carries performance and source metadata for a command result.
type ResultStats struct {
	FromStore  bool  `json:"from_store"`
	DurationMs int64 `json:"duration_ms"`
	Items      int   `json:"items"`
}

// Result is the uniform envelope returned by every command.
// The Data field holds the typed payload; Kind identifies what is in it.
// Renderers switch on Kind to format output appropriately.
type Result struct {
	Kind        string      `json:"kind"`
	GeneratedAt time.Time   `json:"generated_at"`
	Command     string      `json:"command"`
	Data        interface{} `json:"data"`
	Names       SeriesNames `json:"-"`
	Warnings    []string    `json:"warnings,omitempty"`
	Stats       ResultStats `json:"stats"`
}

// Kind constants for Result.Kind.
const (
	KindHistory     = "history"
	KindHistoryList = "history_list"
	KindEnergy      = "energy"
	KindEnergyList  = "energy_list"
	KindNames       = "names"
	KindSummary     = "summary"
	KindTrend       = "trend"
	KindVersion     = "version"
	KindPower       = "power"
	KindMeter       = "meter"
	KindTemperature = "temperature"
	KindStatus      = "status"
	KindRules       = "rules"
	KindVariables   = "variables"
)

// HistoryEntry is one row of a stored-history listing.
type HistoryEntry struct {
	DateKey   string          `json:"date_key"`
	Date      string          `json:"date"`
	Selector  HistorySelector `json:"selector"`
	Samples   int             `json:"samples"`
	FetchedAt time.Time       `json:"fetched_at"`
}
