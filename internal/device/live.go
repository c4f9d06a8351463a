package device

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/derickschaefer/aasun/internal/model"
)

// All live endpoints answer a flat JSON object whose values are decimal
// strings. fields wraps that object with typed accessors.
type fields map[string]string

func (f fields) has(key string) bool {
	_, ok := f[key]
	return ok
}

func (f fields) num(key string) (int64, error) {
	s, ok := f[key]
	if !ok {
		return 0, fmt.Errorf("missing %s field", key)
	}
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", key, s)
	}
	return v, nil
}

// ints reads keys in order and stops at the first error.
func (f fields) ints(keys ...string) ([]int64, error) {
	out := make([]int64, len(keys))
	var err error
	for i, k := range keys {
		if out[i], err = f.num(k); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (c *Client) getFields(ctx context.Context, endpoint string, params url.Values) (fields, error) {
	var raw fields
	if err := c.getJSON(ctx, endpoint, params, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// ─── volt.cgi ─────────────────────────────────────────────────────────────────

// GetLivePower fetches volt.cgi. CT3 and CT4 are present when their
// p3Real / p4Real keys are in the answer.
func (c *Client) GetLivePower(ctx context.Context) (*model.LivePower, error) {
	f, err := c.getFields(ctx, "volt.cgi", nil)
	if err != nil {
		return nil, fmt.Errorf("live power: %w", err)
	}
	lp, err := parseLivePower(f)
	if err != nil {
		return nil, fmt.Errorf("live power: %w", err)
	}
	lp.FetchedAt = time.Now()
	return lp, nil
}

func parseLivePower(f fields) (*model.LivePower, error) {
	v, err := f.ints("vRms", "pDiv", "Counter1", "Counter2")
	if err != nil {
		return nil, err
	}
	lp := &model.LivePower{
		VRms:     v[0],
		Diverted: v[1],
		Counter1: v[2],
		Counter2: v[3],
		HasCT3:   f.has("p3Real"),
		HasCT4:   f.has("p4Real"),
	}
	for ch := 1; ch <= model.ChannelCount; ch++ {
		n := strconv.Itoa(ch)
		if ch > 2 && !f.has("p"+n+"Real") {
			continue
		}
		cv, err := f.ints("p"+n+"Real", "p"+n+"App", "cPhi"+n)
		if err != nil {
			return nil, err
		}
		// Firmware older than the i*Rms fields still reports power.
		irms, _ := f.num("i" + n + "Rms")
		lp.Channels = append(lp.Channels, model.ChannelPower{
			Channel: ch,
			IRmsRaw: irms,
			Real:    cv[0],
			App:     cv[1],
			CosPhi:  float64(cv[2]) / 1000,
		})
	}
	return lp, nil
}

// ─── meter.cgi ────────────────────────────────────────────────────────────────

// GetMeter fetches the Linky TIC reading from meter.cgi.
func (c *Client) GetMeter(ctx context.Context) (*model.MeterReading, error) {
	f, err := c.getFields(ctx, "meter.cgi", nil)
	if err != nil {
		return nil, fmt.Errorf("meter: %w", err)
	}
	v, err := f.ints("volt", "cnt", "pApp")
	if err != nil {
		return nil, fmt.Errorf("meter: %w", err)
	}
	return &model.MeterReading{Volt: v[0], EnergyWh: v[1], PApp: v[2]}, nil
}

// ─── temperature.cgi ──────────────────────────────────────────────────────────

// GetTemperatures fetches every sensor with temperature.cgi?mid=All.
func (c *Client) GetTemperatures(ctx context.Context) ([]model.Temperature, error) {
	f, err := c.getFields(ctx, "temperature.cgi", url.Values{"mid": {"All"}})
	if err != nil {
		return nil, fmt.Errorf("temperature: %w", err)
	}
	ts, err := parseTemperatures(f)
	if err != nil {
		return nil, fmt.Errorf("temperature: %w", err)
	}
	return ts, nil
}

// parseTemperatures divides each raw tempN by factor. Missing sensors and
// readings above MaxValidTemperature come back with a nil Celsius.
func parseTemperatures(f fields) ([]model.Temperature, error) {
	factor, err := f.num("factor")
	if err != nil {
		return nil, err
	}
	if factor <= 0 {
		return nil, fmt.Errorf("invalid factor %d", factor)
	}
	out := make([]model.Temperature, model.TemperatureSensors)
	for i := range out {
		out[i].Sensor = i + 1
		raw, err := f.num("temp" + strconv.Itoa(i+1))
		if err != nil {
			continue
		}
		c := float64(raw) / float64(factor)
		if c > model.MaxValidTemperature {
			continue
		}
		out[i].Celsius = &c
	}
	return out, nil
}

// ─── statusWord.cgi / dfstatus.cgi ────────────────────────────────────────────

// statusBits is the width of the word shown by the device pages.
const statusBits = 16

// GetStatus fetches statusWord.cgi and then dfstatus.cgi.
func (c *Client) GetStatus(ctx context.Context) (*model.DeviceStatus, error) {
	f, err := c.getFields(ctx, "statusWord.cgi", nil)
	if err != nil {
		return nil, fmt.Errorf("status word: %w", err)
	}
	sw, err := f.num("SW")
	if err != nil || sw < 0 || sw > 0xFFFFFFFF {
		return nil, fmt.Errorf("status word: invalid SW %q", f["SW"])
	}
	st := &model.DeviceStatus{Word: uint32(sw), Bits: decodeStatusWord(uint32(sw))}

	f, err = c.getFields(ctx, "dfstatus.cgi", nil)
	if err != nil {
		return nil, fmt.Errorf("output status: %w", err)
	}
	if st.Outputs, err = parseOutputs(f); err != nil {
		return nil, fmt.Errorf("output status: %w", err)
	}
	return st, nil
}

// decodeStatusWord lists the named bits of the low 16 bits.
func decodeStatusWord(w uint32) []model.StatusBit {
	var bits []model.StatusBit
	for b := 0; b < statusBits; b++ {
		name, ok := model.StatusBitNames[b]
		if !ok {
			continue
		}
		bits = append(bits, model.StatusBit{Bit: b, Name: name, Set: w&(1<<b) != 0})
	}
	return bits
}

// parseOutputs reads outN values of the form "Diverting 0", "Forcing 3"
// or "- 0". The number is the 0-based rule index.
func parseOutputs(f fields) ([]model.OutputStatus, error) {
	var out []model.OutputStatus
	for i := 0; f.has("out" + strconv.Itoa(i)); i++ {
		s := f["out"+strconv.Itoa(i)]
		words := strings.Fields(s)
		st := model.OutputStatus{Output: i + 1, State: model.OutputIdle}
		if len(words) > 0 && words[0] != "-" {
			if len(words) < 2 {
				return nil, fmt.Errorf("invalid out%d %q", i, s)
			}
			idx, err := strconv.Atoi(words[1])
			if err != nil {
				return nil, fmt.Errorf("invalid out%d %q", i, s)
			}
			switch words[0] {
			case "Diverting":
				st.State = model.OutputDiverting
			case "Forcing":
				st.State = model.OutputForcing
			default:
				return nil, fmt.Errorf("invalid out%d %q", i, s)
			}
			st.Rule = idx + 1
		}
		out = append(out, st)
	}
	return out, nil
}

// ─── divrules.cgi / forcerules.cgi ────────────────────────────────────────────

// MaxForcingRules is the number of forcing rule slots on the device.
const MaxForcingRules = 8

// GetRules fetches the two diverting rules and every valid forcing rule.
func (c *Client) GetRules(ctx context.Context) ([]model.Rule, error) {
	f, err := c.getFields(ctx, "divrules.cgi", nil)
	if err != nil {
		return nil, fmt.Errorf("diverting rules: %w", err)
	}
	var rules []model.Rule
	for i := 1; i <= 2; i++ {
		text, ok := f["rule"+strconv.Itoa(i)]
		if !ok {
			continue
		}
		on, body := splitOnOff(text)
		rules = append(rules, model.Rule{Kind: "diverting", Number: i, Enabled: on, Start: body})
	}

	f, err = c.getFields(ctx, "forcerules.cgi", nil)
	if err != nil {
		return nil, fmt.Errorf("forcing rules: %w", err)
	}
	for i := 0; i < MaxForcingRules; i++ {
		n := strconv.Itoa(i)
		text, ok := f["start"+n]
		if !ok {
			continue
		}
		on, body := splitOnOff(text)
		rules = append(rules, model.Rule{
			Kind: "forcing", Number: i + 1, Enabled: on,
			Start: body, Stop: strings.TrimSpace(f["stop"+n]),
		})
	}
	return rules, nil
}

// splitOnOff drops the leading ON/OFF word of a rule and a following "&".
// The rule is enabled unless that word is OFF.
func splitOnOff(rule string) (bool, string) {
	rule = strings.TrimSpace(rule)
	first, rest, _ := strings.Cut(rule, " ")
	rest = strings.TrimSpace(rest)
	if w, after, _ := strings.Cut(rest, " "); w == "&" {
		rest = strings.TrimSpace(after)
	}
	return first != "OFF", rest
}

// ─── variable.cgi ─────────────────────────────────────────────────────────────

// GetVariables fetches V1..V4 and the anti-legionella setting.
func (c *Client) GetVariables(ctx context.Context) (*model.Variables, error) {
	f, err := c.getFields(ctx, "variable.cgi", nil)
	if err != nil {
		return nil, fmt.Errorf("variables: %w", err)
	}
	v := &model.Variables{ALSensor: strings.TrimSpace(f["alSensor"])}
	for i := range v.Values {
		if v.Values[i], err = f.num("V" + strconv.Itoa(i+1)); err != nil {
			return nil, fmt.Errorf("variables: %w", err)
		}
	}
	if v.ALSensor == "" {
		v.ALSensor = "Off"
	}
	if v.ALSensor != "Off" {
		v.ALValue = strings.TrimSpace(f["alValue"])
	}
	return v, nil
}
