package device

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derickschaefer/aasun/internal/model"
)

// routes answers each path with a fixed body; unknown paths are 404.
func routes(m map[string]string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := m[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}
}

const voltTwoCT = `{"vRms":"231","i1Rms":"512","p1Real":"-1450","p1App":"1600","cPhi1":"906",` +
	`"i2Rms":"80","p2Real":"300","p2App":"320","cPhi2":"937","pDiv":"420","Counter1":"12","Counter2":"0"}`

func TestGetLivePowerTwoChannels(t *testing.T) {
	c, _ := newTestClient(t, routes(map[string]string{"/volt.cgi": voltTwoCT}))

	lp, err := c.GetLivePower(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(231), lp.VRms)
	assert.Equal(t, int64(420), lp.Diverted)
	assert.Equal(t, int64(12), lp.Counter1)
	assert.False(t, lp.HasCT3)
	assert.False(t, lp.HasCT4)
	require.Len(t, lp.Channels, 2)
	assert.Equal(t, model.ChannelPower{Channel: 1, IRmsRaw: 512, Real: -1450, App: 1600, CosPhi: 0.906}, lp.Channels[0])
	assert.Equal(t, 2, lp.Channels[1].Channel)
	assert.False(t, lp.FetchedAt.IsZero())
}

func TestGetLivePowerDetectsCT3AndCT4(t *testing.T) {
	withCT3 := voltTwoCT[:len(voltTwoCT)-1] + `,"i3Rms":"1","p3Real":"55","p3App":"60","cPhi3":"1000"}`
	lp, err := parseLivePower(mustFields(t, withCT3))
	require.NoError(t, err)
	assert.True(t, lp.HasCT3)
	assert.False(t, lp.HasCT4)
	require.Len(t, lp.Channels, 3)
	assert.Equal(t, int64(55), lp.Channels[2].Real)
	assert.InDelta(t, 1.0, lp.Channels[2].CosPhi, 1e-9)

	withBoth := withCT3[:len(withCT3)-1] + `,"i4Rms":"2","p4Real":"-7","p4App":"9","cPhi4":"-500"}`
	lp, err = parseLivePower(mustFields(t, withBoth))
	require.NoError(t, err)
	assert.True(t, lp.HasCT3)
	assert.True(t, lp.HasCT4)
	require.Len(t, lp.Channels, 4)
	assert.InDelta(t, -0.5, lp.Channels[3].CosPhi, 1e-9)
}

func TestGetLivePowerMissingField(t *testing.T) {
	_, err := parseLivePower(mustFields(t, `{"vRms":"231"}`))
	require.Error(t, err)
}

func TestGetLivePowerHTTPError(t *testing.T) {
	c, _ := newTestClient(t, routes(nil))
	_, err := c.GetLivePower(context.Background())
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
}

func TestGetMeter(t *testing.T) {
	c, _ := newTestClient(t, routes(map[string]string{
		"/meter.cgi": `{"volt":"236","cnt":"15327001","pApp":"870"}`,
	}))
	m, err := c.GetMeter(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.MeterReading{Volt: 236, EnergyWh: 15327001, PApp: 870}, *m)
}

func TestGetTemperatures(t *testing.T) {
	c, queries := newTestClient(t, routes(map[string]string{
		// sensor 2 absent (200 << 4), sensor 4 not reported
		"/temperature.cgi": `{"temp1":"344","temp2":"3200","temp3":"-40","factor":"16"}`,
	}))
	ts, err := c.GetTemperatures(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "All", (*queries)[0].Get("mid"))
	require.Len(t, ts, model.TemperatureSensors)

	require.NotNil(t, ts[0].Celsius)
	assert.InDelta(t, 21.5, *ts[0].Celsius, 1e-9)
	assert.Nil(t, ts[1].Celsius, "200 °C is the invalid marker")
	require.NotNil(t, ts[2].Celsius)
	assert.InDelta(t, -2.5, *ts[2].Celsius, 1e-9)
	assert.Nil(t, ts[3].Celsius)
	assert.Equal(t, 4, ts[3].Sensor)
}

func TestParseTemperaturesBoundary(t *testing.T) {
	// 199 °C is still shown; anything above is not.
	ts, err := parseTemperatures(fields{"factor": "16", "temp1": "3184", "temp2": "3185"})
	require.NoError(t, err)
	require.NotNil(t, ts[0].Celsius)
	assert.InDelta(t, 199.0, *ts[0].Celsius, 1e-9)
	assert.Nil(t, ts[1].Celsius)

	_, err = parseTemperatures(fields{"factor": "0"})
	require.Error(t, err)
	_, err = parseTemperatures(fields{})
	require.Error(t, err)
}

func TestGetStatus(t *testing.T) {
	c, queries := newTestClient(t, routes(map[string]string{
		"/statusWord.cgi": `{"SW":"8219"}`, // 0x201B
		"/dfstatus.cgi":   `{"out0":"Diverting 1","out1":"Forcing 3","out2":"- 0","out3":"- 0"}`,
	}))
	st, err := c.GetStatus(context.Background())
	require.NoError(t, err)
	assert.Len(t, *queries, 2)
	assert.Equal(t, uint32(0x201B), st.Word)

	set := map[string]bool{}
	for _, b := range st.Bits {
		set[b.Name] = b.Set
	}
	assert.True(t, set["diverter enabled"])
	assert.True(t, set["diverting"])
	assert.False(t, set["Linky TIC managed"])
	assert.True(t, set["time synchronised"])
	assert.True(t, set["power history on"])
	assert.True(t, set["network link off"])
	assert.False(t, set["ADC overflow"])
	assert.Len(t, st.Bits, len(model.StatusBitNames))

	require.Len(t, st.Outputs, 4)
	assert.Equal(t, model.OutputStatus{Output: 1, State: model.OutputDiverting, Rule: 2}, st.Outputs[0])
	assert.Equal(t, model.OutputStatus{Output: 2, State: model.OutputForcing, Rule: 4}, st.Outputs[1])
	assert.Equal(t, model.OutputStatus{Output: 3, State: model.OutputIdle}, st.Outputs[2])
}

func TestParseOutputsInvalid(t *testing.T) {
	for _, s := range []string{"Forcing", "Forcing x", "Boosting 1"} {
		_, err := parseOutputs(fields{"out0": s})
		assert.Error(t, err, s)
	}
}

func TestGetRules(t *testing.T) {
	c, queries := newTestClient(t, routes(map[string]string{
		"/divrules.cgi":   `{"rule1":"ON & P1 < -200","rule2":"OFF P2 > 0"}`,
		"/forcerules.cgi": `{"start0":"ON 22:00","stop0":"06:00","start3":"OFF & T1 < 45","stop3":" T1 > 55 "}`,
	}))
	rules, err := c.GetRules(context.Background())
	require.NoError(t, err)
	assert.Len(t, *queries, 2)
	assert.Equal(t, []model.Rule{
		{Kind: "diverting", Number: 1, Enabled: true, Start: "P1 < -200"},
		{Kind: "diverting", Number: 2, Enabled: false, Start: "P2 > 0"},
		{Kind: "forcing", Number: 1, Enabled: true, Start: "22:00", Stop: "06:00"},
		{Kind: "forcing", Number: 4, Enabled: false, Start: "T1 < 45", Stop: "T1 > 55"},
	}, rules)
}

func TestSplitOnOff(t *testing.T) {
	cases := []struct {
		in   string
		on   bool
		body string
	}{
		{"ON", true, ""},
		{"OFF", false, ""},
		{"  OFF &  ", false, ""},
		{"ON H > 10:00", true, "H > 10:00"},
	}
	for _, tc := range cases {
		on, body := splitOnOff(tc.in)
		assert.Equal(t, tc.on, on, tc.in)
		assert.Equal(t, tc.body, body, tc.in)
	}
}

func TestGetVariables(t *testing.T) {
	c, _ := newTestClient(t, routes(map[string]string{
		"/variable.cgi": `{"V1":"0","V2":"-5","V3":"12","V4":"1","alSensor":"T2","alValue":"65"}`,
	}))
	v, err := c.GetVariables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, [model.VariableCount]int64{0, -5, 12, 1}, v.Values)
	assert.Equal(t, "T2", v.ALSensor)
	assert.Equal(t, "65", v.ALValue)
}

func TestGetVariablesAntiLegionellaOff(t *testing.T) {
	c, _ := newTestClient(t, routes(map[string]string{
		"/variable.cgi": `{"V1":"1","V2":"2","V3":"3","V4":"4","alSensor":"Off"}`,
	}))
	v, err := c.GetVariables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Off", v.ALSensor)
	assert.Empty(t, v.ALValue)
}

func mustFields(t *testing.T, body string) fields {
	t.Helper()
	var f fields
	require.NoError(t, json.Unmarshal([]byte(body), &f))
	return f
}
