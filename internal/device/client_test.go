package device

import (
	"context"
	"encoding/binary"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derickschaefer/aasun/internal/model"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *[]url.Values) {
	t.Helper()
	var queries []url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.Query())
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 2*time.Second, 100, false), &queries
}

func TestNewClientNormalisesURL(t *testing.T) {
	assert.Equal(t, "http://10.0.0.5/", NewClient("http://10.0.0.5", time.Second, 1, false).BaseURL())
	assert.Equal(t, "http://10.0.0.5/", NewClient("http://10.0.0.5/", time.Second, 1, false).BaseURL())
	assert.Equal(t, defaultBaseURL, NewClient("", time.Second, 0, false).BaseURL())
}

func TestFetchHistoryPartRawBody(t *testing.T) {
	body := make([]byte, 8)
	binary.LittleEndian.PutUint32(body, 0x12345678)
	binary.LittleEndian.PutUint32(body[4:], 42)

	c, queries := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/powerHisto.cgi", r.URL.Path)
		_, _ = w.Write(body)
	})

	got, err := c.FetchHistoryPart(context.Background(), model.Stored(7), 2)
	require.NoError(t, err)
	assert.Equal(t, body, got)
	require.Len(t, *queries, 1)
	assert.Equal(t, "4", (*queries)[0].Get("mid"))
	assert.Equal(t, "7", (*queries)[0].Get("index"))
}

func TestFetchHistoryPartMIDs(t *testing.T) {
	c, queries := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	ctx := context.Background()
	for _, part := range []int{1, 2} {
		_, err := c.FetchHistoryPart(ctx, model.Today(), part)
		require.NoError(t, err)
		_, err = c.FetchHistoryPart(ctx, model.Stored(0), part)
		require.NoError(t, err)
	}
	var mids []string
	for _, q := range *queries {
		mids = append(mids, q.Get("mid"))
	}
	assert.Equal(t, []string{"1", "3", "2", "4"}, mids)
}

func TestFetchHistoryPartRejectsBadPart(t *testing.T) {
	c, queries := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	_, err := c.FetchHistoryPart(context.Background(), model.Today(), 3)
	require.Error(t, err)
	assert.Empty(t, *queries)
}

func TestStatusError(t *testing.T) {
	c, queries := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusInternalServerError)
	})
	_, err := c.FetchHistoryPart(context.Background(), model.Today(), 1)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
	assert.Equal(t, "busy", se.Body)
	assert.Equal(t, "powerHisto.cgi", se.Endpoint)
	assert.Len(t, *queries, 1, "requests are never retried")
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()
	c := NewClient(srv.URL, time.Second, 100, false)
	_, err := c.FetchHistoryPart(context.Background(), model.Today(), 1)
	require.Error(t, err)
	var se *StatusError
	assert.False(t, errors.As(err, &se))
}

func TestGetEnergy(t *testing.T) {
	c, queries := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/energy.cgi", r.URL.Path)
		_, _ = w.Write([]byte(`{"date":"132645647","e0":"1200","e1":"-30","e2":"5","e3":"0","e4":"7","e7":"1","e8":"2"}`))
	})

	e, err := c.GetEnergy(context.Background(), model.EnergyHistory, 3)
	require.NoError(t, err)
	assert.Equal(t, "H", (*queries)[0].Get("mid"))
	assert.Equal(t, "3", (*queries)[0].Get("index"))

	assert.Equal(t, model.EnergyHistory, e.Scope)
	assert.Equal(t, 3, e.Index)
	assert.Equal(t, "2024/3/15", e.Date)
	assert.Equal(t, "2024-03-15", e.DateKey)
	require.NotNil(t, e.Values[0])
	assert.Equal(t, int64(1200), *e.Values[0])
	assert.Equal(t, int64(-30), *e.Values[1])
	assert.Nil(t, e.Values[5], "e5 without CT3")
	assert.Nil(t, e.Values[6], "e6 without CT4")
	assert.Equal(t, int64(2), *e.Values[8])
}

func TestGetEnergyTotalOmitsIndex(t *testing.T) {
	c, queries := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"date":"132645647","e0":"1"}`))
	})
	e, err := c.GetEnergy(context.Background(), model.EnergyTotal, 9)
	require.NoError(t, err)
	assert.Equal(t, "Total", (*queries)[0].Get("mid"))
	assert.False(t, (*queries)[0].Has("index"))
	assert.Zero(t, e.Index)
}

func TestGetEnergyNotAvailable(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"date":"-1"}`))
	})
	_, err := c.GetEnergy(context.Background(), model.EnergyHistory, 30)
	require.ErrorIs(t, err, ErrNotAvailable)
}

func TestGetEnergyUnknownScope(t *testing.T) {
	c, queries := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	_, err := c.GetEnergy(context.Background(), model.EnergyScope("week"), 0)
	require.Error(t, err)
	assert.Empty(t, *queries)
}

func TestParseEnergyErrors(t *testing.T) {
	cases := map[string]map[string]string{
		"missing date": {"e0": "1"},
		"bad date":     {"date": "x"},
		"bad value":    {"date": "132645647", "e2": "1.5"},
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseEnergy(raw)
			require.Error(t, err)
			assert.NotErrorIs(t, err, ErrNotAvailable)
		})
	}
}

func TestGetSeriesNames(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/enames.cgi", r.URL.Path)
		_, _ = w.Write([]byte(`{"n0":"Grid in","n1":"Grid out","n2":"","n3":"Boiler","n4":"PV"}`))
	})
	names, err := c.GetSeriesNames(context.Background())
	require.NoError(t, err)
	def := model.DefaultSeriesNames()
	assert.Equal(t, "Grid in", names[0])
	assert.Equal(t, "Grid out", names[1])
	assert.Equal(t, def[2], names[2], "blank keeps default")
	assert.Equal(t, "Boiler", names[3])
	assert.Equal(t, "PV", names[4])
	assert.Equal(t, def[5], names[5], "missing keeps default")
	assert.Equal(t, def[8], names[8])
}

func TestGetSeriesNamesErrorKeepsDefaults(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	names, err := c.GetSeriesNames(context.Background())
	require.Error(t, err)
	assert.Equal(t, model.DefaultSeriesNames(), names)
}

func TestGetVersion(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"soft":"65539","wifi":"131073","wifiAP":"1"}`))
	})
	v, err := c.GetVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.3", v.Software)
	assert.Equal(t, int64(65539), v.SoftwareRaw)
	assert.True(t, v.WifiPresent)
	assert.Equal(t, "2.1", v.Wifi)
	assert.True(t, v.WifiAP)
	assert.Equal(t, "Access Point", v.WifiMode)
}

func TestParseVersion(t *testing.T) {
	v, err := parseVersion("131082", "0", "1")
	require.NoError(t, err)
	assert.Equal(t, "2.10", v.Software)
	assert.False(t, v.WifiPresent)
	assert.Equal(t, "-", v.Wifi)
	assert.Equal(t, "-", v.WifiMode)
	assert.False(t, v.WifiAP)

	v, err = parseVersion("65536", "65537", "0")
	require.NoError(t, err)
	assert.Equal(t, "1.0", v.Software)
	assert.Equal(t, "1.1", v.Wifi)
	assert.Equal(t, "Station", v.WifiMode)

	v, err = parseVersion("65536", "", "")
	require.NoError(t, err)
	assert.Equal(t, "-", v.Wifi)

	_, err = parseVersion("abc", "0", "0")
	require.Error(t, err)
}

func TestFormatVersionRoundsMajorHalfUp(t *testing.T) {
	cases := map[int64]string{
		65536:          "1.0",
		65536 + 32767:  "1.32767",
		65536 + 32768:  "2.32768",
		131072 + 40000: "3.40000",
		32768:          "1.32768",
		32767:          "0.32767",
	}
	for in, want := range cases {
		assert.Equal(t, want, formatVersion(in), "soft=%d", in)
	}
}

func TestContextCancelled(t *testing.T) {
	c, queries := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.FetchHistoryPart(ctx, model.Today(), 1)
	require.Error(t, err)
	assert.Empty(t, *queries)
}
