package device

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/derickschaefer/aasun/internal/model"
)

// GetSeriesNames fetches the user-configured series names from enames.cgi.
// Missing keys (n5/n6 without CT3/CT4) and blank names keep their defaults.
func (c *Client) GetSeriesNames(ctx context.Context) (model.SeriesNames, error) {
	names := model.DefaultSeriesNames()

	var raw map[string]string
	if err := c.getJSON(ctx, "enames.cgi", nil, &raw); err != nil {
		return names, fmt.Errorf("series names: %w", err)
	}
	for i := range names {
		if v := strings.TrimSpace(raw["n"+strconv.Itoa(i)]); v != "" {
			names[i] = v
		}
	}
	return names, nil
}

// GetVersion fetches version.cgi.
func (c *Client) GetVersion(ctx context.Context) (*model.DeviceVersion, error) {
	var raw struct {
		Soft   string `json:"soft"`
		Wifi   string `json:"wifi"`
		WifiAP string `json:"wifiAP"`
	}
	if err := c.getJSON(ctx, "version.cgi", nil, &raw); err != nil {
		return nil, fmt.Errorf("version: %w", err)
	}
	return parseVersion(raw.Soft, raw.Wifi, raw.WifiAP)
}

func parseVersion(soft, wifi, wifiAP string) (*model.DeviceVersion, error) {
	sv, err := strconv.ParseInt(strings.TrimSpace(soft), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("version: invalid soft %q", soft)
	}
	v := &model.DeviceVersion{
		SoftwareRaw: sv,
		Software:    formatVersion(sv),
		Wifi:        "-",
		WifiMode:    "-",
	}
	// Older firmware omits the WIFI fields; treat them as "no WIFI".
	if wv, err := strconv.ParseInt(strings.TrimSpace(wifi), 10, 64); err == nil && wv != 0 {
		v.WifiPresent = true
		v.Wifi = formatVersion(wv)
		v.WifiAP = strings.TrimSpace(wifiAP) != "" && strings.TrimSpace(wifiAP) != "0"
		v.WifiMode = "Station"
		if v.WifiAP {
			v.WifiMode = "Access Point"
		}
	}
	return v, nil
}

// formatVersion renders a packed major<<16 | minor version as the status
// page does: the major part is v/65536 rounded half up, so a minor of
// 32768 or more shows the next major.
func formatVersion(v int64) string {
	major := int64(math.Floor(float64(v)/65536 + 0.5))
	return fmt.Sprintf("%d.%d", major, v%65536)
}
