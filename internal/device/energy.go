package device

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/derickschaefer/aasun/internal/model"
	"github.com/derickschaefer/aasun/internal/util"
)

// energyMID maps a scope to the energy.cgi mid value. The device only
// looks at the first character.
var energyMID = map[model.EnergyScope]string{
	model.EnergyTotal:   "Total",
	model.EnergyDay:     "Day",
	model.EnergyHistory: "H",
}

// GetEnergy fetches one energy counter set. index is only used for the
// history scope (0 = yesterday .. MaxStoredIndex).
// A date of -1 in the answer yields ErrNotAvailable.
func (c *Client) GetEnergy(ctx context.Context, scope model.EnergyScope, index int) (*model.Energy, error) {
	mid, ok := energyMID[scope]
	if !ok {
		return nil, fmt.Errorf("unknown energy scope %q", scope)
	}
	params := url.Values{}
	params.Set("mid", mid)
	if scope == model.EnergyHistory {
		params.Set("index", strconv.Itoa(index))
	}

	var raw map[string]string
	if err := c.getJSON(ctx, "energy.cgi", params, &raw); err != nil {
		return nil, fmt.Errorf("energy %s: %w", scope, err)
	}
	e, err := parseEnergy(raw)
	if err != nil {
		return nil, fmt.Errorf("energy %s: %w", scope, err)
	}
	e.Scope = scope
	if scope == model.EnergyHistory {
		e.Index = index
	}
	e.FetchedAt = time.Now()
	return e, nil
}

// parseEnergy converts the string-valued energy.cgi object.
// Keys e0..e8 are optional; e5 and e6 only exist with CT3/CT4 fitted.
func parseEnergy(raw map[string]string) (*model.Energy, error) {
	ds, ok := raw["date"]
	if !ok {
		return nil, fmt.Errorf("missing date field")
	}
	date, err := strconv.ParseInt(strings.TrimSpace(ds), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q", ds)
	}
	if date == -1 || date == 0 {
		return nil, ErrNotAvailable
	}

	pd := util.PackedDate(date)
	e := &model.Energy{Date: pd.String(), DateKey: pd.Key()}
	for i := 0; i < model.SeriesCount; i++ {
		s, ok := raw["e"+strconv.Itoa(i)]
		if !ok {
			continue
		}
		v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid e%d %q", i, s)
		}
		e.Values[i] = &v
	}
	return e, nil
}
