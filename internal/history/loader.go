package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/derickschaefer/aasun/internal/model"
)

// ErrNoData is the single outcome of every failed history request:
// transport failure, HTTP error status and invalid buffer alike.
var ErrNoData = errors.New("history: no data available")

// Fetcher returns the raw body of one history part (1 or 2).
type Fetcher interface {
	FetchHistoryPart(ctx context.Context, sel model.HistorySelector, part int) ([]byte, error)
}

// Load runs one history request: fetch part 1, decode, and only when it is
// valid fetch and decode part 2.
//
// On any failure the returned History is empty (no samples, no date,
// default availability) and the error matches ErrNoData. The cause is only
// kept as text; callers must not branch on it. Load never retries.
func Load(ctx context.Context, f Fetcher, sel model.HistorySelector) (model.History, error) {
	s := NewSession()

	b, err := f.FetchHistoryPart(ctx, sel, 1)
	if err != nil {
		return noData(s, sel, fmt.Sprintf("part 1: %v", err))
	}
	if err := s.DecodeFirstPart(b); err != nil {
		return noData(s, sel, fmt.Sprintf("part 1: %v (%d bytes)", err, len(b)))
	}

	b, err = f.FetchHistoryPart(ctx, sel, 2)
	if err != nil {
		return noData(s, sel, fmt.Sprintf("part 2: %v", err))
	}
	if err := s.DecodeSecondPart(b); err != nil {
		return noData(s, sel, fmt.Sprintf("part 2: %v", err))
	}

	slog.Debug("history decoded", "selector", sel.String(), "date", s.Date(), "samples", s.Len())
	return s.History(sel), nil
}

func noData(s *Session, sel model.HistorySelector, cause string) (model.History, error) {
	s.Clear()
	slog.Debug("history not available", "selector", sel.String(), "cause", cause)
	return s.History(sel), fmt.Errorf("%w: %s: %s", ErrNoData, sel, cause)
}
