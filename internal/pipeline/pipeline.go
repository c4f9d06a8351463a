// Package pipeline provides helpers for reading and writing history streams
// via stdin/stdout in JSONL format, the canonical pipe format. One line is
// one 15-minute sample:
//
//	{"date":"2024/3/15","time":"11:45","values":[...9],"available":[...9]}
package pipeline

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/derickschaefer/aasun/internal/model"
	"github.com/derickschaefer/aasun/internal/util"
)

// Row is one JSONL record.
type Row struct {
	Date      string  `json:"date"`
	Time      string  `json:"time"`
	Values    []int32 `json:"values"`
	Available []bool  `json:"available"`
}

// ReadHistory reads JSONL rows from r and rebuilds one History. The date and
// availability come from the first row; later rows for another date are an
// error. A missing "available" array keeps the default mask.
func ReadHistory(r io.Reader) (model.History, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	h := model.History{Available: model.DefaultAvailability()}
	lineNum := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lineNum++
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		var rec Row
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return model.History{}, fmt.Errorf("line %d: invalid JSON: %w", lineNum, err)
		}
		if len(rec.Values) != model.SeriesCount {
			return model.History{}, fmt.Errorf("line %d: expected %d values, got %d", lineNum, model.SeriesCount, len(rec.Values))
		}
		if _, err := util.ParseClock(rec.Time); err != nil {
			return model.History{}, fmt.Errorf("line %d: %w", lineNum, err)
		}

		if len(h.Samples) == 0 {
			key, err := util.ParseDateKey(rec.Date)
			if err != nil {
				return model.History{}, fmt.Errorf("line %d: %w", lineNum, err)
			}
			h.Date, h.DateKey = rec.Date, key
			if rec.Available != nil {
				if len(rec.Available) != model.SeriesCount {
					return model.History{}, fmt.Errorf("line %d: expected %d availability flags, got %d", lineNum, model.SeriesCount, len(rec.Available))
				}
				copy(h.Available[:], rec.Available)
			}
		} else if rec.Date != h.Date {
			return model.History{}, fmt.Errorf("line %d: date %q differs from %q (one day per stream)", lineNum, rec.Date, h.Date)
		}

		s := model.Sample{TimeLabel: rec.Time}
		copy(s.Values[:], rec.Values)
		h.Samples = append(h.Samples, s)
	}
	if err := scanner.Err(); err != nil {
		return model.History{}, fmt.Errorf("reading input: %w", err)
	}
	if len(h.Samples) == 0 {
		return model.History{}, fmt.Errorf("no samples read from input (is stdin empty?)")
	}
	return h, nil
}

// WriteJSONL writes one row per sample of h to w. An empty history writes
// nothing.
func WriteJSONL(w io.Writer, h model.History) error {
	enc := json.NewEncoder(w)
	avail := h.Available[:]
	for _, s := range h.Samples {
		rec := Row{
			Date:      h.Date,
			Time:      s.TimeLabel,
			Values:    s.Values[:],
			Available: avail,
		}
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return nil
}

// IsTTY returns true if stdout is a terminal (not a pipe).
func IsTTY() bool {
	return IsTerminal(os.Stdout)
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// StdinIsPiped reports whether stdin carries data from a pipe or file.
func StdinIsPiped() bool {
	return IsPipedInput(os.Stdin)
}

// IsPipedInput reports whether f is a named pipe or a regular file.
// Terminals and character devices such as /dev/null are not input.
func IsPipedInput(f *os.File) bool {
	st, err := f.Stat()
	if err != nil {
		return false
	}
	m := st.Mode()
	return m&os.ModeNamedPipe != 0 || m.IsRegular()
}
