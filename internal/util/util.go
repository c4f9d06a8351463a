// Package util provides shared utilities: packed device dates, slot time
// labels, duration parsing and error collection.
package util

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ─── Packed Dates ─────────────────────────────────────────────────────────────

// PackedDate is the device's 32-bit date: (year<<16) | (month<<8) | day.
type PackedDate int32

// Year returns the high remainder of the packed word.
func (d PackedDate) Year() int { return int(int32(d) >> 16) }

// Month returns bits 8..15.
func (d PackedDate) Month() int { return int((int32(d) >> 8) & 0xFF) }

// Day returns bits 0..7.
func (d PackedDate) Day() int { return int(int32(d) & 0xFF) }

// String formats the date the way the device pages do: "2024/3/15".
func (d PackedDate) String() string {
	return fmt.Sprintf("%d/%d/%d", d.Year(), d.Month(), d.Day())
}

// Key formats the date as a sortable YYYY-MM-DD store key.
func (d PackedDate) Key() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year(), d.Month(), d.Day())
}

// PackDate builds a PackedDate from its fields.
func PackDate(year, month, day int) PackedDate {
	return PackedDate(int32(year)<<16 | int32(month&0xFF)<<8 | int32(day&0xFF))
}

// ─── Date Keys ────────────────────────────────────────────────────────────────

const dateLayout = "2006-01-02"

// ParseDateKey accepts YYYY-MM-DD or the device's Y/M/D form and returns
// the canonical YYYY-MM-DD key.
func ParseDateKey(s string) (string, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t.Format(dateLayout), nil
	}
	parts := strings.Split(s, "/")
	if len(parts) == 3 {
		y, err1 := strconv.Atoi(parts[0])
		m, err2 := strconv.Atoi(parts[1])
		d, err3 := strconv.Atoi(parts[2])
		if err1 == nil && err2 == nil && err3 == nil {
			return PackDate(y, m, d).Key(), nil
		}
	}
	return "", fmt.Errorf("invalid date %q: expected YYYY-MM-DD or Y/M/D", s)
}

// ─── Slot Time Labels ─────────────────────────────────────────────────────────

// FormatClock formats a slot clock as "H:MM" (hours unpadded).
func FormatClock(hh, mm int) string {
	return fmt.Sprintf("%d:%02d", hh, mm)
}

// ParseClock parses "H:MM" into minutes since midnight.
func ParseClock(s string) (int, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("invalid time %q: expected H:MM", s)
	}
	hh, err := strconv.Atoi(h)
	if err != nil || hh < 0 {
		return 0, fmt.Errorf("invalid time %q: expected H:MM", s)
	}
	mm, err := strconv.Atoi(m)
	if err != nil || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("invalid time %q: expected H:MM", s)
	}
	return hh*60 + mm, nil
}

// ─── Error Helpers ────────────────────────────────────────────────────────────

// MultiError collects multiple errors and presents them as one.
type MultiError struct {
	Errors []error
}

func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

func (m *MultiError) Err() error {
	if len(m.Errors) == 0 {
		return nil
	}
	return m
}

func (m *MultiError) Error() string {
	msgs := make([]string, len(m.Errors))
	for i, e := range m.Errors {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (m *MultiError) Unwrap() []error {
	return m.Errors
}
