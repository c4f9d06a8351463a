// Package history decodes the AASun power-history buffers.
//
// The device serves one day of 15-minute samples in two halves because its
// HTTP buffer is only 2 kB. Part 1 starts with a one-record header:
//
//	word 0     magic 0x12345678
//	word 1     packed date (year<<16 | month<<8 | day)
//	words 2-3  reserved
//	words 4-8  non-zero when series 4..8 carry data
//
// followed by 9-word sample records. Part 2 is records only. A Session owns
// the running clock and record sequence for one two-part request; decoding
// is pure and does no I/O.
package history

import (
	"encoding/binary"
	"errors"

	"github.com/derickschaefer/aasun/internal/model"
	"github.com/derickschaefer/aasun/internal/util"
)

const (
	// Magic is the header sentinel of a valid part-1 buffer.
	Magic = 0x12345678

	// RecordWords is the number of int32 words per sample and per header.
	RecordWords = model.SeriesCount

	// SlotMinutes is the clock step between consecutive samples.
	SlotMinutes = 15

	wordSize = 4
)

var (
	// ErrInvalid reports a part-1 buffer that is too short or has a bad magic.
	ErrInvalid = errors.New("history: invalid buffer")

	// ErrNoFirstPart reports a part-2 decode without a valid part 1.
	ErrNoFirstPart = errors.New("history: part 2 decoded before a valid part 1")
)

// Session is the decode state of one two-part history request.
// The zero value is an empty, invalid session.
type Session struct {
	valid     bool
	date      util.PackedDate
	available model.Availability
	samples   []model.Sample
	hh, mm    int
}

// NewSession returns an empty session.
func NewSession() *Session {
	s := &Session{}
	s.Clear()
	return s
}

// Clear drops every decoded record and resets the clock and mask.
func (s *Session) Clear() {
	s.valid = false
	s.date = 0
	s.available = model.DefaultAvailability()
	s.samples = nil
	s.hh, s.mm = 0, 0
}

// DecodeFirstPart starts the session from a part-1 buffer.
// On ErrInvalid the session is left empty.
func (s *Session) DecodeFirstPart(b []byte) error {
	s.Clear()

	words := words(b)
	if len(words) < RecordWords || uint32(words[0]) != Magic {
		return ErrInvalid
	}

	s.valid = true
	s.date = util.PackedDate(words[1])
	for i := model.FirstOptionalSeries; i < model.SeriesCount; i++ {
		s.available[i] = words[i] != 0
	}
	s.appendRecords(words[RecordWords:])
	return nil
}

// DecodeSecondPart appends the records of a part-2 buffer, continuing the
// clock where part 1 stopped.
func (s *Session) DecodeSecondPart(b []byte) error {
	if !s.valid {
		return ErrNoFirstPart
	}
	s.appendRecords(words(b))
	return nil
}

// appendRecords decodes every complete record in w; a trailing partial
// record is dropped.
func (s *Session) appendRecords(w []int32) {
	for off := 0; off+RecordWords <= len(w); off += RecordWords {
		var sample model.Sample
		sample.TimeLabel = util.FormatClock(s.hh, s.mm)
		copy(sample.Values[:], w[off:off+RecordWords])
		s.samples = append(s.samples, sample)

		s.mm += SlotMinutes
		if s.mm == 60 {
			s.hh++
			s.mm = 0
		}
	}
}

// Valid reports whether part 1 decoded successfully.
func (s *Session) Valid() bool { return s.valid }

// Date returns the device-formatted date, or "" when invalid.
func (s *Session) Date() string {
	if !s.valid {
		return ""
	}
	return s.date.String()
}

// DateKey returns the YYYY-MM-DD date, or "" when invalid.
func (s *Session) DateKey() string {
	if !s.valid {
		return ""
	}
	return s.date.Key()
}

// Available returns the session's availability mask.
func (s *Session) Available() model.Availability { return s.available }

// Len returns the number of decoded records.
func (s *Session) Len() int { return len(s.samples) }

// Samples returns a copy of the decoded records in arrival order.
func (s *Session) Samples() []model.Sample {
	if len(s.samples) == 0 {
		return nil
	}
	out := make([]model.Sample, len(s.samples))
	copy(out, s.samples)
	return out
}

// History snapshots the session as a model.History for sel.
func (s *Session) History(sel model.HistorySelector) model.History {
	return model.History{
		Selector:  sel,
		Date:      s.Date(),
		DateKey:   s.DateKey(),
		Available: s.available,
		Samples:   s.Samples(),
	}
}

// words reinterprets b as little-endian int32 words. Bytes past the last
// complete word are ignored.
func words(b []byte) []int32 {
	n := len(b) / wordSize
	w := make([]int32, n)
	for i := 0; i < n; i++ {
		w[i] = int32(binary.LittleEndian.Uint32(b[i*wordSize:]))
	}
	return w
}
