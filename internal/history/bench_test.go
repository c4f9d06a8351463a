package history_test

import (
	"bytes"
	"testing"

	"github.com/derickschaefer/aasun/internal/history"
	"github.com/derickschaefer/aasun/internal/model"
	"github.com/derickschaefer/aasun/internal/pipeline"
)

// A full day is 96 slots split across the two parts.
const (
	benchPart1Records = 48
	benchPart2Records = 48
)

func benchBuffers() (p1, p2 []byte) {
	p1 = part1(march15, [5]int32{1, 1, 0, 0, 1}, benchPart1Records)
	p2 = encode(records(1000, benchPart2Records)...)
	return p1, p2
}

func BenchmarkDecodeDay(b *testing.B) {
	p1, p2 := benchBuffers()
	b.SetBytes(int64(len(p1) + len(p2)))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s := history.NewSession()
		if err := s.DecodeFirstPart(p1); err != nil {
			b.Fatal(err)
		}
		if err := s.DecodeSecondPart(p2); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSeriesView(b *testing.B) {
	p1, p2 := benchBuffers()
	s := history.NewSession()
	if err := s.DecodeFirstPart(p1); err != nil {
		b.Fatal(err)
	}
	if err := s.DecodeSecondPart(p2); err != nil {
		b.Fatal(err)
	}
	h := s.History(model.Today())
	names := model.DefaultSeriesNames()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = h.Series(names)
	}
}

func BenchmarkWriteJSONL(b *testing.B) {
	p1, p2 := benchBuffers()
	s := history.NewSession()
	if err := s.DecodeFirstPart(p1); err != nil {
		b.Fatal(err)
	}
	if err := s.DecodeSecondPart(p2); err != nil {
		b.Fatal(err)
	}
	h := s.History(model.Today())
	var buf bytes.Buffer
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.Reset()
		if err := pipeline.WriteJSONL(&buf, h); err != nil {
			b.Fatal(err)
		}
	}
}
