package pipeline_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/derickschaefer/aasun/internal/model"
	"github.com/derickschaefer/aasun/internal/pipeline"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

// jsonl joins lines with newlines and appends a trailing newline.
func jsonl(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

func sampleHistory() model.History {
	h := model.History{
		Date:      "2024/3/15",
		DateKey:   "2024-03-15",
		Available: model.DefaultAvailability(),
		Samples: []model.Sample{
			{TimeLabel: "0:00", Values: [model.SeriesCount]int32{1, 2, 3, 4, 5, 6, 7, 8, 9}},
			{TimeLabel: "0:15", Values: [model.SeriesCount]int32{-10, 0, 0, 0, 0, 0, 0, 0, 90}},
		},
	}
	h.Available[model.SeriesCounter2] = true
	return h
}

const (
	row1     = `{"date":"2024/3/15","time":"0:00","values":[1,2,3,4,5,6,7,8,9],"available":[true,true,true,true,false,false,false,false,true]}`
	otherDay = `{"date":"2024/3/16","time":"0:15","values":[1,2,3,4,5,6,7,8,9]}`
	row2     = `{"date":"2024/3/15","time":"0:15","values":[-10,0,0,0,0,0,0,0,90],"available":[true,true,true,true,false,false,false,false,true]}`
)

// ─── WriteJSONL ───────────────────────────────────────────────────────────────

func TestWriteJSONLFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := pipeline.WriteJSONL(&buf, sampleHistory()); err != nil {
		t.Fatalf("WriteJSONL: %v", err)
	}
	lines := nonEmptyLines(buf.String())
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0] != row1 {
		t.Errorf("line 1:\n  expected %s\n  got      %s", row1, lines[0])
	}
	if lines[1] != row2 {
		t.Errorf("line 2:\n  expected %s\n  got      %s", row2, lines[1])
	}
}

func TestWriteJSONLEachLineIsValidJSON(t *testing.T) {
	var buf bytes.Buffer
	_ = pipeline.WriteJSONL(&buf, sampleHistory())
	for i, line := range nonEmptyLines(buf.String()) {
		var m map[string]interface{}
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Errorf("line %d invalid JSON: %v", i+1, err)
		}
		for _, k := range []string{"date", "time", "values", "available"} {
			if _, ok := m[k]; !ok {
				t.Errorf("line %d missing %q", i+1, k)
			}
		}
	}
}

func TestWriteJSONLEmptyHistory(t *testing.T) {
	var buf bytes.Buffer
	if err := pipeline.WriteJSONL(&buf, model.History{}); err != nil {
		t.Fatalf("WriteJSONL: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("empty history should write nothing, got %q", buf.String())
	}
}

// ─── ReadHistory ──────────────────────────────────────────────────────────────

func TestReadHistoryBasic(t *testing.T) {
	h, err := pipeline.ReadHistory(strings.NewReader(jsonl(row1, row2)))
	if err != nil {
		t.Fatalf("ReadHistory: %v", err)
	}
	if h.Date != "2024/3/15" || h.DateKey != "2024-03-15" {
		t.Errorf("date: got %q / %q", h.Date, h.DateKey)
	}
	if len(h.Samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(h.Samples))
	}
	if h.Samples[1].TimeLabel != "0:15" || h.Samples[1].Values[0] != -10 {
		t.Errorf("sample 2: got %+v", h.Samples[1])
	}
	if !h.Available[model.SeriesCounter2] || h.Available[model.SeriesP2] {
		t.Errorf("availability: got %v", h.Available)
	}
}

func TestRoundTrip(t *testing.T) {
	in := sampleHistory()
	var buf bytes.Buffer
	if err := pipeline.WriteJSONL(&buf, in); err != nil {
		t.Fatalf("WriteJSONL: %v", err)
	}
	out, err := pipeline.ReadHistory(&buf)
	if err != nil {
		t.Fatalf("ReadHistory: %v", err)
	}
	if out.Date != in.Date || out.DateKey != in.DateKey || out.Available != in.Available {
		t.Errorf("header mismatch: %+v", out)
	}
	for i := range in.Samples {
		if out.Samples[i] != in.Samples[i] {
			t.Errorf("sample %d: expected %+v, got %+v", i, in.Samples[i], out.Samples[i])
		}
	}
}

func TestReadHistoryDefaultAvailability(t *testing.T) {
	h, err := pipeline.ReadHistory(strings.NewReader(
		`{"date":"2024-03-15","time":"0:00","values":[1,2,3,4,5,6,7,8,9]}` + "\n"))
	if err != nil {
		t.Fatalf("ReadHistory: %v", err)
	}
	if h.Available != model.DefaultAvailability() {
		t.Errorf("expected default mask, got %v", h.Available)
	}
	if h.DateKey != "2024-03-15" {
		t.Errorf("DateKey: expected 2024-03-15, got %q", h.DateKey)
	}
}

func TestReadHistorySkipsBlankAndComments(t *testing.T) {
	input := jsonl("", "// comment", row1, "   ", row2)
	h, err := pipeline.ReadHistory(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadHistory: %v", err)
	}
	if len(h.Samples) != 2 {
		t.Errorf("expected 2 samples, got %d", len(h.Samples))
	}
}

func TestReadHistoryErrors(t *testing.T) {
	cases := map[string]string{
		"empty":        "",
		"bad json":     "{nope}\n",
		"short values": `{"date":"2024/3/15","time":"0:00","values":[1,2]}` + "\n",
		"bad time":     `{"date":"2024/3/15","time":"noon","values":[1,2,3,4,5,6,7,8,9]}` + "\n",
		"bad date":     `{"date":"March","time":"0:00","values":[1,2,3,4,5,6,7,8,9]}` + "\n",
		"short mask":   `{"date":"2024/3/15","time":"0:00","values":[1,2,3,4,5,6,7,8,9],"available":[true]}` + "\n",
		"two dates":    jsonl(row1, otherDay),
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := pipeline.ReadHistory(strings.NewReader(input)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestReadHistoryErrorHasLineNumber(t *testing.T) {
	_, err := pipeline.ReadHistory(strings.NewReader(jsonl(row1, "{bad")))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("error should name line 2, got %v", err)
	}
}

// ─── Stdin detection ──────────────────────────────────────────────────────────

func TestIsPipedInput(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()
	if !pipeline.IsPipedInput(r) {
		t.Error("a pipe should count as input")
	}

	path := filepath.Join(t.TempDir(), "day.jsonl")
	if err := os.WriteFile(path, []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if !pipeline.IsPipedInput(f) {
		t.Error("a redirected regular file should count as input")
	}
}

func TestIsPipedInputDevNull(t *testing.T) {
	f, err := os.Open(os.DevNull)
	if err != nil {
		t.Skipf("no %s: %v", os.DevNull, err)
	}
	defer f.Close()
	if pipeline.IsPipedInput(f) {
		t.Errorf("%s is a character device and must not count as input", os.DevNull)
	}
}

func TestIsPipedInputClosedFile(t *testing.T) {
	f, err := os.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	if pipeline.IsPipedInput(f) {
		t.Error("a file that cannot be stat'ed is not input")
	}
}
