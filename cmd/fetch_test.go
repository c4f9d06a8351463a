package cmd

import (
	"bytes"
	"context"
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/aasun/internal/app"
	"github.com/derickschaefer/aasun/internal/config"
	"github.com/derickschaefer/aasun/internal/history"
	"github.com/derickschaefer/aasun/internal/model"
)

// fakeDevice serves powerHisto.cgi: stored day i is dated 2024/3/(20-i)
// with two records, except the indices in missing which answer 500.
type fakeDevice struct {
	mu      sync.Mutex
	missing map[int]bool
	calls   int
}

func (d *fakeDevice) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/powerHisto.cgi" {
		http.NotFound(w, r)
		return
	}
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()

	q := r.URL.Query()
	idx, _ := strconv.Atoi(q.Get("index"))
	if d.missing[idx] {
		http.Error(w, "busy", http.StatusInternalServerError)
		return
	}
	switch q.Get("mid") {
	case "1", "3":
		words := []int32{history.Magic, int32(2024<<16 | 3<<8 | (20 - idx)), 0, 0, 1, 0, 0, 0, 0}
		for rec := 0; rec < 2; rec++ {
			for i := 0; i < model.SeriesCount; i++ {
				words = append(words, int32(100*idx+10*rec+i))
			}
		}
		_, _ = w.Write(encodeWords(words))
	default:
		// part 2 carries no further records
	}
}

func encodeWords(words []int32) []byte {
	b := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(b[i*4:], uint32(w))
	}
	return b
}

func newFakeDeps(t *testing.T, dev *fakeDevice, concurrency int) *app.Deps {
	t.Helper()
	srv := httptest.NewServer(dev)
	t.Cleanup(srv.Close)
	return app.New(&config.Config{
		BaseURL:     srv.URL + "/",
		Format:      "table",
		Timeout:     2 * time.Second,
		Concurrency: concurrency,
		Rate:        1000,
		DBPath:      t.TempDir() + "/aasun.db",
	})
}

func TestBatchGetHistoryKeepsIndexOrder(t *testing.T) {
	dev := &fakeDevice{missing: map[int]bool{2: true}}
	deps := newFakeDeps(t, dev, 3)

	got, warnings := batchGetHistory(context.Background(), deps, 0, 4)
	if len(got) != 4 {
		t.Fatalf("expected 4 histories, got %d", len(got))
	}
	want := []string{"2024-03-20", "2024-03-19", "2024-03-17", "2024-03-16"}
	for i, h := range got {
		if h.DateKey != want[i] {
			t.Errorf("history %d: got %s, want %s", i, h.DateKey, want[i])
		}
		if len(h.Samples) != 2 {
			t.Errorf("history %d: expected 2 samples, got %d", i, len(h.Samples))
		}
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "stored[2]") {
		t.Errorf("expected one warning for stored[2], got %v", warnings)
	}
}

func TestBatchGetHistorySingleDay(t *testing.T) {
	dev := &fakeDevice{}
	deps := newFakeDeps(t, dev, 1)

	got, warnings := batchGetHistory(context.Background(), deps, 5, 5)
	if len(got) != 1 || got[0].DateKey != "2024-03-15" {
		t.Fatalf("unexpected histories: %+v", got)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	// part 1 and part 2
	if dev.calls != 2 {
		t.Errorf("expected 2 history requests, got %d", dev.calls)
	}
}

func TestWatchHistoryStopsAfterCount(t *testing.T) {
	dev := &fakeDevice{}
	deps := newFakeDeps(t, dev, 1)

	var out, errOut bytes.Buffer
	c := &cobra.Command{}
	c.SetOut(&out)
	c.SetErr(&errOut)

	if err := watchHistory(context.Background(), c, deps, 10*time.Millisecond, 2); err != nil {
		t.Fatalf("watchHistory: %v", err)
	}
	if n := strings.Count(out.String(), "── poll "); n != 2 {
		t.Errorf("expected 2 poll headers, got %d\n%s", n, out.String())
	}
	if !strings.Contains(out.String(), "Date: 2024/3/20") {
		t.Errorf("expected today's date in output:\n%s", out.String())
	}
	if dev.calls != 4 {
		t.Errorf("expected 4 history requests, got %d", dev.calls)
	}
}

func TestWatchHistoryDeviceDown(t *testing.T) {
	dev := &fakeDevice{missing: map[int]bool{0: true}}
	deps := newFakeDeps(t, dev, 1)

	var out, errOut bytes.Buffer
	c := &cobra.Command{}
	c.SetOut(&out)
	c.SetErr(&errOut)

	if err := watchHistory(context.Background(), c, deps, 10*time.Millisecond, 1); err != nil {
		t.Fatalf("a failed poll is not an error: %v", err)
	}
	if !strings.Contains(out.String(), "no data") {
		t.Errorf("expected no data output:\n%s", out.String())
	}
	if !strings.Contains(errOut.String(), "no data available") {
		t.Errorf("expected warning on stderr:\n%s", errOut.String())
	}
	// part 2 is never requested after part 1 fails
	if dev.calls != 1 {
		t.Errorf("expected 1 history request, got %d", dev.calls)
	}
}

func TestLoadHistoryIgnoresDevNullStdin(t *testing.T) {
	devNull, err := os.Open(os.DevNull)
	if err != nil {
		t.Skipf("no %s: %v", os.DevNull, err)
	}
	saved := os.Stdin
	os.Stdin = devNull
	t.Cleanup(func() {
		os.Stdin = saved
		devNull.Close()
	})

	dev := &fakeDevice{}
	deps := newFakeDeps(t, dev, 1)
	c := &cobra.Command{}
	c.SetContext(context.Background())
	c.SetIn(devNull)

	lh, err := (&historySource{}).load(c, deps)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if dev.calls == 0 {
		t.Fatal("stdin on /dev/null should fall through to the device")
	}
	if lh.History.Date != "2024/3/20" || len(lh.History.Samples) != 2 {
		t.Errorf("unexpected history %s with %d samples", lh.History.Date, len(lh.History.Samples))
	}
}
