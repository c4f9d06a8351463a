// Package device implements the HTTP client for the AASun embedded web
// server. All methods are context-aware and respect a shared rate limiter:
// the device answers one socket at a time from a 2 kB buffer. Requests are
// never retried; a failed request is reported and the user re-triggers it.
package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/derickschaefer/aasun/internal/model"
)

const (
	defaultBaseURL = "http://aasun.local/"

	// maxBody bounds every response; the device never sends more than its
	// 2 kB HTTP buffer.
	maxBody = 64 << 10
)

// ErrNotAvailable reports a well-formed answer that carries no data,
// such as an energy history slot that was never written.
var ErrNotAvailable = errors.New("device: data not available")

// StatusError is returned when the device answers with a non-2xx status.
// Transport failures are returned as ordinary wrapped errors.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: HTTP %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Client is the AASun device HTTP client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	debug      bool
}

// NewClient creates a Client for the device at baseURL.
func NewClient(baseURL string, timeout time.Duration, ratePerSec float64, debug bool) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	burst := int(ratePerSec)
	if burst < 1 {
		burst = 1
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst),
		debug:   debug,
	}
}

// BaseURL returns the normalised device URL.
func (c *Client) BaseURL() string { return c.baseURL }

// ─── Power History ────────────────────────────────────────────────────────────

// FetchHistoryPart returns the raw body of powerHisto.cgi for part 1 or 2.
// It satisfies history.Fetcher.
func (c *Client) FetchHistoryPart(ctx context.Context, sel model.HistorySelector, part int) ([]byte, error) {
	if part != 1 && part != 2 {
		return nil, fmt.Errorf("history part must be 1 or 2, got %d", part)
	}
	params := url.Values{}
	params.Set("mid", strconv.Itoa(sel.MID(part)))
	params.Set("index", strconv.Itoa(sel.Index))
	return c.get(ctx, "powerHisto.cgi", params)
}

// ─── Low-level HTTP ───────────────────────────────────────────────────────────

// get performs a rate-limited GET and returns the body of a 2xx answer.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqURL := c.baseURL + endpoint
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	if c.debug {
		slog.Debug("device request", "url", reqURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", "aasun-cli/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}

	if c.debug {
		slog.Debug("device response", "endpoint", endpoint, "status", resp.StatusCode, "bytes", len(body))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}
	return body, nil
}

// getJSON performs get and decodes the body into out.
func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	body, err := c.get(ctx, endpoint, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decoding response: %w", endpoint, err)
	}
	return nil
}
