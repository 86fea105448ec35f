// Package quotes fetches the quote of the day
package quotes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	perr "vocabot/internal/platform/errors"
	"vocabot/internal/platform/metrics"
)

const (
	urlDefault     = "https://favqs.com/api/qotd"
	defaultTimeout = 5 * time.Second
)

// Quote is one quotation
type Quote struct {
	Body   string `json:"body"`
	Author string `json:"author"`
}

// Options configures the Client
type Options struct {
	URL     string
	Timeout time.Duration
}

// Client reads a {"quote":{"body","author"}} endpoint
type Client struct {
	http *http.Client
	url  string
	now  func() time.Time
}

// NewClient creates a Client with defaults filled in
func NewClient(o Options) *Client {
	if o.URL == "" {
		o.URL = urlDefault
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	return &Client{http: &http.Client{Timeout: o.Timeout}, url: o.URL, now: time.Now}
}

// Today returns the current quote
func (c *Client) Today(ctx context.Context) (Quote, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return Quote{}, perr.Wrap(err, perr.ErrorCodeUnknown, "quotes new request failed")
	}
	req.Header.Set("Accept", "application/json")

	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ExternalDuration.WithLabelValues("quotes", "error").Observe(c.now().Sub(start).Seconds())
		return Quote{}, perr.Wrap(err, perr.ErrorCodeUnavailable, "quotes do failed")
	}
	defer resp.Body.Close()
	metrics.ExternalDuration.WithLabelValues("quotes", strconv.Itoa(resp.StatusCode)).Observe(c.now().Sub(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		return Quote{}, perr.Newf(perr.ErrorCodeExternal, "quotes status %d", resp.StatusCode)
	}

	var payload struct {
		Quote Quote `json:"quote"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); err != nil {
		return Quote{}, perr.Wrap(err, perr.ErrorCodeJSON, "quotes decode")
	}
	q := payload.Quote
	q.Body = strings.TrimSpace(q.Body)
	q.Author = strings.TrimSpace(q.Author)
	if q.Body == "" {
		return Quote{}, perr.New(perr.ErrorCodeExternal, "quotes empty body")
	}
	return q, nil
}
