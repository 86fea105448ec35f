// Package translate calls the public gtx endpoint of Google Translate
package translate

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	perr "vocabot/internal/platform/errors"
	"vocabot/internal/platform/logger"
	"vocabot/internal/platform/metrics"
)

const (
	baseURLDefault = "https://translate.googleapis.com/translate_a/single"
	defaultTimeout = 5 * time.Second
)

// Options configures the Client
type Options struct {
	URL     string
	Timeout time.Duration
}

// Client translates single words and short phrases
type Client struct {
	http *http.Client
	opts Options
	log  logger.Logger
	now  func() time.Time
}

// NewClient creates a Client with defaults filled in
func NewClient(o Options) *Client {
	if o.URL == "" {
		o.URL = baseURLDefault
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	return &Client{
		http: &http.Client{Timeout: o.Timeout},
		opts: o,
		log:  *logger.Named("translate"),
		now:  time.Now,
	}
}

// Translate returns text rendered from one language into another.
// Any failure yields "" and an error; callers treat both the same.
func (c *Client) Translate(ctx context.Context, text, from, to string) (string, error) {
	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", from)
	q.Set("tl", to)
	q.Set("dt", "t")
	q.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.URL+"?"+q.Encode(), nil)
	if err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeUnknown, "translate new request failed")
	}

	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ExternalDuration.WithLabelValues("translate", "error").Observe(c.now().Sub(start).Seconds())
		return "", perr.Wrap(err, perr.ErrorCodeUnavailable, "translate do failed")
	}
	defer resp.Body.Close()
	metrics.ExternalDuration.WithLabelValues("translate", strconv.Itoa(resp.StatusCode)).Observe(c.now().Sub(start).Seconds())

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", perr.New(perr.ErrorCodeTooManyRequests, "translate rate limited")
	case resp.StatusCode >= 500:
		return "", perr.Newf(perr.ErrorCodeUnavailable, "translate status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return "", perr.Newf(perr.ErrorCodeExternal, "translate status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeUnavailable, "translate read failed")
	}
	out, err := parse(body)
	if err != nil {
		c.log.Debug().Err(err).Str("from", from).Str("to", to).Msg("translate bad payload")
		return "", err
	}
	return out, nil
}

// parse joins data[0][i][0] over all segments
func parse(body []byte) (string, error) {
	var data []json.RawMessage
	if err := json.Unmarshal(body, &data); err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeJSON, "translate decode")
	}
	if len(data) == 0 {
		return "", perr.New(perr.ErrorCodeExternal, "translate empty payload")
	}
	var segments [][]any
	if err := json.Unmarshal(data[0], &segments); err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeJSON, "translate decode segments")
	}
	var b strings.Builder
	for _, seg := range segments {
		if len(seg) == 0 {
			continue
		}
		if s, ok := seg[0].(string); ok {
			b.WriteString(s)
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", perr.New(perr.ErrorCodeExternal, "translate empty result")
	}
	return out, nil
}
