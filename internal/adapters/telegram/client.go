// Package telegram is a small Bot API client with retries for transient failures
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	perr "vocabot/internal/platform/errors"
	"vocabot/internal/platform/logger"
	"vocabot/internal/platform/metrics"
)

const (
	baseURLDefault   = "https://api.telegram.org"
	defaultTimeout   = 10 * time.Second
	defaultMaxRetry  = 3
	defaultRetryBase = 300 * time.Millisecond
	maxBackoff       = 10 * time.Second
)

// Options configures the Client
type Options struct {
	Token   string
	BaseURL string
	Timeout time.Duration

	// Retry config for transport errors and 5xx; 429 is never retried here
	MaxRetries int
	RetryBase  time.Duration
}

// Client calls the Bot API over HTTPS
type Client struct {
	http  *http.Client
	opts  Options
	log   logger.Logger
	now   func() time.Time
	sleep func(time.Duration)
}

// NewClient creates a Client with defaults filled in
func NewClient(o Options) *Client {
	if o.BaseURL == "" {
		o.BaseURL = baseURLDefault
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultMaxRetry
	}
	if o.RetryBase <= 0 {
		o.RetryBase = defaultRetryBase
	}
	return &Client{
		// per-call deadlines come from ctx; getUpdates holds the connection open
		http:  &http.Client{},
		opts:  o,
		log:   *logger.Named("telegram"),
		now:   time.Now,
		sleep: time.Sleep,
	}
}

// call posts params as JSON to method and decodes result into out (out may be nil)
func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	return c.callWithin(ctx, c.opts.Timeout, method, params, out)
}

func (c *Client) callWithin(ctx context.Context, timeout time.Duration, method string, params any, out any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeJSON, "telegram %s encode", method)
	}
	url := c.opts.BaseURL + "/bot" + c.opts.Token + "/" + method

	attempts := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		env, status, err := c.do(ctx, timeout, url, body)
		if err != nil {
			if perr.IsCode(err, perr.ErrorCodeJSON) {
				metrics.TransportCalls.WithLabelValues(method, "decode").Inc()
				return err
			}
			if ctx.Err() != nil || !c.shouldRetry(attempts) {
				metrics.TransportCalls.WithLabelValues(method, "transport").Inc()
				return perr.Wrapf(err, perr.ErrorCodeUnavailable, "telegram %s failed", method)
			}
			back := c.backoff(attempts)
			c.log.Warn().Err(err).Str("method", method).Dur("retry_in", back).Int("attempt", attempts).
				Msg("telegram transport error retrying")
			c.sleep(back)
			attempts++
			continue
		}

		if status >= 500 && c.shouldRetry(attempts) {
			back := c.backoff(attempts)
			c.log.Warn().Str("method", method).Int("status", status).Dur("retry_in", back).
				Msg("telegram server error retrying")
			c.sleep(back)
			attempts++
			continue
		}

		if !env.OK {
			apiErr := &APIError{Method: method, Code: env.ErrorCode, Description: env.Description}
			if apiErr.Code == 0 {
				apiErr.Code = status
			}
			if env.Parameters != nil {
				apiErr.RetryAfter = time.Duration(env.Parameters.RetryAfter) * time.Second
			}
			metrics.TransportCalls.WithLabelValues(method, Classify(apiErr).String()).Inc()
			c.log.Debug().Str("method", method).Int("code", apiErr.Code).Str("description", apiErr.Description).
				Msg("telegram api error")
			return apiErr
		}

		metrics.TransportCalls.WithLabelValues(method, "ok").Inc()
		if out == nil || len(env.Result) == 0 {
			return nil
		}
		if err := json.Unmarshal(env.Result, out); err != nil {
			return perr.Wrapf(err, perr.ErrorCodeJSON, "telegram %s decode result", method)
		}
		return nil
	}
}

// do runs one HTTP round trip and decodes the envelope
func (c *Client) do(ctx context.Context, timeout time.Duration, url string, body []byte) (response, int, error) {
	var env response

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return env, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		return env, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return env, resp.StatusCode, err
	}
	c.log.Debug().Int("status", resp.StatusCode).Dur("latency", c.now().Sub(start)).Msg("telegram http response")

	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 500 {
			// gateways answer with html; treat like an empty failed envelope
			return response{Description: http.StatusText(resp.StatusCode)}, resp.StatusCode, nil
		}
		return env, resp.StatusCode, perr.Wrapf(err, perr.ErrorCodeJSON, "telegram bad envelope status %d", resp.StatusCode)
	}
	return env, resp.StatusCode, nil
}

func (c *Client) backoff(attempt int) time.Duration {
	d := c.opts.RetryBase << uint(attempt)
	if d <= 0 || d > maxBackoff {
		return maxBackoff
	}
	return d
}

func (c *Client) shouldRetry(attempt int) bool {
	return attempt < c.opts.MaxRetries
}
