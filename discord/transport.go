package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"
)

// defaultRateLimitPause applies when a 429 advertises no usable retry delay.
const defaultRateLimitPause = time.Second

type captureKey struct{}

// responseCapture holds the status, headers and body of a non-2xx response.
type responseCapture struct {
	status int
	header http.Header
	body   []byte
}

func withCapture(ctx context.Context) (context.Context, *responseCapture) {
	c := &responseCapture{}
	return context.WithValue(ctx, captureKey{}, c), c
}

// captureTransport records failed responses for the request's capture before
// discordgo interprets them. The body is buffered and handed on unchanged.
type captureTransport struct {
	base http.RoundTripper
}

func (t *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return resp, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	c, ok := req.Context().Value(captureKey{}).(*responseCapture)
	if !ok {
		return resp, nil
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	c.status = resp.StatusCode
	c.header = resp.Header.Clone()
	c.body = body
	return resp, nil
}

// retryAfter reads the delay of a 429 from the JSON body, else the
// Retry-After header, else falls back to defaultRateLimitPause.
func (c *responseCapture) retryAfter() time.Duration {
	var payload struct {
		RetryAfter *float64 `json:"retry_after"`
	}
	if err := json.Unmarshal(c.body, &payload); err == nil && payload.RetryAfter != nil && *payload.RetryAfter >= 0 {
		return time.Duration(*payload.RetryAfter * float64(time.Second))
	}
	if v := c.header.Get("Retry-After"); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs >= 0 {
			return time.Duration(secs * float64(time.Second))
		}
	}
	return defaultRateLimitPause
}
