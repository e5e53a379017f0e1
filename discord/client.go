// Package discord is a thin, read-mostly client for the Discord REST endpoints
// the forum sync needs. It wraps a discordgo session for authentication and
// transport, and decodes responses into the models package at the boundary.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/codeGROOVE-dev/retry"
	"github.com/rs/zerolog"
)

// Options tunes a Client. Zero values fall back to sensible defaults.
type Options struct {
	BaseURL           string
	RequestsPerSecond float64
	RetryAttempts     int
	RetryDelay        time.Duration
	Timeout           time.Duration
}

// Client performs authenticated calls against the Discord REST API.
type Client struct {
	session    *discordgo.Session
	baseURL    string
	limiter    *RateLimiter
	attempts   int
	retryDelay time.Duration
	log        zerolog.Logger
}

// New creates a client authenticating as the bot owning token.
func New(token string, opts Options, log zerolog.Logger) (*Client, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}

	if opts.BaseURL == "" {
		opts.BaseURL = "https://discord.com/api/v10"
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 5
	}
	if opts.RetryAttempts < 1 {
		opts.RetryAttempts = 1
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	// Retries and 429 handling live in Call so that every caller gets the
	// same bounded policy.
	session.ShouldRetryOnRateLimit = false
	session.MaxRestRetries = 0
	session.Client = &http.Client{
		Timeout:   opts.Timeout,
		Transport: &captureTransport{base: http.DefaultTransport},
	}

	return &Client{
		session:    session,
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		limiter:    NewRateLimiter(opts.RequestsPerSecond, 1),
		attempts:   opts.RetryAttempts,
		retryDelay: opts.RetryDelay,
		log:        log,
	}, nil
}

// Call issues method on path (relative to the API root, starting with "/").
// A 204 or empty body yields a nil slice and no error. Non-2xx responses are
// returned as *APIError after transient failures exhausted their retries.
func (c *Client) Call(ctx context.Context, method, path string) ([]byte, error) {
	var (
		body    []byte
		lastErr error
	)

	err := retry.Do(
		func() error {
			if err := c.limiter.Wait(ctx); err != nil {
				return retry.Unrecoverable(err)
			}
			b, err := c.do(ctx, method, path)
			if err != nil {
				lastErr = err
				return err
			}
			body = b
			return nil
		},
		retry.Attempts(uint(c.attempts)),
		retry.Delay(c.retryDelay),
		retry.MaxDelay(time.Minute),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			c.log.Warn().Uint("attempt", n+1).Str("path", path).Err(err).Msg("retrying Discord request")
		}),
		retry.RetryIf(isRetryable),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, err
	}

	if len(body) == 0 {
		return nil, nil
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, method, path string) ([]byte, error) {
	start := time.Now()
	reqCtx, capture := withCapture(ctx)
	resp, err := c.session.RequestWithBucketID(method, c.baseURL+path, nil, bucketID(method, path), discordgo.WithContext(reqCtx))

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", capture.status).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Err(err).
		Msg("Discord request completed")

	if err == nil {
		return resp, nil
	}

	// Any non-2xx seen on the wire wins over discordgo's interpretation of it.
	if capture.status != 0 {
		apiErr := &APIError{
			Method: method,
			Path:   path,
			Status: capture.status,
			Body:   string(capture.body),
		}
		if capture.status == http.StatusTooManyRequests {
			apiErr.RetryAfter = capture.retryAfter()
			c.limiter.Pause(apiErr.RetryAfter)
		}
		return nil, apiErr
	}

	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		return nil, &APIError{
			Method: method,
			Path:   path,
			Status: restErr.Response.StatusCode,
			Body:   string(restErr.ResponseBody),
		}
	}

	return nil, fmt.Errorf("discord API %s %s: %w", method, path, err)
}

func isRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// bucketID groups requests for discordgo's per-route rate limiter.
func bucketID(method, path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return method + " " + path
}
