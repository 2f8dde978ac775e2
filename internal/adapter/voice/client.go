package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"postcast/internal/metrics"
)

var (
	ErrNotConfigured   = errors.New("synthesis endpoint not configured")
	ErrSynthesisFailed = errors.New("speech synthesis failed")
)

const (
	DefaultMaxAttempts = 5
	minPayloadChars    = 100
	baseDelay          = time.Second
	maxDelay           = 16 * time.Second
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Client calls a speech synthesis endpoint that takes {"data":[text, lang]}
// and answers {"data":"<base64 audio>"}.
type Client struct {
	endpoint    string
	language    string
	maxAttempts int
	client      *http.Client
	limiter     *rate.Limiter
	sleep       SleepFunc
}

type Option func(*Client)

func WithLanguage(lang string) Option {
	return func(c *Client) {
		c.language = lang
	}
}

func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithRateLimit caps attempts per second across every caller sharing the client.
// Zero or negative leaves the client unlimited.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

func WithSleep(fn SleepFunc) Option {
	return func(c *Client) {
		c.sleep = fn
	}
}

func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:    endpoint,
		language:    "en",
		maxAttempts: DefaultMaxAttempts,
		// Synthesis of a full chunk can take minutes; no client timeout.
		client: &http.Client{},
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Backoff returns the wait before the attempt following attempt n (1-based).
func Backoff(n int) time.Duration {
	d := baseDelay
	for i := 1; i < n; i++ {
		d *= 2
		if d >= maxDelay {
			return maxDelay
		}
	}
	return d
}

// Synthesize converts one chunk of text into base64 encoded audio.
func (c *Client) Synthesize(ctx context.Context, text string) (string, error) {
	if c.endpoint == "" {
		return "", ErrNotConfigured
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", fmt.Errorf("synthesis cancelled: %w", err)
			}
		}

		start := time.Now()
		audio, err := c.attempt(ctx, text)
		if err == nil {
			metrics.RecordSynthesisAttempt("success", time.Since(start).Seconds())
			return audio, nil
		}
		metrics.RecordSynthesisAttempt("error", time.Since(start).Seconds())

		lastErr = err
		slog.WarnContext(ctx, "synthesis attempt failed", "attempt", attempt, "max_attempts", c.maxAttempts, "error", err)

		if ctx.Err() != nil {
			return "", fmt.Errorf("synthesis cancelled: %w", ctx.Err())
		}
		if attempt < c.maxAttempts {
			if err := c.sleep(ctx, Backoff(attempt)); err != nil {
				return "", fmt.Errorf("synthesis cancelled: %w", err)
			}
		}
	}

	return "", fmt.Errorf("%w after %d attempts: %w", ErrSynthesisFailed, c.maxAttempts, lastErr)
}

func (c *Client) attempt(ctx context.Context, text string) (string, error) {
	data := []string{text}
	if c.language != "" {
		data = append(data, c.language)
	}
	jsonBody, err := json.Marshal(map[string]interface{}{"data": data})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("voice api error: %d", resp.StatusCode)
	}

	var result struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode voice api response: %w", err)
	}

	var audio string
	if err := json.Unmarshal(result.Data, &audio); err != nil {
		return "", fmt.Errorf("unexpected voice api response: data is not a string")
	}
	if len(audio) < minPayloadChars {
		return "", fmt.Errorf("invalid audio payload: %d characters", len(audio))
	}

	return audio, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
