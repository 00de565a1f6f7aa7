// Package remote talks to the generation collaborators (panel detection, OCR,
// speaker attribution, emotion tagging, speech and sound synthesis) over
// JSON-over-HTTP.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"panelcast/internal/services"
)

const (
	defaultHTTPTimeout = 90 * time.Second
	healthPath         = "/health"
)

// Endpoints are the per-collaborator paths joined onto BaseURL. An empty
// path means the collaborator is not deployed.
type Endpoints struct {
	PanelDetection     string
	BubbleOCR          string
	SpeakerAttribution string
	EmotionTagging     string
	SpeechSynthesis    string
	SoundDirection     string
	SoundGeneration    string
}

type Config struct {
	BaseURL        string
	APIKey         string
	TimeoutSeconds int
	Endpoints      Endpoints
}

// Client issues collaborator calls. Transient failures (timeouts, 408, 429
// and 5xx) are retried with capped exponential backoff, honouring
// Retry-After when the server sends one.
type Client struct {
	cfg   Config
	http  *http.Client
	retry retryPolicy
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithRetryMaxAttempts sets the total number of tries per call, first
// included. Values below 1 disable retries.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) { c.retry.attempts = attempts }
}

func WithRetryBackoff(base, ceiling time.Duration) Option {
	return func(c *Client) {
		c.retry.base = base
		c.retry.max = ceiling
	}
}

// WithSleeper replaces the context-aware wait between attempts; tests use it
// to record delays without sleeping.
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) { c.retry.sleeper = sleeper }
}

func NewClient(cfg Config, opts ...Option) *Client {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	c := &Client{
		cfg:   cfg,
		http:  &http.Client{Timeout: timeout},
		retry: defaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Endpoints() Endpoints { return c.cfg.Endpoints }

// Ping checks that the collaborator host answers GET /health with a 2xx.
func (c *Client) Ping(ctx context.Context) error {
	if c.cfg.BaseURL == "" {
		return fmt.Errorf("%w: collaborators.base_url not configured", services.ErrConfiguration)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+healthPath, nil)
	if err != nil {
		return fmt.Errorf("collaborator ping: %w", err)
	}
	_, err = c.do(req)
	if err != nil {
		return fmt.Errorf("%w: collaborator ping: %w", services.ErrExternalTool, err)
	}
	return nil
}

// call posts payload as JSON to endpoint and decodes the reply into out.
func (c *Client) call(ctx context.Context, op, endpoint string, payload, out any) error {
	if strings.TrimSpace(endpoint) == "" {
		return fmt.Errorf("%w: %s endpoint not configured", services.ErrConfiguration, op)
	}
	if c.cfg.BaseURL == "" {
		return fmt.Errorf("%w: collaborators.base_url not configured", services.ErrConfiguration)
	}
	target, err := url.JoinPath(c.cfg.BaseURL, endpoint)
	if err != nil {
		return fmt.Errorf("%w: %s: bad endpoint %q: %w", services.ErrConfiguration, op, endpoint, err)
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: encode body: %w", op, err)
	}

	var body []byte
	attempts, err := c.retry.run(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(encoded))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if id, ok := services.RequestIDFromContext(ctx); ok {
			req.Header.Set("X-Request-ID", id)
		}
		body, err = c.do(req)
		return err
	})
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, err)
	case attempts > 1:
		return fmt.Errorf("%w: %s: failed after %d attempts: %w", services.ErrExternalTool, op, attempts, err)
	default:
		return fmt.Errorf("%w: %s: %w", services.ErrExternalTool, op, err)
	}
	if err := DecodeJSON(string(body), out); err != nil {
		return fmt.Errorf("%w: %s: decode response: %w", services.ErrExternalTool, op, err)
	}
	return nil
}

// do sends req with credentials and returns the body of a 2xx reply. Any
// other status becomes a *statusError.
func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &statusError{
			code:       resp.StatusCode,
			body:       string(body),
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	return body, nil
}

type statusError struct {
	code       int
	body       string
	retryAfter time.Duration
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.code, summarizePayloadSnippet(e.body))
}
