// Package transcriber talks to the local speech-to-text sidecar.
//
// The sidecar listens on loopback and exposes two endpoints: GET /health,
// which answers {"status":"ready"} once the model is loaded, and
// POST /transcribe, which takes a WAV body and answers {"text": "..."} or
// {"error": "..."}.
package transcriber

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/odvcencio/flux/pkg/errors"
	"github.com/odvcencio/flux/pkg/logging"
)

const (
	// DefaultBaseURL is where the sidecar listens unless configured otherwise.
	DefaultBaseURL = "http://127.0.0.1:7848"

	defaultTimeout = 60 * time.Second
	healthTimeout  = 2 * time.Second
	maxErrorBody   = 4 << 10
)

// Health is the sidecar's /health payload.
type Health struct {
	Status string `json:"status"`
}

// Ready reports whether the model is loaded.
func (h Health) Ready() bool {
	return h.Status == "ready"
}

type transcribeResponse struct {
	Text  string `json:"text"`
	Error string `json:"error"`
}

// Client is an HTTP client for the sidecar.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

// WithTimeout bounds each request. Zero disables the timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(cl *Client) { cl.httpClient.Timeout = timeout }
}

// WithLogger records request failures.
func WithLogger(logger *logging.Logger) Option {
	return func(cl *Client) { cl.logger = logger }
}

// New builds a client for baseURL, or DefaultBaseURL when empty.
func New(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the sidecar address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health checks whether the sidecar is up and its model loaded. A sidecar
// that is still loading refuses connections, which is reported as unavailable.
func (c *Client) Health(ctx context.Context) (Health, error) {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return Health{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, "build health request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Health{}, c.unavailable(err, "health")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Health{}, c.failed(resp, "health")
	}

	var health Health
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return Health{}, apperrors.Wrap(err, apperrors.ErrCodeTranscriberFailed, "decode health response")
	}
	return health, nil
}

// Ready is Health reduced to a boolean. Any error counts as not ready.
func (c *Client) Ready(ctx context.Context) bool {
	health, err := c.Health(ctx)
	return err == nil && health.Ready()
}

// Transcribe posts WAV audio and returns the recognised text.
func (c *Client) Transcribe(ctx context.Context, wav io.Reader) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcribe", wav)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeInternal, "build transcribe request")
	}
	req.Header.Set("Content-Type", "audio/wav")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", c.unavailable(err, "transcribe")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.failed(resp, "transcribe")
	}

	var out transcribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeTranscriberFailed, "decode transcribe response")
	}

	_ = c.logger.Debug(logging.CategoryTranscriber, "transcribed", "", map[string]any{
		"duration_ms": time.Since(start).Milliseconds(),
		"chars":       len(out.Text),
	})
	return strings.TrimSpace(out.Text), nil
}

func (c *Client) unavailable(err error, op string) error {
	_ = c.logger.Warn(logging.CategoryTranscriber, op+"_unavailable", err.Error(), map[string]any{"url": c.baseURL})
	return apperrors.Wrap(err, apperrors.ErrCodeTranscriberUnavailable, "speech sidecar is not reachable").
		WithContext("url", c.baseURL).
		WithRetryable(true).
		WithRemediation("start the transcriber sidecar", "check transcriber.url in config")
}

func (c *Client) failed(resp *http.Response, op string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(body))
	var payload transcribeResponse
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	_ = c.logger.Warn(logging.CategoryTranscriber, op+"_failed", msg, map[string]any{"status": resp.StatusCode})
	return apperrors.New(apperrors.ErrCodeTranscriberFailed, fmt.Sprintf("%s returned %d: %s", op, resp.StatusCode, msg)).
		WithContext("status", resp.StatusCode).
		WithRetryable(resp.StatusCode >= 500)
}
