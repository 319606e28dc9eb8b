// Package webhook delivers Mattermost messages to an incoming webhook.
//
// A Client POSTs the JSON projection of a mattermost.Message once and maps
// the outcome onto the types.AppError taxonomy. It never retries: callers
// decide what a rate limit or an unavailable server means for them.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"mmhook/internal/config"
	"mmhook/internal/mattermost"
	"mmhook/internal/security"
	"mmhook/internal/types"
)

// maxResponseBodyRead limits how much of a response body is read for error
// messages.
const maxResponseBodyRead = 4096

// defaultRetryAfter applies when a 429 carries no usable Retry-After header.
const defaultRetryAfter = 60 * time.Second

// Result describes a delivery the server accepted.
type Result struct {
	RequestID  string
	StatusCode int
	Duration   time.Duration
}

// Client sends messages to Mattermost incoming webhooks.
type Client struct {
	httpClient *http.Client
	config     *config.WebhookConfig
	logger     *slog.Logger
	clock      types.Clock
}

// NewClient creates a Client whose HTTP client refuses private and reserved
// destinations, unless cfg.AllowPrivate is set for self-hosted servers.
func NewClient(cfg *config.WebhookConfig, logger *slog.Logger) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("webhook client: config is nil")
	}

	var httpClient *http.Client
	if cfg.AllowPrivate {
		httpClient = &http.Client{
			Timeout:       cfg.DefaultTimeout,
			CheckRedirect: limitRedirects(cfg.MaxRedirects),
		}
	} else {
		var err error
		httpClient, err = security.NewSafeHTTPClient(cfg.DefaultTimeout, cfg.MaxRedirects)
		if err != nil {
			return nil, fmt.Errorf("webhook client: failed to create safe HTTP client: %w", err)
		}
	}

	return NewClientWithHTTP(cfg, httpClient, logger), nil
}

// NewClientWithHTTP creates a Client around a caller-supplied HTTP client.
func NewClientWithHTTP(cfg *config.WebhookConfig, httpClient *http.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: httpClient,
		config:     cfg,
		logger:     logger,
		clock:      types.RealClock{},
	}
}

// SetClock overrides the clock for testing.
func (c *Client) SetClock(clock types.Clock) {
	c.clock = clock
}

// Send POSTs msg to destination. The request ID is taken from ctx when one is
// present, otherwise a new one is generated; it is sent as X-Request-Id.
//
// Response handling:
//   - 2xx with body "ok" or empty: success
//   - other 2xx and 4xx: upstream_webhook_rejected
//   - 429: upstream_rate_limited, Details carry retry_after_seconds
//   - 5xx and network errors: upstream_unavailable
//   - blocked destination: validation_invalid_webhook_url
func (c *Client) Send(ctx context.Context, destination string, msg mattermost.Message) (*Result, error) {
	if !mattermost.IsAbsoluteURI(destination) {
		return nil, types.NewFieldError(types.ErrCodeValidationInvalidWebhook, "destination",
			"webhook URL must be an absolute URI")
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode message", err)
	}

	requestID := types.GetRequestID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	logger := c.logger.With("request_id", requestID, "host", hostOf(destination))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, destination, bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidWebhook, "invalid webhook URL", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("X-Request-Id", requestID)

	logger.Debug("delivering webhook", "payload_size", len(payload))

	start := c.clock.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if security.IsSSRFError(err) {
			logger.Error("webhook destination blocked", "error", err.Error())
			return nil, types.NewAppError(types.ErrCodeValidationInvalidWebhook,
				"webhook destination is not allowed", err)
		}
		logger.Warn("webhook network error", "error", err.Error())
		return nil, types.NewAppError(types.ErrCodeUpstreamUnavailable, "webhook request failed", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyRead))
	result := &Result{
		RequestID:  requestID,
		StatusCode: resp.StatusCode,
		Duration:   c.clock.Now().Sub(start),
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, c.handle429(logger, resp)

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return c.handle2xx(logger, result, body)

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		logger.Warn("webhook rejected", "status", resp.StatusCode, "body", truncateBody(body))
		return nil, statusError(types.ErrCodeUpstreamWebhookRejected, resp.StatusCode, body)

	default:
		logger.Warn("webhook server error", "status", resp.StatusCode, "body", truncateBody(body))
		return nil, statusError(types.ErrCodeUpstreamUnavailable, resp.StatusCode, body)
	}
}

// handle2xx accepts the plain "ok" body Mattermost answers with. Any other
// body on a 2xx means something other than Mattermost answered.
func (c *Client) handle2xx(logger *slog.Logger, result *Result, body []byte) (*Result, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed != "" && trimmed != "ok" {
		logger.Warn("webhook soft failure on 2xx", "status", result.StatusCode, "body", truncateBody(body))
		return nil, statusError(types.ErrCodeUpstreamWebhookRejected, result.StatusCode, body)
	}

	logger.Info("webhook delivered",
		"status", result.StatusCode,
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}

func (c *Client) handle429(logger *slog.Logger, resp *http.Response) error {
	retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"), c.clock)

	logger.Warn("webhook rate limited (429)", "retry_after_seconds", retryAfter.Seconds())

	return types.NewAppErrorWithDetails(
		types.ErrCodeUpstreamRateLimited,
		fmt.Sprintf("webhook rate limited, retry after %s", retryAfter),
		nil,
		map[string]any{
			"status":              resp.StatusCode,
			"retry_after_seconds": int(retryAfter.Seconds()),
		},
	)
}

func statusError(code types.ErrorCode, status int, body []byte) error {
	return types.NewAppErrorWithDetails(
		code,
		fmt.Sprintf("webhook returned HTTP %d", status),
		nil,
		map[string]any{
			"status": status,
			"body":   truncateBody(body),
		},
	)
}

// parseRetryAfter extracts the retry delay from a Retry-After header value.
// It supports both seconds (integer) and HTTP-date formats.
func parseRetryAfter(header string, clock types.Clock) time.Duration {
	if header == "" {
		return defaultRetryAfter
	}

	if seconds, err := strconv.ParseInt(header, 10, 64); err == nil {
		if seconds <= 0 {
			return time.Second
		}
		return time.Duration(seconds) * time.Second
	}

	if t, err := http.ParseTime(header); err == nil {
		if d := t.Sub(clock.Now()); d > 0 {
			return d
		}
		return time.Second
	}

	return defaultRetryAfter
}

func limitRedirects(limit int) func(*http.Request, []*http.Request) error {
	return func(_ *http.Request, via []*http.Request) error {
		if len(via) >= limit {
			return fmt.Errorf("webhook: stopped after %d redirects", limit)
		}
		return nil
	}
}

// hostOf returns only the host of a webhook URL; the path holds the hook key
// and must stay out of logs.
func hostOf(destination string) string {
	u, err := url.Parse(destination)
	if err != nil {
		return ""
	}
	return u.Host
}

func truncateBody(body []byte) string {
	const limit = 256
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
