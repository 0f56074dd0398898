// Package reader is the client for the external markdown extraction
// service. The service is opaque: given an absolute URL it returns the
// page as markdown text, or fails with a status or a timeout.
package reader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"go.uber.org/zap"

	"github.com/ctxthelp/ctxt-api/internal/core"
)

// Config controls the extraction client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// Client fetches markdown renditions of web pages via the extraction
// service. Each call is bounded by the configured timeout and holds no
// shared locks while in flight.
type Client struct {
	baseURL    string
	httpClient *http.Client
	attempts   uint
	logger     *zap.Logger
}

// New constructs a Client.
func New(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	attempts := uint(1)
	if cfg.MaxRetries > 0 {
		attempts = uint(cfg.MaxRetries) + 1
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		attempts:   attempts,
		logger:     logger,
	}
}

// Extract converts the target URL to markdown. Upstream 4xx responses are
// not retried; 5xx and transport errors are, with capped backoff. Errors
// come back as ExternalServiceError with the upstream status preserved
// and the timeout case flagged.
func (c *Client) Extract(ctx context.Context, targetURL string) (string, error) {
	endpoint := c.baseURL + "/" + targetURL

	var content string
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
			}
			req.Header.Set("Accept", "text/plain")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("reader request: %w", err)
			}
			defer func() {
				if closeErr := resp.Body.Close(); closeErr != nil {
					c.logger.Warn("close reader response body", zap.Error(closeErr))
				}
			}()

			if resp.StatusCode >= 500 {
				return &upstreamError{status: resp.StatusCode}
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return retry.Unrecoverable(&upstreamError{status: resp.StatusCode})
			}

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("read reader response: %w", err)
			}
			content = string(body)
			return nil
		},
		retry.Attempts(c.attempts),
		retry.Delay(250*time.Millisecond),
		retry.MaxDelay(2*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Info("retrying extraction",
				zap.Uint("attempt", n),
				zap.String("url", targetURL),
				zap.Error(err),
			)
		}),
	)
	if err != nil {
		return "", c.classify(targetURL, err)
	}
	return content, nil
}

type upstreamError struct {
	status int
}

func (e *upstreamError) Error() string {
	return fmt.Sprintf("upstream status %d", e.status)
}

func (c *Client) classify(targetURL string, err error) error {
	var ue *upstreamError
	if errors.As(err, &ue) {
		return &core.ExternalServiceError{
			Service:        "reader",
			Detail:         "extraction failed",
			UpstreamStatus: ue.status,
			Err:            err,
		}
	}
	if isTimeout(err) {
		return &core.ExternalServiceError{
			Service: "reader",
			Detail:  "the webpage took too long to process",
			Timeout: true,
			Err:     err,
		}
	}
	return &core.ExternalServiceError{
		Service: "reader",
		Detail:  "extraction failed",
		Err:     fmt.Errorf("extract %s: %w", targetURL, err),
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}
