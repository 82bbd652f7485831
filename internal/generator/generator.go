// Package generator produces answers from a grounding prompt using a pool
// of API keys.
//
// A rate-limited call rotates the pool to the next key and is retried once
// under that key. Any other failure, or a second failure, goes back to the
// caller. The rotation is shared by the whole process and persists across
// calls.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/airac/airac/internal/metrics"
)

// Client generates text with credential rotation
type Client struct {
	pool      *CredentialPool
	completer Completer
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// Option configures a Client
type Option func(*Client)

// WithLogger sets the client logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records attempts and rotations
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// New creates a generation client
func New(pool *CredentialPool, completer Completer, opts ...Option) *Client {
	c := &Client{
		pool:      pool,
		completer: completer,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate returns the completion text for prompt
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	text, err := c.completer.Complete(ctx, c.pool.Current(), prompt)
	if err == nil {
		c.metrics.Generation(metrics.ResultOK)
		return text, nil
	}
	if !IsRateLimited(err) {
		c.metrics.Generation(metrics.ResultError)
		return "", fmt.Errorf("generate: %w", err)
	}

	c.metrics.Generation(metrics.ResultRateLimited)
	c.pool.Advance()
	c.metrics.CredentialRotated()
	c.logger.Warn("generation rate limited, rotated credential", "pool_size", c.pool.Len(), "error", err)

	text, err = c.completer.Complete(ctx, c.pool.Current(), prompt)
	if err != nil {
		if IsRateLimited(err) {
			c.metrics.Generation(metrics.ResultRateLimited)
		} else {
			c.metrics.Generation(metrics.ResultError)
		}
		return "", fmt.Errorf("generate after credential rotation: %w", err)
	}
	c.metrics.Generation(metrics.ResultOK)
	return text, nil
}

// IsRateLimited reports whether err means the credential is throttled or
// out of quota. Structured HTTP 429 errors are checked first, then the
// message is searched for "429" or "quota".
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "quota")
}
