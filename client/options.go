package client

import (
	"log/slog"

	"github.com/converged-computing/flux-mcp-server/backoff"
)

// Option configures a Client.
type Option func(*Client)

// WithToken sets the authentication token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithReconnect enables automatic reconnection with the given retry
// budget and delay strategy. A nil strategy keeps the default
// (exponential with jitter).
func WithReconnect(maxRetries int, retry backoff.Strategy) Option {
	return func(c *Client) {
		c.reconnect = true
		c.maxRetries = maxRetries
		if retry != nil {
			c.retry = retry
		}
	}
}
