package websocket

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/qntx/rews"
	"github.com/qntx/rews/logger"
)

// --------------------------------------------------------------------------------
// Constants

// Constants defining default configuration values for the WebSocket client.
const (
	DefaultConnectTimeout    = 20 * time.Second // Default handshake timeout.
	DefaultReadTimeout       = 20 * time.Second // Default read timeout.
	DefaultWriteTimeout      = 20 * time.Second // Default write timeout.
	DefaultPingInterval      = 0                // Keep-alive pings disabled by default.
	DefaultReconnectInterval = 20 * time.Second // Default delay before a reconnect attempt.
	DefaultRetryOnFailure    = true             // Retry connection-level dial failures by default.
)

// --------------------------------------------------------------------------------
// Types

// Config holds the connection parameters of a Client. It is fixed once the
// client is built.
type Config struct {
	URL                  string            // WebSocket endpoint (e.g., ws://example.com).
	Headers              map[string]string // Handshake headers; empty keys are skipped.
	ConnectTimeout       time.Duration     // Handshake timeout.
	ReadTimeout          time.Duration     // Read timeout; applied per frame when pings are enabled.
	WriteTimeout         time.Duration     // Write timeout per frame; also bounds message channel delivery.
	PingInterval         time.Duration     // Interval between keep-alive pings; 0 disables them.
	AutoReconnect        bool              // Reconnect after unexpected closure or failure.
	ReconnectInterval    time.Duration     // Delay before each reconnect attempt; must be > 0 when AutoReconnect is set.
	ReconnectMaxInterval time.Duration     // Backoff cap; values <= ReconnectInterval keep the delay fixed.
	ReconnectJitter      float64           // Jitter fraction applied to backoff delays (0 to 1).
	RetryOnFailure       bool              // Let the transport retry connection-level dial failures.
	AsyncCallbacks       bool              // Runs observer callbacks on their own goroutines.
}

// DefaultConfig returns the configuration defaults for url.
func DefaultConfig(url string) Config {
	return Config{
		URL:               url,
		ConnectTimeout:    DefaultConnectTimeout,
		ReadTimeout:       DefaultReadTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		PingInterval:      DefaultPingInterval,
		ReconnectInterval: DefaultReconnectInterval,
		RetryOnFailure:    DefaultRetryOnFailure,
	}
}

// Validate reports whether the configuration can be used to build a client.
func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("%w: URL is required", rews.ErrInvalidConfiguration)
	}

	if c.AutoReconnect && c.ReconnectInterval <= 0 {
		return fmt.Errorf("%w: reconnect interval must be greater than 0, got %v",
			rews.ErrInvalidConfiguration, c.ReconnectInterval)
	}

	return nil
}

// Option defines a function that configures a Client and returns an error if configuration fails.
type Option func(*Client) error

// --------------------------------------------------------------------------------
// Option Functions

// WithConnectTimeout sets the handshake timeout.
//
// Returns an error if the timeout is negative.
func WithConnectTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		if timeout < 0 {
			return fmt.Errorf("%w: connect timeout cannot be negative: %v", rews.ErrInvalidConfiguration, timeout)
		}

		c.config.ConnectTimeout = timeout

		return nil
	}
}

// WithReadTimeout sets the read timeout.
//
// Returns an error if the timeout is negative.
func WithReadTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		if timeout < 0 {
			return fmt.Errorf("%w: read timeout cannot be negative: %v", rews.ErrInvalidConfiguration, timeout)
		}

		c.config.ReadTimeout = timeout

		return nil
	}
}

// WithWriteTimeout sets the write timeout.
//
// Returns an error if the timeout is negative.
func WithWriteTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		if timeout < 0 {
			return fmt.Errorf("%w: write timeout cannot be negative: %v", rews.ErrInvalidConfiguration, timeout)
		}

		c.config.WriteTimeout = timeout

		return nil
	}
}

// WithPingInterval sets the keep-alive ping interval; 0 disables pings.
//
// Returns an error if the interval is negative.
func WithPingInterval(interval time.Duration) Option {
	return func(c *Client) error {
		if interval < 0 {
			return fmt.Errorf("%w: ping interval cannot be negative: %v", rews.ErrInvalidConfiguration, interval)
		}

		c.config.PingInterval = interval

		return nil
	}
}

// WithHeaders replaces the handshake headers with a copy of headers.
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) error {
		c.config.Headers = maps.Clone(headers)

		return nil
	}
}

// WithHeader adds a single key-value pair to the handshake headers.
//
// Returns an error if the key is empty.
func WithHeader(key, value string) Option {
	return func(c *Client) error {
		if key == "" {
			return fmt.Errorf("%w: header key cannot be empty", rews.ErrInvalidConfiguration)
		}

		if c.config.Headers == nil {
			c.config.Headers = make(map[string]string)
		}

		c.config.Headers[key] = value

		return nil
	}
}

// WithAutoReconnect enables or disables automatic reconnection, keeping the
// current reconnect interval.
func WithAutoReconnect(enable bool) Option {
	return func(c *Client) error {
		c.config.AutoReconnect = enable

		return nil
	}
}

// WithAutoReconnectInterval enables or disables automatic reconnection and
// sets the delay before each attempt.
//
// Returns an error wrapping rews.ErrInvalidConfiguration if enable is true and
// interval is not positive.
func WithAutoReconnectInterval(enable bool, interval time.Duration) Option {
	return func(c *Client) error {
		if enable && interval <= 0 {
			return fmt.Errorf("%w: reconnect interval must be greater than 0, got %v",
				rews.ErrInvalidConfiguration, interval)
		}

		c.config.AutoReconnect = enable
		c.config.ReconnectInterval = interval

		return nil
	}
}

// WithReconnectBackoff makes consecutive reconnect delays grow exponentially
// from the reconnect interval up to maxInterval, with the given jitter
// fraction. A maxInterval not above the reconnect interval keeps delays fixed.
//
// Returns an error if maxInterval is negative or jitter is outside [0, 1].
func WithReconnectBackoff(maxInterval time.Duration, jitter float64) Option {
	return func(c *Client) error {
		if maxInterval < 0 {
			return fmt.Errorf("%w: max reconnect interval cannot be negative: %v", rews.ErrInvalidConfiguration, maxInterval)
		}

		if jitter < 0 || jitter > 1 {
			return fmt.Errorf("%w: reconnect jitter must be within [0, 1], got %v", rews.ErrInvalidConfiguration, jitter)
		}

		c.config.ReconnectMaxInterval = maxInterval
		c.config.ReconnectJitter = jitter

		return nil
	}
}

// WithRetryOnTransportFailure controls whether the transport retries
// connection-level dial failures.
func WithRetryOnTransportFailure(enable bool) Option {
	return func(c *Client) error {
		c.config.RetryOnFailure = enable

		return nil
	}
}

// WithAsync enables asynchronous execution of observer callbacks.
func WithAsync(enable bool) Option {
	return func(c *Client) error {
		c.config.AsyncCallbacks = enable

		return nil
	}
}

// WithTransport replaces the default gorilla/websocket transport.
//
// Returns an error if the transport is nil.
func WithTransport(t rews.Transport) Option {
	return func(c *Client) error {
		if t == nil {
			return errors.New("transport cannot be nil")
		}

		c.transport = t

		return nil
	}
}

// WithLogger sets a custom logger for the client.
//
// Returns an error if the logger is nil.
func WithLogger(l logger.Interface) Option {
	return func(c *Client) error {
		if l == nil {
			return errors.New("logger cannot be nil")
		}

		c.logger = l

		return nil
	}
}

// WithMessages enables a buffered channel for receiving message payloads.
//
// Returns an error if capacity is negative.
func WithMessages(capacity int) Option {
	return func(c *Client) error {
		if capacity < 0 {
			return fmt.Errorf("messages channel capacity cannot be negative: %d", capacity)
		}

		if c.messagesCh == nil {
			c.messagesCh = make(chan []byte, capacity)
		}

		return nil
	}
}

// WithErrors enables a buffered channel for failure reporting.
//
// Returns an error if capacity is negative.
func WithErrors(capacity int) Option {
	return func(c *Client) error {
		if capacity < 0 {
			return fmt.Errorf("errors channel capacity cannot be negative: %d", capacity)
		}

		if c.errorsCh == nil {
			c.errorsCh = make(chan error, capacity)
		}

		return nil
	}
}

// WithContext sets the parent of the client's lifecycle context.
//
// Returns an error if the context is nil.
func WithContext(ctx context.Context) Option {
	return func(c *Client) error {
		if ctx == nil {
			return errors.New("context cannot be nil")
		}

		c.parent = ctx

		return nil
	}
}
