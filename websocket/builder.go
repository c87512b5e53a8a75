package websocket

import (
	"time"

	"github.com/qntx/rews"
	"github.com/qntx/rews/logger"
)

// Builder assembles a Client configuration with chained setters.
//
// Every setter stores its value and returns the Builder. The first invalid
// setting is kept and reported by Err, Build and BuildAndConnect.
//
// Example:
//
//	client, err := websocket.NewBuilder("wss://example.com/ws", observer).
//	    SetConnectTimeout(10 * time.Second).
//	    EnableAutoReconnectWithInterval(true, 5*time.Second).
//	    BuildAndConnect()
type Builder struct {
	url      string
	observer rews.Observer
	opts     []Option
	draft    *Client // Receives options eagerly so errors surface at the setter.
	err      error
}

// NewBuilder starts a configuration for url whose events go to observer.
func NewBuilder(url string, observer rews.Observer) *Builder {
	return &Builder{
		url:      url,
		observer: observer,
		draft:    newClient(url, observer),
	}
}

// With applies options in order. Failing options are not recorded; the first
// failure is kept.
func (b *Builder) With(opts ...Option) *Builder {
	for _, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(b.draft); err != nil {
			if b.err == nil {
				b.err = err
			}

			continue
		}

		b.opts = append(b.opts, opt)
	}

	return b
}

// Err returns the first configuration error, if any.
func (b *Builder) Err() error {
	return b.err
}

// Config returns a snapshot of the configuration assembled so far.
func (b *Builder) Config() Config {
	return b.draft.Config()
}

// --------------------------------------------------------------------------------
// Chaining Methods

// SetConnectTimeout sets the handshake timeout.
func (b *Builder) SetConnectTimeout(timeout time.Duration) *Builder {
	return b.With(WithConnectTimeout(timeout))
}

// SetReadTimeout sets the read timeout.
func (b *Builder) SetReadTimeout(timeout time.Duration) *Builder {
	return b.With(WithReadTimeout(timeout))
}

// SetWriteTimeout sets the write timeout.
func (b *Builder) SetWriteTimeout(timeout time.Duration) *Builder {
	return b.With(WithWriteTimeout(timeout))
}

// SetPingInterval sets the keep-alive ping interval; 0 disables pings.
func (b *Builder) SetPingInterval(interval time.Duration) *Builder {
	return b.With(WithPingInterval(interval))
}

// SetHeaders sets the handshake headers.
func (b *Builder) SetHeaders(headers map[string]string) *Builder {
	return b.With(WithHeaders(headers))
}

// EnableAutoReconnect toggles automatic reconnection with the current interval.
func (b *Builder) EnableAutoReconnect(enable bool) *Builder {
	return b.With(WithAutoReconnect(enable))
}

// EnableAutoReconnectWithInterval toggles automatic reconnection and sets the
// reconnect interval. A non-positive interval with enable set records an
// error wrapping rews.ErrInvalidConfiguration.
func (b *Builder) EnableAutoReconnectWithInterval(enable bool, interval time.Duration) *Builder {
	return b.With(WithAutoReconnectInterval(enable, interval))
}

// SetReconnectBackoff lets consecutive reconnect delays grow up to maxInterval.
func (b *Builder) SetReconnectBackoff(maxInterval time.Duration, jitter float64) *Builder {
	return b.With(WithReconnectBackoff(maxInterval, jitter))
}

// RetryOnTransportFailure controls transport-level dial retries.
func (b *Builder) RetryOnTransportFailure(enable bool) *Builder {
	return b.With(WithRetryOnTransportFailure(enable))
}

// SetTransport replaces the default transport.
func (b *Builder) SetTransport(t rews.Transport) *Builder {
	return b.With(WithTransport(t))
}

// SetLogger replaces the default logger.
func (b *Builder) SetLogger(l logger.Interface) *Builder {
	return b.With(WithLogger(l))
}

// --------------------------------------------------------------------------------
// Terminal Methods

// Build creates an idle Client without opening a session.
func (b *Builder) Build() (*Client, error) {
	if b.err != nil {
		return nil, b.err
	}

	return New(b.url, b.observer, b.opts...)
}

// BuildAndConnect creates a Client and starts connecting it.
//
// If Connect fails the client is released and the error returned.
func (b *Builder) BuildAndConnect() (*Client, error) {
	c, err := b.Build()
	if err != nil {
		return nil, err
	}

	if err := c.Connect(); err != nil {
		c.Release()

		return nil, err
	}

	return c, nil
}
