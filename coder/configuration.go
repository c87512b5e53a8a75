package coder

import (
	"slices"
	"time"

	"github.com/coder/websocket"
	"github.com/qntx/rews/logger"
)

// DefaultHeartbeat is the ping interval used when a request leaves
// PingInterval at zero.
const DefaultHeartbeat = 30 * time.Second

// Config holds the configuration for the transport.
type Config struct {
	Heartbeat    time.Duration // Fallback ping interval; 0 disables pings unless the request sets one.
	ReadLimit    int64         // Max message size in bytes; 0 keeps the library default.
	DialOptions  *websocket.DialOptions
	Subprotocols []string
	Logger       logger.Interface
}

func NewConfig() *Config {
	return &Config{}
}

func DefaultConfig() *Config {
	return &Config{
		Heartbeat:    DefaultHeartbeat,
		ReadLimit:    0,
		DialOptions:  nil,
		Subprotocols: nil,
		Logger:       logger.Nop(),
	}
}

func (c *Config) WithHeartbeat(heartbeat time.Duration) *Config {
	c.Heartbeat = heartbeat
	return c
}

func (c *Config) WithReadLimit(limit int64) *Config {
	c.ReadLimit = limit
	return c
}

func (c *Config) WithDialOptions(opts *websocket.DialOptions) *Config {
	c.DialOptions = opts
	return c
}

func (c *Config) WithSubprotocols(protos ...string) *Config {
	c.Subprotocols = protos
	return c
}

func (c *Config) WithLogger(l logger.Interface) *Config {
	c.Logger = l
	return c
}

func (c *Config) Clone() Config {
	return Config{
		Heartbeat:    c.Heartbeat,
		ReadLimit:    c.ReadLimit,
		DialOptions:  c.DialOptions,
		Subprotocols: slices.Clone(c.Subprotocols),
		Logger:       c.Logger,
	}
}
