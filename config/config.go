// Package config loads client settings from defaults, a TOML file and the
// environment, and turns them into a websocket.Builder.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	toml "github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/qntx/rews"
	"github.com/qntx/rews/coder"
	"github.com/qntx/rews/logger"
	"github.com/qntx/rews/websocket"
)

// EnvPrefix is the prefix of environment variables read by Load.
//
// A single underscore separates nesting levels and a double underscore stands
// for a literal underscore: REWS_RECONNECT_MAX__INTERVAL sets
// reconnect.max_interval.
const EnvPrefix = "REWS_"

// Transport names accepted in Settings.Transport.
const (
	TransportGorilla = "gorilla"
	TransportCoder   = "coder"
)

// Settings is the file and environment representation of a client.
type Settings struct {
	URL            string            `koanf:"url"`
	Headers        map[string]string `koanf:"headers"`
	ConnectTimeout time.Duration     `koanf:"connect_timeout"`
	ReadTimeout    time.Duration     `koanf:"read_timeout"`
	WriteTimeout   time.Duration     `koanf:"write_timeout"`
	PingInterval   time.Duration     `koanf:"ping_interval"`
	RetryOnFailure bool              `koanf:"retry_on_failure"`
	Async          bool              `koanf:"async"`

	// Transport is "gorilla" (default) or "coder".
	Transport string `koanf:"transport"`
	// Proxy is an HTTP proxy URL for the gorilla transport; empty disables it.
	Proxy string `koanf:"proxy"`

	Reconnect ReconnectSettings `koanf:"reconnect"`
	Log       LogSettings       `koanf:"log"`
}

// ReconnectSettings configures automatic reconnection.
type ReconnectSettings struct {
	Enabled     bool          `koanf:"enabled"`
	Interval    time.Duration `koanf:"interval"`
	MaxInterval time.Duration `koanf:"max_interval"`
	Jitter      float64       `koanf:"jitter"`
}

// LogSettings configures the client logger.
type LogSettings struct {
	// Level can be "debug", "info", "warn", "error"
	Level string `koanf:"level"`

	// Format can be "json" or "console"
	Format string `koanf:"format"`
}

// defaults mirrors websocket.DefaultConfig.
func defaults() map[string]any {
	return map[string]any{
		"connect_timeout":  websocket.DefaultConnectTimeout.String(),
		"read_timeout":     websocket.DefaultReadTimeout.String(),
		"write_timeout":    websocket.DefaultWriteTimeout.String(),
		"ping_interval":    "0s",
		"retry_on_failure": websocket.DefaultRetryOnFailure,
		"async":            false,
		"transport":        TransportGorilla,
		"proxy":            "",
		"reconnect": map[string]any{
			"enabled":      false,
			"interval":     websocket.DefaultReconnectInterval.String(),
			"max_interval": "0s",
			"jitter":       0.0,
		},
		"log": map[string]any{
			"level":  "info",
			"format": "json",
		},
	}
}

// Load loads settings from defaults, an optional TOML file and environment
// variables.
// Priority: Environment variables > Config file > Defaults
//
// Durations accept Go-style strings (e.g., "500ms", "10s", "1m").
func Load(path string) (*Settings, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	s := &Settings{}
	if err := k.UnmarshalWithConf("", s, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			TagName:          "koanf",
			WeaklyTypedInput: true,
			Result:           s,
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return s, nil
}

// envKey maps REWS_RECONNECT_MAX__INTERVAL to reconnect.max_interval.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	s = strings.ToLower(s)

	s = strings.ReplaceAll(s, "__", "%UNDERSCORE%")
	s = strings.ReplaceAll(s, "_", ".")
	s = strings.ReplaceAll(s, "%UNDERSCORE%", "_")

	return s
}

// Validate reports the first invalid setting. Errors wrap
// rews.ErrInvalidConfiguration.
func (s *Settings) Validate() error {
	if s.URL == "" {
		return fmt.Errorf("%w: url is required", rews.ErrInvalidConfiguration)
	}

	for name, d := range map[string]time.Duration{
		"connect_timeout":        s.ConnectTimeout,
		"read_timeout":           s.ReadTimeout,
		"write_timeout":          s.WriteTimeout,
		"ping_interval":          s.PingInterval,
		"reconnect.max_interval": s.Reconnect.MaxInterval,
	} {
		if d < 0 {
			return fmt.Errorf("%w: %s cannot be negative: %v", rews.ErrInvalidConfiguration, name, d)
		}
	}

	if s.Reconnect.Enabled && s.Reconnect.Interval <= 0 {
		return fmt.Errorf("%w: reconnect.interval must be greater than 0, got %v",
			rews.ErrInvalidConfiguration, s.Reconnect.Interval)
	}

	if s.Reconnect.Jitter < 0 || s.Reconnect.Jitter > 1 {
		return fmt.Errorf("%w: reconnect.jitter must be within [0, 1], got %v",
			rews.ErrInvalidConfiguration, s.Reconnect.Jitter)
	}

	switch s.Transport {
	case "", TransportGorilla, TransportCoder:
	default:
		return fmt.Errorf("%w: unknown transport %q", rews.ErrInvalidConfiguration, s.Transport)
	}

	switch s.Log.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("%w: unknown log format %q", rews.ErrInvalidConfiguration, s.Log.Format)
	}

	if _, err := s.Logger(io.Discard); err != nil {
		return fmt.Errorf("%w: log.level: %w", rews.ErrInvalidConfiguration, err)
	}

	return nil
}

// Logger creates the logger described by the log settings, writing to w.
func (s *Settings) Logger(w io.Writer) (logger.Interface, error) {
	if s.Log.Format == "console" {
		return logger.NewConsole(s.Log.Level, w)
	}

	return logger.New(s.Log.Level, w)
}

// Builder returns a builder carrying every setting. Errors from the logger or
// transport are recorded in the builder and reported by Build.
func (s *Settings) Builder(observer rews.Observer) *websocket.Builder {
	b := websocket.NewBuilder(s.URL, observer).
		SetConnectTimeout(s.ConnectTimeout).
		SetReadTimeout(s.ReadTimeout).
		SetWriteTimeout(s.WriteTimeout).
		SetPingInterval(s.PingInterval).
		SetHeaders(s.Headers).
		EnableAutoReconnectWithInterval(s.Reconnect.Enabled, s.Reconnect.Interval).
		SetReconnectBackoff(s.Reconnect.MaxInterval, s.Reconnect.Jitter).
		RetryOnTransportFailure(s.RetryOnFailure).
		With(websocket.WithAsync(s.Async))

	l, err := s.Logger(os.Stdout)
	if err != nil {
		return b.With(fail(err))
	}

	t, err := s.transport(l)
	if err != nil {
		return b.With(fail(err))
	}

	return b.SetLogger(l).SetTransport(t)
}

func (s *Settings) transport(l logger.Interface) (rews.Transport, error) {
	if s.Transport == TransportCoder {
		return coder.New(coder.NewConfig().WithLogger(l)), nil
	}

	t, err := websocket.NewTransport(
		websocket.WithTransportLogger(l),
		websocket.WithProxy(s.Proxy),
	)
	if err != nil {
		return nil, err
	}

	return t, nil
}

// fail is an option that always reports err.
func fail(err error) websocket.Option {
	return func(*websocket.Client) error {
		return fmt.Errorf("%w: %w", rews.ErrInvalidConfiguration, err)
	}
}
