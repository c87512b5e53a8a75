package websocket_test

import (
	"errors"
	"testing"
	"time"

	"github.com/qntx/rews"
	"github.com/qntx/rews/logger"
	"github.com/qntx/rews/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderDefaults(t *testing.T) {
	t.Parallel()

	cfg := websocket.NewBuilder(testURL, nil).Config()

	assert.Equal(t, testURL, cfg.URL)
	assert.Equal(t, 20*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 20*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 20*time.Second, cfg.WriteTimeout)
	assert.Zero(t, cfg.PingInterval)
	assert.False(t, cfg.AutoReconnect)
	assert.Equal(t, 20*time.Second, cfg.ReconnectInterval)
	assert.True(t, cfg.RetryOnFailure)
	assert.Empty(t, cfg.Headers)
}

func TestBuilderSetters(t *testing.T) {
	t.Parallel()

	headers := map[string]string{"X-Api-Key": "secret"}

	b := websocket.NewBuilder(testURL, nil).
		SetConnectTimeout(5*time.Second).
		SetReadTimeout(6*time.Second).
		SetWriteTimeout(7*time.Second).
		SetPingInterval(8*time.Second).
		SetHeaders(headers).
		EnableAutoReconnectWithInterval(true, 3*time.Second).
		SetReconnectBackoff(time.Minute, 0.2).
		RetryOnTransportFailure(false)

	headers["X-Api-Key"] = "mutated"

	require.NoError(t, b.Err())

	cfg := b.Config()
	assert.Equal(t, 5*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 6*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 7*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 8*time.Second, cfg.PingInterval)
	assert.Equal(t, map[string]string{"X-Api-Key": "secret"}, cfg.Headers, "headers are copied")
	assert.True(t, cfg.AutoReconnect)
	assert.Equal(t, 3*time.Second, cfg.ReconnectInterval)
	assert.Equal(t, time.Minute, cfg.ReconnectMaxInterval)
	assert.InDelta(t, 0.2, cfg.ReconnectJitter, 1e-9)
	assert.False(t, cfg.RetryOnFailure)

	c, err := b.SetTransport(&fakeTransport{}).SetLogger(logger.Nop()).Build()
	require.NoError(t, err)
	t.Cleanup(c.Release)

	assert.Equal(t, cfg, c.Config())
	assert.Equal(t, rews.StateIdle, c.State())
}

func TestBuilderReconnectInterval(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		enable   bool
		interval time.Duration
		wantErr  bool
	}{
		{name: "Zero", enable: true, interval: 0, wantErr: true},
		{name: "Negative", enable: true, interval: -5 * time.Millisecond, wantErr: true},
		{name: "Positive", enable: true, interval: time.Millisecond},
		{name: "DisabledZero", enable: false, interval: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b := websocket.NewBuilder(testURL, nil).
				SetTransport(&fakeTransport{}).
				SetLogger(logger.Nop()).
				EnableAutoReconnectWithInterval(tt.enable, tt.interval)

			c, err := b.Build()
			if tt.wantErr {
				require.ErrorIs(t, err, rews.ErrInvalidConfiguration)
				require.ErrorIs(t, b.Err(), rews.ErrInvalidConfiguration)
				assert.Nil(t, c)

				return
			}

			require.NoError(t, err)
			t.Cleanup(c.Release)
			assert.Equal(t, tt.enable, c.Config().AutoReconnect)
		})
	}
}

func TestBuilderKeepsFirstError(t *testing.T) {
	t.Parallel()

	b := websocket.NewBuilder(testURL, nil).
		SetConnectTimeout(-time.Second).
		EnableAutoReconnectWithInterval(true, 0).
		SetReadTimeout(time.Second)

	err := b.Err()
	require.ErrorIs(t, err, rews.ErrInvalidConfiguration)
	assert.Contains(t, err.Error(), "connect timeout")
	assert.Equal(t, time.Second, b.Config().ReadTimeout, "later valid setters still apply")
}

func TestBuilderInvalidOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opt  websocket.Option
	}{
		{name: "NegativeReadTimeout", opt: websocket.WithReadTimeout(-1)},
		{name: "NegativeWriteTimeout", opt: websocket.WithWriteTimeout(-1)},
		{name: "NegativePing", opt: websocket.WithPingInterval(-1)},
		{name: "EmptyHeaderKey", opt: websocket.WithHeader("", "v")},
		{name: "NegativeBackoff", opt: websocket.WithReconnectBackoff(-1, 0)},
		{name: "JitterOutOfRange", opt: websocket.WithReconnectBackoff(time.Second, 1.5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := websocket.New(testURL, nil, tt.opt)
			require.ErrorIs(t, err, rews.ErrInvalidConfiguration)
		})
	}
}

func TestNewRequiresURL(t *testing.T) {
	t.Parallel()

	_, err := websocket.New("", nil, websocket.WithTransport(&fakeTransport{}))
	require.ErrorIs(t, err, rews.ErrInvalidConfiguration)

	_, err = websocket.New(testURL, nil, websocket.WithTransport(nil))
	require.Error(t, err)
}

func TestBuildAndConnect(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{}

	c, err := websocket.NewBuilder(testURL, nil).
		SetTransport(ft).
		SetLogger(logger.Nop()).
		BuildAndConnect()
	require.NoError(t, err)
	t.Cleanup(c.Release)

	assert.True(t, c.IsConnecting())
	assert.Equal(t, 1, ft.openCalls())
}

func TestBuildAndConnectReleasesOnFailure(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{}
	ft.failOpens(1)

	c, err := websocket.NewBuilder(testURL, nil).
		SetTransport(ft).
		SetLogger(logger.Nop()).
		BuildAndConnect()
	require.Error(t, err)
	assert.Nil(t, c)

	var te *rews.TransportError
	assert.True(t, errors.As(err, &te))
}
