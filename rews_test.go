package rews_test

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/qntx/rews"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state rews.State
		want  string
	}{
		{rews.StateIdle, "idle"},
		{rews.StateConnecting, "connecting"},
		{rews.StateOpen, "open"},
		{rews.StateClosed, "closed"},
		{rews.State(42), "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.String())
	}
}

func TestObserverFuncs(t *testing.T) {
	t.Parallel()

	var events []string

	obs := &rews.ObserverFuncs{
		Open:    func(rews.Client) { events = append(events, "open") },
		Closed:  func(_ rews.Client, code int, _ string) { events = append(events, "closed") },
		Failure: func(_ rews.Client, err error) { events = append(events, err.Error()) },
		Reconnecting: func(_ rews.Client, attempt uint, delay time.Duration) {
			events = append(events, delay.String())
		},
	}

	obs.OnOpen(nil)
	obs.OnClosing(nil, 1000, "bye")
	obs.OnClosed(nil, 1000, "bye")
	obs.OnFailure(nil, io.EOF)
	obs.OnTextMessage(nil, "ignored")
	obs.OnBinaryMessage(nil, []byte{1})
	obs.OnReconnecting(nil, 1, time.Second)

	assert.Equal(t, []string{"open", "closed", "EOF", "1s"}, events)
}

func TestObserverFuncsZeroValue(t *testing.T) {
	t.Parallel()

	var obs rews.ObserverFuncs

	assert.NotPanics(t, func() {
		obs.OnOpen(nil)
		obs.OnClosing(nil, 1000, "")
		obs.OnClosed(nil, 1000, "")
		obs.OnFailure(nil, io.EOF)
		obs.OnTextMessage(nil, "")
		obs.OnBinaryMessage(nil, nil)
		obs.OnReconnecting(nil, 1, 0)
	})
}

func TestNopObserver(t *testing.T) {
	t.Parallel()

	type onlyOpen struct {
		rews.NopObserver
	}

	var obs rews.Observer = onlyOpen{}

	assert.NotPanics(t, func() {
		obs.OnOpen(nil)
		obs.OnFailure(nil, io.EOF)
	})

	_, ok := obs.(rews.ReconnectObserver)
	assert.False(t, ok)
}

func TestTransportError(t *testing.T) {
	t.Parallel()

	err := rews.NewTransportError("dial", io.ErrUnexpectedEOF)

	var te *rews.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "dial", te.Op)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, "rews: transport dial failed: unexpected EOF", err.Error())
}

func TestNewTransportErrorKeepsExisting(t *testing.T) {
	t.Parallel()

	inner := rews.NewTransportError("read", io.EOF)
	wrapped := rews.NewTransportError("write", inner)

	assert.Same(t, inner, wrapped)
	assert.NoError(t, rews.NewTransportError("read", nil))

	outer := rews.NewTransportError("ping", errors.Join(errors.New("ctx"), inner))

	var te *rews.TransportError
	require.ErrorAs(t, outer, &te)
	assert.Equal(t, "read", te.Op)
}
