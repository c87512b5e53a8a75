// Package websocket provides a reconnecting WebSocket client with event-driven
// callbacks. It owns one logical connection at a time, dispatches lifecycle
// and message events to a rews.Observer, and re-establishes the connection
// after unexpected closure or failure until the caller disconnects or
// releases it. The default transport is built on gorilla/websocket.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qntx/rews"
	"github.com/qntx/rews/logger"
	"github.com/qntx/rews/scheduler"
	"github.com/qntx/rews/util"
)

// --------------------------------------------------------------------------------
// Types

// Client manages one logical WebSocket connection with automatic reconnection.
//
// It is safe for concurrent use.
type Client struct {
	config    Config
	observer  rews.Observer
	transport rews.Transport
	logger    logger.Interface
	parent    context.Context

	mu             sync.Mutex // Guards everything below up to sched.
	state          rews.State
	closing        bool // Peer started the close handshake; session kept until closed.
	released       bool
	userDisconnect bool
	session        rews.Session
	sessionID      string
	handshake      *rews.Handshake
	attempts       uint // Consecutive reconnect attempts since the last open.
	sched          *scheduler.Scheduler

	chMu       sync.RWMutex // Guards closing of the channels below.
	messagesCh chan []byte  // Optional channel for received payloads.
	errorsCh   chan error   // Optional channel for failures.

	ctx    context.Context // Lifecycle context; cancelled on Release.
	cancel context.CancelFunc
}

var _ rews.Client = (*Client)(nil)

// --------------------------------------------------------------------------------
// Initialization

// New creates an idle client for url that reports events to observer.
//
// It returns an error if any option fails or the resulting configuration is
// invalid. No session is opened until Connect is called.
func New(url string, observer rews.Observer, opts ...Option) (*Client, error) {
	c := newClient(url, observer)

	if _, err := c.With(opts...); err != nil {
		return nil, err
	}

	if err := c.config.Validate(); err != nil {
		return nil, err
	}

	if c.transport == nil {
		t, err := NewTransport(WithTransportLogger(c.logger))
		if err != nil {
			return nil, err
		}

		c.transport = t
	}

	c.ctx, c.cancel = context.WithCancel(c.parent)

	if c.config.AutoReconnect {
		c.sched = scheduler.New()
	}

	return c, nil
}

// newClient returns an unstarted client carrying the defaults.
func newClient(url string, observer rews.Observer) *Client {
	if observer == nil {
		observer = rews.NopObserver{}
	}

	l, err := logger.New("info", os.Stdout)
	if err != nil {
		l = logger.Nop()
	}

	return &Client{
		config:   DefaultConfig(url),
		observer: observer,
		logger:   l,
		parent:   context.Background(),
		state:    rews.StateIdle,
	}
}

// With applies a list of options to the Client and returns the modified instance along with any error.
//
// Options only take effect before the client is returned by New.
func (c *Client) With(opts ...Option) (*Client, error) {
	for i, opt := range opts {
		if opt == nil {
			continue // Skip nil options gracefully
		}

		if err := opt(c); err != nil {
			return c, fmt.Errorf("failed to apply option at index %d: %w", i, err)
		}
	}

	return c, nil
}

// --------------------------------------------------------------------------------
// Connection Management

// Connect opens a new session unless one is already connecting or open.
//
// It returns once the handshake has been initiated; the outcome is reported
// through OnOpen or OnFailure. It clears a previous Disconnect so automatic
// reconnection applies again.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return rews.ErrReleased
	}

	c.userDisconnect = false
	c.attempts = 0

	if c.sched != nil {
		c.sched.CancelAll()
	}

	return c.connectLocked()
}

// Disconnect tears down the current session and suppresses automatic
// reconnection until the next Connect.
//
// The session is cancelled first and then asked to close with code 1000
// ("closed by client"). Both bundled transports drop the connection on
// Cancel, so the later Close is a no-op and the peer sees the connection end
// without a close frame (1006 on its side). Transports that keep the socket
// after Cancel still deliver the 1000 close frame.
func (c *Client) Disconnect() error {
	c.mu.Lock()

	if c.released {
		c.mu.Unlock()

		return rews.ErrReleased
	}

	c.userDisconnect = true

	if c.sched != nil {
		c.sched.CancelAll()
	}

	session, id := c.detachLocked()
	c.mu.Unlock()

	if session != nil {
		c.logger.Info("Disconnecting from %s [session=%s]", c.config.URL, id)
	}

	return c.teardown(session)
}

// Release permanently shuts the client down: pending reconnects are dropped,
// the scheduler stops, and the session is torn down. Errors are logged and
// swallowed. Every later operation fails with rews.ErrReleased.
func (c *Client) Release() {
	c.mu.Lock()
	first := !c.released
	c.released = true
	c.userDisconnect = true
	session, _ := c.detachLocked()
	sched := c.sched
	c.mu.Unlock()

	if sched != nil {
		sched.CancelAll()

		if err := sched.Shutdown(); err != nil {
			c.logger.Warn("Reconnect scheduler shutdown: %v", err)
		}
	}

	if err := c.teardown(session); err != nil {
		c.logger.Warn("Release teardown error: %v", err)
	}

	if !first {
		return
	}

	c.cancel()

	c.chMu.Lock()
	if c.messagesCh != nil {
		close(c.messagesCh)
	}

	if c.errorsCh != nil {
		close(c.errorsCh)
	}
	c.chMu.Unlock()

	c.logger.Info("Client released")
}

// IsConnected reports whether the handshake completed and the session is live.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return !c.released && !c.closing && c.state == rews.StateOpen
}

// IsConnecting reports whether a handshake is in flight.
func (c *Client) IsConnecting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return !c.released && !c.closing && c.state == rews.StateConnecting
}

// State returns the current connection state.
func (c *Client) State() rews.State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Released reports whether Release has been called.
func (c *Client) Released() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.released
}

// SessionID returns the identifier of the current session, or "" without one.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.sessionID
}

// Handshake returns the last completed handshake, or nil before the first open.
func (c *Client) Handshake() *rews.Handshake {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.handshake
}

// Config returns a copy of the client configuration.
func (c *Client) Config() Config {
	cfg := c.config
	cfg.Headers = maps.Clone(c.config.Headers)

	return cfg
}

// Context returns the client's lifecycle context for external monitoring.
func (c *Client) Context() context.Context {
	return c.ctx
}

// --------------------------------------------------------------------------------
// Message Handling

// SendText sends a text message over the live session.
//
// It returns rews.ErrNotConnected without a session. A rejection by the
// transport is logged, not returned.
func (c *Client) SendText(content string) error {
	c.mu.Lock()
	released, session := c.released, c.session
	c.mu.Unlock()

	if released {
		return rews.ErrReleased
	}

	if session == nil {
		return rews.ErrNotConnected
	}

	if err := session.SendText(content); err != nil {
		if errors.Is(err, rews.ErrNotConnected) {
			return err
		}

		c.logger.Warn("Text message rejected by transport [size=%d]: %v", len(content), err)
	}

	return nil
}

// SendBinary sends a binary message over the live session.
//
// It returns rews.ErrNotConnected without a session and an error wrapping
// rews.ErrSendFailed when the transport rejects the message.
func (c *Client) SendBinary(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return rews.ErrReleased
	}

	if c.session == nil {
		return rews.ErrNotConnected
	}

	if err := c.session.SendBinary(data); err != nil {
		if errors.Is(err, rews.ErrNotConnected) {
			return err
		}

		return fmt.Errorf("%w: %w", rews.ErrSendFailed, err)
	}

	return nil
}

// HasMessages checks if the messages channel is enabled.
func (c *Client) HasMessages() bool {
	return c.messagesCh != nil
}

// HasErrors checks if the errors channel is enabled.
func (c *Client) HasErrors() bool {
	return c.errorsCh != nil
}

// Messages provides a read-only channel of received payloads, if enabled.
// It is closed on Release.
//
// Logs a warning if the channel is not configured.
func (c *Client) Messages() <-chan []byte {
	if c.messagesCh == nil {
		c.logger.Warn("Messages channel not enabled; use WithMessages")
	}

	return c.messagesCh
}

// Errors provides a read-only channel of failures, if enabled. It is closed
// on Release.
//
// Logs a warning if the channel is not configured.
func (c *Client) Errors() <-chan error {
	if c.errorsCh == nil {
		c.logger.Warn("Errors channel not enabled; use WithErrors")
	}

	return c.errorsCh
}

// --------------------------------------------------------------------------------
// Lifecycle Management (Private)

// connectLocked opens a new session. The caller holds c.mu.
func (c *Client) connectLocked() error {
	if c.session != nil && !c.closing && (c.state == rews.StateConnecting || c.state == rews.StateOpen) {
		c.logger.Info("Already connected or connecting to %s; ignoring connect", c.config.URL)

		return nil
	}

	// A session still completing a peer-initiated close is superseded.
	if old := c.session; old != nil {
		old.Cancel()
	}

	id := uuid.NewString()
	req := rews.Request{
		SessionID:      id,
		URL:            c.config.URL,
		Header:         c.header(),
		ConnectTimeout: c.config.ConnectTimeout,
		ReadTimeout:    c.config.ReadTimeout,
		WriteTimeout:   c.config.WriteTimeout,
		PingInterval:   c.config.PingInterval,
		RetryOnFailure: c.config.RetryOnFailure,
	}

	c.logger.Info("Connecting to %s [session=%s]", c.config.URL, id)

	session, err := c.transport.Open(c.ctx, req, &sessionSink{c: c, id: id})
	if err != nil {
		c.session, c.sessionID = nil, ""
		if c.state != rews.StateIdle {
			c.state = rews.StateClosed
		}

		return fmt.Errorf("connect %s: %w", c.config.URL, rews.NewTransportError("open", err))
	}

	c.session = session
	c.sessionID = id
	c.state = rews.StateConnecting
	c.closing = false

	return nil
}

// detachLocked moves to Closed and hands back the session for teardown. The
// caller holds c.mu.
func (c *Client) detachLocked() (rews.Session, string) {
	session, id := c.session, c.sessionID

	c.session, c.sessionID = nil, ""
	c.closing = false
	c.state = rews.StateClosed

	return session, id
}

// teardown cancels a detached session and closes it with code 1000.
func (c *Client) teardown(session rews.Session) error {
	if session == nil {
		return nil
	}

	session.Cancel()

	if err := session.Close(rews.CloseNormalClosure, rews.ClosedByClientReason); err != nil {
		return fmt.Errorf("close session: %w", err)
	}

	return nil
}

// afterClose evaluates the reconnect policy once a session has ended.
func (c *Client) afterClose() {
	c.mu.Lock()
	notify := c.scheduleReconnectLocked()
	c.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// scheduleReconnectLocked arms one reconnect attempt if auto-reconnect is on,
// neither Disconnect nor Release was called, and no session has been started
// since the last one ended. The caller holds c.mu and must run the returned
// notification, if any, after unlocking.
func (c *Client) scheduleReconnectLocked() func() {
	if !c.config.AutoReconnect || c.sched == nil || c.released || c.userDisconnect {
		return nil
	}

	// An observer or another goroutine already called Connect.
	if c.session != nil || c.state == rews.StateConnecting || c.state == rews.StateOpen {
		return nil
	}

	if c.sched.Pending() > 0 {
		return nil
	}

	c.attempts++
	attempt := c.attempts
	delay := c.reconnectDelay(attempt)

	if err := c.sched.Schedule(delay, c.reconnect); err != nil {
		c.logger.Error("Failed to schedule reconnect: %v", err)

		return nil
	}

	c.logger.Info("Reconnect attempt %d scheduled in %v", attempt, delay)

	ro, ok := c.observer.(rews.ReconnectObserver)
	if !ok {
		return nil
	}

	return func() { c.invoke(func() { ro.OnReconnecting(c, attempt, delay) }) }
}

// reconnectDelay returns the delay before the given attempt.
func (c *Client) reconnectDelay(attempt uint) time.Duration {
	base := c.config.ReconnectInterval
	if c.config.ReconnectMaxInterval <= base {
		return base
	}

	delay, err := util.Backoff(attempt, base, c.config.ReconnectMaxInterval, c.config.ReconnectJitter)
	if err != nil {
		c.logger.Warn("Backoff jitter unavailable: %v", err)
	}

	return delay
}

// reconnect runs on the scheduler worker. It re-checks the policy flags at
// fire time and re-arms itself when the attempt cannot be started.
func (c *Client) reconnect() {
	c.mu.Lock()

	if c.released || c.userDisconnect {
		c.mu.Unlock()
		c.logger.Debug("Reconnect aborted: client disconnected or released")

		return
	}

	var notify func()

	if err := c.connectLocked(); err != nil {
		c.logger.Warn("Reconnect attempt %d failed: %v", c.attempts, err)
		notify = c.scheduleReconnectLocked()
	}

	c.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// --------------------------------------------------------------------------------
// Utilities (Private)

// header builds the handshake header, skipping empty keys.
func (c *Client) header() http.Header {
	h := make(http.Header, len(c.config.Headers))

	for k, v := range c.config.Headers {
		if k == "" {
			c.logger.Warn("Skipping handshake header with empty key")

			continue
		}

		h.Set(k, v)
	}

	return h
}

// invoke executes a callback synchronously or asynchronously based on config.
//
// A panicking callback is logged and does not take the client down.
func (c *Client) invoke(fn func()) {
	if fn == nil {
		return
	}

	run := func() {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("Observer callback panicked: %v", r)
			}
		}()

		fn()
	}

	if c.config.AsyncCallbacks {
		go run()
	} else {
		run()
	}
}

// sendMessage delivers a received payload to the messages channel.
//
// It drops the payload if the channel stays full past the write timeout or
// the client is released.
func (c *Client) sendMessage(data []byte) {
	if c.messagesCh == nil {
		return
	}

	c.chMu.RLock()
	defer c.chMu.RUnlock()

	if c.ctx.Err() != nil {
		return
	}

	select {
	case c.messagesCh <- data:
	case <-c.ctx.Done():
	case <-time.After(c.config.WriteTimeout):
		c.sendErrorLocked(errors.New("message dropped: channel full or timeout"))
		c.logger.Warn("Message dropped: channel full or timeout after %v", c.config.WriteTimeout)
	}
}

// sendError delivers an error to the errors channel.
//
// It drops the error if the channel stays full past the write timeout or the
// client is released.
func (c *Client) sendError(err error) {
	if c.errorsCh == nil {
		return
	}

	c.chMu.RLock()
	defer c.chMu.RUnlock()

	c.sendErrorLocked(err)
}

// sendErrorLocked is sendError for callers holding chMu for reading.
func (c *Client) sendErrorLocked(err error) {
	if c.errorsCh == nil || c.ctx.Err() != nil {
		return
	}

	select {
	case c.errorsCh <- err:
	case <-c.ctx.Done():
	case <-time.After(c.config.WriteTimeout):
		c.logger.Warn("Error dropped: channel full or timeout after %v", c.config.WriteTimeout)
	}
}
