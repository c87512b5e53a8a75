// Package coder provides a rews.Transport built on the coder/websocket library.
//
// Sessions allow one concurrent reader, owned by the transport, and multiple
// concurrent writers.
package coder

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/coder/websocket"
	"github.com/qntx/rews"
	"github.com/qntx/rews/logger"
)

var (
	ErrSessionClosed = errors.New("rews/coder: session closed")
	ErrInvalidURL    = errors.New("rews/coder: invalid endpoint URL")
)

var _ rews.Transport = (*Transport)(nil)

// Transport opens sessions with coder/websocket.
type Transport struct {
	cfg Config
}

// New creates a transport. A nil cfg uses DefaultConfig.
func New(cfg *Config) *Transport {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	c := cfg.Clone()
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	return &Transport{cfg: c}
}

// Open starts dialing req.URL on a new goroutine and returns the session.
func (t *Transport) Open(ctx context.Context, req rews.Request, sink rews.Sink) (rews.Session, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidURL, req.URL, err)
	}

	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("%w %q: scheme must be ws or wss", ErrInvalidURL, req.URL)
	}

	sctx, cancel := context.WithCancel(ctx)

	s := &session{
		cfg:    t.cfg,
		req:    req,
		sink:   sink,
		log:    t.cfg.Logger.With("session", req.SessionID),
		ctx:    sctx,
		cancel: cancel,
	}

	go s.run()

	return s, nil
}

// session is one coder/websocket connection.
type session struct {
	cfg  Config
	req  rews.Request
	sink rews.Sink
	log  logger.Interface

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	conn       *websocket.Conn
	cancelled  bool
	closeSent  bool
	peerClosed bool
}

func (s *session) SendText(content string) error {
	return s.write(rews.MessageText, []byte(content))
}

func (s *session) SendBinary(data []byte) error {
	return s.write(rews.MessageBinary, data)
}

// Cancel drops the connection without a close handshake.
func (s *session) Cancel() {
	s.mu.Lock()
	s.cancelled = true
	conn := s.conn
	s.mu.Unlock()

	s.cancel()

	if conn != nil {
		_ = conn.CloseNow()
	}
}

// Close starts the close handshake in the background. The read loop reports
// its completion.
func (s *session) Close(code int, reason string) error {
	s.mu.Lock()
	conn := s.conn

	if conn == nil || s.cancelled || s.closeSent || s.peerClosed {
		s.mu.Unlock()

		return nil
	}

	s.closeSent = true
	s.mu.Unlock()

	go func() {
		if err := conn.Close(websocket.StatusCode(code), reason); err != nil {
			s.log.Debug("Close handshake ended: %v", err)
		}
	}()

	return nil
}

// run dials, reports the outcome, and reads until the connection ends.
func (s *session) run() {
	defer s.cancel()

	conn, resp, err := s.dial()
	if err != nil {
		s.log.Error("Connect failed: %v", err)
		s.sink.Failure(rews.NewTransportError("dial", err))

		return
	}

	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		_ = conn.CloseNow()
		s.sink.Failure(rews.NewTransportError("dial", context.Canceled))

		return
	}

	s.conn = conn
	s.mu.Unlock()

	if s.cfg.ReadLimit > 0 {
		conn.SetReadLimit(s.cfg.ReadLimit)
	}

	s.sink.Opened(rews.Handshake{
		StatusCode:  resp.StatusCode,
		Header:      resp.Header,
		Subprotocol: conn.Subprotocol(),
	})

	if interval := s.heartbeatInterval(); interval > 0 {
		go s.heartbeat(conn, interval)
	}

	s.read(conn)
}

// dial performs the opening handshake, retrying a connection-level failure
// once when the request asks for it.
func (s *session) dial() (*websocket.Conn, *http.Response, error) {
	opts := &websocket.DialOptions{}
	if s.cfg.DialOptions != nil {
		*opts = *s.cfg.DialOptions
	}

	opts.HTTPHeader = maps.Clone(opts.HTTPHeader)
	if opts.HTTPHeader == nil {
		opts.HTTPHeader = http.Header{}
	}

	for k, v := range s.req.Header {
		opts.HTTPHeader[k] = v
	}

	if len(s.cfg.Subprotocols) > 0 {
		opts.Subprotocols = s.cfg.Subprotocols
	}

	attempts := uint(1)
	if s.req.RetryOnFailure {
		attempts = 2
	}

	var (
		conn *websocket.Conn
		resp *http.Response
	)

	err := retry.Do(
		func() error {
			ctx, cancel := s.withTimeout(s.req.ConnectTimeout)
			defer cancel()

			c, r, err := websocket.Dial(ctx, s.req.URL, opts)
			if err != nil {
				if r != nil {
					return retry.Unrecoverable(fmt.Errorf("%w: HTTP %d", err, r.StatusCode))
				}

				return err
			}

			conn, resp = c, r

			return nil
		},
		retry.Attempts(attempts),
		retry.Context(s.ctx),
		retry.Delay(0),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, nil, err
	}

	return conn, resp, nil
}

// read delivers data frames until the connection ends, then reports how it
// ended. A close frame from the peer is reported as closing then closed.
func (s *session) read(conn *websocket.Conn) {
	for {
		typ, p, err := conn.Read(s.ctx)
		if err != nil {
			s.finish(err)

			return
		}

		switch typ {
		case websocket.MessageText:
			s.sink.TextMessage(string(p))
		case websocket.MessageBinary:
			s.sink.BinaryMessage(p)
		}
	}
}

func (s *session) finish(err error) {
	var ce websocket.CloseError
	if errors.As(err, &ce) {
		s.mu.Lock()
		initiated := s.closeSent
		s.peerClosed = true
		s.mu.Unlock()

		if !initiated {
			s.sink.Closing(int(ce.Code), ce.Reason)
		}

		s.sink.Closed(int(ce.Code), ce.Reason)

		return
	}

	s.mu.Lock()
	cancelled := s.cancelled
	s.mu.Unlock()

	if cancelled {
		s.sink.Failure(rews.NewTransportError("read", context.Canceled))

		return
	}

	s.sink.Failure(rews.NewTransportError("read", err))
}

// heartbeat sends periodic pings. A missed pong drops the connection, which
// the read loop reports as a failure.
func (s *session) heartbeat(conn *websocket.Conn, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-t.C:
		}

		ctx, cancel := s.withTimeout(s.req.ReadTimeout)
		err := conn.Ping(ctx)
		cancel()

		if err != nil {
			if s.ctx.Err() == nil {
				s.log.Warn("Heartbeat failed: %v", err)
				_ = conn.CloseNow()
			}

			return
		}
	}
}

func (s *session) write(typ rews.MessageType, p []byte) error {
	s.mu.Lock()
	conn, closed := s.conn, s.cancelled || s.closeSent || s.peerClosed
	s.mu.Unlock()

	if closed {
		return ErrSessionClosed
	}

	if conn == nil {
		return rews.ErrNotConnected
	}

	ctx, cancel := s.withTimeout(s.req.WriteTimeout)
	defer cancel()

	if err := conn.Write(ctx, websocket.MessageType(typ), p); err != nil {
		return rews.NewTransportError("write", err)
	}

	return nil
}

func (s *session) heartbeatInterval() time.Duration {
	if s.req.PingInterval > 0 {
		return s.req.PingInterval
	}

	return s.cfg.Heartbeat
}

// withTimeout derives a context from the session, bounded by d when d > 0.
func (s *session) withTimeout(d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(s.ctx)
	}

	return context.WithTimeout(s.ctx, d)
}
