package websocket

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/gorilla/websocket"
	"github.com/qntx/rews"
	"github.com/qntx/rews/logger"
)

// --------------------------------------------------------------------------------
// Constants

const (
	// closeGracePeriod bounds the wait for the peer's close reply after a
	// client-initiated close.
	closeGracePeriod = 5 * time.Second
)

// --------------------------------------------------------------------------------
// Errors

var (
	// ErrSessionClosed is returned when writing to a cancelled or closing session.
	ErrSessionClosed = errors.New("websocket: session closed")
	// ErrInvalidURL is returned by Open for URLs that are not ws:// or wss://.
	ErrInvalidURL = errors.New("websocket: invalid endpoint URL")
)

// --------------------------------------------------------------------------------
// Types

// TransportOption configures a Transport and returns an error if configuration fails.
type TransportOption func(*Transport) error

// Transport opens sessions with gorilla/websocket.
type Transport struct {
	proxy             func(*http.Request) (*url.URL, error) // Proxy routing function; nil disables proxy.
	tlsClientConfig   *tls.Config                           // TLS settings for wss://; nil uses system defaults.
	readBufferSize    int                                   // Read buffer size in bytes; 0 for default.
	writeBufferSize   int                                   // Write buffer size in bytes; 0 for default.
	subprotocols      []string                              // Supported subprotocols; nil for none.
	enableCompression bool                                  // Enables RFC 7692 per-message compression if true.
	readLimit         int64                                 // Max message size in bytes; 0 for no limit.
	logger            logger.Interface
}

var _ rews.Transport = (*Transport)(nil)

// NewTransport creates a gorilla/websocket transport.
func NewTransport(opts ...TransportOption) (*Transport, error) {
	t := &Transport{logger: logger.Nop()}

	for i, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(t); err != nil {
			return nil, fmt.Errorf("failed to apply transport option at index %d: %w", i, err)
		}
	}

	return t, nil
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
		t:      t,
		req:    req,
		sink:   sink,
		log:    t.logger.With("session", req.SessionID),
		ctx:    sctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go s.run()

	return s, nil
}

// session is one gorilla/websocket connection.
type session struct {
	t    *Transport
	req  rews.Request
	sink rews.Sink
	log  logger.Interface

	ctx    context.Context // Cancelled by Cancel or when the session ends.
	cancel context.CancelFunc

	mu        sync.Mutex // Protects conn, cancelled, closeSent.
	conn      *websocket.Conn
	cancelled bool
	closeSent bool

	writeMu sync.Mutex // Serialises data frame writes.
	done    chan struct{}
}

var _ rews.Session = (*session)(nil)

// --------------------------------------------------------------------------------
// Session Operations

func (s *session) SendText(content string) error {
	return s.write(websocket.TextMessage, []byte(content))
}

func (s *session) SendBinary(data []byte) error {
	return s.write(websocket.BinaryMessage, data)
}

// Cancel aborts the dial or drops the connection without a close handshake.
func (s *session) Cancel() {
	s.mu.Lock()
	s.cancelled = true
	conn := s.conn
	s.mu.Unlock()

	s.cancel()

	if conn != nil {
		_ = conn.Close()
	}
}

// Close sends a close frame and waits for the peer's reply in the read loop.
func (s *session) Close(code int, reason string) error {
	s.mu.Lock()
	conn := s.conn

	if conn == nil || s.cancelled || s.closeSent {
		s.mu.Unlock()

		return nil
	}

	s.closeSent = true
	s.mu.Unlock()

	msg := websocket.FormatCloseMessage(code, reason)
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.writeTimeout())); err != nil {
		_ = conn.Close()

		return rews.NewTransportError("close", err)
	}

	// Bound the wait for the peer's close frame.
	if err := conn.SetReadDeadline(time.Now().Add(closeGracePeriod)); err != nil {
		return rews.NewTransportError("close", err)
	}

	return nil
}

// --------------------------------------------------------------------------------
// Lifecycle (Private)

// run dials, reports the outcome, and reads until the connection ends.
func (s *session) run() {
	defer close(s.done)
	defer s.cancel()

	conn, resp, err := s.dial()
	if err != nil {
		s.log.Error("Connect failed: %v", err)
		s.sink.Failure(rews.NewTransportError("dial", err))

		return
	}
	defer conn.Close()

	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		s.sink.Failure(rews.NewTransportError("dial", context.Canceled))

		return
	}

	s.conn = conn
	s.mu.Unlock()

	conn.SetReadLimit(s.t.readLimit)
	s.setupHandlers(conn)

	s.sink.Opened(rews.Handshake{
		StatusCode:  resp.StatusCode,
		Header:      resp.Header,
		Subprotocol: conn.Subprotocol(),
	})

	if s.req.PingInterval > 0 {
		go s.keepAlive(conn)
	}

	s.read(conn)
}

// dial performs the opening handshake. Connection-level failures are retried
// once when the request asks for it; rejected handshakes are not.
func (s *session) dial() (*websocket.Conn, *http.Response, error) {
	dialer := &websocket.Dialer{
		Proxy:             s.t.proxy,
		TLSClientConfig:   s.t.tlsClientConfig,
		HandshakeTimeout:  s.req.ConnectTimeout,
		ReadBufferSize:    s.t.readBufferSize,
		WriteBufferSize:   s.t.writeBufferSize,
		Subprotocols:      s.t.subprotocols,
		EnableCompression: s.t.enableCompression,
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
			c, r, err := dialer.DialContext(s.ctx, s.req.URL, s.req.Header)
			if err != nil {
				if r != nil {
					return retry.Unrecoverable(fmt.Errorf("%w: HTTP %s", err, r.Status))
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
		retry.OnRetry(func(n uint, err error) {
			s.log.Warn("Dial attempt %d failed, retrying: %v", n+1, err)
		}),
	)
	if err != nil {
		return nil, nil, err
	}

	return conn, resp, nil
}

// setupHandlers reports close frames as closing events and keeps the read
// deadline moving while pongs arrive.
func (s *session) setupHandlers(conn *websocket.Conn) {
	conn.SetCloseHandler(func(code int, text string) error {
		s.log.Debug("Close frame received: %d - %s", code, text)
		s.sink.Closing(code, text)

		return nil
	})

	conn.SetPongHandler(func(data string) error {
		s.log.Debug("Pong received: %s", data)
		s.extendReadDeadline(conn)

		return nil
	})
}

// read delivers data frames until the connection ends, then reports how it ended.
func (s *session) read(conn *websocket.Conn) {
	for {
		s.extendReadDeadline(conn)

		msgType, data, err := conn.ReadMessage()
		if err != nil {
			s.finish(err)

			return
		}

		switch msgType {
		case websocket.TextMessage:
			s.sink.TextMessage(string(data))
		case websocket.BinaryMessage:
			s.sink.BinaryMessage(data)
		}
	}
}

// finish maps the terminal read error to a closed or failure event.
func (s *session) finish(err error) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		s.sink.Closed(ce.Code, ce.Text)

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

// keepAlive sends periodic pings until the session ends.
func (s *session) keepAlive(conn *websocket.Conn) {
	ticker := time.NewTicker(s.req.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.writeTimeout())); err != nil {
				s.log.Warn("Keep-alive ping failed: %v", err)

				return
			}
		}
	}
}

// write sends one data frame with the configured write deadline.
func (s *session) write(msgType int, data []byte) error {
	s.mu.Lock()
	conn, closed := s.conn, s.cancelled || s.closeSent
	s.mu.Unlock()

	if closed {
		return ErrSessionClosed
	}

	if conn == nil {
		return rews.ErrNotConnected
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.req.WriteTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(s.req.WriteTimeout)); err != nil {
			return rews.NewTransportError("write", err)
		}
	}

	if err := conn.WriteMessage(msgType, data); err != nil {
		return rews.NewTransportError("write", err)
	}

	return nil
}

// extendReadDeadline applies ReadTimeout + PingInterval when pings are on.
func (s *session) extendReadDeadline(conn *websocket.Conn) {
	if s.req.PingInterval <= 0 || s.req.ReadTimeout <= 0 {
		return
	}

	s.mu.Lock()
	closing := s.closeSent
	s.mu.Unlock()

	if closing {
		return
	}

	_ = conn.SetReadDeadline(time.Now().Add(s.req.ReadTimeout + s.req.PingInterval))
}

func (s *session) writeTimeout() time.Duration {
	if s.req.WriteTimeout > 0 {
		return s.req.WriteTimeout
	}

	return DefaultWriteTimeout
}

// --------------------------------------------------------------------------------
// Option Functions

// WithProxy configures the proxy using a URL string or custom function.
//
// Returns an error if the proxy URL is invalid or the type is unsupported.
func WithProxy(proxy any) TransportOption {
	return func(t *Transport) error {
		switch p := proxy.(type) {
		case string:
			if p == "" {
				t.proxy = nil

				return nil
			}

			u, err := url.Parse(p)
			if err != nil {
				return fmt.Errorf("invalid proxy URL %q: %w", p, err)
			}

			t.proxy = http.ProxyURL(u)
		case func(*http.Request) (*url.URL, error):
			t.proxy = p
		case nil:
			t.proxy = nil
		default:
			return fmt.Errorf("unsupported proxy type: %T", proxy)
		}

		return nil
	}
}

// WithEnvProxy enables proxy settings from environment variables.
func WithEnvProxy() TransportOption {
	return func(t *Transport) error {
		t.proxy = http.ProxyFromEnvironment

		return nil
	}
}

// WithTLS sets the TLS configuration for secure connections.
func WithTLS(cfg *tls.Config) TransportOption {
	return func(t *Transport) error {
		t.tlsClientConfig = cfg

		return nil
	}
}

// WithBuffers configures the read and write buffer sizes in bytes.
//
// Returns an error if either buffer size is negative.
func WithBuffers(read, write int) TransportOption {
	return func(t *Transport) error {
		if read < 0 || write < 0 {
			return fmt.Errorf("buffer sizes cannot be negative: read=%d, write=%d", read, write)
		}

		t.readBufferSize = read
		t.writeBufferSize = write

		return nil
	}
}

// WithSubprotocols specifies supported WebSocket subprotocols.
func WithSubprotocols(protos ...string) TransportOption {
	return func(t *Transport) error {
		t.subprotocols = protos

		return nil
	}
}

// WithCompression enables or disables RFC 7692 per-message compression.
func WithCompression(enable bool) TransportOption {
	return func(t *Transport) error {
		t.enableCompression = enable

		return nil
	}
}

// WithReadLimit sets the maximum allowed message size in bytes.
//
// Returns an error if the limit is negative.
func WithReadLimit(limit int64) TransportOption {
	return func(t *Transport) error {
		if limit < 0 {
			return fmt.Errorf("read limit cannot be negative: %d", limit)
		}

		t.readLimit = limit

		return nil
	}
}

// WithTransportLogger sets the logger sessions write to.
//
// Returns an error if the logger is nil.
func WithTransportLogger(l logger.Interface) TransportOption {
	return func(t *Transport) error {
		if l == nil {
			return errors.New("logger cannot be nil")
		}

		t.logger = l

		return nil
	}
}
