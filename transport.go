package rews

import (
	"context"
	"net/http"
	"time"
)

// Request carries the parameters a Transport needs to open one session.
type Request struct {
	SessionID      string      // Identifier of the session, for logging and correlation.
	URL            string      // WebSocket endpoint (ws:// or wss://).
	Header         http.Header // Handshake headers.
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	PingInterval   time.Duration // 0 disables keep-alive pings.
	RetryOnFailure bool          // Retry connection-level dial failures once.
}

// Handshake describes a completed opening handshake.
type Handshake struct {
	StatusCode  int
	Header      http.Header
	Subprotocol string
}

// Transport opens WebSocket sessions.
type Transport interface {
	// Open initiates a session and returns without waiting for the handshake.
	// Every event of the session is reported to sink asynchronously, from a
	// goroutine owned by the transport, never from inside Open.
	Open(ctx context.Context, req Request, sink Sink) (Session, error)
}

// Session is one live WebSocket connection opened by a Transport.
//
// SendText and SendBinary must be safe for concurrent use.
type Session interface {
	SendText(content string) error
	SendBinary(data []byte) error
	// Cancel aborts the session immediately, discarding queued frames.
	Cancel()
	// Close starts a close handshake with the given code and reason. Closing
	// an already cancelled or closed session is a no-op.
	Close(code int, reason string) error
}

// Sink receives the events of one Session, in the order the transport
// produced them.
type Sink interface {
	Opened(h Handshake)
	Closing(code int, reason string)
	Closed(code int, reason string)
	Failure(err error)
	TextMessage(content string)
	BinaryMessage(data []byte)
}
