// Package rews defines the contracts shared by the reconnecting WebSocket
// client and its transports: the client capability handed to observers, the
// observer callbacks, the transport session contract, and the error kinds.
//
// The concrete client lives in the websocket package; transports live in the
// websocket (gorilla/websocket) and coder (coder/websocket) packages.
package rews

// --------------------------------------------------------------------------------
// Constants

// MessageType identifies the payload kind of a WebSocket data frame.
type MessageType int

const (
	// MessageText is for UTF-8 encoded text messages like JSON.
	MessageText MessageType = iota + 1
	// MessageBinary is for binary messages like protobufs.
	MessageBinary
)

// Close codes and reasons used by the client.
const (
	// CloseNormalClosure is the close code sent on caller-initiated disconnects.
	CloseNormalClosure = 1000
	// ClosedByClientReason is the close reason sent on caller-initiated disconnects.
	ClosedByClientReason = "closed by client"
)

// State is the connection state of a client.
type State int32

const (
	// StateIdle is the initial state: never connected, or fully disconnected
	// with no pending retry.
	StateIdle State = iota
	// StateConnecting means a transport handshake is in flight.
	StateConnecting
	// StateOpen means the handshake completed and sending is enabled.
	StateOpen
	// StateClosed means the transport session ended.
	StateClosed
)

// String returns the lower-case name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// --------------------------------------------------------------------------------
// Types

// Client is the capability a connection controller exposes to callers and
// observers.
type Client interface {
	// Connect starts a handshake. It returns once the handshake is initiated;
	// completion is reported through Observer.OnOpen or Observer.OnFailure.
	Connect() error
	// Disconnect closes the connection and suppresses automatic reconnection.
	Disconnect() error
	// SendText sends a text message over the live session.
	SendText(content string) error
	// SendBinary sends a binary message over the live session.
	SendBinary(data []byte) error
	// IsConnected reports whether the handshake completed and the session is live.
	IsConnected() bool
	// IsConnecting reports whether a handshake is in flight.
	IsConnecting() bool
	// Release tears everything down. It is terminal and safe to call twice.
	Release()
}
