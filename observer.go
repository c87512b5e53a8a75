package rews

import "time"

// Observer receives lifecycle and message events of a Client.
//
// Callbacks run on the transport goroutine unless the client is configured
// for asynchronous callbacks. They may call back into the Client.
type Observer interface {
	OnOpen(c Client)
	OnClosing(c Client, code int, reason string)
	OnClosed(c Client, code int, reason string)
	OnFailure(c Client, err error)
	OnTextMessage(c Client, content string)
	OnBinaryMessage(c Client, data []byte)
}

// ReconnectObserver is implemented by observers that want to know when an
// automatic reconnect has been scheduled.
type ReconnectObserver interface {
	// OnReconnecting is called with the 1-based attempt number and the delay
	// before the attempt fires.
	OnReconnecting(c Client, attempt uint, delay time.Duration)
}

// NopObserver implements every Observer method as a no-op. Embed it to
// implement only the callbacks you need.
type NopObserver struct{}

var _ Observer = NopObserver{}

func (NopObserver) OnOpen(Client)                  {}
func (NopObserver) OnClosing(Client, int, string)  {}
func (NopObserver) OnClosed(Client, int, string)   {}
func (NopObserver) OnFailure(Client, error)        {}
func (NopObserver) OnTextMessage(Client, string)   {}
func (NopObserver) OnBinaryMessage(Client, []byte) {}

// ObserverFuncs adapts plain functions to the Observer and ReconnectObserver
// interfaces. Nil fields are skipped.
type ObserverFuncs struct {
	Open          func(c Client)
	Closing       func(c Client, code int, reason string)
	Closed        func(c Client, code int, reason string)
	Failure       func(c Client, err error)
	TextMessage   func(c Client, content string)
	BinaryMessage func(c Client, data []byte)
	Reconnecting  func(c Client, attempt uint, delay time.Duration)
}

var (
	_ Observer          = (*ObserverFuncs)(nil)
	_ ReconnectObserver = (*ObserverFuncs)(nil)
)

func (f *ObserverFuncs) OnOpen(c Client) {
	if f.Open != nil {
		f.Open(c)
	}
}

func (f *ObserverFuncs) OnClosing(c Client, code int, reason string) {
	if f.Closing != nil {
		f.Closing(c, code, reason)
	}
}

func (f *ObserverFuncs) OnClosed(c Client, code int, reason string) {
	if f.Closed != nil {
		f.Closed(c, code, reason)
	}
}

func (f *ObserverFuncs) OnFailure(c Client, err error) {
	if f.Failure != nil {
		f.Failure(c, err)
	}
}

func (f *ObserverFuncs) OnTextMessage(c Client, content string) {
	if f.TextMessage != nil {
		f.TextMessage(c, content)
	}
}

func (f *ObserverFuncs) OnBinaryMessage(c Client, data []byte) {
	if f.BinaryMessage != nil {
		f.BinaryMessage(c, data)
	}
}

func (f *ObserverFuncs) OnReconnecting(c Client, attempt uint, delay time.Duration) {
	if f.Reconnecting != nil {
		f.Reconnecting(c, attempt, delay)
	}
}
