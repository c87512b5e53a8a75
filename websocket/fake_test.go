package websocket_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/qntx/rews"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------------
// Fake Transport

// fakeTransport records every session it opens. Tests drive events through
// each session's sink from their own goroutine, never from inside Open.
type fakeTransport struct {
	mu       sync.Mutex
	calls    int
	failNext int
	opened   []time.Time
	sessions []*fakeSession
}

var _ rews.Transport = (*fakeTransport)(nil)

func (f *fakeTransport) Open(_ context.Context, req rews.Request, sink rews.Sink) (rews.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.opened = append(f.opened, time.Now())

	if f.failNext > 0 {
		f.failNext--

		return nil, fmt.Errorf("dial %s: connection refused", req.URL)
	}

	s := &fakeSession{req: req, sink: sink}
	f.sessions = append(f.sessions, s)

	return s, nil
}

// failOpens makes the next n calls to Open fail.
func (f *fakeTransport) failOpens(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.failNext = n
}

func (f *fakeTransport) openCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls
}

// openTimes returns when each call to Open happened, refused ones included.
func (f *fakeTransport) openTimes() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]time.Time(nil), f.opened...)
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.sessions)
}

// last returns the most recently opened session, failing the test if none.
func (f *fakeTransport) last(t *testing.T) *fakeSession {
	t.Helper()

	f.mu.Lock()
	defer f.mu.Unlock()

	require.NotEmpty(t, f.sessions, "no session opened")

	return f.sessions[len(f.sessions)-1]
}

type closeCall struct {
	code   int
	reason string
}

type fakeSession struct {
	req  rews.Request
	sink rews.Sink

	mu          sync.Mutex
	cancelled   bool
	closes      []closeCall
	closedFirst bool // Close arrived before Cancel.
	texts       []string
	binaries    [][]byte
	textErr     error
	binaryErr   error
}

var _ rews.Session = (*fakeSession)(nil)

func (s *fakeSession) SendText(content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.textErr != nil {
		return s.textErr
	}

	s.texts = append(s.texts, content)

	return nil
}

func (s *fakeSession) SendBinary(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.binaryErr != nil {
		return s.binaryErr
	}

	s.binaries = append(s.binaries, data)

	return nil
}

func (s *fakeSession) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelled = true
}

func (s *fakeSession) Close(code int, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cancelled {
		s.closedFirst = true
	}

	s.closes = append(s.closes, closeCall{code: code, reason: reason})

	return nil
}

func (s *fakeSession) isCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cancelled
}

func (s *fakeSession) closedBeforeCancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closedFirst
}

func (s *fakeSession) closeCalls() []closeCall {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]closeCall(nil), s.closes...)
}

func (s *fakeSession) sentTexts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.texts...)
}

func (s *fakeSession) open() {
	s.sink.Opened(rews.Handshake{StatusCode: 101})
}

// --------------------------------------------------------------------------------
// Recorder

// recorder is an observer that keeps every event as a short string.
type recorder struct {
	mu     sync.Mutex
	events []string
}

var (
	_ rews.Observer          = (*recorder)(nil)
	_ rews.ReconnectObserver = (*recorder)(nil)
)

func (r *recorder) add(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *recorder) OnOpen(rews.Client) {
	r.add("open")
}

func (r *recorder) OnClosing(_ rews.Client, code int, reason string) {
	r.add("closing:%d:%s", code, reason)
}

func (r *recorder) OnClosed(_ rews.Client, code int, reason string) {
	r.add("closed:%d:%s", code, reason)
}

func (r *recorder) OnFailure(_ rews.Client, err error) {
	r.add("failure:%v", err)
}

func (r *recorder) OnTextMessage(_ rews.Client, content string) {
	r.add("text:%s", content)
}

func (r *recorder) OnBinaryMessage(_ rews.Client, data []byte) {
	r.add("binary:%x", data)
}

func (r *recorder) OnReconnecting(_ rews.Client, attempt uint, _ time.Duration) {
	r.add("reconnecting:%d", attempt)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.events...)
}

func (r *recorder) has(event string) bool {
	for _, e := range r.all() {
		if e == event {
			return true
		}
	}

	return false
}

func (r *recorder) count(prefix string) int {
	n := 0

	for _, e := range r.all() {
		if strings.HasPrefix(e, prefix) {
			n++
		}
	}

	return n
}
