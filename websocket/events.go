package websocket

import (
	"github.com/qntx/rews"
)

// sessionSink routes the events of one session back into its Client. Events
// of a session that is no longer current are dropped.
type sessionSink struct {
	c  *Client
	id string
}

var _ rews.Sink = (*sessionSink)(nil)

func (s *sessionSink) Opened(h rews.Handshake)         { s.c.handleOpen(s.id, h) }
func (s *sessionSink) Closing(code int, reason string) { s.c.handleClosing(s.id, code, reason) }
func (s *sessionSink) Closed(code int, reason string)  { s.c.handleClosed(s.id, code, reason) }
func (s *sessionSink) Failure(err error)               { s.c.handleFailure(s.id, err) }
func (s *sessionSink) TextMessage(content string)      { s.c.handleText(s.id, content) }
func (s *sessionSink) BinaryMessage(data []byte)       { s.c.handleBinary(s.id, data) }

// currentLocked reports whether id names the live session. The caller holds c.mu.
func (c *Client) currentLocked(id string) bool {
	return !c.released && c.session != nil && c.sessionID == id
}

// stale logs an event that arrived for a superseded session.
func (c *Client) stale(id, event string) {
	c.logger.Debug("Ignoring %s from superseded session %s", event, id)
}

// handleOpen moves Connecting to Open.
func (c *Client) handleOpen(id string, h rews.Handshake) {
	c.mu.Lock()
	if !c.currentLocked(id) {
		c.mu.Unlock()
		c.stale(id, "open")

		return
	}

	c.state = rews.StateOpen
	c.closing = false
	c.handshake = &h
	c.attempts = 0
	c.mu.Unlock()

	c.logger.Info("Connected to %s [session=%s, status=%d]", c.config.URL, id, h.StatusCode)

	c.invoke(func() { c.observer.OnOpen(c) })
}

// handleClosing completes a peer-initiated close handshake. The session is
// kept until the transport reports it closed.
func (c *Client) handleClosing(id string, code int, reason string) {
	c.mu.Lock()
	if !c.currentLocked(id) {
		c.mu.Unlock()
		c.stale(id, "closing")

		return
	}

	c.closing = true
	session := c.session
	c.mu.Unlock()

	c.logger.Info("Connection closing: %d - %s [session=%s]", code, reason, id)

	if err := session.Close(code, reason); err != nil {
		c.logger.Debug("Close handshake reply failed: %v", err)
	}

	c.invoke(func() { c.observer.OnClosing(c, code, reason) })
}

// handleClosed moves to Closed and evaluates the reconnect policy.
func (c *Client) handleClosed(id string, code int, reason string) {
	if !c.end(id, "closed") {
		return
	}

	c.logger.Info("Connection closed: %d - %s [session=%s]", code, reason, id)

	c.invoke(func() { c.observer.OnClosed(c, code, reason) })
	c.afterClose()
}

// handleFailure moves to Closed, reports the failure and evaluates the
// reconnect policy.
func (c *Client) handleFailure(id string, err error) {
	if !c.end(id, "failure") {
		return
	}

	err = rews.NewTransportError("session", err)
	c.logger.Error("Connection failure [session=%s]: %v", id, err)
	c.sendError(err)

	c.invoke(func() { c.observer.OnFailure(c, err) })
	c.afterClose()
}

// end detaches the session named by id. It reports false for stale sessions.
func (c *Client) end(id, event string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.currentLocked(id) {
		c.stale(id, event)

		return false
	}

	c.detachLocked()

	return true
}

func (c *Client) handleText(id, content string) {
	if !c.isCurrent(id) {
		c.stale(id, "text message")

		return
	}

	c.logger.Debug("Received message [type=text, size=%d]", len(content))
	c.sendMessage([]byte(content))
	c.invoke(func() { c.observer.OnTextMessage(c, content) })
}

func (c *Client) handleBinary(id string, data []byte) {
	if !c.isCurrent(id) {
		c.stale(id, "binary message")

		return
	}

	c.logger.Debug("Received message [type=binary, size=%d]", len(data))
	c.sendMessage(data)
	c.invoke(func() { c.observer.OnBinaryMessage(c, data) })
}

func (c *Client) isCurrent(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.currentLocked(id)
}
