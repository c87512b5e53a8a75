package websocket_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/qntx/rews/websocket"
	"github.com/stretchr/testify/assert"
)

func TestPrintTextMessage(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	websocket.PrintTextMessage(&buf, `{"type":"greeting","message":"hi"}`, "received")
	assert.Contains(t, buf.String(), "Text [received]")
	assert.Contains(t, buf.String(), `"message": "hi"`, "JSON payloads are indented")

	buf.Reset()
	websocket.PrintTextMessage(&buf, "plain text", "sent")
	assert.Contains(t, buf.String(), "plain text")
}

func TestPrintBinaryMessage(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	websocket.PrintBinaryMessage(&buf, []byte{0xde, 0xad, 0xbe, 0xef}, "received")
	assert.Contains(t, buf.String(), "(4 bytes)")
	assert.Contains(t, buf.String(), "de ad be ef")

	buf.Reset()
	websocket.PrintBinaryMessage(&buf, nil, "received")
	assert.Contains(t, buf.String(), "<empty>")
}

func TestPrintObserver(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	p := &websocket.PrintObserver{Out: &buf}

	p.OnOpen(nil)
	p.OnClosing(nil, 1001, "going away")
	p.OnClosed(nil, 1006, "")
	p.OnFailure(nil, errors.New("connection refused"))
	p.OnReconnecting(nil, 2, time.Second)

	out := buf.String()
	assert.Contains(t, out, "WebSocket Open")
	assert.Contains(t, out, "1001 going away")
	assert.Contains(t, out, "WebSocket Closed")
	assert.Contains(t, out, "<empty>")
	assert.Contains(t, out, "connection refused")
	assert.Contains(t, out, "Reconnect attempt 2 in 1s")
}
