package websocket

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	json "github.com/bytedance/sonic"
	"github.com/fatih/color"
	"github.com/qntx/rews"
)

// PrintConnectMessage prints a connection banner for url.
func PrintConnectMessage(w io.Writer, url string) {
	cyanBold := color.New(color.FgHiCyan, color.Bold)
	_, _ = cyanBold.Fprintln(w, "╔═════════════════ WebSocket Open ═════════════════╗")

	green := color.New(color.FgGreen)
	_, _ = green.Fprint(w, "  🔗 Endpoint: ")
	_, _ = fmt.Fprintln(w, url)

	_, _ = cyanBold.Fprintln(w, "╚══════════════════════════════════════════════════╝")
}

// PrintTextMessage prints a text frame, indenting it when it holds JSON.
func PrintTextMessage(w io.Writer, content, label string) {
	_, _ = color.New(color.FgHiMagenta, color.Bold).Fprintf(w, "  📨 Text [%s]:", label)

	if pretty, ok := indentJSON(content); ok {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, "    "+pretty)

		return
	}

	_, _ = fmt.Fprintf(w, " %s\n", content)
}

// PrintBinaryMessage prints a binary frame as a hex dump.
func PrintBinaryMessage(w io.Writer, data []byte, label string) {
	_, _ = color.New(color.FgHiBlue, color.Bold).Fprintf(w, "  📦 Binary [%s] (%d bytes):\n", label, len(data))

	if len(data) == 0 {
		_, _ = fmt.Fprintln(w, "    <empty>")

		return
	}

	for _, line := range strings.Split(strings.TrimRight(hex.Dump(data), "\n"), "\n") {
		_, _ = fmt.Fprintf(w, "    %s\n", line)
	}
}

// PrintErrorMessage prints a failure.
func PrintErrorMessage(w io.Writer, err error) {
	_, _ = fmt.Fprint(w, color.RedString("  ⛔ Error: "))
	_, _ = fmt.Fprintln(w, err)
}

// PrintRetryMessage prints a scheduled reconnect attempt.
func PrintRetryMessage(w io.Writer, attempt uint, delay time.Duration) {
	yellow := color.New(color.FgHiYellow)
	_, _ = yellow.Fprintf(w, "  🔄 Reconnect attempt %d in %v\n", attempt, delay)
}

// PrintClosingMessage prints the start of a peer-initiated close.
func PrintClosingMessage(w io.Writer, code int, reason string) {
	_, _ = fmt.Fprint(w, color.YellowString("  ⏳ Closing: "))
	_, _ = fmt.Fprintf(w, "%d %s\n", code, reason)
}

// PrintCloseMessage prints a completed close.
func PrintCloseMessage(w io.Writer, code int, reason string) {
	cyanBold := color.New(color.FgHiCyan, color.Bold)
	_, _ = cyanBold.Fprintln(w, "╔════════════════ WebSocket Closed ════════════════╗")

	green := color.New(color.FgGreen)
	_, _ = green.Fprint(w, "  🔒 Code: ")
	_, _ = fmt.Fprintln(w, code)
	_, _ = green.Fprint(w, "  📝 Reason: ")

	if reason == "" {
		reason = "<empty>"
	}

	_, _ = fmt.Fprintln(w, reason)

	_, _ = cyanBold.Fprintln(w, "╚══════════════════════════════════════════════════╝")
}

// indentJSON reports whether content is JSON and returns it indented.
func indentJSON(content string) (string, bool) {
	if !json.Valid([]byte(content)) {
		return "", false
	}

	var v any
	if err := json.UnmarshalString(content, &v); err != nil {
		return "", false
	}

	out, err := json.ConfigStd.MarshalIndent(v, "    ", "  ")
	if err != nil {
		return "", false
	}

	return string(out), true
}

// --------------------------------------------------------------------------------
// Observer

// PrintObserver prints every event to Out with colorized formatting.
type PrintObserver struct {
	Out io.Writer
}

var (
	_ rews.Observer          = (*PrintObserver)(nil)
	_ rews.ReconnectObserver = (*PrintObserver)(nil)
)

func (p *PrintObserver) writer() io.Writer {
	if p.Out == nil {
		return color.Output
	}

	return p.Out
}

func (p *PrintObserver) OnOpen(c rews.Client) {
	url := ""
	if cl, ok := c.(*Client); ok {
		url = cl.config.URL
	}

	PrintConnectMessage(p.writer(), url)
}

func (p *PrintObserver) OnClosing(_ rews.Client, code int, reason string) {
	PrintClosingMessage(p.writer(), code, reason)
}

func (p *PrintObserver) OnClosed(_ rews.Client, code int, reason string) {
	PrintCloseMessage(p.writer(), code, reason)
}

func (p *PrintObserver) OnFailure(_ rews.Client, err error) {
	PrintErrorMessage(p.writer(), err)
}

func (p *PrintObserver) OnTextMessage(_ rews.Client, content string) {
	PrintTextMessage(p.writer(), content, "received")
}

func (p *PrintObserver) OnBinaryMessage(_ rews.Client, data []byte) {
	PrintBinaryMessage(p.writer(), data, "received")
}

func (p *PrintObserver) OnReconnecting(_ rews.Client, attempt uint, delay time.Duration) {
	PrintRetryMessage(p.writer(), attempt, delay)
}
