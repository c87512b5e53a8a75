package websocket

import (
	"fmt"

	json "github.com/bytedance/sonic"
)

// SendJSON encodes v and sends it as a text message.
func (c *Client) SendJSON(v any) error {
	data, err := json.MarshalString(v)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON message: %w", err)
	}

	return c.SendText(data)
}

// DecodeJSON decodes a text message into v.
func DecodeJSON(content string, v any) error {
	if err := json.UnmarshalString(content, v); err != nil {
		return fmt.Errorf("failed to unmarshal JSON message: %w", err)
	}

	return nil
}
