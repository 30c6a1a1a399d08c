package ws

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

// Frame kinds
const (
	TypeReady    = "ready"
	TypeData     = "data"
	TypeExit     = "exit"
	TypeError    = "error"
	TypeMetadata = "metadata"
	TypeInput    = "input"
	TypeResize   = "resize"
	TypeClose    = "close"
)

// ErrMalformedFrame is returned for inbound messages that are not a JSON
// object with a string type.
var ErrMalformedFrame = errors.New("malformed frame")

// Frame is one message on a terminal connection
type Frame struct {
	Type     string         `json:"type"`
	Data     string         `json:"data,omitempty"`
	Cols     int            `json:"cols,omitempty"`
	Rows     int            `json:"rows,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ResizeFrame always carries both dimensions, including zero values
type ResizeFrame struct {
	Type string `json:"type"`
	Cols int    `json:"cols"`
	Rows int    `json:"rows"`
}

// Resize builds the control frame sent when a connection opens
func Resize(cols, rows int) ResizeFrame {
	return ResizeFrame{Type: TypeResize, Cols: cols, Rows: rows}
}

// Input builds a frame carrying keystrokes for the remote process
func Input(data string) Frame {
	return Frame{Type: TypeInput, Data: data}
}

// DecodeFrame parses an inbound message. Only the type must be a string;
// other fields of an unexpected JSON type are converted where possible and
// otherwise left empty.
func DecodeFrame(data []byte) (Frame, error) {
	var fields map[string]any
	if err := sonic.Unmarshal(data, &fields); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	kind, ok := fields["type"].(string)
	if !ok {
		return Frame{}, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	}

	f := Frame{
		Type: kind,
		Data: stringField(fields["data"]),
		Cols: intField(fields["cols"]),
		Rows: intField(fields["rows"]),
	}
	if meta, ok := fields["metadata"].(map[string]any); ok {
		f.Metadata = meta
	}
	return f, nil
}

func stringField(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		raw, err := sonic.MarshalString(v)
		if err != nil {
			return ""
		}
		return raw
	}
}

func intField(v any) int {
	switch v := v.(type) {
	case float64:
		return int(v)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// EncodeFrame serializes an outbound message verbatim
func EncodeFrame(v any) ([]byte, error) {
	if raw, ok := v.([]byte); ok {
		return raw, nil
	}
	return sonic.Marshal(v)
}

// Bytes decodes the base64 payload of a data frame. Payloads that are not
// valid base64 are returned as-is.
func (f Frame) Bytes() []byte {
	decoded, err := base64.StdEncoding.DecodeString(f.Data)
	if err != nil {
		return []byte(f.Data)
	}
	return decoded
}
