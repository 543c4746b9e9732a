// Package protocol encodes and decodes the JSON messages exchanged with
// drawing clients. Every message is an object tagged by its "t" field.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/shared-sketch/backend/internal/model"
)

// Tag is the message discriminator carried in the "t" field.
type Tag string

const (
	// Client -> Server
	TagMoveTo Tag = "moveTo"
	TagLineTo Tag = "lineTo"
	TagStroke Tag = "stroke"

	// Both directions
	TagClear Tag = "clear"

	// Server -> Client only
	TagLine Tag = "line"
)

// ClientMessage is a decoded client message. X, Y and Color are only set for
// moveTo and lineTo.
type ClientMessage struct {
	T     Tag     `json:"t"`
	X     float32 `json:"x"`
	Y     float32 `json:"y"`
	Color string  `json:"color"`
}

// Decode parses one client message. Keys are matched exactly, so {"T":"clear"}
// has no tag. Unknown tags and moveTo/lineTo messages missing a coordinate or
// color fail with model.ErrMalformedMessage. A "line" message decodes
// successfully; rejecting it is up to the caller.
func Decode(data []byte) (ClientMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return ClientMessage{}, fmt.Errorf("%w: %v", model.ErrMalformedMessage, err)
	}

	var msg ClientMessage
	if _, err := field(fields, "t", &msg.T); err != nil {
		return ClientMessage{}, err
	}

	switch msg.T {
	case TagClear, TagStroke, TagLine:
	case TagMoveTo, TagLineTo:
		hasX, err := field(fields, "x", &msg.X)
		if err != nil {
			return ClientMessage{}, err
		}
		hasY, err := field(fields, "y", &msg.Y)
		if err != nil {
			return ClientMessage{}, err
		}
		hasColor, err := field(fields, "color", &msg.Color)
		if err != nil {
			return ClientMessage{}, err
		}
		if !hasX || !hasY || !hasColor {
			return ClientMessage{}, fmt.Errorf("%w: %s requires x, y and color", model.ErrMalformedMessage, msg.T)
		}
	case "":
		return ClientMessage{}, fmt.Errorf("%w: missing tag", model.ErrMalformedMessage)
	default:
		return ClientMessage{}, fmt.Errorf("%w: unknown tag %q", model.ErrMalformedMessage, msg.T)
	}

	return msg, nil
}

// field decodes fields[key] into dst. A missing or null key reports false.
func field(fields map[string]json.RawMessage, key string, dst any) (bool, error) {
	raw, ok := fields[key]
	if !ok || string(raw) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("%w: field %q: %v", model.ErrMalformedMessage, key, err)
	}
	return true, nil
}

// Vertex is one point of a line message, encoded as an [x, y, "#rrggbb"] tuple.
type Vertex struct {
	X     float32
	Y     float32
	Color string
}

// MarshalJSON implements custom JSON marshaling for Vertex.
func (v Vertex) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{v.X, v.Y, v.Color})
}

// UnmarshalJSON implements custom JSON unmarshaling for Vertex.
func (v *Vertex) UnmarshalJSON(data []byte) error {
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	if len(arr) != 3 {
		return fmt.Errorf("invalid vertex: expected 3 elements, got %d", len(arr))
	}
	if err := json.Unmarshal(arr[0], &v.X); err != nil {
		return fmt.Errorf("invalid vertex x: %w", err)
	}
	if err := json.Unmarshal(arr[1], &v.Y); err != nil {
		return fmt.Errorf("invalid vertex y: %w", err)
	}
	if err := json.Unmarshal(arr[2], &v.Color); err != nil {
		return fmt.Errorf("invalid vertex color: %w", err)
	}
	return nil
}

// LineMessage announces a committed stroke.
type LineMessage struct {
	T    Tag      `json:"t"`
	Line []Vertex `json:"line"`
}

// ClearMessage announces that the canvas was cleared.
type ClearMessage struct {
	T Tag `json:"t"`
}

// Vertices converts a stroke to its wire representation.
func Vertices(s model.Stroke) []Vertex {
	line := make([]Vertex, len(s))
	for i, p := range s {
		line[i] = Vertex{X: p.X, Y: p.Y, Color: p.Color.String()}
	}
	return line
}

// EncodeLine encodes a committed stroke as a "line" message.
func EncodeLine(s model.Stroke) ([]byte, error) {
	return json.Marshal(LineMessage{T: TagLine, Line: Vertices(s)})
}

// EncodeClear encodes a "clear" message.
func EncodeClear() ([]byte, error) {
	return json.Marshal(ClearMessage{T: TagClear})
}
