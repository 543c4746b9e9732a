package model

import "errors"

var (
	// ErrMalformedMessage is returned when a wire payload cannot be decoded.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrColorFormat is returned when a color is not a "#RRGGBB" string.
	ErrColorFormat = errors.New("bad color format")

	// ErrProtocolViolation is returned when a client sends a server-only message
	// or commits a stroke that is too short.
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrChannelFailure is returned when the hub queue or a client's outbound
	// channel can no longer be used.
	ErrChannelFailure = errors.New("channel failure")

	// ErrConnectionLost is returned when a session's transport goes away.
	ErrConnectionLost = errors.New("connection lost")
)
