package protocol

import "errors"

var (
	ErrDecode      = errors.New("protocol: decode failed")
	// ErrUnknownKind marks a kind with no payload shape. It never wraps
	// ErrDecode.
	ErrUnknownKind = errors.New("protocol: unknown message kind")
	ErrNilMessage  = errors.New("protocol: nil message")
)
