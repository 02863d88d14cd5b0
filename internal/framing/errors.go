package framing

import "errors"

var (
	// ErrOversizeFrame marks a frame whose declared length exceeded
	// MaxFrame+MaxOverhead; the engine logs it and continues, it never
	// tears down the session.
	ErrOversizeFrame = errors.New("framing: declared length exceeds max frame + overhead")

	// ErrShortRead is returned when a stream read ends before the declared
	// frame length is satisfied — treated as a protocol error, not a
	// partial frame.
	ErrShortRead = errors.New("framing: connection closed mid-frame")
)
