// Package settings holds the static, per-host configuration shape and the
// wire-level feature-flag grammar negotiated by the handshake.
package settings

import "time"

const (
	// MaxFrame is the largest plaintext payload a transform stack may carry
	// end to end.
	MaxFrame = 3840

	// MaxOverhead bounds what the transform stack may add on top of MaxFrame
	// before the result goes on the wire: AEAD nonce (12) + tag (16), plus
	// headroom for compression's worst-case expansion. MaxFrame+MaxOverhead
	// must fit strictly under the 12-bit length field's range (4095) with
	// room to spare, so an over-length declared header is still
	// representable and detectable rather than wrapping into the flag bits.
	MaxOverhead = 200

	// HeaderFlagShift is where the control-flag bits start in the 16-bit
	// frame header; the low bits are a length up to MaxFrame+MaxOverhead.
	HeaderFlagShift  = 12
	HeaderLengthMask = (1 << HeaderFlagShift) - 1

	// DefaultHandshakeTimeout bounds every individual handshake read.
	DefaultHandshakeTimeout = 10 * time.Second

	// DefaultConnectTimeout bounds the client's initial dial.
	DefaultConnectTimeout = 10 * time.Second

	// DefaultKeepAliveInterval and DefaultKeepAliveMaxFail are the link
	// engine's keep-alive defaults, used when a host profile leaves them zero.
	DefaultKeepAliveInterval = 30 * time.Second
	DefaultKeepAliveMaxFail  = 3

	// DefaultStatInterval is how often the link engine flushes counters to
	// the per-host stats file.
	DefaultStatInterval = 60 * time.Second

	// ReconnectBackoff is the client supervisor's sleep before retrying a
	// persistent host after a non-fatal disconnect.
	ReconnectBackoff = 5 * time.Second

	// MaxHandshakeLineLength bounds a single handshake text line; the wire
	// protocol caps lines at 512 bytes.
	MaxHandshakeLineLength = 512
)
