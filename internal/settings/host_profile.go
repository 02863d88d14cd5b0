package settings

import "time"

// HostProfile is the static, per-peer configuration a session supervisor
// loads before dialing or accepting: identity, shared secret, and the
// feature set it will offer during the handshake.
//
// Loading a HostProfile from disk is out of scope here; this type only
// defines the shape and the defaults applied when a field is left zero.
type HostProfile struct {
	Name string
	PSK  []byte

	Offer Flags

	ConnectTimeout    time.Duration
	HandshakeTimeout  time.Duration
	KeepAliveInterval time.Duration
	KeepAliveMaxFail  int
	StatInterval      time.Duration

	// Persist keeps a client supervisor retrying this host after a
	// non-fatal disconnect instead of exiting.
	Persist bool

	// LateConnect defers binding the datagram data socket to a peer until
	// the first packet arrives (NAT traversal). Local policy, never
	// negotiated; meaningful only with the datagram transport.
	LateConnect bool
}

// WithDefaults returns a copy of h with zero-valued tunables replaced by
// the package defaults.
func (h HostProfile) WithDefaults() HostProfile {
	if h.ConnectTimeout == 0 {
		h.ConnectTimeout = DefaultConnectTimeout
	}
	if h.HandshakeTimeout == 0 {
		h.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if h.KeepAliveInterval == 0 {
		h.KeepAliveInterval = DefaultKeepAliveInterval
	}
	if h.KeepAliveMaxFail == 0 {
		h.KeepAliveMaxFail = DefaultKeepAliveMaxFail
	}
	if h.StatInterval == 0 {
		h.StatInterval = DefaultStatInterval
	}
	return h
}
