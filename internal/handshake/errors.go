package handshake

import "errors"

var (
	// ErrProtocol marks a malformed handshake line: bad hex, wrong field
	// count, missing keyword.
	ErrProtocol = errors.New("handshake: malformed message")

	// ErrAuthFailed marks a MAC mismatch or a zero DH result. No detail is
	// returned to the peer beyond the literal ERR line, to avoid an oracle.
	ErrAuthFailed = errors.New("handshake: authentication failed")

	// ErrTimeout marks a receive that exceeded the configured timeout.
	ErrTimeout = errors.New("handshake: timed out waiting for peer")

	// ErrLockContention marks a successful authentication that could not
	// commit because another session already holds the host's lock.
	ErrLockContention = errors.New("handshake: host is already connected")

	// ErrPeerRejected marks the literal "ERR\n" line received from a peer.
	ErrPeerRejected = errors.New("handshake: peer rejected the session")
)
