package aead

import "errors"

var (
	// ErrReplayed is returned when an ingress nonce is not strictly greater
	// than the last accepted one.
	ErrReplayed = errors.New("aead: nonce is not strictly greater than the last accepted nonce")

	// ErrAuthFailed is returned when GCM tag verification fails.
	ErrAuthFailed = errors.New("aead: authentication failed")

	// ErrNonceExhausted is returned when the 96-bit egress nonce counter
	// would overflow.
	ErrNonceExhausted = errors.New("aead: nonce space exhausted")

	// ErrShortCiphertext is returned when an ingress record is too small to
	// contain a tag and trailing nonce.
	ErrShortCiphertext = errors.New("aead: ciphertext shorter than tag+nonce")

	// ErrUnexpectedNonceSize is returned if the underlying GCM
	// implementation doesn't agree with the protocol's fixed 96-bit nonce.
	ErrUnexpectedNonceSize = errors.New("aead: GCM nonce size does not match the protocol's 96-bit nonce")
)
