// Package aead implements the session transform's authenticated-encryption
// stage: AES-256-GCM keyed from the handshake's session key, with the
// protocol's fixed nonce construction and strict-monotone replay check.
package aead

import (
	"crypto/aes"
	"crypto/cipher"

	"gvtun/internal/crypto"
	"gvtun/internal/mem"
)

// TagSize is the GCM authentication tag width: 128 bits.
const TagSize = 16

// Transform is the AEAD stage of the transform stack. It satisfies the
// stack's five-method Stage contract (Encode, Decode, EncodeAvailable,
// DecodeAvailable, Close); Init constructs it.
type Transform struct {
	gcm    cipher.AEAD
	egress *EgressNonce
	replay *IngressReplayGuard
}

// Init derives k_aead = H(Sk) (unkeyed hash), zeroizes Sk, builds the GCM
// keyed state from k_aead, then zeroizes k_aead, and seeds a fresh egress
// nonce.
func Init(sk []byte) (*Transform, error) {
	kAEAD := crypto.UnkeyedHash(sk)
	mem.Zero(sk)
	defer mem.Zero(kAEAD)

	block, err := aes.NewCipher(kAEAD)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if gcm.NonceSize() != NonceSize {
		return nil, ErrUnexpectedNonceSize
	}

	nonce, err := NewEgressNonce()
	if err != nil {
		return nil, err
	}

	return &Transform{
		gcm:    gcm,
		egress: nonce,
		replay: &IngressReplayGuard{},
	}, nil
}

// Encode seals plaintext with empty AAD and appends the nonce after the
// ciphertext+tag, then advances the egress counter. Output length is
// len(plaintext) + TagSize + NonceSize.
func (t *Transform) Encode(dst, plaintext []byte) ([]byte, error) {
	nonce, err := t.egress.Next()
	if err != nil {
		return nil, err
	}
	sealed := t.gcm.Seal(dst[:0], nonce, plaintext, nil)
	return append(sealed, nonce...), nil
}

// Decode extracts the trailing nonce, rejects it if it is not strictly
// greater than the last accepted nonce, then verifies and opens the
// ciphertext. On success, the nonce becomes the new high-water mark.
func (t *Transform) Decode(dst, record []byte) ([]byte, error) {
	if len(record) < NonceSize+TagSize {
		return nil, ErrShortCiphertext
	}
	split := len(record) - NonceSize
	ciphertext, nonce := record[:split], record[split:]

	if err := t.replay.Check(nonce); err != nil {
		return nil, err
	}

	plaintext, err := t.gcm.Open(dst[:0], nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthFailed
	}

	t.replay.Accept(nonce)
	return plaintext, nil
}

// EncodeAvailable reports whether the egress side is installed and usable.
func (t *Transform) EncodeAvailable() bool { return t != nil && t.gcm != nil }

// DecodeAvailable reports whether the ingress side is installed and usable.
func (t *Transform) DecodeAvailable() bool { return t != nil && t.gcm != nil }

// Close releases the transform. The AEAD state carries no zeroizable
// secret beyond kAEAD, already scrubbed in Init.
func (t *Transform) Close() error { return nil }

// Overhead is the number of bytes Encode adds on top of the plaintext.
func (t *Transform) Overhead() int { return TagSize + NonceSize }
