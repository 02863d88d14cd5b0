// Package crypto provides the handshake's keyed-hash, Diffie-Hellman, and
// passphrase-KDF primitives, fixed per the protocol: Curve25519, Blake2b-256
// truncated, and scrypt-SHA256.
package crypto

import (
	"crypto/rand"
	"errors"
	"io"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/scrypt"
)

// KeySize is the width of every key, scalar, and hash output the handshake
// exchanges: 32 bytes throughout.
const KeySize = 32

// ErrLowOrderPoint is returned when a Diffie-Hellman exchange yields the
// all-zero shared secret, the signature of a low-order or otherwise
// degenerate peer public key.
var ErrLowOrderPoint = errors.New("crypto: diffie-hellman produced a zero shared secret")

// authSalt is the fixed, public salt the protocol mandates for deriving Ak
// from a passphrase: 32 bytes of the constant 0xD1.
var authSalt = func() [KeySize]byte {
	var s [KeySize]byte
	for i := range s {
		s[i] = 0xD1
	}
	return s
}()

// scrypt "interactive" parameters, per the protocol's fixed opslimit/memlimit.
const (
	scryptN = 1 << 14
	scryptR = 8
	scryptP = 1
)

// DeriveAk derives the authentication key from a passphrase under the
// protocol's fixed salt and scrypt parameters.
func DeriveAk(passphrase []byte) ([]byte, error) {
	return scrypt.Key(passphrase, authSalt[:], scryptN, scryptR, scryptP, KeySize)
}

// GenerateEphemeral produces a fresh Curve25519 scalar/point pair.
func GenerateEphemeral() (scalar, public [KeySize]byte, err error) {
	if _, err = io.ReadFull(rand.Reader, scalar[:]); err != nil {
		return [KeySize]byte{}, [KeySize]byte{}, err
	}
	pub, err := curve25519.X25519(scalar[:], curve25519.Basepoint)
	if err != nil {
		return [KeySize]byte{}, [KeySize]byte{}, err
	}
	copy(public[:], pub)
	return scalar, public, nil
}

// SharedSecret runs the DH step z = DH(scalar, peerPublic), rejecting the
// all-zero result that signals a low-order peer point.
func SharedSecret(scalar, peerPublic [KeySize]byte) ([]byte, error) {
	z, err := curve25519.X25519(scalar[:], peerPublic[:])
	if err != nil {
		return nil, err
	}
	if isZero(z) {
		return nil, ErrLowOrderPoint
	}
	return z, nil
}

func isZero(b []byte) bool {
	var v byte
	for _, c := range b {
		v |= c
	}
	return v == 0
}

// KeyedHash computes H_k(data...) = Blake2b-256 keyed under k, concatenating
// every data argument before hashing.
func KeyedHash(k []byte, data ...[]byte) ([]byte, error) {
	h, err := blake2b.New256(k)
	if err != nil {
		return nil, err
	}
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil), nil
}

// UnkeyedHash computes H(data...), the unkeyed Blake2b-256 used to derive
// the AEAD subkey from Sk.
func UnkeyedHash(data ...[]byte) []byte {
	h, _ := blake2b.New256(nil)
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}
