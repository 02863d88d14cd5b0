package handshake

import (
	"crypto/subtle"
	"fmt"
	"net"
	"time"

	"gvtun/internal/crypto"
	"gvtun/internal/mem"
	"gvtun/internal/settings"
)

// Client drives the client-side state machine: AwaitBanner -> AwaitSKEY ->
// AwaitFLAGS -> Done|Fail.
func Client(conn net.Conn, hostID string, ak []byte, timeout time.Duration) (res Result, err error) {
	lr := newLineReader(conn)

	line, err := lr.readLine(timeout)
	if err != nil {
		return Result{}, err
	}
	if err := parseBanner(line); err != nil {
		return Result{}, err
	}

	csk, cpk, err := crypto.GenerateEphemeral()
	if err != nil {
		return Result{}, err
	}
	defer mem.Zero(csk[:])

	ts := encodeTimestamp(uint32(time.Now().Unix()))
	h1, err := crypto.KeyedHash(ak, ts, cpk[:])
	if err != nil {
		return Result{}, err
	}

	ckey := append(append(append([]byte{}, ts...), cpk[:]...), h1...)
	if err := writeLine(conn, timeout, buildCKEY(hostID, ckey)); err != nil {
		return Result{}, err
	}

	line, err = lr.readLine(timeout)
	if err != nil {
		return Result{}, err
	}
	if line == "ERR" {
		return Result{}, ErrPeerRejected
	}
	skey, err := parseSKEY(line)
	if err != nil {
		return Result{}, err
	}
	if len(skey) != crypto.KeySize*2 {
		return Result{}, fmt.Errorf("%w: skey wrong length", ErrProtocol)
	}
	spk, skeyMACClaimed := skey[:crypto.KeySize], skey[crypto.KeySize:]

	skeyMACExpected, err := crypto.KeyedHash(ak, spk, h1)
	if err != nil {
		return Result{}, err
	}
	if subtle.ConstantTimeCompare(skeyMACClaimed, skeyMACExpected) != 1 {
		return Result{}, ErrAuthFailed
	}

	cack, err := crypto.KeyedHash(ak, []byte("CACK"), skey)
	if err != nil {
		return Result{}, err
	}
	if err := writeLine(conn, timeout, buildCACK(cack)); err != nil {
		return Result{}, err
	}

	line, err = lr.readLine(timeout)
	if err != nil {
		return Result{}, err
	}
	if line == "ERR" {
		return Result{}, ErrPeerRejected
	}
	flagString, flhashClaimed, err := parseFLAGS(line)
	if err != nil {
		return Result{}, err
	}

	flhashExpected, err := crypto.KeyedHash(ak, []byte(flagString), cack)
	if err != nil {
		return Result{}, err
	}
	if subtle.ConstantTimeCompare(flhashClaimed, flhashExpected) != 1 {
		return Result{}, ErrAuthFailed
	}

	negotiated, err := settings.ParseFlags(flagString)
	if err != nil {
		return Result{}, fmt.Errorf("%w: server sent invalid flags: %v", ErrProtocol, err)
	}

	var spk32 [crypto.KeySize]byte
	copy(spk32[:], spk)
	z, err := crypto.SharedSecret(csk, spk32)
	if err != nil {
		return Result{}, err
	}
	defer mem.Zero(z)

	sk, err := crypto.KeyedHash(ak, z)
	if err != nil {
		return Result{}, err
	}

	return Result{Sk: sk, Flags: negotiated, HostID: hostID}, nil
}
