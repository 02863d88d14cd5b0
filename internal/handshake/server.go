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

// HostLock is the single-connection exclusion the server commits after
// authentication succeeds but before sending FLAGS. Acquisition failure
// aborts the handshake with no FLAGS sent.
type HostLock interface {
	Acquire(hostID string) (release func(), err error)
}

// Result is a completed handshake's output: the session key and the
// feature set both sides agreed to run with.
type Result struct {
	Sk      []byte
	Flags   settings.Flags
	HostID  string
	Release func()
}

// Server drives the server-side state machine: AwaitCKEY -> AwaitCACK ->
// Done|Fail. Any parse or verification failure emits the literal "ERR\n"
// line and returns an error; no partial state or key material survives a
// failed handshake.
func Server(conn net.Conn, ak []byte, offer settings.Flags, lock HostLock, timeout time.Duration) (res Result, err error) {
	lr := newLineReader(conn)

	if err := writeLine(conn, timeout, banner()); err != nil {
		return Result{}, err
	}

	line, err := lr.readLine(timeout)
	if err != nil {
		return Result{}, err
	}
	hostID, ckey, err := parseCKEY(line)
	if err != nil {
		rejectAndClose(conn, timeout)
		return Result{}, err
	}
	if len(ckey) != 4+crypto.KeySize+crypto.KeySize {
		rejectAndClose(conn, timeout)
		return Result{}, fmt.Errorf("%w: ckey wrong length", ErrProtocol)
	}

	ts, cpk, h1Claimed := ckey[:4], ckey[4:4+crypto.KeySize], ckey[4+crypto.KeySize:]

	h1, err := crypto.KeyedHash(ak, ts, cpk)
	if err != nil {
		rejectAndClose(conn, timeout)
		return Result{}, err
	}
	if subtle.ConstantTimeCompare(h1, h1Claimed) != 1 {
		rejectAndClose(conn, timeout)
		return Result{}, ErrAuthFailed
	}

	ssk, spk, err := crypto.GenerateEphemeral()
	if err != nil {
		return Result{}, err
	}
	defer mem.Zero(ssk[:])

	skeyMAC, err := crypto.KeyedHash(ak, spk[:], h1)
	if err != nil {
		return Result{}, err
	}
	skey := append(append([]byte{}, spk[:]...), skeyMAC...)

	if err := writeLine(conn, timeout, buildSKEY(skey)); err != nil {
		return Result{}, err
	}

	line, err = lr.readLine(timeout)
	if err != nil {
		return Result{}, err
	}
	cack, err := parseCACK(line)
	if err != nil {
		rejectAndClose(conn, timeout)
		return Result{}, err
	}

	cackExpected, err := crypto.KeyedHash(ak, []byte("CACK"), skey)
	if err != nil {
		return Result{}, err
	}
	if subtle.ConstantTimeCompare(cack, cackExpected) != 1 {
		rejectAndClose(conn, timeout)
		return Result{}, ErrAuthFailed
	}

	var cpk32 [crypto.KeySize]byte
	copy(cpk32[:], cpk)
	z, err := crypto.SharedSecret(ssk, cpk32)
	if err != nil {
		rejectAndClose(conn, timeout)
		return Result{}, err
	}
	defer mem.Zero(z)

	release, err := lock.Acquire(hostID)
	if err != nil {
		// Authenticated, but another session holds this host: abort after
		// CACK verification with no FLAGS sent, per the lock-contention
		// error class.
		rejectAndClose(conn, timeout)
		return Result{}, fmt.Errorf("%w: %v", ErrLockContention, err)
	}

	flagString := offer.Render()
	flhash, err := crypto.KeyedHash(ak, []byte(flagString), cack)
	if err != nil {
		release()
		return Result{}, err
	}

	if err := writeLine(conn, timeout, buildFLAGS(flagString, flhash)); err != nil {
		release()
		return Result{}, err
	}

	sk, err := crypto.KeyedHash(ak, z)
	if err != nil {
		release()
		return Result{}, err
	}

	return Result{Sk: sk, Flags: offer, HostID: hostID, Release: release}, nil
}

func rejectAndClose(conn net.Conn, timeout time.Duration) {
	_ = writeLine(conn, timeout, "ERR")
	_ = conn.Close()
}
