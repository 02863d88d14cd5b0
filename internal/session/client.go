// Package session implements the supervisor that binds a socket, drives
// the handshake, installs the transform stack, and runs the link engine —
// for both the client (connect, optional persist/reconnect) and server
// (accept, per-connection dispatch) roles.
package session

import (
	"context"
	"net"
	"time"

	"gvtun/internal/aead"
	"gvtun/internal/crypto"
	"gvtun/internal/framing"
	"gvtun/internal/handshake"
	"gvtun/internal/link"
	"gvtun/internal/logging"
	"gvtun/internal/mem"
	"gvtun/internal/settings"
	"gvtun/internal/telemetry"
	"gvtun/internal/transform"
	"gvtun/internal/transform/compress"
	"gvtun/internal/transform/shaper"
)

// Dialer opens the stream connection to the remote host that carries the
// handshake. In datagram mode the UDP data channel is set up over that
// connection afterwards (see NegotiateDatagram), not by the Dialer.
type Dialer func(ctx context.Context) (net.Conn, error)

// ClientSupervisor runs a single client-side host: connect, handshake,
// install the stack, run the engine, and — if the host is flagged persist
// — reconnect after a non-fatal disconnect.
type ClientSupervisor struct {
	Host   settings.HostProfile
	Dial   Dialer
	Local  link.Local
	Logger logging.Logger

	StatsPath string
}

// Run drives the supervisor until ctx is cancelled. If Host.Persist is
// unset, it returns after the first non-persistent disconnect.
func (s *ClientSupervisor) Run(ctx context.Context) error {
	host := s.Host.WithDefaults()

	for {
		err := s.runOnce(ctx, host)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !host.Persist {
			return err
		}
		if s.Logger != nil {
			s.Logger.Printf("session: %s disconnected (%v), reconnecting in %s", host.Name, err, settings.ReconnectBackoff)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(settings.ReconnectBackoff):
		}
	}
}

func (s *ClientSupervisor) runOnce(ctx context.Context, host settings.HostProfile) error {
	dialCtx, cancel := context.WithTimeout(ctx, host.ConnectTimeout)
	conn, err := s.Dial(dialCtx)
	cancel()
	if err != nil {
		return err
	}
	defer conn.Close()

	ak, err := crypto.DeriveAk(host.PSK)
	if err != nil {
		return err
	}
	defer mem.Zero(ak)

	res, err := handshake.Client(conn, host.Name, ak, host.HandshakeTimeout)
	if err != nil {
		return err
	}

	stack, shaperStage, err := buildStack(res.Flags, res.Sk)
	if err != nil {
		return err
	}
	defer stack.Close()

	remote, err := newRemoteFramer(conn, res.Flags, host.LateConnect, host.HandshakeTimeout)
	if err != nil {
		return err
	}

	var sf *telemetry.StatsFile
	if s.StatsPath != "" {
		sf, err = telemetry.OpenStatsFile(s.StatsPath)
		if err == nil {
			defer sf.Close()
		}
	}

	counters := &telemetry.Counters{}
	engine := link.NewEngine(link.Config{
		Remote:            remote,
		Local:             s.Local,
		Stack:             stack,
		Stats:             counters,
		StatsFile:         sf,
		Logger:            s.Logger,
		KeepAliveInterval: host.KeepAliveInterval,
		KeepAliveMaxFail:  host.KeepAliveMaxFail,
		StatInterval:      host.StatInterval,
	})
	if shaperStage != nil {
		shaperStage.SetWake(engine.RequestWake)
	}

	code := engine.Run(ctx)
	if code == link.CodeError || code == link.CodeTimeout {
		return errEngine(code)
	}
	return nil
}

// buildStack installs compression, AEAD, and shaper per the negotiated
// flags, in that order (egress head to tail). The shaper stage is returned
// separately so the caller can bind its wake callback to the engine.
func buildStack(flags settings.Flags, sk []byte) (*transform.Stack, *shaper.Transform, error) {
	var stages []transform.Stage

	// Both compression token families negotiate onto the same flate stage
	// here; the level is what the peer agreed to.
	if flags.Compression != settings.CompressionNone {
		stages = append(stages, compress.New(flags.CompressionLevel))
	}

	if flags.EncryptionEnabled {
		aeadStage, err := aead.Init(sk)
		if err != nil {
			return nil, nil, err
		}
		stages = append(stages, aeadStage)
	} else {
		mem.Zero(sk)
	}

	var shaperStage *shaper.Transform
	if flags.ShapeKbps > 0 {
		shaperStage = shaper.New(flags.ShapeKbps)
		stages = append(stages, shaperStage)
	}

	return transform.NewStack(stages...), shaperStage, nil
}

func errEngine(code link.Code) error {
	switch code {
	case link.CodeTimeout:
		return errTimeout
	default:
		return errIOFailure
	}
}

var (
	errTimeout   = engineError("session: keep-alive timeout")
	errIOFailure = engineError("session: transport or transform error")
)

type engineError string

func (e engineError) Error() string { return string(e) }

// NewStreamFramer wraps a raw connection in the stream codec's framer, the
// data channel for the stream transport.
func NewStreamFramer(conn net.Conn) link.Framer {
	return link.NewStreamFramer(framing.NewStreamCodec(conn))
}
