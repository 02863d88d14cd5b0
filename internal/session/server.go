package session

import (
	"context"
	"net"

	"gvtun/internal/crypto"
	"gvtun/internal/handshake"
	"gvtun/internal/link"
	"gvtun/internal/logging"
	"gvtun/internal/mem"
	"gvtun/internal/settings"
	"gvtun/internal/telemetry"
)

// ServerSupervisor accepts connections on a listener and dispatches each to
// its own handshake + engine run. The host's PSK and offered flags are the
// same for every accepted connection; the lock denies a second concurrent
// session for the same host id.
type ServerSupervisor struct {
	Listener net.Listener
	Host     settings.HostProfile
	Lock     handshake.HostLock
	Logger   logging.Logger

	// NewLocal opens the local device side for a newly authenticated
	// session (e.g. the shared TUN device, or a new pty/pipe per session).
	NewLocal func(hostID string) (link.Local, error)

	StatsPath string
}

// Serve accepts connections until ctx is cancelled or the listener fails.
func (s *ServerSupervisor) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.Listener.Close()
	}()

	host := s.Host.WithDefaults()

	for {
		conn, err := s.Listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		go s.handleConn(ctx, conn, host)
	}
}

func (s *ServerSupervisor) handleConn(ctx context.Context, conn net.Conn, host settings.HostProfile) {
	defer conn.Close()

	ak, err := crypto.DeriveAk(host.PSK)
	if err != nil {
		s.logf("session: derive Ak failed: %v", err)
		return
	}
	defer mem.Zero(ak)

	res, err := handshake.Server(conn, ak, host.Offer, s.Lock, host.HandshakeTimeout)
	if err != nil {
		s.logf("session: handshake denied: %v", err)
		return
	}
	defer res.Release()

	local, err := s.NewLocal(res.HostID)
	if err != nil {
		s.logf("session: open local device failed: %v", err)
		return
	}

	stack, shaperStage, err := buildStack(res.Flags, res.Sk)
	if err != nil {
		s.logf("session: build transform stack failed: %v", err)
		return
	}
	defer stack.Close()

	remote, err := newRemoteFramer(conn, res.Flags, host.LateConnect, host.HandshakeTimeout)
	if err != nil {
		s.logf("session: set up data channel failed: %v", err)
		return
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
		Local:             local,
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

	s.logf("session: %s opened", res.HostID)
	code := engine.Run(ctx)
	s.logf("session: %s closed (code=%d)", res.HostID, code)
}

func (s *ServerSupervisor) logf(format string, v ...any) {
	if s.Logger != nil {
		s.Logger.Printf(format, v...)
	}
}
