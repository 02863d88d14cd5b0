// Command gvtun runs one end of a point-to-point virtual tunnel, either as
// a server (accepting connections) or a client (connecting to one).
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"gvtun/internal/handshake"
	"gvtun/internal/link"
	"gvtun/internal/logging"
	"gvtun/internal/session"
	"gvtun/internal/settings"
	"gvtun/internal/tundevice"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("gvtun", flag.ContinueOnError)

	mode := fs.String("mode", "client", "server, inetd, or client")
	hostID := fs.String("host", "", "host identifier (shared with the peer's config)")
	remoteAddr := fs.String("remote", "", "client mode: address to dial (host:port)")
	bindPort := fs.Int("port", 5000, "server mode: port to listen on")
	tunName := fs.String("tun", "gvtun0", "local TUN interface name")
	transport := fs.String("transport", "tcp", "data channel transport: tcp or udp")
	nat := fs.Bool("nat", false, "udp transport: defer binding the data socket until the peer's first packet")
	persist := fs.Bool("persist", false, "client mode: reconnect after a non-fatal disconnect")
	connectTimeout := fs.Duration("connect-timeout", settings.DefaultConnectTimeout, "client dial timeout")
	statsPath := fs.String("stats", "", "append per-session traffic counters to this file")
	pidPath := fs.String("pidfile", "", "write the supervisor's PID to this file")
	quiet := fs.Bool("quiet", false, "suppress session-boundary logging")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *hostID == "" {
		fmt.Fprintln(os.Stderr, "gvtun: -host is required")
		return 1
	}

	psk, err := readPassphrase()
	if err != nil {
		fmt.Fprintf(os.Stderr, "gvtun: %v\n", err)
		return 1
	}

	var logger logging.Logger = logging.NewStdLogger("gvtun")
	if *quiet {
		logger = logging.Discard{}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	wireTransport := settings.TransportStream
	switch *transport {
	case "tcp":
	case "udp":
		wireTransport = settings.TransportDatagram
	default:
		fmt.Fprintf(os.Stderr, "gvtun: unknown transport %q\n", *transport)
		return 1
	}

	host := settings.HostProfile{
		Name:           *hostID,
		PSK:            psk,
		Persist:        *persist,
		LateConnect:    *nat,
		ConnectTimeout: *connectTimeout,
		Offer: settings.Flags{
			Transport:         wireTransport,
			Interface:         settings.InterfacePointToPoint,
			EncryptionEnabled: true,
			CipherID:          1,
			KeepAlive:         true,
		},
	}.WithDefaults()

	if *pidPath != "" {
		if err := writePIDFile(*pidPath); err != nil {
			fmt.Fprintf(os.Stderr, "gvtun: %v\n", err)
			return 2
		}
		defer os.Remove(*pidPath)
	}

	dev, err := tundevice.Open(*tunName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gvtun: %v\n", err)
		return 2
	}
	defer dev.Close()

	switch *mode {
	case "client":
		return runClient(ctx, host, *remoteAddr, dev, *statsPath, logger)
	case "server", "inetd":
		return runServer(ctx, host, *bindPort, dev, *statsPath, logger)
	default:
		fmt.Fprintf(os.Stderr, "gvtun: unknown mode %q\n", *mode)
		return 1
	}
}

func writePIDFile(path string) error {
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644)
}

func runClient(ctx context.Context, host settings.HostProfile, remoteAddr string, dev link.Local, statsPath string, logger logging.Logger) int {
	if remoteAddr == "" {
		fmt.Fprintln(os.Stderr, "gvtun: -remote is required in client mode")
		return 1
	}

	sup := &session.ClientSupervisor{
		Host: host,
		Dial: func(ctx context.Context) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "tcp", remoteAddr)
		},
		Local:     dev,
		Logger:    logger,
		StatsPath: statsPath,
	}

	if err := sup.Run(ctx); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "gvtun: %v\n", err)
		return 2
	}
	return 0
}

func runServer(ctx context.Context, host settings.HostProfile, port int, dev link.Local, statsPath string, logger logging.Logger) int {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		fmt.Fprintf(os.Stderr, "gvtun: %v\n", err)
		return 2
	}

	sup := &session.ServerSupervisor{
		Listener: ln,
		Host:     host,
		Lock:     handshake.NewInProcessLock(),
		Logger:   logger,
		NewLocal: func(hostID string) (link.Local, error) {
			return dev, nil
		},
		StatsPath: statsPath,
	}

	if err := sup.Serve(ctx); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "gvtun: %v\n", err)
		return 2
	}
	return 0
}

// readPassphrase reads the host PSK from the GVTUN_PSK environment
// variable. Config-file parsing is an external collaborator, out of scope
// for the core.
func readPassphrase() ([]byte, error) {
	v := os.Getenv("GVTUN_PSK")
	if v == "" {
		return nil, fmt.Errorf("GVTUN_PSK must be set")
	}
	return []byte(v), nil
}
