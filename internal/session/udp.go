package session

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"gvtun/internal/framing"
	"gvtun/internal/link"
	"gvtun/internal/settings"
)

var errNoPeer = errors.New("session: datagram peer address not bound yet")

// udpChannel adapts an unconnected UDP socket to the datagram codec's
// PacketConn surface, carrying the default peer for plain writes. With
// late-connect the peer starts unset and is bound by the codec's first
// ingress instead.
type udpChannel struct {
	conn *net.UDPConn

	mu   sync.Mutex
	peer net.Addr
}

func (c *udpChannel) ReadFrom(p []byte) (int, net.Addr, error) { return c.conn.ReadFrom(p) }

func (c *udpChannel) Write(p []byte) (int, error) {
	c.mu.Lock()
	peer := c.peer
	c.mu.Unlock()
	if peer == nil {
		return 0, errNoPeer
	}
	return c.conn.WriteTo(p, peer)
}

func (c *udpChannel) Close() error { return c.conn.Close() }

func (c *udpChannel) setPeer(addr net.Addr) {
	c.mu.Lock()
	c.peer = addr
	c.mu.Unlock()
}

// NegotiateDatagram swaps the authenticated stream used for the handshake
// for a UDP data channel: each side binds an ephemeral UDP port on the
// address its end of the stream already uses, exchanges the 2-byte
// big-endian port number over the stream, and addresses the socket to
// (peer stream IP, received port). With lateConnect set (NAT traversal),
// the local side instead defers peer binding until the first packet
// arrives and reveals the sender.
func NegotiateDatagram(conn net.Conn, lateConnect bool, timeout time.Duration) (link.Framer, error) {
	local, ok := conn.LocalAddr().(*net.TCPAddr)
	if !ok {
		return nil, fmt.Errorf("session: datagram transport needs a TCP control channel, have %T", conn.LocalAddr())
	}
	remote, ok := conn.RemoteAddr().(*net.TCPAddr)
	if !ok {
		return nil, fmt.Errorf("session: datagram transport needs a TCP control channel, have %T", conn.RemoteAddr())
	}

	sock, err := net.ListenUDP("udp", &net.UDPAddr{IP: local.IP})
	if err != nil {
		return nil, fmt.Errorf("session: bind UDP data socket: %w", err)
	}

	port, err := exchangePorts(conn, uint16(sock.LocalAddr().(*net.UDPAddr).Port), timeout)
	if err != nil {
		_ = sock.Close()
		return nil, err
	}

	ch := &udpChannel{conn: sock}
	if !lateConnect {
		ch.setPeer(&net.UDPAddr{IP: remote.IP, Port: int(port)})
	}

	codec := framing.NewDatagramCodec(ch, lateConnect, func(addr net.Addr) error {
		ch.setPeer(addr)
		return nil
	})
	return link.NewDatagramFramer(codec), nil
}

// exchangePorts writes our UDP port and reads the peer's over the
// authenticated stream, both bounded by the handshake timeout.
func exchangePorts(conn net.Conn, ourPort uint16, timeout time.Duration) (uint16, error) {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], ourPort)

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return 0, err
	}
	defer conn.SetDeadline(time.Time{})

	if _, err := conn.Write(buf[:]); err != nil {
		return 0, fmt.Errorf("session: send UDP port: %w", err)
	}
	if _, err := io.ReadFull(conn, buf[:]); err != nil {
		return 0, fmt.Errorf("session: receive UDP port: %w", err)
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}

// newRemoteFramer wraps conn in the framer matching the negotiated
// transport, negotiating the UDP data channel first when datagram mode was
// agreed.
func newRemoteFramer(conn net.Conn, flags settings.Flags, lateConnect bool, timeout time.Duration) (link.Framer, error) {
	if flags.Transport == settings.TransportDatagram {
		return NegotiateDatagram(conn, lateConnect, timeout)
	}
	return NewStreamFramer(conn), nil
}
