package framing

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"syscall"

	"gvtun/internal/settings"
)

// PacketConn is the subset of net.PacketConn/net.UDPConn a DatagramCodec
// needs: unconnected reads that surface the sender, and a plain write once
// the peer is bound (eagerly, or by the late connect-by-address step).
type PacketConn interface {
	ReadFrom(p []byte) (n int, addr net.Addr, err error)
	Write(p []byte) (n int, err error)
}

// DatagramCodec frames the datagram (UDP) transport: one syscall per
// direction, with optional late-connect for NAT traversal.
type DatagramCodec struct {
	conn PacketConn

	lateConnect bool
	connected   bool
	connectFn   func(net.Addr) error
}

// NewDatagramCodec wraps conn. When lateConnect is true, the first egress
// is suppressed and the socket only binds to a peer once the first ingress
// packet reveals a sender address; connectFn performs that connect-by-
// address step.
func NewDatagramCodec(conn PacketConn, lateConnect bool, connectFn func(net.Addr) error) *DatagramCodec {
	return &DatagramCodec{
		conn:        conn,
		lateConnect: lateConnect,
		connectFn:   connectFn,
	}
}

// IsRemoteConnected reports whether the late-connect transition has
// happened yet.
func (c *DatagramCodec) IsRemoteConnected() bool {
	return !c.lateConnect || c.connected
}

// WriteFrame writes one datagram carrying the header plus payload. If
// late-connect is enabled and the peer is not yet known, the write is
// suppressed: there is nothing to send to until a peer is seen. ENOBUFS is
// treated as a silent drop; EAGAIN/EINTR are retried.
func (c *DatagramCodec) WriteFrame(payload []byte, flag ControlFlag) (int, error) {
	if c.lateConnect && !c.connected {
		return 0, nil
	}

	buf := make([]byte, 2+len(payload))
	binary.BigEndian.PutUint16(buf[:2], Encode(uint16(len(payload)), flag))
	copy(buf[2:], payload)

	for {
		n, err := c.conn.Write(buf)
		if err == nil {
			return n, nil
		}
		if errors.Is(err, syscall.ENOBUFS) {
			return 0, nil
		}
		if errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EINTR) {
			continue
		}
		return n, err
	}
}

// Close closes the underlying socket when it is closable.
func (c *DatagramCodec) Close() error {
	if closer, ok := c.conn.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// ReadFrame performs one scatter read of header+body. If the on-wire
// length doesn't match the bytes actually read, it returns the bad-frame
// marker rather than failing the session. When late-connect is enabled and
// the peer isn't bound yet, the first successful read triggers the
// connect-by-address transition.
func (c *DatagramCodec) ReadFrame(buf []byte) (Header, []byte, error) {
	packet := make([]byte, 2+settings.MaxFrame+settings.MaxOverhead)
	n, addr, err := c.conn.ReadFrom(packet)
	if err != nil {
		return Header{}, nil, err
	}
	if n < 2 {
		return Header{Flag: FlagBadFrame}, nil, nil
	}

	if c.lateConnect && !c.connected {
		if c.connectFn != nil {
			if err := c.connectFn(addr); err != nil {
				return Header{}, nil, err
			}
		}
		c.connected = true
	}

	hdr := Decode(binary.BigEndian.Uint16(packet[:2]))
	if hdr.Flag != FlagNone {
		return hdr, nil, nil
	}

	body := packet[2:n]
	if int(hdr.Length) != len(body) {
		return Header{Flag: FlagBadFrame}, nil, nil
	}
	if len(body) > len(buf) {
		return Header{}, nil, errors.New("framing: read buffer too small for datagram")
	}
	copy(buf, body)
	return hdr, buf[:len(body)], nil
}
