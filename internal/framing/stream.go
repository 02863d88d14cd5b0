package framing

import (
	"encoding/binary"
	"fmt"
	"io"

	"gvtun/internal/settings"
)

// StreamCodec frames a connected byte stream (the TCP transport): a 2-byte
// big-endian header followed by exactly Length bytes of payload.
type StreamCodec struct {
	rw     io.ReadWriter
	header [2]byte
	drain  []byte
}

// NewStreamCodec wraps rw with the stream framing codec.
func NewStreamCodec(rw io.ReadWriter) *StreamCodec {
	return &StreamCodec{
		rw:    rw,
		drain: make([]byte, settings.MaxFrame),
	}
}

// WriteFrame prepends the 2-byte header and writes exactly 2+len(payload)
// bytes.
func (c *StreamCodec) WriteFrame(payload []byte, flag ControlFlag) error {
	binary.BigEndian.PutUint16(c.header[:], Encode(uint16(len(payload)), flag))
	if _, err := c.rw.Write(c.header[:]); err != nil {
		return fmt.Errorf("framing: write header: %w", err)
	}
	if len(payload) == 0 {
		return nil
	}
	if _, err := c.rw.Write(payload); err != nil {
		return fmt.Errorf("framing: write payload: %w", err)
	}
	return nil
}

// ReadFrame reads one header. If it carries a control flag, it returns
// immediately with Length 0. If the declared length exceeds
// MaxFrame+MaxOverhead, it drains that many bytes in MaxFrame-sized chunks
// and returns ErrOversizeFrame instead of disconnecting. Otherwise it reads
// exactly Length bytes into buf and returns the payload slice.
func (c *StreamCodec) ReadFrame(buf []byte) (Header, []byte, error) {
	if _, err := io.ReadFull(c.rw, c.header[:]); err != nil {
		if err == io.EOF {
			// A close at a frame boundary is an abrupt peer close, not a
			// truncated frame; let the caller see the bare EOF.
			return Header{}, nil, io.EOF
		}
		return Header{}, nil, shortReadErr(err)
	}
	hdr := Decode(binary.BigEndian.Uint16(c.header[:]))

	if hdr.Flag != FlagNone {
		return Header{Flag: hdr.Flag}, nil, nil
	}

	if int(hdr.Length) > settings.MaxFrame+settings.MaxOverhead {
		if err := c.drainFrame(int(hdr.Length)); err != nil {
			return Header{}, nil, err
		}
		return Header{Flag: FlagBadFrame}, nil, ErrOversizeFrame
	}

	if int(hdr.Length) > len(buf) {
		return Header{}, nil, io.ErrShortBuffer
	}

	if _, err := io.ReadFull(c.rw, buf[:hdr.Length]); err != nil {
		return Header{}, nil, shortReadErr(err)
	}
	return hdr, buf[:hdr.Length], nil
}

func (c *StreamCodec) drainFrame(remaining int) error {
	for remaining > 0 {
		n := remaining
		if n > len(c.drain) {
			n = len(c.drain)
		}
		if _, err := io.ReadFull(c.rw, c.drain[:n]); err != nil {
			return shortReadErr(err)
		}
		remaining -= n
	}
	return nil
}

// Close closes the underlying stream when it is closable.
func (c *StreamCodec) Close() error {
	if closer, ok := c.rw.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// shortReadErr maps a closed-mid-read to the protocol-error convention
// decided for this implementation: a short read is always a failure, never
// a silently truncated frame.
func shortReadErr(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return fmt.Errorf("%w: %v", ErrShortRead, err)
	}
	return err
}
