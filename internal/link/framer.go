package link

import "gvtun/internal/framing"

// Framer is the uniform read/write surface the engine drives, satisfied by
// a thin wrapper around either framing.StreamCodec or framing.DatagramCodec.
type Framer interface {
	ReadFrame(buf []byte) (framing.Header, []byte, error)
	WriteFrame(payload []byte, flag framing.ControlFlag) error
}

// streamFramer adapts *framing.StreamCodec to Framer (its WriteFrame
// already returns a single error).
type streamFramer struct{ *framing.StreamCodec }

func (s streamFramer) WriteFrame(payload []byte, flag framing.ControlFlag) error {
	return s.StreamCodec.WriteFrame(payload, flag)
}

// NewStreamFramer wraps a stream codec as a Framer.
func NewStreamFramer(c *framing.StreamCodec) Framer { return streamFramer{c} }

// datagramFramer adapts *framing.DatagramCodec to Framer, discarding the
// byte count its WriteFrame reports.
type datagramFramer struct{ *framing.DatagramCodec }

func (d datagramFramer) WriteFrame(payload []byte, flag framing.ControlFlag) error {
	_, err := d.DatagramCodec.WriteFrame(payload, flag)
	return err
}

// NewDatagramFramer wraps a datagram codec as a Framer.
func NewDatagramFramer(c *framing.DatagramCodec) Framer { return datagramFramer{c} }
