// Package compress implements the transform stack's optional compression
// stage, the deflate family of the negotiated 'C<decimal>' flag.
package compress

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/flate"
)

// Transform compresses on egress and decompresses on ingress using
// klauspost/compress's flate implementation at a fixed level negotiated by
// the handshake.
type Transform struct {
	level int
}

// New builds a compression stage at the given deflate level (1-9).
func New(level int) *Transform {
	return &Transform{level: level}
}

func (t *Transform) Encode(dst, payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, t.level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(payload); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return append(dst[:0], buf.Bytes()...), nil
}

func (t *Transform) Decode(dst, payload []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(payload))
	defer r.Close()

	out := dst[:0]
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (t *Transform) EncodeAvailable() bool { return true }
func (t *Transform) DecodeAvailable() bool { return true }
func (t *Transform) Close() error          { return nil }
