// Package shaper implements the transform stack's optional egress-side
// traffic shaper, rate-limiting to the negotiated 'S<decimal>' kbit/s.
package shaper

import (
	"time"

	"golang.org/x/time/rate"

	"gvtun/internal/settings"
)

// Transform rate-limits egress bytes to a kbit/s ceiling negotiated during
// the handshake. It never shapes ingress: the protocol's S-clause
// advertises the sender's own inbound shaping preference to the peer, so
// only the peer's egress path applies it.
type Transform struct {
	limiter *rate.Limiter
	wake    func()
}

// New builds a shaper stage limiting egress to kbps kilobits per second.
// kbps == 0 disables shaping (the stage becomes a no-op passthrough).
func New(kbps uint32) *Transform {
	if kbps == 0 {
		return &Transform{}
	}
	bytesPerSec := float64(kbps) * 1000 / 8
	burst := int(bytesPerSec)
	if burst < settings.MaxFrame {
		burst = settings.MaxFrame
	}
	return &Transform{limiter: rate.NewLimiter(rate.Limit(bytesPerSec), burst)}
}

// SetWake installs the callback invoked after the shaper had to stall a
// frame, letting the link engine push a wake byte so the peer sees traffic
// before its keep-alive accounting gives up.
func (t *Transform) SetWake(fn func()) { t.wake = fn }

func (t *Transform) Encode(dst, payload []byte) ([]byte, error) {
	if t.limiter != nil {
		r := t.limiter.ReserveN(time.Now(), len(payload))
		if !r.OK() {
			return nil, ErrFrameTooLarge
		}
		if d := r.Delay(); d > 0 {
			time.Sleep(d)
			if t.wake != nil {
				t.wake()
			}
		}
	}
	return append(dst[:0], payload...), nil
}

func (t *Transform) Decode(dst, payload []byte) ([]byte, error) {
	return append(dst[:0], payload...), nil
}

func (t *Transform) EncodeAvailable() bool { return t.limiter != nil }
func (t *Transform) DecodeAvailable() bool { return false }
func (t *Transform) Close() error          { return nil }
