// Package telemetry tracks the four per-session byte counters and appends
// them to a per-host stats file on a fixed tick, adapting the atomic-
// counter pattern used for rate telemetry elsewhere in this stack.
package telemetry

import "sync/atomic"

// Counters holds the session's four monotonic 64-bit counters: plaintext
// bytes in/out, and on-wire bytes in/out (after framing/AEAD overhead).
type Counters struct {
	bytesIn      atomic.Uint64
	bytesOut     atomic.Uint64
	wireBytesIn  atomic.Uint64
	wireBytesOut atomic.Uint64
}

// AddBytesIn records len bytes delivered to the local device.
func (c *Counters) AddBytesIn(n int) {
	if n > 0 {
		c.bytesIn.Add(uint64(n))
	}
}

// AddBytesOut records len bytes read from the local device.
func (c *Counters) AddBytesOut(n int) {
	if n > 0 {
		c.bytesOut.Add(uint64(n))
	}
}

// AddWireBytesIn records len bytes read off the remote transport.
func (c *Counters) AddWireBytesIn(n int) {
	if n > 0 {
		c.wireBytesIn.Add(uint64(n))
	}
}

// AddWireBytesOut records len bytes written to the remote transport.
func (c *Counters) AddWireBytesOut(n int) {
	if n > 0 {
		c.wireBytesOut.Add(uint64(n))
	}
}

// Snapshot is a point-in-time read of all four counters.
type Snapshot struct {
	BytesIn      uint64
	BytesOut     uint64
	WireBytesIn  uint64
	WireBytesOut uint64
}

// Snapshot reads all four counters.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		BytesIn:      c.bytesIn.Load(),
		BytesOut:     c.bytesOut.Load(),
		WireBytesIn:  c.wireBytesIn.Load(),
		WireBytesOut: c.wireBytesOut.Load(),
	}
}

// Reset zeroes all four counters, the effect of the out-of-band stats
// reset signal modeled as an explicit call rather than an OS signal.
func (c *Counters) Reset() {
	c.bytesIn.Store(0)
	c.bytesOut.Store(0)
	c.wireBytesIn.Store(0)
	c.wireBytesOut.Store(0)
}
