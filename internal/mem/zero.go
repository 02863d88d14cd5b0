// Package mem provides best-effort hygiene helpers for key material that
// must not linger in memory after use.
package mem

import "runtime"

// Zero overwrites b with zeros and pins it live until the write completes,
// preventing the compiler from eliminating the zeroing as a dead store.
//
// Go's GC may already have copied b elsewhere before this runs; this is
// best-effort defense, not a guarantee.
func Zero(b []byte) {
	if len(b) == 0 {
		return
	}
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}

// ZeroAll zeroes every slice in bs, in order.
func ZeroAll(bs ...[]byte) {
	for _, b := range bs {
		Zero(b)
	}
}
