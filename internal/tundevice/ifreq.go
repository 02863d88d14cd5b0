// Package tundevice opens the local virtual network interface the link
// engine reads/writes plaintext frames to. Only a minimal Linux TUN opener
// is in scope; device allocation for pty/pipe/ethernet-bridge interfaces
// and any non-Linux platform are external collaborators.
package tundevice

// ifReq mirrors struct ifreq's name+flags prefix, the only fields
// TUNSETIFF needs.
type ifReq struct {
	Name  [16]byte
	Flags uint16
	_     [22]byte // pad to sizeof(struct ifreq)
}
