//go:build linux

package tundevice

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	tunPath   = "/dev/net/tun"
	tunSetIff = 0x400454ca
	iffTun    = 0x0001
	iffNoPI   = 0x1000
)

// Device is an opened TUN file, read/write of raw IP packets.
type Device struct {
	file *os.File
	name string
}

// Open creates (if needed) and opens a point-to-point TUN interface named
// name, in no-packet-information mode.
func Open(name string) (*Device, error) {
	f, err := os.OpenFile(tunPath, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("tundevice: open %s: %w", tunPath, err)
	}

	var req ifReq
	copy(req.Name[:], name)
	req.Flags = iffTun | iffNoPI

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), uintptr(tunSetIff), uintptr(unsafe.Pointer(&req))); errno != 0 {
		_ = f.Close()
		return nil, fmt.Errorf("tundevice: TUNSETIFF %s: %w", name, errno)
	}

	return &Device{file: f, name: name}, nil
}

func (d *Device) Read(p []byte) (int, error)  { return d.file.Read(p) }
func (d *Device) Write(p []byte) (int, error) { return d.file.Write(p) }
func (d *Device) Close() error                { return d.file.Close() }
func (d *Device) Name() string                { return d.name }
