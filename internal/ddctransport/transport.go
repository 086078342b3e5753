// Package ddctransport opens /dev/i2c-N, sets the DDC/CI slave address
// (0x37) and performs raw write/read against the kernel character device.
// It hides kernel-specific error translation from every layer above it,
// the same separation of concerns serial_port.go draws for the TNC's
// serial port: one small file, one open/write/read/close vocabulary, no
// protocol knowledge.
package ddctransport

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/kgreenek/ddcutil-go/internal/ddcerr"
)

// SlaveAddr is the fixed I²C slave address of the DDC/CI command
// interface (spec.md §1).
const SlaveAddr = 0x37

// I2C is one open /dev/i2c-N handle, owned by exactly one caller at a
// time (spec.md §5 "Shared-resource policy").
type I2C struct {
	fd          int
	forceSlave  bool
	readTimeout time.Duration
}

// Options configures Open. ForceSlave requests the kernel's "force"
// slave-address ioctl as a fallback when the plain ioctl reports the bus
// busy (spec.md §4.2). ReadTimeout, when non-zero, bounds transport.Read
// and is promoted to a BusError on expiry (spec.md §5).
type Options struct {
	ForceSlave  bool
	ReadTimeout time.Duration
}

// Open opens the given /dev/i2c-N device and addresses the monitor's DDC/CI
// slave address.
func Open(devicePath string, opts Options) (*I2C, error) {
	fd, err := unix.Open(devicePath, unix.O_RDWR, 0)
	if err != nil {
		return nil, ddcerr.Busf(err)
	}

	if ioctlErr := unix.IoctlSetInt(fd, unix.I2C_SLAVE, SlaveAddr); ioctlErr != nil {
		if !opts.ForceSlave {
			_ = unix.Close(fd)
			return nil, ddcerr.Busf(ioctlErr)
		}
		if forceErr := unix.IoctlSetInt(fd, unix.I2C_SLAVE_FORCE, SlaveAddr); forceErr != nil {
			_ = unix.Close(fd)
			return nil, ddcerr.Busf(forceErr)
		}
	}

	return &I2C{fd: fd, forceSlave: opts.ForceSlave, readTimeout: opts.ReadTimeout}, nil
}

// Write sends data to the monitor. A short write is reported as a
// BusError rather than silently truncated (spec.md §4.2/§4.4: write_only
// is Ok only "if the write returned the full byte count").
func (t *I2C) Write(data []byte) error {
	n, err := unix.Write(t.fd, data)
	if err != nil {
		return ddcerr.Busf(err)
	}
	if n != len(data) {
		return ddcerr.New(ddcerr.BusError)
	}
	return nil
}

// Read reads exactly length bytes from the monitor. Fewer bytes than
// requested is a ShortRead; a fully-zero buffer is not a transport error —
// the codec decides what an all-zero response means (spec.md §4.2).
func (t *I2C) Read(length int) ([]byte, error) {
	buf := make([]byte, length)

	if t.readTimeout > 0 {
		deadline := unix.NsecToTimeval(time.Now().Add(t.readTimeout).UnixNano())
		fdSet := &unix.FdSet{}
		fdSetBit(fdSet, t.fd)
		n, err := unix.Select(t.fd+1, fdSet, nil, nil, &deadline)
		if err != nil {
			return nil, ddcerr.Busf(err)
		}
		if n == 0 {
			return nil, ddcerr.BusTimeout()
		}
	}

	n, err := unix.Read(t.fd, buf)
	if err != nil {
		return nil, ddcerr.Busf(err)
	}
	if n == 0 {
		// A zero-byte read is not a transport error: spec.md §4.4 step 3
		// treats it as the engine-level signal for NullResponse, decided
		// by the caller rather than this layer.
		return buf[:0], nil
	}
	if n != length {
		return buf[:n], ddcerr.ShortReadf(n, length)
	}
	return buf, nil
}

// Close releases the underlying file descriptor. Safe to call on a nil
// receiver, matching serial_port_close's nil-handle guard.
func (t *I2C) Close() error {
	if t == nil {
		return nil
	}
	return unix.Close(t.fd)
}

func fdSetBit(set *unix.FdSet, fd int) {
	set.Bits[fd/64] |= 1 << (uint(fd) % 64)
}
