//go:build linux
// +build linux

package v4l2

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	bufTypeSDRCapture = 11

	capSDRCapture = 0x00100000
	capReadWrite  = 0x01000000
	capDeviceCaps = 0x80000000

	tunerADCIndex = 0
	tunerRFIndex  = 1
)

// struct v4l2_capability
type capability struct {
	Driver       [16]byte
	Card         [32]byte
	BusInfo      [32]byte
	Version      uint32
	Capabilities uint32
	DeviceCaps   uint32
	_            [3]uint32
}

func (c *capability) caps() uint32 {
	if c.Capabilities&capDeviceCaps != 0 {
		return c.DeviceCaps
	}
	return c.Capabilities
}

// struct v4l2_sdr_format, packed
type sdrFormat struct {
	PixelFormat uint32
	BufferSize  uint32
	_           [24]byte
}

// struct v4l2_format. The kernel union contains pointers, so it is pointer
// aligned; the zero length uintptr array reproduces that padding.
type format struct {
	Type uint32
	Fmt  struct {
		_   [0]uintptr
		SDR sdrFormat
		_   [200 - unsafe.Sizeof(sdrFormat{})]byte
	}
}

// struct v4l2_frequency
type frequency struct {
	Tuner     uint32
	Type      uint32
	Frequency uint32
	_         [8]uint32
}

const (
	iocWrite = 1
	iocRead  = 2
)

func ioc(dir, nr, size uintptr) uintptr {
	return dir<<30 | size<<16 | 'V'<<8 | nr
}

var (
	vidiocQueryCap     = ioc(iocRead, 0, unsafe.Sizeof(capability{}))
	vidiocSetFormat    = ioc(iocRead|iocWrite, 5, unsafe.Sizeof(format{}))
	vidiocSetFrequency = ioc(iocWrite, 57, unsafe.Sizeof(frequency{}))
)

func ioctl(fd int, req uintptr, arg unsafe.Pointer) error {
	for {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
		switch errno {
		case 0:
			return nil
		case unix.EINTR:
			continue
		default:
			return errno
		}
	}
}
