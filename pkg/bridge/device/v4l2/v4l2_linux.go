//go:build linux
// +build linux

package v4l2

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"unsafe"

	"github.com/norasector/rtlbridge/pkg/bridge/device"
	"golang.org/x/sys/unix"
)

func (v *V4L2Device) Open() (device.Handle, error) {
	fd, err := unix.Open(v.path, unix.O_RDWR|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, device.Unavailable(v.Name(), err)
	}

	var c capability
	if err := ioctl(fd, vidiocQueryCap, unsafe.Pointer(&c)); err != nil {
		unix.Close(fd)
		return nil, device.Unavailable(v.Name(), fmt.Errorf("VIDIOC_QUERYCAP: %w", err))
	}
	if c.caps()&capSDRCapture == 0 {
		unix.Close(fd)
		return nil, device.Unavailable(v.Name(), errors.New("not an SDR capture device"))
	}
	if c.caps()&capReadWrite == 0 {
		unix.Close(fd)
		return nil, device.Unavailable(v.Name(), errors.New("device does not support read()"))
	}

	return &handle{
		path: v.path,
		fd:   fd,
	}, nil
}

// handle keeps the control descriptor apart from the streaming descriptor so
// that ioctls never queue behind a blocking read.
type handle struct {
	path string

	mu     sync.Mutex
	fd     int
	stream *os.File
	closed bool
}

func (h *handle) controlFD() (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return -1, device.ErrClosed
	}
	return h.fd, nil
}

func (h *handle) SetFormat(f device.Format) error {
	fd, err := h.controlFD()
	if err != nil {
		return err
	}

	var arg format
	arg.Type = bufTypeSDRCapture
	arg.Fmt.SDR.PixelFormat = uint32(f)

	if err := ioctl(fd, vidiocSetFormat, unsafe.Pointer(&arg)); err != nil {
		return fmt.Errorf("%w: %s: %v", device.ErrUnsupportedFormat, f, err)
	}
	// The driver answers with the format it picked.
	if arg.Fmt.SDR.PixelFormat != uint32(f) {
		return fmt.Errorf("%w: %s, driver chose %s", device.ErrUnsupportedFormat, f, device.Format(arg.Fmt.SDR.PixelFormat))
	}
	return nil
}

func (h *handle) SetFrequency(kind device.TunerKind, hz uint32) error {
	fd, err := h.controlFD()
	if err != nil {
		return err
	}

	arg := frequency{
		Type:      uint32(kind),
		Frequency: hz,
	}
	switch kind {
	case device.TunerADC:
		arg.Tuner = tunerADCIndex
	case device.TunerRF:
		arg.Tuner = tunerRFIndex
	default:
		return &device.ControlError{Op: "VIDIOC_S_FREQUENCY", Kind: kind, Value: hz, Err: errors.New("unknown tuner")}
	}

	if err := ioctl(fd, vidiocSetFrequency, unsafe.Pointer(&arg)); err != nil {
		return &device.ControlError{Op: "VIDIOC_S_FREQUENCY", Kind: kind, Value: hz, Err: err}
	}
	return nil
}

func (h *handle) streamFile() (*os.File, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, device.ErrClosed
	}
	if h.stream == nil {
		f, err := os.OpenFile(h.path, os.O_RDONLY, 0)
		if err != nil {
			return nil, err
		}
		h.stream = f
	}
	return h.stream, nil
}

func (h *handle) ReadChunk(buf []byte) (int, error) {
	f, err := h.streamFile()
	if err != nil {
		return 0, err
	}
	return device.FillChunk(f, buf)
}

func (h *handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true

	var err error
	if h.stream != nil {
		err = h.stream.Close()
	}
	if cerr := unix.Close(h.fd); err == nil {
		err = cerr
	}
	return err
}
