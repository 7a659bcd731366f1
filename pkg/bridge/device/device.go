package device

import (
	"errors"
	"fmt"
	"io"
)

var (
	ErrDeviceUnavailable = errors.New("device unavailable")
	ErrUnsupportedFormat = errors.New("unsupported sample format")
	ErrClosed            = errors.New("device handle closed")
)

// Format is a V4L2 SDR fourcc.
type Format uint32

const (
	FormatU8    Format = 0x38305543 // CU08, interleaved unsigned 8 bit I/Q
	FormatU16LE Format = 0x36315543 // CU16
)

func (f Format) String() string {
	switch f {
	case FormatU8:
		return "CU08"
	case FormatU16LE:
		return "CU16"
	}
	return fmt.Sprintf("0x%08x", uint32(f))
}

// TunerKind selects which oscillator SetFrequency adjusts. The values match
// enum v4l2_tuner_type.
type TunerKind uint32

const (
	TunerADC TunerKind = 4
	TunerRF  TunerKind = 5
)

func (k TunerKind) String() string {
	switch k {
	case TunerADC:
		return "adc"
	case TunerRF:
		return "rf"
	}
	return fmt.Sprintf("tuner(%d)", uint32(k))
}

// Device hands out capture handles on a single piece of hardware.
type Device interface {
	Name() string
	// Open acquires the hardware. Failures wrap ErrDeviceUnavailable.
	Open() (Handle, error)
}

// Handle is an open device. Control calls and ReadChunk may be issued from
// different goroutines at the same time.
type Handle interface {
	SetFormat(f Format) error
	SetFrequency(kind TunerKind, hz uint32) error
	// ReadChunk fills buf with raw samples, returning fewer bytes only when the
	// stream has ended, in which case err is io.EOF.
	ReadChunk(buf []byte) (int, error)
	Close() error
}

type ControlError struct {
	Op    string
	Kind  TunerKind
	Value uint32
	Err   error
}

func (e *ControlError) Error() string {
	return fmt.Sprintf("%s %s=%d: %v", e.Op, e.Kind, e.Value, e.Err)
}

func (e *ControlError) Unwrap() error {
	return e.Err
}

func Unavailable(name string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrDeviceUnavailable, name, err)
}

// FillChunk reads from r until buf is full, mapping a short read at the end of
// the stream to io.EOF.
func FillChunk(r io.Reader, buf []byte) (int, error) {
	n, err := io.ReadFull(r, buf)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return n, err
}
