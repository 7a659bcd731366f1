package rtlsdr

import (
	"errors"
	"fmt"
	"sync"

	gsdr "github.com/jpoirier/gortlsdr"
	"github.com/norasector/rtlbridge/pkg/bridge/device"
)

// librtlsdr wants bulk reads in multiples of the USB packet size.
const readAlignment = 512

type RTLSDRDevice struct {
	deviceIdx int
}

func NewRTLSDRDevice(deviceIdx int) (*RTLSDRDevice, error) {
	if deviceIdx < 0 {
		return nil, fmt.Errorf("invalid rtlsdr device index %d", deviceIdx)
	}
	return &RTLSDRDevice{deviceIdx: deviceIdx}, nil
}

func (r *RTLSDRDevice) Name() string {
	return fmt.Sprintf("rtlsdr:%d", r.deviceIdx)
}

func (r *RTLSDRDevice) Open() (device.Handle, error) {
	if cnt := gsdr.GetDeviceCount(); r.deviceIdx >= cnt {
		return nil, device.Unavailable(r.Name(), fmt.Errorf("found %d devices", cnt))
	}
	dev, err := gsdr.Open(r.deviceIdx)
	if err != nil {
		return nil, device.Unavailable(r.Name(), err)
	}
	return &handle{device: dev}, nil
}

type handle struct {
	// mu guards control calls and the closed flag, readMu keeps Close from
	// racing an in-flight ReadSync.
	mu     sync.Mutex
	readMu sync.Mutex
	device *gsdr.Context
	closed bool
	reset  bool
}

func (h *handle) SetFormat(f device.Format) error {
	if f != device.FormatU8 {
		return fmt.Errorf("%w: rtlsdr only produces %s", device.ErrUnsupportedFormat, device.FormatU8)
	}
	return nil
}

func (h *handle) SetFrequency(kind device.TunerKind, hz uint32) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return device.ErrClosed
	}

	var err error
	var op string
	switch kind {
	case device.TunerRF:
		op = "SetCenterFreq"
		err = h.device.SetCenterFreq(int(hz))
	case device.TunerADC:
		op = "SetSampleRate"
		err = h.device.SetSampleRate(int(hz))
	default:
		op = "SetFrequency"
		err = errors.New("unknown tuner")
	}
	if err != nil {
		return &device.ControlError{Op: op, Kind: kind, Value: hz, Err: err}
	}
	return nil
}

func (h *handle) ReadChunk(buf []byte) (int, error) {
	h.readMu.Lock()
	defer h.readMu.Unlock()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return 0, device.ErrClosed
	}
	if !h.reset {
		if err := h.device.ResetBuffer(); err != nil {
			h.mu.Unlock()
			return 0, err
		}
		h.reset = true
	}
	h.mu.Unlock()

	total := 0
	for total < len(buf) {
		want := len(buf) - total
		if want > readAlignment {
			want -= want % readAlignment
		}
		n, err := h.device.ReadSync(buf[total:total+want], want)
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, errors.New("rtlsdr: empty bulk read")
		}
	}
	return total, nil
}

func (h *handle) Close() error {
	h.readMu.Lock()
	defer h.readMu.Unlock()
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return h.device.Close()
}
