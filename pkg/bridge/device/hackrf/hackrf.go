package hackrf

import (
	"errors"
	"sync"

	"github.com/norasector/rtlbridge/pkg/bridge/device"
	"github.com/samuel/go-hackrf/hackrf"
)

const (
	maxSampleRate = 20e6
	rxQueueLength = 32
)

type HackRFDevice struct {
	lnaGain   int
	vgaGain   int
	ampEnable bool
}

// NewHackRFDevice expects hackrf.Init to have been called by the caller.
func NewHackRFDevice(lnaGain, vgaGain int, ampEnable bool) *HackRFDevice {
	return &HackRFDevice{
		lnaGain:   lnaGain,
		vgaGain:   vgaGain,
		ampEnable: ampEnable,
	}
}

func (h *HackRFDevice) Name() string {
	return "hackrf"
}

func (h *HackRFDevice) Open() (device.Handle, error) {
	dev, err := hackrf.Open()
	if err != nil {
		return nil, device.Unavailable(h.Name(), err)
	}
	if err := dev.SetLNAGain(h.lnaGain); err != nil {
		dev.Close()
		return nil, device.Unavailable(h.Name(), err)
	}
	if err := dev.SetVGAGain(h.vgaGain); err != nil {
		dev.Close()
		return nil, device.Unavailable(h.Name(), err)
	}
	if err := dev.SetAmpEnable(h.ampEnable); err != nil {
		dev.Close()
		return nil, device.Unavailable(h.Name(), err)
	}

	return &handle{
		device:  dev,
		samples: make(chan []byte, rxQueueLength),
		done:    make(chan struct{}),
	}, nil
}

type handle struct {
	device  *hackrf.Device
	samples chan []byte
	done    chan struct{}
	pending []byte

	mu      sync.Mutex
	started bool
	closed  bool
}

func (h *handle) SetFormat(f device.Format) error {
	// Samples are converted to offset binary on the way out.
	if f != device.FormatU8 {
		return device.ErrUnsupportedFormat
	}
	return nil
}

func (h *handle) SetFrequency(kind device.TunerKind, hz uint32) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return device.ErrClosed
	}

	switch kind {
	case device.TunerRF:
		if err := h.device.SetFreq(uint64(hz)); err != nil {
			return &device.ControlError{Op: "SetFreq", Kind: kind, Value: hz, Err: err}
		}
	case device.TunerADC:
		if hz > maxSampleRate {
			return &device.ControlError{Op: "SetSampleRate", Kind: kind, Value: hz, Err: errors.New("above device maximum")}
		}
		if err := h.device.SetSampleRateManual(int(hz), 1); err != nil {
			return &device.ControlError{Op: "SetSampleRate", Kind: kind, Value: hz, Err: err}
		}
		if err := h.device.SetBasebandFilterBandwidth(int(hz)); err != nil {
			return &device.ControlError{Op: "SetBasebandFilterBandwidth", Kind: kind, Value: hz, Err: err}
		}
	default:
		return &device.ControlError{Op: "SetFrequency", Kind: kind, Value: hz, Err: errors.New("unknown tuner")}
	}
	return nil
}

func (h *handle) callback(buf []byte) error {
	data := make([]byte, len(buf))
	copy(data, buf)

	select {
	case <-h.done:
		return errors.New("hackrf: handle closed")
	case h.samples <- data:
	default:
		// Reader fell behind. StopRX waits on this callback, so it must never
		// block here.
	}
	return nil
}

func (h *handle) startRX() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return device.ErrClosed
	}
	if h.started {
		return nil
	}
	if err := h.device.StartRX(h.callback); err != nil {
		return err
	}
	h.started = true
	return nil
}

func (h *handle) ReadChunk(buf []byte) (int, error) {
	if err := h.startRX(); err != nil {
		return 0, err
	}

	n := 0
	for n < len(buf) {
		if len(h.pending) == 0 {
			select {
			case <-h.done:
				return n, device.ErrClosed
			case h.pending = <-h.samples:
			}
		}
		c := copy(buf[n:], h.pending)
		h.pending = h.pending[c:]
		n += c
	}

	toOffsetBinary(buf[:n])
	return n, nil
}

// toOffsetBinary converts the HackRF's signed 8 bit samples to the unsigned
// layout rtl_tcp clients expect.
func toOffsetBinary(buf []byte) {
	for i := range buf {
		buf[i] ^= 0x80
	}
}

func (h *handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	close(h.done)

	var err error
	if h.started {
		err = h.device.StopRX()
	}
	if cerr := h.device.Close(); err == nil {
		err = cerr
	}
	return err
}
