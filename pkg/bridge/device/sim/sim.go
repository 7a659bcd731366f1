// Package sim provides an in-memory device that produces a predictable byte
// ramp and records every control call made against it.
package sim

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/norasector/rtlbridge/pkg/bridge/device"
)

var ErrInjected = errors.New("injected failure")

type Call struct {
	Op    string
	Kind  device.TunerKind
	Value uint32
}

type Stats struct {
	Opens      int
	Open       int
	MaxOpen    int
	MaxReading int
}

type Device struct {
	// Limit ends each handle's stream after this many bytes. Zero streams forever.
	Limit int64
	// Interval is slept before each chunk is produced.
	Interval time.Duration

	FailOpen    bool
	FailFormat  bool
	FailControl bool

	mu      sync.Mutex
	calls   []Call
	stats   Stats
	reading int
}

func New() *Device {
	return &Device{}
}

func (d *Device) Name() string {
	return "sim"
}

func (d *Device) Open() (device.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls = append(d.calls, Call{Op: "open"})
	if d.FailOpen {
		return nil, device.Unavailable(d.Name(), ErrInjected)
	}

	d.stats.Opens++
	d.stats.Open++
	if d.stats.Open > d.stats.MaxOpen {
		d.stats.MaxOpen = d.stats.Open
	}

	return &handle{dev: d}, nil
}

func (d *Device) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	ret := make([]Call, len(d.calls))
	copy(ret, d.calls)
	return ret
}

// ControlCalls returns only the format and frequency calls.
func (d *Device) ControlCalls() []Call {
	var ret []Call
	for _, c := range d.Calls() {
		if c.Op == "set_format" || c.Op == "set_frequency" {
			ret = append(ret, c)
		}
	}
	return ret
}

func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

type handle struct {
	dev    *Device
	offset int64
	closed bool
}

func (h *handle) SetFormat(f device.Format) error {
	h.dev.mu.Lock()
	defer h.dev.mu.Unlock()
	if h.closed {
		return device.ErrClosed
	}
	h.dev.calls = append(h.dev.calls, Call{Op: "set_format", Value: uint32(f)})
	if h.dev.FailFormat || f != device.FormatU8 {
		return device.ErrUnsupportedFormat
	}
	return nil
}

func (h *handle) SetFrequency(kind device.TunerKind, hz uint32) error {
	h.dev.mu.Lock()
	defer h.dev.mu.Unlock()
	if h.closed {
		return device.ErrClosed
	}
	h.dev.calls = append(h.dev.calls, Call{Op: "set_frequency", Kind: kind, Value: hz})
	if h.dev.FailControl {
		return &device.ControlError{Op: "set_frequency", Kind: kind, Value: hz, Err: ErrInjected}
	}
	return nil
}

func (h *handle) ReadChunk(buf []byte) (int, error) {
	h.dev.mu.Lock()
	if h.closed {
		h.dev.mu.Unlock()
		return 0, device.ErrClosed
	}
	h.dev.reading++
	if h.dev.reading > h.dev.stats.MaxReading {
		h.dev.stats.MaxReading = h.dev.reading
	}
	interval := h.dev.Interval
	limit := h.dev.Limit
	h.dev.mu.Unlock()

	defer func() {
		h.dev.mu.Lock()
		h.dev.reading--
		h.dev.mu.Unlock()
	}()

	if interval > 0 {
		time.Sleep(interval)
	}

	n := len(buf)
	if limit > 0 && h.offset+int64(n) > limit {
		n = int(limit - h.offset)
	}
	for i := 0; i < n; i++ {
		buf[i] = byte(h.offset + int64(i))
	}
	h.offset += int64(n)

	if n < len(buf) {
		return n, io.EOF
	}
	return n, nil
}

func (h *handle) Close() error {
	h.dev.mu.Lock()
	defer h.dev.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	h.dev.stats.Open--
	h.dev.calls = append(h.dev.calls, Call{Op: "close"})
	return nil
}
