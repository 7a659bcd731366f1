package file

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/norasector/rtlbridge/pkg/bridge/device"
)

// FileDevice plays back a capture recorded as interleaved unsigned 8 bit I/Q.
// Tuning calls are remembered but have no effect on the data.
type FileDevice struct {
	file        string
	timeBetween time.Duration
	loop        bool
}

func NewFileDevice(file string, timeBetween time.Duration, loop bool) (*FileDevice, error) {
	st, err := os.Stat(file)
	if err != nil {
		return nil, err
	}
	if st.IsDir() {
		return nil, &os.PathError{Op: "open", Path: file, Err: os.ErrInvalid}
	}

	return &FileDevice{
		file:        file,
		timeBetween: timeBetween,
		loop:        loop,
	}, nil
}

func (f *FileDevice) Name() string {
	return "file:" + f.file
}

func (f *FileDevice) Open() (device.Handle, error) {
	readFile, err := os.Open(f.file)
	if err != nil {
		return nil, device.Unavailable(f.Name(), err)
	}

	h := &Handle{
		readFile:    readFile,
		timeBetween: f.timeBetween,
		loop:        f.loop,
		tuning:      make(map[device.TunerKind]uint32),
	}
	return h, nil
}

type Handle struct {
	readFile    *os.File
	timeBetween time.Duration
	loop        bool
	last        time.Time

	mu     sync.Mutex
	tuning map[device.TunerKind]uint32
	closed bool
}

func (h *Handle) SetFormat(f device.Format) error {
	if f != device.FormatU8 {
		return device.ErrUnsupportedFormat
	}
	return nil
}

func (h *Handle) SetFrequency(kind device.TunerKind, hz uint32) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return device.ErrClosed
	}
	h.tuning[kind] = hz
	return nil
}

// Tuning returns the last value set for kind.
func (h *Handle) Tuning(kind device.TunerKind) (uint32, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.tuning[kind]
	return v, ok
}

func (h *Handle) ReadChunk(buf []byte) (int, error) {
	if h.timeBetween > 0 {
		if wait := h.timeBetween - time.Since(h.last); wait > 0 {
			time.Sleep(wait)
		}
		h.last = time.Now()
	}

	n, err := device.FillChunk(h.readFile, buf)
	for err == io.EOF && h.loop {
		if _, serr := h.readFile.Seek(0, io.SeekStart); serr != nil {
			return n, serr
		}
		var m int
		m, err = device.FillChunk(h.readFile, buf[n:])
		if m == 0 && err == io.EOF {
			// empty file
			return n, err
		}
		n += m
	}
	return n, err
}

func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return h.readFile.Close()
}
