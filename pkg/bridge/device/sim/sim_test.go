package sim

import (
	"errors"
	"io"
	"reflect"
	"testing"

	"github.com/norasector/rtlbridge/pkg/bridge/device"
)

func TestReadChunkLimit(t *testing.T) {
	d := New()
	d.Limit = 10

	h, err := d.Open()
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	buf := make([]byte, 4)
	var got []byte
	for {
		n, err := h.ReadChunk(buf)
		got = append(got, buf[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
	}

	want := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ReadChunk() = %v, want %v", got, want)
	}
}

func TestControlCalls(t *testing.T) {
	d := New()
	h, err := d.Open()
	if err != nil {
		t.Fatal(err)
	}

	if err := h.SetFormat(device.FormatU8); err != nil {
		t.Errorf("SetFormat(U8) = %v", err)
	}
	if err := h.SetFormat(device.FormatU16LE); !errors.Is(err, device.ErrUnsupportedFormat) {
		t.Errorf("SetFormat(U16LE) = %v, want ErrUnsupportedFormat", err)
	}
	if err := h.SetFrequency(device.TunerRF, 100e6); err != nil {
		t.Errorf("SetFrequency() = %v", err)
	}

	h.Close()
	h.Close()

	if err := h.SetFrequency(device.TunerADC, 1); !errors.Is(err, device.ErrClosed) {
		t.Errorf("SetFrequency() after close = %v, want ErrClosed", err)
	}

	want := []Call{
		{Op: "set_format", Value: uint32(device.FormatU8)},
		{Op: "set_format", Value: uint32(device.FormatU16LE)},
		{Op: "set_frequency", Kind: device.TunerRF, Value: 100e6},
	}
	if got := d.ControlCalls(); !reflect.DeepEqual(got, want) {
		t.Errorf("ControlCalls() = %+v, want %+v", got, want)
	}
	if st := d.Stats(); st.Opens != 1 || st.Open != 0 {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestFailures(t *testing.T) {
	d := New()
	d.FailOpen = true
	if _, err := d.Open(); !errors.Is(err, device.ErrDeviceUnavailable) {
		t.Errorf("Open() = %v, want ErrDeviceUnavailable", err)
	}

	d.FailOpen = false
	d.FailControl = true
	h, err := d.Open()
	if err != nil {
		t.Fatal(err)
	}
	err = h.SetFrequency(device.TunerRF, 5)
	var ce *device.ControlError
	if !errors.As(err, &ce) {
		t.Fatalf("SetFrequency() = %v, want *ControlError", err)
	}
	if ce.Kind != device.TunerRF || ce.Value != 5 {
		t.Errorf("ControlError = %+v", ce)
	}
}
