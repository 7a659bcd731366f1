//go:build linux
// +build linux

package v4l2

import (
	"errors"
	"path/filepath"
	"testing"
	"unsafe"

	"github.com/norasector/rtlbridge/pkg/bridge/device"
)

type layoutCase struct {
	name string
	got  uintptr
	want uintptr
}

func TestStructLayout(t *testing.T) {
	tests := []layoutCase{
		{"v4l2_capability", unsafe.Sizeof(capability{}), 104},
		{"v4l2_sdr_format", unsafe.Sizeof(sdrFormat{}), 32},
		{"v4l2_frequency", unsafe.Sizeof(frequency{}), 44},
		{"VIDIOC_QUERYCAP", vidiocQueryCap, 0x80685600},
		{"VIDIOC_S_FREQUENCY", vidiocSetFrequency, 0x402c5639},
	}
	if unsafe.Sizeof(uintptr(0)) == 8 {
		tests = append(tests, layoutCase{"VIDIOC_S_FMT", vidiocSetFormat, 0xc0d05605})
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %#x, want %#x", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestOpenMissing(t *testing.T) {
	d := NewV4L2Device(filepath.Join(t.TempDir(), "swradio9"))
	if _, err := d.Open(); !errors.Is(err, device.ErrDeviceUnavailable) {
		t.Errorf("Open() = %v, want ErrDeviceUnavailable", err)
	}
}

func TestOpenNotSDR(t *testing.T) {
	// /dev/null accepts open but rejects VIDIOC_QUERYCAP.
	d := NewV4L2Device("/dev/null")
	if _, err := d.Open(); !errors.Is(err, device.ErrDeviceUnavailable) {
		t.Errorf("Open() = %v, want ErrDeviceUnavailable", err)
	}
}

func TestDefaultPath(t *testing.T) {
	if got := NewV4L2Device("").Path(); got != DefaultPath {
		t.Errorf("Path() = %q, want %q", got, DefaultPath)
	}
}
