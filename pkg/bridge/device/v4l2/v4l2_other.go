//go:build !linux
// +build !linux

package v4l2

import (
	"errors"

	"github.com/norasector/rtlbridge/pkg/bridge/device"
)

func (v *V4L2Device) Open() (device.Handle, error) {
	return nil, device.Unavailable(v.Name(), errors.New("v4l2 is only supported on linux"))
}
