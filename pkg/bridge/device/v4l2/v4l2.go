// Package v4l2 drives a Linux V4L2 software defined radio node such as
// /dev/swradio0.
package v4l2

const DefaultPath = "/dev/swradio0"

type V4L2Device struct {
	path string
}

func NewV4L2Device(path string) *V4L2Device {
	if path == "" {
		path = DefaultPath
	}
	return &V4L2Device{path: path}
}

func (v *V4L2Device) Name() string {
	return "v4l2:" + v.path
}

func (v *V4L2Device) Path() string {
	return v.path
}
