package util

import "fmt"

func MHzToString(hz uint32) string {
	return fmt.Sprintf("%0.4f MHz", float64(hz)/1e6)
}

// SampleRateToString formats a sample clock in mega samples per second.
func SampleRateToString(hz uint32) string {
	return fmt.Sprintf("%0.3f MS/s", float64(hz)/1e6)
}
