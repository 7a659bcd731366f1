package bridge

import (
	"time"

	"github.com/norasector/rtlbridge/pkg/dsp/level"
)

type Status struct {
	Device     string        `json:"device"`
	Listen     string        `json:"listen"`
	Sessions   int           `json:"sessions"`
	Client     *ClientStatus `json:"client,omitempty"`
	LastClient *ClientStatus `json:"last_client,omitempty"`
}

type ClientStatus struct {
	Remote        string       `json:"remote"`
	ConnectedAt   time.Time    `json:"connected_at"`
	State         string       `json:"state"`
	SampleRateSet bool         `json:"sample_rate_set"`
	Streaming     bool         `json:"streaming"`
	StreamStarts  int          `json:"stream_starts"`
	CenterFreq    uint32       `json:"center_freq"`
	SampleRate    uint32       `json:"sample_rate"`
	Commands      int          `json:"commands"`
	ControlErrors int          `json:"control_errors"`
	Chunks        int64        `json:"chunks"`
	Bytes         int64        `json:"bytes"`
	Level         *level.Level `json:"level,omitempty"`
}
