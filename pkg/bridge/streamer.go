package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/norasector/rtlbridge/pkg/bridge/device"
	"github.com/norasector/rtlbridge/pkg/dsp/level"
)

var (
	// ErrClientGone is returned by the streamer when the connection stops
	// accepting samples.
	ErrClientGone = errors.New("client gone")
	// ErrStreamEnded is returned when the device has no more samples.
	ErrStreamEnded = errors.New("device stream ended")
)

// levelStride is how many I/Q pairs are skipped between measured ones.
const levelStride = 16

type streamer struct {
	// Accessed atomically, kept first for 64 bit alignment.
	chunks int64
	bytes  int64

	w          io.Writer
	handle     device.Handle
	opts       Options
	logger     zerolog.Logger
	writeAPI   api.WriteAPI
	deviceName string

	mu       sync.Mutex
	level    level.Level
	hasLevel bool
}

func newStreamer(w io.Writer, handle device.Handle, opts Options, logger zerolog.Logger, writeAPI api.WriteAPI, deviceName string) *streamer {
	return &streamer{
		w:          w,
		handle:     handle,
		opts:       opts,
		logger:     logger,
		writeAPI:   writeAPI,
		deviceName: deviceName,
	}
}

// Run forwards chunks from the device to the client, unmodified, until the
// context is cancelled, the client goes away or the device runs dry.
func (s *streamer) Run(ctx context.Context) error {
	s.logger.Info().Int("chunk_size", s.opts.ChunkSize).Msg("starting streaming")
	defer func() {
		s.logger.Info().
			Int64("chunks", atomic.LoadInt64(&s.chunks)).
			Int64("bytes", atomic.LoadInt64(&s.bytes)).
			Msg("stopping streaming")
	}()

	buf := make([]byte, s.opts.ChunkSize)

	for {
		if ctx.Err() != nil {
			return nil
		}

		n, readErr := s.handle.ReadChunk(buf)
		if ctx.Err() != nil {
			return nil
		}

		if n > 0 {
			if _, err := s.w.Write(buf[:n]); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("%w: %v", ErrClientGone, err)
			}
			chunks := atomic.AddInt64(&s.chunks, 1)
			atomic.AddInt64(&s.bytes, int64(n))

			if s.opts.LevelInterval > 0 && chunks%int64(s.opts.LevelInterval) == 0 {
				s.measure(buf[:n])
			}
		}

		switch {
		case readErr == nil:
		case errors.Is(readErr, io.EOF):
			return ErrStreamEnded
		default:
			return fmt.Errorf("reading device: %w", readErr)
		}
	}
}

func (s *streamer) measure(buf []byte) {
	lvl := level.Measure(buf, levelStride)

	s.mu.Lock()
	s.level = lvl
	s.hasLevel = true
	s.mu.Unlock()

	s.logger.Debug().
		Float64("dbfs", lvl.DBFS()).
		Float64("clip_ratio", lvl.ClipRatio).
		Msg("signal level")

	go s.writeAPI.WritePoint(influxdb2.NewPoint("stream.level",
		map[string]string{
			"device": s.deviceName,
		},
		map[string]interface{}{
			"rms":        lvl.RMS,
			"mean_i":     lvl.MeanI,
			"mean_q":     lvl.MeanQ,
			"clip_ratio": lvl.ClipRatio,
			"chunks":     atomic.LoadInt64(&s.chunks),
		}, time.Now()))
}

func (s *streamer) Counters() (chunks, bytes int64) {
	return atomic.LoadInt64(&s.chunks), atomic.LoadInt64(&s.bytes)
}

func (s *streamer) Level() (level.Level, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level, s.hasLevel
}
