package bridge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/norasector/rtlbridge/pkg/bridge/device"
	"github.com/norasector/rtlbridge/pkg/rtltcp"
	"github.com/norasector/rtlbridge/pkg/util"
)

type State int

const (
	AwaitingCommand State = iota
	Streaming
	Closed
)

func (s State) String() string {
	switch s {
	case AwaitingCommand:
		return "awaiting_command"
	case Streaming:
		return "streaming"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// SessionState is the per connection configuration progress. It starts out
// zero for every client.
type SessionState struct {
	SampleRateSet bool
	Streaming     bool
}

// Session drives one client connection: it reads command frames, applies them
// to the device and starts the streamer once a sample rate has been set.
type Session struct {
	conn     net.Conn
	dev      device.Device
	opts     Options
	logger   zerolog.Logger
	writeAPI api.WriteAPI

	connectedAt time.Time

	mu            sync.Mutex
	handle        device.Handle
	state         State
	flags         SessionState
	streamer      *streamer
	streamStarts  int
	centerFreq    uint32
	sampleRate    uint32
	commands      int
	controlErrors int
}

func newSession(conn net.Conn, dev device.Device, opts Options, logger zerolog.Logger, writeAPI api.WriteAPI) *Session {
	return &Session{
		conn:        conn,
		dev:         dev,
		opts:        opts,
		logger:      logger,
		writeAPI:    writeAPI,
		connectedAt: time.Now(),
		state:       AwaitingCommand,
	}
}

// Run returns once the client has gone and the streamer has exited. A client
// hanging up is not an error.
func (s *Session) Run(ctx context.Context) error {
	defer s.conn.Close()

	handle, err := s.dev.Open()
	if err != nil {
		s.setState(Closed)
		return err
	}
	s.mu.Lock()
	s.handle = handle
	s.mu.Unlock()
	defer handle.Close()

	if err := handle.SetFormat(device.FormatU8); err != nil {
		s.logger.Warn().Err(err).Msg("device rejected sample format")
	}

	if err := rtltcp.WriteHandshake(s.conn); err != nil {
		s.setState(Closed)
		return fmt.Errorf("sending handshake: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	eg, ctx := errgroup.WithContext(ctx)

	// The streamer failing or the bridge stopping must unblock the frame read.
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			s.conn.SetReadDeadline(time.Now())
		case <-done:
		}
	}()

	var readErr error
	for {
		cmd, err := rtltcp.ReadCommand(s.conn)
		if err != nil {
			readErr = err
			break
		}

		s.dispatch(cmd)

		if s.shouldStartStreaming() {
			s.startStreaming(ctx, eg, handle)
		}
	}
	close(done)
	stopped := ctx.Err() != nil

	s.setState(Closed)
	cancel()
	// Closing the connection releases a streamer blocked in Write.
	s.conn.Close()
	streamErr := eg.Wait()

	switch {
	case errors.Is(streamErr, ErrClientGone):
		s.logger.Debug().Err(streamErr).Msg("client stopped accepting samples")
		return nil
	case streamErr != nil:
		return streamErr
	case stopped:
		return nil
	case errors.Is(readErr, rtltcp.ErrConnectionClosed):
		return nil
	case errors.Is(readErr, rtltcp.ErrShortFrame):
		s.logger.Debug().Msg("client hung up mid frame")
		return nil
	default:
		return fmt.Errorf("reading command: %w", readErr)
	}
}

func (s *Session) dispatch(cmd rtltcp.Command) {
	s.mu.Lock()
	s.commands++
	s.mu.Unlock()

	logger := s.logger.With().Str("command", cmd.Code.String()).Uint32("value", cmd.Value).Logger()

	switch cmd.Code {
	case rtltcp.SetFreq:
		logger.Info().Str("freq", util.MHzToString(cmd.Value)).Msg("tuning")
		s.control(device.TunerRF, cmd.Value)
		s.mu.Lock()
		s.centerFreq = cmd.Value
		s.mu.Unlock()

	case rtltcp.SetSampleRate:
		logger.Info().Str("sample_rate", util.SampleRateToString(cmd.Value)).Msg("setting sample rate")
		s.control(device.TunerADC, cmd.Value)
		s.mu.Lock()
		s.sampleRate = cmd.Value
		s.flags.SampleRateSet = true
		s.mu.Unlock()

	case rtltcp.SetTunerGainMode,
		rtltcp.SetGain,
		rtltcp.SetFreqCorrection,
		rtltcp.SetAGCMode,
		rtltcp.SetTunerGainIndex:
		// No device control maps to these, the client just gets no effect.
		logger.Info().Msg("command accepted")

	default:
		logger.Debug().Msg("ignoring command")
	}
}

// control applies a tuning change. There is no way to report failure to an
// rtl_tcp client, so errors are only logged.
func (s *Session) control(kind device.TunerKind, hz uint32) {
	duration, err := util.TimeOperationErr(func() error {
		return s.handle.SetFrequency(kind, hz)
	})
	if err != nil {
		s.mu.Lock()
		s.controlErrors++
		s.mu.Unlock()
		s.logger.Warn().Err(err).Str("tuner", kind.String()).Uint32("value", hz).Msg("device control failed")
	}

	go s.writeAPI.WritePoint(influxdb2.NewPoint("device.control",
		map[string]string{
			"device": s.dev.Name(),
			"tuner":  kind.String(),
		},
		map[string]interface{}{
			"value":    int64(hz),
			"ok":       err == nil,
			"duration": duration,
		}, time.Now()))
}

func (s *Session) shouldStartStreaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == AwaitingCommand && s.flags.SampleRateSet && s.streamer == nil
}

func (s *Session) startStreaming(ctx context.Context, eg *errgroup.Group, handle device.Handle) {
	st := newStreamer(s.conn, handle, s.opts, s.logger, s.writeAPI, s.dev.Name())

	s.mu.Lock()
	s.streamer = st
	s.streamStarts++
	s.state = Streaming
	s.flags.Streaming = true
	s.mu.Unlock()

	eg.Go(func() error {
		return st.Run(ctx)
	})
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	if state == Closed {
		s.flags.Streaming = false
	}
	s.mu.Unlock()
}

func (s *Session) State() (State, SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.flags
}

func (s *Session) Status() ClientStatus {
	s.mu.Lock()
	cs := ClientStatus{
		Remote:        s.conn.RemoteAddr().String(),
		ConnectedAt:   s.connectedAt,
		State:         s.state.String(),
		SampleRateSet: s.flags.SampleRateSet,
		Streaming:     s.flags.Streaming,
		StreamStarts:  s.streamStarts,
		CenterFreq:    s.centerFreq,
		SampleRate:    s.sampleRate,
		Commands:      s.commands,
		ControlErrors: s.controlErrors,
	}
	st := s.streamer
	s.mu.Unlock()

	if st != nil {
		cs.Chunks, cs.Bytes = st.Counters()
		if lvl, ok := st.Level(); ok {
			cs.Level = &lvl
		}
	}
	return cs
}
