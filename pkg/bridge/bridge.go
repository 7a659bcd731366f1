package bridge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/norasector/rtlbridge/pkg/bridge/device"
	"github.com/norasector/rtlbridge/pkg/util"
)

const (
	DefaultChunkSize = 262144

	acceptRetryDelay = 50 * time.Millisecond
)

type Options struct {
	Listen    string
	ChunkSize int
	// LevelInterval is the number of chunks between signal level
	// measurements. Zero disables them.
	LevelInterval int
}

// Bridge serves one rtl_tcp client at a time from a single device.
type Bridge struct {
	device   device.Device
	opts     Options
	writeAPI api.WriteAPI
	logger   zerolog.Logger
	ready    chan struct{}

	mu       sync.Mutex
	listener net.Listener
	cancel   context.CancelFunc
	active   *Session
	sessions int
	last     *ClientStatus
}

type BridgeOption func(b *Bridge) error

func WithInfluxDB(writeAPI api.WriteAPI) BridgeOption {
	return func(b *Bridge) error {
		if writeAPI == nil {
			return errors.New("nil influx write api")
		}
		b.writeAPI = writeAPI
		return nil
	}
}

func WithLogger(logger zerolog.Logger) BridgeOption {
	return func(b *Bridge) error {
		b.logger = logger
		return nil
	}
}

func NewBridge(dev device.Device, options Options, opts ...BridgeOption) (*Bridge, error) {
	if dev == nil {
		return nil, errors.New("must specify a device")
	}
	if options.ChunkSize == 0 {
		options.ChunkSize = DefaultChunkSize
	}
	if options.ChunkSize < 0 || options.LevelInterval < 0 {
		return nil, fmt.Errorf("invalid options: chunk size %d, level interval %d", options.ChunkSize, options.LevelInterval)
	}
	if options.Listen == "" {
		return nil, errors.New("must specify a listen address")
	}

	b := &Bridge{
		device:   dev,
		opts:     options,
		writeAPI: &util.MockWriteAPI{}, // overwritten with option
		logger:   log.Logger,
		ready:    make(chan struct{}),
	}

	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}

	b.logger = b.logger.With().Str("device", dev.Name()).Logger()

	return b, nil
}

// Probe opens the device once and selects the sample format, so that a
// missing or busy device is reported before any client connects.
func (b *Bridge) Probe() error {
	h, err := b.device.Open()
	if err != nil {
		return err
	}
	defer h.Close()

	if err := h.SetFormat(device.FormatU8); err != nil {
		b.logger.Warn().Err(err).Msg("device rejected sample format")
	}
	return nil
}

// Ready is closed once the bridge is accepting connections.
func (b *Bridge) Ready() <-chan struct{} {
	return b.ready
}

func (b *Bridge) Addr() net.Addr {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listener == nil {
		return nil
	}
	return b.listener.Addr()
}

func (b *Bridge) Stop() error {
	b.mu.Lock()
	cancel := b.cancel
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil
}

func (b *Bridge) Start(ctx context.Context) error {
	if err := b.Probe(); err != nil {
		return err
	}

	ln, err := net.Listen("tcp", b.opts.Listen)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	b.mu.Lock()
	b.listener = ln
	b.cancel = cancel
	b.mu.Unlock()
	close(b.ready)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	b.logger.Info().Str("listen", ln.Addr().String()).Msg("waiting for connection")

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				time.Sleep(acceptRetryDelay)
				continue
			}
			return err
		}

		b.serve(ctx, conn)

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// serve runs a session to completion. Nothing a client does can fail the
// accept loop.
func (b *Bridge) serve(ctx context.Context, conn net.Conn) {
	remote := conn.RemoteAddr().String()
	logger := b.logger.With().Str("remote", remote).Logger()
	logger.Info().Msg("client connected")

	go b.writeAPI.WritePoint(influxdb2.NewPoint("session.opened",
		map[string]string{
			"device": b.device.Name(),
		},
		map[string]interface{}{
			"remote": remote,
		}, time.Now()))

	sess := newSession(conn, b.device, b.opts, logger, b.writeAPI)

	b.mu.Lock()
	b.active = sess
	b.sessions++
	b.mu.Unlock()

	start := time.Now()
	err := sess.Run(ctx)
	st := sess.Status()

	b.mu.Lock()
	b.active = nil
	b.last = &st
	b.mu.Unlock()

	var ev *zerolog.Event
	if err != nil {
		ev = logger.Warn().Err(err)
	} else {
		ev = logger.Info()
	}
	ev.Int("commands", st.Commands).
		Int64("chunks", st.Chunks).
		Int64("bytes", st.Bytes).
		Dur("duration", time.Since(start)).
		Msg("client disconnected")

	go b.writeAPI.WritePoint(influxdb2.NewPoint("session.closed",
		map[string]string{
			"device": b.device.Name(),
		},
		map[string]interface{}{
			"commands":    st.Commands,
			"chunks":      st.Chunks,
			"bytes":       st.Bytes,
			"duration_ms": time.Since(start).Milliseconds(),
			"clean":       err == nil,
		}, time.Now()))
}

func (b *Bridge) Status() Status {
	st := Status{
		Device: b.device.Name(),
		Listen: b.opts.Listen,
	}

	b.mu.Lock()
	if b.listener != nil {
		st.Listen = b.listener.Addr().String()
	}
	st.Sessions = b.sessions
	active := b.active
	st.LastClient = b.last
	b.mu.Unlock()

	if active != nil {
		cs := active.Status()
		st.Client = &cs
	}
	return st
}
