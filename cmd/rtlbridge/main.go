package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/norasector/rtlbridge/pkg/bridge"
	"github.com/norasector/rtlbridge/pkg/bridge/config"
	"github.com/norasector/rtlbridge/pkg/bridge/device"
	"github.com/norasector/rtlbridge/pkg/bridge/device/file"
	hackrfDevice "github.com/norasector/rtlbridge/pkg/bridge/device/hackrf"
	"github.com/norasector/rtlbridge/pkg/bridge/device/rtlsdr"
	"github.com/norasector/rtlbridge/pkg/bridge/device/sim"
	"github.com/norasector/rtlbridge/pkg/bridge/device/v4l2"
	"github.com/norasector/rtlbridge/pkg/bridge/status"
	"github.com/norasector/rtlbridge/pkg/util"
	"github.com/samuel/go-hackrf/hackrf"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.InfoLevel)
	configFile := flag.String("config", "rtlbridge.yaml", "YAML config file")
	flag.Parse()

	opts, err := config.Load(*configFile)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configFile).Msg("error loading config")
	}

	level, err := zerolog.ParseLevel(opts.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid log level")
	}
	log.Logger = log.Logger.Level(level)

	var dev device.Device

	switch opts.Device {
	case config.DeviceRTLSDR:
		log.Info().Str("device", "rtlsdr").Msg("initializing device...")
		dev, err = rtlsdr.NewRTLSDRDevice(opts.RTLSDRDeviceIndex)
		if err != nil {
			log.Fatal().Str("device", "rtlsdr").Err(err).Msg("failed to initialize RTLSDR")
		}
	case config.DeviceHackRF:
		log.Info().Str("device", "hackrf").Msg("initializing device...")
		if err := hackrf.Init(); err != nil {
			log.Fatal().Str("device", "hackrf").Err(err).Msg("failed to initialize hackRF")
		}
		defer hackrf.Exit()
		dev = hackrfDevice.NewHackRFDevice(opts.HackRF.LNAGain, opts.HackRF.VGAGain, opts.HackRF.AmpEnable)
	case config.DeviceFile:
		log.Info().Str("device", "file").Str("path", opts.PlaybackLocation).Msg("initializing device...")
		dev, err = file.NewFileDevice(opts.PlaybackLocation, opts.PlaybackInterval, opts.PlaybackLoop)
		if err != nil {
			log.Fatal().Str("device", "file").Err(err).Msg("failed to init file reader")
		}
	case config.DeviceSim:
		log.Info().Str("device", "sim").Msg("initializing device...")
		dev = sim.New()
	default:
		log.Info().Str("device", "v4l2").Str("path", opts.DevicePath).Msg("initializing device...")
		dev = v4l2.NewV4L2Device(opts.DevicePath)
	}

	var writeAPI api.WriteAPI = &util.MockWriteAPI{}
	if opts.InfluxDB.Host != "" {
		client := influxdb2.NewClient(opts.InfluxDB.Host, opts.InfluxDB.Token)
		defer client.Close()
		writeAPI = client.WriteAPI(opts.InfluxDB.Organization, opts.InfluxDB.Bucket)
	}

	b, err := bridge.NewBridge(dev,
		bridge.Options{
			Listen:        opts.Listen,
			ChunkSize:     opts.ChunkSize,
			LevelInterval: opts.LevelInterval,
		},
		bridge.WithInfluxDB(writeAPI),
		bridge.WithLogger(log.Logger))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create bridge")
	}

	eg, ctx := errgroup.WithContext(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	eg.Go(func() error {
		select {
		case <-sigChan:
			log.Info().Msg("shutting down")
		case <-ctx.Done():
		}

		b.Stop()
		return context.Canceled
	})

	eg.Go(func() error {
		return b.Start(ctx)
	})

	if opts.StatusServer.Port != 0 {
		statusServer := status.NewServer(opts.StatusServer.Port, b, log.Logger)
		eg.Go(func() error {
			return statusServer.Run(ctx)
		})
	}

	err = eg.Wait()
	switch {
	case errors.Is(err, device.ErrDeviceUnavailable):
		log.Fatal().Err(err).Msg("device unavailable")
	case err != nil && !errors.Is(err, context.Canceled):
		log.Fatal().Err(err).Msg("exited program")
	}
}
