package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	DeviceV4L2   = "v4l2"
	DeviceRTLSDR = "rtlsdr"
	DeviceHackRF = "hackrf"
	DeviceFile   = "file"
	DeviceSim    = "sim"

	DefaultListen           = ":1234"
	DefaultDevicePath       = "/dev/swradio0"
	DefaultChunkSize        = 262144
	DefaultPlaybackInterval = 16384 * time.Microsecond
)

type Config struct {
	Listen            string        `yaml:"listen"`
	Device            string        `yaml:"device"`
	DevicePath        string        `yaml:"device_path"`
	RTLSDRDeviceIndex int           `yaml:"rtlsdr_device_index"`
	PlaybackLocation  string        `yaml:"playback_location"`
	PlaybackInterval  time.Duration `yaml:"playback_interval"`
	PlaybackLoop      bool          `yaml:"playback_loop"`
	ChunkSize         int           `yaml:"chunk_size"`
	LevelInterval     int           `yaml:"level_interval"`
	LogLevel          string        `yaml:"log_level"`
	HackRF            struct {
		LNAGain   int  `yaml:"lna_gain"`
		VGAGain   int  `yaml:"vga_gain"`
		AmpEnable bool `yaml:"amp_enable"`
	} `yaml:"hackrf"`
	StatusServer struct {
		Port int `yaml:"port"`
	} `yaml:"status_server"`
	InfluxDB struct {
		Host         string `yaml:"host"`
		Token        string `yaml:"token"`
		Organization string `yaml:"organization"`
		Bucket       string `yaml:"bucket"`
	} `yaml:"influxdb"`
}

func Default() Config {
	c := Config{
		Listen:           DefaultListen,
		Device:           DeviceV4L2,
		DevicePath:       DefaultDevicePath,
		PlaybackInterval: DefaultPlaybackInterval,
		ChunkSize:        DefaultChunkSize,
		LogLevel:         "info",
	}
	c.HackRF.LNAGain = 16
	c.HackRF.VGAGain = 20
	return c
}

// Load reads a YAML file on top of Default. A missing file is not an error so
// the bridge runs with no configuration at all.
func Load(path string) (Config, error) {
	c := Default()

	contents, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return c, nil
	case err != nil:
		return c, err
	}

	if err := Parse(contents, &c); err != nil {
		return c, err
	}
	return c, nil
}

func Parse(contents []byte, c *Config) error {
	if err := yaml.UnmarshalStrict(contents, c); err != nil {
		return fmt.Errorf("error unmarshaling yaml: %w", err)
	}
	if c.PlaybackLocation != "" {
		c.Device = DeviceFile
	}
	return c.Validate()
}

func (c *Config) Validate() error {
	switch c.Device {
	case DeviceV4L2, DeviceRTLSDR, DeviceHackRF, DeviceSim:
	case DeviceFile:
		if c.PlaybackLocation == "" {
			return fmt.Errorf("device %q requires playback_location", c.Device)
		}
	default:
		return fmt.Errorf("unknown device %q", c.Device)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.LevelInterval < 0 {
		return fmt.Errorf("level_interval must not be negative, got %d", c.LevelInterval)
	}
	if c.Listen == "" {
		return fmt.Errorf("listen address must be set")
	}
	return nil
}
