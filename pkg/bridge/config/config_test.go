package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		check   func(t *testing.T, c Config)
		wantErr bool
	}{
		{
			name: "defaults",
			yaml: ``,
			check: func(t *testing.T, c Config) {
				if c.Listen != ":1234" || c.Device != DeviceV4L2 || c.DevicePath != "/dev/swradio0" || c.ChunkSize != 262144 {
					t.Errorf("defaults = %+v", c)
				}
			},
		},
		{
			name: "full",
			yaml: `
listen: "127.0.0.1:7373"
device: rtlsdr
rtlsdr_device_index: 2
chunk_size: 16384
level_interval: 8
playback_interval: 5ms
status_server:
  port: 8080
influxdb:
  host: http://localhost:8086
  organization: radio
  bucket: bridge
`,
			check: func(t *testing.T, c Config) {
				if c.Listen != "127.0.0.1:7373" || c.Device != DeviceRTLSDR || c.RTLSDRDeviceIndex != 2 {
					t.Errorf("device settings = %+v", c)
				}
				if c.ChunkSize != 16384 || c.LevelInterval != 8 || c.PlaybackInterval != 5*time.Millisecond {
					t.Errorf("stream settings = %+v", c)
				}
				if c.StatusServer.Port != 8080 || c.InfluxDB.Bucket != "bridge" {
					t.Errorf("ambient settings = %+v", c)
				}
			},
		},
		{
			name: "playback forces file device",
			yaml: `playback_location: /tmp/capture.u8`,
			check: func(t *testing.T, c Config) {
				if c.Device != DeviceFile {
					t.Errorf("Device = %q, want %q", c.Device, DeviceFile)
				}
			},
		},
		{
			name:    "unknown device",
			yaml:    `device: airspy`,
			wantErr: true,
		},
		{
			name:    "file without playback",
			yaml:    `device: file`,
			wantErr: true,
		},
		{
			name:    "zero chunk",
			yaml:    `chunk_size: 0`,
			wantErr: true,
		},
		{
			name:    "unknown key",
			yaml:    `lisen: ":1"`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			err := Parse([]byte(tt.yaml), &c)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, c)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	c, err := Load(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() of missing file = %v", err)
	}
	if c.Listen != DefaultListen {
		t.Errorf("Listen = %q", c.Listen)
	}

	path := filepath.Join(dir, "rtlbridge.yaml")
	if err := os.WriteFile(path, []byte("device: sim\nlisten: \":0\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err = Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Device != DeviceSim || c.Listen != ":0" {
		t.Errorf("Load() = %+v", c)
	}
}
