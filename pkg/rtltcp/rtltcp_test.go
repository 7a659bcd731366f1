package rtltcp

import (
	"bytes"
	"errors"
	"io"
	"reflect"
	"testing"
)

func TestHandshake(t *testing.T) {
	want := []byte{0x52, 0x54, 0x4c, 0x30, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0xff}
	got := Handshake()
	if !bytes.Equal(got[:], want) {
		t.Errorf("Handshake() = % x, want % x", got, want)
	}

	info := DecodeDongleInfo(got)
	if !info.Valid() {
		t.Errorf("DecodeDongleInfo() magic = %q, want %q", info.Magic, Magic)
	}
	if info.TunerType != DefaultTunerType || info.GainCount != DefaultGainCount {
		t.Errorf("DecodeDongleInfo() = %+v", info)
	}
}

func TestCommandEncodeDecode(t *testing.T) {
	tests := []struct {
		name  string
		cmd   Command
		bytes [CommandSize]byte
	}{
		{"set freq 100MHz", Command{SetFreq, 100000000}, [CommandSize]byte{0x01, 0x05, 0xf5, 0xe1, 0x00}},
		{"set freq 1", Command{SetFreq, 1}, [CommandSize]byte{0x01, 0x00, 0x00, 0x00, 0x01}},
		{"set sample rate", Command{SetSampleRate, 2048000}, [CommandSize]byte{0x02, 0x00, 0x1f, 0x40, 0x00}},
		{"gain index max", Command{SetTunerGainIndex, 0xffffffff}, [CommandSize]byte{0x0d, 0xff, 0xff, 0xff, 0xff}},
		{"unknown code", Command{0x42, 7}, [CommandSize]byte{0x42, 0x00, 0x00, 0x00, 0x07}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cmd.Encode(); got != tt.bytes {
				t.Errorf("Encode() = % x, want % x", got, tt.bytes)
			}
			if got := Decode(tt.bytes); !reflect.DeepEqual(got, tt.cmd) {
				t.Errorf("Decode() = %v, want %v", got, tt.cmd)
			}
		})
	}
}

// oneByteReader hands out a single byte per Read to exercise frame reassembly.
type oneByteReader struct {
	r io.Reader
}

func (o oneByteReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return o.r.Read(p[:1])
}

func TestReadCommand(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		want    []Command
		wantErr error
	}{
		{
			name:    "empty",
			input:   nil,
			wantErr: ErrConnectionClosed,
		},
		{
			name:    "one frame",
			input:   []byte{0x02, 0x00, 0x00, 0x00, 0x02},
			want:    []Command{{SetSampleRate, 2}},
			wantErr: ErrConnectionClosed,
		},
		{
			name:    "two frames",
			input:   []byte{0x01, 0x00, 0x00, 0x00, 0x01, 0x02, 0x00, 0x00, 0x00, 0x02},
			want:    []Command{{SetFreq, 1}, {SetSampleRate, 2}},
			wantErr: ErrConnectionClosed,
		},
		{
			name:    "trailing partial frame",
			input:   []byte{0x01, 0x00, 0x00, 0x00, 0x01, 0x02, 0x00},
			want:    []Command{{SetFreq, 1}},
			wantErr: ErrShortFrame,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := oneByteReader{bytes.NewReader(tt.input)}
			var got []Command
			var err error
			for {
				var cmd Command
				cmd, err = ReadCommand(r)
				if err != nil {
					break
				}
				got = append(got, cmd)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ReadCommand() = %v, want %v", got, tt.want)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ReadCommand() err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestWriteCommand(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCommand(&buf, Command{SetFreq, 100000000}); err != nil {
		t.Fatal(err)
	}
	cmd, err := ReadCommand(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if cmd.Code != SetFreq || cmd.Value != 100000000 {
		t.Errorf("round trip = %v", cmd)
	}
}

func TestCommandCodeString(t *testing.T) {
	tests := []struct {
		code CommandCode
		want string
	}{
		{SetFreq, "SET_FREQ"},
		{SetFreqCorrection, "SET_FREQ_COR"},
		{SetTunerGainIndex, "SET_TUNER_GAIN_INDEX"},
		{0x7f, "UNKNOWN(0x7f)"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.code.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}
