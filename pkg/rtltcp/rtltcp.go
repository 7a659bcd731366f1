// Package rtltcp implements the wire format spoken by rtl_tcp: a 12 byte
// dongle info banner sent by the server and 5 byte command frames sent by
// the client.
package rtltcp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	CommandSize   = 5
	HandshakeSize = 12

	DefaultTunerType = 1
	DefaultGainCount = 0xff
)

var (
	ErrConnectionClosed = errors.New("rtltcp: connection closed")
	ErrShortFrame       = errors.New("rtltcp: short command frame")
)

var Magic = [4]byte{'R', 'T', 'L', '0'}

type CommandCode uint8

// Command codes as defined by rtl_tcp.c.
const (
	SetFreq           CommandCode = 0x01
	SetSampleRate     CommandCode = 0x02
	SetTunerGainMode  CommandCode = 0x03
	SetGain           CommandCode = 0x04
	SetFreqCorrection CommandCode = 0x05
	SetTunerIFGain    CommandCode = 0x06
	SetTestMode       CommandCode = 0x07
	SetAGCMode        CommandCode = 0x08
	SetDirectSampling CommandCode = 0x09
	SetOffsetTuning   CommandCode = 0x0a
	SetRTLXtalFreq    CommandCode = 0x0b
	SetTunerXtalFreq  CommandCode = 0x0c
	SetTunerGainIndex CommandCode = 0x0d
	SetBiasTee        CommandCode = 0x0e
)

var commandNames = map[CommandCode]string{
	SetFreq:           "SET_FREQ",
	SetSampleRate:     "SET_SAMPLE_RATE",
	SetTunerGainMode:  "SET_TUNER_GAIN_MODE",
	SetGain:           "SET_GAIN",
	SetFreqCorrection: "SET_FREQ_COR",
	SetTunerIFGain:    "SET_TUNER_IF_GAIN",
	SetTestMode:       "SET_TEST_MODE",
	SetAGCMode:        "SET_AGC_MODE",
	SetDirectSampling: "SET_DIRECT_SAMPLING",
	SetOffsetTuning:   "SET_OFFSET_TUNING",
	SetRTLXtalFreq:    "SET_RTL_XTAL",
	SetTunerXtalFreq:  "SET_TUNER_XTAL",
	SetTunerGainIndex: "SET_TUNER_GAIN_INDEX",
	SetBiasTee:        "SET_BIAS_TEE",
}

func (c CommandCode) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(0x%02x)", uint8(c))
}

type Command struct {
	Code  CommandCode
	Value uint32
}

func (c Command) String() string {
	return fmt.Sprintf("%s %d", c.Code, c.Value)
}

// Encode lays the command out as code byte followed by the big-endian value.
func (c Command) Encode() [CommandSize]byte {
	var b [CommandSize]byte
	b[0] = byte(c.Code)
	binary.BigEndian.PutUint32(b[1:], c.Value)
	return b
}

func Decode(b [CommandSize]byte) Command {
	return Command{
		Code:  CommandCode(b[0]),
		Value: binary.BigEndian.Uint32(b[1:]),
	}
}

// ReadCommand blocks until a full frame has been read from r. A clean EOF
// before the first byte is ErrConnectionClosed, an EOF partway through a frame
// is ErrShortFrame.
func ReadCommand(r io.Reader) (Command, error) {
	var b [CommandSize]byte
	_, err := io.ReadFull(r, b[:])
	switch {
	case err == io.EOF:
		return Command{}, ErrConnectionClosed
	case err == io.ErrUnexpectedEOF:
		return Command{}, ErrShortFrame
	case err != nil:
		return Command{}, err
	}
	return Decode(b), nil
}

func WriteCommand(w io.Writer, c Command) error {
	b := c.Encode()
	_, err := w.Write(b[:])
	return err
}

// DongleInfo is the banner a server sends as soon as a client connects.
type DongleInfo struct {
	Magic     [4]byte
	TunerType uint32
	GainCount uint32
}

func (d DongleInfo) Valid() bool {
	return d.Magic == Magic
}

func (d DongleInfo) Encode() [HandshakeSize]byte {
	var b [HandshakeSize]byte
	copy(b[:4], d.Magic[:])
	binary.BigEndian.PutUint32(b[4:8], d.TunerType)
	binary.BigEndian.PutUint32(b[8:12], d.GainCount)
	return b
}

func DecodeDongleInfo(b [HandshakeSize]byte) DongleInfo {
	var d DongleInfo
	copy(d.Magic[:], b[:4])
	d.TunerType = binary.BigEndian.Uint32(b[4:8])
	d.GainCount = binary.BigEndian.Uint32(b[8:12])
	return d
}

// Handshake returns the fixed banner announced by the bridge.
func Handshake() [HandshakeSize]byte {
	return DongleInfo{
		Magic:     Magic,
		TunerType: DefaultTunerType,
		GainCount: DefaultGainCount,
	}.Encode()
}

func WriteHandshake(w io.Writer) error {
	b := Handshake()
	_, err := w.Write(b[:])
	return err
}
