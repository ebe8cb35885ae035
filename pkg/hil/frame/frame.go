package frame

import (
	"fmt"
	"io"
)

// Markers delimiting every frame.
const (
	StartMarker byte = 0xAA
	EndMarker   byte = 0x55
)

// Size is the encoded size of a frame in bytes.
const Size = 8

// Request commands.
const (
	CmdGet  byte = 'G'
	CmdSet  byte = 'S'
	CmdPing byte = 'P'
)

// Response status codes. A successful GET answers with the channel
// code of the request instead of StatusOK.
const (
	StatusOK    byte = 'O'
	StatusError byte = 'N'
)

// Channel selectors.
const (
	Channel1      byte = '1'
	Channel2      byte = '2'
	Channel3      byte = '3'
	ChannelSystem byte = 'S'
)

// NumChannels is the number of light channels.
const NumChannels = 3

// Signal types.
const (
	SignalPWMInput    byte = 'P'
	SignalCurrent     byte = 'C'
	SignalTemperature byte = 'T'
	SignalSystem      byte = 'S'
)

// FirmwareVersion is reported by PING, major in the high byte.
const FirmwareVersion uint16 = 0x0100

// Frame is one protocol unit.
type Frame struct {
	Start    byte
	Command  byte
	Channel  byte
	Signal   byte
	Value    uint16
	Checksum byte
	End      byte
}

// New creates a sealed frame.
func New(cmd, channel, signal byte, value uint16) Frame {
	f := Frame{Command: cmd, Channel: channel, Signal: signal, Value: value}
	f.Seal()
	return f
}

// Checksum computes the XOR checksum over the payload fields.
func Checksum(cmd, channel, signal byte, value uint16) byte {
	return cmd ^ channel ^ signal ^ byte(value) ^ byte(value>>8)
}

// Sum computes the checksum of the frame payload.
func (f Frame) Sum() byte {
	return Checksum(f.Command, f.Channel, f.Signal, f.Value)
}

// Seal sets both markers and recomputes the checksum.
func (f *Frame) Seal() {
	f.Start, f.End = StartMarker, EndMarker
	f.Checksum = f.Sum()
}

// MarkersValid checks start and end markers.
func (f Frame) MarkersValid() bool {
	return f.Start == StartMarker && f.End == EndMarker
}

// ChecksumValid checks the carried checksum against the payload.
func (f Frame) ChecksumValid() bool {
	return f.Checksum == f.Sum()
}

// Valid indicates both markers and checksum are correct.
func (f Frame) Valid() bool {
	return f.MarkersValid() && f.ChecksumValid()
}

// WithStatus returns a sealed copy of the frame with the command
// replaced by status.
func (f Frame) WithStatus(status byte) Frame {
	f.Command = status
	f.Seal()
	return f
}

// Put encodes the frame into b which must hold at least Size bytes.
func (f Frame) Put(b []byte) {
	_ = b[Size-1]
	b[0] = f.Start
	b[1] = f.Command
	b[2] = f.Channel
	b[3] = f.Signal
	b[4] = byte(f.Value)
	b[5] = byte(f.Value >> 8)
	b[6] = f.Checksum
	b[7] = f.End
}

// Bytes returns encoded bytes for sending.
func (f Frame) Bytes() []byte {
	b := make([]byte, Size)
	f.Put(b)
	return b
}

// WriteTo writes encoded bytes.
func (f Frame) WriteTo(w io.Writer) (int64, error) {
	var b [Size]byte
	f.Put(b[:])
	n, err := w.Write(b[:])
	return int64(n), err
}

// Decode decodes exactly Size bytes into a frame. Markers and checksum
// are not validated.
func Decode(b []byte) (Frame, error) {
	if len(b) != Size {
		return Frame{}, ErrFrameSize
	}
	return Frame{
		Start:    b[0],
		Command:  b[1],
		Channel:  b[2],
		Signal:   b[3],
		Value:    uint16(b[4]) | uint16(b[5])<<8,
		Checksum: b[6],
		End:      b[7],
	}, nil
}

// ChannelIndex resolves a channel code to a zero-based light index.
func ChannelIndex(channel byte) (int, bool) {
	idx := channel - Channel1
	return int(idx), idx < NumChannels
}

// ChannelCode converts a zero-based light index to its channel code.
func ChannelCode(index int) byte {
	return Channel1 + byte(index)
}

// String implements fmt.Stringer.
func (f Frame) String() string {
	return fmt.Sprintf("%s %s %s %d (sum=%02x)",
		printable(f.Command), printable(f.Channel), printable(f.Signal), f.Value, f.Checksum)
}

func printable(b byte) string {
	if b >= 0x20 && b < 0x7f {
		return string(rune(b))
	}
	return fmt.Sprintf("0x%02x", b)
}
