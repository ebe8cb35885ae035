package frame

import (
	"errors"
	"fmt"
)

var (
	// ErrFrameSize indicates a buffer is not exactly one frame.
	ErrFrameSize = errors.New("invalid frame size")
)

// ErrorKind classifies protocol errors.
type ErrorKind int

// Protocol error kinds.
const (
	MalformedFrame ErrorKind = iota + 1
	ChecksumMismatch
	InvalidChannel
	InvalidSignalForOperation
	UnreadableSample
	SignalRejected
	UnknownCommand
	BufferFull
	TransmitTimeout
)

var errorKindNames = map[ErrorKind]string{
	MalformedFrame:            "malformed frame",
	ChecksumMismatch:          "checksum mismatch",
	InvalidChannel:            "invalid channel",
	InvalidSignalForOperation: "invalid signal for operation",
	UnreadableSample:          "no sample yet",
	SignalRejected:            "signal value rejected",
	UnknownCommand:            "unknown command",
	BufferFull:                "buffer full",
	TransmitTimeout:           "transmit timeout",
}

// String implements fmt.Stringer.
func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("error kind %d", int(k))
}

// ProtocolError is an error answered with an ERROR response.
type ProtocolError struct {
	Kind  ErrorKind
	Frame Frame
}

// Error implements error.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Frame)
}

// Is matches protocol errors of the same kind.
func (e *ProtocolError) Is(target error) bool {
	t, ok := target.(*ProtocolError)
	return ok && t.Kind == e.Kind
}

// KindOf extracts the ErrorKind of err, or 0 if err is not a ProtocolError.
func KindOf(err error) ErrorKind {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}
