package host

import (
	"errors"
	"fmt"

	"github.com/robotalks/hil.go/pkg/hil/frame"
)

var (
	// ErrNoResponse indicates the board did not answer in time.
	ErrNoResponse = errors.New("no response")
	// ErrCorruptResponse indicates a response with bad markers or checksum.
	ErrCorruptResponse = errors.New("corrupt response")
)

// ResponseError wraps an ERROR response.
type ResponseError struct {
	Request  frame.Frame
	Response frame.Frame
}

// Error implements error.
func (e *ResponseError) Error() string {
	return fmt.Sprintf("request %s failed", e.Request)
}

// UnexpectedResponseError is a successful response which does not
// answer the request.
type UnexpectedResponseError struct {
	Response frame.Frame
}

// Error implements error.
func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("unexpected response %s", e.Response)
}
