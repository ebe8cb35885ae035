package board

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/robotalks/hil.go/pkg/hil/frame"
)

// DefaultTxTimeout bounds the transmission of one response.
const DefaultTxTimeout = 100 * time.Millisecond

// Transmitter sends response frames.
type Transmitter interface {
	Send(context.Context, frame.Frame) error
}

// Sender writes frames to the link one at a time.
// A frame not written within Timeout is dropped and reported as
// TransmitTimeout. There is no retry.
type Sender struct {
	Writer  io.Writer
	Timeout time.Duration

	busyOnce sync.Once
	busy     chan struct{}
}

// NewSender creates a Sender with the default timeout.
func NewSender(w io.Writer) *Sender {
	return &Sender{Writer: w, Timeout: DefaultTxTimeout}
}

// Send implements Transmitter.
func (s *Sender) Send(ctx context.Context, f frame.Frame) error {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTxTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// a write stuck on the link holds busy until it returns, later frames
	// time out waiting for it.
	s.busyOnce.Do(func() { s.busy = make(chan struct{}, 1) })
	select {
	case s.busy <- struct{}{}:
	case <-ctx.Done():
		return s.failed(ctx, f)
	}
	done := make(chan error, 1)
	go func() {
		_, err := f.WriteTo(s.Writer)
		<-s.busy
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return s.failed(ctx, f)
	}
}

func (s *Sender) failed(ctx context.Context, f frame.Frame) error {
	if ctx.Err() == context.DeadlineExceeded {
		return &frame.ProtocolError{Kind: frame.TransmitTimeout, Frame: f}
	}
	return ctx.Err()
}
