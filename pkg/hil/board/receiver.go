package board

import (
	"context"

	"github.com/golang/glog"

	"github.com/robotalks/hil.go/pkg/hil/frame"
)

// Receiver assembles incoming bytes into frames and queues them for the
// Dispatcher. It is the only producer of the Ring.
type Receiver struct {
	Ring        *Ring
	Transmitter Transmitter
	Stats       *Stats
	// Notify is called after a frame is queued to wake the consumer.
	Notify func()

	parser frame.Parser
}

// State returns the reception state.
func (r *Receiver) State() frame.ReceptionState {
	return r.parser.State()
}

// HandleByte processes one received byte. The receiver is always ready
// for the next byte when it returns, whatever happened to this one.
func (r *Receiver) HandleByte(ctx context.Context, b byte) {
	pr := r.parser.Parse(b)
	if pr.State != frame.Complete {
		return
	}
	f := *pr.Frame
	if r.Stats != nil {
		r.Stats.received.Add(1)
	}
	if !f.MarkersValid() {
		r.reject(ctx, &frame.ProtocolError{Kind: frame.MalformedFrame, Frame: f})
		return
	}
	if !r.Ring.Enqueue(f) {
		r.reject(ctx, &frame.ProtocolError{Kind: frame.BufferFull, Frame: f})
		return
	}
	glog.V(2).Infof("queued %s", f)
	if r.Notify != nil {
		r.Notify()
	}
}

// reject answers a frame which never reaches the Dispatcher. Nothing of
// the request is trusted at this point so the response is zeroed.
func (r *Receiver) reject(ctx context.Context, err error) {
	glog.Warningf("drop frame: %v", err)
	if r.Stats != nil {
		r.Stats.countError(err)
	}
	resp := frame.New(frame.StatusError, 0, 0, 0)
	if err := r.Transmitter.Send(ctx, resp); err != nil {
		glog.Warningf("send error response: %v", err)
		if r.Stats != nil {
			r.Stats.countError(err)
		}
		return
	}
	if r.Stats != nil {
		r.Stats.sent.Add(1)
	}
}
