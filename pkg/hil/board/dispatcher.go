package board

import (
	"context"

	"github.com/golang/glog"

	"github.com/robotalks/hil.go/pkg/analog"
	"github.com/robotalks/hil.go/pkg/framework"
	"github.com/robotalks/hil.go/pkg/hil/frame"
)

// Signals is the simulated analog feedback. Getters return analog.Invalid
// for an invalid channel.
type Signals interface {
	SetCurrent(ch int, milliamps uint16) bool
	CurrentPWM(ch int) uint16
	SetTemperature(ch int, tenths uint16) bool
	TemperaturePWM(ch int) uint16
}

// Sampler provides captured duty cycles. Take must read and clear the
// ready flag in one step.
type Sampler interface {
	Take(ch int) (uint16, bool)
}

// ExchangeMsg is posted to the loop for every answered frame.
type ExchangeMsg struct {
	Request  frame.Frame
	Response frame.Frame
	// Err is the protocol error answered, nil for success.
	Err error
	// Sent is false when the response was dropped.
	Sent bool
}

// NewMessage implements framework.Message.
func (m *ExchangeMsg) NewMessage() framework.Message {
	return &ExchangeMsg{}
}

// Dispatcher services queued frames. It is the only consumer of the Ring.
type Dispatcher struct {
	Ring        *Ring
	Transmitter Transmitter
	Signals     Signals
	Sampler     Sampler
	Stats       *Stats
}

// Handle computes the response to a request. Exactly one response is
// produced for every request and its checksum is always freshly computed.
func (d *Dispatcher) Handle(req frame.Frame) frame.Frame {
	resp, _ := d.handle(req)
	return resp
}

// Drain services frames until the ring is empty and returns exchanges
// in the order they were answered.
func (d *Dispatcher) Drain(ctx context.Context) []*ExchangeMsg {
	var exchanges []*ExchangeMsg
	for {
		if n := d.Ring.Len(); n > RingCapacity {
			glog.Errorf("ring overflow (%d frames), reset", n)
			d.Ring.Reset()
			return exchanges
		}
		req, ok := d.Ring.Dequeue()
		if !ok {
			return exchanges
		}
		exchanges = append(exchanges, d.serve(ctx, req))
	}
}

// Control implements framework.Controller.
func (d *Dispatcher) Control(cc framework.ControlContext) error {
	exchanges := d.Drain(cc.Context())
	if len(exchanges) == 0 {
		return nil
	}
	msgs := make([]framework.Message, len(exchanges))
	for n, x := range exchanges {
		msgs[n] = x
	}
	cc.Messages().AddMessages(msgs...)
	return nil
}

func (d *Dispatcher) serve(ctx context.Context, req frame.Frame) *ExchangeMsg {
	resp, err := d.handle(req)
	x := &ExchangeMsg{Request: req, Response: resp, Err: err}
	if d.Stats != nil {
		d.Stats.dispatched.Add(1)
	}
	if err != nil {
		glog.V(2).Infof("request error: %v", err)
		d.countError(err)
	}
	if err := d.Transmitter.Send(ctx, resp); err != nil {
		glog.Warningf("send response %s: %v", resp, err)
		d.countError(err)
		return x
	}
	x.Sent = true
	if d.Stats != nil {
		d.Stats.sent.Add(1)
	}
	return x
}

func (d *Dispatcher) countError(err error) {
	if d.Stats != nil {
		d.Stats.countError(err)
	}
}

func (d *Dispatcher) handle(req frame.Frame) (frame.Frame, error) {
	if !req.ChecksumValid() {
		return reject(req, frame.ChecksumMismatch)
	}
	switch req.Command {
	case frame.CmdPing:
		return frame.New(frame.StatusOK, frame.ChannelSystem, frame.SignalSystem, frame.FirmwareVersion), nil
	case frame.CmdGet:
		ch, ok := frame.ChannelIndex(req.Channel)
		if !ok {
			return reject(req, frame.InvalidChannel)
		}
		return d.get(req, ch)
	case frame.CmdSet:
		ch, ok := frame.ChannelIndex(req.Channel)
		if !ok {
			return reject(req, frame.InvalidChannel)
		}
		return d.set(req, ch)
	}
	return reject(req, frame.UnknownCommand)
}

func (d *Dispatcher) get(req frame.Frame, ch int) (frame.Frame, error) {
	var value uint16
	switch req.Signal {
	case frame.SignalPWMInput:
		duty, ok := d.Sampler.Take(ch)
		if !ok {
			return reject(req, frame.UnreadableSample)
		}
		value = duty
	case frame.SignalCurrent:
		if value = d.Signals.CurrentPWM(ch); value == analog.Invalid {
			return reject(req, frame.InvalidChannel)
		}
	case frame.SignalTemperature:
		if value = d.Signals.TemperaturePWM(ch); value == analog.Invalid {
			return reject(req, frame.InvalidChannel)
		}
	default:
		return reject(req, frame.InvalidSignalForOperation)
	}
	return frame.New(req.Channel, req.Channel, req.Signal, value), nil
}

func (d *Dispatcher) set(req frame.Frame, ch int) (frame.Frame, error) {
	var ok bool
	switch req.Signal {
	case frame.SignalCurrent:
		ok = d.Signals.SetCurrent(ch, req.Value)
	case frame.SignalTemperature:
		ok = d.Signals.SetTemperature(ch, req.Value)
	default:
		// PWM input is capture only.
		return reject(req, frame.InvalidSignalForOperation)
	}
	if !ok {
		return reject(req, frame.SignalRejected)
	}
	return req.WithStatus(frame.StatusOK), nil
}

func reject(req frame.Frame, kind frame.ErrorKind) (frame.Frame, error) {
	return req.WithStatus(frame.StatusError), &frame.ProtocolError{Kind: kind, Frame: req}
}
