// Package board implements the HIL board side of the protocol.
package board

import (
	"io"

	"github.com/robotalks/hil.go/pkg/framework"
)

// Board wires reception, dispatching and transmission over one link.
//
// The Port goroutine plays the receive interrupt: it is the only
// producer of the Ring. The Dispatcher runs as a controller in the loop
// and is the only consumer.
type Board struct {
	Ring       Ring
	Stats      Stats
	Sender     *Sender
	Receiver   *Receiver
	Dispatcher *Dispatcher
	Port       *Port
}

// New creates a Board over link.
func New(link io.ReadWriter, signals Signals, sampler Sampler) *Board {
	b := &Board{Sender: NewSender(link)}
	b.Receiver = &Receiver{Ring: &b.Ring, Transmitter: b.Sender, Stats: &b.Stats}
	b.Dispatcher = &Dispatcher{
		Ring:        &b.Ring,
		Transmitter: b.Sender,
		Signals:     signals,
		Sampler:     sampler,
		Stats:       &b.Stats,
	}
	b.Port = &Port{Reader: link, Receiver: b.Receiver}
	return b
}

// AddToLoop implements framework.LoopAdder.
func (b *Board) AddToLoop(l *framework.Loop) {
	b.Receiver.Notify = l.TriggerNext
	l.AddController(framework.PrLvDispatch, b.Dispatcher)
	l.AddRunnable(framework.NamedRun("port", b.Port))
}
