// Package capture decodes PWM signals from edge timestamps.
package capture

import (
	"errors"
	"sync/atomic"
)

// NumChannels is the number of capture channels.
const NumChannels = 3

// DutyScale is the default duty unit: 100 means percent.
const DutyScale = 100

// Polarity is the edge polarity a channel captures.
type Polarity int

// Polarities
const (
	Rising Polarity = iota
	Falling
)

// Opposite returns the other polarity.
func (p Polarity) Opposite() Polarity {
	if p == Rising {
		return Falling
	}
	return Rising
}

// String implements fmt.Stringer.
func (p Polarity) String() string {
	if p == Rising {
		return "rising"
	}
	return "falling"
}

// Timer is the capture hardware driving the edges.
type Timer interface {
	// CounterMax returns the maximum counter value before it wraps to 0.
	CounterMax() uint32
	// SetPolarity programs the polarity of the next captured edge.
	SetPolarity(ch int, p Polarity) error
}

var (
	// ErrInvalidChannel indicates the channel index is out of range.
	ErrInvalidChannel = errors.New("invalid capture channel")
)

// Engine holds the capture state of all channels.
// HandleEdge for a channel must only be called from one goroutine at a
// time; different channels may be driven concurrently. Take and
// Snapshot are safe from any goroutine.
type Engine struct {
	Timer Timer
	// Scale is the duty unit, e.g. 100 for percent.
	Scale uint32

	running  atomic.Bool
	channels [NumChannels]channel
}

// NewEngine creates an Engine with default scale.
func NewEngine(timer Timer) *Engine {
	return &Engine{Timer: timer, Scale: DutyScale}
}

// Start arms every channel for a rising edge and accepts edges.
func (e *Engine) Start() error {
	for n := range e.channels {
		e.channels[n].state = AwaitingRising
		if err := e.Timer.SetPolarity(n, Rising); err != nil {
			return err
		}
	}
	e.running.Store(true)
	return nil
}

// Stop ignores further edges. State is kept.
func (e *Engine) Stop() {
	e.running.Store(false)
}

// Reset clears all channel state. It must not race with HandleEdge.
func (e *Engine) Reset() {
	for n := range e.channels {
		e.channels[n].reset()
	}
}

// HandleEdge processes one captured edge and reprograms the timer for
// the opposite polarity.
func (e *Engine) HandleEdge(ch int, timestamp uint32, p Polarity) error {
	if ch < 0 || ch >= NumChannels {
		return ErrInvalidChannel
	}
	if !e.running.Load() {
		return nil
	}
	c := &e.channels[ch]
	counterMax := e.Timer.CounterMax()
	switch p {
	case Rising:
		c.rising(timestamp, counterMax)
	case Falling:
		c.falling(timestamp, counterMax, e.scale())
	}
	return e.Timer.SetPolarity(ch, p.Opposite())
}

// Take returns the latest duty of a channel if a sample is ready and
// clears the ready flag in the same atomic step.
func (e *Engine) Take(ch int) (uint16, bool) {
	if ch < 0 || ch >= NumChannels {
		return 0, false
	}
	return e.channels[ch].take()
}

// Snapshot reads a channel without consuming its sample.
func (e *Engine) Snapshot(ch int) (Snapshot, error) {
	if ch < 0 || ch >= NumChannels {
		return Snapshot{}, ErrInvalidChannel
	}
	return e.channels[ch].snapshot(), nil
}

func (e *Engine) scale() uint32 {
	if e.Scale == 0 {
		return DutyScale
	}
	return e.Scale
}

// Elapsed computes ticks from one timestamp to a later one on a counter
// which wraps after counterMax.
func Elapsed(from, to, counterMax uint32) uint32 {
	if to >= from {
		return to - from
	}
	return uint32(uint64(counterMax) + 1 - uint64(from) + uint64(to))
}
