package sim

import (
	"context"
	"time"

	"github.com/robotalks/hil.go/pkg/capture"
)

// EdgeHandler consumes captured edges.
type EdgeHandler interface {
	HandleEdge(ch int, timestamp uint32, p capture.Polarity) error
}

// PWMSource generates the PWM signal of one channel as a sequence of
// edges on the Timer's counter. Like capture hardware, an edge whose
// polarity the channel is not armed for is missed.
type PWMSource struct {
	Channel     int
	PeriodTicks uint32
	HighTicks   uint32
	Timer       *Timer
	Handler     EdgeHandler
	// Interval paces edges in Run.
	Interval time.Duration

	counter uint32
	high    bool
	missed  uint64
}

// SetDuty sets HighTicks from a duty in units of scale, 0 means
// capture.DutyScale.
func (s *PWMSource) SetDuty(duty, scale uint32) {
	if scale == 0 {
		scale = capture.DutyScale
	}
	s.HighTicks = uint32(uint64(s.PeriodTicks) * uint64(duty) / uint64(scale))
}

// Counter returns the timestamp of the next edge.
func (s *PWMSource) Counter() uint32 {
	return s.counter
}

// Missed returns the number of edges the channel was not armed for.
func (s *PWMSource) Missed() uint64 {
	return s.missed
}

// Step produces one edge and advances the counter to the next one.
func (s *PWMSource) Step() error {
	p, ticks := capture.Rising, s.HighTicks
	if s.high {
		p, ticks = capture.Falling, s.PeriodTicks-s.HighTicks
	}
	ts := s.counter
	s.high = !s.high
	s.counter = uint32((uint64(s.counter) + uint64(ticks)) % (uint64(s.Timer.CounterMax()) + 1))
	if s.Timer.Polarity(s.Channel) != p {
		s.missed++
		return nil
	}
	return s.Handler.HandleEdge(s.Channel, ts, p)
}

// Run produces edges every Interval until ctx is done.
func (s *PWMSource) Run(ctx context.Context) error {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Step(); err != nil {
				return err
			}
		}
	}
}
