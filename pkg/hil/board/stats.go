package board

import (
	"sync/atomic"

	"github.com/robotalks/hil.go/pkg/hil/frame"
)

const numErrorKinds = int(frame.TransmitTimeout) + 1

// Stats are the board counters, updated from both the byte pump and the
// consumer loop.
type Stats struct {
	received   atomic.Uint64
	dispatched atomic.Uint64
	sent       atomic.Uint64
	errors     [numErrorKinds]atomic.Uint64
}

// StatsSnapshot is a copy of Stats.
type StatsSnapshot struct {
	FramesReceived   uint64
	FramesDispatched uint64
	ResponsesSent    uint64
	Errors           map[frame.ErrorKind]uint64
}

// Snapshot reads all counters.
func (s *Stats) Snapshot() StatsSnapshot {
	ss := StatsSnapshot{
		FramesReceived:   s.received.Load(),
		FramesDispatched: s.dispatched.Load(),
		ResponsesSent:    s.sent.Load(),
		Errors:           make(map[frame.ErrorKind]uint64),
	}
	for n := range s.errors {
		if v := s.errors[n].Load(); v != 0 {
			ss.Errors[frame.ErrorKind(n)] = v
		}
	}
	return ss
}

// Errors returns the count of one error kind.
func (s *Stats) Errors(kind frame.ErrorKind) uint64 {
	if kind <= 0 || int(kind) >= numErrorKinds {
		return 0
	}
	return s.errors[kind].Load()
}

func (s *Stats) countError(err error) {
	if kind := frame.KindOf(err); kind > 0 && int(kind) < numErrorKinds {
		s.errors[kind].Add(1)
	}
}
