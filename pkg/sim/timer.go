// Package sim provides simulated hardware for running the board without
// a microcontroller.
package sim

import (
	"sync"

	"github.com/robotalks/hil.go/pkg/capture"
)

// Timer is a simulated input capture timer.
type Timer struct {
	Max uint32

	lock     sync.RWMutex
	polarity [capture.NumChannels]capture.Polarity
}

// NewTimer creates a Timer with a counter wrapping after max.
func NewTimer(max uint32) *Timer {
	return &Timer{Max: max}
}

// CounterMax implements capture.Timer.
func (t *Timer) CounterMax() uint32 {
	return t.Max
}

// SetPolarity implements capture.Timer.
func (t *Timer) SetPolarity(ch int, p capture.Polarity) error {
	if ch < 0 || ch >= capture.NumChannels {
		return capture.ErrInvalidChannel
	}
	t.lock.Lock()
	t.polarity[ch] = p
	t.lock.Unlock()
	return nil
}

// Polarity returns the edge polarity a channel is armed for.
func (t *Timer) Polarity(ch int) capture.Polarity {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.polarity[ch]
}
