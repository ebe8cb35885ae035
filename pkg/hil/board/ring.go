package board

import (
	"sync/atomic"

	"github.com/robotalks/hil.go/pkg/hil/frame"
)

// RingCapacity is the number of frames the ring holds.
const RingCapacity = 16

// Ring is a single-producer single-consumer frame queue.
// Only the Receiver enqueues and only the Dispatcher dequeues. head is
// owned by the consumer, tail by the producer; count is the only shared
// field and publishes the slot write to the other side.
type Ring struct {
	slots [RingCapacity]frame.Frame
	head  int
	tail  int
	count atomic.Int32
}

// Enqueue appends a frame. It returns false and changes nothing when the
// ring is full.
func (r *Ring) Enqueue(f frame.Frame) bool {
	if r.count.Load() >= RingCapacity {
		return false
	}
	r.slots[r.tail] = f
	r.tail = (r.tail + 1) % RingCapacity
	r.count.Add(1)
	return true
}

// Dequeue removes the oldest frame.
func (r *Ring) Dequeue() (f frame.Frame, ok bool) {
	if r.count.Load() <= 0 {
		return
	}
	f, ok = r.slots[r.head], true
	r.head = (r.head + 1) % RingCapacity
	r.count.Add(-1)
	return
}

// Len returns the number of queued frames.
func (r *Ring) Len() int {
	return int(r.count.Load())
}

// Reset empties the ring. It must not race with Enqueue.
func (r *Ring) Reset() {
	r.head, r.tail = 0, 0
	r.count.Store(0)
}
