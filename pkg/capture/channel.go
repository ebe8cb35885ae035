package capture

import "sync/atomic"

// EdgeState is the edge a channel waits for.
type EdgeState int

// Edge states
const (
	AwaitingRising EdgeState = iota
	AwaitingFalling
)

const (
	readyBit uint32 = 1 << 31
	dutyMask uint32 = 0xffff
)

// Snapshot is a non-consuming view of a channel.
type Snapshot struct {
	PulseWidth uint32
	Period     uint32
	Duty       uint16
	Ready      bool
	Samples    uint64
}

type channel struct {
	// written by the edge handler only.
	state      EdgeState
	lastRising uint32
	hasRising  bool

	pulseWidth atomic.Uint32
	period     atomic.Uint32
	// duty in the low 16 bits, readyBit set while a sample is unread.
	published atomic.Uint32
	samples   atomic.Uint64
}

func (c *channel) reset() {
	c.state, c.lastRising, c.hasRising = AwaitingRising, 0, false
	c.pulseWidth.Store(0)
	c.period.Store(0)
	c.published.Store(0)
	c.samples.Store(0)
}

func (c *channel) rising(ts, counterMax uint32) {
	if c.hasRising {
		c.period.Store(Elapsed(c.lastRising, ts, counterMax))
	}
	c.lastRising, c.hasRising = ts, true
	c.state = AwaitingFalling
}

func (c *channel) falling(ts, counterMax, scale uint32) {
	if c.state != AwaitingFalling {
		// no rising edge to pair with.
		return
	}
	c.state = AwaitingRising
	pw := Elapsed(c.lastRising, ts, counterMax)
	c.pulseWidth.Store(pw)
	period := c.period.Load()
	if period == 0 {
		return
	}
	duty := uint64(pw) * uint64(scale) / uint64(period)
	if duty > uint64(dutyMask) {
		duty = uint64(dutyMask)
	}
	c.published.Store(readyBit | uint32(duty))
	c.samples.Add(1)
}

func (c *channel) take() (uint16, bool) {
	for {
		v := c.published.Load()
		if v&readyBit == 0 {
			return 0, false
		}
		if c.published.CompareAndSwap(v, v&^readyBit) {
			return uint16(v & dutyMask), true
		}
	}
}

func (c *channel) snapshot() Snapshot {
	v := c.published.Load()
	return Snapshot{
		PulseWidth: c.pulseWidth.Load(),
		Period:     c.period.Load(),
		Duty:       uint16(v & dutyMask),
		Ready:      v&readyBit != 0,
		Samples:    c.samples.Load(),
	}
}
