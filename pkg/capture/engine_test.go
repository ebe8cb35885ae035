package capture

import (
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeTimer struct {
	max      uint32
	polarity [NumChannels]Polarity
}

func (t *fakeTimer) CounterMax() uint32 { return t.max }

func (t *fakeTimer) SetPolarity(ch int, p Polarity) error {
	t.polarity[ch] = p
	return nil
}

type edge struct {
	ts uint32
	p  Polarity
}

func rise(ts uint32) edge { return edge{ts, Rising} }
func fall(ts uint32) edge { return edge{ts, Falling} }

func newStartedEngine(t *testing.T) (*Engine, *fakeTimer) {
	timer := &fakeTimer{max: 0xffff}
	e := NewEngine(timer)
	require.NoError(t, e.Start())
	return e, timer
}

func feed(t *testing.T, e *Engine, ch int, edges ...edge) {
	for _, ed := range edges {
		require.NoError(t, e.HandleEdge(ch, ed.ts, ed.p))
	}
}

func TestElapsed(t *testing.T) {
	testCases := []struct {
		name     string
		from, to uint32
		max      uint32
		expect   uint32
	}{
		{"forward", 1000, 1500, 0xffff, 500},
		{"same", 42, 42, 0xffff, 0},
		{"wrap 16 bit", 65000, 300, 0xffff, 836},
		{"wrap at max", 0xffff, 0, 0xffff, 1},
		{"wrap 32 bit", 0xfffffff0, 0x10, 0xffffffff, 0x20},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expect, Elapsed(tc.from, tc.to, tc.max))
		})
	}
}

func TestCaptureNoWraparound(t *testing.T) {
	e, _ := newStartedEngine(t)
	feed(t, e, 0, rise(1000), fall(1500), rise(3000))
	s, err := e.Snapshot(0)
	require.NoError(t, err)
	require.Equal(t, uint32(500), s.PulseWidth)
	require.Equal(t, uint32(2000), s.Period)
	// first falling edge had no period yet.
	require.False(t, s.Ready)
	_, ok := e.Take(0)
	require.False(t, ok)

	feed(t, e, 0, fall(3500))
	duty, ok := e.Take(0)
	require.True(t, ok)
	require.Equal(t, uint16(500*DutyScale/2000), duty)
}

func TestCaptureWraparound(t *testing.T) {
	e, _ := newStartedEngine(t)
	feed(t, e, 1, rise(65000), fall(300))
	s, err := e.Snapshot(1)
	require.NoError(t, err)
	require.Equal(t, uint32(836), s.PulseWidth)

	// period across the wrap: 65000 -> 64000 next lap is 65536-1000.
	feed(t, e, 1, rise(64000), fall(64836))
	s, _ = e.Snapshot(1)
	require.Equal(t, uint32(64536), s.Period)
	require.Equal(t, uint32(836), s.PulseWidth)
	duty, ok := e.Take(1)
	require.True(t, ok)
	require.Equal(t, uint16(836*DutyScale/64536), duty)
}

func TestTakeClearsReady(t *testing.T) {
	e, _ := newStartedEngine(t)
	feed(t, e, 2, rise(0), fall(250), rise(1000), fall(1250))
	duty, ok := e.Take(2)
	require.True(t, ok)
	require.Equal(t, uint16(25), duty)
	_, ok = e.Take(2)
	require.False(t, ok)

	// duty persists for diagnostics after the flag is cleared.
	s, _ := e.Snapshot(2)
	require.False(t, s.Ready)
	require.Equal(t, uint16(25), s.Duty)
	require.Equal(t, uint64(1), s.Samples)
}

func TestSnapshotDoesNotConsume(t *testing.T) {
	e, _ := newStartedEngine(t)
	feed(t, e, 0, rise(0), fall(100), rise(400), fall(500))
	s, _ := e.Snapshot(0)
	require.True(t, s.Ready)
	s, _ = e.Snapshot(0)
	require.True(t, s.Ready)
	duty, ok := e.Take(0)
	require.True(t, ok)
	require.Equal(t, uint16(25), duty)
}

func TestPolarityReprogrammed(t *testing.T) {
	e, timer := newStartedEngine(t)
	require.Equal(t, Rising, timer.polarity[0])
	feed(t, e, 0, rise(10))
	require.Equal(t, Falling, timer.polarity[0])
	feed(t, e, 0, fall(20))
	require.Equal(t, Rising, timer.polarity[0])
}

func TestUnpairedFallingIgnored(t *testing.T) {
	e, _ := newStartedEngine(t)
	feed(t, e, 0, fall(100))
	s, _ := e.Snapshot(0)
	require.Equal(t, Snapshot{}, s)
}

func TestZeroPeriodKeepsPreviousDuty(t *testing.T) {
	e, _ := newStartedEngine(t)
	feed(t, e, 0, rise(0), fall(50), rise(100), fall(150))
	duty, ok := e.Take(0)
	require.True(t, ok)
	require.Equal(t, uint16(50), duty)

	// rising at the same timestamp yields a zero period.
	feed(t, e, 0, rise(100), fall(120))
	s, _ := e.Snapshot(0)
	require.Equal(t, uint32(0), s.Period)
	require.False(t, s.Ready)
	require.Equal(t, uint16(50), s.Duty)
}

func TestChannelsIsolated(t *testing.T) {
	e, _ := newStartedEngine(t)
	feed(t, e, 0, rise(0), fall(10), rise(100), fall(110))
	for _, ch := range []int{1, 2} {
		s, err := e.Snapshot(ch)
		require.NoError(t, err)
		require.Equal(t, Snapshot{}, s)
		_, ok := e.Take(ch)
		require.False(t, ok)
	}
}

func TestChannelsConcurrent(t *testing.T) {
	e, _ := newStartedEngine(t)
	var wg sync.WaitGroup
	for ch := 0; ch < NumChannels; ch++ {
		wg.Add(1)
		go func(ch int) {
			defer wg.Done()
			high := uint32(100 * (ch + 1))
			var ts uint32
			for i := 0; i < 1000; i++ {
				e.HandleEdge(ch, ts, Rising)
				e.HandleEdge(ch, (ts+high)&0xffff, Falling)
				ts = (ts + 1000) & 0xffff
				e.Take(ch)
			}
		}(ch)
	}
	wg.Wait()
	for ch := 0; ch < NumChannels; ch++ {
		s, _ := e.Snapshot(ch)
		require.Equal(t, uint32(1000), s.Period)
		require.Equal(t, uint16(10*(ch+1)), s.Duty)
	}
}

func TestTakeWhileCapturing(t *testing.T) {
	e, _ := newStartedEngine(t)
	published := map[uint16]bool{25: true, 50: true}
	done := make(chan struct{})
	taken := make(chan []uint16, 1)
	go func() {
		var duties []uint16
		for {
			select {
			case <-done:
				taken <- duties
				return
			default:
			}
			if duty, ok := e.Take(0); ok {
				duties = append(duties, duty)
			}
		}
	}()

	var ts uint32
	for i := 0; i < 5000; i++ {
		high := uint32(500)
		if i%2 == 1 {
			high = 1000
		}
		require.NoError(t, e.HandleEdge(0, ts, Rising))
		require.NoError(t, e.HandleEdge(0, (ts+high)&0xffff, Falling))
		ts = (ts + 2000) & 0xffff
		if i%16 == 0 {
			runtime.Gosched()
		}
	}
	close(done)
	for _, duty := range <-taken {
		require.Truef(t, published[duty], "duty %d was never published", duty)
	}

	feed(t, e, 0, rise(ts), fall((ts+500)&0xffff))
	duty, ok := e.Take(0)
	require.True(t, ok)
	require.Equal(t, uint16(25), duty)
	_, ok = e.Take(0)
	require.False(t, ok)
}

func TestInvalidChannel(t *testing.T) {
	e, _ := newStartedEngine(t)
	require.Equal(t, ErrInvalidChannel, e.HandleEdge(3, 0, Rising))
	require.Equal(t, ErrInvalidChannel, e.HandleEdge(-1, 0, Rising))
	_, err := e.Snapshot(3)
	require.Equal(t, ErrInvalidChannel, err)
	_, ok := e.Take(3)
	require.False(t, ok)
}

func TestStopAndReset(t *testing.T) {
	e, _ := newStartedEngine(t)
	feed(t, e, 0, rise(0), fall(10), rise(100), fall(110))
	e.Stop()
	feed(t, e, 0, rise(200))
	s, _ := e.Snapshot(0)
	require.Equal(t, uint32(100), s.Period)

	e.Reset()
	s, _ = e.Snapshot(0)
	require.Equal(t, Snapshot{}, s)
}

func TestCustomScale(t *testing.T) {
	e, _ := newStartedEngine(t)
	e.Scale = 1000
	feed(t, e, 0, rise(0), fall(333), rise(1000), fall(1333))
	duty, ok := e.Take(0)
	require.True(t, ok)
	require.Equal(t, uint16(333), duty)
}
