package board

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/hil.go/pkg/analog"
	"github.com/robotalks/hil.go/pkg/hil/frame"
)

type recordingTransmitter struct {
	lock   sync.Mutex
	frames []frame.Frame
	err    error
}

func (r *recordingTransmitter) Send(ctx context.Context, f frame.Frame) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.err != nil {
		return r.err
	}
	r.frames = append(r.frames, f)
	return nil
}

func (r *recordingTransmitter) sent() []frame.Frame {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]frame.Frame(nil), r.frames...)
}

type fakeSampler struct {
	duty  [frame.NumChannels]uint16
	ready [frame.NumChannels]bool
	takes int
}

func (s *fakeSampler) Take(ch int) (uint16, bool) {
	s.takes++
	if !s.ready[ch] {
		return 0, false
	}
	s.ready[ch] = false
	return s.duty[ch], true
}

type dispatcherTestEnv struct {
	tx      recordingTransmitter
	signals *analog.Simulator
	sampler fakeSampler
	stats   Stats
	ring    Ring
	d       *Dispatcher
}

func newDispatcherTestEnv() *dispatcherTestEnv {
	env := &dispatcherTestEnv{signals: analog.NewSimulator(nil, nil)}
	env.d = &Dispatcher{
		Ring:        &env.ring,
		Transmitter: &env.tx,
		Signals:     env.signals,
		Sampler:     &env.sampler,
		Stats:       &env.stats,
	}
	return env
}

func corrupt(f frame.Frame) frame.Frame {
	f.Checksum ^= 0x01
	return f
}

func TestDispatcherHandle(t *testing.T) {
	testCases := []struct {
		name   string
		req    frame.Frame
		expect frame.Frame
		kind   frame.ErrorKind
	}{
		{
			name:   "default read",
			req:    frame.New(frame.CmdGet, frame.Channel2, frame.SignalCurrent, 0),
			expect: frame.New(frame.Channel2, frame.Channel2, frame.SignalCurrent, 0),
		},
		{
			name:   "default temperature read",
			req:    frame.New(frame.CmdGet, frame.Channel3, frame.SignalTemperature, 77),
			expect: frame.New(frame.Channel3, frame.Channel3, frame.SignalTemperature, 0),
		},
		{
			name:   "ping",
			req:    frame.New(frame.CmdPing, frame.Channel2, frame.SignalCurrent, 0x1234),
			expect: frame.New(frame.StatusOK, frame.ChannelSystem, frame.SignalSystem, 0x0100),
		},
		{
			name:   "ping with invalid channel",
			req:    frame.New(frame.CmdPing, 'x', 'y', 0xffff),
			expect: frame.New(frame.StatusOK, frame.ChannelSystem, frame.SignalSystem, 0x0100),
		},
		{
			name:   "set current",
			req:    frame.New(frame.CmdSet, frame.Channel1, frame.SignalCurrent, 16500),
			expect: frame.New(frame.StatusOK, frame.Channel1, frame.SignalCurrent, 16500),
		},
		{
			name:   "set temperature out of range",
			req:    frame.New(frame.CmdSet, frame.Channel1, frame.SignalTemperature, 3301),
			expect: frame.New(frame.StatusError, frame.Channel1, frame.SignalTemperature, 3301),
			kind:   frame.SignalRejected,
		},
		{
			name:   "set pwm input",
			req:    frame.New(frame.CmdSet, frame.Channel3, frame.SignalPWMInput, 50),
			expect: frame.New(frame.StatusError, frame.Channel3, frame.SignalPWMInput, 50),
			kind:   frame.InvalidSignalForOperation,
		},
		{
			name:   "get pwm without sample",
			req:    frame.New(frame.CmdGet, frame.Channel1, frame.SignalPWMInput, 0),
			expect: frame.New(frame.StatusError, frame.Channel1, frame.SignalPWMInput, 0),
			kind:   frame.UnreadableSample,
		},
		{
			name:   "get system signal",
			req:    frame.New(frame.CmdGet, frame.Channel1, frame.SignalSystem, 0),
			expect: frame.New(frame.StatusError, frame.Channel1, frame.SignalSystem, 0),
			kind:   frame.InvalidSignalForOperation,
		},
		{
			name:   "invalid channel",
			req:    frame.New(frame.CmdGet, '4', frame.SignalCurrent, 0),
			expect: frame.New(frame.StatusError, '4', frame.SignalCurrent, 0),
			kind:   frame.InvalidChannel,
		},
		{
			name:   "system channel on set",
			req:    frame.New(frame.CmdSet, frame.ChannelSystem, frame.SignalCurrent, 1),
			expect: frame.New(frame.StatusError, frame.ChannelSystem, frame.SignalCurrent, 1),
			kind:   frame.InvalidChannel,
		},
		{
			name:   "unknown command",
			req:    frame.New('X', frame.Channel1, frame.SignalCurrent, 9),
			expect: frame.New(frame.StatusError, frame.Channel1, frame.SignalCurrent, 9),
			kind:   frame.UnknownCommand,
		},
		{
			name:   "corrupted checksum",
			req:    corrupt(frame.New(frame.CmdSet, frame.Channel1, frame.SignalCurrent, 1000)),
			expect: frame.New(frame.StatusError, frame.Channel1, frame.SignalCurrent, 1000),
			kind:   frame.ChecksumMismatch,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newDispatcherTestEnv()
			resp, err := env.d.handle(tc.req)
			require.Equal(t, tc.expect, resp)
			require.True(t, resp.Valid())
			require.Equal(t, tc.kind, frame.KindOf(err))
			require.Equal(t, resp, env.d.Handle(tc.req))
		})
	}
}

func TestDispatcherSetGetConsistency(t *testing.T) {
	env := newDispatcherTestEnv()
	resp := env.d.Handle(frame.New(frame.CmdSet, frame.Channel1, frame.SignalCurrent, 16500))
	require.Equal(t, frame.StatusOK, resp.Command)
	resp = env.d.Handle(frame.New(frame.CmdGet, frame.Channel1, frame.SignalCurrent, 0))
	require.Equal(t, frame.Channel1, resp.Command)
	require.Equal(t, env.signals.CurrentPWM(0), resp.Value)
	require.Equal(t, uint16(511), resp.Value)

	resp = env.d.Handle(frame.New(frame.CmdSet, frame.Channel2, frame.SignalTemperature, 3300))
	require.Equal(t, frame.StatusOK, resp.Command)
	resp = env.d.Handle(frame.New(frame.CmdGet, frame.Channel2, frame.SignalTemperature, 0))
	require.Equal(t, analog.PWMMax, resp.Value)
}

func TestDispatcherNoSideEffects(t *testing.T) {
	env := newDispatcherTestEnv()
	env.sampler.duty[0], env.sampler.ready[0] = 40, true

	for ch := 0; ch < frame.NumChannels; ch++ {
		resp := env.d.Handle(frame.New(frame.CmdSet, frame.ChannelCode(ch), frame.SignalPWMInput, 10))
		require.Equal(t, frame.StatusError, resp.Command)
	}
	resp := env.d.Handle(corrupt(frame.New(frame.CmdSet, frame.Channel1, frame.SignalCurrent, 33000)))
	require.Equal(t, frame.StatusError, resp.Command)
	resp = env.d.Handle(corrupt(frame.New(frame.CmdGet, frame.Channel1, frame.SignalPWMInput, 0)))
	require.Equal(t, frame.StatusError, resp.Command)

	require.Equal(t, 0, env.sampler.takes)
	require.True(t, env.sampler.ready[0])
	for ch := 0; ch < frame.NumChannels; ch++ {
		require.Equal(t, uint16(0), env.signals.CurrentPWM(ch))
		require.Equal(t, uint16(0), env.signals.TemperaturePWM(ch))
	}
}

func TestDispatcherPWMSample(t *testing.T) {
	env := newDispatcherTestEnv()
	env.sampler.duty[1], env.sampler.ready[1] = 25, true
	req := frame.New(frame.CmdGet, frame.Channel2, frame.SignalPWMInput, 0)
	resp := env.d.Handle(req)
	require.Equal(t, frame.New(frame.Channel2, frame.Channel2, frame.SignalPWMInput, 25), resp)
	// consumed.
	resp = env.d.Handle(req)
	require.Equal(t, frame.StatusError, resp.Command)
}

func TestDispatcherDrain(t *testing.T) {
	env := newDispatcherTestEnv()
	reqs := []frame.Frame{
		frame.New(frame.CmdPing, frame.ChannelSystem, frame.SignalSystem, 0),
		frame.New(frame.CmdSet, frame.Channel3, frame.SignalCurrent, 33000),
		corrupt(frame.New(frame.CmdGet, frame.Channel3, frame.SignalCurrent, 0)),
		frame.New(frame.CmdGet, frame.Channel3, frame.SignalCurrent, 0),
	}
	for _, req := range reqs {
		require.True(t, env.ring.Enqueue(req))
	}
	exchanges := env.d.Drain(context.Background())
	require.Equal(t, 0, env.ring.Len())
	require.Len(t, exchanges, len(reqs))
	sent := env.tx.sent()
	require.Len(t, sent, len(reqs))
	for n, x := range exchanges {
		require.Equal(t, reqs[n], x.Request)
		require.Equal(t, sent[n], x.Response)
		require.True(t, x.Sent)
	}
	require.Equal(t, frame.StatusOK, sent[0].Command)
	require.Equal(t, frame.StatusOK, sent[1].Command)
	require.Equal(t, frame.StatusError, sent[2].Command)
	require.Equal(t, frame.ChecksumMismatch, frame.KindOf(exchanges[2].Err))
	require.Equal(t, analog.PWMMax, sent[3].Value)

	ss := env.stats.Snapshot()
	require.Equal(t, uint64(4), ss.FramesDispatched)
	require.Equal(t, uint64(4), ss.ResponsesSent)
	require.Equal(t, uint64(1), env.stats.Errors(frame.ChecksumMismatch))

	require.Empty(t, env.d.Drain(context.Background()))
}

func TestDispatcherDroppedResponse(t *testing.T) {
	env := newDispatcherTestEnv()
	env.tx.err = &frame.ProtocolError{Kind: frame.TransmitTimeout}
	env.ring.Enqueue(frame.New(frame.CmdPing, frame.ChannelSystem, frame.SignalSystem, 0))
	env.ring.Enqueue(frame.New(frame.CmdSet, frame.Channel1, frame.SignalCurrent, 100))
	exchanges := env.d.Drain(context.Background())
	require.Len(t, exchanges, 2)
	require.False(t, exchanges[0].Sent)
	require.False(t, exchanges[1].Sent)
	// the request was still serviced.
	require.Equal(t, analog.Scale(100, analog.CurrentMax), env.signals.CurrentPWM(0))
	require.Equal(t, uint64(2), env.stats.Errors(frame.TransmitTimeout))

	// no residual failure state.
	env.tx.err = nil
	env.ring.Enqueue(frame.New(frame.CmdPing, frame.ChannelSystem, frame.SignalSystem, 0))
	exchanges = env.d.Drain(context.Background())
	require.Len(t, exchanges, 1)
	require.True(t, exchanges[0].Sent)
}
