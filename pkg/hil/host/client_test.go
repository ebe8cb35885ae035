package host

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/hil.go/pkg/analog"
	"github.com/robotalks/hil.go/pkg/capture"
	"github.com/robotalks/hil.go/pkg/framework"
	"github.com/robotalks/hil.go/pkg/hil/board"
	"github.com/robotalks/hil.go/pkg/hil/frame"
	"github.com/robotalks/hil.go/pkg/sim"
)

type clientTestEnv struct {
	t      *testing.T
	client *Client
	board  *board.Board
	engine *capture.Engine
	source *sim.PWMSource
	cancel context.CancelFunc
}

func newClientTestEnv(t *testing.T) *clientTestEnv {
	hostConn, boardConn := sim.Loopback()
	timer := sim.NewTimer(0xffff)
	env := &clientTestEnv{t: t, engine: capture.NewEngine(timer)}
	require.NoError(t, env.engine.Start())
	env.source = &sim.PWMSource{
		Channel:     0,
		PeriodTicks: 2000,
		HighTicks:   500,
		Timer:       timer,
		Handler:     env.engine,
	}
	env.board = board.New(boardConn, analog.NewSimulator(nil, nil), env.engine)
	env.client = NewClient(hostConn)

	loop := framework.NewLoop()
	loop.Add(env.board)
	ctx, cancel := context.WithCancel(context.Background())
	env.cancel = func() {
		cancel()
		hostConn.Close()
		boardConn.Close()
	}
	go loop.Run(ctx)
	go env.client.Run(ctx)
	return env
}

func (e *clientTestEnv) close() {
	e.cancel()
}

func TestClientPing(t *testing.T) {
	env := newClientTestEnv(t)
	defer env.close()
	version, err := env.client.Ping(context.Background())
	require.NoError(t, err)
	require.Equal(t, frame.FirmwareVersion, version)
}

func TestClientSetGet(t *testing.T) {
	env := newClientTestEnv(t)
	defer env.close()
	ctx := context.Background()

	v, err := env.client.Get(ctx, 1, frame.SignalCurrent)
	require.NoError(t, err)
	require.Equal(t, uint16(0), v)

	require.NoError(t, env.client.Set(ctx, 0, frame.SignalCurrent, 16500))
	v, err = env.client.Get(ctx, 0, frame.SignalCurrent)
	require.NoError(t, err)
	require.Equal(t, uint16(511), v)

	err = env.client.Set(ctx, 0, frame.SignalCurrent, 40000)
	var respErr *ResponseError
	require.True(t, errors.As(err, &respErr))
	require.Equal(t, frame.StatusError, respErr.Response.Command)
	require.Equal(t, uint64(1), env.board.Stats.Errors(frame.SignalRejected))
}

func TestClientCaptureOnly(t *testing.T) {
	env := newClientTestEnv(t)
	defer env.close()
	ctx := context.Background()

	var respErr *ResponseError
	err := env.client.Set(ctx, 2, frame.SignalPWMInput, 50)
	require.True(t, errors.As(err, &respErr))

	// no sample yet.
	_, err = env.client.Get(ctx, 0, frame.SignalPWMInput)
	require.True(t, errors.As(err, &respErr))

	for n := 0; n < 4; n++ {
		require.NoError(t, env.source.Step())
	}
	duty, err := env.client.Get(ctx, 0, frame.SignalPWMInput)
	require.NoError(t, err)
	require.Equal(t, uint16(25), duty)

	_, err = env.client.Get(ctx, 0, frame.SignalPWMInput)
	require.True(t, errors.As(err, &respErr))
}

func TestClientConcurrentRequests(t *testing.T) {
	env := newClientTestEnv(t)
	defer env.close()
	ctx := context.Background()
	var wg sync.WaitGroup
	for ch := 0; ch < frame.NumChannels; ch++ {
		wg.Add(1)
		go func(ch int) {
			defer wg.Done()
			value := uint16(1000 * (ch + 1))
			for n := 0; n < 20; n++ {
				require.NoError(t, env.client.Set(ctx, ch, frame.SignalTemperature, value))
				v, err := env.client.Get(ctx, ch, frame.SignalTemperature)
				require.NoError(t, err)
				require.Equal(t, analog.Scale(value, analog.TemperatureMax), v)
			}
		}(ch)
	}
	wg.Wait()
	require.Equal(t, 0, env.client.Pending())
}

type scriptedLink struct {
	io.Reader
	writes chan []byte
}

func (l *scriptedLink) Write(p []byte) (int, error) {
	l.writes <- append([]byte(nil), p...)
	return len(p), nil
}

func TestClientMatchesInOrder(t *testing.T) {
	r, w := io.Pipe()
	link := &scriptedLink{Reader: r, writes: make(chan []byte, 4)}
	c := NewClient(link)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	ping := frame.New(frame.CmdPing, frame.ChannelSystem, frame.SignalSystem, 0)
	cmd1 := c.Send(ping)
	cmd2 := c.Send(frame.New(frame.CmdGet, frame.Channel1, frame.SignalCurrent, 0))
	require.Equal(t, ping.Bytes(), <-link.writes)
	<-link.writes
	require.Equal(t, 2, c.Pending())

	bad := frame.New(frame.StatusOK, frame.ChannelSystem, frame.SignalSystem, 1)
	bad.Checksum ^= 0xff
	w.Write(bad.Bytes())
	w.Write(frame.New(frame.StatusError, 0, 0, 0).Bytes())

	r1 := <-cmd1.ResultChan()
	require.Equal(t, ErrCorruptResponse, r1.Err)
	r2 := <-cmd2.ResultChan()
	var respErr *ResponseError
	require.True(t, errors.As(r2.Err, &respErr))
	require.Equal(t, 0, c.Pending())
}

func TestClientTimeout(t *testing.T) {
	r, _ := io.Pipe()
	link := &scriptedLink{Reader: r, writes: make(chan []byte, 4)}
	c := NewClient(link)
	c.Timeout = 10 * time.Millisecond
	_, err := c.Ping(context.Background())
	require.Equal(t, ErrNoResponse, err)
	require.Equal(t, 0, c.Pending())
}

func TestClientLinkFailure(t *testing.T) {
	r, w := io.Pipe()
	link := &scriptedLink{Reader: r, writes: make(chan []byte, 4)}
	c := NewClient(link)
	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()
	cmd := c.Send(frame.New(frame.CmdPing, frame.ChannelSystem, frame.SignalSystem, 0))
	w.CloseWithError(io.ErrUnexpectedEOF)
	require.Equal(t, io.ErrUnexpectedEOF, <-done)
	require.Equal(t, io.ErrUnexpectedEOF, (<-cmd.ResultChan()).Err)
}

func TestClientMatchesEchoedFields(t *testing.T) {
	r, w := io.Pipe()
	link := &scriptedLink{Reader: r, writes: make(chan []byte, 8)}
	c := NewClient(link)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	set := frame.New(frame.CmdSet, frame.Channel2, frame.SignalCurrent, 100)
	get := frame.New(frame.CmdGet, frame.Channel3, frame.SignalTemperature, 0)
	ping := frame.New(frame.CmdPing, frame.ChannelSystem, frame.SignalSystem, 0)
	setCmd, getCmd, pingCmd := c.Send(set), c.Send(get), c.Send(ping)

	// answered out of order, the response of set never arrives.
	w.Write(frame.New(frame.StatusOK, frame.ChannelSystem, frame.SignalSystem, frame.FirmwareVersion).Bytes())
	w.Write(frame.New(frame.Channel3, frame.Channel3, frame.SignalTemperature, 7).Bytes())

	res := <-pingCmd.ResultChan()
	require.NoError(t, res.Err)
	require.Equal(t, frame.FirmwareVersion, res.Frame.Value)
	res = <-getCmd.ResultChan()
	require.NoError(t, res.Err)
	require.Equal(t, uint16(7), res.Frame.Value)
	require.Equal(t, 1, c.Pending())

	// an unrelated response is not taken as success of the set.
	w.Write(frame.New(frame.StatusOK, frame.Channel1, frame.SignalCurrent, 100).Bytes())
	select {
	case res = <-setCmd.ResultChan():
		t.Fatalf("unexpected result %v", res)
	case <-time.After(20 * time.Millisecond):
	}
	w.Write(set.WithStatus(frame.StatusError).Bytes())
	res = <-setCmd.ResultChan()
	var respErr *ResponseError
	require.True(t, errors.As(res.Err, &respErr))
	require.Equal(t, set, respErr.Request)
	require.Equal(t, 0, c.Pending())
}

func TestAnswers(t *testing.T) {
	ping := frame.New(frame.CmdPing, frame.Channel1, frame.SignalCurrent, 5)
	get := frame.New(frame.CmdGet, frame.Channel1, frame.SignalCurrent, 0)
	set := frame.New(frame.CmdSet, frame.Channel1, frame.SignalCurrent, 5)
	pong := frame.New(frame.StatusOK, frame.ChannelSystem, frame.SignalSystem, frame.FirmwareVersion)
	reading := frame.New(frame.Channel1, frame.Channel1, frame.SignalCurrent, 9)

	require.True(t, Answers(ping, pong))
	require.False(t, Answers(get, pong))
	require.False(t, Answers(set, pong))
	require.True(t, Answers(get, reading))
	require.False(t, Answers(ping, reading))
	require.False(t, Answers(set, reading))
	require.True(t, Answers(set, set.WithStatus(frame.StatusOK)))
	require.False(t, Answers(get, set.WithStatus(frame.StatusOK)))
	require.True(t, Answers(set, set.WithStatus(frame.StatusError)))
	require.True(t, Answers(get, get.WithStatus(frame.StatusError)))
	require.False(t, Answers(get, set.WithStatus(frame.StatusError)))
}

func TestClientRingOverflow(t *testing.T) {
	hostConn, boardConn := sim.Loopback()
	defer hostConn.Close()
	defer boardConn.Close()
	b := board.New(boardConn, analog.NewSimulator(nil, nil), capture.NewEngine(sim.NewTimer(0xffff)))
	c := NewClient(hostConn)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// no consumer loop: queued frames stay in the ring until Drain.
	go b.Port.Run(ctx)
	go c.Run(ctx)

	var pings []*Command
	for n := 0; n < board.RingCapacity; n++ {
		pings = append(pings, c.Send(frame.New(frame.CmdPing, frame.ChannelSystem, frame.SignalSystem, 0)))
	}
	require.Eventually(t, func() bool { return b.Ring.Len() == board.RingCapacity }, time.Second, time.Millisecond)

	overflow := c.Send(frame.New(frame.CmdGet, frame.Channel1, frame.SignalCurrent, 0))
	res := <-overflow.ResultChan()
	var respErr *ResponseError
	require.True(t, errors.As(res.Err, &respErr))
	require.Equal(t, uint64(1), b.Stats.Errors(frame.BufferFull))

	b.Dispatcher.Drain(ctx)
	for _, cmd := range pings {
		res := <-cmd.ResultChan()
		require.NoError(t, res.Err)
		require.Equal(t, frame.FirmwareVersion, res.Frame.Value)
	}
	require.Equal(t, 0, c.Pending())
}
