// Package host implements the test controller side of the protocol.
package host

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/hil.go/pkg/hil/frame"
)

// DefaultTimeout bounds a request without deadline.
const DefaultTimeout = time.Second

// Result is the result of a command.
type Result struct {
	Frame frame.Frame
	Err   error
}

// Command represents a request waiting for its response.
type Command struct {
	request  frame.Frame
	resultCh chan Result
	next     *Command
}

// Request returns the request frame.
func (c *Command) Request() frame.Frame {
	return c.request
}

// ResultChan returns the chan to retrieve result.
func (c *Command) ResultChan() <-chan Result {
	return c.resultCh
}

// Client sends requests to a board and matches the responses to pending
// commands, see HandleFrame.
type Client struct {
	Link    io.ReadWriter
	Timeout time.Duration

	writeLock sync.Mutex
	cmdsHead  *Command
	cmdsTail  *Command
	cmdsLock  sync.Mutex
	parser    frame.Parser
}

// NewClient creates a client over link. Run must be running for
// responses to be received.
func NewClient(link io.ReadWriter) *Client {
	return &Client{Link: link, Timeout: DefaultTimeout}
}

// Send writes a request and returns the pending Command.
func (c *Client) Send(req frame.Frame) *Command {
	cmd := &Command{request: req, resultCh: make(chan Result, 1)}
	c.writeLock.Lock()
	defer c.writeLock.Unlock()
	c.cmdsLock.Lock()
	if c.cmdsHead == nil {
		c.cmdsHead = cmd
	} else {
		c.cmdsTail.next = cmd
	}
	c.cmdsTail = cmd
	c.cmdsLock.Unlock()
	if _, err := req.WriteTo(c.Link); err != nil {
		c.remove(cmd)
		cmd.resultCh <- Result{Err: err}
	}
	return cmd
}

// Do sends a request and waits for its response. An ERROR response is
// returned as *ResponseError along with the response frame.
func (c *Client) Do(ctx context.Context, req frame.Frame) (frame.Frame, error) {
	if _, ok := ctx.Deadline(); !ok {
		timeout := c.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	cmd := c.Send(req)
	select {
	case r := <-cmd.resultCh:
		return r.Frame, r.Err
	case <-ctx.Done():
		c.remove(cmd)
		if ctx.Err() == context.DeadlineExceeded {
			return frame.Frame{}, ErrNoResponse
		}
		return frame.Frame{}, ctx.Err()
	}
}

// Ping returns the firmware version.
func (c *Client) Ping(ctx context.Context) (uint16, error) {
	resp, err := c.Do(ctx, frame.New(frame.CmdPing, frame.ChannelSystem, frame.SignalSystem, 0))
	if err != nil {
		return 0, err
	}
	return resp.Value, nil
}

// Get reads a signal of a light channel (0 based).
func (c *Client) Get(ctx context.Context, ch int, signal byte) (uint16, error) {
	code := frame.ChannelCode(ch)
	resp, err := c.Do(ctx, frame.New(frame.CmdGet, code, signal, 0))
	if err != nil {
		return 0, err
	}
	if resp.Command != code || resp.Signal != signal {
		return 0, &UnexpectedResponseError{Response: resp}
	}
	return resp.Value, nil
}

// Set writes a simulated signal of a light channel (0 based).
func (c *Client) Set(ctx context.Context, ch int, signal byte, value uint16) error {
	resp, err := c.Do(ctx, frame.New(frame.CmdSet, frame.ChannelCode(ch), signal, value))
	if err != nil {
		return err
	}
	if resp.Command != frame.StatusOK {
		return &UnexpectedResponseError{Response: resp}
	}
	return nil
}

// HandleFrame completes the pending command a response answers.
//
// The board answers frames it could not queue with a zeroed ERROR right
// away, ahead of the frames waiting in its queue, and drops responses it
// fails to transmit. A response is therefore matched by the fields it
// echoes, oldest pending command first. A zeroed ERROR answers the newest
// command and a corrupt response the oldest.
func (c *Client) HandleFrame(resp frame.Frame) {
	c.cmdsLock.Lock()
	var cmd *Command
	switch {
	case !resp.Valid():
		cmd = c.cmdsHead
	case resp == zeroedError:
		cmd = c.cmdsTail
	default:
		for curr := c.cmdsHead; curr != nil; curr = curr.next {
			if Answers(curr.request, resp) {
				cmd = curr
				break
			}
		}
	}
	if cmd != nil {
		c.unlink(cmd)
	}
	c.cmdsLock.Unlock()
	if cmd == nil {
		glog.Warningf("unsolicited response %s", resp)
		return
	}
	var r Result
	switch {
	case !resp.Valid():
		r.Err = ErrCorruptResponse
	case resp.Command == frame.StatusError:
		r.Err = &ResponseError{Request: cmd.request, Response: resp}
	}
	r.Frame = resp
	cmd.resultCh <- r
}

var zeroedError = frame.New(frame.StatusError, 0, 0, 0)

// Answers tells whether resp can be the response to req.
func Answers(req, resp frame.Frame) bool {
	switch resp.Command {
	case frame.StatusError:
		return resp.Channel == req.Channel && resp.Signal == req.Signal && resp.Value == req.Value
	case frame.StatusOK:
		if req.Command == frame.CmdPing {
			return resp.Channel == frame.ChannelSystem && resp.Signal == frame.SignalSystem
		}
		return req.Command == frame.CmdSet &&
			resp.Channel == req.Channel && resp.Signal == req.Signal && resp.Value == req.Value
	}
	return req.Command == frame.CmdGet &&
		resp.Command == req.Channel && resp.Channel == req.Channel && resp.Signal == req.Signal
}

// Pending returns the number of commands waiting for a response.
func (c *Client) Pending() int {
	c.cmdsLock.Lock()
	defer c.cmdsLock.Unlock()
	n := 0
	for cmd := c.cmdsHead; cmd != nil; cmd = cmd.next {
		n++
	}
	return n
}

// Run receives responses until ctx is done or the link fails.
func (c *Client) Run(ctx context.Context) error {
	byteCh, errCh := make(chan byte), make(chan error, 1)
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go c.readLoop(subCtx, byteCh, errCh)
	for {
		select {
		case b := <-byteCh:
			if pr := c.parser.Parse(b); pr.State == frame.Complete {
				c.HandleFrame(*pr.Frame)
			}
		case err := <-errCh:
			c.failAll(err)
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) readLoop(ctx context.Context, byteCh chan byte, errCh chan error) {
	buf := make([]byte, 1)
	for ctx.Err() == nil {
		n, err := c.Link.Read(buf)
		if err != nil {
			if os.IsTimeout(err) {
				continue
			}
			errCh <- err
			return
		}
		if n == 0 {
			continue
		}
		select {
		case byteCh <- buf[0]:
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) remove(cmd *Command) {
	c.cmdsLock.Lock()
	defer c.cmdsLock.Unlock()
	c.unlink(cmd)
}

// unlink removes cmd from the pending list. cmdsLock must be held.
func (c *Client) unlink(cmd *Command) {
	var prev *Command
	for curr := c.cmdsHead; curr != nil; prev, curr = curr, curr.next {
		if curr != cmd {
			continue
		}
		if prev == nil {
			c.cmdsHead = curr.next
		} else {
			prev.next = curr.next
		}
		if c.cmdsTail == curr {
			c.cmdsTail = prev
		}
		curr.next = nil
		return
	}
}

func (c *Client) failAll(err error) {
	c.cmdsLock.Lock()
	head := c.cmdsHead
	c.cmdsHead, c.cmdsTail = nil, nil
	c.cmdsLock.Unlock()
	for ; head != nil; head = head.next {
		select {
		case head.resultCh <- Result{Err: err}:
		default:
		}
	}
}
