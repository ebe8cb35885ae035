package sh

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/hil.go/pkg/hil/frame"
	"github.com/robotalks/hil.go/pkg/hil/host"
	"github.com/robotalks/hil.go/pkg/transport/serial"
)

// Reading is the output of get and watch.
type Reading struct {
	Channel int    `json:"channel"`
	Signal  string `json:"signal"`
	Value   uint16 `json:"value"`
}

// signalNames maps accepted signal names to signal codes.
var signalNames = map[string]byte{
	"p":           frame.SignalPWMInput,
	"pwm":         frame.SignalPWMInput,
	"c":           frame.SignalCurrent,
	"current":     frame.SignalCurrent,
	"t":           frame.SignalTemperature,
	"temp":        frame.SignalTemperature,
	"temperature": frame.SignalTemperature,
}

// ParseChannel parses a light channel 1..3 into its zero-based index.
func ParseChannel(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > frame.NumChannels {
		return 0, fmt.Errorf("invalid channel %q, expect 1..%d", s, frame.NumChannels)
	}
	return n - 1, nil
}

// ParseSignal parses a signal name or code.
func ParseSignal(s string) (byte, error) {
	if sig, ok := signalNames[strings.ToLower(s)]; ok {
		return sig, nil
	}
	return 0, fmt.Errorf("invalid signal %q, expect pwm, current or temp", s)
}

// ParseValue parses a 16-bit value, decimal or 0x prefixed.
func ParseValue(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q: %w", s, err)
	}
	return uint16(v), nil
}

// ParseRaw parses a frame from CMD CHANNEL SIGNAL VALUE, each of the
// first three a single character or a 0x prefixed byte.
func ParseRaw(args []string) (frame.Frame, error) {
	if len(args) != 4 {
		return frame.Frame{}, fmt.Errorf("expect CMD CHANNEL SIGNAL VALUE")
	}
	var fields [3]byte
	for n, arg := range args[:3] {
		switch {
		case len(arg) == 1:
			fields[n] = arg[0]
		case strings.HasPrefix(arg, "0x"):
			v, err := strconv.ParseUint(arg, 0, 8)
			if err != nil {
				return frame.Frame{}, fmt.Errorf("invalid byte %q: %w", arg, err)
			}
			fields[n] = byte(v)
		default:
			return frame.Frame{}, fmt.Errorf("invalid byte %q", arg)
		}
	}
	val, err := ParseValue(args[3])
	if err != nil {
		return frame.Frame{}, err
	}
	return frame.New(fields[0], fields[1], fields[2], val), nil
}

func signalName(sig byte) string {
	switch sig {
	case frame.SignalPWMInput:
		return "pwm"
	case frame.SignalCurrent:
		return "current"
	case frame.SignalTemperature:
		return "temp"
	}
	return string(rune(sig))
}

func parseChannelSignal(args []string) (int, byte, error) {
	ch, err := ParseChannel(args[0])
	if err != nil {
		return 0, 0, err
	}
	sig, err := ParseSignal(args[1])
	return ch, sig, err
}

var (
	// PortsCmd lists serial ports.
	PortsCmd = ishell.Cmd{
		Name: "ports",
		Help: "list serial ports",
		Func: func(c *ishell.Context) {
			ports, err := serial.Ports()
			if err != nil {
				c.Err(err)
				return
			}
			if ports == nil {
				ports = []string{}
			}
			ShellFrom(c).Print(c, ports, "%s", strings.Join(ports, "\n"))
		},
	}

	// ConnectCmd connects a board.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "PORT|ws://HOST:PORT/PATH",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			port := s.Config.Port
			if len(c.Args) > 0 {
				port = c.Args[0]
			} else if s.Interactive {
				if ports, err := serial.Ports(); err == nil && len(ports) > 1 {
					if n := s.Shell.MultiChoice(ports, "Which port to connect?"); n >= 0 {
						port = ports[n]
					}
				}
			}
			if err := s.Connect(port); err != nil {
				c.Err(err)
			}
		},
	}

	// DisconnectCmd disconnects current board.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}

	// PingCmd reads the firmware version.
	PingCmd = ishell.Cmd{
		Name: "ping",
		Help: "",
		Func: MustBeConnected(func(c *ishell.Context, client *host.Client) {
			start := time.Now()
			ver, err := client.Ping(context.Background())
			if err != nil {
				c.Err(err)
				return
			}
			ShellFrom(c).Print(c, map[string]interface{}{
				"version": fmt.Sprintf("%d.%d", ver>>8, ver&0xff),
				"rtt":     time.Since(start).String(),
			}, "firmware %d.%d (%s)", ver>>8, ver&0xff, time.Since(start))
		}),
	}

	// GetCmd reads a signal.
	GetCmd = ishell.Cmd{
		Name:    "get",
		Aliases: []string{"g"},
		Help:    "CHANNEL pwm|current|temp",
		Func: MustBeConnected(func(c *ishell.Context, client *host.Client) {
			if len(c.Args) != 2 {
				c.Err(fmt.Errorf("expect CHANNEL SIGNAL"))
				return
			}
			ch, sig, err := parseChannelSignal(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			val, err := client.Get(context.Background(), ch, sig)
			if err != nil {
				c.Err(err)
				return
			}
			r := Reading{Channel: ch + 1, Signal: signalName(sig), Value: val}
			ShellFrom(c).Print(c, r, "%d %s = %d", r.Channel, r.Signal, r.Value)
		}),
	}

	// SetCmd sets a simulated signal.
	SetCmd = ishell.Cmd{
		Name:    "set",
		Aliases: []string{"s"},
		Help:    "CHANNEL current|temp VALUE",
		Func: MustBeConnected(func(c *ishell.Context, client *host.Client) {
			if len(c.Args) != 3 {
				c.Err(fmt.Errorf("expect CHANNEL SIGNAL VALUE"))
				return
			}
			ch, sig, err := parseChannelSignal(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			val, err := ParseValue(c.Args[2])
			if err != nil {
				c.Err(err)
				return
			}
			if err := client.Set(context.Background(), ch, sig, val); err != nil {
				c.Err(err)
				return
			}
			ShellFrom(c).Print(c, "OK", "OK")
		}),
	}

	// RawCmd sends an arbitrary frame and prints the response.
	RawCmd = ishell.Cmd{
		Name: "raw",
		Help: "CMD CHANNEL SIGNAL VALUE",
		Func: MustBeConnected(func(c *ishell.Context, client *host.Client) {
			req, err := ParseRaw(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			resp, err := client.Do(context.Background(), req)
			if _, isResp := err.(*host.ResponseError); err != nil && !isResp {
				c.Err(err)
				return
			}
			ShellFrom(c).Print(c, resp, "%s", resp)
		}),
	}

	// WatchCmd polls a signal.
	WatchCmd = ishell.Cmd{
		Name:    "watch",
		Aliases: []string{"w"},
		Help:    "CHANNEL pwm|current|temp [COUNT [INTERVAL]]",
		Func: MustBeConnected(func(c *ishell.Context, client *host.Client) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("expect CHANNEL SIGNAL [COUNT [INTERVAL]]"))
				return
			}
			ch, sig, err := parseChannelSignal(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			count, interval := 10, 200*time.Millisecond
			if len(c.Args) > 2 {
				if count, err = strconv.Atoi(c.Args[2]); err != nil {
					c.Err(err)
					return
				}
			}
			if len(c.Args) > 3 {
				if interval, err = time.ParseDuration(c.Args[3]); err != nil {
					c.Err(err)
					return
				}
			}
			s := ShellFrom(c)
			for n := 0; n < count; n++ {
				if n > 0 {
					time.Sleep(interval)
				}
				val, err := client.Get(context.Background(), ch, sig)
				if err != nil {
					// a PWM sample is not ready between periods.
					c.Err(err)
					continue
				}
				r := Reading{Channel: ch + 1, Signal: signalName(sig), Value: val}
				s.Print(c, r, "%d %s = %d", r.Channel, r.Signal, r.Value)
			}
		}),
	}
)
