package env

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/robotalks/hil.go/pkg/framework"
	"github.com/robotalks/hil.go/pkg/transport/serial"
	"github.com/robotalks/hil.go/pkg/transport/websocket"
)

// Transports of a link.
const (
	TransportSerial    = "serial"
	TransportWebsocket = "websocket"
)

// IsWebsocket tells whether port is a websocket URL.
func IsWebsocket(port string) bool {
	return strings.HasPrefix(port, "ws://") || strings.HasPrefix(port, "wss://")
}

// BoardLink is the board end of the link to the host.
type BoardLink struct {
	io.ReadWriter
	Transport string
	// Serve is set when the link must be served, e.g. a websocket.
	Serve framework.Runnable

	closer io.Closer
}

// Close closes the link.
func (l *BoardLink) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// SerialConfig returns the serial settings.
func (c *BoardConfig) SerialConfig() serial.Config {
	return serial.Config{Port: c.Port, Baud: c.Baud}
}

// OpenLink opens the serial port, or prepares the websocket server.
func (c *BoardConfig) OpenLink() (*BoardLink, error) {
	if !IsWebsocket(c.Port) {
		port, err := serial.Open(c.SerialConfig())
		if err != nil {
			return nil, err
		}
		return &BoardLink{ReadWriter: port, Transport: TransportSerial, closer: port}, nil
	}
	addr, path, err := websocketAddr(c.Port)
	if err != nil {
		return nil, err
	}
	link := websocket.NewLink()
	return &BoardLink{
		ReadWriter: link,
		Transport:  TransportWebsocket,
		Serve: framework.NamedRun("websocket", framework.RunFunc(func(ctx context.Context) error {
			return link.ListenAndServe(ctx, addr, path)
		})),
	}, nil
}

// SerialConfig returns the serial settings.
func (c *HostConfig) SerialConfig() serial.Config {
	return serial.Config{Port: c.Port, Baud: c.Baud}
}

// OpenLink opens the serial port or dials the websocket.
func (c *HostConfig) OpenLink() (io.ReadWriteCloser, error) {
	if IsWebsocket(c.Port) {
		conn, err := websocket.Dial(c.Port)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
	return serial.Open(c.SerialConfig())
}

func websocketAddr(rawURL string) (addr, path string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", err
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("missing listen address in %q", rawURL)
	}
	if path = u.Path; path == "" {
		path = "/"
	}
	return u.Host, path, nil
}
