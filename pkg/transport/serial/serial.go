// Package serial opens the serial link between host and board.
package serial

import (
	"fmt"
	"time"

	"github.com/golang/glog"
	"go.bug.st/serial"
)

// Defaults of the link.
const (
	DefaultBaud        = 115200
	DefaultReadTimeout = 100 * time.Millisecond
)

// Config describes a serial link. The line is always 8N1.
type Config struct {
	Port        string
	Baud        int
	ReadTimeout time.Duration
}

// Mode returns the serial mode of the config.
func (c Config) Mode() *serial.Mode {
	baud := c.Baud
	if baud <= 0 {
		baud = DefaultBaud
	}
	return &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// Open opens the port. With a read timeout, an idle Read returns 0 bytes
// and no error.
func Open(conf Config) (serial.Port, error) {
	mode := conf.Mode()
	port, err := serial.Open(conf.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", conf.Port, err)
	}
	timeout := conf.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", conf.Port, err)
	}
	glog.Infof("opened %s at %d baud", conf.Port, mode.BaudRate)
	return port, nil
}

// Ports lists serial ports of the system.
func Ports() ([]string, error) {
	return serial.GetPortsList()
}
