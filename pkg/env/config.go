// Package env provides configuration of the board daemon and host tools.
package env

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/robotalks/hil.go/pkg/capture"
	"github.com/robotalks/hil.go/pkg/hil/board"
	"github.com/robotalks/hil.go/pkg/hil/host"
	"github.com/robotalks/hil.go/pkg/transport/serial"
)

// SimulatedPWM drives a capture channel from a simulated signal.
type SimulatedPWM struct {
	Channel     int           `yaml:"channel"`
	PeriodTicks uint32        `yaml:"period_ticks"`
	Duty        uint32        `yaml:"duty"`
	Interval    time.Duration `yaml:"interval"`
}

// BoardConfig configures the board daemon.
type BoardConfig struct {
	// Port is a serial device, or ws://[host]:port/path to serve the link
	// over a websocket.
	Port            string         `yaml:"port"`
	Baud            int            `yaml:"baud"`
	TxTimeout       time.Duration  `yaml:"tx_timeout"`
	LoopInterval    time.Duration  `yaml:"loop_interval"`
	CounterMax      uint32         `yaml:"counter_max"`
	DutyScale       uint32         `yaml:"duty_scale"`
	Simulate        []SimulatedPWM `yaml:"simulate"`
	MQTTBrokerURL   string         `yaml:"mqtt_url"`
	BoardID         string         `yaml:"board_id"`
	PublishInterval time.Duration  `yaml:"publish_interval"`
}

// HostConfig configures host tools.
type HostConfig struct {
	// Port is a serial device or the ws:// URL of a board.
	Port    string        `yaml:"port"`
	Baud    int           `yaml:"baud"`
	Timeout time.Duration `yaml:"timeout"`
}

var (
	defaultBoardConfig = BoardConfig{
		Port:            "/dev/ttyACM0",
		Baud:            serial.DefaultBaud,
		TxTimeout:       board.DefaultTxTimeout,
		LoopInterval:    10 * time.Millisecond,
		CounterMax:      0xffff,
		DutyScale:       capture.DutyScale,
		PublishInterval: time.Second,
	}
	defaultHostConfig = HostConfig{
		Port:    "/dev/ttyUSB0",
		Baud:    serial.DefaultBaud,
		Timeout: host.DefaultTimeout,
	}
	configFile string
)

func init() {
	if val := os.Getenv("HIL_PORT"); val != "" {
		defaultBoardConfig.Port = val
		defaultHostConfig.Port = val
	}
	if val := os.Getenv("HIL_BAUD"); val != "" {
		if baud, err := strconv.Atoi(val); err == nil {
			defaultBoardConfig.Baud = baud
			defaultHostConfig.Baud = baud
		}
	}
	if val := os.Getenv("HIL_MQTT_URL"); val != "" {
		defaultBoardConfig.MQTTBrokerURL = val
	}
	if val := os.Getenv("HIL_BOARD_ID"); val != "" {
		defaultBoardConfig.BoardID = val
	}
}

// SetupBoardFlags sets up command line flags of the board daemon.
func SetupBoardFlags() {
	c := &defaultBoardConfig
	flag.StringVar(&configFile, "config", configFile, "YAML config file, values override flags.")
	flag.StringVar(&c.Port, "port", c.Port, "Serial device, or ws://[host]:port/path to serve a websocket.")
	flag.IntVar(&c.Baud, "baud", c.Baud, "Serial baud rate.")
	flag.DurationVar(&c.TxTimeout, "tx-timeout", c.TxTimeout, "Response transmit timeout.")
	flag.DurationVar(&c.LoopInterval, "loop-interval", c.LoopInterval, "Idle tick of the consumer loop.")
	flag.StringVar(&c.MQTTBrokerURL, "mqtt", c.MQTTBrokerURL, "MQTT broker URL for telemetry, e.g. mqtt://localhost:1883/hil/")
	flag.StringVar(&c.BoardID, "board-id", c.BoardID, "Board ID in telemetry topics, default is the machine ID.")
	flag.DurationVar(&c.PublishInterval, "publish-interval", c.PublishInterval, "Capture telemetry interval.")
}

// SetupHostFlags sets up command line flags of host tools.
func SetupHostFlags() {
	c := &defaultHostConfig
	flag.StringVar(&configFile, "config", configFile, "YAML config file, values override flags.")
	flag.StringVar(&c.Port, "port", c.Port, "Serial device or ws:// URL of the board.")
	flag.IntVar(&c.Baud, "baud", c.Baud, "Serial baud rate.")
	flag.DurationVar(&c.Timeout, "timeout", c.Timeout, "Request timeout.")
}

// NewBoardConfig creates a BoardConfig from defaults, environment, flags
// and the config file.
func NewBoardConfig() (*BoardConfig, error) {
	conf := defaultBoardConfig
	conf.Simulate = append([]SimulatedPWM(nil), defaultBoardConfig.Simulate...)
	if configFile != "" {
		if err := LoadFile(configFile, &conf); err != nil {
			return nil, err
		}
	}
	return &conf, nil
}

// NewHostConfig creates a HostConfig from defaults, environment, flags
// and the config file.
func NewHostConfig() (*HostConfig, error) {
	conf := defaultHostConfig
	if configFile != "" {
		if err := LoadFile(configFile, &conf); err != nil {
			return nil, err
		}
	}
	return &conf, nil
}

// LoadFile overlays YAML from path onto conf. Keys absent in the file
// keep their values.
func LoadFile(path string, conf interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, conf); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// Validate checks the config.
func (c *BoardConfig) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	if c.CounterMax == 0 {
		return fmt.Errorf("counter_max must not be 0")
	}
	for _, s := range c.Simulate {
		if s.Channel < 0 || s.Channel >= capture.NumChannels {
			return fmt.Errorf("simulate: invalid channel %d", s.Channel)
		}
		if s.PeriodTicks == 0 || s.PeriodTicks > c.CounterMax {
			return fmt.Errorf("simulate: channel %d: period_ticks must be in 1..%d", s.Channel, c.CounterMax)
		}
		if s.Duty > c.Scale() {
			return fmt.Errorf("simulate: channel %d: duty must be in 0..%d", s.Channel, c.Scale())
		}
	}
	return nil
}

// Scale returns the duty unit, DutyScale or the default when unset.
func (c *BoardConfig) Scale() uint32 {
	if c.DutyScale == 0 {
		return capture.DutyScale
	}
	return c.DutyScale
}
