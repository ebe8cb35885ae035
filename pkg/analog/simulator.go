// Package analog simulates the current and temperature feedback of the
// LED driver as PWM outputs.
package analog

import (
	"sync/atomic"

	"github.com/golang/glog"
)

// Limits of the simulated signals.
const (
	// CurrentMax is 33 A in milliamps.
	CurrentMax uint16 = 33000
	// TemperatureMax is 330.0 °C in tenths of a degree.
	TemperatureMax uint16 = 3300
	// PWMMax is the 10-bit output resolution.
	PWMMax uint16 = 1023
	// Invalid is returned by getters for an invalid channel.
	Invalid uint16 = 0xffff
)

// NumChannels is the number of simulated lights.
const NumChannels = 3

// Output is a bank of PWM outputs, one per light channel.
type Output interface {
	// SetDutyCycle sets the compare value of a channel, 0 to PWMMax.
	SetDutyCycle(ch int, value uint16) error
	// Enable starts or stops PWM generation on all channels.
	Enable(on bool) error
}

// Simulator holds the simulated signal levels.
// Setters are called from the dispatcher only; getters may be called
// from any goroutine.
type Simulator struct {
	Current     Output
	Temperature Output

	currentPWM     [NumChannels]atomic.Uint32
	temperaturePWM [NumChannels]atomic.Uint32
}

// NewSimulator creates a Simulator driving the given outputs. nil outputs
// keep values in memory only.
func NewSimulator(current, temperature Output) *Simulator {
	return &Simulator{Current: current, Temperature: temperature}
}

// Scale converts value in [0, max] linearly to [0, PWMMax].
func Scale(value, max uint16) uint16 {
	return uint16(uint32(value) * uint32(PWMMax) / uint32(max))
}

// Reset sets all outputs to 0.
func (s *Simulator) Reset() {
	for ch := 0; ch < NumChannels; ch++ {
		s.currentPWM[ch].Store(0)
		s.temperaturePWM[ch].Store(0)
		apply(s.Current, ch, 0)
		apply(s.Temperature, ch, 0)
	}
}

// Start enables PWM generation.
func (s *Simulator) Start() error {
	return enable(true, s.Current, s.Temperature)
}

// Stop disables PWM generation.
func (s *Simulator) Stop() error {
	return enable(false, s.Current, s.Temperature)
}

// SetCurrent sets the simulated current of a light in milliamps.
func (s *Simulator) SetCurrent(ch int, milliamps uint16) bool {
	if ch < 0 || ch >= NumChannels || milliamps > CurrentMax {
		return false
	}
	pwm := Scale(milliamps, CurrentMax)
	if !apply(s.Current, ch, pwm) {
		return false
	}
	s.currentPWM[ch].Store(uint32(pwm))
	return true
}

// CurrentPWM gets the current output of a light, or Invalid.
func (s *Simulator) CurrentPWM(ch int) uint16 {
	if ch < 0 || ch >= NumChannels {
		return Invalid
	}
	return uint16(s.currentPWM[ch].Load())
}

// SetTemperature sets the simulated temperature of a light in tenths of
// a degree.
func (s *Simulator) SetTemperature(ch int, tenths uint16) bool {
	if ch < 0 || ch >= NumChannels || tenths > TemperatureMax {
		return false
	}
	pwm := Scale(tenths, TemperatureMax)
	if !apply(s.Temperature, ch, pwm) {
		return false
	}
	s.temperaturePWM[ch].Store(uint32(pwm))
	return true
}

// TemperaturePWM gets the temperature output of a light, or Invalid.
func (s *Simulator) TemperaturePWM(ch int) uint16 {
	if ch < 0 || ch >= NumChannels {
		return Invalid
	}
	return uint16(s.temperaturePWM[ch].Load())
}

func apply(out Output, ch int, value uint16) bool {
	if out == nil {
		return true
	}
	if err := out.SetDutyCycle(ch, value); err != nil {
		glog.Errorf("set PWM output %d = %d error: %v", ch, value, err)
		return false
	}
	return true
}

func enable(on bool, outs ...Output) error {
	for _, out := range outs {
		if out == nil {
			continue
		}
		if err := out.Enable(on); err != nil {
			return err
		}
	}
	return nil
}

// MemOutput is an in-memory Output.
type MemOutput struct {
	values  [NumChannels]atomic.Uint32
	enabled atomic.Bool
}

// SetDutyCycle implements Output.
func (o *MemOutput) SetDutyCycle(ch int, value uint16) error {
	if ch < 0 || ch >= NumChannels {
		return ErrInvalidChannel
	}
	o.values[ch].Store(uint32(value))
	return nil
}

// Enable implements Output.
func (o *MemOutput) Enable(on bool) error {
	o.enabled.Store(on)
	return nil
}

// DutyCycle gets the compare value of a channel, Invalid for a channel
// out of range.
func (o *MemOutput) DutyCycle(ch int) uint16 {
	if ch < 0 || ch >= NumChannels {
		return Invalid
	}
	return uint16(o.values[ch].Load())
}

// Enabled indicates PWM generation is on.
func (o *MemOutput) Enabled() bool {
	return o.enabled.Load()
}
