// Package digipot drives AD520X/AD840X digital potentiometers over SPI.
// The family members differ only in channel count (AD5206: 6, AD5204 and
// AD8403: 4, AD8402: 2, AD8400: 1), so a single Device serves them all;
// the constructors fix the count.
//
// The wiper word is two bytes: channel address, then position. Hardware
// transfers go through a drivers.SPI bus; a software fallback bit-bangs
// the same word over data/clock pins for boards without a free SPI
// peripheral.
package digipot

import (
	"errors"

	"tinygo.org/x/drivers"

	"periphkit/core"
)

// MiddleValue is the power-on wiper position (half scale).
const MiddleValue = 128

var (
	// ErrChannel reports a channel index beyond the part's count.
	ErrChannel = errors.New("digipot: channel out of range")

	// ErrNoBus reports a Device constructed without a transfer path.
	ErrNoBus = errors.New("digipot: no SPI bus or data/clock pins")

	// ErrPercentage reports a percentage outside 0..100.
	ErrPercentage = errors.New("digipot: percentage out of range")
)

// Device is one AD520X part. Construct with one of the NewAD* helpers,
// then attach either a hardware bus (SetSPI) or bit-bang pins
// (SetDataClockPins) before Begin.
type Device struct {
	spi    drivers.SPI
	data   core.DigitalPin // software path
	clock  core.DigitalPin
	sel    core.DigitalPin
	reset  core.DigitalPin // optional, active low
	shdn   core.DigitalPin // optional, active low
	values []uint8
	on     bool
}

// NewAD5206 returns a 6-channel device with the given chip-select pin.
func NewAD5206(sel core.DigitalPin) *Device { return newDevice(sel, 6) }

// NewAD5204 returns a 4-channel device.
func NewAD5204(sel core.DigitalPin) *Device { return newDevice(sel, 4) }

// NewAD8403 returns a 4-channel device.
func NewAD8403(sel core.DigitalPin) *Device { return newDevice(sel, 4) }

// NewAD8402 returns a 2-channel device.
func NewAD8402(sel core.DigitalPin) *Device { return newDevice(sel, 2) }

// NewAD8400 returns a single-channel device.
func NewAD8400(sel core.DigitalPin) *Device { return newDevice(sel, 1) }

func newDevice(sel core.DigitalPin, channels int) *Device {
	return &Device{sel: sel, values: make([]uint8, channels)}
}

// SetSPI attaches a hardware SPI bus. The bus must already be configured
// for mode 0.
func (d *Device) SetSPI(bus drivers.SPI) { d.spi = bus }

// SetDataClockPins attaches bit-bang pins for the software path. Ignored
// when a hardware bus is set.
func (d *Device) SetDataClockPins(data, clock core.DigitalPin) {
	d.data = data
	d.clock = clock
}

// SetResetPin attaches the active-low RS pin used by Reset.
func (d *Device) SetResetPin(pin core.DigitalPin) { d.reset = pin }

// SetShutdownPin attaches the active-low SHDN pin used by the power calls.
func (d *Device) SetShutdownPin(pin core.DigitalPin) { d.shdn = pin }

// Begin releases reset and shutdown and programs every wiper to value.
func (d *Device) Begin(value uint8) error {
	if d.spi == nil && (d.data == nil || d.clock == nil) {
		return ErrNoBus
	}
	d.sel.Set(true)
	if d.clock != nil {
		d.clock.Set(false)
	}
	if d.reset != nil {
		d.reset.Set(true)
	}
	d.PowerOn()
	return d.SetAll(value)
}

// Channels returns the number of wiper channels.
func (d *Device) Channels() int { return len(d.values) }

//
// WIPERS
//

// SetValue programs one wiper position.
func (d *Device) SetValue(channel int, value uint8) error {
	if channel < 0 || channel >= len(d.values) {
		return ErrChannel
	}
	if err := d.send(uint8(channel), value); err != nil {
		return err
	}
	d.values[channel] = value
	return nil
}

// SetAll programs every wiper to the same position.
func (d *Device) SetAll(value uint8) error {
	for ch := range d.values {
		if err := d.SetValue(ch, value); err != nil {
			return err
		}
	}
	return nil
}

// GetValue returns the last programmed position (the part has no readback).
func (d *Device) GetValue(channel int) (uint8, error) {
	if channel < 0 || channel >= len(d.values) {
		return 0, ErrChannel
	}
	return d.values[channel], nil
}

// SetPercentage programs a wiper as a 0..100 fraction of full scale.
func (d *Device) SetPercentage(channel int, pct float64) error {
	if pct < 0 || pct > 100 {
		return ErrPercentage
	}
	return d.SetValue(channel, uint8(pct*2.55+0.5))
}

// GetPercentage returns the last programmed position as 0..100.
func (d *Device) GetPercentage(channel int) (float64, error) {
	v, err := d.GetValue(channel)
	if err != nil {
		return 0, err
	}
	return float64(v) / 2.55, nil
}

//
// RESET / POWER
//

// Reset pulses the RS pin if attached and reprograms every wiper to
// value (the hardware reset forces half scale, so the cache is rebuilt
// by rewriting).
func (d *Device) Reset(value uint8) error {
	if d.reset != nil {
		d.reset.Set(false)
		d.reset.Set(true)
	}
	return d.SetAll(value)
}

// PowerOn releases the SHDN pin. Wiper registers survive shutdown.
func (d *Device) PowerOn() {
	if d.shdn != nil {
		d.shdn.Set(true)
	}
	d.on = true
}

// PowerOff asserts the SHDN pin, open-circuiting the resistor ladders.
func (d *Device) PowerOff() {
	if d.shdn != nil {
		d.shdn.Set(false)
	}
	d.on = false
}

// IsPowerOn reports the last commanded power state.
func (d *Device) IsPowerOn() bool { return d.on }

//
// PRIVATE
//

// send clocks the two-byte wiper word out under chip select.
func (d *Device) send(channel, value uint8) error {
	d.sel.Set(false)
	defer d.sel.Set(true)
	if d.spi != nil {
		return d.spi.Tx([]byte{channel, value}, nil)
	}
	d.shiftOut(channel)
	d.shiftOut(value)
	return nil
}

// shiftOut bit-bangs one byte MSB first, mode 0: data valid before the
// rising clock edge.
func (d *Device) shiftOut(value uint8) {
	for mask := uint8(0x80); mask != 0; mask >>= 1 {
		d.data.Set(value&mask != 0)
		d.clock.Set(true)
		d.clock.Set(false)
	}
}
