// Package sht drives SHT3x and SHT85 humidity/temperature sensors in
// single-shot mode. The family shares one command set and wire format;
// one Device serves every member.
package sht

import (
	"errors"
	"time"

	"periphkit/core"
)

// DefaultAddress is the factory I2C address; AddressAlt is the strapped
// alternative on SHT3x parts (SHT85 is fixed at 0x44).
const (
	DefaultAddress = 0x44
	AddressAlt     = 0x45
)

// Single-shot command set, no clock stretching.
const (
	cmdReadStatus  = 0xF32D
	cmdClearStatus = 0x3041
	cmdSoftReset   = 0x30A2
	cmdHardReset   = 0x0006 // general-call reset
	cmdMeasureFast = 0x2416 // repeatability low
	cmdMeasureSlow = 0x2400 // repeatability high
	cmdHeatOn      = 0x306D
	cmdHeatOff     = 0x3066
)

const (
	measureFastTime = 4 * time.Millisecond // datasheet table 4
	measureSlowTime = 15 * time.Millisecond
	resetTime       = 1 * time.Millisecond

	// heaterCooldown is the minimum off period between heater runs.
	heaterCooldown = 180 * time.Second

	// maxHeatTimeout caps how long the heater may stay on.
	maxHeatTimeout = 180 * time.Second
)

// Status register bits (datasheet page 13).
const (
	StatusAlertPending     = 1 << 15
	StatusHeaterOn         = 1 << 13
	StatusHumidityAlert    = 1 << 11
	StatusTemperatureAlert = 1 << 10
	StatusResetDetected    = 1 << 4
	StatusCommandFailed    = 1 << 1
	StatusChecksumFailed   = 1 << 0
)

var (
	ErrAddress        = errors.New("sht: address must be 0x44 or 0x45")
	ErrNotConnected   = errors.New("sht: device not connected")
	ErrCRC            = errors.New("sht: checksum mismatch")
	ErrNotReady       = errors.New("sht: measurement not ready")
	ErrShortRead      = errors.New("sht: short read")
	ErrHeaterCooldown = errors.New("sht: heater in cooldown period")
)

// Device is one sensor on a bus.
type Device struct {
	bus   core.I2CBus
	addr  uint8
	clock core.Clock

	rawTemperature uint16
	rawHumidity    uint16
	lastRead       time.Time

	lastRequest time.Time
	requested   bool

	heatTimeout time.Duration
	heaterStart time.Time
	heaterStop  time.Time
	heaterOn    bool
}

// New creates a Device at addr (DefaultAddress or AddressAlt).
func New(bus core.I2CBus, addr uint8) (*Device, error) {
	if addr != DefaultAddress && addr != AddressAlt {
		return nil, ErrAddress
	}
	return &Device{bus: bus, addr: addr, clock: core.SystemClock()}, nil
}

// SetClock replaces the timing source.
func (d *Device) SetClock(clock core.Clock) { d.clock = clock }

// Begin checks the device responds and soft-resets it.
func (d *Device) Begin() error {
	if !d.IsConnected() {
		return ErrNotConnected
	}
	return d.Reset(false)
}

// IsConnected reports whether the device acks its address.
func (d *Device) IsConnected() bool {
	return d.bus.Probe(d.addr) == core.StatusOK
}

//
// MEASUREMENT
//

// Read performs one blocking measurement. Fast mode trades repeatability
// for a 4ms conversion and skips CRC validation; slow mode takes 15ms
// and checks both word CRCs.
func (d *Device) Read(fast bool) error {
	cmd, wait := uint16(cmdMeasureSlow), measureSlowTime
	if fast {
		cmd, wait = cmdMeasureFast, measureFastTime
	}
	if err := d.writeCmd(cmd); err != nil {
		return err
	}
	d.clock.Sleep(wait)
	return d.readData(fast)
}

// RequestData starts a slow measurement without blocking. Poll DataReady
// and collect with ReadData.
func (d *Device) RequestData() error {
	if err := d.writeCmd(cmdMeasureSlow); err != nil {
		return err
	}
	d.lastRequest = d.clock.Now()
	d.requested = true
	return nil
}

// DataReady reports whether the conversion started by RequestData has
// had time to complete.
func (d *Device) DataReady() bool {
	return d.requested && d.clock.Now().Sub(d.lastRequest) > measureSlowTime
}

// ReadData collects the measurement started by RequestData.
func (d *Device) ReadData() error {
	if !d.DataReady() {
		return ErrNotReady
	}
	d.requested = false
	return d.readData(false)
}

// Temperature returns the last measured temperature in °C.
func (d *Device) Temperature() float64 {
	return float64(d.rawTemperature)*175.0/65535.0 - 45.0
}

// Humidity returns the last measured relative humidity in %.
func (d *Device) Humidity() float64 {
	return float64(d.rawHumidity) * 100.0 / 65535.0
}

// RawTemperature returns the last raw temperature word.
func (d *Device) RawTemperature() uint16 { return d.rawTemperature }

// RawHumidity returns the last raw humidity word.
func (d *Device) RawHumidity() uint16 { return d.rawHumidity }

// LastRead returns when data was last collected (zero before the first
// measurement).
func (d *Device) LastRead() time.Time { return d.lastRead }

//
// STATUS / RESET
//

// ReadStatus returns the 16-bit status register.
func (d *Device) ReadStatus() (uint16, error) {
	if err := d.writeCmd(cmdReadStatus); err != nil {
		return 0, err
	}
	var buf [3]byte
	if err := d.readBytes(buf[:]); err != nil {
		return 0, err
	}
	if buf[2] != crc8(buf[:2]) {
		return 0, ErrCRC
	}
	return uint16(buf[0])<<8 | uint16(buf[1]), nil
}

// ClearStatus clears the alert and reset flags.
func (d *Device) ClearStatus() error { return d.writeCmd(cmdClearStatus) }

// Reset restarts the sensor. A hard reset uses the I2C general-call
// address and resets every device on the bus that honors it.
func (d *Device) Reset(hard bool) error {
	if hard {
		if st := d.bus.WriteTo(0x00, []byte{cmdHardReset & 0xFF}); st != core.StatusOK {
			return st.Err()
		}
	} else if err := d.writeCmd(cmdSoftReset); err != nil {
		return err
	}
	d.clock.Sleep(resetTime)
	return nil
}

//
// HEATER
//

// SetHeatTimeout bounds how long the heater may run, capped at 180s.
func (d *Device) SetHeatTimeout(timeout time.Duration) {
	if timeout > maxHeatTimeout {
		timeout = maxHeatTimeout
	}
	d.heatTimeout = timeout
}

// HeatOn switches the built-in heater on. The part needs a cooldown
// period between runs; switching on during cooldown fails.
func (d *Device) HeatOn() error {
	if d.IsHeaterOn() {
		return nil
	}
	if !d.heaterStop.IsZero() && d.clock.Now().Sub(d.heaterStop) < heaterCooldown {
		return ErrHeaterCooldown
	}
	if err := d.writeCmd(cmdHeatOn); err != nil {
		return err
	}
	d.heaterStart = d.clock.Now()
	d.heaterOn = true
	return nil
}

// HeatOff switches the heater off unconditionally.
func (d *Device) HeatOff() error {
	if err := d.writeCmd(cmdHeatOff); err != nil {
		return err
	}
	d.heaterStop = d.clock.Now()
	d.heaterOn = false
	return nil
}

// IsHeaterOn reports whether the heater is running, switching it off
// first if it exceeded the configured timeout.
func (d *Device) IsHeaterOn() bool {
	if !d.heaterOn {
		return false
	}
	if d.clock.Now().Sub(d.heaterStart) < d.heatTimeout {
		return true
	}
	d.HeatOff()
	return false
}

//
// PRIVATE
//

func (d *Device) writeCmd(cmd uint16) error {
	return d.bus.WriteTo(d.addr, []byte{byte(cmd >> 8), byte(cmd)}).Err()
}

// readBytes is a direct read without a command prefix.
func (d *Device) readBytes(buf []byte) error {
	n, status := d.bus.WriteRead(d.addr, nil, buf)
	if status != core.StatusOK {
		return status.Err()
	}
	if n < len(buf) {
		return ErrShortRead
	}
	return nil
}

// readData collects the 6-byte measurement frame: temperature word, CRC,
// humidity word, CRC. Fast mode skips the CRC checks.
func (d *Device) readData(fast bool) error {
	var buf [6]byte
	if err := d.readBytes(buf[:]); err != nil {
		return err
	}
	if !fast {
		if buf[2] != crc8(buf[:2]) || buf[5] != crc8(buf[3:5]) {
			return ErrCRC
		}
	}
	d.rawTemperature = uint16(buf[0])<<8 | uint16(buf[1])
	d.rawHumidity = uint16(buf[3])<<8 | uint16(buf[4])
	d.lastRead = d.clock.Now()
	return nil
}

// crc8 is the sensor's word checksum: polynomial 0x31, init 0xFF.
func crc8(data []byte) uint8 {
	crc := uint8(0xFF)
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0x31
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
