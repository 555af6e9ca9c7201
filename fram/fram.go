// Package fram drives MB85RC family I2C FRAM parts. Unlike EEPROM,
// FRAM writes complete in bus time: there is no write-cycle delay, no
// page constraint, and effectively unlimited endurance. Transfers are
// soft-chunked only by the host transfer buffer.
package fram

import (
	"encoding/binary"
	"errors"
	"time"

	"periphkit/core"
)

const (
	// reserved slave ID used for metadata queries and the sleep command
	metaSlaveID = 0xF8 >> 1
	sleepCmd    = 0x86

	// blockSize is the soft chunk for large transfers: 32-byte transfer
	// buffer minus the 2-byte address prefix, rounded to a word multiple.
	blockSize = 24
)

var (
	// ErrInvalidAddress reports a device address outside 0x50..0x57.
	ErrInvalidAddress = errors.New("fram: device address out of range")

	// ErrNotConnected reports a device that does not ack its address.
	ErrNotConnected = errors.New("fram: device not connected")

	// ErrMetadata reports an unreadable device ID word.
	ErrMetadata = errors.New("fram: cannot read metadata")

	// ErrShortRead reports a read that returned fewer bytes than asked.
	ErrShortRead = errors.New("fram: short read")
)

// Device is one FRAM part on a bus.
type Device struct {
	bus       core.I2CBus
	addr      uint8
	clock     core.Clock
	wp        core.DigitalPin // optional write-protect pin
	wpEnabled bool
	sizeBytes uint32
}

// New creates a Device at addr (0x50..0x57).
func New(bus core.I2CBus, addr uint8) (*Device, error) {
	if addr < 0x50 || addr > 0x57 {
		return nil, ErrInvalidAddress
	}
	return &Device{bus: bus, addr: addr, clock: core.SystemClock()}, nil
}

// SetClock replaces the timing source (used by Wakeup).
func (d *Device) SetClock(clock core.Clock) { d.clock = clock }

// SetWriteProtectPin attaches the WP pin. Without one, write protection
// calls report failure.
func (d *Device) SetWriteProtectPin(pin core.DigitalPin) { d.wp = pin }

// Begin checks the device is present and probes its size metadata.
// Parts that do not implement the device-ID transaction keep size 0;
// use SetSizeBytes for those.
func (d *Device) Begin() error {
	if !d.IsConnected() {
		return ErrNotConnected
	}
	if size, err := d.size(); err == nil {
		d.sizeBytes = size
	}
	return nil
}

// IsConnected reports whether the device acks a zero-length probe.
func (d *Device) IsConnected() bool {
	return d.bus.Probe(d.addr) == core.StatusOK
}

//
// WRITE / READ
//

// Write8 stores one byte at memAddr.
func (d *Device) Write8(memAddr uint16, value uint8) error {
	return d.writeBlock(memAddr, []byte{value})
}

// Write16 stores a little-endian uint16 at memAddr.
func (d *Device) Write16(memAddr uint16, value uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], value)
	return d.writeBlock(memAddr, buf[:])
}

// Write32 stores a little-endian uint32 at memAddr.
func (d *Device) Write32(memAddr uint16, value uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], value)
	return d.writeBlock(memAddr, buf[:])
}

// Read8 returns the byte at memAddr.
func (d *Device) Read8(memAddr uint16) (uint8, error) {
	var buf [1]byte
	if err := d.readBlock(memAddr, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// Read16 returns the little-endian uint16 at memAddr.
func (d *Device) Read16(memAddr uint16) (uint16, error) {
	var buf [2]byte
	if err := d.readBlock(memAddr, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

// Read32 returns the little-endian uint32 at memAddr.
func (d *Device) Read32(memAddr uint16) (uint32, error) {
	var buf [4]byte
	if err := d.readBlock(memAddr, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// WriteBlock stores data starting at memAddr, chunked to the transfer
// buffer. No page alignment is needed on FRAM.
func (d *Device) WriteBlock(memAddr uint16, data []byte) error {
	for len(data) > 0 {
		cnt := len(data)
		if cnt > blockSize {
			cnt = blockSize
		}
		if err := d.writeBlock(memAddr, data[:cnt]); err != nil {
			return err
		}
		memAddr += uint16(cnt)
		data = data[cnt:]
	}
	return nil
}

// ReadBlock fills buf from memAddr, chunked to the transfer buffer.
func (d *Device) ReadBlock(memAddr uint16, buf []byte) error {
	for len(buf) > 0 {
		cnt := len(buf)
		if cnt > blockSize {
			cnt = blockSize
		}
		if err := d.readBlock(memAddr, buf[:cnt]); err != nil {
			return err
		}
		memAddr += uint16(cnt)
		buf = buf[cnt:]
	}
	return nil
}

// Clear fills the whole array with value and returns the bytes written.
// Requires a known size (from Begin or SetSizeBytes).
func (d *Device) Clear(value byte) (uint32, error) {
	fill := make([]byte, blockSize)
	for i := range fill {
		fill[i] = value
	}
	for addr := uint32(0); addr < d.sizeBytes; addr += blockSize {
		cnt := uint32(blockSize)
		if addr+cnt > d.sizeBytes {
			cnt = d.sizeBytes - addr
		}
		if err := d.writeBlock(uint16(addr), fill[:cnt]); err != nil {
			return addr, err
		}
	}
	return d.sizeBytes, nil
}

//
// METADATA / POWER
//

// ManufacturerID returns the JEDEC manufacturer code from the device ID.
func (d *Device) ManufacturerID() (uint16, error) {
	value, err := d.metadata()
	if err != nil {
		return 0, err
	}
	return uint16(value>>12) & 0xFF, nil
}

// ProductID returns the product code (including the density nibble).
func (d *Device) ProductID() (uint16, error) {
	value, err := d.metadata()
	if err != nil {
		return 0, err
	}
	return uint16(value) & 0x0FFF, nil
}

// Size returns the capacity in bytes derived from the density code, or
// 0 if the part does not report one.
func (d *Device) Size() uint32 { return d.sizeBytes }

// SetSizeBytes overrides the capacity for parts without metadata.
func (d *Device) SetSizeBytes(size uint32) { d.sizeBytes = size }

// SetWriteProtect drives the WP pin. Returns false without a pin.
func (d *Device) SetWriteProtect(enable bool) bool {
	if d.wp == nil {
		return false
	}
	d.wp.Set(enable)
	d.wpEnabled = enable
	return true
}

// WriteProtect reports the last commanded WP state.
func (d *Device) WriteProtect() bool { return d.wp != nil && d.wpEnabled }

// Sleep puts the device into its low-power mode (datasheet page 12:
// reserved slave ID, device address, then the sleep command). The
// repeated-start subtlety of the real sequence is the bus
// implementation's concern.
func (d *Device) Sleep() error {
	if st := d.bus.WriteTo(metaSlaveID, []byte{d.addr << 1}); st != core.StatusOK {
		return st.Err()
	}
	return d.bus.Probe(sleepCmd >> 1).Err()
}

// Wakeup recovers the device from sleep: any bus access wakes it, after
// which it needs trec (max 400µs per datasheet) before responding.
func (d *Device) Wakeup(trec time.Duration) bool {
	awake := d.IsConnected() // the access itself triggers wakeup
	if trec == 0 {
		return awake
	}
	d.clock.Sleep(trec)
	return d.IsConnected()
}

//
// PRIVATE
//

func (d *Device) writeBlock(memAddr uint16, data []byte) error {
	msg := make([]byte, 0, 2+len(data))
	msg = append(msg, byte(memAddr>>8), byte(memAddr))
	msg = append(msg, data...)
	return d.bus.WriteTo(d.addr, msg).Err()
}

func (d *Device) readBlock(memAddr uint16, buf []byte) error {
	prefix := [2]byte{byte(memAddr >> 8), byte(memAddr)}
	n, status := d.bus.WriteRead(d.addr, prefix[:], buf)
	if status != core.StatusOK {
		return status.Err()
	}
	if n < len(buf) {
		return ErrShortRead
	}
	return nil
}

// metadata reads the 24-bit device ID word:
// [....MMMM][MMMMDDDD][PPPPPPPP] with M = manufacturer, D = density
// (capacity = 2^D KiB), P = product.
func (d *Device) metadata() (uint32, error) {
	var buf [3]byte
	n, status := d.bus.WriteRead(metaSlaveID, []byte{d.addr << 1}, buf[:])
	if status != core.StatusOK || n != 3 {
		return 0, ErrMetadata
	}
	return uint32(buf[0])<<16 | uint32(buf[1])<<8 | uint32(buf[2]), nil
}

// size converts the density code to bytes.
func (d *Device) size() (uint32, error) {
	value, err := d.metadata()
	if err != nil {
		return 0, err
	}
	density := (value >> 8) & 0x0F
	if density == 0 {
		return 0, nil
	}
	return (1 << density) * 1024, nil
}
