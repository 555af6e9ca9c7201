// Package eeprom drives 24LCxxx style I2C EEPROMs, including the
// bank-switched 1 Mbit parts (24LC1025 family) whose upper 64 KiB live
// behind a second bus address.
//
// The device constraints the driver manages:
//   - writes must not straddle a page boundary,
//   - one transaction carries at most the transfer-buffer limit,
//   - addresses at or above the bank boundary need the bank-select bit,
//   - after a write the part NACKs everything until its internal write
//     cycle finishes.
package eeprom

import (
	"bytes"
	"errors"
	"time"

	"periphkit/core"
)

const (
	// bankBoundary is the first address that needs the bank-select bit.
	bankBoundary = 0x10000

	// bankSelectBit is OR-ed into the bus address for the upper bank
	// (the A16 address bit of the 24LC1025).
	bankSelectBit = 0x04

	// writeCycleTime is the datasheet write cycle (TWR). The ready-wait
	// gate polls below this bound, so a fast part costs less than the
	// hardcoded delay would.
	writeCycleTime = 5 * time.Millisecond

	// ackPollInterval paces the ready-wait probe loop.
	ackPollInterval = 50 * time.Microsecond
)

// ErrShortRead reports a read transaction that returned fewer bytes than
// requested. The byte count returned alongside it is still valid.
var ErrShortRead = errors.New("eeprom: short read")

// Config is the immutable geometry of one device. It is set at
// construction and never mutated.
type Config struct {
	Address    uint8  // base bus address (bank-select bit clear)
	Size       uint32 // total capacity in bytes
	PageSize   uint32 // write page size in bytes
	BufferSize int    // max payload bytes per transaction
}

// Common device geometries. BufferSize 30 matches the smallest transfer
// buffer in common two-wire stacks: 32 bytes minus the 2-byte address
// prefix. Hosts with larger buffers can raise it.
var (
	Config24LC1025 = Config{Address: 0x50, Size: 128 * 1024, PageSize: 128, BufferSize: 30}
	Config24LC512  = Config{Address: 0x50, Size: 64 * 1024, PageSize: 128, BufferSize: 30}
	Config24LC256  = Config{Address: 0x50, Size: 32 * 1024, PageSize: 64, BufferSize: 30}
)

// Device is one EEPROM on a bus. Methods are synchronous and blocking;
// multi-chunk operations yield between chunks but expose no intermediate
// state and cannot be cancelled once started.
type Device struct {
	bus   core.I2CBus
	cfg   Config
	clock core.Clock

	// lastWrite gates the ready-wait poll; see waitReady.
	lastWrite       time.Time
	extraWriteCycle time.Duration

	// scratch holds the address prefix plus one chunk, reused across
	// transactions so long transfers do not allocate per chunk.
	scratch []byte
}

// New creates a Device for the given bus and geometry.
func New(bus core.I2CBus, cfg Config) *Device {
	return &Device{
		bus:     bus,
		cfg:     cfg,
		clock:   core.SystemClock(),
		scratch: make([]byte, 2+cfg.BufferSize),
	}
}

// SetClock replaces the timing source. Intended for tests and for hosts
// with their own cooperative scheduler.
func (d *Device) SetClock(clock core.Clock) {
	d.clock = clock
}

// Begin resets the write-timing state and checks the device is present.
func (d *Device) Begin() bool {
	d.lastWrite = time.Time{}
	return d.IsConnected()
}

// IsConnected reports whether the device acks a zero-length probe.
func (d *Device) IsConnected() bool {
	return d.bus.Probe(d.cfg.Address) == core.StatusOK
}

// Size returns the device capacity in bytes.
func (d *Device) Size() uint32 { return d.cfg.Size }

// PageSize returns the write page size in bytes.
func (d *Device) PageSize() uint32 { return d.cfg.PageSize }

// SetExtraWriteCycleTime adds slack to the ready-wait deadline for
// out-of-spec parts that need more than the datasheet write cycle.
func (d *Device) SetExtraWriteCycleTime(extra time.Duration) {
	d.extraWriteCycle = extra
}

// ExtraWriteCycleTime returns the configured extra write cycle slack.
func (d *Device) ExtraWriteCycleTime() time.Duration {
	return d.extraWriteCycle
}

//
// WRITE SECTION
//

// WriteByte writes one byte at memAddr.
func (d *Device) WriteByte(memAddr uint32, value byte) error {
	var buf = [1]byte{value}
	return d.pageBlock(memAddr, buf[:], uint32(len(buf)), true)
}

// WriteBlock writes buf starting at memAddr, chunked so no transaction
// straddles a page boundary or exceeds the transfer buffer. On a chunk
// failure the error is returned immediately; chunks already written stay
// written (callers needing atomicity must verify and retry themselves).
func (d *Device) WriteBlock(memAddr uint32, buf []byte) error {
	return d.pageBlock(memAddr, buf, uint32(len(buf)), true)
}

// SetBlock writes length copies of value starting at memAddr. The fill
// is synthesized chunk by chunk, so arbitrary lengths need no buffer.
func (d *Device) SetBlock(memAddr uint32, value byte, length uint32) error {
	n := d.cfg.BufferSize
	if uint32(n) > length {
		n = int(length)
	}
	fill := make([]byte, n)
	for i := range fill {
		fill[i] = value
	}
	return d.pageBlock(memAddr, fill, length, false)
}

//
// READ SECTION
//

// ReadByte returns the byte stored at memAddr.
func (d *Device) ReadByte(memAddr uint32) (byte, error) {
	var buf [1]byte
	_, err := d.ReadBlock(memAddr, buf[:])
	return buf[0], err
}

// ReadBlock fills buf from memAddr and returns the number of bytes read.
// Reads may cross page boundaries freely, but never the bank boundary:
// the two banks answer on different bus addresses, so a spanning request
// is split into exactly two sub-reads. A short count reports a bus-level
// failure through the returned error; it is not fatal.
func (d *Device) ReadBlock(memAddr uint32, buf []byte) (int, error) {
	if memAddr < bankBoundary && memAddr+uint32(len(buf)) > bankBoundary {
		head := bankBoundary - memAddr
		n, err := d.ReadBlock(memAddr, buf[:head])
		if err != nil {
			return n, err
		}
		m, err := d.ReadBlock(bankBoundary, buf[head:])
		return n + m, err
	}

	total := 0
	for total < len(buf) {
		cnt := len(buf) - total
		if cnt > d.cfg.BufferSize {
			cnt = d.cfg.BufferSize
		}
		n, status := d.readChunk(memAddr+uint32(total), buf[total:total+cnt])
		total += n
		if status != core.StatusOK {
			return total, status.Err()
		}
		if n < cnt {
			return total, ErrShortRead
		}
	}
	return total, nil
}

//
// UPDATE SECTION
//

// UpdateByte writes value only if it differs from the stored byte.
func (d *Device) UpdateByte(memAddr uint32, value byte) error {
	current, err := d.ReadByte(memAddr)
	if err != nil {
		return err
	}
	if current == value {
		return nil
	}
	return d.WriteByte(memAddr, value)
}

// UpdateBlock compares buf against the stored content chunk by chunk and
// writes back only chunks that differ, reducing wear and bus traffic.
// It returns the number of bytes written; an identical region issues no
// write transactions at all.
func (d *Device) UpdateBlock(memAddr uint32, buf []byte) (int, error) {
	written := 0
	current := make([]byte, d.cfg.BufferSize)
	for offset := 0; offset < len(buf); {
		addr := memAddr + uint32(offset)
		cnt := len(buf) - offset
		if cnt > d.cfg.BufferSize {
			cnt = d.cfg.BufferSize
		}
		// The compare read obeys the same bank rule as ReadBlock: a
		// straddling sequential read would wrap inside the low bank and
		// compare against the wrong bytes.
		if addr < bankBoundary && addr+uint32(cnt) > bankBoundary {
			cnt = int(bankBoundary - addr)
		}
		n, status := d.readChunk(addr, current[:cnt])
		if status != core.StatusOK {
			return written, status.Err()
		}
		if n < cnt {
			return written, ErrShortRead
		}
		if !bytes.Equal(buf[offset:offset+cnt], current[:cnt]) {
			if err := d.pageBlock(addr, buf[offset:offset+cnt], uint32(cnt), true); err != nil {
				return written, err
			}
			written += cnt
		}
		offset += cnt
		d.clock.Yield()
	}
	return written, nil
}

//
// VERIFY SECTION
//

// WriteByteVerify writes value and reads it back. It returns false if
// either step fails or the read-back differs; the write is not rolled
// back and no retry is attempted.
func (d *Device) WriteByteVerify(memAddr uint32, value byte) bool {
	if d.WriteByte(memAddr, value) != nil {
		return false
	}
	data, err := d.ReadByte(memAddr)
	return err == nil && data == value
}

// WriteBlockVerify writes buf and byte-compares the read-back.
func (d *Device) WriteBlockVerify(memAddr uint32, buf []byte) bool {
	if d.WriteBlock(memAddr, buf) != nil {
		return false
	}
	return d.verifyAgainst(memAddr, buf)
}

// SetBlockVerify fills a region and verifies every byte equals value.
func (d *Device) SetBlockVerify(memAddr uint32, value byte, length uint32) bool {
	if d.SetBlock(memAddr, value, length) != nil {
		return false
	}
	data := make([]byte, length)
	if n, err := d.ReadBlock(memAddr, data); err != nil || uint32(n) != length {
		return false
	}
	for _, b := range data {
		if b != value {
			return false
		}
	}
	return true
}

// UpdateByteVerify updates value and reads it back.
func (d *Device) UpdateByteVerify(memAddr uint32, value byte) bool {
	if d.UpdateByte(memAddr, value) != nil {
		return false
	}
	data, err := d.ReadByte(memAddr)
	return err == nil && data == value
}

// UpdateBlockVerify updates buf and byte-compares the read-back.
func (d *Device) UpdateBlockVerify(memAddr uint32, buf []byte) bool {
	if _, err := d.UpdateBlock(memAddr, buf); err != nil {
		return false
	}
	return d.verifyAgainst(memAddr, buf)
}

// verifyAgainst reads len(want) bytes at memAddr and compares.
func (d *Device) verifyAgainst(memAddr uint32, want []byte) bool {
	got := make([]byte, len(want))
	if n, err := d.ReadBlock(memAddr, got); err != nil || n != len(want) {
		return false
	}
	return bytes.Equal(got, want)
}
