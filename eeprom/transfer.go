package eeprom

import (
	"fmt"

	"periphkit/core"
)

// resolveAddress computes the bus-select address and the native in-bank
// address for a logical memory address. Bank selection is derived per
// call and never cached on the device: cached bank state goes stale
// under reentrant use. Any 32-bit address is valid input.
func resolveAddress(base uint8, memAddr uint32) (busAddr uint8, native uint16) {
	busAddr = base
	if memAddr >= bankBoundary {
		busAddr |= bankSelectBit
	}
	return busAddr, uint16(memAddr & 0xFFFF)
}

// waitReady blocks until the device acks a zero-length probe or the
// write-cycle deadline has passed since the last completed write. An
// immediate ack costs exactly one probe. Deadline expiry is not an
// error: if the device is truly gone the next transaction surfaces the
// bus failure.
func (d *Device) waitReady(busAddr uint8) {
	deadline := writeCycleTime + d.extraWriteCycle
	for d.clock.Now().Sub(d.lastWrite) <= deadline {
		if d.bus.Probe(busAddr) == core.StatusOK {
			return
		}
		d.clock.Yield()
		d.clock.Sleep(ackPollInterval)
	}
}

// pageBlock writes length bytes starting at memAddr. Each chunk is the
// minimum of the remaining length, the transfer-buffer limit and the
// distance to the next page boundary, so no transaction straddles a
// page. When incr is false the head of buf is rewritten for every chunk
// (fill mode). The first failing chunk aborts; earlier chunks remain
// written.
func (d *Device) pageBlock(memAddr uint32, buf []byte, length uint32, incr bool) error {
	offset := uint32(0)
	for length > 0 {
		cnt := uint32(d.cfg.BufferSize)
		if cnt > length {
			cnt = length
		}
		if untilPage := d.cfg.PageSize - memAddr%d.cfg.PageSize; cnt > untilPage {
			cnt = untilPage
		}

		var chunk []byte
		if incr {
			chunk = buf[offset : offset+cnt]
		} else {
			chunk = buf[:cnt]
		}
		if status := d.writeChunk(memAddr, chunk); status != core.StatusOK {
			return status.Err()
		}

		memAddr += cnt
		if incr {
			offset += cnt
		}
		length -= cnt
	}
	return nil
}

// writeChunk performs one write transaction: the 2-byte big-endian
// native address followed by the chunk payload. The caller guarantees
// the chunk respects the page and buffer limits. The completion time is
// recorded to gate the next ready-wait, and control is yielded so long
// transfers do not starve other tasks.
func (d *Device) writeChunk(memAddr uint32, chunk []byte) core.BusStatus {
	busAddr, native := resolveAddress(d.cfg.Address, memAddr)
	d.waitReady(busAddr)

	msg := d.scratch[:0]
	msg = append(msg, byte(native>>8), byte(native))
	msg = append(msg, chunk...)

	status := d.bus.WriteTo(busAddr, msg)
	if core.IsDebugEnabled() {
		core.DebugPrintln(fmt.Sprintf("eeprom: write %d bytes at %#x (bus %#02x) status %d",
			len(chunk), memAddr, busAddr, status))
	}
	d.lastWrite = d.clock.Now()
	d.clock.Yield()
	return status
}

// readChunk reads len(buf) bytes from memAddr in one transaction. The
// caller guarantees the range stays within one bank.
func (d *Device) readChunk(memAddr uint32, buf []byte) (int, core.BusStatus) {
	busAddr, native := resolveAddress(d.cfg.Address, memAddr)
	d.waitReady(busAddr)

	prefix := [2]byte{byte(native >> 8), byte(native)}
	n, status := d.bus.WriteRead(busAddr, prefix[:], buf)
	if core.IsDebugEnabled() {
		core.DebugPrintln(fmt.Sprintf("eeprom: read %d/%d bytes at %#x (bus %#02x) status %d",
			n, len(buf), memAddr, busAddr, status))
	}
	d.clock.Yield()
	return n, status
}
