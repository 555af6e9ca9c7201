// Package bridge runs I2C transactions on a remote adapter board over a
// serial link. Bus implements core.I2CBus, so every driver in this
// module can talk to real hardware hanging off a USB serial adapter.
//
// Request payloads:
//
//	PROBE      [op] [addr]
//	WRITE      [op] [addr] [vlq data]
//	WRITE_READ [op] [addr] [vlq wdata] [vlq rlen]
//
// Replies carry [status] for PROBE and WRITE, [status] [vlq data] for
// WRITE_READ. Status is the bus code from core.BusStatus. Requests and
// replies share a 4-bit sequence counter; a reply with the wrong
// sequence is discarded.
package bridge

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"periphkit/core"
	"periphkit/host/serial"
	"periphkit/protocol"
)

// Request opcodes, defined next to the frame format.
const (
	opProbe     = protocol.OpProbe
	opWrite     = protocol.OpWrite
	opWriteRead = protocol.OpWriteRead
	opPinSet    = protocol.OpPinSet
)

// replyTimeout bounds one request/reply exchange.
const replyTimeout = 2 * time.Second

// ErrTimeout reports a missing or lost reply.
var ErrTimeout = errors.New("bridge: reply timeout")

// Bus is a remote I2C bus. One transaction is in flight at a time; the
// adapter owns its local bus exclusively, so transactions never
// interleave with other masters.
type Bus struct {
	mu   sync.Mutex
	port serial.Port
	dec  *protocol.Decoder
	seq  uint8
	rbuf [64]byte
}

// Open connects to the adapter on the configured port.
func Open(cfg *serial.Config) (*Bus, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, err
	}
	return NewBus(port), nil
}

// NewBus wraps an already open port.
func NewBus(port serial.Port) *Bus {
	return &Bus{port: port, dec: protocol.NewDecoder()}
}

// Close releases the serial port.
func (b *Bus) Close() error { return b.port.Close() }

// Probe issues a zero-length transaction to addr.
func (b *Bus) Probe(addr uint8) core.BusStatus {
	reply, err := b.roundTrip([]byte{opProbe, addr})
	if err != nil || len(reply) < 1 {
		return core.StatusOther
	}
	return core.BusStatus(reply[0])
}

// WriteTo writes data to addr in one transaction.
func (b *Bus) WriteTo(addr uint8, data []byte) core.BusStatus {
	payload := append([]byte{opWrite, addr}, protocol.AppendBytes(nil, data)...)
	reply, err := b.roundTrip(payload)
	if err != nil || len(reply) < 1 {
		return core.StatusOther
	}
	return core.BusStatus(reply[0])
}

// WriteRead writes w then reads into r with a repeated start.
func (b *Bus) WriteRead(addr uint8, w, r []byte) (int, core.BusStatus) {
	payload := []byte{opWriteRead, addr}
	payload = protocol.AppendBytes(payload, w)
	payload = protocol.AppendUint(payload, uint32(len(r)))

	reply, err := b.roundTrip(payload)
	if err != nil || len(reply) < 1 {
		return 0, core.StatusOther
	}
	status := core.BusStatus(reply[0])
	if status != core.StatusOK {
		return 0, status
	}
	rest := reply[1:]
	data, err := protocol.ReadBytes(&rest)
	if err != nil {
		return 0, core.StatusOther
	}
	return copy(r, data), status
}

// Pin returns a core.DigitalPin that drives GPIO id on the adapter.
// Edges cost a full round trip each; fine for chip selects and slow
// bit-banged parts, not for fast waveforms.
func (b *Bus) Pin(id uint8) core.DigitalPin {
	return core.PinFunc(func(high bool) {
		level := uint8(0)
		if high {
			level = 1
		}
		b.roundTrip([]byte{opPinSet, id, level})
	})
}

// roundTrip sends one request and waits for the matching reply.
func (b *Bus) roundTrip(payload []byte) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq = (b.seq + 1) & protocol.SeqMask
	frame, err := protocol.Encode(nil, b.seq, payload)
	if err != nil {
		return nil, err
	}
	if core.IsDebugEnabled() {
		core.DebugPrintln(fmt.Sprintf("bridge: op %#02x seq %d payload % x", payload[0], b.seq, payload[1:]))
	}
	if _, err := b.port.Write(frame); err != nil {
		return nil, fmt.Errorf("bridge: write: %w", err)
	}
	if err := b.port.Flush(); err != nil {
		return nil, fmt.Errorf("bridge: flush: %w", err)
	}

	deadline := time.Now().Add(replyTimeout)
	for time.Now().Before(deadline) {
		if reply, ok := b.nextReply(); ok {
			return reply, nil
		}
		n, err := b.port.Read(b.rbuf[:])
		if err != nil {
			return nil, fmt.Errorf("bridge: read: %w", err)
		}
		if n > 0 {
			b.dec.Feed(b.rbuf[:n])
		}
	}
	return nil, ErrTimeout
}

// nextReply drains decoded frames, dropping stale sequences.
func (b *Bus) nextReply() ([]byte, bool) {
	for {
		frame, ok := b.dec.Next()
		if !ok {
			return nil, false
		}
		if frame.Seq != b.seq {
			if core.IsDebugEnabled() {
				core.DebugPrintln(fmt.Sprintf("bridge: dropping stale reply seq %d, want %d", frame.Seq, b.seq))
			}
			continue // late reply from an abandoned exchange
		}
		return frame.Payload, true
	}
}
