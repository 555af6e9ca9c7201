// Package protocol implements the serial bridge wire format: small
// framed messages with a CRC16 trailer and a sync byte, plus the
// variable-length integer encoding used inside payloads.
//
// Frame layout:
//
//	[length] [sequence] [payload...] [crc hi] [crc lo] [0x7E]
//
// length covers the whole frame. The CRC covers length, sequence and
// payload. The sequence byte carries a 4-bit counter in its low nibble;
// the high nibble is fixed at 0x1 so a sequence byte never looks like a
// sync byte.
package protocol

import "errors"

const (
	HeaderSize  = 2
	TrailerSize = 3
	LengthMin   = HeaderSize + TrailerSize
	LengthMax   = 64

	// MaxPayload is the largest payload that fits one frame.
	MaxPayload = LengthMax - HeaderSize - TrailerSize

	SyncByte = 0x7E

	SeqMask = 0x0F
	seqHigh = 0x10
)

// Bridge request opcodes, first payload byte of a request frame.
const (
	OpProbe     = 0x01
	OpWrite     = 0x02
	OpWriteRead = 0x03
	OpPinSet    = 0x04
)

var (
	// ErrPayloadTooLarge reports a payload beyond MaxPayload.
	ErrPayloadTooLarge = errors.New("protocol: payload too large")
)

// Frame is one decoded message.
type Frame struct {
	Seq     uint8 // 0..15
	Payload []byte
}

// SeqByte returns the on-wire sequence byte for counter seq.
func SeqByte(seq uint8) uint8 { return seqHigh | seq&SeqMask }

// Encode appends one frame carrying payload to buf and returns the
// extended slice.
func Encode(buf []byte, seq uint8, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return buf, ErrPayloadTooLarge
	}
	start := len(buf)
	buf = append(buf, uint8(len(payload)+LengthMin), SeqByte(seq))
	buf = append(buf, payload...)
	crc := CRC16(buf[start:])
	return append(buf, uint8(crc>>8), uint8(crc), SyncByte), nil
}

// Decoder is an incremental frame parser. Feed it raw bytes as they
// arrive and drain complete frames with Next. Any framing violation
// drops sync; the decoder then discards input up to the next sync byte
// before parsing again, so a corrupted stream recovers at the following
// frame boundary.
type Decoder struct {
	buf    []byte
	synced bool
}

// NewDecoder returns a synchronized Decoder.
func NewDecoder() *Decoder {
	return &Decoder{synced: true}
}

// Synced reports whether the decoder currently trusts its input
// alignment.
func (d *Decoder) Synced() bool { return d.synced }

// Feed appends raw input bytes.
func (d *Decoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Next extracts the next complete frame, or returns false when more
// input is needed. The returned payload aliases the decoder's buffer
// only until the following Feed.
func (d *Decoder) Next() (Frame, bool) {
	for {
		if !d.synced {
			if !d.resync() {
				return Frame{}, false
			}
		}

		// skip inter-frame sync bytes
		for len(d.buf) > 0 && d.buf[0] == SyncByte {
			d.buf = d.buf[1:]
		}
		if len(d.buf) < LengthMin {
			return Frame{}, false
		}

		msgLen := int(d.buf[0])
		if msgLen < LengthMin || msgLen > LengthMax {
			d.synced = false
			continue
		}
		if d.buf[1]&^SeqMask != seqHigh {
			d.synced = false
			continue
		}
		if len(d.buf) < msgLen {
			return Frame{}, false
		}
		if d.buf[msgLen-1] != SyncByte {
			d.synced = false
			continue
		}
		wireCRC := uint16(d.buf[msgLen-TrailerSize])<<8 | uint16(d.buf[msgLen-TrailerSize+1])
		if wireCRC != CRC16(d.buf[:msgLen-TrailerSize]) {
			d.synced = false
			continue
		}

		frame := Frame{
			Seq:     d.buf[1] & SeqMask,
			Payload: d.buf[HeaderSize : msgLen-TrailerSize],
		}
		d.buf = d.buf[msgLen:]
		return frame, true
	}
}

// resync discards input up to and including the next sync byte. Reports
// whether sync was regained.
func (d *Decoder) resync() bool {
	for i, b := range d.buf {
		if b == SyncByte {
			d.buf = d.buf[i+1:]
			d.synced = true
			return true
		}
	}
	d.buf = nil
	return false
}
