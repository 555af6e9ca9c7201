// Package adapter implements the device side of the bridge protocol: it
// decodes request frames off the serial link, executes them on a local
// I2C bus and GPIO pins, and emits reply frames. The firmware targets
// wire it to machine peripherals; tests run it against fakes.
package adapter

import (
	"periphkit/core"
	"periphkit/protocol"
)

// PinFunc resolves a wire pin number to a local pin, or nil when the id
// is not usable.
type PinFunc func(id uint8) core.DigitalPin

// Handler executes bridge requests.
type Handler struct {
	bus  core.I2CBus
	pins PinFunc
	emit func([]byte)
	dec  *protocol.Decoder

	scratch [protocol.MaxPayload]byte
}

// New creates a Handler. emit is called with each encoded reply frame,
// ready to write to the link.
func New(bus core.I2CBus, pins PinFunc, emit func([]byte)) *Handler {
	return &Handler{bus: bus, pins: pins, emit: emit, dec: protocol.NewDecoder()}
}

// Feed consumes raw link input and replies to every complete request.
func (h *Handler) Feed(p []byte) {
	h.dec.Feed(p)
	for {
		frame, ok := h.dec.Next()
		if !ok {
			return
		}
		reply := h.execute(frame.Payload)
		encoded, err := protocol.Encode(nil, frame.Seq, reply)
		if err != nil {
			continue
		}
		h.emit(encoded)
	}
}

// execute runs one request payload and builds the reply payload.
func (h *Handler) execute(payload []byte) []byte {
	if len(payload) < 2 {
		return []byte{byte(core.StatusOther)}
	}
	op, addr := payload[0], payload[1]
	rest := payload[2:]

	switch op {
	case protocol.OpProbe:
		return []byte{byte(h.bus.Probe(addr))}

	case protocol.OpWrite:
		data, err := protocol.ReadBytes(&rest)
		if err != nil {
			return []byte{byte(core.StatusOther)}
		}
		return []byte{byte(h.bus.WriteTo(addr, data))}

	case protocol.OpWriteRead:
		w, err := protocol.ReadBytes(&rest)
		if err != nil {
			return []byte{byte(core.StatusOther)}
		}
		// status byte + length prefix must still fit the reply frame
		rlen, err := protocol.ReadUint(&rest)
		if err != nil || rlen > protocol.MaxPayload-3 {
			return []byte{byte(core.StatusOther)}
		}
		n, status := h.bus.WriteRead(addr, w, h.scratch[:rlen])
		reply := []byte{byte(status)}
		if status != core.StatusOK {
			return reply
		}
		return protocol.AppendBytes(reply, h.scratch[:n])

	case protocol.OpPinSet:
		if len(rest) != 1 {
			return []byte{byte(core.StatusOther)}
		}
		pin := h.pins(addr)
		if pin == nil {
			return []byte{byte(core.StatusOther)}
		}
		pin.Set(rest[0] != 0)
		return []byte{byte(core.StatusOK)}
	}
	return []byte{byte(core.StatusOther)}
}
