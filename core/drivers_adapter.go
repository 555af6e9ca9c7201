package core

import "tinygo.org/x/drivers"

// i2cWrapper adapts the tinygo.org/x/drivers bus contract to I2CBus.
// On a TinyGo target machine.I2C satisfies drivers.I2C directly, so the
// same driver code runs against real hardware and against host-side bus
// implementations.
type i2cWrapper struct {
	bus drivers.I2C
}

// WrapI2C returns an I2CBus backed by a drivers.I2C implementation.
// drivers.I2C reports failures as opaque errors, so the wrapper can only
// classify them coarsely: probes map to an address NACK, writes to a
// data NACK.
func WrapI2C(bus drivers.I2C) I2CBus {
	return &i2cWrapper{bus: bus}
}

func (w *i2cWrapper) Probe(addr uint8) BusStatus {
	if err := w.bus.Tx(uint16(addr), nil, nil); err != nil {
		return StatusNACKAddress
	}
	return StatusOK
}

func (w *i2cWrapper) WriteTo(addr uint8, data []byte) BusStatus {
	if err := w.bus.Tx(uint16(addr), data, nil); err != nil {
		return StatusNACKData
	}
	return StatusOK
}

func (w *i2cWrapper) WriteRead(addr uint8, wbuf, r []byte) (int, BusStatus) {
	if err := w.bus.Tx(uint16(addr), wbuf, r); err != nil {
		return 0, StatusOther
	}
	return len(r), StatusOK
}
