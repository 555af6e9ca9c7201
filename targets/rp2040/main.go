//go:build rp2040 || rp2350

// Adapter firmware for RP2040/RP2350 boards. Exposes the local I2C bus
// and GPIO pins to a host over USB CDC using the bridge protocol.
package main

import (
	"machine"
	"time"

	"periphkit/adapter"
	"periphkit/core"
)

// i2cFrequency is the bus clock. 400kHz fast mode suits every supported
// peripheral; 24LC1025 parts are rated to 400kHz at 2.5V and up.
const i2cFrequency = 400_000

func main() {
	if err := machine.Serial.Configure(machine.UARTConfig{}); err != nil {
		return
	}
	if err := machine.I2C0.Configure(machine.I2CConfig{Frequency: i2cFrequency}); err != nil {
		blinkForever()
	}

	handler := adapter.New(
		core.WrapI2C(machineI2C{machine.I2C0}),
		adapterPin,
		writeReply,
	)

	buf := make([]byte, 64)
	for {
		n := 0
		for machine.Serial.Buffered() > 0 && n < len(buf) {
			b, err := machine.Serial.ReadByte()
			if err != nil {
				break
			}
			buf[n] = b
			n++
		}
		if n > 0 {
			handler.Feed(buf[:n])
		} else {
			time.Sleep(100 * time.Microsecond)
		}
	}
}

// machineI2C adapts machine.I2C to the drivers-style Tx interface.
type machineI2C struct {
	bus *machine.I2C
}

func (m machineI2C) Tx(addr uint16, w, r []byte) error {
	return m.bus.Tx(addr, w, r)
}

// adapterPin maps wire pin numbers directly to GPIO numbers, configured
// as outputs on first use.
var configuredPins = map[uint8]machine.Pin{}

func adapterPin(id uint8) core.DigitalPin {
	pin, ok := configuredPins[id]
	if !ok {
		pin = machine.Pin(id)
		pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
		configuredPins[id] = pin
	}
	return core.PinFunc(func(high bool) { pin.Set(high) })
}

func writeReply(frame []byte) {
	machine.Serial.Write(frame)
}

// blinkForever signals a fatal init error on the onboard LED.
func blinkForever() {
	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	for {
		led.High()
		time.Sleep(200 * time.Millisecond)
		led.Low()
		time.Sleep(200 * time.Millisecond)
	}
}
