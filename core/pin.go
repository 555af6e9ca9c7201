package core

// DigitalPin is a single GPIO output as seen by the bit-banged drivers.
// Platform code supplies the implementation; on TinyGo targets this is a
// one-line wrapper around machine.Pin.
type DigitalPin interface {
	// Set drives the pin high (true) or low (false).
	Set(high bool)
}

// PinFunc adapts a plain function to DigitalPin.
type PinFunc func(high bool)

func (f PinFunc) Set(high bool) { f(high) }
