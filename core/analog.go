package core

// AnalogReader is a single ADC channel. ReadADC returns the raw
// conversion result; resolution and reference voltage are the consuming
// driver's concern (it is configured with the channel's full-scale
// parameters).
type AnalogReader interface {
	ReadADC() uint16
}

// AnalogReaderFunc adapts a plain function to AnalogReader.
type AnalogReaderFunc func() uint16

func (f AnalogReaderFunc) ReadADC() uint16 { return f() }
