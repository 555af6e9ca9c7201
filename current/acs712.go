// Package current reads ACS712 style Hall-effect current sensors
// through an ADC channel. One Sensor type serves all variants: they
// differ only in sensitivity (mV per ampere), which is a construction
// parameter rather than a subtype.
package current

import (
	"math"
	"time"

	"periphkit/core"
)

// Form factors translate a peak-to-peak reading to RMS for common
// waveforms. The crest factor of a real load usually sits a bit below
// the ideal sine value.
const (
	FormFactorSine     = 0.70710678 // 1/sqrt(2)
	FormFactorSquare   = 1.0
	FormFactorTriangle = 0.57735027 // 1/sqrt(3)
	FormFactorSawtooth = 0.57735027
)

// Sensitivity of the common variants in mV per ampere.
const (
	MilliVoltPerAmpere5A  = 185.0
	MilliVoltPerAmpere20A = 100.0
	MilliVoltPerAmpere30A = 66.0
)

const (
	// DefaultFrequency is the mains frequency assumed when sampling.
	DefaultFrequency = 50.0

	// DefaultNoiseMilliVolt is the datasheet output noise.
	DefaultNoiseMilliVolt = 21
)

// Sensor is one ACS712 channel.
type Sensor struct {
	adc   core.AnalogReader
	clock core.Clock

	mVPerStep    float64 // ADC step size in millivolts
	mVPerAmpere  float64
	mAPerStep    float64
	formFactor   float64
	midPoint     int
	noiseMV      int
	microsAdjust float64 // clock trim factor for frequency detection
}

// New creates a Sensor. volts is the ADC reference voltage, maxADC the
// full-scale reading (1023 for a 10-bit converter), mVPerAmpere the
// sensitivity of the part (use the MilliVoltPerAmpere constants).
func New(adc core.AnalogReader, volts float64, maxADC uint16, mVPerAmpere float64) *Sensor {
	s := &Sensor{
		adc:          adc,
		clock:        core.SystemClock(),
		mVPerStep:    1000.0 * volts / float64(maxADC),
		mVPerAmpere:  mVPerAmpere,
		formFactor:   FormFactorSine,
		midPoint:     int(maxADC) / 2,
		noiseMV:      DefaultNoiseMilliVolt,
		microsAdjust: 1.0,
	}
	s.mAPerStep = 1000.0 * s.mVPerStep / s.mVPerAmpere
	return s
}

// SetClock replaces the timing source.
func (s *Sensor) SetClock(clock core.Clock) { s.clock = clock }

//
// MEASUREMENTS
//

// MilliAmpsDC returns the DC current in mA, averaged over samples
// readings. Blocks well under a millisecond for small sample counts.
func (s *Sensor) MilliAmpsDC(samples int) float64 {
	if samples < 1 {
		samples = 1
	}
	sum := 0
	for i := 0; i < samples; i++ {
		sum += int(s.adc.ReadADC()) - s.midPoint
	}
	return float64(sum) / float64(samples) * s.mAPerStep
}

// PeakToPeak returns the peak-to-peak current in mA observed over the
// given number of whole cycles. Blocks for cycles/frequency seconds.
func (s *Sensor) PeakToPeak(frequency float64, cycles int) float64 {
	minV, maxV := s.extremes(frequency, cycles)
	return float64(maxV-minV) * s.mAPerStep
}

// MilliAmpsAC returns the RMS current in mA derived from the
// peak-to-peak level and the configured form factor. Readings below the
// noise floor report zero.
func (s *Sensor) MilliAmpsAC(frequency float64, cycles int) float64 {
	minV, maxV := s.extremes(frequency, cycles)
	p2p := maxV - minV
	if float64(p2p)*s.mVPerStep < float64(s.noiseMV) {
		return 0
	}
	return float64(p2p) / 2 * s.formFactor * s.mAPerStep
}

// MilliAmpsACSampling returns the RMS current in mA computed from the
// samples directly. Slower than MilliAmpsAC but correct for waveforms
// whose form factor is unknown.
func (s *Sensor) MilliAmpsACSampling(frequency float64, cycles int) float64 {
	var sum float64
	n := 0
	s.sample(frequency, cycles, func(v int) {
		d := float64(v - s.midPoint)
		sum += d * d
		n++
	})
	if n == 0 {
		return 0
	}
	return math.Sqrt(sum/float64(n)) * s.mAPerStep
}

//
// MIDPOINT
//

// SetMidPoint sets the raw ADC reference point for zero current.
func (s *Sensor) SetMidPoint(midPoint uint16) uint16 {
	s.midPoint = int(midPoint)
	return midPoint
}

// MidPoint returns the current zero-current reference point.
func (s *Sensor) MidPoint() uint16 { return uint16(s.midPoint) }

// IncMidPoint nudges the reference point up one step.
func (s *Sensor) IncMidPoint() uint16 {
	s.midPoint++
	return uint16(s.midPoint)
}

// DecMidPoint nudges the reference point down one step.
func (s *Sensor) DecMidPoint() uint16 {
	s.midPoint--
	return uint16(s.midPoint)
}

// AutoMidPoint calibrates the reference point by averaging over whole
// cycles, assuming zero DC current or a symmetric AC waveform.
func (s *Sensor) AutoMidPoint(frequency float64, cycles int) uint16 {
	sum := 0
	n := 0
	s.sample(frequency, cycles, func(v int) {
		sum += v
		n++
	})
	if n > 0 {
		s.midPoint = sum / n
	}
	return uint16(s.midPoint)
}

//
// TUNING
//

// SetFormFactor sets the peak-to-RMS factor used by MilliAmpsAC.
func (s *Sensor) SetFormFactor(ff float64) { s.formFactor = ff }

// FormFactor returns the configured form factor.
func (s *Sensor) FormFactor() float64 { return s.formFactor }

// SetNoiseMilliVolt sets the noise floor for MilliAmpsAC.
func (s *Sensor) SetNoiseMilliVolt(mv int) { s.noiseMV = mv }

// NoiseMilliVolt returns the configured noise floor.
func (s *Sensor) NoiseMilliVolt() int { return s.noiseMV }

// SetMilliVoltPerAmpere retunes the sensitivity.
func (s *Sensor) SetMilliVoltPerAmpere(mv float64) {
	s.mVPerAmpere = mv
	s.mAPerStep = 1000.0 * s.mVPerStep / s.mVPerAmpere
}

// MilliVoltPerAmpere returns the configured sensitivity.
func (s *Sensor) MilliVoltPerAmpere() float64 { return s.mVPerAmpere }

// MilliAmpsPerStep returns the resolution of one ADC step in mA.
func (s *Sensor) MilliAmpsPerStep() float64 { return s.mAPerStep }

// SetMicrosAdjust trims the clock for frequency detection (a factor
// close to 1.0 compensating a slightly off host oscillator).
func (s *Sensor) SetMicrosAdjust(factor float64) { s.microsAdjust = factor }

// MicrosAdjust returns the clock trim factor.
func (s *Sensor) MicrosAdjust() float64 { return s.microsAdjust }

//
// FREQUENCY DETECTION
//

// DetectFrequency measures the dominant signal frequency by timing
// rising crossings of the midpoint between the observed extremes. The
// sampling window is sized by the lowest frequency of interest, which
// bounds how long the call blocks.
func (s *Sensor) DetectFrequency(minFrequency float64) float64 {
	if minFrequency < 1 {
		minFrequency = 1
	}

	minV, maxV := s.extremes(minFrequency, 1)
	if maxV-minV < 4 { // flat signal, no frequency to find
		return 0
	}
	threshold := (minV + maxV) / 2

	// Time a handful of rising crossings; the window allows for the
	// slowest frequency plus margin.
	const crossings = 4
	deadline := s.clock.Now().Add(time.Duration(float64(crossings+2) * float64(time.Second) / minFrequency))

	var first, last time.Time
	seen := 0
	above := int(s.adc.ReadADC()) > threshold
	for s.clock.Now().Before(deadline) && seen < crossings {
		nowAbove := int(s.adc.ReadADC()) > threshold
		if nowAbove && !above {
			t := s.clock.Now()
			if seen == 0 {
				first = t
			}
			last = t
			seen++
		}
		above = nowAbove
		s.clock.Yield()
	}
	if seen < 2 {
		return 0
	}
	period := last.Sub(first).Seconds() / float64(seen-1)
	if period <= 0 {
		return 0
	}
	return 1 / period * s.microsAdjust
}

//
// PRIVATE
//

// sample invokes fn for every reading across whole cycles of the given
// frequency.
func (s *Sensor) sample(frequency float64, cycles int, fn func(v int)) {
	if cycles < 1 {
		cycles = 1
	}
	if frequency <= 0 {
		frequency = DefaultFrequency
	}
	window := time.Duration(float64(cycles) * float64(time.Second) / frequency)
	start := s.clock.Now()
	for s.clock.Now().Sub(start) < window {
		fn(int(s.adc.ReadADC()))
		s.clock.Yield()
	}
}

// extremes returns the min and max reading over whole cycles.
func (s *Sensor) extremes(frequency float64, cycles int) (minV, maxV int) {
	minV, maxV = math.MaxInt32, math.MinInt32
	s.sample(frequency, cycles, func(v int) {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	})
	if minV > maxV { // no samples taken
		return 0, 0
	}
	return minV, maxV
}
