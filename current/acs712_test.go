package current

import (
	"math"
	"testing"
	"time"

	"periphkit/core"
)

// simClock advances only when the simulated ADC takes a sample, so
// measurements are fully deterministic.
type simClock struct {
	now time.Time
}

func (c *simClock) Now() time.Time        { return c.now }
func (c *simClock) Sleep(d time.Duration) { c.now = c.now.Add(d) }
func (c *simClock) Yield()                {}

// sineADC produces a sine wave derived from the simulated clock and
// charges 100µs of conversion time per sample.
type sineADC struct {
	clock     *simClock
	base      time.Time
	freq      float64
	mid, ampl float64
}

func newSineADC(clock *simClock, freq, mid, ampl float64) *sineADC {
	return &sineADC{clock: clock, base: clock.now, freq: freq, mid: mid, ampl: ampl}
}

func (a *sineADC) ReadADC() uint16 {
	t := a.clock.now.Sub(a.base).Seconds()
	v := a.mid + a.ampl*math.Sin(2*math.Pi*a.freq*t)
	a.clock.now = a.clock.now.Add(100 * time.Microsecond)
	return uint16(math.Round(v))
}

// constADC returns a fixed reading with the same 100µs sample cost.
type constADC struct {
	clock *simClock
	value uint16
}

func (a *constADC) ReadADC() uint16 {
	a.clock.now = a.clock.now.Add(100 * time.Microsecond)
	return a.value
}

// newTestSensor wires a 10-bit, 5V, 100mV/A (20A part) sensor to the
// given reader.
func newTestSensor(adc core.AnalogReader, clock *simClock) *Sensor {
	s := New(adc, 5.0, 1023, MilliVoltPerAmpere20A)
	s.SetClock(clock)
	return s
}

func TestMilliAmpsDC(t *testing.T) {
	clock := &simClock{now: time.Unix(0, 0)}
	adc := &constADC{clock: clock, value: 531} // 20 steps above midpoint
	s := newTestSensor(adc, clock)

	got := s.MilliAmpsDC(4)
	want := 20 * s.MilliAmpsPerStep()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("MilliAmpsDC = %f, want %f", got, want)
	}

	// Negative current reads below the midpoint.
	adc.value = 481
	if got := s.MilliAmpsDC(1); got >= 0 {
		t.Errorf("MilliAmpsDC below midpoint = %f, want negative", got)
	}
}

func TestMilliAmpsACAgainstSampling(t *testing.T) {
	clock := &simClock{now: time.Unix(0, 0)}
	adc := newSineADC(clock, 50, 511, 100)
	s := newTestSensor(adc, clock)

	ac := s.MilliAmpsAC(50, 1)
	rms := s.MilliAmpsACSampling(50, 1)

	// Ideal sine: both paths must land on amplitude/sqrt(2) in steps.
	want := 100 / math.Sqrt2 * s.MilliAmpsPerStep()
	if math.Abs(ac-want)/want > 0.05 {
		t.Errorf("MilliAmpsAC = %f, want about %f", ac, want)
	}
	if math.Abs(rms-want)/want > 0.05 {
		t.Errorf("MilliAmpsACSampling = %f, want about %f", rms, want)
	}
}

func TestMilliAmpsACNoiseSuppression(t *testing.T) {
	clock := &simClock{now: time.Unix(0, 0)}
	// Amplitude 1 step (~4.9mV p2p) sits below the 21mV noise floor.
	adc := newSineADC(clock, 50, 511, 1)
	s := newTestSensor(adc, clock)

	if got := s.MilliAmpsAC(50, 1); got != 0 {
		t.Errorf("MilliAmpsAC below noise floor = %f, want 0", got)
	}
}

func TestPeakToPeak(t *testing.T) {
	clock := &simClock{now: time.Unix(0, 0)}
	adc := newSineADC(clock, 50, 511, 100)
	s := newTestSensor(adc, clock)

	got := s.PeakToPeak(50, 1)
	want := 200 * s.MilliAmpsPerStep()
	if math.Abs(got-want)/want > 0.05 {
		t.Errorf("PeakToPeak = %f, want about %f", got, want)
	}
}

func TestAutoMidPoint(t *testing.T) {
	clock := &simClock{now: time.Unix(0, 0)}
	adc := newSineADC(clock, 50, 600, 80) // off-center waveform
	s := newTestSensor(adc, clock)

	got := s.AutoMidPoint(50, 2)
	if got < 595 || got > 605 {
		t.Errorf("AutoMidPoint = %d, want about 600", got)
	}
}

func TestMidPointAdjustment(t *testing.T) {
	clock := &simClock{now: time.Unix(0, 0)}
	s := newTestSensor(&constADC{clock: clock, value: 511}, clock)

	s.SetMidPoint(500)
	if s.MidPoint() != 500 {
		t.Errorf("MidPoint = %d, want 500", s.MidPoint())
	}
	if s.IncMidPoint() != 501 || s.DecMidPoint() != 500 {
		t.Error("Inc/DecMidPoint did not move by one step")
	}
}

func TestSensitivityRetuning(t *testing.T) {
	clock := &simClock{now: time.Unix(0, 0)}
	s := newTestSensor(&constADC{clock: clock, value: 511}, clock)

	before := s.MilliAmpsPerStep()
	s.SetMilliVoltPerAmpere(MilliVoltPerAmpere5A)
	after := s.MilliAmpsPerStep()
	if s.MilliVoltPerAmpere() != MilliVoltPerAmpere5A {
		t.Errorf("MilliVoltPerAmpere = %f", s.MilliVoltPerAmpere())
	}
	// Higher sensitivity means fewer mA per step.
	if after >= before {
		t.Errorf("mA/step did not drop: %f -> %f", before, after)
	}
}

func TestDetectFrequency(t *testing.T) {
	clock := &simClock{now: time.Unix(0, 0)}
	adc := newSineADC(clock, 60, 511, 100)
	s := newTestSensor(adc, clock)

	got := s.DetectFrequency(40)
	if math.Abs(got-60) > 2 {
		t.Errorf("DetectFrequency = %f, want about 60", got)
	}
}

func TestDetectFrequencyFlatSignal(t *testing.T) {
	clock := &simClock{now: time.Unix(0, 0)}
	s := newTestSensor(&constADC{clock: clock, value: 511}, clock)

	if got := s.DetectFrequency(40); got != 0 {
		t.Errorf("DetectFrequency on flat signal = %f, want 0", got)
	}
}
