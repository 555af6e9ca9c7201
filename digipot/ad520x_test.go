package digipot

import (
	"testing"

	"periphkit/core"
)

// spiRecorder captures every Tx as one transaction.
type spiRecorder struct {
	txs [][]byte
}

func (s *spiRecorder) Tx(w, r []byte) error {
	s.txs = append(s.txs, append([]byte(nil), w...))
	return nil
}

func (s *spiRecorder) Transfer(b byte) (byte, error) {
	s.txs = append(s.txs, []byte{b})
	return 0, nil
}

// pinState tracks a boolean pin level plus edge count.
type pinState struct {
	high  bool
	edges int
}

func (p *pinState) Set(high bool) {
	if high != p.high {
		p.edges++
	}
	p.high = high
}

// spiDecoder reassembles bytes from mode-0 data/clock edges while select
// is low.
type spiDecoder struct {
	sel   pinState
	data  pinState
	bits  int
	cur   uint8
	bytes []uint8
}

func (d *spiDecoder) selPin() core.DigitalPin  { return core.PinFunc(d.sel.Set) }
func (d *spiDecoder) dataPin() core.DigitalPin { return core.PinFunc(d.data.Set) }

func (d *spiDecoder) clockPin() core.DigitalPin {
	return core.PinFunc(func(high bool) {
		if !high || d.sel.high {
			return // sample on rising edge, chip selected only
		}
		d.cur = d.cur<<1 | boolBit(d.data.high)
		if d.bits++; d.bits == 8 {
			d.bytes = append(d.bytes, d.cur)
			d.bits, d.cur = 0, 0
		}
	})
}

func boolBit(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func newHWDevice(t *testing.T) (*Device, *spiRecorder) {
	rec := &spiRecorder{}
	var sel pinState
	dev := NewAD5206(core.PinFunc(sel.Set))
	dev.SetSPI(rec)
	if err := dev.Begin(MiddleValue); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	rec.txs = nil // discard the Begin programming
	return dev, rec
}

func TestBeginRequiresBus(t *testing.T) {
	var sel pinState
	dev := NewAD8400(core.PinFunc(sel.Set))
	if err := dev.Begin(0); err != ErrNoBus {
		t.Errorf("Begin without bus = %v, want ErrNoBus", err)
	}
}

func TestBeginProgramsAllChannels(t *testing.T) {
	rec := &spiRecorder{}
	var sel pinState
	dev := NewAD5204(core.PinFunc(sel.Set))
	dev.SetSPI(rec)
	if err := dev.Begin(MiddleValue); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if len(rec.txs) != 4 {
		t.Fatalf("Begin sent %d words, want 4", len(rec.txs))
	}
	for ch, tx := range rec.txs {
		if tx[0] != uint8(ch) || tx[1] != MiddleValue {
			t.Errorf("word %d = % x, want %02x 80", ch, tx, ch)
		}
	}
}

func TestSetValue(t *testing.T) {
	dev, rec := newHWDevice(t)

	if err := dev.SetValue(3, 200); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	if len(rec.txs) != 1 || rec.txs[0][0] != 3 || rec.txs[0][1] != 200 {
		t.Errorf("wire word = %v, want [[3 200]]", rec.txs)
	}
	if v, _ := dev.GetValue(3); v != 200 {
		t.Errorf("GetValue = %d, want 200", v)
	}

	if err := dev.SetValue(6, 0); err != ErrChannel {
		t.Errorf("SetValue(6) = %v, want ErrChannel", err)
	}
	if _, err := dev.GetValue(-1); err != ErrChannel {
		t.Errorf("GetValue(-1) = %v, want ErrChannel", err)
	}
}

func TestPercentage(t *testing.T) {
	dev, _ := newHWDevice(t)

	if err := dev.SetPercentage(0, 100); err != nil {
		t.Fatalf("SetPercentage: %v", err)
	}
	if v, _ := dev.GetValue(0); v != 255 {
		t.Errorf("100%% = %d, want 255", v)
	}
	if err := dev.SetPercentage(0, 0); err != nil {
		t.Fatalf("SetPercentage: %v", err)
	}
	if pct, _ := dev.GetPercentage(0); pct != 0 {
		t.Errorf("GetPercentage = %f, want 0", pct)
	}
	if err := dev.SetPercentage(0, 101); err != ErrPercentage {
		t.Errorf("SetPercentage(101) = %v, want ErrPercentage", err)
	}
}

func TestResetReprogramsAll(t *testing.T) {
	dev, rec := newHWDevice(t)
	var rst pinState
	rst.high = true
	dev.SetResetPin(core.PinFunc(rst.Set))

	if err := dev.Reset(10); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if rst.edges != 2 { // pulse low then back high
		t.Errorf("reset pin saw %d edges, want 2", rst.edges)
	}
	if len(rec.txs) != dev.Channels() {
		t.Errorf("Reset sent %d words, want %d", len(rec.txs), dev.Channels())
	}
	for ch := 0; ch < dev.Channels(); ch++ {
		if v, _ := dev.GetValue(ch); v != 10 {
			t.Errorf("channel %d = %d after Reset, want 10", ch, v)
		}
	}
}

func TestPower(t *testing.T) {
	dev, _ := newHWDevice(t)
	var shdn pinState
	dev.SetShutdownPin(core.PinFunc(shdn.Set))

	dev.PowerOff()
	if dev.IsPowerOn() || shdn.high {
		t.Error("PowerOff did not assert shutdown")
	}
	dev.PowerOn()
	if !dev.IsPowerOn() || !shdn.high {
		t.Error("PowerOn did not release shutdown")
	}
}

func TestSoftwareSPIWaveform(t *testing.T) {
	dec := &spiDecoder{}
	dec.sel.high = true
	dev := NewAD8402(dec.selPin())
	dev.SetDataClockPins(dec.dataPin(), dec.clockPin())
	if err := dev.Begin(0); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	dec.bytes = nil

	if err := dev.SetValue(1, 0xA5); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	want := []uint8{0x01, 0xA5}
	if len(dec.bytes) != 2 || dec.bytes[0] != want[0] || dec.bytes[1] != want[1] {
		t.Errorf("bit-banged word = % x, want % x", dec.bytes, want)
	}
	if !dec.sel.high {
		t.Error("chip select left asserted")
	}
}
