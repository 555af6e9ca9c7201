package core

import (
	"errors"
	"testing"
)

func TestBusStatusErr(t *testing.T) {
	if err := StatusOK.Err(); err != nil {
		t.Errorf("StatusOK.Err() = %v, want nil", err)
	}

	for _, st := range []BusStatus{StatusDataTooLong, StatusNACKAddress, StatusNACKData, StatusOther} {
		err := st.Err()
		if err == nil {
			t.Errorf("%s.Err() = nil, want error", st)
			continue
		}
		if !errors.Is(err, ErrBus) {
			t.Errorf("%s.Err() does not wrap ErrBus: %v", st, err)
		}
	}
}

// fakeTx records transactions passed through the drivers.I2C contract.
type fakeTx struct {
	addr uint16
	w    []byte
	r    []byte
	err  error
}

func (f *fakeTx) Tx(addr uint16, w, r []byte) error {
	f.addr = addr
	f.w = append([]byte(nil), w...)
	f.r = r
	for i := range r {
		r[i] = byte(i + 1)
	}
	return f.err
}

func TestWrapI2C(t *testing.T) {
	fake := &fakeTx{}
	bus := WrapI2C(fake)

	if st := bus.Probe(0x50); st != StatusOK {
		t.Errorf("Probe status = %s, want ok", st)
	}
	if fake.addr != 0x50 || len(fake.w) != 0 {
		t.Errorf("Probe issued addr=%#x w=%v, want zero-length write to 0x50", fake.addr, fake.w)
	}

	if st := bus.WriteTo(0x51, []byte{1, 2, 3}); st != StatusOK {
		t.Errorf("WriteTo status = %s, want ok", st)
	}
	if fake.addr != 0x51 || len(fake.w) != 3 {
		t.Errorf("WriteTo issued addr=%#x w=%v", fake.addr, fake.w)
	}

	buf := make([]byte, 4)
	n, st := bus.WriteRead(0x52, []byte{0xAA}, buf)
	if st != StatusOK || n != 4 {
		t.Errorf("WriteRead = (%d, %s), want (4, ok)", n, st)
	}
	if buf[0] != 1 || buf[3] != 4 {
		t.Errorf("WriteRead buffer = %v", buf)
	}

	fake.err = errors.New("nak")
	if st := bus.Probe(0x50); st != StatusNACKAddress {
		t.Errorf("failing Probe status = %s, want address NACK", st)
	}
	if st := bus.WriteTo(0x50, []byte{1}); st != StatusNACKData {
		t.Errorf("failing WriteTo status = %s, want data NACK", st)
	}
	if n, st := bus.WriteRead(0x50, nil, buf); n != 0 || st == StatusOK {
		t.Errorf("failing WriteRead = (%d, %s), want (0, error)", n, st)
	}
}
