package fram

import (
	"bytes"
	"testing"
	"time"

	"periphkit/core"
)

// memBus simulates a 32 KiB FRAM with a device-ID word on the reserved
// slave address.
type memBus struct {
	t      *testing.T
	mem    [32 * 1024]byte
	meta   [3]byte
	writes int
	asleep bool
}

func newMemBus(t *testing.T) *memBus {
	b := &memBus{t: t}
	// manufacturer 0x00A, density 5 (MB85RC256 -> 32 KiB), product 0x510
	b.meta = [3]byte{0x00, 0xA5, 0x10}
	return b
}

func (b *memBus) Probe(addr uint8) core.BusStatus {
	if addr == sleepCmd>>1 {
		b.asleep = true
		return core.StatusOK
	}
	if b.asleep {
		b.asleep = false // any access wakes the part
		return core.StatusNACKAddress
	}
	return core.StatusOK
}

func (b *memBus) WriteTo(addr uint8, data []byte) core.BusStatus {
	if addr == metaSlaveID {
		return core.StatusOK
	}
	if len(data) < 2 {
		b.t.Errorf("write without address prefix: % x", data)
		return core.StatusOther
	}
	if len(data)-2 > blockSize {
		b.t.Errorf("write chunk of %d bytes exceeds soft limit %d", len(data)-2, blockSize)
	}
	memAddr := int(data[0])<<8 | int(data[1])
	copy(b.mem[memAddr:], data[2:])
	b.writes++
	return core.StatusOK
}

func (b *memBus) WriteRead(addr uint8, w, r []byte) (int, core.BusStatus) {
	if addr == metaSlaveID {
		return copy(r, b.meta[:]), core.StatusOK
	}
	if len(w) != 2 {
		b.t.Errorf("read with %d-byte address prefix", len(w))
		return 0, core.StatusOther
	}
	memAddr := int(w[0])<<8 | int(w[1])
	return copy(r, b.mem[memAddr:]), core.StatusOK
}

func newTestDevice(t *testing.T) (*Device, *memBus) {
	bus := newMemBus(t)
	dev, err := New(bus, 0x50)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := dev.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	return dev, bus
}

func TestNewValidatesAddress(t *testing.T) {
	bus := newMemBus(t)
	for _, addr := range []uint8{0x4F, 0x58, 0x00} {
		if _, err := New(bus, addr); err != ErrInvalidAddress {
			t.Errorf("New(%#02x) error = %v, want ErrInvalidAddress", addr, err)
		}
	}
	if _, err := New(bus, 0x57); err != nil {
		t.Errorf("New(0x57) error = %v, want nil", err)
	}
}

func TestScalarRoundTrip(t *testing.T) {
	dev, _ := newTestDevice(t)

	if err := dev.Write8(0x10, 0xAB); err != nil {
		t.Fatalf("Write8: %v", err)
	}
	if got, _ := dev.Read8(0x10); got != 0xAB {
		t.Errorf("Read8 = %#02x, want 0xAB", got)
	}

	if err := dev.Write16(0x20, 0xBEEF); err != nil {
		t.Fatalf("Write16: %v", err)
	}
	if got, _ := dev.Read16(0x20); got != 0xBEEF {
		t.Errorf("Read16 = %#04x, want 0xBEEF", got)
	}

	if err := dev.Write32(0x30, 0xDEADBEEF); err != nil {
		t.Fatalf("Write32: %v", err)
	}
	if got, _ := dev.Read32(0x30); got != 0xDEADBEEF {
		t.Errorf("Read32 = %#08x, want 0xDEADBEEF", got)
	}
}

func TestBlockRoundTripChunked(t *testing.T) {
	dev, bus := newTestDevice(t)

	src := make([]byte, 100)
	for i := range src {
		src[i] = byte(i ^ 0x5A)
	}
	if err := dev.WriteBlock(0x100, src); err != nil {
		t.Fatalf("WriteBlock: %v", err)
	}
	// 100 bytes in 24-byte chunks: 24+24+24+24+4.
	if bus.writes != 5 {
		t.Errorf("WriteBlock issued %d transactions, want 5", bus.writes)
	}

	got := make([]byte, 100)
	if err := dev.ReadBlock(0x100, got); err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	if !bytes.Equal(got, src) {
		t.Errorf("read-back differs from source")
	}
}

func TestMetadata(t *testing.T) {
	dev, _ := newTestDevice(t)

	if got, err := dev.ManufacturerID(); err != nil || got != 0x00A {
		t.Errorf("ManufacturerID = (%#x, %v), want (0x00A, nil)", got, err)
	}
	if got, err := dev.ProductID(); err != nil || got != 0x510 {
		t.Errorf("ProductID = (%#x, %v), want (0x510, nil)", got, err)
	}
	// density 5 -> 2^5 KiB = 32 KiB, picked up by Begin.
	if dev.Size() != 32*1024 {
		t.Errorf("Size = %d, want %d", dev.Size(), 32*1024)
	}
}

func TestSetSizeOverride(t *testing.T) {
	dev, _ := newTestDevice(t)
	dev.SetSizeBytes(8 * 1024)
	if dev.Size() != 8*1024 {
		t.Errorf("Size after override = %d", dev.Size())
	}
}

func TestClear(t *testing.T) {
	dev, bus := newTestDevice(t)
	dev.SetSizeBytes(256)

	for i := 0; i < 256; i++ {
		bus.mem[i] = byte(i)
	}
	n, err := dev.Clear(0xFF)
	if err != nil || n != 256 {
		t.Fatalf("Clear = (%d, %v), want (256, nil)", n, err)
	}
	for i := 0; i < 256; i++ {
		if bus.mem[i] != 0xFF {
			t.Fatalf("byte %d = %#02x after Clear", i, bus.mem[i])
		}
	}
}

func TestWriteProtect(t *testing.T) {
	dev, _ := newTestDevice(t)

	if dev.SetWriteProtect(true) {
		t.Error("SetWriteProtect succeeded without a WP pin")
	}

	var pinState bool
	dev.SetWriteProtectPin(core.PinFunc(func(high bool) { pinState = high }))
	if !dev.SetWriteProtect(true) || !pinState || !dev.WriteProtect() {
		t.Error("SetWriteProtect(true) did not drive the pin")
	}
	if !dev.SetWriteProtect(false) || pinState || dev.WriteProtect() {
		t.Error("SetWriteProtect(false) did not release the pin")
	}
}

func TestSleepWakeup(t *testing.T) {
	dev, bus := newTestDevice(t)
	if err := dev.Sleep(); err != nil {
		t.Fatalf("Sleep: %v", err)
	}
	if !bus.asleep {
		t.Fatal("device not asleep after Sleep")
	}
	// First access wakes the part but still NACKs; after trec it acks.
	if !dev.Wakeup(400 * time.Microsecond) {
		t.Error("Wakeup = false")
	}
}
