// Two-wire bus abstraction shared by the I2C peripheral drivers.
package core

import (
	"errors"
	"fmt"
)

// BusStatus is the result code of a single bus transaction.
// The values mirror the classic two-wire status codes: 0 means the
// addressed device acknowledged, anything else identifies the failure.
type BusStatus uint8

const (
	StatusOK          BusStatus = 0 // transaction acknowledged
	StatusDataTooLong BusStatus = 1 // data exceeded the transfer buffer
	StatusNACKAddress BusStatus = 2 // no ack on the address byte
	StatusNACKData    BusStatus = 3 // no ack on a data byte
	StatusOther       BusStatus = 4 // any other bus error
)

// ErrBus is the sentinel wrapped by all transaction failures.
var ErrBus = errors.New("bus transaction failed")

// Err converts a status code to an error. StatusOK maps to nil.
func (s BusStatus) Err() error {
	if s == StatusOK {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrBus, s)
}

func (s BusStatus) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusDataTooLong:
		return "data too long"
	case StatusNACKAddress:
		return "address NACK"
	case StatusNACKData:
		return "data NACK"
	default:
		return "bus error"
	}
}

// I2CBus is the bus transaction primitive the drivers are built on.
// Implementations perform exactly one bus transaction per call. The bus
// is an exclusively owned resource: drivers assume no other caller
// interleaves transactions against the same device while a multi-chunk
// operation is in progress.
type I2CBus interface {
	// Probe performs a zero-length write transaction ("ack poll").
	// Devices NACK the probe while an internal write cycle is running.
	Probe(addr uint8) BusStatus

	// WriteTo performs a single write transaction of len(data) bytes.
	WriteTo(addr uint8, data []byte) BusStatus

	// WriteRead writes w (may be empty), then reads len(r) bytes after a
	// repeated start. It returns the number of bytes actually read; a
	// short count signals a bus-level failure together with the status.
	WriteRead(addr uint8, w, r []byte) (int, BusStatus)
}
