// Package nvm defines the non-volatile medium the preference store writes to,
// plus drivers for simulated EEPROM, image files, bbolt pages and a serial
// EEPROM bridge.
package nvm

import (
	"errors"
	"fmt"
)

// ErrFault marks a hardware-level read or write failure.
var ErrFault = errors.New("storage fault")

// ErrOutOfRange is returned for accesses beyond the end of the medium.
// It wraps ErrFault.
var ErrOutOfRange = fmt.Errorf("%w: address out of range", ErrFault)

// ErrPowerLost is returned by the simulated medium once a power cut fires.
// It wraps ErrFault.
var ErrPowerLost = fmt.Errorf("%w: power lost", ErrFault)

// Erased is the value of a never-written byte.
const Erased byte = 0xFF

// Device is a byte-addressable non-volatile medium.
type Device interface {
	// ReadBlock returns n bytes starting at addr.
	ReadBlock(addr, n int) ([]byte, error)

	// WriteBlock writes data starting at addr. A write is not atomic: a
	// failure may leave any prefix of data written.
	WriteBlock(addr int, data []byte) error

	// Size returns the capacity in bytes.
	Size() int

	// Close releases the medium.
	Close() error
}

func checkRange(size, addr, n int) error {
	if addr < 0 || n < 0 || addr+n > size {
		return fmt.Errorf("%w: [%d,%d) of %d", ErrOutOfRange, addr, addr+n, size)
	}
	return nil
}

func faultf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrFault, fmt.Sprintf(format, args...))
}
