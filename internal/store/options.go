package store

import (
	"log/slog"
	"time"
)

// DefaultSlotStride is the default distance between the two slots. It keeps
// each slot inside its own 64-byte EEPROM page.
const DefaultSlotStride = 64

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithBaseAddress places slot 0 at addr.
func WithBaseAddress(addr int) Option {
	return func(s *Store) {
		s.base = addr
	}
}

// WithSlotStride sets the distance in bytes between slot 0 and slot 1.
func WithSlotStride(stride int) Option {
	return func(s *Store) {
		s.stride = stride
	}
}

// WithMinSaveInterval rejects saves that follow a successful save within d
// with ErrSaveSkipped. Zero disables the limit.
func WithMinSaveInterval(d time.Duration) Option {
	return func(s *Store) {
		s.minInterval = d
	}
}
