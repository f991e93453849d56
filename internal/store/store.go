// Package store keeps one UserPreference record durable on a non-volatile
// medium.
//
// Two slots hold full copies of the record. A save always writes the slot
// that is not currently authoritative and commits it with a single-byte
// write after the written bytes have been read back and verified, so power
// loss at any point leaves either the previous or the new record current.
package store

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"lamp-prefs/internal/layout"
	"lamp-prefs/internal/nvm"
	"lamp-prefs/internal/prefs"
)

const slotCount = 2

var (
	// ErrSaveSkipped is returned when a save arrives inside the minimum save
	// interval. Nothing was written.
	ErrSaveSkipped = errors.New("save skipped: too soon after previous save")

	// ErrVerify is returned when the read-back of a written slot does not
	// match. It wraps nvm.ErrFault.
	ErrVerify = fmt.Errorf("%w: verify after write failed", nvm.ErrFault)
)

// SlotState describes the observed state of one slot.
type SlotState int

const (
	SlotEmpty SlotState = iota
	SlotWriting
	SlotCommitted
	SlotCorrupt
)

func (s SlotState) String() string {
	switch s {
	case SlotEmpty:
		return "empty"
	case SlotWriting:
		return "writing"
	case SlotCommitted:
		return "committed"
	case SlotCorrupt:
		return "corrupt"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// SlotInfo is the inspection result for one slot.
type SlotInfo struct {
	Index    int
	Address  int
	State    SlotState
	Sequence uint32 // valid when State is SlotCommitted
	Active   bool
	Reason   error // why the slot was rejected, nil when committed or empty
}

// Result describes a committed save.
type Result struct {
	Slot     int
	Sequence uint32
}

// Store owns the persisted preference record. Calls are serialized; each one
// runs to completion before the next starts.
type Store struct {
	mu     sync.Mutex
	dev    nvm.Device
	logger *slog.Logger

	base        int
	stride      int
	minInterval time.Duration
	limiter     *rate.Limiter

	current prefs.UserPreference
	scanned bool   // active/seq reflect the medium
	active  int    // authoritative slot, -1 if none
	seq     uint32 // sequence of the authoritative slot
}

// New creates a store on dev. It does not touch the medium; call Load at boot.
func New(dev nvm.Device, opts ...Option) (*Store, error) {
	s := &Store{
		dev:     dev,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		stride:  DefaultSlotStride,
		current: prefs.Default(),
		active:  -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "prefstore")

	if s.base < 0 {
		return nil, fmt.Errorf("store: negative base address %d", s.base)
	}
	if s.stride < layout.SlotSize {
		return nil, fmt.Errorf("store: slot stride %d smaller than slot size %d", s.stride, layout.SlotSize)
	}
	if end := s.addr(slotCount-1) + layout.SlotSize; end > dev.Size() {
		return nil, fmt.Errorf("store: slots need %d bytes, medium has %d", end, dev.Size())
	}
	if s.minInterval > 0 {
		s.limiter = rate.NewLimiter(rate.Every(s.minInterval), 1)
	}
	return s, nil
}

func (s *Store) addr(slot int) int {
	return s.base + slot*s.stride
}

// Load reads the persisted record. When no slot holds a valid record the
// factory defaults are returned with Saved false. A hardware read fault also
// yields the defaults, together with an error wrapping nvm.ErrFault.
func (s *Store) Load() (prefs.UserPreference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.scan(); err != nil {
		s.logger.Error("preference load failed, using defaults", "err", err)
		s.current = prefs.Default()
		return s.current, err
	}
	return s.current, nil
}

// Save validates p and persists it with Saved forced to true.
func (s *Store) Save(p prefs.UserPreference) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.limiter != nil && s.limiter.Tokens() < 1 {
		s.logger.Info("preference save skipped", "min_interval", s.minInterval)
		return Result{}, ErrSaveSkipped
	}

	if !s.scanned {
		if _, err := s.scan(); err != nil {
			return Result{}, fmt.Errorf("locate active slot: %w", err)
		}
	}

	target := 0
	if s.active == 0 {
		target = 1
	}
	seq := s.seq + 1
	p.Saved = true

	if err := s.writeSlot(target, seq, p); err != nil {
		s.logger.Error("preference save failed", "slot", target, "seq", seq, "err", err)
		return Result{}, err
	}

	if s.limiter != nil {
		s.limiter.Allow()
	}
	s.active = target
	s.seq = seq
	s.current = p
	s.logger.Info("preference saved", "slot", target, "seq", seq)
	return Result{Slot: target, Sequence: seq}, nil
}

// writeSlot runs the commit protocol on one slot: clear the commit byte,
// write the record, read it back, then set the commit byte.
func (s *Store) writeSlot(slot int, seq uint32, p prefs.UserPreference) error {
	addr := s.addr(slot)
	buf := layout.Encode(seq, p)
	body := buf[:layout.CommitOffset]

	if err := s.dev.WriteBlock(addr+layout.CommitOffset, []byte{layout.CommitClear}); err != nil {
		return fmt.Errorf("invalidate slot %d: %w", slot, err)
	}
	if err := s.dev.WriteBlock(addr, body); err != nil {
		return fmt.Errorf("write slot %d: %w", slot, err)
	}
	got, err := s.dev.ReadBlock(addr, len(body))
	if err != nil {
		return fmt.Errorf("read back slot %d: %w", slot, err)
	}
	if !bytes.Equal(got, body) {
		return fmt.Errorf("slot %d: %w", slot, ErrVerify)
	}
	if err := s.dev.WriteBlock(addr+layout.CommitOffset, []byte{layout.CommitSet}); err != nil {
		return fmt.Errorf("commit slot %d: %w", slot, err)
	}
	return nil
}

// Current returns the record the store holds in memory: the last one loaded
// or saved, or the defaults before the first Load.
func (s *Store) Current() prefs.UserPreference {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Inspect reports the state of both slots without changing anything.
func (s *Store) Inspect() ([slotCount]SlotInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	infos, _, err := s.readSlots()
	return infos, err
}

// Erase returns the medium to the factory state. Each slot's commit byte is
// cleared before the rest of the slot is erased.
func (s *Store) Erase() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.scanned {
		if _, err := s.scan(); err != nil {
			return fmt.Errorf("locate active slot: %w", err)
		}
	}

	// Inactive slot first so an interrupted erase never resurrects an older record.
	order := []int{1, 0}
	if s.active == 1 {
		order = []int{0, 1}
	}
	blank := bytes.Repeat([]byte{nvm.Erased}, layout.SlotSize)
	for _, slot := range order {
		addr := s.addr(slot)
		if err := s.dev.WriteBlock(addr+layout.CommitOffset, []byte{layout.CommitClear}); err != nil {
			s.scanned = false
			return fmt.Errorf("erase slot %d: %w", slot, err)
		}
		if err := s.dev.WriteBlock(addr, blank); err != nil {
			s.scanned = false
			return fmt.Errorf("erase slot %d: %w", slot, err)
		}
	}

	s.active = -1
	s.scanned = true
	s.current = prefs.Default()
	s.logger.Info("preference slots erased")
	return nil
}

// scan reads both slots and selects the authoritative one, updating the
// cached state. Must be called with mu held.
func (s *Store) scan() ([slotCount]SlotInfo, error) {
	infos, slots, err := s.readSlots()
	if err != nil {
		s.scanned = false
		s.active = -1
		return infos, err
	}

	s.scanned = true
	s.active = -1
	for i, info := range infos {
		if info.Active {
			s.active = i
		}
	}
	if s.active < 0 {
		s.current = prefs.Default()
		s.logger.Info("no saved preferences, using defaults")
		return infos, nil
	}

	s.seq = slots[s.active].Sequence
	s.current = slots[s.active].Pref
	s.logger.Debug("preferences loaded", "slot", s.active, "seq", s.seq)
	return infos, nil
}

// readSlots reads and classifies both slots and marks the authoritative one.
func (s *Store) readSlots() ([slotCount]SlotInfo, [slotCount]layout.Slot, error) {
	var infos [slotCount]SlotInfo
	var slots [slotCount]layout.Slot

	for i := range infos {
		addr := s.addr(i)
		infos[i] = SlotInfo{Index: i, Address: addr}
		buf, err := s.dev.ReadBlock(addr, layout.SlotSize)
		if err != nil {
			return infos, slots, fmt.Errorf("read slot %d: %w", i, err)
		}
		slot, err := layout.Decode(buf)
		infos[i].State = classify(buf, err)
		if err != nil {
			if !errors.Is(err, layout.ErrBlank) {
				infos[i].Reason = err
			}
			if infos[i].State == SlotCorrupt {
				s.logger.Warn("preference slot rejected", "slot", i, "err", err)
			} else {
				s.logger.Debug("preference slot not usable", "slot", i, "state", infos[i].State, "err", err)
			}
			continue
		}
		if err := slot.Pref.Validate(); err != nil {
			infos[i].State = SlotCorrupt
			infos[i].Reason = err
			s.logger.Warn("preference slot rejected", "slot", i, "err", err)
			continue
		}
		slots[i] = slot
		infos[i].Sequence = slot.Sequence
	}

	best := -1
	for i, info := range infos {
		if info.State != SlotCommitted {
			continue
		}
		if best < 0 || layout.Newer(info.Sequence, infos[best].Sequence) {
			best = i
		}
	}
	if best >= 0 {
		infos[best].Active = true
	}
	return infos, slots, nil
}

// classify maps a decode outcome to a slot state. A slot whose commit byte
// is not set was interrupted mid-write, whatever else is wrong with it.
func classify(buf []byte, err error) SlotState {
	switch {
	case err == nil:
		return SlotCommitted
	case errors.Is(err, layout.ErrBlank):
		return SlotEmpty
	case errors.Is(err, layout.ErrUncommitted):
		return SlotWriting
	case len(buf) >= layout.SlotSize && buf[layout.CommitOffset] != layout.CommitSet:
		return SlotWriting
	default:
		return SlotCorrupt
	}
}
