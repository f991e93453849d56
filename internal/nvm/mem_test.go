package nvm

import (
	"bytes"
	"errors"
	"testing"
)

func TestMemStartsErased(t *testing.T) {
	m := NewMem(16)
	got, err := m.ReadBlock(0, 16)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, bytes.Repeat([]byte{Erased}, 16)) {
		t.Errorf("fresh medium = %X, want all FF", got)
	}
}

func TestMemReadWrite(t *testing.T) {
	m := NewMem(16)
	if err := m.WriteBlock(4, []byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	got, err := m.ReadBlock(3, 5)
	if err != nil {
		t.Fatal(err)
	}
	if want := []byte{0xFF, 1, 2, 3, 0xFF}; !bytes.Equal(got, want) {
		t.Errorf("read = %X, want %X", got, want)
	}
	if m.Writes() != 1 || m.BytesWritten() != 3 {
		t.Errorf("writes = %d bytes = %d, want 1 and 3", m.Writes(), m.BytesWritten())
	}
}

func TestMemOutOfRange(t *testing.T) {
	m := NewMem(8)
	if _, err := m.ReadBlock(6, 4); !errors.Is(err, ErrOutOfRange) || !errors.Is(err, ErrFault) {
		t.Errorf("read err = %v, want ErrOutOfRange wrapping ErrFault", err)
	}
	if err := m.WriteBlock(-1, []byte{0}); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("write err = %v, want ErrOutOfRange", err)
	}
}

func TestMemFaultInjection(t *testing.T) {
	m := NewMem(8)
	m.FailWrites(true)
	if err := m.WriteBlock(0, []byte{1}); !errors.Is(err, ErrFault) {
		t.Errorf("write err = %v, want ErrFault", err)
	}
	m.FailWrites(false)
	m.FailReads(true)
	if _, err := m.ReadBlock(0, 1); !errors.Is(err, ErrFault) {
		t.Errorf("read err = %v, want ErrFault", err)
	}
	m.FailReads(false)
	if _, err := m.ReadBlock(0, 1); err != nil {
		t.Errorf("read after clearing fault: %v", err)
	}
}

func TestMemCutPowerAfter(t *testing.T) {
	m := NewMem(8)
	m.CutPowerAfter(3)

	if err := m.WriteBlock(0, []byte{1, 2}); err != nil {
		t.Fatalf("first write within budget: %v", err)
	}
	if err := m.WriteBlock(2, []byte{3, 4, 5}); !errors.Is(err, ErrPowerLost) {
		t.Fatalf("second write err = %v, want ErrPowerLost", err)
	}
	if err := m.WriteBlock(6, []byte{9}); !errors.Is(err, ErrPowerLost) {
		t.Fatalf("write after cut err = %v, want ErrPowerLost", err)
	}

	m.Restore()
	got, err := m.ReadBlock(0, 8)
	if err != nil {
		t.Fatal(err)
	}
	if want := []byte{1, 2, 3, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}; !bytes.Equal(got, want) {
		t.Errorf("after cut = %X, want %X", got, want)
	}
}

func TestMemSnapshotIsCopy(t *testing.T) {
	m := NewMem(4)
	snap := m.Snapshot()
	snap[0] = 0
	clone := NewMemFrom(snap)
	if got, _ := m.ReadBlock(0, 1); got[0] != Erased {
		t.Error("snapshot aliases medium")
	}
	if got, _ := clone.ReadBlock(0, 1); got[0] != 0 {
		t.Errorf("clone[0] = %X, want 00", got[0])
	}
}
