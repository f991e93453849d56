package nvm

import "sync"

// Mem is a simulated EEPROM held in memory. It starts fully erased and
// offers hooks for fault and power-loss injection.
type Mem struct {
	mu   sync.Mutex
	data []byte

	failReads  bool
	failWrites bool

	// cutBudget is the number of bytes still accepted before power is lost;
	// negative means no cut is armed.
	cutBudget int
	powerLost bool

	writes       int
	bytesWritten int
}

// NewMem creates an erased medium of size bytes.
func NewMem(size int) *Mem {
	m := &Mem{data: make([]byte, size), cutBudget: -1}
	for i := range m.data {
		m.data[i] = Erased
	}
	return m
}

// NewMemFrom creates a medium holding a copy of image.
func NewMemFrom(image []byte) *Mem {
	m := &Mem{data: append([]byte(nil), image...), cutBudget: -1}
	return m
}

func (m *Mem) ReadBlock(addr, n int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.powerLost {
		return nil, ErrPowerLost
	}
	if m.failReads {
		return nil, faultf("mem: read %d@%d", n, addr)
	}
	if err := checkRange(len(m.data), addr, n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, m.data[addr:addr+n])
	return out, nil
}

func (m *Mem) WriteBlock(addr int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.powerLost {
		return ErrPowerLost
	}
	if m.failWrites {
		return faultf("mem: write %d@%d", len(data), addr)
	}
	if err := checkRange(len(m.data), addr, len(data)); err != nil {
		return err
	}
	m.writes++
	if m.cutBudget >= 0 && len(data) > m.cutBudget {
		n := m.cutBudget
		copy(m.data[addr:], data[:n])
		m.bytesWritten += n
		m.cutBudget = 0
		m.powerLost = true
		return ErrPowerLost
	}
	copy(m.data[addr:], data)
	m.bytesWritten += len(data)
	if m.cutBudget >= 0 {
		m.cutBudget -= len(data)
	}
	return nil
}

func (m *Mem) Size() int {
	return len(m.data)
}

func (m *Mem) Close() error {
	return nil
}

// FailReads makes every read return a fault while on is true.
func (m *Mem) FailReads(on bool) {
	m.mu.Lock()
	m.failReads = on
	m.mu.Unlock()
}

// FailWrites makes every write return a fault while on is true.
func (m *Mem) FailWrites(on bool) {
	m.mu.Lock()
	m.failWrites = on
	m.mu.Unlock()
}

// CutPowerAfter arms a power cut: exactly n more bytes are written, then the
// write in progress is truncated and every later access fails with
// ErrPowerLost until Restore is called.
func (m *Mem) CutPowerAfter(n int) {
	m.mu.Lock()
	m.cutBudget = n
	m.powerLost = false
	m.mu.Unlock()
}

// Restore brings power back, disarming any pending cut.
func (m *Mem) Restore() {
	m.mu.Lock()
	m.cutBudget = -1
	m.powerLost = false
	m.mu.Unlock()
}

// Writes returns the number of WriteBlock calls that reached the medium.
func (m *Mem) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// BytesWritten returns the total number of bytes programmed.
func (m *Mem) BytesWritten() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bytesWritten
}

// Snapshot returns a copy of the raw contents.
func (m *Mem) Snapshot() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data...)
}
