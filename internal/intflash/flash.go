// internal/intflash/flash.go
package intflash

import (
	"sync"

	"github.com/pkg/errors"
)

// Base is the first address of bank 1.
const Base uint32 = 0x08000000

// Geometry.
const (
	SectorSize = 0x2000
	WordSize   = 16 // one flash word, the program granularity
	Bank1      = 1
)

var (
	ErrLocked     = errors.New("intflash: flash is locked")
	ErrAlignment  = errors.New("intflash: address not aligned to a flash word")
	ErrRange      = errors.New("intflash: address outside the bank")
	ErrNotErased  = errors.New("intflash: flash word not erased")
	ErrBadBank    = errors.New("intflash: unknown bank")
	ErrBadSectors = errors.New("intflash: sector range outside the bank")
)

// Flash is the internal flash controller as the sequencer sees it.
type Flash interface {
	Unlock() error
	Lock() error
	EraseSectors(bank, first, count int) error
	ProgramFlashWord(addr uint32, word [WordSize]byte) error
}

// Memory is an in-memory bank 1 with the controller's lock, erase and
// flash-word program rules.
type Memory struct {
	mu       sync.Mutex
	base     uint32
	data     []byte
	unlocked bool

	failErase   error
	failProgram func(addr uint32) error
	erased      []int
}

// NewMemory creates a bank of sectors 8 KiB sectors at base, fully erased.
func NewMemory(base uint32, sectors int) *Memory {
	data := make([]byte, sectors*SectorSize)
	for i := range data {
		data[i] = 0xFF
	}
	return &Memory{base: base, data: data}
}

// FailErase makes the next erase return err.
func (m *Memory) FailErase(err error) {
	m.mu.Lock()
	m.failErase = err
	m.mu.Unlock()
}

// FailProgram installs a hook consulted before every flash word program.
func (m *Memory) FailProgram(fn func(addr uint32) error) {
	m.mu.Lock()
	m.failProgram = fn
	m.mu.Unlock()
}

// ---- Flash ----

func (m *Memory) Unlock() error {
	m.mu.Lock()
	m.unlocked = true
	m.mu.Unlock()
	return nil
}

func (m *Memory) Lock() error {
	m.mu.Lock()
	m.unlocked = false
	m.mu.Unlock()
	return nil
}

func (m *Memory) EraseSectors(bank, first, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.unlocked {
		return ErrLocked
	}
	if bank != Bank1 {
		return errors.Wrapf(ErrBadBank, "bank %d", bank)
	}
	if first < 0 || count < 0 || (first+count)*SectorSize > len(m.data) {
		return errors.Wrapf(ErrBadSectors, "sectors %d..%d", first, first+count-1)
	}
	if err := m.failErase; err != nil {
		m.failErase = nil
		return err
	}

	for s := first; s < first+count; s++ {
		off := s * SectorSize
		for i := off; i < off+SectorSize; i++ {
			m.data[i] = 0xFF
		}
		m.erased = append(m.erased, s)
	}
	return nil
}

func (m *Memory) ProgramFlashWord(addr uint32, word [WordSize]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.unlocked {
		return ErrLocked
	}
	if addr%WordSize != 0 {
		return errors.Wrapf(ErrAlignment, "0x%08X", addr)
	}
	if addr < m.base || int(addr-m.base)+WordSize > len(m.data) {
		return errors.Wrapf(ErrRange, "0x%08X", addr)
	}
	if m.failProgram != nil {
		if err := m.failProgram(addr); err != nil {
			return err
		}
	}

	off := int(addr - m.base)
	for i := 0; i < WordSize; i++ {
		if m.data[off+i] != 0xFF {
			return errors.Wrapf(ErrNotErased, "0x%08X", addr)
		}
	}
	copy(m.data[off:], word[:])
	return nil
}

// ---- inspection ----

// Bytes returns a copy of the bank contents.
func (m *Memory) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data...)
}

// Locked reports the controller lock state.
func (m *Memory) Locked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.unlocked
}

// ErasedSectors lists every sector erased so far, in order.
func (m *Memory) ErasedSectors() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.erased...)
}

// Size returns the bank size in bytes.
func (m *Memory) Size() int { return len(m.data) }
