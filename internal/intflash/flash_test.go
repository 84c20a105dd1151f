// internal/intflash/flash_test.go
package intflash

import (
	"testing"

	"github.com/pkg/errors"
)

func word(b byte) [WordSize]byte {
	var w [WordSize]byte
	for i := range w {
		w[i] = b
	}
	return w
}

func TestProgram_RequiresUnlock(t *testing.T) {
	m := NewMemory(Base, 2)

	if err := m.ProgramFlashWord(Base, word(0)); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if err := m.EraseSectors(Bank1, 0, 1); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestProgram_AlignmentAndRange(t *testing.T) {
	m := NewMemory(Base, 1)
	_ = m.Unlock()

	if err := m.ProgramFlashWord(Base+8, word(0)); !errors.Is(err, ErrAlignment) {
		t.Fatalf("expected ErrAlignment, got %v", err)
	}
	if err := m.ProgramFlashWord(Base+SectorSize, word(0)); !errors.Is(err, ErrRange) {
		t.Fatalf("expected ErrRange, got %v", err)
	}
	if err := m.ProgramFlashWord(Base-WordSize, word(0)); !errors.Is(err, ErrRange) {
		t.Fatalf("expected ErrRange, got %v", err)
	}
}

func TestProgram_NeedsErase(t *testing.T) {
	m := NewMemory(Base, 2)
	_ = m.Unlock()

	if err := m.ProgramFlashWord(Base+0x2000, word(0x11)); err != nil {
		t.Fatalf("program err=%v", err)
	}
	if err := m.ProgramFlashWord(Base+0x2000, word(0x22)); !errors.Is(err, ErrNotErased) {
		t.Fatalf("expected ErrNotErased, got %v", err)
	}

	if err := m.EraseSectors(Bank1, 1, 1); err != nil {
		t.Fatalf("erase err=%v", err)
	}
	if err := m.ProgramFlashWord(Base+0x2000, word(0x22)); err != nil {
		t.Fatalf("program after erase err=%v", err)
	}
	if got := m.Bytes()[0x2000]; got != 0x22 {
		t.Fatalf("byte=0x%02X", got)
	}
	if s := m.ErasedSectors(); len(s) != 1 || s[0] != 1 {
		t.Fatalf("erased=%v", s)
	}
}

func TestErase_BankAndRange(t *testing.T) {
	m := NewMemory(Base, 4)
	_ = m.Unlock()

	if err := m.EraseSectors(2, 0, 1); !errors.Is(err, ErrBadBank) {
		t.Fatalf("expected ErrBadBank, got %v", err)
	}
	if err := m.EraseSectors(Bank1, 2, 3); !errors.Is(err, ErrBadSectors) {
		t.Fatalf("expected ErrBadSectors, got %v", err)
	}

	boom := errors.New("boom")
	m.FailErase(boom)
	if err := m.EraseSectors(Bank1, 0, 1); err != boom {
		t.Fatalf("expected injected failure, got %v", err)
	}
	if err := m.EraseSectors(Bank1, 0, 1); err != nil {
		t.Fatalf("failure must be one-shot, got %v", err)
	}
}

func TestLockState(t *testing.T) {
	m := NewMemory(Base, 1)
	if !m.Locked() {
		t.Fatalf("new bank must be locked")
	}
	_ = m.Unlock()
	_ = m.Lock()
	if !m.Locked() {
		t.Fatalf("Lock did not lock")
	}
}
