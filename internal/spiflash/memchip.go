// internal/spiflash/memchip.go
package spiflash

import (
	"sync"

	"github.com/pkg/errors"
)

// Busy polls reported by MemChip after each operation.
const (
	memProgramBusy = 2
	memEraseBusy   = 3
	memStatusBusy  = 1
)

// MemChip is an in-memory serial NOR chip behind a Bus.
// It models the write enable latch, the write-in-progress bit, erase to
// 0xFF, program as AND within a page, the MX quad enable bit and ISSI QPI.
// Commands sent on the wrong instruction width are ignored, as a real
// chip would.
type MemChip struct {
	mu     sync.Mutex
	vendor Vendor
	mem    []byte

	wel        bool
	wip        int
	qe         bool
	qpi        bool
	resetArmed bool
	pending    *Command
	log        []Command
	ignored    int
}

// NewMemChip creates an erased chip of size bytes.
func NewMemChip(size int, vendor Vendor) *MemChip {
	mem := make([]byte, size)
	for i := range mem {
		mem[i] = 0xFF
	}
	return &MemChip{vendor: vendor, mem: mem}
}

// ---- Bus ----

func (m *MemChip) Command(cmd Command) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pending != nil {
		return errors.Errorf("memchip: command 0x%02X while 0x%02X awaits data", cmd.Instruction, m.pending.Instruction)
	}
	m.log = append(m.log, cmd)

	wantInstr := Lines1
	if m.qpi {
		wantInstr = Lines4
	}
	if cmd.Lines.Instruction != wantInstr {
		m.ignored++
		if cmd.NbData > 0 {
			m.pending = &Command{Instruction: 0, NbData: cmd.NbData}
		}
		return nil
	}
	if cmd.Lines.Data == Lines4 && m.vendor == VendorMX && !m.qe {
		return errors.Errorf("memchip: quad data on 0x%02X without quad enable", cmd.Instruction)
	}

	switch cmd.Instruction {
	case CmdWriteEnable:
		m.wel = true
	case CmdResetEnable:
		m.resetArmed = true
		return nil
	case CmdReset:
		if m.resetArmed {
			m.wel, m.wip, m.qpi = false, 0, false
		}
	case CmdDisableQPI:
		m.qpi = false
	case CmdEnableQPI:
		if m.vendor == VendorISSI {
			m.qpi = true
		}
	case CmdChipErase, 0xC7:
		if m.wel {
			m.fill(0, len(m.mem))
			m.wel, m.wip = false, memEraseBusy
		}
	case CmdBlockErase:
		m.eraseAligned(cmd.Address, BlockSize)
	case CmdSectorErase:
		m.eraseAligned(cmd.Address, SectorSize)
	case CmdFastRead:
		if cmd.DummyCycles != fastReadDummy {
			return errors.Errorf("memchip: fast read with %d dummy cycles", cmd.DummyCycles)
		}
	}

	m.resetArmed = false
	if cmd.NbData > 0 {
		c := cmd
		m.pending = &c
	}
	return nil
}

func (m *MemChip) Transmit(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cmd, err := m.takePending(len(data))
	if err != nil {
		return err
	}

	switch cmd.Instruction {
	case CmdPageProgram, CmdQuadProgram:
		if len(data) > PageSize {
			return errors.Errorf("memchip: page program of %d bytes", len(data))
		}
		if !m.wel {
			return nil
		}
		base := cmd.Address &^ (PageSize - 1)
		off := cmd.Address % PageSize
		for i, b := range data {
			a := int(base + (off+uint32(i))%PageSize)
			if a < len(m.mem) {
				m.mem[a] &= b
			}
		}
		m.wel, m.wip = false, memProgramBusy

	case CmdWriteStatus:
		if m.wel {
			m.qe = data[0]&statusQuadEnable != 0
			m.wel, m.wip = false, memStatusBusy
		}
	}
	return nil
}

func (m *MemChip) Receive(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cmd, err := m.takePending(len(data))
	if err != nil {
		return err
	}

	switch cmd.Instruction {
	case CmdReadStatus:
		var st byte
		if m.wip > 0 {
			st |= statusWIP
			m.wip--
		}
		if m.wel {
			st |= 0x02
		}
		if m.qe {
			st |= statusQuadEnable
		}
		data[0] = st

	case CmdFastRead:
		for i := range data {
			data[i] = m.mem[(int(cmd.Address)+i)%len(m.mem)]
		}

	default:
		for i := range data {
			data[i] = 0xFF
		}
	}
	return nil
}

// ---- inspection ----

// Bytes returns a copy of the chip contents.
func (m *MemChip) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.mem...)
}

// Commands returns every command received so far.
func (m *MemChip) Commands() []Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Command(nil), m.log...)
}

// QuadEnabled reports the MX quad enable bit.
func (m *MemChip) QuadEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.qe
}

// QPI reports whether an ISSI chip is in QPI mode.
func (m *MemChip) QPI() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.qpi
}

// Ignored returns how many commands were sent on the wrong instruction width.
func (m *MemChip) Ignored() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ignored
}

// ---- helpers ----

func (m *MemChip) takePending(n int) (Command, error) {
	if m.pending == nil {
		return Command{}, errors.New("memchip: data phase without command")
	}
	cmd := *m.pending
	m.pending = nil
	if cmd.NbData != n {
		return Command{}, errors.Errorf("memchip: 0x%02X announced %d bytes, got %d", cmd.Instruction, cmd.NbData, n)
	}
	return cmd, nil
}

func (m *MemChip) eraseAligned(addr uint32, size int) {
	if !m.wel {
		return
	}
	start := int(addr) &^ (size - 1)
	m.fill(start, start+size)
	m.wel, m.wip = false, memEraseBusy
}

func (m *MemChip) fill(from, to int) {
	if to > len(m.mem) {
		to = len(m.mem)
	}
	for i := from; i < to; i++ {
		m.mem[i] = 0xFF
	}
}
