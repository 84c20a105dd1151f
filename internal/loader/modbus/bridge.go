// internal/loader/modbus/bridge.go
package modbus

import (
	"encoding/binary"
	"sync"

	"github.com/pkg/errors"

	"github.com/tamzrod/gw-hbloader/internal/loader"
)

// Register map exposed by a bench controller.
// Layout is protocol-locked.
const (
	RegBuffer     uint16 = 0x0000 // 8 registers, command buffer half-words
	RegPageSelect uint16 = 0x0008 // data window page
	RegName       uint16 = 0x0100 // 64 registers, NUL-padded name
	RegData       uint16 = 0x1000 // 4096 registers, one data page

	bufferRegs = loader.BufferSize / 2
	nameRegs   = 64
	PageSize   = 8192
	maxRegs    = 120 // per request, below the 123/125 protocol limits
)

// Registers is the subset of a Modbus client the bridge needs.
// goburrow/modbus.Client satisfies it.
type Registers interface {
	ReadHoldingRegisters(address, quantity uint16) ([]byte, error)
	WriteMultipleRegisters(address, quantity uint16, value []byte) ([]byte, error)
	WriteSingleRegister(address, value uint16) ([]byte, error)
}

// Bridge implements loader.Transport over Modbus holding registers.
// Read output is fetched from the data window once the call reports OK.
type Bridge struct {
	mu   sync.Mutex
	regs Registers

	op      loader.Opcode
	arg     loader.Arg
	fetched bool
}

// NewBridge wraps an already connected register client.
func NewBridge(regs Registers) *Bridge {
	return &Bridge{regs: regs, fetched: true}
}

// ---- loader.Transport ----

func (b *Bridge) Post(buf loader.Buffer, arg loader.Arg) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	op := loader.Opcode(buf[0])

	if arg.Name != "" {
		if len(arg.Name) >= nameRegs*2 {
			return errors.Errorf("modbus bridge: name %q too long", arg.Name)
		}
		name := make([]byte, nameRegs*2)
		copy(name, arg.Name)
		if _, err := b.regs.WriteMultipleRegisters(RegName, nameRegs, name); err != nil {
			return errors.Wrap(err, "modbus bridge: write name")
		}
	}

	if op == loader.OpWrite {
		n := int(buf.Word(loader.WordLength))
		if n > len(arg.Data) {
			n = len(arg.Data)
		}
		if err := b.pushData(arg.Data[:n]); err != nil {
			return err
		}
	}

	// opcode travels last, in the same request as the arguments
	if _, err := b.regs.WriteMultipleRegisters(RegBuffer, bufferRegs, packBuffer(buf)); err != nil {
		return errors.Wrap(err, "modbus bridge: write buffer")
	}

	b.op = op
	b.arg = arg
	b.fetched = !(op == loader.OpRead || op == loader.OpReadDir)
	return nil
}

func (b *Bridge) Peek() (loader.Buffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	raw, err := b.regs.ReadHoldingRegisters(RegBuffer, bufferRegs)
	if err != nil {
		return loader.Buffer{}, errors.Wrap(err, "modbus bridge: read buffer")
	}
	if len(raw) != loader.BufferSize {
		return loader.Buffer{}, errors.Errorf("modbus bridge: short buffer read (%d bytes)", len(raw))
	}
	buf := unpackBuffer(raw)

	if !b.fetched && buf.Status() == loader.StatusOK {
		n := int(buf.Word(loader.WordResult))
		if b.op == loader.OpReadDir {
			n++ // terminator
		}
		if n > len(b.arg.Data) {
			n = len(b.arg.Data)
		}
		if err := b.pullData(b.arg.Data[:n]); err != nil {
			return loader.Buffer{}, err
		}
		b.fetched = true
	}
	return buf, nil
}

// ---- data window ----

func (b *Bridge) pullData(dst []byte) error {
	for page := 0; page*PageSize < len(dst); page++ {
		if _, err := b.regs.WriteSingleRegister(RegPageSelect, uint16(page)); err != nil {
			return errors.Wrapf(err, "modbus bridge: select page %d", page)
		}
		chunk := dst[page*PageSize:]
		if len(chunk) > PageSize {
			chunk = chunk[:PageSize]
		}
		for off := 0; off < len(chunk); off += maxRegs * 2 {
			qty := (len(chunk) - off + 1) / 2
			if qty > maxRegs {
				qty = maxRegs
			}
			raw, err := b.regs.ReadHoldingRegisters(RegData+uint16(off/2), uint16(qty))
			if err != nil {
				return errors.Wrapf(err, "modbus bridge: read data page=%d off=%d", page, off)
			}
			copy(chunk[off:], raw)
		}
	}
	return nil
}

func (b *Bridge) pushData(src []byte) error {
	for page := 0; page*PageSize < len(src); page++ {
		if _, err := b.regs.WriteSingleRegister(RegPageSelect, uint16(page)); err != nil {
			return errors.Wrapf(err, "modbus bridge: select page %d", page)
		}
		chunk := src[page*PageSize:]
		if len(chunk) > PageSize {
			chunk = chunk[:PageSize]
		}
		for off := 0; off < len(chunk); off += maxRegs * 2 {
			end := off + maxRegs*2
			if end > len(chunk) {
				end = len(chunk)
			}
			part := chunk[off:end]
			if len(part)%2 != 0 {
				part = append(append([]byte(nil), part...), 0)
			}
			if _, err := b.regs.WriteMultipleRegisters(RegData+uint16(off/2), uint16(len(part)/2), part); err != nil {
				return errors.Wrapf(err, "modbus bridge: write data page=%d off=%d", page, off)
			}
		}
	}
	return nil
}

// ---- helpers (pure geometry) ----

// packBuffer converts buffer half-words (little-endian in memory) to
// Modbus register order (big-endian on the wire).
func packBuffer(buf loader.Buffer) []byte {
	out := make([]byte, loader.BufferSize)
	for i := 0; i < bufferRegs; i++ {
		binary.BigEndian.PutUint16(out[2*i:], buf.HalfWord(i))
	}
	return out
}

func unpackBuffer(raw []byte) loader.Buffer {
	var buf loader.Buffer
	for i := 0; i < bufferRegs; i++ {
		binary.LittleEndian.PutUint16(buf[2*i:], binary.BigEndian.Uint16(raw[2*i:]))
	}
	return buf
}
