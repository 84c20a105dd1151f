// internal/gwbin/gwbin.go
package gwbin

import (
	"bytes"
	"debug/elf"
	"io"
	"os"

	"github.com/marcinbor85/gohex"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Default internal flash window.
const (
	DefaultBase uint32 = 0x08000000
	DefaultTop  uint32 = 0x08020000
)

// Padding fills gaps between segments, as erased flash reads.
const Padding = 0xFF

var (
	ErrNotARM      = errors.New("gwbin: not a 32-bit little-endian ARM ELF")
	ErrPastTop     = errors.New("gwbin: segment runs past the top address")
	ErrEmptyImage  = errors.New("gwbin: no segment inside the window")
	ErrBadWindow   = errors.New("gwbin: top address must be above base")
	ErrUnknownKind = errors.New("gwbin: input is neither ELF nor Intel HEX")
)

// Segment is one input segment and what happened to it.
type Segment struct {
	Addr    uint32
	Size    int
	Skipped bool // outside [base, top)
}

// Image is a flat binary for the window starting at Base.
type Image struct {
	Base     uint32
	Data     []byte
	Segments []Segment

	mem *gohex.Memory
}

// Packer flattens program images into the [Base, Top) window.
type Packer struct {
	Base uint32
	Top  uint32
	Log  logrus.FieldLogger
}

// NewPacker creates a packer for the default window.
func NewPacker() *Packer {
	return &Packer{Base: DefaultBase, Top: DefaultTop, Log: logrus.StandardLogger()}
}

// ------------------------------------------------------------
// INPUTS
// ------------------------------------------------------------

// Load reads an ELF or Intel HEX file, told apart by content.
func (p *Packer) Load(path string) (*Image, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "gwbin")
	}
	switch {
	case bytes.HasPrefix(raw, []byte(elf.ELFMAG)):
		return p.FromELF(bytes.NewReader(raw))
	case bytes.HasPrefix(bytes.TrimLeft(raw, " \t\r\n"), []byte(":")):
		return p.FromHex(bytes.NewReader(raw))
	}
	return nil, errors.Wrap(ErrUnknownKind, path)
}

// FromELF takes the loadable segments of an ARM ELF32 image by physical address.
func (p *Packer) FromELF(r io.ReaderAt) (*Image, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return nil, errors.Wrap(err, "gwbin: parse elf")
	}
	defer f.Close()

	if f.Class != elf.ELFCLASS32 || f.Data != elf.ELFDATA2LSB || f.Machine != elf.EM_ARM {
		return nil, ErrNotARM
	}
	p.Log.WithField("segments", len(f.Progs)).Debug("verified ARM ELF")

	mem := gohex.NewMemory()
	var segs []Segment
	for i, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD || prog.Filesz == 0 {
			continue
		}
		addr := uint32(prog.Paddr)
		seg := Segment{Addr: addr, Size: int(prog.Filesz)}

		if !p.inside(addr) {
			seg.Skipped = true
			segs = append(segs, seg)
			p.Log.WithFields(logrus.Fields{"segment": i, "addr": addr}).Debug("segment not in range, ignoring")
			continue
		}

		data := make([]byte, prog.Filesz)
		if _, err := io.ReadFull(prog.Open(), data); err != nil {
			return nil, errors.Wrapf(err, "gwbin: read segment %d", i)
		}
		if err := p.add(mem, addr, data); err != nil {
			return nil, err
		}
		segs = append(segs, seg)
	}
	return p.flatten(mem, segs)
}

// FromHex takes the data records of an Intel HEX file.
func (p *Packer) FromHex(r io.Reader) (*Image, error) {
	in := gohex.NewMemory()
	if err := in.ParseIntelHex(r); err != nil {
		return nil, errors.Wrap(err, "gwbin: parse hex")
	}

	mem := gohex.NewMemory()
	var segs []Segment
	for _, s := range in.GetDataSegments() {
		seg := Segment{Addr: s.Address, Size: len(s.Data)}
		if !p.inside(s.Address) {
			seg.Skipped = true
			segs = append(segs, seg)
			continue
		}
		if err := p.add(mem, s.Address, s.Data); err != nil {
			return nil, err
		}
		segs = append(segs, seg)
	}
	return p.flatten(mem, segs)
}

func (p *Packer) inside(addr uint32) bool { return addr >= p.Base && addr < p.Top }

func (p *Packer) add(mem *gohex.Memory, addr uint32, data []byte) error {
	if uint64(addr)+uint64(len(data)) > uint64(p.Top) {
		return errors.Wrapf(ErrPastTop, "0x%08X+0x%X", addr, len(data))
	}
	if err := mem.AddBinary(addr, data); err != nil {
		return errors.Wrapf(err, "gwbin: segment at 0x%08X", addr)
	}
	return nil
}

func (p *Packer) flatten(mem *gohex.Memory, segs []Segment) (*Image, error) {
	if p.Top <= p.Base {
		return nil, ErrBadWindow
	}
	var end uint32
	for _, s := range mem.GetDataSegments() {
		if e := s.Address + uint32(len(s.Data)); e > end {
			end = e
		}
	}
	if end == 0 {
		return nil, ErrEmptyImage
	}
	size := end - p.Base
	p.Log.WithFields(logrus.Fields{"base": p.Base, "size": size}).Info("image flattened")
	return &Image{
		Base:     p.Base,
		Data:     mem.ToBinary(p.Base, size, Padding),
		Segments: segs,
		mem:      mem,
	}, nil
}

// ------------------------------------------------------------
// OUTPUTS
// ------------------------------------------------------------

// WriteBinary writes the flat image.
func (img *Image) WriteBinary(w io.Writer) error {
	_, err := w.Write(img.Data)
	return errors.Wrap(err, "gwbin: write binary")
}

// WriteHex writes the in-window segments as Intel HEX.
func (img *Image) WriteHex(w io.Writer) error {
	return errors.Wrap(img.mem.DumpIntelHex(w, 16), "gwbin: write hex")
}
