// internal/sequencer/sequencer.go
package sequencer

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tamzrod/gw-hbloader/internal/intflash"
	"github.com/tamzrod/gw-hbloader/internal/loader"
	"github.com/tamzrod/gw-hbloader/internal/spiflash"
)

// Files inside an entry directory.
const (
	ImageFile         = "MAIN.BIN"
	ExternalImageFile = "EXTFLASH.BIN"
)

// Chunk sizes: one internal sector, one external erase block.
const (
	InternalChunk = intflash.SectorSize
	ExternalChunk = spiflash.BlockSize
)

// Channel is the part of the command channel the sequencer uses.
type Channel interface {
	Call(ctx context.Context, op loader.Opcode, req loader.Request) error
	CallCatchError(ctx context.Context, op loader.Opcode, req loader.Request) (loader.Status, error)
	Result() uint32
	Buffer() loader.Buffer
}

// Prefetch is drained before the first blocking call.
type Prefetch interface {
	Drain(ctx context.Context) error
}

// ExternalFlash is the external NOR chip.
type ExternalFlash interface {
	Init(mode spiflash.Mode, vendor spiflash.Vendor) error
	WriteEnable() error
	ChipErase() error
	Program(addr uint32, buf []byte) error
	Read(addr uint32, buf []byte) error
}

// UI shows what the sequencer is doing.
type UI interface {
	Fade()
	Notice(n Notice)
	Progress(step, total int)
	WaitButton(ctx context.Context) error
}

// Deps are the collaborators of a Sequencer.
type Deps struct {
	Channel  Channel
	Prefetch Prefetch
	Internal intflash.Flash
	External ExternalFlash
	UI       UI

	// Data is the transfer buffer, at least ExternalChunk bytes.
	// It is shared with the prefetcher, which is drained first.
	Data []byte
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Sequencer) { s.log = l }
}

// WithProgressCallback installs a progress callback.
func WithProgressCallback(cb ProgressCallback) Option {
	return func(s *Sequencer) { s.onProgress = cb }
}

// WithBase sets the address of internal sector 0.
func WithBase(addr uint32) Option {
	return func(s *Sequencer) { s.base = addr }
}

// Sequencer flashes one entry into internal and external flash.
type Sequencer struct {
	d          Deps
	base       uint32
	log        logrus.FieldLogger
	onProgress ProgressCallback
}

// New creates a sequencer.
func New(d Deps, opts ...Option) (*Sequencer, error) {
	if d.Channel == nil || d.Prefetch == nil || d.Internal == nil || d.External == nil || d.UI == nil {
		return nil, errors.New("sequencer: missing dependency")
	}
	if len(d.Data) < ExternalChunk {
		return nil, errors.Errorf("sequencer: data buffer of %d bytes, need %d", len(d.Data), ExternalChunk)
	}
	s := &Sequencer{
		d:    d,
		base: intflash.Base,
		log:  logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run flashes entry and asks the controller to reset the device.
//
// It returns nil once the reset call completed, ErrImageMissing when the
// entry has no image (flash untouched, the caller goes back to the menu),
// and otherwise a fatal error: *loader.FatalError or *HardwareError.
func (s *Sequencer) Run(ctx context.Context, entry string) error {
	log := s.log.WithField("entry", entry)
	ui := s.d.UI

	ui.Fade()
	ui.Notice(Notice{Width: 200, Height: 32, Top: 116, Lines: []string{"Please wait..."}})

	if err := s.d.Prefetch.Drain(ctx); err != nil {
		return err
	}

	ch := s.d.Channel
	if err := ch.Call(ctx, loader.OpChdir, loader.Request{Name: entry}); err != nil {
		return err
	}

	st, err := ch.CallCatchError(ctx, loader.OpOpenRead, loader.Request{Name: ImageFile})
	if err != nil {
		return err
	}
	switch st {
	case loader.StatusOK:
	case loader.ErrFileNotFound:
		log.Warn("image missing")
		if err := ch.Call(ctx, loader.OpChdir, loader.Request{Name: loader.UpDir}); err != nil {
			return err
		}
		ui.Notice(Notice{Width: 240, Height: 40, Top: 112, Lines: []string{
			"This homebrew is corrupted.",
			"MAIN.BIN is missing.",
		}})
		if err := ui.WaitButton(ctx); err != nil {
			return err
		}
		return ErrImageMissing
	default:
		return &loader.FatalError{Op: loader.OpOpenRead, Status: st, Buffer: ch.Buffer()}
	}

	if err := s.writeInternal(ctx, log, int(ch.Result())); err != nil {
		return err
	}

	st, err = ch.CallCatchError(ctx, loader.OpOpenRead, loader.Request{Name: ExternalImageFile})
	if err != nil {
		return err
	}
	switch st {
	case loader.StatusOK:
		if err := s.writeExternal(ctx, log, int(ch.Result())); err != nil {
			return err
		}
	case loader.ErrFileNotFound:
		log.Debug("no external image")
	default:
		return &loader.FatalError{Op: loader.OpOpenRead, Status: st, Buffer: ch.Buffer()}
	}

	ui.Notice(phaseNotice("Rebooting..."))
	s.report(Progress{Phase: PhaseReboot})
	log.Info("flashing done, rebooting")
	return ch.Call(ctx, loader.OpResetHalt, loader.Request{})
}

// ------------------------------------------------------------
// INTERNAL FLASH
// ------------------------------------------------------------

func (s *Sequencer) writeInternal(ctx context.Context, log logrus.FieldLogger, size int) error {
	ui, ch, fl := s.d.UI, s.d.Channel, s.d.Internal
	sectors := SectorCount(size)
	log.WithFields(logrus.Fields{"size": size, "sectors": sectors}).Info("writing internal flash")

	ui.Notice(phaseNotice("Erasing internal flash..."))
	s.report(Progress{Phase: PhaseInternalErase, Total: sectors})

	if err := fl.Unlock(); err != nil {
		return &HardwareError{Stage: "unlock internal", Addr: s.base, Err: err}
	}
	if err := fl.EraseSectors(intflash.Bank1, 0, sectors); err != nil {
		return &HardwareError{Stage: "erase internal", Addr: s.base, Err: err}
	}

	ui.Notice(phaseNotice("Writing internal flash...", fmt.Sprintf("(%d bytes, %d 8k sectors)", size, sectors)))

	buf := s.d.Data[:InternalChunk]
	done := 0
	for i := 0; i < sectors; i++ {
		ui.Progress(i, sectors)

		if err := ch.Call(ctx, loader.OpRead, loader.Request{Length: InternalChunk, Data: buf}); err != nil {
			return err
		}
		n := clamp(int(ch.Result()), InternalChunk)
		for j := n; j < InternalChunk; j++ {
			buf[j] = 0xFF
		}

		for j := 0; j < InternalChunk; j += intflash.WordSize {
			var w [intflash.WordSize]byte
			copy(w[:], buf[j:])
			addr := s.base + uint32(i*InternalChunk+j)
			if err := fl.ProgramFlashWord(addr, w); err != nil {
				return &HardwareError{Stage: "program internal", Addr: addr, Err: err}
			}
		}

		done += n
		s.report(Progress{Phase: PhaseInternalWrite, Step: i + 1, Total: sectors, Bytes: done})
	}
	ui.Progress(sectors, sectors)

	if err := ch.Call(ctx, loader.OpClose, loader.Request{}); err != nil {
		return err
	}
	if err := fl.Lock(); err != nil {
		return &HardwareError{Stage: "lock internal", Addr: s.base, Err: err}
	}
	return nil
}

// ------------------------------------------------------------
// EXTERNAL FLASH
// ------------------------------------------------------------

func (s *Sequencer) writeExternal(ctx context.Context, log logrus.FieldLogger, size int) error {
	ui, ch, fl := s.d.UI, s.d.Channel, s.d.External
	blocks := BlockCount(size)
	log.WithFields(logrus.Fields{"size": size, "blocks": blocks}).Info("writing external flash")

	ui.Notice(phaseNotice("Erasing external flash..."))
	s.report(Progress{Phase: PhaseExternalErase, Total: blocks})

	if err := fl.Init(spiflash.ModeSPI, spiflash.VendorMX); err != nil {
		return &HardwareError{Stage: "init external", Err: err}
	}
	if err := fl.WriteEnable(); err != nil {
		return &HardwareError{Stage: "write enable external", Err: err}
	}
	if err := fl.ChipErase(); err != nil {
		return &HardwareError{Stage: "erase external", Err: err}
	}

	ui.Notice(phaseNotice("Writing external flash...", fmt.Sprintf("(%d bytes, %d 64k sectors)", size, blocks)))

	buf := s.d.Data[:ExternalChunk]
	done := 0
	for i := 0; i < blocks; i++ {
		ui.Progress(i, blocks)

		if err := ch.Call(ctx, loader.OpRead, loader.Request{Length: ExternalChunk, Data: buf}); err != nil {
			return err
		}
		n := clamp(int(ch.Result()), ExternalChunk)

		addr := uint32(i * ExternalChunk)
		if err := fl.Program(addr, buf[:n]); err != nil {
			return &HardwareError{Stage: "program external", Addr: addr, Err: err}
		}

		done += n
		s.report(Progress{Phase: PhaseExternalWrite, Step: i + 1, Total: blocks, Bytes: done})
	}
	ui.Progress(blocks, blocks)

	return ch.Call(ctx, loader.OpClose, loader.Request{})
}

// ---- helpers ----

// SectorCount is the number of 8 KiB internal sectors size bytes need.
func SectorCount(size int) int { return ceilDiv(size, InternalChunk) }

// BlockCount is the number of 64 KiB external blocks size bytes need.
func BlockCount(size int) int { return ceilDiv(size, ExternalChunk) }

func ceilDiv(n, d int) int {
	c := n / d
	if n%d != 0 {
		c++
	}
	return c
}

func clamp(n, max int) int {
	if n > max {
		return max
	}
	return n
}

func phaseNotice(lines ...string) Notice {
	return Notice{Width: 280, Height: 64, Top: 100, Lines: lines}
}

func (s *Sequencer) report(p Progress) {
	if s.onProgress != nil {
		s.onProgress(p)
	}
}
