// internal/sequencer/dump.go
package sequencer

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/tamzrod/gw-hbloader/internal/loader"
	"github.com/tamzrod/gw-hbloader/internal/spiflash"
)

// DumpFile is written to the root of the card by Dump.
const DumpFile = "FLASHDMP.BIN"

// Dump copies the first size bytes of external flash to DumpFile on the
// card, one block per write call. The card directory must be the root.
func (s *Sequencer) Dump(ctx context.Context, size int) error {
	ui, ch, fl := s.d.UI, s.d.Channel, s.d.External
	blocks := BlockCount(size)
	log := s.log.WithFields(logrus.Fields{"size": size, "blocks": blocks})

	ui.Fade()
	ui.Notice(Notice{Width: 200, Height: 32, Top: 116, Lines: []string{"Please wait..."}})

	if err := s.d.Prefetch.Drain(ctx); err != nil {
		return err
	}

	if err := fl.Init(spiflash.ModeSPI, spiflash.VendorMX); err != nil {
		return &HardwareError{Stage: "init external", Err: err}
	}
	if err := ch.Call(ctx, loader.OpOpenWrite, loader.Request{Length: loader.WriteTruncate, Name: DumpFile}); err != nil {
		return err
	}

	log.Info("dumping external flash")
	ui.Notice(phaseNotice("Dumping external flash...", fmt.Sprintf("(%d bytes, %d 64k sectors)", size, blocks)))

	buf := s.d.Data[:ExternalChunk]
	done := 0
	for i := 0; i < blocks; i++ {
		ui.Progress(i, blocks)

		n := size - done
		if n > ExternalChunk {
			n = ExternalChunk
		}
		addr := uint32(i * ExternalChunk)
		if err := fl.Read(addr, buf[:n]); err != nil {
			return &HardwareError{Stage: "read external", Addr: addr, Err: err}
		}
		if err := ch.Call(ctx, loader.OpWrite, loader.Request{Length: uint32(n), Data: buf[:n]}); err != nil {
			return err
		}

		done += n
		s.report(Progress{Phase: PhaseDump, Step: i + 1, Total: blocks, Bytes: done})
	}
	ui.Progress(blocks, blocks)

	if err := ch.Call(ctx, loader.OpClose, loader.Request{}); err != nil {
		return err
	}

	ui.Notice(Notice{Width: 240, Height: 40, Top: 112, Lines: []string{
		"External flash dumped to",
		DumpFile,
	}})
	return ui.WaitButton(ctx)
}
