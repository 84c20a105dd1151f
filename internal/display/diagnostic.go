// internal/display/diagnostic.go
package display

import (
	"fmt"

	"github.com/tamzrod/gw-hbloader/internal/loader"
)

// Diagnostic draws the fatal command channel screen for one frame.
// addr is the device address of the command buffer, used for row labels.
func (s *Screen) Diagnostic(fe *loader.FatalError, addr uint32, frame int) {
	const fg, bg = White, Blue

	s.Clear(bg)

	s.PrintCentered(fmt.Sprintf("Yikes! Tried to call function 0x%02X,", byte(fe.Op)), 160, 8, fg, bg)
	s.PrintCentered(fmt.Sprintf("but the module returned 0x%02X!", byte(fe.Status)), 160, 16, fg, bg)
	s.Print("Communication buffer dump:", 8, 32, fg, bg)

	d := fe.Buffer.Dump()

	for j := 0; j < 4; j++ {
		label := fmt.Sprintf("0x%08X:", addr+uint32(j*4))
		s.Print(label, 8, 48+j*8, fg, bg)
		s.Print(label, 8, 88+j*8, fg, bg)

		for i := 0; i < 4; i++ {
			s.Print(d.ByteHex[j][i], 104+i*40, 48+j*8, fg, bg)
			s.PutChar(d.ByteChar[j][i], 264+i*8, 48+j*8, bg, fg)
			s.Print(d.ByteDec[j][i], 104+i*40, 88+j*8, fg, bg)
		}
	}

	for j := 0; j < 2; j++ {
		label := fmt.Sprintf("0x%08X:", addr+uint32(j*8))
		for _, y := range []int{128, 152, 176, 200} {
			s.Print(label, 8, y+j*8, fg, bg)
		}

		for i := 0; i < 4; i++ {
			s.Print(d.HalfHex[j][i], 104+i*56, 128+j*8, fg, bg)
			s.Print(d.HalfDec[j][i], 104+i*56, 152+j*8, fg, bg)
		}
		for i := 0; i < 2; i++ {
			s.Print(d.WordHex[j][i], 104+i*88, 176+j*8, fg, bg)
			s.Print(d.WordDec[j][i], 104+i*88, 200+j*8, fg, bg)
		}
	}

	s.PrintRTL("sorry, mate", 312, 224, fg, bg)
	s.Print(fmt.Sprintf("%d", frame), 8, 224, fg, bg)
}
