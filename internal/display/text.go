// internal/display/text.go
package display

import (
	"image"

	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// CharSize is the text cell size. Every character advances 8 pixels.
const CharSize = 8

// glyphs holds one 8x8 cell per ASCII code, bit 7 is the leftmost column.
var glyphs [128][CharSize]uint8

// The basic 7x13 face is folded into 8x8 cells by row sampling.
func init() {
	face := basicfont.Face7x13
	asc := face.Metrics().Ascent.Ceil()
	for c := rune(0x20); c < 0x7F; c++ {
		dr, mask, mp, _, ok := face.Glyph(fixed.P(0, asc), c)
		if !ok {
			continue
		}
		h := dr.Dy()
		for row := 0; row < CharSize; row++ {
			sy := row * h / CharSize
			var bits uint8
			for x := 0; x < dr.Dx() && x < CharSize; x++ {
				if alphaAt(mask, mp.X+x, mp.Y+sy) > 0x7F {
					bits |= 0x80 >> uint(x)
				}
			}
			glyphs[c][row] = bits
		}
	}
}

func alphaAt(m image.Image, x, y int) uint32 {
	_, _, _, a := m.At(x, y).RGBA()
	return a >> 8
}

// PutChar draws one cell at x, y. Codes without a glyph draw as background.
func (s *Screen) PutChar(c byte, x, y int, fg, bg uint16) {
	var g [CharSize]uint8
	if c < 128 {
		g = glyphs[c]
	}
	for row := 0; row < CharSize; row++ {
		for col := 0; col < CharSize; col++ {
			px := bg
			if g[row]&(0x80>>uint(col)) != 0 {
				px = fg
			}
			s.Set(x+col, y+row, px)
		}
	}
}

// Print draws str left-aligned at x, y.
func (s *Screen) Print(str string, x, y int, fg, bg uint16) {
	for i := 0; i < len(str); i++ {
		s.PutChar(str[i], x+i*CharSize, y, fg, bg)
	}
}

// PrintCentered draws str centered on x.
func (s *Screen) PrintCentered(str string, x, y int, fg, bg uint16) {
	s.Print(str, x-len(str)*CharSize/2, y, fg, bg)
}

// PrintRTL draws str so that it ends at x.
func (s *Screen) PrintRTL(str string, x, y int, fg, bg uint16) {
	s.Print(str, x-len(str)*CharSize, y, fg, bg)
}
