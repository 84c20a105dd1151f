// internal/display/screen.go
package display

import (
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/pkg/errors"
)

// Panel geometry.
const (
	Width  = 320
	Height = 240
)

// Common colors (RGB565).
const (
	Black uint16 = 0x0000
	White uint16 = 0xFFFF
	Blue  uint16 = 0x001F
)

// Grayscale returns gray level l (0..31) as RGB565.
func Grayscale(l uint16) uint16 { return l<<11 | l<<6 | l }

// Screen is a 320x240 RGB565 framebuffer.
// It implements image.Image so a frame can be encoded directly.
type Screen struct {
	pix []uint16
}

// New returns a black screen.
func New() *Screen {
	return &Screen{pix: make([]uint16, Width*Height)}
}

// Pix returns the framebuffer, row-major.
func (s *Screen) Pix() []uint16 { return s.pix }

// Pixel returns the RGB565 value at x, y. Out of range reads give black.
func (s *Screen) Pixel(x, y int) uint16 {
	if x < 0 || x >= Width || y < 0 || y >= Height {
		return Black
	}
	return s.pix[y*Width+x]
}

// Set writes one pixel. Out of range writes are dropped.
func (s *Screen) Set(x, y int, c uint16) {
	if x < 0 || x >= Width || y < 0 || y >= Height {
		return
	}
	s.pix[y*Width+x] = c
}

// Clear fills the whole screen.
func (s *Screen) Clear(c uint16) { s.FillRows(0, Height, c) }

// FillRows fills rows [y0, y1).
func (s *Screen) FillRows(y0, y1 int, c uint16) {
	s.FillRect(0, y0, Width, y1-y0, c)
}

// FillRect fills a w x h rectangle at x, y.
func (s *Screen) FillRect(x, y, w, h int, c uint16) {
	for j := y; j < y+h; j++ {
		for i := x; i < x+w; i++ {
			s.Set(i, j, c)
		}
	}
}

// ---- image.Image ----

func (s *Screen) ColorModel() color.Model { return color.RGBAModel }

func (s *Screen) Bounds() image.Rectangle { return image.Rect(0, 0, Width, Height) }

func (s *Screen) At(x, y int) color.Color { return RGB565(s.Pixel(x, y)) }

// RGB565 expands a panel pixel to 8-bit channels.
func RGB565(v uint16) color.RGBA {
	r := uint8(v>>11) & 0x1F
	g := uint8(v>>5) & 0x3F
	b := uint8(v) & 0x1F
	return color.RGBA{
		R: r<<3 | r>>2,
		G: g<<2 | g>>4,
		B: b<<3 | b>>2,
		A: 0xFF,
	}
}

// WritePNG encodes the current frame.
func (s *Screen) WritePNG(w io.Writer) error {
	if err := png.Encode(w, s); err != nil {
		return errors.Wrap(err, "display: encode png")
	}
	return nil
}
