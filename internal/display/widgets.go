// internal/display/widgets.go
package display

// Center of the panel, windows are placed around it.
const (
	centerX = Width / 2
	centerY = Height / 2
)

// Window draws a w x h box centered on the panel: gray fill, white frame.
func (s *Screen) Window(w, h int) {
	w /= 2
	h /= 2

	s.FillRect(centerX-w, centerY-h, 2*w, 2*h, Grayscale(8))

	for x := centerX - 1 - w; x < centerX+w; x++ {
		s.Set(x, centerY-1-h, White)
		s.Set(x, centerY+h, White)
	}
	for y := centerY - 1 - h; y < centerY+h; y++ {
		s.Set(centerX-1-w, y, White)
		s.Set(centerX+w, y, White)
	}
}

// ProgressBar draws a bar filled to step/total of its width.
func (s *Screen) ProgressBar(step, total, x, y, w, h int) {
	if total <= 0 {
		total = 1
	}
	for i := 0; i < w; i++ {
		c := Black
		if i < step*w/total {
			c = White
		}
		for j := y; j < y+h; j++ {
			s.Set(x+i, j, c)
		}
	}
}

// Fade darkens rows [y0, y1) to a quarter of their brightness.
func (s *Screen) Fade(y0, y1 int) {
	for y := y0; y < y1; y++ {
		for x := 0; x < Width; x++ {
			v := s.Pixel(x, y)
			r := (v >> 11) >> 2
			g := ((v >> 5) & 0x3F) >> 2
			b := (v & 0x1F) >> 2
			s.Set(x, y, r<<11|g<<5|b)
		}
	}
}

// Bitmap draws a w x h image stored bottom-up with its top-left corner at x, y.
func (s *Screen) Bitmap(pix []uint16, x, y, w, h int) {
	p := 0
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			if p < len(pix) {
				s.Set(x+col, y+h-1-row, pix[p])
			}
			p++
		}
	}
}

// Row layout of the menu list.
const (
	RowTop    = 21
	RowPitch  = 72
	rowHeight = 53
)

// Border draws the frame around list row i.
func (s *Screen) Border(i int, c uint16) {
	top := RowTop + i*RowPitch
	for x := 8; x < Width-8; x++ {
		s.Set(x, top, c)
		s.Set(x, top+rowHeight, c)
	}
	for j := 1; j < rowHeight; j++ {
		s.Set(7, top+j, c)
		s.Set(Width-7, top+j, c)
	}
}
