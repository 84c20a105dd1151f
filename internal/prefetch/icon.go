// internal/prefetch/icon.go
package prefetch

// Icon geometry. Pixels are RGB565, rows stored bottom-up as in the file.
const (
	IconWidth  = 64
	IconHeight = 48
	IconPixels = IconWidth * IconHeight

	// byte holding the pixel data offset in the bitmap header
	pixelOffsetField = 0x0A
)

// Bitmap is a decoded icon.
type Bitmap [IconPixels]uint16

// DecodeIcon extracts the pixels of a 64x48 16-bit bitmap.
// Only the low byte of the header's pixel offset is used. Pixels past
// the end of bmp stay black.
func DecodeIcon(bmp []byte) Bitmap {
	var out Bitmap
	if len(bmp) <= pixelOffsetField {
		return out
	}
	off := int(bmp[pixelOffsetField])
	if off >= len(bmp) {
		return out
	}
	data := bmp[off:]
	for i := 0; i < IconPixels && 2*i+1 < len(data); i++ {
		out[i] = uint16(data[2*i]) | uint16(data[2*i+1])<<8
	}
	return out
}

func gray(l uint16) uint16 { return l<<11 | l<<6 | l }

// paint builds a bitmap from a top-down pixel function.
func paint(fn func(x, y int) uint16) Bitmap {
	var b Bitmap
	for y := 0; y < IconHeight; y++ {
		for x := 0; x < IconWidth; x++ {
			b[(IconHeight-1-y)*IconWidth+x] = fn(x, y)
		}
	}
	return b
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

var (
	defaultIcon = paint(func(x, y int) uint16 {
		if x < 2 || x >= IconWidth-2 || y < 2 || y >= IconHeight-2 {
			return 0xFFFF
		}
		// red cross over the inner area
		const w, h = IconWidth - 16, IconHeight - 16
		ix, iy := x-8, y-8
		if ix >= 0 && ix < w && iy >= 0 && iy < h {
			if abs(ix*h-iy*w) < w || abs(ix*h-(h-1-iy)*w) < w {
				return 0xF800
			}
		}
		return gray(8)
	})

	hourglassIcon = paint(func(x, y int) uint16 {
		const cx, top, bottom = IconWidth / 2, 4, IconHeight - 5
		if y == top || y == bottom {
			if abs(x-cx) <= 14 {
				return 0xFFFF
			}
			return 0
		}
		if y < top || y > bottom {
			return 0
		}
		// half width narrows to the waist in the middle
		mid := (top + bottom) / 2
		half := 1 + 12*abs(y-mid)/(mid-top)
		d := abs(x - cx)
		switch {
		case d == half:
			return 0xFFFF
		case d < half && y > mid+4:
			return 0xFFE0
		case d < half && y < mid && y > top+8:
			return 0xFFE0
		}
		return 0
	})
)

// DefaultIcon is shown for an entry without ICON.BMP.
func DefaultIcon() Bitmap { return defaultIcon }

// HourglassIcon is shown while an entry is loading.
func HourglassIcon() Bitmap { return hourglassIcon }
