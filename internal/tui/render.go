// internal/tui/render.go
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tamzrod/gw-hbloader/internal/display"
)

const halfBlock = "▀"

// Render draws the screen with upper half blocks: one character cell holds
// two vertically stacked pixels. scale skips pixels in both directions.
func Render(s *display.Screen, scale int) string {
	if scale < 1 {
		scale = 1
	}
	var b strings.Builder
	for y := 0; y+scale < display.Height; y += 2 * scale {
		runTop, runBot, n := uint16(0), uint16(0), 0
		flush := func() {
			if n == 0 {
				return
			}
			st := lipgloss.NewStyle().Foreground(hex(runTop)).Background(hex(runBot))
			b.WriteString(st.Render(strings.Repeat(halfBlock, n)))
			n = 0
		}
		for x := 0; x < display.Width; x += scale {
			top, bot := s.Pixel(x, y), s.Pixel(x, y+scale)
			if n > 0 && (top != runTop || bot != runBot) {
				flush()
			}
			runTop, runBot = top, bot
			n++
		}
		flush()
		b.WriteByte('\n')
	}
	return b.String()
}

func hex(v uint16) lipgloss.Color {
	c := display.RGB565(v)
	return lipgloss.Color(fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B))
}
