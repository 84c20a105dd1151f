// internal/display/panel.go
package display

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// Panel shows a finished frame. It is the lcd_update of the host build.
type Panel interface {
	Present(s *Screen) error
}

// Discard drops every frame.
var Discard Panel = discard{}

type discard struct{}

func (discard) Present(*Screen) error { return nil }

// PNGPanel keeps the last presented frame as a PNG file.
// The file is replaced atomically so a viewer never sees a partial image.
type PNGPanel struct {
	mu     sync.Mutex
	path   string
	frames int
}

// NewPNGPanel writes frames to path.
func NewPNGPanel(path string) *PNGPanel {
	return &PNGPanel{path: path}
}

// Present writes s to the panel file.
func (p *PNGPanel) Present(s *Screen) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(p.path), ".frame-*.png")
	if err != nil {
		return errors.Wrap(err, "display: png panel")
	}
	if err := s.WritePNG(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, "display: png panel")
	}
	if err := os.Rename(tmp.Name(), p.path); err != nil {
		return errors.Wrap(err, "display: png panel")
	}
	p.frames++
	return nil
}

// Frames returns the number of frames written.
func (p *PNGPanel) Frames() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frames
}
