// internal/menu/ui.go
package menu

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tamzrod/gw-hbloader/internal/buttons"
	"github.com/tamzrod/gw-hbloader/internal/display"
	"github.com/tamzrod/gw-hbloader/internal/sequencer"
)

// Buttons yields newly pressed buttons, one sample per call.
type Buttons interface {
	Get() (buttons.Mask, error)
}

// ScreenUI draws the sequencer's windows and progress bar on the menu screen.
type ScreenUI struct {
	screen  *display.Screen
	panel   display.Panel
	buttons Buttons
	poll    time.Duration
	log     logrus.FieldLogger
}

// NewScreenUI creates a sequencer UI. poll paces WaitButton.
func NewScreenUI(screen *display.Screen, panel display.Panel, btn Buttons, poll time.Duration, log logrus.FieldLogger) *ScreenUI {
	return &ScreenUI{screen: screen, panel: panel, buttons: btn, poll: poll, log: log}
}

func (u *ScreenUI) Fade() { u.screen.Fade(16, 224) }

func (u *ScreenUI) Notice(n sequencer.Notice) {
	u.screen.Window(n.Width, n.Height)
	for i, line := range n.Lines {
		u.screen.PrintCentered(line, display.Width/2, n.Top+i*display.CharSize, display.White, display.Grayscale(4))
	}
	u.present()
}

func (u *ScreenUI) Progress(step, total int) {
	u.screen.ProgressBar(step, total, 60, 124, 200, 16)
	u.present()
}

// WaitButton returns once any button is pressed.
func (u *ScreenUI) WaitButton(ctx context.Context) error {
	ticker := time.NewTicker(u.poll)
	defer ticker.Stop()

	for {
		m, err := u.buttons.Get()
		if err != nil {
			return errors.Wrap(err, "menu: buttons")
		}
		if m != 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (u *ScreenUI) present() {
	if err := u.panel.Present(u.screen); err != nil {
		u.log.WithError(err).Debug("present failed")
	}
}
