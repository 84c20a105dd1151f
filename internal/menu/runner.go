// internal/menu/runner.go
package menu

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Runner drives a Menu at a fixed frame rate.
type Runner struct {
	menu     *Menu
	buttons  Buttons
	interval time.Duration
}

// NewRunner creates a runner ticking every interval.
func NewRunner(m *Menu, btn Buttons, interval time.Duration) *Runner {
	return &Runner{menu: m, buttons: btn, interval: interval}
}

// Run starts the menu and ticks it until ctx is done or a fatal error
// occurs. A reboot starts the menu over, as a device reset would.
// One frame per tick. No overlap. No retries.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.menu.Start(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		pressed, err := r.buttons.Get()
		if err != nil {
			return errors.Wrap(err, "menu: buttons")
		}

		err = r.menu.Frame(ctx, pressed)
		if errors.Is(err, ErrReboot) {
			r.menu.log.Info("restarting menu")
			err = r.menu.Start(ctx)
		}
		if err != nil {
			return err
		}
	}
}
