// cmd/hbloader/menu.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tamzrod/gw-hbloader/internal/app"
	"github.com/tamzrod/gw-hbloader/internal/buttons"
	"github.com/tamzrod/gw-hbloader/internal/config"
	"github.com/tamzrod/gw-hbloader/internal/display"
	"github.com/tamzrod/gw-hbloader/internal/menu"
	"github.com/tamzrod/gw-hbloader/internal/tui"
)

// tuiScale renders every second pixel: 160x60 cells.
const tuiScale = 2

func newMenuCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Run the loader menu",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, closeLog, err := loadConfig()
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if cfg.Display.Panel == "tui" {
				return runTUI(ctx, cfg)
			}
			return runHeadless(ctx, cfg)
		},
	}
}

func runTUI(ctx context.Context, cfg *config.Config) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return errors.New("menu: the tui panel needs a terminal on stdin")
	}

	fe := tui.New(tuiScale)
	a, err := app.Build(cfg, app.Frontend{Panel: fe, Buttons: fe, Backlight: fe}, log)
	if err != nil {
		return errors.Wrap(err, "app build failed")
	}
	defer a.Close()

	quiet()
	return fe.Run(ctx, cfg.Menu.Title, func(ctx context.Context) error {
		return runDevice(ctx, a)
	})
}

func runHeadless(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var panel display.Panel = display.Discard
	if cfg.Display.Panel == "png" {
		panel = display.NewPNGPanel(cfg.Display.PNGPath)
	}

	// keys drive the menu when there is a terminal, otherwise nothing is pressed
	var src buttons.Source = buttons.NewScript()
	if term.IsTerminal(int(os.Stdin.Fd())) {
		t, err := buttons.OpenTerminal(os.Stdin)
		if err != nil {
			return err
		}
		defer t.Close()
		src = t
	}

	a, err := app.Build(cfg, app.Frontend{Panel: panel, Buttons: src, OnPower: cancel}, log)
	if err != nil {
		return errors.Wrap(err, "app build failed")
	}
	defer a.Close()

	return runDevice(ctx, a)
}

// runDevice runs the menu and parks the device on anything it cannot
// recover from, the way the firmware would.
func runDevice(ctx context.Context, a *app.App) error {
	err := a.Runner.Run(ctx)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return nil
	case errors.Is(err, menu.ErrNoHomebrew):
		log.Warn("no homebrew on the card")
		err = a.Halt.Hold(ctx)
	default:
		log.WithError(err).Error("device halted")
		err = a.Halt.Park(ctx, err)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
