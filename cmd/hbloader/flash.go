// cmd/hbloader/flash.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tamzrod/gw-hbloader/internal/app"
	"github.com/tamzrod/gw-hbloader/internal/buttons"
	"github.com/tamzrod/gw-hbloader/internal/display"
	"github.com/tamzrod/gw-hbloader/internal/sequencer"
)

func newFlashCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "flash <entry>",
		Short: "Flash one entry directory without the menu",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, closeLog, err := loadConfig()
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var panel display.Panel = display.Discard
			if cfg.Display.Panel == "png" {
				panel = display.NewPNGPanel(cfg.Display.PNGPath)
			}

			// one A press answers the missing-image notice
			a, err := app.Build(cfg, app.Frontend{Panel: panel, Buttons: buttons.NewScript(buttons.A)}, log)
			if err != nil {
				return errors.Wrap(err, "app build failed")
			}
			defer a.Close()

			entry := args[0]
			if err := a.Sequencer.Run(ctx, entry); err != nil {
				if errors.Is(err, sequencer.ErrImageMissing) {
					return errors.Errorf("flash: %s has no %s", entry, sequencer.ImageFile)
				}
				return errors.Wrapf(err, "flash %s", entry)
			}

			log.WithFields(logrus.Fields{
				"entry":  entry,
				"erased": len(a.Internal.ErasedSectors()),
				"locked": a.Internal.Locked(),
			}).Info("flash complete")

			if out == "" {
				return nil
			}
			if err := os.WriteFile(out, a.Internal.Bytes(), 0o644); err != nil {
				return errors.Wrap(err, "write internal bank")
			}
			log.WithField("path", out).Info("internal bank written")
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the internal flash bank to this file afterwards")
	return cmd
}
