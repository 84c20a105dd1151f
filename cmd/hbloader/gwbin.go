// cmd/hbloader/gwbin.go
package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tamzrod/gw-hbloader/internal/gwbin"
)

func newGwbinCmd() *cobra.Command {
	p := gwbin.NewPacker()
	p.Log = log
	var asHex bool

	cmd := &cobra.Command{
		Use:   "gwbin <in.elf|in.hex> <out>",
		Short: "Flatten a program image into a MAIN.BIN",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			img, err := p.Load(args[0])
			if err != nil {
				return err
			}

			f, err := os.Create(args[1])
			if err != nil {
				return errors.Wrap(err, "gwbin: create output")
			}
			defer f.Close()

			if asHex {
				err = img.WriteHex(f)
			} else {
				err = img.WriteBinary(f)
			}
			if err != nil {
				return err
			}
			if err := f.Close(); err != nil {
				return errors.Wrap(err, "gwbin: close output")
			}

			log.WithFields(logrus.Fields{
				"base":     img.Base,
				"bytes":    len(img.Data),
				"segments": len(img.Segments),
			}).Info("image written")
			return nil
		},
	}
	cmd.Flags().Uint32Var(&p.Base, "base", gwbin.DefaultBase, "first address of the flash window")
	cmd.Flags().Uint32Var(&p.Top, "top", gwbin.DefaultTop, "end of the flash window (exclusive)")
	cmd.Flags().BoolVar(&asHex, "hex", false, "write Intel HEX instead of a flat binary")
	return cmd
}
