// internal/spiflash/lines.go
package spiflash

import "github.com/pkg/errors"

// Mode is the bus width the chip is wired and configured for.
type Mode int

const (
	ModeSPI Mode = iota
	ModeQuad
)

func (m Mode) String() string {
	if m == ModeQuad {
		return "quad"
	}
	return "spi"
}

// Vendor selects vendor-specific command handling.
type Vendor int

const (
	VendorMX Vendor = iota
	VendorISSI
)

func (v Vendor) String() string {
	if v == VendorISSI {
		return "issi"
	}
	return "mx"
}

// ParseVendor maps a config string to a Vendor.
func ParseVendor(s string) (Vendor, error) {
	switch s {
	case "", "mx":
		return VendorMX, nil
	case "issi":
		return VendorISSI, nil
	}
	return 0, errors.Errorf("spiflash: unknown vendor %q", s)
}

// LineMode is the number of data lines used by one phase of a command.
type LineMode int

const (
	LinesNone LineMode = 0
	Lines1    LineMode = 1
	Lines4    LineMode = 4
)

// Lines is the line configuration of a command's three phases.
type Lines struct {
	Instruction LineMode
	Address     LineMode
	Data        LineMode
}

// SetCmdLines returns the line configuration for a command.
//
//	SPI          1 / 1 / 1
//	quad + MX    1 / 4 / 4
//	quad + ISSI  4 / 4 / 4
//
// A phase that is absent gets LinesNone.
func SetCmdLines(mode Mode, vendor Vendor, hasAddress, hasData bool) Lines {
	width := Lines1
	instr := Lines1
	if mode == ModeQuad {
		width = Lines4
		if vendor == VendorISSI {
			instr = Lines4
		}
	}

	l := Lines{Instruction: instr}
	if hasAddress {
		l.Address = width
	}
	if hasData {
		l.Data = width
	}
	return l
}
