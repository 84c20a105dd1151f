// internal/spiflash/driver.go
package spiflash

import (
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Serial NOR command set (MX25 / IS25 families).
const (
	CmdWriteStatus = 0x01 // WRSR
	CmdPageProgram = 0x02 // PP
	CmdReadStatus  = 0x05 // RDSR
	CmdWriteEnable = 0x06 // WREN
	CmdFastRead    = 0x0B
	CmdSectorErase = 0x20 // 4 KiB
	CmdEnableQPI   = 0x35 // ISSI
	CmdQuadProgram = 0x38 // 4PP, MX
	CmdChipErase   = 0x60
	CmdResetEnable = 0x66
	CmdReset       = 0x99
	CmdBlockErase  = 0xD8 // 64 KiB
	CmdDisableQPI  = 0xF5 // ISSI
)

const (
	fastReadDummy     = 8
	statusWIP         = 0x01
	statusQuadEnable  = 0x40
	chipErasePollStep = 100 * time.Millisecond
)

// Geometry.
const (
	PageSize   = 256
	SectorSize = 4 * 1024
	BlockSize  = 64 * 1024
)

// ErrTransactionTooLarge is returned for a single program or read of more than one page.
var ErrTransactionTooLarge = errors.New("spiflash: transaction larger than 256 bytes")

// Driver issues raw command sequences to an external serial NOR chip.
// Mode and vendor are driver state set by Init.
type Driver struct {
	bus    Bus
	mode   Mode
	vendor Vendor
	sleep  func(time.Duration)
	log    logrus.FieldLogger
}

// Option configures a Driver.
type Option func(*Driver)

// WithSleep replaces time.Sleep for the fixed reset and erase delays.
func WithSleep(fn func(time.Duration)) Option {
	return func(d *Driver) { d.sleep = fn }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(d *Driver) { d.log = l }
}

// New creates a driver in SPI mode for an MX chip.
func New(bus Bus, opts ...Option) *Driver {
	d := &Driver{
		bus:    bus,
		mode:   ModeSPI,
		vendor: VendorMX,
		sleep:  time.Sleep,
		log:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Driver) Mode() Mode     { return d.mode }
func (d *Driver) Vendor() Vendor { return d.vendor }

// ------------------------------------------------------------
// INIT
// ------------------------------------------------------------

// Init resets the chip and switches it to mode.
func (d *Driver) Init(mode Mode, vendor Vendor) error {
	d.log.WithFields(logrus.Fields{"mode": mode, "vendor": vendor}).Debug("spiflash init")

	if vendor == VendorISSI {
		// leave QPI; a chip already in SPI ignores it
		if err := d.writeBytes(CmdDisableQPI, nil, ModeQuad, vendor); err != nil {
			return err
		}
		d.sleep(2 * time.Millisecond)
	}
	if err := d.writeBytes(CmdResetEnable, nil, ModeSPI, vendor); err != nil {
		return err
	}
	d.sleep(2 * time.Millisecond)
	if err := d.writeBytes(CmdReset, nil, ModeSPI, vendor); err != nil {
		return err
	}
	d.sleep(20 * time.Millisecond)

	d.vendor = vendor
	d.mode = mode

	if mode != ModeQuad {
		return nil
	}

	switch vendor {
	case VendorMX:
		if err := d.WriteEnable(); err != nil {
			return err
		}
		for {
			if err := d.writeBytes(CmdWriteStatus, []byte{statusQuadEnable}, ModeSPI, d.vendor); err != nil {
				return err
			}
			st, err := d.ReadStatus()
			if err != nil {
				return err
			}
			if st&statusQuadEnable == statusQuadEnable {
				return nil
			}
		}

	case VendorISSI:
		return d.writeBytes(CmdEnableQPI, nil, ModeSPI, d.vendor)
	}
	return nil
}

// ------------------------------------------------------------
// ERASE
// ------------------------------------------------------------

// WriteEnable sets the write enable latch.
func (d *Driver) WriteEnable() error {
	return d.writeBytes(CmdWriteEnable, nil, d.mode, d.vendor)
}

// ChipErase erases the whole chip and waits, polling every 100 ms.
// The caller issues WriteEnable first.
func (d *Driver) ChipErase() error {
	if err := d.writeBytes(CmdChipErase, nil, d.mode, d.vendor); err != nil {
		return err
	}
	for {
		st, err := d.ReadStatus()
		if err != nil {
			return err
		}
		d.sleep(chipErasePollStep)
		if st&statusWIP == 0 {
			return nil
		}
	}
}

// BlockErase erases the 64 KiB block containing addr.
func (d *Driver) BlockErase(addr uint32) error {
	return d.eraseAt(CmdBlockErase, addr)
}

// SectorErase erases the 4 KiB sector containing addr.
func (d *Driver) SectorErase(addr uint32) error {
	return d.eraseAt(CmdSectorErase, addr)
}

func (d *Driver) eraseAt(instr byte, addr uint32) error {
	cmd := Command{
		Instruction: instr,
		Lines:       SetCmdLines(d.mode, d.vendor, true, false),
		Address:     addr & 0xFFFFFF,
	}
	if err := d.bus.Command(cmd); err != nil {
		return errors.Wrapf(err, "spiflash: erase 0x%02X at 0x%06X", instr, addr)
	}
	return d.waitIdle()
}

// ------------------------------------------------------------
// PROGRAM / READ
// ------------------------------------------------------------

// Program writes buf starting at the page containing addr.
// Each page gets its own write enable and page program.
func (d *Driver) Program(addr uint32, buf []byte) error {
	page := addr / PageSize
	for i := 0; len(buf) > 0; i++ {
		n := len(buf)
		if n > PageSize {
			n = PageSize
		}
		if err := d.WriteEnable(); err != nil {
			return err
		}
		if err := d.programPage((page+uint32(i))*PageSize, buf[:n]); err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}

func (d *Driver) programPage(addr uint32, data []byte) error {
	instr := byte(CmdPageProgram)
	if d.mode == ModeQuad && d.vendor == VendorMX {
		instr = CmdQuadProgram
	}
	if len(data) > PageSize {
		return ErrTransactionTooLarge
	}
	cmd := Command{
		Instruction: instr,
		Lines:       SetCmdLines(d.mode, d.vendor, true, true),
		Address:     addr & 0xFFFFFF,
		NbData:      len(data),
	}
	if err := d.bus.Command(cmd); err != nil {
		return errors.Wrapf(err, "spiflash: program at 0x%06X", addr)
	}
	if err := d.bus.Transmit(data); err != nil {
		return errors.Wrapf(err, "spiflash: program data at 0x%06X", addr)
	}
	return d.waitIdle()
}

// Read fills buf starting at the page containing addr, one fast read per page.
// A trailing partial page is read too.
func (d *Driver) Read(addr uint32, buf []byte) error {
	page := addr / PageSize
	for i := 0; len(buf) > 0; i++ {
		n := len(buf)
		if n > PageSize {
			n = PageSize
		}
		if err := d.readPage((page+uint32(i))*PageSize, buf[:n]); err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}

func (d *Driver) readPage(addr uint32, data []byte) error {
	if len(data) > PageSize {
		return ErrTransactionTooLarge
	}
	cmd := Command{
		Instruction: CmdFastRead,
		Lines:       SetCmdLines(d.mode, d.vendor, true, true),
		Address:     addr & 0xFFFFFF,
		DummyCycles: fastReadDummy,
		NbData:      len(data),
	}
	if err := d.bus.Command(cmd); err != nil {
		return errors.Wrapf(err, "spiflash: read at 0x%06X", addr)
	}
	if err := d.bus.Receive(data); err != nil {
		return errors.Wrapf(err, "spiflash: read data at 0x%06X", addr)
	}
	return nil
}

// ------------------------------------------------------------
// STATUS
// ------------------------------------------------------------

// ReadStatus reads the status register.
// MX chips answer on one line; ISSI chips answer in the current mode.
func (d *Driver) ReadStatus() (byte, error) {
	mode := d.mode
	if d.vendor == VendorMX {
		mode = ModeSPI
	}
	cmd := Command{
		Instruction: CmdReadStatus,
		Lines:       SetCmdLines(mode, d.vendor, false, true),
		NbData:      1,
	}
	if err := d.bus.Command(cmd); err != nil {
		return 0, errors.Wrap(err, "spiflash: read status")
	}
	var st [1]byte
	if err := d.bus.Receive(st[:]); err != nil {
		return 0, errors.Wrap(err, "spiflash: read status data")
	}
	return st[0], nil
}

// waitIdle spins on the write-in-progress bit. There is no timeout.
func (d *Driver) waitIdle() error {
	for {
		st, err := d.ReadStatus()
		if err != nil {
			return err
		}
		if st&statusWIP == 0 {
			return nil
		}
	}
}

// writeBytes sends an instruction with optional data and no address.
func (d *Driver) writeBytes(instr byte, data []byte, mode Mode, vendor Vendor) error {
	cmd := Command{
		Instruction: instr,
		Lines:       SetCmdLines(mode, vendor, false, len(data) > 0),
		NbData:      len(data),
	}
	if err := d.bus.Command(cmd); err != nil {
		return errors.Wrapf(err, "spiflash: command 0x%02X", instr)
	}
	if len(data) == 0 {
		return nil
	}
	if err := d.bus.Transmit(data); err != nil {
		return errors.Wrapf(err, "spiflash: command 0x%02X data", instr)
	}
	return nil
}
