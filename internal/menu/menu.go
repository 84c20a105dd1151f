// internal/menu/menu.go
package menu

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tamzrod/gw-hbloader/internal/buttons"
	"github.com/tamzrod/gw-hbloader/internal/display"
	"github.com/tamzrod/gw-hbloader/internal/loader"
	"github.com/tamzrod/gw-hbloader/internal/prefetch"
	"github.com/tamzrod/gw-hbloader/internal/sequencer"
)

// DefaultTitle is drawn in the header.
const DefaultTitle = "G&W Homebrew Loader Menu"

// Visible list rows.
const visibleRows = 3

var (
	// ErrNoHomebrew is returned by Start when the card has no entries.
	// The "no homebrew" screen is on the panel.
	ErrNoHomebrew = errors.New("menu: no homebrew on the card")

	// ErrReboot is returned after the controller was told to reset the device.
	ErrReboot = errors.New("menu: device reboot")
)

// Channel is the part of the command channel the menu uses.
type Channel interface {
	Call(ctx context.Context, op loader.Opcode, req loader.Request) error
	Buffer() loader.Buffer
}

// Cache is the metadata prefetcher.
type Cache interface {
	Reset(entries []string)
	Request(id int)
	Update() error
	Slot(i int) prefetch.Slot
}

// Flasher programs entries and dumps the external flash.
type Flasher interface {
	Run(ctx context.Context, entry string) error
	Dump(ctx context.Context, size int) error
}

// Power puts the device to sleep.
type Power interface {
	Suspend(ctx context.Context) error
}

// Deps are the collaborators of a Menu.
type Deps struct {
	Channel Channel
	Cache   Cache
	Flasher Flasher
	Power   Power
	Screen  *display.Screen
	Panel   display.Panel
}

// Option configures a Menu.
type Option func(*Menu)

// WithTitle sets the header title.
func WithTitle(title string) Option {
	return func(m *Menu) { m.title = title }
}

// WithDumpSize sets how many bytes "Dump flash" copies.
func WithDumpSize(n int) Option {
	return func(m *Menu) { m.dumpSize = n }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(m *Menu) { m.log = l }
}

// Menu is the entry list: selection, scrolling, rendering and the popup menu.
type Menu struct {
	d        Deps
	title    string
	dumpSize int
	log      logrus.FieldLogger

	entries    Directory
	selection  int
	scroll     int
	capacityMB int
	freeMB     int

	sub *submenu // nil when closed
}

// New creates a menu. Start must run before the first Frame.
func New(d Deps, opts ...Option) *Menu {
	m := &Menu{
		d:        d,
		title:    DefaultTitle,
		dumpSize: 1 << 20,
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Entries returns the parsed directory.
func (m *Menu) Entries() Directory { return m.entries }

// Selection returns the selected entry and the first visible one.
func (m *Menu) Selection() (selection, scroll int) { return m.selection, m.scroll }

// Storage returns the card capacity and free space in MB.
func (m *Menu) Storage() (capacityMB, freeMB int) { return m.capacityMB, m.freeMB }

// ------------------------------------------------------------
// START-UP
// ------------------------------------------------------------

// Start detects the card, lists the root directory and arms the cache
// for the first rows.
func (m *Menu) Start(ctx context.Context) error {
	s, ch := m.d.Screen, m.d.Channel
	m.selection, m.scroll, m.sub = 0, 0, nil

	s.Clear(display.Black)
	s.PrintCentered("Detecting SD card...", 160, 116, display.White, display.Black)
	m.present()

	if err := ch.Call(ctx, loader.OpDetect, loader.Request{}); err != nil {
		return err
	}
	buf := ch.Buffer()
	m.capacityMB = sectorsToMB(buf.Word(loader.WordLength))
	m.freeMB = sectorsToMB(buf.Word(loader.WordArg))

	s.PrintCentered("Loading root directory...", 160, 116, display.White, display.Black)
	m.present()

	listing := make([]byte, ListingSize)
	if err := ch.Call(ctx, loader.OpReadDir, loader.Request{Length: ListingSize, Data: listing}); err != nil {
		return err
	}
	m.entries = ParseDirectory(listing)

	m.log.WithFields(logrus.Fields{
		"entries":     len(m.entries),
		"capacity_mb": m.capacityMB,
		"free_mb":     m.freeMB,
	}).Info("card ready")

	if len(m.entries) == 0 {
		s.PrintCentered("There is no homebrew on the SD card.", 160, 108, display.White, display.Black)
		s.PrintCentered("Please press the power button", 160, 116, display.White, display.Black)
		s.PrintCentered("to turn off the device.", 160, 124, display.White, display.Black)
		m.present()
		return ErrNoHomebrew
	}

	m.d.Cache.Reset(m.entries)
	for i := 0; i < visibleRows; i++ {
		m.d.Cache.Request(i)
	}

	m.drawHeader()
	return nil
}

func sectorsToMB(sectors uint32) int {
	return int(uint64(sectors) * 512 / 1000000)
}

// ------------------------------------------------------------
// FRAME
// ------------------------------------------------------------

// Frame handles one sample of pressed buttons, redraws the screen and
// runs one prefetch step.
//
// Errors are fatal except ErrReboot, which asks the caller to start over.
func (m *Menu) Frame(ctx context.Context, pressed buttons.Mask) error {
	if m.sub != nil {
		open, err := m.sub.frame(ctx, pressed)
		if err != nil || open {
			return err
		}
		m.sub = nil
		m.drawHeader()
		pressed = 0
	}

	count := len(m.entries)

	if pressed&buttons.Up != 0 {
		m.selection--
		if m.selection == -1 {
			m.selection = count - 1
			m.scroll = count - visibleRows
			if m.scroll < 0 {
				m.scroll = 0
			}
			for i := 0; i < visibleRows; i++ {
				m.d.Cache.Request(m.scroll + i)
			}
		}
		if m.selection-m.scroll == -1 {
			m.scroll--
			m.d.Cache.Request(m.selection)
		}
	}

	if pressed&buttons.Down != 0 {
		m.selection++
		if m.selection == count {
			m.selection = 0
			m.scroll = 0
			for i := 0; i < visibleRows; i++ {
				m.d.Cache.Request(i)
			}
		}
		if m.selection-m.scroll == visibleRows {
			m.d.Cache.Request(m.selection)
			m.scroll++
		}
	}

	if pressed&buttons.A != 0 {
		if err := m.flash(ctx); err != nil {
			return err
		}
	}

	if pressed&buttons.Game != 0 {
		m.openSubmenu()
		return nil
	}

	m.render()
	m.present()
	return m.d.Cache.Update()
}

func (m *Menu) flash(ctx context.Context) error {
	entry := m.entries[m.selection]
	m.log.WithField("entry", entry).Info("flashing")

	err := m.d.Flasher.Run(ctx, entry)
	switch {
	case err == nil:
		return ErrReboot
	case errors.Is(err, sequencer.ErrImageMissing):
		m.drawHeader()
		return nil
	default:
		return err
	}
}

// ---- drawing ----

func (m *Menu) drawHeader() {
	bg := display.Grayscale(4)
	m.d.Screen.FillRows(0, 16, bg)
	m.d.Screen.PrintCentered(m.title, 160, 4, display.White, bg)
}

func (m *Menu) drawFooter() {
	s := m.d.Screen
	bg := display.Grayscale(4)

	s.FillRows(224, 240, bg)
	s.PrintRTL(fmt.Sprintf("%d/%d", m.selection+1, len(m.entries)), 312, 228, display.White, bg)
	s.Print(fmt.Sprintf("%d.%02d GB total, %d.%02d GB free",
		m.capacityMB/1000, m.capacityMB%1000/10,
		m.freeMB/1000, m.freeMB%1000/10), 8, 228, display.White, bg)

	s.FillRows(16, 224, display.Black)
}

func (m *Menu) render() {
	s := m.d.Screen
	m.drawFooter()

	rows := len(m.entries)
	if rows > visibleRows {
		rows = visibleRows
	}
	for i := 0; i < rows; i++ {
		c := display.Grayscale(4)
		if i == m.selection-m.scroll {
			c = display.White
		}
		s.Border(i, c)

		slot := m.d.Cache.Slot(i + m.scroll)
		y := 24 + i*display.RowPitch
		s.Bitmap(slot.Bitmap[:], 10, y, prefetch.IconWidth, prefetch.IconHeight)
		s.Print(slot.Name, 80, y+4, display.White, display.Black)
		s.Print(slot.Author, 80, y+20, display.Grayscale(24), display.Black)
		s.Print(slot.Version, 80, y+36, display.Grayscale(24), display.Black)
	}
}

func (m *Menu) present() {
	if err := m.d.Panel.Present(m.d.Screen); err != nil {
		m.log.WithError(err).Debug("present failed")
	}
}
