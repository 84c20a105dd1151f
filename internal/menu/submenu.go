// internal/menu/submenu.go
package menu

import (
	"context"

	"github.com/tamzrod/gw-hbloader/internal/buttons"
	"github.com/tamzrod/gw-hbloader/internal/display"
	"github.com/tamzrod/gw-hbloader/internal/loader"
)

// Popup menu entries.
const (
	ItemDump = iota
	ItemBattery
	ItemReboot
	ItemSuspend
)

var submenuNames = []string{"Dump flash", "Battery status", "Reboot device", "Suspend device"}

const submenuWidth = 128

type submenu struct {
	m         *Menu
	selection int
}

func (m *Menu) openSubmenu() {
	m.d.Screen.Fade(16, 224)
	m.sub = &submenu{m: m}
	m.sub.draw()
	m.present()
}

// SubmenuOpen reports whether the popup menu is shown.
func (m *Menu) SubmenuOpen() bool { return m.sub != nil }

// frame runs one popup frame and reports whether the popup stays open.
func (p *submenu) frame(ctx context.Context, pressed buttons.Mask) (bool, error) {
	n := len(submenuNames)

	if pressed&buttons.Up != 0 {
		p.selection--
		if p.selection < 0 {
			p.selection = n - 1
		}
	}
	if pressed&buttons.Down != 0 {
		p.selection++
		if p.selection >= n {
			p.selection = 0
		}
	}
	if pressed&buttons.B != 0 {
		return false, nil
	}

	if pressed&buttons.A != 0 {
		switch p.selection {
		case ItemDump:
			if err := p.m.d.Flasher.Dump(ctx, p.m.dumpSize); err != nil {
				return false, err
			}
			return false, nil

		case ItemReboot:
			p.m.log.Info("reboot requested")
			// no prefetch drain: the reset discards any call still in flight
			if err := p.m.d.Channel.Call(ctx, loader.OpResetHalt, loader.Request{}); err != nil {
				return false, err
			}
			return false, ErrReboot

		case ItemSuspend:
			p.m.log.Info("suspend requested")
			if err := p.m.d.Power.Suspend(ctx); err != nil {
				return false, err
			}
			// waking from standby resets the device
			return false, ErrReboot
		}
	}

	p.draw()
	p.m.present()
	return true, nil
}

func (p *submenu) draw() {
	s := p.m.d.Screen
	n := len(submenuNames)

	s.Window(submenuWidth, 16+8*n)
	for i, name := range submenuNames {
		fg := display.Grayscale(10)
		if i == p.selection {
			fg = display.White
		}
		s.Print(name, 160-submenuWidth/2+8, 120-n*4+i*8, fg, display.Grayscale(4))
	}
}
