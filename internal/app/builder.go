// internal/app/builder.go
package app

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tamzrod/gw-hbloader/internal/buttons"
	cfg "github.com/tamzrod/gw-hbloader/internal/config"
	"github.com/tamzrod/gw-hbloader/internal/display"
	"github.com/tamzrod/gw-hbloader/internal/halt"
	"github.com/tamzrod/gw-hbloader/internal/intflash"
	"github.com/tamzrod/gw-hbloader/internal/loader"
	lmodbus "github.com/tamzrod/gw-hbloader/internal/loader/modbus"
	"github.com/tamzrod/gw-hbloader/internal/loader/sim"
	"github.com/tamzrod/gw-hbloader/internal/loader/uart"
	"github.com/tamzrod/gw-hbloader/internal/menu"
	"github.com/tamzrod/gw-hbloader/internal/prefetch"
	"github.com/tamzrod/gw-hbloader/internal/sequencer"
	"github.com/tamzrod/gw-hbloader/internal/spiflash"
)

// Frontend is what the host offers in place of the device's panel and buttons.
type Frontend struct {
	Panel     display.Panel
	Buttons   buttons.Source
	Backlight halt.Backlight

	// OnPower runs when the power button is seen. Nil ignores it.
	OnPower func()
}

// App is the runtime graph of one device.
type App struct {
	Config *cfg.Config

	Channel   *loader.Channel
	Sim       *sim.Controller // nil unless the transport is sim
	Internal  *intflash.Memory
	External  *spiflash.Driver
	Screen    *display.Screen
	Buttons   *buttons.Reader
	Prefetch  *prefetch.Prefetcher
	Sequencer *sequencer.Sequencer
	Menu      *menu.Menu
	Runner    *menu.Runner
	Halt      *halt.Handler

	closers []func() error
}

// Build constructs the whole graph from a validated, normalized config.
// Transports are opened once (fail fast at startup). No retries.
func Build(c *cfg.Config, fe Frontend, log logrus.FieldLogger) (*App, error) {
	a := &App{Config: c}

	if fe.Panel == nil {
		fe.Panel = display.Discard
	}
	if fe.Backlight == nil {
		fe.Backlight = halt.LogBacklight{Log: log}
	}
	if fe.Buttons == nil {
		fe.Buttons = buttons.NewScript()
	}

	// ---- command channel ----
	tr, err := a.buildTransport(c.Loader, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Channel = loader.New(tr,
		loader.WithLogger(log.WithField("component", "loader")),
		loader.WithPollInterval(time.Duration(c.Loader.PollIntervalUs)*time.Microsecond),
	)

	// ---- flash ----
	a.Internal = intflash.NewMemory(c.Flash.Internal.Base, c.Flash.Internal.Sectors)

	ext, err := a.buildExternal(c.Flash.External, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.External = ext

	// ---- screen, buttons, halt ----
	frame := time.Duration(c.Menu.FrameMs) * time.Millisecond
	a.Screen = display.New()
	a.Buttons = buttons.NewReader(fe.Buttons, fe.OnPower)
	a.Halt = halt.New(a.Screen, fe.Panel, fe.Backlight, a.Buttons,
		halt.WithLogger(log.WithField("component", "halt")),
		halt.WithFrameInterval(frame),
		halt.WithBlinkInterval(time.Duration(c.Display.BlinkMs)*time.Millisecond),
	)

	// ---- prefetch + sequencer ----
	data := make([]byte, c.Menu.DataBuffer)
	a.Prefetch = prefetch.New(a.Channel, data, prefetch.WithLogger(log.WithField("component", "prefetch")))

	ui := menu.NewScreenUI(a.Screen, fe.Panel, a.Buttons, frame, log)
	a.Sequencer, err = sequencer.New(sequencer.Deps{
		Channel:  a.Channel,
		Prefetch: a.Prefetch,
		Internal: a.Internal,
		External: a.External,
		UI:       ui,
		Data:     data,
	},
		sequencer.WithLogger(log.WithField("component", "sequencer")),
		sequencer.WithBase(c.Flash.Internal.Base),
	)
	if err != nil {
		a.Close()
		return nil, err
	}

	// ---- menu ----
	a.Menu = menu.New(menu.Deps{
		Channel: a.Channel,
		Cache:   a.Prefetch,
		Flasher: a.Sequencer,
		Power:   &hostPower{backlight: fe.Backlight, ui: ui, log: log},
		Screen:  a.Screen,
		Panel:   fe.Panel,
	},
		menu.WithTitle(c.Menu.Title),
		menu.WithDumpSize(c.Flash.External.Size),
		menu.WithLogger(log.WithField("component", "menu")),
	)
	a.Runner = menu.NewRunner(a.Menu, a.Buttons, frame)

	return a, nil
}

// Close releases transports and buses.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

// ------------------------------------------------------------
// TRANSPORT
// ------------------------------------------------------------

func (a *App) buildTransport(l cfg.LoaderConfig, log logrus.FieldLogger) (loader.Transport, error) {
	timeout := time.Duration(l.TimeoutMs) * time.Millisecond

	switch l.Transport {
	case "sim":
		opts := []sim.Option{
			sim.WithLatency(*l.Sim.Latency),
			sim.WithLogger(log.WithField("component", "sim")),
		}
		if l.Sim.CapacitySectors > 0 {
			opts = append(opts, sim.WithCapacity(l.Sim.CapacitySectors))
		}
		ctrl, err := sim.New(l.Sim.Root, opts...)
		if err != nil {
			return nil, errors.Wrap(err, "app: sim card")
		}
		a.Sim = ctrl
		return ctrl, nil

	case "modbus-tcp", "modbus-rtu":
		mode := lmodbus.ModeTCP
		if l.Transport == "modbus-rtu" {
			mode = lmodbus.ModeRTU
		}
		client, err := lmodbus.NewEndpointClient(lmodbus.Config{
			Mode:     mode,
			Endpoint: l.Endpoint,
			UnitID:   l.UnitID,
			BaudRate: l.BaudRate,
			Timeout:  timeout,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		return lmodbus.NewBridge(client), nil

	case "uart":
		bridge, closer, err := uart.Open(uart.Config{
			Device:   l.Endpoint,
			BaudRate: l.BaudRate,
			Timeout:  timeout,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, closer)
		return bridge, nil
	}
	return nil, errors.Errorf("app: unknown transport %q", l.Transport)
}

// ------------------------------------------------------------
// EXTERNAL FLASH
// ------------------------------------------------------------

func (a *App) buildExternal(e cfg.ExternalFlashConfig, log logrus.FieldLogger) (*spiflash.Driver, error) {
	vendor, err := spiflash.ParseVendor(e.Vendor)
	if err != nil {
		return nil, err
	}

	var bus spiflash.Bus
	switch e.Bus {
	case "sim":
		bus = spiflash.NewMemChip(e.Size, vendor)
	case "spidev":
		pb, closer, err := spiflash.OpenPeriph(e.Device, e.SpeedHz)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, closer)
		bus = pb
	default:
		return nil, errors.Errorf("app: unknown external flash bus %q", e.Bus)
	}

	d := spiflash.New(bus, spiflash.WithLogger(log.WithField("component", "spiflash")))

	mode := spiflash.ModeSPI
	if e.Quad {
		mode = spiflash.ModeQuad
	}
	if err := d.Init(mode, vendor); err != nil {
		return nil, errors.Wrap(err, "app: external flash init")
	}
	return d, nil
}

// ------------------------------------------------------------
// POWER
// ------------------------------------------------------------

// hostPower stands in for standby: backlight off until a button wakes the device.
type hostPower struct {
	backlight halt.Backlight
	ui        *menu.ScreenUI
	log       logrus.FieldLogger
}

func (p *hostPower) Suspend(ctx context.Context) error {
	p.log.Info("entering standby")
	if err := p.backlight.SetBacklight(false); err != nil {
		return err
	}
	if err := p.ui.WaitButton(ctx); err != nil {
		return err
	}
	p.log.Info("woken up")
	return p.backlight.SetBacklight(true)
}
