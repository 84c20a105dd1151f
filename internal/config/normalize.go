// internal/config/normalize.go
package config

import "github.com/tamzrod/gw-hbloader/internal/intflash"

// Defaults applied by Normalize.
const (
	DefaultTransport  = "sim"
	DefaultSimRoot    = "./sdcard"
	DefaultSimLatency = 2
	DefaultUnitID     = 1
	DefaultBaudRate   = 115200
	DefaultTimeoutMs  = 1000
	DefaultSectors    = 16
	DefaultExtBus     = "sim"
	DefaultExtVendor  = "mx"
	DefaultExtSize    = 1 << 20
	DefaultSpeedHz    = 30_000_000
	DefaultTitle      = "G&W Homebrew Loader Menu"
	DefaultFrameMs    = 16
	DefaultDataBuffer = 512 * 1024
	DefaultPanel      = "tui"
	DefaultPNGPath    = "frame.png"
	DefaultBlinkMs    = 500
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "text"
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	// ------------------------------------------------------------
	// LOADER
	// ------------------------------------------------------------

	l := &cfg.Loader
	setString(&l.Transport, DefaultTransport)
	setString(&l.Sim.Root, DefaultSimRoot)
	if l.Sim.Latency == nil {
		latency := DefaultSimLatency
		l.Sim.Latency = &latency
	}
	if l.UnitID == 0 {
		l.UnitID = DefaultUnitID
	}
	setInt(&l.BaudRate, DefaultBaudRate)
	setInt(&l.TimeoutMs, DefaultTimeoutMs)

	// ------------------------------------------------------------
	// FLASH
	// ------------------------------------------------------------

	if cfg.Flash.Internal.Base == 0 {
		cfg.Flash.Internal.Base = intflash.Base
	}
	setInt(&cfg.Flash.Internal.Sectors, DefaultSectors)

	ex := &cfg.Flash.External
	setString(&ex.Bus, DefaultExtBus)
	setString(&ex.Vendor, DefaultExtVendor)
	setInt(&ex.Size, DefaultExtSize)
	if ex.SpeedHz == 0 {
		ex.SpeedHz = DefaultSpeedHz
	}

	// ------------------------------------------------------------
	// MENU / DISPLAY / LOG
	// ------------------------------------------------------------

	setString(&cfg.Menu.Title, DefaultTitle)
	setInt(&cfg.Menu.FrameMs, DefaultFrameMs)
	setInt(&cfg.Menu.DataBuffer, DefaultDataBuffer)

	setString(&cfg.Display.Panel, DefaultPanel)
	setString(&cfg.Display.PNGPath, DefaultPNGPath)
	setInt(&cfg.Display.BlinkMs, DefaultBlinkMs)

	setString(&cfg.Log.Level, DefaultLogLevel)
	setString(&cfg.Log.Format, DefaultLogFormat)
}

func setString(v *string, def string) {
	if *v == "" {
		*v = def
	}
}

func setInt(v *int, def int) {
	if *v == 0 {
		*v = def
	}
}
