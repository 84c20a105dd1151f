// internal/config/validate.go
package config

import (
	"fmt"

	"github.com/tamzrod/gw-hbloader/internal/intflash"
	"github.com/tamzrod/gw-hbloader/internal/spiflash"
)

// Limits.
const (
	minDataBuffer = 64 * 1024 // one external flash block
	maxSectors    = 16        // internal bank 1
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
// Zero values mean "use the default" and are accepted.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	// ------------------------------------------------------------
	// LOADER TRANSPORT
	// ------------------------------------------------------------

	l := cfg.Loader
	switch l.Transport {
	case "", "sim":
		// root defaults to ./sdcard
	case "modbus-tcp", "modbus-rtu", "uart":
		if l.Endpoint == "" {
			return fmt.Errorf("loader: transport %q requires an endpoint", l.Transport)
		}
	default:
		return fmt.Errorf("loader: unknown transport %q", l.Transport)
	}

	if l.TimeoutMs < 0 || l.PollIntervalUs < 0 || l.BaudRate < 0 {
		return fmt.Errorf("loader: timeout_ms, poll_interval_us and baud_rate must not be negative")
	}
	if l.Sim.Latency != nil && *l.Sim.Latency < 0 {
		return fmt.Errorf("loader.sim: latency must not be negative")
	}

	// ------------------------------------------------------------
	// FLASH GEOMETRY
	// ------------------------------------------------------------

	in := cfg.Flash.Internal
	if in.Base%intflash.SectorSize != 0 {
		return fmt.Errorf("flash.internal: base 0x%08X is not sector aligned", in.Base)
	}
	if in.Sectors < 0 || in.Sectors > maxSectors {
		return fmt.Errorf("flash.internal: sectors must be within 1..%d, got %d", maxSectors, in.Sectors)
	}

	ex := cfg.Flash.External
	switch ex.Bus {
	case "", "sim", "spidev":
	default:
		return fmt.Errorf("flash.external: unknown bus %q", ex.Bus)
	}
	if _, err := spiflash.ParseVendor(ex.Vendor); err != nil {
		return fmt.Errorf("flash.external: %v", err)
	}
	if ex.Quad && ex.Bus == "spidev" {
		return fmt.Errorf("flash.external: quad mode is not available on spidev")
	}
	if ex.Size < 0 || ex.Size%spiflash.BlockSize != 0 {
		return fmt.Errorf("flash.external: size %d is not a multiple of %d", ex.Size, spiflash.BlockSize)
	}
	if ex.SpeedHz < 0 {
		return fmt.Errorf("flash.external: speed_hz must not be negative")
	}

	// ------------------------------------------------------------
	// MENU / DISPLAY / LOG
	// ------------------------------------------------------------

	if cfg.Menu.FrameMs < 0 {
		return fmt.Errorf("menu: frame_ms must not be negative")
	}
	if cfg.Menu.DataBuffer != 0 && cfg.Menu.DataBuffer < minDataBuffer {
		return fmt.Errorf("menu: data_buffer must be at least %d bytes, got %d", minDataBuffer, cfg.Menu.DataBuffer)
	}
	for i := 0; i < len(cfg.Menu.Title); i++ {
		if cfg.Menu.Title[i] < 0x20 || cfg.Menu.Title[i] > 0x7E {
			return fmt.Errorf("menu: title must contain printable ASCII characters only")
		}
	}

	switch cfg.Display.Panel {
	case "", "tui", "png", "none":
	default:
		return fmt.Errorf("display: unknown panel %q", cfg.Display.Panel)
	}
	if cfg.Display.BlinkMs < 0 {
		return fmt.Errorf("display: blink_ms must not be negative")
	}

	switch cfg.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log: unknown format %q", cfg.Log.Format)
	}
	switch cfg.Log.Level {
	case "", "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic":
	default:
		return fmt.Errorf("log: unknown level %q", cfg.Log.Level)
	}

	return nil
}
