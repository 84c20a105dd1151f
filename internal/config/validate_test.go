// internal/config/validate_test.go
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// helper to build a valid config quickly
func valid() *Config {
	return &Config{
		Loader: LoaderConfig{
			Transport: "sim",
			Sim:       SimConfig{Root: "./card", Latency: intPtr(1)},
		},
		Flash: FlashConfig{
			Internal: InternalFlashConfig{Base: 0x08000000, Sectors: 16},
			External: ExternalFlashConfig{Bus: "sim", Vendor: "mx", Size: 1 << 20},
		},
	}
}

func intPtr(v int) *int { return &v }

// ---- tests ----

func TestValidate_ZeroConfigIsValid(t *testing.T) {
	if err := Validate(&Config{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Valid(t *testing.T) {
	if err := Validate(valid()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"unknown transport", func(c *Config) { c.Loader.Transport = "usb" }, "unknown transport"},
		{"modbus without endpoint", func(c *Config) { c.Loader.Transport = "modbus-tcp" }, "requires an endpoint"},
		{"uart without endpoint", func(c *Config) { c.Loader.Transport = "uart" }, "requires an endpoint"},
		{"negative latency", func(c *Config) { c.Loader.Sim.Latency = intPtr(-1) }, "latency"},
		{"unaligned base", func(c *Config) { c.Flash.Internal.Base = 0x08000100 }, "not sector aligned"},
		{"too many sectors", func(c *Config) { c.Flash.Internal.Sectors = 17 }, "sectors"},
		{"unknown bus", func(c *Config) { c.Flash.External.Bus = "i2c" }, "unknown bus"},
		{"unknown vendor", func(c *Config) { c.Flash.External.Vendor = "winbond" }, "unknown vendor"},
		{"quad on spidev", func(c *Config) {
			c.Flash.External.Bus = "spidev"
			c.Flash.External.Quad = true
		}, "quad"},
		{"odd external size", func(c *Config) { c.Flash.External.Size = 1000 }, "multiple"},
		{"small data buffer", func(c *Config) { c.Menu.DataBuffer = 4096 }, "data_buffer"},
		{"non-ascii title", func(c *Config) { c.Menu.Title = "Menü" }, "title"},
		{"unknown panel", func(c *Config) { c.Display.Panel = "hdmi" }, "unknown panel"},
		{"unknown log format", func(c *Config) { c.Log.Format = "xml" }, "unknown format"},
		{"unknown log level", func(c *Config) { c.Log.Level = "loud" }, "unknown level"},
	}
	for _, tc := range cases {
		cfg := valid()
		tc.mutate(cfg)
		err := Validate(cfg)
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: got %v, want error containing %q", tc.name, err, tc.want)
		}
	}
}

func TestValidate_DoesNotMutate(t *testing.T) {
	cfg := &Config{}
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Loader.Transport != "" || cfg.Menu.FrameMs != 0 {
		t.Fatalf("Validate mutated config: %+v", cfg)
	}
}

func TestNormalize_Defaults(t *testing.T) {
	cfg := &Config{}
	Normalize(cfg)

	if cfg.Loader.Transport != "sim" || cfg.Loader.Sim.Root != DefaultSimRoot || *cfg.Loader.Sim.Latency != 2 {
		t.Fatalf("loader defaults %+v", cfg.Loader)
	}
	if cfg.Flash.Internal.Base != 0x08000000 || cfg.Flash.Internal.Sectors != 16 {
		t.Fatalf("internal defaults %+v", cfg.Flash.Internal)
	}
	if cfg.Flash.External.Size != 1<<20 || cfg.Flash.External.Vendor != "mx" {
		t.Fatalf("external defaults %+v", cfg.Flash.External)
	}
	if cfg.Menu.FrameMs != 16 || cfg.Menu.DataBuffer != 512*1024 || cfg.Menu.Title == "" {
		t.Fatalf("menu defaults %+v", cfg.Menu)
	}
	if cfg.Display.Panel != "tui" || cfg.Display.BlinkMs != 500 || cfg.Log.Level != "info" {
		t.Fatalf("display/log defaults %+v %+v", cfg.Display, cfg.Log)
	}

	// explicit values survive
	cfg = valid()
	cfg.Menu.FrameMs = 33
	Normalize(cfg)
	if cfg.Menu.FrameMs != 33 || *cfg.Loader.Sim.Latency != 1 || cfg.Loader.Sim.Root != "./card" {
		t.Fatalf("explicit values overwritten: %+v", cfg)
	}
}

func TestNormalize_ExplicitZeroLatency(t *testing.T) {
	cfg, err := Parse([]byte("loader:\n  sim:\n    latency: 0\n"))
	if err != nil {
		t.Fatalf("Parse err=%v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate err=%v", err)
	}
	Normalize(cfg)
	if cfg.Loader.Sim.Latency == nil || *cfg.Loader.Sim.Latency != 0 {
		t.Fatalf("explicit zero latency replaced: %v", cfg.Loader.Sim.Latency)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hbloader.yaml")
	doc := `
loader:
  transport: modbus-tcp
  endpoint: 127.0.0.1:502
  unit_id: 3
flash:
  internal:
    base: 0x08000000
  external:
    bus: spidev
    vendor: issi
menu:
  frame_ms: 20
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load err=%v", err)
	}
	if cfg.Loader.Endpoint != "127.0.0.1:502" || cfg.Loader.UnitID != 3 || cfg.Flash.Internal.Base != 0x08000000 {
		t.Fatalf("decoded %+v", cfg)
	}
	if cfg.Flash.External.Vendor != "issi" || cfg.Menu.FrameMs != 20 {
		t.Fatalf("decoded %+v", cfg)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate err=%v", err)
	}

	if _, err := Parse([]byte("loader:\n  transprt: sim\n")); err == nil {
		t.Fatalf("unknown key accepted")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("missing file accepted")
	}
}
