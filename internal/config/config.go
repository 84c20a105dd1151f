// internal/config/config.go
package config

type Config struct {
	Loader  LoaderConfig  `yaml:"loader"`
	Flash   FlashConfig   `yaml:"flash"`
	Menu    MenuConfig    `yaml:"menu"`
	Display DisplayConfig `yaml:"display"`
	Log     LogConfig     `yaml:"log"`
}

// ---- LOADER ----

type LoaderConfig struct {
	Transport      string    `yaml:"transport"` // sim | modbus-tcp | modbus-rtu | uart
	Endpoint       string    `yaml:"endpoint"`  // host:port or serial device
	UnitID         uint8     `yaml:"unit_id"`
	BaudRate       int       `yaml:"baud_rate"`
	TimeoutMs      int       `yaml:"timeout_ms"`
	PollIntervalUs int       `yaml:"poll_interval_us"`
	Sim            SimConfig `yaml:"sim"`
}

type SimConfig struct {
	Root            string `yaml:"root"`
	Latency         *int   `yaml:"latency"` // peeks before a posted call completes; unset means 2
	CapacitySectors uint32 `yaml:"capacity_sectors"`
}

// ---- FLASH ----

type FlashConfig struct {
	Internal InternalFlashConfig `yaml:"internal"`
	External ExternalFlashConfig `yaml:"external"`
}

type InternalFlashConfig struct {
	Base    uint32 `yaml:"base"`
	Sectors int    `yaml:"sectors"`
}

type ExternalFlashConfig struct {
	Bus     string `yaml:"bus"`    // sim | spidev
	Device  string `yaml:"device"` // spi port name, "" for the first
	SpeedHz int64  `yaml:"speed_hz"`
	Quad    bool   `yaml:"quad"`
	Vendor  string `yaml:"vendor"` // mx | issi
	Size    int    `yaml:"size"`
}

// ---- MENU ----

type MenuConfig struct {
	Title      string `yaml:"title"`
	FrameMs    int    `yaml:"frame_ms"`
	DataBuffer int    `yaml:"data_buffer"`
}

// ---- DISPLAY ----

type DisplayConfig struct {
	Panel   string `yaml:"panel"` // tui | png | none
	PNGPath string `yaml:"png_path"`
	BlinkMs int    `yaml:"blink_ms"`
}

// ---- LOG ----

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text | json
}
