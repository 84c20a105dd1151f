// internal/loader/uart/port.go
package uart

import (
	"time"

	"github.com/albenik/go-serial/v2"
	"github.com/pkg/errors"
)

type Config struct {
	Device   string
	BaudRate int
	Timeout  time.Duration
}

// Open opens the serial device 8N1 and wraps it in a Bridge.
// The returned closer releases the port.
func Open(cfg Config) (*Bridge, func() error, error) {
	if cfg.Device == "" {
		return nil, nil, errors.New("loader uart: device required")
	}
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = 115200
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Second
	}

	port, err := serial.Open(
		cfg.Device,
		serial.WithBaudrate(cfg.BaudRate),
		serial.WithDataBits(8),
		serial.WithParity(serial.NoParity),
		serial.WithStopBits(serial.OneStopBit),
		serial.WithReadTimeout(int(cfg.Timeout/time.Millisecond)),
	)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "loader uart: open %s", cfg.Device)
	}

	return NewBridge(port), port.Close, nil
}
