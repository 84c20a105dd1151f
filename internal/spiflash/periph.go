// internal/spiflash/periph.go
package spiflash

import (
	"github.com/pkg/errors"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// ErrQuadUnsupported is returned when a command needs four lines on a
// plain SPI port.
var ErrQuadUnsupported = errors.New("spiflash: quad lines not supported on this bus")

// PeriphBus drives a chip on a host SPI port, single line only.
// Command bytes are held until the data phase so the whole command runs
// in one chip-select cycle.
type PeriphBus struct {
	conn spi.Conn
	head []byte // instruction, address and dummy bytes of the pending command
	want int
}

// OpenPeriph opens an SPI port by name ("" for the first one) in mode 0.
// The returned closer releases the port.
func OpenPeriph(name string, speedHz int64) (*PeriphBus, func() error, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, errors.Wrap(err, "spiflash: host init")
	}
	port, err := spireg.Open(name)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "spiflash: open spi port %q", name)
	}
	if speedHz <= 0 {
		speedHz = 30_000_000
	}
	conn, err := port.Connect(physic.Frequency(speedHz)*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		_ = port.Close()
		return nil, nil, errors.Wrap(err, "spiflash: connect")
	}
	return NewPeriphBus(conn), port.Close, nil
}

// NewPeriphBus wraps an already connected SPI conn.
func NewPeriphBus(conn spi.Conn) *PeriphBus {
	return &PeriphBus{conn: conn}
}

// ---- Bus ----

func (p *PeriphBus) Command(cmd Command) error {
	if cmd.Lines.Instruction == Lines4 || cmd.Lines.Address == Lines4 || cmd.Lines.Data == Lines4 {
		return ErrQuadUnsupported
	}

	head := []byte{cmd.Instruction}
	if cmd.HasAddress() {
		head = append(head, byte(cmd.Address>>16), byte(cmd.Address>>8), byte(cmd.Address))
	}
	// one dummy byte per 8 cycles on a single line
	for i := 0; i < cmd.DummyCycles/8; i++ {
		head = append(head, 0)
	}

	if cmd.NbData == 0 {
		return p.conn.Tx(head, nil)
	}
	p.head = head
	p.want = cmd.NbData
	return nil
}

func (p *PeriphBus) Transmit(data []byte) error {
	head, err := p.take(len(data))
	if err != nil {
		return err
	}
	return p.conn.Tx(append(head, data...), nil)
}

func (p *PeriphBus) Receive(data []byte) error {
	head, err := p.take(len(data))
	if err != nil {
		return err
	}
	w := make([]byte, len(head)+len(data))
	copy(w, head)
	r := make([]byte, len(w))
	if err := p.conn.Tx(w, r); err != nil {
		return err
	}
	copy(data, r[len(head):])
	return nil
}

func (p *PeriphBus) take(n int) ([]byte, error) {
	if p.head == nil {
		return nil, errors.New("spiflash: data phase without command")
	}
	if n != p.want {
		return nil, errors.Errorf("spiflash: command announced %d bytes, got %d", p.want, n)
	}
	head := p.head
	p.head, p.want = nil, 0
	return head, nil
}
