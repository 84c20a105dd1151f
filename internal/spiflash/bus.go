// internal/spiflash/bus.go
package spiflash

// Command is one regular command phase sent to the controller.
// A command with data is followed by exactly one Transmit or Receive.
type Command struct {
	Instruction byte
	Lines       Lines
	Address     uint32 // 24-bit, valid when Lines.Address != LinesNone
	DummyCycles int
	NbData      int
}

// HasAddress reports whether the command carries an address phase.
func (c Command) HasAddress() bool { return c.Lines.Address != LinesNone }

// Bus is the serial memory controller the driver talks to.
// The driver depends on command framing only.
type Bus interface {
	Command(cmd Command) error
	Transmit(data []byte) error
	Receive(data []byte) error
}
