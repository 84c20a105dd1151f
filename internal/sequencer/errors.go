// internal/sequencer/errors.go
package sequencer

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrImageMissing is returned when the entry has no MAIN.BIN.
// No flash was touched.
var ErrImageMissing = errors.New("sequencer: MAIN.BIN is missing")

// HardwareError is a failed flash operation. It is fatal: the device
// cannot boot a half-written image and must not return to the menu.
type HardwareError struct {
	Stage string
	Addr  uint32
	Err   error
}

func (e *HardwareError) Error() string {
	return fmt.Sprintf("sequencer: %s at 0x%08X: %v", e.Stage, e.Addr, e.Err)
}

func (e *HardwareError) Unwrap() error { return e.Err }

// Cause supports github.com/pkg/errors.Cause.
func (e *HardwareError) Cause() error { return e.Err }

// IsHardware reports whether err carries a *HardwareError.
func IsHardware(err error) bool {
	var he *HardwareError
	return errors.As(err, &he)
}
