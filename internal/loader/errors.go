// internal/loader/errors.go
package loader

import (
	"fmt"

	"github.com/pkg/errors"
)

// FatalError is an unrecoverable controller error.
// The caller must stop and show the diagnostic screen; it never returns to the menu.
type FatalError struct {
	Op     Opcode
	Status Status
	Buffer Buffer
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("Yikes! Function 0x%02X, error 0x%02X!", byte(e.Op), byte(e.Status))
}

// IsFatal reports whether err carries a *FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// AsFatal extracts the *FatalError from err, if any.
func AsFatal(err error) (*FatalError, bool) {
	var fe *FatalError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
