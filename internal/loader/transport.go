// internal/loader/transport.go
package loader

// Arg carries what word 3 points at on the device.
// Name is used by open and chdir, Data receives read and read-dir output.
type Arg struct {
	Name string
	Data []byte
}

// Transport moves the command buffer between this side and the controller.
// Implementations only shuttle bytes: protocol rules live in Channel.
type Transport interface {
	// Post hands a buffer with an opcode in byte 0 to the controller.
	Post(buf Buffer, arg Arg) error

	// Peek returns the controller's current view of the buffer.
	// When a read completes, the bytes must already be in the posted Arg.Data.
	Peek() (Buffer, error)
}
