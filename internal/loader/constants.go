// internal/loader/constants.go
package loader

import "fmt"

// Command buffer protocol constants.
// These values are shared with the loader controller firmware and MUST NOT be configurable.

// Opcode identifies a loader function. It is written to byte 0 of the buffer.
type Opcode byte

// ---- OPCODES ----

const (
	OpDetect       Opcode = 0x01 // word 2 = capacity sectors, word 3 = free sectors
	OpOpenRead     Opcode = 0x02 // word 3 = name; word 1 = file size on success
	OpOpenWrite    Opcode = 0x03
	OpRead         Opcode = 0x04 // word 2 = length, word 3 = destination; word 1 = bytes read
	OpWrite        Opcode = 0x05
	OpClose        Opcode = 0x06
	OpTell         Opcode = 0x07
	OpSeekStart    Opcode = 0x08
	OpSeekEnd      Opcode = 0x09
	OpSeekOffset   Opcode = 0x0A
	OpSeekPosition Opcode = 0x0B
	OpChdir        Opcode = 0x0C // word 3 = name
	OpReadDir      Opcode = 0x0D // word 3 = destination
	OpHalt         Opcode = 0x7D
	OpReset        Opcode = 0x7E
	OpResetHalt    Opcode = 0x7F
)

// Status is the value the controller leaves in byte 0.
type Status byte

// ---- STATUS CODES ----

const (
	StatusOK            Status = 0x00
	StatusProcessing    Status = 0xFF
	ErrNoStorage        Status = 0x80
	ErrFileNotFound     Status = 0x81
	ErrNotEnoughSpace   Status = 0x82
	ErrIO               Status = 0x83
	ErrFileAlreadyOpen  Status = 0x84
	ErrUnknownWriteMode Status = 0x85
)

// ---- BUFFER GEOMETRY ----

// BufferSize is the size of the command buffer in bytes.
const BufferSize = 16

// Word indices inside the buffer.
const (
	WordStatus = 0 // low byte is the opcode or status
	WordResult = 1
	WordLength = 2
	WordArg    = 3
)

// Well-known names.
const (
	UpDir = ".."
)

// Record types of a read-dir listing.
const (
	EntryFile byte = 1
	EntryDir  byte = 2
)

// Write modes for open-write, passed in word 2.
const (
	WriteTruncate uint32 = 0
	WriteAppend   uint32 = 1
)

// IsError reports whether s is one of the controller error codes (0x80..0xFE).
func (s Status) IsError() bool {
	return s >= 0x80 && s < StatusProcessing
}

var opNames = map[Opcode]string{
	OpDetect:       "detect",
	OpOpenRead:     "open-read",
	OpOpenWrite:    "open-write",
	OpRead:         "read",
	OpWrite:        "write",
	OpClose:        "close",
	OpTell:         "tell",
	OpSeekStart:    "seek-start",
	OpSeekEnd:      "seek-end",
	OpSeekOffset:   "seek-offset",
	OpSeekPosition: "seek-position",
	OpChdir:        "chdir",
	OpReadDir:      "read-dir",
	OpHalt:         "halt",
	OpReset:        "reset",
	OpResetHalt:    "reset-halt",
}

func (o Opcode) String() string {
	if n, ok := opNames[o]; ok {
		return n
	}
	return fmt.Sprintf("op(0x%02X)", byte(o))
}

var statusNames = map[Status]string{
	StatusOK:            "ok",
	StatusProcessing:    "processing",
	ErrNoStorage:        "no storage",
	ErrFileNotFound:     "file not found",
	ErrNotEnoughSpace:   "not enough space",
	ErrIO:               "i/o error",
	ErrFileAlreadyOpen:  "file already open",
	ErrUnknownWriteMode: "unknown write mode",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("status(0x%02X)", byte(s))
}
