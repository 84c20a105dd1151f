// internal/loader/buffer.go
package loader

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Buffer is the 16-byte command buffer shared with the controller.
// Multi-byte views are little-endian.
type Buffer [BufferSize]byte

// Status returns byte 0 interpreted as a status.
func (b Buffer) Status() Status { return Status(b[0]) }

func (b Buffer) Byte(i int) byte { return b[i] }

func (b Buffer) HalfWord(i int) uint16 {
	return binary.LittleEndian.Uint16(b[i*2:])
}

func (b Buffer) Word(i int) uint32 {
	return binary.LittleEndian.Uint32(b[i*4:])
}

func (b *Buffer) SetWord(i int, v uint32) {
	binary.LittleEndian.PutUint32(b[i*4:], v)
}

// SetStatus writes byte 0 and leaves the rest of word 0 untouched.
func (b *Buffer) SetStatus(s Status) { b[0] = byte(s) }

// ------------------------------------------------------------
// DIAGNOSTIC DUMP
// ------------------------------------------------------------

// Dump is the buffer rendered for the diagnostic screen.
// Layout is fixed: 4 rows of bytes, 2 rows of half-words, 2 rows of words,
// each in hex and decimal.
type Dump struct {
	ByteHex  [4][4]string
	ByteDec  [4][4]string
	ByteChar [4][4]byte
	HalfHex  [2][4]string
	HalfDec  [2][4]string
	WordHex  [2][2]string
	WordDec  [2][2]string
}

// Dump formats every view of the buffer.
func (b Buffer) Dump() Dump {
	var d Dump
	for j := 0; j < 4; j++ {
		for i := 0; i < 4; i++ {
			v := b[i+j*4]
			d.ByteHex[j][i] = fmt.Sprintf("0x%02X", v)
			d.ByteDec[j][i] = fmt.Sprintf("%d", v)
			d.ByteChar[j][i] = v
		}
	}
	for j := 0; j < 2; j++ {
		for i := 0; i < 4; i++ {
			v := b.HalfWord(i + j*4)
			d.HalfHex[j][i] = fmt.Sprintf("0x%04X", v)
			d.HalfDec[j][i] = fmt.Sprintf("%d", v)
		}
		for i := 0; i < 2; i++ {
			v := b.Word(i + j*2)
			d.WordHex[j][i] = fmt.Sprintf("0x%04X", v)
			d.WordDec[j][i] = fmt.Sprintf("%d", v)
		}
	}
	return d
}

// String renders the buffer as one hex line, for logs.
func (b Buffer) String() string {
	var sb strings.Builder
	for i, v := range b {
		if i > 0 && i%4 == 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02x", v)
	}
	return sb.String()
}
