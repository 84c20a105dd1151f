// internal/loader/uart/bridge.go
package uart

import (
	"encoding/binary"
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/tamzrod/gw-hbloader/internal/loader"
)

const (
	magicHi byte = 0x48 // 'H'
	magicLo byte = 0x42 // 'B'

	versionV1 byte = 0x01

	KindPost  byte = 'P'
	KindPeek  byte = 'K'
	KindFetch byte = 'D'

	respOK       byte = 0x00
	respRejected byte = 0x01

	headerLen = 6
	MaxFetch  = 4096
)

// Bridge implements loader.Transport over a raw serial link.
// One frame per request, one status byte (plus payload) per reply.
type Bridge struct {
	mu   sync.Mutex
	conn io.ReadWriter

	op      loader.Opcode
	arg     loader.Arg
	fetched bool
}

func NewBridge(conn io.ReadWriter) *Bridge {
	return &Bridge{conn: conn, fetched: true}
}

// ---- loader.Transport ----

func (b *Bridge) Post(buf loader.Buffer, arg loader.Arg) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(arg.Name) > 255 {
		return errors.Errorf("uart bridge: name %q too long", arg.Name)
	}

	op := loader.Opcode(buf[0])

	payload := make([]byte, 0, loader.BufferSize+1+len(arg.Name))
	payload = append(payload, buf[:]...)
	payload = append(payload, byte(len(arg.Name)))
	payload = append(payload, arg.Name...)
	if op == loader.OpWrite {
		n := int(buf.Word(loader.WordLength))
		if n > len(arg.Data) {
			n = len(arg.Data)
		}
		payload = append(payload, arg.Data[:n]...)
	}

	if _, err := b.roundTrip(KindPost, payload, 0); err != nil {
		return err
	}

	b.op = op
	b.arg = arg
	b.fetched = !(op == loader.OpRead || op == loader.OpReadDir)
	return nil
}

func (b *Bridge) Peek() (loader.Buffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var buf loader.Buffer
	raw, err := b.roundTrip(KindPeek, nil, loader.BufferSize)
	if err != nil {
		return buf, err
	}
	copy(buf[:], raw)

	if !b.fetched && buf.Status() == loader.StatusOK {
		n := int(buf.Word(loader.WordResult))
		if b.op == loader.OpReadDir {
			n++
		}
		if n > len(b.arg.Data) {
			n = len(b.arg.Data)
		}
		if err := b.fetch(b.arg.Data[:n]); err != nil {
			return buf, err
		}
		b.fetched = true
	}
	return buf, nil
}

func (b *Bridge) fetch(dst []byte) error {
	for off := 0; off < len(dst); off += MaxFetch {
		n := len(dst) - off
		if n > MaxFetch {
			n = MaxFetch
		}
		req := make([]byte, 6)
		binary.BigEndian.PutUint32(req[0:4], uint32(off))
		binary.BigEndian.PutUint16(req[4:6], uint16(n))

		raw, err := b.roundTrip(KindFetch, req, n)
		if err != nil {
			return errors.Wrapf(err, "uart bridge: fetch off=%d", off)
		}
		copy(dst[off:], raw)
	}
	return nil
}

// ------------------------------------------------------------
// FRAMING (LOCKED)
// ------------------------------------------------------------
//
// Request:
// 0–1  Magic "HB"
// 2    Version (0x01)
// 3    Kind
// 4–5  Payload length (big-endian)
// 6+   Payload
//
// Reply:
// 0    Status (0x00 ok, 0x01 rejected)
// 1+   Fixed-size payload known to the requester
//

func (b *Bridge) roundTrip(kind byte, payload []byte, replyLen int) ([]byte, error) {
	if len(payload) > 0xFFFF {
		return nil, errors.Errorf("uart bridge: payload too large (%d bytes)", len(payload))
	}
	if err := writeAll(b.conn, BuildFrame(kind, payload)); err != nil {
		return nil, errors.Wrap(err, "uart bridge: write")
	}

	var st [1]byte
	if _, err := io.ReadFull(b.conn, st[:]); err != nil {
		return nil, errors.Wrap(err, "uart bridge: read status")
	}
	switch st[0] {
	case respOK:
	case respRejected:
		return nil, errors.Errorf("uart bridge: frame %q rejected", kind)
	default:
		return nil, errors.Errorf("uart bridge: unknown status 0x%02x", st[0])
	}

	if replyLen == 0 {
		return nil, nil
	}
	reply := make([]byte, replyLen)
	if _, err := io.ReadFull(b.conn, reply); err != nil {
		return nil, errors.Wrap(err, "uart bridge: read payload")
	}
	return reply, nil
}

// BuildFrame encodes one request frame.
func BuildFrame(kind byte, payload []byte) []byte {
	header := make([]byte, headerLen, headerLen+len(payload))
	header[0] = magicHi
	header[1] = magicLo
	header[2] = versionV1
	header[3] = kind
	binary.BigEndian.PutUint16(header[4:6], uint16(len(payload)))
	return append(header, payload...)
}

// ParseFrame decodes one request frame from r.
func ParseFrame(r io.Reader) (kind byte, payload []byte, err error) {
	header := make([]byte, headerLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, err
	}
	if header[0] != magicHi || header[1] != magicLo {
		return 0, nil, errors.Errorf("uart bridge: bad magic % x", header[:2])
	}
	if header[2] != versionV1 {
		return 0, nil, errors.Errorf("uart bridge: unsupported version %d", header[2])
	}
	payload = make([]byte, binary.BigEndian.Uint16(header[4:6]))
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, err
	}
	return header[3], payload, nil
}

// ---- helpers ----

func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}
