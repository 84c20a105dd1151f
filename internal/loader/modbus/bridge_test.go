// internal/loader/modbus/bridge_test.go
package modbus

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/tamzrod/gw-hbloader/internal/loader"
	"github.com/tamzrod/gw-hbloader/internal/loader/sim"
)

// ---- fake bench controller: register map in front of the simulator ----

type fakeDevice struct {
	ctl  *sim.Controller
	name [nameRegs * 2]byte
	page uint16
	data []byte

	writes int
	fail   bool
}

func (d *fakeDevice) ReadHoldingRegisters(address, quantity uint16) ([]byte, error) {
	if d.fail {
		return nil, errors.New("timeout")
	}
	switch {
	case address == RegBuffer && quantity == bufferRegs:
		b, err := d.ctl.Peek()
		if err != nil {
			return nil, err
		}
		return packBuffer(b), nil
	case address >= RegData:
		off := int(d.page)*PageSize + int(address-RegData)*2
		out := make([]byte, int(quantity)*2)
		if off < len(d.data) {
			copy(out, d.data[off:])
		}
		return out, nil
	}
	return nil, errors.New("illegal address")
}

func (d *fakeDevice) WriteMultipleRegisters(address, quantity uint16, value []byte) ([]byte, error) {
	d.writes++
	switch {
	case address == RegName:
		copy(d.name[:], value)
	case address == RegBuffer && quantity == bufferRegs:
		buf := unpackBuffer(value)
		size := int(buf.Word(loader.WordLength))
		if n := int(buf.Word(loader.WordArg)); n > size {
			size = n
		}
		if loader.Opcode(buf[0]) != loader.OpWrite {
			d.data = make([]byte, size)
		}
		name := string(bytes.TrimRight(d.name[:], "\x00"))
		d.name = [nameRegs * 2]byte{}
		return nil, d.ctl.Post(buf, loader.Arg{Name: name, Data: d.data})
	case address >= RegData:
		off := int(d.page)*PageSize + int(address-RegData)*2
		if need := off + len(value); need > len(d.data) {
			d.data = append(d.data, make([]byte, need-len(d.data))...)
		}
		copy(d.data[off:], value)
	default:
		return nil, errors.New("illegal address")
	}
	return nil, nil
}

func (d *fakeDevice) WriteSingleRegister(address, value uint16) ([]byte, error) {
	if address != RegPageSelect {
		return nil, errors.New("illegal address")
	}
	d.page = value
	return nil, nil
}

func newDevice(t *testing.T, files map[string][]byte) *fakeDevice {
	t.Helper()
	root := t.TempDir()
	for name, data := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, data, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	ctl, err := sim.New(root, sim.WithLatency(1))
	if err != nil {
		t.Fatalf("sim.New err=%v", err)
	}
	return &fakeDevice{ctl: ctl}
}

// ---- tests ----

func TestBridge_PackBufferRegisterOrder(t *testing.T) {
	var b loader.Buffer
	b.SetStatus(loader.Status(loader.OpRead))
	b.SetWord(loader.WordLength, 0x2000)

	raw := packBuffer(b)
	if binary.BigEndian.Uint16(raw[0:2]) != 0x0004 {
		t.Fatalf("register 0=0x%04X", binary.BigEndian.Uint16(raw[0:2]))
	}
	if binary.BigEndian.Uint16(raw[8:10]) != 0x2000 {
		t.Fatalf("register 4=0x%04X", binary.BigEndian.Uint16(raw[8:10]))
	}
	if unpackBuffer(raw) != b {
		t.Fatalf("unpack(pack(b)) != b")
	}
}

func TestBridge_ReadAcrossPages(t *testing.T) {
	image := make([]byte, 20000)
	for i := range image {
		image[i] = byte(i * 7)
	}
	dev := newDevice(t, map[string][]byte{"App/MAIN.BIN": image})
	ch := loader.New(NewBridge(dev))
	ctx := context.Background()

	if err := ch.Call(ctx, loader.OpChdir, loader.Request{Name: "App"}); err != nil {
		t.Fatalf("chdir err=%v", err)
	}
	if err := ch.Call(ctx, loader.OpOpenRead, loader.Request{Name: "MAIN.BIN"}); err != nil {
		t.Fatalf("open err=%v", err)
	}
	if ch.Result() != uint32(len(image)) {
		t.Fatalf("size=%d", ch.Result())
	}

	got := make([]byte, 32768)
	if err := ch.Call(ctx, loader.OpRead, loader.Request{Length: uint32(len(got)), Data: got}); err != nil {
		t.Fatalf("read err=%v", err)
	}
	if ch.Result() != uint32(len(image)) {
		t.Fatalf("read n=%d", ch.Result())
	}
	if !bytes.Equal(got[:len(image)], image) {
		t.Fatalf("data mismatch")
	}
}

func TestBridge_ReadDir(t *testing.T) {
	dev := newDevice(t, map[string][]byte{"A/x": {1}, "B/y": {2}})
	ch := loader.New(NewBridge(dev))

	listing := make([]byte, 16384)
	if err := ch.Call(context.Background(), loader.OpReadDir, loader.Request{Data: listing}); err != nil {
		t.Fatalf("read-dir err=%v", err)
	}
	if !bytes.Equal(listing[:5], []byte("\x02A\x02B\x00")) {
		t.Fatalf("listing=%q", listing[:5])
	}
}

func TestBridge_MissingFileStatus(t *testing.T) {
	dev := newDevice(t, map[string][]byte{"A/x": {1}})
	ch := loader.New(NewBridge(dev))

	st, err := ch.CallCatchError(context.Background(), loader.OpOpenRead, loader.Request{Name: "NOPE"})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if st != loader.ErrFileNotFound {
		t.Fatalf("st=%s", st)
	}
}

func TestBridge_TransportFailure(t *testing.T) {
	dev := newDevice(t, nil)
	dev.fail = true
	ch := loader.New(NewBridge(dev))

	err := ch.Call(context.Background(), loader.OpDetect, loader.Request{})
	if err == nil || loader.IsFatal(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
}
