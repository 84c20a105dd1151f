// internal/loader/channel_test.go
package loader

import (
	"context"
	"errors"
	"testing"
)

// ---- scripted transport ----

type scriptTransport struct {
	posts  []Buffer
	args   []Arg
	script []Status // byte 0 returned by successive peeks; the last one repeats
	peeks  int
	failOn string
}

func (s *scriptTransport) Post(buf Buffer, arg Arg) error {
	if s.failOn == "post" {
		return errors.New("link down")
	}
	s.posts = append(s.posts, buf)
	s.args = append(s.args, arg)
	s.peeks = 0
	return nil
}

func (s *scriptTransport) Peek() (Buffer, error) {
	if s.failOn == "peek" {
		return Buffer{}, errors.New("link down")
	}
	var b Buffer
	if len(s.script) == 0 {
		return b, nil
	}
	i := s.peeks
	if i >= len(s.script) {
		i = len(s.script) - 1
	}
	s.peeks++
	b.SetStatus(s.script[i])
	b.SetWord(WordResult, 1234)
	return b, nil
}

// ---- tests ----

func TestCall_ProcessingThenOK(t *testing.T) {
	tr := &scriptTransport{script: []Status{Status(OpRead), StatusProcessing, StatusProcessing, StatusOK}}
	c := New(tr)

	data := make([]byte, 32)
	if err := c.Call(context.Background(), OpRead, Request{Length: 32, Data: data}); err != nil {
		t.Fatalf("Call err=%v", err)
	}
	if len(tr.posts) != 1 {
		t.Fatalf("expected 1 post, got %d", len(tr.posts))
	}
	p := tr.posts[0]
	if p.Status() != Status(OpRead) || p.Word(WordLength) != 32 || p.Word(WordArg) != 32 {
		t.Fatalf("unexpected posted buffer %s", p)
	}
	if &tr.args[0].Data[0] != &data[0] {
		t.Fatalf("read destination not passed through")
	}
	if c.Result() != 1234 {
		t.Fatalf("Result=%d", c.Result())
	}
}

func TestCall_NeverReturnsNonOKAsSuccess(t *testing.T) {
	for s := 0; s < 0xFF; s++ {
		tr := &scriptTransport{script: []Status{StatusProcessing, Status(s)}}
		err := New(tr).Call(context.Background(), OpChdir, Request{Name: "X"})

		if s == 0 {
			if err != nil {
				t.Fatalf("status 0x00: unexpected err=%v", err)
			}
			continue
		}
		fe, ok := AsFatal(err)
		if !ok {
			t.Fatalf("status 0x%02X: expected *FatalError, got %v", s, err)
		}
		if fe.Op != OpChdir || fe.Status != Status(s) {
			t.Fatalf("status 0x%02X: got op=0x%02X status=0x%02X", s, byte(fe.Op), byte(fe.Status))
		}
	}
}

func TestCall_ErrorWithoutProcessingIsFatal(t *testing.T) {
	tr := &scriptTransport{script: []Status{ErrFileNotFound}}
	err := New(tr).Call(context.Background(), OpOpenRead, Request{Name: "MAIN.BIN"})
	if !IsFatal(err) {
		t.Fatalf("expected fatal, got %v", err)
	}
	if err.Error() != "Yikes! Function 0x02, error 0x81!" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestCallCatchError_ReturnsRawStatus(t *testing.T) {
	for s := 0; s < 0xFF; s++ {
		for _, script := range [][]Status{
			{StatusProcessing, Status(s)},
			{Status(s)},
		} {
			if script[0] == Status(OpOpenRead) {
				continue
			}
			tr := &scriptTransport{script: script}
			got, err := New(tr).CallCatchError(context.Background(), OpOpenRead, Request{Name: "ICON.BMP"})
			if err != nil {
				t.Fatalf("status 0x%02X: unexpected err=%v", s, err)
			}
			if got != Status(s) {
				t.Fatalf("status 0x%02X: got 0x%02X", s, byte(got))
			}
		}
	}
}

func TestCall_TransportErrorIsNotFatal(t *testing.T) {
	tr := &scriptTransport{failOn: "post"}
	err := New(tr).Call(context.Background(), OpDetect, Request{})
	if err == nil || IsFatal(err) {
		t.Fatalf("expected plain transport error, got %v", err)
	}
}

func TestCall_ContextCancelled(t *testing.T) {
	tr := &scriptTransport{script: []Status{StatusProcessing}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := New(tr).Call(ctx, OpRead, Request{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestIsDone(t *testing.T) {
	tr := &scriptTransport{script: []Status{Status(OpClose), StatusProcessing, StatusOK}}
	c := New(tr)
	if err := c.CallNonBlock(OpClose, Request{}); err != nil {
		t.Fatalf("CallNonBlock err=%v", err)
	}

	for i, want := range []bool{false, false, true, true} {
		done, err := c.IsDone()
		if err != nil {
			t.Fatalf("poll %d: err=%v", i, err)
		}
		if done != want {
			t.Fatalf("poll %d: done=%v want %v", i, done, want)
		}
	}
}

func TestIsDone_ErrorUsesNonBlockingOpcode(t *testing.T) {
	tr := &scriptTransport{script: []Status{ErrIO}}
	c := New(tr)
	_ = c.CallNonBlock(OpRead, Request{})

	_, err := c.IsDone()
	fe, ok := AsFatal(err)
	if !ok {
		t.Fatalf("expected fatal, got %v", err)
	}
	if fe.Op != OpRead || fe.Status != ErrIO {
		t.Fatalf("got op=%s status=%s", fe.Op, fe.Status)
	}
}

func TestIsDoneIgnoreMissing(t *testing.T) {
	tr := &scriptTransport{script: []Status{ErrFileNotFound}}
	c := New(tr)
	_ = c.CallNonBlock(OpOpenRead, Request{Name: "MANIFEST.TXT"})

	done, err := c.IsDoneIgnoreMissing()
	if err != nil || done {
		t.Fatalf("done=%v err=%v", done, err)
	}
	if c.LastStatus() != ErrFileNotFound {
		t.Fatalf("LastStatus=%s", c.LastStatus())
	}

	c.Acknowledge()
	if c.LastStatus() != StatusOK {
		t.Fatalf("Acknowledge did not clear status")
	}

	_, err = c.IsDone()
	if !IsFatal(err) {
		t.Fatalf("IsDone should treat 0x81 as fatal, got %v", err)
	}
}

func TestIsDoneIgnoreMissing_OtherErrorsFatal(t *testing.T) {
	tr := &scriptTransport{script: []Status{ErrNoStorage}}
	c := New(tr)
	_ = c.CallNonBlock(OpChdir, Request{Name: "GAME"})

	if _, err := c.IsDoneIgnoreMissing(); !IsFatal(err) {
		t.Fatalf("expected fatal, got %v", err)
	}
}
