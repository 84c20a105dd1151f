// internal/buttons/terminal.go
package buttons

import (
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/term"
)

// Terminal maps keys typed on a raw terminal to buttons. A key counts as
// held for exactly one sample.
//
//	arrows       d-pad
//	a, enter     A
//	b, backspace B
//	g            game
//	t            time
//	p, space     pause
//	q, ctrl-c    power
type Terminal struct {
	in  io.Reader
	fd  int
	old *term.State

	mu      sync.Mutex
	pending State
	err     error
}

// OpenTerminal puts f into raw mode and starts reading it.
func OpenTerminal(f *os.File) (*Terminal, error) {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return nil, errors.Errorf("buttons: %s is not a terminal", f.Name())
	}
	old, err := term.MakeRaw(fd)
	if err != nil {
		return nil, errors.Wrap(err, "buttons: raw mode")
	}
	t := &Terminal{in: f, fd: fd, old: old}
	go t.loop()
	return t, nil
}

// NewKeyReader reads keys from any reader, for pipes and tests.
func NewKeyReader(in io.Reader) *Terminal {
	t := &Terminal{in: in, fd: -1}
	go t.loop()
	return t
}

// Close restores the terminal mode.
func (t *Terminal) Close() error {
	if t.old == nil {
		return nil
	}
	err := term.Restore(t.fd, t.old)
	t.old = nil
	return err
}

func (t *Terminal) Sample() (State, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.pending
	t.pending = State{}
	if st == (State{}) && t.err != nil {
		return st, t.err
	}
	return st, nil
}

func (t *Terminal) loop() {
	buf := make([]byte, 64)
	for {
		n, err := t.in.Read(buf)
		if n > 0 {
			st := ParseKeys(buf[:n])
			t.mu.Lock()
			t.pending.Held |= st.Held
			t.pending.Power = t.pending.Power || st.Power
			t.mu.Unlock()
		}
		if err != nil {
			t.mu.Lock()
			if err != io.EOF {
				t.err = errors.Wrap(err, "buttons: read keys")
			}
			t.mu.Unlock()
			return
		}
	}
}

// ParseKeys maps a chunk of terminal input to a sample.
func ParseKeys(b []byte) State {
	var st State
	for i := 0; i < len(b); i++ {
		c := b[i]
		if c == 0x1B && i+2 < len(b) && b[i+1] == '[' {
			switch b[i+2] {
			case 'A':
				st.Held |= Up
			case 'B':
				st.Held |= Down
			case 'C':
				st.Held |= Right
			case 'D':
				st.Held |= Left
			}
			i += 2
			continue
		}
		switch c {
		case 'a', 'A', '\r', '\n':
			st.Held |= A
		case 'b', 'B', 0x7F, 0x08:
			st.Held |= B
		case 'g', 'G':
			st.Held |= Game
		case 't', 'T':
			st.Held |= Time
		case 'p', 'P', ' ':
			st.Held |= Pause
		case 'q', 'Q', 0x03:
			st.Power = true
		}
	}
	return st
}
