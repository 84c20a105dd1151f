// internal/buttons/buttons.go
package buttons

import "strings"

// Mask is the button bitfield.
type Mask uint32

const (
	Left Mask = 1 << iota
	Up
	Right
	Down
	A
	B
	Time
	Game
	Pause
)

var names = []struct {
	m    Mask
	name string
}{
	{Left, "left"}, {Up, "up"}, {Right, "right"}, {Down, "down"},
	{A, "a"}, {B, "b"}, {Time, "time"}, {Game, "game"}, {Pause, "pause"},
}

func (m Mask) String() string {
	var parts []string
	for _, n := range names {
		if m&n.m != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}

// State is one sample of the buttons. Power is kept apart from the
// bitfield: it never reaches the menu.
type State struct {
	Held  Mask
	Power bool
}

// Source samples the buttons.
type Source interface {
	Sample() (State, error)
}

// Edges returns the buttons held now that were not held before.
func Edges(now, before Mask) Mask { return now & (now ^ before) }

// Reader turns samples into press events.
type Reader struct {
	src     Source
	old     Mask
	onPower func()
}

// NewReader creates a reader. onPower runs whenever the power button is
// seen held; it may be nil.
func NewReader(src Source, onPower func()) *Reader {
	return &Reader{src: src, onPower: onPower}
}

// Get samples once and returns the newly pressed buttons.
func (r *Reader) Get() (Mask, error) {
	st, err := r.src.Sample()
	if err != nil {
		return 0, err
	}
	if st.Power && r.onPower != nil {
		r.onPower()
	}
	pressed := Edges(st.Held, r.old)
	r.old = st.Held
	return pressed, nil
}
