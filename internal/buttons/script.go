// internal/buttons/script.go
package buttons

import "sync"

// Script replays a fixed list of samples, then reports nothing held.
type Script struct {
	mu     sync.Mutex
	states []State
	n      int
}

// NewScript creates a script of held masks, one per sample.
func NewScript(held ...Mask) *Script {
	s := &Script{}
	for _, m := range held {
		s.states = append(s.states, State{Held: m})
	}
	return s
}

// Push appends samples.
func (s *Script) Push(st ...State) {
	s.mu.Lock()
	s.states = append(s.states, st...)
	s.mu.Unlock()
}

// Press appends a press and a release of m.
func (s *Script) Press(m Mask) { s.Push(State{Held: m}, State{}) }

func (s *Script) Sample() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.n >= len(s.states) {
		return State{}, nil
	}
	st := s.states[s.n]
	s.n++
	return st, nil
}

// Remaining returns how many samples are left.
func (s *Script) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states) - s.n
}
