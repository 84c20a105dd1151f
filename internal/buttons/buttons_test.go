// internal/buttons/buttons_test.go
package buttons

import (
	"strings"
	"testing"
	"time"
)

func TestBitLayout(t *testing.T) {
	want := []Mask{1, 1 << 1, 1 << 2, 1 << 3, 1 << 4, 1 << 5, 1 << 6, 1 << 7, 1 << 8}
	got := []Mask{Left, Up, Right, Down, A, B, Time, Game, Pause}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("button %d = %d want %d", i, got[i], want[i])
		}
	}
}

func TestEdges(t *testing.T) {
	if Edges(Up|A, Up) != A {
		t.Fatalf("held button reported again")
	}
	if Edges(0, Up) != 0 {
		t.Fatalf("release reported as press")
	}
}

func TestReader_PressOnce(t *testing.T) {
	src := NewScript(Down, Down, 0, Down)
	powered := 0
	r := NewReader(src, func() { powered++ })

	var got []Mask
	for i := 0; i < 5; i++ {
		m, err := r.Get()
		if err != nil {
			t.Fatalf("Get err=%v", err)
		}
		got = append(got, m)
	}
	want := []Mask{Down, 0, 0, Down, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d = %s want %s", i, got[i], want[i])
		}
	}

	src.Push(State{Power: true})
	if _, err := r.Get(); err != nil || powered != 1 {
		t.Fatalf("power not handled: %d %v", powered, err)
	}
}

func TestParseKeys(t *testing.T) {
	cases := []struct {
		in   string
		want State
	}{
		{"\x1b[A", State{Held: Up}},
		{"\x1b[B\x1b[D", State{Held: Down | Left}},
		{"a", State{Held: A}},
		{"\r", State{Held: A}},
		{"b", State{Held: B}},
		{"g", State{Held: Game}},
		{"q", State{Power: true}},
		{"zz", State{}},
	}
	for _, tc := range cases {
		if got := ParseKeys([]byte(tc.in)); got != tc.want {
			t.Fatalf("%q: got %+v want %+v", tc.in, got, tc.want)
		}
	}
}

func TestKeyReader(t *testing.T) {
	k := NewKeyReader(strings.NewReader("\x1b[B"))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		st, err := k.Sample()
		if err != nil {
			t.Fatalf("Sample err=%v", err)
		}
		if st.Held == Down {
			if st, _ := k.Sample(); st.Held != 0 {
				t.Fatalf("key held twice")
			}
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("key never arrived")
}

func TestMaskString(t *testing.T) {
	if (Up|A).String() != "up+a" || Mask(0).String() != "none" {
		t.Fatalf("strings %q %q", (Up | A).String(), Mask(0).String())
	}
}
