// internal/tui/tui_test.go
package tui

import (
	"regexp"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tamzrod/gw-hbloader/internal/buttons"
	"github.com/tamzrod/gw-hbloader/internal/display"
)

var ansi = regexp.MustCompile("\x1b\\[[0-9;]*m")

func plain(s string) string { return ansi.ReplaceAllString(s, "") }

func TestRender_Dimensions(t *testing.T) {
	s := display.New()
	s.Clear(display.Blue)

	for _, scale := range []int{1, 2, 4} {
		lines := strings.Split(strings.TrimSuffix(plain(Render(s, scale)), "\n"), "\n")
		if len(lines) != display.Height/(2*scale) {
			t.Fatalf("scale %d: %d rows", scale, len(lines))
		}
		for i, l := range lines {
			if n := len([]rune(l)); n != display.Width/scale {
				t.Fatalf("scale %d row %d: %d columns", scale, i, n)
			}
		}
	}
}

func TestHex(t *testing.T) {
	if got := string(hex(0xFFFF)); got != "#FFFFFF" {
		t.Fatalf("white=%s", got)
	}
	if got := string(hex(0)); got != "#000000" {
		t.Fatalf("black=%s", got)
	}
}

func TestModel_KeysBecomeSamples(t *testing.T) {
	f := New(2)
	m := newModel(f, "test")

	for _, k := range []tea.KeyMsg{
		{Type: tea.KeyDown},
		{Type: tea.KeyEnter},
		{Type: tea.KeyRunes, Runes: []rune("g")},
		{Type: tea.KeyRunes, Runes: []rune("x")},
	} {
		next, cmd := m.Update(k)
		if cmd != nil {
			t.Fatalf("key %s returned a command", k)
		}
		m = next.(model)
	}

	want := []buttons.Mask{buttons.Down, 0, buttons.A, 0, buttons.Game, 0, 0}
	for i, w := range want {
		st, err := f.Sample()
		if err != nil || st.Held != w {
			t.Fatalf("sample %d = %s err=%v want %s", i, st.Held, err, w)
		}
	}
}

func TestModel_QuitKeys(t *testing.T) {
	m := newModel(New(2), "test")
	for _, k := range []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune("q")},
		{Type: tea.KeyCtrlC},
	} {
		_, cmd := m.Update(k)
		if cmd == nil {
			t.Fatalf("key %s did not quit", k)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Fatalf("key %s: unexpected command", k)
		}
	}
}

func TestModel_FrameAndBacklight(t *testing.T) {
	var m tea.Model = newModel(New(2), "title")

	m, _ = m.Update(frameMsg("FRAME"))
	if !strings.Contains(m.View(), "FRAME") {
		t.Fatalf("frame not shown")
	}

	m, _ = m.Update(backlightMsg(false))
	if strings.Contains(m.View(), "FRAME") {
		t.Fatalf("frame shown with backlight off")
	}

	m, _ = m.Update(deviceDoneMsg{})
	if !strings.Contains(m.View(), "device stopped") {
		t.Fatalf("status not shown")
	}
}

func TestPresent_WithoutProgram(t *testing.T) {
	f := New(4)
	if err := f.Present(display.New()); err != nil {
		t.Fatalf("Present err=%v", err)
	}
	if err := f.SetBacklight(false); err != nil {
		t.Fatalf("SetBacklight err=%v", err)
	}
}
