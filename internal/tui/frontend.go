// internal/tui/frontend.go
package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"

	"github.com/tamzrod/gw-hbloader/internal/buttons"
	"github.com/tamzrod/gw-hbloader/internal/display"
)

// Frontend shows the device screen in the terminal and turns key presses
// into button samples. It is the panel, the buttons and the backlight of
// the device goroutine.
type Frontend struct {
	scale int

	mu      sync.Mutex
	pending []buttons.State
	last    string
	prog    *tea.Program
}

// New creates a frontend rendering every scale-th pixel.
func New(scale int) *Frontend {
	return &Frontend{scale: scale}
}

// ---- buttons.Source ----

// Sample returns the next key as a button held for one sample.
func (f *Frontend) Sample() (buttons.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pending) == 0 {
		return buttons.State{}, nil
	}
	st := f.pending[0]
	f.pending = f.pending[1:]
	return st, nil
}

func (f *Frontend) push(m buttons.Mask) {
	f.mu.Lock()
	// a release between presses keeps repeated keys as separate edges
	f.pending = append(f.pending, buttons.State{Held: m}, buttons.State{})
	f.mu.Unlock()
}

// ---- display.Panel ----

func (f *Frontend) Present(s *display.Screen) error {
	frame := Render(s, f.scale)

	f.mu.Lock()
	same := frame == f.last
	f.last = frame
	prog := f.prog
	f.mu.Unlock()

	if !same && prog != nil {
		prog.Send(frameMsg(frame))
	}
	return nil
}

// ---- halt.Backlight ----

func (f *Frontend) SetBacklight(on bool) error {
	f.mu.Lock()
	prog := f.prog
	f.mu.Unlock()
	if prog != nil {
		prog.Send(backlightMsg(on))
	}
	return nil
}

// ------------------------------------------------------------
// RUN
// ------------------------------------------------------------

// Run shows the terminal UI and runs device beside it. It returns when the
// user quits; device is then cancelled and its error returned.
func (f *Frontend) Run(ctx context.Context, title string, device func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	prog := tea.NewProgram(newModel(f, title), tea.WithAltScreen(), tea.WithContext(ctx))
	f.mu.Lock()
	f.prog = prog
	f.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		err := device(ctx)
		done <- err
		prog.Send(deviceDoneMsg{err: err})
	}()

	_, runErr := prog.Run()
	cancel()
	devErr := <-done

	f.mu.Lock()
	f.prog = nil
	f.mu.Unlock()

	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return errors.Wrap(runErr, "tui")
	}
	if devErr != nil && !errors.Is(devErr, context.Canceled) {
		return devErr
	}
	return nil
}

// ------------------------------------------------------------
// MODEL
// ------------------------------------------------------------

type (
	frameMsg      string
	backlightMsg  bool
	deviceDoneMsg struct{ err error }
)

var keyButtons = map[string]buttons.Mask{
	"up":        buttons.Up,
	"down":      buttons.Down,
	"left":      buttons.Left,
	"right":     buttons.Right,
	"a":         buttons.A,
	"enter":     buttons.A,
	"b":         buttons.B,
	"backspace": buttons.B,
	"g":         buttons.Game,
	"t":         buttons.Time,
	"p":         buttons.Pause,
	" ":         buttons.Pause,
}

type model struct {
	f         *Frontend
	title     string
	frame     string
	backlight bool
	status    string

	frameStyle lipgloss.Style
	helpStyle  lipgloss.Style
}

func newModel(f *Frontend, title string) model {
	return model{
		f:          f,
		title:      title,
		backlight:  true,
		frameStyle: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")),
		helpStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
	}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		k := msg.String()
		if k == "q" || k == "ctrl+c" {
			return m, tea.Quit
		}
		if b, ok := keyButtons[k]; ok {
			m.f.push(b)
		}
	case frameMsg:
		m.frame = string(msg)
	case backlightMsg:
		m.backlight = bool(msg)
	case deviceDoneMsg:
		m.status = "device stopped"
		if msg.err != nil {
			m.status += ": " + msg.err.Error()
		}
	}
	return m, nil
}

func (m model) View() string {
	frame := m.frame
	if !m.backlight {
		frame = ""
	}
	help := "arrows: d-pad  a/enter: A  b/backspace: B  g: GAME  t: TIME  p: PAUSE  q: power off"
	out := lipgloss.JoinVertical(lipgloss.Left,
		m.title,
		m.frameStyle.Render(frame),
		m.helpStyle.Render(help),
	)
	if m.status != "" {
		out += "\n" + m.status
	}
	return out
}
