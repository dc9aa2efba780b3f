// Package hostui implements internal/platform's Screen and EventSource
// against a terminal, using bubbletea for the event loop, lipgloss for
// truecolor rendering, and bubbles/key+help for the terminal program's
// own quit/help keybindings (separate from the handset scancodes a
// running application receives).
//
// Grounded on original_source's wie_backend::backend::window::Window::run:
// that event loop pumps a native windowing library's events and
// translates them into wie_base::Event's four variants — Keydown,
// Keyup, Update, Redraw — which a module's main loop polls in sequence.
// Window reproduces that same translation, only from bubbletea's tea.Msg
// stream instead of winit's WindowEvent. A terminal has no true
// key-release signal, so each keypress is expanded into an immediate
// Keydown followed by a Keyup — a deliberate approximation, not a bug —
// so a WIPI application's key-repeat/release handling never sees a key
// it believes is stuck down.
package hostui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"wipiemu/internal/platform"
)

const (
	cellCols     = 64
	cellRows     = 24
	frameTickDur = 33 * time.Millisecond
)

// Window is a terminal-hosted platform.Screen and platform.EventSource.
type Window struct {
	program *tea.Program
	events  chan any
	done    chan struct{}

	width, height int
	frame         []byte
}

// New creates a Window for a width x height RGB8 screen.
func New(width, height int) *Window {
	w := &Window{
		width:  width,
		height: height,
		events: make(chan any, 64),
		done:   make(chan struct{}),
		frame:  make([]byte, width*height*3),
	}
	w.program = tea.NewProgram(model{w: w, help: help.New()})
	return w
}

// Run starts the terminal UI loop. It does not return until the UI
// program exits (via Close, or the user quitting the terminal program
// directly); callers typically invoke it in its own goroutine alongside
// the emulator's scheduler loop.
func (w *Window) Run() error {
	_, err := w.program.Run()
	close(w.done)
	return err
}

// Close requests the UI program exit and waits for it to do so.
func (w *Window) Close() {
	w.program.Quit()
	<-w.done
}

func (w *Window) push(e any) {
	select {
	case w.events <- e:
	default:
		// The guest polls at least once per scheduler tick; a full queue
		// means it has fallen far behind, and dropping the new event here
		// is preferable to blocking bubbletea's UI goroutine.
	}
}

// Width implements platform.Screen.
func (w *Window) Width() int { return w.width }

// Height implements platform.Screen.
func (w *Window) Height() int { return w.height }

// Present implements platform.Screen.
func (w *Window) Present(rgb []byte) error {
	if len(rgb) != len(w.frame) {
		return fmt.Errorf("hostui: frame is %d bytes, want %d", len(rgb), len(w.frame))
	}
	copy(w.frame, rgb)
	w.push(platform.Redraw{})
	go w.program.Send(redrawMsg{})
	return nil
}

// Poll implements platform.EventSource.
func (w *Window) Poll() (any, bool) {
	select {
	case e := <-w.events:
		return e, true
	default:
		return nil, false
	}
}

func (w *Window) render() string {
	var b strings.Builder
	cw, ch := w.width/cellCols, w.height/cellRows
	if cw < 1 {
		cw = 1
	}
	if ch < 1 {
		ch = 1
	}
	for row := 0; row < cellRows; row++ {
		for col := 0; col < cellCols; col++ {
			r, g, bl := w.sampleBlock(col*cw, row*ch, cw, ch)
			style := lipgloss.NewStyle().Foreground(lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", r, g, bl)))
			b.WriteString(style.Render("█"))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func (w *Window) sampleBlock(x0, y0, cw, ch int) (r, g, b byte) {
	var sr, sg, sb, n int
	for y := y0; y < y0+ch && y < w.height; y++ {
		for x := x0; x < x0+cw && x < w.width; x++ {
			i := (y*w.width + x) * 3
			if i+2 >= len(w.frame) {
				continue
			}
			sr += int(w.frame[i])
			sg += int(w.frame[i+1])
			sb += int(w.frame[i+2])
			n++
		}
	}
	if n == 0 {
		return 0, 0, 0
	}
	return byte(sr / n), byte(sg / n), byte(sb / n)
}

type redrawMsg struct{}
type tickMsg time.Time

// keyMap is the terminal program's own bindings (quitting, toggling the
// help footer) — distinct from the handset scancodes a running
// application receives, which keyScancode maps separately.
type keyMap struct {
	Quit key.Binding
	Help key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var defaultKeyMap = keyMap{
	Quit: key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	Help: key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
}

type model struct {
	w        *Window
	help     help.Model
	showHelp bool
}

func (m model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(frameTickDur, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, defaultKeyMap.Quit):
			return m, tea.Quit
		case key.Matches(msg, defaultKeyMap.Help):
			m.showHelp = !m.showHelp
			return m, nil
		}
		code := keyScancode(msg)
		m.w.push(platform.KeyEvent{Scancode: code, Down: true})
		m.w.push(platform.KeyEvent{Scancode: code, Down: false})
		return m, nil
	case tickMsg:
		m.w.push(platform.Update{})
		return m, tick()
	case redrawMsg:
		return m, nil
	}
	return m, nil
}

func (m model) View() string {
	if !m.showHelp {
		return m.w.render()
	}
	return m.w.render() + m.help.View(defaultKeyMap)
}

// keyScancode maps a bubbletea key event to a handset-style scancode.
// Arrow/enter/escape/space get fixed codes a framework's key-constant
// classes would recognize; printable runes pass their rune value
// through directly.
func keyScancode(msg tea.KeyMsg) int {
	switch msg.Type {
	case tea.KeyUp:
		return 1
	case tea.KeyDown:
		return 2
	case tea.KeyLeft:
		return 3
	case tea.KeyRight:
		return 4
	case tea.KeyEnter:
		return 5
	case tea.KeyEsc:
		return 6
	case tea.KeySpace:
		return 7
	default:
		if r := msg.Runes; len(r) > 0 {
			return int(r[0])
		}
		return 0
	}
}
