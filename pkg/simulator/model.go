package simulator

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// frameMsg carries a rendered frame from Present into the program.
type frameMsg string

type keyMap struct {
	Quit    key.Binding
	Trigger key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Trigger: key.NewBinding(
			key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8", "9"),
			key.WithHelp("1-9", "fire key:<n> trigger"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding  { return []key.Binding{k.Trigger, k.Quit} }
func (k keyMap) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }

// model shows the latest frame. Key presses never touch scheduler state
// directly: quitting calls interrupt, digits latch triggers.
type model struct {
	keys      keyMap
	help      help.Model
	border    lipgloss.Style
	frame     string
	interrupt func()
	fire      func(name string)
	stopping  bool
}

func newModel(r *lipgloss.Renderer, interrupt func(), fire func(string)) model {
	h := help.New()
	return model{
		keys:      defaultKeys(),
		help:      h,
		border:    r.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")),
		interrupt: interrupt,
		fire:      fire,
	}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case frameMsg:
		m.frame = string(msg)
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			// The shutdown applet still has to be shown; the owner quits
			// the program once the scheduler has stopped.
			if !m.stopping && m.interrupt != nil {
				m.interrupt()
			}
			m.stopping = true
		case key.Matches(msg, m.keys.Trigger):
			if m.fire != nil {
				m.fire(msg.String())
			}
		}
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
	}
	return m, nil
}

func (m model) View() string {
	status := m.help.View(m.keys)
	if m.stopping {
		status = "shutting down..."
	}
	return m.border.Render(m.frame) + "\n" + status + "\n"
}
