// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

package prompt

import (
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/toeirei/keyrot/internal/i18n"
)

const (
	colorSubtle    = lipgloss.Color("240")
	colorHighlight = lipgloss.Color("81")
	colorSpecial   = lipgloss.Color("208")
)

var (
	questionStyle = lipgloss.NewStyle().Foreground(colorSpecial).Bold(true)
	buttonStyle   = lipgloss.NewStyle().Padding(0, 2).Foreground(colorSubtle)
	activeStyle   = lipgloss.NewStyle().Padding(0, 2).Foreground(colorHighlight).Bold(true).Underline(true)
	helpStyle     = lipgloss.NewStyle().Foreground(colorSubtle)
)

// KeyMap holds the dialog bindings.
type KeyMap struct {
	Yes    key.Binding
	No     key.Binding
	Toggle key.Binding
	Submit key.Binding
	Cancel key.Binding
}

func (km KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{km.Toggle, km.Submit, km.Yes, km.No, km.Cancel}
}

func (km KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{km.ShortHelp()}
}

var _ help.KeyMap = KeyMap{}

var DefaultKeyMap = KeyMap{
	Yes: key.NewBinding(
		key.WithKeys("y", "Y"),
		key.WithHelp("y", "yes"),
	),
	No: key.NewBinding(
		key.WithKeys("n", "N"),
		key.WithHelp("n", "no"),
	),
	Toggle: key.NewBinding(
		key.WithKeys("left", "right", "h", "l", "tab"),
		key.WithHelp("←/→", "switch"),
	),
	Submit: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "confirm"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc", "q", "ctrl+c"),
		key.WithHelp("esc", "cancel"),
	),
}

// confirmModel is the bubbletea model behind Dialog. The answer defaults
// to no.
type confirmModel struct {
	question string
	yes      bool
	answered bool
	keys     KeyMap
	help     help.Model
}

func newConfirmModel(question string) confirmModel {
	return confirmModel{question: question, keys: DefaultKeyMap, help: help.New()}
}

func (m confirmModel) Init() tea.Cmd { return nil }

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	kmsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(kmsg, m.keys.Yes):
		m.yes, m.answered = true, true
		return m, tea.Quit
	case key.Matches(kmsg, m.keys.No), key.Matches(kmsg, m.keys.Cancel):
		m.yes, m.answered = false, true
		return m, tea.Quit
	case key.Matches(kmsg, m.keys.Toggle):
		m.yes = !m.yes
	case key.Matches(kmsg, m.keys.Submit):
		m.answered = true
		return m, tea.Quit
	}
	return m, nil
}

func (m confirmModel) View() string {
	if m.answered {
		return ""
	}
	yes, no := buttonStyle, activeStyle
	if m.yes {
		yes, no = activeStyle, buttonStyle
	}
	var b strings.Builder
	b.WriteString(questionStyle.Render(m.question))
	b.WriteString("\n\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		yes.Render(i18n.T("common.yes")),
		no.Render(i18n.T("common.no")),
	))
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render(m.help.View(m.keys)))
	b.WriteString("\n")
	return b.String()
}

// Dialog asks with an inline bubbletea dialog.
type Dialog struct {
	In  io.Reader
	Out io.Writer
}

// Confirm implements Confirmer.
func (d *Dialog) Confirm(question string) (bool, error) {
	final, err := tea.NewProgram(
		newConfirmModel(question),
		tea.WithInput(d.In),
		tea.WithOutput(d.Out),
	).Run()
	if err != nil {
		return false, err
	}
	m, ok := final.(confirmModel)
	return ok && m.answered && m.yes, nil
}
