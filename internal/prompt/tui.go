package prompt

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUIPrompter is the arrow-key Prompter built on bubbletea. Each question
// runs a short-lived program on the prompter's streams.
type TUIPrompter struct {
	in   io.Reader
	out  io.Writer
	keys KeyMap
}

// NewTUIPrompter returns a TUIPrompter bound to the given streams.
func NewTUIPrompter(in io.Reader, out io.Writer) *TUIPrompter {
	return &TUIPrompter{in: in, out: out, keys: DefaultKeyMap()}
}

var (
	promptStyle   = lipgloss.NewStyle().Bold(true)
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	detailStyle   = lipgloss.NewStyle().Faint(true)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	buttonStyle   = lipgloss.NewStyle().Padding(0, 2)
	activeButton  = lipgloss.NewStyle().Padding(0, 2).Reverse(true).Bold(true)
)

func (p *TUIPrompter) run(m tea.Model) (tea.Model, error) {
	prog := tea.NewProgram(m, tea.WithInput(p.in), tea.WithOutput(p.out))
	final, err := prog.Run()
	if err != nil {
		return nil, fmt.Errorf("prompt: %w", err)
	}
	return final, nil
}

// AskYesNo renders a two-button dialog.
func (p *TUIPrompter) AskYesNo(prompt string, def bool) (bool, error) {
	m := yesNoModel{prompt: prompt, yes: def, keys: p.keys}
	final, err := p.run(m)
	if err != nil {
		return def, err
	}
	res := final.(yesNoModel)
	if res.aborted {
		return def, ErrInterrupted
	}
	return res.yes, nil
}

// AskOneOf renders a single-choice list with a cursor.
func (p *TUIPrompter) AskOneOf(prompt string, options []Option, defIndex int) (int, error) {
	if defIndex < 0 || defIndex >= len(options) {
		defIndex = 0
	}
	m := chooseModel{prompt: prompt, options: options, cursor: defIndex, keys: p.keys}
	final, err := p.run(m)
	if err != nil {
		return defIndex, err
	}
	res := final.(chooseModel)
	if res.aborted {
		return defIndex, ErrInterrupted
	}
	return res.cursor, nil
}

// AskManyOf renders a checkbox list; space toggles, enter confirms.
func (p *TUIPrompter) AskManyOf(prompt string, options []Option, defSelected []bool) ([]bool, error) {
	selected := make([]bool, len(options))
	copy(selected, defSelected)
	m := multiModel{prompt: prompt, options: options, selected: selected, keys: p.keys}
	final, err := p.run(m)
	if err != nil {
		return selected, err
	}
	res := final.(multiModel)
	if res.aborted {
		return defSelected, ErrInterrupted
	}
	return res.selected, nil
}

// yesNoModel is a two-button accept/decline dialog.
type yesNoModel struct {
	prompt  string
	yes     bool
	aborted bool
	keys    KeyMap
}

func (m yesNoModel) Init() tea.Cmd { return nil }

func (m yesNoModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(keyMsg, m.keys.Quit):
		m.aborted = true
		return m, tea.Quit
	case key.Matches(keyMsg, m.keys.Left):
		m.yes = true
	case key.Matches(keyMsg, m.keys.Right):
		m.yes = false
	case key.Matches(keyMsg, m.keys.Yes):
		m.yes = true
		return m, tea.Quit
	case key.Matches(keyMsg, m.keys.No):
		m.yes = false
		return m, tea.Quit
	case key.Matches(keyMsg, m.keys.Confirm):
		return m, tea.Quit
	}
	return m, nil
}

func (m yesNoModel) View() string {
	var b strings.Builder
	b.WriteString(promptStyle.Render(m.prompt))
	b.WriteString("\n\n")

	yesBtn, noBtn := buttonStyle, buttonStyle
	if m.yes {
		yesBtn = activeButton
	} else {
		noBtn = activeButton
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Center,
		yesBtn.Render("Yes"), "  ", noBtn.Render("No")))
	b.WriteString("\n")
	return b.String()
}

// chooseModel is a single-choice list.
type chooseModel struct {
	prompt  string
	options []Option
	cursor  int
	aborted bool
	keys    KeyMap
}

func (m chooseModel) Init() tea.Cmd { return nil }

func (m chooseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(keyMsg, m.keys.Quit):
		m.aborted = true
		return m, tea.Quit
	case key.Matches(keyMsg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(keyMsg, m.keys.Down):
		if m.cursor < len(m.options)-1 {
			m.cursor++
		}
	case key.Matches(keyMsg, m.keys.Confirm):
		return m, tea.Quit
	}
	return m, nil
}

func (m chooseModel) View() string {
	var b strings.Builder
	b.WriteString(promptStyle.Render(m.prompt))
	b.WriteString("\n")
	for i, opt := range m.options {
		cursor := "  "
		label := opt.Label
		if i == m.cursor {
			cursor = cursorStyle.Render("> ")
			label = cursorStyle.Render(opt.Label)
		}
		b.WriteString(cursor + label)
		if opt.Detail != "" {
			b.WriteString(detailStyle.Render(" " + opt.Detail))
		}
		b.WriteString("\n")
	}
	b.WriteString(detailStyle.Render("enter confirm"))
	b.WriteString("\n")
	return b.String()
}

// multiModel is a checkbox list.
type multiModel struct {
	prompt   string
	options  []Option
	selected []bool
	cursor   int
	aborted  bool
	keys     KeyMap
}

func (m multiModel) Init() tea.Cmd { return nil }

func (m multiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(keyMsg, m.keys.Quit):
		m.aborted = true
		return m, tea.Quit
	case key.Matches(keyMsg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(keyMsg, m.keys.Down):
		if m.cursor < len(m.options)-1 {
			m.cursor++
		}
	case key.Matches(keyMsg, m.keys.Toggle):
		m.selected[m.cursor] = !m.selected[m.cursor]
	case key.Matches(keyMsg, m.keys.Confirm):
		return m, tea.Quit
	}
	return m, nil
}

func (m multiModel) View() string {
	var b strings.Builder
	b.WriteString(promptStyle.Render(m.prompt))
	b.WriteString("\n")
	for i, opt := range m.options {
		cursor := "  "
		if i == m.cursor {
			cursor = cursorStyle.Render("> ")
		}
		box := "[ ]"
		label := opt.Label
		if m.selected[i] {
			box = selectedStyle.Render("[x]")
			label = selectedStyle.Render(opt.Label)
		}
		b.WriteString(cursor + box + " " + label)
		if opt.Detail != "" {
			b.WriteString(detailStyle.Render(" " + opt.Detail))
		}
		b.WriteString("\n")
	}
	b.WriteString(detailStyle.Render("space toggle, enter confirm"))
	b.WriteString("\n")
	return b.String()
}
