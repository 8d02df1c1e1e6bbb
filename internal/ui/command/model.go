package command

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/classroom/internal/theme"
)

// CommandMsg is emitted when the user executes a command. Name is the first
// word, Args the rest of the line.
type CommandMsg struct {
	Name string
	Args []string
}

// Commands lists the palette commands offered as completions.
var Commands = []string{
	"refresh",
	"notifications",
	"attendance",
	"classroom",
	"start",
	"mark",
	"score",
	"export",
	"read all",
	"clear",
	"login",
	"logout",
	"quit",
}

// Model is the command palette view.
type Model struct {
	input  textinput.Model
	width  int
	height int
}

// New creates a new command palette model.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "type a command..."
	ti.Prompt = ": "
	ti.ShowSuggestions = true
	ti.SetSuggestions(Commands)
	ti.Width = width - 6

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// Parse splits a palette line into a command. It reports false for a blank
// line.
func Parse(line string) (CommandMsg, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return CommandMsg{}, false
	}
	name := strings.ToLower(fields[0])
	args := fields[1:]
	// "read all" is the one two-word command.
	if name == "read" && len(args) > 0 && strings.EqualFold(args[0], "all") {
		name, args = "read all", args[1:]
	}
	return CommandMsg{Name: name, Args: args}, true
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "enter" {
		cmd, ok := Parse(m.input.Value())
		m.input.Reset()
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg { return cmd }
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the command palette.
func (m Model) View() string {
	title := theme.TitleStyle.Render("Command Palette")
	hint := theme.HelpStyle.Render(strings.Join(Commands, " · "))

	content := lipgloss.JoinVertical(lipgloss.Left, title, m.input.View(), "", hint)

	return theme.PanelStyle.
		Width(m.width - 4).
		Render(content)
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	return m.input.Focus()
}

// Blur releases keyboard focus.
func (m *Model) Blur() {
	m.input.Blur()
	m.input.Reset()
}
