package login

import (
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/classroom/internal/theme"
)

// SubmittedMsg carries the token entered by the user.
type SubmittedMsg struct {
	Token string
}

// CancelMsg is dispatched when the user leaves the form.
type CancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	token string
}

// Model is the login form. The classroom service issues bearer tokens out
// of band; the form only stores one.
type Model struct {
	form   *huh.Form
	fb     *formBindings
	err    string
	width  int
	height int
}

// New creates a login form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
}

// Start resets and shows the form. reason, when set, is rendered above the
// field, e.g. after the server rejected the previous token.
func (m *Model) Start(reason string) tea.Cmd {
	m.fb.token = ""
	m.err = reason
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Access token").
				Description("Paste the bearer token issued by the classroom service.").
				EchoMode(huh.EchoModePassword).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errEmpty
					}
					return nil
				}).
				Value(&m.fb.token),
		),
	).WithWidth(m.formWidth()).WithShowHelp(true)
	return m.form.Init()
}

var errEmpty = errors.New("token is required")

// Update handles messages for the login form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		token := strings.TrimSpace(m.fb.token)
		m.form = nil
		return m, func() tea.Msg { return SubmittedMsg{Token: token} }
	case huh.StateAborted:
		m.form = nil
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// View renders the login form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	content := theme.TitleStyle.Render("Log in")
	if m.err != "" {
		content += "\n" + theme.ErrorStyle.Render(m.err)
	}
	content += "\n" + m.form.View()

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	if m.form != nil {
		m.form = m.form.WithWidth(m.formWidth())
	}
}

func (m *Model) formWidth() int {
	w := m.width - 8
	if w > 80 {
		w = 80
	}
	if w < 20 {
		w = 20
	}
	return w
}
