// Package app is the root Bubble Tea model. It routes between the views and
// binds the reminder poller to the session lifecycle.
package app

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/classroom/internal/keys"
	"github.com/nhle/classroom/internal/model"
	"github.com/nhle/classroom/internal/notification"
	"github.com/nhle/classroom/internal/session"
	appsync "github.com/nhle/classroom/internal/sync"
	"github.com/nhle/classroom/internal/ui"
	"github.com/nhle/classroom/internal/ui/classroom"
	"github.com/nhle/classroom/internal/ui/command"
	helpview "github.com/nhle/classroom/internal/ui/help"
	"github.com/nhle/classroom/internal/ui/login"
	"github.com/nhle/classroom/internal/ui/notifications"
	"github.com/nhle/classroom/internal/ui/toast"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewNotifications ViewState = iota
	ViewAttendance
	ViewLogin
	ViewHelp
	ViewCommand
)

// sessionExpiredText is shown on the login form after the server rejected
// the stored token.
const sessionExpiredText = "Your session has expired. Please log in again."

// Poller is the reminder poller as the root model drives it.
type Poller interface {
	Start(ctx context.Context)
	Stop()
	Refresh()
	Forget(ctx context.Context) error
	Running() bool
	Results() <-chan appsync.Result
}

// Timer is the attendance countdown as the root model drives it.
type Timer interface {
	classroom.Timer
	Updates() <-chan model.AttendanceSession
}

// Deps are the long-lived services the UI operates on.
type Deps struct {
	Session     *session.Session
	Store       *notification.Store
	Poller      Poller
	Alerts      *ChannelAlerter
	Timer       Timer
	Client      classroom.Client
	Logger      *zap.Logger
	ClassroomID string
}

// pollResultMsg carries one poll tick outcome into the Bubble Tea loop.
type pollResultMsg struct {
	result appsync.Result
}

// Model is the root Bubble Tea model that manages view routing and layout.
type Model struct {
	ctx    context.Context
	deps   Deps
	logger *zap.Logger

	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap

	notifications notifications.Model
	attendance    classroom.Model
	loginView     login.Model
	helpView      helpview.Model
	commandView   command.Model
	toasts        toast.Model

	ready     bool
	lastError string
}

// New creates the root model. The poller runs while the session is
// authenticated; ctx bounds its lifetime.
func New(ctx context.Context, d Deps) Model {
	k := keys.DefaultKeyMap()
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	p := d.Poller
	d.Session.OnChange(func(authenticated bool) {
		if authenticated {
			logger.Info("session started, polling reminders")
			p.Start(ctx)
			return
		}
		logger.Info("session ended, polling stopped")
		p.Stop()
	})

	return Model{
		ctx:           ctx,
		deps:          d,
		logger:        logger,
		currentView:   ViewNotifications,
		keys:          k,
		notifications: notifications.New(d.Store, k, 80, 24),
		attendance:    classroom.New(k, d.Timer, d.Client, d.Session.Role, d.ClassroomID, 80, 24),
		loginView:     login.New(80, 24),
		helpView:      helpview.New(k, 80, 24),
		commandView:   command.New(80, 24),
		toasts:        toast.New(80),
	}
}

// Init returns the initial commands.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.waitForPollResult(),
		m.deps.Alerts.waitForAlert(),
		classroom.WaitForSession(m.deps.Timer.Updates()),
	}
	if m.deps.Session.Authenticated() {
		p, ctx := m.deps.Poller, m.ctx
		cmds = append(cmds, func() tea.Msg {
			p.Start(ctx)
			return nil
		})
	} else {
		cmds = append(cmds, func() tea.Msg { return showLoginMsg{} })
	}
	return tea.Batch(cmds...)
}

// showLoginMsg opens the login form with an optional reason.
type showLoginMsg struct {
	reason string
}

func (m Model) waitForPollResult() tea.Cmd {
	ch := m.deps.Poller.Results()
	return func() tea.Msg {
		return pollResultMsg{result: <-ch}
	}
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.notifications.SetSize(w, h)
		m.attendance.SetSize(w, h)
		m.loginView.SetSize(w, h)
		m.helpView.SetSize(w, h)
		m.commandView.SetSize(w, h)
		m.toasts.SetWidth(w)
		return m.updateActiveView(msg)

	case pollResultMsg:
		return m.handlePollResult(msg.result)

	case alertMsg:
		cmd := m.toasts.Push(msg.alert)
		return m, tea.Batch(cmd, m.deps.Alerts.waitForAlert())

	case toast.ExpiredMsg:
		var cmd tea.Cmd
		m.toasts, cmd = m.toasts.Update(msg)
		return m, cmd

	case classroom.SessionMsg:
		m.attendance, _ = m.attendance.Update(msg)
		if msg.Session.Closed() {
			m.deps.Store.AddGeneric("Attendance window closed",
				fmt.Sprintf("The attendance window for %s has closed.", msg.Session.ClassroomID))
			m.notifications.Reload()
		}
		return m, classroom.WaitForSession(m.deps.Timer.Updates())

	case notifications.ChangedMsg:
		return m, nil

	case showLoginMsg:
		cmd := m.openLogin(msg.reason)
		return m, cmd

	case login.SubmittedMsg:
		if err := m.deps.Session.Login(msg.Token); err != nil {
			m.logger.Error("login failed", zap.Error(err))
			cmd := m.openLogin("Could not save the token: " + err.Error())
			return m, cmd
		}
		m.lastError = ""
		m.currentView = ViewNotifications
		return m, nil

	case login.CancelMsg:
		m.currentView = m.previousView
		if m.currentView == ViewLogin {
			m.currentView = ViewNotifications
		}
		return m, nil

	case command.CommandMsg:
		m.currentView = m.previousView
		m.commandView.Blur()
		cmd := m.executeCommand(msg)
		return m, cmd

	case tea.KeyMsg:
		if next, cmd, handled := m.handleGlobalKey(msg); handled {
			return next, cmd
		}
	}

	// Service call results reach the attendance view even while another
	// view is active.
	if classroom.Owns(msg) {
		var cmd tea.Cmd
		m.attendance, cmd = m.attendance.Update(msg)
		return m, cmd
	}

	return m.updateActiveView(msg)
}

func (m Model) handlePollResult(res appsync.Result) (tea.Model, tea.Cmd) {
	wait := m.waitForPollResult()

	switch {
	case res.AuthError:
		m.notifications.Reload()
		if err := m.deps.Session.Logout(); err != nil {
			m.logger.Warn("logout after rejected token", zap.Error(err))
		}
		cmd := m.openLogin(sessionExpiredText)
		return m, tea.Batch(wait, cmd)

	case res.Err != nil:
		m.lastError = "Reminder check failed, retrying next minute."
		return m, wait

	case res.Skipped:
		if !m.deps.Session.Expired() {
			return m, wait
		}
		m.logger.Info("session token expired, logging out")
		forget := m.logout()
		cmd := m.openLogin(sessionExpiredText)
		return m, tea.Batch(wait, forget, cmd)
	}

	m.lastError = ""
	if len(res.Delivered) > 0 {
		m.notifications.Reload()
	}
	return m, wait
}

func (m *Model) openLogin(reason string) tea.Cmd {
	if m.currentView != ViewLogin {
		m.previousView = m.currentView
	}
	m.currentView = ViewLogin
	return m.loginView.Start(reason)
}

// inputFocused reports whether the active view consumes plain keys.
func (m Model) inputFocused() bool {
	switch m.currentView {
	case ViewLogin, ViewCommand:
		return true
	case ViewAttendance:
		return m.attendance.Editing()
	}
	return false
}

func (m Model) handleGlobalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit, true
	}
	if msg.String() == "esc" {
		switch m.currentView {
		case ViewCommand:
			m.commandView.Blur()
			m.currentView = m.previousView
			return m, nil, true
		case ViewLogin:
			return m, func() tea.Msg { return login.CancelMsg{} }, true
		}
	}
	if m.inputFocused() {
		return m, nil, false
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit, true

	case key.Matches(msg, m.keys.Help):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return m, nil, true
		}
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return m, nil, true

	case key.Matches(msg, m.keys.Command):
		m.previousView = m.currentView
		m.currentView = ViewCommand
		cmd := m.commandView.Focus()
		return m, cmd, true

	case key.Matches(msg, m.keys.Back):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return m, nil, true
		}

	case key.Matches(msg, m.keys.Tab):
		m.switchView()
		return m, nil, true

	case key.Matches(msg, m.keys.Refresh):
		m.deps.Poller.Refresh()
		return m, nil, true

	case key.Matches(msg, m.keys.Login):
		cmd := m.openLogin("")
		return m, cmd, true

	case key.Matches(msg, m.keys.Logout):
		cmd := m.logout()
		return m, cmd, true
	}

	return m, nil, false
}

func (m *Model) switchView() {
	switch m.currentView {
	case ViewNotifications:
		m.currentView = ViewAttendance
	default:
		m.currentView = ViewNotifications
	}
}

// logout signs out and empties the feed. The returned command resets the
// delivery ledger so the cleared reminders come back after the next login.
func (m *Model) logout() tea.Cmd {
	if err := m.deps.Session.Logout(); err != nil {
		m.logger.Warn("logout", zap.Error(err))
	}
	m.deps.Store.Clear()
	m.notifications.Reload()

	p, ctx, logger := m.deps.Poller, m.ctx, m.logger
	return func() tea.Msg {
		if err := p.Forget(ctx); err != nil {
			logger.Warn("resetting delivery ledger", zap.Error(err))
		}
		return nil
	}
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewNotifications:
		m.notifications, cmd = m.notifications.Update(msg)
	case ViewAttendance:
		m.attendance, cmd = m.attendance.Update(msg)
	case ViewLogin:
		m.loginView, cmd = m.loginView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader("Classroom", m.headerStatus())
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, m.renderContent(), m.toasts.View(), statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewNotifications:
		return m.notifications.View()
	case ViewAttendance:
		return m.attendance.View()
	case ViewLogin:
		return m.loginView.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	default:
		return ""
	}
}

// headerStatus shows the bell with the unread count and the session state.
func (m Model) headerStatus() string {
	bell := "🔔"
	if n := m.deps.Store.UnreadCount(); n > 0 {
		bell = fmt.Sprintf("🔔 %d", n)
	}

	if !m.deps.Session.Authenticated() {
		return bell + " | logged out"
	}
	state := "idle"
	if m.deps.Poller.Running() {
		state = "watching"
	}
	if role := m.deps.Session.Role(); role != session.RoleUnknown {
		return fmt.Sprintf("%s | %s | %s", bell, role, state)
	}
	return bell + " | " + state
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	if m.lastError != "" && m.currentView == ViewNotifications {
		return m.lastError
	}

	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | esc back"
	case ViewLogin:
		return "enter submit | esc cancel"
	case ViewAttendance:
		return m.attendance.KeyHints()
	default:
		return "q quit | ? help | enter read | A read all | d remove | C clear | r refresh | tab attendance"
	}
}
