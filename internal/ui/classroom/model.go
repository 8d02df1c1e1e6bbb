// Package classroom is the attendance view: it opens windows, shows the
// countdown, submits mark attempts and displays scores.
package classroom

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/classroom/internal/attendance"
	"github.com/nhle/classroom/internal/keys"
	"github.com/nhle/classroom/internal/model"
	"github.com/nhle/classroom/internal/session"
	"github.com/nhle/classroom/internal/theme"
)

// requestTimeout bounds each service call started from this view.
const requestTimeout = 30 * time.Second

// Timer is the countdown the view starts and renders.
type Timer interface {
	Start(ctx context.Context, classroomID string) error
	Session() model.AttendanceSession
}

// Client is the part of the Attendance Service the view calls directly.
type Client interface {
	attendance.Marker
	Score(ctx context.Context, classroomID string) (model.Score, error)
	ClassroomScores(ctx context.Context, classroomID string) ([]model.StudentScore, error)
	ExportAttendanceCSV(ctx context.Context, classroomID string, w io.Writer) (int64, error)
}

// SessionMsg carries a countdown snapshot published by the timer.
type SessionMsg struct {
	Session model.AttendanceSession
}

// WaitForSession returns a command that blocks until the timer publishes
// the next snapshot.
func WaitForSession(ch <-chan model.AttendanceSession) tea.Cmd {
	return func() tea.Msg {
		return SessionMsg{Session: <-ch}
	}
}

type startedMsg struct {
	err error
}

type markedMsg struct {
	result attendance.MarkResult
}

type scoreLoadedMsg struct {
	score    model.Score
	roster   []model.StudentScore
	scoreErr error
	rostErr  error
}

type exportedMsg struct {
	path  string
	bytes int64
	err   error
}

// Owns reports whether msg is the result of a service call started by this
// view.
func Owns(msg tea.Msg) bool {
	switch msg.(type) {
	case startedMsg, markedMsg, scoreLoadedMsg, exportedMsg:
		return true
	}
	return false
}

// RoleFunc reports the role of the signed-in user.
type RoleFunc func() session.Role

// Model is the attendance view.
type Model struct {
	keys   *keys.KeyMap
	timer  Timer
	client Client
	role   RoleFunc

	classroomID string
	editing     bool
	input       textinput.Model

	session  model.AttendanceSession
	progress progress.Model

	status    string
	statusErr bool

	score  *model.Score
	roster table.Model
	rows   int

	exportDir string
	width     int
	height    int
}

// New creates the attendance view for classroomID, which may be empty. A nil
// role leaves every action to the server to decide.
func New(k *keys.KeyMap, timer Timer, client Client, role RoleFunc, classroomID string, width, height int) Model {
	if role == nil {
		role = func() session.Role { return session.RoleUnknown }
	}

	ti := textinput.New()
	ti.Placeholder = "classroom id"
	ti.Prompt = "Classroom: "
	ti.Width = 40

	pb := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	pb.Width = 40

	rt := table.New(
		table.WithColumns(rosterColumns(width)),
		table.WithHeight(8),
	)

	return Model{
		keys:        k,
		timer:       timer,
		client:      client,
		role:        role,
		classroomID: strings.TrimSpace(classroomID),
		input:       ti,
		progress:    pb,
		roster:      rt,
		exportDir:   ".",
		width:       width,
		height:      height,
	}
}

func rosterColumns(width int) []table.Column {
	name := width - 40
	if name < 12 {
		name = 12
	}
	return []table.Column{
		{Title: "Student", Width: name},
		{Title: "Attended", Width: 9},
		{Title: "Total", Width: 6},
		{Title: "Rate", Width: 7},
	}
}

// ClassroomID returns the selected classroom.
func (m Model) ClassroomID() string {
	return m.classroomID
}

// Editing reports whether the classroom id input has focus.
func (m Model) Editing() bool {
	return m.editing
}

// SetClassroom switches to id and forgets the previous classroom's scores.
func (m *Model) SetClassroom(id string) {
	id = strings.TrimSpace(id)
	if id == m.classroomID {
		return
	}
	m.classroomID = id
	m.score = nil
	m.rows = 0
	m.roster.SetRows(nil)
	m.setStatus(fmt.Sprintf("Classroom set to %s.", id), false)
}

// SetExportDir sets where exported CSV files are written.
func (m *Model) SetExportDir(dir string) {
	m.exportDir = dir
}

// Update handles messages for the attendance view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case SessionMsg:
		m.session = msg.Session
		if msg.Session.Closed() {
			m.setStatus("Attendance window closed.", false)
		}
		return m, nil

	case startedMsg:
		if msg.err != nil {
			m.setStatus(startError(msg.err), true)
			return m, nil
		}
		m.session = m.timer.Session()
		m.setStatus("Attendance window open for two minutes.", false)
		return m, nil

	case markedMsg:
		m.setStatus(msg.result.UserMessage(), msg.result.Outcome != attendance.Success)
		return m, nil

	case scoreLoadedMsg:
		return m.applyScore(msg), nil

	case exportedMsg:
		if msg.err != nil {
			m.setStatus("Export failed: "+msg.err.Error(), true)
		} else {
			m.setStatus(fmt.Sprintf("Exported %d bytes to %s.", msg.bytes, msg.path), false)
		}
		return m, nil

	case tea.KeyMsg:
		if m.editing {
			return m.handleEditKeys(msg)
		}
		if cmd, ok := m.handleKeys(msg); ok {
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.roster, cmd = m.roster.Update(msg)
	return m, cmd
}

func (m Model) handleEditKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.editing = false
		m.input.Blur()
		m.SetClassroom(m.input.Value())
		return m, nil
	case "esc":
		m.editing = false
		m.input.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.EditClass):
		m.editing = true
		m.input.SetValue(m.classroomID)
		m.input.CursorEnd()
		return m.input.Focus(), true
	case key.Matches(msg, m.keys.StartSession):
		return m.StartCmd(), true
	case key.Matches(msg, m.keys.Mark):
		return m.MarkCmd(), true
	case key.Matches(msg, m.keys.Score):
		return m.LoadScoreCmd(), true
	case key.Matches(msg, m.keys.Export):
		return m.ExportCmd(""), true
	}
	return nil, false
}

// requireClassroom reports whether a classroom is selected, setting the
// status line otherwise.
func (m *Model) requireClassroom() bool {
	if m.classroomID != "" {
		return true
	}
	m.setStatus("Select a classroom first (press e).", true)
	return false
}

// permit reports whether the signed-in role may perform an action, setting
// the status line otherwise.
func (m *Model) permit(allowed bool, denied string) bool {
	if allowed {
		return true
	}
	m.setStatus(denied, true)
	return false
}

// StartCmd opens an attendance window for the selected classroom.
func (m *Model) StartCmd() tea.Cmd {
	if !m.permit(m.role().CanStartAttendance(), "Only teachers can start attendance.") {
		return nil
	}
	if !m.requireClassroom() {
		return nil
	}
	m.setStatus("Starting attendance...", false)
	timer, id := m.timer, m.classroomID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return startedMsg{err: timer.Start(ctx, id)}
	}
}

// MarkCmd submits a mark attempt for the selected classroom.
func (m *Model) MarkCmd() tea.Cmd {
	if !m.permit(m.role().CanMarkAttendance(), "Only students can mark attendance.") {
		return nil
	}
	if !m.requireClassroom() {
		return nil
	}
	m.setStatus("Marking attendance...", false)
	client, id := m.client, m.classroomID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return markedMsg{result: attendance.Mark(ctx, client, id)}
	}
}

// LoadScoreCmd fetches the personal score and the classroom roster. Either
// may be refused by the server depending on the user's role.
func (m *Model) LoadScoreCmd() tea.Cmd {
	if !m.requireClassroom() {
		return nil
	}
	m.setStatus("Loading scores...", false)
	client, id := m.client, m.classroomID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		var msg scoreLoadedMsg
		msg.score, msg.scoreErr = client.Score(ctx, id)
		msg.roster, msg.rostErr = client.ClassroomScores(ctx, id)
		return msg
	}
}

// ExportCmd downloads the classroom's attendance CSV to path, or to
// attendance-<id>.csv in the export directory when path is empty.
func (m *Model) ExportCmd(path string) tea.Cmd {
	if !m.permit(m.role().CanExportAttendance(), "Only teachers can export attendance.") {
		return nil
	}
	if !m.requireClassroom() {
		return nil
	}
	if path == "" {
		path = filepath.Join(m.exportDir, "attendance-"+sanitize(m.classroomID)+".csv")
	}
	m.setStatus("Exporting attendance...", false)
	client, id := m.client, m.classroomID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		n, err := exportTo(ctx, client, id, path)
		return exportedMsg{path: path, bytes: n, err: err}
	}
}

func exportTo(ctx context.Context, client Client, id, path string) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", path, err)
	}

	n, err := client.ExportAttendanceCSV(ctx, id, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return 0, err
	}
	return n, nil
}

func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, id)
}

func (m Model) applyScore(msg scoreLoadedMsg) Model {
	if msg.scoreErr == nil {
		s := msg.score
		m.score = &s
	}

	if msg.rostErr == nil {
		rows := make([]table.Row, len(msg.roster))
		for i, r := range msg.roster {
			name := r.Name
			if name == "" {
				name = r.StudentID
			}
			pct := model.Score{TotalSessions: r.Total, AttendedSessions: r.Attended}.Percentage()
			rows[i] = table.Row{name, fmt.Sprint(r.Attended), fmt.Sprint(r.Total), fmt.Sprintf("%.0f%%", pct)}
		}
		m.roster.SetRows(rows)
		m.rows = len(rows)
	}

	switch {
	case msg.scoreErr != nil && msg.rostErr != nil:
		m.setStatus("Could not load scores: "+msg.scoreErr.Error(), true)
	default:
		m.setStatus("Scores updated.", false)
	}
	return m
}

func startError(err error) string {
	if errors.Is(err, attendance.ErrSessionActive) {
		return "An attendance window is already open."
	}
	return "Could not start attendance: " + err.Error()
}

func (m *Model) setStatus(s string, isErr bool) {
	m.status = s
	m.statusErr = isErr
}

// KeyHints returns the status bar hints for the actions the role may use.
func (m Model) KeyHints() string {
	if m.editing {
		return "enter save | esc cancel"
	}
	role := m.role()
	hints := []string{"e classroom"}
	if role.CanStartAttendance() {
		hints = append(hints, "s start")
	}
	if role.CanMarkAttendance() {
		hints = append(hints, "m mark")
	}
	hints = append(hints, "g score")
	if role.CanExportAttendance() {
		hints = append(hints, "x export")
	}
	hints = append(hints, "tab notifications")
	return strings.Join(hints, " | ")
}

// Status returns the current status line.
func (m Model) Status() string {
	return m.status
}

// View renders the attendance view.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(theme.TitleStyle.Render("Attendance"))
	b.WriteString("\n")

	if m.editing {
		b.WriteString(m.input.View())
	} else if m.classroomID == "" {
		b.WriteString(theme.HelpStyle.Render("No classroom selected. Press e to choose one."))
	} else {
		b.WriteString("Classroom: " + lipgloss.NewStyle().Bold(true).Render(m.classroomID))
	}
	b.WriteString("\n\n")

	b.WriteString(m.renderCountdown())
	b.WriteString("\n\n")

	if m.score != nil {
		fmt.Fprintf(&b, "Your attendance: %d of %d sessions (%.0f%%)\n\n",
			m.score.AttendedSessions, m.score.TotalSessions, m.score.Percentage())
	}

	if m.rows > 0 {
		b.WriteString(m.roster.View())
		b.WriteString("\n\n")
	}

	if m.status != "" {
		style := theme.SuccessStyle
		if m.statusErr {
			style = theme.ErrorStyle
		}
		b.WriteString(style.Render(m.status))
	}

	return theme.PanelStyle.
		Width(m.width - 4).
		Render(b.String())
}

func (m Model) renderCountdown() string {
	if !m.session.Active {
		return theme.HelpStyle.Render("No attendance window open.")
	}

	duration := m.session.DurationSeconds
	if duration <= 0 {
		duration = model.SessionDurationSeconds
	}
	pct := float64(m.session.RemainingSeconds) / float64(duration)
	remaining := fmt.Sprintf(" %d:%02d left",
		m.session.RemainingSeconds/60, m.session.RemainingSeconds%60)

	return m.progress.ViewAs(pct) + remaining
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	bar := width - 24
	if bar > 60 {
		bar = 60
	}
	if bar < 10 {
		bar = 10
	}
	m.progress.Width = bar
	m.roster.SetColumns(rosterColumns(width))
	m.roster.SetWidth(width - 8)
}
