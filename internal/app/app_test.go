package app

import (
	"context"
	"io"
	gosync "sync"
	"testing"
	"time"

	"github.com/99designs/keyring"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nhle/classroom/internal/credential"
	"github.com/nhle/classroom/internal/model"
	"github.com/nhle/classroom/internal/notification"
	"github.com/nhle/classroom/internal/session"
	appsync "github.com/nhle/classroom/internal/sync"
	"github.com/nhle/classroom/internal/ui/classroom"
	"github.com/nhle/classroom/internal/ui/command"
	"github.com/nhle/classroom/internal/ui/login"
)

type fakePoller struct {
	mu      gosync.Mutex
	running bool
	starts  int
	stops   int
	refresh int
	forgets int
	results chan appsync.Result
}

func newFakePoller() *fakePoller {
	return &fakePoller{results: make(chan appsync.Result, 1)}
}

func (p *fakePoller) Start(context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = true
	p.starts++
}

func (p *fakePoller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = false
	p.stops++
}

func (p *fakePoller) Refresh() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refresh++
}

func (p *fakePoller) Forget(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.forgets++
	return nil
}

func (p *fakePoller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *fakePoller) Results() <-chan appsync.Result { return p.results }

type fakeTimer struct {
	updates chan model.AttendanceSession
}

func (t *fakeTimer) Start(context.Context, string) error { return nil }

func (t *fakeTimer) Session() model.AttendanceSession { return model.AttendanceSession{} }

func (t *fakeTimer) Updates() <-chan model.AttendanceSession { return t.updates }

type fakeClient struct{}

func (fakeClient) MarkAttendance(context.Context, string) error { return nil }
func (fakeClient) Score(context.Context, string) (model.Score, error) {
	return model.Score{}, nil
}
func (fakeClient) ClassroomScores(context.Context, string) ([]model.StudentScore, error) {
	return nil, nil
}
func (fakeClient) ExportAttendanceCSV(context.Context, string, io.Writer) (int64, error) {
	return 0, nil
}

type fixture struct {
	model   Model
	poller  *fakePoller
	session *session.Session
	store   *notification.Store
}

func newFixture(t *testing.T, opts ...session.Option) *fixture {
	t.Helper()
	sess := session.New(credential.New(keyring.NewArrayKeyring(nil)), opts...)
	f := &fixture{
		poller:  newFakePoller(),
		session: sess,
		store:   notification.NewStore(),
	}
	f.model = New(context.Background(), Deps{
		Session: sess,
		Store:   f.store,
		Poller:  f.poller,
		Alerts:  NewChannelAlerter(),
		Timer:   &fakeTimer{updates: make(chan model.AttendanceSession, 1)},
		Client:  fakeClient{},
		Logger:  zaptest.NewLogger(t),
	})
	f.send(tea.WindowSizeMsg{Width: 100, Height: 30})
	return f
}

func (f *fixture) send(msg tea.Msg) tea.Cmd {
	next, cmd := f.model.Update(msg)
	f.model = next.(Model)
	return cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestLoginStartsPollerAndLogoutStopsIt(t *testing.T) {
	f := newFixture(t)

	f.send(login.SubmittedMsg{Token: "tok"})
	assert.True(t, f.poller.Running())
	assert.Equal(t, ViewNotifications, f.model.currentView)

	cmd := f.send(runes("O"))
	assert.False(t, f.poller.Running())
	assert.False(t, f.session.Authenticated())

	require.NotNil(t, cmd)
	assert.Nil(t, cmd())
	assert.Equal(t, 1, f.poller.forgets)
}

func TestAuthErrorLogsOutAndOpensLogin(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.session.Login("tok"))
	require.True(t, f.poller.Running())

	f.send(pollResultMsg{result: appsync.Result{AuthError: true}})

	assert.False(t, f.session.Authenticated())
	assert.False(t, f.poller.Running())
	assert.Equal(t, ViewLogin, f.model.currentView)
	assert.Contains(t, f.model.View(), sessionExpiredText)
}

func TestExpiredTokenLogsOutOnSkippedTick(t *testing.T) {
	now := time.Unix(50_000, 0)
	f := newFixture(t, session.WithClock(func() time.Time { return now }))

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": now.Add(time.Minute).Unix(),
	}).SignedString([]byte("k"))
	require.NoError(t, err)
	require.NoError(t, f.session.Login(tok))
	f.store.Add(model.Notification{ID: "r1", Title: "Quiz"})
	require.True(t, f.poller.Running())

	now = now.Add(2 * time.Minute)
	f.send(pollResultMsg{result: appsync.Result{Skipped: true}})

	assert.False(t, f.poller.Running())
	assert.False(t, f.session.Expired())
	assert.Equal(t, 0, f.store.Len())
	assert.Equal(t, ViewLogin, f.model.currentView)
	assert.Contains(t, f.model.View(), sessionExpiredText)
}

func TestSkippedTickWhileSignedOutKeepsView(t *testing.T) {
	f := newFixture(t)

	f.send(pollResultMsg{result: appsync.Result{Skipped: true}})

	assert.Equal(t, ViewNotifications, f.model.currentView)
	assert.Equal(t, 0, f.poller.stops)
}

func TestClosedWindowAddsFeedEntry(t *testing.T) {
	f := newFixture(t)

	cmd := f.send(classroom.SessionMsg{Session: model.AttendanceSession{
		ClassroomID: "c1", DurationSeconds: 120, RemainingSeconds: 30, Active: true,
	}})
	require.NotNil(t, cmd)
	assert.Equal(t, 0, f.store.Len())

	f.send(classroom.SessionMsg{Session: model.AttendanceSession{ClassroomID: "c1", DurationSeconds: 120}})

	list := f.store.List()
	require.Len(t, list, 1)
	assert.Equal(t, model.SourceKindGeneric, list[0].SourceKind)
	assert.Equal(t, "Attendance window closed", list[0].Title)
	assert.Contains(t, list[0].Message, "c1")
	assert.Contains(t, f.model.View(), "🔔 1")
}

func TestDeliveredResultUpdatesBell(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.session.Login("tok"))

	n := model.Notification{ID: "r1", Title: "Quiz"}
	f.store.Add(n)
	f.send(pollResultMsg{result: appsync.Result{Delivered: []model.Notification{n}}})

	assert.Contains(t, f.model.View(), "🔔 1")
	assert.Contains(t, f.model.View(), "Quiz")
}

func TestTransportErrorShowsStatus(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.session.Login("tok"))

	f.send(pollResultMsg{result: appsync.Result{Err: assert.AnError}})
	assert.Contains(t, f.model.keyHints(), "Reminder check failed")
	assert.True(t, f.session.Authenticated())
}

func TestAlertBecomesToast(t *testing.T) {
	f := newFixture(t)

	cmd := f.send(alertMsg{alert: model.Alert{Title: "Quiz", Color: "#ef4444", Duration: model.AlertDuration}})
	require.NotNil(t, cmd)
	assert.Equal(t, 1, f.model.toasts.Len())
	assert.Contains(t, f.model.View(), "Quiz")
}

func TestTabAndCommands(t *testing.T) {
	f := newFixture(t)

	f.send(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, ViewAttendance, f.model.currentView)
	f.send(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, ViewNotifications, f.model.currentView)

	f.send(runes(":"))
	assert.Equal(t, ViewCommand, f.model.currentView)
	f.send(command.CommandMsg{Name: "classroom", Args: []string{"room-5"}})
	assert.Equal(t, ViewAttendance, f.model.currentView)
	assert.Equal(t, "room-5", f.model.attendance.ClassroomID())

	f.send(command.CommandMsg{Name: "refresh"})
	assert.Equal(t, 1, f.poller.refresh)
}

func TestEscLeavesCommandPalette(t *testing.T) {
	f := newFixture(t)

	f.send(runes(":"))
	f.send(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, ViewNotifications, f.model.currentView)
}
