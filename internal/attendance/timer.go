// Package attendance drives the client side of attendance windows: the
// countdown a teacher starts and the classification of a student's mark attempt.
package attendance

import (
	"context"
	"errors"
	gosync "sync"
	"time"

	"github.com/nhle/classroom/internal/metrics"
	"github.com/nhle/classroom/internal/model"
)

// ErrSessionActive is returned by Start while a window is presumed open or
// a start call is still in flight.
var ErrSessionActive = errors.New("attendance session already active")

// ErrTimerClosed is returned by Start once Close was called.
var ErrTimerClosed = errors.New("attendance timer closed")

// Starter opens an attendance window on the server.
type Starter interface {
	StartAttendance(ctx context.Context, classroomID string) error
}

// tickerFunc returns a tick channel and the function that stops it.
type tickerFunc func(d time.Duration) (<-chan time.Time, func())

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Timer is the local countdown of an attendance window: Idle, then Active
// for SessionDurationSeconds one-second ticks, then Idle again. It is
// advisory; the server may reject a mark attempt while the timer is still
// active.
type Timer struct {
	starter   Starter
	newTicker tickerFunc
	now       func() time.Time

	mu       gosync.Mutex
	session  model.AttendanceSession
	starting bool
	closed   bool
	gen      uint64
	stop     chan struct{}
	done     chan struct{}

	updates chan model.AttendanceSession
}

// NewTimer creates an idle timer that opens windows through starter.
func NewTimer(starter Starter) *Timer {
	return &Timer{
		starter:   starter,
		newTicker: realTicker,
		now:       time.Now,
		updates:   make(chan model.AttendanceSession, 1),
	}
}

// Start opens a window for classroomID. It is rejected with
// ErrSessionActive, without contacting the server, while a window is
// active. The countdown begins only once the server accepted the call.
func (t *Timer) Start(ctx context.Context, classroomID string) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrTimerClosed
	}
	if t.session.Active || t.starting {
		t.mu.Unlock()
		metrics.AttendanceStarts.WithLabelValues("rejected").Inc()
		return ErrSessionActive
	}
	t.starting = true
	t.mu.Unlock()

	err := t.starter.StartAttendance(ctx, classroomID)

	t.mu.Lock()
	t.starting = false
	if err != nil {
		t.mu.Unlock()
		metrics.AttendanceStarts.WithLabelValues("failed").Inc()
		return err
	}
	if t.closed {
		// The server opened the window but the host is shutting down.
		t.mu.Unlock()
		metrics.AttendanceStarts.WithLabelValues("closed").Inc()
		return ErrTimerClosed
	}

	t.gen++
	t.session = model.AttendanceSession{
		ClassroomID:      classroomID,
		StartedAt:        t.now(),
		DurationSeconds:  model.SessionDurationSeconds,
		RemainingSeconds: model.SessionDurationSeconds,
		Active:           true,
	}
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	snapshot := t.session
	go t.run(t.gen, t.stop, t.done)
	t.mu.Unlock()

	metrics.AttendanceStarts.WithLabelValues("success").Inc()
	t.publish(snapshot)
	return nil
}

// run counts the window down once per second.
func (t *Timer) run(gen uint64, stop, done chan struct{}) {
	defer close(done)

	tick, stopTicker := t.newTicker(time.Second)
	defer stopTicker()

	for {
		select {
		case <-stop:
			return
		case <-tick:
			snapshot, finished, ok := t.advance(gen)
			if !ok {
				return
			}
			t.publish(snapshot)
			if finished {
				return
			}
		}
	}
}

// advance applies one tick if gen is still the current window.
func (t *Timer) advance(gen uint64) (model.AttendanceSession, bool, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.gen != gen || !t.session.Active {
		return model.AttendanceSession{}, false, false
	}

	t.session.RemainingSeconds--
	if t.session.RemainingSeconds <= 0 {
		t.session.RemainingSeconds = 0
		t.session.Active = false
	}
	return t.session, !t.session.Active, true
}

// publish replaces any unread update with the latest snapshot.
func (t *Timer) publish(s model.AttendanceSession) {
	select {
	case <-t.updates:
	default:
	}
	select {
	case t.updates <- s:
	default:
	}
}

// Remaining returns the seconds left in the current window, 0 when idle.
func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session.RemainingSeconds
}

// Active reports whether a window is presumed open.
func (t *Timer) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session.Active
}

// Session returns a snapshot of the current or last window.
func (t *Timer) Session() model.AttendanceSession {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session
}

// Updates delivers the latest session snapshot after every change. Only the
// most recent snapshot is buffered.
func (t *Timer) Updates() <-chan model.AttendanceSession {
	return t.updates
}

// Close stops the countdown goroutine for host shutdown. The window state
// is left as is and no further tick applies after Close returns. A Start
// still in flight returns ErrTimerClosed without counting down.
func (t *Timer) Close() {
	t.mu.Lock()
	t.closed = true
	t.gen++
	stop, done := t.stop, t.done
	t.stop, t.done = nil, nil
	t.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}
