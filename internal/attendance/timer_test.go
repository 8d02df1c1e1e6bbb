package attendance

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/classroom/internal/model"
)

type fakeStarter struct {
	calls   atomic.Int32
	err     error
	release chan struct{}
}

func (f *fakeStarter) StartAttendance(ctx context.Context, classroomID string) error {
	f.calls.Add(1)
	if f.release != nil {
		<-f.release
	}
	return f.err
}

// manualTicker hands ticks to the timer one by one.
type manualTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func newManualTimer(s Starter) (*Timer, *manualTicker) {
	mt := &manualTicker{ch: make(chan time.Time)}
	tm := NewTimer(s)
	tm.newTicker = func(time.Duration) (<-chan time.Time, func()) {
		return mt.ch, func() { mt.stopped.Store(true) }
	}
	tm.now = func() time.Time { return time.Unix(500, 0) }
	return tm, mt
}

// tick delivers n ticks; an unbuffered send returns once the timer loop
// took the tick, which orders it after the previous tick completed.
func (m *manualTicker) tick(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case m.ch <- time.Now():
		case <-time.After(time.Second):
			t.Fatalf("timer stopped consuming ticks after %d", i)
		}
	}
}

func TestStartActivatesCountdown(t *testing.T) {
	s := &fakeStarter{}
	tm, _ := newManualTimer(s)
	defer tm.Close()

	require.NoError(t, tm.Start(context.Background(), "c1"))

	assert.True(t, tm.Active())
	assert.Equal(t, 120, tm.Remaining())
	sess := tm.Session()
	assert.Equal(t, "c1", sess.ClassroomID)
	assert.Equal(t, model.SessionDurationSeconds, sess.DurationSeconds)
	assert.Equal(t, time.Unix(500, 0), sess.StartedAt)
	assert.EqualValues(t, 1, s.calls.Load())
}

func TestCountdownExpiresWithoutServerCall(t *testing.T) {
	s := &fakeStarter{}
	tm, mt := newManualTimer(s)
	defer tm.Close()

	require.NoError(t, tm.Start(context.Background(), "c1"))

	mt.tick(t, 60)
	assert.Eventually(t, func() bool { return tm.Remaining() <= 61 }, time.Second, time.Millisecond)
	assert.True(t, tm.Active())

	mt.tick(t, 60)
	assert.Eventually(t, func() bool { return !tm.Active() }, time.Second, time.Millisecond)
	assert.Equal(t, 0, tm.Remaining())
	assert.EqualValues(t, 1, s.calls.Load())
	assert.Eventually(t, mt.stopped.Load, time.Second, time.Millisecond)
}

func TestStartRejectedWhileActive(t *testing.T) {
	s := &fakeStarter{}
	tm, _ := newManualTimer(s)
	defer tm.Close()

	require.NoError(t, tm.Start(context.Background(), "c1"))
	err := tm.Start(context.Background(), "c1")

	assert.ErrorIs(t, err, ErrSessionActive)
	assert.EqualValues(t, 1, s.calls.Load())
}

func TestStartRejectedWhileStartInFlight(t *testing.T) {
	s := &fakeStarter{release: make(chan struct{})}
	tm, _ := newManualTimer(s)
	defer tm.Close()

	errCh := make(chan error, 1)
	go func() { errCh <- tm.Start(context.Background(), "c1") }()

	assert.Eventually(t, func() bool { return s.calls.Load() == 1 }, time.Second, time.Millisecond)
	assert.ErrorIs(t, tm.Start(context.Background(), "c1"), ErrSessionActive)

	close(s.release)
	require.NoError(t, <-errCh)
	assert.True(t, tm.Active())
}

func TestFailedStartStaysIdle(t *testing.T) {
	s := &fakeStarter{err: errors.New("forbidden")}
	tm, _ := newManualTimer(s)
	defer tm.Close()

	err := tm.Start(context.Background(), "c1")
	require.Error(t, err)
	assert.False(t, tm.Active())
	assert.Equal(t, 0, tm.Remaining())

	// A failed start does not block the next attempt.
	s.err = nil
	require.NoError(t, tm.Start(context.Background(), "c1"))
	assert.True(t, tm.Active())
}

func TestRestartAfterExpiry(t *testing.T) {
	s := &fakeStarter{}
	tm, mt := newManualTimer(s)
	defer tm.Close()

	require.NoError(t, tm.Start(context.Background(), "c1"))
	mt.tick(t, model.SessionDurationSeconds)
	assert.Eventually(t, func() bool { return !tm.Active() }, time.Second, time.Millisecond)

	require.NoError(t, tm.Start(context.Background(), "c2"))
	assert.Equal(t, 120, tm.Remaining())
	assert.Equal(t, "c2", tm.Session().ClassroomID)
}

func TestUpdatesCarryLatestSnapshot(t *testing.T) {
	s := &fakeStarter{}
	tm, mt := newManualTimer(s)
	defer tm.Close()

	require.NoError(t, tm.Start(context.Background(), "c1"))
	mt.tick(t, 3)

	assert.Eventually(t, func() bool {
		select {
		case snap := <-tm.Updates():
			return snap.RemainingSeconds == 117
		default:
			return false
		}
	}, time.Second, time.Millisecond)
}

func TestCloseStopsTicks(t *testing.T) {
	s := &fakeStarter{}
	tm, mt := newManualTimer(s)

	require.NoError(t, tm.Start(context.Background(), "c1"))
	mt.tick(t, 1)
	tm.Close()

	remaining := tm.Remaining()
	select {
	case mt.ch <- time.Now():
		t.Fatal("tick consumed after Close")
	case <-time.After(20 * time.Millisecond):
	}
	assert.Equal(t, remaining, tm.Remaining())
	assert.True(t, mt.stopped.Load())

	// Closing twice is harmless.
	tm.Close()
}

func TestCloseDuringInFlightStartKeepsTimerIdle(t *testing.T) {
	s := &fakeStarter{release: make(chan struct{})}
	tm, mt := newManualTimer(s)

	errCh := make(chan error, 1)
	go func() { errCh <- tm.Start(context.Background(), "c1") }()
	assert.Eventually(t, func() bool { return s.calls.Load() == 1 }, time.Second, time.Millisecond)

	tm.Close()
	close(s.release)

	assert.ErrorIs(t, <-errCh, ErrTimerClosed)
	assert.False(t, tm.Active())
	assert.Equal(t, 0, tm.Remaining())
	select {
	case mt.ch <- time.Now():
		t.Fatal("tick consumed after Close")
	case <-time.After(20 * time.Millisecond):
	}

	assert.ErrorIs(t, tm.Start(context.Background(), "c1"), ErrTimerClosed)
	assert.EqualValues(t, 1, s.calls.Load())
}
