package attendance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/classroom/internal/api"
)

func serviceErr(msg string) error {
	return fmt.Errorf("marking attendance for c1: %w", &api.Error{
		Status:  http.StatusBadRequest,
		Method:  http.MethodPost,
		Path:    "/attendance/mark",
		Message: msg,
	})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    Outcome
		message string
	}{
		{name: "success", err: nil, want: Success},
		{name: "already marked", err: serviceErr("already marked"), want: AlreadyMarked, message: "already marked"},
		{name: "geofence", err: serviceErr("geofence"), want: OutOfGeofence, message: "geofence"},
		{name: "expired", err: serviceErr("expired"), want: SessionExpired, message: "expired"},
		{name: "sentence with case", err: serviceErr("Attendance Already Marked for today"), want: AlreadyMarked, message: "Attendance Already Marked for today"},
		{name: "unrelated", err: serviceErr("classroom not found"), want: Unknown, message: "classroom not found"},
		{name: "plain error", err: errors.New("connection refused"), want: Unknown, message: "connection refused"},
		{
			name:    "transport error mentioning expiry",
			err:     fmt.Errorf("marking attendance for c1: %w", errors.New("x509: certificate has expired")),
			want:    Unknown,
			message: "marking attendance for c1: x509: certificate has expired",
		},
		{
			name:    "classroom id containing a phrase",
			err:     fmt.Errorf("marking attendance for geofence-lab: %w", errors.New("connection reset")),
			want:    Unknown,
			message: "marking attendance for geofence-lab: connection reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			assert.Equal(t, tt.want, got.Outcome)
			assert.Equal(t, tt.message, got.Message)
		})
	}
}

func TestClassifyOrder(t *testing.T) {
	// Earlier rules win when several phrases appear.
	got := Classify(serviceErr("already marked; session expired"))
	assert.Equal(t, AlreadyMarked, got.Outcome)

	got = Classify(serviceErr("outside geofence and expired"))
	assert.Equal(t, OutOfGeofence, got.Outcome)
}

func TestClassifyAuthErrorIsUnknown(t *testing.T) {
	got := Classify(&api.AuthError{Method: "POST", Path: "/attendance/mark", Message: "invalid token"})
	assert.Equal(t, Unknown, got.Outcome)
	assert.Equal(t, "invalid token", got.Message)
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "Attendance marked!", MarkResult{Outcome: Success}.UserMessage())
	assert.Contains(t, MarkResult{Outcome: OutOfGeofence}.UserMessage(), "geofence")
	assert.Equal(t, "classroom not found", MarkResult{Outcome: Unknown, Message: "classroom not found"}.UserMessage())
	assert.Equal(t, fallbackMessage, MarkResult{Outcome: Unknown}.UserMessage())
}

type markerFunc func(ctx context.Context, classroomID string) error

func (f markerFunc) MarkAttendance(ctx context.Context, classroomID string) error {
	return f(ctx, classroomID)
}

func TestMark(t *testing.T) {
	var gotID string
	res := Mark(context.Background(), markerFunc(func(_ context.Context, id string) error {
		gotID = id
		return serviceErr("Attendance session expired")
	}), "c1")

	assert.Equal(t, "c1", gotID)
	assert.Equal(t, SessionExpired, res.Outcome)
}
