package attendance

import (
	"context"
	"errors"
	"strings"

	"github.com/nhle/classroom/internal/api"
	"github.com/nhle/classroom/internal/metrics"
)

// Outcome is the category of a mark attempt.
type Outcome int

const (
	Success Outcome = iota
	AlreadyMarked
	OutOfGeofence
	SessionExpired
	Unknown
)

// String returns the metric/log label of the outcome.
func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case AlreadyMarked:
		return "already_marked"
	case OutOfGeofence:
		return "out_of_geofence"
	case SessionExpired:
		return "session_expired"
	default:
		return "unknown"
	}
}

// MarkResult is the classified result of one mark attempt.
type MarkResult struct {
	Outcome Outcome
	// Message is the raw service message, kept for Unknown results.
	Message string
}

// Phrases the Attendance Service puts in its rejection messages. Matching
// is a case-insensitive substring search, checked in this order.
const (
	phraseAlreadyMarked = "already marked"
	phraseGeofence      = "geofence"
	phraseExpired       = "expired"
)

// fallbackMessage is used when a failed call carries no message at all.
const fallbackMessage = "Failed to mark attendance"

// Classify maps the error returned by a mark-attendance call to a
// MarkResult. A nil error is Success. Only the message from the service's
// error body is matched; any other error is Unknown with its text.
func Classify(err error) MarkResult {
	if err == nil {
		return MarkResult{Outcome: Success}
	}

	msg, ok := serviceMessage(err)
	if !ok {
		if msg = err.Error(); msg == "" {
			msg = fallbackMessage
		}
		return MarkResult{Outcome: Unknown, Message: msg}
	}

	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, phraseAlreadyMarked):
		return MarkResult{Outcome: AlreadyMarked, Message: msg}
	case strings.Contains(lower, phraseGeofence):
		return MarkResult{Outcome: OutOfGeofence, Message: msg}
	case strings.Contains(lower, phraseExpired):
		return MarkResult{Outcome: SessionExpired, Message: msg}
	default:
		return MarkResult{Outcome: Unknown, Message: msg}
	}
}

// serviceMessage returns the message from the service's error body, if the
// call got that far and the body carried one.
func serviceMessage(err error) (string, bool) {
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message, true
	}
	var authErr *api.AuthError
	if errors.As(err, &authErr) && authErr.Message != "" {
		return authErr.Message, true
	}
	return "", false
}

// UserMessage returns the text shown to the student.
func (r MarkResult) UserMessage() string {
	switch r.Outcome {
	case Success:
		return "Attendance marked!"
	case AlreadyMarked:
		return "You have already marked attendance for this session."
	case OutOfGeofence:
		return "You are not within the allowed geofence (30m radius)."
	case SessionExpired:
		return "Attendance session has expired. Please wait for the next session."
	default:
		if r.Message == "" {
			return fallbackMessage
		}
		return r.Message
	}
}

// Marker submits a mark-attendance attempt.
type Marker interface {
	MarkAttendance(ctx context.Context, classroomID string) error
}

// Mark submits one attempt for classroomID and classifies the result.
func Mark(ctx context.Context, m Marker, classroomID string) MarkResult {
	res := Classify(m.MarkAttendance(ctx, classroomID))
	metrics.MarkAttempts.WithLabelValues(res.Outcome.String()).Inc()
	return res
}
