package model

import "time"

// SessionDurationSeconds is the length of an attendance window.
const SessionDurationSeconds = 120

// AttendanceSession is the client-side shadow of a server attendance window.
// It drives the countdown display only; the server decides whether a mark
// attempt is accepted.
type AttendanceSession struct {
	ClassroomID      string    `json:"classroom_id"`
	StartedAt        time.Time `json:"started_at"`
	DurationSeconds  int       `json:"duration_seconds"`
	RemainingSeconds int       `json:"remaining_seconds"`
	Active           bool      `json:"active"`
}

// Closed reports whether the snapshot is a window that ran out.
func (s AttendanceSession) Closed() bool {
	return !s.Active && s.RemainingSeconds == 0 && s.ClassroomID != ""
}

// Score is a student's attendance record in one classroom.
type Score struct {
	TotalSessions    int `json:"totalSessions"`
	AttendedSessions int `json:"attendedSessions"`
}

// Percentage returns the share of attended sessions in [0, 100].
func (s Score) Percentage() float64 {
	if s.TotalSessions <= 0 {
		return 0
	}
	return float64(s.AttendedSessions) * 100 / float64(s.TotalSessions)
}

// StudentScore is one row of a classroom's attendance roster.
type StudentScore struct {
	StudentID string `json:"studentId"`
	Name      string `json:"name"`
	Attended  int    `json:"attended"`
	Total     int    `json:"total"`
}
