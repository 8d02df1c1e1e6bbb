package model

import "time"

// Reminder is a scheduled item owned by the remote Reminder Service, as
// returned by GET /reminders/due.
type Reminder struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	// DateTime is kept as sent; the service does not always include a zone.
	DateTime string `json:"dateTime"`
	Color    string `json:"color"`
	Priority string `json:"priority"`
}

// Notification converts the reminder into an unread feed entry delivered
// at now.
func (r Reminder) Notification(now time.Time) Notification {
	return Notification{
		ID:         r.ID,
		Title:      r.Title,
		Message:    r.Description,
		Timestamp:  now,
		SourceKind: SourceKindReminder,
		Color:      r.Color,
		Priority:   r.Priority,
	}
}

// AlertDuration is how long a reminder alert stays on screen.
const AlertDuration = 5 * time.Second

// Alert is an ephemeral, auto-dismissing toast.
type Alert struct {
	Title    string
	Message  string
	Color    string
	Duration time.Duration
}

// Alert builds the toast announcing the reminder.
func (r Reminder) Alert() Alert {
	return Alert{
		Title:    r.Title,
		Message:  r.Description,
		Color:    r.Color,
		Duration: AlertDuration,
	}
}
