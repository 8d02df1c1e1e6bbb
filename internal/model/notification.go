package model

import (
	"time"

	"github.com/google/uuid"
)

// SourceKind identifies what produced a notification.
type SourceKind string

const (
	SourceKindReminder SourceKind = "reminder"
	SourceKindGeneric  SourceKind = "generic"
)

// Notification represents an entry in the in-app notification feed.
type Notification struct {
	// ID is the identity of this notification. For reminder notifications
	// it equals the id of the source reminder.
	ID string `json:"id"`

	// Title is the short headline shown in the feed and the alert.
	Title string `json:"title"`

	// Message is the body text, taken from the reminder description.
	Message string `json:"message"`

	// Timestamp is when this notification was delivered to the client.
	Timestamp time.Time `json:"timestamp"`

	// Read indicates whether the user has seen this notification. It is the
	// only field mutated after creation.
	Read bool `json:"read"`

	// SourceKind identifies what produced this notification.
	SourceKind SourceKind `json:"source_kind"`

	// Color is the display color of the source reminder (e.g. "#3b82f6").
	Color string `json:"color,omitempty"`

	// Priority is the priority label of the source reminder.
	Priority string `json:"priority,omitempty"`
}

// NewGenericNotification builds an unread notification that did not come
// from a reminder. It is assigned a fresh random id.
func NewGenericNotification(title, message string, now time.Time) Notification {
	return Notification{
		ID:         uuid.NewString(),
		Title:      title,
		Message:    message,
		Timestamp:  now,
		SourceKind: SourceKindGeneric,
	}
}
