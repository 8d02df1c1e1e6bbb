package notifications

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/classroom/internal/model"
	"github.com/nhle/classroom/internal/theme"
)

// Item wraps a model.Notification so it can be used in a bubbles/list.
type Item struct {
	Notification model.Notification
}

// FilterValue returns the string used for fuzzy filtering.
func (i Item) FilterValue() string { return i.Notification.Title }

// Title returns the notification title for the list.
func (i Item) Title() string { return i.Notification.Title }

// Description returns the notification body.
func (i Item) Description() string { return i.Notification.Message }

// ItemDelegate implements list.ItemDelegate for rendering notifications.
type ItemDelegate struct {
	now func() time.Time
}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 2 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a notification: a title line with an unread dot, priority
// and age, then the message.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(Item)
	if !ok {
		return
	}
	n := it.Notification

	dot := " "
	titleStyle := theme.ReadStyle
	if !n.Read {
		dot = lipgloss.NewStyle().Foreground(colorOf(n)).Render("●")
		titleStyle = theme.UnreadStyle
	}

	pri := ""
	if n.Priority != "" {
		pri = " " + theme.PriorityStyle(n.Priority).Render(n.Priority)
	}

	now := time.Now
	if d.now != nil {
		now = d.now
	}
	age := lipgloss.NewStyle().
		Foreground(theme.ColorGray).
		Render(relativeTime(n.Timestamp, now()))

	line := fmt.Sprintf("%s %s%s  %s\n  %s",
		dot, titleStyle.Render(n.Title), pri, age,
		theme.ReadStyle.Render(n.Message),
	)

	if index == m.Index() {
		line = theme.SelectedStyle.Render(line)
	} else {
		line = lipgloss.NewStyle().PaddingLeft(2).Render(line)
	}

	fmt.Fprint(w, line)
}

func colorOf(n model.Notification) lipgloss.TerminalColor {
	if n.Color == "" {
		return theme.ColorBlue
	}
	return lipgloss.Color(n.Color)
}

// relativeTime returns a human-friendly relative time string.
func relativeTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
