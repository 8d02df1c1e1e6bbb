// Package toast renders ephemeral alerts stacked in the corner of the
// screen, each dismissed after its own duration.
package toast

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/classroom/internal/model"
	"github.com/nhle/classroom/internal/theme"
)

// MaxVisible caps the number of toasts shown at once. Further alerts wait
// in a queue and appear as visible ones expire.
const MaxVisible = 3

// MaxQueued bounds the waiting alerts; the oldest waiting alert is dropped
// beyond it.
const MaxQueued = 50

// ExpiredMsg dismisses the toast with the given id.
type ExpiredMsg struct {
	ID int
}

type entry struct {
	id    int
	alert model.Alert
}

// Model is the toast stack, newest at the bottom.
type Model struct {
	entries []entry
	queue   []entry
	nextID  int
	width   int
}

// New creates an empty toast stack.
func New(width int) Model {
	return Model{width: width}
}

// Push shows a, or queues it while MaxVisible toasts are on screen. The
// returned command dismisses it; it is nil for a queued alert.
func (m *Model) Push(a model.Alert) tea.Cmd {
	m.nextID++
	e := entry{id: m.nextID, alert: a}

	if len(m.entries) >= MaxVisible {
		m.queue = append(m.queue, e)
		if len(m.queue) > MaxQueued {
			m.queue = m.queue[len(m.queue)-MaxQueued:]
		}
		return nil
	}
	return m.show(e)
}

func (m *Model) show(e entry) tea.Cmd {
	m.entries = append(m.entries, e)

	d := e.alert.Duration
	if d <= 0 {
		d = model.AlertDuration
	}
	id := e.id
	return tea.Tick(d, func(time.Time) tea.Msg {
		return ExpiredMsg{ID: id}
	})
}

// Update removes expired toasts and shows queued ones in their place.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	expired, ok := msg.(ExpiredMsg)
	if !ok {
		return m, nil
	}

	kept := make([]entry, 0, len(m.entries))
	for _, e := range m.entries {
		if e.id != expired.ID {
			kept = append(kept, e)
		}
	}
	m.entries = kept

	var cmds []tea.Cmd
	for len(m.entries) < MaxVisible && len(m.queue) > 0 {
		next := m.queue[0]
		m.queue = m.queue[1:]
		cmds = append(cmds, m.show(next))
	}
	return m, tea.Batch(cmds...)
}

// Queued returns the number of alerts waiting for a free slot.
func (m Model) Queued() int {
	return len(m.queue)
}

// Len returns the number of visible toasts.
func (m Model) Len() int {
	return len(m.entries)
}

// View renders the stack, or "" when empty.
func (m Model) View() string {
	if len(m.entries) == 0 {
		return ""
	}

	maxWidth := m.width / 2
	if maxWidth < 20 {
		maxWidth = m.width
	}

	rendered := make([]string, len(m.entries))
	for i, e := range m.entries {
		body := lipgloss.NewStyle().Bold(true).Render(e.alert.Title)
		if e.alert.Message != "" {
			body += "\n" + e.alert.Message
		}
		rendered[i] = theme.ToastStyle(e.alert.Color).MaxWidth(maxWidth).Render(body)
	}
	return lipgloss.JoinVertical(lipgloss.Right, rendered...)
}

// SetWidth updates the available width.
func (m *Model) SetWidth(width int) {
	m.width = width
}
