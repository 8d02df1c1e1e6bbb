package notifications

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/classroom/internal/keys"
	"github.com/nhle/classroom/internal/notification"
	"github.com/nhle/classroom/internal/theme"
)

// ChangedMsg is sent after the view mutated the store, so the root model
// can refresh the bell.
type ChangedMsg struct{}

// Model is the notification list view. It renders the store's newest-first
// listing and applies the read/remove actions to the store directly.
type Model struct {
	list   list.Model
	store  *notification.Store
	keys   *keys.KeyMap
	width  int
	height int
}

// New creates a notification list over store.
func New(s *notification.Store, k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height-2)
	l.Title = "Notifications"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()
	l.Styles.Title = theme.HeaderStyle

	m := Model{
		list:   l,
		store:  s,
		keys:   k,
		width:  width,
		height: height,
	}
	m.Reload()
	return m
}

// Reload copies the current store contents into the list.
func (m *Model) Reload() {
	entries := m.store.List()
	items := make([]list.Item, len(entries))
	for i, n := range entries {
		items[i] = Item{Notification: n}
	}
	m.list.SetItems(items)
	m.list.Title = fmt.Sprintf("Notifications (%d unread)", m.store.UnreadCount())
}

// Update handles messages for the notification list.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if handled, cmd := m.handleKey(msg); handled {
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (bool, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.MarkRead):
		if it, ok := m.list.SelectedItem().(Item); ok {
			m.store.MarkRead(it.Notification.ID)
		}

	case key.Matches(msg, m.keys.MarkAllRead):
		m.store.MarkAllRead()

	case key.Matches(msg, m.keys.Remove):
		if it, ok := m.list.SelectedItem().(Item); ok {
			m.store.Remove(it.Notification.ID)
		}

	case key.Matches(msg, m.keys.ClearAll):
		m.store.Clear()

	default:
		return false, nil
	}

	m.Reload()
	return true, changed
}

func changed() tea.Msg { return ChangedMsg{} }

// View renders the notification list.
func (m Model) View() string {
	if len(m.list.Items()) == 0 {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("No notifications.\n\nDue reminders appear here as they arrive.")
	}
	return m.list.View()
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
}
