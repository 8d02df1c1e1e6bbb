package app

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/classroom/internal/ui/command"
)

// executeCommand handles a command from the command palette.
func (m *Model) executeCommand(cmd command.CommandMsg) tea.Cmd {
	arg := strings.Join(cmd.Args, " ")

	switch cmd.Name {
	case "refresh", "sync":
		m.deps.Poller.Refresh()
		return nil
	case "notifications", "n":
		m.currentView = ViewNotifications
		return nil
	case "attendance", "a":
		m.currentView = ViewAttendance
		return nil
	case "classroom", "class":
		m.currentView = ViewAttendance
		if arg != "" {
			m.attendance.SetClassroom(arg)
		}
		return nil
	case "start":
		m.currentView = ViewAttendance
		return m.attendance.StartCmd()
	case "mark":
		m.currentView = ViewAttendance
		return m.attendance.MarkCmd()
	case "score", "scores":
		m.currentView = ViewAttendance
		return m.attendance.LoadScoreCmd()
	case "export":
		m.currentView = ViewAttendance
		return m.attendance.ExportCmd(arg)
	case "read all":
		m.deps.Store.MarkAllRead()
		m.notifications.Reload()
		return nil
	case "clear":
		m.deps.Store.Clear()
		m.notifications.Reload()
		return nil
	case "login":
		return m.openLogin("")
	case "logout":
		return m.logout()
	case "help":
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return nil
	case "quit", "q":
		return tea.Quit
	default:
		m.logger.Debug("unknown command")
		return nil
	}
}
