package app

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/classroom/internal/model"
)

// alertBuffer is how many alerts may queue while the UI is busy.
const alertBuffer = 32

// ChannelAlerter hands poller alerts to the UI goroutine. Alert never
// blocks; alerts beyond the buffer are dropped, the notifications they
// belong to are still stored.
type ChannelAlerter struct {
	ch chan model.Alert
}

// NewChannelAlerter creates an alerter with a bounded queue.
func NewChannelAlerter() *ChannelAlerter {
	return &ChannelAlerter{ch: make(chan model.Alert, alertBuffer)}
}

// Alert implements sync.Alerter.
func (a *ChannelAlerter) Alert(al model.Alert) {
	select {
	case a.ch <- al:
	default:
	}
}

// alertMsg carries one alert into the Bubble Tea loop.
type alertMsg struct {
	alert model.Alert
}

// waitForAlert returns a command that blocks until the next alert.
func (a *ChannelAlerter) waitForAlert() tea.Cmd {
	return func() tea.Msg {
		return alertMsg{alert: <-a.ch}
	}
}
