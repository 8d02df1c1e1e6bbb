package api

import (
	"context"
	"fmt"

	"github.com/nhle/classroom/internal/model"
)

// DueReminders returns the reminders that are currently due, in the order
// the service lists them.
func (c *Client) DueReminders(ctx context.Context) ([]model.Reminder, error) {
	var reminders []model.Reminder
	if err := c.Get(ctx, "/reminders/due", &reminders); err != nil {
		return nil, fmt.Errorf("fetching due reminders: %w", err)
	}
	return reminders, nil
}
