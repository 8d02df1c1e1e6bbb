package api

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/nhle/classroom/internal/model"
)

type classroomRequest struct {
	ClassroomID string `json:"classroomId"`
}

// StartAttendance opens an attendance window for the classroom.
func (c *Client) StartAttendance(ctx context.Context, classroomID string) error {
	if err := c.Post(ctx, "/attendance/start", classroomRequest{ClassroomID: classroomID}, nil); err != nil {
		return fmt.Errorf("starting attendance for %s: %w", classroomID, err)
	}
	return nil
}

// MarkAttendance submits the caller's "present" attempt for the classroom's
// open window. Rejections come back as *Error with the server message.
func (c *Client) MarkAttendance(ctx context.Context, classroomID string) error {
	if err := c.Post(ctx, "/attendance/mark", classroomRequest{ClassroomID: classroomID}, nil); err != nil {
		return fmt.Errorf("marking attendance for %s: %w", classroomID, err)
	}
	return nil
}

// Score returns the caller's attendance record in the classroom.
func (c *Client) Score(ctx context.Context, classroomID string) (model.Score, error) {
	var score model.Score
	if err := c.Get(ctx, "/attendance/score/"+url.PathEscape(classroomID), &score); err != nil {
		return model.Score{}, fmt.Errorf("fetching score for %s: %w", classroomID, err)
	}
	return score, nil
}

// ClassroomScores returns the attendance roster of the classroom.
func (c *Client) ClassroomScores(ctx context.Context, classroomID string) ([]model.StudentScore, error) {
	var scores []model.StudentScore
	if err := c.Get(ctx, "/attendance/classroom-score/"+url.PathEscape(classroomID), &scores); err != nil {
		return nil, fmt.Errorf("fetching roster for %s: %w", classroomID, err)
	}
	return scores, nil
}

// ExportAttendanceCSV streams the classroom's attendance report to w and
// returns the number of bytes written.
func (c *Client) ExportAttendanceCSV(ctx context.Context, classroomID string, w io.Writer) (int64, error) {
	n, err := c.stream(ctx, "/attendance/export/"+url.PathEscape(classroomID), "text/csv", w)
	if err != nil {
		return n, fmt.Errorf("exporting attendance for %s: %w", classroomID, err)
	}
	return n, nil
}
