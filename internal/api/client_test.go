package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticToken(tok string) TokenSource {
	return func() (string, bool) { return tok, tok != "" }
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", staticToken("secret"), 5*time.Second)
}

func TestDueRemindersSendsBearerAndDecodes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/reminders/due", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":"r1","title":"Quiz","description":"Chapter 3","dateTime":"2026-10-14T09:00:00Z","color":"#ef4444","priority":"high"},
			{"id":"r2","title":"Lab","description":"Bring goggles","dateTime":"2026-10-14T10:00:00Z","color":"#22c55e","priority":"low"}
		]`))
	})

	reminders, err := c.DueReminders(context.Background())
	require.NoError(t, err)
	require.Len(t, reminders, 2)
	assert.Equal(t, "r1", reminders[0].ID)
	assert.Equal(t, "Chapter 3", reminders[0].Description)
	assert.Equal(t, "#22c55e", reminders[1].Color)
	assert.Equal(t, "2026-10-14T10:00:00Z", reminders[1].DateTime)
}

func TestDueRemindersToleratesLooseDateTime(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":"r1","title":"Quiz","dateTime":"2024-05-01T10:00:00"},
			{"id":"r2","title":"Lab","dateTime":""},
			{"id":"r3","title":"Essay"}
		]`))
	})

	reminders, err := c.DueReminders(context.Background())
	require.NoError(t, err)
	require.Len(t, reminders, 3)
	assert.Equal(t, "2024-05-01T10:00:00", reminders[0].DateTime)
	assert.Empty(t, reminders[1].DateTime)
	assert.Equal(t, "r3", reminders[2].ID)
}

func TestNoCredentialSkipsRequest(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := NewClient(srv.URL, staticToken(""), time.Second)
	_, err := c.DueReminders(context.Background())
	assert.ErrorIs(t, err, ErrNoCredential)
	assert.False(t, called)
}

func TestUnauthorizedMapsToAuthError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"token expired"}`))
	})

	_, err := c.DueReminders(context.Background())
	require.Error(t, err)
	assert.True(t, IsAuthError(err))

	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, "token expired", authErr.Message)
}

func TestMarkAttendanceErrorCarriesServerMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/attendance/mark", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "class-1", body["classroomId"])
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"You are outside the geofence"}`))
	})

	err := c.MarkAttendance(context.Background(), "class-1")
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "You are outside the geofence", apiErr.Message)
	assert.False(t, IsAuthError(err))
}

func TestErrorWithPlainBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	})

	err := c.StartAttendance(context.Background(), "class-1")
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "boom", apiErr.Message)
}

func TestStartAttendanceNoContent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/attendance/start", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	assert.NoError(t, c.StartAttendance(context.Background(), "class-1"))
}

func TestScoreAndRoster(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/attendance/score/class-1":
			_, _ = w.Write([]byte(`{"totalSessions":10,"attendedSessions":7}`))
		case "/attendance/classroom-score/class-1":
			_, _ = w.Write([]byte(`[{"studentId":"s1","name":"Ada","attended":3,"total":4}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	score, err := c.Score(context.Background(), "class-1")
	require.NoError(t, err)
	assert.Equal(t, 10, score.TotalSessions)
	assert.InDelta(t, 70.0, score.Percentage(), 0.001)

	roster, err := c.ClassroomScores(context.Background(), "class-1")
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, "Ada", roster[0].Name)
}

func TestExportAttendanceCSV(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/attendance/export/class-1", r.URL.Path)
		assert.Equal(t, "text/csv", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte("name,attended\nAda,3\n"))
	})

	var buf bytes.Buffer
	n, err := c.ExportAttendanceCSV(context.Background(), "class-1", &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	assert.Equal(t, "name,attended\nAda,3\n", buf.String())
}
