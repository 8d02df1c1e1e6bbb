package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/classroom/internal/model"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "classroom.log")

	l, err := New(model.LogConfig{Path: path, Level: "debug"})
	require.NoError(t, err)

	l.Info("poll tick")
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "poll tick")
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(model.LogConfig{Path: filepath.Join(t.TempDir(), "x.log"), Level: "loud"})
	assert.Error(t, err)
}
