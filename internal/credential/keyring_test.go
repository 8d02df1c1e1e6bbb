package credential

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	s := New(keyring.NewArrayKeyring(nil))

	_, err := s.Get("session-token")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set("session-token", "abc"))
	got, err := s.Get("session-token")
	require.NoError(t, err)
	assert.Equal(t, "abc", got)

	require.NoError(t, s.Delete("session-token"))
	_, err = s.Get("session-token")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting again is fine.
	assert.NoError(t, s.Delete("session-token"))
}
