package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLedgerClaimOnce(t *testing.T) {
	l := NewMemoryLedger(time.Hour)
	ctx := context.Background()

	first, err := l.Claim(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := l.Claim(ctx, "r1")
	require.NoError(t, err)
	assert.False(t, again)
}

func TestMemoryLedgerForgetsAfterTTL(t *testing.T) {
	now := time.Unix(0, 0)
	l := NewMemoryLedger(time.Minute)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	_, _ = l.Claim(ctx, "r1")
	_, _ = l.Claim(ctx, "r2")
	require.Equal(t, 2, l.Len())

	now = now.Add(2 * time.Minute)
	first, err := l.Claim(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, first)
	// r2 expired and was pruned.
	assert.Equal(t, 1, l.Len())
}

func TestMemoryLedgerReset(t *testing.T) {
	l := NewMemoryLedger(time.Hour)
	ctx := context.Background()

	_, _ = l.Claim(ctx, "r1")
	require.NoError(t, l.Reset(ctx))
	assert.Equal(t, 0, l.Len())

	first, err := l.Claim(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, first)
}
