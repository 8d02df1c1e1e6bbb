package testutil

import (
	"testing"
	"time"

	"github.com/nhle/classroom/internal/store"
)

// NewTestLedger creates an in-memory SQLiteLedger with all migrations applied.
// It automatically closes the ledger when the test completes.
func NewTestLedger(t *testing.T, ttl time.Duration) *store.SQLiteLedger {
	t.Helper()

	l, err := store.NewSQLiteLedger(":memory:", ttl)
	if err != nil {
		t.Fatalf("creating test ledger: %v", err)
	}

	t.Cleanup(func() {
		if err := l.Close(); err != nil {
			t.Errorf("closing test ledger: %v", err)
		}
	})

	return l
}
