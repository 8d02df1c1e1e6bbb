package sync

import (
	"context"
	gosync "sync"
	"time"
)

// Ledger remembers which reminders have been delivered so that a reminder
// that stays due across ticks is announced once.
type Ledger interface {
	// Claim records id as delivered and reports whether this was the first
	// claim within the ledger's retention window.
	Claim(ctx context.Context, id string) (bool, error)

	// Reset forgets every delivered id.
	Reset(ctx context.Context) error
}

// MemoryLedger is a process-local Ledger. Entries older than the retention
// window are pruned on every claim, which bounds its size.
type MemoryLedger struct {
	mu   gosync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
	now  func() time.Time
}

// NewMemoryLedger creates a ledger that forgets ids after ttl.
func NewMemoryLedger(ttl time.Duration) *MemoryLedger {
	return &MemoryLedger{
		ttl:  ttl,
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
}

// Claim implements Ledger.
func (l *MemoryLedger) Claim(_ context.Context, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for k, at := range l.seen {
		if now.Sub(at) >= l.ttl {
			delete(l.seen, k)
		}
	}

	if _, ok := l.seen[id]; ok {
		return false, nil
	}
	l.seen[id] = now
	return true, nil
}

// Reset implements Ledger.
func (l *MemoryLedger) Reset(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.seen)
	return nil
}

// Len returns the number of remembered ids.
func (l *MemoryLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seen)
}
