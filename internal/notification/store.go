// Package notification holds the in-memory notification feed shown by the
// bell: a bounded, newest-first sequence with read/unread state.
package notification

import (
	gosync "sync"
	"time"

	"github.com/nhle/classroom/internal/model"
)

// Capacity is the maximum number of notifications kept in the feed.
const Capacity = 50

// Store is a fixed-capacity ring buffer of notifications ordered newest
// first. Inserting into a full store evicts the oldest entry. Every method
// is safe for concurrent use and applied atomically.
type Store struct {
	mu     gosync.Mutex
	buf    [Capacity]model.Notification
	head   int // slot of the newest entry
	n      int
	unread int
	now    func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{now: time.Now}
}

// slot maps a position (0 = newest) to its index in buf.
func (s *Store) slot(pos int) int {
	return (s.head + pos) % Capacity
}

// Add inserts n at the head of the feed, evicting the oldest entry when the
// store is full.
func (s *Store) Add(n model.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.head = (s.head + Capacity - 1) % Capacity
	if s.n == Capacity {
		// The new head slot is the old tail.
		if !s.buf[s.head].Read {
			s.unread--
		}
	} else {
		s.n++
	}

	s.buf[s.head] = n
	if !n.Read {
		s.unread++
	}
}

// AddGeneric inserts an unread notification that did not originate from a
// reminder and returns it.
func (s *Store) AddGeneric(title, message string) model.Notification {
	n := model.NewGenericNotification(title, message, s.now())
	s.Add(n)
	return n
}

// MarkRead marks the entries with the given id as read. Unknown or
// already-read ids are ignored.
func (s *Store) MarkRead(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for pos := 0; pos < s.n; pos++ {
		e := &s.buf[s.slot(pos)]
		if e.ID != id || e.Read {
			continue
		}
		e.Read = true
		s.decUnread()
	}
}

// MarkAllRead marks every entry as read.
func (s *Store) MarkAllRead() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for pos := 0; pos < s.n; pos++ {
		s.buf[s.slot(pos)].Read = true
	}
	s.unread = 0
}

// Remove deletes the entries with the given id, keeping the order of the
// rest. Unknown ids are ignored.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := 0
	for pos := 0; pos < s.n; pos++ {
		e := s.buf[s.slot(pos)]
		if e.ID == id {
			if !e.Read {
				s.decUnread()
			}
			continue
		}
		s.buf[s.slot(kept)] = e
		kept++
	}
	for pos := kept; pos < s.n; pos++ {
		s.buf[s.slot(pos)] = model.Notification{}
	}
	s.n = kept
}

// Clear empties the feed.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf = [Capacity]model.Notification{}
	s.head = 0
	s.n = 0
	s.unread = 0
}

// List returns a copy of the feed, newest first.
func (s *Store) List() []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Notification, s.n)
	for pos := 0; pos < s.n; pos++ {
		out[pos] = s.buf[s.slot(pos)]
	}
	return out
}

// Len returns the number of entries in the feed.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

// UnreadCount returns the number of unread entries.
func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

func (s *Store) decUnread() {
	if s.unread > 0 {
		s.unread--
	}
}
