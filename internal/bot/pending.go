package bot

import (
	"sync"
	"time"
)

type pendingEntry struct {
	url     string
	savedAt time.Time
}

// PendingStore tracks the single outstanding URL per user. Entries expire
// so a stale link cannot be consumed by an unrelated later button press,
// and selection consumes the entry so a double press runs at most once.
type PendingStore struct {
	mu  sync.Mutex
	ttl time.Duration
	m   map[int64]pendingEntry
}

func NewPendingStore(ttl time.Duration) *PendingStore {
	return &PendingStore{
		ttl: ttl,
		m:   make(map[int64]pendingEntry),
	}
}

// Put records the user's pending URL, replacing any previous one.
func (s *PendingStore) Put(userID int64, url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[userID] = pendingEntry{url: url, savedAt: time.Now()}
}

// Take removes and returns the user's pending URL. Expired entries are
// dropped and reported as absent.
func (s *PendingStore) Take(userID int64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.m[userID]
	if !ok {
		return "", false
	}
	delete(s.m, userID)
	if s.ttl > 0 && time.Since(entry.savedAt) > s.ttl {
		return "", false
	}
	return entry.url, true
}

// Len returns the number of live entries, sweeping expired ones.
func (s *PendingStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.m {
		if s.ttl > 0 && time.Since(entry.savedAt) > s.ttl {
			delete(s.m, id)
		}
	}
	return len(s.m)
}
