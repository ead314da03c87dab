package engine

import (
	"sync"
	"time"
)

// onceKeyLimit triggers a prune of expired keys before inserting new ones.
const onceKeyLimit = 4096

// onceSet remembers keys for a bounded window so one-shot audit entries
// (denials, suppressions) fire once per evaluation episode rather than on
// every re-evaluation. Keys expire after the TTL, so the set stays bounded
// and stale keys from long-gone shifts do not accumulate.
type onceSet struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
}

func newOnceSet(ttl time.Duration) *onceSet {
	return &onceSet{ttl: ttl, seen: map[string]time.Time{}}
}

// first returns true the first time it is called with key within the TTL
// window. A key seen longer than the TTL ago counts as new again.
func (s *onceSet) first(key string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if expiry, ok := s.seen[key]; ok && now.Before(expiry) {
		return false
	}
	if len(s.seen) >= onceKeyLimit {
		s.prune(now)
	}
	s.seen[key] = now.Add(s.ttl)
	return true
}

func (s *onceSet) prune(now time.Time) {
	for key, expiry := range s.seen {
		if !now.Before(expiry) {
			delete(s.seen, key)
		}
	}
}
