package clock

import "sync"

// shiftLocks serializes clock mutations per shift. Record and ResolveReason
// validate against the current event sequence before writing, so two racing
// events for one shift must not interleave between the read and the write.
type shiftLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newShiftLocks() *shiftLocks {
	return &shiftLocks{locks: map[string]*sync.Mutex{}}
}

// acquire locks the mutex for shiftID and returns its unlock func.
func (l *shiftLocks) acquire(shiftID string) func() {
	l.mu.Lock()
	m, ok := l.locks[shiftID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[shiftID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
