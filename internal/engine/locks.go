package engine

import "sync"

// staffLocks serializes evaluation per staff member. Evaluations for
// different staff proceed in parallel; two triggers for the same staff
// member are mutually exclusive.
type staffLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newStaffLocks() *staffLocks {
	return &staffLocks{locks: map[string]*sync.Mutex{}}
}

// acquire locks the mutex for staffID and returns its unlock func.
func (l *staffLocks) acquire(staffID string) func() {
	l.mu.Lock()
	m, ok := l.locks[staffID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[staffID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
