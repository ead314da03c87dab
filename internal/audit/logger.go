package audit

import (
	"context"
	"sync"
	"time"

	"github.com/careorg/rosteraccess/internal/storage"
	"github.com/careorg/rosteraccess/pkg/models"
	"github.com/rs/zerolog/log"
)

// maxDeadletter bounds the in-memory buffer of entries whose append failed.
// When full, the oldest entry is dropped.
const maxDeadletter = 1000

// Logger writes append-only audit entries. A failed append is deadlettered
// immediately and surfaced to the caller as a retryable *models.StorageError;
// retries happen through FlushDeadletter on later appends and sweep ticks.
// Append never sleeps, so audit durability cannot stall an access decision.
type Logger struct {
	store storage.StorageBackend

	mu         sync.Mutex
	deadletter []*models.AuditEntry
}

// NewLogger creates an audit Logger over the given storage.
func NewLogger(store storage.StorageBackend) *Logger {
	return &Logger{store: store}
}

// Append records an entry, stamping the timestamp if unset.
func (l *Logger) Append(ctx context.Context, entry *models.AuditEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.Actor == "" {
		entry.Actor = "system"
	}

	// Older deadlettered entries go first so ordering survives an outage.
	l.FlushDeadletter(ctx)

	err := l.store.WriteAuditEntry(ctx, entry)
	if err == nil {
		return nil
	}

	l.mu.Lock()
	if len(l.deadletter) >= maxDeadletter {
		l.deadletter = l.deadletter[1:]
	}
	l.deadletter = append(l.deadletter, entry)
	size := len(l.deadletter)
	l.mu.Unlock()

	log.Error().Err(err).
		Str("staff_id", entry.StaffID).
		Str("action", string(entry.Action)).
		Int("deadletter", size).
		Msg("audit append failed, entry deadlettered")
	return &models.StorageError{Op: "audit append", Err: err}
}

// FlushDeadletter retries every deadlettered entry once, keeping the ones
// that still fail. Returns the number of entries remaining.
func (l *Logger) FlushDeadletter(ctx context.Context) int {
	l.mu.Lock()
	pending := l.deadletter
	l.deadletter = nil
	l.mu.Unlock()

	var failed []*models.AuditEntry
	for i, entry := range pending {
		if len(failed) > 0 {
			// Preserve order once one entry fails.
			failed = append(failed, pending[i])
			continue
		}
		if err := l.store.WriteAuditEntry(ctx, entry); err != nil {
			failed = append(failed, entry)
		}
	}

	l.mu.Lock()
	l.deadletter = append(failed, l.deadletter...)
	remaining := len(l.deadletter)
	l.mu.Unlock()
	return remaining
}

// DeadletterSize returns the number of entries awaiting reconciliation.
func (l *Logger) DeadletterSize() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.deadletter)
}

// Deadletter returns a copy of the entries awaiting reconciliation.
func (l *Logger) Deadletter() []*models.AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*models.AuditEntry, len(l.deadletter))
	copy(out, l.deadletter)
	return out
}

// Query retrieves audit entries in ascending timestamp order.
func (l *Logger) Query(ctx context.Context, filter storage.AuditFilter) ([]*models.AuditEntry, error) {
	return l.store.QueryAuditLog(ctx, filter)
}
