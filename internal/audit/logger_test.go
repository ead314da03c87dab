package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/careorg/rosteraccess/internal/storage"
	"github.com/careorg/rosteraccess/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyBackend fails audit writes until failures is exhausted.
type flakyBackend struct {
	*storage.MemoryBackend
	failures int
}

func (f *flakyBackend) WriteAuditEntry(ctx context.Context, entry *models.AuditEntry) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("disk on fire")
	}
	return f.MemoryBackend.WriteAuditEntry(ctx, entry)
}

func newTestLogger(failures int) (*Logger, *flakyBackend) {
	backend := &flakyBackend{MemoryBackend: storage.NewMemoryBackend(), failures: failures}
	return NewLogger(backend), backend
}

func TestAppendStampsDefaults(t *testing.T) {
	l, backend := newTestLogger(0)
	require.NoError(t, l.Append(context.Background(), &models.AuditEntry{
		StaffID: "s1",
		Action:  models.ActionGrant,
	}))

	entries, err := backend.QueryAuditLog(context.Background(), storage.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Timestamp.IsZero())
	assert.Equal(t, "system", entries[0].Actor)
}

func TestAppendDeadlettersWithoutBlocking(t *testing.T) {
	l, _ := newTestLogger(1)
	start := time.Now()
	err := l.Append(context.Background(), &models.AuditEntry{
		StaffID: "s1",
		Action:  models.ActionRevoke,
	})

	var serr *models.StorageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, 1, l.DeadletterSize())
	// The failed write goes straight to the deadletter; no retry sleeps.
	assert.Less(t, time.Since(start), 20*time.Millisecond)
}

func TestFlushDeadletterRecoversFailedAppend(t *testing.T) {
	l, backend := newTestLogger(1)
	require.Error(t, l.Append(context.Background(), &models.AuditEntry{
		StaffID: "s1",
		Action:  models.ActionGrant,
	}))
	require.Equal(t, 1, l.DeadletterSize())

	assert.Equal(t, 0, l.FlushDeadletter(context.Background()))

	entries, err := backend.QueryAuditLog(context.Background(), storage.AuditFilter{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFlushDeadletterPreservesOrder(t *testing.T) {
	l, backend := newTestLogger(100)
	for i := 0; i < 3; i++ {
		l.Append(context.Background(), &models.AuditEntry{ //nolint:errcheck
			StaffID: "s1",
			Action:  models.ActionGrant,
			Reason:  string(rune('a' + i)),
		})
	}
	require.Equal(t, 3, l.DeadletterSize())

	// Storage recovers; the next append drains the backlog first.
	backend.failures = 0
	require.NoError(t, l.Append(context.Background(), &models.AuditEntry{
		StaffID: "s1",
		Action:  models.ActionGrant,
		Reason:  "d",
	}))
	assert.Equal(t, 0, l.DeadletterSize())

	entries, err := backend.QueryAuditLog(context.Background(), storage.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 4)
	var reasons []string
	for _, e := range entries {
		reasons = append(reasons, e.Reason)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, reasons)
}
