package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := OpenRegistry(filepath.Join(t.TempDir(), "session-map.json"))
	require.NoError(t, err)
	return r
}

func TestLookupUnknownToken(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Lookup("NOPE1234")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPutAndLookup(t *testing.T) {
	r := newTestRegistry(t)

	require.NoError(t, r.Put(&SessionRecord{
		Token:            "AB12CD34",
		SessionName:      "build-session",
		WorkingDirectory: "/home/op/project",
	}))

	rec, err := r.Lookup("AB12CD34")
	require.NoError(t, err)
	assert.Equal(t, "build-session", rec.SessionName)
	assert.Equal(t, StatusWaiting, rec.Status)
	assert.Equal(t, DefaultMaxCommands, rec.MaxCommands)
	assert.WithinDuration(t, rec.CreatedAt.Add(SessionTTL), rec.ExpiresAt, time.Second)
}

func TestLookupExpiredRecordIsNotFound(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Put(&SessionRecord{Token: "OLD", SessionName: "stale"}))

	// Jump past the TTL without garbage-collecting the record.
	r.now = func() time.Time { return time.Now().Add(SessionTTL + time.Minute) }

	_, err := r.Lookup("OLD")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLookupExhaustedRecordIsNotFound(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Put(&SessionRecord{Token: "BUSY", SessionName: "s", MaxCommands: 2}))

	require.NoError(t, r.Touch("BUSY"))
	require.NoError(t, r.Touch("BUSY"))

	_, err := r.Lookup("BUSY")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, r.Touch("BUSY"), ErrExpired)
}

func TestTouchPersistsCounter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session-map.json")
	r, err := OpenRegistry(path)
	require.NoError(t, err)
	require.NoError(t, r.Put(&SessionRecord{Token: "T1", SessionName: "s"}))
	require.NoError(t, r.Touch("T1"))

	// Reopen from disk: the counter must have been durably written.
	r2, err := OpenRegistry(path)
	require.NoError(t, err)
	rec, err := r2.Lookup("T1")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.CommandCount)
	assert.Equal(t, StatusActive, rec.Status)
}

func TestDeleteRollsBackRecord(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Put(&SessionRecord{Token: "GONE", SessionName: "s"}))
	require.NoError(t, r.Delete("GONE"))

	_, err := r.Lookup("GONE")
	assert.ErrorIs(t, err, ErrNotFound)
	// Deleting a missing record is a no-op, not an error.
	assert.NoError(t, r.Delete("GONE"))
}

func TestPruneRemovesUnusableRecords(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Put(&SessionRecord{Token: "LIVE", SessionName: "s"}))
	require.NoError(t, r.Put(&SessionRecord{
		Token:       "DEAD",
		SessionName: "s",
		ExpiresAt:   time.Now().Add(-time.Hour),
	}))

	removed, err := r.Prune()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Len(t, r.All(), 1)
}
