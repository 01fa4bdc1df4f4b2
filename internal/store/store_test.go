package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "practicetime.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndListSessions(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

	first, err := s.RecordSession(Record{
		StartedAt: base, StoppedAt: base.Add(10 * time.Minute),
		Total: 420, Idle: 3, Ticks: 600, Reason: ReasonManual,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	_, err = s.RecordSession(Record{
		ID: "later", StartedAt: base.Add(time.Hour), StoppedAt: base.Add(time.Hour + 5*time.Minute),
		Total: 0, Idle: 300, Ticks: 299, Reason: ReasonAuto,
	})
	require.NoError(t, err)

	got, err := s.RecentSessions(10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "later", got[0].ID)
	assert.Equal(t, ReasonAuto, got[0].Reason)
	assert.Equal(t, first.ID, got[1].ID)
	assert.Equal(t, 420, got[1].Total)
	assert.True(t, got[1].StartedAt.Equal(base))
}

func TestRecentSessionsLimit(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()
	for i := 0; i < 3; i++ {
		_, err := s.RecordSession(Record{StartedAt: now.Add(time.Duration(i) * time.Minute), StoppedAt: now, Reason: ReasonManual})
		require.NoError(t, err)
	}
	got, err := s.RecentSessions(2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestConsentFlow(t *testing.T) {
	s := openTestStore(t)
	assert.False(t, s.Granted())
	assert.False(t, s.Pending())

	s.Request()
	assert.True(t, s.Pending())
	assert.False(t, s.Granted())

	require.NoError(t, s.Grant())
	assert.True(t, s.Granted())
	assert.False(t, s.Pending())

	s.Request()
	assert.True(t, s.Granted(), "request never downgrades a grant")

	require.NoError(t, s.Revoke())
	assert.False(t, s.Granted())
}

func TestUsers(t *testing.T) {
	s := openTestStore(t)
	has, err := s.HasUsers()
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, s.EnsureUser("ham", "scales"))
	require.NoError(t, s.EnsureUser("ham", "arpeggios"))

	has, err = s.HasUsers()
	require.NoError(t, err)
	assert.True(t, has)

	u, err := s.Authenticate("ham", "scales")
	require.NoError(t, err)
	assert.Nil(t, u, "old password replaced")

	u, err = s.Authenticate("ham", "arpeggios")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "ham", u.Username)

	u, err = s.Authenticate("nobody", "x")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestWebSessions(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.EnsureUser("ham", "pw"))
	u, err := s.Authenticate("ham", "pw")
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveWebSession("tok", u.ID, now.Add(time.Hour)))

	assert.True(t, s.ValidWebSession("tok", now))
	assert.False(t, s.ValidWebSession("other", now))
	assert.False(t, s.ValidWebSession("tok", now.Add(2*time.Hour)))
	assert.False(t, s.ValidWebSession("tok", now), "expired token is deleted")
}
