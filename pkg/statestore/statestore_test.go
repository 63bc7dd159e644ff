package statestore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLastRunMissingFile(t *testing.T) {
	s := New(t.TempDir())
	last, err := s.LastRun()
	require.NoError(t, err)
	assert.Empty(t, last)
}

func TestWriteAndReadBack(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.WriteLastRun("2024-03-01T10:00:00"))
	last, err := s.LastRun()
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01T10:00:00", last)
}

func TestWriteNowUsesUTC(t *testing.T) {
	s := New(t.TempDir())
	fixed := time.Date(2024, 3, 1, 12, 30, 0, 0, time.FixedZone("CET", 3600))
	s.now = func() time.Time { return fixed }

	require.NoError(t, s.WriteNow())
	last, err := s.LastRun()
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01T11:30:00Z", last)
}

func TestWriteCreatesStateDir(t *testing.T) {
	dir := t.TempDir() + "/nested/state"
	s := New(dir)
	require.NoError(t, s.WriteLastRun("2024-01-01T00:00:00"))
	last, err := s.LastRun()
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01T00:00:00", last)
}
