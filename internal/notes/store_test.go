package notes

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *Store {
	s := NewStore()
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

func TestStore_CreateListGet(t *testing.T) {
	s := newTestStore()

	first, err := s.Create("alice", "  groceries ", "milk")
	require.NoError(t, err)
	assert.Equal(t, "groceries", first.Title)
	assert.Equal(t, "alice", first.UserID)

	second, err := s.Create("alice", "todo", "")
	require.NoError(t, err)

	list := s.List("alice")
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID, "most recent first")
	assert.Equal(t, first.ID, list[1].ID)

	got, err := s.Get("alice", first.ID)
	require.NoError(t, err)
	assert.Equal(t, first, got)
}

func TestStore_ScopedToUser(t *testing.T) {
	s := newTestStore()

	note, err := s.Create("alice", "secret", "")
	require.NoError(t, err)

	assert.Empty(t, s.List("bob"))

	_, err = s.Get("bob", note.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, s.Delete("bob", note.ID), ErrNotFound)

	_, err = s.Get("alice", note.ID)
	require.NoError(t, err)
}

func TestStore_Delete(t *testing.T) {
	s := newTestStore()

	note, err := s.Create("alice", "x", "")
	require.NoError(t, err)

	require.NoError(t, s.Delete("alice", note.ID))
	require.ErrorIs(t, s.Delete("alice", note.ID), ErrNotFound)
	assert.Empty(t, s.List("alice"))
}

func TestStore_CreateValidation(t *testing.T) {
	s := newTestStore()

	_, err := s.Create("alice", "   ", "body")
	require.ErrorIs(t, err, ErrEmptyTitle)

	_, err = s.Create("alice", strings.Repeat("a", maxTitleLength+1), "")
	require.ErrorIs(t, err, ErrTitleTooLong)
}
