// Package notes keeps each user's notes in process memory.
package notes

import (
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("note not found")
	ErrEmptyTitle   = errors.New("note title is required")
	ErrTitleTooLong = errors.New("note title is too long")
)

const maxTitleLength = 200

type Note struct {
	ID        string
	UserID    string
	Title     string
	Body      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store scopes every operation to a user id, the token subject.
type Store struct {
	mu    sync.RWMutex
	notes map[string]map[string]Note
	now   func() time.Time
}

func NewStore() *Store {
	return &Store{
		notes: make(map[string]map[string]Note),
		now:   time.Now,
	}
}

// List returns the user's notes, most recently updated first.
func (s *Store) List(userID string) []Note {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]Note, 0, len(s.notes[userID]))
	for _, n := range s.notes[userID] {
		list = append(list, n)
	}

	slices.SortFunc(list, func(a, b Note) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return list
}

func (s *Store) Create(userID, title, body string) (Note, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Note{}, ErrEmptyTitle
	}
	if len(title) > maxTitleLength {
		return Note{}, ErrTitleTooLong
	}

	now := s.now()
	note := Note{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Body:      body,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.notes[userID] == nil {
		s.notes[userID] = make(map[string]Note)
	}
	s.notes[userID][note.ID] = note
	return note, nil
}

func (s *Store) Get(userID, id string) (Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	note, ok := s.notes[userID][id]
	if !ok {
		return Note{}, ErrNotFound
	}
	return note, nil
}

// Delete removes the note. Deleting another user's note reports ErrNotFound.
func (s *Store) Delete(userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notes[userID][id]; !ok {
		return ErrNotFound
	}
	delete(s.notes[userID], id)
	return nil
}
