// Package memory is an in-process store for player state and conversations.
// It backs single-node development and tests; nothing survives a restart.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/ashita-ai/wyrmgate/internal/game"
	"github.com/ashita-ai/wyrmgate/internal/model"
	"github.com/ashita-ai/wyrmgate/internal/storage"
)

// Store implements the state and conversation stores. Safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	states   map[string]model.PlayerState
	owners   map[string]string
	messages map[string][]model.Message
	events   map[string][]model.GameEvent
}

// New returns an empty store.
func New() *Store {
	return &Store{
		states:   make(map[string]model.PlayerState),
		owners:   make(map[string]string),
		messages: make(map[string][]model.Message),
		events:   make(map[string][]model.GameEvent),
	}
}

// Name identifies the backend in health output.
func (s *Store) Name() string { return "memory" }

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// LoadOrCreate returns the user's state, creating the default character on
// first access.
func (s *Store) LoadOrCreate(ctx context.Context, userID string) (model.PlayerState, error) {
	if err := ctx.Err(); err != nil {
		return model.PlayerState{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[userID]
	if !ok {
		st = game.NewPlayer(userID, "", "")
		st.Version = 1
		s.states[userID] = st
	}
	return st.Clone(), nil
}

// GetState returns the stored state or storage.ErrNotFound.
func (s *Store) GetState(_ context.Context, userID string) (model.PlayerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[userID]
	if !ok {
		return model.PlayerState{}, storage.ErrNotFound
	}
	return st.Clone(), nil
}

// Save stores state when its version matches, otherwise storage.ErrConflict.
func (s *Store) Save(ctx context.Context, userID string, state model.PlayerState) (model.PlayerState, error) {
	if err := ctx.Err(); err != nil {
		return model.PlayerState{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.states[userID]
	if !ok || cur.Version != state.Version {
		return model.PlayerState{}, storage.ErrConflict
	}
	next := state.Clone()
	next.Version = cur.Version + 1
	s.states[userID] = next
	return next.Clone(), nil
}

// Replace overwrites the user's state unconditionally.
func (s *Store) Replace(ctx context.Context, userID string, state model.PlayerState) (model.PlayerState, error) {
	if err := ctx.Err(); err != nil {
		return model.PlayerState{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := state.Clone()
	next.Version = s.states[userID].Version + 1
	s.states[userID] = next
	return next.Clone(), nil
}

// CreateSession starts a conversation owned by userID.
func (s *Store) CreateSession(_ context.Context, userID string) (string, error) {
	id := uuid.NewString()
	s.mu.Lock()
	s.owners[id] = userID
	s.mu.Unlock()
	return id, nil
}

// GetOwner returns the session's owner or storage.ErrNotFound.
func (s *Store) GetOwner(_ context.Context, sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner, ok := s.owners[sessionID]
	if !ok {
		return "", storage.ErrNotFound
	}
	return owner, nil
}

// AppendMessages appends to the session transcript.
func (s *Store) AppendMessages(_ context.Context, sessionID string, msgs []model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.owners[sessionID]; !ok {
		return storage.ErrNotFound
	}
	s.messages[sessionID] = append(s.messages[sessionID], model.CloneMessages(msgs)...)
	return nil
}

// Messages returns a copy of the session transcript.
func (s *Store) Messages(_ context.Context, sessionID string) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.owners[sessionID]; !ok {
		return nil, storage.ErrNotFound
	}
	return model.CloneMessages(s.messages[sessionID]), nil
}

// RecordEvents appends to the user's audit trail.
func (s *Store) RecordEvents(_ context.Context, userID, _ string, events []model.GameEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[userID] = append(s.events[userID], events...)
	return nil
}

// Events returns the user's recorded events.
func (s *Store) Events(userID string) []model.GameEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.GameEvent, len(s.events[userID]))
	copy(out, s.events[userID])
	return out
}
