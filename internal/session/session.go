package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Session is a per-request view over one user's session map. Mutations mark
// the session dirty; nothing reaches the store until Save. Two concurrent
// requests for the same session id are last-write-wins at the store layer;
// callers must not rely on cross-request cart consistency.
type Session struct {
	id     string
	store  Store
	values map[string]json.RawMessage
	dirty  bool
}

// NewID produces a fresh session identifier.
func NewID() string {
	return uuid.NewString()
}

// New binds a session handle to a store. Call Load before reading values.
func New(id string, store Store) (*Session, error) {
	if id == "" {
		return nil, fmt.Errorf("session id is required")
	}
	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	return &Session{
		id:     id,
		store:  store,
		values: map[string]json.RawMessage{},
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Load reads the session map from the store, replacing any in-memory view.
func (s *Session) Load(ctx context.Context) error {
	values, err := s.store.Load(ctx, s.id)
	if err != nil {
		return err
	}
	s.values = values
	s.dirty = false
	return nil
}

// Get returns the raw value stored under key.
func (s *Session) Get(key string) (json.RawMessage, bool) {
	value, ok := s.values[key]
	return value, ok
}

// Set serializes value under key and marks the session dirty.
func (s *Session) Set(key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding session value %q: %w", key, err)
	}
	s.values[key] = payload
	s.dirty = true
	return nil
}

// Delete removes key from the session map and marks the session dirty.
func (s *Session) Delete(key string) {
	if _, ok := s.values[key]; !ok {
		return
	}
	delete(s.values, key)
	s.dirty = true
}

// Dirty reports whether the session has unsaved mutations.
func (s *Session) Dirty() bool {
	return s.dirty
}

// Save writes the whole session map back to the store and clears the dirty
// flag. The write replaces whatever the store holds for this id.
func (s *Session) Save(ctx context.Context) error {
	if err := s.store.Save(ctx, s.id, s.values); err != nil {
		return err
	}
	s.dirty = false
	return nil
}
