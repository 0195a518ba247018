// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"sync"

	"github.com/AleutianAI/AleutianTransfer/services/orchestrator/datatypes"
)

// MemoryStore keeps sessions in process memory. Data does not survive a
// restart; use BadgerStore for durability.
//
// # Thread Safety
//
// Safe for concurrent use. Reads hand out clones.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*datatypes.Session
	locks    *keyedMutex
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*datatypes.Session),
		locks:    newKeyedMutex(),
	}
}

// Load returns a copy of the session. ErrSessionNotFound if absent.
func (s *MemoryStore) Load(ctx context.Context, sessionID string) (*datatypes.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess.Clone(), nil
}

// Mutate runs fn under the session's lock and persists the result when fn
// returns nil.
func (s *MemoryStore) Mutate(ctx context.Context, sessionID, userID string, fn MutateFunc) (*datatypes.Session, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	current, ok := s.sessions[sessionID]
	s.mu.RUnlock()

	var working *datatypes.Session
	if ok {
		working = current.Clone()
	} else {
		working = datatypes.NewSession(sessionID, userID)
	}

	if err := fn(working); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.sessions[sessionID] = working
	s.mu.Unlock()

	return working.Clone(), nil
}

// Delete removes the session. ErrSessionNotFound if absent.
func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}

// List returns all session ids in unspecified order.
func (s *MemoryStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
