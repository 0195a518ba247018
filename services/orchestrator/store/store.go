// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package store persists transfer sessions and serializes turn processing
// per session.
//
// # Description
//
// Two implementations share one contract: MemoryStore for tests and
// single-node dev, BadgerStore for durable local persistence. Both
// guarantee that Mutate runs at most one function per session at a time,
// so concurrent turns for the same session are processed strictly in
// sequence and neither lost-update nor double-execution is possible at
// the store level.
package store

import (
	"context"
	"errors"
	"sync"

	"github.com/AleutianAI/AleutianTransfer/services/orchestrator/datatypes"
)

// ErrSessionNotFound is returned by Load and Delete for unknown sessions.
var ErrSessionNotFound = errors.New("session not found")

// MutateFunc runs under the session's lock with the current snapshot.
// Returning an error aborts the mutation; the stored session is left
// exactly as it was.
type MutateFunc func(sess *datatypes.Session) error

// SessionStore is the persistence contract for transfer sessions.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Mutate serializes per
// SessionID: two Mutate calls for the same session never overlap, calls
// for different sessions run in parallel.
type SessionStore interface {
	// Load returns a copy of the session. ErrSessionNotFound if absent.
	Load(ctx context.Context, sessionID string) (*datatypes.Session, error)

	// Mutate loads the session (creating a fresh one owned by userID if
	// absent), runs fn under the session lock, and persists the result
	// when fn returns nil. The returned session is the persisted copy.
	Mutate(ctx context.Context, sessionID, userID string, fn MutateFunc) (*datatypes.Session, error)

	// Delete removes the session. ErrSessionNotFound if absent.
	Delete(ctx context.Context, sessionID string) error

	// List returns all session ids. Order is unspecified.
	List(ctx context.Context) ([]string, error)

	// Close releases underlying resources.
	Close() error
}

// keyedMutex provides one mutex per session id. Entries are reference
// counted and freed when the last holder unlocks, so the table does not
// grow with the lifetime total of sessions.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*lockEntry)}
}

// lock blocks until the per-key mutex is held and returns the unlock
// function.
func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &lockEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
