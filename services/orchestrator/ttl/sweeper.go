// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ttl provides time-to-live (TTL) management for transfer sessions.
// It implements automatic expiration and cleanup of idle dialogues so
// abandoned sessions (with their phone numbers and amounts) do not live
// forever.
package ttl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianTransfer/services/orchestrator/observability"
	"github.com/AleutianAI/AleutianTransfer/services/orchestrator/store"
)

// =============================================================================
// Clock
// =============================================================================

// Clock abstracts time.Now so expiry checks are testable.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real system time.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// =============================================================================
// Sweeper
// =============================================================================

// Config holds configuration for the session sweeper.
//
// # Fields
//
//   - Interval: How often to run sweep cycles. Default: 1 hour.
//   - SessionTTL: Idle time after which a session expires. Default: 24 hours.
//   - BatchSize: Maximum sessions to delete per cycle. Default: 100.
type Config struct {
	Interval   time.Duration
	SessionTTL time.Duration
	BatchSize  int
}

// DefaultConfig returns production-ready sweeper defaults.
func DefaultConfig() Config {
	return Config{
		Interval:   1 * time.Hour,
		SessionTTL: 24 * time.Hour,
		BatchSize:  100,
	}
}

// SweepResult summarizes one sweep cycle.
//
// # Fields
//
//   - SessionsScanned: Sessions examined this cycle.
//   - SessionsDeleted: Expired sessions removed.
//   - StartTime, EndTime: Cycle boundaries.
//   - Errors: Per-session failures; a failed delete is retried next cycle.
type SweepResult struct {
	SessionsScanned int
	SessionsDeleted int
	StartTime       time.Time
	EndTime         time.Time
	Errors          []error
}

// DurationMs returns the cycle duration in milliseconds.
func (r SweepResult) DurationMs() int64 {
	return r.EndTime.Sub(r.StartTime).Milliseconds()
}

// Sweeper periodically deletes sessions idle past their TTL.
//
// # Description
//
// Scans the session store at a fixed interval and removes sessions whose
// last activity (UpdatedAt) is older than SessionTTL. A session mid-turn
// cannot be swept out from under the handler: Delete and Mutate contend on
// the store, and a turn always refreshes UpdatedAt before the next cycle
// can observe it as idle.
//
// # Thread Safety
//
// All public methods are thread-safe.
type Sweeper struct {
	sessions store.SessionStore
	clock    Clock
	config   Config
	done     chan struct{}
	mu       sync.Mutex
	running  bool
}

// NewSweeper creates a sweeper over the given store.
//
// # Inputs
//
//   - sessions: The session store to sweep.
//   - clock: Time source; nil uses the system clock.
//   - config: Sweep interval, TTL, batch size. Zero fields use defaults.
func NewSweeper(sessions store.SessionStore, clock Clock, config Config) *Sweeper {
	if clock == nil {
		clock = SystemClock{}
	}
	defaults := DefaultConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.SessionTTL <= 0 {
		config.SessionTTL = defaults.SessionTTL
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}

	return &Sweeper{
		sessions: sessions,
		clock:    clock,
		config:   config,
		done:     make(chan struct{}),
	}
}

// Start begins the background sweep loop.
//
// # Description
//
// Starts a goroutine that sweeps at the configured interval until Stop()
// is called or the context is cancelled. An initial sweep runs immediately
// on start.
//
// # Outputs
//
//   - error: Non-nil if the sweeper is already running.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("sweeper is already running")
	}
	s.running = true
	s.done = make(chan struct{})
	s.mu.Unlock()

	slog.Info("session sweeper starting",
		"interval", s.config.Interval.String(),
		"session_ttl", s.config.SessionTTL.String(),
		"batch_size", s.config.BatchSize,
	)

	go s.runLoop(ctx)
	return nil
}

// Stop halts the sweep loop. Safe to call multiple times. Does not
// interrupt an in-progress cycle.
func (s *Sweeper) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	slog.Info("session sweeper stopping")
	close(s.done)
	s.running = false
	return nil
}

// RunNow triggers an immediate sweep cycle, independent of the schedule.
func (s *Sweeper) RunNow(ctx context.Context) (SweepResult, error) {
	return s.sweep(ctx)
}

// runLoop is the main sweeper goroutine.
func (s *Sweeper) runLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.executeSweep(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("session sweeper stopped (context cancelled)")
			return
		case <-s.done:
			slog.Info("session sweeper stopped (stop requested)")
			return
		case <-ticker.C:
			s.executeSweep(ctx)
		}
	}
}

// executeSweep runs one cycle with error handling so a failed sweep never
// crashes the loop.
func (s *Sweeper) executeSweep(ctx context.Context) {
	result, err := s.sweep(ctx)
	if err != nil {
		slog.Error("session sweep cycle failed", "error", err)
		return
	}

	if result.SessionsDeleted > 0 || len(result.Errors) > 0 {
		slog.Info("session sweep cycle completed",
			"scanned", result.SessionsScanned,
			"deleted", result.SessionsDeleted,
			"errors", len(result.Errors),
			"duration_ms", result.DurationMs(),
		)
	} else {
		slog.Debug("session sweep cycle completed (no expired sessions)")
	}
}

// sweep performs a single scan-and-delete pass.
func (s *Sweeper) sweep(ctx context.Context) (SweepResult, error) {
	result := SweepResult{StartTime: s.clock.Now()}

	ids, err := s.sessions.List(ctx)
	if err != nil {
		return result, fmt.Errorf("list sessions: %w", err)
	}

	cutoff := s.clock.Now().Add(-s.config.SessionTTL).UnixMilli()

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if result.SessionsDeleted >= s.config.BatchSize {
			slog.Warn("session sweep batch limit reached, deferring remainder",
				"batch_size", s.config.BatchSize)
			break
		}

		result.SessionsScanned++

		sess, err := s.sessions.Load(ctx, id)
		if errors.Is(err, store.ErrSessionNotFound) {
			// Deleted by a concurrent actor between List and Load.
			continue
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("load %s: %w", id, err))
			continue
		}

		if sess.UpdatedAt > cutoff {
			continue
		}

		if err := s.sessions.Delete(ctx, id); err != nil && !errors.Is(err, store.ErrSessionNotFound) {
			slog.Warn("failed to delete expired session", "session_id", id, "error", err)
			result.Errors = append(result.Errors, fmt.Errorf("delete %s: %w", id, err))
			continue
		}

		slog.Info("expired session deleted",
			"session_id", id,
			"idle_since", time.UnixMilli(sess.UpdatedAt).UTC().Format(time.RFC3339),
			"state", string(sess.State),
		)
		result.SessionsDeleted++
	}

	if observability.DefaultMetrics != nil {
		remaining := len(ids) - result.SessionsDeleted
		if remaining < 0 {
			remaining = 0
		}
		observability.DefaultMetrics.SetActiveSessions(remaining)
	}

	result.EndTime = s.clock.Now()
	return result, nil
}
