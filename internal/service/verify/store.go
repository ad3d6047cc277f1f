package verify

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/wenqianl/facegate/backend/internal/model/verify"
)

const (
	sessionIDLength   = 8
	sessionIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// Store is the concurrent registry of live sessions. A single mutex guards
// the whole map: session counts are small and lifetimes short, so one global
// critical section is preferred over per-session locking.
type Store struct {
	mu            sync.RWMutex
	sessions      map[string]*verify.Session
	sweepInterval time.Duration

	// onEvict receives a snapshot of every session removed by the sweep,
	// after the lock is released, so the caller can attempt a best-effort
	// expiry notice.
	onEvict func(verify.Session)
}

// NewStore returns an empty store. Run must be started separately for
// expiry to take effect.
func NewStore(sweepInterval time.Duration) *Store {
	if sweepInterval <= 0 {
		sweepInterval = 60 * time.Second
	}
	return &Store{
		sessions:      make(map[string]*verify.Session),
		sweepInterval: sweepInterval,
	}
}

// OnEvict registers a callback invoked for each session the sweep removes.
func (s *Store) OnEvict(fn func(verify.Session)) {
	s.mu.Lock()
	s.onEvict = fn
	s.mu.Unlock()
}

// Create allocates a session with a fresh id and stores it.
func (s *Store) Create(ownerConnID string, duration time.Duration, capacity int) (verify.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.newSessionID()
	if err != nil {
		return verify.Session{}, err
	}

	session := &verify.Session{
		ID:                id,
		OwnerConnectionID: ownerConnID,
		Capacity:          capacity,
		Duration:          duration,
		CreatedAt:         time.Now().UTC(),
	}
	s.sessions[id] = session
	return session.Clone(), nil
}

// newSessionID draws 8 case-normalized alphanumeric characters from a
// cryptographically strong source and regenerates on collision with a live
// session. Caller must hold the lock.
func (s *Store) newSessionID() (string, error) {
	// Bytes at or above this are rejected so every character is equally
	// likely; 256 is not a multiple of the alphabet size.
	limit := byte(256 - 256%len(sessionIDAlphabet))

	for {
		id := make([]byte, 0, sessionIDLength)
		buf := make([]byte, 2*sessionIDLength)
		for len(id) < sessionIDLength {
			if _, err := rand.Read(buf); err != nil {
				return "", fmt.Errorf("generate session id: %w", err)
			}
			for _, b := range buf {
				if b >= limit {
					continue
				}
				id = append(id, sessionIDAlphabet[int(b)%len(sessionIDAlphabet)])
				if len(id) == sessionIDLength {
					break
				}
			}
		}
		if _, exists := s.sessions[string(id)]; !exists {
			return string(id), nil
		}
	}
}

// Get returns a snapshot of the session, if present.
func (s *Store) Get(id string) (verify.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return verify.Session{}, false
	}
	return session.Clone(), true
}

// Mutate applies fn to the session under the store lock. Two concurrent
// uploads to the same session serialize here; fn must not block.
func (s *Store) Mutate(id string, fn func(*verify.Session) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	return fn(session)
}

// Delete removes the session, if present.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Count returns the number of live sessions, for health reporting.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Run drives the expiry sweep until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(time.Now().UTC())
		}
	}
}

// sweep deletes every session past its configured duration. Eviction
// callbacks run after the lock is released with detached snapshots.
func (s *Store) sweep(now time.Time) {
	var evicted []verify.Session

	s.mu.Lock()
	for id, session := range s.sessions {
		if session.Expired(now) {
			evicted = append(evicted, session.Clone())
			delete(s.sessions, id)
		}
	}
	onEvict := s.onEvict
	s.mu.Unlock()

	for _, session := range evicted {
		log.Printf("[sweep] session %s expired after %s", session.ID, session.Duration)
		if onEvict != nil {
			onEvict(session)
		}
	}
}
