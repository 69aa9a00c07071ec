package store

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/i474232898/city-forecast/internal/directory"
)

var (
	// ErrNotFound is returned when no session exists for an id.
	ErrNotFound = errors.New("directory session not found")
	// ErrCapacity is returned when the store is full even after evicting idle sessions.
	ErrCapacity = errors.New("too many directory sessions")
)

// session holds one screen's controller and when it was last used.
type session struct {
	controller *directory.Controller
	lastSeen   time.Time
}

// MemoryStore is a concurrency-safe registry of directory sessions.
type MemoryStore struct {
	mu sync.RWMutex

	sessions map[uuid.UUID]*session

	// retention configuration
	maxSessions int           // 0 = unlimited
	idleTTL     time.Duration // 0 = never expire

	now    func() time.Time
	logger *zap.Logger
}

// NewMemoryStore creates a MemoryStore. maxSessions <= 0 and idleTTL <= 0 disable
// the respective limit.
func NewMemoryStore(maxSessions int, idleTTL time.Duration, logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		sessions:    make(map[uuid.UUID]*session),
		maxSessions: maxSessions,
		idleTTL:     idleTTL,
		now:         time.Now,
		logger:      logger,
	}
}

// Create registers c under a fresh id.
func (s *MemoryStore) Create(c *directory.Controller) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxSessions > 0 && len(s.sessions) >= s.maxSessions {
		s.sweepLocked()
		if len(s.sessions) >= s.maxSessions {
			return uuid.Nil, ErrCapacity
		}
	}

	id := uuid.New()
	s.sessions[id] = &session{controller: c, lastSeen: s.now()}
	return id, nil
}

// Get returns the controller for id and marks the session as used.
func (s *MemoryStore) Get(id uuid.UUID) (*directory.Controller, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || s.expiredLocked(sess) {
		return nil, ErrNotFound
	}
	sess.lastSeen = s.now()
	return sess.controller, nil
}

// Delete removes the session for id.
func (s *MemoryStore) Delete(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

// Sweep evicts idle sessions and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked()
}

// Len returns the number of sessions, idle ones included until the next sweep.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *MemoryStore) sweepLocked() int {
	removed := 0
	for id, sess := range s.sessions {
		if s.expiredLocked(sess) {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("evicted idle directory sessions",
			zap.Int("removed", removed),
			zap.Int("remaining", len(s.sessions)))
	}
	return removed
}

func (s *MemoryStore) expiredLocked(sess *session) bool {
	if s.idleTTL <= 0 {
		return false
	}
	return s.now().Sub(sess.lastSeen) > s.idleTTL
}
