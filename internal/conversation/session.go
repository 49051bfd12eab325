package conversation

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lososs/callagent/internal/clock"
	"github.com/lososs/callagent/internal/domain"
)

// SessionStore holds the active call sessions keyed by the provider call
// ID. Webhook turns are stateless, so this map is the only place the
// conversation state lives between turns.
//
// Turns within one call are sequential, but turns for different calls
// run concurrently; the store serializes map access while the sessions
// themselves stay lock-free.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.CallSession
	clock    clock.Clock
	logger   *zap.Logger
}

// NewSessionStore creates an empty store.
func NewSessionStore(clk clock.Clock, logger *zap.Logger) *SessionStore {
	if clk == nil {
		clk = clock.New()
	}
	return &SessionStore{
		sessions: make(map[string]*domain.CallSession),
		clock:    clk,
		logger:   logger,
	}
}

// GetOrCreate returns the session for a call ID, creating it when
// missing. A terminated session under the same ID is stale state from a
// finished call: it is discarded and replaced with a fresh one rather
// than inherited.
func (s *SessionStore) GetOrCreate(providerCallID string, direction domain.CallDirection, callerNumber string) *domain.CallSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[providerCallID]; ok {
		if !sess.Terminated() {
			return sess
		}
		s.logger.Warn("replacing stale session for reused call id",
			zap.String("provider_call_id", providerCallID),
		)
	}

	sess := domain.NewCallSession(providerCallID, direction, callerNumber, s.clock.NowUTC())
	s.sessions[providerCallID] = sess
	return sess
}

// Get returns the session for a call ID, or nil when none is active.
func (s *SessionStore) Get(providerCallID string) *domain.CallSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[providerCallID]
}

// Remove deletes a session, returning it for archival.
func (s *SessionStore) Remove(providerCallID string) *domain.CallSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessions[providerCallID]
	delete(s.sessions, providerCallID)
	return sess
}

// ActiveCount returns the number of live sessions.
func (s *SessionStore) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// SweepStale removes sessions older than maxAge. Telephony status
// callbacks normally trigger removal; the sweep catches calls whose
// final callback never arrived.
func (s *SessionStore) SweepStale(maxAge time.Duration) []*domain.CallSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.clock.NowUTC().Add(-maxAge)
	var stale []*domain.CallSession
	for id, sess := range s.sessions {
		if sess.StartedAt.Before(cutoff) {
			sess.Terminate(domain.EndReasonHangup)
			stale = append(stale, sess)
			delete(s.sessions, id)
		}
	}
	if len(stale) > 0 {
		s.logger.Info("swept stale sessions", zap.Int("count", len(stale)))
	}
	return stale
}
