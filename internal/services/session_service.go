package services

import (
	"log"
	"sync"
	"time"

	"pibot/internal/models"
)

// SessionStore holds short-lived per-user conversation history.
// Implementations must be safe for concurrent use; History never blocks and
// returns nil when the user has no live record.
type SessionStore interface {
	Append(userID, role, content string)
	History(userID string) []models.ConversationTurn
	Reset(userID string)
}

// sessionRecord is one user's bounded history plus its purge timer.
// The timer is a single cancellable handle: every append stops the previous
// timer and schedules a new one, so at most one purge is ever pending.
type sessionRecord struct {
	turns []models.ConversationTurn
	timer *time.Timer
}

// MemorySessionStore is the in-process SessionStore. Each user's record is
// purged entirely after ttl of inactivity, measured from their last append.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]*sessionRecord
	ttl      time.Duration
	maxTurns int
}

// NewMemorySessionStore creates a session store with the given idle TTL and
// per-user turn cap.
func NewMemorySessionStore(ttl time.Duration, maxTurns int) *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*sessionRecord),
		ttl:      ttl,
		maxTurns: maxTurns,
	}
}

// Append adds a turn to the user's history, evicting the oldest turn past the
// cap, and pushes the purge deadline out to ttl from now. Empty content is a
// no-op so blank messages never revive an expiring session.
func (s *MemorySessionStore) Append(userID, role, content string) {
	if content == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[userID]
	if !ok {
		rec = &sessionRecord{}
		s.sessions[userID] = rec
	}

	rec.turns = append(rec.turns, models.ConversationTurn{Role: role, Content: content})
	if len(rec.turns) > s.maxTurns {
		rec.turns = rec.turns[len(rec.turns)-s.maxTurns:]
	}

	// Cancel-and-reschedule: the previous pending purge is superseded, never
	// stacked. Stop may miss a timer that already fired and is waiting on the
	// lock; purge re-checks record identity so a stale purge cannot delete a
	// revived record.
	if rec.timer != nil {
		rec.timer.Stop()
	}
	rec.timer = time.AfterFunc(s.ttl, func() {
		s.purge(userID, rec)
	})
}

// purge deletes the user's whole record, unless a newer record replaced it
func (s *MemorySessionStore) purge(userID string, rec *sessionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.sessions[userID]
	if !ok || current != rec {
		return
	}
	delete(s.sessions, userID)
	log.Printf("🗑️  [SESSION] Purged idle session for user %s (%d turns)", userID, len(rec.turns))
}

// History returns a copy of the user's turns in arrival order, or nil if the
// user has no record (never created, expired, or reset).
func (s *MemorySessionStore) History(userID string) []models.ConversationTurn {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[userID]
	if !ok || len(rec.turns) == 0 {
		return nil
	}

	out := make([]models.ConversationTurn, len(rec.turns))
	copy(out, rec.turns)
	return out
}

// Reset clears the user's history without touching the purge timer contract:
// the record is deleted outright and the next append recreates it with a
// fresh deadline.
func (s *MemorySessionStore) Reset(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[userID]
	if !ok {
		return
	}
	if rec.timer != nil {
		rec.timer.Stop()
	}
	delete(s.sessions, userID)
	log.Printf("🔄 [SESSION] Reset session for user %s", userID)
}

// Len returns the number of live session records (used by health/metrics)
func (s *MemorySessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
