package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
	"github.com/whenitworks/backend/internal/intake"
	"github.com/whenitworks/backend/internal/upload"
)

// DefaultMaxSessions limits how many page sessions are kept in memory.
const DefaultMaxSessions = 1000

// SessionKeepAliveWindow protects recently used sessions from cleanup.
const SessionKeepAliveWindow = 5 * time.Minute

// Session is one page's upload slot.
type Session struct {
	ID        string
	CreatedAt time.Time
	Upload    *upload.Controller

	lastAccessed time.Time
}

// Manager holds page sessions keyed by cookie value.
type Manager struct {
	sessions    map[string]*Session
	mu          sync.RWMutex
	policy      intake.Policy
	maxSessions int
	observers   []upload.Observer
}

// NewManager creates a session manager. Each new session gets a controller
// using policy and the given observers.
func NewManager(policy intake.Policy, maxSessions int, observers ...upload.Observer) *Manager {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	return &Manager{
		sessions:    make(map[string]*Session),
		policy:      policy,
		maxSessions: maxSessions,
		observers:   observers,
	}
}

// Policy returns the validation policy given to new sessions.
func (m *Manager) Policy() intake.Policy {
	return m.policy
}

// GetOrCreate returns the session for id, creating one (with a fresh id when
// id is unknown or empty). created reports whether a new session was made.
func (m *Manager) GetOrCreate(id string) (sess *Session, created bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok && id != "" {
		s.lastAccessed = time.Now()
		return s, false
	}

	if len(m.sessions) >= m.maxSessions {
		m.evictOldestLocked()
	}

	now := time.Now()
	s := &Session{
		ID:           uuid.New().String(),
		CreatedAt:    now,
		Upload:       upload.NewController(m.policy, m.observers...),
		lastAccessed: now,
	}
	m.sessions[s.ID] = s
	log.Debugf("[Sessions] Created session %s (%d active)", shortID(s.ID), len(m.sessions))
	return s, true
}

// Touch updates the last access time of a session.
func (m *Manager) Touch(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return false
	}
	s.lastAccessed = time.Now()
	return true
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CleanupOldSessions removes sessions not accessed within maxAge. Sessions
// with a read in flight or touched within SessionKeepAliveWindow are kept.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-maxAge)
	keepAliveCutoff := now.Add(-SessionKeepAliveWindow)

	removed := 0
	for id, s := range m.sessions {
		if s.lastAccessed.After(keepAliveCutoff) || s.Upload.State().Busy() {
			continue
		}
		if s.lastAccessed.Before(cutoff) {
			s.Upload.Clear()
			delete(m.sessions, id)
			removed++
			log.Infof("[Sessions] Cleaned up idle session %s (last accessed: %s ago)",
				shortID(id), now.Sub(s.lastAccessed).Round(time.Second))
		}
	}
	return removed
}

// evictOldestLocked drops the least recently accessed session.
func (m *Manager) evictOldestLocked() {
	var oldest *Session
	for _, s := range m.sessions {
		if oldest == nil || s.lastAccessed.Before(oldest.lastAccessed) {
			oldest = s
		}
	}
	if oldest == nil {
		return
	}
	oldest.Upload.Clear()
	delete(m.sessions, oldest.ID)
	log.Infof("[Sessions] Evicted session %s to stay under %d sessions", shortID(oldest.ID), m.maxSessions)
}

// shortID safely truncates an ID for logging
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
