// Package session provides poll-session tracking for monitored devices.
package session

import (
	"sync"
	"time"
)

// PollState represents the current health of a device's poll session.
type PollState int

const (
	PollStateUnknown PollState = iota
	PollStateOnline
	PollStateDegraded
	PollStateOffline
)

// String returns the string representation of the poll state.
func (s PollState) String() string {
	switch s {
	case PollStateOnline:
		return "online"
	case PollStateDegraded:
		return "degraded"
	case PollStateOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// degradedThreshold is the number of consecutive failures after which a
// session is reported degraded rather than online.
const degradedThreshold = 3

// Session tracks the polling history of one device.
type Session struct {
	PN                  string
	FirstSeen           time.Time
	LastSuccess         time.Time
	LastFailure         time.Time
	LastError           string
	PollsSucceeded      int64
	PollsFailed         int64
	ConsecutiveFailures int64
	mutex               sync.RWMutex
}

// NewSession creates a poll session for a device.
func NewSession(pn string) *Session {
	return &Session{
		PN:        pn,
		FirstSeen: time.Now(),
	}
}

// Touch records a successful poll.
func (s *Session) Touch() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.LastSuccess = time.Now()
	s.PollsSucceeded++
	s.ConsecutiveFailures = 0
}

// Fail records a failed poll and the error that caused it.
func (s *Session) Fail(err error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.LastFailure = time.Now()
	s.PollsFailed++
	s.ConsecutiveFailures++
	if err != nil {
		s.LastError = err.Error()
	}
}

// State derives the session health from its recent history. A session with
// no success inside the offline timeout is offline; repeated consecutive
// failures mark it degraded.
func (s *Session) State(offlineTimeout time.Duration) PollState {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if s.LastSuccess.IsZero() {
		if s.PollsFailed > 0 {
			return PollStateOffline
		}
		return PollStateUnknown
	}
	if time.Since(s.LastSuccess) > offlineTimeout {
		return PollStateOffline
	}
	if s.ConsecutiveFailures >= degradedThreshold {
		return PollStateDegraded
	}
	return PollStateOnline
}

// Stats returns a copy of the session statistics.
func (s *Session) Stats(offlineTimeout time.Duration) Stats {
	state := s.State(offlineTimeout)

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return Stats{
		PN:                  s.PN,
		State:               state.String(),
		FirstSeen:           s.FirstSeen,
		LastSuccess:         s.LastSuccess,
		LastFailure:         s.LastFailure,
		LastError:           s.LastError,
		PollsSucceeded:      s.PollsSucceeded,
		PollsFailed:         s.PollsFailed,
		ConsecutiveFailures: s.ConsecutiveFailures,
	}
}

// Stats represents poll-session statistics for external consumption.
type Stats struct {
	PN                  string    `json:"pn"`
	State               string    `json:"state"`
	FirstSeen           time.Time `json:"first_seen"`
	LastSuccess         time.Time `json:"last_success,omitempty"`
	LastFailure         time.Time `json:"last_failure,omitempty"`
	LastError           string    `json:"last_error,omitempty"`
	PollsSucceeded      int64     `json:"polls_succeeded"`
	PollsFailed         int64     `json:"polls_failed"`
	ConsecutiveFailures int64     `json:"consecutive_failures"`
}

// Manager manages poll sessions for all monitored devices.
type Manager struct {
	sessions       map[string]*Session
	mutex          sync.RWMutex
	offlineTimeout time.Duration
}

// NewManager creates a new session manager. offlineTimeout is how long a
// device may go without a successful poll before it reports offline.
func NewManager(offlineTimeout time.Duration) *Manager {
	return &Manager{
		sessions:       make(map[string]*Session),
		offlineTimeout: offlineTimeout,
	}
}

// Get returns the session for a device, creating it on first use.
func (m *Manager) Get(pn string) *Session {
	m.mutex.RLock()
	s, exists := m.sessions[pn]
	m.mutex.RUnlock()
	if exists {
		return s
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()
	if s, exists = m.sessions[pn]; exists {
		return s
	}
	s = NewSession(pn)
	m.sessions[pn] = s
	return s
}

// Lookup returns the session for a device if one exists.
func (m *Manager) Lookup(pn string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	s, exists := m.sessions[pn]
	return s, exists
}

// All returns statistics for every tracked session.
func (m *Manager) All() []Stats {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	stats := make([]Stats, 0, len(m.sessions))
	for _, s := range m.sessions {
		stats = append(stats, s.Stats(m.offlineTimeout))
	}
	return stats
}

// Count returns the number of tracked sessions.
func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

// OfflineTimeout returns the configured offline timeout.
func (m *Manager) OfflineTimeout() time.Duration {
	return m.offlineTimeout
}
