package settings

import (
	"fmt"
	"sync"
	"time"
)

const (
	// SessionTTL is how long an untouched settings session is kept open
	SessionTTL = 30 * time.Minute

	// SessionCleanupInterval is how often idle sessions are reaped
	SessionCleanupInterval = 5 * time.Minute
)

// Registry holds at most one settings session per user.
// It provides thread-safe operations for opening, retrieving, and closing sessions.
type Registry struct {
	mu          sync.RWMutex
	sessions    map[string]*Controller
	ttl         time.Duration
	logger      Logger
	stopCleanup chan struct{}
	cleanupDone chan struct{}
	stopOnce    sync.Once
}

// NewRegistry creates a new session registry and starts the idle cleanup loop.
func NewRegistry(logger Logger, ttl time.Duration) *Registry {
	r := &Registry{
		sessions:    make(map[string]*Controller),
		ttl:         ttl,
		logger:      logger,
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}

	go r.cleanupLoop()

	return r
}

// Open registers session for userID, closing any session the user already had
// so its late results never reach the new one.
func (r *Registry) Open(userID string, session *Controller) error {
	if session == nil {
		return fmt.Errorf("cannot register nil session")
	}

	if userID == "" {
		return fmt.Errorf("user ID cannot be empty")
	}

	r.mu.Lock()
	previous := r.sessions[userID]
	r.sessions[userID] = session
	r.mu.Unlock()

	if previous != nil {
		previous.Close()
		r.logger.Debug("Replaced settings session", "userId", userID, "previous", previous.ID(), "session", session.ID())
	}

	return nil
}

// Get returns the user's session, or nil if there is none.
func (r *Registry) Get(userID string) *Controller {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sessions[userID]
}

// Close removes and closes the user's session.
func (r *Registry) Close(userID string) error {
	r.mu.Lock()
	session, exists := r.sessions[userID]
	if !exists {
		r.mu.Unlock()
		return fmt.Errorf("no settings session for user %s", userID)
	}

	delete(r.sessions, userID)
	r.mu.Unlock()

	session.Close()
	return nil
}

// CloseAll closes every session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := make([]*Controller, 0, len(r.sessions))
	for userID, session := range r.sessions {
		sessions = append(sessions, session)
		delete(r.sessions, userID)
	}
	r.mu.Unlock()

	for _, session := range sessions {
		session.Close()
	}
}

// Count returns the number of open sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}

// Stop stops the cleanup goroutine and waits for it to finish.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCleanup)
	})
	<-r.cleanupDone
}

func (r *Registry) cleanupLoop() {
	ticker := time.NewTicker(SessionCleanupInterval)
	defer ticker.Stop()
	defer close(r.cleanupDone)

	for {
		select {
		case <-ticker.C:
			r.cleanup(time.Now())
		case <-r.stopCleanup:
			return
		}
	}
}

// cleanup closes sessions idle for longer than the TTL. Sessions with a save
// or export in flight are kept until it finishes.
func (r *Registry) cleanup(now time.Time) {
	r.mu.Lock()
	var expired []*Controller
	for userID, session := range r.sessions {
		if session.busy() || now.Sub(session.LastActive()) <= r.ttl {
			continue
		}
		expired = append(expired, session)
		delete(r.sessions, userID)
	}
	remaining := len(r.sessions)
	r.mu.Unlock()

	for _, session := range expired {
		session.Close()
	}

	if len(expired) > 0 {
		r.logger.Debug("Closed idle settings sessions",
			"expired", len(expired),
			"remaining", remaining)
	}
}
