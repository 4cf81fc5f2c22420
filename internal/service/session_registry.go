package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/testgen-workbench/internal/events"
	"github.com/noah-isme/testgen-workbench/internal/extraction"
	"github.com/noah-isme/testgen-workbench/internal/observability"
)

// ErrSessionNotFound indicates an unknown or expired workbench session.
var ErrSessionNotFound = errors.New("workbench session not found")

// WorkbenchSession pairs a session id with its controller.
type WorkbenchSession struct {
	ID         string
	Controller *SubmissionController
	CreatedAt  time.Time

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *WorkbenchSession) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *WorkbenchSession) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// SessionStore is the lookup surface used by HTTP handlers.
type SessionStore interface {
	Create() *WorkbenchSession
	Get(id string) (*WorkbenchSession, error)
}

// SessionRegistry keeps one controller per workbench session in memory.
// Nothing is persisted; an expired session starts over from Idle.
type SessionRegistry struct {
	dispatcher extraction.Dispatcher
	publisher  events.Publisher
	ttl        time.Duration
	logger     zerolog.Logger
	now        func() time.Time

	mu       sync.RWMutex
	sessions map[string]*WorkbenchSession
}

// NewSessionRegistry constructs a registry whose controllers share one dispatcher.
func NewSessionRegistry(dispatcher extraction.Dispatcher, publisher events.Publisher, ttl time.Duration, logger zerolog.Logger) *SessionRegistry {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SessionRegistry{
		dispatcher: dispatcher,
		publisher:  publisher,
		ttl:        ttl,
		logger:     logger.With().Str("component", "session_registry").Logger(),
		now:        time.Now,
		sessions:   make(map[string]*WorkbenchSession),
	}
}

// Create registers a fresh session in PhaseIdle.
func (r *SessionRegistry) Create() *WorkbenchSession {
	id := uuid.NewString()
	now := r.now()

	session := &WorkbenchSession{
		ID:        id,
		CreatedAt: now,
		lastSeen:  now,
	}
	session.Controller = NewSubmissionController(r.dispatcher, r.logger.With().Str("session_id", id).Logger(),
		WithResolutionHook(r.publishResolution(session)))

	r.mu.Lock()
	r.sessions[id] = session
	count := len(r.sessions)
	r.mu.Unlock()

	observability.ActiveSessions().Set(float64(count))
	r.logger.Debug().Str("session_id", id).Msg("session created")
	return session
}

// Get returns the session and marks it as recently used.
func (r *SessionRegistry) Get(id string) (*WorkbenchSession, error) {
	r.mu.RLock()
	session, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	session.touch(r.now())
	return session, nil
}

// Len reports the number of live sessions.
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep drops sessions idle for longer than the ttl. Sessions with a
// dispatch in flight or a live state stream are kept regardless of age.
func (r *SessionRegistry) Sweep() int {
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	removed := 0
	for id, session := range r.sessions {
		if session.idleSince().After(cutoff) {
			continue
		}
		if session.Controller.Snapshot().InFlight() || session.Controller.Watched() {
			continue
		}
		delete(r.sessions, id)
		removed++
	}
	count := len(r.sessions)
	r.mu.Unlock()

	observability.ActiveSessions().Set(float64(count))
	if removed > 0 {
		r.logger.Info().Int("removed", removed).Int("remaining", count).Msg("expired sessions swept")
	}
	return removed
}

// Start sweeps expired sessions until ctx is cancelled.
func (r *SessionRegistry) Start(ctx context.Context) {
	interval := r.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Sweep()
			}
		}
	}()
}

func (r *SessionRegistry) publishResolution(session *WorkbenchSession) ResolutionHook {
	return func(state State, _ error) {
		event := events.SubmissionResolved{
			SessionID:  session.ID,
			Document:   state.Dispatched,
			Phase:      state.Phase.String(),
			TestCases:  len(state.Results),
			Error:      state.ErrorMessage,
			ResolvedAt: r.now().UTC(),
		}
		if err := r.publisher.PublishResolved(context.Background(), event); err != nil {
			r.logger.Warn().Err(err).Str("session_id", session.ID).Msg("failed to publish submission event")
		}
	}
}
