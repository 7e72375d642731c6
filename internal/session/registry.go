package session

import (
	"fmt"
	"pickhelper/internal/constants"
	"pickhelper/internal/service"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// Registry owns one Session per browser session. Every session gets its own
// controller; the roster source is shared.
type Registry struct {
	matchups service.MatchupFetcher
	roster   service.RosterSource
	timeout  time.Duration
	idleTTL  time.Duration
	logger   zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session

	stop chan struct{}
	done chan struct{}
}

func NewRegistry(matchups service.MatchupFetcher, rosterSource service.RosterSource, timeout time.Duration, logger zerolog.Logger) *Registry {
	return &Registry{
		matchups: matchups,
		roster:   rosterSource,
		timeout:  timeout,
		idleTTL:  constants.SessionIdleTTL,
		logger:   logger.With().Str("component", "sessions").Logger(),
		sessions: make(map[string]*Session),
	}
}

func (r *Registry) Create() (*Session, error) {
	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}

	controller := service.NewMatchupController(r.matchups, r.roster, r.timeout, r.logger.With().Str("session_id", id).Logger())
	s := newSession(id, controller)

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()

	r.logger.Debug().Str("session_id", id).Msg("session created")
	return s, nil
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		s.touch()
	}
	return s, ok
}

func (r *Registry) Close(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		s.Close()
		r.logger.Debug().Str("session_id", id).Msg("session closed")
	}
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep closes sessions idle since before now minus the idle TTL and returns
// how many were removed.
func (r *Registry) Sweep(now time.Time) int {
	cutoff := now.Add(-r.idleTTL)

	r.mu.Lock()
	var expired []*Session
	for id, s := range r.sessions {
		if s.idle(cutoff) {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.Close()
	}
	if len(expired) > 0 {
		r.logger.Info().Int("count", len(expired)).Msg("evicted idle sessions")
	}
	return len(expired)
}

func (r *Registry) Start(interval time.Duration) {
	r.stop = make(chan struct{})
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-r.stop:
				return
			case now := <-ticker.C:
				r.Sweep(now)
			}
		}
	}()
}

// Stop ends the sweeper and closes every session.
func (r *Registry) Stop() {
	if r.stop != nil {
		close(r.stop)
		<-r.done
		r.stop = nil
	}

	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
