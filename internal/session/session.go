package session

import (
	"context"
	"pickhelper/internal/domain"
	"pickhelper/internal/search"
	"pickhelper/internal/service"
	"sync"
	"time"
)

// View is what a presentation layer renders: the controller state plus the
// subset of entries that survives the current search text.
type View struct {
	SessionID  string                        `json:"session_id"`
	State      service.State                 `json:"state"`
	SearchText string                        `json:"search_text"`
	Displayed  []domain.EnrichedMatchupEntry `json:"displayed"`
}

// Empty reports a loaded query without any matchups ("no matchups"), which
// is not an error.
func (v View) Empty() bool {
	return v.State.Empty()
}

// NoMatches reports that matchups exist but the search text hides all of them.
func (v View) NoMatches() bool {
	return v.State.Status == domain.StatusLoaded && len(v.State.Entries) > 0 && len(v.Displayed) == 0
}

type Session struct {
	ID         string
	controller *service.MatchupController

	mu         sync.Mutex
	searchText string
	lastSeen   time.Time
	watchers   int
	textChange chan struct{}
}

func newSession(id string, controller *service.MatchupController) *Session {
	return &Session{
		ID:         id,
		controller: controller,
		lastSeen:   time.Now(),
		textChange: make(chan struct{}),
	}
}

func (s *Session) SubmitQuery(ctx context.Context, character, role string) bool {
	s.touch()
	return s.controller.SubmitQuery(ctx, character, role)
}

// Wait blocks until the current query settles and returns the resulting view.
func (s *Session) Wait(ctx context.Context) (View, error) {
	_, err := s.controller.Wait(ctx)
	return s.View(), err
}

func (s *Session) SetSearchText(text string) View {
	s.mu.Lock()
	s.searchText = text
	s.lastSeen = time.Now()
	close(s.textChange)
	s.textChange = make(chan struct{})
	s.mu.Unlock()
	return s.View()
}

func (s *Session) View() View {
	s.mu.Lock()
	text := s.searchText
	s.mu.Unlock()
	return s.render(s.controller.State(), text)
}

// Watch streams a fresh view for every controller state change and every
// search text change until ctx is done or the session is closed.
func (s *Session) Watch(ctx context.Context) <-chan View {
	states, unsubscribe := s.controller.Subscribe()
	out := make(chan View, 1)

	s.mu.Lock()
	s.watchers++
	s.mu.Unlock()

	go func() {
		defer close(out)
		defer unsubscribe()
		defer func() {
			s.mu.Lock()
			s.watchers--
			s.lastSeen = time.Now()
			s.mu.Unlock()
		}()
		last := s.controller.State()
		s.mu.Lock()
		textChange := s.textChange
		s.mu.Unlock()

		for {
			select {
			case <-ctx.Done():
				return
			case st, ok := <-states:
				if !ok {
					return
				}
				last = st
			case <-textChange:
			}

			// Text and its change signal are read together so an update
			// landing after this point still wakes the next iteration.
			s.mu.Lock()
			text := s.searchText
			textChange = s.textChange
			s.mu.Unlock()
			select {
			case out <- s.render(last, text):
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

func (s *Session) Close() {
	s.controller.Close()
}

func (s *Session) render(st service.State, text string) View {
	var displayed []domain.EnrichedMatchupEntry
	if st.Status == domain.StatusLoaded {
		displayed = search.Apply(st.Entries, text)
	}
	if displayed == nil {
		displayed = []domain.EnrichedMatchupEntry{}
	}
	return View{
		SessionID:  s.ID,
		State:      st,
		SearchText: text,
		Displayed:  displayed,
	}
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// idle reports whether nobody watches the session and it has not been used
// since before cutoff.
func (s *Session) idle(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watchers == 0 && s.lastSeen.Before(cutoff)
}
