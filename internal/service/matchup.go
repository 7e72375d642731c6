package service

import (
	"context"
	"pickhelper/internal/api"
	"pickhelper/internal/constants"
	"pickhelper/internal/domain"
	"pickhelper/internal/roster"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type MatchupFetcher interface {
	FetchMatchups(ctx context.Context, character, role string) (*api.MatchupsPayload, error)
}

type RosterSource interface {
	Get(ctx context.Context) (*roster.Index, error)
}

// MatchupController runs one (character, role) query at a time. Each submit
// bumps the generation; a fetch only commits if its generation is still
// current, so a slow superseded query can never overwrite a newer one.
type MatchupController struct {
	matchups MatchupFetcher
	roster   RosterSource
	timeout  time.Duration
	logger   zerolog.Logger

	mu          sync.Mutex
	state       State
	generation  uint64
	cancel      context.CancelFunc
	changed     chan struct{}
	subscribers map[int]chan State
	nextSubID   int
	closed      bool
}

// NewMatchupController bounds each query's upstream calls by timeout.
func NewMatchupController(matchups MatchupFetcher, rosterSource RosterSource, timeout time.Duration, logger zerolog.Logger) *MatchupController {
	return &MatchupController{
		matchups:    matchups,
		roster:      rosterSource,
		timeout:     timeout,
		logger:      logger.With().Str("component", "matchup_controller").Logger(),
		state:       idleState(),
		changed:     make(chan struct{}),
		subscribers: make(map[int]chan State),
	}
}

// SubmitQuery starts a query and returns immediately. It returns false when
// nothing was started: an empty character or role, a closed controller, or
// the same key already loading.
func (c *MatchupController) SubmitQuery(ctx context.Context, character, role string) bool {
	if character == "" || role == "" {
		return false
	}
	key := domain.QueryKey{Character: character, Role: role}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	if c.state.Status == domain.StatusLoading && c.state.Key == key {
		c.mu.Unlock()
		c.logger.Debug().Str("champion", character).Str("role", role).Msg("query already loading")
		return false
	}
	if c.cancel != nil {
		c.cancel()
	}

	c.generation++
	gen := c.generation
	// The fetch outlives the submitting request; only a newer query or Close
	// cancels it.
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	c.cancel = cancel
	c.commitLocked(loadingState(key, gen))
	c.mu.Unlock()

	c.logger.Info().Str("champion", character).Str("role", role).Uint64("generation", gen).Msg("query submitted")

	go c.run(fetchCtx, cancel, gen, key)
	return true
}

func (c *MatchupController) run(ctx context.Context, cancel context.CancelFunc, gen uint64, key domain.QueryKey) {
	defer cancel()

	var (
		payload    *api.MatchupsPayload
		index      *roster.Index
		matchupErr error
		rosterErr  error
	)

	// Siblings are not cancelled on failure: a matchups error takes precedence
	// over a roster error, so both outcomes are needed.
	var g errgroup.Group
	g.Go(func() error {
		payload, matchupErr = c.matchups.FetchMatchups(ctx, key.Character, key.Role)
		return matchupErr
	})
	g.Go(func() error {
		index, rosterErr = c.roster.Get(ctx)
		return rosterErr
	})
	failed := g.Wait() != nil

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		c.logger.Debug().
			Str("champion", key.Character).
			Str("role", key.Role).
			Uint64("generation", gen).
			Uint64("current", c.generation).
			Msg("dropping stale query result")
		return
	}
	c.cancel = nil

	if failed {
		err := matchupErr
		if err == nil {
			err = rosterErr
		}
		st := failedState(key, gen, err)
		c.logger.Warn().
			Err(err).
			Str("champion", key.Character).
			Str("role", key.Role).
			Str("error_kind", string(st.ErrorKind)).
			Msg("query failed")
		c.commitLocked(st)
		return
	}

	entries := roster.Join(index, payload.Matchups)
	c.logger.Info().
		Str("champion", key.Character).
		Str("role", key.Role).
		Str("patch", payload.Patch).
		Int("count", len(entries)).
		Msg("query loaded")
	c.commitLocked(loadedState(key, gen, payload, entries))
}

func (c *MatchupController) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Wait blocks until the controller is not loading, is closed, or ctx is done.
func (c *MatchupController) Wait(ctx context.Context) (State, error) {
	for {
		c.mu.Lock()
		st := c.state
		changed := c.changed
		closed := c.closed
		c.mu.Unlock()

		if closed || st.Status != domain.StatusLoading {
			return st, nil
		}
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-changed:
		}
	}
}

// Subscribe delivers every committed state. A slow subscriber only sees the
// latest one. The returned func unsubscribes and closes the channel.
func (c *MatchupController) Subscribe() (<-chan State, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan State, constants.SubscriberBuffer)
	if c.closed {
		close(ch)
		return ch, func() {}
	}

	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = ch
	ch <- c.state

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subscribers[id]; ok {
				delete(c.subscribers, id)
				close(sub)
			}
		})
	}
}

// Close cancels any in-flight query and closes all subscriptions.
func (c *MatchupController) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.generation++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	for id, sub := range c.subscribers {
		delete(c.subscribers, id)
		close(sub)
	}
	close(c.changed)
	c.changed = make(chan struct{})
}

func (c *MatchupController) commitLocked(st State) {
	c.state = st
	close(c.changed)
	c.changed = make(chan struct{})

	for _, sub := range c.subscribers {
		select {
		case <-sub:
		default:
		}
		sub <- st
	}
}
