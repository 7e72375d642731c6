package roster

import (
	"context"
	"pickhelper/internal/domain"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

type Fetcher interface {
	FetchRoster(ctx context.Context) ([]domain.Character, error)
}

// Cache holds the roster index for the lifetime of the process. It is filled
// on first use and only dropped by Invalidate or Refresh.
type Cache struct {
	fetcher Fetcher
	timeout time.Duration
	logger  zerolog.Logger

	mu    sync.RWMutex
	index *Index
	// epoch is bumped by Invalidate; a load only stores its result if the
	// epoch it started under is still current.
	epoch uint64
	group singleflight.Group
}

func NewCache(fetcher Fetcher, timeout time.Duration, logger zerolog.Logger) *Cache {
	return &Cache{
		fetcher: fetcher,
		timeout: timeout,
		logger:  logger.With().Str("component", "roster").Logger(),
	}
}

// Get returns the cached index, loading it when empty. Failed loads are not
// cached.
func (c *Cache) Get(ctx context.Context) (*Index, error) {
	c.mu.RLock()
	idx := c.index
	c.mu.RUnlock()
	if idx != nil {
		return idx, nil
	}

	ch := c.group.DoChan("roster", func() (any, error) {
		c.mu.RLock()
		cached := c.index
		epoch := c.epoch
		c.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}

		// Shared by every waiting caller, so one caller's cancellation must not
		// fail the others.
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		characters, err := c.fetcher.FetchRoster(loadCtx)
		if err != nil {
			c.logger.Warn().Err(err).Msg("failed to load roster")
			return nil, err
		}

		loaded := Build(characters)
		c.mu.Lock()
		if c.epoch != epoch {
			c.mu.Unlock()
			c.logger.Debug().Msg("discarding roster loaded before invalidation")
			return loaded, nil
		}
		c.index = loaded
		c.mu.Unlock()

		c.logger.Info().Int("count", loaded.Len()).Msg("roster loaded")
		return loaded, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Index), nil
	}
}

func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.index = nil
	c.epoch++
	c.mu.Unlock()
	c.group.Forget("roster")
}

func (c *Cache) Refresh(ctx context.Context) (*Index, error) {
	c.Invalidate()
	return c.Get(ctx)
}

func (c *Cache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index != nil
}
