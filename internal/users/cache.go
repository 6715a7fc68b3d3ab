package users

import (
	"context"
	"sync"
	"time"

	"github.com/snapfeed/backend/internal/models"
)

type cacheEntry struct {
	user    models.User
	expires time.Time
}

// CachingService wraps a Service with a TTL-based in-memory cache for
// session-token profile resolution. Every authenticated request resolves the
// caller's profile, so the cache saves two round trips per request for the
// TTL window. Sign-out and profile updates invalidate eagerly; other
// replicas converge when their entries expire.
type CachingService struct {
	*Service
	ttl time.Duration

	mu    sync.RWMutex
	items map[string]cacheEntry
}

// NewCachingService wraps base, caching CurrentUser lookups for the
// provided TTL.
func NewCachingService(base *Service, ttl time.Duration) *CachingService {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachingService{
		Service: base,
		ttl:     ttl,
		items:   make(map[string]cacheEntry),
	}
}

// CurrentUser returns the cached profile for the token when fresh,
// delegating otherwise.
func (c *CachingService) CurrentUser(ctx context.Context, token string) (models.User, error) {
	now := time.Now()

	c.mu.RLock()
	entry, ok := c.items[token]
	c.mu.RUnlock()
	if ok && now.Before(entry.expires) {
		return entry.user, nil
	}

	user, err := c.Service.CurrentUser(ctx, token)
	if err != nil {
		return models.User{}, err
	}

	c.mu.Lock()
	c.items[token] = cacheEntry{user: user, expires: now.Add(c.ttl)}
	c.mu.Unlock()

	return user, nil
}

// SignOut drops the token's cache entry regardless of the delegate's
// outcome, so a terminated session never serves from cache.
func (c *CachingService) SignOut(ctx context.Context, token string) error {
	c.mu.Lock()
	delete(c.items, token)
	c.mu.Unlock()

	return c.Service.SignOut(ctx, token)
}

// Update invalidates every cached entry for the edited profile.
func (c *CachingService) Update(ctx context.Context, input UpdateUser) (models.User, error) {
	user, err := c.Service.Update(ctx, input)
	if err != nil {
		return models.User{}, err
	}

	c.mu.Lock()
	for token, entry := range c.items {
		if entry.user.ID == user.ID {
			delete(c.items, token)
		}
	}
	c.mu.Unlock()

	return user, nil
}
