package service

import (
	"context"
	"sync"
	"time"

	"github.com/KTB-loadTest/Team9/internal/models"
)

const userCacheTTL = 5 * time.Minute

type cachedUser struct {
	user      *models.User
	expiresAt time.Time
}

// UserCache is a small TTL cache in front of the user directory. It
// raises local hit rates so page assembly rarely pays a directory
// round trip for chatty senders.
type UserCache struct {
	directory UserDirectory
	ttl       time.Duration

	mu    sync.RWMutex
	users map[string]cachedUser
}

func NewUserCache(directory UserDirectory) *UserCache {
	return &UserCache{
		directory: directory,
		ttl:       userCacheTTL,
		users:     make(map[string]cachedUser),
	}
}

// FindAllByID serves hits locally and batch-fetches only the misses.
// Unknown ids stay absent from the result, matching the directory
// contract.
func (c *UserCache) FindAllByID(ctx context.Context, ids []string) (map[string]*models.User, error) {
	result := make(map[string]*models.User, len(ids))

	now := time.Now()
	var misses []string
	c.mu.RLock()
	for _, id := range ids {
		if cached, ok := c.users[id]; ok && cached.expiresAt.After(now) {
			result[id] = cached.user
		} else {
			misses = append(misses, id)
		}
	}
	c.mu.RUnlock()

	if len(misses) == 0 {
		return result, nil
	}

	fetched, err := c.directory.FindAllByID(ctx, misses)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	expiry := now.Add(c.ttl)
	for id, user := range fetched {
		result[id] = user
		c.users[id] = cachedUser{user: user, expiresAt: expiry}
	}
	c.mu.Unlock()
	return result, nil
}

// Evict drops one user, e.g. after a profile update event.
func (c *UserCache) Evict(userID string) {
	c.mu.Lock()
	delete(c.users, userID)
	c.mu.Unlock()
}
