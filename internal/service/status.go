package service

import (
	"sync"
	"time"

	"github.com/gitexplorer/gitexplorer/internal/models"
)

// The frontend polls worktree status on every focus change; answers this
// recent are reused instead of rerunning the status walk.
const defaultStatusTTL = 3 * time.Second

type statusEntry struct {
	resp    *models.StatusResponse
	fetched time.Time
}

// StatusCache memoizes per-repository worktree status for a short window.
// Worktree state is deliberately excluded from the persistent cache: it
// changes outside any ref movement, so no fingerprint can vouch for it.
type StatusCache struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]statusEntry
}

func NewStatusCache(ttl time.Duration) *StatusCache {
	if ttl <= 0 {
		ttl = defaultStatusTTL
	}
	return &StatusCache{ttl: ttl, entries: make(map[string]statusEntry)}
}

// Get returns the memoized status for repoID when it is still within the
// TTL, calling fetch otherwise. Fetch errors are returned without
// disturbing an expired entry, so a transient failure does not wipe the
// last known state before the next successful read replaces it.
func (c *StatusCache) Get(repoID string, fetch func() (*models.StatusResponse, error)) (*models.StatusResponse, error) {
	c.mu.Lock()
	if entry, ok := c.entries[repoID]; ok && time.Since(entry.fetched) < c.ttl {
		c.mu.Unlock()
		return entry.resp, nil
	}
	c.mu.Unlock()

	resp, err := fetch()
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.entries[repoID] = statusEntry{resp: resp, fetched: time.Now()}
	c.mu.Unlock()
	return resp, nil
}

// Invalidate drops the memoized entry for one repository.
func (c *StatusCache) Invalidate(repoID string) {
	c.mu.Lock()
	delete(c.entries, repoID)
	c.mu.Unlock()
}
