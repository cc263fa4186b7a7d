package services

import (
	"sync"
	"time"
)

type cacheEntry struct {
	board     *Board
	expiresAt time.Time
}

// BoardCache keeps assembled boards keyed by (project, team) with a TTL.
// All board mutations write through it, so a cached entry is never older
// than the last write from this process.
type BoardCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time
}

func NewBoardCache(ttl time.Duration) *BoardCache {
	return &BoardCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Get returns the cached board for a project/team pair, if fresh.
func (c *BoardCache) Get(projectID, teamID string) (*Board, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[RoomKey(projectID, teamID)]
	if !ok || c.now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.board, true
}

// Put stores a freshly assembled board.
func (c *BoardCache) Put(board *Board) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[RoomKey(board.ProjectID, board.TeamID)] = cacheEntry{
		board:     board,
		expiresAt: c.now().Add(c.ttl),
	}
}

// Invalidate discards the cached board for a project/team pair.
func (c *BoardCache) Invalidate(projectID, teamID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, RoomKey(projectID, teamID))
}

// EvictExpired drops stale entries and returns how many were removed.
// Run periodically by the scheduler.
func (c *BoardCache) EvictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
			evicted++
		}
	}
	return evicted
}
