package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(ttl time.Duration) (*BoardCache, *time.Time) {
	cache := NewBoardCache(ttl)
	clock := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return clock }
	return cache, &clock
}

func TestCacheGetWithinTTL(t *testing.T) {
	cache, clock := newTestCache(30 * time.Second)
	board := testBoard()
	cache.Put(board)

	*clock = clock.Add(29 * time.Second)
	got, ok := cache.Get(board.ProjectID, board.TeamID)
	require.True(t, ok)
	assert.Same(t, board, got)
}

func TestCacheExpires(t *testing.T) {
	cache, clock := newTestCache(30 * time.Second)
	board := testBoard()
	cache.Put(board)

	*clock = clock.Add(31 * time.Second)
	_, ok := cache.Get(board.ProjectID, board.TeamID)
	assert.False(t, ok)
}

func TestCachePutResetsTTL(t *testing.T) {
	cache, clock := newTestCache(30 * time.Second)
	board := testBoard()
	cache.Put(board)

	*clock = clock.Add(20 * time.Second)
	cache.Put(board)

	*clock = clock.Add(20 * time.Second)
	_, ok := cache.Get(board.ProjectID, board.TeamID)
	assert.True(t, ok)
}

func TestCacheInvalidate(t *testing.T) {
	cache, _ := newTestCache(time.Minute)
	board := testBoard()
	cache.Put(board)

	cache.Invalidate(board.ProjectID, board.TeamID)
	_, ok := cache.Get(board.ProjectID, board.TeamID)
	assert.False(t, ok)
}

func TestCacheMissForUnknownBoard(t *testing.T) {
	cache, _ := newTestCache(time.Minute)
	_, ok := cache.Get("proj-x", "team-x")
	assert.False(t, ok)
}

func TestEvictExpired(t *testing.T) {
	cache, clock := newTestCache(30 * time.Second)

	stale := testBoard()
	cache.Put(stale)

	*clock = clock.Add(20 * time.Second)
	fresh := &Board{ProjectID: "proj-2", TeamID: "team-2"}
	cache.Put(fresh)

	*clock = clock.Add(15 * time.Second)
	assert.Equal(t, 1, cache.EvictExpired())

	_, ok := cache.Get(stale.ProjectID, stale.TeamID)
	assert.False(t, ok)
	_, ok = cache.Get(fresh.ProjectID, fresh.TeamID)
	assert.True(t, ok)
}
