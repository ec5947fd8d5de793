// Package presence tracks which users are currently polling a game.
package presence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"tabletop-backend/internal/config"
)

// Tracker records sync activity per game.
type Tracker interface {
	// Touch marks userID as online in gameID until the TTL passes.
	Touch(ctx context.Context, gameID, userID string) error
	// Online lists users seen within the TTL, sorted by id.
	Online(ctx context.Context, gameID string) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}

// New returns a Redis tracker when an address is configured, otherwise an
// in-process one.
func New(cfg config.RedisConfig, ttl time.Duration) Tracker {
	if cfg.Addr == "" {
		return NewMemoryTracker(ttl)
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})
	return NewRedisTracker(rdb, ttl)
}

// MemoryTracker single-process Tracker
type MemoryTracker struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	games map[string]map[string]time.Time
}

// NewMemoryTracker MemoryTracker constructor
func NewMemoryTracker(ttl time.Duration) *MemoryTracker {
	return &MemoryTracker{
		ttl:   ttl,
		now:   time.Now,
		games: make(map[string]map[string]time.Time),
	}
}

func (m *MemoryTracker) Touch(_ context.Context, gameID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen, ok := m.games[gameID]
	if !ok {
		seen = make(map[string]time.Time)
		m.games[gameID] = seen
	}
	seen[userID] = m.now()
	return nil
}

func (m *MemoryTracker) Online(_ context.Context, gameID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.ttl)
	online := []string{}
	for userID, at := range m.games[gameID] {
		if at.Before(cutoff) {
			delete(m.games[gameID], userID)
			continue
		}
		online = append(online, userID)
	}
	if len(m.games[gameID]) == 0 {
		delete(m.games, gameID)
	}
	sort.Strings(online)
	return online, nil
}

func (m *MemoryTracker) Ping(context.Context) error { return nil }

func (m *MemoryTracker) Close() error { return nil }
