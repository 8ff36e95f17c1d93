package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// LoginGuard locks an account out after repeated failed logins. With a Redis
// client the counters are shared across instances; otherwise they live in
// process memory.
type LoginGuard struct {
	rdb          *redis.Client
	freeAttempts int
	now          func() time.Time

	mu       sync.Mutex
	failures map[uint]int
	lockedAt map[uint]time.Time
}

func NewLoginGuard(rdb *redis.Client) *LoginGuard {
	return &LoginGuard{
		rdb:          rdb,
		freeAttempts: 3,
		now:          time.Now,
		failures:     make(map[uint]int),
		lockedAt:     make(map[uint]time.Time),
	}
}

// lockoutFor grows with consecutive failures past the free attempts:
// 1m, 5m, 15m, then 30m.
func (g *LoginGuard) lockoutFor(failures int) time.Duration {
	switch over := failures - g.freeAttempts; {
	case over <= 0:
		return 0
	case over == 1:
		return time.Minute
	case over == 2:
		return 5 * time.Minute
	case over == 3:
		return 15 * time.Minute
	default:
		return 30 * time.Minute
	}
}

// Locked reports whether userID is locked out and for how much longer.
func (g *LoginGuard) Locked(ctx context.Context, userID uint) (bool, time.Duration) {
	if g.rdb != nil {
		ttl, err := g.rdb.TTL(ctx, lockKey(userID)).Result()
		if err == nil {
			return ttl > 0, max(ttl, 0)
		}
		zap.L().Warn("login guard redis unavailable", zap.Error(err))
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	until, ok := g.lockedAt[userID]
	if !ok {
		return false, 0
	}
	if left := until.Sub(g.now()); left > 0 {
		return true, left
	}
	delete(g.lockedAt, userID)
	return false, 0
}

func (g *LoginGuard) RecordFailure(ctx context.Context, userID uint) {
	if g.rdb != nil {
		failures, err := g.rdb.Incr(ctx, failKey(userID)).Result()
		if err == nil {
			g.rdb.Expire(ctx, failKey(userID), 30*time.Minute)
			if d := g.lockoutFor(int(failures)); d > 0 {
				g.rdb.Set(ctx, lockKey(userID), "1", d)
			}
			return
		}
		zap.L().Warn("login guard redis unavailable", zap.Error(err))
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures[userID]++
	if d := g.lockoutFor(g.failures[userID]); d > 0 {
		g.lockedAt[userID] = g.now().Add(d)
	}
}

func (g *LoginGuard) Reset(ctx context.Context, userID uint) {
	if g.rdb != nil {
		if err := g.rdb.Del(ctx, failKey(userID), lockKey(userID)).Err(); err == nil {
			return
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.failures, userID)
	delete(g.lockedAt, userID)
}

func failKey(userID uint) string { return fmt.Sprintf("login:fail:u:%d", userID) }
func lockKey(userID uint) string { return fmt.Sprintf("login:lock:u:%d", userID) }
