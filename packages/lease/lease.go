// Package lease provides short-lived named locks so that several hitcron
// instances sharing one database fire each schedule only once per tick.
package lease

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long a tick stays claimed
const DefaultTTL = 5 * time.Minute

// FireKey prefixes every lease key of one schedule
func FireKey(scheduleID string) string {
	return "hitcron:fire:" + scheduleID
}

// TickKey is the lease key guarding one cron activation of a schedule
func TickKey(scheduleID string, tick time.Time) string {
	return FireKey(scheduleID) + ":" + strconv.FormatInt(tick.Unix(), 10)
}

// Locker grants ownership of a key until its TTL runs out. Keys are never
// released early: a tick that fired stays claimed.
type Locker interface {
	// Acquire reports whether the key was obtained
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisLocker implements Locker with SET NX. The value names the instance
// holding the key.
type RedisLocker struct {
	rdb   *redis.Client
	owner string
}

func NewRedisLocker(rdb *redis.Client) *RedisLocker {
	return &RedisLocker{
		rdb:   rdb,
		owner: uuid.New().String(),
	}
}

// DialRedis connects to the redis server at url and verifies it responds
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return l.rdb.SetNX(ctx, key, l.owner, ttl).Result()
}

// LocalLocker implements Locker within a single process
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		held: make(map[string]time.Time),
		now:  time.Now,
	}
}

func (l *LocalLocker) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for k, expires := range l.held {
		if !now.Before(expires) {
			delete(l.held, k)
		}
	}
	if _, ok := l.held[key]; ok {
		return false, nil
	}
	l.held[key] = now.Add(ttl)
	return true, nil
}

