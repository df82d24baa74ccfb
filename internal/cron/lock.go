package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/skillbridge-billing/pkg/instance"
)

const defaultLockTTL = 30 * time.Minute

// Lock serializes runs of the same job across worker instances.
type Lock interface {
	Acquire(ctx context.Context, job string) (bool, error)
	Release(ctx context.Context, job string) error
}

type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisLock implements Lock with one SETNX key per job. The TTL bounds how
// long a crashed owner can block later runs.
type RedisLock struct {
	client redisStore
	keyFor func(job string) string
	ttl    time.Duration

	mu     sync.Mutex
	owners map[string]string
}

// NewRedisLock builds a lock whose keys come from keyFor.
func NewRedisLock(client redisStore, keyFor func(job string) string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if keyFor == nil {
		return nil, errors.New("lock key builder is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{client: client, keyFor: keyFor, ttl: ttl, owners: map[string]string{}}, nil
}

func (l *RedisLock) Acquire(ctx context.Context, job string) (bool, error) {
	owner := instance.ID() + "/" + uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.keyFor(job), owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx: %w", err)
	}
	if ok {
		l.mu.Lock()
		l.owners[job] = owner
		l.mu.Unlock()
	}
	return ok, nil
}

// Release deletes the key only while this instance still owns it.
func (l *RedisLock) Release(ctx context.Context, job string) error {
	l.mu.Lock()
	owner, held := l.owners[job]
	delete(l.owners, job)
	l.mu.Unlock()
	if !held {
		return nil
	}

	key := l.keyFor(job)
	value, err := l.client.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read lock owner: %w", err)
	}
	if value != owner {
		return nil
	}
	if err := l.client.Del(ctx, key); err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}
	return nil
}
