package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
)

var ErrEntityBusy = errors.New("entity is already being processed")

const sweepLockKey = "dq:profile-all"

func entityLockKey(entityID int64) string {
	return fmt.Sprintf("dq:entity:%d", entityID)
}

// EntityLocker serializes runs touching the same key. The returned release
// func must be called exactly once.
type EntityLocker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}

// RedisLocker holds the lock in Redis so that every service instance and
// the CLI see it.
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	wait   time.Duration
	logger *logrus.Logger
}

func NewRedisLocker(client *redislock.Client, ttl, wait time.Duration, logger *logrus.Logger) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl, wait: wait, logger: logger}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	if l.client == nil {
		return nil, errors.New("service not ready (redis lock not initialized)")
	}
	opts := &redislock.Options{}
	obtainCtx := ctx
	if l.wait > 0 {
		var cancel context.CancelFunc
		obtainCtx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
		opts.RetryStrategy = redislock.LinearBackoff(100 * time.Millisecond)
	}
	lock, err := l.client.Obtain(obtainCtx, key, l.ttl, opts)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%s: %w", key, ErrEntityBusy)
	} else if err != nil {
		return nil, err
	}
	return func() {
		if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.logger.WithFields(logrus.Fields{"field": "RedisLocker", "key": key}).WithError(err).Warn("lock release failed")
		}
	}, nil
}

// LocalLocker is the in-process fallback used when Redis is not configured.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
	wait  time.Duration
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker(wait time.Duration) *LocalLocker {
	return &LocalLocker{slots: make(map[string]*lockSlot), wait: wait}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = slot
	}
	slot.refs++
	l.mu.Unlock()

	acquired := false
	select {
	case slot.ch <- struct{}{}:
		acquired = true
	default:
	}
	if !acquired && l.wait > 0 {
		timer := time.NewTimer(l.wait)
		defer timer.Stop()
		select {
		case slot.ch <- struct{}{}:
			acquired = true
		case <-ctx.Done():
			l.drop(key, slot)
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if !acquired {
		l.drop(key, slot)
		return nil, fmt.Errorf("%s: %w", key, ErrEntityBusy)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-slot.ch
			l.drop(key, slot)
		})
	}, nil
}

func (l *LocalLocker) drop(key string, slot *lockSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, key)
	}
}
