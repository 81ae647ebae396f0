package erpsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/frete360/frete_backend/config"
	"github.com/frete360/frete_backend/models"
	"github.com/frete360/frete_backend/utils"
	"github.com/sirupsen/logrus"
)

// Locker serializes syncs of one entity type. TryLock never waits: a held
// lock yields utils.ErrSyncInProgress.
type Locker interface {
	TryLock(ctx context.Context, entity models.SyncEntity) (unlock func(), err error)
}

func lockKey(entity models.SyncEntity) string {
	return fmt.Sprintf("erp-sync:%s", entity)
}

// RedisLocker holds the lock across every instance sharing the Redis server.
// The TTL is refreshed every half TTL until unlock, so a long batch keeps the
// lock; the TTL only bounds how long a crashed holder blocks other syncs.
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	logger *logrus.Logger
}

func NewRedisLocker(client *redislock.Client, ttl time.Duration, logger *logrus.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RedisLocker{client: client, ttl: ttl, logger: logger}
}

func (l *RedisLocker) TryLock(ctx context.Context, entity models.SyncEntity) (func(), error) {
	lock, err := l.client.Obtain(ctx, lockKey(entity), l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, utils.ErrSyncInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("obtain %s: %w", lockKey(entity), err)
	}
	bg := context.WithoutCancel(ctx)
	stop := keepAlive(bg, l.ttl/2, func(ctx context.Context) error {
		return lock.Refresh(ctx, l.ttl, nil)
	}, func(err error) {
		config.LogError(l.logger, "erpsync", "RedisLocker.keepAlive", "refresh sync lock", lockKey(entity), err)
	})
	return func() {
		stop()
		// the batch may have outlived the request
		_ = lock.Release(bg)
	}, nil
}

// keepAlive calls refresh every interval until the returned stop func is
// called. stop waits for an in-flight refresh. A failed refresh is reported
// and ends the loop.
func keepAlive(ctx context.Context, interval time.Duration, refresh func(context.Context) error, onErr func(error)) (stop func()) {
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := refresh(ctx); err != nil {
					onErr(err)
					return
				}
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
		<-exited
	}
}

// LocalLocker is used when Redis is not configured (single instance).
type LocalLocker struct {
	mu    sync.Mutex
	locks map[models.SyncEntity]*sync.Mutex
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: map[models.SyncEntity]*sync.Mutex{}}
}

func (l *LocalLocker) TryLock(ctx context.Context, entity models.SyncEntity) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[entity]
	if !ok {
		m = &sync.Mutex{}
		l.locks[entity] = m
	}
	l.mu.Unlock()

	if !m.TryLock() {
		return nil, utils.ErrSyncInProgress
	}
	return m.Unlock, nil
}
