package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// BucketLocker serializes work on one key across goroutines, or across
// instances when backed by Redis.
type BucketLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// LocalBucketLocker is an in-process keyed mutex.
type LocalBucketLocker struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	ch   chan struct{}
	refs int
}

func NewLocalBucketLocker() *LocalBucketLocker {
	return &LocalBucketLocker{locks: make(map[string]*keyedLock)}
}

func (l *LocalBucketLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyedLock{ch: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, kl)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-kl.ch
			l.release(key, kl)
		})
	}, nil
}

func (l *LocalBucketLocker) release(key string, kl *keyedLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}

var ErrLockNotAcquired = errors.New("bucket lock not acquired")

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// RedisBucketLocker takes a SET NX PX lease per key so recomputation of a bucket
// runs on one instance at a time.
type RedisBucketLocker struct {
	client     redis.UniversalClient
	prefix     string
	ttl        time.Duration
	retryDelay time.Duration
}

func NewRedisBucketLocker(client redis.UniversalClient, ttl time.Duration) *RedisBucketLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisBucketLocker{
		client:     client,
		prefix:     "brandsentry:bucket-lock:",
		ttl:        ttl,
		retryDelay: 50 * time.Millisecond,
	}
}

// Lock polls until the lease is free or ctx ends. A holder that dies loses the
// lease after ttl.
func (l *RedisBucketLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := l.prefix + key
	token := uuid.New().String()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire bucket lock: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrLockNotAcquired, ctx.Err())
		case <-time.After(l.retryDelay):
		}
	}

	return func() {
		// Release on a fresh context so a cancelled caller still frees the lease.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err()
	}, nil
}
