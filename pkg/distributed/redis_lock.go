// Package distributed provides a Redis-backed lock so only one instance
// recalculates a given period at a time.
package distributed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "ratings:recalc:"
	defaultTTL       = 30 * time.Minute
)

var (
	// ErrLockNotHeld is returned when releasing or extending a lock whose
	// token no longer matches, usually because it expired.
	ErrLockNotHeld = errors.New("lock not held")
	// ErrNilClient is returned by NewRunLock without a client.
	ErrNilClient = errors.New("redis client is required")
)

// Only the holder may delete or extend.
var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

	extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end`)
)

// RunLock hands out per-key locks with a TTL.
type RunLock struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// Option applies a configuration option to the RunLock.
type Option func(*RunLock)

// WithTTL bounds how long a crashed holder can block others.
func WithTTL(ttl time.Duration) Option {
	return func(l *RunLock) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithKeyPrefix namespaces lock keys.
func WithKeyPrefix(prefix string) Option {
	return func(l *RunLock) {
		if prefix != "" {
			l.prefix = prefix
		}
	}
}

// NewRunLock creates a lock manager on client.
func NewRunLock(client redis.UniversalClient, opts ...Option) (*RunLock, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	l := &RunLock{client: client, prefix: defaultKeyPrefix, ttl: defaultTTL}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Lock is one acquired key. It expires after TTL unless extended.
type Lock struct {
	client redis.UniversalClient
	key    string
	token  string
	ttl    time.Duration
}

// Acquire takes key with SET NX. It returns (nil, nil) when someone else
// holds it.
func (l *RunLock) Acquire(ctx context.Context, key string) (*Lock, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.prefix+key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("set %s: %w", key, err)
	}
	if !ok {
		return nil, nil
	}
	return &Lock{client: l.client, key: l.prefix + key, token: token, ttl: l.ttl}, nil
}

// TTL is the expiry the lock was taken with.
func (k *Lock) TTL() time.Duration {
	return k.ttl
}

// Release deletes the key if this lock still owns it.
func (k *Lock) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, k.client, []string{k.key}, k.token).Int()
	if err != nil {
		return fmt.Errorf("release %s: %w", k.key, err)
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// Extend resets the TTL if this lock still owns the key.
func (k *Lock) Extend(ctx context.Context, ttl time.Duration) error {
	n, err := extendScript.Run(ctx, k.client, []string{k.key}, k.token, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("extend %s: %w", k.key, err)
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}
