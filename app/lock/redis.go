package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultKeyPrefix namespaces lock keys in Redis.
const DefaultKeyPrefix = "single_instance:"

// releaseScript deletes the key only while it still carries our token, so a
// lock that expired and was taken by another worker is left alone.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

type RedisBackend struct {
	client *redis.Client
	prefix string
	log    logrus.FieldLogger
}

// NewRedisBackend constructs a lock backend relying on Redis key expiry.
func NewRedisBackend(client *redis.Client, opts ...Option) *RedisBackend {
	o := newOptions(opts)
	return &RedisBackend{
		client: client,
		prefix: o.keyPrefix,
		log:    o.logger.WithField("backend", KindRedis),
	}
}

// Kind returns KindRedis.
func (b *RedisBackend) Kind() Kind {
	return KindRedis
}

// Acquire issues a single SET NX with the timeout as expiry. The returned
// lease carries a token unique to this acquisition.
func (b *RedisBackend) Acquire(ctx context.Context, identifier string, timeout time.Duration) (Lease, bool, error) {
	key := b.key(identifier)
	token, err := randomToken(16)
	if err != nil {
		return Lease{}, false, err
	}

	log := b.log.WithField("key", key)
	log.Debugf("Timeout %s", timeout)

	ok, err := b.client.SetNX(ctx, key, token, timeout).Result()
	if err != nil {
		return Lease{}, false, fmt.Errorf("acquire lock %s: %w", identifier, err)
	}
	if !ok {
		log.Debug("Another instance is running")
		return Lease{}, false, nil
	}

	log.Debug("Got lock")
	return Lease{Identifier: identifier, Token: token}, true, nil
}

// Release deletes the key only while it still carries the lease token.
func (b *RedisBackend) Release(ctx context.Context, lease Lease) error {
	if lease.Token == "" {
		return nil
	}

	key := b.key(lease.Identifier)
	b.log.WithField("key", key).Debug("Releasing lock")
	if err := releaseScript.Run(ctx, b.client, []string{key}, lease.Token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("release lock %s: %w", lease.Identifier, err)
	}
	return nil
}

// IsAlreadyRunning reports whether the lock key exists. Redis drops expired keys,
// so the timeout is not consulted.
func (b *RedisBackend) IsAlreadyRunning(ctx context.Context, identifier string, _ time.Duration) (bool, error) {
	n, err := b.client.Exists(ctx, b.key(identifier)).Result()
	if err != nil {
		return false, fmt.Errorf("check lock %s: %w", identifier, err)
	}
	return n > 0, nil
}

// Reset deletes the lock key whoever holds it.
func (b *RedisBackend) Reset(ctx context.Context, identifier string) error {
	if err := b.client.Del(ctx, b.key(identifier)).Err(); err != nil {
		return fmt.Errorf("reset lock %s: %w", identifier, err)
	}
	return nil
}

func (b *RedisBackend) key(identifier string) string {
	return b.prefix + identifier
}

// randomToken creates a hex token for Redis lock ownership.
func randomToken(size int) (string, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
