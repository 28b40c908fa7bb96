// Package lock provides the lockers that keep a redemption single-flight
// across requests (Local) and across server instances (Redis).
package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Local is an in-process locker with expiring entries.
type Local struct {
	mu   sync.Mutex
	held map[string]localEntry
	now  func() time.Time
}

type localEntry struct {
	owner     string
	expiresAt time.Time
}

func NewLocal() *Local {
	return &Local{
		held: make(map[string]localEntry),
		now:  time.Now,
	}
}

func (l *Local) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, ok := l.held[key]; ok && now.Before(e.expiresAt) {
		return nil, false, nil
	}

	owner := newOwner()
	l.held[key] = localEntry{owner: owner, expiresAt: now.Add(ttl)}

	release := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if e, ok := l.held[key]; ok && e.owner == owner {
			delete(l.held, key)
		}
	}
	return release, true, nil
}

// releaseScript deletes the key only if it still holds our owner token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Redis is a locker backed by SET NX with a TTL.
type Redis struct {
	client *redis.Client
	prefix string
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client, prefix: "teamjoin:redeem:"}
}

func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func (r *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	owner := newOwner()
	full := r.prefix + key

	ok, err := r.client.SetNX(ctx, full, owner, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// The request context may already be gone.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, r.client, []string{full}, owner).Err()
	}
	return release, true, nil
}

func newOwner() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
