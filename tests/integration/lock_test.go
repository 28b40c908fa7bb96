package integration

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dimitrije/teamjoin/internal/lock"
	"github.com/dimitrije/teamjoin/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLocker_Integration_SingleHolder(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	rc := testutil.SetupTestRedis(t)
	client := lock.NewRedisClient(rc.Addr, "", 0)
	t.Cleanup(func() { _ = client.Close() })

	// Two lockers model two server instances sharing one Redis.
	a := lock.NewRedis(client)
	b := lock.NewRedis(client)
	ctx := context.Background()

	var acquired int32
	var wg sync.WaitGroup
	releases := make(chan func(), 2)
	for _, l := range []*lock.Redis{a, b} {
		wg.Add(1)
		go func(l *lock.Redis) {
			defer wg.Done()
			release, ok, err := l.Acquire(ctx, "inv-1:uid-1", 10*time.Second)
			assert.NoError(t, err)
			if ok {
				atomic.AddInt32(&acquired, 1)
				releases <- release
			}
		}(l)
	}
	wg.Wait()
	close(releases)

	assert.Equal(t, int32(1), acquired)
	for release := range releases {
		release()
	}

	release, ok, err := b.Acquire(ctx, "inv-1:uid-1", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "lock is free after release")
	release()
}

func TestRedisLocker_Integration_Expiry(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	rc := testutil.SetupTestRedis(t)
	client := lock.NewRedisClient(rc.Addr, "", 0)
	t.Cleanup(func() { _ = client.Close() })

	l := lock.NewRedis(client)
	ctx := context.Background()

	staleRelease, ok, err := l.Acquire(ctx, "k", 200*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(400 * time.Millisecond)

	release, ok, err := l.Acquire(ctx, "k", 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	// The expired holder must not release the new holder's lock.
	staleRelease()
	_, ok, err = l.Acquire(ctx, "k", 10*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
	release()
}
