package lock_test

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-beaute/internal/lock"
)

func TestWithLockIdempotent(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locker := lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var order []string
	var mu sync.Mutex
	firstDone := make(chan struct{})
	releaseFirst := make(chan struct{})

	go func() {
		err := locker.WithLock(ctx, "campaign:spring", 100*time.Millisecond, func(context.Context) error {
			mu.Lock()
			order = append(order, "first")
			mu.Unlock()
			close(firstDone)
			<-releaseFirst
			return nil
		})
		require.NoError(t, err)
	}()

	<-firstDone

	go func() {
		err := locker.WithLock(ctx, "campaign:spring", 100*time.Millisecond, func(context.Context) error {
			mu.Lock()
			order = append(order, "second")
			mu.Unlock()
			return nil
		})
		require.NoError(t, err)
	}()

	close(releaseFirst)
	time.Sleep(20 * time.Millisecond)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 2
	}, time.Second, 10*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"first", "second"}, order)
}

func TestTryWithLockReportsHeld(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locker := lock.Locker{R: client}
	ctx := context.Background()

	err := locker.TryWithLock(ctx, "campaign:summer", time.Minute, func(ctx context.Context) error {
		require.True(t, mr.Exists("lock:campaign:summer"))
		inner := locker.TryWithLock(ctx, "campaign:summer", time.Minute, func(context.Context) error {
			t.Fatal("nested holder must not run")
			return nil
		})
		require.ErrorIs(t, inner, lock.ErrHeld)
		return nil
	})
	require.NoError(t, err)
	require.False(t, mr.Exists("lock:campaign:summer"))
}

func TestReleaseKeepsForeignToken(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locker := lock.Locker{R: client}
	err := locker.TryWithLock(context.Background(), "campaign:fall", time.Minute, func(context.Context) error {
		// Simulate expiry and takeover by another worker.
		return mr.Set("lock:campaign:fall", "other-holder")
	})
	require.NoError(t, err)
	got, err := mr.Get("lock:campaign:fall")
	require.NoError(t, err)
	require.Equal(t, "other-holder", got)
}

func TestLeaseIsRenewedWhileHeld(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locker := lock.Locker{R: client}
	err := locker.TryWithLock(context.Background(), "campaign:winter", 300*time.Millisecond, func(ctx context.Context) error {
		time.Sleep(50 * time.Millisecond)
		mr.FastForward(250 * time.Millisecond)
		time.Sleep(120 * time.Millisecond)
		require.Greater(t, mr.TTL("lock:campaign:winter"), 100*time.Millisecond)
		return ctx.Err()
	})
	require.NoError(t, err)
}

func TestLostLeaseCancelsCallback(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locker := lock.Locker{R: client}
	err := locker.TryWithLock(context.Background(), "campaign:autumn", 90*time.Millisecond, func(ctx context.Context) error {
		require.NoError(t, mr.Set("lock:campaign:autumn", "other-holder"))
		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case <-time.After(time.Second):
			return nil
		}
	})
	require.ErrorIs(t, err, lock.ErrLost)
}
