package redis

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFailureKey(t *testing.T) {
	k := failureKey("alice")

	assert.True(t, strings.HasPrefix(k, "login_failures:"))
	assert.NotContains(t, k, "alice")
	assert.Len(t, strings.TrimPrefix(k, "login_failures:"), 64)
	assert.Equal(t, k, failureKey("alice"))
	assert.NotEqual(t, k, failureKey("Alice"))
}

func TestNewLoginThrottle_DefaultWindow(t *testing.T) {
	th := NewLoginThrottle(nil, 5, 0)

	assert.Equal(t, defaultFailureWindow, th.window)
	assert.Equal(t, int64(5), th.maxFailures)

	th = NewLoginThrottle(nil, 3, time.Minute)
	assert.Equal(t, time.Minute, th.window)
}

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := Connect(context.Background(), Config{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestLoginThrottle_BlocksAtLimit(t *testing.T) {
	_, client := newMiniredis(t)
	th := NewLoginThrottle(client, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.NoError(t, th.RecordFailure(ctx, "alice"))
		blocked, err := th.Blocked(ctx, "alice")
		require.NoError(t, err)
		assert.False(t, blocked, "after %d failures", i+1)
	}

	require.NoError(t, th.RecordFailure(ctx, "alice"))
	blocked, err := th.Blocked(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, blocked)

	other, err := th.Blocked(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, other)
}

func TestLoginThrottle_Reset(t *testing.T) {
	mr, client := newMiniredis(t)
	th := NewLoginThrottle(client, 2, time.Minute)
	ctx := context.Background()

	require.NoError(t, th.RecordFailure(ctx, "alice"))
	require.NoError(t, th.RecordFailure(ctx, "alice"))
	require.NoError(t, th.Reset(ctx, "alice"))

	assert.False(t, mr.Exists(failureKey("alice")))
	blocked, err := th.Blocked(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestLoginThrottle_WindowStartsAtFirstFailure(t *testing.T) {
	mr, client := newMiniredis(t)
	th := NewLoginThrottle(client, 2, time.Minute)
	ctx := context.Background()
	key := failureKey("alice")

	require.NoError(t, th.RecordFailure(ctx, "alice"))
	assert.Equal(t, time.Minute, mr.TTL(key))

	mr.FastForward(40 * time.Second)
	require.NoError(t, th.RecordFailure(ctx, "alice"))
	assert.Equal(t, 20*time.Second, mr.TTL(key))

	blocked, err := th.Blocked(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, blocked)

	mr.FastForward(21 * time.Second)
	blocked, err = th.Blocked(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, blocked)

	require.NoError(t, th.RecordFailure(ctx, "alice"))
	assert.Equal(t, time.Minute, mr.TTL(key))
}

func TestLoginThrottle_UnreachableRedis(t *testing.T) {
	mr, client := newMiniredis(t)
	th := NewLoginThrottle(client, 2, time.Minute)
	mr.Close()

	_, err := th.Blocked(context.Background(), "alice")
	assert.Error(t, err)
	assert.Error(t, th.RecordFailure(context.Background(), "alice"))
}

func TestConnect_AndPing(t *testing.T) {
	mr, client := newMiniredis(t)
	ping := Ping(client)

	assert.NoError(t, ping(context.Background()))
	mr.Close()
	assert.Error(t, ping(context.Background()))
}

func TestConnect_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := Connect(context.Background(), Config{Addr: addr, Timeout: 200 * time.Millisecond})
	assert.ErrorContains(t, err, addr)
}
