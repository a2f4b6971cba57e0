package storage

import (
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStorageForTest(t *testing.T) (*RedisStorage, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	s, err := NewRedisStorage(ctx, &RedisConfig{
		Host:        mr.Host(),
		Port:        port,
		MaxRetries:  1,
		DialTimeout: time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestRedisStorage_KeysArePrefixed(t *testing.T) {
	s, mr := newRedisStorageForTest(t)

	_, err := s.Increment(ctx, "192.168.50.1", 1, 0)
	require.NoError(t, err)

	got, err := mr.Get(DefaultRedisPrefix + "192.168.50.1")
	require.NoError(t, err)
	assert.Equal(t, "1", got)
}

func TestRedisStorage_ExpirationAppliesOnCreateOnly(t *testing.T) {
	s, mr := newRedisStorageForTest(t)

	_, err := s.Increment(ctx, "k", 1, 10*time.Second)
	require.NoError(t, err)
	mr.FastForward(5 * time.Second)

	_, err = s.Increment(ctx, "k", 1, 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, mr.TTL(DefaultRedisPrefix+"k"))

	mr.FastForward(5 * time.Second)
	v, err := s.Counter(ctx, "k")
	require.NoError(t, err)
	assert.Zero(t, v)
}

func TestRedisStorage_NoExpiration(t *testing.T) {
	s, mr := newRedisStorageForTest(t)

	_, err := s.Increment(ctx, "k", 1, 0)
	require.NoError(t, err)
	assert.Zero(t, mr.TTL(DefaultRedisPrefix+"k"))
}

func TestRedisStorage_CloseIsIdempotent(t *testing.T) {
	s, _ := newRedisStorageForTest(t)
	require.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}

func TestNewRedisStorage_InvalidConfig(t *testing.T) {
	_, err := NewRedisStorage(ctx, nil)
	assert.Error(t, err)

	_, err = NewRedisStorage(ctx, &RedisConfig{Host: "", Port: 6379})
	assert.Error(t, err)

	_, err = NewRedisStorage(ctx, &RedisConfig{Host: "localhost", Port: 0})
	assert.Error(t, err)

	_, err = NewRedisStorage(ctx, &RedisConfig{Cluster: true})
	assert.Error(t, err)
}
