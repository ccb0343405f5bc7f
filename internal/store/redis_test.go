package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore_RequiresAddr(t *testing.T) {
	_, err := NewRedisStore(RedisConfig{})
	assert.Error(t, err)
}

func TestRedisStore_KeyPrefix(t *testing.T) {
	s := &RedisStore{prefix: "oracle"}
	assert.Equal(t, "oracle:Will it rain?", s.key("Will it rain?"))

	s.prefix = ""
	assert.Equal(t, "Will it rain?", s.key("Will it rain?"))
}

func TestRedisStore_UnreachableIsAnError(t *testing.T) {
	s, err := NewRedisStore(RedisConfig{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
	})
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got, hit, err := s.Get(ctx, "q")
	assert.Error(t, err, "connection failure must not be reported as a miss")
	assert.False(t, hit)
	assert.Nil(t, got)

	assert.Error(t, s.Set(ctx, "q", []byte("x")))
	assert.Error(t, s.Ping(ctx))
}

// Runs against a real server when ORACLE_TEST_REDIS_ADDR is set.
func TestRedisStore_Integration(t *testing.T) {
	addr := os.Getenv("ORACLE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ORACLE_TEST_REDIS_ADDR not set")
	}

	prefix := "oracle-test-" + time.Now().Format("150405.000000")
	s, err := NewRedisStore(RedisConfig{Addr: addr, Prefix: prefix, TTL: time.Minute})
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Ping(ctx))

	_, hit, err := s.Get(ctx, "Will it rain?")
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, s.Set(ctx, "Will it rain?", []byte("Absolutely!")))

	got, hit, err := s.Get(ctx, "Will it rain?")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "Absolutely!", string(got))
}
