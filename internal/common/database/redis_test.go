package database

import (
	"context"
	"testing"
	"time"

	"admissions-gateway/internal/common/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snapshot struct {
	Events []string `json:"events"`
}

func newTestRedis(t *testing.T) (*RedisClient, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client, err := NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestNewRedis_RequiresAddress(t *testing.T) {
	_, err := NewRedis(config.RedisConfig{})
	assert.Error(t, err)
}

func TestRedisClient_JSONRoundTrip(t *testing.T) {
	client, mr := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, client.Ping(ctx))
	require.NoError(t, client.SetJSON(ctx, "catalog:snapshot", snapshot{Events: []string{"a", "b"}}, time.Minute))

	var got snapshot
	require.NoError(t, client.GetJSON(ctx, "catalog:snapshot", &got))
	assert.Equal(t, []string{"a", "b"}, got.Events)

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, client.GetJSON(ctx, "catalog:snapshot", &got), ErrCacheMiss)
}

func TestRedisClient_CorruptValue(t *testing.T) {
	client, mr := newTestRedis(t)
	require.NoError(t, mr.Set("catalog:snapshot", "{not json"))

	var got snapshot
	err := client.GetJSON(context.Background(), "catalog:snapshot", &got)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestRedisClient_PingFailure(t *testing.T) {
	client, mr := newTestRedis(t)
	mr.Close()
	assert.Error(t, client.Ping(context.Background()))
}
