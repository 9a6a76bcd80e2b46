package database

import (
	"context"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-sqlgen/pkg/config"
)

func TestNewEmbeddingCacheClient_Disabled(t *testing.T) {
	client, err := NewEmbeddingCacheClient(context.Background(), &config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestNewEmbeddingCacheClient_Connects(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	client, err := NewEmbeddingCacheClient(context.Background(), &config.RedisConfig{Host: mr.Host(), Port: port})
	require.NoError(t, err)
	require.NotNil(t, client)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestNewEmbeddingCacheClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	host := mr.Host()
	port, _ := strconv.Atoi(mr.Port())
	mr.Close()

	client, err := NewEmbeddingCacheClient(context.Background(), &config.RedisConfig{Host: host, Port: port})
	assert.Error(t, err)
	assert.Nil(t, client)
}
