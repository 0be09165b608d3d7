package main

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	goMFA "github.com/MrEthical07/goMFA"
	"github.com/MrEthical07/goMFA/internal/config"
)

func noEnv(string) string { return "" }

func TestRunRejectsBadFlags(t *testing.T) {
	err := run(context.Background(), []string{"-bogus"}, noEnv, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var logs bytes.Buffer
	err := run(ctx, []string{"-addr", "127.0.0.1:0", "-redis-embedded"}, noEnv, &logs)
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "no signing key configured")
	assert.Contains(t, logs.String(), "shutting down")
}

func TestOpenUserStore(t *testing.T) {
	ctx := context.Background()

	mem, closeMem, err := openUserStore(ctx, config.StoreConfig{Driver: config.StoreMemory})
	require.NoError(t, err)
	closeMem()
	assert.NotNil(t, mem)

	lite, closeLite, err := openUserStore(ctx, config.StoreConfig{Driver: config.StoreSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	defer closeLite()

	require.NoError(t, lite.CreateUser(ctx, goMFA.UserRecord{Username: "alice", PasswordHash: "h"}))
	_, err = lite.GetUser(ctx, "alice")
	assert.NoError(t, err)

	_, _, err = openUserStore(ctx, config.StoreConfig{Driver: "mongo"})
	assert.Error(t, err)
}

func TestOpenEmbeddedRedis(t *testing.T) {
	client, closeFn, err := openRedis(config.RedisConfig{Embedded: true}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	defer closeFn()

	assert.NoError(t, client.Ping(context.Background()).Err())
}
