//go:build integration

package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"donormatch/internal/platform/config"
	platformredis "donormatch/internal/platform/redis"
	"donormatch/pkg/testutil/containers"
)

func TestNewConnects(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rc := containers.GetManager().GetRedis(t)
	ctx := context.Background()

	client, err := platformredis.New(ctx, config.RedisConfig{
		URL:         rc.URL,
		PoolSize:    4,
		DialTimeout: time.Second,
	})
	require.NoError(t, err)
	require.NotNil(t, client)
	defer client.Close()

	require.NoError(t, client.Health(ctx))
	require.Equal(t, 4, client.Options().PoolSize)
}
