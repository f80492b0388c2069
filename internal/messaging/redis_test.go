package messaging_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"jobmate/apply-service/internal/messaging"
)

// startRedis runs a throwaway Redis container for the test.
func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Redis integration test in -short mode")
	}
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Ping(ctx).Err())
	return rdb
}

func TestRedisBus_RoundTrip(t *testing.T) {
	rdb := startRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := messaging.NewRedisServer(rdb, "test:requests", newRouter(), quietLogger())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	c := messaging.NewClient(messaging.NewRedisBus(rdb, "test:requests", 5*time.Second))

	rl, err := c.CheckRateLimit(ctx)
	require.NoError(t, err)
	assert.True(t, rl.Allowed)

	s, err := c.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, s.DailyLimit)

	_, err = c.GetStats(ctx)
	var remote *messaging.RemoteError
	require.ErrorAs(t, err, &remote)

	cancel()
	require.NoError(t, <-done)
}

func TestRedisBus_Timeout(t *testing.T) {
	rdb := startRedis(t)
	bus := messaging.NewRedisBus(rdb, "test:nobody-listens", time.Second)

	req, err := messaging.NewRequest(messaging.TypeCheckRateLimit, nil)
	require.NoError(t, err)
	_, err = bus.Send(context.Background(), req)
	require.ErrorIs(t, err, messaging.ErrTimeout)

	n, err := rdb.LLen(context.Background(), "test:nobody-listens").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "the request stays queued for a late server")

	raw, err := rdb.LIndex(context.Background(), "test:nobody-listens", 0).Result()
	require.NoError(t, err)
	var queued messaging.Request
	require.NoError(t, json.Unmarshal([]byte(raw), &queued))
	assert.NotEmpty(t, queued.ID)
	assert.Equal(t, "apply:reply:"+queued.ID, queued.ReplyTo)
}
