package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lattice/pkg/adapters/redis"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	return mr, backend.NewClient(&backend.Options{Addr: mr.Addr()})
}

func TestRedisRecorder_Contract(t *testing.T) {
	_, client := newClient(t)

	recorder := redis.NewFromClient(client)
	ports.RunRecorderContract(t, recorder)
}

func TestRedisRecorder_TTL(t *testing.T) {
	mr, client := newClient(t)
	ctx := context.Background()

	recorder := redis.NewFromClient(client, redis.WithTTL(time.Minute), redis.WithPrefix("test:"))
	require.NoError(t, recorder.Save(ctx, &domain.RunRecord{RunID: "short", Status: domain.StatusDone}))

	assert.True(t, mr.Exists("test:short"))
	assert.Equal(t, time.Minute, mr.TTL("test:short"))

	mr.FastForward(2 * time.Minute)

	_, err := recorder.Load(ctx, "short")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}

func TestRedisRecorder_FromURL(t *testing.T) {
	mr, _ := newClient(t)

	recorder, err := redis.NewFromURL("redis://" + mr.Addr() + "/0")
	require.NoError(t, err)
	defer recorder.Close()

	ports.RunRecorderContract(t, recorder)

	_, err = redis.NewFromURL("http://" + mr.Addr())
	assert.Error(t, err)
}
