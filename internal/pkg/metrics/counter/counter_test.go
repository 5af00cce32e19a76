package counter

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assistdesk/assistdesk/internal/pkg/cache"
)

func setupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache.SetClient(client)
	t.Cleanup(func() {
		cache.SetClient(nil)
		_ = client.Close()
	})
	return client, mr
}

func TestAddAPIKeyRequestAndDrain(t *testing.T) {
	ctx := context.Background()
	client, mr := setupRedis(t)

	require.NoError(t, AddAPIKeyRequest(ctx, 7))
	require.NoError(t, AddAPIKeyRequest(ctx, 7))
	require.NoError(t, AddAPIKeyRequest(ctx, 3))

	pairs, err := drain(ctx, client, apiKeyRequestsKey)
	require.NoError(t, err)
	assert.Equal(t, []increment{{id: 3, inc: 1}, {id: 7, inc: 2}}, pairs)

	// the hash and the temporary key are gone
	assert.False(t, mr.Exists(apiKeyRequestsKey))
	assert.Empty(t, mr.Keys())
}

func TestDrainMissingKey(t *testing.T) {
	client, _ := setupRedis(t)
	pairs, err := drain(context.Background(), client, apiKeyRequestsKey)
	require.NoError(t, err)
	assert.Empty(t, pairs)
}

func TestFlushWithoutCountersSkipsDatabase(t *testing.T) {
	client, _ := setupRedis(t)
	// a nil db is never touched when there is nothing to flush
	assert.NoError(t, Flush(context.Background(), client, nil))
}

func TestBatchIncrement(t *testing.T) {
	sql, args := batchIncrement("api_keys", "request_count", []increment{{id: 1, inc: 4}, {id: 9, inc: 2}})
	assert.Equal(t, "UPDATE api_keys SET request_count = request_count + CASE id WHEN ? THEN ? WHEN ? THEN ? END WHERE id IN (?,?)", sql)
	assert.Equal(t, []interface{}{uint64(1), int64(4), uint64(9), int64(2), uint64(1), uint64(9)}, args)
}
