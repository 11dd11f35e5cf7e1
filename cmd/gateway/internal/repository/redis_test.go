package repository_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/repository"
	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/testutils"
	"github.com/shubham-shewale/stock-ticker/pkg/models"
)

func setup(t *testing.T) (*repository.RedisStore, *miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := repository.NewRedisStore(rdb, &testutils.MockClock{CurrentTime: time.Unix(100, 0)}, time.Hour)
	return store, mr, rdb
}

func TestRedisStore_PublishSetsLatestPrice(t *testing.T) {
	store, mr, _ := setup(t)

	err := store.Publish(context.Background(), []models.PricedSymbol{
		{Symbol: "AAPL", Price: 150.06},
		{Symbol: "TSLA", Price: 701.5},
	})
	require.NoError(t, err)

	raw, err := mr.Get("stock:AAPL")
	require.NoError(t, err)

	var update models.StockUpdate
	require.NoError(t, json.Unmarshal([]byte(raw), &update))
	assert.Equal(t, models.StockUpdate{Symbol: "AAPL", Price: 150.06, Timestamp: 100_000_000, SeqID: 1}, update)

	assert.True(t, mr.Exists("stock:TSLA"))
	assert.Equal(t, time.Hour, mr.TTL("stock:AAPL"))
}

func TestRedisStore_PublishFansOutOnChannel(t *testing.T) {
	store, _, rdb := setup(t)
	ctx := context.Background()

	sub := rdb.Subscribe(ctx, "prices.AAPL")
	defer sub.Close()
	_, err := sub.Receive(ctx) // subscription confirmation
	require.NoError(t, err)

	require.NoError(t, store.Publish(ctx, []models.PricedSymbol{{Symbol: "AAPL", Price: 150.06}}))

	select {
	case msg := <-sub.Channel():
		assert.Contains(t, msg.Payload, `"price":150.06`)
	case <-time.After(2 * time.Second):
		t.Fatal("no message published on prices.AAPL")
	}
}

func TestRedisStore_SeqIDAdvances(t *testing.T) {
	store, mr, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, store.Publish(ctx, []models.PricedSymbol{{Symbol: "AAPL", Price: 1}}))
	require.NoError(t, store.Publish(ctx, []models.PricedSymbol{{Symbol: "AAPL", Price: 2}}))

	raw, _ := mr.Get("stock:AAPL")
	assert.Contains(t, raw, `"seq_id":2`)
}

func TestRedisStore_EmptyBatchIsNoop(t *testing.T) {
	store, mr, _ := setup(t)

	require.NoError(t, store.Publish(context.Background(), nil))
	assert.Empty(t, mr.Keys())
}

func TestRedisStore_PublishError(t *testing.T) {
	store, mr, _ := setup(t)
	mr.Close()

	err := store.Publish(context.Background(), []models.PricedSymbol{{Symbol: "AAPL", Price: 1}})
	assert.ErrorContains(t, err, "redis pipeline")
}

func TestRedisStore_ForgetRestartsSeqID(t *testing.T) {
	store, mr, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, store.Publish(ctx, []models.PricedSymbol{{Symbol: "TSLA", Price: 1}}))
	require.NoError(t, store.Publish(ctx, []models.PricedSymbol{{Symbol: "TSLA", Price: 2}}))
	store.Forget("TSLA")
	require.NoError(t, store.Publish(ctx, []models.PricedSymbol{{Symbol: "TSLA", Price: 3}}))

	raw, err := mr.Get("stock:TSLA")
	require.NoError(t, err)
	var update models.StockUpdate
	require.NoError(t, json.Unmarshal([]byte(raw), &update))
	assert.Equal(t, int64(1), update.SeqID)
}
