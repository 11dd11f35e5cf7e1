package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shubham-shewale/stock-ticker/pkg/models"
)

const (
	keyPrefix     = "stock:"
	channelPrefix = "prices."
)

// RedisClient abstracts the output storage connection
type RedisClient interface {
	Pipeline() redis.Pipeliner
	Close() error
}

type Clock interface {
	Now() time.Time
}

// RedisStore mirrors each tick's prices into Redis: the latest update per
// symbol under stock:<SYM> and a publish on prices.<SYM> for downstream
// consumers.
type RedisStore struct {
	client RedisClient
	clock  Clock
	ttl    time.Duration
	seq    *models.Sequencer
}

func NewRedisStore(client RedisClient, clock Clock, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		clock:  clock,
		ttl:    ttl,
		seq:    models.NewSequencer(),
	}
}

func (r *RedisStore) Name() string { return "redis" }

// Publish writes the whole batch in one pipeline round trip.
func (r *RedisStore) Publish(ctx context.Context, prices []models.PricedSymbol) error {
	if len(prices) == 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	for _, u := range r.seq.Stamp(prices, r.clock.Now()) {
		payload, err := json.Marshal(u)
		if err != nil {
			return fmt.Errorf("marshal %s update: %w", u.Symbol, err)
		}
		pipe.Set(ctx, keyPrefix+u.Symbol, payload, r.ttl) // TTL bounds keys for symbols nobody watches anymore
		pipe.Publish(ctx, channelPrefix+u.Symbol, payload)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}
	return nil
}

// Forget drops the sequence counter of an evicted symbol. The stored key
// expires on its own TTL.
func (r *RedisStore) Forget(symbol string) {
	r.seq.Forget(symbol)
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
