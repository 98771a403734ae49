package history

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/danielorf/ArtCaptionBot/internal/model"
)

// RedisLedger keeps published content ids in a sorted set scored by publish time
type RedisLedger struct {
	client *redis.Client
	key    string
}

// NewRedisLedger connects to redis and verifies the connection
func NewRedisLedger(ctx context.Context, cfg model.RedisConfig) (*RedisLedger, error) {
	key := cfg.Key
	if key == "" {
		key = "artcaptionbot:publications"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	return &RedisLedger{client: client, key: key}, nil
}

func (l *RedisLedger) actorKey(actor string) string {
	if actor == "" {
		return l.key
	}
	return l.key + ":" + actor
}

// ListRecent returns the newest count ids recorded for actor
func (l *RedisLedger) ListRecent(ctx context.Context, actor string, count int) ([]string, error) {
	if count <= 0 {
		return nil, nil
	}
	ids, err := l.client.ZRevRange(ctx, l.actorKey(actor), 0, int64(count-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrevrange: %w", err)
	}
	return ids, nil
}

// RecordFor returns a recorder that files publications under actor
func (l *RedisLedger) RecordFor(actor string) *RedisRecorder {
	return &RedisRecorder{ledger: l, actor: actor}
}

// Close releases the connection pool
func (l *RedisLedger) Close() error {
	return l.client.Close()
}

// RedisRecorder appends publications to a RedisLedger
type RedisRecorder struct {
	ledger *RedisLedger
	actor  string
}

// Name identifies the recorder in logs
func (r *RedisRecorder) Name() string {
	return "redis"
}

// Record adds the publication's content id
func (r *RedisRecorder) Record(ctx context.Context, pub *model.Publication) error {
	member := redis.Z{
		Score:  float64(pub.PublishedAt.Unix()),
		Member: pub.ItemID,
	}
	if err := r.ledger.client.ZAdd(ctx, r.ledger.actorKey(r.actor), member).Err(); err != nil {
		return fmt.Errorf("redis zadd: %w", err)
	}
	return nil
}
