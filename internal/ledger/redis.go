package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLedger stores each record as "<prefix><name>:<key>" holding the record time.
type RedisLedger struct {
	client *redis.Client
	prefix string
	now    Clock
}

// NewRedis creates a ledger whose keys live under prefix+name+":".
func NewRedis(client *redis.Client, prefix, name string) *RedisLedger {
	return &RedisLedger{client: client, prefix: prefix + name + ":", now: time.Now}
}

func (l *RedisLedger) IsRecorded(ctx context.Context, key string) (bool, error) {
	n, err := l.client.Exists(ctx, l.prefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %s: %w", key, err)
	}
	return n > 0, nil
}

func (l *RedisLedger) Record(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	ok, err := l.client.SetNX(ctx, l.prefix+key, l.now().UTC().Format(time.RFC3339Nano), 0).Result()
	if err != nil {
		return fmt.Errorf("redis setnx %s: %w", key, err)
	}
	if !ok {
		return duplicate(key)
	}
	return nil
}
