package output

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alvmarrod/contact-weaver/internal/storage"
)

type listPusher interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Close() error
}

// RedisSink appends records to a Redis list with RPUSH
type RedisSink struct {
	client listPusher
	key    string
}

// NewRedisSink connects to addr and appends to the list at key
func NewRedisSink(addr, key string) *RedisSink {
	return &RedisSink{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		key:    key,
	}
}

// NewRedisSinkWithClient builds a sink on a custom client (tests).
func NewRedisSinkWithClient(client listPusher, key string) *RedisSink {
	return &RedisSink{client: client, key: key}
}

// Append pushes rec to the tail of the list
func (r *RedisSink) Append(ctx context.Context, rec storage.Record) error {
	payload, err := Encode(rec)
	if err != nil {
		return err
	}
	if err := r.client.RPush(ctx, r.key, payload).Err(); err != nil {
		return fmt.Errorf("failed to push %s record: %w", rec.Kind, err)
	}
	return nil
}

// Close closes the Redis client
func (r *RedisSink) Close() error {
	return r.client.Close()
}
