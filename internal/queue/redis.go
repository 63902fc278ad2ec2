package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dedupehq/dedupe-backend/internal/logger"
)

// RedisBroker carries each queue as a Redis list: LPUSH to enqueue, BRPOP
// to hand one item to exactly one blocked worker. Redis lists give
// best-effort FIFO with at-least-once delivery, which is all the workers
// assume.
type RedisBroker struct {
	log *logger.Logger
	rdb *goredis.Client
}

func NewRedisBroker(log *logger.Logger, addr, password string) (*RedisBroker, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisBroker{
		log: log.With("component", "RedisBroker"),
		rdb: rdb,
	}, nil
}

// Client exposes the underlying connection so the redis job store can
// share it.
func (b *RedisBroker) Client() *goredis.Client { return b.rdb }

func listKey(queue string) string { return "queue:" + queue }

func (b *RedisBroker) Enqueue(ctx context.Context, queue string, payload []byte) error {
	return b.rdb.LPush(ctx, listKey(queue), payload).Err()
}

func (b *RedisBroker) Dequeue(ctx context.Context, queue string, timeout time.Duration) ([]byte, error) {
	res, err := b.rdb.BRPop(ctx, timeout, listKey(queue)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	// BRPOP returns [key, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply of %d elements", len(res))
	}
	return []byte(res[1]), nil
}

func (b *RedisBroker) Close() error {
	return b.rdb.Close()
}
