package feed

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrQueueFull is returned when a publish would block on a full queue.
var ErrQueueFull = errors.New("feed: queue full")

// Queue carries decoded events from the broker listener to the collector.
type Queue interface {
	Publish(ctx context.Context, evt Event) error
	Consume(ctx context.Context) (<-chan Event, error)
}

// Memory is a bounded channel-backed queue for the single-process setup.
type Memory struct {
	ch chan Event
}

// NewMemory creates a bounded in-memory queue.
func NewMemory(size int) *Memory {
	if size <= 0 {
		size = 64
	}
	return &Memory{ch: make(chan Event, size)}
}

// Publish enqueues an event without blocking; a full queue drops the event
// and reports ErrQueueFull so the caller can count it.
func (q *Memory) Publish(ctx context.Context, evt Event) error {
	select {
	case q.ch <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Consume returns a channel the collector drains.
func (q *Memory) Consume(ctx context.Context) (<-chan Event, error) {
	out := make(chan Event)
	go func() {
		defer close(out)
		for {
			select {
			case evt := <-q.ch:
				select {
				case out <- evt:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// RedisQueue implements the queue on a redis list using LPUSH/BRPOP.
// Events are serialized as JSON.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue builds a redis-list queue on key.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = "attendboard:events"
	}
	return &RedisQueue{client: client, key: key}
}

// Publish enqueues an event.
func (q *RedisQueue) Publish(ctx context.Context, evt Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, data).Err()
}

// Consume streams events using BRPOP.
func (q *RedisQueue) Consume(ctx context.Context) (<-chan Event, error) {
	out := make(chan Event)
	go func() {
		defer close(out)
		for {
			res, err := q.client.BRPop(ctx, 5*time.Second, q.key).Result()
			if err != nil {
				if err == redis.Nil {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				continue
			}
			if len(res) != 2 {
				continue
			}
			var evt Event
			if err := json.Unmarshal([]byte(res[1]), &evt); err != nil {
				continue
			}
			select {
			case out <- evt:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
