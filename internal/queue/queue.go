package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"webinar/internal/attendance"
)

// TypeIngestCompleted is published after an upload has been stored.
const TypeIngestCompleted = "ingest.completed"

// DefaultKey is the Redis list ingest events are pushed to.
const DefaultKey = "webinar:ingest-events"

// Event describes a finished ingest.
type Event struct {
	Type       string                `json:"type"`
	FileID     string                `json:"fileId"`
	FileName   string                `json:"fileName"`
	Statistics attendance.Statistics `json:"statistics"`
	At         time.Time             `json:"at"`
}

// Queue is the abstraction over different backends.
type Queue interface {
	Publish(ctx context.Context, evt Event) error
	Consume(ctx context.Context) (<-chan Event, error)
}

// InMemory is a bounded channel-backed queue for single-process runs and tests.
type InMemory struct {
	ch chan Event
}

// NewInMemory creates a bounded in-memory queue.
func NewInMemory(size int) *InMemory {
	return &InMemory{ch: make(chan Event, size)}
}

// Publish enqueues an event, blocking while the buffer is full.
func (q *InMemory) Publish(ctx context.Context, evt Event) error {
	select {
	case q.ch <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume returns a channel that is closed when ctx ends.
func (q *InMemory) Consume(ctx context.Context) (<-chan Event, error) {
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

// RedisQueue implements a Redis list-backed queue.
type RedisQueue struct {
	client *redis.Client
	key    string
	wait   time.Duration
}

// BlockTimeout is how long one BRPOP waits before polling again.
const BlockTimeout = 5 * time.Second

// NewRedisQueue builds a queue using LPUSH/BRPOP semantics.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = DefaultKey
	}
	return &RedisQueue{client: client, key: key, wait: BlockTimeout}
}

// Publish enqueues an event as JSON.
func (q *RedisQueue) Publish(ctx context.Context, evt Event) error {
	payload, err := Encode(evt)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, payload).Err()
}

// Consume streams events using BRPOP. Undecodable payloads are skipped.
func (q *RedisQueue) Consume(ctx context.Context) (<-chan Event, error) {
	out := make(chan Event)
	go func() {
		defer close(out)
		for {
			res, err := q.client.BRPop(ctx, q.wait, q.key).Result()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if !errors.Is(err, redis.Nil) {
					time.Sleep(time.Second)
				}
				continue
			}
			if len(res) != 2 {
				continue
			}
			evt, err := Decode([]byte(res[1]))
			if err != nil {
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

// Encode serializes an event for the wire.
func Encode(evt Event) ([]byte, error) {
	if evt.Type == "" {
		return nil, errors.New("queue: event type required")
	}
	return json.Marshal(evt)
}

// Decode parses an event produced by Encode.
func Decode(b []byte) (Event, error) {
	var evt Event
	if err := json.Unmarshal(b, &evt); err != nil {
		return Event{}, fmt.Errorf("queue: decode event: %w", err)
	}
	if evt.Type == "" {
		return Event{}, errors.New("queue: event type missing")
	}
	return evt, nil
}
