package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TypeDetection marks face-detection messages from capture devices.
const TypeDetection = "detection"

// Message represents work to be processed.
type Message struct {
	Type string
	Body []byte
}

// Detection is the payload published by a capture device when a face is
// spotted. CheckType carries the device's configured direction.
type Detection struct {
	DeviceID   string    `json:"device_id"`
	ImageRef   string    `json:"image_ref"`
	CheckType  string    `json:"check_type"`
	ObservedAt time.Time `json:"observed_at"`
}

// NewDetectionMessage encodes a detection into a queue message.
func NewDetectionMessage(d Detection) (Message, error) {
	body, err := json.Marshal(d)
	if err != nil {
		return Message{}, fmt.Errorf("encode detection: %w", err)
	}
	return Message{Type: TypeDetection, Body: body}, nil
}

// DecodeDetection extracts the detection payload from a message.
func DecodeDetection(msg Message) (Detection, error) {
	var d Detection
	if msg.Type != TypeDetection {
		return d, fmt.Errorf("unexpected message type %q", msg.Type)
	}
	if err := json.Unmarshal(msg.Body, &d); err != nil {
		return d, fmt.Errorf("decode detection: %w", err)
	}
	return d, nil
}

// Queue is the abstraction over different backends.
type Queue interface {
	Publish(ctx context.Context, msg Message) error
	Consume(ctx context.Context) (<-chan Message, error)
}

// InMemory is a minimal channel-backed queue for dev/testing.
type InMemory struct {
	ch chan Message
}

// NewInMemory creates a bounded in-memory queue.
func NewInMemory(size int) *InMemory {
	return &InMemory{ch: make(chan Message, size)}
}

// Publish enqueues a message.
func (q *InMemory) Publish(ctx context.Context, msg Message) error {
	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume returns a channel for workers.
func (q *InMemory) Consume(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			select {
			case msg := <-q.ch:
				out <- msg
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// RedisQueue implements a simple Redis list-backed queue.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue builds a queue using LPUSH/BRPOP semantics.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = "facetrack:detections"
	}
	return &RedisQueue{client: client, key: key}
}

// Publish enqueues a message.
func (q *RedisQueue) Publish(ctx context.Context, msg Message) error {
	payload, err := serialize(msg)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, payload).Err()
}

// Consume streams messages using BRPOP.
func (q *RedisQueue) Consume(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message)
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
			if len(res) == 2 {
				msg, err := deserialize(res[1])
				if err != nil {
					continue
				}
				out <- msg
			}
		}
	}()
	return out, nil
}

// envelope is the wire frame stored in the redis list. Bodies are already
// JSON, so RawMessage keeps them from being double-encoded as a string.
type envelope struct {
	Type string          `json:"type"`
	Body json.RawMessage `json:"body"`
}

func serialize(msg Message) (string, error) {
	b, err := json.Marshal(envelope{Type: msg.Type, Body: msg.Body})
	if err != nil {
		return "", fmt.Errorf("encode queue message: %w", err)
	}
	return string(b), nil
}

func deserialize(s string) (Message, error) {
	var env envelope
	if err := json.Unmarshal([]byte(s), &env); err != nil {
		return Message{}, fmt.Errorf("decode queue message: %w", err)
	}
	return Message{Type: env.Type, Body: env.Body}, nil
}
