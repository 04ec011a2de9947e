// Package cache keeps idempotency records in Redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// pending marks a key whose first request has not finished yet.
const pending = "\x00pending"

// ErrInProgress is returned by Begin while another request holds the key.
var ErrInProgress = errors.New("a request with this key is still in progress")

type Idempotency struct {
	client      *redis.Client
	serviceName string
	ttl         time.Duration
	lockTTL     time.Duration
}

func NewIdempotency(client *redis.Client, serviceName string, ttl time.Duration) *Idempotency {
	return &Idempotency{
		client:      client,
		serviceName: serviceName,
		ttl:         ttl,
		lockTTL:     time.Minute,
	}
}

// NewClient connects to addr and checks the server answers.
func NewClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return client, nil
}

func (r *Idempotency) GenerateKey(operation, key string) string {
	return fmt.Sprintf("%s:%s:%s", r.serviceName, operation, key)
}

// Begin claims key. When the key already completed, the stored response is
// returned and started is false.
func (r *Idempotency) Begin(ctx context.Context, key string) (cached []byte, started bool, err error) {
	ok, err := r.client.SetNX(ctx, key, pending, r.lockTTL).Result()
	if err != nil {
		return nil, false, fmt.Errorf("claiming idempotency key: %w", err)
	}
	if ok {
		return nil, true, nil
	}

	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between the two calls; try once more.
		return r.Begin(ctx, key)
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading idempotency key: %w", err)
	}
	if val == pending {
		return nil, false, ErrInProgress
	}
	return []byte(val), false, nil
}

// Complete stores the response for key for the configured ttl.
func (r *Idempotency) Complete(ctx context.Context, key string, response []byte) error {
	if err := r.client.Set(ctx, key, response, r.ttl).Err(); err != nil {
		return fmt.Errorf("storing idempotent response: %w", err)
	}
	return nil
}

// Abort releases key so that the request can be retried.
func (r *Idempotency) Abort(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("releasing idempotency key: %w", err)
	}
	return nil
}
