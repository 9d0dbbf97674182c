package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// dialTimeout bounds the connect-and-verify handshake.
const dialTimeout = 5 * time.Second

// Redis is the shared cache backend. Operation errors are reported to the
// resilience manager through onError so connection failures observed during
// normal traffic feed the reconnect state machine.
type Redis struct {
	client  *redis.Client
	onError func(error)
}

// NewRedis wraps an established go-redis client. onError may be nil.
func NewRedis(client *redis.Client, onError func(error)) *Redis {
	if onError == nil {
		onError = func(error) {}
	}
	return &Redis{client: client, onError: onError}
}

// Get returns the value stored under key, or ErrMiss.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		r.onError(err)
		return nil, err
	}
	return value, nil
}

// Set stores value under key with ttl.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.onError(err)
		return err
	}
	return nil
}

// Ping verifies the connection.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		r.onError(err)
		return err
	}
	return nil
}

// Close shuts down the connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

// redisDial returns a dial function that creates a go-redis client and
// verifies it with a ping before handing it to the manager.
func redisDial(addr string, onError func(error)) func(context.Context) (Backend, error) {
	return func(ctx context.Context) (Backend, error) {
		client := redis.NewClient(&redis.Options{Addr: addr})

		ctx, cancel := context.WithTimeout(ctx, dialTimeout)
		defer cancel()

		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, err
		}
		return NewRedis(client, onError), nil
	}
}
