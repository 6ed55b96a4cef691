package cooldown

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// RedisConfig holds connection parameters for the shared cooldown store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// Redis shares reservations across scanner instances using SET NX with expiry.
type Redis struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis connects and pings the server.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "alertwatch:cooldown:"
	}
	return &Redis{client: client, prefix: prefix, ttl: cfg.TTL}, nil
}

func (r *Redis) Name() string { return "redis" }

func (r *Redis) Key(symbol string) string { return r.prefix + strings.ToUpper(symbol) }

func (r *Redis) Allow(ctx context.Context, symbol string) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.Key(symbol), time.Now().Unix(), r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

func (r *Redis) Release(ctx context.Context, symbol string) error {
	if err := r.client.Del(ctx, r.Key(symbol)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (r *Redis) Close() error { return r.client.Close() }
