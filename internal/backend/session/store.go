package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Store maps opaque session tokens to user ids.
type Store interface {
	Create(ctx context.Context, userID int64) (token string, err error)
	// Lookup reports found=false for unknown or expired tokens.
	Lookup(ctx context.Context, token string) (userID int64, found bool, err error)
	Delete(ctx context.Context, token string) error
	Close() error
}

type StoreOptions struct {
	Type          string
	TTL           time.Duration
	RedisAddress  string
	RedisPassword string
	RedisDB       int
}

func NewStore(ctx context.Context, options StoreOptions) (Store, error) {
	switch options.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     options.RedisAddress,
			Password: options.RedisPassword,
			DB:       options.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", options.RedisAddress, err)
		}
		slog.Info("session store connected to redis", "address", options.RedisAddress, "db", options.RedisDB)
		return NewRedisStore(client, options.TTL), nil
	default:
		return nil, fmt.Errorf("unsupported session store: %s", options.Type)
	}
}

func newToken() string {
	return uuid.NewString()
}
