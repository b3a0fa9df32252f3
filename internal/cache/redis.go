package cache

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/benx421/smartcards/internal/config"
	"github.com/go-redis/redis/v8"
)

// ConnectRedis opens and pings a Redis client
func ConnectRedis(ctx context.Context, cfg *config.RedisConfig, logger *slog.Logger) (*redis.Client, error) {
	logger.Info("connecting to redis", "addr", cfg.Addr, "db", cfg.DB)

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	logger.Info("successfully connected to redis")
	return client, nil
}
