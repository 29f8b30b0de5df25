// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	xglog "github.com/ManuGH/questplay/internal/log"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string // Redis server address (host:port)
	Password string // Redis password (optional)
	DB       int    // Redis database number
	Prefix   string // Namespace prepended to every key
}

// RedisMedium implements Medium on a Redis server. Values never expire.
type RedisMedium struct {
	client *redis.Client
	prefix string
}

// NewRedisMedium connects and pings the server.
func NewRedisMedium(cfg RedisConfig) (*RedisMedium, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis backend requires an address")
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger := xglog.WithComponent("persistence")
	logger.Info().
		Str("addr", cfg.Addr).
		Int("db", cfg.DB).
		Str(xglog.FieldEvent, "persistence.redis_connected").
		Msg("connected to Redis progress medium")

	return &RedisMedium{client: client, prefix: cfg.Prefix}, nil
}

func (m *RedisMedium) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := m.client.Get(ctx, m.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, nil
}

func (m *RedisMedium) Put(ctx context.Context, key string, value []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := m.client.Set(ctx, m.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (m *RedisMedium) Close() error { return m.client.Close() }
