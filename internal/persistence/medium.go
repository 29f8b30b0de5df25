// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package persistence provides the durable key-value blob media that back the
// progress record. A medium knows nothing about the record schema; it stores
// opaque bytes under string keys.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
)

var (
	// ErrNotFound is returned by Get when no value is stored under the key.
	ErrNotFound = errors.New("persistence: key not found")
	// ErrClosed is returned by media that were used after Close.
	ErrClosed = errors.New("persistence: medium closed")
	// ErrInvalidKey rejects keys that cannot be mapped safely onto every backend.
	ErrInvalidKey = errors.New("persistence: invalid key")
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendRedis  = "redis"
)

// Medium is a durable key-value blob store.
type Medium interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Backend string
	Dir     string
	Redis   RedisConfig
}

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

// ValidateKey reports whether key is usable as a file name, sqlite row key,
// badger key and redis key alike.
func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) || key == "." || key == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// Open creates a Medium for the configured backend. An empty backend defaults
// to the file backend; file, sqlite and badger fall back to memory when no
// directory is configured.
func Open(cfg Config) (Medium, error) {
	backend := cfg.Backend
	if backend == "" {
		backend = BackendFile
	}

	switch backend {
	case BackendMemory:
		return NewMemoryMedium(), nil
	case BackendFile:
		if cfg.Dir == "" {
			return NewMemoryMedium(), nil
		}
		return NewFileMedium(filepath.Join(cfg.Dir, "progress"))
	case BackendSQLite:
		if cfg.Dir == "" {
			return NewMemoryMedium(), nil
		}
		return NewSQLiteMedium(filepath.Join(cfg.Dir, "progress.sqlite"))
	case BackendBadger:
		if cfg.Dir == "" {
			return NewMemoryMedium(), nil
		}
		return NewBadgerMedium(filepath.Join(cfg.Dir, "progress.badger"))
	case BackendRedis:
		return NewRedisMedium(cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown persistence backend: %s (supported: memory, file, sqlite, badger, redis)", backend)
	}
}
