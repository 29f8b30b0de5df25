// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package persistence

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"

	xglog "github.com/ManuGH/questplay/internal/log"
)

// FileMedium stores each key as <dir>/<key>.json. Writes go through renameio
// so a crash mid-write leaves either the old or the new blob, never a torn one.
type FileMedium struct {
	dir string
}

// NewFileMedium creates the directory if needed.
func NewFileMedium(dir string) (*FileMedium, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create progress dir: %w", err)
	}
	return &FileMedium{dir: dir}, nil
}

func (m *FileMedium) path(key string) string {
	return filepath.Join(m.dir, key+".json")
}

func (m *FileMedium) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(m.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

func (m *FileMedium) Put(ctx context.Context, key string, value []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	logger := xglog.FromContext(ctx)

	pendingFile, err := renameio.NewPendingFile(m.path(key), renameio.WithPermissions(0o600))
	if err != nil {
		return fmt.Errorf("create pending file: %w", err)
	}
	defer func() {
		// No-op once the file was committed.
		if err := pendingFile.Cleanup(); err != nil {
			logger.Debug().Err(err).Str(xglog.FieldKey, key).Msg("cleanup pending progress file")
		}
	}()

	if _, err := pendingFile.Write(value); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}

	// fsync + rename (durable + atomic)
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace %s: %w", key, err)
	}
	return nil
}

func (m *FileMedium) Close() error { return nil }
