// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	xglog "github.com/ManuGH/questplay/internal/log"
	"github.com/ManuGH/questplay/internal/persistence/sqlite"
)

const sqliteSchemaVersion = 1

// SQLiteMedium implements Medium on a single kv table.
type SQLiteMedium struct {
	DB *sql.DB
}

// NewSQLiteMedium opens (or creates) the database at dbPath and migrates it.
func NewSQLiteMedium(dbPath string) (*SQLiteMedium, error) {
	db, err := sqlite.Open(dbPath, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}

	m := &SQLiteMedium{DB: db}
	if err := m.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("progress medium: migration failed: %w", err)
	}

	issues, err := sqlite.VerifyIntegrity(context.Background(), db, "quick")
	if err != nil || len(issues) > 0 {
		logger := xglog.WithComponent("persistence")
		logger.Warn().
			Err(err).
			Strs("issues", issues).
			Str(xglog.FieldEvent, "persistence.integrity_check_failed").
			Str(xglog.FieldPath, dbPath).
			Msg("sqlite integrity check reported problems")
	}

	return m, nil
}

func (m *SQLiteMedium) migrate() error {
	var currentVersion int
	if err := m.DB.QueryRow("PRAGMA user_version").Scan(&currentVersion); err != nil {
		return err
	}
	if currentVersion >= sqliteSchemaVersion {
		return nil
	}

	tx, err := m.DB.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	if _, err := tx.Exec(schema); err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", sqliteSchemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

func (m *SQLiteMedium) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := m.DB.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", key, err)
	}
	return value, nil
}

func (m *SQLiteMedium) Put(ctx context.Context, key string, value []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	query := `
	INSERT INTO kv (key, value, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		value = excluded.value,
		updated_at = excluded.updated_at
	`
	if _, err := m.DB.ExecContext(ctx, query, key, value, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

func (m *SQLiteMedium) Close() error {
	return m.DB.Close()
}
