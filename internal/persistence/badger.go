// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// BadgerMedium implements Medium on an embedded badger database.
type BadgerMedium struct {
	db *badger.DB
}

// NewBadgerMedium opens the badger directory at path.
func NewBadgerMedium(path string) (*BadgerMedium, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerMedium{db: db}, nil
}

func (m *BadgerMedium) Get(ctx context.Context, key string) ([]byte, error) {
	var out []byte
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger get %s: %w", key, err)
	}
	return out, nil
}

func (m *BadgerMedium) Put(ctx context.Context, key string, value []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	err := m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("badger put %s: %w", key, err)
	}
	return nil
}

func (m *BadgerMedium) Close() error { return m.db.Close() }
