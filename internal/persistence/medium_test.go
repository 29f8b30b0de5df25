// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package persistence

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupMiniRedis creates a Redis medium backed by an in-process server.
func setupMiniRedis(t *testing.T) *RedisMedium {
	t.Helper()

	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	return &RedisMedium{
		client: redis.NewClient(&redis.Options{Addr: mr.Addr()}),
		prefix: "questplay:",
	}
}

func openAll(t *testing.T) map[string]Medium {
	t.Helper()
	dir := t.TempDir()

	file, err := NewFileMedium(filepath.Join(dir, "file"))
	require.NoError(t, err)
	sq, err := NewSQLiteMedium(filepath.Join(dir, "kv.sqlite"))
	require.NoError(t, err)
	bg, err := NewBadgerMedium(filepath.Join(dir, "badger"))
	require.NoError(t, err)

	media := map[string]Medium{
		BackendMemory: NewMemoryMedium(),
		BackendFile:   file,
		BackendSQLite: sq,
		BackendBadger: bg,
		BackendRedis:  setupMiniRedis(t),
	}
	t.Cleanup(func() {
		for _, m := range media {
			_ = m.Close()
		}
	})
	return media
}

func TestMedia_GetPutContract(t *testing.T) {
	ctx := context.Background()
	for name, m := range openAll(t) {
		t.Run(name, func(t *testing.T) {
			_, err := m.Get(ctx, "progress.v3")
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, m.Put(ctx, "progress.v3", []byte(`{"a":1}`)))
			got, err := m.Get(ctx, "progress.v3")
			require.NoError(t, err)
			assert.Equal(t, `{"a":1}`, string(got))

			// Put fully overwrites the previous blob.
			require.NoError(t, m.Put(ctx, "progress.v3", []byte(`{}`)))
			got, err = m.Get(ctx, "progress.v3")
			require.NoError(t, err)
			assert.Equal(t, `{}`, string(got))
		})
	}
}

func TestMedia_RejectInvalidKeys(t *testing.T) {
	ctx := context.Background()
	for name, m := range openAll(t) {
		t.Run(name, func(t *testing.T) {
			for _, key := range []string{"", "..", "a/b", "with space"} {
				err := m.Put(ctx, key, []byte("x"))
				assert.ErrorIs(t, err, ErrInvalidKey, "key %q", key)
			}
		})
	}
}

func TestMemoryMedium_CopiesValues(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryMedium()

	buf := []byte("abc")
	require.NoError(t, m.Put(ctx, "k", buf))
	buf[0] = 'X'

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))

	got[1] = 'Y'
	again, _ := m.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
}

func TestMemoryMedium_UseAfterClose(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryMedium()
	require.NoError(t, m.Close())

	_, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, m.Put(ctx, "k", nil), ErrClosed)
}

func TestFileMedium_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	m, err := NewFileMedium(dir)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, m.Put(context.Background(), "progress", []byte("v")))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "progress.json", entries[0].Name())
}

func TestSQLiteMedium_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.sqlite")
	ctx := context.Background()

	m, err := NewSQLiteMedium(path)
	require.NoError(t, err)
	require.NoError(t, m.Put(ctx, "progress", []byte("durable")))
	require.NoError(t, m.Close())

	m2, err := NewSQLiteMedium(path)
	require.NoError(t, err)
	defer m2.Close()

	got, err := m2.Get(ctx, "progress")
	require.NoError(t, err)
	assert.Equal(t, "durable", string(got))
}

func TestOpen_Backends(t *testing.T) {
	t.Run("empty defaults to file, memory without dir", func(t *testing.T) {
		m, err := Open(Config{})
		require.NoError(t, err)
		assert.IsType(t, &MemoryMedium{}, m)
	})

	t.Run("file with dir", func(t *testing.T) {
		m, err := Open(Config{Dir: t.TempDir()})
		require.NoError(t, err)
		assert.IsType(t, &FileMedium{}, m)
	})

	t.Run("sqlite with dir", func(t *testing.T) {
		m, err := Open(Config{Backend: BackendSQLite, Dir: t.TempDir()})
		require.NoError(t, err)
		defer m.Close()
		assert.IsType(t, &SQLiteMedium{}, m)
	})

	t.Run("badger with dir", func(t *testing.T) {
		m, err := Open(Config{Backend: BackendBadger, Dir: t.TempDir()})
		require.NoError(t, err)
		defer m.Close()
		assert.IsType(t, &BadgerMedium{}, m)
	})

	t.Run("redis without address fails", func(t *testing.T) {
		_, err := Open(Config{Backend: BackendRedis})
		require.Error(t, err)
	})

	t.Run("unknown fails closed", func(t *testing.T) {
		m, err := Open(Config{Backend: "bolt"})
		require.Error(t, err)
		assert.Nil(t, m)
		assert.Contains(t, err.Error(), "unknown persistence backend")
	})
}
