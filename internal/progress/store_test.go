// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package progress

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ManuGH/questplay/internal/persistence"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingMedium struct {
	persistence.Medium
	getErr error
	putErr error
	// flakyGets fails that many Get calls with flakyErr before reads
	// succeed again.
	flakyGets int
	flakyErr  error
}

func (f *failingMedium) Get(ctx context.Context, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.flakyGets > 0 {
		f.flakyGets--
		return nil, f.flakyErr
	}
	return f.Medium.Get(ctx, key)
}

func (f *failingMedium) Put(ctx context.Context, key string, value []byte) error {
	if f.putErr != nil {
		return f.putErr
	}
	return f.Medium.Put(ctx, key, value)
}

func TestLoadMissingReturnsDefault(t *testing.T) {
	store := NewStore(persistence.NewMemoryMedium(), "")
	assert.Equal(t, DefaultKey, store.Key())

	rec := store.Load(context.Background())
	if diff := cmp.Diff(New(), rec); diff != "" {
		t.Fatalf("unexpected default record (-want +got):\n%s", diff)
	}
}

func TestLoadCorruptReturnsDefault(t *testing.T) {
	ctx := context.Background()
	for _, blob := range []string{"{not json", "", "   ", `{"bookmarks": 5}`} {
		t.Run(blob, func(t *testing.T) {
			medium := persistence.NewMemoryMedium()
			require.NoError(t, medium.Put(ctx, DefaultKey, []byte(blob)))
			store := NewStore(medium, "")

			rec := store.Load(ctx)
			assert.Equal(t, New(), rec)
			assert.Empty(t, rec.Bookmarks)
			assert.Empty(t, rec.PerTitle)
			assert.Nil(t, rec.ActiveSession)
		})
	}
}

func TestLoadReadErrorReturnsDefault(t *testing.T) {
	medium := &failingMedium{Medium: persistence.NewMemoryMedium(), getErr: errors.New("disk gone")}
	rec := NewStore(medium, "").Load(context.Background())
	assert.Equal(t, New(), rec)
}

func TestUpdateRetriesFailedRead(t *testing.T) {
	ctx := context.Background()
	mem := persistence.NewMemoryMedium()
	seed := NewStore(mem, "")
	seed.Update(ctx, func(r *Record) {
		r.ApplyEnding("a", StatusVictory, "E1")
		r.ToggleBookmark("a")
	})

	medium := &failingMedium{Medium: mem, flakyErr: errors.New("i/o timeout"), flakyGets: 1}
	got := NewStore(medium, "").Update(ctx, func(r *Record) { r.ToggleBookmark("b") })

	assert.Equal(t, []string{"a", "b"}, got.Bookmarks)
	stored := seed.Load(ctx)
	assert.Equal(t, []string{"a", "b"}, stored.Bookmarks)
	assert.Equal(t, []string{"E1"}, stored.Title("a").FoundEndings)
	assert.Equal(t, StatusVictory, stored.Title("a").Status)
}

func TestUpdateNeverOverwritesAfterFailedReads(t *testing.T) {
	ctx := context.Background()
	mem := persistence.NewMemoryMedium()
	seed := NewStore(mem, "")
	seed.Update(ctx, func(r *Record) {
		r.ApplyEnding("a", StatusVictory, "E1")
		r.ToggleBookmark("a")
	})
	before := seed.Load(ctx)

	medium := &failingMedium{Medium: mem, flakyErr: errors.New("i/o timeout"), flakyGets: 2}
	got := NewStore(medium, "").Update(ctx, func(r *Record) { r.ToggleBookmark("b") })
	assert.Equal(t, []string{"b"}, got.Bookmarks)

	if diff := cmp.Diff(before, seed.Load(ctx)); diff != "" {
		t.Fatalf("stored record changed after failed reads (-want +got):\n%s", diff)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewStore(persistence.NewMemoryMedium(), "")

	rec := New()
	rec.ToggleBookmark("x")
	rec.Touch("x", time.Date(2025, 1, 2, 3, 4, 5, 6_000_000, time.UTC))
	rec.ApplyEnding("x", StatusDefeat, "E3")
	rec.Touch("y", time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC))
	rec.Checkpoint("y", "s4")

	store.Save(ctx, rec)
	got := store.Load(ctx)
	if diff := cmp.Diff(rec, got); diff != "" {
		t.Fatalf("round trip mismatch (-saved +loaded):\n%s", diff)
	}
}

func TestEncodedShape(t *testing.T) {
	rec := New()
	rec.Touch("x", time.Date(2025, 5, 6, 7, 8, 9, 0, time.UTC))

	data, err := Encode(rec)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.EqualValues(t, 3, raw["version"])
	assert.Equal(t, []any{}, raw["bookmarks"])
	assert.Nil(t, raw["activeSession"])
	assert.Contains(t, raw, "activeSession")

	title := raw["perTitle"].(map[string]any)["x"].(map[string]any)
	assert.Equal(t, "none", title["status"])
	assert.Equal(t, "2025-05-06T07:08:09Z", title["lastPlayedAt"])
	assert.NotContains(t, title, "currentSceneId")
}

func TestSaveFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	medium := &failingMedium{Medium: persistence.NewMemoryMedium(), putErr: errors.New("quota exceeded")}
	store := NewStore(medium, "")

	rec := New()
	rec.ToggleBookmark("x")
	store.Save(ctx, rec)

	assert.Error(t, store.Persist(ctx, rec))
	assert.Equal(t, New(), store.Load(ctx))
}

func TestUpdateLoadsFreshRecord(t *testing.T) {
	ctx := context.Background()
	medium := persistence.NewMemoryMedium()
	a := NewStore(medium, "")
	b := NewStore(medium, "")

	a.Update(ctx, func(r *Record) { r.ToggleBookmark("one") })
	got := b.Update(ctx, func(r *Record) { r.ToggleBookmark("two") })

	assert.Equal(t, []string{"one", "two"}, got.Bookmarks)
	assert.Equal(t, []string{"one", "two"}, a.Load(ctx).Bookmarks)
}

// Reaching an ending: status, found endings and resumability are updated together.
func TestEndingBookkeeping(t *testing.T) {
	ctx := context.Background()
	store := NewStore(persistence.NewMemoryMedium(), "")

	store.Update(ctx, func(r *Record) {
		r.Touch("t", time.Now())
		r.Checkpoint("t", "s7")
	})
	rec := store.Update(ctx, func(r *Record) {
		r.ClearResume("t")
		r.ApplyEnding("t", StatusDefeat, "E2")
	})

	tp := rec.Title("t")
	assert.Equal(t, StatusDefeat, tp.Status)
	assert.Equal(t, []string{"E2"}, tp.FoundEndings)
	assert.Empty(t, tp.CurrentSceneID)
	assert.Nil(t, rec.ActiveSession)
	assert.Equal(t, rec, store.Load(ctx))
}

func TestLegacyMigration(t *testing.T) {
	ctx := context.Background()
	medium := persistence.NewMemoryMedium()

	v2 := `{
		"quests": {
			"forest-adventure": {"foundEndings": ["ending_1", "ending_1", "ending_3"], "lastPlayed": 1700000000000, "currentScene": "scene_4", "status": "victory", "questId": "forest-adventure"},
			"castle-mystery": {"endingsFound": ["good"], "lastPlayed": 1600000000000, "currentScene": "hall", "status": "defeat"},
			"pirate-treasure": {"lastPlayed": 0, "status": "weird"}
		},
		"bookmarks": ["forest-adventure", "forest-adventure", "castle-mystery"]
	}`
	require.NoError(t, medium.Put(ctx, "telegramQuestProgress_v2", []byte(v2)))

	store := NewStore(medium, "")
	rec := store.Load(ctx)

	assert.Equal(t, []string{"forest-adventure", "castle-mystery"}, rec.Bookmarks)

	forest := rec.Title("forest-adventure")
	assert.Equal(t, StatusVictory, forest.Status)
	assert.Equal(t, []string{"ending_1", "ending_3"}, forest.FoundEndings)
	assert.True(t, forest.LastPlayedAt.Equal(time.UnixMilli(1700000000000)))

	castle := rec.Title("castle-mystery")
	assert.Equal(t, []string{"good"}, castle.FoundEndings)
	assert.Empty(t, castle.CurrentSceneID)

	assert.Equal(t, StatusNone, rec.Title("pirate-treasure").Status)
	assert.True(t, rec.Title("pirate-treasure").LastPlayedAt.IsZero())

	scene, ok := rec.ResumePoint("forest-adventure")
	require.True(t, ok)
	assert.Equal(t, "scene_4", scene)

	// Written under the canonical key, legacy blob untouched.
	data, err := medium.Get(ctx, DefaultKey)
	require.NoError(t, err)
	stored, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, rec, stored)

	legacy, err := medium.Get(ctx, "telegramQuestProgress_v2")
	require.NoError(t, err)
	assert.JSONEq(t, v2, string(legacy))
}

func TestLegacyMigrationPrefersNewestKey(t *testing.T) {
	ctx := context.Background()
	medium := persistence.NewMemoryMedium()
	require.NoError(t, medium.Put(ctx, "telegramQuestProgress_v2", []byte(`{"quests":{},"bookmarks":["old"]}`)))
	require.NoError(t, medium.Put(ctx, "telegramQuestSaveData_v5", []byte(`{"quests":{},"bookmarks":["new"]}`)))

	rec := NewStore(medium, "").Load(ctx)
	assert.Equal(t, []string{"new"}, rec.Bookmarks)
}

func TestLegacyCorruptFallsThrough(t *testing.T) {
	ctx := context.Background()
	medium := persistence.NewMemoryMedium()
	require.NoError(t, medium.Put(ctx, "telegramQuestSaveData_v5", []byte(`{broken`)))
	require.NoError(t, medium.Put(ctx, "telegramQuestProgress_v2", []byte(`{"bookmarks":["kept"]}`)))

	rec := NewStore(medium, "").Load(ctx)
	assert.Equal(t, []string{"kept"}, rec.Bookmarks)
}
