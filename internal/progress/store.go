// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package progress

import (
	"context"
	"errors"

	xglog "github.com/ManuGH/questplay/internal/log"
	"github.com/ManuGH/questplay/internal/metrics"
	"github.com/ManuGH/questplay/internal/persistence"
	"github.com/rs/zerolog"
)

// DefaultKey is the canonical key of the progress record.
const DefaultKey = "questplay.progress.v3"

// LegacyKeys are tried in order when the canonical key is absent.
var LegacyKeys = []string{"telegramQuestSaveData_v5", "telegramQuestProgress_v2"}

// Store reads and writes the whole record under one fixed key.
type Store struct {
	medium persistence.Medium
	key    string
	logger zerolog.Logger
}

// NewStore wraps medium. An empty key selects DefaultKey.
func NewStore(medium persistence.Medium, key string) *Store {
	if key == "" {
		key = DefaultKey
	}
	return &Store{
		medium: medium,
		key:    key,
		logger: xglog.WithComponent("progress").With().Str(xglog.FieldKey, key).Logger(),
	}
}

// Key returns the key the record is stored under.
func (s *Store) Key() string { return s.key }

// Load returns the persisted record. It never fails: a missing, empty,
// unreadable or malformed blob yields the default record.
func (s *Store) Load(ctx context.Context) Record {
	rec, _ := s.load(ctx)
	return rec
}

// load is Load that also reports whether the record reflects what is stored.
// It returns false only when the medium read failed, in which case the
// stored record is unknown and must not be overwritten.
func (s *Store) load(ctx context.Context) (Record, bool) {
	data, err := s.medium.Get(ctx, s.key)
	switch {
	case err == nil:
		rec, derr := Decode(data)
		if derr != nil {
			s.logger.Warn().Err(derr).Str(xglog.FieldEvent, "progress.corrupt").Msg("discarding unreadable progress record")
			metrics.RecordProgressLoadRecovery("corrupt")
			return New(), true
		}
		return rec, true
	case errors.Is(err, persistence.ErrNotFound):
		if rec, ok := s.migrate(ctx); ok {
			return rec, true
		}
		metrics.RecordProgressLoadRecovery("missing")
		return New(), true
	default:
		s.logger.Error().Err(err).Str(xglog.FieldEvent, "progress.read_failed").Msg("progress read failed, using empty record")
		metrics.RecordProgressLoadRecovery("read_error")
		return New(), false
	}
}

func (s *Store) migrate(ctx context.Context) (Record, bool) {
	for _, legacyKey := range LegacyKeys {
		data, err := s.medium.Get(ctx, legacyKey)
		if err != nil {
			if !errors.Is(err, persistence.ErrNotFound) {
				s.logger.Warn().Err(err).Str("legacy_key", legacyKey).Msg("legacy progress read failed")
			}
			continue
		}
		rec, err := DecodeLegacy(data)
		if err != nil {
			s.logger.Warn().Err(err).Str("legacy_key", legacyKey).Str(xglog.FieldEvent, "progress.legacy_corrupt").Msg("skipping unreadable legacy record")
			continue
		}
		s.logger.Info().
			Str("legacy_key", legacyKey).
			Int("titles", len(rec.PerTitle)).
			Str(xglog.FieldEvent, "progress.migrated").
			Msg("migrated legacy progress record")
		metrics.RecordProgressLoadRecovery("migrated")
		s.Save(ctx, rec)
		return rec, true
	}
	return Record{}, false
}

// Persist writes rec and reports failures to the caller.
func (s *Store) Persist(ctx context.Context, rec Record) error {
	data, err := Encode(rec)
	if err != nil {
		return err
	}
	return s.medium.Put(ctx, s.key, data)
}

// Save overwrites the stored record. Write failures are logged and counted
// but not returned; the in-memory session continues.
func (s *Store) Save(ctx context.Context, rec Record) {
	if err := s.Persist(ctx, rec); err != nil {
		s.logger.Error().Err(err).Str(xglog.FieldEvent, "progress.save_failed").Msg("progress write failed")
		metrics.IncProgressSaveFailure()
	}
}

// Update loads the current record, applies fn and saves the result, which it
// also returns. A failed read is retried once; if it fails again fn is
// applied to the default record for the caller's benefit but nothing is
// saved, so the stored record is never replaced by one built from a failed
// read.
func (s *Store) Update(ctx context.Context, fn func(*Record)) Record {
	rec, ok := s.load(ctx)
	if !ok {
		rec, ok = s.load(ctx)
	}
	fn(&rec)
	if !ok {
		s.logger.Warn().Str(xglog.FieldEvent, "progress.save_skipped").Msg("stored progress unreadable, not overwriting it")
		metrics.IncProgressSaveFailure()
		return rec
	}
	s.Save(ctx, rec)
	return rec
}
