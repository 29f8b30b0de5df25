// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/questplay/internal/log"
	"github.com/rs/zerolog"
)

// ParseString reads a string from environment variable or returns default value.
// It logs the source (environment or default) for observability.
func ParseString(key, defaultValue string) string {
	return parseStringWithLogger(log.WithComponent("config"), key, defaultValue)
}

func parseStringWithLogger(logger zerolog.Logger, key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		switch {
		case value == "":
			logger.Debug().
				Str(log.FieldKey, key).
				Str("default", defaultValue).
				Str("source", "default").
				Msg("using default value (environment variable is empty)")
			return defaultValue
		case isSensitive(key):
			// only record that it was set
			logger.Debug().
				Str(log.FieldKey, key).
				Str("source", "environment").
				Bool("sensitive", true).
				Msg("using environment variable")
		default:
			logger.Debug().
				Str(log.FieldKey, key).
				Str("value", value).
				Str("source", "environment").
				Msg("using environment variable")
		}
		return value
	}
	logger.Debug().
		Str(log.FieldKey, key).
		Str("default", defaultValue).
		Str("source", "default").
		Msg("using default value")
	return defaultValue
}

func isSensitive(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "token") || strings.Contains(k, "password")
}

// ParseInt reads an integer from environment variable or returns default value.
// It validates the input and falls back to default on parse errors.
func ParseInt(key string, defaultValue int) int {
	return parseTyped(key, defaultValue, strconv.Atoi, "invalid integer in environment variable, using default")
}

// ParseFloat reads a float from environment variable or returns default value.
func ParseFloat(key string, defaultValue float64) float64 {
	parse := func(s string) (float64, error) { return strconv.ParseFloat(s, 64) }
	return parseTyped(key, defaultValue, parse, "invalid number in environment variable, using default")
}

// ParseDuration reads a duration from environment variable in Go duration format (e.g. "5s").
// It falls back to default on parse errors or empty variables and logs the choice.
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	return parseTyped(key, defaultValue, time.ParseDuration, "invalid duration in environment variable, using default")
}

// ParseBool reads a boolean from environment variable or returns default value.
// It accepts "true", "false", "1", "0", "yes", "no" (case-insensitive).
func ParseBool(key string, defaultValue bool) bool {
	return parseTyped(key, defaultValue, parseBool, "invalid boolean in environment variable, using default")
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	default:
		return false, strconv.ErrSyntax
	}
}

func parseTyped[T any](key string, defaultValue T, parse func(string) (T, error), invalidMsg string) T {
	logger := log.WithComponent("config")
	v, ok := os.LookupEnv(key)
	if !ok {
		logger.Debug().
			Str(log.FieldKey, key).
			Interface("default", defaultValue).
			Str("source", "default").
			Msg("using default value")
		return defaultValue
	}
	if v == "" {
		logger.Debug().
			Str(log.FieldKey, key).
			Interface("default", defaultValue).
			Str("source", "default").
			Msg("using default value (environment variable is empty)")
		return defaultValue
	}
	parsed, err := parse(v)
	if err != nil {
		logger.Warn().
			Str(log.FieldKey, key).
			Str("value", v).
			Interface("default", defaultValue).
			Msg(invalidMsg)
		return defaultValue
	}
	logger.Debug().
		Str(log.FieldKey, key).
		Interface("value", parsed).
		Str("source", "environment").
		Msg("using environment variable")
	return parsed
}
