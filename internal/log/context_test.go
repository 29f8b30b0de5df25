// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
)

func TestContextWithRequestID(t *testing.T) {
	tests := []struct {
		name      string
		ctx       context.Context
		requestID string
		want      string
	}{
		{
			name:      "nil context",
			ctx:       nil,
			requestID: "test-id-123",
			want:      "test-id-123",
		},
		{
			name:      "background context",
			ctx:       context.Background(),
			requestID: "req-456",
			want:      "req-456",
		},
		{
			name:      "empty request ID",
			ctx:       context.Background(),
			requestID: "",
			want:      "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := ContextWithRequestID(tt.ctx, tt.requestID)
			got := RequestIDFromContext(ctx)
			if got != tt.want {
				t.Errorf("RequestIDFromContext() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWithComponentFromContext_AddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Service: "test"})
	t.Cleanup(func() { Configure(Config{}) })

	ctx := ContextWithRequestID(context.Background(), "rid-1")
	l := WithComponentFromContext(ctx, "engine")
	l.Info().Str(FieldEvent, "test.event").Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v (%q)", err, buf.String())
	}
	if entry[FieldRequestID] != "rid-1" {
		t.Errorf("request_id = %v, want rid-1", entry[FieldRequestID])
	}
	if entry[FieldComponent] != "engine" {
		t.Errorf("component = %v, want engine", entry[FieldComponent])
	}
	if entry["service"] != "test" {
		t.Errorf("service = %v, want test", entry["service"])
	}
}

func TestFromContext_NilFallsBackToBase(t *testing.T) {
	if FromContext(nil) == nil { //nolint:staticcheck // nil context is part of the contract
		t.Fatal("expected non-nil logger for nil context")
	}
}
