// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Span attribute keys.
const (
	TitleIDKey      = "questplay.title_id"
	SceneIDKey      = "questplay.scene_id"
	FetchOutcomeKey = "questplay.fetch_outcome"
	ResumedKey      = "questplay.resumed"
	RequestIDKey    = "http.request_id"
)

// TitleAttributes describes a title and, when known, a scene.
func TitleAttributes(titleID, sceneID string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if titleID != "" {
		attrs = append(attrs, attribute.String(TitleIDKey, titleID))
	}
	if sceneID != "" {
		attrs = append(attrs, attribute.String(SceneIDKey, sceneID))
	}
	return attrs
}

// SceneAttributes describes the scene a title opened at.
func SceneAttributes(sceneID string, resumed bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(SceneIDKey, sceneID),
		attribute.Bool(ResumedKey, resumed),
	}
}

// FetchAttributes describes the outcome of a story load.
func FetchAttributes(outcome string) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.String(FetchOutcomeKey, outcome)}
}
