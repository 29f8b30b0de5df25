// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldTraceID   = "trace_id"
	FieldTitleID   = "title_id"
	FieldSceneID   = "scene_id"
	FieldEndingID  = "ending_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Storage fields
	FieldBackend = "backend"
	FieldKey     = "key"
	FieldPath    = "path"
)
