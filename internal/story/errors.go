// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package story

import (
	"errors"
	"fmt"
	"regexp"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrNotFound   = errors.New("story: document not found")
	ErrTransport  = errors.New("story: transport failure")
	ErrMalformed  = errors.New("story: malformed document")
	ErrInvalidID  = errors.New("story: invalid title id")
	errNilFetcher = errors.New("story: nil fetcher")
)

// FetchError wraps a sentinel with the title and source that failed.
type FetchError struct {
	Sentinel error
	TitleID  string
	Source   string // path or URL
	Status   int    // HTTP status, 0 when not applicable
	Err      error  // lower-level cause
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("%v: title %q", e.Sentinel, e.TitleID)
	if e.Source != "" {
		msg = fmt.Sprintf("%s from %s", msg, e.Source)
	}
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the sentinel and the lower-level cause, so callers can
// test for context.Canceled as well as ErrTransport.
func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Sentinel}
	}
	return []error{e.Sentinel, e.Err}
}

// Reason maps a fetch error onto a short label used in logs, metrics and
// presenter events.
func Reason(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	default:
		return "transport"
	}
}

var titleIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidateTitleID rejects ids that cannot be turned safely into a file name or
// URL path segment.
func ValidateTitleID(id string) error {
	if !titleIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

func classify(titleID, source string, sentinel error, status int, err error) *FetchError {
	return &FetchError{Sentinel: sentinel, TitleID: titleID, Source: source, Status: status, Err: err}
}
