// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package story

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// Fetcher retrieves the story document of a title. Failures are *FetchError
// values wrapping ErrNotFound, ErrTransport or ErrMalformed.
type Fetcher interface {
	Fetch(ctx context.Context, titleID string) (*Document, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, titleID string) (*Document, error)

func (f FetcherFunc) Fetch(ctx context.Context, titleID string) (*Document, error) {
	if f == nil {
		return nil, errNilFetcher
	}
	return f(ctx, titleID)
}

// DirFetcher reads <Dir>/<titleID>.json.
type DirFetcher struct {
	Dir string
}

// NewDirFetcher returns a fetcher rooted at dir.
func NewDirFetcher(dir string) *DirFetcher {
	return &DirFetcher{Dir: dir}
}

// Path returns the file a title is read from.
func (f *DirFetcher) Path(titleID string) string {
	return filepath.Join(f.Dir, titleID+".json")
}

func (f *DirFetcher) Fetch(ctx context.Context, titleID string) (*Document, error) {
	if err := ValidateTitleID(titleID); err != nil {
		return nil, classify(titleID, "", ErrNotFound, 0, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, classify(titleID, "", ErrTransport, 0, err)
	}

	path := f.Path(titleID)
	// #nosec G304 -- titleID is validated against a strict pattern above
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, classify(titleID, path, ErrNotFound, 0, err)
		}
		return nil, classify(titleID, path, ErrTransport, 0, err)
	}
	defer func() { _ = file.Close() }()

	doc, err := Parse(file)
	if err != nil {
		return nil, classify(titleID, path, ErrMalformed, 0, err)
	}
	return doc, nil
}
