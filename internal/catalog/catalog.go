// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package catalog holds the static title metadata and turns it, together with
// the progress record, into the menu display list.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ManuGH/questplay/internal/story"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultCatalog []byte

// ErrUnknownTitle is returned by Catalog.Find for ids not in the catalog.
var ErrUnknownTitle = errors.New("catalog: unknown title")

// Title is the static metadata of one story.
type Title struct {
	ID           string `yaml:"id" json:"id"`
	Title        string `yaml:"title" json:"title"`
	CoverImage   string `yaml:"coverImage" json:"coverImage"`
	IsDev        bool   `yaml:"isDev" json:"isDev"`
	TotalEndings int    `yaml:"totalEndings" json:"totalEndings"` // 0 = not tracked
}

// Catalog is the ordered list of titles shown in the menu.
type Catalog struct {
	Titles []Title `yaml:"titles"`
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Decode(bytes.NewReader(defaultCatalog))
	if err != nil {
		panic(fmt.Sprintf("catalog: built-in catalog invalid: %v", err))
	}
	return c
}

// Load reads a YAML catalog file. An empty path selects the built-in catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	// #nosec G304 -- catalog path comes from operator configuration
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer func() { _ = f.Close() }()

	c, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Decode parses and validates a catalog. Unknown fields are rejected.
func Decode(r io.Reader) (*Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var c Catalog
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks ids and counters.
func (c *Catalog) Validate() error {
	var errs []error
	seen := make(map[string]bool, len(c.Titles))
	for i, t := range c.Titles {
		if err := story.ValidateTitleID(t.ID); err != nil {
			errs = append(errs, fmt.Errorf("titles[%d]: %w", i, err))
			continue
		}
		if seen[t.ID] {
			errs = append(errs, fmt.Errorf("titles[%d]: duplicate id %q", i, t.ID))
		}
		seen[t.ID] = true
		if t.TotalEndings < 0 {
			errs = append(errs, fmt.Errorf("titles[%d]: totalEndings must be >= 0, got %d", i, t.TotalEndings))
		}
	}
	return errors.Join(errs...)
}

// Find looks a title up by id.
func (c *Catalog) Find(id string) (Title, error) {
	for _, t := range c.Titles {
		if t.ID == id {
			return t, nil
		}
	}
	return Title{}, fmt.Errorf("%w: %q", ErrUnknownTitle, id)
}
