// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ManuGH/questplay/internal/catalog"
	"github.com/ManuGH/questplay/internal/progress"
	"github.com/ManuGH/questplay/internal/story"
	"github.com/spf13/cobra"
)

func newCatalogCmd(opts *rootOptions) *cobra.Command {
	var tab, search string
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List titles with their progress badges",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := catalog.ParseTab(tab)
			if err != nil {
				return err
			}
			c, err := opts.wire(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer c.Close()
			printCatalog(cmd.OutOrStdout(), c.Engine.Browse(cmd.Context(), catalog.Query{Tab: t, Search: search}))
			return nil
		},
	}
	cmd.Flags().StringVar(&tab, "tab", "all", "tab to show (all or saved)")
	cmd.Flags().StringVar(&search, "search", "", "case-insensitive title filter")
	return cmd
}

func newBookmarkCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "bookmark <titleID>",
		Short: "Add or remove a title from the saved tab",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.wire(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer c.Close()
			on, err := c.Engine.ToggleBookmark(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if on {
				fmt.Fprintf(cmd.OutOrStdout(), "%s saved\n", args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s removed from saved\n", args[0])
			}
			return nil
		},
	}
}

func newProgressCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Inspect or reset the saved progress record",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the progress record as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.wire(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer c.Close()
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(c.Store.Load(cmd.Context()))
		},
	}, &cobra.Command{
		Use:   "reset",
		Short: "Replace the progress record with an empty one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.wire(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer c.Close()
			if err := c.Store.Persist(cmd.Context(), progress.New()); err != nil {
				return fmt.Errorf("reset progress: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "progress reset")
			return nil
		},
	})
	return cmd
}

var errInvalidStories = errors.New("story validation failed")

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file.json>...",
		Short: "Check story documents for broken links, dead ends and unreachable scenes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := 0
			for _, path := range args {
				issues, err := validateFile(path)
				if err != nil {
					fmt.Fprintf(out, "%s: %v\n", path, err)
					failed++
					continue
				}
				if len(issues) == 0 {
					fmt.Fprintf(out, "%s: ok\n", path)
					continue
				}
				for _, is := range issues {
					fmt.Fprintf(out, "%s: %s\n", path, is)
				}
				if story.HasErrors(issues) {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%w: %d of %d files", errInvalidStories, failed, len(args))
			}
			return nil
		},
	}
}

func validateFile(path string) ([]story.Issue, error) {
	// #nosec G304 -- paths come from the operator's command line
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	doc, err := story.Parse(f)
	if err != nil {
		return nil, err
	}
	return story.Validate(doc), nil
}
