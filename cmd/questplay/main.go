// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command questplay plays titles in the terminal and maintains the local
// progress record.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ManuGH/questplay/internal/app/bootstrap"
	"github.com/ManuGH/questplay/internal/engine"
	"github.com/ManuGH/questplay/internal/version"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "questplay",
		Short:         "Play interactive fiction titles and manage saved progress",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.String(),
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file path (YAML)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")

	root.AddCommand(
		newPlayCmd(opts, promptChooser),
		newCatalogCmd(opts),
		newBookmarkCmd(opts),
		newProgressCmd(opts),
		newValidateCmd(),
	)
	return root
}

// wire builds the core services. Logs go to stderr so they never mix with
// command output.
func (o *rootOptions) wire(ctx context.Context, p engine.Presenter) (*bootstrap.Container, error) {
	level := "warn"
	if o.verbose {
		level = "debug"
	}
	return bootstrap.Wire(ctx, bootstrap.Options{
		ConfigPath: o.configPath,
		Version:    version.Version,
		Presenter:  p,
		LogOutput:  os.Stderr,
		LogLevel:   level,
	})
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
