// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ManuGH/questplay/internal/engine"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

const menuEntry = "<< back to menu"

// chooser asks the player to pick one of items and returns its index.
type chooser func(in io.ReadCloser, out io.WriteCloser, label string, items []string) (int, error)

func promptChooser(in io.ReadCloser, out io.WriteCloser, label string, items []string) (int, error) {
	sel := promptui.Select{
		Label:  label,
		Items:  items,
		Size:   len(items),
		Stdin:  in,
		Stdout: out,
	}
	idx, _, err := sel.Run()
	return idx, err
}

func newPlayCmd(opts *rootOptions, choose chooser) *cobra.Command {
	return &cobra.Command{
		Use:   "play <titleID>",
		Short: "Play a title, resuming from the saved scene when there is one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			c, err := opts.wire(cmd.Context(), terminalPresenter{out: out})
			if err != nil {
				return err
			}
			defer c.Close()
			return play(cmd.Context(), c.Engine, args[0], choose, nopCloser{cmd.InOrStdin()}, nopWriteCloser{out})
		},
	}
}

// play runs one title until the player returns to the menu.
func play(ctx context.Context, eng *engine.Engine, titleID string, choose chooser, in io.ReadCloser, out io.WriteCloser) error {
	if err := eng.Start(ctx, titleID); err != nil {
		if errors.Is(err, engine.ErrTitleUnplayable) {
			fmt.Fprintf(out, "%q is still in development.\n", titleID)
			return nil
		}
		return err
	}

	for {
		snap := eng.Snapshot()
		if snap.State != engine.StatePlaying || snap.Scene == nil {
			return nil
		}
		items := make([]string, 0, len(snap.Scene.Choices)+1)
		for _, ch := range snap.Scene.Choices {
			items = append(items, ch.Text)
		}
		items = append(items, menuEntry)

		idx, err := choose(in, out, "What do you do?", items)
		switch {
		case errors.Is(err, promptui.ErrInterrupt), errors.Is(err, promptui.ErrEOF), errors.Is(err, io.EOF):
			return eng.ExitToMenu(ctx, false)
		case err != nil:
			_ = eng.ExitToMenu(ctx, false)
			return fmt.Errorf("read choice: %w", err)
		}

		if idx == len(snap.Scene.Choices) {
			return eng.ExitToMenu(ctx, false)
		}
		if err := eng.ChooseOption(ctx, idx); err != nil {
			if errors.Is(err, engine.ErrContentMissing) {
				// the presenter already told the player
				return nil
			}
			return err
		}
	}
}

type nopCloser struct{ io.Reader }

func (nopCloser) Close() error { return nil }

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
