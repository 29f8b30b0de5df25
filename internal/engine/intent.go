// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package engine

import (
	"context"
	"fmt"

	"github.com/ManuGH/questplay/internal/catalog"
)

// Intent is a user action emitted by a presentation layer.
type Intent interface {
	intent()
}

type StartTitle struct{ TitleID string }
type ChooseOption struct{ Index int }
type ExitToMenu struct{ ClearSession bool }
type ToggleBookmark struct{ TitleID string }
type SwitchTab struct{ Tab catalog.Tab }
type Search struct{ Term string }

// SetQuery applies a tab and a search term as one change.
type SetQuery struct{ Query catalog.Query }

func (StartTitle) intent()     {}
func (ChooseOption) intent()   {}
func (ExitToMenu) intent()     {}
func (ToggleBookmark) intent() {}
func (SwitchTab) intent()      {}
func (Search) intent()         {}
func (SetQuery) intent()       {}

// Dispatch routes an intent to the matching engine operation.
func (e *Engine) Dispatch(ctx context.Context, in Intent) error {
	switch in := in.(type) {
	case StartTitle:
		return e.Start(ctx, in.TitleID)
	case ChooseOption:
		return e.ChooseOption(ctx, in.Index)
	case ExitToMenu:
		return e.ExitToMenu(ctx, in.ClearSession)
	case ToggleBookmark:
		_, err := e.ToggleBookmark(ctx, in.TitleID)
		return err
	case SwitchTab:
		return e.SwitchTab(ctx, in.Tab)
	case Search:
		e.Search(ctx, in.Term)
		return nil
	case SetQuery:
		return e.SetQuery(ctx, in.Query)
	default:
		return fmt.Errorf("engine: unknown intent %T", in)
	}
}
