// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.

package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/genepanels/panelapp/internal/model"
)

// Run starts the browser in the alternate screen and blocks until the user
// quits or ctx is cancelled.
func Run(ctx context.Context, src Source, viewer *model.User) error {
	_, err := tea.NewProgram(
		New(ctx, src, viewer),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	).Run()
	return err
}
