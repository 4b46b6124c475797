// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"github.com/spf13/cobra"

	"github.com/genepanels/panelapp/internal/i18n"
	"github.com/genepanels/panelapp/ui/tui"
)

func newBrowseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: i18n.T("browse.short"),
		Long: `Opens a terminal browser over the panels visible to --user. Press enter to
open a panel, c to copy its green genes to the clipboard, esc to go back.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, viewer, err := a.viewer(cmd.Context())
			if err != nil {
				return err
			}
			return tui.Run(cmd.Context(), svc, viewer)
		},
	}
}
