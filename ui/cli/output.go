// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/genepanels/panelapp/internal/core"
	"github.com/genepanels/panelapp/internal/model"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// printTable renders rows with a plain border. Colours are dropped when the
// output is not a terminal.
func printTable(w io.Writer, headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	fmt.Fprintln(w, t.Render())
}

var levelStyles = map[string]lipgloss.Style{
	"green": lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
	"amber": lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	"red":   lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
	"grey":  lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
}

func levelLabel(l model.ConfidenceLevel) string {
	c := l.Colour()
	if s, ok := levelStyles[c]; ok {
		return s.Render(c)
	}
	return c
}

// resolvePanel accepts a numeric ID or a panel name.
func resolvePanel(ctx context.Context, svc *core.Service, viewer *model.User, ref string) (int64, error) {
	p, err := svc.GetPanelByName(ctx, viewer, ref)
	if err != nil {
		return 0, err
	}
	return p.ID, nil
}

func parseVersionFlag(s string) (*model.Version, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	v, err := model.ParseVersion(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// parseTimeFlag accepts RFC 3339 timestamps and plain dates.
func parseTimeFlag(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: want YYYY-MM-DD or RFC 3339", s)
	}
	return t, nil
}

func statsCell(s model.TypeStats) string {
	return fmt.Sprintf("%d/%d/%d", s.Green, s.Amber, s.Red)
}
