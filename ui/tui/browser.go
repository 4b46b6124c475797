// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.

package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/genepanels/panelapp/internal/model"
)

// Source is the part of core.Service the browser reads from.
type Source interface {
	ListPanels(ctx context.Context, viewer *model.User, filter model.PanelFilter) ([]model.PanelView, error)
	GetPanel(ctx context.Context, viewer *model.User, panelID int64, version *model.Version) (*model.PanelView, error)
}

type screen int

const (
	screenPanels screen = iota
	screenEntities
)

type panelsLoadedMsg struct {
	panels []model.PanelView
	err    error
}

type panelLoadedMsg struct {
	view *model.PanelView
	err  error
}

type copiedMsg struct {
	n   int
	err error
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Italic(true)
	statusStyle = lipgloss.NewStyle().Faint(true)
	colourStyle = map[string]lipgloss.Style{
		"green": lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		"amber": lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		"red":   lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		"grey":  lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}
)

// panelItem adapts a panel to list.DefaultItem.
type panelItem struct{ view model.PanelView }

func (i panelItem) Title() string {
	return fmt.Sprintf("%s v%s", i.view.Panel.Name, i.view.Snapshot.Version)
}

func (i panelItem) Description() string {
	g := i.view.Snapshot.Stats.Genes
	desc := fmt.Sprintf("%s · %s %d · %s %d · %s %d",
		i.view.Panel.Status,
		colourStyle["green"].Render("green"), g.Green,
		colourStyle["amber"].Render("amber"), g.Amber,
		colourStyle["red"].Render("red"), g.Red)
	if i.view.Snapshot.DiseaseGroup != "" {
		desc += " · " + i.view.Snapshot.DiseaseGroup
	}
	return desc
}

func (i panelItem) FilterValue() string { return i.view.Panel.Name }

type size struct{ width, height int }

func (s *size) update(msg tea.Msg) bool {
	if msg, ok := msg.(tea.WindowSizeMsg); ok {
		s.width, s.height = msg.Width, msg.Height
		return true
	}
	return false
}

// Model is the browser: a panel list that opens into an entity table.
type Model struct {
	ctx    context.Context
	src    Source
	viewer *model.User
	keys   KeyMap
	copy   func(string) error

	screen  screen
	size    size
	list    list.Model
	table   table.Model
	help    help.Model
	current *model.PanelView
	status  string
	err     error
}

// New builds the browser; Init loads the panel list.
func New(ctx context.Context, src Source, viewer *model.User) *Model {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Panels"
	l.SetShowHelp(false)
	t := table.New(table.WithColumns(entityColumns(80)), table.WithFocused(true))
	return &Model{
		ctx:    ctx,
		src:    src,
		viewer: viewer,
		keys:   BaseKeyMap,
		copy:   clipboard.WriteAll,
		list:   l,
		table:  t,
		help:   help.New(),
	}
}

func entityColumns(width int) []table.Column {
	name := max(width-60, 14)
	return []table.Column{
		{Title: "Type", Width: 7},
		{Title: "Name", Width: name},
		{Title: "Status", Width: 7},
		{Title: "Mode of inheritance", Width: 30},
		{Title: "Reviews", Width: 8},
	}
}

func (m *Model) loadPanels() tea.Msg {
	panels, err := m.src.ListPanels(m.ctx, m.viewer, model.PanelFilter{})
	return panelsLoadedMsg{panels: panels, err: err}
}

func (m *Model) loadPanel(id int64) tea.Cmd {
	return func() tea.Msg {
		view, err := m.src.GetPanel(m.ctx, m.viewer, id, nil)
		return panelLoadedMsg{view: view, err: err}
	}
}

// greenGenes lists the symbols of green genes, one per line.
func greenGenes(view *model.PanelView) []string {
	var out []string
	for _, e := range view.Entities {
		if e.Type == model.EntityGene && e.Status.Colour() == "green" {
			out = append(out, e.Name)
		}
	}
	return out
}

func (m *Model) copyGreen() tea.Cmd {
	if m.current == nil {
		return nil
	}
	genes := greenGenes(m.current)
	write := m.copy
	return func() tea.Msg {
		return copiedMsg{n: len(genes), err: write(strings.Join(genes, "\n"))}
	}
}

func (m *Model) Init() tea.Cmd {
	return m.loadPanels
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.size.update(msg) {
		m.resize()
		return m, nil
	}

	switch msg := msg.(type) {
	case panelsLoadedMsg:
		m.err = msg.err
		items := make([]list.Item, 0, len(msg.panels))
		for _, p := range msg.panels {
			items = append(items, panelItem{view: p})
		}
		return m, m.list.SetItems(items)
	case panelLoadedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.current = msg.view
			m.table.SetRows(entityRows(msg.view))
			m.table.GotoTop()
			m.screen = screenEntities
			m.status = ""
		}
		return m, nil
	case copiedMsg:
		if msg.err != nil {
			m.status = "copy failed: " + msg.err.Error()
		} else {
			m.status = fmt.Sprintf("copied %d green genes", msg.n)
		}
		return m, nil
	case tea.KeyMsg:
		if m.screen == screenPanels && m.list.FilterState() == list.Filtering {
			break
		}
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		}
		switch m.screen {
		case screenPanels:
			if key.Matches(msg, m.keys.Open) {
				if item, ok := m.list.SelectedItem().(panelItem); ok {
					return m, m.loadPanel(item.view.Panel.ID)
				}
				return m, nil
			}
		case screenEntities:
			switch {
			case key.Matches(msg, m.keys.Back):
				m.screen = screenPanels
				m.current = nil
				m.status = ""
				return m, nil
			case key.Matches(msg, m.keys.Copy):
				return m, m.copyGreen()
			}
		}
	}

	var cmd tea.Cmd
	if m.screen == screenPanels {
		m.list, cmd = m.list.Update(msg)
	} else {
		m.table, cmd = m.table.Update(msg)
	}
	return m, cmd
}

func entityRows(view *model.PanelView) []table.Row {
	rows := make([]table.Row, 0, len(view.Entities))
	for _, e := range view.Entities {
		rows = append(rows, table.Row{
			string(e.Type), e.Name, e.Status.Colour(), e.ModeOfInheritance, strconv.Itoa(len(e.Evaluations)),
		})
	}
	return rows
}

func (m *Model) resize() {
	h := max(m.size.height-4, 3)
	m.list.SetSize(m.size.width, h)
	m.table.SetColumns(entityColumns(m.size.width))
	m.table.SetWidth(m.size.width)
	m.table.SetHeight(h - 2)
	m.help.Width = m.size.width
}

func (m *Model) View() string {
	var b strings.Builder
	switch m.screen {
	case screenPanels:
		b.WriteString(m.list.View())
	case screenEntities:
		s := m.current.Snapshot
		b.WriteString(titleStyle.Render(fmt.Sprintf("%s v%s", s.Name, s.Version)))
		b.WriteString(" ")
		g := s.Stats.Genes
		b.WriteString(fmt.Sprintf("%s %d  %s %d  %s %d",
			colourStyle["green"].Render("●"), g.Green,
			colourStyle["amber"].Render("●"), g.Amber,
			colourStyle["red"].Render("●"), g.Red))
		b.WriteString("\n")
		b.WriteString(m.table.View())
	}
	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(errorStyle.Render(m.err.Error()))
		b.WriteString("\n")
	}
	if m.status != "" {
		b.WriteString(statusStyle.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

// Model implements tea.Model
var _ tea.Model = (*Model)(nil)
