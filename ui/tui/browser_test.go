package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/genepanels/panelapp/internal/model"
)

type fakeSource struct {
	panels []model.PanelView
	err    error
}

func (f *fakeSource) ListPanels(ctx context.Context, viewer *model.User, filter model.PanelFilter) ([]model.PanelView, error) {
	return f.panels, f.err
}

func (f *fakeSource) GetPanel(ctx context.Context, viewer *model.User, panelID int64, version *model.Version) (*model.PanelView, error) {
	for i := range f.panels {
		if f.panels[i].Panel.ID == panelID {
			return &f.panels[i], nil
		}
	}
	return nil, errors.New("not found")
}

func samplePanels() []model.PanelView {
	return []model.PanelView{
		{
			Panel:    model.Panel{ID: 1, Name: "Breast cancer", Status: model.PanelPublic},
			Snapshot: model.Snapshot{Name: "Breast cancer", Version: model.Version{Minor: 2}},
			Entities: []model.Entity{
				{Type: model.EntityGene, Name: "BRCA1", Status: model.LevelGreen},
				{Type: model.EntityGene, Name: "BRCA2", Status: model.LevelExpertGreen},
				{Type: model.EntityGene, Name: "TP53", Status: model.LevelRed},
				{Type: model.EntityRegion, Name: "ISCA-1", Status: model.LevelGreen},
			},
		},
		{
			Panel:    model.Panel{ID: 2, Name: "Cardiomyopathy", Status: model.PanelPublic},
			Snapshot: model.Snapshot{Name: "Cardiomyopathy", Version: model.Version{Major: 1}},
		},
	}
}

// step feeds msg to the model and runs any returned command once.
func step(t *testing.T, m *Model, msg tea.Msg) tea.Msg {
	t.Helper()
	_, cmd := m.Update(msg)
	if cmd == nil {
		return nil
	}
	return cmd()
}

func loaded(t *testing.T, src Source) *Model {
	t.Helper()
	m := New(context.Background(), src, nil)
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m.Update(m.Init()())
	return m
}

func TestBrowser_LoadsPanels(t *testing.T) {
	m := loaded(t, &fakeSource{panels: samplePanels()})
	if got := len(m.list.Items()); got != 2 {
		t.Fatalf("items = %d, want 2", got)
	}
	if !strings.Contains(m.View(), "Breast cancer v0.2") {
		t.Fatalf("view missing panel title:\n%s", m.View())
	}
}

func TestBrowser_LoadError(t *testing.T) {
	m := loaded(t, &fakeSource{err: errors.New("database is locked")})
	if !strings.Contains(m.View(), "database is locked") {
		t.Fatalf("view missing error:\n%s", m.View())
	}
}

func TestBrowser_OpenCopyBack(t *testing.T) {
	m := loaded(t, &fakeSource{panels: samplePanels()})
	var copied string
	m.copy = func(s string) error {
		copied = s
		return nil
	}

	msg := step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if _, ok := msg.(panelLoadedMsg); !ok {
		t.Fatalf("enter produced %T, want panelLoadedMsg", msg)
	}
	m.Update(msg)
	if m.screen != screenEntities {
		t.Fatalf("screen = %v, want entities", m.screen)
	}
	if got := len(m.table.Rows()); got != 4 {
		t.Fatalf("rows = %d, want 4", got)
	}

	msg = step(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")})
	m.Update(msg)
	if copied != "BRCA1\nBRCA2" {
		t.Fatalf("copied %q", copied)
	}
	if !strings.Contains(m.View(), "copied 2 green genes") {
		t.Fatalf("view missing copy status:\n%s", m.View())
	}

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.screen != screenPanels || m.current != nil {
		t.Fatalf("esc did not return to the panel list")
	}
}

func TestBrowser_CopyFailure(t *testing.T) {
	m := loaded(t, &fakeSource{panels: samplePanels()})
	m.copy = func(string) error { return errors.New("no clipboard") }
	m.Update(step(t, m, tea.KeyMsg{Type: tea.KeyEnter}))
	m.Update(step(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")}))
	if !strings.Contains(m.status, "no clipboard") {
		t.Fatalf("status = %q", m.status)
	}
}

func TestBrowser_Quit(t *testing.T) {
	m := loaded(t, &fakeSource{panels: samplePanels()})
	msg := step(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if _, ok := msg.(tea.QuitMsg); !ok {
		t.Fatalf("q produced %T, want tea.QuitMsg", msg)
	}
}

func TestGreenGenes(t *testing.T) {
	got := greenGenes(&samplePanels()[0])
	if strings.Join(got, ",") != "BRCA1,BRCA2" {
		t.Fatalf("greenGenes = %v", got)
	}
}
