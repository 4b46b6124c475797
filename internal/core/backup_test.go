package core_test

import (
	"bytes"
	"testing"

	"github.com/genepanels/panelapp/internal/core"
	"github.com/genepanels/panelapp/internal/model"
)

func seedForBackup(t *testing.T, f *fixture) int64 {
	t.Helper()
	child := f.panel(t, "Child").Panel.ID
	f.gene(t, child, "BRCA1", model.LevelGreen)
	if _, err := f.svc.SubmitEvaluation(f.ctx, f.reviewer, child, model.EntityGene, "BRCA1", core.EvaluationInput{Rating: model.RatingGreen}); err != nil {
		t.Fatalf("SubmitEvaluation: %v", err)
	}
	super := f.panel(t, "Super").Panel.ID
	if _, err := f.svc.SetChildPanels(f.ctx, f.curator, super, []int64{child}); err != nil {
		t.Fatalf("SetChildPanels: %v", err)
	}
	return super
}

func TestBackupRestore(t *testing.T) {
	src := newFixture(t)
	super := seedForBackup(t, src)

	var buf bytes.Buffer
	data, err := src.svc.Backup(src.ctx, &buf)
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if len(data.Panels) != 2 || len(data.Users) != 2 || len(data.Historical) == 0 {
		t.Fatalf("backup contents: %d panels, %d users, %d archived", len(data.Panels), len(data.Users), len(data.Historical))
	}

	dst := core.NewService(openStore(t, "restore"))
	restored, err := dst.Restore(src.ctx, bytes.NewReader(buf.Bytes()), true)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if len(restored.Activities) != len(data.Activities) {
		t.Fatalf("restored %d activities, want %d", len(restored.Activities), len(data.Activities))
	}

	curator, err := dst.ResolveUser(src.ctx, "curator")
	if err != nil {
		t.Fatalf("ResolveUser: %v", err)
	}
	view, err := dst.GetPanel(src.ctx, curator, super, nil)
	if err != nil {
		t.Fatalf("GetPanel restored super: %v", err)
	}
	if !view.Snapshot.IsSuper() || len(view.Entities) != 1 || len(view.Entities[0].Evaluations) != 1 {
		t.Fatalf("restored superpanel view = %+v", view)
	}
	v0 := model.Version{}
	if _, err := dst.GetPanel(src.ctx, curator, super, &v0); err != nil {
		t.Fatalf("archived version lost in restore: %v", err)
	}

	// Writes continue from the restored versions.
	next, err := dst.IncrementVersion(src.ctx, curator, super, true, "after restore")
	if err != nil {
		t.Fatalf("IncrementVersion after restore: %v", err)
	}
	if next.Snapshot.Version != (model.Version{Major: 1}) {
		t.Fatalf("version after restore = %s", next.Snapshot.Version)
	}
}

func TestRestore_IntegrateSkipsExisting(t *testing.T) {
	src := newFixture(t)
	seedForBackup(t, src)
	var buf bytes.Buffer
	if _, err := src.svc.Backup(src.ctx, &buf); err != nil {
		t.Fatalf("Backup: %v", err)
	}
	// Restoring into the same database without wiping is a no-op.
	if _, err := src.svc.Restore(src.ctx, bytes.NewReader(buf.Bytes()), false); err != nil {
		t.Fatalf("Restore integrate: %v", err)
	}
	panels, err := src.svc.ListPanels(src.ctx, src.curator, model.PanelFilter{})
	if err != nil || len(panels) != 2 {
		t.Fatalf("ListPanels after integrate: %d, %v", len(panels), err)
	}
	if _, err := src.svc.Restore(src.ctx, bytes.NewReader([]byte("not zstd")), false); err == nil {
		t.Fatalf("expected error for corrupt backup")
	}
}

func TestMigrate(t *testing.T) {
	src := newFixture(t)
	super := seedForBackup(t, src)
	target := openStore(t, "migrate")
	if err := src.svc.Migrate(src.ctx, target); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	live, err := target.GetLiveSnapshot(src.ctx, super)
	if err != nil {
		t.Fatalf("GetLiveSnapshot on target: %v", err)
	}
	if len(live.Children) != 1 {
		t.Fatalf("children not migrated: %+v", live.Children)
	}
}
