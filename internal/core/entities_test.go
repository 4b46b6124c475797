package core_test

import (
	"errors"
	"testing"

	"github.com/genepanels/panelapp/internal/core"
	"github.com/genepanels/panelapp/internal/model"
)

func TestAddEntity_Validation(t *testing.T) {
	f := newFixture(t)
	id := f.panel(t, "Panel").Panel.ID

	_, err := f.svc.AddEntity(f.ctx, f.curator, id, model.Entity{Type: model.EntityGene, Name: "NOPE1"}, nil)
	var ge core.GeneDoesNotExistError
	if !errors.As(err, &ge) || ge.Symbol != "NOPE1" {
		t.Fatalf("expected GeneDoesNotExistError, got %v", err)
	}
	if !errors.Is(err, core.ErrImport) || !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("GeneDoesNotExistError should match ErrImport and ErrNotFound")
	}

	f.gene(t, id, "BRCA1", model.LevelNone)
	if _, err := f.svc.AddEntity(f.ctx, f.curator, id, model.Entity{Type: model.EntityGene, Name: "brca1", GeneSymbol: "BRCA1"}, nil); !errors.Is(err, core.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	invalid := []model.Entity{
		{Type: model.EntityGene},
		{Type: "cnv", Name: "x"},
		{Type: model.EntityRegion, Name: "ISCA-1", Position38: model.Range{Start: 1, End: 10}},
		{Type: model.EntityRegion, Name: "ISCA-1", Chromosome: "1"},
		{Type: model.EntityRegion, Name: "ISCA-1", Chromosome: "1", Position38: model.Range{Start: 10, End: 1}},
		{Type: model.EntitySTR, Name: "HTT_CAG", Chromosome: "4", RepeatedSequence: "CAG"},
		{Type: model.EntitySTR, Name: "HTT_CAG", Chromosome: "4", RepeatedSequence: "CAG", NormalRepeats: 40, PathogenicRepeats: 36},
		{Type: model.EntityGene, Name: "TP53", Status: 7},
	}
	for i, e := range invalid {
		if _, err := f.svc.AddEntity(f.ctx, f.curator, id, e, nil); !errors.Is(err, core.ErrInvalidInput) {
			t.Errorf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}
	if _, err := f.svc.AddEntity(f.ctx, nil, id, model.Entity{Type: model.EntityGene, Name: "TP53"}, nil); !errors.Is(err, core.ErrPermissionDenied) {
		t.Fatalf("anonymous: expected ErrPermissionDenied, got %v", err)
	}
}

func TestAddEntity_InitialStatus(t *testing.T) {
	f := newFixture(t)
	id := f.panel(t, "Panel").Panel.ID
	add := func(actor *model.User, e model.Entity, sources ...string) model.Entity {
		t.Helper()
		view, err := f.svc.AddEntity(f.ctx, actor, id, e, sources)
		if err != nil {
			t.Fatalf("AddEntity %s: %v", e.Name, err)
		}
		for _, got := range view.Entities {
			if got.Key() == e.Key() {
				return got
			}
		}
		t.Fatalf("entity %s missing from view", e.Name)
		return model.Entity{}
	}

	e := add(f.curator, model.Entity{Type: model.EntityGene, Name: "BRCA1"}, "UKGTN", "Emory Genetics Laboratory", "Literature")
	if e.Status != model.LevelAmber {
		t.Fatalf("two high confidence sources: status = %d, want amber", e.Status)
	}
	if len(e.Evidence) != 3 || e.Evidence[0].Reviewer != "curator" {
		t.Fatalf("evidence = %+v", e.Evidence)
	}
	if len(e.TrackRecords) != 1 || e.TrackRecords[0].Status != model.LevelAmber {
		t.Fatalf("track records = %+v", e.TrackRecords)
	}

	e = add(f.curator, model.Entity{Type: model.EntityGene, Name: "BRCA2", Status: model.LevelRed}, "UKGTN", "Emory Genetics Laboratory")
	if e.Status != model.LevelRed {
		t.Fatalf("explicit curator status must win, got %d", e.Status)
	}

	e = add(f.curator, model.Entity{Type: model.EntityGene, Name: "MLH1"}, "Expert Review Green")
	if e.Status != model.LevelExpertGreen {
		t.Fatalf("expert review green: status = %d, want 4", e.Status)
	}

	e = add(f.reviewer, model.Entity{Type: model.EntityGene, Name: "TP53", Status: model.LevelGreen}, "UKGTN", "Emory Genetics Laboratory", "Expert list")
	if e.Status != model.LevelNone {
		t.Fatalf("reviewer additions start without a status, got %d", e.Status)
	}

	region := add(f.curator, model.Entity{
		Type: model.EntityRegion, Name: "ISCA-37390-Loss", VerboseName: "Deletion 1p36",
		Chromosome: "1", Position37: model.Range{Start: 10001, End: 12840259}, Position38: model.Range{Start: 10001, End: 12780200},
		HaploinsufficiencyScore: "3", RequiredOverlapPercentage: 60, TypeOfVariants: "cnv_loss",
	})
	if region.GeneSymbol != "" || region.Position38.End != 12780200 {
		t.Fatalf("region = %+v", region)
	}
	str := add(f.curator, model.Entity{
		Type: model.EntitySTR, Name: "HTT_CAG", GeneSymbol: "TP53", Chromosome: "4",
		Position38: model.Range{Start: 3074877, End: 3074940}, RepeatedSequence: "CAG", NormalRepeats: 35, PathogenicRepeats: 36,
	})
	if str.PathogenicRepeats != 36 {
		t.Fatalf("str = %+v", str)
	}

	view, err := f.svc.GetPanel(f.ctx, f.curator, id, nil)
	if err != nil {
		t.Fatalf("GetPanel: %v", err)
	}
	st := view.Snapshot.Stats
	if st.Genes.Total != 4 || st.Regions.Total != 1 || st.STRs.Total != 1 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestUpdateAndDeleteEntity(t *testing.T) {
	f := newFixture(t)
	id := f.panel(t, "Panel").Panel.ID
	f.gene(t, id, "BRCA1", model.LevelGreen)

	moi := "BIALLELIC"
	view, err := f.svc.UpdateEntity(f.ctx, f.curator, id, model.EntityGene, "BRCA1", core.EntityPatch{ModeOfInheritance: &moi, Phenotypes: []string{"Breast cancer", " ", "Breast cancer"}})
	if err != nil {
		t.Fatalf("UpdateEntity: %v", err)
	}
	e := view.Entities[0]
	if e.ModeOfInheritance != moi || len(e.Phenotypes) != 1 {
		t.Fatalf("patched entity = %+v", e)
	}
	if _, err := f.svc.UpdateEntity(f.ctx, f.curator, id, model.EntityGene, "BRCA1", core.EntityPatch{ModeOfInheritance: &moi}); !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("no-op patch: expected ErrInvalidInput, got %v", err)
	}
	bad := "NOPE1"
	if _, err := f.svc.UpdateEntity(f.ctx, f.curator, id, model.EntityGene, "BRCA1", core.EntityPatch{GeneSymbol: &bad}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("unknown gene symbol: expected ErrNotFound, got %v", err)
	}
	if _, err := f.svc.UpdateEntity(f.ctx, f.reviewer, id, model.EntityGene, "BRCA1", core.EntityPatch{ModeOfInheritance: &moi}); !errors.Is(err, core.ErrPermissionDenied) {
		t.Fatalf("reviewer: expected ErrPermissionDenied, got %v", err)
	}

	if _, err := f.svc.DeleteEntity(f.ctx, f.curator, id, model.EntityGene, "TP53"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("delete missing: expected ErrNotFound, got %v", err)
	}
	view, err = f.svc.DeleteEntity(f.ctx, f.curator, id, model.EntityGene, "brca1")
	if err != nil {
		t.Fatalf("DeleteEntity: %v", err)
	}
	if len(view.Entities) != 0 || view.Snapshot.Stats.Genes.Total != 0 {
		t.Fatalf("entity still present after delete: %+v", view.Entities)
	}
	hits, err := f.svc.FindEntity(f.ctx, f.curator, model.EntityGene, "BRCA1")
	if err != nil || len(hits) != 0 {
		t.Fatalf("FindEntity after delete: %d hits, %v", len(hits), err)
	}
}

func TestSetEntityStatusAndEvidence(t *testing.T) {
	f := newFixture(t)
	id := f.panel(t, "Panel").Panel.ID
	if _, err := f.svc.AddEntity(f.ctx, f.curator, id, model.Entity{Type: model.EntityGene, Name: "BRCA1", Flagged: true}, nil); err != nil {
		t.Fatalf("AddEntity: %v", err)
	}

	view, err := f.svc.SetEntityStatus(f.ctx, f.curator, id, model.EntityGene, "BRCA1", model.LevelGreen, "agreed at panel meeting")
	if err != nil {
		t.Fatalf("SetEntityStatus: %v", err)
	}
	e := view.Entities[0]
	if e.Status != model.LevelGreen || e.Flagged {
		t.Fatalf("status=%d flagged=%t", e.Status, e.Flagged)
	}
	last := e.TrackRecords[len(e.TrackRecords)-1]
	if last.IssueType != "Set status" || last.Status != model.LevelGreen {
		t.Fatalf("track record = %+v", last)
	}
	if _, err := f.svc.SetEntityStatus(f.ctx, f.curator, id, model.EntityGene, "BRCA1", 9, ""); !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("invalid level: expected ErrInvalidInput, got %v", err)
	}

	view, err = f.svc.AddEvidence(f.ctx, f.curator, id, model.EntityGene, "BRCA1", model.Evidence{Name: "Expert Review Red", Comment: "Insufficient evidence"})
	if err != nil {
		t.Fatalf("AddEvidence: %v", err)
	}
	if got := view.Entities[0].Status; got != model.LevelRed {
		t.Fatalf("expert review must override the status, got %d", got)
	}
	view, err = f.svc.AddEvidence(f.ctx, f.curator, id, model.EntityGene, "BRCA1", model.Evidence{Name: "UKGTN"})
	if err != nil {
		t.Fatalf("AddEvidence: %v", err)
	}
	if got := view.Entities[0].Status; got != model.LevelRed {
		t.Fatalf("plain evidence must not change the status, got %d", got)
	}

	view, err = f.svc.AddTag(f.ctx, f.curator, id, model.EntityGene, "BRCA1", "founder-variant")
	if err != nil {
		t.Fatalf("AddTag: %v", err)
	}
	if tags := view.Entities[0].Tags; len(tags) != 1 || tags[0] != "founder-variant" {
		t.Fatalf("tags = %v", tags)
	}
	if _, err := f.svc.AddTag(f.ctx, f.curator, id, model.EntityGene, "BRCA1", "Founder-Variant"); !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("duplicate tag: expected ErrInvalidInput, got %v", err)
	}

	view, err = f.svc.SetEntityReady(f.ctx, f.curator, id, model.EntityGene, "BRCA1", true, "")
	if err != nil {
		t.Fatalf("SetEntityReady: %v", err)
	}
	if !view.Entities[0].Ready || view.Snapshot.Stats.NumberOfReadyEntities != 1 {
		t.Fatalf("ready flag not stored: %+v", view.Snapshot.Stats)
	}
}

func TestSubmitEvaluation(t *testing.T) {
	f := newFixture(t)
	id := f.panel(t, "Panel").Panel.ID
	f.gene(t, id, "BRCA1", model.LevelNone)

	view, err := f.svc.SubmitEvaluation(f.ctx, f.reviewer, id, model.EntityGene, "BRCA1", core.EvaluationInput{Rating: "green", Comment: "Strong evidence"})
	if err != nil {
		t.Fatalf("SubmitEvaluation: %v", err)
	}
	evals := view.Entities[0].Evaluations
	if len(evals) != 1 || evals[0].Rating != model.RatingGreen {
		t.Fatalf("evaluations = %+v", evals)
	}
	if evals[0].Version != view.Snapshot.Version {
		t.Fatalf("evaluation version %s, snapshot %s", evals[0].Version, view.Snapshot.Version)
	}

	view, err = f.svc.SubmitEvaluation(f.ctx, f.reviewer, id, model.EntityGene, "BRCA1", core.EvaluationInput{Rating: model.RatingRed, Comment: "Changed my mind"})
	if err != nil {
		t.Fatalf("SubmitEvaluation again: %v", err)
	}
	evals = view.Entities[0].Evaluations
	if len(evals) != 1 {
		t.Fatalf("a second review by the same user must replace the first, got %d", len(evals))
	}
	if evals[0].Rating != model.RatingRed || len(evals[0].Comments) != 2 {
		t.Fatalf("replaced evaluation = %+v", evals[0])
	}

	if _, err := f.svc.SubmitEvaluation(f.ctx, f.curator, id, model.EntityGene, "BRCA1", core.EvaluationInput{Rating: model.RatingRed}); err != nil {
		t.Fatalf("curator review: %v", err)
	}
	list, summary, err := f.svc.Evaluations(f.ctx, f.curator, id, model.EntityGene, "BRCA1")
	if err != nil {
		t.Fatalf("Evaluations: %v", err)
	}
	if len(list) != 2 || summary.Consensus != model.RatingRed || summary.RedPct != 100 {
		t.Fatalf("summary = %+v", summary)
	}

	if _, err := f.svc.SubmitEvaluation(f.ctx, f.reviewer, id, model.EntityGene, "BRCA1", core.EvaluationInput{Rating: "purple"}); !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("bad rating: expected ErrInvalidInput, got %v", err)
	}
	if _, err := f.svc.SubmitEvaluation(f.ctx, nil, id, model.EntityGene, "BRCA1", core.EvaluationInput{Rating: model.RatingRed}); !errors.Is(err, core.ErrPermissionDenied) {
		t.Fatalf("anonymous: expected ErrPermissionDenied, got %v", err)
	}
	if _, err := f.svc.SubmitEvaluation(f.ctx, f.reviewer, id, model.EntityGene, "TP53", core.EvaluationInput{Rating: model.RatingRed}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("missing entity: expected ErrNotFound, got %v", err)
	}
}

func TestFindEntity_RespectsVisibility(t *testing.T) {
	f := newFixture(t)
	pub := f.panel(t, "Public panel").Panel.ID
	priv := f.panel(t, "Private panel").Panel.ID
	f.gene(t, pub, "BRCA1", model.LevelGreen)
	f.gene(t, priv, "BRCA1", model.LevelRed)
	if _, err := f.svc.SetPanelStatus(f.ctx, f.curator, pub, model.PanelPublic); err != nil {
		t.Fatalf("SetPanelStatus: %v", err)
	}
	hits, err := f.svc.FindEntity(f.ctx, f.curator, model.EntityGene, "brca1")
	if err != nil || len(hits) != 2 {
		t.Fatalf("curator: %d hits, %v", len(hits), err)
	}
	hits, err = f.svc.FindEntity(f.ctx, nil, model.EntityGene, "BRCA1")
	if err != nil || len(hits) != 1 || hits[0].Panel.ID != pub {
		t.Fatalf("anonymous: %+v, %v", hits, err)
	}
	if hits[0].Version != (model.Version{Minor: 1}) {
		t.Fatalf("hit version = %s", hits[0].Version)
	}
}
