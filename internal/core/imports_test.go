package core_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/genepanels/panelapp/internal/core"
	"github.com/genepanels/panelapp/internal/model"
)

// panelTSV builds a panel upload with the full header; each row lists the
// leading columns and the rest are left empty.
func panelTSV(rows ...[]string) string {
	var b strings.Builder
	b.WriteString(strings.Join(core.PanelTSVHeader, "\t") + "\n")
	for _, r := range rows {
		cells := make([]string, len(core.PanelTSVHeader))
		copy(cells, r)
		b.WriteString(strings.Join(cells, "\t") + "\n")
	}
	return b.String()
}

func TestImportPanels_CreatesAndUpdates(t *testing.T) {
	f := newFixture(t)
	existing := f.panel(t, "Lynch syndrome").Panel.ID
	f.gene(t, existing, "MLH1", model.LevelRed)

	data := panelTSV(
		[]string{"BRCA1", "gene", "BRCA1", "UKGTN;Emory Genetics Laboratory", "Breast cancer", "Cancer", "Solid tumours", "MONOALLELIC", "Breast cancer 113705"},
		[]string{"BRCA2", "gene", "BRCA2", "Literature", "Breast cancer", "Cancer", "Solid tumours", "MONOALLELIC"},
		[]string{"MLH1", "gene", "MLH1", "UKGTN", "lynch SYNDROME", "", "", "BIALLELIC"},
	)
	sum, err := f.svc.ImportPanels(f.ctx, f.curator, strings.NewReader(data))
	if err != nil {
		t.Fatalf("ImportPanels: %v", err)
	}
	if sum.Panels != 2 || sum.Created != 1 || sum.Entities != 3 {
		t.Fatalf("summary = %+v", sum)
	}

	p, err := f.svc.GetPanelByName(f.ctx, f.curator, "Breast cancer")
	if err != nil {
		t.Fatalf("created panel missing: %v", err)
	}
	view, err := f.svc.GetPanel(f.ctx, f.curator, p.ID, nil)
	if err != nil {
		t.Fatalf("GetPanel: %v", err)
	}
	if view.Snapshot.DiseaseGroup != "Cancer" || view.Snapshot.DiseaseSubGroup != "Solid tumours" {
		t.Fatalf("header = %+v", view.Snapshot)
	}
	if view.Snapshot.Version != (model.Version{Minor: 1}) || len(view.Entities) != 2 {
		t.Fatalf("created panel: v%s with %d entities", view.Snapshot.Version, len(view.Entities))
	}
	if view.Entities[0].Status != model.LevelAmber {
		t.Fatalf("BRCA1 status from evidence = %d, want amber", view.Entities[0].Status)
	}

	lynch, err := f.svc.GetPanel(f.ctx, f.curator, existing, nil)
	if err != nil {
		t.Fatalf("GetPanel lynch: %v", err)
	}
	mlh1 := lynch.Entities[0]
	if mlh1.ModeOfInheritance != "BIALLELIC" || mlh1.Status != model.LevelRed {
		t.Fatalf("updated MLH1 = %+v", mlh1)
	}
	if got := mlh1.EvidenceNames(); len(got) != 2 {
		t.Fatalf("evidence should be merged, got %v", got)
	}
}

func TestImportPanels_Errors(t *testing.T) {
	f := newFixture(t)
	super := f.panel(t, "Super").Panel.ID
	child := f.panel(t, "Child").Panel.ID
	if _, err := f.svc.SetChildPanels(f.ctx, f.curator, super, []int64{child}); err != nil {
		t.Fatalf("SetChildPanels: %v", err)
	}

	tests := []struct {
		name  string
		data  string
		check func(error) bool
	}{
		{"unknown genes", panelTSV(
			[]string{"NOPE2", "gene", "NOPE2", "", "New panel"},
			[]string{"NOPE1", "gene", "NOPE1", "", "New panel"},
		), func(err error) bool {
			var ge core.GenesDoNotExistError
			return errors.As(err, &ge) && strings.Join(ge.Symbols, ",") == "NOPE1,NOPE2"
		}},
		{"bad entity type", panelTSV([]string{"X", "cnv", "", "", "New panel"}), func(err error) bool {
			var fe core.ErrTSVIncorrectFormat
			return errors.As(err, &fe) && fe.Line == 2
		}},
		{"too few columns", "BRCA1\tgene\tBRCA1\n", func(err error) bool {
			var fe core.ErrTSVIncorrectFormat
			return errors.As(err, &fe) && fe.Line == 1
		}},
		{"missing panel name", panelTSV([]string{"BRCA1", "gene", "BRCA1", "", ""}), func(err error) bool {
			return errors.Is(err, core.ErrImport)
		}},
		{"superpanel target", panelTSV(
			[]string{"BRCA1", "gene", "BRCA1", "", "New panel"},
			[]string{"TP53", "gene", "TP53", "", "Super"},
		), func(err error) bool {
			var sp core.IsSuperPanelError
			return errors.As(err, &sp)
		}},
		{"empty", "", func(err error) bool { return errors.Is(err, core.ErrImport) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.ImportPanels(f.ctx, f.curator, strings.NewReader(tt.data))
			if !tt.check(err) {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
	// The failed superpanel import must not leave "New panel" behind.
	if _, err := f.svc.GetPanelByName(f.ctx, f.curator, "New panel"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("failed import must roll back, got %v", err)
	}
	if _, err := f.svc.ImportPanels(f.ctx, f.reviewer, strings.NewReader(panelTSV())); !errors.Is(err, core.ErrPermissionDenied) {
		t.Fatalf("reviewer: expected ErrPermissionDenied, got %v", err)
	}
}

func TestImportPanels_ReadError(t *testing.T) {
	f := newFixture(t)
	ioErr := errors.New("connection reset")
	if _, err := f.svc.ImportPanels(f.ctx, f.curator, iotest.ErrReader(ioErr)); !errors.Is(err, ioErr) {
		t.Fatalf("expected the read error, got %v", err)
	}
}

func TestImportPanels_ReimportKeepsUncarriedFields(t *testing.T) {
	f := newFixture(t)
	id := f.panel(t, "Breast cancer").Panel.ID
	e := model.Entity{
		Type: model.EntityGene, Name: "BRCA1", Status: model.LevelGreen, ModeOfInheritance: "MONOALLELIC",
		Penetrance: "Complete", Transcript: []string{"NM_007294"}, Comments: "keep me",
	}
	if _, err := f.svc.AddEntity(f.ctx, f.curator, id, e, []string{"Literature"}); err != nil {
		t.Fatalf("AddEntity: %v", err)
	}
	var buf bytes.Buffer
	if err := f.svc.WritePanelTSV(f.ctx, f.curator, &buf, id, nil); err != nil {
		t.Fatalf("WritePanelTSV: %v", err)
	}
	if _, err := f.svc.ImportPanels(f.ctx, f.curator, &buf); err != nil {
		t.Fatalf("ImportPanels: %v", err)
	}
	view, err := f.svc.GetPanel(f.ctx, f.curator, id, nil)
	if err != nil {
		t.Fatalf("GetPanel: %v", err)
	}
	got := view.Entities[0]
	if got.Penetrance != "Complete" || strings.Join(got.Transcript, ",") != "NM_007294" || got.Comments != "keep me" {
		t.Fatalf("re-import dropped fields: penetrance=%q transcript=%v comments=%q", got.Penetrance, got.Transcript, got.Comments)
	}
	if got.ModeOfInheritance != "MONOALLELIC" || got.Status != model.LevelGreen {
		t.Fatalf("re-import changed TSV fields: %+v", got)
	}
}

func reviewTSV(rows ...string) string {
	return "gene symbol\tpanel\tusername\trating\tmoi\tmop\tpublications\tphenotypes\tcurrent diagnostic\tcomments\tclinically relevant\n" + strings.Join(rows, "\n") + "\n"
}

func TestImportReviews(t *testing.T) {
	f := newFixture(t)
	id := f.panel(t, "Panel").Panel.ID
	f.gene(t, id, "BRCA1", model.LevelGreen)

	data := reviewTSV(
		"BRCA1\tPanel\treviewer\tGREEN\tMONOALLELIC\t\t12345;67890\tBreast cancer\tyes\tLooks right\tno",
		"BRCA1\tpanel\tcurator\tamber\t\t\t\t\tfalse\t\ttrue",
		"TP53\tPanel\treviewer\tRED\t\t\t\t\t\t\t",
	)
	sum, err := f.svc.ImportReviews(f.ctx, f.curator, strings.NewReader(data))
	if err != nil {
		t.Fatalf("ImportReviews: %v", err)
	}
	if sum.Panels != 1 || sum.Entities != 3 {
		t.Fatalf("summary = %+v", sum)
	}
	view, err := f.svc.GetPanel(f.ctx, f.curator, id, nil)
	if err != nil {
		t.Fatalf("GetPanel: %v", err)
	}
	if view.Snapshot.Version != (model.Version{Minor: 2}) {
		t.Fatalf("one version per panel expected, got %s", view.Snapshot.Version)
	}
	if len(view.Entities) != 2 {
		t.Fatalf("TP53 should have been added, got %d entities", len(view.Entities))
	}
	brca1 := view.Entities[0]
	ev, ok := brca1.EvaluationBy("reviewer")
	if !ok || ev.Rating != model.RatingGreen || !ev.CurrentDiagnostic || len(ev.Publications) != 2 || ev.Comments[0] != "Looks right" {
		t.Fatalf("reviewer evaluation = %+v", ev)
	}
	if ev, ok := brca1.EvaluationBy("curator"); !ok || ev.Rating != model.RatingAmber || !ev.ClinicallyRelevant {
		t.Fatalf("curator evaluation = %+v", ev)
	}
	if view.Entities[1].Status != model.LevelNone {
		t.Fatalf("genes added by review upload have no status")
	}
	if view.Snapshot.Stats.NumberOfReviewers != 2 {
		t.Fatalf("reviewers = %d", view.Snapshot.Stats.NumberOfReviewers)
	}
}

func TestImportReviews_Errors(t *testing.T) {
	f := newFixture(t)
	id := f.panel(t, "Panel").Panel.ID
	f.gene(t, id, "BRCA1", model.LevelGreen)

	_, err := f.svc.ImportReviews(f.ctx, f.curator, strings.NewReader(reviewTSV(
		"BRCA1\tPanel\tghost\tGREEN\t\t\t\t\t\t\t",
		"BRCA1\tPanel\tbanshee\tGREEN\t\t\t\t\t\t\t",
	)))
	var ue core.UsersDoNotExistError
	if !errors.As(err, &ue) || strings.Join(ue.Usernames, ",") != "banshee,ghost" {
		t.Fatalf("expected UsersDoNotExistError, got %v", err)
	}

	_, err = f.svc.ImportReviews(f.ctx, f.curator, strings.NewReader(reviewTSV("BRCA1\tPanel\treviewer\tPURPLE\t\t\t\t\t\t\t")))
	var re core.IncorrectRatingError
	if !errors.As(err, &re) || re.Value != "PURPLE" || re.Line != 2 {
		t.Fatalf("expected IncorrectRatingError, got %v", err)
	}

	_, err = f.svc.ImportReviews(f.ctx, f.curator, strings.NewReader(reviewTSV("BRCA1\tPanel\treviewer\tGREEN")))
	var fe core.ErrTSVIncorrectFormat
	if !errors.As(err, &fe) {
		t.Fatalf("expected ErrTSVIncorrectFormat, got %v", err)
	}

	_, err = f.svc.ImportReviews(f.ctx, f.curator, strings.NewReader(reviewTSV("NOPE1\tPanel\treviewer\tGREEN\t\t\t\t\t\t\t")))
	var ge core.GenesDoNotExistError
	if !errors.As(err, &ge) {
		t.Fatalf("expected GenesDoNotExistError, got %v", err)
	}

	_, err = f.svc.ImportReviews(f.ctx, f.curator, strings.NewReader(reviewTSV("BRCA1\tMissing\treviewer\tGREEN\t\t\t\t\t\t\t")))
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("unknown panel: expected ErrNotFound, got %v", err)
	}
	for _, e := range []error{ue, re, fe, ge} {
		if !errors.Is(e, core.ErrImport) {
			t.Fatalf("%T should match ErrImport", e)
		}
	}
}

func TestImportGenes(t *testing.T) {
	f := newFixture(t)
	lines := `{"gene_symbol":"ABCA4","gene_name":"ATP binding cassette subfamily A member 4","hgnc_id":"HGNC:34","omim_gene":["601691"],"active":true}
{"gene_symbol":"BRCA1","gene_name":"renamed","hgnc_id":"HGNC:1100","active":true}
`
	n, err := f.svc.ImportGenes(f.ctx, f.curator, strings.NewReader(lines))
	if err != nil || n != 2 {
		t.Fatalf("ImportGenes = %d, %v", n, err)
	}
	g, err := f.svc.GetGene(f.ctx, "BRCA1")
	if err != nil || g.Name != "renamed" {
		t.Fatalf("upsert did not update BRCA1: %+v, %v", g, err)
	}
	if g, err := f.svc.GetGene(f.ctx, "ABCA4"); err != nil || g.OMIMGene[0] != "601691" {
		t.Fatalf("ABCA4 = %+v, %v", g, err)
	}
	if _, err := f.svc.ImportGenes(f.ctx, f.curator, strings.NewReader(`{"gene_name":"no symbol"}`)); !errors.Is(err, core.ErrImport) {
		t.Fatalf("missing symbol: expected ErrImport, got %v", err)
	}
	if _, err := f.svc.ImportGenes(f.ctx, f.curator, bytes.NewBufferString("{not json")); !errors.Is(err, core.ErrImport) {
		t.Fatalf("bad json: expected ErrImport, got %v", err)
	}
}
