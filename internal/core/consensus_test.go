package core_test

import (
	"testing"
	"time"

	"github.com/genepanels/panelapp/internal/core"
	"github.com/genepanels/panelapp/internal/model"
)

func ratings(rs ...model.Rating) []model.Evaluation {
	out := make([]model.Evaluation, len(rs))
	for i, r := range rs {
		out[i] = model.Evaluation{User: string(rune('a' + i)), Rating: r}
	}
	return out
}

func TestAggregateRatings(t *testing.T) {
	const (
		G = model.RatingGreen
		A = model.RatingAmber
		R = model.RatingRed
	)
	tests := []struct {
		name      string
		evals     []model.Evaluation
		green     int
		amber     int
		red       int
		consensus model.Rating
	}{
		{"no evaluations", nil, 0, 0, 0, ""},
		{"unrated only", ratings(""), 0, 0, 0, ""},
		{"single green", ratings(G), 100, 0, 0, G},
		{"majority amber", ratings(G, A, A), 33, 67, 0, A},
		{"green amber tie goes amber", ratings(G, A), 50, 50, 0, A},
		{"amber red tie goes red", ratings(A, R), 0, 50, 50, R},
		{"three way tie goes red", ratings(G, A, R), 33, 33, 33, R},
		{"green red tie goes red", ratings(G, G, R, R), 50, 0, 50, R},
		{"half to even down", ratings(G, A, A, A, A, A, A, A), 12, 88, 0, A},
		{"half to even up", ratings(G, G, G, A, A, A, A, A), 38, 62, 0, A},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := core.AggregateRatings(tt.evals)
			if s.GreenPct != tt.green || s.AmberPct != tt.amber || s.RedPct != tt.red {
				t.Fatalf("percentages = %d/%d/%d, want %d/%d/%d", s.GreenPct, s.AmberPct, s.RedPct, tt.green, tt.amber, tt.red)
			}
			if s.Consensus != tt.consensus {
				t.Fatalf("consensus = %q, want %q", s.Consensus, tt.consensus)
			}
			if s.Green+s.Amber+s.Red != s.Total {
				t.Fatalf("counts %d+%d+%d do not add to total %d", s.Green, s.Amber, s.Red, s.Total)
			}
		})
	}
}

func TestEvidenceStatus(t *testing.T) {
	high := map[string]bool{"UKGTN": true, "Emory Genetics Laboratory": true, "Radboud University Medical Center, Nijmegen": true, "Illumina TruGenome Clinical Sequencing Services": true}
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ev := func(name string, offset int) model.Evidence {
		return model.Evidence{Name: name, CreatedAt: t0.Add(time.Duration(offset) * time.Minute)}
	}
	tests := []struct {
		name     string
		evidence []model.Evidence
		want     model.ConfidenceLevel
	}{
		{"none", nil, model.LevelNone},
		{"low confidence only", []model.Evidence{ev("Literature", 0)}, model.LevelNone},
		{"one source", []model.Evidence{ev("UKGTN", 0)}, model.LevelRed},
		{"same source twice", []model.Evidence{ev("UKGTN", 0), ev("UKGTN", 1)}, model.LevelRed},
		{"two sources", []model.Evidence{ev("UKGTN", 0), ev("Emory Genetics Laboratory", 1)}, model.LevelAmber},
		{"four sources capped", []model.Evidence{ev("UKGTN", 0), ev("Emory Genetics Laboratory", 1), ev("Radboud University Medical Center, Nijmegen", 2), ev("Illumina TruGenome Clinical Sequencing Services", 3)}, model.LevelGreen},
		{"expert green", []model.Evidence{ev("Expert Review Green", 0)}, model.LevelExpertGreen},
		{"expert list", []model.Evidence{ev("Expert list", 0)}, model.LevelExpertGreen},
		{"expert amber beats sources", []model.Evidence{ev("UKGTN", 0), ev("Emory Genetics Laboratory", 1), ev("Expert Review Amber", 2)}, model.LevelAmber},
		{"expert red", []model.Evidence{ev("Expert Review Red", 0)}, model.LevelRed},
		{"expert removed", []model.Evidence{ev("UKGTN", 0), ev("Expert Review Removed", 1)}, model.LevelNone},
		{"latest expert wins", []model.Evidence{ev("Expert Review Red", 5), ev("Expert Review Green", 1)}, model.LevelRed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := core.EvidenceStatus(tt.evidence, high); got != tt.want {
				t.Fatalf("EvidenceStatus = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestIsExpertReview(t *testing.T) {
	for name, want := range map[string]bool{
		"Expert Review Green": true,
		" expert review amber ": true,
		"Expert list":         true,
		"UKGTN":               false,
		"Expert":              false,
	} {
		if got := core.IsExpertReview(name); got != want {
			t.Errorf("IsExpertReview(%q) = %t, want %t", name, got, want)
		}
	}
}

func TestComputeStats_DedupesByHighestLevel(t *testing.T) {
	entities := []model.Entity{
		{Type: model.EntityGene, Name: "BRCA1", Status: model.LevelRed},
		{Type: model.EntityGene, Name: "brca1", Status: model.LevelExpertGreen, Ready: true},
		{Type: model.EntityGene, Name: "TP53", Status: model.LevelAmber, Evaluations: ratings(model.RatingGreen)},
		{Type: model.EntityRegion, Name: "ISCA-37390-Loss", Status: model.LevelNone},
		{Type: model.EntitySTR, Name: "HTT_CAG", Status: model.LevelGreen, Evaluations: ratings(model.RatingAmber, model.RatingRed)},
	}
	st := core.ComputeStats(entities)
	if st.Genes.Total != 2 || st.Genes.Green != 1 || st.Genes.Amber != 1 || st.Genes.Red != 0 {
		t.Fatalf("gene stats = %+v", st.Genes)
	}
	if st.Regions.Total != 1 || st.Regions.Grey != 1 {
		t.Fatalf("region stats = %+v", st.Regions)
	}
	if st.STRs.Green != 1 {
		t.Fatalf("STR stats = %+v", st.STRs)
	}
	if st.NumberOfEvaluatedEntities != 2 || st.NumberOfReadyEntities != 1 {
		t.Fatalf("evaluated=%d ready=%d", st.NumberOfEvaluatedEntities, st.NumberOfReadyEntities)
	}
	// Users "a" and "b" across all evaluations.
	if st.NumberOfReviewers != 2 {
		t.Fatalf("reviewers = %d, want 2", st.NumberOfReviewers)
	}
	if st.Total() != 4 {
		t.Fatalf("total = %d, want 4", st.Total())
	}
}
