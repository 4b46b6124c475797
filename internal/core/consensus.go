// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.

package core

import (
	"math"
	"strings"

	"github.com/genepanels/panelapp/internal/model"
)

// RatingSummary aggregates the reviewer ratings of one entity.
type RatingSummary struct {
	Green     int          `json:"green"`
	Amber     int          `json:"amber"`
	Red       int          `json:"red"`
	Total     int          `json:"total"`
	GreenPct  int          `json:"green_percent"`
	AmberPct  int          `json:"amber_percent"`
	RedPct    int          `json:"red_percent"`
	Consensus model.Rating `json:"consensus,omitempty"`
}

// AggregateRatings counts ratings and picks the consensus. Evaluations
// without a rating count towards neither colour nor Total. Ties resolve to
// the less confident rating, so RED beats AMBER beats GREEN.
func AggregateRatings(evals []model.Evaluation) RatingSummary {
	var s RatingSummary
	for _, ev := range evals {
		switch ev.Rating {
		case model.RatingGreen:
			s.Green++
		case model.RatingAmber:
			s.Amber++
		case model.RatingRed:
			s.Red++
		default:
			continue
		}
		s.Total++
	}
	if s.Total == 0 {
		return s
	}
	s.GreenPct = percent(s.Green, s.Total)
	s.AmberPct = percent(s.Amber, s.Total)
	s.RedPct = percent(s.Red, s.Total)

	s.Consensus = model.RatingRed
	best := s.Red
	if s.Amber > best {
		s.Consensus, best = model.RatingAmber, s.Amber
	}
	if s.Green > best {
		s.Consensus = model.RatingGreen
	}
	return s
}

// percent returns n*100/total rounded half to even.
func percent(n, total int) int {
	return int(math.RoundToEven(float64(n) * 100 / float64(total)))
}

// expertReviews maps evidence names that override the computed status.
var expertReviews = map[string]model.ConfidenceLevel{
	"expert review green":   model.LevelExpertGreen,
	"expert list":           model.LevelExpertGreen,
	"expert review amber":   model.LevelAmber,
	"expert review red":     model.LevelRed,
	"expert review removed": model.LevelNone,
}

// IsExpertReview reports whether an evidence name is an expert review.
func IsExpertReview(name string) bool {
	_, ok := expertReviews[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// EvidenceStatus derives a saved status from evidence. The most recent
// expert review wins; otherwise each distinct high confidence source adds one
// level, capped at green.
func EvidenceStatus(evidence []model.Evidence, highConfidence map[string]bool) model.ConfidenceLevel {
	var latest *model.Evidence
	for i := range evidence {
		ev := &evidence[i]
		if !IsExpertReview(ev.Name) {
			continue
		}
		if latest == nil || !ev.CreatedAt.Before(latest.CreatedAt) {
			latest = ev
		}
	}
	if latest != nil {
		return expertReviews[strings.ToLower(strings.TrimSpace(latest.Name))]
	}

	seen := make(map[string]bool)
	for _, ev := range evidence {
		if highConfidence[ev.Name] {
			seen[ev.Name] = true
		}
	}
	if n := len(seen); n < int(model.LevelGreen) {
		return model.ConfidenceLevel(n)
	}
	return model.LevelGreen
}

// EvidenceStatus applies the package-level rule with the service's
// configured high confidence sources. Flagged entities report no list.
func (s *Service) EvidenceStatus(e model.Entity) model.ConfidenceLevel {
	if e.Flagged {
		return model.LevelNone
	}
	return EvidenceStatus(e.Evidence, s.sources)
}

// ComputeStats counts entities by type and colour. Entities sharing a Key are
// counted once at their highest level, which is how superpanel statistics
// treat a gene present in several children.
func ComputeStats(entities []model.Entity) model.PanelStats {
	type agg struct {
		t         model.EntityType
		level     model.ConfidenceLevel
		evaluated bool
		ready     bool
	}
	order := make([]string, 0, len(entities))
	byKey := make(map[string]*agg, len(entities))
	reviewers := make(map[string]bool)
	for _, e := range entities {
		k := e.Key()
		a, ok := byKey[k]
		if !ok {
			a = &agg{t: e.Type, level: e.Status}
			byKey[k] = a
			order = append(order, k)
		}
		if e.Status > a.level {
			a.level = e.Status
		}
		if len(e.Evaluations) > 0 {
			a.evaluated = true
		}
		if e.Ready {
			a.ready = true
		}
		for _, ev := range e.Evaluations {
			reviewers[ev.User] = true
		}
	}

	var st model.PanelStats
	for _, k := range order {
		a := byKey[k]
		st.ForType(a.t).Add(a.level)
		if a.evaluated {
			st.NumberOfEvaluatedEntities++
		}
		if a.ready {
			st.NumberOfReadyEntities++
		}
	}
	st.NumberOfReviewers = len(reviewers)
	return st
}
