// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.

package model

import (
	"fmt"
	"strings"
	"time"
)

// EntityType discriminates genes, genomic regions and short tandem repeats.
type EntityType string

const (
	EntityGene   EntityType = "gene"
	EntityRegion EntityType = "region"
	EntitySTR    EntityType = "str"
)

// EntityTypes lists every entity type in display order.
var EntityTypes = []EntityType{EntityGene, EntityRegion, EntitySTR}

// ParseEntityType accepts singular and plural spellings ("genes", "STRs").
func ParseEntityType(s string) (EntityType, error) {
	switch strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s") {
	case "gene":
		return EntityGene, nil
	case "region":
		return EntityRegion, nil
	case "str":
		return EntitySTR, nil
	}
	return "", fmt.Errorf("unknown entity type %q", s)
}

// Plural returns the URL segment used by the REST API ("genes", "strs").
func (t EntityType) Plural() string {
	return string(t) + "s"
}

// ConfidenceLevel is the curator-assigned ("saved") status of an entity.
type ConfidenceLevel int

const (
	LevelNone        ConfidenceLevel = 0 // No list (grey)
	LevelRed         ConfidenceLevel = 1
	LevelAmber       ConfidenceLevel = 2
	LevelGreen       ConfidenceLevel = 3
	LevelExpertGreen ConfidenceLevel = 4 // Green, expert list
)

// Colour groups levels 3 and 4 together as green.
func (l ConfidenceLevel) Colour() string {
	switch {
	case l >= LevelGreen:
		return "green"
	case l == LevelAmber:
		return "amber"
	case l == LevelRed:
		return "red"
	}
	return "grey"
}

// Label is the human readable status.
func (l ConfidenceLevel) Label() string {
	switch {
	case l >= LevelGreen:
		return "Green List (high evidence)"
	case l == LevelAmber:
		return "Amber List (moderate evidence)"
	case l == LevelRed:
		return "Red List (low evidence)"
	}
	return "No List (delete)"
}

// Valid reports whether l is in the 0..4 range.
func (l ConfidenceLevel) Valid() bool {
	return l >= LevelNone && l <= LevelExpertGreen
}

// ParseConfidenceLevel accepts a number (0-4) or a colour name.
func ParseConfidenceLevel(s string) (ConfidenceLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "0", "grey", "gray", "none", "":
		return LevelNone, nil
	case "1", "red":
		return LevelRed, nil
	case "2", "amber":
		return LevelAmber, nil
	case "3", "green":
		return LevelGreen, nil
	case "4":
		return LevelExpertGreen, nil
	}
	return LevelNone, fmt.Errorf("invalid confidence level %q", s)
}

// Rating is a reviewer's verdict on an entity.
type Rating string

const (
	RatingGreen Rating = "GREEN"
	RatingAmber Rating = "AMBER"
	RatingRed   Rating = "RED"
)

// ParseRating accepts any case of GREEN, AMBER or RED.
func ParseRating(s string) (Rating, error) {
	switch r := Rating(strings.ToUpper(strings.TrimSpace(s))); r {
	case RatingGreen, RatingAmber, RatingRed:
		return r, nil
	}
	return "", fmt.Errorf("invalid rating %q", s)
}

// Evidence is a source supporting an entity's inclusion in a panel.
type Evidence struct {
	Name      string    `json:"name"`
	Rating    int       `json:"rating,omitempty"`
	Comment   string    `json:"comment,omitempty"`
	Reviewer  string    `json:"reviewer,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Evaluation is a single reviewer's review of an entity.
type Evaluation struct {
	User                string    `json:"user"`
	Rating              Rating    `json:"rating,omitempty"`
	ModeOfInheritance   string    `json:"mode_of_inheritance,omitempty"`
	ModeOfPathogenicity string    `json:"mode_of_pathogenicity,omitempty"`
	Publications        []string  `json:"publications,omitempty"`
	Phenotypes          []string  `json:"phenotypes,omitempty"`
	CurrentDiagnostic   bool      `json:"current_diagnostic"`
	ClinicallyRelevant  bool      `json:"clinically_relevant"`
	Comments            []string  `json:"comments,omitempty"`
	Version             Version   `json:"version"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// TrackRecord is an entry of an entity's curation history.
type TrackRecord struct {
	IssueType        string          `json:"issue_type"`
	IssueDescription string          `json:"issue_description"`
	User             string          `json:"user"`
	Status           ConfidenceLevel `json:"gel_status"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Range is a closed genomic interval.
type Range struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// IsZero reports whether the range was never set.
func (r Range) IsZero() bool { return r.Start == 0 && r.End == 0 }

// Entity is a gene, region or STR inside a panel snapshot.
type Entity struct {
	Type                EntityType      `json:"entity_type"`
	Name                string          `json:"entity_name"`
	GeneSymbol          string          `json:"gene_symbol,omitempty"`
	Status              ConfidenceLevel `json:"confidence_level"`
	ModeOfInheritance   string          `json:"mode_of_inheritance,omitempty"`
	ModeOfPathogenicity string          `json:"mode_of_pathogenicity,omitempty"`
	Penetrance          string          `json:"penetrance,omitempty"`
	Publications        []string        `json:"publications,omitempty"`
	Phenotypes          []string        `json:"phenotypes,omitempty"`
	Tags                []string        `json:"tags,omitempty"`
	Transcript          []string        `json:"transcript,omitempty"`
	Comments            string          `json:"comments,omitempty"`
	Flagged             bool            `json:"flagged"`
	Ready               bool            `json:"ready"`
	Evidence            []Evidence      `json:"evidence,omitempty"`
	Evaluations         []Evaluation    `json:"evaluations,omitempty"`
	TrackRecords        []TrackRecord   `json:"track_records,omitempty"`

	// Regions and STRs.
	Chromosome string `json:"chromosome,omitempty"`
	Position37 Range  `json:"grch37_coordinates"`
	Position38 Range  `json:"grch38_coordinates"`

	// Regions only.
	VerboseName               string `json:"verbose_name,omitempty"`
	HaploinsufficiencyScore   string `json:"haploinsufficiency_score,omitempty"`
	TriplosensitivityScore    string `json:"triplosensitivity_score,omitempty"`
	RequiredOverlapPercentage int    `json:"required_overlap_percentage,omitempty"`
	TypeOfVariants            string `json:"type_of_variants,omitempty"`

	// STRs only.
	RepeatedSequence  string `json:"repeated_sequence,omitempty"`
	NormalRepeats     int    `json:"normal_repeats,omitempty"`
	PathogenicRepeats int    `json:"pathogenic_repeats,omitempty"`

	// SourcePanel is set only when the entity is shown through a superpanel.
	SourcePanel *ChildRef `json:"panel,omitempty"`
}

// Key identifies an entity uniquely inside a snapshot.
func (e Entity) Key() string {
	return EntityKey(e.Type, e.Name)
}

// EntityKey builds the key used by Entity.Key.
func EntityKey(t EntityType, name string) string {
	return string(t) + ":" + strings.ToUpper(name)
}

// EvaluationBy returns the evaluation of the given user, if any.
func (e Entity) EvaluationBy(user string) (Evaluation, bool) {
	for _, ev := range e.Evaluations {
		if ev.User == user {
			return ev, true
		}
	}
	return Evaluation{}, false
}

// EvidenceNames returns the distinct evidence source names in insertion order.
func (e Entity) EvidenceNames() []string {
	seen := make(map[string]bool, len(e.Evidence))
	out := make([]string, 0, len(e.Evidence))
	for _, ev := range e.Evidence {
		if seen[ev.Name] {
			continue
		}
		seen[ev.Name] = true
		out = append(out, ev.Name)
	}
	return out
}

// Clone returns a deep copy so snapshots never share slices.
func (e Entity) Clone() Entity {
	cp := e
	cp.Publications = append([]string(nil), e.Publications...)
	cp.Phenotypes = append([]string(nil), e.Phenotypes...)
	cp.Tags = append([]string(nil), e.Tags...)
	cp.Transcript = append([]string(nil), e.Transcript...)
	cp.Evidence = append([]Evidence(nil), e.Evidence...)
	cp.TrackRecords = append([]TrackRecord(nil), e.TrackRecords...)
	cp.Evaluations = make([]Evaluation, len(e.Evaluations))
	for i, ev := range e.Evaluations {
		ev.Publications = append([]string(nil), ev.Publications...)
		ev.Phenotypes = append([]string(nil), ev.Phenotypes...)
		ev.Comments = append([]string(nil), ev.Comments...)
		cp.Evaluations[i] = ev
	}
	if e.SourcePanel != nil {
		ref := *e.SourcePanel
		cp.SourcePanel = &ref
	}
	return cp
}
