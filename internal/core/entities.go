// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.

package core

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/genepanels/panelapp/internal/model"
)

// EntityPatch edits an entity; nil fields are left alone.
type EntityPatch struct {
	GeneSymbol          *string
	ModeOfInheritance   *string
	ModeOfPathogenicity *string
	Penetrance          *string
	Publications        []string
	Phenotypes          []string
	Transcript          []string
	Comments            *string

	Chromosome *string
	Position37 *model.Range
	Position38 *model.Range

	VerboseName               *string
	HaploinsufficiencyScore   *string
	TriplosensitivityScore    *string
	RequiredOverlapPercentage *int
	TypeOfVariants            *string

	RepeatedSequence  *string
	NormalRepeats     *int
	PathogenicRepeats *int
}

// EvaluationInput is a reviewer's submission.
type EvaluationInput struct {
	Rating              model.Rating
	ModeOfInheritance   string
	ModeOfPathogenicity string
	Publications        []string
	Phenotypes          []string
	CurrentDiagnostic   bool
	ClinicallyRelevant  bool
	Comment             string
}

// validateEntity checks the type-specific required fields and normalises
// names. Gene entities are named by their symbol.
func validateEntity(e *model.Entity) error {
	e.Name = strings.TrimSpace(e.Name)
	e.GeneSymbol = strings.TrimSpace(e.GeneSymbol)
	switch e.Type {
	case model.EntityGene:
		if e.Name == "" {
			e.Name = e.GeneSymbol
		}
		if e.GeneSymbol == "" {
			e.GeneSymbol = e.Name
		}
		if e.Name == "" {
			return invalid("gene symbol is required")
		}
	case model.EntityRegion:
		if e.Name == "" {
			return invalid("region name is required")
		}
		if e.Chromosome == "" {
			return invalid("region %s: chromosome is required", e.Name)
		}
		if e.Position38.IsZero() && e.Position37.IsZero() {
			return invalid("region %s: position is required", e.Name)
		}
	case model.EntitySTR:
		if e.Name == "" {
			return invalid("STR name is required")
		}
		if e.RepeatedSequence == "" {
			return invalid("STR %s: repeated sequence is required", e.Name)
		}
		if e.PathogenicRepeats <= 0 {
			return invalid("STR %s: pathogenic repeats must be positive", e.Name)
		}
		if e.NormalRepeats < 0 || (e.NormalRepeats > 0 && e.NormalRepeats >= e.PathogenicRepeats) {
			return invalid("STR %s: normal repeats must be below pathogenic repeats", e.Name)
		}
	default:
		return invalid("unknown entity type %q", e.Type)
	}
	for _, r := range []model.Range{e.Position37, e.Position38} {
		if r.Start > r.End {
			return invalid("%s: position start %d is after end %d", e.Name, r.Start, r.End)
		}
	}
	if !e.Status.Valid() {
		return invalid("%s: invalid confidence level %d", e.Name, e.Status)
	}
	return nil
}

// checkGene verifies a gene symbol against the catalogue.
func checkGene(ctx context.Context, tx Repository, symbol string) error {
	if symbol == "" {
		return nil
	}
	if _, err := tx.GetGene(ctx, symbol); err != nil {
		if errors.Is(err, ErrNotFound) {
			return GeneDoesNotExistError{Symbol: symbol}
		}
		return err
	}
	return nil
}

// AddEntity adds a gene, region or STR to a panel. Evidence is created for
// each source. Curators may set the saved status directly; otherwise it is
// derived from the evidence. Reviewers' additions start on no list.
func (s *Service) AddEntity(ctx context.Context, actor *model.User, panelID int64, e model.Entity, sources []string) (*model.PanelView, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	if err := validateEntity(&e); err != nil {
		return nil, err
	}
	return s.mutate(ctx, actor, panelID, mutation{op: "add_entity", comment: "Added " + string(e.Type) + " " + e.Name}, func(ctx context.Context, tx Repository, d *draft) error {
		return s.addEntityTo(ctx, tx, actor, d, e, sources)
	})
}

func (s *Service) addEntityTo(ctx context.Context, tx Repository, actor *model.User, d *draft, e model.Entity, sources []string) error {
	if d.snapshot.IsSuper() {
		return IsSuperPanelError{Panel: d.panel.Name}
	}
	if d.find(e.Type, e.Name) >= 0 {
		return duplicateEntity(e, d.panel.Name)
	}
	if err := checkGene(ctx, tx, e.GeneSymbol); err != nil {
		return err
	}
	now := s.now()
	e.SourcePanel = nil
	e.Evaluations = nil
	for _, src := range cleanList(sources) {
		e.Evidence = append(e.Evidence, model.Evidence{Name: src, Reviewer: actor.Username, CreatedAt: now})
	}
	switch {
	case !actor.IsCurator():
		e.Status = model.LevelNone
	case e.Status == model.LevelNone:
		e.Status = s.EvidenceStatus(e)
	}
	e.TrackRecords = append(e.TrackRecords, model.TrackRecord{
		IssueType:        "Created",
		IssueDescription: "Added to panel " + d.panel.Name,
		User:             actor.Username,
		Status:           e.Status,
		CreatedAt:        now,
	})
	d.entities = append(d.entities, e)
	d.log(e.Type, e.Name, "%s was added to %s. Sources: %s", e.Name, d.panel.Name, strings.Join(e.EvidenceNames(), ","))
	return nil
}

func duplicateEntity(e model.Entity, panel string) error {
	return &duplicateEntityError{Type: e.Type, Name: e.Name, Panel: panel}
}

type duplicateEntityError struct {
	Type  model.EntityType
	Name  string
	Panel string
}

func (e *duplicateEntityError) Error() string {
	return string(e.Type) + " " + e.Name + " is already in panel " + e.Panel
}

func (e *duplicateEntityError) Unwrap() error { return ErrDuplicate }

// UpdateEntity applies a patch to an entity. Curators only.
func (s *Service) UpdateEntity(ctx context.Context, actor *model.User, panelID int64, t model.EntityType, name string, patch EntityPatch) (*model.PanelView, error) {
	if err := requireCurator(actor); err != nil {
		return nil, err
	}
	return s.mutate(ctx, actor, panelID, mutation{op: "update_entity", comment: "Updated " + string(t) + " " + name}, func(ctx context.Context, tx Repository, d *draft) error {
		e, err := d.entity(t, name)
		if err != nil {
			return err
		}
		if patch.GeneSymbol != nil && strings.TrimSpace(*patch.GeneSymbol) != e.GeneSymbol {
			if err := checkGene(ctx, tx, strings.TrimSpace(*patch.GeneSymbol)); err != nil {
				return err
			}
		}
		changed := applyPatch(e, patch)
		if len(changed) == 0 {
			return invalid("no changes for %s", e.Name)
		}
		probe := *e
		if err := validateEntity(&probe); err != nil {
			return err
		}
		d.log(e.Type, e.Name, "%s was updated: %s", e.Name, strings.Join(changed, ", "))
		return nil
	})
}

func applyPatch(e *model.Entity, p EntityPatch) []string {
	var changed []string
	str := func(label string, dst *string, v *string) {
		if v == nil {
			return
		}
		nv := strings.TrimSpace(*v)
		if nv != *dst {
			*dst = nv
			changed = append(changed, label)
		}
	}
	list := func(label string, dst *[]string, v []string) {
		if v == nil {
			return
		}
		nv := cleanList(v)
		if strings.Join(nv, "\x00") != strings.Join(*dst, "\x00") {
			*dst = nv
			changed = append(changed, label)
		}
	}
	num := func(label string, dst *int, v *int) {
		if v != nil && *v != *dst {
			*dst = *v
			changed = append(changed, label)
		}
	}
	rng := func(label string, dst *model.Range, v *model.Range) {
		if v != nil && *v != *dst {
			*dst = *v
			changed = append(changed, label)
		}
	}
	str("gene symbol", &e.GeneSymbol, p.GeneSymbol)
	str("mode of inheritance", &e.ModeOfInheritance, p.ModeOfInheritance)
	str("mode of pathogenicity", &e.ModeOfPathogenicity, p.ModeOfPathogenicity)
	str("penetrance", &e.Penetrance, p.Penetrance)
	list("publications", &e.Publications, p.Publications)
	list("phenotypes", &e.Phenotypes, p.Phenotypes)
	list("transcript", &e.Transcript, p.Transcript)
	str("comments", &e.Comments, p.Comments)
	str("chromosome", &e.Chromosome, p.Chromosome)
	rng("GRCh37 position", &e.Position37, p.Position37)
	rng("GRCh38 position", &e.Position38, p.Position38)
	str("verbose name", &e.VerboseName, p.VerboseName)
	str("haploinsufficiency score", &e.HaploinsufficiencyScore, p.HaploinsufficiencyScore)
	str("triplosensitivity score", &e.TriplosensitivityScore, p.TriplosensitivityScore)
	num("required overlap percentage", &e.RequiredOverlapPercentage, p.RequiredOverlapPercentage)
	str("type of variants", &e.TypeOfVariants, p.TypeOfVariants)
	str("repeated sequence", &e.RepeatedSequence, p.RepeatedSequence)
	num("normal repeats", &e.NormalRepeats, p.NormalRepeats)
	num("pathogenic repeats", &e.PathogenicRepeats, p.PathogenicRepeats)
	return changed
}

// DeleteEntity removes an entity from a panel. Curators only.
func (s *Service) DeleteEntity(ctx context.Context, actor *model.User, panelID int64, t model.EntityType, name string) (*model.PanelView, error) {
	if err := requireCurator(actor); err != nil {
		return nil, err
	}
	return s.mutate(ctx, actor, panelID, mutation{op: "delete_entity", comment: "Deleted " + string(t) + " " + name}, func(_ context.Context, _ Repository, d *draft) error {
		i := d.find(t, name)
		if i < 0 {
			_, err := d.entity(t, name)
			return err
		}
		removed := d.entities[i]
		d.entities = append(d.entities[:i], d.entities[i+1:]...)
		d.log(removed.Type, removed.Name, "%s was removed from %s", removed.Name, d.panel.Name)
		return nil
	})
}

// SetEntityStatus sets the curator ("saved") status and clears the flag.
func (s *Service) SetEntityStatus(ctx context.Context, actor *model.User, panelID int64, t model.EntityType, name string, level model.ConfidenceLevel, comment string) (*model.PanelView, error) {
	if err := requireCurator(actor); err != nil {
		return nil, err
	}
	if !level.Valid() {
		return nil, invalid("invalid confidence level %d", level)
	}
	return s.mutate(ctx, actor, panelID, mutation{op: "set_entity_status", comment: "Rated " + string(t) + " " + name}, func(_ context.Context, _ Repository, d *draft) error {
		e, err := d.entity(t, name)
		if err != nil {
			return err
		}
		e.Status = level
		e.Flagged = false
		desc := e.Name + " has been classified as " + level.Label()
		if comment != "" {
			desc += ": " + comment
		}
		e.TrackRecords = append(e.TrackRecords, model.TrackRecord{
			IssueType:        "Set status",
			IssueDescription: desc,
			User:             actor.Username,
			Status:           level,
			CreatedAt:        s.now(),
		})
		d.log(e.Type, e.Name, "%s", desc)
		return nil
	})
}

// SetEntityReady marks an entity as ready (or not) for the next major version.
func (s *Service) SetEntityReady(ctx context.Context, actor *model.User, panelID int64, t model.EntityType, name string, ready bool, comment string) (*model.PanelView, error) {
	if err := requireCurator(actor); err != nil {
		return nil, err
	}
	return s.mutate(ctx, actor, panelID, mutation{op: "set_entity_ready", comment: "Marked " + string(t) + " " + name}, func(_ context.Context, _ Repository, d *draft) error {
		e, err := d.entity(t, name)
		if err != nil {
			return err
		}
		if e.Ready == ready {
			return invalid("%s ready flag is already %t", e.Name, ready)
		}
		e.Ready = ready
		text := e.Name + " has been marked as ready"
		if !ready {
			text = e.Name + " has been marked as not ready"
		}
		if comment != "" {
			text += ": " + comment
		}
		d.log(e.Type, e.Name, "%s", text)
		return nil
	})
}

// AddEvidence attaches a source to an entity. Expert review evidence also
// sets the saved status.
func (s *Service) AddEvidence(ctx context.Context, actor *model.User, panelID int64, t model.EntityType, name string, ev model.Evidence) (*model.PanelView, error) {
	if err := requireCurator(actor); err != nil {
		return nil, err
	}
	ev.Name = strings.TrimSpace(ev.Name)
	if ev.Name == "" {
		return nil, invalid("evidence source is required")
	}
	return s.mutate(ctx, actor, panelID, mutation{op: "add_evidence", comment: "Added evidence to " + string(t) + " " + name}, func(_ context.Context, _ Repository, d *draft) error {
		e, err := d.entity(t, name)
		if err != nil {
			return err
		}
		ev.Reviewer = actor.Username
		ev.CreatedAt = s.now()
		e.Evidence = append(e.Evidence, ev)
		d.log(e.Type, e.Name, "Source %s was added to %s", ev.Name, e.Name)
		if IsExpertReview(ev.Name) {
			e.Status = s.EvidenceStatus(*e)
			e.TrackRecords = append(e.TrackRecords, model.TrackRecord{
				IssueType:        "Set status",
				IssueDescription: ev.Name,
				User:             actor.Username,
				Status:           e.Status,
				CreatedAt:        ev.CreatedAt,
			})
			d.log(e.Type, e.Name, "%s has been classified as %s", e.Name, e.Status.Label())
		}
		return nil
	})
}

// SubmitEvaluation records the actor's review of an entity, replacing any
// previous review by the same user. The evaluation is stamped with the
// version it creates.
func (s *Service) SubmitEvaluation(ctx context.Context, actor *model.User, panelID int64, t model.EntityType, name string, in EvaluationInput) (*model.PanelView, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	if in.Rating != "" {
		r, err := model.ParseRating(string(in.Rating))
		if err != nil {
			return nil, invalid("%v", err)
		}
		in.Rating = r
	}
	return s.mutate(ctx, actor, panelID, mutation{op: "submit_evaluation", comment: "Reviewed " + string(t) + " " + name}, func(_ context.Context, _ Repository, d *draft) error {
		if d.snapshot.IsSuper() {
			return IsSuperPanelError{Panel: d.panel.Name}
		}
		e, err := d.entity(t, name)
		if err != nil {
			return err
		}
		applyEvaluation(e, actor.Username, in, d.next, s.now())
		d.log(e.Type, e.Name, "%s reviewed %s: %s", actor.DisplayName(), e.Name, reviewSummary(in))
		return nil
	})
}

func applyEvaluation(e *model.Entity, user string, in EvaluationInput, v model.Version, now time.Time) {
	ev := model.Evaluation{
		User:                user,
		Rating:              in.Rating,
		ModeOfInheritance:   strings.TrimSpace(in.ModeOfInheritance),
		ModeOfPathogenicity: strings.TrimSpace(in.ModeOfPathogenicity),
		Publications:        cleanList(in.Publications),
		Phenotypes:          cleanList(in.Phenotypes),
		CurrentDiagnostic:   in.CurrentDiagnostic,
		ClinicallyRelevant:  in.ClinicallyRelevant,
		Version:             v,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	for i := range e.Evaluations {
		if e.Evaluations[i].User != user {
			continue
		}
		prev := e.Evaluations[i]
		ev.CreatedAt = prev.CreatedAt
		ev.Comments = prev.Comments
		if in.Comment != "" {
			ev.Comments = append(ev.Comments, in.Comment)
		}
		e.Evaluations[i] = ev
		return
	}
	if in.Comment != "" {
		ev.Comments = []string{in.Comment}
	}
	e.Evaluations = append(e.Evaluations, ev)
}

func reviewSummary(in EvaluationInput) string {
	var parts []string
	if in.Rating != "" {
		parts = append(parts, "rated "+string(in.Rating))
	}
	if in.ModeOfInheritance != "" {
		parts = append(parts, "mode of inheritance "+in.ModeOfInheritance)
	}
	if in.Comment != "" {
		parts = append(parts, "commented")
	}
	if len(parts) == 0 {
		return "no changes"
	}
	return strings.Join(parts, "; ")
}

// Evaluations returns the reviews of an entity together with their summary.
func (s *Service) Evaluations(ctx context.Context, viewer *model.User, panelID int64, t model.EntityType, name string) ([]model.Evaluation, RatingSummary, error) {
	e, err := s.GetEntity(ctx, viewer, panelID, t, name, nil)
	if err != nil {
		return nil, RatingSummary{}, err
	}
	return e.Evaluations, AggregateRatings(e.Evaluations), nil
}

// GetEntity returns one entity of a panel at the given (or live) version.
func (s *Service) GetEntity(ctx context.Context, viewer *model.User, panelID int64, t model.EntityType, name string, version *model.Version) (*model.Entity, error) {
	view, err := s.GetPanel(ctx, viewer, panelID, version)
	if err != nil {
		return nil, err
	}
	key := model.EntityKey(t, name)
	for i := range view.Entities {
		if view.Entities[i].Key() == key {
			return &view.Entities[i], nil
		}
	}
	return nil, notFound(string(t), name+" in panel "+view.Panel.Name)
}

// AddTag tags an entity. Curators only; existing tags are ignored.
func (s *Service) AddTag(ctx context.Context, actor *model.User, panelID int64, t model.EntityType, name, tag string) (*model.PanelView, error) {
	if err := requireCurator(actor); err != nil {
		return nil, err
	}
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil, invalid("tag is required")
	}
	return s.mutate(ctx, actor, panelID, mutation{op: "add_tag", comment: "Tagged " + string(t) + " " + name}, func(_ context.Context, _ Repository, d *draft) error {
		e, err := d.entity(t, name)
		if err != nil {
			return err
		}
		for _, existing := range e.Tags {
			if strings.EqualFold(existing, tag) {
				return invalid("%s is already tagged %s", e.Name, tag)
			}
		}
		e.Tags = append(e.Tags, tag)
		d.log(e.Type, e.Name, "%s was tagged %s", e.Name, tag)
		return nil
	})
}
