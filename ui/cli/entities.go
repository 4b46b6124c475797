// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/genepanels/panelapp/internal/core"
	"github.com/genepanels/panelapp/internal/i18n"
	"github.com/genepanels/panelapp/internal/model"
)

// entityRef is the <panel> <type> <name> triple most entity commands take.
type entityRef struct {
	panelID int64
	typ     model.EntityType
	name    string
}

func resolveEntity(ctx context.Context, svc *core.Service, viewer *model.User, args []string) (entityRef, error) {
	id, err := resolvePanel(ctx, svc, viewer, args[0])
	if err != nil {
		return entityRef{}, err
	}
	t, err := model.ParseEntityType(args[1])
	if err != nil {
		return entityRef{}, err
	}
	return entityRef{panelID: id, typ: t, name: args[2]}, nil
}

// entityFlags holds the editable entity fields shared by add and update.
type entityFlags struct {
	geneSymbol, moi, mop, penetrance, comments string
	publications, phenotypes, transcripts      []string
	chromosome                                 string
	start37, end37, start38, end38             int64
	verboseName, haplo, triplo, variantTypes   string
	overlap                                    int
	repeatedSequence                           string
	normalRepeats, pathogenicRepeats           int
}

func (e *entityFlags) register(f *pflag.FlagSet) {
	f.StringVar(&e.geneSymbol, "gene-symbol", "", "gene symbol (regions and STRs)")
	f.StringVar(&e.moi, "moi", "", "mode of inheritance")
	f.StringVar(&e.mop, "mop", "", "mode of pathogenicity")
	f.StringVar(&e.penetrance, "penetrance", "", "penetrance (Complete, Incomplete)")
	f.StringVar(&e.comments, "comments", "", "curator comments")
	f.StringSliceVar(&e.publications, "publication", nil, "publication (PMID), repeatable")
	f.StringSliceVar(&e.phenotypes, "phenotype", nil, "phenotype, repeatable")
	f.StringSliceVar(&e.transcripts, "transcript", nil, "transcript, repeatable")
	f.StringVar(&e.chromosome, "chromosome", "", "chromosome (regions and STRs)")
	f.Int64Var(&e.start37, "start37", 0, "GRCh37 start position")
	f.Int64Var(&e.end37, "end37", 0, "GRCh37 end position")
	f.Int64Var(&e.start38, "start38", 0, "GRCh38 start position")
	f.Int64Var(&e.end38, "end38", 0, "GRCh38 end position")
	f.StringVar(&e.verboseName, "verbose-name", "", "region description")
	f.StringVar(&e.haplo, "haploinsufficiency", "", "haploinsufficiency score")
	f.StringVar(&e.triplo, "triplosensitivity", "", "triplosensitivity score")
	f.IntVar(&e.overlap, "overlap", 0, "required overlap percentage (regions)")
	f.StringVar(&e.variantTypes, "variant-types", "", "type of variants (regions)")
	f.StringVar(&e.repeatedSequence, "repeated-sequence", "", "repeated sequence (STRs)")
	f.IntVar(&e.normalRepeats, "normal-repeats", 0, "normal repeat count (STRs)")
	f.IntVar(&e.pathogenicRepeats, "pathogenic-repeats", 0, "pathogenic repeat count (STRs)")
}

func (e *entityFlags) entity(t model.EntityType, name string) model.Entity {
	return model.Entity{
		Type:                      t,
		Name:                      name,
		GeneSymbol:                e.geneSymbol,
		ModeOfInheritance:         e.moi,
		ModeOfPathogenicity:       e.mop,
		Penetrance:                e.penetrance,
		Comments:                  e.comments,
		Publications:              e.publications,
		Phenotypes:                e.phenotypes,
		Transcript:                e.transcripts,
		Chromosome:                e.chromosome,
		Position37:                model.Range{Start: e.start37, End: e.end37},
		Position38:                model.Range{Start: e.start38, End: e.end38},
		VerboseName:               e.verboseName,
		HaploinsufficiencyScore:   e.haplo,
		TriplosensitivityScore:    e.triplo,
		RequiredOverlapPercentage: e.overlap,
		TypeOfVariants:            e.variantTypes,
		RepeatedSequence:          e.repeatedSequence,
		NormalRepeats:             e.normalRepeats,
		PathogenicRepeats:         e.pathogenicRepeats,
	}
}

// patch sets only the fields whose flags were given.
func (e *entityFlags) patch(f *pflag.FlagSet) core.EntityPatch {
	var p core.EntityPatch
	str := func(flag string, v *string) *string {
		if f.Changed(flag) {
			return v
		}
		return nil
	}
	num := func(flag string, v *int) *int {
		if f.Changed(flag) {
			return v
		}
		return nil
	}
	p.GeneSymbol = str("gene-symbol", &e.geneSymbol)
	p.ModeOfInheritance = str("moi", &e.moi)
	p.ModeOfPathogenicity = str("mop", &e.mop)
	p.Penetrance = str("penetrance", &e.penetrance)
	p.Comments = str("comments", &e.comments)
	p.Chromosome = str("chromosome", &e.chromosome)
	p.VerboseName = str("verbose-name", &e.verboseName)
	p.HaploinsufficiencyScore = str("haploinsufficiency", &e.haplo)
	p.TriplosensitivityScore = str("triplosensitivity", &e.triplo)
	p.TypeOfVariants = str("variant-types", &e.variantTypes)
	p.RepeatedSequence = str("repeated-sequence", &e.repeatedSequence)
	p.RequiredOverlapPercentage = num("overlap", &e.overlap)
	p.NormalRepeats = num("normal-repeats", &e.normalRepeats)
	p.PathogenicRepeats = num("pathogenic-repeats", &e.pathogenicRepeats)
	if f.Changed("publication") {
		p.Publications = e.publications
	}
	if f.Changed("phenotype") {
		p.Phenotypes = e.phenotypes
	}
	if f.Changed("transcript") {
		p.Transcript = e.transcripts
	}
	if f.Changed("start37") || f.Changed("end37") {
		p.Position37 = &model.Range{Start: e.start37, End: e.end37}
	}
	if f.Changed("start38") || f.Changed("end38") {
		p.Position38 = &model.Range{Start: e.start38, End: e.end38}
	}
	return p
}

func newEntityCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entity",
		Short: i18n.T("entity.short"),
	}
	cmd.AddCommand(
		newEntityAddCmd(a),
		newEntityUpdateCmd(a),
		newEntityDeleteCmd(a),
		newEntityStatusCmd(a),
		newEntityReadyCmd(a),
		newEntityEvidenceCmd(a),
		newEntityTagCmd(a),
	)
	return cmd
}

// entityAction runs fn against a resolved entity with the acting user and
// prints msgID with the entity name, panel and new version.
func entityAction(a *app, msgID string, fn func(ctx context.Context, svc *core.Service, actor *model.User, ref entityRef) (*model.PanelView, error)) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc, actor, err := a.actor(ctx)
		if err != nil {
			return err
		}
		ref, err := resolveEntity(ctx, svc, actor, args)
		if err != nil {
			return err
		}
		view, err := fn(ctx, svc, actor, ref)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), i18n.T(msgID, ref.name, view.Panel.ID, view.Snapshot.Version))
		return nil
	}
}

func newEntityAddCmd(a *app) *cobra.Command {
	var ef entityFlags
	var sources []string
	var status string
	cmd := &cobra.Command{
		Use:   "add <panel> <gene|region|str> <name>",
		Short: "Add a gene, region or STR to a panel",
		Args:  cobra.ExactArgs(3),
		RunE: entityAction(a, "entity.added", func(ctx context.Context, svc *core.Service, actor *model.User, ref entityRef) (*model.PanelView, error) {
			e := ef.entity(ref.typ, ref.name)
			if status != "" {
				level, err := model.ParseConfidenceLevel(status)
				if err != nil {
					return nil, err
				}
				e.Status = level
			}
			return svc.AddEntity(ctx, actor, ref.panelID, e, sources)
		}),
	}
	ef.register(cmd.Flags())
	cmd.Flags().StringSliceVar(&sources, "source", nil, "evidence source, repeatable")
	cmd.Flags().StringVar(&status, "status", "", "initial rating (green, amber, red); derived from sources when empty")
	return cmd
}

func newEntityUpdateCmd(a *app) *cobra.Command {
	var ef entityFlags
	cmd := &cobra.Command{
		Use:   "update <panel> <gene|region|str> <name>",
		Short: "Change the fields of an entity",
		Args:  cobra.ExactArgs(3),
	}
	cmd.RunE = entityAction(a, "entity.updated", func(ctx context.Context, svc *core.Service, actor *model.User, ref entityRef) (*model.PanelView, error) {
		return svc.UpdateEntity(ctx, actor, ref.panelID, ref.typ, ref.name, ef.patch(cmd.Flags()))
	})
	ef.register(cmd.Flags())
	return cmd
}

func newEntityDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <panel> <gene|region|str> <name>",
		Short: "Remove an entity from a panel",
		Args:  cobra.ExactArgs(3),
		RunE: entityAction(a, "entity.removed", func(ctx context.Context, svc *core.Service, actor *model.User, ref entityRef) (*model.PanelView, error) {
			return svc.DeleteEntity(ctx, actor, ref.panelID, ref.typ, ref.name)
		}),
	}
}

func newEntityStatusCmd(a *app) *cobra.Command {
	var comment string
	cmd := &cobra.Command{
		Use:   "status <panel> <gene|region|str> <name> <green|amber|red|grey>",
		Short: "Set the curated rating of an entity",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := model.ParseConfidenceLevel(args[3])
			if err != nil {
				return err
			}
			return entityAction(a, "entity.updated", func(ctx context.Context, svc *core.Service, actor *model.User, ref entityRef) (*model.PanelView, error) {
				return svc.SetEntityStatus(ctx, actor, ref.panelID, ref.typ, ref.name, level, comment)
			})(cmd, args[:3])
		},
	}
	cmd.Flags().StringVarP(&comment, "comment", "m", "", "reason for the change")
	return cmd
}

func newEntityReadyCmd(a *app) *cobra.Command {
	var unset bool
	var comment string
	cmd := &cobra.Command{
		Use:   "ready <panel> <gene|region|str> <name>",
		Short: "Mark an entity as ready (reviewed by a curator)",
		Args:  cobra.ExactArgs(3),
		RunE: entityAction(a, "entity.updated", func(ctx context.Context, svc *core.Service, actor *model.User, ref entityRef) (*model.PanelView, error) {
			return svc.SetEntityReady(ctx, actor, ref.panelID, ref.typ, ref.name, !unset, comment)
		}),
	}
	cmd.Flags().BoolVar(&unset, "unset", false, "clear the ready flag")
	cmd.Flags().StringVarP(&comment, "comment", "m", "", "comment")
	return cmd
}

func newEntityEvidenceCmd(a *app) *cobra.Command {
	var rating int
	var comment string
	cmd := &cobra.Command{
		Use:   "evidence <panel> <gene|region|str> <name> <source>",
		Short: "Attach an evidence source to an entity",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := args[3]
			return entityAction(a, "entity.updated", func(ctx context.Context, svc *core.Service, actor *model.User, ref entityRef) (*model.PanelView, error) {
				return svc.AddEvidence(ctx, actor, ref.panelID, ref.typ, ref.name, model.Evidence{Name: source, Rating: rating, Comment: comment})
			})(cmd, args[:3])
		},
	}
	cmd.Flags().IntVar(&rating, "rating", 0, "evidence rating")
	cmd.Flags().StringVarP(&comment, "comment", "m", "", "comment")
	return cmd
}

func newEntityTagCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tag <panel> <gene|region|str> <name> <tag>",
		Short: "Tag an entity",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			tag := args[3]
			return entityAction(a, "entity.updated", func(ctx context.Context, svc *core.Service, actor *model.User, ref entityRef) (*model.PanelView, error) {
				return svc.AddTag(ctx, actor, ref.panelID, ref.typ, ref.name, tag)
			})(cmd, args[:3])
		},
	}
}

func newReviewCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: i18n.T("review.short"),
	}
	cmd.AddCommand(newReviewSubmitCmd(a), newReviewListCmd(a))
	return cmd
}

func newReviewSubmitCmd(a *app) *cobra.Command {
	var in core.EvaluationInput
	var rating string
	cmd := &cobra.Command{
		Use:   "submit <panel> <gene|region|str> <name>",
		Short: "Submit or replace your review of an entity",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, actor, err := a.actor(ctx)
			if err != nil {
				return err
			}
			ref, err := resolveEntity(ctx, svc, actor, args)
			if err != nil {
				return err
			}
			if rating != "" {
				if in.Rating, err = model.ParseRating(rating); err != nil {
					return err
				}
			}
			view, err := svc.SubmitEvaluation(ctx, actor, ref.panelID, ref.typ, ref.name, in)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("review.submitted", ref.name, view.Snapshot.Version))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&rating, "rating", "", "GREEN, AMBER or RED")
	f.StringVar(&in.ModeOfInheritance, "moi", "", "mode of inheritance")
	f.StringVar(&in.ModeOfPathogenicity, "mop", "", "mode of pathogenicity")
	f.StringSliceVar(&in.Publications, "publication", nil, "publication, repeatable")
	f.StringSliceVar(&in.Phenotypes, "phenotype", nil, "phenotype, repeatable")
	f.BoolVar(&in.CurrentDiagnostic, "current-diagnostic", false, "the entity is in current diagnostic use")
	f.BoolVar(&in.ClinicallyRelevant, "clinically-relevant", false, "the variants are clinically relevant")
	f.StringVarP(&in.Comment, "comment", "m", "", "comment")
	return cmd
}

func newReviewListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list <panel> <gene|region|str> <name>",
		Short: "List the reviews of an entity with the rating summary",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, viewer, err := a.viewer(ctx)
			if err != nil {
				return err
			}
			ref, err := resolveEntity(ctx, svc, viewer, args)
			if err != nil {
				return err
			}
			evals, sum, err := svc.Evaluations(ctx, viewer, ref.panelID, ref.typ, ref.name)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(evals))
			for _, e := range evals {
				rows = append(rows, []string{
					e.User, string(e.Rating), e.ModeOfInheritance,
					strings.Join(e.Publications, ";"), strconv.FormatBool(e.CurrentDiagnostic),
					strings.Join(e.Comments, " | "),
				})
			}
			out := cmd.OutOrStdout()
			printTable(out, []string{"User", "Rating", "Mode of inheritance", "Publications", "Current diagnostic", "Comments"}, rows)
			fmt.Fprintf(out, "Green %d%% (%d), Amber %d%% (%d), Red %d%% (%d)", sum.GreenPct, sum.Green, sum.AmberPct, sum.Amber, sum.RedPct, sum.Red)
			if sum.Consensus != "" {
				fmt.Fprintf(out, ", consensus %s", sum.Consensus)
			}
			fmt.Fprintln(out)
			return nil
		},
	}
}
