// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.

package core

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/genepanels/panelapp/internal/model"
)

// PanelTSVHeader is the column layout of the panel download. ImportPanels
// reads the same layout.
var PanelTSVHeader = []string{
	"Entity Name", "Entity type", "Gene Symbol", "Sources(; separated)",
	"Level4", "Level3", "Level2", "Model_Of_Inheritance", "Phenotypes",
	"Omim", "Orphanet", "HPO", "Publications", "Description", "Flagged",
	"GEL_Status", "UserRatings_Green_amber_red", "version", "ready",
	"Mode of pathogenicity", "EnsemblId(GRch37)", "EnsemblId(GRch38)", "HGNC",
	"Position Chromosome", "Position GRCh37 Start", "Position GRCh37 End",
	"Position GRCh38 Start", "Position GRCh38 End", "STR Repeated Sequence",
	"STR Normal Repeats", "STR Pathogenic Repeats",
	"Region Haploinsufficiency Score", "Region Triplosensitivity Score",
	"Region Required Overlap Percentage", "Region Variant Type",
	"Region Verbose Name",
}

const (
	colEntityName = iota
	colEntityType
	colGeneSymbol
	colSources
	colLevel4
	colLevel3
	colLevel2
	colModeOfInheritance
	colPhenotypes
	colOmim
	colOrphanet
	colHPO
	colPublications
	colDescription
	colFlagged
	colStatus
	colUserRatings
	colVersion
	colReady
	colModeOfPathogenicity
	colEnsembl37
	colEnsembl38
	colHGNC
	colChromosome
	colStart37
	colEnd37
	colStart38
	colEnd38
	colRepeatedSequence
	colNormalRepeats
	colPathogenicRepeats
	colHaploinsufficiency
	colTriplosensitivity
	colRequiredOverlap
	colVariantType
	colVerboseName
)

var (
	omimPattern     = regexp.MustCompile(`\b\d{6}\b`)
	orphanetPattern = regexp.MustCompile(`(?i)\bORPHA:?\d+\b`)
	hpoPattern      = regexp.MustCompile(`\bHP:\d{7}\b`)
)

func newTSVWriter(w io.Writer) *csv.Writer {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	return cw
}

// WritePanelTSV writes a panel version in the download format. Superpanels
// list the entities of every child, one row per child occurrence.
func (s *Service) WritePanelTSV(ctx context.Context, viewer *model.User, w io.Writer, panelID int64, version *model.Version) error {
	view, err := s.GetPanel(ctx, viewer, panelID, version)
	if err != nil {
		return err
	}
	genes, err := s.genesOf(ctx, view.Entities)
	if err != nil {
		return err
	}
	cw := newTSVWriter(w)
	if err := cw.Write(PanelTSVHeader); err != nil {
		return err
	}
	for _, e := range view.Entities {
		if err := cw.Write(panelRow(view, e, genes[e.GeneSymbol])); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (s *Service) genesOf(ctx context.Context, entities []model.Entity) (map[string]model.Gene, error) {
	symbols := make([]string, 0, len(entities))
	for _, e := range entities {
		if e.GeneSymbol != "" {
			symbols = append(symbols, e.GeneSymbol)
		}
	}
	out := make(map[string]model.Gene, len(symbols))
	if len(symbols) == 0 {
		return out, nil
	}
	genes, err := s.store.ListGenes(ctx, symbols)
	if err != nil {
		return nil, err
	}
	for _, g := range genes {
		out[g.Symbol] = g
	}
	return out, nil
}

func panelRow(view *model.PanelView, e model.Entity, g model.Gene) []string {
	row := make([]string, len(PanelTSVHeader))
	row[colEntityName] = e.Name
	row[colEntityType] = string(e.Type)
	row[colGeneSymbol] = e.GeneSymbol
	row[colSources] = strings.Join(e.EvidenceNames(), ";")
	row[colLevel4] = view.Snapshot.Name
	row[colLevel3] = view.Snapshot.DiseaseGroup
	row[colLevel2] = view.Snapshot.DiseaseSubGroup
	if e.SourcePanel != nil {
		row[colLevel4] = e.SourcePanel.Name
	}
	row[colModeOfInheritance] = e.ModeOfInheritance
	row[colPhenotypes] = strings.Join(e.Phenotypes, ";")
	phen := strings.Join(e.Phenotypes, " ")
	row[colOmim] = strings.Join(uniqueMatches(omimPattern, phen, g.OMIMGene), ";")
	row[colOrphanet] = strings.Join(uniqueMatches(orphanetPattern, phen, nil), ";")
	row[colHPO] = strings.Join(uniqueMatches(hpoPattern, phen, nil), ";")
	row[colPublications] = strings.Join(e.Publications, ";")
	row[colDescription] = view.Snapshot.Description
	row[colFlagged] = strconv.FormatBool(e.Flagged)
	row[colStatus] = strconv.Itoa(int(e.Status))
	r := AggregateRatings(e.Evaluations)
	row[colUserRatings] = fmt.Sprintf("%d;%d;%d", r.GreenPct, r.AmberPct, r.RedPct)
	row[colVersion] = view.Snapshot.Version.String()
	if e.SourcePanel != nil {
		row[colVersion] = e.SourcePanel.Version.String()
	}
	row[colReady] = strconv.FormatBool(e.Ready)
	row[colModeOfPathogenicity] = e.ModeOfPathogenicity
	row[colEnsembl37] = g.EnsemblGenes["GRch37"]
	row[colEnsembl38] = g.EnsemblGenes["GRch38"]
	row[colHGNC] = g.HGNCID
	row[colChromosome] = e.Chromosome
	row[colStart37], row[colEnd37] = rangeCells(e.Position37)
	row[colStart38], row[colEnd38] = rangeCells(e.Position38)
	if e.Type == model.EntitySTR {
		row[colRepeatedSequence] = e.RepeatedSequence
		row[colNormalRepeats] = intCell(e.NormalRepeats)
		row[colPathogenicRepeats] = intCell(e.PathogenicRepeats)
	}
	if e.Type == model.EntityRegion {
		row[colHaploinsufficiency] = e.HaploinsufficiencyScore
		row[colTriplosensitivity] = e.TriplosensitivityScore
		row[colRequiredOverlap] = intCell(e.RequiredOverlapPercentage)
		row[colVariantType] = e.TypeOfVariants
		row[colVerboseName] = e.VerboseName
	}
	return row
}

func uniqueMatches(re *regexp.Regexp, text string, extra []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range append(re.FindAllString(text, -1), extra...) {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

func rangeCells(r model.Range) (string, string) {
	if r.IsZero() {
		return "", ""
	}
	return strconv.FormatInt(r.Start, 10), strconv.FormatInt(r.End, 10)
}

func intCell(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

// ReportKind names a CSV report.
type ReportKind string

const (
	ReportPanel            ReportKind = "panel"
	ReportPanelStats       ReportKind = "stats"
	ReportEntities         ReportKind = "entities"
	ReportActivity         ReportKind = "activity"
	ReportReviewerActivity ReportKind = "reviewers"
)

// ParseReportKind validates a report name.
func ParseReportKind(s string) (ReportKind, error) {
	switch k := ReportKind(strings.ToLower(strings.TrimSpace(s))); k {
	case ReportPanel, ReportPanelStats, ReportEntities, ReportActivity, ReportReviewerActivity:
		return k, nil
	}
	return "", invalid("unknown report %q", s)
}

// ReportRequest selects a report and its parameters.
type ReportRequest struct {
	Kind       ReportKind       `json:"kind"`
	PanelID    int64            `json:"panel_id,omitempty"`
	Version    *model.Version   `json:"version,omitempty"`
	EntityType model.EntityType `json:"entity_type,omitempty"`
	Since      time.Time        `json:"since,omitempty"`
	Until      time.Time        `json:"until,omitempty"`
}

// WriteReport renders a report to w and returns a suggested file name.
func (s *Service) WriteReport(ctx context.Context, viewer *model.User, w io.Writer, req ReportRequest) (string, error) {
	stamp := s.now().Format("20060102-150405")
	switch req.Kind {
	case ReportPanel:
		if req.PanelID == 0 {
			return "", invalid("panel report needs a panel")
		}
		v := "live"
		if req.Version != nil {
			v = "v" + req.Version.String()
		}
		return fmt.Sprintf("panel-%d-%s.tsv", req.PanelID, v), s.WritePanelTSV(ctx, viewer, w, req.PanelID, req.Version)
	case ReportPanelStats:
		return "panel-stats-" + stamp + ".csv", s.WritePanelStatsCSV(ctx, viewer, w)
	case ReportEntities:
		t := req.EntityType
		if t == "" {
			t = model.EntityGene
		}
		return string(t) + "s-in-panels-" + stamp + ".csv", s.WriteEntitiesCSV(ctx, viewer, w, t)
	case ReportActivity:
		return "activity-" + stamp + ".csv", s.WriteActivityCSV(ctx, viewer, w, model.ActivityFilter{PanelID: req.PanelID, Since: req.Since, Until: req.Until})
	case ReportReviewerActivity:
		return "reviewer-activity-" + stamp + ".csv", s.WriteReviewerActivityCSV(ctx, viewer, w, req.Since, req.Until)
	}
	return "", invalid("unknown report %q", req.Kind)
}

// WritePanelStatsCSV writes one row of saved statistics per visible panel.
func (s *Service) WritePanelStatsCSV(ctx context.Context, viewer *model.User, w io.Writer) error {
	views, err := s.ListPanels(ctx, viewer, model.PanelFilter{})
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{
		"Panel ID", "Panel Name", "Version", "Status", "Superpanel",
		"Genes", "Green Genes", "Amber Genes", "Red Genes", "Grey Genes",
		"Regions", "STRs", "Reviewers", "Evaluated Entities", "Ready Entities",
	})
	for _, v := range views {
		st := v.Snapshot.Stats
		_ = cw.Write([]string{
			strconv.FormatInt(v.Panel.ID, 10), v.Snapshot.Name, v.Snapshot.Version.String(),
			string(v.Panel.Status), strconv.FormatBool(v.Snapshot.IsSuper()),
			strconv.Itoa(st.Genes.Total), strconv.Itoa(st.Genes.Green), strconv.Itoa(st.Genes.Amber),
			strconv.Itoa(st.Genes.Red), strconv.Itoa(st.Genes.Grey),
			strconv.Itoa(st.Regions.Total), strconv.Itoa(st.STRs.Total),
			strconv.Itoa(st.NumberOfReviewers), strconv.Itoa(st.NumberOfEvaluatedEntities),
			strconv.Itoa(st.NumberOfReadyEntities),
		})
	}
	cw.Flush()
	return cw.Error()
}

// WriteEntitiesCSV lists every entity of one type across the live versions
// of all visible plain panels.
func (s *Service) WriteEntitiesCSV(ctx context.Context, viewer *model.User, w io.Writer, t model.EntityType) error {
	views, err := s.ListPanels(ctx, viewer, model.PanelFilter{})
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"Name", "Gene Symbol", "Panel ID", "Panel Name", "Panel Version", "Status", "Colour", "Mode of inheritance", "Sources"})
	for _, v := range views {
		if v.Snapshot.IsSuper() {
			continue
		}
		entities, err := s.store.ListEntities(ctx, v.Snapshot.ID)
		if err != nil {
			return err
		}
		for _, e := range entities {
			if e.Type != t {
				continue
			}
			_ = cw.Write([]string{
				e.Name, e.GeneSymbol, strconv.FormatInt(v.Panel.ID, 10), v.Snapshot.Name,
				v.Snapshot.Version.String(), strconv.Itoa(int(e.Status)), e.Status.Colour(),
				e.ModeOfInheritance, strings.Join(e.EvidenceNames(), ";"),
			})
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteActivityCSV writes the activity feed, oldest first.
func (s *Service) WriteActivityCSV(ctx context.Context, viewer *model.User, w io.Writer, filter model.ActivityFilter) error {
	acts, err := s.Activities(ctx, viewer, filter)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"Created", "Panel", "Panel ID", "Panel Version", "User", "Entity Type", "Entity", "Activity"})
	for i := len(acts) - 1; i >= 0; i-- {
		a := acts[i]
		_ = cw.Write([]string{
			a.CreatedAt.UTC().Format(time.RFC3339), a.PanelName, strconv.FormatInt(a.PanelID, 10),
			a.Version.String(), a.User, string(a.EntityType), a.EntityName, a.Text,
		})
	}
	cw.Flush()
	return cw.Error()
}

// WriteReviewerActivityCSV summarises activity per user in a date range.
func (s *Service) WriteReviewerActivityCSV(ctx context.Context, viewer *model.User, w io.Writer, since, until time.Time) error {
	acts, err := s.Activities(ctx, viewer, model.ActivityFilter{Since: since, Until: until})
	if err != nil {
		return err
	}
	type row struct {
		actions int
		panels  map[int64]bool
		last    time.Time
	}
	byUser := make(map[string]*row)
	for _, a := range acts {
		if a.User == "" {
			continue
		}
		r, ok := byUser[a.User]
		if !ok {
			r = &row{panels: make(map[int64]bool)}
			byUser[a.User] = r
		}
		r.actions++
		r.panels[a.PanelID] = true
		if a.CreatedAt.After(r.last) {
			r.last = a.CreatedAt
		}
	}
	users := make([]string, 0, len(byUser))
	for u := range byUser {
		users = append(users, u)
	}
	sort.Strings(users)
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"User", "Actions", "Panels", "Last Activity"})
	for _, u := range users {
		r := byUser[u]
		_ = cw.Write([]string{u, strconv.Itoa(r.actions), strconv.Itoa(len(r.panels)), r.last.UTC().Format(time.RFC3339)})
	}
	cw.Flush()
	return cw.Error()
}
