// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.

package core

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/genepanels/panelapp/internal/logging"
	"github.com/genepanels/panelapp/internal/model"
)

// ImportSummary reports what a bulk import touched.
type ImportSummary struct {
	Panels   int `json:"panels"`
	Created  int `json:"created_panels"`
	Entities int `json:"entities"`
}

type importRow struct {
	line   int
	panel  string
	group  string
	sub    string
	entity model.Entity
	source []string
}

// ImportPanels loads entities from the panel download format. Rows are
// grouped by panel name; missing panels are created. Every referenced gene
// must exist. Nothing is written unless every panel imports cleanly.
func (s *Service) ImportPanels(ctx context.Context, actor *model.User, r io.Reader) (sum ImportSummary, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "import_panels", start, err) }()
	if err := requireCurator(actor); err != nil {
		return sum, err
	}
	records, err := readTSV(r, "entity name")
	if err != nil {
		return sum, err
	}
	rows := make([]importRow, 0, len(records))
	var symbols []string
	for _, rec := range records {
		row, err := parsePanelRow(rec.line, rec.cells)
		if err != nil {
			return sum, err
		}
		rows = append(rows, row)
		if row.entity.GeneSymbol != "" {
			symbols = append(symbols, row.entity.GeneSymbol)
		}
	}
	if len(rows) == 0 {
		return sum, ErrTSVIncorrectFormat{Line: 1, Reason: "no rows"}
	}
	if err := s.requireGenes(ctx, symbols); err != nil {
		return sum, err
	}

	var order []string
	byPanel := make(map[string][]importRow)
	for _, row := range rows {
		key := strings.ToUpper(row.panel)
		if _, ok := byPanel[key]; !ok {
			order = append(order, key)
		}
		byPanel[key] = append(byPanel[key], row)
	}

	err = s.store.RunInTx(ctx, func(ctx context.Context, tx Repository) error {
		for _, key := range order {
			group := byPanel[key]
			first := group[0]
			p, err := tx.GetPanelByName(ctx, first.panel)
			switch {
			case errors.Is(err, ErrNotFound):
				view, err := s.createPanelTx(ctx, tx, actor, PanelInput{Name: first.panel, DiseaseGroup: first.group, DiseaseSubGroup: first.sub})
				if err != nil {
					return err
				}
				p = &view.Panel
				sum.Created++
			case err != nil:
				return err
			}
			_, err = s.mutateTx(ctx, tx, actor, p.ID, mutation{op: "import_panels", comment: "Panel uploaded"}, func(_ context.Context, _ Repository, d *draft) error {
				if d.snapshot.IsSuper() {
					return IsSuperPanelError{Panel: d.panel.Name}
				}
				for _, row := range group {
					s.mergeImported(actor, d, row)
				}
				return nil
			})
			if err != nil {
				return err
			}
			sum.Panels++
			sum.Entities += len(group)
		}
		return nil
	})
	if err != nil {
		return ImportSummary{}, err
	}
	logging.Infof("imported %d entities into %d panels (%d new)", sum.Entities, sum.Panels, sum.Created)
	return sum, nil
}

// mergeImported adds a row's entity to the draft, or refreshes the curated
// fields of an existing one. Evaluations and history are kept.
func (s *Service) mergeImported(actor *model.User, d *draft, row importRow) {
	now := s.now()
	e := row.entity
	for _, src := range row.source {
		e.Evidence = append(e.Evidence, model.Evidence{Name: src, Reviewer: actor.Username, CreatedAt: now})
	}
	i := d.find(e.Type, e.Name)
	if i < 0 {
		if e.Status == model.LevelNone {
			e.Status = s.EvidenceStatus(e)
		}
		e.TrackRecords = []model.TrackRecord{{IssueType: "Created", IssueDescription: "Uploaded to panel " + d.panel.Name, User: actor.Username, Status: e.Status, CreatedAt: now}}
		d.entities = append(d.entities, e)
		d.log(e.Type, e.Name, "%s was added to %s by upload", e.Name, d.panel.Name)
		return
	}
	cur := &d.entities[i]
	known := make(map[string]bool, len(cur.Evidence))
	for _, ev := range cur.Evidence {
		known[ev.Name] = true
	}
	for _, ev := range e.Evidence {
		if !known[ev.Name] {
			cur.Evidence = append(cur.Evidence, ev)
		}
	}
	e.Evidence = cur.Evidence
	e.Evaluations = cur.Evaluations
	e.TrackRecords = cur.TrackRecords
	e.Tags = cur.Tags
	// Not carried by the TSV.
	e.Penetrance = cur.Penetrance
	e.Transcript = cur.Transcript
	e.Comments = cur.Comments
	if e.Status == model.LevelNone {
		e.Status = cur.Status
	}
	if e.Status != cur.Status {
		e.TrackRecords = append(e.TrackRecords, model.TrackRecord{IssueType: "Set status", IssueDescription: "Status set by upload", User: actor.Username, Status: e.Status, CreatedAt: now})
	}
	*cur = e
	d.log(e.Type, e.Name, "%s was updated by upload", e.Name)
}

func (s *Service) requireGenes(ctx context.Context, symbols []string) error {
	symbols = cleanList(symbols)
	if len(symbols) == 0 {
		return nil
	}
	genes, err := s.store.ListGenes(ctx, symbols)
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(genes))
	for _, g := range genes {
		have[g.Symbol] = true
	}
	var missing []string
	for _, sym := range symbols {
		if !have[sym] {
			missing = append(missing, sym)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return GenesDoNotExistError{Symbols: missing}
	}
	return nil
}

func parsePanelRow(line int, cells []string) (importRow, error) {
	if len(cells) < colModeOfInheritance+1 {
		return importRow{}, ErrTSVIncorrectFormat{Line: line, Reason: fmt.Sprintf("expected %d columns, got %d", len(PanelTSVHeader), len(cells))}
	}
	for len(cells) < len(PanelTSVHeader) {
		cells = append(cells, "")
	}
	bad := func(format string, args ...any) error {
		return ErrTSVIncorrectFormat{Line: line, Reason: fmt.Sprintf(format, args...)}
	}
	row := importRow{
		line:   line,
		panel:  strings.TrimSpace(cells[colLevel4]),
		group:  strings.TrimSpace(cells[colLevel3]),
		sub:    strings.TrimSpace(cells[colLevel2]),
		source: splitList(cells[colSources]),
	}
	if row.panel == "" {
		return row, bad("panel name (Level4) is empty")
	}
	t, err := model.ParseEntityType(cells[colEntityType])
	if err != nil {
		return row, bad("%v", err)
	}
	status, err := model.ParseConfidenceLevel(cells[colStatus])
	if err != nil {
		return row, bad("%v", err)
	}
	e := model.Entity{
		Type:                    t,
		Name:                    strings.TrimSpace(cells[colEntityName]),
		GeneSymbol:              strings.TrimSpace(cells[colGeneSymbol]),
		Status:                  status,
		ModeOfInheritance:       strings.TrimSpace(cells[colModeOfInheritance]),
		ModeOfPathogenicity:     strings.TrimSpace(cells[colModeOfPathogenicity]),
		Phenotypes:              splitList(cells[colPhenotypes]),
		Publications:            splitList(cells[colPublications]),
		Chromosome:              strings.TrimSpace(cells[colChromosome]),
		RepeatedSequence:        strings.TrimSpace(cells[colRepeatedSequence]),
		HaploinsufficiencyScore: strings.TrimSpace(cells[colHaploinsufficiency]),
		TriplosensitivityScore:  strings.TrimSpace(cells[colTriplosensitivity]),
		TypeOfVariants:          strings.TrimSpace(cells[colVariantType]),
		VerboseName:             strings.TrimSpace(cells[colVerboseName]),
	}
	if e.Flagged, err = parseBool(cells[colFlagged]); err != nil {
		return row, bad("flagged: %v", err)
	}
	if e.Ready, err = parseBool(cells[colReady]); err != nil {
		return row, bad("ready: %v", err)
	}
	ints := []struct {
		name string
		cell string
		dst  *int
	}{
		{"normal repeats", cells[colNormalRepeats], &e.NormalRepeats},
		{"pathogenic repeats", cells[colPathogenicRepeats], &e.PathogenicRepeats},
		{"required overlap", cells[colRequiredOverlap], &e.RequiredOverlapPercentage},
	}
	for _, f := range ints {
		if *f.dst, err = parseInt(f.cell); err != nil {
			return row, bad("%s: %v", f.name, err)
		}
	}
	if e.Position37, err = parseRange(cells[colStart37], cells[colEnd37]); err != nil {
		return row, bad("GRCh37 position: %v", err)
	}
	if e.Position38, err = parseRange(cells[colStart38], cells[colEnd38]); err != nil {
		return row, bad("GRCh38 position: %v", err)
	}
	if err := validateEntity(&e); err != nil {
		return row, bad("%v", err)
	}
	row.entity = e
	return row, nil
}

// ImportReviews loads reviewer evaluations. Columns: gene symbol, panel
// name, username, rating, mode of inheritance, mode of pathogenicity,
// publications, phenotypes, current diagnostic, comments, clinically
// relevant. Genes missing from a panel are added without a status.
func (s *Service) ImportReviews(ctx context.Context, actor *model.User, r io.Reader) (sum ImportSummary, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "import_reviews", start, err) }()
	if err := requireCurator(actor); err != nil {
		return sum, err
	}
	records, err := readTSV(r, "gene symbol")
	if err != nil {
		return sum, err
	}
	type review struct {
		symbol, panel, user string
		in                  EvaluationInput
	}
	reviews := make([]review, 0, len(records))
	var usernames, symbols []string
	for _, rec := range records {
		c := rec.cells
		if len(c) != 11 {
			return sum, ErrTSVIncorrectFormat{Line: rec.line, Reason: fmt.Sprintf("expected 11 columns, got %d", len(c))}
		}
		rv := review{symbol: strings.TrimSpace(c[0]), panel: strings.TrimSpace(c[1]), user: strings.TrimSpace(c[2])}
		if rv.symbol == "" || rv.panel == "" || rv.user == "" {
			return sum, ErrTSVIncorrectFormat{Line: rec.line, Reason: "gene symbol, panel and username are required"}
		}
		if raw := strings.TrimSpace(c[3]); raw != "" {
			rating, err := model.ParseRating(raw)
			if err != nil {
				return sum, IncorrectRatingError{Line: rec.line, Value: raw}
			}
			rv.in.Rating = rating
		}
		rv.in.ModeOfInheritance = strings.TrimSpace(c[4])
		rv.in.ModeOfPathogenicity = strings.TrimSpace(c[5])
		rv.in.Publications = splitList(c[6])
		rv.in.Phenotypes = splitList(c[7])
		if rv.in.CurrentDiagnostic, err = parseBool(c[8]); err != nil {
			return sum, ErrTSVIncorrectFormat{Line: rec.line, Reason: "current diagnostic: " + err.Error()}
		}
		rv.in.Comment = strings.TrimSpace(c[9])
		if rv.in.ClinicallyRelevant, err = parseBool(c[10]); err != nil {
			return sum, ErrTSVIncorrectFormat{Line: rec.line, Reason: "clinically relevant: " + err.Error()}
		}
		reviews = append(reviews, rv)
		usernames = append(usernames, rv.user)
		symbols = append(symbols, rv.symbol)
	}
	if len(reviews) == 0 {
		return sum, ErrTSVIncorrectFormat{Line: 1, Reason: "no rows"}
	}
	if err := s.requireUsers(ctx, usernames); err != nil {
		return sum, err
	}
	if err := s.requireGenes(ctx, symbols); err != nil {
		return sum, err
	}

	var order []string
	byPanel := make(map[string][]review)
	for _, rv := range reviews {
		key := strings.ToUpper(rv.panel)
		if _, ok := byPanel[key]; !ok {
			order = append(order, key)
		}
		byPanel[key] = append(byPanel[key], rv)
	}
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx Repository) error {
		for _, key := range order {
			group := byPanel[key]
			p, err := tx.GetPanelByName(ctx, group[0].panel)
			if err != nil {
				return err
			}
			_, err = s.mutateTx(ctx, tx, actor, p.ID, mutation{op: "import_reviews", comment: "Reviews uploaded"}, func(_ context.Context, _ Repository, d *draft) error {
				if d.snapshot.IsSuper() {
					return IsSuperPanelError{Panel: d.panel.Name}
				}
				now := s.now()
				for _, rv := range group {
					i := d.find(model.EntityGene, rv.symbol)
					if i < 0 {
						d.entities = append(d.entities, model.Entity{
							Type:       model.EntityGene,
							Name:       rv.symbol,
							GeneSymbol: rv.symbol,
							TrackRecords: []model.TrackRecord{{
								IssueType: "Created", IssueDescription: "Added by review upload",
								User: actor.Username, CreatedAt: now,
							}},
						})
						i = len(d.entities) - 1
						d.log(model.EntityGene, rv.symbol, "%s was added to %s by review upload", rv.symbol, d.panel.Name)
					}
					applyEvaluation(&d.entities[i], rv.user, rv.in, d.next, now)
					d.log(model.EntityGene, rv.symbol, "%s reviewed %s: %s", rv.user, rv.symbol, reviewSummary(rv.in))
				}
				return nil
			})
			if err != nil {
				return err
			}
			sum.Panels++
			sum.Entities += len(group)
		}
		return nil
	})
	if err != nil {
		return ImportSummary{}, err
	}
	logging.Infof("imported %d reviews into %d panels", sum.Entities, sum.Panels)
	return sum, nil
}

func (s *Service) requireUsers(ctx context.Context, usernames []string) error {
	var missing []string
	for _, u := range cleanList(usernames) {
		if _, err := s.store.GetUser(ctx, u); err != nil {
			if !errors.Is(err, ErrNotFound) {
				return err
			}
			missing = append(missing, u)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return UsersDoNotExistError{Usernames: missing}
	}
	return nil
}

// ImportGenes upserts gene catalogue entries from JSON lines.
func (s *Service) ImportGenes(ctx context.Context, actor *model.User, r io.Reader) (n int, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "import_genes", start, err) }()
	if err := requireCurator(actor); err != nil {
		return 0, err
	}
	dec := json.NewDecoder(r)
	var genes []model.Gene
	for line := 1; ; line++ {
		var g model.Gene
		if err := dec.Decode(&g); err == io.EOF {
			break
		} else if err != nil {
			return 0, ErrTSVIncorrectFormat{Line: line, Reason: err.Error()}
		}
		g.Symbol = strings.TrimSpace(g.Symbol)
		if g.Symbol == "" {
			return 0, ErrTSVIncorrectFormat{Line: line, Reason: "gene_symbol is required"}
		}
		genes = append(genes, g)
	}
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx Repository) error {
		for i := range genes {
			if err := tx.UpsertGene(ctx, &genes[i]); err != nil {
				return fmt.Errorf("gene %s: %w", genes[i].Symbol, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	logging.Infof("imported %d genes", len(genes))
	return len(genes), nil
}

type tsvRecord struct {
	line  int
	cells []string
}

// readTSV reads tab separated rows, skipping blank lines and a header whose
// first cell matches header case-insensitively.
func readTSV(r io.Reader, header string) ([]tsvRecord, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	var out []tsvRecord
	for {
		cells, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, ErrTSVIncorrectFormat{Line: pe.Line, Reason: pe.Err.Error()}
			}
			return nil, fmt.Errorf("read upload: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if len(out) == 0 && len(cells) > 0 && strings.EqualFold(strings.TrimSpace(cells[0]), header) {
			continue
		}
		if len(cells) == 1 && strings.TrimSpace(cells[0]) == "" {
			continue
		}
		out = append(out, tsvRecord{line: line, cells: cells})
	}
	return out, nil
}

func splitList(s string) []string {
	return cleanList(strings.Split(s, ";"))
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "false", "no", "n", "0":
		return false, nil
	case "true", "yes", "y", "1":
		return true, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}

func parseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func parseRange(start, end string) (model.Range, error) {
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	if start == "" && end == "" {
		return model.Range{}, nil
	}
	a, err := strconv.ParseInt(start, 10, 64)
	if err != nil {
		return model.Range{}, fmt.Errorf("invalid start %q", start)
	}
	b, err := strconv.ParseInt(end, 10, 64)
	if err != nil {
		return model.Range{}, fmt.Errorf("invalid end %q", end)
	}
	return model.Range{Start: a, End: b}, nil
}
