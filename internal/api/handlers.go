// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.

package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/genepanels/panelapp/internal/core"
	"github.com/genepanels/panelapp/internal/model"
)

type childJSON struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

type panelJSON struct {
	ID              int64             `json:"id"`
	Name            string            `json:"name"`
	DiseaseGroup    string            `json:"disease_group"`
	DiseaseSubGroup string            `json:"disease_sub_group"`
	Description     string            `json:"description,omitempty"`
	Status          model.PanelStatus `json:"status"`
	Version         string            `json:"version"`
	VersionCreated  time.Time         `json:"version_created"`
	Types           []string          `json:"types"`
	Stats           model.PanelStats  `json:"stats"`
	ChildPanels     []childJSON       `json:"child_panels,omitempty"`
}

type panelDetailJSON struct {
	panelJSON
	Genes   []entityJSON `json:"genes"`
	Regions []entityJSON `json:"regions"`
	STRs    []entityJSON `json:"strs"`
}

// entityJSON renders the confidence level as a string, the way panel
// downloads and older clients expect it.
type entityJSON struct {
	model.Entity
	ConfidenceLevel string `json:"confidence_level"`
}

type locationJSON struct {
	Panel   panelRef   `json:"panel"`
	Version string     `json:"version"`
	Entity  entityJSON `json:"entity"`
}

type panelRef struct {
	ID     int64             `json:"id"`
	Name   string            `json:"name"`
	Status model.PanelStatus `json:"status"`
}

type versionJSON struct {
	Version   string    `json:"version"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created"`
	Live      bool      `json:"live"`
}

type activityJSON struct {
	ID         string           `json:"id"`
	PanelID    int64            `json:"panel_id"`
	PanelName  string           `json:"panel_name"`
	Version    string           `json:"panel_version"`
	User       string           `json:"user_name"`
	EntityType model.EntityType `json:"entity_type,omitempty"`
	EntityName string           `json:"entity_name,omitempty"`
	Text       string           `json:"text"`
	Created    time.Time        `json:"created"`
}

func toPanelJSON(v model.PanelView) panelJSON {
	out := panelJSON{
		ID:              v.Panel.ID,
		Name:            v.Panel.Name,
		DiseaseGroup:    v.Snapshot.DiseaseGroup,
		DiseaseSubGroup: v.Snapshot.DiseaseSubGroup,
		Description:     v.Snapshot.Description,
		Status:          v.Panel.Status,
		Version:         v.Snapshot.Version.String(),
		VersionCreated:  v.Snapshot.CreatedAt,
		Types:           v.Snapshot.Types,
		Stats:           v.Snapshot.Stats,
	}
	if out.Types == nil {
		out.Types = []string{}
	}
	for _, c := range v.Snapshot.Children {
		out.ChildPanels = append(out.ChildPanels, childJSON{ID: c.PanelID, Name: c.Name, Version: c.Version.String()})
	}
	return out
}

func toEntityJSON(e model.Entity) entityJSON {
	return entityJSON{Entity: e, ConfidenceLevel: strconv.Itoa(int(e.Status))}
}

func toActivityJSON(a model.Activity) activityJSON {
	return activityJSON{
		ID: a.ID, PanelID: a.PanelID, PanelName: a.PanelName, Version: a.Version.String(),
		User: a.User, EntityType: a.EntityType, EntityName: a.EntityName, Text: a.Text, Created: a.CreatedAt,
	}
}

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func panelID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid panel id %q", r.PathValue("id"))
	}
	return id, nil
}

// entityType maps the plural URL segment to a type. Unknown segments are a
// missing resource, not a bad request.
func entityType(r *http.Request) (model.EntityType, error) {
	t, err := model.ParseEntityType(r.PathValue("type"))
	if err != nil {
		return "", core.NotFoundError{Kind: "endpoint", Key: r.URL.Path}
	}
	return t, nil
}

func queryVersion(r *http.Request) (*model.Version, error) {
	v := r.URL.Query().Get("version")
	if v == "" {
		return nil, nil
	}
	parsed, err := model.ParseVersion(v)
	if err != nil {
		return nil, badRequest("%v", err)
	}
	return &parsed, nil
}

// queryTime accepts RFC 3339 timestamps or plain dates.
func queryTime(r *http.Request, key string) (time.Time, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, badRequest("invalid %s %q", key, v)
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && err != io.EOF {
		return badRequest("invalid JSON body: %v", err)
	}
	return nil
}

func (s *Server) writePage(w http.ResponseWriter, r *http.Request, p page, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleListPanels(w http.ResponseWriter, r *http.Request) {
	viewer, err := s.viewer(r)
	if err != nil {
		writeError(w, err)
		return
	}
	q := r.URL.Query()
	filter := model.PanelFilter{Name: q.Get("name"), Type: q.Get("type")}
	if v := q.Get("exclude_superpanels"); v != "" {
		exclude, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, badRequest("invalid exclude_superpanels %q", v))
			return
		}
		filter.ExcludeSuper = exclude
	}
	for _, raw := range q["status"] {
		for _, part := range strings.Split(raw, ",") {
			st, err := model.ParsePanelStatus(part)
			if err != nil {
				writeError(w, badRequest("%v", err))
				return
			}
			filter.Statuses = append(filter.Statuses, st)
		}
	}
	if retired, _ := strconv.ParseBool(q.Get("retired")); retired && len(filter.Statuses) == 0 {
		filter.Statuses = []model.PanelStatus{model.PanelPublic, model.PanelPromoted, model.PanelRetired}
		if viewer != nil {
			filter.Statuses = append(filter.Statuses, model.PanelInternal)
		}
	}
	views, err := s.svc.ListPanels(r.Context(), viewer, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]panelJSON, 0, len(views))
	for _, v := range views {
		out = append(out, toPanelJSON(v))
	}
	p, err := paginate(s, r, out)
	s.writePage(w, r, p, err)
}

func (s *Server) handleGetPanel(w http.ResponseWriter, r *http.Request) {
	viewer, err := s.viewer(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := panelID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	version, err := queryVersion(r)
	if err != nil {
		writeError(w, err)
		return
	}
	view, err := s.svc.GetPanel(r.Context(), viewer, id, version)
	if err != nil {
		writeError(w, err)
		return
	}
	out := panelDetailJSON{panelJSON: toPanelJSON(*view), Genes: []entityJSON{}, Regions: []entityJSON{}, STRs: []entityJSON{}}
	for _, e := range view.Entities {
		switch e.Type {
		case model.EntityRegion:
			out.Regions = append(out.Regions, toEntityJSON(e))
		case model.EntitySTR:
			out.STRs = append(out.STRs, toEntityJSON(e))
		default:
			out.Genes = append(out.Genes, toEntityJSON(e))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	viewer, err := s.viewer(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := panelID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	t, err := entityType(r)
	if err != nil {
		writeError(w, err)
		return
	}
	version, err := queryVersion(r)
	if err != nil {
		writeError(w, err)
		return
	}
	colour := ""
	if v := r.URL.Query().Get("confidence_level"); v != "" {
		lvl, err := model.ParseConfidenceLevel(v)
		if err != nil {
			writeError(w, badRequest("%v", err))
			return
		}
		colour = lvl.Colour()
	}
	view, err := s.svc.GetPanel(r.Context(), viewer, id, version)
	if err != nil {
		writeError(w, err)
		return
	}
	out := []entityJSON{}
	for _, e := range view.Entities {
		if e.Type != t || (colour != "" && e.Status.Colour() != colour) {
			continue
		}
		out = append(out, toEntityJSON(e))
	}
	p, err := paginate(s, r, out)
	s.writePage(w, r, p, err)
}

func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	viewer, err := s.viewer(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := panelID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	t, err := entityType(r)
	if err != nil {
		writeError(w, err)
		return
	}
	version, err := queryVersion(r)
	if err != nil {
		writeError(w, err)
		return
	}
	e, err := s.svc.GetEntity(r.Context(), viewer, id, t, r.PathValue("name"), version)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntityJSON(*e))
}

func (s *Server) handleListEvaluations(w http.ResponseWriter, r *http.Request) {
	viewer, err := s.viewer(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := panelID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	t, err := entityType(r)
	if err != nil {
		writeError(w, err)
		return
	}
	evals, summary, err := s.svc.Evaluations(r.Context(), viewer, id, t, r.PathValue("name"))
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := paginate(s, r, evals)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		page
		Summary core.RatingSummary `json:"summary"`
	}{p, summary})
}

type evaluationRequest struct {
	Rating              string   `json:"rating"`
	ModeOfInheritance   string   `json:"mode_of_inheritance"`
	ModeOfPathogenicity string   `json:"mode_of_pathogenicity"`
	Publications        []string `json:"publications"`
	Phenotypes          []string `json:"phenotypes"`
	CurrentDiagnostic   bool     `json:"current_diagnostic"`
	ClinicallyRelevant  bool     `json:"clinically_relevant"`
	Comment             string   `json:"comment"`
}

func (s *Server) handleSubmitEvaluation(w http.ResponseWriter, r *http.Request) {
	user, _ := s.viewer(r)
	id, err := panelID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	t, err := entityType(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req evaluationRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	in := core.EvaluationInput{
		ModeOfInheritance:   req.ModeOfInheritance,
		ModeOfPathogenicity: req.ModeOfPathogenicity,
		Publications:        req.Publications,
		Phenotypes:          req.Phenotypes,
		CurrentDiagnostic:   req.CurrentDiagnostic,
		ClinicallyRelevant:  req.ClinicallyRelevant,
		Comment:             req.Comment,
	}
	if req.Rating != "" {
		if in.Rating, err = model.ParseRating(req.Rating); err != nil {
			writeError(w, badRequest("%v", err))
			return
		}
	}
	name := r.PathValue("name")
	view, err := s.svc.SubmitEvaluation(r.Context(), user, id, t, name, in)
	if err != nil {
		writeError(w, err)
		return
	}
	key := model.EntityKey(t, name)
	for _, e := range view.Entities {
		if e.Key() == key {
			ev, _ := e.EvaluationBy(user.Username)
			writeJSON(w, http.StatusCreated, ev)
			return
		}
	}
	writeError(w, core.NotFoundError{Kind: string(t), Key: name})
}

func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	viewer, err := s.viewer(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := panelID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	versions, err := s.svc.PanelVersions(r.Context(), viewer, id)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]versionJSON, 0, len(versions))
	for _, v := range versions {
		out = append(out, versionJSON{Version: v.Version.String(), Comment: v.Comment, CreatedAt: v.CreatedAt, Live: v.Live})
	}
	p, err := paginate(s, r, out)
	s.writePage(w, r, p, err)
}

type incrementRequest struct {
	Major   bool   `json:"major"`
	Comment string `json:"comment"`
}

func (s *Server) handleIncrementVersion(w http.ResponseWriter, r *http.Request) {
	user, _ := s.viewer(r)
	id, err := panelID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req incrementRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	view, err := s.svc.IncrementVersion(r.Context(), user, id, req.Major, req.Comment)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPanelJSON(*view))
}

func (s *Server) listActivities(w http.ResponseWriter, r *http.Request, filter model.ActivityFilter) {
	viewer, err := s.viewer(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if filter.Since, err = queryTime(r, "since"); err != nil {
		writeError(w, err)
		return
	}
	if filter.Until, err = queryTime(r, "until"); err != nil {
		writeError(w, err)
		return
	}
	filter.User = r.URL.Query().Get("user")
	acts, err := s.svc.Activities(r.Context(), viewer, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]activityJSON, 0, len(acts))
	for _, a := range acts {
		out = append(out, toActivityJSON(a))
	}
	p, err := paginate(s, r, out)
	s.writePage(w, r, p, err)
}

func (s *Server) handlePanelActivities(w http.ResponseWriter, r *http.Request) {
	id, err := panelID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	s.listActivities(w, r, model.ActivityFilter{PanelID: id})
}

func (s *Server) handleActivities(w http.ResponseWriter, r *http.Request) {
	var filter model.ActivityFilter
	if v := r.URL.Query().Get("panel"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, badRequest("invalid panel %q", v))
			return
		}
		filter.PanelID = id
	}
	s.listActivities(w, r, filter)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	viewer, err := s.viewer(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := panelID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	version, err := queryVersion(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var buf bytes.Buffer
	name, err := s.svc.WriteReport(r.Context(), viewer, &buf, core.ReportRequest{Kind: core.ReportPanel, PanelID: id, Version: version})
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/tab-separated-values; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleGene(w http.ResponseWriter, r *http.Request) {
	viewer, err := s.viewer(r)
	if err != nil {
		writeError(w, err)
		return
	}
	symbol := r.PathValue("symbol")
	hits, err := s.svc.FindEntity(r.Context(), viewer, model.EntityGene, symbol)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(hits) == 0 {
		if _, err := s.svc.GetGene(r.Context(), symbol); err != nil {
			writeError(w, err)
			return
		}
	}
	out := make([]locationJSON, 0, len(hits))
	for _, h := range hits {
		out = append(out, locationJSON{
			Panel:   panelRef{ID: h.Panel.ID, Name: h.Panel.Name, Status: h.Panel.Status},
			Version: h.Version.String(),
			Entity:  toEntityJSON(h.Entity),
		})
	}
	p, err := paginate(s, r, out)
	s.writePage(w, r, p, err)
}
