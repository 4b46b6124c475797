// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.

package api

import (
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/genepanels/panelapp/internal/core"
	"github.com/genepanels/panelapp/internal/exports"
	"github.com/genepanels/panelapp/internal/model"
)

type exportRequest struct {
	Kind       string    `json:"kind"`
	PanelID    int64     `json:"panel_id"`
	Version    string    `json:"version"`
	EntityType string    `json:"entity_type"`
	Since      time.Time `json:"since"`
	Until      time.Time `json:"until"`
}

func (req exportRequest) toReport() (core.ReportRequest, error) {
	kind, err := core.ParseReportKind(req.Kind)
	if err != nil {
		return core.ReportRequest{}, err
	}
	out := core.ReportRequest{Kind: kind, PanelID: req.PanelID, Since: req.Since, Until: req.Until}
	if req.Version != "" {
		v, err := model.ParseVersion(req.Version)
		if err != nil {
			return core.ReportRequest{}, badRequest("%v", err)
		}
		out.Version = &v
	}
	if req.EntityType != "" {
		t, err := model.ParseEntityType(req.EntityType)
		if err != nil {
			return core.ReportRequest{}, badRequest("%v", err)
		}
		out.EntityType = t
	}
	return out, nil
}

func (s *Server) exportsDisabled(w http.ResponseWriter) bool {
	if s.exports == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"detail": "exports are not enabled on this server"})
		return true
	}
	return false
}

func (s *Server) handleCreateExport(w http.ResponseWriter, r *http.Request) {
	if s.exportsDisabled(w) {
		return
	}
	user, _ := s.viewer(r)
	var req exportRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	report, err := req.toReport()
	if err != nil {
		writeError(w, err)
		return
	}
	job, err := s.exports.Enqueue(user, report)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", path.Join("/api/v1/exports", job.ID)+"/")
	writeJSON(w, http.StatusAccepted, job)
}

// ownJob returns the job when the caller requested it or is a curator.
func (s *Server) ownJob(r *http.Request) (exports.Job, error) {
	viewer, err := s.viewer(r)
	if err != nil {
		return exports.Job{}, err
	}
	id := r.PathValue("id")
	job, ok := s.exports.Get(id)
	if !ok || (viewer == nil && job.RequestedBy != "") ||
		(viewer != nil && !viewer.IsCurator() && job.RequestedBy != viewer.Username) {
		return exports.Job{}, core.NotFoundError{Kind: "export", Key: id}
	}
	return job, nil
}

func (s *Server) handleGetExport(w http.ResponseWriter, r *http.Request) {
	if s.exportsDisabled(w) {
		return
	}
	job, err := s.ownJob(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleDownloadExport(w http.ResponseWriter, r *http.Request) {
	if s.exportsDisabled(w) {
		return
	}
	job, err := s.ownJob(r)
	if err != nil {
		writeError(w, err)
		return
	}
	info, rc, err := s.exports.Open(r.Context(), job.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	defer rc.Close()
	if info.ContentType != "" {
		w.Header().Set("Content-Type", info.ContentType)
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(job.Key)))
	_, _ = io.Copy(w, rc)
}
