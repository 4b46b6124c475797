// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.

package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/genepanels/panelapp/internal/model"
)

// PanelInput holds the header fields of a panel.
type PanelInput struct {
	Name            string
	Description     string
	DiseaseGroup    string
	DiseaseSubGroup string
	Types           []string
	Status          model.PanelStatus
}

// PanelInfoPatch changes header fields; nil fields are left alone.
type PanelInfoPatch struct {
	Name            *string
	Description     *string
	DiseaseGroup    *string
	DiseaseSubGroup *string
	Types           []string
}

// CreatePanel creates a panel at version 0.0. New panels are internal unless
// another status is requested.
func (s *Service) CreatePanel(ctx context.Context, actor *model.User, in PanelInput) (view *model.PanelView, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "create_panel", start, err) }()
	if err := requireCurator(actor); err != nil {
		return nil, err
	}
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx Repository) error {
		var txErr error
		view, txErr = s.createPanelTx(ctx, tx, actor, in)
		return txErr
	})
	return view, err
}

func (s *Service) createPanelTx(ctx context.Context, tx Repository, actor *model.User, in PanelInput) (*model.PanelView, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, invalid("panel name is required")
	}
	if in.Status == "" {
		in.Status = model.PanelInternal
	}
	if _, err := model.ParsePanelStatus(string(in.Status)); err != nil {
		return nil, invalid("%v", err)
	}
	now := s.now()
	p := &model.Panel{Name: in.Name, Status: in.Status, CreatedAt: now, UpdatedAt: now}
	if err := tx.CreatePanel(ctx, p); err != nil {
		return nil, fmt.Errorf("create panel %q: %w", in.Name, err)
	}
	snap := &model.Snapshot{
		PanelID:         p.ID,
		Name:            p.Name,
		Description:     in.Description,
		DiseaseGroup:    in.DiseaseGroup,
		DiseaseSubGroup: in.DiseaseSubGroup,
		Types:           cleanList(in.Types),
		VersionComment:  "Panel created",
		CreatedBy:       actor.Username,
		CreatedAt:       now,
	}
	if err := tx.InsertSnapshot(ctx, snap); err != nil {
		return nil, err
	}
	if err := tx.InsertActivity(ctx, s.activity(p, snap.Version, actor, "", "", "Panel created")); err != nil {
		return nil, err
	}
	return &model.PanelView{Panel: *p, Snapshot: *snap}, nil
}

// UpdatePanelInfo edits the header and creates a minor version.
func (s *Service) UpdatePanelInfo(ctx context.Context, actor *model.User, panelID int64, patch PanelInfoPatch) (*model.PanelView, error) {
	if err := requireCurator(actor); err != nil {
		return nil, err
	}
	return s.mutate(ctx, actor, panelID, mutation{op: "update_panel", comment: "Panel information updated"}, func(_ context.Context, _ Repository, d *draft) error {
		var changed []string
		renamed := false
		if patch.Name != nil {
			name := strings.TrimSpace(*patch.Name)
			if name == "" {
				return invalid("panel name is required")
			}
			if name != d.snapshot.Name {
				d.log("", "", "Panel name changed from %s to %s", d.snapshot.Name, name)
				d.snapshot.Name = name
				renamed = true
			}
		}
		setString := func(field string, dst *string, v *string) {
			if v != nil && *v != *dst {
				*dst = *v
				changed = append(changed, field)
			}
		}
		setString("description", &d.snapshot.Description, patch.Description)
		setString("disease group", &d.snapshot.DiseaseGroup, patch.DiseaseGroup)
		setString("disease sub group", &d.snapshot.DiseaseSubGroup, patch.DiseaseSubGroup)
		if patch.Types != nil {
			if types := cleanList(patch.Types); !slices.Equal(types, d.snapshot.Types) {
				d.snapshot.Types = types
				changed = append(changed, "types")
			}
		}
		if len(changed) == 0 && !renamed {
			return invalid("no changes for panel %s", d.snapshot.Name)
		}
		if len(changed) > 0 {
			d.log("", "", "Panel %s updated", strings.Join(changed, ", "))
		}
		return nil
	})
}

// SetPanelStatus changes the publication status. Status is not versioned.
func (s *Service) SetPanelStatus(ctx context.Context, actor *model.User, panelID int64, status model.PanelStatus) (p *model.Panel, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "set_panel_status", start, err) }()
	if err := requireCurator(actor); err != nil {
		return nil, err
	}
	if _, err := model.ParsePanelStatus(string(status)); err != nil {
		return nil, invalid("%v", err)
	}
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx Repository) error {
		var txErr error
		p, txErr = tx.GetPanel(ctx, panelID)
		if txErr != nil {
			return txErr
		}
		if p.Status == status {
			return nil
		}
		live, txErr := tx.GetLiveSnapshot(ctx, panelID)
		if txErr != nil {
			return txErr
		}
		old := p.Status
		p.Status = status
		p.UpdatedAt = s.now()
		if txErr := tx.UpdatePanel(ctx, p); txErr != nil {
			return txErr
		}
		return tx.InsertActivity(ctx, s.activity(p, live.Version, actor, "", "", fmt.Sprintf("Panel status changed from %s to %s", old, status)))
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetPanel returns the live view of a panel, or an archived version when
// version is non-nil and differs from the live one.
func (s *Service) GetPanel(ctx context.Context, viewer *model.User, panelID int64, version *model.Version) (*model.PanelView, error) {
	p, err := s.store.GetPanel(ctx, panelID)
	if err != nil {
		return nil, err
	}
	if !canView(viewer, p) {
		return nil, notFound("panel", panelID)
	}
	live, err := s.store.GetLiveSnapshot(ctx, panelID)
	if err != nil {
		return nil, err
	}
	if version == nil || *version == live.Version {
		return s.viewOf(ctx, s.store, *p, *live)
	}
	if live.Version.Less(*version) {
		return nil, notFound("version", fmt.Sprintf("%s of panel %s", version, p.Name))
	}
	view, err := historicalView(ctx, s.store, panelID, *version)
	if err != nil {
		return nil, err
	}
	// Status is not versioned; report the current one.
	view.Panel.Status = p.Status
	return view, nil
}

// GetPanelByName resolves a panel by name (case-insensitive) or numeric ID.
func (s *Service) GetPanelByName(ctx context.Context, viewer *model.User, ref string) (*model.Panel, error) {
	ref = strings.TrimSpace(ref)
	var p *model.Panel
	var err error
	if id, convErr := parseID(ref); convErr == nil {
		p, err = s.store.GetPanel(ctx, id)
		if errors.Is(err, ErrNotFound) {
			p, err = s.store.GetPanelByName(ctx, ref)
		}
	} else {
		p, err = s.store.GetPanelByName(ctx, ref)
	}
	if err != nil {
		return nil, err
	}
	if !canView(viewer, p) {
		return nil, notFound("panel", ref)
	}
	return p, nil
}

// ListPanels returns matching panels with their live snapshot headers.
// Without explicit statuses anonymous viewers get public and promoted panels
// and signed-in users additionally internal ones; retired panels are only
// listed when asked for.
func (s *Service) ListPanels(ctx context.Context, viewer *model.User, filter model.PanelFilter) ([]model.PanelView, error) {
	if len(filter.Statuses) == 0 {
		filter.Statuses = []model.PanelStatus{model.PanelPublic, model.PanelPromoted}
		if viewer != nil {
			filter.Statuses = append(filter.Statuses, model.PanelInternal)
		}
	} else if viewer == nil {
		var visible []model.PanelStatus
		for _, st := range filter.Statuses {
			if st.IsVisible() {
				visible = append(visible, st)
			}
		}
		if len(visible) == 0 {
			return nil, nil
		}
		filter.Statuses = visible
	}
	panels, err := s.store.ListPanels(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]model.PanelView, 0, len(panels))
	for _, p := range panels {
		live, err := s.store.GetLiveSnapshot(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		if filter.Type != "" && !containsFold(live.Types, filter.Type) {
			continue
		}
		if filter.ExcludeSuper && live.IsSuper() {
			continue
		}
		out = append(out, model.PanelView{Panel: p, Snapshot: *live})
	}
	return out, nil
}

// VersionInfo describes one version of a panel.
type VersionInfo struct {
	Version   model.Version `json:"version"`
	Comment   string        `json:"comment,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	Live      bool          `json:"live"`
}

// PanelVersions lists every version of a panel, newest first. Archived
// versions carry the comment of the change that superseded them.
func (s *Service) PanelVersions(ctx context.Context, viewer *model.User, panelID int64) ([]VersionInfo, error) {
	p, err := s.store.GetPanel(ctx, panelID)
	if err != nil {
		return nil, err
	}
	if !canView(viewer, p) {
		return nil, notFound("panel", panelID)
	}
	live, err := s.store.GetLiveSnapshot(ctx, panelID)
	if err != nil {
		return nil, err
	}
	hist, err := s.store.ListHistoricalSnapshots(ctx, panelID)
	if err != nil {
		return nil, err
	}
	out := []VersionInfo{{Version: live.Version, Comment: live.VersionComment, CreatedAt: live.CreatedAt, Live: true}}
	for _, h := range hist {
		out = append(out, VersionInfo{Version: h.Version, Comment: h.Reason, CreatedAt: h.CreatedAt})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[j].Version.Less(out[i].Version) })
	return out, nil
}

// FindEntity searches a gene, region or STR across live panels visible to
// the viewer.
func (s *Service) FindEntity(ctx context.Context, viewer *model.User, t model.EntityType, name string) ([]model.EntityLocation, error) {
	hits, err := s.store.FindEntities(ctx, t, strings.TrimSpace(name))
	if err != nil {
		return nil, err
	}
	out := hits[:0]
	for _, h := range hits {
		if canView(viewer, &h.Panel) {
			out = append(out, h)
		}
	}
	return out, nil
}

// Activities lists the activity feed. Anonymous viewers only see activity of
// visible panels.
func (s *Service) Activities(ctx context.Context, viewer *model.User, filter model.ActivityFilter) ([]model.Activity, error) {
	if filter.PanelID != 0 {
		p, err := s.store.GetPanel(ctx, filter.PanelID)
		if err != nil {
			return nil, err
		}
		if !canView(viewer, p) {
			return nil, notFound("panel", filter.PanelID)
		}
	}
	if viewer == nil && filter.PanelID == 0 {
		// Restrict in the query so Limit counts visible rows only.
		panels, err := s.store.ListPanels(ctx, model.PanelFilter{Statuses: []model.PanelStatus{model.PanelPublic, model.PanelPromoted}})
		if err != nil {
			return nil, err
		}
		filter.PanelIDs = make([]int64, 0, len(panels))
		for _, p := range panels {
			filter.PanelIDs = append(filter.PanelIDs, p.ID)
		}
	}
	return s.store.ListActivities(ctx, filter)
}

func containsFold(list []string, want string) bool {
	for _, v := range list {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(want)) {
			return true
		}
	}
	return false
}

// cleanList trims entries and drops empty ones and duplicates.
func cleanList(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func parseID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
