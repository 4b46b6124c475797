// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.

package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/genepanels/panelapp/internal/model"
)

// SetChildPanels turns a panel into a superpanel over the given children, or
// back into a plain panel when childIDs is empty. Each child is pinned at its
// current version.
func (s *Service) SetChildPanels(ctx context.Context, actor *model.User, panelID int64, childIDs []int64) (*model.PanelView, error) {
	if err := requireCurator(actor); err != nil {
		return nil, err
	}
	return s.mutate(ctx, actor, panelID, mutation{op: "set_children", comment: "Changed child panels"}, func(ctx context.Context, tx Repository, d *draft) error {
		if len(childIDs) > 0 && len(d.entities) > 0 {
			return invalid("panel %s has %d entities and cannot become a superpanel", d.panel.Name, len(d.entities))
		}
		if len(childIDs) > 0 {
			parents, err := tx.ListParentPanelIDs(ctx, panelID)
			if err != nil {
				return err
			}
			if len(parents) > 0 {
				return invalid("panel %s is a child of another superpanel and cannot have children", d.panel.Name)
			}
		}
		seen := make(map[int64]bool, len(childIDs))
		refs := make([]model.ChildRef, 0, len(childIDs))
		names := make([]string, 0, len(childIDs))
		for _, id := range childIDs {
			if id == panelID {
				return invalid("panel %s cannot contain itself", d.panel.Name)
			}
			if seen[id] {
				continue
			}
			seen[id] = true
			child, err := tx.GetPanel(ctx, id)
			if err != nil {
				return err
			}
			live, err := tx.GetLiveSnapshot(ctx, id)
			if err != nil {
				return err
			}
			if live.IsSuper() {
				return invalid("panel %s is a superpanel and cannot be a child", child.Name)
			}
			refs = append(refs, model.ChildRef{PanelID: child.ID, Name: child.Name, Version: live.Version})
			names = append(names, child.Name)
		}
		d.snapshot.Children = refs
		if len(refs) == 0 {
			d.log("", "", "Removed all child panels")
		} else {
			d.log("", "", "Set child panels: %s", strings.Join(names, ", "))
		}
		return nil
	})
}

// viewOf assembles the full view of a live snapshot. For superpanels the
// entities are gathered from the pinned child versions.
func (s *Service) viewOf(ctx context.Context, tx Repository, p model.Panel, snap model.Snapshot) (*model.PanelView, error) {
	view := &model.PanelView{Panel: p, Snapshot: snap}
	var err error
	if snap.IsSuper() {
		view.Entities, err = s.childEntities(ctx, tx, snap.Children)
	} else {
		view.Entities, err = tx.ListEntities(ctx, snap.ID)
	}
	if err != nil {
		return nil, err
	}
	return view, nil
}

// childEntities returns the union of the children's entities at their pinned
// versions, each annotated with the panel it came from.
func (s *Service) childEntities(ctx context.Context, tx Repository, children []model.ChildRef) ([]model.Entity, error) {
	var out []model.Entity
	for _, ref := range children {
		entities, err := entitiesAt(ctx, tx, ref.PanelID, ref.Version)
		if err != nil {
			return nil, fmt.Errorf("child panel %s v%s: %w", ref.Name, ref.Version, err)
		}
		for _, e := range entities {
			e := e.Clone()
			src := ref
			e.SourcePanel = &src
			out = append(out, e)
		}
	}
	return out, nil
}

// entitiesAt loads a plain panel's entities at a version, from the live rows
// when the version is current and from the archive otherwise.
func entitiesAt(ctx context.Context, tx Repository, panelID int64, v model.Version) ([]model.Entity, error) {
	live, err := tx.GetLiveSnapshot(ctx, panelID)
	if err != nil {
		return nil, err
	}
	if live.Version == v {
		if live.IsSuper() {
			return nil, nil
		}
		return tx.ListEntities(ctx, live.ID)
	}
	view, err := historicalView(ctx, tx, panelID, v)
	if err != nil {
		return nil, err
	}
	return view.Entities, nil
}

func historicalView(ctx context.Context, tx Repository, panelID int64, v model.Version) (*model.PanelView, error) {
	h, err := tx.GetHistoricalSnapshot(ctx, panelID, v)
	if err != nil {
		return nil, err
	}
	var view model.PanelView
	if err := json.Unmarshal(h.Data, &view); err != nil {
		return nil, fmt.Errorf("decode archived version %s: %w", v, err)
	}
	return &view, nil
}

// AggregatedEntity is one distinct entity of a superpanel together with
// every child panel that contains it.
type AggregatedEntity struct {
	Entity model.Entity     `json:"entity"`
	Panels []model.ChildRef `json:"panels"`
}

// AggregateEntities merges entities sharing a Key. The merged entity keeps
// the highest saved status found among the copies.
func AggregateEntities(entities []model.Entity) []AggregatedEntity {
	index := make(map[string]int, len(entities))
	var out []AggregatedEntity
	for _, e := range entities {
		k := e.Key()
		i, ok := index[k]
		if !ok {
			index[k] = len(out)
			merged := e.Clone()
			merged.SourcePanel = nil
			out = append(out, AggregatedEntity{Entity: merged})
			i = len(out) - 1
		} else if e.Status > out[i].Entity.Status {
			out[i].Entity.Status = e.Status
		}
		if e.SourcePanel != nil {
			out[i].Panels = append(out[i].Panels, *e.SourcePanel)
		}
	}
	return out
}
