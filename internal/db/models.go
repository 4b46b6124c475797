// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/genepanels/panelapp/internal/model"
	"github.com/uptrace/bun"
)

// UserModel maps the users table.
type UserModel struct {
	bun.BaseModel `bun:"table:users"`
	ID            int64     `bun:"id,pk,autoincrement"`
	Username      string    `bun:"username"`
	Email         string    `bun:"email"`
	FirstName     string    `bun:"first_name"`
	LastName      string    `bun:"last_name"`
	Affiliation   string    `bun:"affiliation"`
	Role          string    `bun:"role"`
	CreatedAt     time.Time `bun:"created_at"`
}

// GeneModel maps the genes table. List columns are stored as JSON text.
type GeneModel struct {
	bun.BaseModel `bun:"table:genes"`
	Symbol        string            `bun:"symbol,pk"`
	Name          string            `bun:"name"`
	HGNCID        string            `bun:"hgnc_id"`
	OMIMGene      []string          `bun:"omim_gene"`
	EnsemblGenes  map[string]string `bun:"ensembl_genes"`
	Active        bool              `bun:"active"`
}

// PanelModel maps the panels table. NameKey is the upper-cased name used for
// case-insensitive uniqueness.
type PanelModel struct {
	bun.BaseModel `bun:"table:panels"`
	ID            int64     `bun:"id,pk,autoincrement"`
	Name          string    `bun:"name"`
	NameKey       string    `bun:"name_key"`
	Status        string    `bun:"status"`
	CreatedAt     time.Time `bun:"created_at"`
	UpdatedAt     time.Time `bun:"updated_at"`
}

// SnapshotModel maps panel_snapshots.
type SnapshotModel struct {
	bun.BaseModel   `bun:"table:panel_snapshots"`
	ID              int64            `bun:"id,pk,autoincrement"`
	PanelID         int64            `bun:"panel_id"`
	Major           int              `bun:"major"`
	Minor           int              `bun:"minor"`
	Name            string           `bun:"name"`
	Description     string           `bun:"description"`
	DiseaseGroup    string           `bun:"disease_group"`
	DiseaseSubGroup string           `bun:"disease_sub_group"`
	Types           []string         `bun:"types"`
	VersionComment  string           `bun:"version_comment"`
	CreatedBy       string           `bun:"created_by"`
	CreatedAt       time.Time        `bun:"created_at"`
	Stats           model.PanelStats `bun:"stats"`
}

// ChildModel maps snapshot_children.
type ChildModel struct {
	bun.BaseModel `bun:"table:snapshot_children"`
	SnapshotID    int64  `bun:"snapshot_id,pk"`
	ChildPanelID  int64  `bun:"child_panel_id,pk"`
	ChildName     string `bun:"child_name"`
	Major         int    `bun:"major"`
	Minor         int    `bun:"minor"`
	Position      int    `bun:"position"`
}

// EntityModel maps snapshot_entities. The searchable fields are duplicated
// into columns; the full entity lives in Data as JSON.
type EntityModel struct {
	bun.BaseModel `bun:"table:snapshot_entities"`
	ID            int64  `bun:"id,pk,autoincrement"`
	SnapshotID    int64  `bun:"snapshot_id"`
	EntityKey     string `bun:"entity_key"`
	EntityType    string `bun:"entity_type"`
	Name          string `bun:"name"`
	GeneSymbol    string `bun:"gene_symbol"`
	Status        int    `bun:"status"`
	Position      int    `bun:"position"`
	Data          string `bun:"data"`
}

// HistoricalModel maps historical_snapshots.
type HistoricalModel struct {
	bun.BaseModel `bun:"table:historical_snapshots"`
	ID            int64     `bun:"id,pk,autoincrement"`
	PanelID       int64     `bun:"panel_id"`
	Major         int       `bun:"major"`
	Minor         int       `bun:"minor"`
	Reason        string    `bun:"reason"`
	CreatedAt     time.Time `bun:"created_at"`
	Data          string    `bun:"data"`
}

// ActivityModel maps the activities table.
type ActivityModel struct {
	bun.BaseModel `bun:"table:activities"`
	ID            string    `bun:"id,pk"`
	PanelID       int64     `bun:"panel_id"`
	PanelName     string    `bun:"panel_name"`
	Major         int       `bun:"major"`
	Minor         int       `bun:"minor"`
	Username      string    `bun:"username"`
	EntityType    string    `bun:"entity_type"`
	EntityName    string    `bun:"entity_name"`
	Text          string    `bun:"text"`
	CreatedAt     time.Time `bun:"created_at"`
}

func panelNameKey(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

func userModelToModel(u UserModel) model.User {
	return model.User{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Affiliation: u.Affiliation,
		Role:        model.Role(u.Role),
		CreatedAt:   u.CreatedAt,
	}
}

func userToModel(u model.User) UserModel {
	return UserModel{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Affiliation: u.Affiliation,
		Role:        string(u.Role),
		CreatedAt:   u.CreatedAt,
	}
}

func geneModelToModel(g GeneModel) model.Gene {
	return model.Gene{
		Symbol:       g.Symbol,
		Name:         g.Name,
		HGNCID:       g.HGNCID,
		OMIMGene:     g.OMIMGene,
		EnsemblGenes: g.EnsemblGenes,
		Active:       g.Active,
	}
}

func geneToModel(g model.Gene) GeneModel {
	return GeneModel{
		Symbol:       g.Symbol,
		Name:         g.Name,
		HGNCID:       g.HGNCID,
		OMIMGene:     g.OMIMGene,
		EnsemblGenes: g.EnsemblGenes,
		Active:       g.Active,
	}
}

func panelModelToModel(p PanelModel) model.Panel {
	return model.Panel{
		ID:        p.ID,
		Name:      p.Name,
		Status:    model.PanelStatus(p.Status),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func panelToModel(p model.Panel) PanelModel {
	return PanelModel{
		ID:        p.ID,
		Name:      p.Name,
		NameKey:   panelNameKey(p.Name),
		Status:    string(p.Status),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func snapshotModelToModel(s SnapshotModel, children []ChildModel) model.Snapshot {
	out := model.Snapshot{
		ID:              s.ID,
		PanelID:         s.PanelID,
		Version:         model.Version{Major: s.Major, Minor: s.Minor},
		Name:            s.Name,
		Description:     s.Description,
		DiseaseGroup:    s.DiseaseGroup,
		DiseaseSubGroup: s.DiseaseSubGroup,
		Types:           s.Types,
		VersionComment:  s.VersionComment,
		CreatedBy:       s.CreatedBy,
		CreatedAt:       s.CreatedAt,
		Stats:           s.Stats,
	}
	for _, c := range children {
		out.Children = append(out.Children, model.ChildRef{
			PanelID: c.ChildPanelID,
			Name:    c.ChildName,
			Version: model.Version{Major: c.Major, Minor: c.Minor},
		})
	}
	return out
}

func snapshotToModel(s model.Snapshot) (SnapshotModel, []ChildModel) {
	sm := SnapshotModel{
		ID:              s.ID,
		PanelID:         s.PanelID,
		Major:           s.Version.Major,
		Minor:           s.Version.Minor,
		Name:            s.Name,
		Description:     s.Description,
		DiseaseGroup:    s.DiseaseGroup,
		DiseaseSubGroup: s.DiseaseSubGroup,
		Types:           s.Types,
		VersionComment:  s.VersionComment,
		CreatedBy:       s.CreatedBy,
		CreatedAt:       s.CreatedAt,
		Stats:           s.Stats,
	}
	children := make([]ChildModel, 0, len(s.Children))
	for i, c := range s.Children {
		children = append(children, ChildModel{
			SnapshotID:   s.ID,
			ChildPanelID: c.PanelID,
			ChildName:    c.Name,
			Major:        c.Version.Major,
			Minor:        c.Version.Minor,
			Position:     i,
		})
	}
	return sm, children
}

func entityModelToModel(e EntityModel) (model.Entity, error) {
	var out model.Entity
	if err := json.Unmarshal([]byte(e.Data), &out); err != nil {
		return model.Entity{}, err
	}
	return out, nil
}

func entityToModel(snapshotID int64, position int, e model.Entity) (EntityModel, error) {
	e.SourcePanel = nil
	data, err := json.Marshal(e)
	if err != nil {
		return EntityModel{}, err
	}
	return EntityModel{
		SnapshotID: snapshotID,
		EntityKey:  e.Key(),
		EntityType: string(e.Type),
		Name:       e.Name,
		GeneSymbol: e.GeneSymbol,
		Status:     int(e.Status),
		Position:   position,
		Data:       string(data),
	}, nil
}

func historicalModelToModel(h HistoricalModel) model.HistoricalSnapshot {
	return model.HistoricalSnapshot{
		ID:        h.ID,
		PanelID:   h.PanelID,
		Version:   model.Version{Major: h.Major, Minor: h.Minor},
		Reason:    h.Reason,
		CreatedAt: h.CreatedAt,
		Data:      json.RawMessage(h.Data),
	}
}

func historicalToModel(h model.HistoricalSnapshot) HistoricalModel {
	return HistoricalModel{
		ID:        h.ID,
		PanelID:   h.PanelID,
		Major:     h.Version.Major,
		Minor:     h.Version.Minor,
		Reason:    h.Reason,
		CreatedAt: h.CreatedAt,
		Data:      string(h.Data),
	}
}

func activityModelToModel(a ActivityModel) model.Activity {
	return model.Activity{
		ID:         a.ID,
		PanelID:    a.PanelID,
		PanelName:  a.PanelName,
		Version:    model.Version{Major: a.Major, Minor: a.Minor},
		User:       a.Username,
		EntityType: model.EntityType(a.EntityType),
		EntityName: a.EntityName,
		Text:       a.Text,
		CreatedAt:  a.CreatedAt,
	}
}

func activityToModel(a model.Activity) ActivityModel {
	return ActivityModel{
		ID:         a.ID,
		PanelID:    a.PanelID,
		PanelName:  a.PanelName,
		Major:      a.Version.Major,
		Minor:      a.Version.Minor,
		Username:   a.User,
		EntityType: string(a.EntityType),
		EntityName: a.EntityName,
		Text:       a.Text,
		CreatedAt:  a.CreatedAt,
	}
}
