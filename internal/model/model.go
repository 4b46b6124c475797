// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.

// package model defines the core data structures for PanelApp.
// These types are shared by the store, the service layer and the API.
package model // import "github.com/genepanels/panelapp/internal/model"

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// PanelStatus is the publication state of a panel. It lives on the panel
// itself, not on a snapshot, so changing it does not create a new version.
type PanelStatus string

const (
	PanelInternal PanelStatus = "internal"
	PanelPublic   PanelStatus = "public"
	PanelPromoted PanelStatus = "promoted"
	PanelRetired  PanelStatus = "retired"
)

// ParsePanelStatus validates a user supplied status string.
func ParsePanelStatus(s string) (PanelStatus, error) {
	switch st := PanelStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case PanelInternal, PanelPublic, PanelPromoted, PanelRetired:
		return st, nil
	}
	return "", fmt.Errorf("unknown panel status %q", s)
}

// IsVisible reports whether anonymous users may see a panel in this state.
func (s PanelStatus) IsVisible() bool {
	return s == PanelPublic || s == PanelPromoted
}

// Panel is the stable identity of a panel across all of its versions.
type Panel struct {
	ID        int64       `json:"id"`
	Name      string      `json:"name"`
	Status    PanelStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// ChildRef pins a child panel at a specific version inside a superpanel.
type ChildRef struct {
	PanelID int64   `json:"panel_id"`
	Name    string  `json:"name"`
	Version Version `json:"version"`
}

// Snapshot is the immutable content of a panel at one version.
type Snapshot struct {
	ID              int64      `json:"id"`
	PanelID         int64      `json:"panel_id"`
	Version         Version    `json:"version"`
	Name            string     `json:"name"`
	Description     string     `json:"description,omitempty"`
	DiseaseGroup    string     `json:"disease_group,omitempty"`
	DiseaseSubGroup string     `json:"disease_sub_group,omitempty"`
	Types           []string   `json:"types,omitempty"`
	VersionComment  string     `json:"version_comment,omitempty"`
	CreatedBy       string     `json:"created_by,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	Children        []ChildRef `json:"children,omitempty"`
	Stats           PanelStats `json:"stats"`
}

// IsSuper reports whether the snapshot aggregates child panels.
func (s Snapshot) IsSuper() bool {
	return len(s.Children) > 0
}

// HistoricalSnapshot is an archived, serialized panel version. Data holds the
// full PanelView JSON as it was when the version was superseded.
type HistoricalSnapshot struct {
	ID        int64           `json:"id"`
	PanelID   int64           `json:"panel_id"`
	Version   Version         `json:"version"`
	Reason    string          `json:"reason,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// PanelView is a snapshot together with its entities. For superpanels the
// entities are the children's entities annotated with their source panel.
type PanelView struct {
	Panel    Panel    `json:"panel"`
	Snapshot Snapshot `json:"snapshot"`
	Entities []Entity `json:"entities"`
}

// Activity is one line of the per-panel activity feed.
type Activity struct {
	ID         string     `json:"id"`
	PanelID    int64      `json:"panel_id"`
	PanelName  string     `json:"panel_name"`
	Version    Version    `json:"version"`
	User       string     `json:"user"`
	EntityType EntityType `json:"entity_type,omitempty"`
	EntityName string     `json:"entity_name,omitempty"`
	Text       string     `json:"text"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Role decides what a user may change.
type Role string

const (
	// RoleCurator is an internal reviewer allowed to curate statuses and versions.
	RoleCurator Role = "curator"
	// RoleReviewer is an external expert who may only submit evaluations.
	RoleReviewer Role = "reviewer"
)

// ParseRole validates a role string.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleCurator, RoleReviewer:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// User is a reviewer or curator.
type User struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email,omitempty"`
	FirstName   string    `json:"first_name,omitempty"`
	LastName    string    `json:"last_name,omitempty"`
	Affiliation string    `json:"affiliation,omitempty"`
	Role        Role      `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

// IsCurator reports whether the user may perform curator-only operations.
func (u *User) IsCurator() bool {
	return u != nil && u.Role == RoleCurator
}

// DisplayName returns "First Last" or the username when names are missing.
func (u User) DisplayName() string {
	full := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if full == "" {
		return u.Username
	}
	return full
}

// Gene is an entry of the gene catalogue (HGNC based).
type Gene struct {
	Symbol       string            `json:"gene_symbol"`
	Name         string            `json:"gene_name,omitempty"`
	HGNCID       string            `json:"hgnc_id,omitempty"`
	OMIMGene     []string          `json:"omim_gene,omitempty"`
	EnsemblGenes map[string]string `json:"ensembl_genes,omitempty"`
	Active       bool              `json:"active"`
}

// PanelFilter narrows panel listings.
type PanelFilter struct {
	Name     string
	Type     string
	Statuses []PanelStatus
	// ExcludeSuper drops superpanels from the listing.
	ExcludeSuper bool
}

// ActivityFilter narrows activity listings. Zero values mean "no filter".
type ActivityFilter struct {
	PanelID int64
	// PanelIDs restricts the feed to these panels when non-nil.
	PanelIDs []int64
	User     string
	Since    time.Time
	Until    time.Time
	Limit    int
}

// EntityLocation is a hit when searching an entity across live panels.
type EntityLocation struct {
	Panel   Panel   `json:"panel"`
	Version Version `json:"version"`
	Entity  Entity  `json:"entity"`
}
