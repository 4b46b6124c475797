// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.

// Package core holds the panel curation rules: copy-on-write versioning,
// superpanel aggregation, rating consensus, bulk import and report export.
// It talks to persistence only through the small interfaces below so the
// bun store, test fakes and future backends stay interchangeable.
package core

import (
	"context"
	"time"

	"github.com/genepanels/panelapp/internal/model"
)

// Repository is the set of data operations available both inside and outside
// a transaction. Lookups return an error matching ErrNotFound when the record
// is missing; inserts return an error matching ErrDuplicate on unique
// constraint violations.
type Repository interface {
	// Users
	GetUser(ctx context.Context, username string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	CreateUser(ctx context.Context, u *model.User) error

	// Gene catalogue
	GetGene(ctx context.Context, symbol string) (*model.Gene, error)
	ListGenes(ctx context.Context, symbols []string) ([]model.Gene, error)
	UpsertGene(ctx context.Context, g *model.Gene) error

	// Panels
	CreatePanel(ctx context.Context, p *model.Panel) error
	UpdatePanel(ctx context.Context, p *model.Panel) error
	GetPanel(ctx context.Context, id int64) (*model.Panel, error)
	GetPanelByName(ctx context.Context, name string) (*model.Panel, error)
	ListPanels(ctx context.Context, filter model.PanelFilter) ([]model.Panel, error)

	// Live snapshots
	GetLiveSnapshot(ctx context.Context, panelID int64) (*model.Snapshot, error)
	InsertSnapshot(ctx context.Context, s *model.Snapshot) error
	DeleteSnapshot(ctx context.Context, snapshotID int64) error
	ListEntities(ctx context.Context, snapshotID int64) ([]model.Entity, error)
	InsertEntities(ctx context.Context, snapshotID int64, entities []model.Entity) error
	ListParentPanelIDs(ctx context.Context, childPanelID int64) ([]int64, error)
	FindEntities(ctx context.Context, t model.EntityType, name string) ([]model.EntityLocation, error)

	// Archived versions
	InsertHistoricalSnapshot(ctx context.Context, h *model.HistoricalSnapshot) error
	GetHistoricalSnapshot(ctx context.Context, panelID int64, v model.Version) (*model.HistoricalSnapshot, error)
	ListHistoricalSnapshots(ctx context.Context, panelID int64) ([]model.HistoricalSnapshot, error)

	// Activity feed
	InsertActivity(ctx context.Context, a *model.Activity) error
	ListActivities(ctx context.Context, filter model.ActivityFilter) ([]model.Activity, error)
}

// Store is a Repository that can open transactions and dump itself.
type Store interface {
	Repository
	// RunInTx runs fn in a single transaction. The transaction is committed
	// when fn returns nil and rolled back otherwise.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error
	ExportData(ctx context.Context) (*model.BackupData, error)
	ImportData(ctx context.Context, data *model.BackupData, full bool) error
	Close() error
}

// MetricsRecorder observes service operations. internal/metrics provides a
// Prometheus implementation; nil disables recording.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
	VersionCreated(major bool)
}

// DBMaintainer runs engine-specific maintenance operations.
type DBMaintainer interface {
	RunDBMaintenance(ctx context.Context, dbType, dsn string, skipIntegrity bool) error
}
