// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/genepanels/panelapp/internal/core"
	"github.com/genepanels/panelapp/internal/model"
	"github.com/uptrace/bun"
)

// BunStore implements core.Store on top of a long-lived *bun.DB. The same
// query code serves SQLite, PostgreSQL and MySQL; dialect differences are
// limited to raw statements in backup.go and db.go.
type BunStore struct {
	*repo
	bun    *bun.DB
	dbType string
}

var _ core.Store = (*BunStore)(nil)

func newBunStore(bdb *bun.DB, dbType string) *BunStore {
	return &BunStore{repo: &repo{db: bdb}, bun: bdb, dbType: dbType}
}

// DB exposes the underlying bun handle for tests and maintenance tooling.
func (s *BunStore) DB() *bun.DB { return s.bun }

// Type returns the configured database type.
func (s *BunStore) Type() string { return s.dbType }

// Close closes the underlying connection pool.
func (s *BunStore) Close() error {
	return s.bun.Close()
}

// Ping checks that the database is reachable.
func (s *BunStore) Ping(ctx context.Context) error {
	return s.bun.PingContext(ctx)
}

// RunInTx implements core.Store.
func (s *BunStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx core.Repository) error) error {
	return WithTx(ctx, s.bun, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &repo{db: tx})
	})
}

// repo implements core.Repository for either *bun.DB or bun.Tx.
type repo struct {
	db bun.IDB
}

// --- users ---

func (r *repo) GetUser(ctx context.Context, username string) (*model.User, error) {
	var um UserModel
	if err := r.db.NewSelect().Model(&um).Where("username = ?", username).Limit(1).Scan(ctx); err != nil {
		return nil, notFoundOr(err, "user", username)
	}
	u := userModelToModel(um)
	return &u, nil
}

func (r *repo) ListUsers(ctx context.Context) ([]model.User, error) {
	var ums []UserModel
	if err := r.db.NewSelect().Model(&ums).OrderExpr("username ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]model.User, 0, len(ums))
	for _, u := range ums {
		out = append(out, userModelToModel(u))
	}
	return out, nil
}

func (r *repo) CreateUser(ctx context.Context, u *model.User) error {
	um := userToModel(*u)
	if _, err := r.db.NewInsert().Model(&um).Exec(ctx); err != nil {
		return MapDBError(err)
	}
	u.ID = um.ID
	return nil
}

// --- genes ---

func (r *repo) GetGene(ctx context.Context, symbol string) (*model.Gene, error) {
	var gm GeneModel
	if err := r.db.NewSelect().Model(&gm).Where("symbol = ?", symbol).Limit(1).Scan(ctx); err != nil {
		return nil, notFoundOr(err, "gene", symbol)
	}
	g := geneModelToModel(gm)
	return &g, nil
}

// ListGenes returns the genes with the given symbols, or every gene when
// symbols is empty.
func (r *repo) ListGenes(ctx context.Context, symbols []string) ([]model.Gene, error) {
	var gms []GeneModel
	q := r.db.NewSelect().Model(&gms).OrderExpr("symbol ASC")
	if len(symbols) > 0 {
		q = q.Where("symbol IN (?)", bun.In(symbols))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]model.Gene, 0, len(gms))
	for _, g := range gms {
		out = append(out, geneModelToModel(g))
	}
	return out, nil
}

func (r *repo) UpsertGene(ctx context.Context, g *model.Gene) error {
	gm := geneToModel(*g)
	res, err := r.db.NewUpdate().Model(&gm).WherePK().Exec(ctx)
	if err != nil {
		return MapDBError(err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	_, err = r.db.NewInsert().Model(&gm).Exec(ctx)
	return MapDBError(err)
}

// --- panels ---

func (r *repo) CreatePanel(ctx context.Context, p *model.Panel) error {
	pm := panelToModel(*p)
	if _, err := r.db.NewInsert().Model(&pm).Exec(ctx); err != nil {
		return MapDBError(err)
	}
	p.ID = pm.ID
	return nil
}

func (r *repo) UpdatePanel(ctx context.Context, p *model.Panel) error {
	pm := panelToModel(*p)
	res, err := r.db.NewUpdate().Model(&pm).Column("name", "name_key", "status", "updated_at").WherePK().Exec(ctx)
	if err != nil {
		return MapDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.NotFoundError{Kind: "panel", Key: fmt.Sprint(p.ID)}
	}
	return nil
}

func (r *repo) GetPanel(ctx context.Context, id int64) (*model.Panel, error) {
	var pm PanelModel
	if err := r.db.NewSelect().Model(&pm).Where("id = ?", id).Limit(1).Scan(ctx); err != nil {
		return nil, notFoundOr(err, "panel", id)
	}
	p := panelModelToModel(pm)
	return &p, nil
}

func (r *repo) GetPanelByName(ctx context.Context, name string) (*model.Panel, error) {
	var pm PanelModel
	if err := r.db.NewSelect().Model(&pm).Where("name_key = ?", panelNameKey(name)).Limit(1).Scan(ctx); err != nil {
		return nil, notFoundOr(err, "panel", name)
	}
	p := panelModelToModel(pm)
	return &p, nil
}

func (r *repo) ListPanels(ctx context.Context, filter model.PanelFilter) ([]model.Panel, error) {
	var pms []PanelModel
	q := r.db.NewSelect().Model(&pms).OrderExpr("name_key ASC")
	if filter.Name != "" {
		q = q.Where("name_key LIKE ?", "%"+panelNameKey(filter.Name)+"%")
	}
	if len(filter.Statuses) > 0 {
		st := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			st = append(st, string(s))
		}
		q = q.Where("status IN (?)", bun.In(st))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]model.Panel, 0, len(pms))
	for _, p := range pms {
		out = append(out, panelModelToModel(p))
	}
	return out, nil
}

// --- live snapshots ---

func (r *repo) childrenOf(ctx context.Context, snapshotIDs ...int64) (map[int64][]ChildModel, error) {
	out := make(map[int64][]ChildModel)
	if len(snapshotIDs) == 0 {
		return out, nil
	}
	var cms []ChildModel
	if err := r.db.NewSelect().Model(&cms).
		Where("snapshot_id IN (?)", bun.In(snapshotIDs)).
		OrderExpr("snapshot_id ASC, position ASC").Scan(ctx); err != nil {
		return nil, err
	}
	for _, c := range cms {
		out[c.SnapshotID] = append(out[c.SnapshotID], c)
	}
	return out, nil
}

// GetLiveSnapshot returns the highest version stored for the panel. Older
// live rows are removed by the versioning code, so there is normally one.
func (r *repo) GetLiveSnapshot(ctx context.Context, panelID int64) (*model.Snapshot, error) {
	var sm SnapshotModel
	if err := r.db.NewSelect().Model(&sm).Where("panel_id = ?", panelID).
		OrderExpr("major DESC, minor DESC").Limit(1).Scan(ctx); err != nil {
		return nil, notFoundOr(err, "snapshot for panel", panelID)
	}
	children, err := r.childrenOf(ctx, sm.ID)
	if err != nil {
		return nil, err
	}
	s := snapshotModelToModel(sm, children[sm.ID])
	return &s, nil
}

func (r *repo) InsertSnapshot(ctx context.Context, s *model.Snapshot) error {
	sm, children := snapshotToModel(*s)
	sm.ID = 0
	if _, err := r.db.NewInsert().Model(&sm).Exec(ctx); err != nil {
		return MapDBError(err)
	}
	s.ID = sm.ID
	if len(children) == 0 {
		return nil
	}
	for i := range children {
		children[i].SnapshotID = sm.ID
	}
	if _, err := r.db.NewInsert().Model(&children).Exec(ctx); err != nil {
		return MapDBError(err)
	}
	return nil
}

func (r *repo) DeleteSnapshot(ctx context.Context, snapshotID int64) error {
	if _, err := r.db.NewDelete().Model((*EntityModel)(nil)).Where("snapshot_id = ?", snapshotID).Exec(ctx); err != nil {
		return err
	}
	if _, err := r.db.NewDelete().Model((*ChildModel)(nil)).Where("snapshot_id = ?", snapshotID).Exec(ctx); err != nil {
		return err
	}
	_, err := r.db.NewDelete().Model((*SnapshotModel)(nil)).Where("id = ?", snapshotID).Exec(ctx)
	return err
}

func (r *repo) ListEntities(ctx context.Context, snapshotID int64) ([]model.Entity, error) {
	var ems []EntityModel
	if err := r.db.NewSelect().Model(&ems).Where("snapshot_id = ?", snapshotID).
		OrderExpr("position ASC, id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]model.Entity, 0, len(ems))
	for _, em := range ems {
		e, err := entityModelToModel(em)
		if err != nil {
			return nil, fmt.Errorf("decode entity %s: %w", em.EntityKey, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *repo) InsertEntities(ctx context.Context, snapshotID int64, entities []model.Entity) error {
	if len(entities) == 0 {
		return nil
	}
	ems := make([]EntityModel, 0, len(entities))
	for i, e := range entities {
		em, err := entityToModel(snapshotID, i, e)
		if err != nil {
			return fmt.Errorf("encode entity %s: %w", e.Key(), err)
		}
		ems = append(ems, em)
	}
	if _, err := r.db.NewInsert().Model(&ems).Exec(ctx); err != nil {
		return MapDBError(err)
	}
	return nil
}

func (r *repo) ListParentPanelIDs(ctx context.Context, childPanelID int64) ([]int64, error) {
	var ids []int64
	err := QueryRawInto(ctx, r.db, &ids,
		"SELECT DISTINCT s.panel_id FROM snapshot_children c JOIN panel_snapshots s ON s.id = c.snapshot_id WHERE c.child_panel_id = ? ORDER BY s.panel_id",
		childPanelID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return ids, nil
}

// FindEntities returns every live snapshot entity with the given type and
// name (case-insensitive), ordered by panel name.
func (r *repo) FindEntities(ctx context.Context, t model.EntityType, name string) ([]model.EntityLocation, error) {
	var ems []EntityModel
	if err := r.db.NewSelect().Model(&ems).Where("entity_key = ?", model.EntityKey(t, name)).Scan(ctx); err != nil {
		return nil, err
	}
	if len(ems) == 0 {
		return nil, nil
	}
	snapIDs := make([]int64, 0, len(ems))
	for _, em := range ems {
		snapIDs = append(snapIDs, em.SnapshotID)
	}
	var sms []SnapshotModel
	if err := r.db.NewSelect().Model(&sms).Where("id IN (?)", bun.In(snapIDs)).Scan(ctx); err != nil {
		return nil, err
	}
	snaps := make(map[int64]SnapshotModel, len(sms))
	panelIDs := make([]int64, 0, len(sms))
	for _, sm := range sms {
		snaps[sm.ID] = sm
		panelIDs = append(panelIDs, sm.PanelID)
	}
	var pms []PanelModel
	if err := r.db.NewSelect().Model(&pms).Where("id IN (?)", bun.In(panelIDs)).Scan(ctx); err != nil {
		return nil, err
	}
	panels := make(map[int64]PanelModel, len(pms))
	for _, pm := range pms {
		panels[pm.ID] = pm
	}

	out := make([]model.EntityLocation, 0, len(ems))
	for _, em := range ems {
		sm, ok := snaps[em.SnapshotID]
		if !ok {
			continue
		}
		pm, ok := panels[sm.PanelID]
		if !ok {
			continue
		}
		e, err := entityModelToModel(em)
		if err != nil {
			return nil, fmt.Errorf("decode entity %s: %w", em.EntityKey, err)
		}
		out = append(out, model.EntityLocation{
			Panel:   panelModelToModel(pm),
			Version: model.Version{Major: sm.Major, Minor: sm.Minor},
			Entity:  e,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToUpper(out[i].Panel.Name) < strings.ToUpper(out[j].Panel.Name)
	})
	return out, nil
}

// --- historical snapshots ---

func (r *repo) InsertHistoricalSnapshot(ctx context.Context, h *model.HistoricalSnapshot) error {
	hm := historicalToModel(*h)
	hm.ID = 0
	if _, err := r.db.NewInsert().Model(&hm).Exec(ctx); err != nil {
		return MapDBError(err)
	}
	h.ID = hm.ID
	return nil
}

func (r *repo) GetHistoricalSnapshot(ctx context.Context, panelID int64, v model.Version) (*model.HistoricalSnapshot, error) {
	var hm HistoricalModel
	if err := r.db.NewSelect().Model(&hm).
		Where("panel_id = ?", panelID).Where("major = ?", v.Major).Where("minor = ?", v.Minor).
		Limit(1).Scan(ctx); err != nil {
		return nil, notFoundOr(err, "version", fmt.Sprintf("%d@%s", panelID, v))
	}
	h := historicalModelToModel(hm)
	return &h, nil
}

// ListHistoricalSnapshots returns the archived versions of a panel, newest
// first, without their payload.
func (r *repo) ListHistoricalSnapshots(ctx context.Context, panelID int64) ([]model.HistoricalSnapshot, error) {
	var hms []HistoricalModel
	if err := r.db.NewSelect().Model(&hms).
		Column("id", "panel_id", "major", "minor", "reason", "created_at").
		Where("panel_id = ?", panelID).
		OrderExpr("major DESC, minor DESC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]model.HistoricalSnapshot, 0, len(hms))
	for _, hm := range hms {
		out = append(out, historicalModelToModel(hm))
	}
	return out, nil
}

// --- activities ---

func (r *repo) InsertActivity(ctx context.Context, a *model.Activity) error {
	am := activityToModel(*a)
	if _, err := r.db.NewInsert().Model(&am).Exec(ctx); err != nil {
		return MapDBError(err)
	}
	return nil
}

func (r *repo) ListActivities(ctx context.Context, filter model.ActivityFilter) ([]model.Activity, error) {
	var ams []ActivityModel
	q := r.db.NewSelect().Model(&ams).OrderExpr("created_at DESC, id DESC")
	if filter.PanelID != 0 {
		q = q.Where("panel_id = ?", filter.PanelID)
	}
	if filter.PanelIDs != nil {
		if len(filter.PanelIDs) == 0 {
			return nil, nil
		}
		q = q.Where("panel_id IN (?)", bun.In(filter.PanelIDs))
	}
	if filter.User != "" {
		q = q.Where("username = ?", filter.User)
	}
	if !filter.Since.IsZero() {
		q = q.Where("created_at >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		q = q.Where("created_at < ?", filter.Until)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]model.Activity, 0, len(ams))
	for _, a := range ams {
		out = append(out, activityModelToModel(a))
	}
	return out, nil
}
