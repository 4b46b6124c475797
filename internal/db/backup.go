// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"fmt"

	"github.com/genepanels/panelapp/internal/model"
	"github.com/uptrace/bun"
)

// wipeOrder lists tables child-first so foreign keys never block a delete.
var wipeOrder = []string{
	"activities",
	"historical_snapshots",
	"snapshot_entities",
	"snapshot_children",
	"panel_snapshots",
	"panels",
	"genes",
	"users",
}

// ExportData retrieves every table inside one transaction so the dump is a
// consistent snapshot.
func (s *BunStore) ExportData(ctx context.Context) (*model.BackupData, error) {
	var backup *model.BackupData
	err := WithTx(ctx, s.bun, func(ctx context.Context, tx bun.Tx) error {
		backup = &model.BackupData{
			SchemaVersion: model.BackupSchemaVersion,
			Entities:      make(map[int64][]model.Entity),
		}
		r := &repo{db: tx}

		users, err := r.ListUsers(ctx)
		if err != nil {
			return fmt.Errorf("users: %w", err)
		}
		backup.Users = users

		genes, err := r.ListGenes(ctx, nil)
		if err != nil {
			return fmt.Errorf("genes: %w", err)
		}
		backup.Genes = genes

		var pms []PanelModel
		if err := tx.NewSelect().Model(&pms).OrderExpr("id ASC").Scan(ctx); err != nil {
			return fmt.Errorf("panels: %w", err)
		}
		for _, p := range pms {
			backup.Panels = append(backup.Panels, panelModelToModel(p))
		}

		var sms []SnapshotModel
		if err := tx.NewSelect().Model(&sms).OrderExpr("id ASC").Scan(ctx); err != nil {
			return fmt.Errorf("snapshots: %w", err)
		}
		ids := make([]int64, 0, len(sms))
		for _, sm := range sms {
			ids = append(ids, sm.ID)
		}
		children, err := r.childrenOf(ctx, ids...)
		if err != nil {
			return fmt.Errorf("snapshot children: %w", err)
		}
		for _, sm := range sms {
			backup.Snapshots = append(backup.Snapshots, snapshotModelToModel(sm, children[sm.ID]))
			entities, err := r.ListEntities(ctx, sm.ID)
			if err != nil {
				return fmt.Errorf("entities of snapshot %d: %w", sm.ID, err)
			}
			backup.Entities[sm.PanelID] = entities
		}

		var hms []HistoricalModel
		if err := tx.NewSelect().Model(&hms).OrderExpr("id ASC").Scan(ctx); err != nil {
			return fmt.Errorf("historical snapshots: %w", err)
		}
		for _, h := range hms {
			backup.Historical = append(backup.Historical, historicalModelToModel(h))
		}

		var ams []ActivityModel
		if err := tx.NewSelect().Model(&ams).OrderExpr("created_at ASC, id ASC").Scan(ctx); err != nil {
			return fmt.Errorf("activities: %w", err)
		}
		for _, a := range ams {
			backup.Activities = append(backup.Activities, activityModelToModel(a))
		}
		return nil
	})
	return backup, err
}

// ImportData restores a backup. With full set, every table is wiped first and
// the dump replaces the database. Otherwise the dump is integrated: users,
// genes and activities that already exist are skipped, and a panel is only
// imported when neither its ID nor its name is taken.
func (s *BunStore) ImportData(ctx context.Context, backup *model.BackupData, full bool) error {
	if backup == nil {
		return fmt.Errorf("nil backup")
	}
	if backup.SchemaVersion > model.BackupSchemaVersion {
		return fmt.Errorf("backup schema version %d is newer than supported version %d", backup.SchemaVersion, model.BackupSchemaVersion)
	}
	return WithTx(ctx, s.bun, func(ctx context.Context, tx bun.Tx) error {
		if full {
			for _, t := range wipeOrder {
				if _, err := ExecRaw(ctx, tx, fmt.Sprintf("DELETE FROM %s", t)); err != nil {
					return fmt.Errorf("wipe %s: %w", t, err)
				}
			}
		}

		for _, u := range backup.Users {
			um := userToModel(u)
			if _, err := tx.NewInsert().Model(&um).Ignore().Exec(ctx); err != nil {
				return MapDBError(err)
			}
		}
		for _, g := range backup.Genes {
			gm := geneToModel(g)
			if _, err := tx.NewInsert().Model(&gm).Ignore().Exec(ctx); err != nil {
				return MapDBError(err)
			}
		}

		imported := make(map[int64]bool, len(backup.Panels))
		for _, p := range backup.Panels {
			pm := panelToModel(p)
			if !full {
				exists, err := tx.NewSelect().Model((*PanelModel)(nil)).
					Where("id = ? OR name_key = ?", pm.ID, pm.NameKey).Exists(ctx)
				if err != nil {
					return err
				}
				if exists {
					dbLogf("db: restore skips existing panel %q", p.Name)
					continue
				}
			}
			if _, err := tx.NewInsert().Model(&pm).Exec(ctx); err != nil {
				return MapDBError(err)
			}
			imported[p.ID] = true
		}

		for _, snap := range backup.Snapshots {
			if !imported[snap.PanelID] {
				continue
			}
			sm, children := snapshotToModel(snap)
			if _, err := tx.NewInsert().Model(&sm).Exec(ctx); err != nil {
				return MapDBError(err)
			}
			if len(children) > 0 {
				if _, err := tx.NewInsert().Model(&children).Exec(ctx); err != nil {
					return MapDBError(err)
				}
			}
			r := &repo{db: tx}
			if err := r.InsertEntities(ctx, sm.ID, backup.Entities[snap.PanelID]); err != nil {
				return err
			}
		}

		for _, h := range backup.Historical {
			if !imported[h.PanelID] {
				continue
			}
			hm := historicalToModel(h)
			if _, err := tx.NewInsert().Model(&hm).Exec(ctx); err != nil {
				return MapDBError(err)
			}
		}

		for _, a := range backup.Activities {
			am := activityToModel(a)
			if _, err := tx.NewInsert().Model(&am).Ignore().Exec(ctx); err != nil {
				return MapDBError(err)
			}
		}

		if s.dbType == TypePostgres {
			return resetSequences(ctx, tx)
		}
		return nil
	})
}

// resetSequences moves Postgres serial sequences past explicitly inserted IDs.
func resetSequences(ctx context.Context, tx bun.Tx) error {
	for _, t := range []string{"users", "panels", "panel_snapshots", "snapshot_entities", "historical_snapshots"} {
		q := fmt.Sprintf("SELECT setval(pg_get_serial_sequence('%s', 'id'), COALESCE((SELECT MAX(id) FROM %s), 0) + 1, false)", t, t)
		if _, err := ExecRaw(ctx, tx, q); err != nil {
			return fmt.Errorf("reset sequence for %s: %w", t, err)
		}
	}
	return nil
}
