// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.

package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/genepanels/panelapp/internal/logging"
	"github.com/genepanels/panelapp/internal/model"
)

// draft is the editable copy of a panel's live snapshot. Mutations change the
// draft; commit turns it into the next version.
type draft struct {
	panel    *model.Panel
	live     *model.Snapshot
	snapshot model.Snapshot
	entities []model.Entity
	next     model.Version
	lines    []draftLine
}

type draftLine struct {
	entityType model.EntityType
	entityName string
	text       string
}

// log queues an activity line recorded with the new version.
func (d *draft) log(t model.EntityType, name, format string, args ...any) {
	d.lines = append(d.lines, draftLine{entityType: t, entityName: name, text: fmt.Sprintf(format, args...)})
}

// find returns the index of the entity with the given type and name, or -1.
func (d *draft) find(t model.EntityType, name string) int {
	key := model.EntityKey(t, name)
	for i := range d.entities {
		if d.entities[i].Key() == key {
			return i
		}
	}
	return -1
}

// entity returns a pointer to the named entity or a not-found error.
func (d *draft) entity(t model.EntityType, name string) (*model.Entity, error) {
	i := d.find(t, name)
	if i < 0 {
		return nil, notFound(string(t), fmt.Sprintf("%s in panel %s", name, d.panel.Name))
	}
	return &d.entities[i], nil
}

// mutation describes how a change is versioned.
type mutation struct {
	op      string
	major   bool
	comment string
}

// mutate loads the panel's live snapshot, applies fn and commits the result
// as a new version, all inside one transaction.
func (s *Service) mutate(ctx context.Context, actor *model.User, panelID int64, m mutation, fn func(ctx context.Context, tx Repository, d *draft) error) (view *model.PanelView, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, m.op, start, err) }()

	err = s.store.RunInTx(ctx, func(ctx context.Context, tx Repository) error {
		var txErr error
		view, txErr = s.mutateTx(ctx, tx, actor, panelID, m, fn)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// mutateTx is mutate for callers that already hold a transaction.
func (s *Service) mutateTx(ctx context.Context, tx Repository, actor *model.User, panelID int64, m mutation, fn func(ctx context.Context, tx Repository, d *draft) error) (*model.PanelView, error) {
	d, err := loadDraft(ctx, tx, panelID, m.major)
	if err != nil {
		return nil, err
	}
	if fn != nil {
		if err := fn(ctx, tx, d); err != nil {
			return nil, err
		}
	}
	view, err := s.commit(ctx, tx, actor, d, m)
	if err != nil {
		return nil, err
	}
	if err := s.cascade(ctx, tx, actor, view.Panel, view.Snapshot.Version); err != nil {
		return nil, err
	}
	return view, nil
}

func loadDraft(ctx context.Context, tx Repository, panelID int64, major bool) (*draft, error) {
	p, err := tx.GetPanel(ctx, panelID)
	if err != nil {
		return nil, err
	}
	live, err := tx.GetLiveSnapshot(ctx, panelID)
	if err != nil {
		return nil, err
	}
	entities, err := tx.ListEntities(ctx, live.ID)
	if err != nil {
		return nil, err
	}
	d := &draft{
		panel:    p,
		live:     live,
		snapshot: *live,
		entities: make([]model.Entity, 0, len(entities)),
		next:     live.Version.Next(major),
	}
	d.snapshot.Types = append([]string(nil), live.Types...)
	d.snapshot.Children = append([]model.ChildRef(nil), live.Children...)
	for _, e := range entities {
		d.entities = append(d.entities, e.Clone())
	}
	return d, nil
}

// commit archives the live snapshot and stores the draft as the next version.
// A unique violation on either insert means another writer got there first.
func (s *Service) commit(ctx context.Context, tx Repository, actor *model.User, d *draft, m mutation) (*model.PanelView, error) {
	now := s.now()

	archived, err := s.viewOf(ctx, tx, *d.panel, *d.live)
	if err != nil {
		return nil, fmt.Errorf("build archive of %s v%s: %w", d.panel.Name, d.live.Version, err)
	}
	data, err := json.Marshal(archived)
	if err != nil {
		return nil, fmt.Errorf("encode archive: %w", err)
	}
	hist := &model.HistoricalSnapshot{
		PanelID:   d.panel.ID,
		Version:   d.live.Version,
		Reason:    m.comment,
		CreatedAt: now,
		Data:      data,
	}
	if err := tx.InsertHistoricalSnapshot(ctx, hist); err != nil {
		return nil, conflictOr(err, d.panel, d.live.Version)
	}

	snap := d.snapshot
	snap.ID = 0
	snap.PanelID = d.panel.ID
	snap.Version = d.next
	snap.VersionComment = m.comment
	snap.CreatedAt = now
	if actor != nil {
		snap.CreatedBy = actor.Username
	}
	var entities []model.Entity
	if snap.IsSuper() {
		entities, err = s.childEntities(ctx, tx, snap.Children)
		if err != nil {
			return nil, err
		}
		snap.Stats = ComputeStats(entities)
	} else {
		entities = d.entities
		snap.Stats = ComputeStats(d.entities)
	}
	if err := tx.InsertSnapshot(ctx, &snap); err != nil {
		return nil, conflictOr(err, d.panel, d.next)
	}
	if !snap.IsSuper() {
		if err := tx.InsertEntities(ctx, snap.ID, d.entities); err != nil {
			return nil, err
		}
	}
	if err := tx.DeleteSnapshot(ctx, d.live.ID); err != nil {
		return nil, fmt.Errorf("delete superseded snapshot: %w", err)
	}

	p := *d.panel
	p.Name = snap.Name
	p.UpdatedAt = now
	if err := tx.UpdatePanel(ctx, &p); err != nil {
		return nil, err
	}

	if len(d.lines) == 0 {
		text := m.comment
		if text == "" {
			text = "Panel version increased"
		}
		d.lines = append(d.lines, draftLine{text: text})
	}
	for _, l := range d.lines {
		if err := tx.InsertActivity(ctx, s.activity(&p, snap.Version, actor, l.entityType, l.entityName, l.text)); err != nil {
			return nil, err
		}
	}

	if s.metrics != nil {
		s.metrics.VersionCreated(m.major)
	}
	logging.Debugf("panel %s: v%s -> v%s (%s)", p.Name, d.live.Version, snap.Version, m.op)
	return &model.PanelView{Panel: p, Snapshot: snap, Entities: entities}, nil
}

func conflictOr(err error, p *model.Panel, v model.Version) error {
	if errors.Is(err, ErrDuplicate) {
		return fmt.Errorf("%w: %s v%s already exists", ErrConflict, p.Name, v)
	}
	return err
}

// IncrementVersion creates a new version without content changes. Only
// curators may bump the major version.
func (s *Service) IncrementVersion(ctx context.Context, actor *model.User, panelID int64, major bool, comment string) (*model.PanelView, error) {
	if err := requireCurator(actor); err != nil {
		return nil, err
	}
	return s.mutate(ctx, actor, panelID, mutation{op: "increment_version", major: major, comment: comment}, func(_ context.Context, _ Repository, d *draft) error {
		if major {
			d.log("", "", "Increased major version to %s", d.next)
		} else {
			d.log("", "", "Increased version to %s", d.next)
		}
		if comment != "" {
			d.log("", "", "%s", comment)
		}
		return nil
	})
}

// Promote marks a panel as reviewed: a major bump plus status promoted.
func (s *Service) Promote(ctx context.Context, actor *model.User, panelID int64, comment string) (*model.PanelView, error) {
	if err := requireCurator(actor); err != nil {
		return nil, err
	}
	return s.mutate(ctx, actor, panelID, mutation{op: "promote", major: true, comment: comment}, func(_ context.Context, _ Repository, d *draft) error {
		d.panel.Status = model.PanelPromoted
		d.log("", "", "Promoted panel to version %s", d.next)
		if comment != "" {
			d.log("", "", "%s", comment)
		}
		return nil
	})
}

// cascade bumps every superpanel that pins the child, in the same
// transaction, so parents always reference the child's newest version.
func (s *Service) cascade(ctx context.Context, tx Repository, actor *model.User, child model.Panel, v model.Version) error {
	parents, err := tx.ListParentPanelIDs(ctx, child.ID)
	if err != nil {
		return err
	}
	for _, parentID := range parents {
		if parentID == child.ID {
			continue
		}
		comment := fmt.Sprintf("%s updated to v%s", child.Name, v)
		_, err := s.mutateTx(ctx, tx, actor, parentID, mutation{op: "cascade", comment: comment}, func(_ context.Context, _ Repository, d *draft) error {
			for i := range d.snapshot.Children {
				if d.snapshot.Children[i].PanelID == child.ID {
					d.snapshot.Children[i].Version = v
					d.snapshot.Children[i].Name = child.Name
				}
			}
			d.log("", "", "%s", comment)
			return nil
		})
		if err != nil {
			return fmt.Errorf("update superpanel %d: %w", parentID, err)
		}
	}
	return nil
}
