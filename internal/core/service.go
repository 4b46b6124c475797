// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.

package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/genepanels/panelapp/internal/logging"
	"github.com/genepanels/panelapp/internal/model"
	"github.com/google/uuid"
)

// DefaultHighConfidenceSources are the evidence sources that count towards
// the automatic saved status of a new entity.
var DefaultHighConfidenceSources = []string{
	"Radboud University Medical Center, Nijmegen",
	"Illumina TruGenome Clinical Sequencing Services",
	"Emory Genetics Laboratory",
	"UKGTN",
}

// Service implements every panel curation operation on top of a Store.
// It is safe for concurrent use; all state lives in the store.
type Service struct {
	store   Store
	metrics MetricsRecorder
	now     func() time.Time
	newID   func() string
	sources map[string]bool
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMetrics records operation latencies and version bumps.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Service) { s.metrics = m }
}

// WithIDGenerator overrides the activity ID generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// WithHighConfidenceSources replaces DefaultHighConfidenceSources. An empty
// list keeps the defaults.
func WithHighConfidenceSources(sources []string) Option {
	return func(s *Service) {
		if len(sources) == 0 {
			return
		}
		s.sources = make(map[string]bool, len(sources))
		for _, src := range sources {
			s.sources[strings.TrimSpace(src)] = true
		}
	}
}

// NewService wires a Service to a store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	WithHighConfidenceSources(DefaultHighConfidenceSources)(s)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying store.
func (s *Service) Store() Store { return s.store }

// observe reports an operation to the metrics recorder.
func (s *Service) observe(ctx context.Context, op string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.Observe(ctx, op, err == nil, time.Since(start))
}

// ResolveUser looks up an actor by username. An empty username yields a nil
// user, which every read operation treats as anonymous.
func (s *Service) ResolveUser(ctx context.Context, username string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, nil
	}
	u, err := s.store.GetUser(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, UserDoesNotExistError{Username: username}
		}
		return nil, err
	}
	return u, nil
}

// CreateUser registers a reviewer or curator.
func (s *Service) CreateUser(ctx context.Context, u model.User) (*model.User, error) {
	u.Username = strings.TrimSpace(u.Username)
	if u.Username == "" {
		return nil, invalid("username is required")
	}
	if u.Role == "" {
		u.Role = model.RoleReviewer
	}
	if _, err := model.ParseRole(string(u.Role)); err != nil {
		return nil, invalid("%v", err)
	}
	u.CreatedAt = s.now()
	if err := s.store.CreateUser(ctx, &u); err != nil {
		return nil, fmt.Errorf("create user %s: %w", u.Username, err)
	}
	logging.Infof("created %s %s", u.Role, u.Username)
	return &u, nil
}

// ListUsers returns every user ordered by username.
func (s *Service) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.store.ListUsers(ctx)
}

// GetGene looks up a catalogue entry.
func (s *Service) GetGene(ctx context.Context, symbol string) (*model.Gene, error) {
	g, err := s.store.GetGene(ctx, strings.TrimSpace(symbol))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, GeneDoesNotExistError{Symbol: symbol}
		}
		return nil, err
	}
	return g, nil
}

func requireUser(actor *model.User) error {
	if actor == nil {
		return denied("authentication required")
	}
	return nil
}

func requireCurator(actor *model.User) error {
	if err := requireUser(actor); err != nil {
		return err
	}
	if !actor.IsCurator() {
		return denied("%s is not a curator", actor.Username)
	}
	return nil
}

// canView reports whether viewer may read a panel. Anonymous viewers only
// see public and promoted panels.
func canView(viewer *model.User, p *model.Panel) bool {
	return viewer != nil || p.Status.IsVisible()
}

func (s *Service) activity(p *model.Panel, v model.Version, actor *model.User, t model.EntityType, name, text string) *model.Activity {
	a := &model.Activity{
		ID:         s.newID(),
		PanelID:    p.ID,
		PanelName:  p.Name,
		Version:    v,
		EntityType: t,
		EntityName: name,
		Text:       text,
		CreatedAt:  s.now(),
	}
	if actor != nil {
		a.User = actor.Username
	}
	return a
}
