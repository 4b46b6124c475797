// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.

// Package exports runs report generation in the background and stores the
// resulting files in a blob sink.
package exports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sync"
	"time"

	"github.com/genepanels/panelapp/internal/blob"
	"github.com/genepanels/panelapp/internal/core"
	"github.com/genepanels/panelapp/internal/logging"
	"github.com/genepanels/panelapp/internal/model"
	"github.com/google/uuid"
)

// Status is the lifecycle stage of a job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Job tracks one report request.
type Job struct {
	ID          string             `json:"id"`
	Request     core.ReportRequest `json:"request"`
	RequestedBy string             `json:"requested_by,omitempty"`
	Status      Status             `json:"status"`
	Error       string             `json:"error,omitempty"`
	Key         string             `json:"key,omitempty"`
	Size        int64              `json:"size_bytes,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
}

// Reporter renders a report; *core.Service implements it.
type Reporter interface {
	WriteReport(ctx context.Context, viewer *model.User, w io.Writer, req core.ReportRequest) (string, error)
}

// Observer is told about finished jobs. *metrics.Recorder implements it.
type Observer interface {
	ExportFinished(kind, state string)
}

// ErrQueueFull is returned by Enqueue when the backlog is at capacity.
var ErrQueueFull = errors.New("export queue full")

type task struct {
	id     string
	viewer *model.User
}

// Worker owns a bounded queue and a fixed number of goroutines draining it.
type Worker struct {
	reporter Reporter
	sink     blob.Store
	observer Observer
	workers  int
	prefix   string
	// Finished jobs are forgotten after retention. Their files stay in the sink.
	retention time.Duration
	now       func() time.Time

	queue chan task
	mu    sync.RWMutex
	jobs  map[string]*Job
	wg    sync.WaitGroup
}

// Option configures a Worker.
type Option func(*Worker)

// WithObserver records finished jobs.
func WithObserver(o Observer) Option { return func(w *Worker) { w.observer = o } }

// WithWorkers sets the number of concurrent jobs (default 2).
func WithWorkers(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.workers = n
		}
	}
}

// WithQueueSize bounds the backlog (default 32).
func WithQueueSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.queue = make(chan task, n)
		}
	}
}

// WithRetention sets how long finished jobs stay queryable (default 24h).
func WithRetention(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.retention = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(w *Worker) { w.now = now } }

// WithKeyPrefix places every blob under prefix.
func WithKeyPrefix(prefix string) Option { return func(w *Worker) { w.prefix = prefix } }

// NewWorker builds a worker; call Run to start processing.
func NewWorker(r Reporter, sink blob.Store, opts ...Option) *Worker {
	w := &Worker{
		reporter: r,
		sink:     sink,
		workers:   2,
		queue:     make(chan task, 32),
		jobs:      make(map[string]*Job),
		retention: 24 * time.Hour,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run processes jobs until ctx is cancelled, then waits for running jobs.
// Jobs still queued at shutdown are marked failed. Expired jobs are pruned
// periodically.
func (w *Worker) Run(ctx context.Context) error {
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.loop(ctx)
	}
	tick := time.NewTicker(min(w.retention, 10*time.Minute))
	defer tick.Stop()
wait:
	for {
		select {
		case <-ctx.Done():
			break wait
		case <-tick.C:
			w.prune()
		}
	}
	w.wg.Wait()
	for {
		select {
		case t := <-w.queue:
			w.finish(t.id, "", 0, errors.New("server shutting down"))
		default:
			return nil
		}
	}
}

func (w *Worker) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-w.queue:
			w.process(ctx, t)
		}
	}
}

// Enqueue validates and queues a report. Kind and panel visibility are
// checked when the job runs.
func (w *Worker) Enqueue(viewer *model.User, req core.ReportRequest) (Job, error) {
	if _, err := core.ParseReportKind(string(req.Kind)); err != nil {
		return Job{}, err
	}
	w.prune()
	now := w.now().UTC()
	job := &Job{ID: uuid.NewString(), Request: req, Status: StatusQueued, CreatedAt: now, UpdatedAt: now}
	if viewer != nil {
		job.RequestedBy = viewer.Username
	}
	w.mu.Lock()
	w.jobs[job.ID] = job
	snapshot := *job
	w.mu.Unlock()

	select {
	case w.queue <- task{id: job.ID, viewer: viewer}:
	default:
		w.mu.Lock()
		delete(w.jobs, job.ID)
		w.mu.Unlock()
		return Job{}, ErrQueueFull
	}
	logging.Debugf("export %s queued: %s", job.ID, req.Kind)
	return snapshot, nil
}

// prune drops finished jobs older than the retention period.
func (w *Worker) prune() {
	cutoff := w.now().Add(-w.retention)
	w.mu.Lock()
	defer w.mu.Unlock()
	for id, job := range w.jobs {
		if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(w.jobs, id)
		}
	}
}

// Get returns a copy of the job.
func (w *Worker) Get(id string) (Job, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	job, ok := w.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// Open streams the file of a finished job.
func (w *Worker) Open(ctx context.Context, id string) (blob.Info, io.ReadCloser, error) {
	job, ok := w.Get(id)
	if !ok {
		return blob.Info{}, nil, core.ErrNotFound
	}
	if job.Status != StatusSucceeded {
		return blob.Info{}, nil, fmt.Errorf("%w: export %s is %s", core.ErrInvalidInput, id, job.Status)
	}
	return w.sink.Get(ctx, job.Key)
}

func (w *Worker) process(ctx context.Context, t task) {
	w.setStatus(t.id, StatusRunning)
	job, _ := w.Get(t.id)

	var buf bytes.Buffer
	name, err := w.reporter.WriteReport(ctx, t.viewer, &buf, job.Request)
	if err != nil {
		w.finish(t.id, "", 0, err)
		return
	}
	key := path.Join(w.prefix, t.id, name)
	info, err := w.sink.Put(ctx, key, &buf, ContentType(name))
	if err != nil {
		w.finish(t.id, "", 0, fmt.Errorf("store report: %w", err))
		return
	}
	w.finish(t.id, info.Key, info.Size, nil)
}

// ContentType is the MIME type of a report file name.
func ContentType(name string) string {
	if path.Ext(name) == ".tsv" {
		return "text/tab-separated-values"
	}
	return "text/csv"
}

func (w *Worker) setStatus(id string, s Status) {
	w.mu.Lock()
	if job, ok := w.jobs[id]; ok {
		job.Status = s
		job.UpdatedAt = w.now().UTC()
	}
	w.mu.Unlock()
}

func (w *Worker) finish(id, key string, size int64, err error) {
	now := w.now().UTC()
	var kind, state string
	w.mu.Lock()
	job, ok := w.jobs[id]
	if ok {
		job.UpdatedAt = now
		job.CompletedAt = &now
		if err != nil {
			job.Status = StatusFailed
			job.Error = err.Error()
		} else {
			job.Status = StatusSucceeded
			job.Key = key
			job.Size = size
		}
		kind, state = string(job.Request.Kind), string(job.Status)
	}
	w.mu.Unlock()
	if !ok {
		return
	}
	if err != nil {
		logging.Warnf("export %s failed: %v", id, err)
	} else {
		logging.Infof("export %s stored as %s (%d bytes)", id, key, size)
	}
	if w.observer != nil {
		w.observer.ExportFinished(kind, state)
	}
}
