package exports

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/genepanels/panelapp/internal/blob"
	"github.com/genepanels/panelapp/internal/core"
	"github.com/genepanels/panelapp/internal/model"
)

type fakeReporter struct {
	mu      sync.Mutex
	viewers []string
	block   chan struct{}
}

func (f *fakeReporter) WriteReport(ctx context.Context, viewer *model.User, w io.Writer, req core.ReportRequest) (string, error) {
	f.mu.Lock()
	name := ""
	if viewer != nil {
		name = viewer.Username
	}
	f.viewers = append(f.viewers, name)
	f.mu.Unlock()
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if req.Kind == core.ReportPanel && req.PanelID == 404 {
		return "", fmt.Errorf("panel 404: %w", core.ErrNotFound)
	}
	_, _ = io.WriteString(w, "a,b\n1,2\n")
	if req.Kind == core.ReportPanel {
		return fmt.Sprintf("panel-%d-live.tsv", req.PanelID), nil
	}
	return "panel-stats-20260101.csv", nil
}

type countingObserver struct {
	mu     sync.Mutex
	counts map[string]int
}

func (o *countingObserver) ExportFinished(kind, state string) {
	o.mu.Lock()
	o.counts[kind+"/"+state]++
	o.mu.Unlock()
}

func (o *countingObserver) get(key string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.counts[key]
}

// waitFor polls until the job leaves the queued and running states.
func waitFor(t *testing.T, w *Worker, id string) Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, ok := w.Get(id)
		if !ok {
			t.Fatalf("job %s vanished", id)
		}
		if job.Status == StatusSucceeded || job.Status == StatusFailed {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", id)
	return Job{}
}

func startWorker(t *testing.T, w *Worker) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run: %v", err)
		}
	})
}

func TestWorker_StoresReports(t *testing.T) {
	sink := blob.NewMemory()
	obs := &countingObserver{counts: map[string]int{}}
	rep := &fakeReporter{}
	w := NewWorker(rep, sink, WithObserver(obs), WithWorkers(3), WithKeyPrefix("reports"))
	startWorker(t, w)

	curator := &model.User{Username: "curator", Role: model.RoleCurator}
	ok, err := w.Enqueue(curator, core.ReportRequest{Kind: core.ReportPanel, PanelID: 7})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if ok.Status != StatusQueued || ok.RequestedBy != "curator" || ok.ID == "" {
		t.Fatalf("queued job = %+v", ok)
	}
	bad, err := w.Enqueue(nil, core.ReportRequest{Kind: core.ReportPanel, PanelID: 404})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	job := waitFor(t, w, ok.ID)
	if job.Status != StatusSucceeded || job.Key != "reports/"+ok.ID+"/panel-7-live.tsv" || job.Size != 8 || job.CompletedAt == nil {
		t.Fatalf("finished job = %+v", job)
	}
	info, rc, err := w.Open(context.Background(), ok.ID)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	if info.ContentType != "text/tab-separated-values" {
		t.Fatalf("content type = %q", info.ContentType)
	}

	failed := waitFor(t, w, bad.ID)
	if failed.Status != StatusFailed || failed.Error == "" {
		t.Fatalf("failed job = %+v", failed)
	}
	if _, _, err := w.Open(context.Background(), bad.ID); !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("Open failed job: expected ErrInvalidInput, got %v", err)
	}
	if _, _, err := w.Open(context.Background(), "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("Open unknown job: expected ErrNotFound, got %v", err)
	}
	if obs.get("panel/succeeded") != 1 || obs.get("panel/failed") != 1 {
		t.Fatalf("observer counts = %v", obs.counts)
	}
}

func TestWorker_RejectsUnknownKindAndFullQueue(t *testing.T) {
	rep := &fakeReporter{block: make(chan struct{})}
	w := NewWorker(rep, blob.NewMemory(), WithWorkers(1), WithQueueSize(1))

	if _, err := w.Enqueue(nil, core.ReportRequest{Kind: "bogus"}); !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	// Not running: the first job fills the queue.
	first, err := w.Enqueue(nil, core.ReportRequest{Kind: core.ReportPanelStats})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := w.Enqueue(nil, core.ReportRequest{Kind: core.ReportPanelStats}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	startWorker(t, w)
	close(rep.block)
	if job := waitFor(t, w, first.ID); job.Status != StatusSucceeded {
		t.Fatalf("job = %+v", job)
	}
}

func TestWorker_ShutdownFailsQueuedJobs(t *testing.T) {
	rep := &fakeReporter{block: make(chan struct{})}
	w := NewWorker(rep, blob.NewMemory(), WithWorkers(1))
	running, _ := w.Enqueue(nil, core.ReportRequest{Kind: core.ReportPanelStats})
	queued, _ := w.Enqueue(nil, core.ReportRequest{Kind: core.ReportPanelStats})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	deadline := time.Now().Add(5 * time.Second)
	for {
		if j, _ := w.Get(running.ID); j.Status == StatusRunning {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("first job never started")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, id := range []string{running.ID, queued.ID} {
		if j, _ := w.Get(id); j.Status != StatusFailed {
			t.Fatalf("job %s after shutdown = %+v", id, j)
		}
	}
}

func TestWorker_PrunesExpiredJobs(t *testing.T) {
	var mu sync.Mutex
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}
	w := NewWorker(&fakeReporter{}, blob.NewMemory(), WithClock(clock), WithRetention(time.Hour))
	startWorker(t, w)

	old, err := w.Enqueue(nil, core.ReportRequest{Kind: core.ReportPanelStats})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	waitFor(t, w, old.ID)

	advance(2 * time.Hour)
	fresh, err := w.Enqueue(nil, core.ReportRequest{Kind: core.ReportPanelStats})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, ok := w.Get(old.ID); ok {
		t.Fatalf("job finished two hours ago is still tracked")
	}
	if job := waitFor(t, w, fresh.ID); job.Status != StatusSucceeded {
		t.Fatalf("fresh job = %+v", job)
	}
}
