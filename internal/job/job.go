// Package job runs verification batches in the background and tracks their
// progress in memory.
package job

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-verifier/internal/model"
	"github.com/sells-group/lead-verifier/internal/orchestrator"
	"github.com/sells-group/lead-verifier/internal/scraper"
)

// State is a job's lifecycle state.
type State string

const (
	Running   State = "running"
	Completed State = "completed"
	Cancelled State = "cancelled"
	Failed    State = "failed"
)

// Done reports whether the state is terminal.
func (s State) Done() bool { return s != Running }

// ErrNotFound is returned for unknown job IDs.
var ErrNotFound = eris.New("job: not found")

// Snapshot is a point-in-time copy of a job.
type Snapshot struct {
	ID         string                        `json:"id"`
	State      State                         `json:"state"`
	Total      int                           `json:"total"`
	Processed  int                           `json:"processed"`
	Error      string                        `json:"error,omitempty"`
	CreatedAt  time.Time                     `json:"created_at"`
	FinishedAt *time.Time                    `json:"finished_at,omitempty"`
	Results    []*model.AggregatedLeadResult `json:"results,omitempty"`
}

type entry struct {
	snap   Snapshot
	cancel context.CancelFunc
}

// DefaultRetention is the number of finished jobs kept when NewManager is
// given no limit.
const DefaultRetention = 100

// Manager owns the running and finished jobs. Every job runs the same
// scraper set with the same orchestrator options. Only the most recently
// finished jobs are kept; running jobs are never evicted.
type Manager struct {
	scrapers []scraper.Scraper
	opts     orchestrator.Options
	retain   int

	mu   sync.RWMutex
	jobs map[string]*entry
	wg   sync.WaitGroup
	now  func() time.Time
}

// NewManager creates a job manager keeping up to retain finished jobs.
// opts.OnResult is replaced per job.
func NewManager(scrapers []scraper.Scraper, opts orchestrator.Options, retain int) *Manager {
	if retain <= 0 {
		retain = DefaultRetention
	}
	return &Manager{
		scrapers: scrapers,
		opts:     opts,
		retain:   retain,
		jobs:     make(map[string]*entry),
		now:      time.Now,
	}
}

// Start launches a job over leads and returns its initial snapshot. The job
// is not bound to the caller's context; use Cancel or Shutdown to stop it.
func (m *Manager) Start(leads []model.LeadInput) Snapshot {
	ctx, cancel := context.WithCancel(context.Background())
	e := &entry{
		snap: Snapshot{
			ID:        uuid.New().String(),
			State:     Running,
			Total:     len(leads),
			CreatedAt: m.now(),
		},
		cancel: cancel,
	}

	m.mu.Lock()
	m.jobs[e.snap.ID] = e
	snap := e.snap
	m.mu.Unlock()

	opts := m.opts
	opts.OnResult = func(index, _ int, _ *model.AggregatedLeadResult) {
		m.mu.Lock()
		e.snap.Processed = index + 1
		m.mu.Unlock()
	}
	orch := orchestrator.New(m.scrapers, opts)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		results, err := orch.Verify(ctx, leads)
		m.finish(ctx, e, results, err)
	}()

	zap.L().Info("job started", zap.String("job_id", snap.ID), zap.Int("leads", snap.Total))
	return snap
}

func (m *Manager) finish(ctx context.Context, e *entry, results []*model.AggregatedLeadResult, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	finished := m.now()
	e.snap.FinishedAt = &finished
	e.snap.Results = results
	e.snap.Processed = len(results)
	switch {
	case err != nil:
		e.snap.State = Failed
		e.snap.Error = err.Error()
	case ctx.Err() != nil && len(results) < e.snap.Total:
		e.snap.State = Cancelled
	default:
		e.snap.State = Completed
	}
	m.prune()

	log := zap.L().With(zap.String("job_id", e.snap.ID), zap.String("state", string(e.snap.State)))
	if err != nil {
		log.Error("job failed", zap.Error(err))
		return
	}
	log.Info("job finished", zap.Int("processed", e.snap.Processed), zap.Int("total", e.snap.Total))
}

// prune drops the oldest finished jobs beyond the retention limit. Callers
// hold m.mu.
func (m *Manager) prune() {
	var done []*entry
	for _, e := range m.jobs {
		if e.snap.State.Done() {
			done = append(done, e)
		}
	}
	if len(done) <= m.retain {
		return
	}
	sort.Slice(done, func(i, j int) bool {
		a, b := done[i].snap, done[j].snap
		if a.FinishedAt.Equal(*b.FinishedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.FinishedAt.Before(*b.FinishedAt)
	})
	for _, e := range done[:len(done)-m.retain] {
		delete(m.jobs, e.snap.ID)
		zap.L().Debug("job evicted", zap.String("job_id", e.snap.ID))
	}
}

// Get returns a snapshot of the job.
func (m *Manager) Get(id string) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.jobs[id]
	if !ok {
		return Snapshot{}, eris.Wrapf(ErrNotFound, "job %s", id)
	}
	return e.snap, nil
}

// List returns snapshots of all jobs, oldest first, without results.
func (m *Manager) List() []Snapshot {
	m.mu.RLock()
	out := make([]Snapshot, 0, len(m.jobs))
	for _, e := range m.jobs {
		s := e.snap
		s.Results = nil
		out = append(out, s)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Cancel stops a running job. The job keeps the leads processed so far.
// Cancelling a finished job is a no-op.
func (m *Manager) Cancel(id string) (Snapshot, error) {
	m.mu.RLock()
	e, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return Snapshot{}, eris.Wrapf(ErrNotFound, "job %s", id)
	}
	e.cancel()
	zap.L().Info("job cancel requested", zap.String("job_id", id))
	return m.Get(id)
}

// Wait blocks until every started job has finished.
func (m *Manager) Wait() { m.wg.Wait() }

// Shutdown cancels all running jobs and waits for them, or for ctx.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.RLock()
	for _, e := range m.jobs {
		e.cancel()
	}
	m.mu.RUnlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "job: shutdown")
	}
}
