package job

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/gopherprint/ippserver/printer"
)

// Retention is how long a job stays in all-jobs after reaching a
// terminal state before the janitor reaps it ( "destroyed
// by the janitor one minute after entering a terminal state"); the
// sweep deletes the job's spool file as it reaps the job.
const Retention = 60 * time.Second

// ProcessFunc runs a pending job to completion: spawn the transform,
// stream the output, and drive the job's state machine to its
// terminal event. Wired by the server to transform.Runner.Run, kept
// abstract here to avoid an import cycle between job and transform.
type ProcessFunc func(ctx context.Context, j *Job) error

// Manager is component G, generalized from ippsrv/spool.go's spool
// type: it owns the printer registry's jobs-by-printer index, runs
// the scheduler (CheckJobs) and the janitor sweep.
type Manager struct {
	registry *printer.Registry
	process  ProcessFunc

	mu      sync.Mutex
	jobs    map[int32]*Job // global id -> job, ids are per-printer but namespaced here by (printer,id) via compoundKey
	byKey   map[string]*Job
	stopCh  chan struct{}
	janitor *time.Ticker
}

func compoundKey(printerName string, id int32) string {
	return fmt.Sprintf("%s#%d", printerName, id)
}

// NewManager creates a job manager bound to a registry and a process
// function, and starts its janitor goroutine, the same way a spool
// constructor starts its own worker goroutine inline.
func NewManager(registry *printer.Registry, process ProcessFunc) *Manager {
	m := &Manager{
		registry: registry,
		process:  process,
		jobs:     make(map[int32]*Job),
		byKey:    make(map[string]*Job),
		stopCh:   make(chan struct{}),
		janitor:  time.NewTicker(5 * time.Second),
	}
	go m.janitorLoop()
	return m
}

// Close stops the janitor goroutine.
func (m *Manager) Close() error {
	close(m.stopCh)
	m.janitor.Stop()
	return nil
}

func (m *Manager) janitorLoop() {
	for {
		select {
		case <-m.stopCh:
			return
		case <-m.janitor.C:
			m.sweep()
		}
	}
}

func (m *Manager) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, j := range m.byKey {
		if !j.IsCompleted() {
			continue
		}
		if time.Since(j.Completed) <= Retention {
			continue
		}
		p, ok := m.registry.Get(printerNameFromKey(key))
		if ok {
			p.Lock()
			p.RemoveJob(j.ID())
			p.Unlock()
		}
		if j.SpoolFilename != "" {
			_ = os.Remove(j.SpoolFilename)
		}
		delete(m.byKey, key)
		delete(m.jobs, j.ID())
		slog.Info("janitor reaped job", "job_id", j.ID(), "completed_at", j.Completed)
	}
}

func printerNameFromKey(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == '#' {
			return key[:i]
		}
	}
	return key
}

// Create allocates a job id from the printer's next-job-id counter
// under the printer write lock and registers it
// "Job creation".
func (m *Manager) Create(p *printer.Printer, printerURI, baseJobURI, name, username string, createHeld bool) *Job {
	p.Lock()
	id := p.NextJobID()
	j := New(id, p, printerURI, fmt.Sprintf("%s/%d", baseJobURI, id), name, username, createHeld)
	p.AddJob(j)
	p.Unlock()

	m.mu.Lock()
	m.jobs[id] = j
	m.byKey[compoundKey(p.Name, id)] = j
	m.mu.Unlock()
	return j
}

// Find looks a job up by (printer, id) "Find semantics".
func (m *Manager) Find(printerName string, id int32) (*Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.byKey[compoundKey(printerName, id)]
	return j, ok
}

// ByPrinter returns all jobs currently tracked for a printer, newest
// first, per the printer's all-jobs ordering.
func (m *Manager) ByPrinter(p *printer.Printer) []*Job {
	p.RLock()
	refs := p.AllJobs()
	p.RUnlock()

	out := make([]*Job, 0, len(refs))
	for _, ref := range refs {
		if j, ok := ref.(*Job); ok {
			out = append(out, j)
		}
	}
	return out
}

// CheckJobs is the scheduler entry point from 
// "Scheduling": returns immediately if a job is already processing;
// otherwise picks the first pending job ordered by (priority desc, id
// asc) and spawns its processing task. Spawn failure aborts the job.
func (m *Manager) CheckJobs(ctx context.Context, p *printer.Printer) {
	p.Lock()
	if p.ProcessingJobID() != 0 {
		p.Unlock()
		return
	}
	active := p.ActiveJobs()
	var next *Job
	for _, ref := range active {
		if j, ok := ref.(*Job); ok && j.State() == StatePending {
			next = j
			break
		}
	}
	p.Unlock()
	if next == nil {
		return
	}
	go m.runJob(ctx, p, next)
}

// runJob is the processing task from  "Processing task":
// it drives the job through process -> (the transform, run with the
// printer lock released) -> complete/abort, and re-triggers the
// scheduler so the next pending job (if any) gets picked up.
func (m *Manager) runJob(ctx context.Context, p *printer.Printer, j *Job) {
	jobCtx, cancel := context.WithCancel(ctx)
	j.SetCancelFunc(cancel)
	defer cancel()

	if err := j.Event(jobCtx, evtProcess); err != nil {
		slog.Error("failed to start job processing", "job_id", j.ID(), "error", err)
		return
	}

	p.Lock()
	p.SetState(printer.StateProcessing)
	p.Unlock()

	err := m.process(jobCtx, j)

	if err != nil {
		slog.Error("job transform failed", "job_id", j.ID(), "error", err)
		_ = j.Event(jobCtx, evtAbort, ReasonAbortedBySystem)
	} else {
		_ = j.Event(jobCtx, evtComplete)
	}

	p.Lock()
	if len(p.ActiveJobs()) == 0 {
		p.SetState(printer.StateIdle)
	}
	p.Unlock()

	// a completed/aborted job frees the single-processing-job slot;
	// immediately offer it to the next pending job.
	m.CheckJobs(ctx, p)
}

// Cancel implements Cancel-Job: flips the job to canceled and, if it
// is currently processing, requests the in-flight transform stop
// ( "Cancellation / timeouts").
func (m *Manager) Cancel(ctx context.Context, j *Job, reason StateReason) error {
	wasProcessing := j.State() == StateProcessing
	if err := j.Event(ctx, evtCancel, reason); err != nil {
		return err
	}
	if wasProcessing {
		j.RequestCancel()
	}
	return nil
}

// SortByCompletion orders jobs by completed-time asc, id asc, per
//  "Completed jobs are ordered by (completed-time asc, id
// asc)".
func SortByCompletion(jobs []*Job) {
	sort.Slice(jobs, func(i, k int) bool {
		if jobs[i].Completed.Equal(jobs[k].Completed) {
			return jobs[i].ID() < jobs[k].ID()
		}
		return jobs[i].Completed.Before(jobs[k].Completed)
	})
}
