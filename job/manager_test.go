package job

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gopherprint/ippserver/printer"
)

func newTestRegistry(t *testing.T) (*printer.Registry, *printer.Printer) {
	t.Helper()
	r := printer.NewRegistry()
	p := printer.New("print/p1", "ipp://host:631/ipp", "Test Printer")
	require.NoError(t, r.Add(p))
	return r, p
}

func TestManager_CreateAssignsMonotoneIDs(t *testing.T) {
	r, p := newTestRegistry(t)
	m := NewManager(r, func(ctx context.Context, j *Job) error { return nil })
	defer m.Close()

	j1 := m.Create(p, p.URI, p.URI+"/job", "a.pdf", "alice", false)
	j2 := m.Create(p, p.URI, p.URI+"/job", "b.pdf", "alice", false)
	j3 := m.Create(p, p.URI, p.URI+"/job", "c.pdf", "alice", false)

	assert.EqualValues(t, 1, j1.ID())
	assert.EqualValues(t, 2, j2.ID())
	assert.EqualValues(t, 3, j3.ID())
}

func TestManager_FindByPrinterAndID(t *testing.T) {
	r, p := newTestRegistry(t)
	m := NewManager(r, func(ctx context.Context, j *Job) error { return nil })
	defer m.Close()

	created := m.Create(p, p.URI, p.URI+"/job", "a.pdf", "alice", false)

	found, ok := m.Find(p.Name, created.ID())
	require.True(t, ok)
	assert.Same(t, created, found)

	_, ok = m.Find(p.Name, created.ID()+1)
	assert.False(t, ok)
}

func TestManager_ActiveJobsOrderedByPriorityDescThenIDAsc(t *testing.T) {
	r, p := newTestRegistry(t)
	m := NewManager(r, func(ctx context.Context, j *Job) error { return nil })
	defer m.Close()

	low := m.Create(p, p.URI, p.URI+"/job", "low.pdf", "alice", false)
	low.PriorityValue = 10
	high := m.Create(p, p.URI, p.URI+"/job", "high.pdf", "alice", false)
	high.PriorityValue = 90
	mid1 := m.Create(p, p.URI, p.URI+"/job", "mid1.pdf", "alice", false)
	mid1.PriorityValue = 50
	mid2 := m.Create(p, p.URI, p.URI+"/job", "mid2.pdf", "alice", false)
	mid2.PriorityValue = 50

	p.RLock()
	active := p.ActiveJobs()
	p.RUnlock()

	require.Len(t, active, 4)
	assert.Equal(t, high.ID(), active[0].ID())
	assert.Equal(t, mid1.ID(), active[1].ID())
	assert.Equal(t, mid2.ID(), active[2].ID())
	assert.Equal(t, low.ID(), active[3].ID())
}

func TestManager_CheckJobsEnforcesSingleProcessingJob(t *testing.T) {
	r, p := newTestRegistry(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	var enteredOnce sync.Once
	m := NewManager(r, func(ctx context.Context, j *Job) error {
		// runJob re-runs the scheduler when the first job finishes, so
		// the second job reaches this function too.
		enteredOnce.Do(func() { close(entered) })
		<-release
		return nil
	})
	defer m.Close()

	first := m.Create(p, p.URI, p.URI+"/job", "a.pdf", "alice", false)
	second := m.Create(p, p.URI, p.URI+"/job", "b.pdf", "alice", false)

	m.CheckJobs(context.Background(), p)
	<-entered

	assert.Equal(t, first.ID(), p.ProcessingJobID())

	// a second scheduling pass while a job is already processing must
	// not start the next job.
	m.CheckJobs(context.Background(), p)
	assert.Equal(t, StatePending, second.State())

	close(release)

	require.Eventually(t, func() bool {
		return first.IsCompleted()
	}, time.Second, time.Millisecond)
}

func TestManager_SweepReapsRetainedCompletedJobs(t *testing.T) {
	r, p := newTestRegistry(t)
	m := NewManager(r, func(ctx context.Context, j *Job) error { return nil })
	defer m.Close()

	j := m.Create(p, p.URI, p.URI+"/job", "a.pdf", "alice", false)
	require.NoError(t, j.Event(context.Background(), evtProcess))
	require.NoError(t, j.Event(context.Background(), evtComplete))
	j.Completed = time.Now().Add(-2 * Retention)

	m.sweep()

	_, ok := m.Find(p.Name, j.ID())
	assert.False(t, ok)

	p.RLock()
	defer p.RUnlock()
	for _, ref := range p.AllJobs() {
		assert.NotEqual(t, j.ID(), ref.ID())
	}
}

func TestManager_SweepKeepsCompletedJobsWithinRetention(t *testing.T) {
	r, p := newTestRegistry(t)
	m := NewManager(r, func(ctx context.Context, j *Job) error { return nil })
	defer m.Close()

	j := m.Create(p, p.URI, p.URI+"/job", "a.pdf", "alice", false)
	require.NoError(t, j.Event(context.Background(), evtProcess))
	require.NoError(t, j.Event(context.Background(), evtComplete))

	m.sweep()

	_, ok := m.Find(p.Name, j.ID())
	assert.True(t, ok)
}
