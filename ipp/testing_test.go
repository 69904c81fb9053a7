package ipp

import (
	"context"
	"testing"

	"github.com/gopherprint/ippserver/job"
	"github.com/gopherprint/ippserver/printer"
)

// newTestServer builds a Server wired to one printer, "print/p1", and
// a job manager whose ProcessFunc is supplied by the caller so tests
// can control (or ignore) job execution.
func newTestServer(t *testing.T, process job.ProcessFunc) (*Server, *printer.Printer) {
	t.Helper()
	registry := printer.NewRegistry()
	p := printer.New("print/p1", "ipp://localhost:631/ipp", "Test Printer")
	if err := registry.Add(p); err != nil {
		t.Fatalf("registry.Add: %v", err)
	}
	if process == nil {
		process = func(ctx context.Context, j *job.Job) error { return nil }
	}
	jobs := job.NewManager(registry, process)
	t.Cleanup(func() { jobs.Close() })
	s := NewServer("ipp://localhost:631/ipp", t.TempDir(), ServerConfig{}, registry, jobs)
	return s, p
}
