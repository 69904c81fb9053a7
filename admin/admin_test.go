package admin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gopherprint/ippserver/job"
	"github.com/gopherprint/ippserver/printer"
)

func newTestHandler(t *testing.T) (*Handler, *printer.Printer) {
	t.Helper()
	registry := printer.NewRegistry()
	p := printer.New("print/p1", "ipp://localhost:631/ipp", "Test Printer")
	require.NoError(t, registry.Add(p))
	jobs := job.NewManager(registry, func(ctx context.Context, j *job.Job) error { return nil })
	t.Cleanup(func() { jobs.Close() })
	return &Handler{Registry: registry, Jobs: jobs}, p
}

func TestHandler_StatusListsPrinterAndJobs(t *testing.T) {
	h, p := newTestHandler(t)
	j := h.Jobs.Create(p, p.URI, p.URI+"/job", "report.pdf", "alice", false)
	_ = j

	rec := httptest.NewRecorder()
	h.status(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "print/p1")
	assert.Contains(t, rec.Body.String(), "report.pdf")
	assert.Contains(t, rec.Body.String(), "alice")
}

func TestHandler_StatusWithNoJobsStillRenders(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := httptest.NewRecorder()
	h.status(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html", rec.Header().Get("Content-Type"))
}

func TestHandler_IconMissingPathReturns404(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := httptest.NewRecorder()
	h.icon(rec, httptest.NewRequest(http.MethodGet, "/icon.png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_IconServesConfiguredFile(t *testing.T) {
	h, _ := newTestHandler(t)
	path := filepath.Join(t.TempDir(), "icon.png")
	require.NoError(t, os.WriteFile(path, []byte("fake png bytes"), 0644))
	h.IconPath = path

	rec := httptest.NewRecorder()
	h.icon(rec, httptest.NewRequest(http.MethodGet, "/icon.png", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "fake png bytes", rec.Body.String())
}

func TestHandler_MediaAndSuppliesServeInformationalPages(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.media(rec, httptest.NewRequest(http.MethodGet, "/media", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Media")

	rec = httptest.NewRecorder()
	h.supplies(rec, httptest.NewRequest(http.MethodGet, "/supplies", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Supplies")
}

func TestHandler_RegisterWiresRoutes(t *testing.T) {
	h, _ := newTestHandler(t)
	mux := http.NewServeMux()
	h.Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/media", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
