// Package admin serves the printer's human-facing status surface:
// GET / (state, state-reasons, job table), GET /icon.png, and the
// read-only GET /media and /supplies informational pages. Grounded on
// ippsrv/http.go's handleAdmin stub, generalized into an actual page,
// and on html/template since no example in the pack pulls in a
// third-party HTML templating library — the natural stdlib
// counterpart for this one ambient surface.
package admin

import (
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sort"

	"github.com/gopherprint/ippserver/job"
	"github.com/gopherprint/ippserver/printer"
)

// Handler serves the admin surface for a single printer registry.
type Handler struct {
	Registry *printer.Registry
	Jobs     *job.Manager
	IconPath string
}

// Register installs the admin routes on mux. Unrecognized paths under
// this handler's prefix 404
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.status)
	mux.HandleFunc("GET /icon.png", h.icon)
	mux.HandleFunc("GET /media", h.media)
	mux.HandleFunc("GET /supplies", h.supplies)
}

type printerRow struct {
	Name    string
	State   string
	Reasons []string
	Jobs    []jobRow
}

type jobRow struct {
	ID      int32
	Name    string
	User    string
	State   string
	Reasons []string
}

var statusTmpl = template.Must(template.New("status").Parse(`<!DOCTYPE html>
<html>
<head><title>IPP Server Status</title></head>
<body>
<h1>Printers</h1>
{{range .}}
<h2>{{.Name}}</h2>
<p>State: {{.State}}{{if .Reasons}} ({{range .Reasons}}{{.}} {{end}}){{end}}</p>
<table border="1" cellpadding="4">
<tr><th>Job ID</th><th>Name</th><th>User</th><th>State</th><th>Reasons</th></tr>
{{range .Jobs}}
<tr><td>{{.ID}}</td><td>{{.Name}}</td><td>{{.User}}</td><td>{{.State}}</td><td>{{range .Reasons}}{{.}} {{end}}</td></tr>
{{end}}
</table>
{{end}}
</body>
</html>
`))

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	var rows []printerRow
	for _, p := range h.Registry.All() {
		row := printerRow{
			Name:    p.Name,
			State:   p.State().String(),
			Reasons: p.Reasons().Strings(),
		}
		jobs := h.Jobs.ByPrinter(p)
		sort.Slice(jobs, func(i, k int) bool { return jobs[i].ID() < jobs[k].ID() })
		for _, j := range jobs {
			row.Jobs = append(row.Jobs, jobRow{
				ID:      j.ID(),
				Name:    j.Name,
				User:    j.Username,
				State:   j.State().String(),
				Reasons: j.Reason().Strings(),
			})
		}
		rows = append(rows, row)
	}

	w.Header().Set("Content-Type", "text/html")
	if err := statusTmpl.Execute(w, rows); err != nil {
		slog.ErrorContext(r.Context(), "failed to render status page", "error", err)
	}
}

func (h *Handler) icon(w http.ResponseWriter, r *http.Request) {
	if h.IconPath == "" {
		http.NotFound(w, r)
		return
	}
	f, err := os.Open(h.IconPath)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	w.Header().Set("Content-Type", "image/png")
	if _, err := io.Copy(w, f); err != nil {
		slog.ErrorContext(r.Context(), "failed to serve icon", "error", err)
	}
}

// media and supplies are read-only GET informational pages. Per
// 's open question about the original's disabled #if 0 HTML
// forms, these stay informational-only with no state-mutating form
// processing, matching the source comment that those paths were
// test-only and should stay disabled in a reimplementation.
func (h *Handler) media(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(`<!DOCTYPE html><html><body><h1>Media</h1><p>Supported media sizes are reported via the IPP media-supported attribute.</p></body></html>`))
}

func (h *Handler) supplies(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(`<!DOCTYPE html><html><body><h1>Supplies</h1><p>This printer does not report consumable levels.</p></body></html>`))
}
