package ipp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/OpenPrinting/goipp"
	"github.com/gopherprint/ippserver/job"
	"github.com/gopherprint/ippserver/printer"
)

// Handler is the per-operation dispatch signature, generalized from
// ippsrv/ipp.go's IPPHandlerFunc to also carry the already-resolved
// printer (when the operation is printer-scoped) plus the document
// body stream, since bodies here can be large multi-megabyte spool
// files rather than small in-memory []byte.
type Handler func(ctx context.Context, req *goipp.Message, body io.Reader) (*goipp.Message, error)

// Server is component D/E: the IPP attribute codec plus operation
// dispatcher, generalized from ippsrv's basicIPPServer (one printer
// map, one spool) to the full operation set and multi-printer
// resolution this spec names.
type Server struct {
	BaseURI  string
	SpoolDir string
	Config   ServerConfig

	Registry *printer.Registry
	Jobs     *job.Manager

	handlers map[goipp.Op]Handler
}

func NewServer(baseURI, spoolDir string, cfg ServerConfig, registry *printer.Registry, jobs *job.Manager) *Server {
	s := &Server{
		BaseURI:  baseURI,
		SpoolDir: spoolDir,
		Config:   cfg,
		Registry: registry,
		Jobs:     jobs,
	}
	s.handlers = map[goipp.Op]Handler{
		goipp.OpPrintJob:                  s.handlePrintJob,
		goipp.OpPrintUri:                  s.handlePrintURI,
		goipp.OpValidateJob:               s.handleValidateJob,
		goipp.OpValidateDocument:          s.handleValidateJob,
		goipp.OpCreateJob:                 s.handleCreateJob,
		goipp.OpSendDocument:              s.handleSendDocument,
		goipp.OpSendUri:                   s.handleSendURI,
		goipp.OpCancelJob:                 s.handleCancelJob,
		goipp.OpGetJobAttributes:          s.handleGetJobAttributes,
		goipp.OpGetJobs:                   s.handleGetJobs,
		goipp.OpGetPrinterAttributes:      s.handleGetPrinterAttributes,
		goipp.OpGetPrinterSupportedValues: s.handleGetPrinterAttributes,
		goipp.OpCancelMyJobs:              s.handleCancelMyJobs,
		goipp.OpCloseJob:                  s.handleCloseJob,
		goipp.OpIdentifyPrinter:           s.handleIdentifyPrinter,
		goipp.OpGetDocuments:              s.handleGetDocuments,
	}
	s.registerSubscriptionOps()
	s.registerProxyOps()
	return s
}

// ServeIPP is the single entry point used by the transport/framer
// layer, generalized from basicIPPServer.ServeIPP's op -> handler
// lookup to return a well-formed client-error-operation-not-supported
// response instead of a bare Go error for unknown operations.
func (s *Server) ServeIPP(ctx context.Context, req *goipp.Message, body io.Reader) (*goipp.Message, error) {
	op := goipp.Op(req.Code)
	lg := slog.With("operation", op, "request_id", req.RequestID)

	handler, ok := s.handlers[op]
	if !ok {
		lg.Warn("unsupported ipp operation")
		return errorResponse(req.RequestID, goipp.StatusErrorOperationNotSupported, fmt.Sprintf("operation %s not supported", op)), nil
	}
	resp, err := handler(ctx, req, body)
	if err != nil {
		lg.Error("ipp operation failed", "error", err)
		return errorResponse(req.RequestID, goipp.StatusErrorBadRequest, err.Error()), nil
	}
	return resp, nil
}

// printerFromRequest resolves printer-uri to a registered printer,
// generalized from ippsrv/ipp.go's printerFromRequest to this
// server's multi-printer registry lookup.
func (s *Server) printerFromRequest(req *goipp.Message) (*printer.Printer, error) {
	raw, err := extractValue[goipp.String](req.Operation, "printer-uri")
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(raw.String())
	if err != nil {
		return nil, fmt.Errorf("invalid printer-uri %q: %w", raw, err)
	}
	if u.Scheme != "ipp" && u.Scheme != "ipps" {
		return nil, fmt.Errorf("printer-uri %q has unsupported scheme %q", raw, u.Scheme)
	}
	basePath := s.BaseURI
	if bu, err := url.Parse(s.BaseURI); err == nil {
		basePath = bu.Path
	}
	p, ok := s.Registry.FromURIPath(basePath, u.Path)
	if !ok {
		return nil, fmt.Errorf("no such printer: %s", raw)
	}
	return p, nil
}

func (s *Server) handleGetPrinterAttributes(ctx context.Context, req *goipp.Message, _ io.Reader) (*goipp.Message, error) {
	p, err := s.printerFromRequest(req)
	if err != nil {
		return nil, err
	}
	requested := extractStrings(req.Operation, "requested-attributes")
	g := BuildPrinterAttributes(p, s.BaseURI, s.Config)

	resp := newResponse(req.RequestID, goipp.StatusOk)
	resp.Printer = g.Filter(requested)
	return resp, nil
}

func (s *Server) handleGetJobAttributes(ctx context.Context, req *goipp.Message, _ io.Reader) (*goipp.Message, error) {
	p, err := s.printerFromRequest(req)
	if err != nil {
		return nil, err
	}
	id, err := extractValue[goipp.Integer](req.Operation, "job-id")
	if err != nil {
		return nil, err
	}
	j, ok := s.Jobs.Find(p.Name, int32(id))
	if !ok {
		return errorResponse(req.RequestID, goipp.StatusErrorNotFound, "job not found"), nil
	}
	requested := extractStrings(req.Operation, "requested-attributes")
	resp := newResponse(req.RequestID, goipp.StatusOk)
	resp.Job = BuildJobAttributes(j).Filter(requested)
	return resp, nil
}

func (s *Server) handleGetJobs(ctx context.Context, req *goipp.Message, _ io.Reader) (*goipp.Message, error) {
	p, err := s.printerFromRequest(req)
	if err != nil {
		return nil, err
	}
	username, _ := extractValue[goipp.String](req.Operation, "requesting-user-name")
	myJobs, _ := extractValue[goipp.Boolean](req.Operation, "my-jobs")
	which, _ := extractValue[goipp.String](req.Operation, "which-jobs")
	requested := extractStrings(req.Operation, "requested-attributes")

	jobs := s.Jobs.ByPrinter(p)
	resp := newResponse(req.RequestID, goipp.StatusOk)
	for _, j := range jobs {
		if bool(myJobs) && username != "" && j.Username != username.String() {
			continue
		}
		if which.String() == "completed" && !j.IsCompleted() {
			continue
		}
		if which.String() == "not-completed" && j.IsCompleted() {
			continue
		}
		resp.Job = append(resp.Job, BuildJobAttributes(j).Filter(requested)...)
	}
	return resp, nil
}

// handleValidateJob implements Validate-Job/Validate-Document: per
// RFC 8011 §4.2.3, it performs the same job-attribute validation
// Print-Job would, without creating a job or consuming document data.
func (s *Server) handleValidateJob(ctx context.Context, req *goipp.Message, _ io.Reader) (*goipp.Message, error) {
	if _, err := s.printerFromRequest(req); err != nil {
		return nil, err
	}
	if err := validateJobTemplate(req.Operation); err != nil {
		return errorResponse(req.RequestID, goipp.StatusErrorAttributesOrValues, err.Error()), nil
	}
	return newResponse(req.RequestID, goipp.StatusOk), nil
}

// validateJobTemplate checks the copies bound ("copies=0 or
// copies=10000 both fail setup").
func validateJobTemplate(attrs goipp.Attributes) error {
	if v, err := extractValue[goipp.Integer](attrs, "copies"); err == nil {
		if v < 1 || v > 9999 {
			return fmt.Errorf("copies %d out of range [1,9999]", v)
		}
	}
	return nil
}

func (s *Server) handleCreateJob(ctx context.Context, req *goipp.Message, _ io.Reader) (*goipp.Message, error) {
	p, err := s.printerFromRequest(req)
	if err != nil {
		return nil, err
	}
	if err := validateJobTemplate(req.Operation); err != nil {
		return errorResponse(req.RequestID, goipp.StatusErrorAttributesOrValues, err.Error()), nil
	}
	name := stringOr(req.Operation, "job-name", "")
	username := stringOr(req.Operation, "requesting-user-name", "anonymous")

	// The job is created pending, not pending-held; it is not scheduled
	// until Send-Document spools its data and runs CheckJobs.
	j := s.Jobs.Create(p, p.URI, p.URI+"/job", name, username, false)
	j.SetAttributes(req.Operation)

	resp := newResponse(req.RequestID, goipp.StatusOk)
	a := adder(&resp.Operation)
	a("job-uri", goipp.TagURI, goipp.String(j.JobURI))
	a("job-id", goipp.TagInteger, goipp.Integer(j.ID()))
	a("job-state", goipp.TagEnum, goipp.Integer(j.State()))
	return resp, nil
}

// handlePrintJob implements Print-Job: create-then-send-document in
// one request, per RFC 8011 §4.2.1. Grounded on ippsrv/ipp.go's
// handlePrintJob, generalized to this server's spool-to-file model:
// the transform subprocess reads the document from a spool file
// rather than from memory.
func (s *Server) handlePrintJob(ctx context.Context, req *goipp.Message, body io.Reader) (*goipp.Message, error) {
	p, err := s.printerFromRequest(req)
	if err != nil {
		return nil, err
	}
	if err := validateJobTemplate(req.Operation); err != nil {
		return errorResponse(req.RequestID, goipp.StatusErrorAttributesOrValues, err.Error()), nil
	}
	name := stringOr(req.Operation, "job-name", "")
	username := stringOr(req.Operation, "requesting-user-name", "anonymous")
	format := stringOr(req.Operation, "document-format", "application/octet-stream")

	j := s.Jobs.Create(p, p.URI, p.URI+"/job", name, username, false)
	j.SetAttributes(req.Operation)
	j.Format = format

	if err := s.spoolDocument(p, j, body); err != nil {
		return nil, fmt.Errorf("spooling document: %w", err)
	}
	s.Jobs.CheckJobs(ctx, p)

	resp := newResponse(req.RequestID, goipp.StatusOk)
	a := adder(&resp.Operation)
	a("job-uri", goipp.TagURI, goipp.String(j.JobURI))
	a("job-id", goipp.TagInteger, goipp.Integer(j.ID()))
	a("job-state", goipp.TagEnum, goipp.Integer(j.State()))
	return resp, nil
}

func (s *Server) handleSendDocument(ctx context.Context, req *goipp.Message, body io.Reader) (*goipp.Message, error) {
	p, err := s.printerFromRequest(req)
	if err != nil {
		return nil, err
	}
	id, err := extractValue[goipp.Integer](req.Operation, "job-id")
	if err != nil {
		return nil, err
	}
	j, ok := s.Jobs.Find(p.Name, int32(id))
	if !ok {
		return errorResponse(req.RequestID, goipp.StatusErrorNotFound, "job not found"), nil
	}
	if format, err := extractValue[goipp.String](req.Operation, "document-format"); err == nil {
		j.Format = format.String()
	}
	if err := s.spoolDocument(p, j, body); err != nil {
		return nil, fmt.Errorf("spooling document: %w", err)
	}
	// multiple-document-jobs-supported is false: every Send-Document is
	// necessarily the job's last (and only) document.
	s.Jobs.CheckJobs(ctx, p)

	resp := newResponse(req.RequestID, goipp.StatusOk)
	a := adder(&resp.Operation)
	a("job-id", goipp.TagInteger, goipp.Integer(j.ID()))
	a("job-state", goipp.TagEnum, goipp.Integer(j.State()))
	return resp, nil
}

// handlePrintURI/handleSendURI implement the URI-fetch variants
// (RFC 8011 §4.2.2/§4.3.2): the server itself fetches the document
// from the given URI rather than reading the request body. Only
// file:// is supported locally; a general HTTP document fetcher is
// out of scope.
func (s *Server) handlePrintURI(ctx context.Context, req *goipp.Message, _ io.Reader) (*goipp.Message, error) {
	docURI, err := extractValue[goipp.String](req.Operation, "document-uri")
	if err != nil {
		return nil, err
	}
	r, err := openDocumentURI(docURI.String())
	if err != nil {
		return errorResponse(req.RequestID, goipp.StatusErrorDocumentAccess, err.Error()), nil
	}
	defer r.Close()
	return s.handlePrintJob(ctx, req, r)
}

func (s *Server) handleSendURI(ctx context.Context, req *goipp.Message, _ io.Reader) (*goipp.Message, error) {
	docURI, err := extractValue[goipp.String](req.Operation, "document-uri")
	if err != nil {
		return nil, err
	}
	r, err := openDocumentURI(docURI.String())
	if err != nil {
		return errorResponse(req.RequestID, goipp.StatusErrorDocumentAccess, err.Error()), nil
	}
	defer r.Close()
	return s.handleSendDocument(ctx, req, r)
}

func openDocumentURI(raw string) (*os.File, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid document-uri: %w", err)
	}
	if u.Scheme != "file" {
		return nil, fmt.Errorf("unsupported document-uri scheme %q", u.Scheme)
	}
	return os.Open(u.Path)
}

func (s *Server) handleCancelJob(ctx context.Context, req *goipp.Message, _ io.Reader) (*goipp.Message, error) {
	p, err := s.printerFromRequest(req)
	if err != nil {
		return nil, err
	}
	id, err := extractValue[goipp.Integer](req.Operation, "job-id")
	if err != nil {
		return nil, err
	}
	j, ok := s.Jobs.Find(p.Name, int32(id))
	if !ok {
		return errorResponse(req.RequestID, goipp.StatusErrorNotFound, "job not found"), nil
	}
	if err := s.Jobs.Cancel(ctx, j, job.ReasonJobCanceledByUser); err != nil {
		return errorResponse(req.RequestID, goipp.StatusErrorNotPossible, err.Error()), nil
	}
	return newResponse(req.RequestID, goipp.StatusOk), nil
}

func (s *Server) handleCancelMyJobs(ctx context.Context, req *goipp.Message, _ io.Reader) (*goipp.Message, error) {
	p, err := s.printerFromRequest(req)
	if err != nil {
		return nil, err
	}
	username := stringOr(req.Operation, "requesting-user-name", "")
	for _, j := range s.Jobs.ByPrinter(p) {
		if username != "" && j.Username != username {
			continue
		}
		if j.IsActive() {
			_ = s.Jobs.Cancel(ctx, j, job.ReasonJobCanceledByUser)
		}
	}
	return newResponse(req.RequestID, goipp.StatusOk), nil
}

// handleCloseJob implements Close-Job (PWG 5100.11): since this
// server rejects multiple-document-jobs, a job is already "closed" as
// soon as its single document has been sent, so this is a status
// check rather than a state transition.
func (s *Server) handleCloseJob(ctx context.Context, req *goipp.Message, _ io.Reader) (*goipp.Message, error) {
	p, err := s.printerFromRequest(req)
	if err != nil {
		return nil, err
	}
	id, err := extractValue[goipp.Integer](req.Operation, "job-id")
	if err != nil {
		return nil, err
	}
	if _, ok := s.Jobs.Find(p.Name, int32(id)); !ok {
		return errorResponse(req.RequestID, goipp.StatusErrorNotFound, "job not found"), nil
	}
	return newResponse(req.RequestID, goipp.StatusOk), nil
}

// handleIdentifyPrinter implements Identify-Printer (PWG 5100.13): in
// the absence of a physical indicator, this server logs the request
// at info level with the requested identify-actions
func (s *Server) handleIdentifyPrinter(ctx context.Context, req *goipp.Message, _ io.Reader) (*goipp.Message, error) {
	p, err := s.printerFromRequest(req)
	if err != nil {
		return nil, err
	}
	actions := extractStrings(req.Operation, "identify-actions")
	slog.Info("identify-printer", "printer", p.Name, "actions", actions)
	return newResponse(req.RequestID, goipp.StatusOk), nil
}

// handleGetDocuments implements Get-Documents (PWG 5100.19): this
// server keeps exactly one document per job, so the response is
// either empty (no document spooled yet) or a single document-object
// group describing it.
func (s *Server) handleGetDocuments(ctx context.Context, req *goipp.Message, _ io.Reader) (*goipp.Message, error) {
	p, err := s.printerFromRequest(req)
	if err != nil {
		return nil, err
	}
	id, err := extractValue[goipp.Integer](req.Operation, "job-id")
	if err != nil {
		return nil, err
	}
	j, ok := s.Jobs.Find(p.Name, int32(id))
	if !ok {
		return errorResponse(req.RequestID, goipp.StatusErrorNotFound, "job not found"), nil
	}
	resp := newResponse(req.RequestID, goipp.StatusOk)
	if j.SpoolFilename != "" {
		a := adder(&resp.Document)
		a("document-number", goipp.TagInteger, goipp.Integer(1))
		a("document-format", goipp.TagMimeType, goipp.String(j.Format))
		a("document-name", goipp.TagName, goipp.String(j.Name))
	}
	return resp, nil
}

// spoolExtensions maps a document-format MIME type to the file
// extension its spool file gets, so an operator browsing the spool
// directory can tell what a file is without opening it.
var spoolExtensions = map[string]string{
	"application/pdf":         "pdf",
	"application/postscript":  "ps",
	"image/jpeg":              "jpg",
	"image/png":               "png",
	"image/pwg-raster":        "pwg",
	"image/urf":               "urf",
	"application/vnd.hp-pcl":  "pcl",
	"application/octet-stream": "bin",
}

func spoolExtension(mimeType string) string {
	if ext, ok := spoolExtensions[mimeType]; ok {
		return ext
	}
	return "bin"
}

// spoolDocument writes the request body to the job's spool file, one
// file per job, named "{job-id}-{sanitized-job-name}.{mime-extension}"
// so a job's own spooled document is findable by its IPP job number
// regardless of which printer it was submitted to.
func (s *Server) spoolDocument(p *printer.Printer, j *job.Job, body io.Reader) error {
	if err := os.MkdirAll(s.SpoolDir, 0755); err != nil {
		return err
	}
	name := sanitize(j.Name)
	if name == "" {
		name = "job"
	}
	filename := fmt.Sprintf("%d-%s.%s", j.ID(), name, spoolExtension(j.Format))
	path := filepath.Join(s.SpoolDir, filename)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := io.Copy(f, body); err != nil {
		return err
	}
	j.SpoolFilename = path
	return nil
}

// sanitize lowercases name and keeps only [a-z0-9-], collapsing every
// other run of characters to a single hyphen, so the result is always
// a safe path component.
func sanitize(name string) string {
	var b strings.Builder
	prevHyphen := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			prevHyphen = false
		default:
			if !prevHyphen && b.Len() > 0 {
				b.WriteByte('-')
				prevHyphen = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

func stringOr(attrs goipp.Attributes, name, def string) string {
	if v, err := extractValue[goipp.String](attrs, name); err == nil {
		return v.String()
	}
	return def
}
