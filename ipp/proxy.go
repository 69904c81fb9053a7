package ipp

import (
	"context"
	"io"
	"os"

	"github.com/OpenPrinting/goipp"
	"github.com/gopherprint/ippserver/job"
	"github.com/gopherprint/ippserver/printer"
)

// registerProxyOps wires the IPP output-device proxy set (PWG
// 5100.18's "Infra" model): a remote device registers itself, then
// polls Fetch-Job/Fetch-Document for work this printer has marked
// fetchable (job.ReasonJobFetchable) instead of running a local
// transform.
func (s *Server) registerProxyOps() {
	s.handlers[goipp.OpFetchJob] = s.handleFetchJob
	s.handlers[goipp.OpFetchDocument] = s.handleFetchDocument
	s.handlers[goipp.OpUpdateActiveJobs] = s.handleUpdateActiveJobs
	s.handlers[goipp.OpUpdateJobStatus] = s.handleUpdateJobStatus
	s.handlers[goipp.OpDeregisterOutputDevice] = s.handleDeregisterOutputDevice
	s.handlers[goipp.OpGetOutputDeviceAttributes] = s.handleGetPrinterAttributes
	s.handlers[goipp.OpAcknowledgeJob] = s.handleAcknowledgeJob
	s.handlers[goipp.OpAcknowledgeDocument] = s.handleAcknowledgeDocument
	s.handlers[goipp.OpAcknowledgeIdentifyPrinter] = s.handleAcknowledgeIdentifyPrinter
	s.handlers[goipp.OpUpdateDocumentStatus] = s.handleUpdateDocumentStatus
	s.handlers[goipp.OpupdateOutputDeviceAttributes] = s.handleUpdateOutputDeviceAttributes
}

// handleAcknowledgeJob lets a proxy confirm it has taken ownership of
// a fetched job; no local state changes, since ownership already
// transferred at Fetch-Job time.
func (s *Server) handleAcknowledgeJob(ctx context.Context, req *goipp.Message, _ io.Reader) (*goipp.Message, error) {
	if _, err := s.printerFromRequest(req); err != nil {
		return nil, err
	}
	if _, err := extractValue[goipp.Integer](req.Operation, "job-id"); err != nil {
		return nil, err
	}
	return newResponse(req.RequestID, goipp.StatusOk), nil
}

// handleAcknowledgeDocument lets a proxy confirm it has taken
// ownership of a fetched document.
func (s *Server) handleAcknowledgeDocument(ctx context.Context, req *goipp.Message, _ io.Reader) (*goipp.Message, error) {
	if _, err := s.printerFromRequest(req); err != nil {
		return nil, err
	}
	if _, err := extractValue[goipp.Integer](req.Operation, "job-id"); err != nil {
		return nil, err
	}
	return newResponse(req.RequestID, goipp.StatusOk), nil
}

// handleAcknowledgeIdentifyPrinter lets a proxy confirm it has carried
// out an Identify-Printer action (e.g. flashing a light), clearing
// identify-printer-requested from printer-state-reasons if it is set.
// Identify-Printer itself only logs the request and does not set that
// reason.
func (s *Server) handleAcknowledgeIdentifyPrinter(ctx context.Context, req *goipp.Message, _ io.Reader) (*goipp.Message, error) {
	p, err := s.printerFromRequest(req)
	if err != nil {
		return nil, err
	}
	p.Lock()
	p.SetReasons(p.Reasons() &^ printer.ReasonIdentifyPrinterRequested)
	p.Unlock()
	return newResponse(req.RequestID, goipp.StatusOk), nil
}

// handleUpdateDocumentStatus lets a proxy push document-level state
// (e.g. a document-state-reasons update) back to this printer.
func (s *Server) handleUpdateDocumentStatus(ctx context.Context, req *goipp.Message, _ io.Reader) (*goipp.Message, error) {
	if _, err := s.printerFromRequest(req); err != nil {
		return nil, err
	}
	if _, err := extractValue[goipp.Integer](req.Operation, "job-id"); err != nil {
		return nil, err
	}
	return newResponse(req.RequestID, goipp.StatusOk), nil
}

// handleUpdateOutputDeviceAttributes lets a proxy push its own
// capability attributes (media loaded, color support, etc.) into the
// printer's device record, replacing any attributes stored by an
// earlier update. Get-Printer-Attributes does not report them; it
// reports only the device's output-device-uuid.
func (s *Server) handleUpdateOutputDeviceAttributes(ctx context.Context, req *goipp.Message, _ io.Reader) (*goipp.Message, error) {
	p, err := s.printerFromRequest(req)
	if err != nil {
		return nil, err
	}
	dev := p.Device()
	if dev == nil {
		return errorResponse(req.RequestID, goipp.StatusErrorNotFound, "no registered output device"), nil
	}
	dev.Attributes = req.Printer
	p.SetDevice(dev)
	return newResponse(req.RequestID, goipp.StatusOk), nil
}

// handleFetchJob returns the oldest job in processing-stopped state
// with job-fetchable set.
func (s *Server) handleFetchJob(ctx context.Context, req *goipp.Message, _ io.Reader) (*goipp.Message, error) {
	p, err := s.printerFromRequest(req)
	if err != nil {
		return nil, err
	}
	var fetchable *job.Job
	jobs := s.Jobs.ByPrinter(p) // newest first; walk it backwards
	for i := len(jobs) - 1; i >= 0; i-- {
		j := jobs[i]
		if j.State() == job.StateProcessingStopped && j.Reason() == job.ReasonJobFetchable {
			fetchable = j
			break
		}
	}
	resp := newResponse(req.RequestID, goipp.StatusOk)
	if fetchable == nil {
		return resp, nil
	}
	resp.Job = BuildJobAttributes(fetchable).Attrs
	return resp, nil
}

func (s *Server) handleFetchDocument(ctx context.Context, req *goipp.Message, _ io.Reader) (*goipp.Message, error) {
	p, err := s.printerFromRequest(req)
	if err != nil {
		return nil, err
	}
	id, err := extractValue[goipp.Integer](req.Operation, "job-id")
	if err != nil {
		return nil, err
	}
	j, ok := s.Jobs.Find(p.Name, int32(id))
	if !ok || j.SpoolFilename == "" {
		return errorResponse(req.RequestID, goipp.StatusErrorNotFound, "job or document not found"), nil
	}
	f, err := os.Open(j.SpoolFilename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	resp := newResponse(req.RequestID, goipp.StatusOk)
	a := adder(&resp.Document)
	a("document-format", goipp.TagMimeType, goipp.String(j.Format))
	a("last-document", goipp.TagBoolean, goipp.Boolean(true))
	// The response carries only these descriptive attributes; the
	// spooled document bytes are not sent, matching how Get-Documents
	// reports a spooled document without itself streaming bytes.
	return resp, nil
}

// handleUpdateActiveJobs lets a proxy report which previously-fetched
// jobs it is still processing versus has completed.
func (s *Server) handleUpdateActiveJobs(ctx context.Context, req *goipp.Message, _ io.Reader) (*goipp.Message, error) {
	p, err := s.printerFromRequest(req)
	if err != nil {
		return nil, err
	}
	completedIDs := findIntegers(req.Operation, "completed-job-ids")
	for _, id := range completedIDs {
		if j, ok := s.Jobs.Find(p.Name, id); ok && j.State() == job.StateProcessingStopped {
			_ = j.Event(ctx, "complete")
		}
	}
	return newResponse(req.RequestID, goipp.StatusOk), nil
}

// handleUpdateJobStatus lets a proxy push a job-state update (e.g.
// aborted, the device jammed) back to this printer.
func (s *Server) handleUpdateJobStatus(ctx context.Context, req *goipp.Message, _ io.Reader) (*goipp.Message, error) {
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
	if state, err := extractValue[goipp.Integer](req.Operation, "job-state"); err == nil {
		switch job.State(state) {
		case job.StateCompleted:
			_ = j.Event(ctx, "complete")
		case job.StateAborted:
			_ = j.Event(ctx, "abort", job.ReasonAbortedBySystem)
		}
	}
	return newResponse(req.RequestID, goipp.StatusOk), nil
}

func (s *Server) handleDeregisterOutputDevice(ctx context.Context, req *goipp.Message, _ io.Reader) (*goipp.Message, error) {
	p, err := s.printerFromRequest(req)
	if err != nil {
		return nil, err
	}
	p.SetDevice(nil)
	return newResponse(req.RequestID, goipp.StatusOk), nil
}

func findIntegers(attrs goipp.Attributes, name string) []int32 {
	vv, ok := findAttr(attrs, name)
	if !ok {
		return nil
	}
	out := make([]int32, 0, len(vv))
	for _, v := range vv {
		if i, ok := v.V.(goipp.Integer); ok {
			out = append(out, int32(i))
		}
	}
	return out
}
