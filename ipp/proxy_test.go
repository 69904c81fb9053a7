package ipp

import (
	"context"
	"os"
	"testing"

	"github.com/OpenPrinting/goipp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gopherprint/ippserver/job"
	"github.com/gopherprint/ippserver/printer"
)

func TestHandleFetchJob_NoneFetchableReturnsEmptyJobGroup(t *testing.T) {
	s, p := newTestServer(t, nil)
	resp, err := s.ServeIPP(context.Background(), newRequest(goipp.OpFetchJob, 1, printerURIAttr(p.URI)), nil)
	require.NoError(t, err)
	assert.Equal(t, goipp.StatusOk, goipp.Status(resp.Code))
	assert.Empty(t, resp.Job)
}

func TestHandleFetchJob_ReturnsFetchableJob(t *testing.T) {
	s, p := newTestServer(t, nil)
	createResp, err := s.ServeIPP(context.Background(), newRequest(goipp.OpCreateJob, 1, printerURIAttr(p.URI)), nil)
	require.NoError(t, err)
	jobID, err := extractValue[goipp.Integer](createResp.Operation, "job-id")
	require.NoError(t, err)

	j, ok := s.Jobs.Find(p.Name, int32(jobID))
	require.True(t, ok)
	require.NoError(t, j.Event(context.Background(), "process"))
	require.NoError(t, j.Event(context.Background(), "fetchable"))

	resp, err := s.ServeIPP(context.Background(), newRequest(goipp.OpFetchJob, 2, printerURIAttr(p.URI)), nil)
	require.NoError(t, err)
	gotID, err := extractValue[goipp.Integer](resp.Job, "job-id")
	require.NoError(t, err)
	assert.Equal(t, jobID, gotID)
}

func TestHandleFetchDocument_NotFound(t *testing.T) {
	s, p := newTestServer(t, nil)
	attrs := printerURIAttr(p.URI)
	a := adder(&attrs)
	a("job-id", goipp.TagInteger, goipp.Integer(999))
	resp, err := s.ServeIPP(context.Background(), newRequest(goipp.OpFetchDocument, 1, attrs), nil)
	require.NoError(t, err)
	assert.Equal(t, goipp.StatusErrorNotFound, goipp.Status(resp.Code))
}

func TestHandleFetchDocument_ReturnsDocumentDescriptor(t *testing.T) {
	s, p := newTestServer(t, nil)
	createResp, err := s.ServeIPP(context.Background(), newRequest(goipp.OpCreateJob, 1, printerURIAttr(p.URI)), nil)
	require.NoError(t, err)
	jobID, err := extractValue[goipp.Integer](createResp.Operation, "job-id")
	require.NoError(t, err)

	j, ok := s.Jobs.Find(p.Name, int32(jobID))
	require.True(t, ok)
	j.Format = "application/pdf"
	spoolPath := t.TempDir() + "/doc.pdf"
	require.NoError(t, os.WriteFile(spoolPath, []byte("pdf bytes"), 0644))
	j.SpoolFilename = spoolPath

	attrs := printerURIAttr(p.URI)
	a := adder(&attrs)
	a("job-id", goipp.TagInteger, goipp.Integer(jobID))
	resp, err := s.ServeIPP(context.Background(), newRequest(goipp.OpFetchDocument, 2, attrs), nil)
	require.NoError(t, err)

	format, err := extractValue[goipp.String](resp.Document, "document-format")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", format.String())
}

func TestHandleUpdateJobStatus_CompletedTransitionsJob(t *testing.T) {
	s, p := newTestServer(t, nil)
	createResp, err := s.ServeIPP(context.Background(), newRequest(goipp.OpCreateJob, 1, printerURIAttr(p.URI)), nil)
	require.NoError(t, err)
	jobID, err := extractValue[goipp.Integer](createResp.Operation, "job-id")
	require.NoError(t, err)
	j, ok := s.Jobs.Find(p.Name, int32(jobID))
	require.True(t, ok)
	require.NoError(t, j.Event(context.Background(), "process"))

	attrs := printerURIAttr(p.URI)
	a := adder(&attrs)
	a("job-id", goipp.TagInteger, goipp.Integer(jobID))
	a("job-state", goipp.TagEnum, goipp.Integer(job.StateCompleted))
	resp, err := s.ServeIPP(context.Background(), newRequest(goipp.OpUpdateJobStatus, 2, attrs), nil)
	require.NoError(t, err)
	assert.Equal(t, goipp.StatusOk, goipp.Status(resp.Code))
	assert.Equal(t, job.StateCompleted, j.State())
}

func TestHandleUpdateJobStatus_UnknownJobNotFound(t *testing.T) {
	s, p := newTestServer(t, nil)
	attrs := printerURIAttr(p.URI)
	a := adder(&attrs)
	a("job-id", goipp.TagInteger, goipp.Integer(999))
	resp, err := s.ServeIPP(context.Background(), newRequest(goipp.OpUpdateJobStatus, 1, attrs), nil)
	require.NoError(t, err)
	assert.Equal(t, goipp.StatusErrorNotFound, goipp.Status(resp.Code))
}

func TestHandleDeregisterOutputDevice_ClearsDevice(t *testing.T) {
	s, p := newTestServer(t, nil)
	p.SetDevice(&printer.Device{UUID: "11111111-1111-1111-1111-111111111111"})

	resp, err := s.ServeIPP(context.Background(), newRequest(goipp.OpDeregisterOutputDevice, 1, printerURIAttr(p.URI)), nil)
	require.NoError(t, err)
	assert.Equal(t, goipp.StatusOk, goipp.Status(resp.Code))
	assert.Nil(t, p.Device())
}

func TestHandleAcknowledgeJob_Succeeds(t *testing.T) {
	s, p := newTestServer(t, nil)
	createResp, err := s.ServeIPP(context.Background(), newRequest(goipp.OpCreateJob, 1, printerURIAttr(p.URI)), nil)
	require.NoError(t, err)
	jobID, err := extractValue[goipp.Integer](createResp.Operation, "job-id")
	require.NoError(t, err)

	attrs := printerURIAttr(p.URI)
	a := adder(&attrs)
	a("job-id", goipp.TagInteger, goipp.Integer(jobID))
	resp, err := s.ServeIPP(context.Background(), newRequest(goipp.OpAcknowledgeJob, 2, attrs), nil)
	require.NoError(t, err)
	assert.Equal(t, goipp.StatusOk, goipp.Status(resp.Code))
}

func TestHandleAcknowledgeIdentifyPrinter_ClearsReason(t *testing.T) {
	s, p := newTestServer(t, nil)
	p.Lock()
	p.SetReasons(p.Reasons() | printer.ReasonIdentifyPrinterRequested)
	p.Unlock()

	resp, err := s.ServeIPP(context.Background(), newRequest(goipp.OpAcknowledgeIdentifyPrinter, 1, printerURIAttr(p.URI)), nil)
	require.NoError(t, err)
	assert.Equal(t, goipp.StatusOk, goipp.Status(resp.Code))
	assert.Zero(t, p.Reasons()&printer.ReasonIdentifyPrinterRequested)
}

func TestHandleUpdateOutputDeviceAttributes_NoRegisteredDeviceFails(t *testing.T) {
	s, p := newTestServer(t, nil)
	resp, err := s.ServeIPP(context.Background(), newRequest(goipp.OpupdateOutputDeviceAttributes, 1, printerURIAttr(p.URI)), nil)
	require.NoError(t, err)
	assert.Equal(t, goipp.StatusErrorNotFound, goipp.Status(resp.Code))
}

func TestHandleUpdateOutputDeviceAttributes_StoresOnRegisteredDevice(t *testing.T) {
	s, p := newTestServer(t, nil)
	p.SetDevice(&printer.Device{UUID: "11111111-1111-1111-1111-111111111111"})

	req := newRequest(goipp.OpupdateOutputDeviceAttributes, 1, printerURIAttr(p.URI))
	req.Printer = goipp.Attributes{goipp.MakeAttribute("media-ready", goipp.TagKeyword, goipp.String("na_letter_8.5x11in"))}
	resp, err := s.ServeIPP(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, goipp.StatusOk, goipp.Status(resp.Code))

	v, err := extractValue[goipp.String](p.Device().Attributes, "media-ready")
	require.NoError(t, err)
	assert.Equal(t, "na_letter_8.5x11in", v.String())
}
