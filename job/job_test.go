package job

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePrinter is a minimal PrinterRef for testing the job state
// machine in isolation from package printer.
type fakePrinter struct {
	processingID int32
}

func (p *fakePrinter) SetProcessingJobID(id int32) { p.processingID = id }

func TestJob_NewDefaultsToPending(t *testing.T) {
	j := New(1, &fakePrinter{}, "ipp://host/ipp/print/p1", "ipp://host/ipp/print/p1/1", "doc.pdf", "alice", false)
	assert.Equal(t, StatePending, j.State())
	assert.Equal(t, ReasonJobIncoming, j.Reason())
	assert.True(t, j.IsActive())
	assert.False(t, j.IsCompleted())
}

func TestJob_NewHeldStartsPendingHeld(t *testing.T) {
	j := New(1, &fakePrinter{}, "", "", "doc.pdf", "alice", true)
	assert.Equal(t, StatePendingHeld, j.State())
	assert.Equal(t, ReasonJobHeldUntilSpecified, j.Reason())
	assert.True(t, j.IsActive())
}

func TestJob_ProcessSetsPrinterProcessingID(t *testing.T) {
	fp := &fakePrinter{}
	j := New(7, fp, "", "", "doc.pdf", "alice", false)
	require.NoError(t, j.Event(context.Background(), evtProcess))
	assert.Equal(t, StateProcessing, j.State())
	assert.EqualValues(t, 7, fp.processingID)
}

func TestJob_CompleteClearsProcessingIDAndIsTerminal(t *testing.T) {
	fp := &fakePrinter{}
	j := New(7, fp, "", "", "doc.pdf", "alice", false)
	require.NoError(t, j.Event(context.Background(), evtProcess))
	require.NoError(t, j.Event(context.Background(), evtComplete))

	assert.Equal(t, StateCompleted, j.State())
	assert.Equal(t, ReasonJobCompletedSuccessfully, j.Reason())
	assert.False(t, j.IsActive())
	assert.True(t, j.IsCompleted())
	assert.EqualValues(t, 0, fp.processingID)
}

func TestJob_CancelFromEveryActiveState(t *testing.T) {
	tests := []struct {
		name  string
		setup func(j *Job) error
	}{
		{"from pending", func(j *Job) error { return nil }},
		{"from pending-held", func(j *Job) error { return j.Event(context.Background(), evtHold) }},
		{"from processing", func(j *Job) error { return j.Event(context.Background(), evtProcess) }},
		{"from processing-stopped", func(j *Job) error {
			if err := j.Event(context.Background(), evtProcess); err != nil {
				return err
			}
			return j.Event(context.Background(), evtStop)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := New(1, &fakePrinter{}, "", "", "doc.pdf", "alice", false)
			require.NoError(t, tt.setup(j))
			require.NoError(t, j.Event(context.Background(), evtCancel, ReasonJobCanceledByUser))
			assert.Equal(t, StateCanceled, j.State())
			assert.Equal(t, ReasonJobCanceledByUser, j.Reason())
		})
	}
}

func TestJob_CancelFromTerminalStateFails(t *testing.T) {
	j := New(1, &fakePrinter{}, "", "", "doc.pdf", "alice", false)
	require.NoError(t, j.Event(context.Background(), evtProcess))
	require.NoError(t, j.Event(context.Background(), evtComplete))

	err := j.Event(context.Background(), evtCancel, ReasonJobCanceledByUser)
	assert.Error(t, err)
	assert.Equal(t, StateCompleted, j.State())
}

func TestStateReason_StringsRendersEveryBitSet(t *testing.T) {
	combined := ReasonJobPrinting | ReasonDocumentFormatError
	got := combined.Strings()
	assert.Contains(t, got, "job-printing")
	assert.Contains(t, got, "document-format-error")
	assert.Len(t, got, 2)
}

func TestStateReason_NoneRendersAsNone(t *testing.T) {
	assert.Equal(t, []string{"none"}, ReasonNone.Strings())
}

func TestJob_FetchableMarksProcessingStoppedWithoutClaimingTheSlot(t *testing.T) {
	fp := &fakePrinter{}
	j := New(3, fp, "", "", "doc.pdf", "alice", false)
	require.NoError(t, j.Event(context.Background(), evtProcess))
	require.NoError(t, j.Event(context.Background(), evtFetchable))

	assert.Equal(t, StateProcessingStopped, j.State())
	assert.Equal(t, ReasonJobFetchable, j.Reason())
	assert.EqualValues(t, 0, fp.processingID)
}
