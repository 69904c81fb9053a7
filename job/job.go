// Package job implements the job lifecycle: the job manager,
// generalized from ippsrv/job.go's looplab/fsm-driven thermal print
// job to the full IPP job state diagram of RFC 8011.
package job

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/OpenPrinting/goipp"
	"github.com/looplab/fsm"
)

// State is the job's primary state, numbered per RFC 2911 §4.3.7 so
// it serializes directly as the job-state enum value.
type State int32

const (
	StatePending           State = 3
	StatePendingHeld        State = 4
	StateProcessing         State = 5
	StateProcessingStopped  State = 6
	StateCanceled           State = 7
	StateAborted            State = 8
	StateCompleted          State = 9
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StatePendingHeld:
		return "pending-held"
	case StateProcessing:
		return "processing"
	case StateProcessingStopped:
		return "processing-stopped"
	case StateCanceled:
		return "canceled"
	case StateAborted:
		return "aborted"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// StateReason is a bitmask of job-state-reasons keywords (RFC 8011
// §5.3.8), mirroring printer.Reasons so a job can report more than
// one concurrent reason, e.g. job-printing together with a
// transform-reported warning. A zero mask means "none".
type StateReason uint32

const (
	ReasonNone StateReason = 0

	ReasonJobIncoming StateReason = 1 << iota
	ReasonJobDataInsufficient
	ReasonDocumentAccessError
	ReasonSubmissionInterrupted
	ReasonJobOutgoing
	ReasonJobHeldUntilSpecified
	ReasonResourcesAreNotReady
	ReasonJobQueued
	ReasonJobTransforming
	ReasonJobPrinting
	ReasonJobCanceledByUser
	ReasonJobCanceledByOperator
	ReasonAbortedBySystem
	ReasonUnsupportedDocumentFmt
	ReasonDocumentFormatError
	ReasonProcessingToStopPoint
	ReasonJobCompletedSuccessfully
	ReasonJobCompletedWithErrors
	ReasonJobFetchable
)

var stateReasonNames = [...]struct {
	bit  StateReason
	name string
}{
	{ReasonJobIncoming, "job-incoming"},
	{ReasonJobDataInsufficient, "job-data-insufficient"},
	{ReasonDocumentAccessError, "document-access-error"},
	{ReasonSubmissionInterrupted, "submission-interrupted"},
	{ReasonJobOutgoing, "job-outgoing"},
	{ReasonJobHeldUntilSpecified, "job-held-until-specified"},
	{ReasonResourcesAreNotReady, "resources-are-not-ready"},
	{ReasonJobQueued, "job-queued"},
	{ReasonJobTransforming, "job-transforming"},
	{ReasonJobPrinting, "job-printing"},
	{ReasonJobCanceledByUser, "job-canceled-by-user"},
	{ReasonJobCanceledByOperator, "job-canceled-by-operator"},
	{ReasonAbortedBySystem, "aborted-by-system"},
	{ReasonUnsupportedDocumentFmt, "unsupported-document-format"},
	{ReasonDocumentFormatError, "document-format-error"},
	{ReasonProcessingToStopPoint, "processing-to-stop-point"},
	{ReasonJobCompletedSuccessfully, "job-completed-successfully"},
	{ReasonJobCompletedWithErrors, "job-completed-with-errors"},
	{ReasonJobFetchable, "job-fetchable"},
}

// Strings renders the mask as the keyword list IPP expects. An empty
// mask renders as "none".
func (r StateReason) Strings() []string {
	if r == ReasonNone {
		return []string{"none"}
	}
	out := make([]string, 0, len(stateReasonNames))
	for _, rn := range stateReasonNames {
		if r&rn.bit != 0 {
			out = append(out, rn.name)
		}
	}
	return out
}

// fsm event names.
const (
	evtHold      = "hold"
	evtRelease   = "release"
	evtProcess   = "process"
	evtFetchable = "fetchable"
	evtStop      = "stop"
	evtResume    = "resume"
	evtComplete  = "complete"
	evtAbort     = "abort"
	evtCancel    = "cancel"
)

// transitions is the full job lifecycle, a direct generalization of
// ippsrv/job.go's jobFsmEvts table:
//
//	                                                  +----> canceled
//	                                                 /
//	   +----> pending  -------> processing ---------+------> completed
//	   |         ^                   ^               \
//	--->+        |                   |                +----> aborted
//	   |         v                   v               /
//	   +----> pending-held    processing-stopped ---+
//
// plus the fetchable/proxy branch: processing -> processing-stopped
// via evtFetchable, with ReasonJobFetchable set instead of running a
// local transform.
var transitions = []fsm.EventDesc{
	{Name: evtHold, Src: []string{StatePending.String()}, Dst: StatePendingHeld.String()},
	{Name: evtRelease, Src: []string{StatePendingHeld.String()}, Dst: StatePending.String()},
	{Name: evtProcess, Src: []string{StatePending.String()}, Dst: StateProcessing.String()},
	{Name: evtFetchable, Src: []string{StateProcessing.String()}, Dst: StateProcessingStopped.String()},
	{Name: evtStop, Src: []string{StateProcessing.String()}, Dst: StateProcessingStopped.String()},
	{Name: evtResume, Src: []string{StateProcessingStopped.String()}, Dst: StateProcessing.String()},
	{Name: evtCancel, Src: []string{
		StatePending.String(), StatePendingHeld.String(),
		StateProcessing.String(), StateProcessingStopped.String(),
	}, Dst: StateCanceled.String()},
	{Name: evtComplete, Src: []string{StateProcessing.String()}, Dst: StateCompleted.String()},
	{Name: evtAbort, Src: []string{
		StateProcessing.String(), StateProcessingStopped.String(),
	}, Dst: StateAborted.String()},
}

// PrinterRef is the narrow view of the owning printer a job needs:
// the one method its state machine calls. *printer.Printer satisfies
// it, and tests substitute a fake.
type PrinterRef interface {
	SetProcessingJobID(id int32)
}

// Job is a single print job Document data lives in
// the spool file named by SpoolFilename once the job leaves pending;
// Job itself holds only metadata and the attribute envelope.
type Job struct {
	id         int32
	Printer    PrinterRef
	Name       string
	Username   string
	JobURI     string
	PrinterURI string
	PriorityValue int // 1-100, default 50
	Format     string

	Created    time.Time
	Processing time.Time
	Completed  time.Time

	SpoolFilename string
	Impressions   int

	mu      sync.RWMutex
	attrs   goipp.Attributes
	state   State
	reasons StateReason
	sm      *fsm.FSM

	cancel context.CancelFunc // cancels an in-flight transform, if any
}

// New creates a job in the pending state (or pending-held, if
// createHeld is set), wiring its state machine per the transitions
// table above. The IPP handlers, Create-Job included, pass false.
func New(id int32, printer PrinterRef, printerURI, jobURI, name, username string, createHeld bool) *Job {
	j := &Job{
		id:         id,
		Printer:    printer,
		Name:       name,
		Username:   username,
		JobURI:     jobURI,
		PrinterURI: printerURI,
		PriorityValue: 50,
		Created:    time.Now(),
		attrs:      goipp.Attributes{},
		state:      StatePending,
		reasons:    ReasonJobIncoming,
	}
	j.sm = newFSM(j)
	if createHeld {
		j.state = StatePendingHeld
		j.sm.SetState(StatePendingHeld.String())
		j.reasons = ReasonJobHeldUntilSpecified
	}
	return j
}

func newFSM(j *Job) *fsm.FSM {
	lg := slog.With("job_id", j.id, "job_name", j.Name)
	return fsm.NewFSM(
		StatePending.String(),
		transitions,
		fsm.Callbacks{
			evtHold: func(ctx context.Context, e *fsm.Event) {
				lg.InfoContext(ctx, "job held")
				j.state = StatePendingHeld
				j.reasons = ReasonJobHeldUntilSpecified
			},
			evtRelease: func(ctx context.Context, e *fsm.Event) {
				lg.InfoContext(ctx, "job released")
				j.state = StatePending
				j.reasons = ReasonJobQueued
			},
			evtProcess: func(ctx context.Context, e *fsm.Event) {
				lg.InfoContext(ctx, "job processing started")
				j.state = StateProcessing
				j.reasons = ReasonJobPrinting
				j.Processing = time.Now()
				j.Printer.SetProcessingJobID(j.id)
			},
			evtFetchable: func(ctx context.Context, e *fsm.Event) {
				lg.InfoContext(ctx, "job marked fetchable by remote device")
				j.state = StateProcessingStopped
				j.reasons = ReasonJobFetchable
				j.Printer.SetProcessingJobID(0)
			},
			evtStop: func(ctx context.Context, e *fsm.Event) {
				lg.InfoContext(ctx, "job processing stopped")
				j.state = StateProcessingStopped
				j.reasons = ReasonProcessingToStopPoint
			},
			evtResume: func(ctx context.Context, e *fsm.Event) {
				lg.InfoContext(ctx, "job processing resumed")
				j.state = StateProcessing
				j.reasons = ReasonJobPrinting
			},
			evtComplete: func(ctx context.Context, e *fsm.Event) {
				lg.InfoContext(ctx, "job completed")
				j.state = StateCompleted
				j.reasons = ReasonJobCompletedSuccessfully
				j.Completed = time.Now()
				j.Printer.SetProcessingJobID(0)
			},
			evtAbort: func(ctx context.Context, e *fsm.Event) {
				lg.InfoContext(ctx, "job aborted")
				j.state = StateAborted
				j.reasons = reasonFromArgs(e.Args, ReasonAbortedBySystem)
				j.Completed = time.Now()
				j.Printer.SetProcessingJobID(0)
			},
			evtCancel: func(ctx context.Context, e *fsm.Event) {
				lg.InfoContext(ctx, "job canceled")
				j.state = StateCanceled
				j.reasons = reasonFromArgs(e.Args, ReasonJobCanceledByUser)
				j.Completed = time.Now()
				j.Printer.SetProcessingJobID(0)
			},
		},
	)
}

func reasonFromArgs(args []interface{}, fallback StateReason) StateReason {
	if len(args) > 0 {
		if r, ok := args[0].(StateReason); ok {
			return r
		}
	}
	return fallback
}

// ID satisfies printer.JobRef.
func (j *Job) ID() int32 { return j.id }

// IsActive satisfies printer.JobRef: active invariant
// is state ∈ {pending, held, processing, processing-stopped}.
func (j *Job) IsActive() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	switch j.state {
	case StatePending, StatePendingHeld, StateProcessing, StateProcessingStopped:
		return true
	default:
		return false
	}
}

// IsCompleted satisfies printer.JobRef: terminal is
// state ∈ {completed, canceled, aborted}.
func (j *Job) IsCompleted() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	switch j.state {
	case StateCompleted, StateCanceled, StateAborted:
		return true
	default:
		return false
	}
}

// Priority satisfies printer.JobRef.
func (j *Job) Priority() int { return j.PriorityValue }

// State returns the current job state.
func (j *Job) State() State {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state
}

// Reason returns the current job-state-reasons value.
func (j *Job) Reason() StateReason {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.reasons
}

// Attributes returns the job's attribute envelope.
func (j *Job) Attributes() goipp.Attributes {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.attrs
}

// SetAttributes replaces the job's attribute envelope wholesale.
func (j *Job) SetAttributes(attrs goipp.Attributes) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.attrs = attrs
}

// Event drives the job's state machine. ctx is passed through to the
// fsm callback (and on to any blocking work the caller wires up via
// SetCancelFunc/RequestCancel below); args are forwarded to the matching
// callback, mirroring ippsrv/job.go's `sm.Event(ctx, jobEvtProcess,
// data)` usage.
func (j *Job) Event(ctx context.Context, event string, args ...interface{}) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.sm.Event(ctx, event, args...); err != nil {
		return fmt.Errorf("job %d: event %q: %w", j.id, event, err)
	}
	return nil
}

// SetCancelFunc records the cancel function for an in-flight
// transform, so a later Cancel-Job request can interrupt it.
func (j *Job) SetCancelFunc(cancel context.CancelFunc) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cancel = cancel
}

// RequestCancel signals the in-flight transform (if any) to stop.
func (j *Job) RequestCancel() {
	j.mu.RLock()
	cancel := j.cancel
	j.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
}
