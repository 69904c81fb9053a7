// Package printer implements the printer registry and printer object:
// the concurrent data model of component F in the design (printer
// registry) together with the printer side of component G (job
// manager) that the printer owns a lock for.
package printer

import (
	"sync"
	"time"

	"github.com/OpenPrinting/goipp"
	"github.com/google/uuid"
)

// State is the printer's primary state, numbered per RFC 2911 §4.4.11
// so it can be emitted directly as the printer-state enum value.
type State int32

const (
	StateIdle       State = 3
	StateProcessing State = 4
	StateStopped    State = 5
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProcessing:
		return "processing"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// JobRef is the narrow view of a job the printer needs without
// importing the job package, avoiding an import cycle (job.Job holds
// a *Printer back-reference). The job package's *job.Job satisfies
// this interface.
type JobRef interface {
	ID() int32
	IsActive() bool
	IsCompleted() bool
	Priority() int
}

// Device is a proxy entity: a remote output device that has
// registered with the printer to fetch and report on its jobs.
type Device struct {
	UUID       string
	Attributes goipp.Attributes
	Registered time.Time
}

// Subscription is a registered interest in a set of event kinds,
// owned by either the printer or one of its jobs.
type Subscription struct {
	ID         int
	Events     []string
	JobID      int32 // 0 if printer-scoped
	LeaseUntil time.Time

	mu     sync.Mutex
	events []goipp.Attributes // bounded ring of delivered events
}

const subscriptionEventCap = 64

// Deliver appends an event to the subscription's bounded ring,
// dropping the oldest entry once the cap is reached.
func (s *Subscription) Deliver(event goipp.Attributes) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	if len(s.events) > subscriptionEventCap {
		s.events = s.events[len(s.events)-subscriptionEventCap:]
	}
}

// Events returns a copy of the currently buffered events.
func (s *Subscription) Events() []goipp.Attributes {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]goipp.Attributes, len(s.events))
	copy(out, s.events)
	return out
}

// Printer is the top-level entity owning a job registry. All
// mutable fields below are protected by mu, the printer's
// multi-reader/single-writer lock; callers must hold it (or RLock for
// reads) before touching them. mu must always be acquired before any
// contained job's lock.
type Printer struct {
	// Immutable for the process lifetime.
	Name         string // resource path segment, e.g. "print/p1"
	URI          string // full printer-uri, e.g. "ipp://host:port/ipp/print/p1"
	MakeAndModel string
	UUID         string
	SpoolDir     string
	IconPath     string
	TransformCmd string // path to the transform tool
	StartTime    time.Time

	mu sync.RWMutex

	state        State
	reasons      Reasons
	dnssdName    string // mutable, discovery layer may rename on collision
	attrs        goipp.Attributes
	nextJobID    int32
	allJobs      []JobRef
	subs         []*Subscription
	nextSubID    int
	device       *Device
	processingID int32 // 0 if nothing processing
}

// New creates a printer with the given resource name and base URI
// prefix (e.g. "ipp://host:port/ipp"). Its printer-uuid is a
// SHA1-namespaced UUID keyed on the printer's stable name, folding in
// the URI too so printers sharing a name on different hosts don't
// collide.
func New(name, baseURI, makeAndModel string) *Printer {
	uri := baseURI + "/" + name
	return &Printer{
		Name:         name,
		URI:          uri,
		MakeAndModel: makeAndModel,
		UUID:         uuid.NewSHA1(uuid.NameSpaceURL, []byte(uri)).String(),
		dnssdName:    makeAndModel,
		state:        StateIdle,
		attrs:        goipp.Attributes{},
		nextJobID:    1,
		StartTime:    time.Now(),
	}
}

// UpTime returns seconds elapsed since the printer object was
// created, per printer-up-time (RFC 8011 §5.4.22).
func (p *Printer) UpTime() int32 {
	return int32(time.Since(p.StartTime).Seconds())
}

// RLock/RUnlock/Lock/Unlock expose the printer's rwlock directly so
// callers (job manager, IPP handlers) can hold the documented
// "always acquire the printer lock before any contained job lock"
// ordering without the printer package mediating every field access.
func (p *Printer) RLock()   { p.mu.RLock() }
func (p *Printer) RUnlock() { p.mu.RUnlock() }
func (p *Printer) Lock()    { p.mu.Lock() }
func (p *Printer) Unlock()  { p.mu.Unlock() }

// State returns the current printer-state. Caller should hold at
// least RLock, except for quick advisory reads.
func (p *Printer) State() State { return p.state }

// SetState sets the printer-state. Caller must hold Lock.
func (p *Printer) SetState(s State) { p.state = s }

// Reasons returns the current printer-state-reasons mask.
func (p *Printer) Reasons() Reasons { return p.reasons }

// SetReasons sets the printer-state-reasons mask. Caller must hold Lock.
func (p *Printer) SetReasons(r Reasons) { p.reasons = r }

// ApplyStateMessage applies a `STATE: ...` line from the transform
// subprocess Caller must hold Lock.
func (p *Printer) ApplyStateMessage(message string) {
	p.reasons = p.reasons.ApplyStateMessage(message)
}

// Attributes returns the printer's authoritative attribute table. The
// returned slice must not be mutated by the caller without holding
// Lock; this is the source of truth for Get-Printer-Attributes.
func (p *Printer) Attributes() goipp.Attributes { return p.attrs }

// SetAttributes replaces the attribute table wholesale. Caller must
// hold Lock.
func (p *Printer) SetAttributes(attrs goipp.Attributes) { p.attrs = attrs }

// DNSSDName returns the current (possibly renamed-on-collision)
// DNS-SD service name.
func (p *Printer) DNSSDName() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dnssdName
}

// SetDNSSDName is called only by the discovery callback; the name is
// observed freely elsewhere as advisory.
func (p *Printer) SetDNSSDName(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dnssdName = name
}

// NextJobID allocates and returns the next job id. Caller must hold
// Lock; ids are never reused within the printer's lifetime.
func (p *Printer) NextJobID() int32 {
	id := p.nextJobID
	p.nextJobID++
	return id
}

// AllJobs returns the all-jobs view, ordered id desc (newest first).
func (p *Printer) AllJobs() []JobRef {
	out := make([]JobRef, len(p.allJobs))
	copy(out, p.allJobs)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// AddJob inserts a job into all-jobs. Caller must hold Lock.
func (p *Printer) AddJob(j JobRef) { p.allJobs = append(p.allJobs, j) }

// RemoveJob removes a job from all-jobs by id. Caller must hold Lock.
func (p *Printer) RemoveJob(id int32) {
	for i, j := range p.allJobs {
		if j.ID() == id {
			p.allJobs = append(p.allJobs[:i], p.allJobs[i+1:]...)
			return
		}
	}
}

// ActiveJobs returns jobs in active-jobs order: priority desc, id asc.
func (p *Printer) ActiveJobs() []JobRef {
	var out []JobRef
	for _, j := range p.allJobs {
		if j.IsActive() {
			out = append(out, j)
		}
	}
	sortJobs(out)
	return out
}

// CompletedJobs returns jobs in completed-jobs order: completed-time
// asc, id asc. Ordering by time is the caller's (job manager's)
// responsibility since Printer does not track completion timestamps;
// here jobs are simply filtered and left in all-jobs order, the job
// manager re-sorts using its own records.
func (p *Printer) CompletedJobs() []JobRef {
	var out []JobRef
	for _, j := range p.allJobs {
		if j.IsCompleted() {
			out = append(out, j)
		}
	}
	return out
}

func sortJobs(jobs []JobRef) {
	// priority desc, id asc — simple insertion sort is fine, job
	// counts per printer are small.
	for i := 1; i < len(jobs); i++ {
		for j := i; j > 0; j-- {
			a, b := jobs[j-1], jobs[j]
			if a.Priority() < b.Priority() || (a.Priority() == b.Priority() && a.ID() > b.ID()) {
				jobs[j-1], jobs[j] = jobs[j], jobs[j-1]
			} else {
				break
			}
		}
	}
}

// ProcessingJobID returns the id of the currently-processing job, or
// 0 if none. Enforces the single-processing-job invariant by
// construction: SetProcessingJobID is the only writer.
func (p *Printer) ProcessingJobID() int32 { return p.processingID }

// SetProcessingJobID sets or clears (0) the currently-processing job.
// Caller must hold Lock.
func (p *Printer) SetProcessingJobID(id int32) { p.processingID = id }

// Device returns the registered remote output device proxy, if any.
func (p *Printer) Device() *Device {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.device
}

// SetDevice registers (or clears, with nil) a remote output device.
func (p *Printer) SetDevice(d *Device) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.device = d
}

// AddSubscription registers a new subscription and returns it.
// Caller must hold Lock.
func (p *Printer) AddSubscription(events []string, jobID int32, lease time.Duration) *Subscription {
	p.nextSubID++
	sub := &Subscription{
		ID:         p.nextSubID,
		Events:     events,
		JobID:      jobID,
		LeaseUntil: time.Now().Add(lease),
	}
	p.subs = append(p.subs, sub)
	return sub
}

// Subscriptions returns all subscriptions currently registered.
func (p *Printer) Subscriptions() []*Subscription {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Subscription, len(p.subs))
	copy(out, p.subs)
	return out
}

// FindSubscription looks a subscription up by id.
func (p *Printer) FindSubscription(id int) (*Subscription, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, s := range p.subs {
		if s.ID == id {
			return s, true
		}
	}
	return nil, false
}

// CancelSubscription removes a subscription by id.
func (p *Printer) CancelSubscription(id int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, s := range p.subs {
		if s.ID == id {
			p.subs = append(p.subs[:i], p.subs[i+1:]...)
			return true
		}
	}
	return false
}

// Notify delivers an event to every subscription interested in kind,
// scoped to jobID (0 for printer-wide events).
func (p *Printer) Notify(kind string, jobID int32, event goipp.Attributes) {
	p.mu.RLock()
	subs := make([]*Subscription, len(p.subs))
	copy(subs, p.subs)
	p.mu.RUnlock()

	for _, s := range subs {
		if s.JobID != 0 && s.JobID != jobID {
			continue
		}
		for _, want := range s.Events {
			if want == kind || want == "all" {
				s.Deliver(event)
				break
			}
		}
	}
}
