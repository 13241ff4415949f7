package jobcard

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"

	"github.com/eka-ai/workshop/engine/domain"
)

// EventType names a controller side effect.
type EventType string

const (
	EventCreated       EventType = "created"
	EventStatusChanged EventType = "status_changed"
	EventAudit         EventType = "audit"
	EventEvidence      EventType = "evidence"
	EventPayload       EventType = "payload"
	EventReset         EventType = "reset"
)

// Event is delivered to listeners after every successful mutation.
type Event struct {
	Type      EventType   `json:"type"`
	SessionID string      `json:"session_id,omitempty"`
	JobCardID string      `json:"job_card_id,omitempty"`
	Status    Status      `json:"status,omitempty"`
	Previous  Status      `json:"previous,omitempty"`
	Entry     *AuditEntry `json:"entry,omitempty"`
	Card      *JobCard    `json:"card,omitempty"`
	At        time.Time   `json:"at"`
}

// Listener observes controller events. Events of one controller are
// delivered one at a time in mutation order. Errors are logged and otherwise
// ignored; a mutation is never rolled back. A listener must not mutate the
// controller that called it.
type Listener func(ctx context.Context, ev Event) error

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithIDGenerator replaces the UUID generator for cards, entries and evidence.
func WithIDGenerator(gen func() string) Option {
	return func(c *Controller) {
		if gen != nil {
			c.newID = gen
		}
	}
}

// WithListener registers l.
func WithListener(l Listener) Option {
	return func(c *Controller) {
		if l != nil {
			c.listeners = append(c.listeners, l)
		}
	}
}

// WithSessionID tags events with the owning session.
func WithSessionID(id string) Option {
	return func(c *Controller) { c.sessionID = id }
}

// Controller owns one job card for one session. It is safe for concurrent
// use; callers only ever receive clones of the card.
type Controller struct {
	mu        sync.RWMutex
	card      *JobCard
	issued    uint64 // last event ticket handed out, under mu

	emitMu   sync.Mutex
	emitCond *sync.Cond
	served   uint64 // last event ticket delivered, under emitMu

	pending   mapset.Set[string]
	listeners []Listener
	sessionID string
	owner     string // auth subject that claimed the session, under mu
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

// NewController returns an empty controller.
func NewController(opts ...Option) *Controller {
	c := &Controller{
		pending: mapset.NewSet[string](),
		logger:  slog.Default(),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	c.emitCond = sync.NewCond(&c.emitMu)
	for _, o := range opts {
		o(c)
	}
	c.logger = c.logger.With("session", c.sessionID)
	return c
}

// SessionID returns the session the controller belongs to.
func (c *Controller) SessionID() string { return c.sessionID }

// Claim binds the session to owner on first use and reports whether owner
// may use it. A blank owner, as on an unauthenticated gateway, always passes.
func (c *Controller) Claim(owner string) bool {
	if owner == "" {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.owner == "" {
		c.owner = owner
		return true
	}
	return c.owner == owner
}

// Subscribe registers an additional listener.
func (c *Controller) Subscribe(l Listener) {
	if l == nil {
		return
	}
	c.mu.Lock()
	c.listeners = append(c.listeners, l)
	c.mu.Unlock()
}

// InitOption sets optional intake fields on a new card.
type InitOption func(*JobCard)

// WithCustomer records the vehicle owner.
func WithCustomer(cu Customer) InitOption {
	return func(jc *JobCard) { jc.Customer = cu }
}

// WithPriority sets the card priority.
func WithPriority(p string) InitOption {
	return func(jc *JobCard) { jc.Priority = p }
}

// InitializeJobCard replaces the current card with a new CREATED card for vc.
// A concurrent initialization for the same registration returns (nil, nil).
func (c *Controller) InitializeJobCard(ctx context.Context, vc domain.VehicleContext, opts ...InitOption) (*JobCard, error) {
	vc = vc.Normalized()
	key := "init:" + vc.RegistrationNumber
	if !c.pending.Add(key) {
		c.logger.Debug("duplicate initialization ignored", "registration", vc.RegistrationNumber)
		return nil, nil
	}
	defer c.pending.Remove(key)

	now := c.now().UTC()
	jc := &JobCard{
		ID:        c.newID(),
		VehicleID: vc.RegistrationNumber,
		Status:    StatusCreated,
		Priority:  PriorityNormal,
		CreatedAt: now,
		UpdatedAt: now,
		Vehicle:   vc,
	}
	for _, o := range opts {
		o(jc)
	}
	c.mu.RLock()
	jc.Owner = c.owner
	c.mu.RUnlock()
	entry := AuditEntry{
		ID:        c.newID(),
		Timestamp: now,
		Action:    "Job card created",
		Actor:     ActorSystem,
	}
	jc.AuditTrail = []AuditEntry{entry}

	c.mu.Lock()
	c.card = jc
	snap, ticket := c.commitLocked()
	c.mu.Unlock()

	c.logger.Info("job card created", "job_card", jc.ID, "vehicle", jc.VehicleID)
	c.emit(ctx, ticket, Event{Type: EventCreated, JobCardID: snap.ID, Status: snap.Status, Entry: &entry, Card: snap, At: now})
	return snap, nil
}

// UpdateStatus moves the card to target, appending a SYSTEM audit entry with
// metadata. Illegal moves return a *TransitionError and change nothing. A
// concurrent update to the same target returns (nil, nil).
func (c *Controller) UpdateStatus(ctx context.Context, target Status, metadata map[string]any) (*JobCard, error) {
	target, err := ParseStatus(string(target))
	if err != nil {
		return nil, err
	}
	key := "status:" + string(target)
	if !c.pending.Add(key) {
		c.logger.Debug("duplicate status update ignored", "target", target)
		return nil, nil
	}
	defer c.pending.Remove(key)

	c.mu.Lock()
	if c.card == nil {
		c.mu.Unlock()
		return nil, ErrNoJobCard
	}
	from := c.card.Status
	if !IsLegalTransition(from, target) {
		c.mu.Unlock()
		return nil, &TransitionError{From: from, To: target}
	}
	entry := c.appendLocked("Status changed to "+string(target), ActorSystem, nil, metadata)
	c.card.Status = target
	c.card.UpdatedAt = entry.Timestamp
	snap, ticket := c.commitLocked()
	c.mu.Unlock()

	c.logger.Info("status changed", "job_card", snap.ID, "from", from, "to", target)
	c.emit(ctx, ticket, Event{Type: EventStatusChanged, JobCardID: snap.ID, Status: target, Previous: from, Entry: &entry, Card: snap, At: entry.Timestamp})
	return snap, nil
}

// CanTransitionTo reports whether the current card may move to target.
func (c *Controller) CanTransitionTo(target Status) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.card == nil {
		return false
	}
	return IsLegalTransition(c.card.Status, target)
}

// AllowedTransitions lists the statuses the current card may move to.
func (c *Controller) AllowedTransitions() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.card == nil {
		return []Status{}
	}
	return AllowedTransitions(c.card.Status)
}

// AddAuditEntry appends an entry to the current card's trail.
func (c *Controller) AddAuditEntry(ctx context.Context, action string, actor Actor, confidence *float64, metadata map[string]any) (AuditEntry, error) {
	if err := validateEntry(action, actor, confidence); err != nil {
		return AuditEntry{}, err
	}
	c.mu.Lock()
	if c.card == nil {
		c.mu.Unlock()
		return AuditEntry{}, ErrNoJobCard
	}
	entry := c.appendLocked(action, actor, confidence, metadata)
	c.card.UpdatedAt = entry.Timestamp
	snap, ticket := c.commitLocked()
	c.mu.Unlock()

	c.emit(ctx, ticket, Event{Type: EventAudit, JobCardID: snap.ID, Status: snap.Status, Entry: &entry, Card: snap, At: entry.Timestamp})
	return entry.clone(), nil
}

// AddPDIEvidence appends ev to the current card, assigning an id and capture
// time when they are missing.
func (c *Controller) AddPDIEvidence(ctx context.Context, ev PDIEvidence) (PDIEvidence, error) {
	if err := ev.validate(); err != nil {
		return PDIEvidence{}, err
	}
	c.mu.Lock()
	if c.card == nil {
		c.mu.Unlock()
		return PDIEvidence{}, ErrNoJobCard
	}
	if ev.ID == "" {
		ev.ID = c.newID()
	}
	now := c.now().UTC()
	if ev.CapturedAt.IsZero() {
		ev.CapturedAt = now
	}
	c.card.PDIEvidence = append(c.card.PDIEvidence, ev)
	c.card.UpdatedAt = now
	snap, ticket := c.commitLocked()
	c.mu.Unlock()

	c.emit(ctx, ticket, Event{Type: EventEvidence, JobCardID: snap.ID, Status: snap.Status, Card: snap, At: now})
	return ev, nil
}

// AttachDiagnosis stores d on the card and records an AI audit entry.
func (c *Controller) AttachDiagnosis(ctx context.Context, d *domain.DiagnosticData) (*JobCard, error) {
	if d == nil {
		return nil, fmt.Errorf("jobcard: attach diagnosis: nil payload")
	}
	return c.attach(ctx, "Diagnosis attached", d.Confidence, map[string]any{"severity": d.Severity}, func(jc *JobCard) {
		jc.Diagnosis = d.Clone()
	})
}

// AttachEstimate stores e on the card and records an AI audit entry.
func (c *Controller) AttachEstimate(ctx context.Context, e *domain.EstimateData) (*JobCard, error) {
	if e == nil {
		return nil, fmt.Errorf("jobcard: attach estimate: nil payload")
	}
	md := map[string]any{"items": len(e.Items)}
	if e.GrandTotal != nil {
		md["grand_total"] = *e.GrandTotal
	}
	return c.attach(ctx, "Estimate attached", nil, md, func(jc *JobCard) {
		jc.Estimate = e.Clone()
	})
}

// AttachPDIChecklist stores p on the card and records an AI audit entry.
func (c *Controller) AttachPDIChecklist(ctx context.Context, p *domain.PDIChecklist) (*JobCard, error) {
	if p == nil {
		return nil, fmt.Errorf("jobcard: attach pdi checklist: nil payload")
	}
	return c.attach(ctx, "PDI checklist attached", nil, map[string]any{"items": len(p.Items)}, func(jc *JobCard) {
		jc.PDI = p.Clone()
	})
}

func (c *Controller) attach(ctx context.Context, action string, confidence *float64, md map[string]any, set func(*JobCard)) (*JobCard, error) {
	return c.mutate(ctx, action, ActorAI, confidence, md, func(jc *JobCard) error {
		set(jc)
		return nil
	})
}

// UpdatePDI applies change to a copy of the current checklist under the
// controller lock and stores the result, recording action by actor. A change
// error leaves the card untouched.
func (c *Controller) UpdatePDI(ctx context.Context, actor Actor, action string, change func(*domain.PDIChecklist) (*domain.PDIChecklist, error)) (*JobCard, error) {
	if change == nil {
		return nil, fmt.Errorf("jobcard: update pdi: nil change")
	}
	return c.mutate(ctx, action, actor, nil, nil, func(jc *JobCard) error {
		next, err := change(jc.PDI.Clone())
		if err != nil {
			return err
		}
		if next == nil {
			return fmt.Errorf("jobcard: update pdi: change returned no checklist")
		}
		jc.PDI = next.Clone()
		return nil
	})
}

// mutate runs set on the current card under the lock and appends one audit
// entry. It emits an EventPayload.
func (c *Controller) mutate(ctx context.Context, action string, actor Actor, confidence *float64, md map[string]any, set func(*JobCard) error) (*JobCard, error) {
	if err := validateEntry(action, actor, confidence); err != nil {
		return nil, err
	}
	c.mu.Lock()
	if c.card == nil {
		c.mu.Unlock()
		return nil, ErrNoJobCard
	}
	if err := set(c.card); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	entry := c.appendLocked(action, actor, confidence, md)
	c.card.UpdatedAt = entry.Timestamp
	snap, ticket := c.commitLocked()
	c.mu.Unlock()

	c.emit(ctx, ticket, Event{Type: EventPayload, JobCardID: snap.ID, Status: snap.Status, Entry: &entry, Card: snap, At: entry.Timestamp})
	return snap, nil
}

// LifecycleProgress reports the card's position along LifecycleStages.
func (c *Controller) LifecycleProgress() Progress {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.card == nil {
		return Progress{Total: len(LifecycleStages)}
	}
	return ProgressOf(c.card.Status)
}

// Current returns a copy of the card, if any.
func (c *Controller) Current() (*JobCard, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.card == nil {
		return nil, false
	}
	return c.card.Clone(), true
}

// Load replaces the current card with a copy of jc, as rehydrated from a
// store. It emits no event.
func (c *Controller) Load(jc *JobCard) error {
	if jc == nil {
		return fmt.Errorf("jobcard: load: nil card")
	}
	if !jc.Status.Valid() {
		return fmt.Errorf("jobcard: load %s: %w: %q", jc.ID, ErrUnknownStatus, jc.Status)
	}
	c.mu.Lock()
	c.card = jc.Clone()
	if jc.Owner != "" {
		c.owner = jc.Owner
	}
	c.mu.Unlock()
	return nil
}

// Reset drops the card and the in-flight guard.
func (c *Controller) Reset(ctx context.Context) {
	c.mu.Lock()
	var id string
	if c.card != nil {
		id = c.card.ID
	}
	c.card = nil
	c.issued++
	ticket := c.issued
	c.mu.Unlock()
	c.pending.Clear()
	c.emit(ctx, ticket, Event{Type: EventReset, JobCardID: id, At: c.now().UTC()})
}

// appendLocked appends an entry whose timestamp never precedes the previous
// one. c.mu must be held.
func (c *Controller) appendLocked(action string, actor Actor, confidence *float64, md map[string]any) AuditEntry {
	ts := c.now().UTC()
	if n := len(c.card.AuditTrail); n > 0 {
		if prev := c.card.AuditTrail[n-1].Timestamp; ts.Before(prev) {
			ts = prev
		}
	}
	entry := AuditEntry{
		ID:        c.newID(),
		Timestamp: ts,
		Action:    action,
		Actor:     actor,
		Metadata:  maps.Clone(md),
	}
	if confidence != nil {
		v := *confidence
		entry.ConfidenceScore = &v
	}
	c.card.AuditTrail = append(c.card.AuditTrail, entry)
	return entry.clone()
}

// commitLocked bumps the card version and takes the next event ticket.
// c.mu must be held and c.card non-nil.
func (c *Controller) commitLocked() (*JobCard, uint64) {
	c.card.Version++
	c.issued++
	return c.card.Clone(), c.issued
}

// emit delivers ev once every event with an earlier ticket has been
// delivered, so listeners never see an older snapshot after a newer one.
func (c *Controller) emit(ctx context.Context, ticket uint64, ev Event) {
	ev.SessionID = c.sessionID
	c.mu.RLock()
	ls := make([]Listener, len(c.listeners))
	copy(ls, c.listeners)
	c.mu.RUnlock()

	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	for c.served+1 != ticket {
		c.emitCond.Wait()
	}
	for _, l := range ls {
		if err := l(ctx, ev); err != nil {
			c.logger.Warn("listener failed", "event", ev.Type, "job_card", ev.JobCardID, "err", err)
		}
	}
	c.served = ticket
	c.emitCond.Broadcast()
}
