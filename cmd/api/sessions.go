package main

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/eka-ai/workshop/engine/chat"
	"github.com/eka-ai/workshop/engine/domain"
	"github.com/eka-ai/workshop/engine/jobcard"
	"github.com/eka-ai/workshop/engine/pdi"
	"github.com/eka-ai/workshop/engine/semantic"
	"github.com/eka-ai/workshop/pkg/mid"
	"github.com/eka-ai/workshop/pkg/vehiclenlp"
)

// controller resolves the {sid} path value, answering 400 when it is blank.
func (s *server) controller(w http.ResponseWriter, r *http.Request) (*jobcard.Controller, bool) {
	c, err := s.sessions.GetOwned(r.Context(), r.PathValue("sid"), subject(r))
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	s.metrics.ActiveSessions.Set(int64(s.sessions.Len()))
	return c, true
}

// subject is the authenticated user, or "" when the request carries no claims.
func subject(r *http.Request) string {
	if c, ok := mid.ClaimsFrom(r.Context()); ok {
		return c.Subject
	}
	return ""
}

// cardView is the session payload the UI renders.
type cardView struct {
	JobCard     *jobcard.JobCard `json:"job_card"`
	Progress    jobcard.Progress `json:"progress"`
	Transitions []jobcard.Status `json:"allowed_transitions"`
}

func view(c *jobcard.Controller, jc *jobcard.JobCard) cardView {
	return cardView{JobCard: jc, Progress: c.LifecycleProgress(), Transitions: c.AllowedTransitions()}
}

type initRequest struct {
	Vehicle  domain.VehicleContext `json:"vehicle_context"`
	Customer jobcard.Customer      `json:"customer"`
	Priority string                `json:"priority,omitempty"`
}

func (s *server) handleInit(w http.ResponseWriter, r *http.Request) {
	c, ok := s.controller(w, r)
	if !ok {
		return
	}
	var req initRequest
	if !decode(w, r, &req) {
		return
	}
	if err := domain.ValidateVehicleContext(req.Vehicle); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Customer.Phone != "" {
		if err := domain.ValidatePhone(req.Customer.Phone); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	opts := []jobcard.InitOption{jobcard.WithCustomer(req.Customer)}
	if p := strings.ToUpper(strings.TrimSpace(req.Priority)); p != "" {
		opts = append(opts, jobcard.WithPriority(p))
	}
	jc, err := c.InitializeJobCard(r.Context(), req.Vehicle, opts...)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if jc == nil {
		writeError(w, http.StatusConflict, "job card creation already in progress")
		return
	}
	writeJSON(w, http.StatusCreated, view(c, jc))
}

func (s *server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	c, ok := s.controller(w, r)
	if !ok {
		return
	}
	jc, ok := c.Current()
	if !ok {
		s.fail(w, r, jobcard.ErrNoJobCard)
		return
	}
	writeJSON(w, http.StatusOK, view(c, jc))
}

func (s *server) handleDrop(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.DropOwned(r.Context(), r.PathValue("sid"), subject(r)); err != nil {
		s.fail(w, r, err)
		return
	}
	s.metrics.ActiveSessions.Set(int64(s.sessions.Len()))
	w.WriteHeader(http.StatusNoContent)
}

type statusRequest struct {
	Status   string         `json:"status"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	c, ok := s.controller(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if !decode(w, r, &req) {
		return
	}
	jc, err := c.UpdateStatus(r.Context(), jobcard.Status(req.Status), req.Metadata)
	switch {
	case errors.Is(err, jobcard.ErrInvalidTransition):
		s.metrics.Rejected("illegal")
	case errors.Is(err, jobcard.ErrNoJobCard):
		s.metrics.Rejected("no_card")
	case err == nil && jc == nil:
		s.metrics.Rejected("duplicate")
		writeError(w, http.StatusConflict, "status change already in progress")
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view(c, jc))
}

func (s *server) handleTransitions(w http.ResponseWriter, r *http.Request) {
	c, ok := s.controller(w, r)
	if !ok {
		return
	}
	jc, ok := c.Current()
	if !ok {
		s.fail(w, r, jobcard.ErrNoJobCard)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"current": jc.Status,
		"allowed": c.AllowedTransitions(),
	})
}

type auditRequest struct {
	Action          string         `json:"action"`
	Actor           string         `json:"actor"`
	ConfidenceScore *float64       `json:"confidence_score,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

func (s *server) handleAudit(w http.ResponseWriter, r *http.Request) {
	c, ok := s.controller(w, r)
	if !ok {
		return
	}
	var req auditRequest
	if !decode(w, r, &req) {
		return
	}
	actor, err := jobcard.ParseActor(req.Actor)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	entry, err := c.AddAuditEntry(r.Context(), req.Action, actor, req.ConfidenceScore, req.Metadata)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *server) handleEvidence(w http.ResponseWriter, r *http.Request) {
	c, ok := s.controller(w, r)
	if !ok {
		return
	}
	var ev jobcard.PDIEvidence
	if !decode(w, r, &ev) {
		return
	}
	ev, err := c.AddPDIEvidence(r.Context(), ev)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

func (s *server) handleDiagnosis(w http.ResponseWriter, r *http.Request) {
	c, ok := s.controller(w, r)
	if !ok {
		return
	}
	var d domain.DiagnosticData
	if !decode(w, r, &d) {
		return
	}
	jc, err := c.AttachDiagnosis(r.Context(), &d)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view(c, jc))
}

func (s *server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	c, ok := s.controller(w, r)
	if !ok {
		return
	}
	var e domain.EstimateData
	if !decode(w, r, &e) {
		return
	}
	jc, err := c.AttachEstimate(r.Context(), &e)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view(c, jc))
}

// pdiView pairs the checklist with its completion counts.
type pdiView struct {
	Checklist *domain.PDIChecklist `json:"pdi_checklist"`
	Progress  pdi.Progress         `json:"progress"`
}

// handlePDIStart attaches the default checklist for the card's vehicle
// unless one is already attached.
func (s *server) handlePDIStart(w http.ResponseWriter, r *http.Request) {
	c, ok := s.controller(w, r)
	if !ok {
		return
	}
	jc, ok := c.Current()
	if !ok {
		s.fail(w, r, jobcard.ErrNoJobCard)
		return
	}
	if jc.PDI != nil {
		writeJSON(w, http.StatusOK, pdiView{Checklist: jc.PDI, Progress: pdi.ProgressOf(jc.PDI)})
		return
	}
	list := pdi.DefaultChecklist(jc.Vehicle)
	if _, err := c.AttachPDIChecklist(r.Context(), list); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, pdiView{Checklist: list, Progress: pdi.ProgressOf(list)})
}

type pdiItemRequest struct {
	Completed bool   `json:"completed"`
	Notes     string `json:"notes,omitempty"`
}

func (s *server) handlePDIItem(w http.ResponseWriter, r *http.Request) {
	c, ok := s.controller(w, r)
	if !ok {
		return
	}
	var req pdiItemRequest
	if !decode(w, r, &req) {
		return
	}
	item := r.PathValue("item")
	action := "PDI item " + item + " updated"
	if req.Completed {
		action = "PDI item " + item + " completed"
	}
	jc, err := c.UpdatePDI(r.Context(), jobcard.ActorUser, action, func(list *domain.PDIChecklist) (*domain.PDIChecklist, error) {
		return pdi.UpdateItem(list, item, req.Completed, req.Notes)
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pdiView{Checklist: jc.PDI, Progress: pdi.ProgressOf(jc.PDI)})
}

func (s *server) handlePDIComplete(w http.ResponseWriter, r *http.Request) {
	c, ok := s.controller(w, r)
	if !ok {
		return
	}
	var d pdi.Declaration
	if !decode(w, r, &d) {
		return
	}
	jc, err := c.UpdatePDI(r.Context(), jobcard.ActorUser, "PDI completed", func(list *domain.PDIChecklist) (*domain.PDIChecklist, error) {
		return pdi.Complete(list, d, time.Now())
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pdiView{Checklist: jc.PDI, Progress: pdi.ProgressOf(jc.PDI)})
}

func (s *server) handleProgress(w http.ResponseWriter, r *http.Request) {
	c, ok := s.controller(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, c.LifecycleProgress())
}

type chatRequest struct {
	Message          string         `json:"message"`
	History          []chat.Message `json:"history,omitempty"`
	IntelligenceMode string         `json:"intelligence_mode,omitempty"`
	OperatingMode    int            `json:"operating_mode"`
}

type chatReply struct {
	Response chat.Response    `json:"response"`
	JobCard  *jobcard.JobCard `json:"job_card,omitempty"`
	Progress jobcard.Progress `json:"progress"`
	// Hints holds the vehicle details read from the message while no card
	// exists, to prefill the intake form.
	Hints *domain.VehicleContext `json:"vehicle_hints,omitempty"`
}

// handleChat forwards the conversation with the session's status and
// vehicle, then applies what the backend returned to the card.
func (s *server) handleChat(w http.ResponseWriter, r *http.Request) {
	c, ok := s.controller(w, r)
	if !ok {
		return
	}
	var req chatRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	out := chat.Request{
		History:          append(req.History, chat.Text("user", req.Message)),
		IntelligenceMode: req.IntelligenceMode,
		OperatingMode:    req.OperatingMode,
	}
	var hints *domain.VehicleContext
	jc, hasCard := c.Current()
	if hasCard {
		out.Status = jc.Status
		out.Context = &jc.Vehicle
	} else {
		hints = vehicleFromHints(vehiclenlp.ExtractHints(req.Message))
		out.Context = hints
	}

	resp := s.chat.Send(r.Context(), out)
	if resp.Degraded {
		s.metrics.ChatFallback()
	} else if hasCard {
		s.applyChat(r, c, jc.Status, resp)
	}

	reply := chatReply{Response: resp, Progress: c.LifecycleProgress(), Hints: hints}
	if cur, ok := c.Current(); ok {
		reply.JobCard = cur
	}
	writeJSON(w, http.StatusOK, reply)
}

// applyChat attaches returned payloads and applies a legal status update.
// Failures are logged; the reply still reaches the user.
func (s *server) applyChat(r *http.Request, c *jobcard.Controller, current jobcard.Status, resp chat.Response) {
	ctx := r.Context()
	if resp.DiagnosticData != nil {
		if _, err := c.AttachDiagnosis(ctx, resp.DiagnosticData); err != nil {
			s.logger.Warn("attach diagnosis failed", "err", err)
		}
	}
	if resp.EstimateData != nil {
		if _, err := c.AttachEstimate(ctx, resp.EstimateData); err != nil {
			s.logger.Warn("attach estimate failed", "err", err)
		}
	}
	if resp.PDIChecklist != nil {
		if _, err := c.AttachPDIChecklist(ctx, resp.PDIChecklist); err != nil {
			s.logger.Warn("attach pdi checklist failed", "err", err)
		}
	}

	target := resp.StatusUpdate()
	if target == "" || target == current {
		return
	}
	if !c.CanTransitionTo(target) {
		s.metrics.Rejected("illegal")
		s.logger.Info("ignoring illegal status from chat", "from", current, "to", target)
		return
	}
	if _, err := c.UpdateStatus(ctx, target, map[string]any{"source": "ai"}); err != nil {
		s.logger.Warn("chat status update failed", "to", target, "err", err)
	}
}

// vehicleFromHints returns nil when the message named nothing useful.
func vehicleFromHints(h vehiclenlp.Hints) *domain.VehicleContext {
	vc := domain.VehicleContext{
		VehicleType:        h.VehicleType,
		FuelType:           h.FuelType,
		RegistrationNumber: h.RegistrationNumber,
		OdometerKM:         h.OdometerKM,
	}
	if h.Vehicle != nil {
		vc.Brand = h.Vehicle.Make
		vc.Model = h.Vehicle.Model
		vc.Year = domain.ModelYear(h.Vehicle.Year)
	}
	if vc == (domain.VehicleContext{}) {
		return nil
	}
	return &vc
}

func (s *server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	if s.similar == nil {
		writeError(w, http.StatusServiceUnavailable, "similar-job search is not configured")
		return
	}
	c, ok := s.controller(w, r)
	if !ok {
		return
	}
	q := semantic.Query{Text: r.URL.Query().Get("q"), Brand: r.URL.Query().Get("brand")}
	if jc, ok := c.Current(); ok {
		if q.Text == "" && jc.Diagnosis != nil {
			q.Text = strings.TrimSpace(jc.Diagnosis.Complaint + " " + jc.Diagnosis.Summary)
		}
		if q.Brand == "" {
			q.Brand = jc.Vehicle.Brand
		}
	}
	matches, err := s.similar.Similar(r.Context(), q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
}
