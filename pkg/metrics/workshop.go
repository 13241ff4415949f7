package metrics

import "time"

// Workshop is the gateway's metric set.
type Workshop struct {
	reg *Registry

	ActiveSessions *Gauge
	WSClients      *Gauge
}

// NewWorkshop registers the gateway metrics on reg.
func NewWorkshop(reg *Registry) *Workshop {
	return &Workshop{
		reg:            reg,
		ActiveSessions: reg.Gauge("eka_active_sessions", "Job-card sessions held in memory."),
		WSClients:      reg.Gauge("eka_ws_clients", "Connected websocket dashboard clients."),
	}
}

// Registry returns the underlying registry.
func (w *Workshop) Registry() *Registry { return w.reg }

// Transition counts an applied status change.
func (w *Workshop) Transition(from, to string) {
	w.reg.Counter(WithLabels("eka_jobcard_transitions_total", "from", from, "to", to),
		"Applied job-card status transitions.").Inc()
}

// Rejected counts a refused status change by reason (illegal, duplicate, no_card).
func (w *Workshop) Rejected(reason string) {
	w.reg.Counter(WithLabels("eka_jobcard_transitions_rejected_total", "reason", reason),
		"Refused job-card status transitions.").Inc()
}

// Upstream records one call to a remote service.
func (w *Workshop) Upstream(service string, start time.Time, err error) {
	w.reg.Histogram(WithLabels("eka_upstream_duration_seconds", "service", service),
		"Latency of calls to upstream services.", nil).Since(start)
	if err != nil {
		w.reg.Counter(WithLabels("eka_upstream_errors_total", "service", service),
			"Failed calls to upstream services.").Inc()
	}
}

// Created counts a new job card.
func (w *Workshop) Created() {
	w.reg.Counter("eka_jobcards_created_total", "Job cards created.").Inc()
}

// ChatFallback counts a degraded chat reply.
func (w *Workshop) ChatFallback() {
	w.reg.Counter("eka_chat_fallbacks_total", "Chat replies served from the local fallback.").Inc()
}
