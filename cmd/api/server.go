package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/eka-ai/workshop/engine/chat"
	"github.com/eka-ai/workshop/engine/domain"
	"github.com/eka-ai/workshop/engine/fleet"
	"github.com/eka-ai/workshop/engine/graph"
	"github.com/eka-ai/workshop/engine/invoice"
	"github.com/eka-ai/workshop/engine/jobcard"
	"github.com/eka-ai/workshop/engine/pdi"
	"github.com/eka-ai/workshop/engine/semantic"
	"github.com/eka-ai/workshop/engine/speech"
	"github.com/eka-ai/workshop/pkg/live"
	"github.com/eka-ai/workshop/pkg/metrics"
	"github.com/eka-ai/workshop/pkg/mid"
	"github.com/eka-ai/workshop/pkg/repo"
	"github.com/eka-ai/workshop/pkg/workshopapi"
)

type chatSender interface {
	Send(ctx context.Context, req chat.Request) chat.Response
}

type speaker interface {
	Speak(ctx context.Context, text string) (string, error)
}

type similarFinder interface {
	Similar(ctx context.Context, q semantic.Query) ([]semantic.Match, error)
	Forget(ctx context.Context, jobCardID string) error
}

type statsSource interface {
	StatusCounts(ctx context.Context) (map[string]int64, error)
	TopBrands(ctx context.Context, limit int) ([]graph.BrandStats, error)
	NodeCounts(ctx context.Context) (map[string]int64, error)
}

// cardArchive is the persisted job-card history.
type cardArchive interface {
	VehicleHistory(ctx context.Context, vehicleID string) ([]*jobcard.JobCard, error)
	DeleteJobCard(ctx context.Context, id string) error
}

// server holds the gateway's handlers. Optional backends are nil when
// disabled and their routes answer 503.
type server struct {
	logger        *slog.Logger
	sessions      *jobcard.Registry
	metrics       *metrics.Workshop
	hub           *live.Hub
	auth          mid.Middleware
	supplierGSTIN string

	chat     chatSender
	speech   speaker
	similar  similarFinder
	stats    statsSource
	archive  cardArchive
	listJobs func(ctx context.Context, status string) ([]jobcard.Row, error)
}

func (s *server) routes(reg *metrics.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)

	mux.Handle("POST /api/sessions/{sid}/job-card", s.protect(s.handleInit))
	mux.Handle("GET /api/sessions/{sid}/job-card", s.protect(s.handleCurrent))
	mux.Handle("DELETE /api/sessions/{sid}", s.protect(s.handleDrop))
	mux.Handle("POST /api/sessions/{sid}/status", s.protect(s.handleStatus))
	mux.Handle("GET /api/sessions/{sid}/transitions", s.protect(s.handleTransitions))
	mux.Handle("POST /api/sessions/{sid}/audit", s.protect(s.handleAudit))
	mux.Handle("POST /api/sessions/{sid}/evidence", s.protect(s.handleEvidence))
	mux.Handle("POST /api/sessions/{sid}/diagnosis", s.protect(s.handleDiagnosis))
	mux.Handle("POST /api/sessions/{sid}/estimate", s.protect(s.handleEstimate))
	mux.Handle("POST /api/sessions/{sid}/pdi", s.protect(s.handlePDIStart))
	mux.Handle("PATCH /api/sessions/{sid}/pdi/items/{item}", s.protect(s.handlePDIItem))
	mux.Handle("POST /api/sessions/{sid}/pdi/complete", s.protect(s.handlePDIComplete))
	mux.Handle("GET /api/sessions/{sid}/progress", s.protect(s.handleProgress))
	mux.Handle("POST /api/sessions/{sid}/chat", s.protect(s.handleChat))
	mux.Handle("GET /api/sessions/{sid}/similar", s.protect(s.handleSimilar))

	mux.Handle("POST /api/speak", s.protect(s.handleSpeak))
	mux.Handle("GET /api/job-cards", s.protect(s.handleListJobCards))
	mux.Handle("GET /api/job-cards/export", s.protect(s.handleExport))
	mux.Handle("DELETE /api/job-cards/{id}", s.protect(s.handleDeleteJobCard))
	mux.Handle("GET /api/vehicles/{id}/history", s.protect(s.handleVehicleHistory))
	mux.Handle("GET /api/stats", s.protect(s.handleStats))
	mux.Handle("POST /api/invoices/preview", s.protect(s.handleInvoicePreview))
	mux.Handle("POST /api/mg/billing", s.protect(s.handleMGBilling))
	mux.Handle("POST /api/mg/odometer", s.protect(s.handleOdometer))

	if s.hub != nil {
		var feed http.Handler = http.HandlerFunc(s.handleLive)
		if s.auth != nil {
			feed = mid.QueryToken("access_token")(s.auth(feed))
		}
		mux.Handle("GET /ws", feed)
	}
	if reg != nil {
		mux.Handle("GET /metrics", reg.Handler())
	}
	return mux
}

// serviceRoles may watch every session and delete stored cards.
var serviceRoles = map[string]bool{"service_role": true, "admin": true}

// serviceOnly reports whether r may use a service endpoint. Requests without
// claims only reach here when auth is off.
func serviceOnly(r *http.Request) bool {
	claims, ok := mid.ClaimsFrom(r.Context())
	return !ok || serviceRoles[claims.Role]
}

// handleLive admits a dashboard to the event feed. ?session=<id> needs the
// session's owner; the all-sessions feed needs a service role.
func (s *server) handleLive(w http.ResponseWriter, r *http.Request) {
	sid := r.URL.Query().Get("session")
	if sid == "" {
		if !serviceOnly(r) {
			writeError(w, http.StatusForbidden, "all-sessions feed needs a service role")
			return
		}
		s.hub.ServeHTTP(w, r)
		return
	}
	if _, err := s.sessions.GetOwned(r.Context(), sid, subject(r)); err != nil {
		s.fail(w, r, err)
		return
	}
	s.hub.ServeHTTP(w, r)
}

func (s *server) protect(h http.HandlerFunc) http.Handler {
	if s.auth == nil {
		return h
	}
	return s.auth(h)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decode reads a JSON body into v, answering 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// statusFor maps domain and upstream errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, workshopapi.ErrNoToken):
		return http.StatusUnauthorized
	case errors.Is(err, jobcard.ErrNoJobCard), errors.Is(err, workshopapi.ErrNotFound),
		errors.Is(err, jobcard.ErrSessionNotOwned), errors.Is(err, repo.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, jobcard.ErrInvalidTransition),
		errors.Is(err, pdi.ErrIncomplete),
		errors.Is(err, pdi.ErrAlreadyCompleted):
		return http.StatusConflict
	case errors.Is(err, workshopapi.ErrRateLimited):
		return http.StatusTooManyRequests
	case domain.IsValidation(err),
		errors.Is(err, jobcard.ErrUnknownStatus),
		errors.Is(err, jobcard.ErrUnknownActor),
		errors.Is(err, jobcard.ErrInvalidConfidence),
		errors.Is(err, jobcard.ErrEmptyAction),
		errors.Is(err, jobcard.ErrInvalidEvidence),
		errors.Is(err, jobcard.ErrEmptySession),
		errors.Is(err, semantic.ErrEmptyQuery),
		errors.Is(err, speech.ErrEmptyText),
		errors.Is(err, pdi.ErrUnknownItem),
		errors.Is(err, pdi.ErrDeclarationRequired),
		isInvoiceError(err),
		isFleetError(err):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func isInvoiceError(err error) bool {
	for _, target := range []error{
		invoice.ErrInvalidRate, invoice.ErrInvalidQuantity, invoice.ErrNegativePrice,
		invoice.ErrEmptyInvoice, invoice.ErrInvalidState,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func isFleetError(err error) bool {
	for _, target := range []error{
		fleet.ErrOdometerRollback, fleet.ErrOdometerGap, fleet.ErrDailyLimit, fleet.ErrLogOrder,
		fleet.ErrInvalidContract, fleet.ErrOutsideContract, fleet.ErrInvalidMonth,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// fail writes err with its mapped status, logging server-side failures.
func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "request_id", mid.RequestIDFrom(r.Context()), "err", err)
	}
	writeError(w, status, err.Error())
}
