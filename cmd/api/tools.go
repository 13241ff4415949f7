package main

import (
	"net/http"
	"strings"

	"github.com/eka-ai/workshop/engine/domain"
	"github.com/eka-ai/workshop/engine/fleet"
	"github.com/eka-ai/workshop/engine/invoice"
	"github.com/eka-ai/workshop/engine/jobcard"
	"github.com/eka-ai/workshop/pkg/mid"
	"github.com/eka-ai/workshop/pkg/workshopapi"
)

type speakRequest struct {
	Text string `json:"text"`
}

func (s *server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	if s.speech == nil {
		writeError(w, http.StatusServiceUnavailable, "speech is not configured")
		return
	}
	var req speakRequest
	if !decode(w, r, &req) {
		return
	}
	audio, err := s.speech.Speak(r.Context(), req.Text)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"audio_data": audio})
}

// filteredRows lists job cards from the configured source and applies the
// table filter from the query string.
func (s *server) filteredRows(w http.ResponseWriter, r *http.Request) ([]jobcard.Row, bool) {
	if s.listJobs == nil {
		writeError(w, http.StatusServiceUnavailable, "job-card listing is not configured")
		return nil, false
	}
	q := r.URL.Query()
	f := jobcard.Filter{
		SearchQuery: q.Get("search"),
		Status:      q.Get("status"),
		Priority:    q.Get("priority"),
	}
	var status string
	if st := jobcard.NormalizeStatus(f.Status); st != "" {
		status = string(st)
	}
	ctx := workshopapi.WithToken(r.Context(), mid.BearerToken(r))
	rows, err := s.listJobs(ctx, status)
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	return jobcard.Apply(rows, f), true
}

func (s *server) handleListJobCards(w http.ResponseWriter, r *http.Request) {
	rows, ok := s.filteredRows(w, r)
	if !ok {
		return
	}
	if rows == nil {
		rows = []jobcard.Row{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"job_cards": rows, "total": len(rows)})
}

func (s *server) handleExport(w http.ResponseWriter, r *http.Request) {
	rows, ok := s.filteredRows(w, r)
	if !ok {
		return
	}
	switch format := strings.ToLower(r.URL.Query().Get("format")); format {
	case "", "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=job_cards.csv")
		if err := jobcard.ExportCSV(w, rows); err != nil {
			s.logger.Error("csv export failed", "err", err)
		}
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", "attachment; filename=job_cards.xlsx")
		if err := jobcard.ExportXLSX(w, rows); err != nil {
			s.logger.Error("xlsx export failed", "err", err)
		}
	default:
		writeError(w, http.StatusBadRequest, "format must be csv or xlsx")
	}
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		writeError(w, http.StatusServiceUnavailable, "stats need neo4j")
		return
	}
	counts, err := s.stats.StatusCounts(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	brands, err := s.stats.TopBrands(r.Context(), 10)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	nodes, err := s.stats.NodeCounts(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"by_status": counts, "top_brands": brands, "nodes": nodes})
}

// handleVehicleHistory lists every stored card for one vehicle, newest first.
func (s *server) handleVehicleHistory(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, http.StatusServiceUnavailable, "vehicle history needs neo4j")
		return
	}
	id := domain.NormalizeRegistration(r.PathValue("id"))
	cards, err := s.archive.VehicleHistory(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if cards == nil {
		cards = []*jobcard.JobCard{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"vehicle_id": id, "job_cards": cards})
}

// handleDeleteJobCard removes a stored card from the graph and from
// similar-job search. Service roles only.
func (s *server) handleDeleteJobCard(w http.ResponseWriter, r *http.Request) {
	if !serviceOnly(r) {
		writeError(w, http.StatusForbidden, "deleting job cards needs a service role")
		return
	}
	if s.archive == nil {
		writeError(w, http.StatusServiceUnavailable, "deleting job cards needs neo4j")
		return
	}
	id := r.PathValue("id")
	if err := s.archive.DeleteJobCard(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	if s.similar != nil {
		if err := s.similar.Forget(r.Context(), id); err != nil {
			s.logger.Warn("similar index not cleaned", "job_card", id, "err", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

type invoicePreviewRequest struct {
	Lines         []invoice.Line       `json:"lines,omitempty"`
	Estimate      *domain.EstimateData `json:"estimate_data,omitempty"`
	SupplierGSTIN string               `json:"supplier_gstin,omitempty"`
	PlaceOfSupply string               `json:"place_of_supply,omitempty"`
}

// handleInvoicePreview computes GST totals for explicit lines or for an
// estimate. The supplier GSTIN defaults to the configured one.
func (s *server) handleInvoicePreview(w http.ResponseWriter, r *http.Request) {
	var req invoicePreviewRequest
	if !decode(w, r, &req) {
		return
	}
	lines := req.Lines
	if len(lines) == 0 && req.Estimate != nil {
		lines = invoice.LinesFromEstimate(req.Estimate)
	}
	gstin := req.SupplierGSTIN
	if gstin == "" {
		gstin = s.supplierGSTIN
	}
	if err := domain.ValidateGSTIN(gstin); err != nil {
		s.fail(w, r, err)
		return
	}
	totals, err := invoice.Compute(lines, gstin, req.PlaceOfSupply)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

type billingRequest struct {
	Contract fleet.Contract     `json:"contract"`
	Logs     []fleet.VehicleLog `json:"logs"`
	Month    string             `json:"month"`
}

func (s *server) handleMGBilling(w http.ResponseWriter, r *http.Request) {
	var req billingRequest
	if !decode(w, r, &req) {
		return
	}
	analysis, err := fleet.CalculateBilling(req.Contract, req.Logs, req.Month)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

type odometerRequest struct {
	Previous *fleet.VehicleLog `json:"previous,omitempty"`
	Log      fleet.VehicleLog  `json:"log"`
}

func (s *server) handleOdometer(w http.ResponseWriter, r *http.Request) {
	var req odometerRequest
	if !decode(w, r, &req) {
		return
	}
	if err := fleet.ValidateOdometer(req.Previous, req.Log); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"valid": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"valid": true, "distance_km": req.Log.Distance()})
}
