package jobcard

import (
	"slices"
	"strings"
	"time"

	"github.com/eka-ai/workshop/engine/domain"
)

// EvidenceKind classifies PDI evidence.
type EvidenceKind string

const (
	EvidencePhoto    EvidenceKind = "photo"
	EvidenceVideo    EvidenceKind = "video"
	EvidenceDocument EvidenceKind = "document"
	EvidenceNote     EvidenceKind = "note"
)

// PDIEvidence is a photo, video, document or note captured during inspection.
type PDIEvidence struct {
	ID         string       `json:"id"`
	ItemID     string       `json:"item_id,omitempty"`
	Kind       EvidenceKind `json:"kind"`
	URL        string       `json:"url,omitempty"`
	Notes      string       `json:"notes,omitempty"`
	CapturedAt time.Time    `json:"captured_at"`
}

func (e PDIEvidence) validate() error {
	switch e.Kind {
	case EvidencePhoto, EvidenceVideo, EvidenceDocument:
		if strings.TrimSpace(e.URL) == "" {
			return ErrInvalidEvidence
		}
	case EvidenceNote:
		if strings.TrimSpace(e.Notes) == "" {
			return ErrInvalidEvidence
		}
	default:
		return ErrInvalidEvidence
	}
	return nil
}

// Customer is the vehicle owner as captured at intake.
type Customer struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// Priorities accepted on intake.
const (
	PriorityLow    = "LOW"
	PriorityNormal = "NORMAL"
	PriorityHigh   = "HIGH"
	PriorityUrgent = "URGENT"
)

// JobCard is a work order for one vehicle visit.
type JobCard struct {
	ID          string                 `json:"id"`
	VehicleID   string                 `json:"vehicle_id"`
	Status      Status                 `json:"status"`
	Priority    string                 `json:"priority,omitempty"`
	Customer    Customer               `json:"customer"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	Version     int64                  `json:"version"` // bumped on every mutation
	Owner       string                 `json:"owner,omitempty"`
	AuditTrail  []AuditEntry           `json:"audit_trail"`
	PDIEvidence []PDIEvidence          `json:"pdi_evidence,omitempty"`
	Vehicle     domain.VehicleContext  `json:"vehicle_context"`
	Diagnosis   *domain.DiagnosticData `json:"diagnostic_data,omitempty"`
	Estimate    *domain.EstimateData   `json:"estimate_data,omitempty"`
	PDI         *domain.PDIChecklist   `json:"pdi_checklist,omitempty"`
}

// Clone returns a deep copy of jc.
func (jc *JobCard) Clone() *JobCard {
	if jc == nil {
		return nil
	}
	c := *jc
	c.AuditTrail = make([]AuditEntry, len(jc.AuditTrail))
	for i, e := range jc.AuditTrail {
		c.AuditTrail[i] = e.clone()
	}
	c.PDIEvidence = slices.Clone(jc.PDIEvidence)
	c.Diagnosis = jc.Diagnosis.Clone()
	c.Estimate = jc.Estimate.Clone()
	c.PDI = jc.PDI.Clone()
	return &c
}

// LastEntry returns the most recent audit entry.
func (jc *JobCard) LastEntry() (AuditEntry, bool) {
	if jc == nil || len(jc.AuditTrail) == 0 {
		return AuditEntry{}, false
	}
	return jc.AuditTrail[len(jc.AuditTrail)-1].clone(), true
}

// Row projects the card onto the job-card table.
func (jc *JobCard) Row() Row {
	return Row{
		ID:                 jc.ID,
		RegistrationNumber: jc.Vehicle.RegistrationNumber,
		CustomerName:       jc.Customer.Name,
		CustomerPhone:      jc.Customer.Phone,
		Status:             jc.Status,
		Priority:           jc.Priority,
		CreatedAt:          jc.CreatedAt,
	}
}

// Progress is the card's position along LifecycleStages.
type Progress struct {
	Current    int `json:"current"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// ProgressOf computes the progress of a card in status s. Statuses off the
// stage list, such as CANCELLED, report zero.
func ProgressOf(s Status) Progress {
	total := len(LifecycleStages)
	cur := s.StageIndex()
	return Progress{
		Current:    cur,
		Total:      total,
		Percentage: int((float64(cur)/float64(total))*100 + 0.5),
	}
}
