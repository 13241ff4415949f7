package semantic

import (
	"strconv"
	"strings"
	"time"

	"github.com/eka-ai/workshop/engine/jobcard"
)

// JobSummary is the searchable digest of a finished job card.
type JobSummary struct {
	JobCardID string    `json:"job_card_id"`
	VehicleID string    `json:"vehicle_id"`
	Brand     string    `json:"brand"`
	Model     string    `json:"model"`
	Year      int       `json:"year,omitempty"`
	FuelType  string    `json:"fuel_type,omitempty"`
	Complaint string    `json:"complaint,omitempty"`
	Diagnosis string    `json:"diagnosis,omitempty"`
	Actions   []string  `json:"actions,omitempty"`
	Status    string    `json:"status"`
	ClosedAt  time.Time `json:"closed_at"`
}

// Text is the string that gets embedded.
func (s JobSummary) Text() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(s.Brand + " " + s.Model))
	if s.Year > 0 {
		b.WriteString(" " + strconv.Itoa(s.Year))
	}
	if s.FuelType != "" {
		b.WriteString(" (" + s.FuelType + ")")
	}
	if s.Complaint != "" {
		b.WriteString(". Complaint: " + s.Complaint)
	}
	if s.Diagnosis != "" {
		b.WriteString(". Diagnosis: " + s.Diagnosis)
	}
	if len(s.Actions) > 0 {
		b.WriteString(". Work: " + strings.Join(s.Actions, "; "))
	}
	return b.String()
}

// SummaryFromCard digests a job card.
func SummaryFromCard(jc *jobcard.JobCard) JobSummary {
	s := JobSummary{
		JobCardID: jc.ID,
		VehicleID: jc.VehicleID,
		Brand:     jc.Vehicle.Brand,
		Model:     jc.Vehicle.Model,
		Year:      int(jc.Vehicle.Year),
		FuelType:  jc.Vehicle.FuelType,
		Status:    string(jc.Status),
		ClosedAt:  jc.UpdatedAt,
	}
	if d := jc.Diagnosis; d != nil {
		s.Complaint = d.Complaint
		s.Diagnosis = d.Summary
		s.Actions = append(s.Actions, d.RecommendedActions...)
	}
	if e := jc.Estimate; e != nil {
		for _, it := range e.Items {
			s.Actions = append(s.Actions, it.Description)
		}
	}
	return s
}

// SearchResult represents a single vector search hit.
type SearchResult struct {
	ID      string            `json:"id"`
	Score   float32           `json:"score"`
	Content string            `json:"content"`
	Meta    map[string]string `json:"meta"`
}

// VectorRecord represents a single vector to store in Qdrant.
type VectorRecord struct {
	ID        string
	Embedding []float32
	Payload   map[string]any
}

// Match is a past job similar to a query.
type Match struct {
	JobCardID string  `json:"job_card_id"`
	VehicleID string  `json:"vehicle_id"`
	Score     float32 `json:"score"`
	Summary   string  `json:"summary"`
	Brand     string  `json:"brand,omitempty"`
	Model     string  `json:"model,omitempty"`
}
