package domain

import "time"

// Backend payloads. Every field the diagnostics backend may omit is a
// pointer or an omitempty value, so an absent field stays distinguishable
// from a zero one.

// DiagnosticData is the AI diagnosis for the reported complaint.
type DiagnosticData struct {
	Complaint          string          `json:"complaint,omitempty"`
	Summary            string          `json:"summary,omitempty"`
	Severity           string          `json:"severity,omitempty"` // low, medium, high, critical
	Confidence         *float64        `json:"confidence,omitempty"`
	ProbableCauses     []ProbableCause `json:"probable_causes,omitempty"`
	DTCCodes           []string        `json:"dtc_codes,omitempty"`
	RecommendedActions []string        `json:"recommended_actions,omitempty"`
	SafetyCritical     bool            `json:"safety_critical,omitempty"`
}

// ProbableCause is one ranked root-cause hypothesis.
type ProbableCause struct {
	Cause       string   `json:"cause"`
	Probability *float64 `json:"probability,omitempty"`
	System      string   `json:"system,omitempty"`
}

// EstimateData is a parts-and-labour estimate. Amounts are rupees as sent by
// the backend; invoices use engine/invoice for exact arithmetic.
type EstimateData struct {
	Items        []EstimateItem `json:"items,omitempty"`
	PartsTotal   *float64       `json:"parts_total,omitempty"`
	LabourTotal  *float64       `json:"labour_total,omitempty"`
	TaxTotal     *float64       `json:"tax_total,omitempty"`
	GrandTotal   *float64       `json:"grand_total,omitempty"`
	Currency     string         `json:"currency,omitempty"`
	ValidityDays int            `json:"validity_days,omitempty"`
	Notes        string         `json:"notes,omitempty"`
}

// EstimateItem is a single estimate line.
type EstimateItem struct {
	Description string   `json:"description"`
	PartNumber  string   `json:"part_number,omitempty"`
	HSNCode     string   `json:"hsn_code,omitempty"`
	Kind        string   `json:"kind,omitempty"` // part, labour
	Quantity    float64  `json:"quantity,omitempty"`
	UnitPrice   float64  `json:"unit_price,omitempty"`
	GSTRate     *float64 `json:"gst_rate,omitempty"`
	MinPrice    *float64 `json:"min_price,omitempty"`
	MaxPrice    *float64 `json:"max_price,omitempty"`
}

// MGAnalysis is a minimum-guarantee fleet billing result.
type MGAnalysis struct {
	ContractID         string  `json:"contract_id,omitempty"`
	VehicleID          string  `json:"vehicle_id,omitempty"`
	Month              string  `json:"month,omitempty"` // YYYY-MM
	GuaranteedKM       int     `json:"guaranteed_km"`
	ActualKM           int     `json:"actual_km"`
	ShortfallKM        int     `json:"shortfall_km"`
	ExcessKM           int     `json:"excess_km"`
	BaseAmount         float64 `json:"base_amount"`
	ExcessAmount       float64 `json:"excess_amount"`
	TotalAmount        float64 `json:"total_amount"`
	UtilizationPercent float64 `json:"utilization_percent"`
}

// ServiceHistory lists earlier visits of the vehicle.
type ServiceHistory struct {
	VehicleID string          `json:"vehicle_id,omitempty"`
	Records   []ServiceRecord `json:"records,omitempty"`
}

// ServiceRecord is one past visit.
type ServiceRecord struct {
	Date        time.Time `json:"date"`
	OdometerKM  int       `json:"odometer_km,omitempty"`
	Description string    `json:"description"`
	Workshop    string    `json:"workshop,omitempty"`
	Amount      *float64  `json:"amount,omitempty"`
}

// PDIChecklist is the pre-delivery inspection list for a job card.
type PDIChecklist struct {
	Items                 []PDIItem  `json:"items"`
	TechnicianDeclaration bool       `json:"technician_declaration,omitempty"`
	DeclarationText       string     `json:"declaration_text,omitempty"`
	CompletedAt           *time.Time `json:"completed_at,omitempty"`
}

// PDIItem is one inspection point.
type PDIItem struct {
	ID        string `json:"id"`
	Category  string `json:"category,omitempty"`
	Label     string `json:"label"`
	Required  bool   `json:"required"`
	Completed bool   `json:"completed"`
	Notes     string `json:"notes,omitempty"`
}

// RecallData lists open manufacturer recalls for the vehicle.
type RecallData struct {
	Recalls []Recall `json:"recalls,omitempty"`
}

// Recall is one manufacturer campaign.
type Recall struct {
	CampaignID  string     `json:"campaign_id"`
	Component   string     `json:"component,omitempty"`
	Description string     `json:"description"`
	Remedy      string     `json:"remedy,omitempty"`
	IssuedAt    *time.Time `json:"issued_at,omitempty"`
	Open        bool       `json:"open"`
}
