// Package jobcard implements the workshop job-card lifecycle: the status
// vocabulary and transition table, the audit trail, the job-card aggregate
// and the per-session controller that owns it.
package jobcard

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Status is a job-card lifecycle state.
type Status string

const (
	StatusCreated          Status = "CREATED"
	StatusContextVerified  Status = "CONTEXT_VERIFIED"
	StatusDiagnosed        Status = "DIAGNOSED"
	StatusEstimated        Status = "ESTIMATED"
	StatusCustomerApproval Status = "CUSTOMER_APPROVAL"
	StatusInProgress       Status = "IN_PROGRESS"
	StatusPDI              Status = "PDI"
	StatusPDICompleted     Status = "PDI_COMPLETED"
	StatusInvoiced         Status = "INVOICED"
	StatusClosed           Status = "CLOSED"
	StatusCancelled        Status = "CANCELLED"
)

// LifecycleStages is the canonical stage order used for progress.
// CANCELLED is off the path.
var LifecycleStages = []Status{
	StatusCreated,
	StatusContextVerified,
	StatusDiagnosed,
	StatusEstimated,
	StatusCustomerApproval,
	StatusInProgress,
	StatusPDI,
	StatusPDICompleted,
	StatusInvoiced,
	StatusClosed,
}

// AllStatuses lists every canonical status in lifecycle order.
var AllStatuses = append(slices.Clone(LifecycleStages), StatusCancelled)

// transitions maps each status to the statuses directly reachable from it.
var transitions = map[Status][]Status{
	StatusCreated:          {StatusContextVerified, StatusCancelled},
	StatusContextVerified:  {StatusDiagnosed, StatusCancelled},
	StatusDiagnosed:        {StatusEstimated, StatusCancelled},
	StatusEstimated:        {StatusDiagnosed, StatusCustomerApproval, StatusCancelled},
	StatusCustomerApproval: {StatusEstimated, StatusInProgress, StatusCancelled},
	StatusInProgress:       {StatusPDI, StatusCancelled},
	StatusPDI:              {StatusInProgress, StatusPDICompleted},
	StatusPDICompleted:     {StatusInvoiced},
	StatusInvoiced:         {StatusClosed},
	StatusClosed:           {},
	StatusCancelled:        {},
}

// aliases maps legacy spellings from older backends to canonical statuses.
var aliases = map[string]Status{
	"DIAGNOSIS":          StatusDiagnosed,
	"CUSTOMER_APPROVED":  StatusCustomerApproval,
	"APPROVED":           StatusCustomerApproval,
	"ESTIMATE_GENERATED": StatusEstimated,
	"WORK_IN_PROGRESS":   StatusInProgress,
	"PDI_PENDING":        StatusPDI,
	"COMPLETED":          StatusPDICompleted,
	"INVOICE_GENERATED":  StatusInvoiced,
	"OPEN":               StatusCreated,
	"CANCELED":           StatusCancelled,
}

// ParseStatus maps s, canonical or legacy, to a Status. Case, surrounding
// space, dashes and inner spaces are tolerated.
func ParseStatus(s string) (Status, error) {
	key := strings.ToUpper(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	if _, ok := transitions[Status(key)]; ok {
		return Status(key), nil
	}
	if st, ok := aliases[key]; ok {
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// NormalizeStatus is ParseStatus that returns "" for unknown input.
func NormalizeStatus(s string) Status {
	st, _ := ParseStatus(s)
	return st
}

// Valid reports whether s is a canonical status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// StageIndex returns the 1-based position of s in LifecycleStages, or 0.
func (s Status) StageIndex() int {
	return slices.Index(LifecycleStages, s) + 1
}

func (s Status) String() string { return string(s) }

// UnmarshalJSON accepts legacy spellings and rejects unknown statuses.
func (s *Status) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	st, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// IsLegalTransition reports whether target is directly reachable from
// current. An unknown current status allows nothing.
func IsLegalTransition(current, target Status) bool {
	return slices.Contains(transitions[current], target)
}

// AllowedTransitions returns the statuses reachable from current in
// lifecycle order.
func AllowedTransitions(current Status) []Status {
	next := transitions[current]
	out := make([]Status, 0, len(next))
	for _, s := range AllStatuses {
		if slices.Contains(next, s) {
			out = append(out, s)
		}
	}
	return out
}
