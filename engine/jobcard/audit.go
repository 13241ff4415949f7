package jobcard

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"strings"
	"time"
)

// Actor attributes an audit entry.
type Actor string

const (
	ActorUser   Actor = "USER"
	ActorAI     Actor = "AI"
	ActorSystem Actor = "SYSTEM"
)

// ParseActor accepts user, ai or system in any case.
func ParseActor(s string) (Actor, error) {
	switch a := Actor(strings.ToUpper(strings.TrimSpace(s))); a {
	case ActorUser, ActorAI, ActorSystem:
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownActor, s)
}

func (a *Actor) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseActor(raw)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// AuditEntry is one immutable line of a job card's audit trail.
type AuditEntry struct {
	ID              string         `json:"id"`
	Timestamp       time.Time      `json:"timestamp"`
	Action          string         `json:"action"`
	Actor           Actor          `json:"actor"`
	ConfidenceScore *float64       `json:"confidence_score,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

func (e AuditEntry) clone() AuditEntry {
	if e.ConfidenceScore != nil {
		v := *e.ConfidenceScore
		e.ConfidenceScore = &v
	}
	e.Metadata = maps.Clone(e.Metadata)
	return e
}

// Confidence is a helper for building optional confidence scores.
func Confidence(v float64) *float64 { return &v }

func validateEntry(action string, actor Actor, confidence *float64) error {
	if strings.TrimSpace(action) == "" {
		return ErrEmptyAction
	}
	switch actor {
	case ActorUser, ActorAI, ActorSystem:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownActor, actor)
	}
	if confidence != nil && (math.IsNaN(*confidence) || *confidence < 0 || *confidence > 1) {
		return fmt.Errorf("%w: got %v", ErrInvalidConfidence, *confidence)
	}
	return nil
}
