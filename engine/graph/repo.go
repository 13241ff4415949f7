package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/eka-ai/workshop/engine/jobcard"
	"github.com/eka-ai/workshop/pkg/repo"
)

// newJobCardRepo creates a Neo4j-backed repository for JobCard nodes.
func newJobCardRepo(o SessionOpener) *repo.Neo4jRepo[*jobcard.JobCard, string] {
	return repo.NewNeo4jRepo[*jobcard.JobCard, string](
		nil,
		"JobCard",
		func(jc *jobcard.JobCard) map[string]any {
			m, _ := jobCardToMap(jc)
			return m
		},
		jobCardFromRecord,
		repo.WithSession[*jobcard.JobCard, string](func(ctx context.Context) repo.Runner {
			return o.OpenSession(ctx)
		}),
	)
}

// jobCardToMap flattens the queryable fields and keeps the full card as a
// JSON snapshot.
func jobCardToMap(jc *jobcard.JobCard) (map[string]any, error) {
	snap, err := json.Marshal(jc)
	if err != nil {
		return nil, fmt.Errorf("graph: encode job card %s: %w", jc.ID, err)
	}
	return map[string]any{
		"id":             jc.ID,
		"vehicle_id":     jc.VehicleID,
		"status":         string(jc.Status),
		"priority":       jc.Priority,
		"customer_name":  jc.Customer.Name,
		"customer_phone": jc.Customer.Phone,
		"created_at":     jc.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at":     jc.UpdatedAt.UTC().Format(time.RFC3339Nano),
		"audit_entries":  int64(len(jc.AuditTrail)),
		"version":        jc.Version,
		"snapshot":       string(snap),
	}, nil
}

func vehicleToMap(jc *jobcard.JobCard) map[string]any {
	v := jc.Vehicle
	return map[string]any{
		"registration": v.RegistrationNumber,
		"brand":        v.Brand,
		"model":        v.Model,
		"year":         int64(v.Year),
		"fuel_type":    v.FuelType,
		"vehicle_type": v.VehicleType,
	}
}

func jobCardFromRecord(rec *neo4j.Record) (*jobcard.JobCard, error) {
	node, _, err := neo4j.GetRecordValue[dbtype.Node](rec, "n")
	if err != nil {
		return nil, err
	}
	return jobCardFromProps(node.Props)
}

func jobCardFromProps(props map[string]any) (*jobcard.JobCard, error) {
	snap := strProp(props, "snapshot")
	if snap == "" {
		return nil, fmt.Errorf("graph: job card %q has no snapshot", strProp(props, "id"))
	}
	var jc jobcard.JobCard
	if err := json.Unmarshal([]byte(snap), &jc); err != nil {
		return nil, fmt.Errorf("graph: decode job card %q: %w", strProp(props, "id"), err)
	}
	return &jc, nil
}

func strProp(props map[string]any, key string) string {
	if v, ok := props[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
