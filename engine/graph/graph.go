// Package graph persists job cards in Neo4j as
// (Vehicle)-[:HAS_JOB_CARD]->(JobCard)<-[:CURRENT]-(Session).
package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/eka-ai/workshop/engine/jobcard"
	"github.com/eka-ai/workshop/pkg/repo"
)

// CypherResult is a cursor over query records.
type CypherResult = repo.Result

// CypherRunner runs a single cypher statement.
type CypherRunner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (CypherResult, error)
}

// CypherSession is a closable runner that can group writes in a transaction.
type CypherSession interface {
	CypherRunner
	Close(ctx context.Context) error
	ExecuteWrite(ctx context.Context, work func(tx CypherRunner) (any, error)) (any, error)
}

// SessionOpener opens sessions.
type SessionOpener interface {
	OpenSession(ctx context.Context) CypherSession
}

// GraphStore provides job-card graph operations on top of the generic Neo4j
// repository.
type GraphStore struct {
	opener   SessionOpener
	jobCards *repo.Neo4jRepo[*jobcard.JobCard, string]
}

// New creates a GraphStore backed by driver.
func New(driver neo4j.DriverWithContext) *GraphStore {
	return NewWithOpener(driverOpener{driver: driver})
}

// NewWithOpener creates a GraphStore that opens sessions through o.
func NewWithOpener(o SessionOpener) *GraphStore {
	return &GraphStore{opener: o, jobCards: newJobCardRepo(o)}
}

// SaveJobCard writes jc, links it to its vehicle and, when sessionID is set,
// makes it the session's current card. The card properties are only
// overwritten when jc is newer than the stored version.
func (g *GraphStore) SaveJobCard(ctx context.Context, sessionID string, jc *jobcard.JobCard) error {
	props, err := jobCardToMap(jc)
	if err != nil {
		return err
	}
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	_, err = sess.ExecuteWrite(ctx, func(tx CypherRunner) (any, error) {
		if _, err := tx.Run(ctx,
			`MERGE (v:Vehicle {id: $vehicle})
			 SET v += $vprops
			 MERGE (n:JobCard {id: $id})
			 MERGE (v)-[:HAS_JOB_CARD]->(n)
			 WITH n
			 WHERE coalesce(n.version, 0) < $version
			 SET n += $props`,
			map[string]any{
				"vehicle": jc.VehicleID,
				"vprops":  vehicleToMap(jc),
				"id":      jc.ID,
				"version": jc.Version,
				"props":   props,
			}); err != nil {
			return nil, err
		}
		if sessionID == "" {
			return nil, nil
		}
		if _, err := tx.Run(ctx,
			`MERGE (s:Session {id: $sid})
			 SET s.updated_at = $at
			 WITH s
			 OPTIONAL MATCH (s)-[old:CURRENT]->(:JobCard)
			 DELETE old`,
			map[string]any{"sid": sessionID, "at": jc.UpdatedAt.UTC().Format(time.RFC3339Nano)}); err != nil {
			return nil, err
		}
		_, err := tx.Run(ctx,
			`MATCH (s:Session {id: $sid}), (n:JobCard {id: $id})
			 MERGE (s)-[:CURRENT]->(n)`,
			map[string]any{"sid": sessionID, "id": jc.ID})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("graph: save job card %s: %w", jc.ID, err)
	}
	return nil
}

// LoadSession returns the session's current card, or nil when it has none.
func (g *GraphStore) LoadSession(ctx context.Context, sessionID string) (*jobcard.JobCard, error) {
	items, err := g.jobCards.Query(ctx,
		`MATCH (:Session {id: $sid})-[:CURRENT]->(n:JobCard) RETURN n LIMIT 1`,
		map[string]any{"sid": sessionID})
	if err != nil {
		return nil, fmt.Errorf("graph: load session %s: %w", sessionID, err)
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items[0], nil
}

// ClearSession unlinks the session from its current card. The card stays.
func (g *GraphStore) ClearSession(ctx context.Context, sessionID string) error {
	return g.jobCards.Exec(ctx,
		`MATCH (:Session {id: $sid})-[r:CURRENT]->() DELETE r`,
		map[string]any{"sid": sessionID})
}

// JobCard returns a stored card by id. A missing card wraps repo.ErrNotFound.
func (g *GraphStore) JobCard(ctx context.Context, id string) (*jobcard.JobCard, error) {
	return g.jobCards.Get(ctx, id)
}

// ListJobCards returns stored cards, newest first unless opts says otherwise.
func (g *GraphStore) ListJobCards(ctx context.Context, opts repo.ListOpts) ([]*jobcard.JobCard, error) {
	if opts.OrderBy == "" {
		opts.OrderBy, opts.Desc = "created_at", true
	}
	return g.jobCards.List(ctx, opts)
}

// VehicleHistory returns every card for a vehicle, newest first.
func (g *GraphStore) VehicleHistory(ctx context.Context, vehicleID string) ([]*jobcard.JobCard, error) {
	return g.jobCards.Query(ctx,
		`MATCH (:Vehicle {id: $vehicle})-[:HAS_JOB_CARD]->(n:JobCard)
		 RETURN n ORDER BY n.created_at DESC`,
		map[string]any{"vehicle": vehicleID})
}

// DeleteJobCard removes a card and its relationships.
func (g *GraphStore) DeleteJobCard(ctx context.Context, id string) error {
	return g.jobCards.Delete(ctx, id)
}

// driverOpener adapts a neo4j driver to SessionOpener.
type driverOpener struct {
	driver neo4j.DriverWithContext
}

func (d driverOpener) OpenSession(ctx context.Context) CypherSession {
	return &driverSession{sess: d.driver.NewSession(ctx, neo4j.SessionConfig{})}
}

type driverSession struct {
	sess neo4j.SessionWithContext
}

func (s *driverSession) Run(ctx context.Context, cypher string, params map[string]any) (CypherResult, error) {
	return s.sess.Run(ctx, cypher, params)
}

func (s *driverSession) Close(ctx context.Context) error { return s.sess.Close(ctx) }

func (s *driverSession) ExecuteWrite(ctx context.Context, work func(tx CypherRunner) (any, error)) (any, error) {
	return s.sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return work(managedTx{tx: tx})
	})
}

type managedTx struct {
	tx neo4j.ManagedTransaction
}

func (m managedTx) Run(ctx context.Context, cypher string, params map[string]any) (CypherResult, error) {
	return m.tx.Run(ctx, cypher, params)
}
