package semantic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/eka-ai/workshop/engine/domain"
	"github.com/eka-ai/workshop/pkg/fn"
)

// ErrEmptyQuery is returned by Similar for a blank query.
var ErrEmptyQuery = errors.New("semantic: empty query")

// pointNamespace derives stable point ids from job-card ids, so re-indexing
// a card replaces its point.
var pointNamespace = uuid.MustParse("6f1c2a9e-5b0d-4c1e-9a57-2d3e4f5a6b7c")

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store is the vector store the index writes to.
type Store interface {
	Upsert(ctx context.Context, records []VectorRecord) error
	SearchFiltered(ctx context.Context, embedding []float32, topK int, filters map[string]string) ([]SearchResult, error)
	DeleteWhere(ctx context.Context, key, value string) error
}

// Index embeds job summaries and searches them.
type Index struct {
	store  Store
	embed  Embedder
	logger *slog.Logger
}

// NewIndex creates an index over store using embed.
func NewIndex(store Store, embed Embedder, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{store: store, embed: embed, logger: logger}
}

// PointID returns the point id used for a job card.
func PointID(jobCardID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(jobCardID)).String()
}

// IndexJob stores s, replacing any earlier point for the same card.
func (ix *Index) IndexJob(ctx context.Context, s JobSummary) error {
	text := s.Text()
	vec, err := ix.embed.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("semantic: index %s: %w", s.JobCardID, err)
	}
	rec := VectorRecord{
		ID:        PointID(s.JobCardID),
		Embedding: vec,
		Payload: map[string]any{
			"content":     text,
			"job_card_id": s.JobCardID,
			"vehicle_id":  s.VehicleID,
			"brand":       s.Brand,
			"model":       s.Model,
			"year":        s.Year,
			"status":      s.Status,
		},
	}
	if err := ix.store.Upsert(ctx, []VectorRecord{rec}); err != nil {
		return err
	}
	ix.logger.Debug("job indexed", "job_card", s.JobCardID, "dims", len(vec))
	return nil
}

// Query is a similar-job search.
type Query struct {
	Text  string
	Brand string // exact filter on canonical brand, optional
	Limit int
}

type embedded struct {
	q   Query
	vec []float32
}

// Forget removes every point stored for a job card.
func (ix *Index) Forget(ctx context.Context, jobCardID string) error {
	if err := ix.store.DeleteWhere(ctx, "job_card_id", jobCardID); err != nil {
		return fmt.Errorf("semantic: forget %s: %w", jobCardID, err)
	}
	return nil
}

// Similar returns past jobs closest to q.Text.
func (ix *Index) Similar(ctx context.Context, q Query) ([]Match, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, ErrEmptyQuery
	}
	if q.Limit <= 0 {
		q.Limit = 5
	}
	var embedStage fn.Stage[Query, embedded] = func(ctx context.Context, q Query) fn.Result[embedded] {
		vec, err := ix.embed.Embed(ctx, q.Text)
		if err != nil {
			return fn.Err[embedded](fmt.Errorf("semantic: embed query: %w", err))
		}
		return fn.Ok(embedded{q: q, vec: vec})
	}
	var searchStage fn.Stage[embedded, []SearchResult] = func(ctx context.Context, e embedded) fn.Result[[]SearchResult] {
		var filters map[string]string
		if e.q.Brand != "" {
			filters = map[string]string{"brand": domain.NormalizeBrand(e.q.Brand)}
		}
		res, err := ix.store.SearchFiltered(ctx, e.vec, e.q.Limit, filters)
		return fn.FromPair(res, err)
	}
	pipeline := fn.Then(
		fn.Then(fn.TracedStage("semantic.embed", embedStage), fn.TracedStage("semantic.search", searchStage)),
		fn.MapStage(toMatches),
	)
	return pipeline(ctx, q).Unwrap()
}

func toMatches(results []SearchResult) []Match {
	return fn.Map(results, func(r SearchResult) Match {
		return Match{
			JobCardID: r.Meta["job_card_id"],
			VehicleID: r.Meta["vehicle_id"],
			Score:     r.Score,
			Summary:   r.Content,
			Brand:     r.Meta["brand"],
			Model:     r.Meta["model"],
		}
	})
}
