package graph

import (
	"context"
)

// BrandStats counts job cards per vehicle brand.
type BrandStats struct {
	Brand    string `json:"brand"`
	Vehicles int64  `json:"vehicles"`
	JobCards int64  `json:"job_cards"`
}

// NodeCounts returns node counts grouped by label.
func (g *GraphStore) NodeCounts(ctx context.Context) (map[string]int64, error) {
	return g.countBy(ctx, `MATCH (n) RETURN labels(n)[0] AS key, count(*) AS count`, nil)
}

// StatusCounts returns job-card counts grouped by status.
func (g *GraphStore) StatusCounts(ctx context.Context) (map[string]int64, error) {
	return g.countBy(ctx, `MATCH (n:JobCard) RETURN n.status AS key, count(*) AS count`, nil)
}

func (g *GraphStore) countBy(ctx context.Context, cypher string, params map[string]any) (map[string]int64, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64)
	for result.Next(ctx) {
		rec := result.Record()
		key, _ := rec.Get("key")
		cnt, _ := rec.Get("count")
		if k, ok := key.(string); ok {
			if c, ok := cnt.(int64); ok {
				counts[k] = c
			}
		}
	}
	return counts, nil
}

// TopBrands returns the brands with the most job cards.
func (g *GraphStore) TopBrands(ctx context.Context, limit int) ([]BrandStats, error) {
	if limit <= 0 {
		limit = 10
	}
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (v:Vehicle)
		WHERE v.brand IS NOT NULL AND v.brand <> ''
		OPTIONAL MATCH (v)-[:HAS_JOB_CARD]->(j:JobCard)
		RETURN v.brand AS brand, count(DISTINCT v) AS vehicles, count(DISTINCT j) AS job_cards
		ORDER BY job_cards DESC LIMIT $limit`
	result, err := sess.Run(ctx, cypher, map[string]any{"limit": int64(limit)})
	if err != nil {
		return nil, err
	}
	var stats []BrandStats
	for result.Next(ctx) {
		rec := result.Record()
		b, _ := rec.Get("brand")
		v, _ := rec.Get("vehicles")
		j, _ := rec.Get("job_cards")
		s := BrandStats{}
		if bs, ok := b.(string); ok {
			s.Brand = bs
		}
		if vi, ok := v.(int64); ok {
			s.Vehicles = vi
		}
		if ji, ok := j.(int64); ok {
			s.JobCards = ji
		}
		stats = append(stats, s)
	}
	return stats, nil
}
